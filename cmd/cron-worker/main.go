package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/recovero-backend/internal/carts"
	"github.com/angelmondragon/recovero-backend/internal/coupons"
	"github.com/angelmondragon/recovero-backend/internal/cron"
	"github.com/angelmondragon/recovero-backend/internal/geo"
	"github.com/angelmondragon/recovero-backend/internal/licenses"
	"github.com/angelmondragon/recovero-backend/internal/orders"
	"github.com/angelmondragon/recovero-backend/internal/recoverylogs"
	"github.com/angelmondragon/recovero-backend/internal/reminders"
	"github.com/angelmondragon/recovero-backend/internal/reports"
	"github.com/angelmondragon/recovero-backend/pkg/config"
	"github.com/angelmondragon/recovero-backend/pkg/db"
	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"github.com/angelmondragon/recovero-backend/pkg/instance"
	"github.com/angelmondragon/recovero-backend/pkg/logger"
	"github.com/angelmondragon/recovero-backend/pkg/metrics"
	"github.com/angelmondragon/recovero-backend/pkg/migrate"
	"github.com/angelmondragon/recovero-backend/pkg/redis"
	"github.com/angelmondragon/recovero-backend/pkg/ses"
	"github.com/angelmondragon/recovero-backend/pkg/whatsapp"
)

const (
	reminderService    = "reminders"
	maintenanceService = "maintenance"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "cron-worker"
	cfg.Recovery.Normalize()

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	requireResource(logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if cfg.FeatureFlags.UseSQLite && cfg.FeatureFlags.AutoMigrate {
		requireResource(logg, "sqlite schema", dbClient.AutoMigrate(models.All()...))
	}
	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	conn := dbClient.DB()
	cartRepo := carts.NewRepository(conn)
	logRepo := recoverylogs.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)
	geoRepo := geo.NewRepository(conn)

	mailer, err := ses.NewClient(context.Background(), cfg.Email)
	requireResource(logg, "ses client", err)
	if !mailer.Configured() {
		logg.Warn(context.Background(), "ses not configured; email reminders will be logged as failed")
	}

	issuer, err := coupons.NewIssuer(coupons.NewRepository(conn), cfg.Coupon)
	requireResource(logg, "coupon issuer", err)

	reminderSvc, err := reminders.NewService(reminders.ServiceParams{
		Carts:     cartRepo,
		Logs:      logRepo,
		Orders:    orderRepo,
		Coupons:   issuer,
		Email:     mailer,
		WhatsApp:  whatsapp.NewClient(cfg.WhatsApp),
		WhatsAppTemplate: reminders.WhatsAppTemplate{
			Name:     cfg.WhatsApp.TemplateName,
			Language: cfg.WhatsApp.TemplateLanguage,
		},
		Leases:    redisClient,
		Recovery:  cfg.Recovery,
		PublicURL: cfg.App.PublicURL,
		Metrics:   metrics.NewReminderMetrics(registry),
		Logger:    logg,
	})
	requireResource(logg, "reminder service", err)

	licenseSvc, err := licenses.NewService(licenses.ServiceParams{
		Repo:             licenses.NewRepository(conn),
		Server:           licenses.NewClient(cfg.License),
		Domain:           cfg.License.Domain,
		ReverifyInterval: cfg.License.ReverifyInterval,
		Logger:           logg,
	})
	requireResource(logg, "license service", err)

	reportSvc, err := reports.NewService(reports.ServiceParams{
		Carts:  cartRepo,
		Logs:   logRepo,
		Geo:    geoRepo,
		Cache:  redisClient,
		Logger: logg,
	})
	requireResource(logg, "reports service", err)

	reminderJob, err := cron.NewReminderJob(cron.ReminderJobParams{
		Logger:    logg,
		Carts:     cartRepo,
		Reminders: reminderSvc,
		Licenses:  licenseSvc,
		Recovery:  cfg.Recovery,
	})
	requireResource(logg, "reminder job", err)

	retentionJob, err := cron.NewRetentionJob(cron.RetentionJobParams{
		Logger:    logg,
		Carts:     cartRepo,
		Logs:      logRepo,
		Geo:       geoRepo,
		Orders:    orderRepo,
		PurgeDays: cfg.Recovery.PurgeDays,
	})
	requireResource(logg, "retention job", err)

	licenseJob, err := cron.NewLicenseJob(logg, licenseSvc)
	requireResource(logg, "license job", err)

	statsJob, err := cron.NewStatsCacheJob(logg, reportSvc)
	requireResource(logg, "stats cache job", err)

	jobMetrics := metrics.NewCronJobMetrics(registry)
	services := []*cron.Service{
		newCronService(logg, redisClient, cfg, jobMetrics, reminderService, cfg.Cron.ReminderInterval, reminderJob),
		newCronService(logg, redisClient, cfg, jobMetrics, maintenanceService, cfg.Cron.MaintenanceInterval, retentionJob, licenseJob, statsJob),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID(),
	})
	logg.Info(ctx, "starting cron worker")

	group, groupCtx := errgroup.WithContext(ctx)
	for _, svc := range services {
		group.Go(func() error {
			return svc.Run(groupCtx)
		})
	}
	if cfg.Cron.MetricsAddr != "" {
		group.Go(func() error {
			return serveMetrics(groupCtx, cfg.Cron.MetricsAddr, registry)
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func newCronService(logg *logger.Logger, client *redis.Client, cfg *config.Config, jobMetrics *metrics.CronJobMetrics, name string, interval time.Duration, jobs ...cron.Job) *cron.Service {
	lock, err := cron.NewRedisLock(client, client.CronLockKey(name, cfg.App.Env), lockTTL(interval))
	requireResource(logg, name+" cron lock", err)

	svc, err := cron.NewService(cron.ServiceParams{
		Name:     name,
		Logger:   logg,
		Registry: cron.NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: interval,
	})
	requireResource(logg, name+" cron service", err)
	return svc
}

// serveMetrics exposes the worker's registry until ctx is done.
func serveMetrics(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	}
}

// lockTTL keeps a crashed holder from blocking more than one cycle.
func lockTTL(interval time.Duration) time.Duration {
	if interval <= 0 {
		return 0
	}
	return interval
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(context.Background(), "resource", resource), "failed to initialize "+resource, err)
	os.Exit(1)
}
