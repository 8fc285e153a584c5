package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/recovero-backend/api/routes"
	"github.com/angelmondragon/recovero-backend/internal/auth"
	"github.com/angelmondragon/recovero-backend/internal/carts"
	"github.com/angelmondragon/recovero-backend/internal/coupons"
	"github.com/angelmondragon/recovero-backend/internal/geo"
	"github.com/angelmondragon/recovero-backend/internal/licenses"
	"github.com/angelmondragon/recovero-backend/internal/orders"
	"github.com/angelmondragon/recovero-backend/internal/recovery"
	"github.com/angelmondragon/recovero-backend/internal/recoverylogs"
	"github.com/angelmondragon/recovero-backend/internal/reminders"
	"github.com/angelmondragon/recovero-backend/internal/reports"
	"github.com/angelmondragon/recovero-backend/pkg/auth/session"
	"github.com/angelmondragon/recovero-backend/pkg/config"
	"github.com/angelmondragon/recovero-backend/pkg/db"
	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"github.com/angelmondragon/recovero-backend/pkg/geoip"
	"github.com/angelmondragon/recovero-backend/pkg/logger"
	"github.com/angelmondragon/recovero-backend/pkg/metrics"
	"github.com/angelmondragon/recovero-backend/pkg/migrate"
	"github.com/angelmondragon/recovero-backend/pkg/redis"
	"github.com/angelmondragon/recovero-backend/pkg/ses"
	"github.com/angelmondragon/recovero-backend/pkg/whatsapp"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"
	cfg.Recovery.Normalize()

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	sessionManager, err := session.NewManager(redisClient)
	requireResource(logg, "session manager", err)

	authService, err := auth.NewService(auth.ServiceParams{
		Admin:          cfg.Admin,
		JWTConfig:      cfg.JWT,
		SessionManager: sessionManager,
	})
	requireResource(logg, "auth service", err)

	tracker, err := carts.NewTracker(carts.TrackerParams{
		Carts:  cartRepo,
		Logs:   logRepo,
		Orders: orderRepo,
		DB:     dbClient,
		Config: cfg.Recovery,
		Logger: logg,
	})
	requireResource(logg, "cart tracker", err)

	var recorder *geo.Recorder
	if cfg.GeoIP.Enabled {
		recorder, err = geo.NewRecorder(geoRepo, geoip.NewClient(cfg.GeoIP), logg)
		requireResource(logg, "geo recorder", err)
	}

	sessionCarts := recovery.NewRedisSessionCarts(redisClient, recovery.DefaultSessionCartTTL)
	resolver, err := recovery.NewResolver(recovery.ResolverParams{
		Carts:    cartRepo,
		Logs:     logRepo,
		Sessions: sessionCarts,
		DB:       dbClient,
		Logger:   logg,
	})
	requireResource(logg, "recovery resolver", err)

	cartAdmin, err := carts.NewAdminService(cartRepo, logRepo, dbClient)
	requireResource(logg, "cart admin service", err)

	mailer, err := ses.NewClient(context.Background(), cfg.Email)
	requireResource(logg, "ses client", err)
	if !mailer.Configured() {
		logg.Warn(context.Background(), "ses not configured; recovery emails will fail")
	}

	issuer, err := coupons.NewIssuer(coupons.NewRepository(conn), cfg.Coupon)
	requireResource(logg, "coupon issuer", err)

	reminderService, err := reminders.NewService(reminders.ServiceParams{
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

	reportService, err := reports.NewService(reports.ServiceParams{
		Carts:  cartRepo,
		Logs:   logRepo,
		Geo:    geoRepo,
		Cache:  redisClient,
		Logger: logg,
	})
	requireResource(logg, "reports service", err)

	licenseService, err := licenses.NewService(licenses.ServiceParams{
		Repo:             licenses.NewRepository(conn),
		Server:           licenses.NewClient(cfg.License),
		Domain:           cfg.License.Domain,
		ReverifyInterval: cfg.License.ReverifyInterval,
		Logger:           logg,
	})
	requireResource(logg, "license service", err)

	deps := routes.Deps{
		DB:           dbClient,
		Redis:        redisClient,
		Sessions:     sessionManager,
		Metrics:      registry,
		Auth:         authService,
		Tracker:      tracker,
		Resolver:     resolver,
		SessionCarts: sessionCarts,
		CartAdmin:    cartAdmin,
		Reminders:    reminderService,
		Reports:      reportService,
		Licenses:     licenseService,
	}
	if recorder != nil {
		deps.GeoRecorder = recorder
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
	logg.Info(ctx, "api server stopped")
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(context.Background(), "resource", resource), "failed to initialize "+resource, err)
	os.Exit(1)
}
