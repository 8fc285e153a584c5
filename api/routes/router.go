package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/recovero-backend/api/controllers"
	"github.com/angelmondragon/recovero-backend/api/middleware"
	"github.com/angelmondragon/recovero-backend/internal/auth"
	"github.com/angelmondragon/recovero-backend/internal/carts"
	"github.com/angelmondragon/recovero-backend/internal/geo"
	"github.com/angelmondragon/recovero-backend/internal/licenses"
	"github.com/angelmondragon/recovero-backend/internal/recovery"
	"github.com/angelmondragon/recovero-backend/internal/reports"
	pkgAuth "github.com/angelmondragon/recovero-backend/pkg/auth"
	"github.com/angelmondragon/recovero-backend/pkg/auth/session"
	"github.com/angelmondragon/recovero-backend/pkg/config"
	"github.com/angelmondragon/recovero-backend/pkg/db"
	"github.com/angelmondragon/recovero-backend/pkg/logger"
	"github.com/angelmondragon/recovero-backend/pkg/pagination"
)

type redisClient interface {
	Ping(ctx context.Context) error
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

type cartAdmin interface {
	List(ctx context.Context, params pagination.Params, filters carts.ListFilters) (*carts.CartList, error)
	Get(ctx context.Context, id int64) (*carts.CartDetail, error)
	Delete(ctx context.Context, id int64) error
	MarkRecovered(ctx context.Context, id int64) error
}

type reminderSender interface {
	Resend(ctx context.Context, cartID int64) error
	SendTestEmail(ctx context.Context, to string) error
}

type statsReader interface {
	Dashboard(ctx context.Context) (reports.Dashboard, error)
	Devices(ctx context.Context) ([]geo.Count, error)
	Countries(ctx context.Context) ([]geo.Count, error)
	Heatmap(ctx context.Context) ([]geo.Point, error)
}

type licenseManager interface {
	Status(ctx context.Context) (licenses.Status, error)
	Activate(ctx context.Context, key string) (licenses.Status, error)
	Deactivate(ctx context.Context) (licenses.Status, error)
}

type geoRecorder interface {
	Record(ctx context.Context, ip, userAgent string) (string, error)
}

// Deps carries everything the HTTP surface calls into. Optional members
// may be nil; their handlers answer with an error envelope.
type Deps struct {
	DB       db.Pinger
	Redis    redisClient
	Sessions session.AccessSessionChecker
	Metrics  prometheus.Gatherer

	Auth         auth.Service
	Tracker      carts.Tracker
	GeoRecorder  geoRecorder
	Resolver     recovery.Resolver
	SessionCarts recovery.SessionCarts
	CartAdmin    cartAdmin
	Reminders    reminderSender
	Reports      statsReader
	Licenses     licenseManager
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	recoveryPolicy := middleware.NewRateLimitPolicy("recovery", cfg.RateLimit.RecoveryWindow, cfg.RateLimit.RecoveryLimit)
	trackPolicy := middleware.NewRateLimitPolicy("track", cfg.RateLimit.TrackWindow, cfg.RateLimit.TrackLimit)
	loginPolicy := middleware.NewRateLimitPolicy("login", cfg.RateLimit.LoginWindow, cfg.RateLimit.LoginLimit)

	idempotent := middleware.Idempotency(deps.Redis, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, deps.Redis, logg))
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.With(middleware.SoftRateLimit(recoveryPolicy, deps.Redis, logg)).
		Get("/", controllers.RecoveryLink(cfg.Recovery.CheckoutURL, deps.Resolver, logg))

	r.Route("/api/v1/track", func(r chi.Router) {
		r.Use(middleware.RateLimit(trackPolicy, deps.Redis, logg))
		r.Post("/cart", controllers.TrackCart(deps.Tracker, deps.GeoRecorder, logg))
		r.Post("/checkout", controllers.TrackCheckout(deps.Tracker, logg))
		r.With(middleware.RequireSignature(cfg.Recovery.WebhookSecret, logg)).
			Post("/order", controllers.TrackOrder(deps.Tracker, logg))
		r.Get("/session-cart", controllers.SessionCart(deps.SessionCarts, logg))
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.With(middleware.RateLimit(loginPolicy, deps.Redis, logg)).
			Post("/login", controllers.AdminLogin(deps.Auth, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminAuth(cfg.JWT, deps.Sessions, logg))
			r.Use(middleware.RequireRole(logg, pkgAuth.RoleAdmin))

			r.Post("/logout", controllers.AdminLogout(deps.Auth, logg))

			r.Route("/carts", func(r chi.Router) {
				r.Get("/", controllers.AdminListCarts(deps.CartAdmin, logg))
				r.With(idempotent).Post("/bulk", controllers.AdminBulkCarts(deps.CartAdmin, deps.Reminders, logg))
				r.Get("/{id}", controllers.AdminGetCart(deps.CartAdmin, logg))
				r.Delete("/{id}", controllers.AdminDeleteCart(deps.CartAdmin, logg))
				r.With(idempotent).Post("/{id}/resend", controllers.AdminResendCart(deps.Reminders, logg))
			})

			r.Route("/stats", func(r chi.Router) {
				r.Get("/", controllers.AdminStats(deps.Reports, logg))
				r.Get("/devices", controllers.AdminDeviceStats(deps.Reports, logg))
				r.Get("/countries", controllers.AdminCountryStats(deps.Reports, logg))
				r.Get("/heatmap", controllers.AdminHeatmap(deps.Reports, logg))
			})

			r.With(idempotent).Post("/email/test", controllers.AdminTestEmail(deps.Reminders, logg))

			r.Route("/license", func(r chi.Router) {
				r.Get("/", controllers.AdminLicenseStatus(deps.Licenses, logg))
				r.Post("/activate", controllers.AdminActivateLicense(deps.Licenses, logg))
				r.Post("/deactivate", controllers.AdminDeactivateLicense(deps.Licenses, logg))
			})
		})
	})

	return r
}
