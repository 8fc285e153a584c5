package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/recovero-backend/internal/carts"
	"github.com/angelmondragon/recovero-backend/internal/geo"
	"github.com/angelmondragon/recovero-backend/internal/recoverylogs"
	"github.com/angelmondragon/recovero-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/recovero-backend/pkg/errors"
	"github.com/angelmondragon/recovero-backend/pkg/logger"
	"github.com/angelmondragon/recovero-backend/pkg/redis"
)

const (
	DefaultCacheTTL = 5 * time.Minute

	deviceLimit  = 10
	countryLimit = 20
	heatmapLimit = 500
)

// Dashboard is the headline recovery summary.
type Dashboard struct {
	TotalCarts   int64           `json:"total_carts"`
	Abandoned    int64           `json:"abandoned"`
	Recovered    int64           `json:"recovered"`
	Completed    int64           `json:"completed"`
	RecoveryRate decimal.Decimal `json:"recovery_rate"`
	EmailsSent   int64           `json:"emails_sent"`
	WhatsAppSent int64           `json:"whatsapp_sent"`
	CouponsSent  int64           `json:"coupons_sent"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

type cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	DelPattern(ctx context.Context, pattern string) (int, error)
	StatsKey(name string) string
	StatsPattern() string
}

type ServiceParams struct {
	Carts  carts.Repository
	Logs   recoverylogs.Repository
	Geo    geo.Repository
	Cache  cache
	TTL    time.Duration
	Logger *logger.Logger
	Now    func() time.Time
}

// Service computes admin statistics and caches them in Redis.
type Service struct {
	carts carts.Repository
	logs  recoverylogs.Repository
	geo   geo.Repository
	cache cache
	ttl   time.Duration
	logg  *logger.Logger
	now   func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Carts == nil || params.Logs == nil || params.Geo == nil {
		return nil, fmt.Errorf("carts, recovery log and geo repositories required")
	}
	if params.Cache == nil {
		return nil, fmt.Errorf("cache required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		carts: params.Carts,
		logs:  params.Logs,
		geo:   params.Geo,
		cache: params.Cache,
		ttl:   ttl,
		logg:  params.Logger,
		now:   now,
	}, nil
}

func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	return cached(ctx, s, "dashboard", func(ctx context.Context) (Dashboard, error) {
		byStatus, err := s.carts.CountByStatus(ctx)
		if err != nil {
			return Dashboard{}, err
		}
		out := Dashboard{
			Abandoned:   byStatus[enums.CartStatusAbandoned],
			Completed:   byStatus[enums.CartStatusCompleted],
			GeneratedAt: s.now().UTC(),
		}
		for _, n := range byStatus {
			out.TotalCarts += n
		}
		if out.Recovered, err = s.logs.CountRecoveredCarts(ctx); err != nil {
			return Dashboard{}, err
		}
		if out.EmailsSent, err = s.logs.CountByOutcome(ctx, enums.RecoveryChannelEmail, enums.RecoveryOutcomeSent); err != nil {
			return Dashboard{}, err
		}
		if out.WhatsAppSent, err = s.logs.CountByOutcome(ctx, enums.RecoveryChannelWhatsApp, enums.RecoveryOutcomeSent); err != nil {
			return Dashboard{}, err
		}
		if out.CouponsSent, err = s.logs.CountByOutcome(ctx, enums.RecoveryChannelCoupon, enums.RecoveryOutcomeSent); err != nil {
			return Dashboard{}, err
		}
		out.RecoveryRate = RecoveryRate(out.Recovered, out.TotalCarts)
		return out, nil
	})
}

func (s *Service) Devices(ctx context.Context) ([]geo.Count, error) {
	return cached(ctx, s, "devices", func(ctx context.Context) ([]geo.Count, error) {
		return s.geo.DeviceCounts(ctx, deviceLimit)
	})
}

func (s *Service) Countries(ctx context.Context) ([]geo.Count, error) {
	return cached(ctx, s, "countries", func(ctx context.Context) ([]geo.Count, error) {
		return s.geo.CountryCounts(ctx, countryLimit)
	})
}

func (s *Service) Heatmap(ctx context.Context) ([]geo.Point, error) {
	return cached(ctx, s, "heatmap", func(ctx context.Context) ([]geo.Point, error) {
		return s.geo.HeatmapPoints(ctx, heatmapLimit)
	})
}

// Invalidate drops every cached report.
func (s *Service) Invalidate(ctx context.Context) (int, error) {
	n, err := s.cache.DelPattern(ctx, s.cache.StatsPattern())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invalidate stats cache")
	}
	return n, nil
}

// RecoveryRate is recovered/total as a percentage rounded to two places.
func RecoveryRate(recovered, total int64) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(recovered).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(total), 2)
}

// cached serves name from Redis, computing and storing it on a miss. Cache
// failures are logged and fall through to the database.
func cached[T any](ctx context.Context, s *Service, name string, compute func(context.Context) (T, error)) (T, error) {
	key := s.cache.StatsKey(name)
	raw, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		var out T
		if jsonErr := json.Unmarshal([]byte(raw), &out); jsonErr == nil {
			return out, nil
		}
		s.logg.Warn(ctx, "discarding unreadable stats cache entry "+name)
	case !errors.Is(err, redis.Nil):
		s.logg.Error(ctx, "read stats cache", err)
	}

	out, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "compute "+name+" stats")
	}
	payload, err := json.Marshal(out)
	if err == nil {
		err = s.cache.Set(ctx, key, payload, s.ttl)
	}
	if err != nil {
		s.logg.Error(ctx, "write stats cache", err)
	}
	return out, nil
}
