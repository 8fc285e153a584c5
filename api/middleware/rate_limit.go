package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/recovero-backend/api/responses"
	pkgerrors "github.com/angelmondragon/recovero-backend/pkg/errors"
	"github.com/angelmondragon/recovero-backend/pkg/logger"
)

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimitPolicy is a per-IP fixed window for one traffic surface.
type RateLimitPolicy struct {
	name   string
	window time.Duration
	limit  int
}

func NewRateLimitPolicy(name string, window time.Duration, limit int) RateLimitPolicy {
	return RateLimitPolicy{
		name:   strings.ToLower(strings.TrimSpace(name)),
		window: window,
		limit:  limit,
	}
}

func (p RateLimitPolicy) enabled() bool {
	return p.window > 0 && p.limit > 0
}

func (p RateLimitPolicy) scope(ip string) string {
	name := p.name
	if name == "" {
		name = "default"
	}
	return name + ":ip:" + ip
}

func (p RateLimitPolicy) check(r *http.Request, store rateLimiter, logg *logger.Logger) (bool, error) {
	ip := ClientIP(r)
	if ip == "" {
		return true, nil
	}
	allowed, count, err := store.FixedWindowAllow(r.Context(), p.scope(ip), int64(p.limit), p.window)
	if err != nil {
		return false, err
	}
	if !allowed && logg != nil {
		logCtx := logg.WithFields(r.Context(), map[string]any{
			"policy":         p.name,
			"ip":             ip,
			"attempts":       count,
			"limit":          p.limit,
			"window_seconds": int(p.window.Seconds()),
		})
		logg.Warn(logCtx, "rate_limit.blocked")
	}
	return allowed, nil
}

// RateLimit rejects requests over the policy with 429. Redis failures are
// reported as a dependency error.
func RateLimit(policy RateLimitPolicy, store rateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := policy.check(r, store, logg)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !allowed {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SoftRateLimit never rejects. Over-limit requests are flagged in the
// context (see RateLimited) and handlers decide what to skip. Redis errors
// fail open.
func SoftRateLimit(policy RateLimitPolicy, store rateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := policy.check(r, store, logg)
			if err != nil {
				if logg != nil {
					logg.Error(r.Context(), "rate limit check failed", err)
				}
				allowed = true
			}
			if !allowed {
				r = r.WithContext(context.WithValue(r.Context(), ctxLimited, true))
			}
			next.ServeHTTP(w, r)
		})
	}
}
