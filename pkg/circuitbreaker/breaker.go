package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/recovero-backend/pkg/logger"
)

// State of a breaker.
//
//	closed    -> open       after MaxFailures consecutive failures
//	open      -> half-open  once RecoveryTimeout has elapsed
//	half-open -> closed     when the probe succeeds
//	half-open -> open       when the probe fails
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker is open")

type Config struct {
	Name            string
	MaxFailures     int
	RecoveryTimeout time.Duration
	// HalfOpenMaxRequests caps probes admitted while half-open.
	HalfOpenMaxRequests int
}

func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		MaxFailures:         5,
		RecoveryTimeout:     time.Minute,
		HalfOpenMaxRequests: 1,
	}
}

// Breaker guards one outbound channel (ses, whatsapp).
type Breaker struct {
	mu     sync.Mutex
	cfg    Config
	logg   *logger.Logger
	now    func() time.Time
	state  State
	fails  int
	probes int
	// openedAt is the time of the failure that last opened the breaker.
	openedAt time.Time
}

func New(cfg Config, logg *logger.Logger) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = time.Minute
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = 1
	}
	return &Breaker{cfg: cfg, logg: logg, now: time.Now, state: StateClosed}
}

// Do runs fn unless the breaker is open, recording the outcome.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if !b.allow(ctx) {
		return fmt.Errorf("%w: %s unavailable", ErrOpen, b.cfg.Name)
	}
	if err := fn(ctx); err != nil {
		b.recordFailure(ctx)
		return err
	}
	b.recordSuccess(ctx)
	return nil
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.fails = 0
	b.probes = 0
}

func (b *Breaker) allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.RecoveryTimeout {
			return false
		}
		b.transition(ctx, StateHalfOpen)
		b.probes = 1
		return true
	case StateHalfOpen:
		if b.probes < b.cfg.HalfOpenMaxRequests {
			b.probes++
			return true
		}
		return false
	}
	return false
}

func (b *Breaker) recordSuccess(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fails = 0
	if b.state == StateHalfOpen {
		b.transition(ctx, StateClosed)
	}
}

func (b *Breaker) recordFailure(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fails++
	switch b.state {
	case StateClosed:
		if b.fails >= b.cfg.MaxFailures {
			b.openedAt = b.now()
			b.transition(ctx, StateOpen)
		}
	case StateHalfOpen:
		b.openedAt = b.now()
		b.transition(ctx, StateOpen)
	}
}

// transition must be called with mu held.
func (b *Breaker) transition(ctx context.Context, next State) {
	if b.state == next {
		return
	}
	prev := b.state
	b.state = next
	b.probes = 0
	if b.logg == nil {
		return
	}
	logCtx := b.logg.WithFields(ctx, map[string]any{
		"breaker":  b.cfg.Name,
		"from":     prev.String(),
		"to":       next.String(),
		"failures": b.fails,
	})
	if next == StateOpen {
		b.logg.Warn(logCtx, "circuit breaker opened")
		return
	}
	b.logg.Info(logCtx, "circuit breaker state changed")
}
