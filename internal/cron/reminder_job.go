package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/recovero-backend/internal/carts"
	"github.com/angelmondragon/recovero-backend/internal/reminders"
	"github.com/angelmondragon/recovero-backend/pkg/config"
	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"github.com/angelmondragon/recovero-backend/pkg/logger"
)

type reminderCarts interface {
	ListForReminders(ctx context.Context, filter carts.ReminderFilter) ([]models.AbandonedCart, error)
}

type cartProcessor interface {
	ProcessCart(ctx context.Context, cart models.AbandonedCart, opts reminders.Options) (reminders.Decision, error)
}

type proChecker interface {
	IsPro(ctx context.Context) (bool, error)
}

type ReminderJobParams struct {
	Logger    *logger.Logger
	Carts     reminderCarts
	Reminders cartProcessor
	// Licenses may be nil when the paid channels are not license gated.
	Licenses proChecker
	Recovery config.RecoveryConfig
	Now      func() time.Time
}

// NewReminderJob builds the scheduler tick that walks abandoned carts.
func NewReminderJob(params ReminderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Reminders == nil {
		return nil, fmt.Errorf("reminder service required")
	}
	if params.Recovery.RequireLicenseForPro && params.Licenses == nil {
		return nil, fmt.Errorf("license service required when pro channels are license gated")
	}
	cfg := params.Recovery
	cfg.Normalize()
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &reminderJob{
		logg:      params.Logger,
		carts:     params.Carts,
		reminders: params.Reminders,
		licenses:  params.Licenses,
		cfg:       cfg,
		now:       now,
	}, nil
}

type reminderJob struct {
	logg      *logger.Logger
	carts     reminderCarts
	reminders cartProcessor
	licenses  proChecker
	cfg       config.RecoveryConfig
	now       func() time.Time
}

func (j *reminderJob) Name() string { return "reminders" }

func (j *reminderJob) Run(ctx context.Context) error {
	if !j.cfg.TrackingEnabled {
		j.logg.Info(ctx, "tracking disabled; reminder tick skipped")
		return nil
	}
	opts, err := j.options(ctx)
	if err != nil {
		return err
	}
	batch, err := j.carts.ListForReminders(ctx, j.filter(opts))
	if err != nil {
		return fmt.Errorf("list carts for reminders: %w", err)
	}

	var errs error
	sent, skipped := 0, 0
	for _, cart := range batch {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		decision, err := j.reminders.ProcessCart(ctx, cart, opts)
		if err != nil {
			cartCtx := j.logg.WithFields(j.logg.WithCartID(ctx, cart.ID), map[string]any{
				"stage":   decision.Stage.String(),
				"channel": decision.Channel.String(),
			})
			j.logg.Error(cartCtx, "reminder processing failed", err)
			errs = multierr.Append(errs, fmt.Errorf("cart %d: %w", cart.ID, err))
			continue
		}
		if decision.Send {
			sent++
		} else {
			skipped++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"batch":   len(batch),
		"sent":    sent,
		"skipped": skipped,
		"failed":  len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "reminder tick complete")
	return errs
}

// filter mirrors the stage gates of reminders.Plan so the batch only holds
// carts that can move this tick.
func (j *reminderJob) filter(opts reminders.Options) carts.ReminderFilter {
	now := j.now().UTC()
	f := carts.ReminderFilter{
		CreatedAfter: now.Add(-j.cfg.MaxCartAge()),
		Limit:        j.cfg.BatchSize,
	}
	if j.cfg.EmailEnabled {
		f.EmailDue = now.Add(-j.cfg.EmailDelay())
	}
	if j.cfg.WhatsAppEnabled && opts.ProAllowed {
		f.WhatsAppDue = now.Add(-j.cfg.WhatsAppDelay())
	}
	if j.cfg.CouponEnabled && opts.ProAllowed {
		f.CouponDue = now.Add(-j.cfg.CouponDelay())
	}
	return f
}

// options resolves the per-tick license gate once for the whole batch.
func (j *reminderJob) options(ctx context.Context) (reminders.Options, error) {
	if !j.cfg.RequireLicenseForPro {
		return reminders.Options{ProAllowed: true}, nil
	}
	pro, err := j.licenses.IsPro(ctx)
	if err != nil {
		return reminders.Options{}, fmt.Errorf("check license: %w", err)
	}
	return reminders.Options{ProAllowed: pro}, nil
}
