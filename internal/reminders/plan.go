package reminders

import (
	"strings"
	"time"

	"github.com/angelmondragon/recovero-backend/pkg/config"
	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"github.com/angelmondragon/recovero-backend/pkg/enums"
)

// SkipReason explains why a cart was not sent a reminder on this tick.
type SkipReason string

const (
	SkipTerminal         SkipReason = "terminal"
	SkipNotAbandoned     SkipReason = "not_abandoned"
	SkipTooOld           SkipReason = "too_old"
	SkipNotDue           SkipReason = "not_due"
	SkipNoEmail          SkipReason = "no_email"
	SkipNoPhone          SkipReason = "no_phone"
	SkipWhatsAppDisabled SkipReason = "whatsapp_disabled"
	SkipChannelDisabled  SkipReason = "channel_disabled"
	SkipUnlicensed       SkipReason = "unlicensed"
	SkipFinished         SkipReason = "finished"
	SkipCompleted        SkipReason = "completed_elsewhere"
	SkipLeaseHeld        SkipReason = "lease_held"
)

// Decision is the outcome of Plan. When Send is false, Reason is set.
type Decision struct {
	Send bool
	// Stage is the stage the cart is in before the reminder fires.
	Stage   Stage
	Channel enums.RecoveryChannel
	Reason  SkipReason
}

// Options carries gates that are not part of the recovery config.
type Options struct {
	// ProAllowed is false when whatsapp and coupon reminders are locked
	// behind an inactive license.
	ProAllowed bool
}

func skip(reason SkipReason) Decision {
	return Decision{Reason: reason}
}

// Plan decides whether cart should receive its next reminder at now. It
// advances at most one stage and never skips one.
func Plan(cart models.AbandonedCart, progress Progress, cfg config.RecoveryConfig, opts Options, now time.Time) Decision {
	if cart.Status.IsTerminal() {
		return skip(SkipTerminal)
	}
	if cart.Status != enums.CartStatusAbandoned {
		return skip(SkipNotAbandoned)
	}
	if now.Sub(cart.CreatedAt) > cfg.MaxCartAge() {
		return skip(SkipTooOld)
	}

	var (
		channel enums.RecoveryChannel
		delay   time.Duration
	)
	switch progress.Stage {
	case StageNone:
		if !cfg.EmailEnabled {
			return skip(SkipChannelDisabled)
		}
		if strings.TrimSpace(cart.Email) == "" {
			return skip(SkipNoEmail)
		}
		channel, delay = enums.RecoveryChannelEmail, cfg.EmailDelay()
	case StageEmail:
		if !cfg.WhatsAppEnabled {
			return skip(SkipWhatsAppDisabled)
		}
		if !opts.ProAllowed {
			return skip(SkipUnlicensed)
		}
		if strings.TrimSpace(cart.Phone) == "" {
			return skip(SkipNoPhone)
		}
		channel, delay = enums.RecoveryChannelWhatsApp, cfg.WhatsAppDelay()
	case StageWhatsApp:
		if !cfg.CouponEnabled {
			return skip(SkipChannelDisabled)
		}
		if !opts.ProAllowed {
			return skip(SkipUnlicensed)
		}
		if strings.TrimSpace(cart.Email) == "" {
			return skip(SkipNoEmail)
		}
		channel, delay = enums.RecoveryChannelCoupon, cfg.CouponDelay()
	default:
		return skip(SkipFinished)
	}

	if now.Sub(progress.LastEventAt) < delay {
		return skip(SkipNotDue)
	}
	return Decision{Send: true, Stage: progress.Stage, Channel: channel}
}
