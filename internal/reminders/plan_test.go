package reminders

import (
	"testing"
	"time"

	"github.com/angelmondragon/recovero-backend/pkg/config"
	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"github.com/angelmondragon/recovero-backend/pkg/enums"
	"github.com/stretchr/testify/assert"
)

func testRecoveryConfig() config.RecoveryConfig {
	cfg := config.RecoveryConfig{
		TrackingEnabled:    true,
		EmailEnabled:       true,
		WhatsAppEnabled:    true,
		CouponEnabled:      true,
		EmailDelayHours:    1,
		WhatsAppDelayHours: 6,
		CouponDelayHours:   24,
		MaxCartAgeHours:    168,
		StoreName:          "Acme",
		EmailSubject:       "Complete your purchase",
		CouponSubject:      "Here is a special coupon for you",
	}
	cfg.Normalize()
	return cfg
}

func TestPlan(t *testing.T) {
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	h := func(n int) time.Time { return created.Add(time.Duration(n) * time.Hour) }
	base := models.AbandonedCart{
		ID:        1,
		Email:     "jane@example.com",
		Phone:     "+1 555 0100",
		Status:    enums.CartStatusAbandoned,
		CreatedAt: created,
	}
	licensed := Options{ProAllowed: true}

	tests := []struct {
		name     string
		mutate   func(*models.AbandonedCart, *config.RecoveryConfig)
		progress Progress
		opts     Options
		now      time.Time
		want     Decision
	}{
		{
			name:     "email due after one hour",
			progress: Progress{Stage: StageNone, LastEventAt: created},
			opts:     licensed,
			now:      h(1),
			want:     Decision{Send: true, Stage: StageNone, Channel: enums.RecoveryChannelEmail},
		},
		{
			name:     "email not yet due",
			progress: Progress{Stage: StageNone, LastEventAt: created},
			opts:     licensed,
			now:      created.Add(59 * time.Minute),
			want:     Decision{Reason: SkipNotDue},
		},
		{
			name:     "whatsapp due six hours after the email",
			progress: Progress{Stage: StageEmail, LastEventAt: h(1)},
			opts:     licensed,
			now:      h(7),
			want:     Decision{Send: true, Stage: StageEmail, Channel: enums.RecoveryChannelWhatsApp},
		},
		{
			name:     "only one stage advances even when every delay elapsed",
			progress: Progress{Stage: StageNone, LastEventAt: created},
			opts:     licensed,
			now:      h(100),
			want:     Decision{Send: true, Stage: StageNone, Channel: enums.RecoveryChannelEmail},
		},
		{
			name:     "coupon due a day after whatsapp",
			progress: Progress{Stage: StageWhatsApp, LastEventAt: h(7)},
			opts:     licensed,
			now:      h(31),
			want:     Decision{Send: true, Stage: StageWhatsApp, Channel: enums.RecoveryChannelCoupon},
		},
		{
			name:     "finished after coupon",
			progress: Progress{Stage: StageCoupon, LastEventAt: h(31)},
			opts:     licensed,
			now:      h(100),
			want:     Decision{Reason: SkipFinished},
		},
		{
			name:     "too old",
			progress: Progress{Stage: StageNone, LastEventAt: created},
			opts:     licensed,
			now:      h(169),
			want:     Decision{Reason: SkipTooOld},
		},
		{
			name:     "recovered carts are terminal",
			mutate:   func(c *models.AbandonedCart, _ *config.RecoveryConfig) { c.Status = enums.CartStatusRecovered },
			progress: Progress{Stage: StageNone, LastEventAt: created},
			opts:     licensed,
			now:      h(2),
			want:     Decision{Reason: SkipTerminal},
		},
		{
			name:     "checkout carts wait",
			mutate:   func(c *models.AbandonedCart, _ *config.RecoveryConfig) { c.Status = enums.CartStatusCheckout },
			progress: Progress{Stage: StageNone, LastEventAt: created},
			opts:     licensed,
			now:      h(2),
			want:     Decision{Reason: SkipNotAbandoned},
		},
		{
			name:     "no email",
			mutate:   func(c *models.AbandonedCart, _ *config.RecoveryConfig) { c.Email = "" },
			progress: Progress{Stage: StageNone, LastEventAt: created},
			opts:     licensed,
			now:      h(2),
			want:     Decision{Reason: SkipNoEmail},
		},
		{
			name:     "no phone keeps the cart at stage one",
			mutate:   func(c *models.AbandonedCart, _ *config.RecoveryConfig) { c.Phone = " " },
			progress: Progress{Stage: StageEmail, LastEventAt: h(1)},
			opts:     licensed,
			now:      h(50),
			want:     Decision{Reason: SkipNoPhone},
		},
		{
			name:     "whatsapp disabled",
			mutate:   func(_ *models.AbandonedCart, cfg *config.RecoveryConfig) { cfg.WhatsAppEnabled = false },
			progress: Progress{Stage: StageEmail, LastEventAt: h(1)},
			opts:     licensed,
			now:      h(50),
			want:     Decision{Reason: SkipWhatsAppDisabled},
		},
		{
			name:     "pro stages need a license",
			progress: Progress{Stage: StageEmail, LastEventAt: h(1)},
			now:      h(50),
			want:     Decision{Reason: SkipUnlicensed},
		},
		{
			name:     "email channel disabled",
			mutate:   func(_ *models.AbandonedCart, cfg *config.RecoveryConfig) { cfg.EmailEnabled = false },
			progress: Progress{Stage: StageNone, LastEventAt: created},
			opts:     licensed,
			now:      h(2),
			want:     Decision{Reason: SkipChannelDisabled},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cart := base
			cfg := testRecoveryConfig()
			if tc.mutate != nil {
				tc.mutate(&cart, &cfg)
			}
			assert.Equal(t, tc.want, Plan(cart, tc.progress, cfg, tc.opts, tc.now))
		})
	}
}
