package coupons

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/recovero-backend/pkg/config"
	"github.com/angelmondragon/recovero-backend/pkg/db"
	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/recovero-backend/pkg/errors"
	"github.com/angelmondragon/recovero-backend/pkg/security"
)

// maxCodeAttempts bounds retries on a code collision.
const maxCodeAttempts = 5

// Issuer creates single-use fixed-cart coupons for the third reminder stage.
type Issuer struct {
	repo    Repository
	cfg     config.CouponConfig
	now     func() time.Time
	newCode func(prefix string) (string, error)
}

func NewIssuer(repo Repository, cfg config.CouponConfig) (*Issuer, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if cfg.ExpiryDays <= 0 {
		cfg.ExpiryDays = 7
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "RECOVERO-"
	}
	return &Issuer{repo: repo, cfg: cfg, now: time.Now, newCode: security.NewCouponCode}, nil
}

// Issue persists a coupon for cartID and returns it.
func (i *Issuer) Issue(ctx context.Context, cartID int64) (*models.RecoveryCoupon, error) {
	if !i.cfg.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeNotConfigured, "coupon amount must be positive")
	}
	now := i.now().UTC()
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := i.newCode(i.cfg.Prefix)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate coupon code")
		}
		coupon := &models.RecoveryCoupon{
			CartID:       cartID,
			Code:         code,
			Amount:       i.cfg.Amount,
			DiscountType: models.DiscountTypeFixedCart,
			UsageLimit:   1,
			ExpiresAt:    now.AddDate(0, 0, i.cfg.ExpiryDays),
			CreatedAt:    now,
		}
		err = i.repo.Create(ctx, coupon)
		if err == nil {
			return coupon, nil
		}
		if !db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist coupon")
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "could not allocate a unique coupon code")
}
