package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const DiscountTypeFixedCart = "fixed_cart"

// RecoveryCoupon is a single-use discount issued by the coupon stage.
type RecoveryCoupon struct {
	ID           int64           `gorm:"column:id;primaryKey;autoIncrement"`
	CartID       int64           `gorm:"column:cart_id;not null;index"`
	Code         string          `gorm:"column:code;not null;uniqueIndex"`
	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	DiscountType string          `gorm:"column:discount_type;not null;default:'fixed_cart'"`
	UsageLimit   int             `gorm:"column:usage_limit;not null;default:1"`
	UsedCount    int             `gorm:"column:used_count;not null;default:0"`
	ExpiresAt    time.Time       `gorm:"column:expires_at;not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (RecoveryCoupon) TableName() string { return "recovery_coupons" }
