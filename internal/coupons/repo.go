package coupons

import (
	"context"

	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, coupon *models.RecoveryCoupon) error
	FindByCode(ctx context.Context, code string) (*models.RecoveryCoupon, error)
	DeleteByCarts(ctx context.Context, cartIDs []int64) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, coupon *models.RecoveryCoupon) error {
	return r.db.WithContext(ctx).Create(coupon).Error
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.RecoveryCoupon, error) {
	var coupon models.RecoveryCoupon
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) DeleteByCarts(ctx context.Context, cartIDs []int64) (int64, error) {
	if len(cartIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("cart_id IN ?", cartIDs).Delete(&models.RecoveryCoupon{})
	return res.RowsAffected, res.Error
}
