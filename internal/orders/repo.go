package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/recovero-backend/pkg/db"
	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Owner identifies a shopper by whichever contact detail is known.
type Owner struct {
	UserID *int64
	Email  string
	Phone  string
}

// Repository persists completed orders reported by the storefront.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.CustomerOrder) (created bool, err error)
	FindByRef(ctx context.Context, orderRef string) (*models.CustomerOrder, error)
	HasCompletedSince(ctx context.Context, owner Owner, since time.Time) (bool, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create is idempotent on order_ref: a duplicate reports created=false.
func (r *repository) Create(ctx context.Context, order *models.CustomerOrder) (bool, error) {
	existing, err := r.FindByRef(ctx, order.OrderRef)
	if err != nil {
		return false, err
	}
	if existing != nil {
		*order = *existing
		return false, nil
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repository) FindByRef(ctx context.Context, orderRef string) (*models.CustomerOrder, error) {
	var order models.CustomerOrder
	err := r.db.WithContext(ctx).Where("order_ref = ?", orderRef).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// HasCompletedSince matches by user id first, then email, then phone. The
// first identifier present decides; weaker identifiers are not consulted.
func (r *repository) HasCompletedSince(ctx context.Context, owner Owner, since time.Time) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.CustomerOrder{}).Where("completed_at >= ?", since)
	switch {
	case owner.UserID != nil && *owner.UserID > 0:
		q = q.Where("user_id = ?", *owner.UserID)
	case strings.TrimSpace(owner.Email) != "":
		q = q.Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(owner.Email)))
	case strings.TrimSpace(owner.Phone) != "":
		q = q.Where("phone = ?", strings.TrimSpace(owner.Phone))
	default:
		return false, nil
	}
	var count int64
	if err := q.Limit(1).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("completed_at < ?", cutoff).Delete(&models.CustomerOrder{})
	return res.RowsAffected, res.Error
}
