package recoverylogs

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"github.com/angelmondragon/recovero-backend/pkg/enums"
	"gorm.io/gorm"
)

// Repository persists the append-only recovery log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.RecoveryLog) error
	ListByCart(ctx context.Context, cartID int64) ([]models.RecoveryLog, error)
	FindByToken(ctx context.Context, token string) (*models.RecoveryLog, error)
	HasOutcome(ctx context.Context, cartID int64, channel enums.RecoveryChannel, outcome enums.RecoveryOutcome) (bool, error)
	CountByOutcome(ctx context.Context, channel enums.RecoveryChannel, outcome enums.RecoveryOutcome) (int64, error)
	CountRecoveredCarts(ctx context.Context) (int64, error)
	DeleteByCarts(ctx context.Context, cartIDs []int64) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
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

func (r *repository) Create(ctx context.Context, entry *models.RecoveryLog) error {
	if entry.SentAt.IsZero() {
		entry.SentAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListByCart returns the cart's entries in (sent_at, id) order.
func (r *repository) ListByCart(ctx context.Context, cartID int64) ([]models.RecoveryLog, error) {
	var logs []models.RecoveryLog
	err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("sent_at ASC").
		Order("id ASC").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// tokenChannels are the entries whose token is a recovery link token. Coupon
// entries store the coupon code, which must not open a cart.
var tokenChannels = []enums.RecoveryChannel{enums.RecoveryChannelLink, enums.RecoveryChannelEmail}

// FindByToken returns nil, nil for an empty or unknown token.
func (r *repository) FindByToken(ctx context.Context, token string) (*models.RecoveryLog, error) {
	if token == "" {
		return nil, nil
	}
	var entry models.RecoveryLog
	err := r.db.WithContext(ctx).
		Where("token = ? AND channel IN ?", token, tokenChannels).
		Order("id ASC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) HasOutcome(ctx context.Context, cartID int64, channel enums.RecoveryChannel, outcome enums.RecoveryOutcome) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RecoveryLog{}).
		Where("cart_id = ? AND channel = ? AND outcome = ?", cartID, channel, outcome).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) CountByOutcome(ctx context.Context, channel enums.RecoveryChannel, outcome enums.RecoveryOutcome) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RecoveryLog{}).
		Where("channel = ? AND outcome = ?", channel, outcome).
		Count(&count).Error
	return count, err
}

// CountRecoveredCarts counts distinct carts with any recovered entry.
func (r *repository) CountRecoveredCarts(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RecoveryLog{}).
		Where("outcome = ?", enums.RecoveryOutcomeRecovered).
		Distinct("cart_id").
		Count(&count).Error
	return count, err
}

func (r *repository) DeleteByCarts(ctx context.Context, cartIDs []int64) (int64, error) {
	if len(cartIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("cart_id IN ?", cartIDs).Delete(&models.RecoveryLog{})
	return res.RowsAffected, res.Error
}

func (r *repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("sent_at < ?", cutoff).Delete(&models.RecoveryLog{})
	return res.RowsAffected, res.Error
}
