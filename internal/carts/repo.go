package carts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"github.com/angelmondragon/recovero-backend/pkg/enums"
	"github.com/angelmondragon/recovero-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository defines the persistence surface for cart snapshots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindBySession(ctx context.Context, sessionID string) (*models.AbandonedCart, error)
	FindByID(ctx context.Context, id int64) (*models.AbandonedCart, error)
	Create(ctx context.Context, cart *models.AbandonedCart) error
	Save(ctx context.Context, cart *models.AbandonedCart) error
	UpdateStatus(ctx context.Context, id int64, to enums.CartStatus, from ...enums.CartStatus) (bool, error)
	DetachSession(ctx context.Context, id int64) error
	ListForReminders(ctx context.Context, filter ReminderFilter) ([]models.AbandonedCart, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*CartList, error)
	CountByStatus(ctx context.Context) (map[enums.CartStatus]int64, error)
	Delete(ctx context.Context, id int64) (bool, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (PurgeResult, error)
}

// ListFilters narrows the admin cart listing.
type ListFilters struct {
	Status *enums.CartStatus
}

type CartList struct {
	Carts      []models.AbandonedCart `json:"carts"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

// ReminderFilter selects the carts a reminder tick can act on. A cart only
// qualifies when its next stage is enabled and due, so carts that are too
// old, finished or blocked on a disabled channel never fill the batch.
type ReminderFilter struct {
	CreatedAfter time.Time
	// Per stage, the latest time the previous reminder attempt (or the cart's
	// creation) may have happened for that stage to be due. Zero disables it.
	EmailDue    time.Time
	WhatsAppDue time.Time
	CouponDue   time.Time
	Limit       int
}

// PurgeResult counts rows removed by DeleteOlderThan.
type PurgeResult struct {
	Carts   int64
	Logs    int64
	Coupons int64
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

// FindBySession returns nil, nil when the session has no cart.
func (r *repository) FindBySession(ctx context.Context, sessionID string) (*models.AbandonedCart, error) {
	if sessionID == "" {
		return nil, nil
	}
	var cart models.AbandonedCart
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindByID returns gorm.ErrRecordNotFound for unknown ids.
func (r *repository) FindByID(ctx context.Context, id int64) (*models.AbandonedCart, error) {
	var cart models.AbandonedCart
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *repository) Create(ctx context.Context, cart *models.AbandonedCart) error {
	return r.db.WithContext(ctx).Create(cart).Error
}

// Save writes every column but created_at, which is immutable.
func (r *repository) Save(ctx context.Context, cart *models.AbandonedCart) error {
	return r.db.WithContext(ctx).Omit("created_at").Save(cart).Error
}

// UpdateStatus moves the cart to `to` only when its current status is one of
// `from` (any status when from is empty). It reports whether a row changed.
func (r *repository) UpdateStatus(ctx context.Context, id int64, to enums.CartStatus, from ...enums.CartStatus) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.AbandonedCart{}).Where("id = ?", id)
	if len(from) > 0 {
		q = q.Where("status IN ?", from)
	}
	res := q.Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) DetachSession(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&models.AbandonedCart{}).
		Where("id = ?", id).
		Updates(map[string]any{"session_id": gorm.Expr("NULL"), "updated_at": time.Now().UTC()}).Error
}

// ListForReminders returns the oldest carts that filter lets progress.
func (r *repository) ListForReminders(ctx context.Context, filter ReminderFilter) ([]models.AbandonedCart, error) {
	var (
		eligible []string
		args     []any
	)
	due := func(cutoff time.Time, cond string, condArgs ...any) {
		if cutoff.IsZero() {
			return
		}
		eligible = append(eligible, "("+cond+" AND created_at <= ? AND NOT "+attemptedAfter+")")
		args = append(args, condArgs...)
		args = append(args, cutoff, reminderChannels, cutoff)
	}
	due(filter.EmailDue, "email <> '' AND NOT "+sentOn,
		enums.RecoveryChannelEmail, enums.RecoveryOutcomeSent)
	due(filter.WhatsAppDue, "phone <> '' AND "+sentOn+" AND NOT "+sentOn,
		enums.RecoveryChannelEmail, enums.RecoveryOutcomeSent,
		enums.RecoveryChannelWhatsApp, enums.RecoveryOutcomeSent)
	due(filter.CouponDue, "email <> '' AND "+sentOn+" AND NOT "+sentOn,
		enums.RecoveryChannelWhatsApp, enums.RecoveryOutcomeSent,
		enums.RecoveryChannelCoupon, enums.RecoveryOutcomeSent)
	if len(eligible) == 0 || filter.Limit <= 0 {
		return nil, nil
	}

	var carts []models.AbandonedCart
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.CartStatusAbandoned).
		Where("created_at >= ?", filter.CreatedAfter).
		Where("("+strings.Join(eligible, " OR ")+")", args...).
		Order("created_at ASC").
		Order("id ASC").
		Limit(filter.Limit).
		Find(&carts).Error
	if err != nil {
		return nil, err
	}
	return carts, nil
}

var reminderChannels = []enums.RecoveryChannel{
	enums.RecoveryChannelEmail,
	enums.RecoveryChannelWhatsApp,
	enums.RecoveryChannelCoupon,
}

const (
	// channel, outcome
	sentOn = "EXISTS (SELECT 1 FROM recovery_logs l WHERE l.cart_id = abandoned_carts.id AND l.channel = ? AND l.outcome = ?)"
	// channels, cutoff
	attemptedAfter = "EXISTS (SELECT 1 FROM recovery_logs l WHERE l.cart_id = abandoned_carts.id AND l.channel IN ? AND l.sent_at > ?)"
)

func (r *repository) List(ctx context.Context, params pagination.Params, filters ListFilters) (*CartList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	limit := pagination.NormalizeLimit(params.Limit)

	q := r.db.WithContext(ctx).Model(&models.AbandonedCart{})
	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.AbandonedCart
	if err := q.Order("created_at DESC").Order("id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&rows).Error; err != nil {
		return nil, err
	}

	page, next := pagination.Trim(rows, limit, func(c models.AbandonedCart) pagination.Cursor {
		return pagination.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
	})
	return &CartList{Carts: page, NextCursor: next}, nil
}

func (r *repository) CountByStatus(ctx context.Context) (map[enums.CartStatus]int64, error) {
	var rows []struct {
		Status enums.CartStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.AbandonedCart{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[enums.CartStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}

// Delete removes one cart with its logs and coupons.
func (r *repository) Delete(ctx context.Context, id int64) (bool, error) {
	conn := r.db.WithContext(ctx)
	if err := conn.Where("cart_id = ?", id).Delete(&models.RecoveryLog{}).Error; err != nil {
		return false, err
	}
	if err := conn.Where("cart_id = ?", id).Delete(&models.RecoveryCoupon{}).Error; err != nil {
		return false, err
	}
	res := conn.Where("id = ?", id).Delete(&models.AbandonedCart{})
	return res.RowsAffected > 0, res.Error
}

// DeleteOlderThan removes carts created before cutoff together with their logs
// and coupons. Children are deleted explicitly so sqlite, which is opened
// without foreign keys, behaves like the postgres cascade.
func (r *repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (PurgeResult, error) {
	conn := r.db.WithContext(ctx)
	stale := conn.Model(&models.AbandonedCart{}).Select("id").Where("created_at < ?", cutoff)

	var out PurgeResult
	res := conn.Where("cart_id IN (?)", stale).Delete(&models.RecoveryLog{})
	if res.Error != nil {
		return out, res.Error
	}
	out.Logs = res.RowsAffected

	res = conn.Where("cart_id IN (?)", stale).Delete(&models.RecoveryCoupon{})
	if res.Error != nil {
		return out, res.Error
	}
	out.Coupons = res.RowsAffected

	res = conn.Where("created_at < ?", cutoff).Delete(&models.AbandonedCart{})
	if res.Error != nil {
		return out, res.Error
	}
	out.Carts = res.RowsAffected
	return out, nil
}
