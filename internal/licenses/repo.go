package licenses

import (
	"context"

	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository stores the single active license record.
type Repository interface {
	Current(ctx context.Context) (*models.LicenseRecord, error)
	Save(ctx context.Context, record *models.LicenseRecord) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Current returns the most recently updated record, or nil.
func (r *repository) Current(ctx context.Context) (*models.LicenseRecord, error) {
	var records []models.LicenseRecord
	err := r.db.WithContext(ctx).Order("updated_at DESC").Order("id DESC").Limit(1).Find(&records).Error
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// Save updates a loaded record in place and upserts new ones by license key.
func (r *repository) Save(ctx context.Context, record *models.LicenseRecord) error {
	if record.ID != 0 {
		return r.db.WithContext(ctx).Save(record).Error
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "license_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"domain", "status", "expiry_date", "last_verified_at", "updated_at"}),
	}).Create(record).Error
}
