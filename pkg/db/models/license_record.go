package models

import (
	"time"

	"github.com/angelmondragon/recovero-backend/pkg/enums"
)

// LicenseRecord stores the activation state of the paid tier.
type LicenseRecord struct {
	ID             int64               `gorm:"column:id;primaryKey;autoIncrement"`
	LicenseKey     string              `gorm:"column:license_key;not null;uniqueIndex"`
	Domain         string              `gorm:"column:domain;not null;default:''"`
	Status         enums.LicenseStatus `gorm:"column:status;type:text;not null;default:'inactive'"`
	ExpiryDate     *time.Time          `gorm:"column:expiry_date"`
	LastVerifiedAt *time.Time          `gorm:"column:last_verified_at"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (LicenseRecord) TableName() string { return "license_records" }

// IsActive reports whether the license grants the paid tier at now.
func (l LicenseRecord) IsActive(now time.Time) bool {
	if l.Status != enums.LicenseStatusActive {
		return false
	}
	return l.ExpiryDate == nil || l.ExpiryDate.After(now)
}
