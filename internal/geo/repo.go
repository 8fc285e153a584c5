package geo

import (
	"context"
	"time"

	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Count is one bucket of a grouped report.
type Count struct {
	Label string `json:"label" gorm:"column:label"`
	Count int64  `json:"count" gorm:"column:cnt"`
}

// Point is a heatmap cell.
type Point struct {
	Latitude  float64 `json:"lat" gorm:"column:latitude"`
	Longitude float64 `json:"lon" gorm:"column:longitude"`
	Count     int64   `json:"count" gorm:"column:cnt"`
}

type Repository interface {
	Upsert(ctx context.Context, sample *models.GeoSample) error
	FindByIP(ctx context.Context, ip string) (*models.GeoSample, error)
	DeviceCounts(ctx context.Context, limit int) ([]Count, error)
	CountryCounts(ctx context.Context, limit int) ([]Count, error)
	HeatmapPoints(ctx context.Context, limit int) ([]Point, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Upsert inserts or refreshes the sample keyed by ip. Empty location fields
// keep the stored values.
func (r *repository) Upsert(ctx context.Context, sample *models.GeoSample) error {
	assignments := map[string]any{
		"browser":   sample.Browser,
		"device":    sample.Device,
		"last_seen": sample.LastSeen,
	}
	if sample.Country != "" {
		assignments["country"] = sample.Country
		assignments["city"] = sample.City
	}
	if sample.Latitude != nil && sample.Longitude != nil {
		assignments["latitude"] = *sample.Latitude
		assignments["longitude"] = *sample.Longitude
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ip"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(sample).Error
}

func (r *repository) FindByIP(ctx context.Context, ip string) (*models.GeoSample, error) {
	var sample models.GeoSample
	err := r.db.WithContext(ctx).Where("ip = ?", ip).Limit(1).Find(&sample).Error
	if err != nil {
		return nil, err
	}
	if sample.ID == 0 {
		return nil, nil
	}
	return &sample, nil
}

func (r *repository) DeviceCounts(ctx context.Context, limit int) ([]Count, error) {
	return r.grouped(ctx, "device", limit)
}

func (r *repository) CountryCounts(ctx context.Context, limit int) ([]Count, error) {
	return r.grouped(ctx, "country", limit)
}

func (r *repository) grouped(ctx context.Context, column string, limit int) ([]Count, error) {
	var out []Count
	err := r.db.WithContext(ctx).
		Model(&models.GeoSample{}).
		Select(column+" AS label, COUNT(*) AS cnt").
		Where(column+" <> ''").
		Group(column).
		Order("cnt DESC").
		Order("label ASC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

const (
	roundedLat = "ROUND(CAST(latitude AS NUMERIC), 1)"
	roundedLon = "ROUND(CAST(longitude AS NUMERIC), 1)"
)

// HeatmapPoints groups samples by coordinates rounded to one decimal.
func (r *repository) HeatmapPoints(ctx context.Context, limit int) ([]Point, error) {
	var out []Point
	err := r.db.WithContext(ctx).
		Model(&models.GeoSample{}).
		Select(roundedLat+" AS latitude, "+roundedLon+" AS longitude, COUNT(*) AS cnt").
		Where("latitude IS NOT NULL AND longitude IS NOT NULL").
		Group(roundedLat+", "+roundedLon).
		Order("cnt DESC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

func (r *repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("last_seen < ?", cutoff).Delete(&models.GeoSample{})
	return res.RowsAffected, res.Error
}
