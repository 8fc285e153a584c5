package models

import "time"

// GeoSample is an advisory, ip-keyed location and device record.
type GeoSample struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	IP        string    `gorm:"column:ip;not null;uniqueIndex"`
	Country   string    `gorm:"column:country;not null;default:''"`
	City      string    `gorm:"column:city;not null;default:''"`
	Latitude  *float64  `gorm:"column:latitude"`
	Longitude *float64  `gorm:"column:longitude"`
	Browser   string    `gorm:"column:browser;not null;default:''"`
	Device    string    `gorm:"column:device;not null;default:''"`
	LastSeen  time.Time `gorm:"column:last_seen;not null"`
}

func (GeoSample) TableName() string { return "geo_samples" }
