package geo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"github.com/angelmondragon/recovero-backend/pkg/geoip"
	"github.com/angelmondragon/recovero-backend/pkg/logger"
)

type locator interface {
	Lookup(ctx context.Context, ip string) (geoip.Location, bool, error)
}

// Recorder keeps one geo sample per visitor IP.
type Recorder struct {
	repo    Repository
	locator locator
	logg    *logger.Logger
	now     func() time.Time
}

func NewRecorder(repo Repository, locator locator, logg *logger.Logger) (*Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("geo repository required")
	}
	if locator == nil {
		return nil, fmt.Errorf("geoip locator required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Recorder{repo: repo, locator: locator, logg: logg, now: time.Now}, nil
}

// Record geolocates ip, stores the sample and returns the "City, Country"
// label for the cart row. It is best effort: a failed lookup still stores
// the device, and the returned error is for logging only.
func (r *Recorder) Record(ctx context.Context, ip, userAgent string) (string, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return "", nil
	}
	browserName, deviceType := ParseUserAgent(userAgent)
	sample := &models.GeoSample{
		IP:       ip,
		Browser:  browserName,
		Device:   deviceType.String(),
		LastSeen: r.now().UTC(),
	}

	loc, found, lookupErr := r.locator.Lookup(ctx, ip)
	if lookupErr != nil {
		r.logg.Warn(r.logg.WithField(ctx, "ip", ip), "geoip lookup failed: "+lookupErr.Error())
	}
	if found {
		sample.Country = loc.Country
		sample.City = loc.City
		lat, lon := loc.Latitude, loc.Longitude
		sample.Latitude = &lat
		sample.Longitude = &lon
	}

	if err := r.repo.Upsert(ctx, sample); err != nil {
		return loc.Label(), fmt.Errorf("store geo sample: %w", err)
	}
	if !found {
		return "", lookupErr
	}
	return loc.Label(), nil
}
