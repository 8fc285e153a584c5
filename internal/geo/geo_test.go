package geo

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/recovero-backend/pkg/db/dbtest"
	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"github.com/angelmondragon/recovero-backend/pkg/enums"
	"github.com/angelmondragon/recovero-backend/pkg/geoip"
	"github.com/angelmondragon/recovero-backend/pkg/logger"
)

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		ua      string
		browser string
		device  enums.DeviceType
	}{
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 Edg/120.0", "Edge", enums.DeviceDesktop},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 OPR/105.0", "Opera", enums.DeviceDesktop},
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36", "Chrome", enums.DeviceMobile},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0; rv:121.0) Gecko/20100101 Firefox/121.0", "Firefox", enums.DeviceDesktop},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1", "Safari", enums.DeviceMobile},
		{"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1", "Safari", enums.DeviceTablet},
		{"Mozilla/5.0 (Linux; Android 13; SM-X700) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36", "Chrome", enums.DeviceTablet},
		{"Mozilla/5.0 (Windows NT 6.1; Trident/7.0; rv:11.0) like Gecko", "Internet Explorer", enums.DeviceDesktop},
		{"curl/8.4.0", "Other", enums.DeviceDesktop},
		{"", "Unknown", enums.DeviceUnknown},
	}
	for _, tc := range tests {
		browserName, deviceType := ParseUserAgent(tc.ua)
		assert.Equal(t, tc.browser, browserName, tc.ua)
		assert.Equal(t, tc.device, deviceType, tc.ua)
	}
}

type fakeLocator struct {
	loc   geoip.Location
	found bool
	err   error
}

func (f fakeLocator) Lookup(context.Context, string) (geoip.Location, bool, error) {
	return f.loc, f.found, f.err
}

const chromeDesktop = "Mozilla/5.0 (Windows NT 10.0) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

func TestRecorderStoresSampleAndReturnsLabel(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	rec, err := NewRecorder(repo, fakeLocator{
		loc:   geoip.Location{Country: "Kenya", City: "Nairobi", Latitude: -1.28, Longitude: 36.82},
		found: true,
	}, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)

	label, err := rec.Record(context.Background(), "41.90.1.1", chromeDesktop)
	require.NoError(t, err)
	assert.Equal(t, "Nairobi, Kenya", label)

	stored, err := repo.FindByIP(context.Background(), "41.90.1.1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Chrome", stored.Browser)
	assert.Equal(t, "desktop", stored.Device)
	require.NotNil(t, stored.Latitude)
	assert.InDelta(t, -1.28, *stored.Latitude, 1e-9)
}

func TestRecorderKeepsDeviceWhenLookupFails(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	rec, err := NewRecorder(repo, fakeLocator{err: errors.New("timeout")},
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)

	label, err := rec.Record(context.Background(), "41.90.1.1", chromeDesktop)
	assert.Error(t, err)
	assert.Empty(t, label)

	stored, err := repo.FindByIP(context.Background(), "41.90.1.1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Chrome", stored.Browser)
	assert.Empty(t, stored.Country)
}

func TestUpsertKeepsKnownLocation(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	lat, lon := 48.85, 2.35

	require.NoError(t, repo.Upsert(ctx, &models.GeoSample{
		IP: "1.2.3.4", Country: "France", City: "Paris", Latitude: &lat, Longitude: &lon,
		Browser: "Firefox", Device: "desktop", LastSeen: time.Now().UTC(),
	}))
	require.NoError(t, repo.Upsert(ctx, &models.GeoSample{
		IP: "1.2.3.4", Browser: "Safari", Device: "mobile", LastSeen: time.Now().UTC(),
	}))

	stored, err := repo.FindByIP(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "France", stored.Country)
	assert.Equal(t, "Safari", stored.Browser)
	assert.Equal(t, "mobile", stored.Device)
}

func TestGroupedCounts(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	now := time.Now().UTC()
	lat, lon := 48.851, 2.352
	lat2, lon2 := 48.87, 2.36

	samples := []models.GeoSample{
		{IP: "1.1.1.1", Country: "France", Device: "desktop", Latitude: &lat, Longitude: &lon, LastSeen: now},
		{IP: "1.1.1.2", Country: "France", Device: "mobile", Latitude: &lat2, Longitude: &lon2, LastSeen: now},
		{IP: "1.1.1.3", Country: "Kenya", Device: "mobile", LastSeen: now},
		{IP: "1.1.1.4", Device: "mobile", LastSeen: now.Add(-48 * time.Hour)},
	}
	for i := range samples {
		require.NoError(t, repo.Upsert(ctx, &samples[i]))
	}

	devices, err := repo.DeviceCounts(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []Count{{Label: "mobile", Count: 3}, {Label: "desktop", Count: 1}}, devices)

	countries, err := repo.CountryCounts(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []Count{{Label: "France", Count: 2}, {Label: "Kenya", Count: 1}}, countries)

	points, err := repo.HeatmapPoints(ctx, 10)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, int64(2), points[0].Count)
	assert.InDelta(t, 48.9, points[0].Latitude, 1e-9)

	removed, err := repo.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
