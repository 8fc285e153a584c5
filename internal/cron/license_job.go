package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/recovero-backend/pkg/logger"
)

type licenseVerifier interface {
	Reverify(ctx context.Context) (bool, error)
}

// NewLicenseJob builds the maintenance job that re-checks the stored
// license with the license server.
func NewLicenseJob(logg *logger.Logger, licenses licenseVerifier) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if licenses == nil {
		return nil, fmt.Errorf("license service required")
	}
	return &licenseJob{logg: logg, licenses: licenses}, nil
}

type licenseJob struct {
	logg     *logger.Logger
	licenses licenseVerifier
}

func (j *licenseJob) Name() string { return "license-reverify" }

func (j *licenseJob) Run(ctx context.Context) error {
	ran, err := j.licenses.Reverify(ctx)
	if err != nil {
		return fmt.Errorf("reverify license: %w", err)
	}
	if !ran {
		j.logg.Debug(ctx, "license verification not due")
	}
	return nil
}

type statsInvalidator interface {
	Invalidate(ctx context.Context) (int, error)
}

// NewStatsCacheJob builds the maintenance job that clears cached reports.
func NewStatsCacheJob(logg *logger.Logger, reports statsInvalidator) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if reports == nil {
		return nil, fmt.Errorf("reports service required")
	}
	return &statsCacheJob{logg: logg, reports: reports}, nil
}

type statsCacheJob struct {
	logg    *logger.Logger
	reports statsInvalidator
}

func (j *statsCacheJob) Name() string { return "stats-cache-invalidate" }

func (j *statsCacheJob) Run(ctx context.Context) error {
	n, err := j.reports.Invalidate(ctx)
	if err != nil {
		return err
	}
	j.logg.Info(j.logg.WithField(ctx, "keys_deleted", n), "stats cache cleared")
	return nil
}
