package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/recovero-backend/internal/carts"
	"github.com/angelmondragon/recovero-backend/pkg/logger"
)

type cartPurger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (carts.PurgeResult, error)
}

type rowPurger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type RetentionJobParams struct {
	Logger    *logger.Logger
	Carts     cartPurger
	Logs      rowPurger
	Geo       rowPurger
	Orders    rowPurger
	PurgeDays int
	Now       func() time.Time
}

// NewRetentionJob builds the job that drops rows older than the purge window.
func NewRetentionJob(params RetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil || params.Logs == nil || params.Geo == nil || params.Orders == nil {
		return nil, fmt.Errorf("cart, recovery log, geo and order repositories required")
	}
	if params.PurgeDays <= 0 {
		return nil, fmt.Errorf("purge days must be positive")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &retentionJob{
		logg:   params.Logger,
		carts:  params.Carts,
		logs:   params.Logs,
		geo:    params.Geo,
		orders: params.Orders,
		window: time.Duration(params.PurgeDays) * 24 * time.Hour,
		now:    now,
	}, nil
}

type retentionJob struct {
	logg   *logger.Logger
	carts  cartPurger
	logs   rowPurger
	geo    rowPurger
	orders rowPurger
	window time.Duration
	now    func() time.Time
}

func (j *retentionJob) Name() string { return "retention-purge" }

// Run deletes each table independently so one failing table does not keep
// the others from shrinking.
func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.window)
	fields := map[string]any{"cutoff": cutoff.Format(time.RFC3339)}
	var errs error

	purged, err := j.carts.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("purge carts: %w", err))
	}
	fields["carts_deleted"] = purged.Carts
	fields["coupons_deleted"] = purged.Coupons
	cartLogs := purged.Logs

	logs, err := j.logs.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("purge recovery logs: %w", err))
	}
	fields["logs_deleted"] = cartLogs + logs

	samples, err := j.geo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("purge geo samples: %w", err))
	}
	fields["geo_deleted"] = samples

	orders, err := j.orders.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("purge orders: %w", err))
	}
	fields["orders_deleted"] = orders

	j.logg.Info(j.logg.WithFields(ctx, fields), "retention purge complete")
	return errs
}
