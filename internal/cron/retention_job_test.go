package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/recovero-backend/internal/carts"
	"github.com/angelmondragon/recovero-backend/internal/geo"
	"github.com/angelmondragon/recovero-backend/internal/orders"
	"github.com/angelmondragon/recovero-backend/internal/recoverylogs"
	"github.com/angelmondragon/recovero-backend/pkg/db/dbtest"
	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"github.com/angelmondragon/recovero-backend/pkg/enums"
	"github.com/angelmondragon/recovero-backend/pkg/types"
)

func TestRetentionJobPurgesOnlyStaleRows(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-100 * 24 * time.Hour)
	recent := now.Add(-10 * 24 * time.Hour)

	cartRepo := carts.NewRepository(conn)
	logRepo := recoverylogs.NewRepository(conn)
	geoRepo := geo.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)

	oldCart := &models.AbandonedCart{CartData: types.LineItems{{ProductID: 1, Quantity: 1}}, Currency: "USD", Status: enums.CartStatusAbandoned, CreatedAt: old}
	newCart := &models.AbandonedCart{CartData: types.LineItems{{ProductID: 2, Quantity: 1}}, Currency: "USD", Status: enums.CartStatusAbandoned, CreatedAt: recent}
	require.NoError(t, cartRepo.Create(ctx, oldCart))
	require.NoError(t, cartRepo.Create(ctx, newCart))

	require.NoError(t, logRepo.Create(ctx, &models.RecoveryLog{CartID: oldCart.ID, Channel: enums.RecoveryChannelEmail, Outcome: enums.RecoveryOutcomeSent, SentAt: old}))
	require.NoError(t, logRepo.Create(ctx, &models.RecoveryLog{CartID: newCart.ID, Channel: enums.RecoveryChannelEmail, Outcome: enums.RecoveryOutcomeSent, SentAt: old}))
	require.NoError(t, logRepo.Create(ctx, &models.RecoveryLog{CartID: newCart.ID, Channel: enums.RecoveryChannelEmail, Outcome: enums.RecoveryOutcomeSent, SentAt: recent}))

	require.NoError(t, geoRepo.Upsert(ctx, &models.GeoSample{IP: "10.0.0.1", Device: "desktop", LastSeen: old}))
	require.NoError(t, geoRepo.Upsert(ctx, &models.GeoSample{IP: "10.0.0.2", Device: "mobile", LastSeen: recent}))

	_, err := orderRepo.Create(ctx, &models.CustomerOrder{OrderRef: "A-1", CompletedAt: old})
	require.NoError(t, err)
	_, err = orderRepo.Create(ctx, &models.CustomerOrder{OrderRef: "A-2", CompletedAt: recent})
	require.NoError(t, err)

	job, err := NewRetentionJob(RetentionJobParams{
		Logger:    testLogger(),
		Carts:     cartRepo,
		Logs:      logRepo,
		Geo:       geoRepo,
		Orders:    orderRepo,
		PurgeDays: 90,
		Now:       func() time.Time { return now },
	})
	require.NoError(t, err)
	require.NoError(t, job.Run(ctx))

	_, err = cartRepo.FindByID(ctx, oldCart.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	kept, err := cartRepo.FindByID(ctx, newCart.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept)

	remaining, err := logRepo.ListByCart(ctx, newCart.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.True(t, remaining[0].SentAt.Equal(recent))

	sample, err := geoRepo.FindByIP(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Nil(t, sample)

	order, err := orderRepo.FindByRef(ctx, "A-1")
	require.NoError(t, err)
	assert.Nil(t, order)
	order, err = orderRepo.FindByRef(ctx, "A-2")
	require.NoError(t, err)
	assert.NotNil(t, order)
}

func TestNewRetentionJobValidatesParams(t *testing.T) {
	_, err := NewRetentionJob(RetentionJobParams{Logger: testLogger()})
	assert.Error(t, err)
}
