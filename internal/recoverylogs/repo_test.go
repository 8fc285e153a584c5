package recoverylogs

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/recovero-backend/pkg/db/dbtest"
	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"github.com/angelmondragon/recovero-backend/pkg/enums"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLog(t *testing.T, repo Repository, cartID int64, ch enums.RecoveryChannel, out enums.RecoveryOutcome, token string, at time.Time) models.RecoveryLog {
	t.Helper()
	entry := models.RecoveryLog{CartID: cartID, Channel: ch, Outcome: out, Token: token, SentAt: at}
	require.NoError(t, repo.Create(context.Background(), &entry))
	return entry
}

func TestListByCartOrdersBySentAtThenID(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	later := seedLog(t, repo, 1, enums.RecoveryChannelWhatsApp, enums.RecoveryOutcomeSent, "", base.Add(2*time.Hour))
	first := seedLog(t, repo, 1, enums.RecoveryChannelEmail, enums.RecoveryOutcomeSent, "tok-a", base)
	tie := seedLog(t, repo, 1, enums.RecoveryChannelLink, enums.RecoveryOutcomeGenerated, "tok-b", base)
	seedLog(t, repo, 2, enums.RecoveryChannelEmail, enums.RecoveryOutcomeSent, "", base)

	logs, err := repo.ListByCart(ctx, 1)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, []int64{first.ID, tie.ID, later.ID}, []int64{logs[0].ID, logs[1].ID, logs[2].ID})
}

func TestFindByToken(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	seedLog(t, repo, 9, enums.RecoveryChannelLink, enums.RecoveryOutcomeGenerated, "abc123", time.Now().UTC())

	found, err := repo.FindByToken(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(9), found.CartID)

	missing, err := repo.FindByToken(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	empty, err := repo.FindByToken(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestFindByTokenIgnoresCouponCodes(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	now := time.Now().UTC()
	seedLog(t, repo, 4, enums.RecoveryChannelCoupon, enums.RecoveryOutcomeSent, "RECOVERO-AB12CD", now)
	seedLog(t, repo, 5, enums.RecoveryChannelEmail, enums.RecoveryOutcomeSent, "mailtok", now)

	coupon, err := repo.FindByToken(ctx, "RECOVERO-AB12CD")
	require.NoError(t, err)
	assert.Nil(t, coupon)

	mailed, err := repo.FindByToken(ctx, "mailtok")
	require.NoError(t, err)
	require.NotNil(t, mailed)
	assert.Equal(t, int64(5), mailed.CartID)
}

func TestHasOutcomeAndCounts(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	now := time.Now().UTC()
	seedLog(t, repo, 1, enums.RecoveryChannelEmail, enums.RecoveryOutcomeSent, "", now)
	seedLog(t, repo, 1, enums.RecoveryChannelLink, enums.RecoveryOutcomeRecovered, "", now)
	seedLog(t, repo, 1, enums.RecoveryChannelOrder, enums.RecoveryOutcomeRecovered, "", now)
	seedLog(t, repo, 2, enums.RecoveryChannelEmail, enums.RecoveryOutcomeFailed, "", now)

	ok, err := repo.HasOutcome(ctx, 1, enums.RecoveryChannelEmail, enums.RecoveryOutcomeSent)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.HasOutcome(ctx, 2, enums.RecoveryChannelEmail, enums.RecoveryOutcomeSent)
	require.NoError(t, err)
	assert.False(t, ok)

	sent, err := repo.CountByOutcome(ctx, enums.RecoveryChannelEmail, enums.RecoveryOutcomeSent)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sent)

	recovered, err := repo.CountRecoveredCarts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), recovered)
}

func TestDeleteOlderThanAndByCarts(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seedLog(t, repo, 1, enums.RecoveryChannelEmail, enums.RecoveryOutcomeSent, "", now.AddDate(0, 0, -100))
	seedLog(t, repo, 1, enums.RecoveryChannelEmail, enums.RecoveryOutcomeSent, "", now.AddDate(0, 0, -1))
	seedLog(t, repo, 2, enums.RecoveryChannelEmail, enums.RecoveryOutcomeSent, "", now)

	deleted, err := repo.DeleteOlderThan(ctx, now.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = repo.DeleteByCarts(ctx, []int64{2})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	logs, err := repo.ListByCart(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
