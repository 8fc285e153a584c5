package cron

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/recovero-backend/pkg/redis"
)

func TestRedisLockIsExclusiveAndOwnerReleased(t *testing.T) {
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	client := redis.NewFromRaw(raw)
	key := client.CronLockKey("reminders", "test")
	ctx := context.Background()

	first, err := NewRedisLock(client, key, time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(client, key, time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// A non-owner release leaves the key in place.
	require.NoError(t, second.Release(ctx))
	assert.True(t, mr.Exists(key))

	require.NoError(t, first.Release(ctx))
	assert.False(t, mr.Exists(key))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockExpiredKeyIsNotDeletedByOldOwner(t *testing.T) {
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	client := redis.NewFromRaw(raw)
	ctx := context.Background()

	stale, err := NewRedisLock(client, "lock", time.Minute)
	require.NoError(t, err)
	ok, err := stale.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)
	fresh, err := NewRedisLock(client, "lock", time.Minute)
	require.NoError(t, err)
	ok, err = fresh.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, stale.Release(ctx))
	assert.True(t, mr.Exists("lock"))
}
