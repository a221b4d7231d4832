package cron

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	pkgredis "github.com/angelmondragon/vendorcrm-backend/pkg/redis"
)

const testLockKey = "crm:cron:lock:test"

func newLockPair(t *testing.T) (*RedisLock, *RedisLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := pkgredis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	first, err := NewRedisLock(client, testLockKey, time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(client, testLockKey, time.Minute)
	require.NoError(t, err)
	return first, second, mr
}

func TestRedisLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	first, second, mr := newLockPair(t)

	won, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, won)

	won, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, won)

	require.NoError(t, second.Release(ctx))
	require.True(t, mr.Exists(testLockKey), "a loser must not free the lock")

	require.NoError(t, first.Release(ctx))
	require.False(t, mr.Exists(testLockKey))

	won, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, won)
}

func TestRedisLockExpiredLeaseCannotFreeNewHolder(t *testing.T) {
	ctx := context.Background()
	first, second, mr := newLockPair(t)

	won, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, won)

	mr.FastForward(2 * time.Minute)
	won, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, won)

	require.NoError(t, first.Release(ctx))
	require.True(t, mr.Exists(testLockKey))
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, testLockKey, 0)
	require.Error(t, err)
}
