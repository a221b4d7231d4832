package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vendorcrm-backend/pkg/config"
	redisclient "github.com/angelmondragon/vendorcrm-backend/pkg/redis"
)

func newManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })

	m, err := NewManager(redisclient.Wrap(raw), config.JWTConfig{ExpirationMinutes: 15})
	require.NoError(t, err)
	return m, mr
}

func TestManagerOpenRevoke(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	id := NewAccessID()
	require.NoError(t, m.Open(ctx, id, "user-1"))

	ok, err := m.HasSession(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, m.Revoke(ctx, id))
	ok, err = m.HasSession(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestManagerSessionExpiresWithToken(t *testing.T) {
	ctx := context.Background()
	m, mr := newManager(t)

	id := NewAccessID()
	require.NoError(t, m.Open(ctx, id, "vendor-1"))
	mr.FastForward(16 * time.Minute)

	ok, err := m.HasSession(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestManagerRejectsBlankIDs(t *testing.T) {
	m, _ := newManager(t)
	require.Error(t, m.Open(context.Background(), " ", "x"))
	_, err := m.HasSession(context.Background(), "")
	require.Error(t, err)
	require.Error(t, m.Revoke(context.Background(), ""))
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(nil, config.JWTConfig{ExpirationMinutes: 15})
	require.Error(t, err)
	_, err = NewManager(redisclient.Wrap(redislib.NewClient(&redislib.Options{Addr: "localhost:0"})), config.JWTConfig{})
	require.Error(t, err)
}

func TestManagerRevokeSubjectEndsEverySession(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	first, second, other := NewAccessID(), NewAccessID(), NewAccessID()
	require.NoError(t, m.Open(ctx, first, "user-1"))
	require.NoError(t, m.Open(ctx, second, "user-1"))
	require.NoError(t, m.Open(ctx, other, "user-2"))

	n, err := m.RevokeSubject(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	for _, id := range []string{first, second} {
		ok, err := m.HasSession(ctx, id)
		require.NoError(t, err)
		require.False(t, ok)
	}
	ok, err := m.HasSession(ctx, other)
	require.NoError(t, err)
	require.True(t, ok)

	n, err = m.RevokeSubject(ctx, "user-1")
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = m.RevokeSubject(ctx, " ")
	require.Error(t, err)
}
