package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vendorcrm-backend/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return Wrap(raw), mr
}

func TestIncrWithTTLSetsExpiryOnce(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)

	count, err := client.IncrWithTTL(ctx, "crm:rate_limit:test", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Minute, mr.TTL("crm:rate_limit:test"))

	mr.FastForward(30 * time.Second)
	count, err = client.IncrWithTTL(ctx, "crm:rate_limit:test", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.Equal(t, 30*time.Second, mr.TTL("crm:rate_limit:test"))
}

func TestSetGetDel(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	require.NoError(t, client.Set(ctx, "k", "v", time.Minute))
	got, err := client.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", got)

	ok, err := client.SetNX(ctx, "k", "other", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, client.Del(ctx, "k"))
	_, err = client.Get(ctx, "k")
	require.True(t, errors.Is(err, Nil))
}

func TestDelIfValueOnlyRemovesMatchingValue(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	require.NoError(t, client.Set(ctx, "crm:cron:lock:test", "owner-a", time.Minute))

	removed, err := client.DelIfValue(ctx, "crm:cron:lock:test", "owner-b")
	require.NoError(t, err)
	require.False(t, removed)
	require.True(t, mr.Exists("crm:cron:lock:test"))

	removed, err = client.DelIfValue(ctx, "crm:cron:lock:test", "owner-a")
	require.NoError(t, err)
	require.True(t, removed)
	require.False(t, mr.Exists("crm:cron:lock:test"))

	removed, err = client.DelIfValue(ctx, "crm:cron:lock:test", "owner-a")
	require.NoError(t, err)
	require.False(t, removed)
}

func TestPublishReachesSubscribers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, _ := newTestClient(t)

	sub := client.Subscribe(ctx, "crm:events")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, client.Publish(ctx, "crm:events", []byte(`{"event":"orders:created"}`)))
	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	require.Equal(t, `{"event":"orders:created"}`, msg.Payload)
}

func TestKeyBuilders(t *testing.T) {
	c := &Client{}
	require.Equal(t, "crm:idempotency:orders:abc", c.IdempotencyKey("orders", "abc"))
	require.Equal(t, "crm:rate_limit:login", c.RateLimitKey(" login "))
	require.Equal(t, "crm:session:access:jti-1", c.AccessSessionKey("jti-1"))
	require.Equal(t, "crm:session:subject:u-1", c.SubjectSessionsKey("u-1"))
}

func TestSetMembersWithTTL(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)

	require.NoError(t, client.SAddWithTTL(ctx, "crm:set", time.Minute, "a", "b"))
	mr.FastForward(40 * time.Second)
	require.NoError(t, client.SAddWithTTL(ctx, "crm:set", time.Minute, "c"))
	require.Equal(t, time.Minute, mr.TTL("crm:set"))

	members, err := client.SMembers(ctx, "crm:set")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b", "c"}, members)

	empty, err := client.SMembers(ctx, "crm:missing")
	require.NoError(t, err)
	require.Empty(t, empty)
	require.NoError(t, client.SAddWithTTL(ctx, "crm:noop", time.Minute))
}

func TestUninitializedClient(t *testing.T) {
	var c *Client
	require.Error(t, c.Ping(context.Background()))
	require.NoError(t, c.Close())
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7})
	require.NoError(t, err)
	require.Equal(t, 2, opts.DB)
	require.Equal(t, 7, opts.PoolSize)
}
