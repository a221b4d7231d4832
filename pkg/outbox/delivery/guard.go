// Package delivery records which outbox sinks already accepted an event.
package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type markerStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Guard holds one Redis marker per (sink, event). The marker value is the
// claim time so stuck entries can be spotted with redis-cli.
type Guard struct {
	store markerStore
	ttl   time.Duration
	now   func() time.Time
}

func NewGuard(store markerStore, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("marker store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &Guard{store: store, ttl: ttl, now: time.Now}, nil
}

// Claim reports whether the caller is the first to deliver eventID to sink.
// A false result means an earlier attempt already succeeded.
func (g *Guard) Claim(ctx context.Context, sink string, eventID uuid.UUID) (bool, error) {
	key, err := g.key(sink, eventID)
	if err != nil {
		return false, err
	}
	return g.store.SetNX(ctx, key, g.now().UTC().Format(time.RFC3339), g.ttl)
}

// Release drops the marker after a failed delivery so the next attempt retries the sink.
func (g *Guard) Release(ctx context.Context, sink string, eventID uuid.UUID) error {
	key, err := g.key(sink, eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) key(sink string, eventID uuid.UUID) (string, error) {
	switch {
	case sink == "":
		return "", errors.New("sink name is required")
	case eventID == uuid.Nil:
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey("outbox:"+sink, eventID.String()), nil
}
