package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/vendorcrm-backend/pkg/config"
	redisclient "github.com/angelmondragon/vendorcrm-backend/pkg/redis"
)

var errMissingAccessID = errors.New("access id is required")

type store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	SAddWithTTL(ctx context.Context, key string, ttl time.Duration, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	AccessSessionKey(accessID string) string
	SubjectSessionsKey(subject string) string
}

// Manager keeps one Redis entry per issued access token (keyed by jti) plus a
// per-subject index, so a single logout or a whole account can be cut off
// before the JWT expires.
type Manager struct {
	store store
	ttl   time.Duration
}

// AccessSessionChecker is the read side used by the auth middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	ttl := cfg.AccessTokenTTL()
	if ttl <= 0 {
		return nil, errors.New("access token ttl must be positive")
	}
	return &Manager{store: client, ttl: ttl}, nil
}

// Open registers accessID as live for subject.
func (m *Manager) Open(ctx context.Context, accessID, subject string) error {
	accessID = strings.TrimSpace(accessID)
	if accessID == "" {
		return errMissingAccessID
	}
	if err := m.store.Set(ctx, m.store.AccessSessionKey(accessID), subject, m.ttl); err != nil {
		return err
	}
	if subject == "" {
		return nil
	}
	return m.store.SAddWithTTL(ctx, m.store.SubjectSessionsKey(subject), m.ttl, accessID)
}

// Revoke ends a single session. The subject index is left alone; stale ids in
// it are harmless and age out with the set.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	accessID = strings.TrimSpace(accessID)
	if accessID == "" {
		return errMissingAccessID
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

// RevokeSubject ends every session issued to subject and reports how many ids
// were tracked for it.
func (m *Manager) RevokeSubject(ctx context.Context, subject string) (int, error) {
	if strings.TrimSpace(subject) == "" {
		return 0, errors.New("subject is required")
	}
	index := m.store.SubjectSessionsKey(subject)
	ids, err := m.store.SMembers(ctx, index)
	if err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, m.store.AccessSessionKey(id))
	}
	keys = append(keys, index)
	if err := m.store.Del(ctx, keys...); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	accessID = strings.TrimSpace(accessID)
	if accessID == "" {
		return false, errMissingAccessID
	}
	_, err := m.store.Get(ctx, m.store.AccessSessionKey(accessID))
	switch {
	case errors.Is(err, redislib.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// NewAccessID mints the value used as both JWT jti and session key.
func NewAccessID() string {
	return uuid.NewString()
}
