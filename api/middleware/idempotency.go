package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/vendorcrm-backend/api/responses"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/vendorcrm-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"

	// DefaultIdempotencyTTL covers ordinary create endpoints.
	DefaultIdempotencyTTL = 24 * time.Hour
	// CriticalIdempotencyTTL covers operations that move stock between orders.
	CriticalIdempotencyTTL = 7 * 24 * time.Hour

	// reservationTTL bounds how long a crashed request can hold its key.
	reservationTTL = 2 * time.Minute

	maxIdempotencyKeyBytes = 128
)

type entryState string

const (
	entryInFlight  entryState = "in_flight"
	entryCompleted entryState = "completed"
)

type idempotencyEntry struct {
	State       entryState `json:"state"`
	Fingerprint string     `json:"fingerprint"`
	Status      int        `json:"status,omitempty"`
	ContentType string     `json:"content_type,omitempty"`
	Body        []byte     `json:"body,omitempty"`
}

// Idempotency makes a handler safe to retry under the Idempotency-Key header.
//
// The key is reserved before the handler runs, so a concurrent duplicate gets
// 409 instead of executing twice. A completed 2xx response is kept for ttl and
// replayed verbatim; any other outcome frees the key for another attempt.
// Reusing a key with a different body is rejected.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	gate := &idempotencyGate{store: store, ttl: ttl, logg: logg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if raw == "" || store == nil || ttl <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			gate.serve(w, r, raw, next)
		})
	}
}

type idempotencyGate struct {
	store pkgredis.IdempotencyStore
	ttl   time.Duration
	logg  *logger.Logger
}

func (g *idempotencyGate) serve(w http.ResponseWriter, r *http.Request, raw string, next http.Handler) {
	ctx := r.Context()
	if len(raw) > maxIdempotencyKeyBytes {
		responses.WriteError(ctx, g.logg, w, pkgerrors.Validation("invalid idempotency key",
			pkgerrors.FieldError{Field: idempotencyHeader, Message: "must be at most 128 characters"}))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		responses.WriteError(ctx, g.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	key := g.store.IdempotencyKey(requestScope(r), raw)
	fingerprint := fingerprintOf(body)

	reserved, existing, err := g.reserve(ctx, key, fingerprint)
	if err != nil {
		responses.WriteError(ctx, g.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}
	if !reserved {
		g.answerExisting(w, r, existing, fingerprint)
		return
	}

	rec := &bufferedResponse{ResponseWriter: w}
	next.ServeHTTP(rec, r)

	status := rec.statusCode()
	if status < 200 || status >= 300 {
		g.release(ctx, key)
		return
	}
	g.commit(ctx, key, idempotencyEntry{
		State:       entryCompleted,
		Fingerprint: fingerprint,
		Status:      status,
		ContentType: rec.Header().Get("Content-Type"),
		Body:        rec.buf.Bytes(),
	})
}

// reserve claims key for this request. When someone else holds it, the stored
// entry is returned instead. A key that expires between the two calls is
// retried once.
func (g *idempotencyGate) reserve(ctx context.Context, key, fingerprint string) (bool, *idempotencyEntry, error) {
	pending, err := json.Marshal(idempotencyEntry{State: entryInFlight, Fingerprint: fingerprint})
	if err != nil {
		return false, nil, err
	}
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := g.store.SetNX(ctx, key, string(pending), reservationTTL)
		if err != nil {
			return false, nil, err
		}
		if ok {
			return true, nil, nil
		}
		stored, err := g.store.Get(ctx, key)
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return false, nil, err
		}
		var entry idempotencyEntry
		if err := json.Unmarshal([]byte(stored), &entry); err != nil {
			return false, nil, err
		}
		return false, &entry, nil
	}
	return false, nil, errors.New("idempotency key churned during reservation")
}

func (g *idempotencyGate) answerExisting(w http.ResponseWriter, r *http.Request, entry *idempotencyEntry, fingerprint string) {
	switch {
	case entry.Fingerprint != fingerprint:
		responses.WriteError(r.Context(), g.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case entry.State != entryCompleted:
		responses.WriteError(r.Context(), g.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is still being processed"))
	default:
		if entry.ContentType != "" {
			w.Header().Set("Content-Type", entry.ContentType)
		}
		w.Header().Set(replayedHeader, "true")
		w.WriteHeader(entry.Status)
		_, _ = w.Write(entry.Body)
	}
}

func (g *idempotencyGate) commit(ctx context.Context, key string, entry idempotencyEntry) {
	payload, err := json.Marshal(entry)
	if err == nil {
		err = g.store.Set(context.WithoutCancel(ctx), key, string(payload), g.ttl)
	}
	if err != nil && g.logg != nil {
		g.logg.Error(ctx, "persist idempotent response", err)
	}
}

func (g *idempotencyGate) release(ctx context.Context, key string) {
	if err := g.store.Del(context.WithoutCancel(ctx), key); err != nil && g.logg != nil {
		g.logg.Error(ctx, "release idempotency key", err)
	}
}

// requestScope keeps keys from colliding across actors and endpoints.
func requestScope(r *http.Request) string {
	actor := "anonymous"
	if principal := PrincipalFromContext(r.Context()); principal != nil {
		actor = string(principal.Kind()) + ":" + principal.ActorID().String()
	}
	return actor + "|" + r.Method + "|" + r.URL.Path
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// bufferedResponse tees the handler output so a 2xx can be stored.
type bufferedResponse struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (b *bufferedResponse) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
	b.ResponseWriter.WriteHeader(code)
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	b.buf.Write(p)
	return b.ResponseWriter.Write(p)
}

func (b *bufferedResponse) statusCode() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}
