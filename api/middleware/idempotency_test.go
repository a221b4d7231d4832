package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	pkgAuth "github.com/angelmondragon/vendorcrm-backend/pkg/auth"
	"github.com/angelmondragon/vendorcrm-backend/pkg/types"
)

func idempotentRequest(body, key string, principal pkgAuth.Principal) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	if principal != nil {
		req = req.WithContext(WithPrincipal(req.Context(), principal))
	}
	return req
}

func TestIdempotencyPassesThroughWithoutHeader(t *testing.T) {
	store := newRateStore(t)
	mw := Idempotency(store, DefaultIdempotencyTTL, nil)
	calls := 0
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, idempotentRequest(`{"foo":"bar"}`, "", nil))
		if resp.Code != http.StatusCreated {
			t.Fatalf("expected 201 got %d", resp.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("expected handler to run twice, got %d", calls)
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newRateStore(t)
	mw := Idempotency(store, DefaultIdempotencyTTL, nil)
	principal := pkgAuth.VendorPrincipal{VendorID: uuid.New()}
	var calls int
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, idempotentRequest(`{"foo":"bar"}`, "abc", principal))
	if first.Code != http.StatusCreated {
		t.Fatalf("expected first response 201 got %d", first.Code)
	}

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, idempotentRequest(`{"foo":"bar"}`, "abc", principal))
	if replay.Code != http.StatusCreated {
		t.Fatalf("expected replay status 201 got %d", replay.Code)
	}
	if replay.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected content-type header preserved")
	}
	if strings.TrimSpace(replay.Body.String()) != `{"success":true}` {
		t.Fatalf("expected stored body got %s", replay.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyKeysAreScopedPerPrincipal(t *testing.T) {
	store := newRateStore(t)
	mw := Idempotency(store, DefaultIdempotencyTTL, nil)
	calls := 0
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(`{}`, "same", pkgAuth.ClientPrincipal{UserID: uuid.New()}))
	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(`{}`, "same", pkgAuth.ClientPrincipal{UserID: uuid.New()}))
	if calls != 2 {
		t.Fatalf("expected separate principals to run separately, got %d calls", calls)
	}
}

func TestIdempotencyDoesNotStoreFailures(t *testing.T) {
	store := newRateStore(t)
	mw := Idempotency(store, DefaultIdempotencyTTL, nil)
	calls := 0
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	principal := pkgAuth.ClientPrincipal{UserID: uuid.New()}
	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(`{}`, "retry", principal))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, idempotentRequest(`{}`, "retry", principal))
	if resp.Code != http.StatusCreated || calls != 2 {
		t.Fatalf("expected retry to reach handler, code=%d calls=%d", resp.Code, calls)
	}
}

func TestIdempotencyDetectsBodyChange(t *testing.T) {
	store := newRateStore(t)
	mw := Idempotency(store, DefaultIdempotencyTTL, nil)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	principal := pkgAuth.ClientPrincipal{UserID: uuid.New()}
	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(`{"foo":"bar"}`, "xyz", principal))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, idempotentRequest(`{"foo":"diff"}`, "xyz", principal))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload types.Envelope
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Success || payload.Message == "" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store := newRateStore(t)
	mw := Idempotency(store, CriticalIdempotencyTTL, nil)
	principal := pkgAuth.VendorPrincipal{VendorID: uuid.New()}

	var handler http.Handler
	var nested *httptest.ResponseRecorder
	calls := 0
	handler = mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if nested == nil {
			nested = httptest.NewRecorder()
			handler.ServeHTTP(nested, idempotentRequest(`{"qty":1}`, "transfer-1", principal))
		}
		w.WriteHeader(http.StatusOK)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, idempotentRequest(`{"qty":1}`, "transfer-1", principal))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected outer request to succeed, got %d", resp.Code)
	}
	if nested.Code != http.StatusConflict {
		t.Fatalf("expected in-flight duplicate to get 409, got %d", nested.Code)
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyMarksReplays(t *testing.T) {
	store := newRateStore(t)
	handler := Idempotency(store, DefaultIdempotencyTTL, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	principal := pkgAuth.ClientPrincipal{UserID: uuid.New()}

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, idempotentRequest(`{}`, "k", principal))
	if first.Header().Get("Idempotent-Replayed") != "" {
		t.Fatalf("first response must not be marked as replay")
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, idempotentRequest(`{}`, "k", principal))
	if second.Code != http.StatusAccepted || second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected marked replay with 202, got %d %q", second.Code, second.Header().Get("Idempotent-Replayed"))
	}
}

func TestIdempotencyRejectsOversizedKey(t *testing.T) {
	store := newRateStore(t)
	handler := Idempotency(store, DefaultIdempotencyTTL, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, idempotentRequest(`{}`, strings.Repeat("k", 129), nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
