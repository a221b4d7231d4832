package middleware

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgredis "github.com/angelmondragon/vendorcrm-backend/pkg/redis"
	"github.com/angelmondragon/vendorcrm-backend/pkg/types"
)

func newRateStore(t *testing.T) *pkgredis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return pkgredis.Wrap(raw)
}

type loginCall struct {
	addr     string
	username string
}

func (c loginCall) request() *http.Request {
	body := fmt.Sprintf(`{"username":%q,"password":"secret"}`, c.username)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.RemoteAddr = c.addr
	return req
}

func TestAuthRateLimitCounters(t *testing.T) {
	cases := []struct {
		name   string
		policy AuthRateLimitPolicy
		calls  []loginCall
		want   []int
	}{
		{
			name:   "same username from different addresses",
			policy: NewAuthRateLimitPolicy("login", time.Minute, 0, 2),
			calls: []loginCall{
				{addr: "10.0.0.1:1", username: " Blocked "},
				{addr: "10.0.0.2:1", username: "blocked"},
				{addr: "10.0.0.3:1", username: "BLOCKED"},
			},
			want: []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests},
		},
		{
			name:   "same address with different usernames",
			policy: NewAuthRateLimitPolicy("vendor-login", time.Minute, 1, 0),
			calls: []loginCall{
				{addr: "10.0.0.9:1", username: "vendor-a"},
				{addr: "10.0.0.9:2", username: "vendor-b"},
			},
			want: []int{http.StatusOK, http.StatusTooManyRequests},
		},
		{
			name:   "separate policies keep separate counters",
			policy: NewAuthRateLimitPolicy("client-login", time.Minute, 1, 1),
			calls: []loginCall{
				{addr: "10.0.0.5:1", username: "ana"},
				{addr: "10.0.0.6:1", username: "luis"},
			},
			want: []int{http.StatusOK, http.StatusOK},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := AuthRateLimit(tc.policy, newRateStore(t), nil)(okHandler())
			for i, call := range tc.calls {
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, call.request())
				require.Equal(t, tc.want[i], rec.Code, "call %d", i)
			}
		})
	}
}

func TestAuthRateLimitRejectionEnvelope(t *testing.T) {
	handler := AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 1, 0), newRateStore(t), nil)(okHandler())
	call := loginCall{addr: "1.2.3.4:5678", username: "admin"}

	handler.ServeHTTP(httptest.NewRecorder(), call.request())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, call.request())

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	var payload types.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.False(t, payload.Success)
	assert.Equal(t, "too many login attempts, try again later", payload.Message)
}

func TestAuthRateLimitRestoresBody(t *testing.T) {
	var seen string
	handler := AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 5, 5), newRateStore(t), nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			seen = string(body)
		}))

	handler.ServeHTTP(httptest.NewRecorder(), loginCall{addr: "1.2.3.4:1", username: "admin"}.request())
	assert.Contains(t, seen, `"username":"admin"`)
}

func TestAuthRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	called := 0
	handler := AuthRateLimit(NewAuthRateLimitPolicy("login", 0, 1, 1), nil, nil)(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called++ }))
	for range 3 {
		handler.ServeHTTP(httptest.NewRecorder(), loginCall{addr: "1.1.1.1:1", username: "x"}.request())
	}
	assert.Equal(t, 3, called)
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.1.1.1:443"
	assert.Equal(t, "10.1.1.1", clientIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.1.1.1")
	assert.Equal(t, "203.0.113.7", clientIP(req))
}
