package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/vendorcrm-backend/api/responses"
	"github.com/angelmondragon/vendorcrm-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
)

type rateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// AuthRateLimitPolicy caps login attempts per client address and per username
// inside a fixed window.
type AuthRateLimitPolicy struct {
	name          string
	window        time.Duration
	ipLimit       int
	usernameLimit int
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, usernameLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{name: name, window: window, ipLimit: ipLimit, usernameLimit: usernameLimit}
}

// LoginRateLimitPolicy reads the login throttling settings.
func LoginRateLimitPolicy(name string, cfg config.RateLimitConfig) AuthRateLimitPolicy {
	return NewAuthRateLimitPolicy(name, cfg.LoginWindow, cfg.LoginIPLimit, cfg.LoginUsernameLimit)
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.usernameLimit > 0)
}

// loginAttempt is what a single request contributes to each counter.
type loginAttempt struct {
	ip           string
	usernameHash string
}

type counter struct {
	dimension string
	limit     int
	subject   func(loginAttempt) string
}

func (p AuthRateLimitPolicy) counters() []counter {
	var out []counter
	if p.ipLimit > 0 {
		out = append(out, counter{dimension: "ip", limit: p.ipLimit, subject: func(a loginAttempt) string { return a.ip }})
	}
	if p.usernameLimit > 0 {
		out = append(out, counter{dimension: "user", limit: p.usernameLimit, subject: func(a loginAttempt) string { return a.usernameHash }})
	}
	return out
}

// AuthRateLimit enforces the policy with counters shared through Redis, so
// every API replica sees the same attempts. The request body is restored for
// the wrapped handler.
func AuthRateLimit(policy AuthRateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		counters := policy.counters()

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			attempt := loginAttempt{ip: clientIP(r)}
			if policy.usernameLimit > 0 {
				body, err := io.ReadAll(r.Body)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				attempt.usernameHash = usernameDigest(body)
			}

			for _, c := range counters {
				subject := c.subject(attempt)
				if subject == "" {
					continue
				}
				key := store.RateLimitKey(policy.name + ":" + c.dimension + ":" + subject)
				hits, err := store.IncrWithTTL(ctx, key, policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if hits > int64(c.limit) {
					policy.reject(ctx, logg, w, c, subject, hits)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (p AuthRateLimitPolicy) reject(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, c counter, subject string, hits int64) {
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":    p.name,
			"dimension": c.dimension,
			"subject":   subject,
			"attempts":  hits,
			"limit":     c.limit,
		}), "login attempts throttled")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(p.window.Seconds())))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many login attempts, try again later"))
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

// usernameDigest keeps raw usernames out of Redis keys and logs.
func usernameDigest(body []byte) string {
	var payload struct {
		Username string `json:"username"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	name := strings.ToLower(strings.TrimSpace(payload.Username))
	if name == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:16])
}
