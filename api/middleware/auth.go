package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/vendorcrm-backend/api/responses"
	pkgAuth "github.com/angelmondragon/vendorcrm-backend/pkg/auth"
	"github.com/angelmondragon/vendorcrm-backend/pkg/auth/session"
	"github.com/angelmondragon/vendorcrm-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
)

// accessTokenQueryParam carries the token for clients that cannot set headers (EventSource).
const accessTokenQueryParam = "access_token"

type authenticator struct {
	cfg      config.JWTConfig
	sessions session.AccessSessionChecker
}

// Auth validates a bearer token, checks its session and seeds the request context with the principal.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	a := authenticator{cfg: cfg, sessions: verifier}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, accessID, err := a.authenticate(r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			ctx := withAccessID(WithPrincipal(r.Context(), principal), accessID)
			if logg != nil {
				ctx = logg.WithActor(ctx, string(principal.Kind()), principal.ActorID().String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authenticate resolves the caller. A token is only honoured while its
// session key is alive, so logout and account changes take effect at once.
func (a authenticator) authenticate(r *http.Request) (pkgAuth.Principal, string, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessToken(a.cfg, token)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	if a.sessions != nil {
		alive, err := a.sessions.HasSession(r.Context(), claims.ID)
		switch {
		case err != nil:
			return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
		case !alive:
			return nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
		}
	}
	principal, err := pkgAuth.PrincipalFromClaims(claims)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	return principal, claims.ID, nil
}

// bearerToken reads the Authorization header, accepting a bare token too.
// GET requests may pass it as a query parameter instead.
func bearerToken(r *http.Request) string {
	if raw := strings.TrimSpace(r.Header.Get("Authorization")); raw != "" {
		scheme, rest, found := strings.Cut(raw, " ")
		if found && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(rest)
		}
		return raw
	}
	if r.Method != http.MethodGet {
		return ""
	}
	return strings.TrimSpace(r.URL.Query().Get(accessTokenQueryParam))
}

func requirePrincipal(ctx context.Context) (pkgAuth.Principal, error) {
	principal := PrincipalFromContext(ctx)
	if principal == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return principal, nil
}
