package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/angelmondragon/vendorcrm-backend/api/responses"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
)

// APIRateLimit throttles authenticated traffic per principal, falling back to the client IP.
// A non-positive limit disables it.
func APIRateLimit(perMinute int, logg *logger.Logger) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(principalRateKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
		}),
	)
}

func principalRateKey(r *http.Request) (string, error) {
	if principal := PrincipalFromContext(r.Context()); principal != nil {
		return string(principal.Kind()) + ":" + principal.ActorID().String(), nil
	}
	return httprate.KeyByIP(r)
}
