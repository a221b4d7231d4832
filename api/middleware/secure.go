package middleware

import (
	"net/http"

	"github.com/unrolled/secure"

	"github.com/angelmondragon/vendorcrm-backend/api/responses"
	"github.com/angelmondragon/vendorcrm-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
)

// SecureHeaders sets the standard browser hardening headers on every response.
func SecureHeaders(cfg config.AppConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	sec := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
		STSSeconds:         stsSeconds(cfg),
		IsDevelopment:      cfg.IsDev(),
	})
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sec.Process(w, r); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "request blocked"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func stsSeconds(cfg config.AppConfig) int64 {
	if cfg.IsProd() {
		return 31536000
	}
	return 0
}
