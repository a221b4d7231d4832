package middleware

import (
	"net/http"

	"github.com/angelmondragon/vendorcrm-backend/api/responses"
	pkgAuth "github.com/angelmondragon/vendorcrm-backend/pkg/auth"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
)

type principalCheck func(pkgAuth.Principal) bool

func requirePrincipalKind(check principalCheck, message string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := requirePrincipal(r.Context())
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if !check(principal) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, message))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin admits staff users (admin or supplier).
func RequireAdmin(logg *logger.Logger) func(http.Handler) http.Handler {
	return requirePrincipalKind(func(p pkgAuth.Principal) bool {
		_, ok := p.(pkgAuth.AdminPrincipal)
		return ok
	}, "admin access required", logg)
}

// RequireRole admits staff users holding exactly the given role.
func RequireRole(role enums.UserRole, logg *logger.Logger) func(http.Handler) http.Handler {
	return requirePrincipalKind(func(p pkgAuth.Principal) bool {
		admin, ok := p.(pkgAuth.AdminPrincipal)
		return ok && admin.Role == role
	}, "role required", logg)
}

func RequireVendor(logg *logger.Logger) func(http.Handler) http.Handler {
	return requirePrincipalKind(func(p pkgAuth.Principal) bool {
		_, ok := p.(pkgAuth.VendorPrincipal)
		return ok
	}, "vendor access required", logg)
}

func RequireClient(logg *logger.Logger) func(http.Handler) http.Handler {
	return requirePrincipalKind(func(p pkgAuth.Principal) bool {
		_, ok := p.(pkgAuth.ClientPrincipal)
		return ok
	}, "client access required", logg)
}

// RequireAdminOrClient admits staff users and clients.
func RequireAdminOrClient(logg *logger.Logger) func(http.Handler) http.Handler {
	return requirePrincipalKind(func(p pkgAuth.Principal) bool {
		switch p.(type) {
		case pkgAuth.AdminPrincipal, pkgAuth.ClientPrincipal:
			return true
		}
		return false
	}, "access denied", logg)
}
