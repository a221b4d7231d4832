package controllers

import (
	"net/http"

	"github.com/angelmondragon/vendorcrm-backend/api/middleware"
	pkgAuth "github.com/angelmondragon/vendorcrm-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
)

func principalFrom(r *http.Request) (pkgAuth.Principal, error) {
	principal := middleware.PrincipalFromContext(r.Context())
	if principal == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return principal, nil
}

func vendorPrincipalFrom(r *http.Request) (pkgAuth.VendorPrincipal, error) {
	principal, err := principalFrom(r)
	if err != nil {
		return pkgAuth.VendorPrincipal{}, err
	}
	vendor, ok := principal.(pkgAuth.VendorPrincipal)
	if !ok {
		return pkgAuth.VendorPrincipal{}, pkgerrors.New(pkgerrors.CodeForbidden, "vendor access required")
	}
	return vendor, nil
}

func unavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" unavailable")
}
