package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/vendorcrm-backend/api/middleware"
	"github.com/angelmondragon/vendorcrm-backend/api/responses"
	"github.com/angelmondragon/vendorcrm-backend/api/validators"
	"github.com/angelmondragon/vendorcrm-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
)

type loginFunc func(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error)

func loginHandler(logg *logger.Logger, login loginFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// AuthLogin signs in a user (staff, client, or a user linked to a vendor).
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return loginHandler(logg, func(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
		if svc == nil {
			return nil, unavailable("auth service")
		}
		return svc.Login(ctx, req)
	})
}

// AuthVendorLogin signs in with vendor credentials.
func AuthVendorLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return loginHandler(logg, func(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
		if svc == nil {
			return nil, unavailable("auth service")
		}
		return svc.VendorLogin(ctx, req)
	})
}

func AuthLogout(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("auth service"))
			return
		}
		accessID := middleware.AccessIDFromContext(r.Context())
		if accessID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
			return
		}
		if err := svc.Logout(r.Context(), accessID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusOK, "logged out")
	}
}

func AuthMe(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("auth service"))
			return
		}
		principal, err := principalFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profile, err := svc.Me(r.Context(), principal)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}
