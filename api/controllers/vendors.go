package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorcrm-backend/api/responses"
	"github.com/angelmondragon/vendorcrm-backend/api/validators"
	"github.com/angelmondragon/vendorcrm-backend/internal/vendors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
)

type createVendorRequest struct {
	Name        string     `json:"name" validate:"required,max=255"`
	ContactName *string    `json:"contactName"`
	Email       *string    `json:"email" validate:"omitempty,email"`
	Phone       *string    `json:"phone" validate:"omitempty,max=32"`
	Address     *string    `json:"address"`
	Notes       *string    `json:"notes"`
	UserID      *uuid.UUID `json:"userId"`
}

type updateVendorRequest struct {
	Name            *string             `json:"name" validate:"omitempty,min=1,max=255"`
	ContactName     *string             `json:"contactName"`
	Email           *string             `json:"email" validate:"omitempty,email"`
	Phone           *string             `json:"phone" validate:"omitempty,max=32"`
	Address         *string             `json:"address"`
	Notes           *string             `json:"notes"`
	Status          *enums.VendorStatus `json:"status" validate:"omitempty,oneof=active inactive"`
	UserID          *uuid.UUID          `json:"userId"`
	CurrentPassword *string             `json:"currentPassword"`
	NewPassword     *string             `json:"newPassword" validate:"omitempty,min=8,max=128"`
}

func (req updateVendorRequest) toInput() vendors.UpdateVendorInput {
	return vendors.UpdateVendorInput{
		Name:            req.Name,
		ContactName:     req.ContactName,
		Email:           req.Email,
		Phone:           req.Phone,
		Address:         req.Address,
		Notes:           req.Notes,
		Status:          req.Status,
		UserID:          req.UserID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	}
}

func ListVendors(svc vendors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("vendor service"))
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := vendors.ListVendorsInput{
			Query:      validators.SanitizeString(r.URL.Query().Get("q"), 128),
			Pagination: params,
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseVendorStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Validation("invalid status filter", pkgerrors.FieldError{Field: "status", Message: "is invalid"}))
				return
			}
			input.Status = &status
		}

		result, err := svc.ListVendors(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func GetVendor(svc vendors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("vendor service"))
			return
		}
		principal, err := principalFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendorID, err := validators.ParseUUIDParam(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.GetVendor(r.Context(), principal, vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// CreateVendor returns the generated username and temporary password once.
func CreateVendor(svc vendors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("vendor service"))
			return
		}
		var body createVendorRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		created, err := svc.CreateVendor(r.Context(), vendors.CreateVendorInput{
			Name:        strings.TrimSpace(body.Name),
			ContactName: body.ContactName,
			Email:       body.Email,
			Phone:       body.Phone,
			Address:     body.Address,
			Notes:       body.Notes,
			UserID:      body.UserID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

func UpdateVendor(svc vendors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("vendor service"))
			return
		}
		principal, err := principalFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendorID, err := validators.ParseUUIDParam(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateVendorRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.UpdateVendor(r.Context(), principal, vendorID, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func DeleteVendor(svc vendors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("vendor service"))
			return
		}
		vendorID, err := validators.ParseUUIDParam(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteVendor(r.Context(), vendorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusOK, "vendor deleted")
	}
}

func ResetVendorPassword(svc vendors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("vendor service"))
			return
		}
		vendorID, err := validators.ParseUUIDParam(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		creds, err := svc.ResetPassword(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, creds)
	}
}

func GetVendorSelf(svc vendors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("vendor service"))
			return
		}
		vendor, err := vendorPrincipalFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.GetVendor(r.Context(), vendor, vendor.VendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// UpdateVendorSelf lets a vendor edit its contact fields and password.
func UpdateVendorSelf(svc vendors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("vendor service"))
			return
		}
		vendor, err := vendorPrincipalFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateVendorRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.UpdateVendor(r.Context(), vendor, vendor.VendorID, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func VendorPresence(svc vendors.Service, logg *logger.Logger) http.HandlerFunc {
	return vendorTouch(logg, func(r *http.Request, vendorID uuid.UUID) error {
		if svc == nil {
			return unavailable("vendor service")
		}
		return svc.MarkPresence(r.Context(), vendorID)
	})
}

func VendorOrdersRead(svc vendors.Service, logg *logger.Logger) http.HandlerFunc {
	return vendorTouch(logg, func(r *http.Request, vendorID uuid.UUID) error {
		if svc == nil {
			return unavailable("vendor service")
		}
		return svc.MarkOrdersRead(r.Context(), vendorID)
	})
}

func vendorTouch(logg *logger.Logger, touch func(*http.Request, uuid.UUID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendor, err := vendorPrincipalFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := touch(r, vendor.VendorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"ok": true})
	}
}
