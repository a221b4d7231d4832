package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorcrm-backend/api/responses"
	"github.com/angelmondragon/vendorcrm-backend/api/validators"
	"github.com/angelmondragon/vendorcrm-backend/internal/demands"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
)

type createDemandRequest struct {
	ProductID   *uuid.UUID `json:"productId"`
	ItemNumber  string     `json:"itemNumber" validate:"required_without=ProductID,max=64"`
	ProductName string     `json:"productName" validate:"max=255"`
	Quantity    int        `json:"quantity" validate:"gt=0"`
	Notes       *string    `json:"notes" validate:"omitempty,max=1000"`
}

type demandStatusRequest struct {
	Status enums.DemandStatus `json:"status" validate:"required,oneof=confirmed rejected"`
}

func ListDemands(svc demands.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("demand service"))
			return
		}
		principal, err := principalFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := demands.ListDemandsInput{Pagination: params}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseDemandStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Validation("invalid status filter", pkgerrors.FieldError{Field: "status", Message: "is invalid"}))
				return
			}
			input.Status = &status
		}

		result, err := svc.ListDemands(r.Context(), principal, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func CreateDemand(svc demands.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("demand service"))
			return
		}
		principal, err := principalFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body createDemandRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.CreateDemand(r.Context(), principal, demands.CreateDemandInput{
			ProductID:   body.ProductID,
			ItemNumber:  strings.TrimSpace(body.ItemNumber),
			ProductName: strings.TrimSpace(body.ProductName),
			Quantity:    body.Quantity,
			Notes:       body.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

func UpdateDemandStatus(svc demands.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("demand service"))
			return
		}
		principal, err := principalFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		demandID, err := validators.ParseUUIDParam(r, "demandId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body demandStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.UpdateStatus(r.Context(), principal, demandID, body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// DemandReport summarizes pending demands and queues the WhatsApp report.
func DemandReport(svc demands.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("demand service"))
			return
		}
		principal, err := principalFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.Report(r.Context(), principal)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
