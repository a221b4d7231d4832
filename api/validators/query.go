package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/pagination"
)

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.Validation("query parameter must be numeric", pkgerrors.FieldError{Field: key, Message: "must be numeric"})
	}
	if value < min || value > max {
		return 0, pkgerrors.Validation("query parameter out of range",
			pkgerrors.FieldError{Field: key, Message: "must be between " + strconv.Itoa(min) + " and " + strconv.Itoa(max)})
	}
	return value, nil
}

// ParseQueryUUID reads an optional uuid query parameter; absent yields nil.
func ParseQueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.Validation("invalid query parameter", pkgerrors.FieldError{Field: key, Message: "must be a valid UUID"})
	}
	return &id, nil
}

// ParseUUIDParam reads a required uuid route parameter.
func ParseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Validation("invalid identifier", pkgerrors.FieldError{Field: key, Message: "must be a valid UUID"})
	}
	return id, nil
}

// ParseIntParam reads a required non-negative integer route parameter.
func ParseIntParam(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, pkgerrors.Validation("invalid path parameter", pkgerrors.FieldError{Field: key, Message: "must be a non-negative integer"})
	}
	return value, nil
}

// ParsePagination reads the limit and cursor query parameters.
func ParsePagination(r *http.Request) (pagination.Params, error) {
	limit, err := ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))
	if _, err := pagination.ParseCursor(cursor); err != nil {
		return pagination.Params{}, pkgerrors.Validation("invalid cursor", pkgerrors.FieldError{Field: "cursor", Message: "is invalid"})
	}
	return pagination.Params{Limit: limit, Cursor: cursor}, nil
}
