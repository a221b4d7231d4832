package types

import pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"

// Envelope is the body of every JSON response the API writes.
type Envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    any                    `json:"data,omitempty"`
	Errors  []pkgerrors.FieldError `json:"errors,omitempty"`
}
