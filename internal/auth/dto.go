package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
)

// LoginRequest captures the credentials sent to either login endpoint.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Profile describes the signed-in identity.
type Profile struct {
	Kind        enums.PrincipalKind `json:"kind"`
	ID          uuid.UUID           `json:"id"`
	Username    string              `json:"username"`
	DisplayName string              `json:"displayName"`
	Role        enums.UserRole      `json:"role"`
	VendorID    *uuid.UUID          `json:"vendorId,omitempty"`
	VendorName  *string             `json:"vendorName,omitempty"`
}

// LoginResponse contains the access token and the resolved profile.
type LoginResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Profile     Profile   `json:"profile"`
}
