package auth

import (
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	SubjectID uuid.UUID
	Kind      enums.IdentityKind
	// Role is the user role; vendor tokens carry enums.UserRoleVendor.
	Role enums.UserRole
	// VendorID is set for vendor tokens and for vendor-role users linked to a vendor.
	VendorID *uuid.UUID
	JTI      string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	SubjectID uuid.UUID          `json:"sid"`
	Kind      enums.IdentityKind `json:"kind"`
	Role      enums.UserRole     `json:"role"`
	VendorID  *uuid.UUID         `json:"vendor_id,omitempty"`
	jwt.RegisteredClaims
}
