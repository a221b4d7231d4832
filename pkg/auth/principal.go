package auth

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
)

// Principal is the authenticated actor behind a request. It is one of
// AdminPrincipal, VendorPrincipal or ClientPrincipal.
type Principal interface {
	Kind() enums.PrincipalKind
	// ActorID is the user id for staff and clients, the vendor id for vendors.
	ActorID() uuid.UUID
	principal()
}

// AdminPrincipal is a staff user (role admin or supplier).
type AdminPrincipal struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func (AdminPrincipal) Kind() enums.PrincipalKind { return enums.PrincipalAdmin }
func (p AdminPrincipal) ActorID() uuid.UUID      { return p.UserID }
func (AdminPrincipal) principal()                {}

// IsSuperAdmin reports whether the staff user holds the admin role itself.
func (p AdminPrincipal) IsSuperAdmin() bool { return p.Role == enums.UserRoleAdmin }

// VendorPrincipal is a vendor acting through its own credentials or a linked user.
type VendorPrincipal struct {
	VendorID uuid.UUID
	// UserID is set when the vendor signed in through a linked user account.
	UserID *uuid.UUID
}

func (VendorPrincipal) Kind() enums.PrincipalKind { return enums.PrincipalVendor }
func (p VendorPrincipal) ActorID() uuid.UUID      { return p.VendorID }
func (VendorPrincipal) principal()                {}

// ClientPrincipal is a client user.
type ClientPrincipal struct {
	UserID uuid.UUID
}

func (ClientPrincipal) Kind() enums.PrincipalKind { return enums.PrincipalClient }
func (p ClientPrincipal) ActorID() uuid.UUID      { return p.UserID }
func (ClientPrincipal) principal()                {}

// PrincipalFromClaims resolves the token claims into exactly one principal.
func PrincipalFromClaims(claims *AccessTokenClaims) (Principal, error) {
	if claims == nil {
		return nil, fmt.Errorf("claims required")
	}
	switch claims.Kind {
	case enums.IdentityVendor:
		return VendorPrincipal{VendorID: claims.SubjectID}, nil
	case enums.IdentityUser:
		switch {
		case claims.Role.IsStaff():
			return AdminPrincipal{UserID: claims.SubjectID, Role: claims.Role}, nil
		case claims.Role == enums.UserRoleClient:
			return ClientPrincipal{UserID: claims.SubjectID}, nil
		case claims.Role == enums.UserRoleVendor:
			if claims.VendorID == nil {
				return nil, fmt.Errorf("vendor user %s has no linked vendor", claims.SubjectID)
			}
			userID := claims.SubjectID
			return VendorPrincipal{VendorID: *claims.VendorID, UserID: &userID}, nil
		}
		return nil, fmt.Errorf("unsupported role %q", claims.Role)
	}
	return nil, fmt.Errorf("unsupported identity kind %q", claims.Kind)
}
