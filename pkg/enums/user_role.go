package enums

import "slices"

// UserRole maps to users.role.
type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleSupplier UserRole = "supplier"
	UserRoleVendor   UserRole = "vendor"
	UserRoleClient   UserRole = "client"
)

var validUserRoles = []UserRole{
	UserRoleAdmin,
	UserRoleSupplier,
	UserRoleVendor,
	UserRoleClient,
}

func (r UserRole) String() string {
	return string(r)
}

func (r UserRole) IsValid() bool {
	return slices.Contains(validUserRoles, r)
}

// IsStaff reports whether the role acts on behalf of the business.
func (r UserRole) IsStaff() bool {
	return r == UserRoleAdmin || r == UserRoleSupplier
}

func ParseUserRole(value string) (UserRole, error) {
	return parse(value, validUserRoles, "user role")
}

// IdentityKind is the credential store a token was issued from.
type IdentityKind string

const (
	IdentityUser   IdentityKind = "user"
	IdentityVendor IdentityKind = "vendor"
)

func (k IdentityKind) IsValid() bool {
	return k == IdentityUser || k == IdentityVendor
}

// PrincipalKind names the resolved actor behind a request.
type PrincipalKind string

const (
	PrincipalAdmin  PrincipalKind = "admin"
	PrincipalVendor PrincipalKind = "vendor"
	PrincipalClient PrincipalKind = "client"
)

func (k PrincipalKind) String() string {
	return string(k)
}
