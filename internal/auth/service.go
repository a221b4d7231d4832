package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/angelmondragon/vendorcrm-backend/pkg/auth"
	"github.com/angelmondragon/vendorcrm-backend/pkg/auth/session"
	"github.com/angelmondragon/vendorcrm-backend/pkg/config"
	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controller.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	VendorLogin(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Logout(ctx context.Context, accessID string) error
	Me(ctx context.Context, principal pkgAuth.Principal) (*Profile, error)
}

type userRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type vendorRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.Vendor, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Vendor, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
	Touch(ctx context.Context, id uuid.UUID, column string, at time.Time) (bool, error)
}

type passwordVerifier interface {
	Verify(password, encoded string) (bool, error)
	VerifyDummy(password string)
}

type sessionManager interface {
	Open(ctx context.Context, accessID, subject string) error
	Revoke(ctx context.Context, accessID string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo       userRepository
	VendorRepo     vendorRepository
	Passwords      passwordVerifier
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	Logger         *logger.Logger
}

type service struct {
	users     userRepository
	vendors   vendorRepository
	passwords passwordVerifier
	session   sessionManager
	jwtCfg    config.JWTConfig
	logg      *logger.Logger
	now       func() time.Time
}

// NewService constructs a login service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.VendorRepo == nil {
		return nil, fmt.Errorf("vendor repository is required")
	}
	if params.Passwords == nil {
		return nil, fmt.Errorf("password verifier is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		users:     params.UserRepo,
		vendors:   params.VendorRepo,
		passwords: params.Passwords,
		session:   params.SessionManager,
		jwtCfg:    params.JWTConfig,
		logg:      logg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Login authenticates a user. Valid credentials reactivate a deactivated
// account. Vendor-role users act as their linked vendor.
func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	username := normalizeUsername(req.Username)
	if username == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.passwords.VerifyDummy(req.Password)
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}
	if err := s.verify(req.Password, user.PasswordHash); err != nil {
		return nil, err
	}

	payload := pkgAuth.AccessTokenPayload{SubjectID: user.ID, Kind: enums.IdentityUser, Role: user.Role}
	profile := Profile{
		Kind:        principalKindFor(user.Role),
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Role:        user.Role,
	}
	if user.Role == enums.UserRoleVendor {
		vendor, err := s.vendors.FindByUserID(ctx, user.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no vendor is linked to this account")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup vendor")
		}
		if err := vendorLoginAllowed(vendor); err != nil {
			return nil, err
		}
		payload.VendorID = &vendor.ID
		profile.VendorID = &vendor.ID
		profile.VendorName = &vendor.Name
	}

	now := s.now()
	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record login")
	}
	if !user.IsActive {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"user_id": user.ID.String()}), "auth.user_reactivated")
	}
	return s.issue(ctx, now, payload, profile)
}

// VendorLogin authenticates a vendor with its own credentials.
func (s *service) VendorLogin(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	username := normalizeUsername(req.Username)
	if username == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	vendor, err := s.vendors.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.passwords.VerifyDummy(req.Password)
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup vendor")
	}
	if err := s.verify(req.Password, vendor.PasswordHash); err != nil {
		return nil, err
	}
	if err := vendorLoginAllowed(vendor); err != nil {
		return nil, err
	}

	now := s.now()
	if _, err := s.vendors.Touch(ctx, vendor.ID, "last_seen_at", now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record login")
	}
	vendorID := vendor.ID
	return s.issue(ctx, now,
		pkgAuth.AccessTokenPayload{SubjectID: vendor.ID, Kind: enums.IdentityVendor, Role: enums.UserRoleVendor, VendorID: &vendorID},
		Profile{
			Kind:        enums.PrincipalVendor,
			ID:          vendor.ID,
			Username:    vendor.Username,
			DisplayName: vendor.Name,
			Role:        enums.UserRoleVendor,
			VendorID:    &vendorID,
			VendorName:  &vendor.Name,
		})
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "session required")
	}
	if err := s.session.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *service) Me(ctx context.Context, principal pkgAuth.Principal) (*Profile, error) {
	switch p := principal.(type) {
	case pkgAuth.VendorPrincipal:
		vendor, err := s.vendors.FindByID(ctx, p.VendorID)
		if err != nil {
			return nil, mapLookup(err, "vendor")
		}
		profile := &Profile{
			Kind:        enums.PrincipalVendor,
			ID:          vendor.ID,
			Username:    vendor.Username,
			DisplayName: vendor.Name,
			Role:        enums.UserRoleVendor,
			VendorID:    &vendor.ID,
			VendorName:  &vendor.Name,
		}
		if p.UserID != nil {
			profile.ID = *p.UserID
		}
		return profile, nil
	case pkgAuth.AdminPrincipal, pkgAuth.ClientPrincipal:
		user, err := s.users.FindByID(ctx, p.ActorID())
		if err != nil {
			return nil, mapLookup(err, "user")
		}
		return &Profile{
			Kind:        p.Kind(),
			ID:          user.ID,
			Username:    user.Username,
			DisplayName: user.DisplayName,
			Role:        user.Role,
		}, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
}

func (s *service) verify(password, hash string) error {
	valid, err := s.passwords.Verify(password, hash)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return nil
}

func (s *service) issue(ctx context.Context, now time.Time, payload pkgAuth.AccessTokenPayload, profile Profile) (*LoginResponse, error) {
	payload.JTI = session.NewAccessID()
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	if err := s.session.Open(ctx, payload.JTI, payload.SubjectID.String()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store session")
	}
	return &LoginResponse{
		AccessToken: token,
		ExpiresAt:   now.Add(s.jwtCfg.AccessTokenTTL()),
		Profile:     profile,
	}, nil
}

func vendorLoginAllowed(vendor *models.Vendor) error {
	if !vendor.IsActive || vendor.Status != enums.VendorStatusActive {
		return pkgerrors.New(pkgerrors.CodeForbidden, "vendor account is inactive")
	}
	return nil
}

func principalKindFor(role enums.UserRole) enums.PrincipalKind {
	switch {
	case role.IsStaff():
		return enums.PrincipalAdmin
	case role == enums.UserRoleVendor:
		return enums.PrincipalVendor
	}
	return enums.PrincipalClient
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func mapLookup(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, what+" no longer exists")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+what)
}
