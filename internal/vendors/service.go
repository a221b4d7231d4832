package vendors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorcrm-backend/pkg/auth"
	"github.com/angelmondragon/vendorcrm-backend/pkg/db"
	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
	"github.com/angelmondragon/vendorcrm-backend/pkg/pagination"
	"github.com/angelmondragon/vendorcrm-backend/pkg/security"
)

const (
	usernameAttempts  = 5
	minPasswordLength = 8
)

type passwordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

type sessionRevoker interface {
	RevokeSubject(ctx context.Context, subject string) (int, error)
}

// Service manages vendor accounts, their generated credentials and presence.
type Service interface {
	CreateVendor(ctx context.Context, input CreateVendorInput) (*CreatedVendor, error)
	GetVendor(ctx context.Context, principal auth.Principal, id uuid.UUID) (*VendorDTO, error)
	ListVendors(ctx context.Context, input ListVendorsInput) (*VendorListResult, error)
	UpdateVendor(ctx context.Context, principal auth.Principal, id uuid.UUID, input UpdateVendorInput) (*VendorDTO, error)
	DeleteVendor(ctx context.Context, id uuid.UUID) error
	ResetPassword(ctx context.Context, id uuid.UUID) (*Credentials, error)
	MarkPresence(ctx context.Context, vendorID uuid.UUID) error
	MarkOrdersRead(ctx context.Context, vendorID uuid.UUID) error
}

type service struct {
	repo       *Repository
	hasher     passwordHasher
	tempLength int
	logg       *logger.Logger
	sessions   sessionRevoker
	now        func() time.Time
}

// NewService builds the vendor service; a nil sessions skips token revocation.
func NewService(repo *Repository, hasher passwordHasher, tempLength int, logg *logger.Logger, sessions sessionRevoker) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("vendors repository required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("password hasher required")
	}
	if tempLength < minPasswordLength {
		tempLength = 12
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:       repo,
		hasher:     hasher,
		tempLength: tempLength,
		logg:       logg,
		sessions:   sessions,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreateVendor stores the vendor with a generated username and temporary
// password. The plaintext password only exists in the returned value.
func (s *service) CreateVendor(ctx context.Context, input CreateVendorInput) (*CreatedVendor, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.Validation("invalid vendor", pkgerrors.FieldError{Field: "name", Message: "is required"})
	}

	password, err := security.GenerateTempPassword(s.tempLength)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate password")
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	vendor := &models.Vendor{
		Name:         name,
		ContactName:  trimmed(input.ContactName),
		Email:        trimmed(input.Email),
		Phone:        trimmed(input.Phone),
		Address:      trimmed(input.Address),
		Notes:        trimmed(input.Notes),
		PasswordHash: hash,
		Status:       enums.VendorStatusActive,
		IsActive:     true,
		UserID:       input.UserID,
	}

	// The suffix is random; a collision on the unique index gets a new one.
	for attempt := 0; ; attempt++ {
		vendor.Username, err = security.GenerateUsername(name)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate username")
		}
		vendor.ID = uuid.Nil
		err = s.repo.Create(ctx, vendor)
		if err == nil {
			break
		}
		if !db.IsUniqueViolation(err, "") || attempt == usernameAttempts-1 {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create vendor")
		}
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"vendor_id": vendor.ID.String(), "username": vendor.Username}), "vendor.created")
	return &CreatedVendor{
		Vendor: toDTO(*vendor, 0),
		Credentials: Credentials{
			VendorID:          vendor.ID,
			Username:          vendor.Username,
			TemporaryPassword: password,
		},
	}, nil
}

func (s *service) GetVendor(ctx context.Context, principal auth.Principal, id uuid.UUID) (*VendorDTO, error) {
	if err := canAccess(principal, id); err != nil {
		return nil, err
	}
	vendor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookup(err)
	}
	counts, err := s.repo.UnreadOrderCounts(ctx, []uuid.UUID{vendor.ID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread orders")
	}
	dto := toDTO(*vendor, counts[vendor.ID])
	return &dto, nil
}

func (s *service) ListVendors(ctx context.Context, input ListVendorsInput) (*VendorListResult, error) {
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, vendorListQuery{
		Query:  input.Query,
		Status: input.Status,
		Cursor: cursor,
		Limit:  input.Pagination.Limit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vendors")
	}
	page := pagination.Build(rows, input.Pagination.Limit, func(v models.Vendor) pagination.Cursor {
		return pagination.Cursor{CreatedAt: v.CreatedAt, ID: v.ID}
	})

	ids := make([]uuid.UUID, 0, len(page.Items))
	for _, v := range page.Items {
		ids = append(ids, v.ID)
	}
	counts, err := s.repo.UnreadOrderCounts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread orders")
	}

	result := &VendorListResult{Items: make([]VendorDTO, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, v := range page.Items {
		result.Items = append(result.Items, toDTO(v, counts[v.ID]))
	}
	return result, nil
}

func (s *service) UpdateVendor(ctx context.Context, principal auth.Principal, id uuid.UUID, input UpdateVendorInput) (*VendorDTO, error) {
	if err := canAccess(principal, id); err != nil {
		return nil, err
	}
	_, isStaff := principal.(auth.AdminPrincipal)
	if !isStaff && (input.Name != nil || input.Notes != nil || input.Status != nil || input.UserID != nil) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendors may only change contact details and password")
	}

	vendor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookup(err)
	}
	wasActive := vendor.Status == enums.VendorStatusActive

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.Validation("invalid vendor", pkgerrors.FieldError{Field: "name", Message: "cannot be empty"})
		}
		vendor.Name = name
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, pkgerrors.Validation("invalid vendor", pkgerrors.FieldError{Field: "status", Message: "must be active or inactive"})
		}
		vendor.Status = *input.Status
	}
	if input.UserID != nil {
		linked := *input.UserID
		if linked == uuid.Nil {
			vendor.UserID = nil
		} else {
			vendor.UserID = &linked
		}
	}
	patch(&vendor.ContactName, input.ContactName)
	patch(&vendor.Email, input.Email)
	patch(&vendor.Phone, input.Phone)
	patch(&vendor.Address, input.Address)
	patch(&vendor.Notes, input.Notes)

	if input.NewPassword != nil {
		if err := s.changePassword(vendor, isStaff, input); err != nil {
			return nil, err
		}
		if err := s.repo.UpdatePassword(ctx, vendor.ID, vendor.PasswordHash); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store password")
		}
	}

	if err := s.repo.Save(ctx, vendor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update vendor")
	}
	if (wasActive && vendor.Status != enums.VendorStatusActive) || (isStaff && input.NewPassword != nil) {
		s.endSessions(ctx, vendor.ID)
	}
	dto := toDTO(*vendor, 0)
	return &dto, nil
}

// changePassword sets a new hash on vendor. Vendors must prove the current
// password; staff may overwrite it.
func (s *service) changePassword(vendor *models.Vendor, isStaff bool, input UpdateVendorInput) error {
	next := *input.NewPassword
	if len(next) < minPasswordLength {
		return pkgerrors.Validation("invalid password", pkgerrors.FieldError{
			Field:   "newPassword",
			Message: fmt.Sprintf("must be at least %d characters", minPasswordLength),
		})
	}
	if !isStaff {
		if input.CurrentPassword == nil {
			return pkgerrors.Validation("current password required", pkgerrors.FieldError{Field: "currentPassword", Message: "is required"})
		}
		ok, err := s.hasher.Verify(*input.CurrentPassword, vendor.PasswordHash)
		if err != nil || !ok {
			return pkgerrors.Validation("current password is incorrect", pkgerrors.FieldError{Field: "currentPassword", Message: "is incorrect"})
		}
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	vendor.PasswordHash = hash
	return nil
}

// DeleteVendor soft deletes the vendor; it can no longer log in.
func (s *service) DeleteVendor(ctx context.Context, id uuid.UUID) error {
	found, err := s.repo.SoftDelete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete vendor")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
	}
	s.endSessions(ctx, id)
	return nil
}

func (s *service) ResetPassword(ctx context.Context, id uuid.UUID) (*Credentials, error) {
	vendor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookup(err)
	}
	password, err := security.GenerateTempPassword(s.tempLength)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate password")
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	if err := s.repo.UpdatePassword(ctx, vendor.ID, hash); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store password")
	}
	s.endSessions(ctx, vendor.ID)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"vendor_id": vendor.ID.String()}), "vendor.password_reset")
	return &Credentials{VendorID: vendor.ID, Username: vendor.Username, TemporaryPassword: password}, nil
}

func (s *service) endSessions(ctx context.Context, id uuid.UUID) {
	if s.sessions == nil {
		return
	}
	ctx = s.logg.WithField(ctx, "vendor_id", id.String())
	if n, err := s.sessions.RevokeSubject(ctx, id.String()); err != nil {
		s.logg.Error(ctx, "vendor.revoke_sessions_failed", err)
	} else if n > 0 {
		s.logg.Info(s.logg.WithField(ctx, "sessions", n), "vendor.sessions_revoked")
	}
}

func (s *service) MarkPresence(ctx context.Context, vendorID uuid.UUID) error {
	return s.touch(ctx, vendorID, "last_seen_at")
}

func (s *service) MarkOrdersRead(ctx context.Context, vendorID uuid.UUID) error {
	return s.touch(ctx, vendorID, "last_orders_read_at")
}

func (s *service) touch(ctx context.Context, vendorID uuid.UUID, column string) error {
	found, err := s.repo.Touch(ctx, vendorID, column, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update vendor")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
	}
	return nil
}

func canAccess(principal auth.Principal, vendorID uuid.UUID) error {
	switch p := principal.(type) {
	case auth.AdminPrincipal:
		return nil
	case auth.VendorPrincipal:
		if p.VendorID == vendorID {
			return nil
		}
	case nil:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "vendor access denied")
}

func mapLookup(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor")
}

func patch(target **string, value *string) {
	if value != nil {
		*target = trimmed(value)
	}
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
