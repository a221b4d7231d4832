package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorcrm-backend/pkg/db"
	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
	"github.com/angelmondragon/vendorcrm-backend/pkg/pagination"
	"github.com/angelmondragon/vendorcrm-backend/pkg/security"
)

const minPasswordLength = 8

type passwordHasher interface {
	Hash(password string) (string, error)
}

// SessionRevoker ends every live access token issued to a subject.
type SessionRevoker interface {
	RevokeSubject(ctx context.Context, subject string) (int, error)
}

// Service manages staff and client accounts.
type Service interface {
	CreateUser(ctx context.Context, input CreateUserInput) (*UserDTO, error)
	GetUser(ctx context.Context, id uuid.UUID) (*UserDTO, error)
	ListUsers(ctx context.Context, input ListUsersInput) (*UserListResult, error)
	UpdateUser(ctx context.Context, id uuid.UUID, input UpdateUserInput) (*UserDTO, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ResetPassword(ctx context.Context, id uuid.UUID) (*PasswordReset, error)
}

type service struct {
	repo       *Repository
	hasher     passwordHasher
	tempLength int
	logg       *logger.Logger
	sessions   SessionRevoker
}

// NewService builds the account service. sessions may be nil, in which case
// deactivated accounts keep their tokens until expiry.
func NewService(repo *Repository, hasher passwordHasher, tempLength int, logg *logger.Logger, sessions SessionRevoker) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
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
	return &service{repo: repo, hasher: hasher, tempLength: tempLength, logg: logg, sessions: sessions}, nil
}

func (s *service) CreateUser(ctx context.Context, input CreateUserInput) (*UserDTO, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	var fields []pkgerrors.FieldError
	if username == "" {
		fields = append(fields, pkgerrors.FieldError{Field: "username", Message: "is required"})
	}
	if len(input.Password) < minPasswordLength {
		fields = append(fields, pkgerrors.FieldError{Field: "password", Message: fmt.Sprintf("must be at least %d characters", minPasswordLength)})
	}
	if !input.Role.IsValid() {
		fields = append(fields, pkgerrors.FieldError{Field: "role", Message: "must be admin, supplier, vendor or client"})
	}
	if len(fields) > 0 {
		return nil, pkgerrors.Validation("invalid user", fields...)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName = username
	}
	user := &models.User{
		Username:     username,
		Email:        trimmed(input.Email),
		DisplayName:  displayName,
		PasswordHash: hash,
		Role:         input.Role,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "username already exists").
				WithDetails([]pkgerrors.FieldError{{Field: "username", Message: "already exists"}})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"user_id": user.ID.String(), "role": user.Role.String()}), "user.created")
	return FromModel(user), nil
}

func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookup(err)
	}
	return FromModel(user), nil
}

func (s *service) ListUsers(ctx context.Context, input ListUsersInput) (*UserListResult, error) {
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, userListQuery{
		Role:            input.Role,
		Query:           input.Query,
		IncludeInactive: input.IncludeInactive,
		Cursor:          cursor,
		Limit:           input.Pagination.Limit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	page := pagination.Build(rows, input.Pagination.Limit, func(u models.User) pagination.Cursor {
		return pagination.Cursor{CreatedAt: u.CreatedAt, ID: u.ID}
	})
	result := &UserListResult{Items: make([]UserDTO, 0, len(page.Items)), NextCursor: page.NextCursor}
	for i := range page.Items {
		result.Items = append(result.Items, *FromModel(&page.Items[i]))
	}
	return result, nil
}

func (s *service) UpdateUser(ctx context.Context, id uuid.UUID, input UpdateUserInput) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookup(err)
	}
	wasActive, previousRole := user.IsActive, user.Role
	if input.Role != nil {
		if !input.Role.IsValid() {
			return nil, pkgerrors.Validation("invalid role", pkgerrors.FieldError{Field: "role", Message: "must be admin, supplier, vendor or client"})
		}
		user.Role = *input.Role
	}
	if input.Email != nil {
		user.Email = trimmed(input.Email)
	}
	if input.DisplayName != nil {
		name := strings.TrimSpace(*input.DisplayName)
		if name == "" {
			return nil, pkgerrors.Validation("invalid display name", pkgerrors.FieldError{Field: "displayName", Message: "cannot be empty"})
		}
		user.DisplayName = name
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user")
	}
	// Tokens carry the role, so a role change or deactivation invalidates them.
	if (wasActive && !user.IsActive) || previousRole != user.Role {
		s.endSessions(ctx, user.ID)
	}
	return FromModel(user), nil
}

// DeleteUser deactivates the account; the username stays reserved.
func (s *service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	found, err := s.repo.SoftDelete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete user")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	s.endSessions(ctx, id)
	return nil
}

func (s *service) ResetPassword(ctx context.Context, id uuid.UUID) (*PasswordReset, error) {
	user, err := s.repo.FindByID(ctx, id)
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
	if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store password")
	}
	s.endSessions(ctx, user.ID)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"user_id": user.ID.String()}), "user.password_reset")
	return &PasswordReset{UserID: user.ID, Username: user.Username, TemporaryPassword: password}, nil
}

// endSessions is best effort: the account change is already committed.
func (s *service) endSessions(ctx context.Context, id uuid.UUID) {
	if s.sessions == nil {
		return
	}
	ctx = s.logg.WithField(ctx, "user_id", id.String())
	n, err := s.sessions.RevokeSubject(ctx, id.String())
	if err != nil {
		s.logg.Error(ctx, "user.revoke_sessions_failed", err)
		return
	}
	if n > 0 {
		s.logg.Info(s.logg.WithField(ctx, "sessions", n), "user.sessions_revoked")
	}
}

func mapLookup(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
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

