package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	"github.com/angelmondragon/vendorcrm-backend/pkg/pagination"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID          uuid.UUID      `json:"id"`
	Username    string         `json:"username"`
	Email       *string        `json:"email,omitempty"`
	DisplayName string         `json:"displayName"`
	Role        enums.UserRole `json:"role"`
	IsActive    bool           `json:"isActive"`
	LastLoginAt *time.Time     `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

type UserListResult = pagination.Page[UserDTO]

type CreateUserInput struct {
	Username    string
	Password    string
	Email       *string
	DisplayName string
	Role        enums.UserRole
}

// UpdateUserInput patches a user; nil fields are left alone.
type UpdateUserInput struct {
	Email       *string
	DisplayName *string
	Role        *enums.UserRole
	IsActive    *bool
}

type ListUsersInput struct {
	Role            *enums.UserRole
	Query           string
	IncludeInactive bool
	Pagination      pagination.Params
}

// PasswordReset carries a freshly generated password. It is returned once.
type PasswordReset struct {
	UserID            uuid.UUID `json:"userId"`
	Username          string    `json:"username"`
	TemporaryPassword string    `json:"temporaryPassword"`
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
