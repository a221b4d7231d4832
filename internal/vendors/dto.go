package vendors

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	"github.com/angelmondragon/vendorcrm-backend/pkg/pagination"
)

type VendorDTO struct {
	ID               uuid.UUID          `json:"id"`
	Name             string             `json:"name"`
	ContactName      *string            `json:"contactName,omitempty"`
	Email            *string            `json:"email,omitempty"`
	Phone            *string            `json:"phone,omitempty"`
	Address          *string            `json:"address,omitempty"`
	Notes            *string            `json:"notes,omitempty"`
	Username         string             `json:"username"`
	Status           enums.VendorStatus `json:"status"`
	UserID           *uuid.UUID         `json:"userId,omitempty"`
	LastSeenAt       *time.Time         `json:"lastSeenAt,omitempty"`
	LastOrdersReadAt *time.Time         `json:"lastOrdersReadAt,omitempty"`
	UnreadOrders     int64              `json:"unreadOrders"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

type VendorListResult = pagination.Page[VendorDTO]

// Credentials are shown to the admin once, right after create or reset.
type Credentials struct {
	VendorID          uuid.UUID `json:"vendorId"`
	Username          string    `json:"username"`
	TemporaryPassword string    `json:"temporaryPassword"`
}

type CreatedVendor struct {
	Vendor      VendorDTO   `json:"vendor"`
	Credentials Credentials `json:"credentials"`
}

type CreateVendorInput struct {
	Name        string
	ContactName *string
	Email       *string
	Phone       *string
	Address     *string
	Notes       *string
	UserID      *uuid.UUID
}

// UpdateVendorInput patches a vendor. Name, Notes, Status and UserID are
// staff-only; a vendor editing itself may change the contact fields and
// its password.
type UpdateVendorInput struct {
	Name            *string
	ContactName     *string
	Email           *string
	Phone           *string
	Address         *string
	Notes           *string
	Status          *enums.VendorStatus
	UserID          *uuid.UUID
	CurrentPassword *string
	NewPassword     *string
}

type ListVendorsInput struct {
	Query      string
	Status     *enums.VendorStatus
	Pagination pagination.Params
}

func toDTO(v models.Vendor, unread int64) VendorDTO {
	return VendorDTO{
		ID:               v.ID,
		Name:             v.Name,
		ContactName:      v.ContactName,
		Email:            v.Email,
		Phone:            v.Phone,
		Address:          v.Address,
		Notes:            v.Notes,
		Username:         v.Username,
		Status:           v.Status,
		UserID:           v.UserID,
		LastSeenAt:       v.LastSeenAt,
		LastOrdersReadAt: v.LastOrdersReadAt,
		UnreadOrders:     unread,
		CreatedAt:        v.CreatedAt,
		UpdatedAt:        v.UpdatedAt,
	}
}
