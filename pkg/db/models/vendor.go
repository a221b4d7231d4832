package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
)

// Vendor is a supplier business with its own login.
type Vendor struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Name             string             `gorm:"column:name;type:text;not null"`
	ContactName      *string            `gorm:"column:contact_name;type:text"`
	Email            *string            `gorm:"column:email;type:text"`
	Phone            *string            `gorm:"column:phone;type:text"`
	Address          *string            `gorm:"column:address;type:text"`
	Notes            *string            `gorm:"column:notes;type:text"`
	Username         string             `gorm:"column:username;type:text;not null;uniqueIndex"`
	PasswordHash     string             `gorm:"column:password_hash;not null"`
	Status           enums.VendorStatus `gorm:"column:status;type:text;not null"`
	IsActive         bool               `gorm:"column:is_active;not null"`
	UserID           *uuid.UUID         `gorm:"column:user_id;type:uuid"`
	LastSeenAt       *time.Time         `gorm:"column:last_seen_at"`
	LastOrdersReadAt *time.Time         `gorm:"column:last_orders_read_at"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
