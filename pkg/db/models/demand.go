package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
)

// Demand is a client's request for a product quantity, outside the order flow.
type Demand struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ClientID    uuid.UUID          `gorm:"column:client_id;type:uuid;not null"`
	ProductID   *uuid.UUID         `gorm:"column:product_id;type:uuid"`
	ItemNumber  string             `gorm:"column:item_number;type:text;not null"`
	ProductName string             `gorm:"column:product_name;type:text;not null"`
	Quantity    int                `gorm:"column:quantity;not null"`
	Notes       *string            `gorm:"column:notes;type:text"`
	Status      enums.DemandStatus `gorm:"column:status;type:text;not null"`
	DecidedBy   *uuid.UUID         `gorm:"column:decided_by;type:uuid"`
	DecidedAt   *time.Time         `gorm:"column:decided_at"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
