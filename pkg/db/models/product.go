package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Stock only moves through atomic SQL updates.
type Product struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ItemNumber   string              `gorm:"column:item_number;type:text;not null"`
	Name         string              `gorm:"column:name;type:text;not null"`
	Description  *string             `gorm:"column:description;type:text"`
	Images       pq.StringArray      `gorm:"column:images;type:text[];not null"`
	SellingPrice decimal.NullDecimal `gorm:"column:selling_price;type:numeric(12,2)"`
	Stock        int                 `gorm:"column:stock;not null"`
	ReorderLevel int                 `gorm:"column:reorder_level;not null"`
	IsVisible    bool                `gorm:"column:is_visible;not null"`
	IsActive     bool                `gorm:"column:is_active;not null"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
