package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
)

// ProductPurchase snapshots one confirmed line item for the purchase history.
type ProductPurchase struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ProductID   uuid.UUID           `gorm:"column:product_id;type:uuid;not null"`
	OrderID     uuid.UUID           `gorm:"column:order_id;type:uuid;not null"`
	OrderItemID uuid.UUID           `gorm:"column:order_item_id;type:uuid;not null"`
	OrderNumber string              `gorm:"column:order_number;type:text;not null"`
	ItemNumber  string              `gorm:"column:item_number;type:text;not null"`
	ProductName string              `gorm:"column:product_name;type:text;not null"`
	VendorID    *uuid.UUID          `gorm:"column:vendor_id;type:uuid"`
	VendorName  *string             `gorm:"column:vendor_name;type:text"`
	Flow        enums.OrderFlow     `gorm:"column:flow;type:text;not null"`
	Quantity    int                 `gorm:"column:quantity;not null"`
	UnitPrice   decimal.NullDecimal `gorm:"column:unit_price;type:numeric(12,2)"`
	TotalPrice  decimal.Decimal     `gorm:"column:total_price;type:numeric(12,2);not null"`
	PurchasedAt time.Time           `gorm:"column:purchased_at;not null"`
}
