package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
)

// Order is the aggregate root; Items are owned rows saved with it.
type Order struct {
	ID                  uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber         string                    `gorm:"column:order_number;type:text;not null;uniqueIndex"`
	VendorID            *uuid.UUID                `gorm:"column:vendor_id;type:uuid"`
	ClientID            *uuid.UUID                `gorm:"column:client_id;type:uuid"`
	CreatedByKind       enums.PrincipalKind       `gorm:"column:created_by_kind;type:text;not null"`
	CreatedByID         uuid.UUID                 `gorm:"column:created_by_id;type:uuid;not null"`
	Flow                enums.OrderFlow           `gorm:"column:flow;type:text;not null"`
	Status              enums.OrderStatus         `gorm:"column:status;type:text;not null"`
	PriceApprovalStatus enums.PriceApprovalStatus `gorm:"column:price_approval_status;type:text;not null"`
	ConfirmationDate    *string                   `gorm:"column:confirmation_date;type:text"`
	ShippingDate        *string                   `gorm:"column:shipping_date;type:text"`
	ArrivalDate         *string                   `gorm:"column:arrival_date;type:text"`
	InvoiceNumber       *string                   `gorm:"column:invoice_number;type:text"`
	TransferAmount      decimal.NullDecimal       `gorm:"column:transfer_amount;type:numeric(12,2)"`
	Notes               *string                   `gorm:"column:notes;type:text"`
	Image               *string                   `gorm:"column:image;type:text"`
	TotalAmount         decimal.Decimal           `gorm:"column:total_amount;type:numeric(12,2);not null"`
	StockAdjusted       bool                      `gorm:"column:stock_adjusted;not null"`
	IsActive            bool                      `gorm:"column:is_active;not null"`
	Items               []OrderItem               `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is a line item embedded in an Order. Position keeps array order.
type OrderItem struct {
	ID                  uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	OrderID             uuid.UUID                 `gorm:"column:order_id;type:uuid;not null"`
	Position            int                       `gorm:"column:position;not null"`
	ProductID           uuid.UUID                 `gorm:"column:product_id;type:uuid;not null"`
	ItemNumber          string                    `gorm:"column:item_number;type:text;not null"`
	ProductName         string                    `gorm:"column:product_name;type:text;not null"`
	Quantity            int                       `gorm:"column:quantity;not null"`
	UnitPrice           decimal.NullDecimal       `gorm:"column:unit_price;type:numeric(12,2)"`
	TotalPrice          decimal.Decimal           `gorm:"column:total_price;type:numeric(12,2);not null"`
	Status              enums.OrderStatus         `gorm:"column:status;type:text;not null"`
	PriceApprovalStatus enums.PriceApprovalStatus `gorm:"column:price_approval_status;type:text;not null"`
	RejectionReason     *string                   `gorm:"column:rejection_reason;type:text"`
	ConfirmationDate    *string                   `gorm:"column:confirmation_date;type:text"`
	InvoiceNumber       *string                   `gorm:"column:invoice_number;type:text"`
	TransferAmount      decimal.NullDecimal       `gorm:"column:transfer_amount;type:numeric(12,2)"`
	ShippingDate        *string                   `gorm:"column:shipping_date;type:text"`
	ArrivalDate         *string                   `gorm:"column:arrival_date;type:text"`
	Notes               *string                   `gorm:"column:notes;type:text"`
	Image               *string                   `gorm:"column:image;type:text"`
	StockAdjusted       bool                      `gorm:"column:stock_adjusted;not null"`
	CreatedAt           time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
