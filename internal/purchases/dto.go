package purchases

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	"github.com/angelmondragon/vendorcrm-backend/pkg/pagination"
)

type PurchaseDTO struct {
	ID          uuid.UUID        `json:"id"`
	ProductID   uuid.UUID        `json:"productId"`
	OrderID     uuid.UUID        `json:"orderId"`
	OrderItemID uuid.UUID        `json:"orderItemId"`
	OrderNumber string           `json:"orderNumber"`
	ItemNumber  string           `json:"itemNumber"`
	ProductName string           `json:"productName"`
	VendorID    *uuid.UUID       `json:"vendorId,omitempty"`
	VendorName  *string          `json:"vendorName,omitempty"`
	Flow        enums.OrderFlow  `json:"flow"`
	Quantity    int              `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unitPrice,omitempty"`
	TotalPrice  decimal.Decimal  `json:"totalPrice"`
	PurchasedAt time.Time        `json:"purchasedAt"`
}

type PurchaseListResult = pagination.Page[PurchaseDTO]

type ListPurchasesInput struct {
	ProductID  *uuid.UUID
	VendorID   *uuid.UUID
	OrderID    *uuid.UUID
	Pagination pagination.Params
}

func toDTO(p models.ProductPurchase) PurchaseDTO {
	dto := PurchaseDTO{
		ID:          p.ID,
		ProductID:   p.ProductID,
		OrderID:     p.OrderID,
		OrderItemID: p.OrderItemID,
		OrderNumber: p.OrderNumber,
		ItemNumber:  p.ItemNumber,
		ProductName: p.ProductName,
		VendorID:    p.VendorID,
		VendorName:  p.VendorName,
		Flow:        p.Flow,
		Quantity:    p.Quantity,
		TotalPrice:  p.TotalPrice,
		PurchasedAt: p.PurchasedAt,
	}
	if p.UnitPrice.Valid {
		price := p.UnitPrice.Decimal
		dto.UnitPrice = &price
	}
	return dto
}
