package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	"github.com/angelmondragon/vendorcrm-backend/pkg/pagination"
)

// OrderDTO is the order payload; items keep their array order and are
// addressed by index.
type OrderDTO struct {
	ID                  uuid.UUID                 `json:"id"`
	OrderNumber         string                    `json:"orderNumber"`
	VendorID            *uuid.UUID                `json:"vendorId,omitempty"`
	ClientID            *uuid.UUID                `json:"clientId,omitempty"`
	CreatedByKind       enums.PrincipalKind       `json:"createdByKind"`
	CreatedByID         uuid.UUID                 `json:"createdById"`
	Flow                enums.OrderFlow           `json:"flow"`
	Status              enums.OrderStatus         `json:"status"`
	PriceApprovalStatus enums.PriceApprovalStatus `json:"priceApprovalStatus"`
	ConfirmationDate    *string                   `json:"confirmationDate,omitempty"`
	ShippingDate        *string                   `json:"shippingDate,omitempty"`
	ArrivalDate         *string                   `json:"arrivalDate,omitempty"`
	InvoiceNumber       *string                   `json:"invoiceNumber,omitempty"`
	TransferAmount      *decimal.Decimal          `json:"transferAmount,omitempty"`
	Notes               *string                   `json:"notes,omitempty"`
	Image               *string                   `json:"image,omitempty"`
	TotalAmount         decimal.Decimal           `json:"totalAmount"`
	StockAdjusted       bool                      `json:"stockAdjusted"`
	Items               []OrderItemDTO            `json:"items"`
	CreatedAt           time.Time                 `json:"createdAt"`
	UpdatedAt           time.Time                 `json:"updatedAt"`
}

type OrderItemDTO struct {
	ID                  uuid.UUID                 `json:"id"`
	ProductID           uuid.UUID                 `json:"productId"`
	ItemNumber          string                    `json:"itemNumber"`
	ProductName         string                    `json:"productName"`
	Quantity            int                       `json:"quantity"`
	UnitPrice           *decimal.Decimal          `json:"unitPrice,omitempty"`
	TotalPrice          decimal.Decimal           `json:"totalPrice"`
	Status              enums.OrderStatus         `json:"status"`
	PriceApprovalStatus enums.PriceApprovalStatus `json:"priceApprovalStatus"`
	RejectionReason     *string                   `json:"rejectionReason,omitempty"`
	ConfirmationDate    *string                   `json:"confirmationDate,omitempty"`
	InvoiceNumber       *string                   `json:"invoiceNumber,omitempty"`
	TransferAmount      *decimal.Decimal          `json:"transferAmount,omitempty"`
	ShippingDate        *string                   `json:"shippingDate,omitempty"`
	ArrivalDate         *string                   `json:"arrivalDate,omitempty"`
	Notes               *string                   `json:"notes,omitempty"`
	Image               *string                   `json:"image,omitempty"`
	StockAdjusted       bool                      `json:"stockAdjusted"`
}

type OrderListResult = pagination.Page[OrderDTO]

// TransferResult returns both sides of a quantity transfer.
type TransferResult struct {
	Source *OrderDTO `json:"source"`
	Target OrderDTO  `json:"target"`
}

// CreateOrderInput is the payload for POST /orders.
type CreateOrderInput struct {
	OrderNumber string
	VendorID    *uuid.UUID
	Notes       *string
	Items       []CreateItemInput
}

type CreateItemInput struct {
	ProductID   *uuid.UUID
	ItemNumber  string
	ProductName string
	Quantity    int
	Notes       *string
}

// UpdateOrderInput patches order-level fields and, optionally, either one
// item (ItemIndex plus Item) or the whole item list (Items).
type UpdateOrderInput struct {
	Status              *enums.OrderStatus
	PriceApprovalStatus *enums.PriceApprovalStatus
	ConfirmationDate    *string
	ShippingDate        *string
	ArrivalDate         *string
	InvoiceNumber       *string
	TransferAmount      *decimal.Decimal
	Notes               *string

	ItemIndex *int
	Item      *ItemPatch
	Items     []ItemInput
}

// ItemPatch holds the fields a single-item update may change.
type ItemPatch struct {
	Status              *enums.OrderStatus
	PriceApprovalStatus *enums.PriceApprovalStatus
	RejectionReason     *string
	ConfirmationDate    *string
	InvoiceNumber       *string
	TransferAmount      *decimal.Decimal
	ShippingDate        *string
	ArrivalDate         *string
	Notes               *string
	Quantity            *int
	UnitPrice           *decimal.Decimal
}

// ItemInput is one entry of a bulk item replacement. Entries carrying the id
// of an existing item patch it; entries without an id add a new item and
// must carry a product reference and a quantity.
type ItemInput struct {
	ID          *uuid.UUID
	ProductID   *uuid.UUID
	ItemNumber  string
	ProductName string
	ItemPatch
}

type ListOrdersInput struct {
	Status     *enums.OrderStatus
	VendorID   *uuid.UUID
	Flow       *enums.OrderFlow
	Search     string
	Pagination pagination.Params
}

func toDTO(order models.Order) OrderDTO {
	dto := OrderDTO{
		ID:                  order.ID,
		OrderNumber:         order.OrderNumber,
		VendorID:            order.VendorID,
		ClientID:            order.ClientID,
		CreatedByKind:       order.CreatedByKind,
		CreatedByID:         order.CreatedByID,
		Flow:                order.Flow,
		Status:              DeriveOrderStatus(order.Items, order.Status),
		PriceApprovalStatus: order.PriceApprovalStatus,
		ConfirmationDate:    order.ConfirmationDate,
		ShippingDate:        order.ShippingDate,
		ArrivalDate:         order.ArrivalDate,
		InvoiceNumber:       order.InvoiceNumber,
		TransferAmount:      decimalPtr(order.TransferAmount),
		Notes:               order.Notes,
		Image:               order.Image,
		TotalAmount:         order.TotalAmount,
		StockAdjusted:       order.StockAdjusted,
		Items:               make([]OrderItemDTO, 0, len(order.Items)),
		CreatedAt:           order.CreatedAt,
		UpdatedAt:           order.UpdatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:                  item.ID,
			ProductID:           item.ProductID,
			ItemNumber:          item.ItemNumber,
			ProductName:         item.ProductName,
			Quantity:            item.Quantity,
			UnitPrice:           decimalPtr(item.UnitPrice),
			TotalPrice:          item.TotalPrice,
			Status:              item.Status,
			PriceApprovalStatus: item.PriceApprovalStatus,
			RejectionReason:     item.RejectionReason,
			ConfirmationDate:    item.ConfirmationDate,
			InvoiceNumber:       item.InvoiceNumber,
			TransferAmount:      decimalPtr(item.TransferAmount),
			ShippingDate:        item.ShippingDate,
			ArrivalDate:         item.ArrivalDate,
			Notes:               item.Notes,
			Image:               item.Image,
			StockAdjusted:       item.StockAdjusted,
		})
	}
	return dto
}

func decimalPtr(value decimal.NullDecimal) *decimal.Decimal {
	if !value.Valid {
		return nil
	}
	d := value.Decimal
	return &d
}
