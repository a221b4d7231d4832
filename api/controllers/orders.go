package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorcrm-backend/api/responses"
	"github.com/angelmondragon/vendorcrm-backend/api/validators"
	"github.com/angelmondragon/vendorcrm-backend/internal/media"
	"github.com/angelmondragon/vendorcrm-backend/internal/orders"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
)

type createOrderItemRequest struct {
	ProductID   *uuid.UUID `json:"productId"`
	ItemNumber  string     `json:"itemNumber" validate:"max=64"`
	ProductName string     `json:"productName" validate:"max=255"`
	Quantity    int        `json:"quantity" validate:"gt=0"`
	Notes       *string    `json:"notes"`
}

type createOrderRequest struct {
	OrderNumber string                   `json:"orderNumber" validate:"max=64"`
	VendorID    *uuid.UUID               `json:"vendorId"`
	Notes       *string                  `json:"notes"`
	Items       []createOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type itemPatchRequest struct {
	Status              *enums.OrderStatus         `json:"status" validate:"omitempty,oneof=pending confirmed shipped delivered cancelled"`
	PriceApprovalStatus *enums.PriceApprovalStatus `json:"priceApprovalStatus" validate:"omitempty,oneof=pending approved rejected"`
	RejectionReason     *string                    `json:"rejectionReason"`
	ConfirmationDate    *string                    `json:"confirmationDate"`
	InvoiceNumber       *string                    `json:"invoiceNumber"`
	TransferAmount      *decimal.Decimal           `json:"transferAmount"`
	ShippingDate        *string                    `json:"shippingDate"`
	ArrivalDate         *string                    `json:"arrivalDate"`
	Notes               *string                    `json:"notes"`
	Quantity            *int                       `json:"quantity" validate:"omitempty,gt=0"`
	UnitPrice           *decimal.Decimal           `json:"unitPrice"`
}

type itemInputRequest struct {
	ID          *uuid.UUID `json:"id"`
	ProductID   *uuid.UUID `json:"productId"`
	ItemNumber  string     `json:"itemNumber"`
	ProductName string     `json:"productName"`
	itemPatchRequest
}

type updateOrderRequest struct {
	Status              *enums.OrderStatus         `json:"status" validate:"omitempty,oneof=pending confirmed shipped delivered cancelled"`
	PriceApprovalStatus *enums.PriceApprovalStatus `json:"priceApprovalStatus" validate:"omitempty,oneof=pending approved rejected"`
	ConfirmationDate    *string                    `json:"confirmationDate"`
	ShippingDate        *string                    `json:"shippingDate"`
	ArrivalDate         *string                    `json:"arrivalDate"`
	InvoiceNumber       *string                    `json:"invoiceNumber"`
	TransferAmount      *decimal.Decimal           `json:"transferAmount"`
	Notes               *string                    `json:"notes"`

	ItemIndex *int               `json:"itemIndex" validate:"omitempty,gte=0"`
	Item      *itemPatchRequest  `json:"item"`
	Items     []itemInputRequest `json:"items" validate:"omitempty,dive"`
}

type confirmItemRequest struct {
	ItemIndex *int `json:"itemIndex" validate:"required,gte=0"`
}

type transferItemRequest struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

func (p *itemPatchRequest) toPatch() *orders.ItemPatch {
	if p == nil {
		return nil
	}
	return &orders.ItemPatch{
		Status:              p.Status,
		PriceApprovalStatus: p.PriceApprovalStatus,
		RejectionReason:     p.RejectionReason,
		ConfirmationDate:    p.ConfirmationDate,
		InvoiceNumber:       p.InvoiceNumber,
		TransferAmount:      p.TransferAmount,
		ShippingDate:        p.ShippingDate,
		ArrivalDate:         p.ArrivalDate,
		Notes:               p.Notes,
		Quantity:            p.Quantity,
		UnitPrice:           p.UnitPrice,
	}
}

func (req updateOrderRequest) toInput() orders.UpdateOrderInput {
	input := orders.UpdateOrderInput{
		Status:              req.Status,
		PriceApprovalStatus: req.PriceApprovalStatus,
		ConfirmationDate:    req.ConfirmationDate,
		ShippingDate:        req.ShippingDate,
		ArrivalDate:         req.ArrivalDate,
		InvoiceNumber:       req.InvoiceNumber,
		TransferAmount:      req.TransferAmount,
		Notes:               req.Notes,
		ItemIndex:           req.ItemIndex,
		Item:                req.Item.toPatch(),
	}
	if req.Items != nil {
		input.Items = make([]orders.ItemInput, 0, len(req.Items))
		for _, item := range req.Items {
			input.Items = append(input.Items, orders.ItemInput{
				ID:          item.ID,
				ProductID:   item.ProductID,
				ItemNumber:  strings.TrimSpace(item.ItemNumber),
				ProductName: strings.TrimSpace(item.ProductName),
				ItemPatch:   *item.itemPatchRequest.toPatch(),
			})
		}
	}
	return input
}

func parseOrderFilters(r *http.Request) (orders.ListOrdersInput, error) {
	var input orders.ListOrdersInput

	params, err := validators.ParsePagination(r)
	if err != nil {
		return input, err
	}
	input.Pagination = params

	query := r.URL.Query()
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return input, pkgerrors.Validation("invalid status filter", pkgerrors.FieldError{Field: "status", Message: "is invalid"})
		}
		input.Status = &status
	}
	if raw := strings.TrimSpace(query.Get("flow")); raw != "" {
		flow, err := enums.ParseOrderFlow(raw)
		if err != nil {
			return input, pkgerrors.Validation("invalid flow filter", pkgerrors.FieldError{Field: "flow", Message: "is invalid"})
		}
		input.Flow = &flow
	}
	vendorID, err := validators.ParseQueryUUID(r, "vendorId")
	if err != nil {
		return input, err
	}
	input.VendorID = vendorID
	input.Search = validators.SanitizeString(query.Get("q"), 64)
	return input, nil
}

func ListOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("orders service"))
			return
		}
		principal, err := principalFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := parseOrderFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ListOrders(r.Context(), principal, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ListVendorOrders serves GET /orders/vendor/{vendorId}.
func ListVendorOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("orders service"))
			return
		}
		principal, err := principalFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendorID, err := validators.ParseUUIDParam(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := parseOrderFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ListVendorOrders(r.Context(), principal, vendorID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func GetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("orders service"))
			return
		}
		principal, err := principalFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetOrder(r.Context(), principal, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func CreateOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("orders service"))
			return
		}
		principal, err := principalFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := orders.CreateOrderInput{
			OrderNumber: strings.TrimSpace(body.OrderNumber),
			VendorID:    body.VendorID,
			Notes:       body.Notes,
			Items:       make([]orders.CreateItemInput, 0, len(body.Items)),
		}
		for _, item := range body.Items {
			input.Items = append(input.Items, orders.CreateItemInput{
				ProductID:   item.ProductID,
				ItemNumber:  strings.TrimSpace(item.ItemNumber),
				ProductName: strings.TrimSpace(item.ProductName),
				Quantity:    item.Quantity,
				Notes:       item.Notes,
			})
		}

		order, err := svc.CreateOrder(r.Context(), principal, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

func UpdateOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("orders service"))
			return
		}
		principal, err := principalFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.UpdateOrder(r.Context(), principal, orderID, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func DeleteOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("orders service"))
			return
		}
		principal, err := principalFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteOrder(r.Context(), principal, orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusOK, "order deleted")
	}
}

// ConfirmOrderItem confirms one item and applies its stock effect.
func ConfirmOrderItem(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("orders service"))
			return
		}
		principal, err := principalFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body confirmItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.ConfirmItem(r.Context(), principal, orderID, *body.ItemIndex)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// TransferOrderItem splits quantity off an item into a new order.
func TransferOrderItem(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("orders service"))
			return
		}
		principal, err := principalFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemIndex, err := validators.ParseIntParam(r, "itemIndex")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body transferItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.TransferItem(r.Context(), principal, orderID, itemIndex, body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// UploadOrderImage stores the multipart image and attaches it to the order,
// or to one item when the route carries an item index.
func UploadOrderImage(svc orders.Service, store ImageStore, withItem bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("orders service"))
			return
		}
		principal, err := principalFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var itemIndex *int
		if withItem {
			idx, err := validators.ParseIntParam(r, "itemIndex")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			itemIndex = &idx
		}

		upload, err := receiveImage(w, r, store, media.FolderOrders)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.AttachImage(r.Context(), principal, orderID, itemIndex, upload.Path)
		if err != nil {
			discardUpload(r.Context(), store, upload, logg)
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
