package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorcrm-backend/internal/notifications"
	product "github.com/angelmondragon/vendorcrm-backend/internal/products"
	"github.com/angelmondragon/vendorcrm-backend/internal/stock"
	"github.com/angelmondragon/vendorcrm-backend/pkg/auth"
	"github.com/angelmondragon/vendorcrm-backend/pkg/db"
	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
	"github.com/angelmondragon/vendorcrm-backend/pkg/outbox"
	"github.com/angelmondragon/vendorcrm-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/vendorcrm-backend/pkg/pagination"
)

const dateLayout = "2006-01-02"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockReconciler interface {
	Apply(ctx context.Context, tx *gorm.DB, scope stock.Scope) (stock.Result, error)
	Reverse(ctx context.Context, tx *gorm.DB, scope stock.Scope) (stock.Result, error)
}

type catalog interface {
	ResolveForOrder(ctx context.Context, tx *gorm.DB, ref product.ItemRef) (*models.Product, error)
	AnnounceStock(ctx context.Context, tx *gorm.DB, productIDs []uuid.UUID, actor *outbox.ActorRef) error
	AddImage(ctx context.Context, productID uuid.UUID, path string) (*product.ProductDTO, error)
}

type notifier interface {
	Notify(ctx context.Context, tx *gorm.DB, input notifications.NotifyInput) (*models.Notification, error)
}

// Service is the order aggregate: every write loads the order under lock,
// mutates it, re-derives totals and status, then reconciles stock in the
// same transaction.
type Service interface {
	CreateOrder(ctx context.Context, principal auth.Principal, input CreateOrderInput) (*OrderDTO, error)
	GetOrder(ctx context.Context, principal auth.Principal, orderID uuid.UUID) (*OrderDTO, error)
	ListOrders(ctx context.Context, principal auth.Principal, input ListOrdersInput) (*OrderListResult, error)
	ListVendorOrders(ctx context.Context, principal auth.Principal, vendorID uuid.UUID, input ListOrdersInput) (*OrderListResult, error)
	UpdateOrder(ctx context.Context, principal auth.Principal, orderID uuid.UUID, input UpdateOrderInput) (*OrderDTO, error)
	DeleteOrder(ctx context.Context, principal auth.Principal, orderID uuid.UUID) error
	ConfirmItem(ctx context.Context, principal auth.Principal, orderID uuid.UUID, itemIndex int) (*OrderDTO, error)
	TransferItem(ctx context.Context, principal auth.Principal, orderID uuid.UUID, itemIndex, quantity int) (*TransferResult, error)
	AttachImage(ctx context.Context, principal auth.Principal, orderID uuid.UUID, itemIndex *int, path string) (*OrderDTO, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outbox.Emitter
	stock    stockReconciler
	catalog  catalog
	notifier notifier
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx txRunner, emitter outbox.Emitter, reconciler stockReconciler, catalog catalog, notifier notifier, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if reconciler == nil {
		return nil, fmt.Errorf("stock reconciler required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   emitter,
		stock:    reconciler,
		catalog:  catalog,
		notifier: notifier,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, principal auth.Principal, input CreateOrderInput) (*OrderDTO, error) {
	if principal == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	order := &models.Order{
		CreatedByKind:       principal.Kind(),
		CreatedByID:         principal.ActorID(),
		Status:              enums.OrderStatusPending,
		PriceApprovalStatus: enums.PriceApprovalPending,
		Notes:               optionalString(input.Notes),
		IsActive:            true,
	}
	switch p := principal.(type) {
	case auth.AdminPrincipal:
		if input.VendorID == nil {
			return nil, pkgerrors.Validation("vendor required", pkgerrors.FieldError{Field: "vendorId", Message: "is required"})
		}
		order.Flow = enums.OrderFlowSupply
		order.VendorID = input.VendorID
	case auth.VendorPrincipal:
		if input.VendorID != nil && *input.VendorID != p.VendorID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendors can only create their own orders")
		}
		vendorID := p.VendorID
		order.Flow = enums.OrderFlowSupply
		order.VendorID = &vendorID
	case auth.ClientPrincipal:
		clientID := p.UserID
		order.Flow = enums.OrderFlowFulfillment
		order.ClientID = &clientID
		order.VendorID = input.VendorID
	}

	order.OrderNumber = strings.TrimSpace(input.OrderNumber)
	if order.OrderNumber == "" {
		number, err := GenerateOrderNumber(s.now())
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}
		order.OrderNumber = number
	}

	actor := outbox.ActorFrom(principal)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if order.VendorID != nil {
			if _, err := repo.FindActiveVendor(ctx, *order.VendorID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.Validation("unknown vendor", pkgerrors.FieldError{Field: "vendorId", Message: "vendor not found or inactive"})
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor")
			}
		}

		for _, line := range input.Items {
			resolved, err := s.catalog.ResolveForOrder(ctx, tx, product.ItemRef{
				ProductID:  line.ProductID,
				ItemNumber: line.ItemNumber,
				Name:       line.ProductName,
			})
			if err != nil {
				return err
			}
			order.Items = append(order.Items, newItem(resolved, line.Quantity, optionalString(line.Notes)))
		}
		resync(order)

		if err := repo.Create(ctx, order); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "order number already exists").
					WithDetails([]pkgerrors.FieldError{{Field: "orderNumber", Message: "already exists"}})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := s.emitOrder(ctx, tx, enums.EventOrderCreated, order, actor); err != nil {
			return err
		}
		return s.notifyCounterparty(ctx, tx, principal, order, enums.NotificationOrderCreated,
			"New order "+order.OrderNumber,
			fmt.Sprintf("%d item(s) requested", len(order.Items)))
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"flow":         order.Flow.String(),
	}), "order.created")
	dto := toDTO(*order)
	return &dto, nil
}

func (s *service) GetOrder(ctx context.Context, principal auth.Principal, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, mapOrderLookup(err)
	}
	if err := authorize(principal, order); err != nil {
		return nil, err
	}
	dto := toDTO(*order)
	return &dto, nil
}

func (s *service) ListOrders(ctx context.Context, principal auth.Principal, input ListOrdersInput) (*OrderListResult, error) {
	query := orderListQuery{
		Status: input.Status,
		Flow:   input.Flow,
		Search: input.Search,
		Limit:  input.Pagination.Limit,
	}
	switch p := principal.(type) {
	case auth.AdminPrincipal:
		query.VendorID = input.VendorID
	case auth.VendorPrincipal:
		vendorID := p.VendorID
		query.VendorID = &vendorID
	case auth.ClientPrincipal:
		clientID := p.UserID
		query.ClientID = &clientID
		query.VendorID = input.VendorID
	default:
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return s.list(ctx, query, input.Pagination.Cursor)
}

func (s *service) ListVendorOrders(ctx context.Context, principal auth.Principal, vendorID uuid.UUID, input ListOrdersInput) (*OrderListResult, error) {
	switch p := principal.(type) {
	case auth.AdminPrincipal:
	case auth.VendorPrincipal:
		if p.VendorID != vendorID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendors can only list their own orders")
		}
	case nil:
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor orders are restricted")
	}
	return s.list(ctx, orderListQuery{
		VendorID: &vendorID,
		Status:   input.Status,
		Flow:     input.Flow,
		Search:   input.Search,
		Limit:    input.Pagination.Limit,
	}, input.Pagination.Cursor)
}

func (s *service) list(ctx context.Context, query orderListQuery, rawCursor string) (*OrderListResult, error) {
	cursor, err := pagination.ParseCursor(rawCursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	query.Cursor = cursor

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	page := pagination.Build(rows, query.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	result := &OrderListResult{Items: make([]OrderDTO, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, order := range page.Items {
		result.Items = append(result.Items, toDTO(order))
	}
	return result, nil
}

func (s *service) UpdateOrder(ctx context.Context, principal auth.Principal, orderID uuid.UUID, input UpdateOrderInput) (*OrderDTO, error) {
	if input.Items != nil && (input.ItemIndex != nil || input.Item != nil) {
		return nil, pkgerrors.Validation("items cannot be combined with itemIndex",
			pkgerrors.FieldError{Field: "items", Message: "send either items or itemIndex with item, not both"})
	}
	if (input.ItemIndex == nil) != (input.Item == nil) {
		return nil, pkgerrors.Validation("itemIndex and item go together",
			pkgerrors.FieldError{Field: "itemIndex", Message: "itemIndex and item must be supplied together"})
	}
	if _, ok := principal.(auth.ClientPrincipal); ok {
		if err := checkClientPatch(input); err != nil {
			return nil, err
		}
	}

	actor := outbox.ActorFrom(principal)
	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, orderID)
		if err != nil {
			return mapOrderLookup(err)
		}
		if err := authorize(principal, order); err != nil {
			return err
		}

		before := snapshotOf(order)
		removed, err := s.applyPatch(ctx, tx, principal, order, input)
		if err != nil {
			return err
		}

		var moved stock.Result
		for _, item := range removed {
			if !item.StockAdjusted {
				continue
			}
			result, err := s.stock.Reverse(ctx, tx, stock.ItemScope(order.ID, item.ID))
			if err != nil {
				return mapStockError(err)
			}
			moved.Movements = append(moved.Movements, result.Movements...)
		}

		resync(order)
		if err := repo.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
		}
		result, err := s.reconcile(ctx, tx, before, order)
		if err != nil {
			return err
		}
		moved.Movements = append(moved.Movements, result.Movements...)

		updated, err = repo.FindByID(ctx, order.ID)
		if err != nil {
			return mapOrderLookup(err)
		}
		return s.afterWrite(ctx, tx, principal, updated, moved, actor)
	})
	if err != nil {
		return nil, err
	}

	dto := toDTO(*updated)
	return &dto, nil
}

// DeleteOrder soft deletes the order and gives back any stock it holds.
func (s *service) DeleteOrder(ctx context.Context, principal auth.Principal, orderID uuid.UUID) error {
	actor := outbox.ActorFrom(principal)
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, orderID)
		if err != nil {
			return mapOrderLookup(err)
		}
		if err := authorize(principal, order); err != nil {
			return err
		}

		moved, err := s.stock.Reverse(ctx, tx, stock.OrderScope(order.ID))
		if err != nil {
			return mapStockError(err)
		}
		if err := repo.SoftDelete(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
		}
		order.IsActive = false

		if err := s.emitOrder(ctx, tx, enums.EventOrderDeleted, order, actor); err != nil {
			return err
		}
		if moved.Changed() {
			if err := s.catalog.AnnounceStock(ctx, tx, moved.ProductIDs(), actor); err != nil {
				return err
			}
		}
		return s.notifyCounterparty(ctx, tx, principal, order, enums.NotificationOrderDeleted,
			"Order "+order.OrderNumber+" deleted", "")
	})
}

// ConfirmItem confirms one item and lets the order status follow.
func (s *service) ConfirmItem(ctx context.Context, principal auth.Principal, orderID uuid.UUID, itemIndex int) (*OrderDTO, error) {
	if _, ok := principal.(auth.ClientPrincipal); ok {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "clients cannot confirm items")
	}

	actor := outbox.ActorFrom(principal)
	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, orderID)
		if err != nil {
			return mapOrderLookup(err)
		}
		if err := authorize(principal, order); err != nil {
			return err
		}
		item, err := itemAt(order, itemIndex)
		if err != nil {
			return err
		}

		before := snapshotOf(order)
		if !item.Status.HoldsStock() {
			item.Status = enums.OrderStatusConfirmed
		}
		resync(order)
		if err := repo.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
		}
		moved, err := s.reconcile(ctx, tx, before, order)
		if err != nil {
			return err
		}

		updated, err = repo.FindByID(ctx, order.ID)
		if err != nil {
			return mapOrderLookup(err)
		}
		return s.afterWrite(ctx, tx, principal, updated, moved, actor)
	})
	if err != nil {
		return nil, err
	}

	dto := toDTO(*updated)
	return &dto, nil
}

// TransferItem splits quantity off one item into a new single-item order for
// the same vendor. The split line starts over as pending on the new order; a
// source item that already moved stock is re-applied at its remaining quantity.
func (s *service) TransferItem(ctx context.Context, principal auth.Principal, orderID uuid.UUID, itemIndex, quantity int) (*TransferResult, error) {
	vendor, ok := principal.(auth.VendorPrincipal)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only vendors can transfer items")
	}
	if quantity <= 0 {
		return nil, pkgerrors.Validation("invalid quantity", pkgerrors.FieldError{Field: "quantity", Message: "must be greater than zero"})
	}

	actor := outbox.ActorFrom(principal)
	var (
		source *models.Order
		target *models.Order
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, orderID)
		if err != nil {
			return mapOrderLookup(err)
		}
		if err := authorize(vendor, order); err != nil {
			return err
		}
		item, err := itemAt(order, itemIndex)
		if err != nil {
			return err
		}
		if quantity > item.Quantity {
			return pkgerrors.Validation("invalid quantity", pkgerrors.FieldError{
				Field:   "quantity",
				Message: fmt.Sprintf("must not exceed the item quantity %d", item.Quantity),
			})
		}

		number, err := GenerateOrderNumber(s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}
		moved := *item
		moved.ID = uuid.Nil
		moved.OrderID = uuid.Nil
		moved.Quantity = quantity
		moved.Status = enums.OrderStatusPending
		moved.StockAdjusted = false
		target = &models.Order{
			OrderNumber:         number,
			VendorID:            order.VendorID,
			ClientID:            order.ClientID,
			CreatedByKind:       vendor.Kind(),
			CreatedByID:         vendor.ActorID(),
			Flow:                order.Flow,
			Status:              enums.OrderStatusPending,
			PriceApprovalStatus: enums.PriceApprovalPending,
			IsActive:            true,
			Items:               []models.OrderItem{moved},
		}

		before := snapshotOf(order)
		item.Quantity -= quantity
		var dropped *models.OrderItem
		if item.Quantity == 0 {
			gone := *item
			dropped = &gone
			order.Items = append(order.Items[:itemIndex], order.Items[itemIndex+1:]...)
		}

		var result stock.Result
		if len(order.Items) == 0 {
			result, err = s.stock.Reverse(ctx, tx, stock.OrderScope(order.ID))
			if err != nil {
				return mapStockError(err)
			}
			if err := repo.Save(ctx, order); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save source order")
			}
			if err := repo.SoftDelete(ctx, order.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete emptied order")
			}
			order.IsActive = false
			if err := s.emitOrder(ctx, tx, enums.EventOrderDeleted, order, actor); err != nil {
				return err
			}
		} else {
			if dropped != nil && dropped.StockAdjusted {
				result, err = s.stock.Reverse(ctx, tx, stock.ItemScope(order.ID, dropped.ID))
				if err != nil {
					return mapStockError(err)
				}
			}
			resync(order)
			if err := repo.Save(ctx, order); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save source order")
			}
			reconciled, err := s.reconcile(ctx, tx, before, order)
			if err != nil {
				return err
			}
			result.Movements = append(result.Movements, reconciled.Movements...)
			source, err = repo.FindByID(ctx, order.ID)
			if err != nil {
				return mapOrderLookup(err)
			}
			if err := s.emitOrder(ctx, tx, enums.EventOrderUpdated, source, actor); err != nil {
				return err
			}
		}

		resync(target)
		if err := repo.Create(ctx, target); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "generated order number collided, retry the transfer")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transfer order")
		}
		targetResult, err := s.reconcile(ctx, tx, snapshot{status: enums.OrderStatusPending}, target)
		if err != nil {
			return err
		}
		result.Movements = append(result.Movements, targetResult.Movements...)
		target, err = repo.FindByID(ctx, target.ID)
		if err != nil {
			return mapOrderLookup(err)
		}
		if err := s.emitOrder(ctx, tx, enums.EventOrderCreated, target, actor); err != nil {
			return err
		}
		if result.Changed() {
			if err := s.catalog.AnnounceStock(ctx, tx, result.ProductIDs(), actor); err != nil {
				return err
			}
		}
		return s.notifyCounterparty(ctx, tx, principal, target, enums.NotificationOrderCreated,
			"Order "+target.OrderNumber+" split from "+order.OrderNumber,
			fmt.Sprintf("%d x %s transferred", quantity, moved.ItemNumber))
	})
	if err != nil {
		return nil, err
	}

	out := &TransferResult{Target: toDTO(*target)}
	if source != nil {
		dto := toDTO(*source)
		out.Source = &dto
	}
	return out, nil
}

// AttachImage stores path on the order or on one item. The product galleries
// are refreshed after commit and their failures are only logged.
func (s *service) AttachImage(ctx context.Context, principal auth.Principal, orderID uuid.UUID, itemIndex *int, path string) (*OrderDTO, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "image path required")
	}

	actor := outbox.ActorFrom(principal)
	var (
		updated  *models.Order
		products []uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, orderID)
		if err != nil {
			return mapOrderLookup(err)
		}
		if err := authorize(principal, order); err != nil {
			return err
		}

		if itemIndex != nil {
			item, err := itemAt(order, *itemIndex)
			if err != nil {
				return err
			}
			item.Image = &path
			products = []uuid.UUID{item.ProductID}
		} else {
			order.Image = &path
			products = distinctProducts(order.Items)
		}
		if err := repo.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order image")
		}
		updated, err = repo.FindByID(ctx, order.ID)
		if err != nil {
			return mapOrderLookup(err)
		}
		return s.emitOrder(ctx, tx, enums.EventOrderUpdated, updated, actor)
	})
	if err != nil {
		return nil, err
	}

	for _, productID := range products {
		if _, err := s.catalog.AddImage(ctx, productID, path); err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"order_id":   orderID.String(),
				"product_id": productID.String(),
				"error":      err.Error(),
			}), "order.product_image_sync_failed")
		}
	}

	dto := toDTO(*updated)
	return &dto, nil
}

// applyPatch mutates order in memory and returns the items a bulk
// replacement dropped.
func (s *service) applyPatch(ctx context.Context, tx *gorm.DB, principal auth.Principal, order *models.Order, input UpdateOrderInput) ([]models.OrderItem, error) {
	_, isAdmin := principal.(auth.AdminPrincipal)
	today := s.now().Format(dateLayout)

	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, pkgerrors.Validation("invalid status", pkgerrors.FieldError{Field: "status", Message: "unknown status"})
		}
		order.Status = *input.Status
		for i := range order.Items {
			if *input.Status == enums.OrderStatusCancelled || order.Items[i].Status != enums.OrderStatusCancelled {
				order.Items[i].Status = *input.Status
			}
		}
	}
	if input.PriceApprovalStatus != nil {
		if !isAdmin {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can change price approval")
		}
		if !input.PriceApprovalStatus.IsValid() {
			return nil, pkgerrors.Validation("invalid price approval status", pkgerrors.FieldError{Field: "priceApprovalStatus", Message: "unknown status"})
		}
		order.PriceApprovalStatus = *input.PriceApprovalStatus
		for i := range order.Items {
			if order.Items[i].Status != enums.OrderStatusCancelled {
				setApproval(&order.Items[i], *input.PriceApprovalStatus, today)
			}
		}
	}
	setString(&order.ConfirmationDate, input.ConfirmationDate)
	setString(&order.ShippingDate, input.ShippingDate)
	setString(&order.ArrivalDate, input.ArrivalDate)
	setString(&order.InvoiceNumber, input.InvoiceNumber)
	setString(&order.Notes, input.Notes)
	if input.TransferAmount != nil {
		if input.TransferAmount.IsNegative() {
			return nil, pkgerrors.Validation("invalid transfer amount", pkgerrors.FieldError{Field: "transferAmount", Message: "must be zero or greater"})
		}
		order.TransferAmount = decimal.NewNullDecimal(input.TransferAmount.Round(2))
	}

	if input.ItemIndex != nil {
		item, err := itemAt(order, *input.ItemIndex)
		if err != nil {
			return nil, err
		}
		if err := applyItemPatch(item, *input.Item, isAdmin, today, "item"); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if input.Items == nil {
		return nil, nil
	}
	return s.replaceItems(ctx, tx, order, input.Items, isAdmin, today)
}

func (s *service) replaceItems(ctx context.Context, tx *gorm.DB, order *models.Order, entries []ItemInput, isAdmin bool, today string) ([]models.OrderItem, error) {
	if len(entries) == 0 {
		return nil, pkgerrors.Validation("items required", pkgerrors.FieldError{Field: "items", Message: "at least one item is required"})
	}

	existing := make(map[uuid.UUID]models.OrderItem, len(order.Items))
	for _, item := range order.Items {
		existing[item.ID] = item
	}
	used := make(map[uuid.UUID]bool, len(entries))

	next := make([]models.OrderItem, 0, len(entries))
	for i, entry := range entries {
		field := fmt.Sprintf("items[%d]", i)
		if entry.ID != nil {
			item, ok := existing[*entry.ID]
			if !ok {
				return nil, pkgerrors.Validation("unknown item", pkgerrors.FieldError{Field: field + ".id", Message: "item does not belong to this order"})
			}
			if used[item.ID] {
				return nil, pkgerrors.Validation("duplicate item", pkgerrors.FieldError{Field: field + ".id", Message: "item listed twice"})
			}
			used[item.ID] = true
			if err := applyItemPatch(&item, entry.ItemPatch, isAdmin, today, field); err != nil {
				return nil, err
			}
			next = append(next, item)
			continue
		}

		if entry.Quantity == nil || *entry.Quantity <= 0 {
			return nil, pkgerrors.Validation("invalid quantity", pkgerrors.FieldError{Field: field + ".quantity", Message: "must be greater than zero"})
		}
		resolved, err := s.catalog.ResolveForOrder(ctx, tx, product.ItemRef{
			ProductID:  entry.ProductID,
			ItemNumber: entry.ItemNumber,
			Name:       entry.ProductName,
		})
		if err != nil {
			return nil, err
		}
		item := newItem(resolved, *entry.Quantity, nil)
		if err := applyItemPatch(&item, entry.ItemPatch, isAdmin, today, field); err != nil {
			return nil, err
		}
		next = append(next, item)
	}

	var removed []models.OrderItem
	for _, item := range order.Items {
		if !used[item.ID] {
			removed = append(removed, item)
		}
	}
	order.Items = next
	return removed, nil
}

// reconcile brings every stock flag of order in line with its statuses:
// the order scope follows the order status, then each item follows
// holdsStock. Items whose quantity or price changed while holding stock are
// re-applied so their purchase rows stay accurate.
func (s *service) reconcile(ctx context.Context, tx *gorm.DB, before snapshot, order *models.Order) (stock.Result, error) {
	var moved stock.Result
	collect := func(result stock.Result, err error) error {
		if err != nil {
			return mapStockError(err)
		}
		moved.Movements = append(moved.Movements, result.Movements...)
		return nil
	}

	wasHeld, isHeld := before.status.HoldsStock(), order.Status.HoldsStock()
	switch {
	case !wasHeld && isHeld:
		if err := collect(s.stock.Apply(ctx, tx, stock.OrderScope(order.ID))); err != nil {
			return stock.Result{}, err
		}
	case wasHeld && !isHeld:
		if err := collect(s.stock.Reverse(ctx, tx, stock.OrderScope(order.ID))); err != nil {
			return stock.Result{}, err
		}
	}

	for _, item := range order.Items {
		scope := stock.ItemScope(order.ID, item.ID)
		if !holdsStock(order.Status, item.Status) {
			if err := collect(s.stock.Reverse(ctx, tx, scope)); err != nil {
				return stock.Result{}, err
			}
			continue
		}
		if prev, ok := before.items[item.ID]; ok && prev.adjusted && prev.changed(item) {
			if err := collect(s.stock.Reverse(ctx, tx, scope)); err != nil {
				return stock.Result{}, err
			}
		}
		if err := collect(s.stock.Apply(ctx, tx, scope)); err != nil {
			return stock.Result{}, err
		}
	}
	return moved, nil
}

// afterWrite queues the outbound side effects of an order mutation.
func (s *service) afterWrite(ctx context.Context, tx *gorm.DB, principal auth.Principal, order *models.Order, moved stock.Result, actor *outbox.ActorRef) error {
	if err := s.emitOrder(ctx, tx, enums.EventOrderUpdated, order, actor); err != nil {
		return err
	}
	if moved.Changed() {
		if err := s.catalog.AnnounceStock(ctx, tx, moved.ProductIDs(), actor); err != nil {
			return err
		}
	}
	return s.notifyCounterparty(ctx, tx, principal, order, enums.NotificationOrderUpdated,
		"Order "+order.OrderNumber+" updated",
		"Status: "+order.Status.String())
}

func (s *service) emitOrder(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, order *models.Order, actor *outbox.ActorRef) error {
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			VendorID:    order.VendorID,
			ClientID:    order.ClientID,
			Flow:        order.Flow,
			Status:      order.Status,
			TotalAmount: order.TotalAmount.StringFixed(2),
			ItemCount:   len(order.Items),
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order event")
	}
	return nil
}

// notifyCounterparty tells the other side of the order what happened: staff
// actions reach the vendor and client, everybody else reaches staff.
func (s *service) notifyCounterparty(ctx context.Context, tx *gorm.DB, principal auth.Principal, order *models.Order, kind enums.NotificationType, title, message string) error {
	var recipients []notifications.Recipient
	switch principal.(type) {
	case auth.AdminPrincipal:
		if order.VendorID != nil {
			recipients = append(recipients, notifications.Vendor(*order.VendorID))
		}
		if order.ClientID != nil {
			recipients = append(recipients, notifications.Client(*order.ClientID))
		}
	case auth.ClientPrincipal:
		recipients = append(recipients, notifications.Admins())
		if order.VendorID != nil {
			recipients = append(recipients, notifications.Vendor(*order.VendorID))
		}
	default:
		recipients = append(recipients, notifications.Admins())
	}

	link := "/orders/" + order.ID.String()
	for _, recipient := range recipients {
		_, err := s.notifier.Notify(ctx, tx, notifications.NotifyInput{
			Recipient: recipient,
			Type:      kind,
			Title:     title,
			Message:   message,
			Link:      &link,
			Actor:     outbox.ActorFrom(principal),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

type itemState struct {
	adjusted  bool
	quantity  int
	unitPrice decimal.NullDecimal
}

func (p itemState) changed(item models.OrderItem) bool {
	if p.quantity != item.Quantity || p.unitPrice.Valid != item.UnitPrice.Valid {
		return true
	}
	return p.unitPrice.Valid && !p.unitPrice.Decimal.Equal(item.UnitPrice.Decimal)
}

type snapshot struct {
	status enums.OrderStatus
	items  map[uuid.UUID]itemState
}

func snapshotOf(order *models.Order) snapshot {
	snap := snapshot{status: order.Status, items: make(map[uuid.UUID]itemState, len(order.Items))}
	for _, item := range order.Items {
		snap.items[item.ID] = itemState{adjusted: item.StockAdjusted, quantity: item.Quantity, unitPrice: item.UnitPrice}
	}
	return snap
}

func applyItemPatch(item *models.OrderItem, patch ItemPatch, isAdmin bool, today, field string) error {
	if patch.Status != nil {
		if !patch.Status.IsValid() {
			return pkgerrors.Validation("invalid status", pkgerrors.FieldError{Field: field + ".status", Message: "unknown status"})
		}
		item.Status = *patch.Status
	}
	if patch.Quantity != nil {
		if *patch.Quantity <= 0 {
			return pkgerrors.Validation("invalid quantity", pkgerrors.FieldError{Field: field + ".quantity", Message: "must be greater than zero"})
		}
		item.Quantity = *patch.Quantity
	}
	if patch.UnitPrice != nil {
		if patch.UnitPrice.IsNegative() {
			return pkgerrors.Validation("invalid unit price", pkgerrors.FieldError{Field: field + ".unitPrice", Message: "must be zero or greater"})
		}
		price := patch.UnitPrice.Round(2)
		repriced := !item.UnitPrice.Valid || !item.UnitPrice.Decimal.Equal(price)
		item.UnitPrice = decimal.NewNullDecimal(price)
		if repriced && !isAdmin && item.PriceApprovalStatus == enums.PriceApprovalApproved {
			item.PriceApprovalStatus = enums.PriceApprovalPending
		}
	}
	if patch.PriceApprovalStatus != nil && *patch.PriceApprovalStatus != item.PriceApprovalStatus {
		if !isAdmin {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only admins can change price approval")
		}
		if !patch.PriceApprovalStatus.IsValid() {
			return pkgerrors.Validation("invalid price approval status", pkgerrors.FieldError{Field: field + ".priceApprovalStatus", Message: "unknown status"})
		}
		setApproval(item, *patch.PriceApprovalStatus, today)
	}
	setString(&item.RejectionReason, patch.RejectionReason)
	setString(&item.ConfirmationDate, patch.ConfirmationDate)
	setString(&item.InvoiceNumber, patch.InvoiceNumber)
	setString(&item.ShippingDate, patch.ShippingDate)
	setString(&item.ArrivalDate, patch.ArrivalDate)
	setString(&item.Notes, patch.Notes)
	if patch.TransferAmount != nil {
		if patch.TransferAmount.IsNegative() {
			return pkgerrors.Validation("invalid transfer amount", pkgerrors.FieldError{Field: field + ".transferAmount", Message: "must be zero or greater"})
		}
		item.TransferAmount = decimal.NewNullDecimal(patch.TransferAmount.Round(2))
	}
	return nil
}

// setApproval records an approval decision; approving stamps the
// confirmation date when none was set.
func setApproval(item *models.OrderItem, status enums.PriceApprovalStatus, today string) {
	item.PriceApprovalStatus = status
	if status != enums.PriceApprovalApproved {
		return
	}
	item.RejectionReason = nil
	if item.ConfirmationDate == nil || strings.TrimSpace(*item.ConfirmationDate) == "" {
		stamp := today
		item.ConfirmationDate = &stamp
	}
}

// checkClientPatch limits clients to notes and cancellation.
func checkClientPatch(input UpdateOrderInput) error {
	forbidden := pkgerrors.New(pkgerrors.CodeForbidden, "clients can only cancel orders or edit notes")
	if input.Status != nil && *input.Status != enums.OrderStatusCancelled {
		return forbidden
	}
	if input.PriceApprovalStatus != nil || input.ConfirmationDate != nil || input.ShippingDate != nil ||
		input.ArrivalDate != nil || input.InvoiceNumber != nil || input.TransferAmount != nil || input.Items != nil {
		return forbidden
	}
	if input.Item != nil {
		patch := *input.Item
		if patch.Status != nil && *patch.Status != enums.OrderStatusCancelled {
			return forbidden
		}
		notesOnly := ItemPatch{Status: patch.Status, Notes: patch.Notes}
		if patch != notesOnly {
			return forbidden
		}
	}
	return nil
}

func authorize(principal auth.Principal, order *models.Order) error {
	switch p := principal.(type) {
	case auth.AdminPrincipal:
		return nil
	case auth.VendorPrincipal:
		if order.VendorID != nil && *order.VendorID == p.VendorID {
			return nil
		}
	case auth.ClientPrincipal:
		if order.ClientID != nil && *order.ClientID == p.UserID {
			return nil
		}
	case nil:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to you")
}

func validateCreate(input CreateOrderInput) error {
	var fields []pkgerrors.FieldError
	if len(input.Items) == 0 {
		fields = append(fields, pkgerrors.FieldError{Field: "items", Message: "at least one item is required"})
	}
	for i, line := range input.Items {
		field := fmt.Sprintf("items[%d]", i)
		if line.Quantity <= 0 {
			fields = append(fields, pkgerrors.FieldError{Field: field + ".quantity", Message: "must be greater than zero"})
		}
		if (line.ProductID == nil || *line.ProductID == uuid.Nil) && strings.TrimSpace(line.ItemNumber) == "" {
			fields = append(fields, pkgerrors.FieldError{Field: field + ".itemNumber", Message: "productId or itemNumber is required"})
		}
	}
	if len(fields) > 0 {
		return pkgerrors.Validation("invalid order", fields...)
	}
	return nil
}

func newItem(p *models.Product, quantity int, notes *string) models.OrderItem {
	return models.OrderItem{
		ProductID:           p.ID,
		ItemNumber:          p.ItemNumber,
		ProductName:         p.Name,
		Quantity:            quantity,
		TotalPrice:          decimal.Zero,
		Status:              enums.OrderStatusPending,
		PriceApprovalStatus: enums.PriceApprovalPending,
		Notes:               notes,
	}
}

func itemAt(order *models.Order, index int) (*models.OrderItem, error) {
	if index < 0 || index >= len(order.Items) {
		return nil, pkgerrors.Validation("item index out of range", pkgerrors.FieldError{
			Field:   "itemIndex",
			Message: fmt.Sprintf("must be between 0 and %d", len(order.Items)-1),
		})
	}
	return &order.Items[index], nil
}

func distinctProducts(items []models.OrderItem) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(items))
	var ids []uuid.UUID
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}

// setString applies an optional patch; an empty string clears the field.
func setString(target **string, value *string) {
	if value == nil {
		return
	}
	*target = optionalString(value)
}

func optionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func mapOrderLookup(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func mapStockError(err error) error {
	if errors.Is(err, stock.ErrOrderNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile stock")
}
