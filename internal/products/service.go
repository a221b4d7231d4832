package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorcrm-backend/internal/notifications"
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

const placeholderSavepoint = "product_placeholder"

// Service exposes catalog management and the hooks orders use to resolve
// line items and announce stock movements.
type Service interface {
	CreateProduct(ctx context.Context, principal auth.Principal, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, principal auth.Principal, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, principal auth.Principal, productID uuid.UUID) error
	GetProduct(ctx context.Context, principal auth.Principal, productID uuid.UUID) (*ProductDTO, error)
	ListProducts(ctx context.Context, principal auth.Principal, input ListProductsInput) (*ProductListResult, error)
	LowStock(ctx context.Context) ([]ProductDTO, error)
	AddImage(ctx context.Context, productID uuid.UUID, path string) (*ProductDTO, error)

	ResolveForOrder(ctx context.Context, tx *gorm.DB, ref ItemRef) (*models.Product, error)
	AnnounceStock(ctx context.Context, tx *gorm.DB, productIDs []uuid.UUID, actor *outbox.ActorRef) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	Notify(ctx context.Context, tx *gorm.DB, input notifications.NotifyInput) (*models.Notification, error)
}

// service implements the product service.
type service struct {
	repo     *Repository
	tx       txRunner
	outbox   outbox.Emitter
	notifier notifier
	logg     *logger.Logger
}

// NewService constructs a product service instance.
func NewService(repo *Repository, tx txRunner, emitter outbox.Emitter, notifier notifier, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, tx: tx, outbox: emitter, notifier: notifier, logg: logg}, nil
}

// CreateProduct sets the opening stock; afterwards stock only moves through orders.
func (s *service) CreateProduct(ctx context.Context, principal auth.Principal, input CreateProductInput) (*ProductDTO, error) {
	itemNumber := strings.TrimSpace(input.ItemNumber)
	name := strings.TrimSpace(input.Name)
	var fields []pkgerrors.FieldError
	if itemNumber == "" {
		fields = append(fields, pkgerrors.FieldError{Field: "itemNumber", Message: "is required"})
	}
	if name == "" {
		fields = append(fields, pkgerrors.FieldError{Field: "name", Message: "is required"})
	}
	if input.Stock < 0 {
		fields = append(fields, pkgerrors.FieldError{Field: "stock", Message: "must be zero or greater"})
	}
	if input.ReorderLevel < 0 {
		fields = append(fields, pkgerrors.FieldError{Field: "reorderLevel", Message: "must be zero or greater"})
	}
	if input.SellingPrice != nil && input.SellingPrice.IsNegative() {
		fields = append(fields, pkgerrors.FieldError{Field: "sellingPrice", Message: "must be zero or greater"})
	}
	if len(fields) > 0 {
		return nil, pkgerrors.Validation("invalid product", fields...)
	}

	product := &models.Product{
		ItemNumber:   itemNumber,
		Name:         name,
		Description:  trimmedPtr(input.Description),
		Images:       pq.StringArray{},
		SellingPrice: nullDecimal(input.SellingPrice),
		Stock:        input.Stock,
		ReorderLevel: input.ReorderLevel,
		IsVisible:    input.IsVisible,
		IsActive:     true,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		taken, err := repo.ItemNumberTaken(ctx, itemNumber, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check item number")
		}
		if taken {
			return itemNumberConflict(itemNumber)
		}
		if err := repo.Create(ctx, product); err != nil {
			if db.IsUniqueViolation(err, "") {
				return itemNumberConflict(itemNumber)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
		}
		return s.emitProductUpdated(ctx, tx, *product, outbox.ActorFrom(principal))
	})
	if err != nil {
		return nil, err
	}

	dto := toDTO(*product)
	return &dto, nil
}

func (s *service) UpdateProduct(ctx context.Context, principal auth.Principal, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	var updated models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindByID(ctx, productID)
		if err != nil {
			return mapLookupError(err, "load product")
		}
		if !product.IsActive {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}

		if input.ItemNumber != nil {
			itemNumber := strings.TrimSpace(*input.ItemNumber)
			if itemNumber == "" {
				return pkgerrors.Validation("invalid product", pkgerrors.FieldError{Field: "itemNumber", Message: "is required"})
			}
			if itemNumber != product.ItemNumber {
				taken, err := repo.ItemNumberTaken(ctx, itemNumber, &product.ID)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check item number")
				}
				if taken {
					return itemNumberConflict(itemNumber)
				}
				product.ItemNumber = itemNumber
			}
		}
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return pkgerrors.Validation("invalid product", pkgerrors.FieldError{Field: "name", Message: "is required"})
			}
			product.Name = name
		}
		if input.Description != nil {
			product.Description = trimmedPtr(input.Description)
		}
		switch {
		case input.ClearSellingPrice:
			product.SellingPrice = decimal.NullDecimal{}
		case input.SellingPrice != nil:
			if input.SellingPrice.IsNegative() {
				return pkgerrors.Validation("invalid product", pkgerrors.FieldError{Field: "sellingPrice", Message: "must be zero or greater"})
			}
			product.SellingPrice = nullDecimal(input.SellingPrice)
		}
		if input.ReorderLevel != nil {
			if *input.ReorderLevel < 0 {
				return pkgerrors.Validation("invalid product", pkgerrors.FieldError{Field: "reorderLevel", Message: "must be zero or greater"})
			}
			product.ReorderLevel = *input.ReorderLevel
		}
		if input.IsVisible != nil {
			product.IsVisible = *input.IsVisible
		}

		if err := repo.Save(ctx, product); err != nil {
			if db.IsUniqueViolation(err, "") {
				return itemNumberConflict(product.ItemNumber)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
		}
		if err := s.emitProductUpdated(ctx, tx, *product, outbox.ActorFrom(principal)); err != nil {
			return err
		}
		updated = *product
		return nil
	})
	if err != nil {
		return nil, err
	}

	dto := toDTO(updated)
	return &dto, nil
}

func (s *service) DeleteProduct(ctx context.Context, principal auth.Principal, productID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindByID(ctx, productID)
		if err != nil {
			return mapLookupError(err, "load product")
		}
		deleted, err := repo.SoftDelete(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
		}
		if !deleted {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		product.IsActive = false
		return s.emitProductUpdated(ctx, tx, *product, outbox.ActorFrom(principal))
	})
}

func (s *service) GetProduct(ctx context.Context, principal auth.Principal, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, mapLookupError(err, "load product")
	}
	if !canSee(principal, *product) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err := s.restoreStock(ctx, product); err != nil {
		return nil, err
	}
	dto := toDTO(*product)
	return &dto, nil
}

func (s *service) ListProducts(ctx context.Context, principal auth.Principal, input ListProductsInput) (*ProductListResult, error) {
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	staff := isStaff(principal)
	rows, err := s.repo.List(ctx, productListQuery{
		Query:           input.Query,
		VisibleOnly:     !staff,
		IncludeInactive: staff && input.IncludeInactive,
		LowStockOnly:    input.LowStockOnly,
		Cursor:          cursor,
		Limit:           input.Pagination.Limit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	page := pagination.Build(rows, input.Pagination.Limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	result := &ProductListResult{Items: make([]ProductDTO, 0, len(page.Items)), NextCursor: page.NextCursor}
	for i := range page.Items {
		if err := s.restoreStock(ctx, &page.Items[i]); err != nil {
			return nil, err
		}
		result.Items = append(result.Items, toDTO(page.Items[i]))
	}
	return result, nil
}

func (s *service) LowStock(ctx context.Context) ([]ProductDTO, error) {
	rows, err := s.repo.ListLowStock(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock products")
	}
	out := make([]ProductDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out, nil
}

// AddImage prepends path to the product gallery.
func (s *service) AddImage(ctx context.Context, productID uuid.UUID, path string) (*ProductDTO, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "image path required")
	}

	var product *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.PrependImage(ctx, productID, path); err != nil {
			return mapLookupError(err, "prepend product image")
		}
		var err error
		product, err = repo.FindByID(ctx, productID)
		if err != nil {
			return mapLookupError(err, "reload product")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := toDTO(*product)
	return &dto, nil
}

// ResolveForOrder maps an order line onto a product: by id, then by active
// item number, else a hidden placeholder is created. A concurrent creator of
// the same item number wins and its row is returned.
func (s *service) ResolveForOrder(ctx context.Context, tx *gorm.DB, ref ItemRef) (*models.Product, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	repo := s.repo.WithTx(tx)

	if ref.ProductID != nil && *ref.ProductID != uuid.Nil {
		product, err := repo.FindByID(ctx, *ref.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.Validation("unknown product", pkgerrors.FieldError{Field: "productId", Message: "product not found"})
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !product.IsActive {
			return nil, pkgerrors.Validation("unknown product", pkgerrors.FieldError{Field: "productId", Message: "product is inactive"})
		}
		return product, nil
	}

	itemNumber := strings.TrimSpace(ref.ItemNumber)
	if itemNumber == "" {
		return nil, pkgerrors.Validation("item reference required", pkgerrors.FieldError{Field: "itemNumber", Message: "productId or itemNumber is required"})
	}

	product, err := repo.FindActiveByItemNumber(ctx, itemNumber)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup product by item number")
	}

	name := strings.TrimSpace(ref.Name)
	if name == "" {
		name = itemNumber
	}
	placeholder := &models.Product{
		ItemNumber: itemNumber,
		Name:       name,
		Images:     pq.StringArray{},
		IsVisible:  false,
		IsActive:   true,
	}

	if err := tx.SavePoint(placeholderSavepoint).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "savepoint")
	}
	if err := repo.Create(ctx, placeholder); err != nil {
		if !db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create placeholder product")
		}
		if err := tx.RollbackTo(placeholderSavepoint).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rollback savepoint")
		}
		existing, err := repo.FindActiveByItemNumber(ctx, itemNumber)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload product by item number")
		}
		return existing, nil
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"product_id":  placeholder.ID.String(),
		"item_number": itemNumber,
	}), "product.placeholder_created")
	return placeholder, nil
}

// AnnounceStock publishes the current stock of every product touched by a
// reconciliation and alerts staff about products that reached their reorder level.
func (s *service) AnnounceStock(ctx context.Context, tx *gorm.DB, productIDs []uuid.UUID, actor *outbox.ActorRef) error {
	if len(productIDs) == 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}

	rows, err := s.repo.WithTx(tx).FindByIDs(ctx, productIDs)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	for _, row := range rows {
		if err := s.emitProductUpdated(ctx, tx, row, actor); err != nil {
			return err
		}
		if row.ReorderLevel <= 0 || row.Stock > row.ReorderLevel {
			continue
		}
		link := "/products/" + row.ID.String()
		_, err := s.notifier.Notify(ctx, tx, notifications.NotifyInput{
			Recipient: notifications.Admins(),
			Type:      enums.NotificationLowStock,
			Title:     "Low stock: " + row.ItemNumber,
			Message:   fmt.Sprintf("%s has %d units left (reorder level %d)", row.Name, row.Stock, row.ReorderLevel),
			Link:      &link,
			Actor:     actor,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// restoreStock recomputes a zero stock from the purchase history.
func (s *service) restoreStock(ctx context.Context, product *models.Product) error {
	if product.Stock != 0 {
		return nil
	}
	derived, err := s.repo.StockFromPurchases(ctx, product.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "derive stock from purchases")
	}
	if derived == 0 {
		return nil
	}
	restored, err := s.repo.RestoreZeroStock(ctx, product.ID, derived)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore product stock")
	}
	if restored {
		product.Stock = derived
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"product_id": product.ID.String(),
			"stock":      derived,
		}), "product.stock_restored")
		return nil
	}

	fresh, err := s.repo.FindByID(ctx, product.ID)
	if err != nil {
		return mapLookupError(err, "reload product")
	}
	product.Stock = fresh.Stock
	return nil
}

func (s *service) emitProductUpdated(ctx context.Context, tx *gorm.DB, product models.Product, actor *outbox.ActorRef) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventProductUpdated,
		AggregateType: enums.AggregateProduct,
		AggregateID:   product.ID,
		Actor:         actor,
		Data: payloads.ProductUpdatedEvent{
			ProductID:    product.ID,
			ItemNumber:   product.ItemNumber,
			Name:         product.Name,
			Stock:        product.Stock,
			ReorderLevel: product.ReorderLevel,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit product event")
	}
	return nil
}

func canSee(principal auth.Principal, product models.Product) bool {
	if isStaff(principal) {
		return true
	}
	return product.IsActive && product.IsVisible
}

func isStaff(principal auth.Principal) bool {
	_, ok := principal.(auth.AdminPrincipal)
	return ok
}

func itemNumberConflict(itemNumber string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "item number already in use").
		WithDetails([]pkgerrors.FieldError{{Field: "itemNumber", Message: fmt.Sprintf("%q is already used by an active product", itemNumber)}})
}

func mapLookupError(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func nullDecimal(value *decimal.Decimal) decimal.NullDecimal {
	if value == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: value.Round(2), Valid: true}
}
