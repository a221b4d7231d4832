package product

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	"github.com/angelmondragon/vendorcrm-backend/pkg/pagination"
)

// Repository wires together all product-related persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new product row.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	if product.Images == nil {
		product.Images = pq.StringArray{}
	}
	return r.db.WithContext(ctx).Create(product).Error
}

// Save persists catalog fields. Stock and images have their own atomic writers.
func (r *Repository) Save(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).
		Omit("stock", "images", "created_at").
		Save(product).
		Error
}

// FindByID loads the product regardless of its active flag.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads every product in ids; missing ids are skipped.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("item_number ASC").Find(&rows).Error
	return rows, err
}

// FindActiveByItemNumber resolves the single active product carrying itemNumber.
func (r *Repository) FindActiveByItemNumber(ctx context.Context, itemNumber string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("item_number = ? AND is_active = ?", itemNumber, true).
		First(&product).
		Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ItemNumberTaken reports whether another active product already uses itemNumber.
func (r *Repository) ItemNumberTaken(ctx context.Context, itemNumber string, excludeID *uuid.UUID) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("item_number = ? AND is_active = ?", itemNumber, true)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

type productListQuery struct {
	Query           string
	VisibleOnly     bool
	IncludeInactive bool
	LowStockOnly    bool
	Cursor          *pagination.Cursor
	Limit           int
}

// List returns up to Limit+1 products in keyset order.
func (r *Repository) List(ctx context.Context, q productListQuery) ([]models.Product, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{})
	if !q.IncludeInactive {
		query = query.Where("is_active = ?", true)
	}
	if q.VisibleOnly {
		query = query.Where("is_visible = ?", true)
	}
	if q.LowStockOnly {
		query = query.Where("stock <= reorder_level")
	}
	query = pagination.Search(query, q.Query, "item_number", "name")
	query = pagination.Apply(query, "", q.Cursor, q.Limit)

	var rows []models.Product
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListLowStock returns every active product at or below its reorder level.
func (r *Repository) ListLowStock(ctx context.Context) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND stock <= reorder_level", true).
		Order("stock ASC").
		Order("item_number ASC").
		Find(&rows).
		Error
	return rows, err
}

// SoftDelete clears the active flag, freeing the item number for reuse.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// PrependImage puts path at the head of the gallery. The row is locked for
// the read-modify-write, so the caller must hold a transaction.
func (r *Repository) PrependImage(ctx context.Context, id uuid.UUID, path string) error {
	var product models.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "images").
		First(&product, "id = ?", id).
		Error
	if err != nil {
		return err
	}

	images := make(pq.StringArray, 0, len(product.Images)+1)
	images = append(images, path)
	for _, existing := range product.Images {
		if existing != path {
			images = append(images, existing)
		}
	}
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Update("images", images).
		Error
}

// StockFromPurchases derives stock from the purchase history: supply
// purchases add, fulfillment purchases subtract.
func (r *Repository) StockFromPurchases(ctx context.Context, productID uuid.UUID) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.ProductPurchase{}).
		Select("COALESCE(SUM(CASE WHEN flow = ? THEN quantity ELSE -quantity END), 0)", enums.OrderFlowSupply).
		Where("product_id = ?", productID).
		Scan(&total).
		Error
	return int(total), err
}

// RestoreZeroStock writes stock only when the stored value is still zero, so
// a concurrent reconciliation is never clobbered.
func (r *Repository) RestoreZeroStock(ctx context.Context, productID uuid.UUID, stock int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock = 0", productID).
		UpdateColumn("stock", stock)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
