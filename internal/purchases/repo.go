package purchases

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/pagination"
)

// Repository reads the purchase history written by stock reconciliation.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type purchaseListQuery struct {
	ProductID *uuid.UUID
	VendorID  *uuid.UUID
	OrderID   *uuid.UUID
	Cursor    *pagination.Cursor
	Limit     int
}

func (r *Repository) List(ctx context.Context, q purchaseListQuery) ([]models.ProductPurchase, error) {
	query := r.db.WithContext(ctx).Model(&models.ProductPurchase{})
	if q.ProductID != nil {
		query = query.Where("product_id = ?", *q.ProductID)
	}
	if q.VendorID != nil {
		query = query.Where("vendor_id = ?", *q.VendorID)
	}
	if q.OrderID != nil {
		query = query.Where("order_id = ?", *q.OrderID)
	}
	query = pagination.ApplyOn(query, "", "purchased_at", q.Cursor, q.Limit)

	var rows []models.ProductPurchase
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) ProductExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}
