package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	"github.com/angelmondragon/vendorcrm-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Save(ctx context.Context, order *models.Order) error
	SoftDelete(ctx context.Context, orderID uuid.UUID) error
	List(ctx context.Context, query orderListQuery) ([]models.Order, error)
	FindActiveVendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order together with its items.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	for i := range order.Items {
		order.Items[i].Position = i
	}
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", orderedItems).
		Where("id = ? AND is_active = ?", orderID, true).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindForUpdate locks the order row for the rest of the transaction.
func (r *repository) FindForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND is_active = ?", orderID, true).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Scopes(orderedItems).Where("order_id = ?", order.ID).Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// Save writes the order and its items and drops items no longer present.
// The stock_adjusted flags belong to the reconciler and are never written here.
func (r *repository) Save(ctx context.Context, order *models.Order) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit("stock_adjusted", "created_at", clause.Associations).Save(order).Error; err != nil {
		return err
	}

	keep := make([]uuid.UUID, 0, len(order.Items))
	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		item.Position = i
		if item.ID == uuid.Nil {
			if err := db.Create(item).Error; err != nil {
				return err
			}
		} else if err := db.Omit("stock_adjusted", "created_at").Save(item).Error; err != nil {
			return err
		}
		keep = append(keep, item.ID)
	}

	drop := db.Where("order_id = ?", order.ID)
	if len(keep) > 0 {
		drop = drop.Where("id NOT IN ?", keep)
	}
	return drop.Delete(&models.OrderItem{}).Error
}

func (r *repository) SoftDelete(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("is_active", false).Error
}

type orderListQuery struct {
	VendorID *uuid.UUID
	ClientID *uuid.UUID
	Status   *enums.OrderStatus
	Flow     *enums.OrderFlow
	Search   string
	Cursor   *pagination.Cursor
	Limit    int
}

// List returns up to Limit+1 orders with items, newest first.
func (r *repository) List(ctx context.Context, q orderListQuery) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Preload("Items", orderedItems).
		Where("orders.is_active = ?", true)
	if q.VendorID != nil {
		query = query.Where("orders.vendor_id = ?", *q.VendorID)
	}
	if q.ClientID != nil {
		query = query.Where("orders.client_id = ?", *q.ClientID)
	}
	if q.Status != nil {
		query = query.Where("orders.status = ?", *q.Status)
	}
	if q.Flow != nil {
		query = query.Where("orders.flow = ?", *q.Flow)
	}
	query = pagination.Search(query, q.Search, "orders.order_number", "COALESCE(orders.invoice_number, '')")
	query = pagination.Apply(query, "orders", q.Cursor, q.Limit)

	var rows []models.Order
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindActiveVendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ? AND status = ?", vendorID, true, enums.VendorStatusActive).
		First(&vendor).Error
	if err != nil {
		return nil, err
	}
	return &vendor, nil
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}
