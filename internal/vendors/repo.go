package vendors

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	"github.com/angelmondragon/vendorcrm-backend/pkg/pagination"
)

// Repository persists vendors and answers the order-activity questions
// shown next to them.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, vendor *models.Vendor) error {
	return r.db.WithContext(ctx).Create(vendor).Error
}

// FindByID returns an active vendor.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	err := r.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&vendor).Error
	if err != nil {
		return nil, err
	}
	return &vendor, nil
}

// FindByUsername returns the vendor regardless of its state; callers decide.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

// FindByUserID resolves the vendor linked to a vendor-role user.
func (r *Repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *Repository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Vendor{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

type vendorListQuery struct {
	Query  string
	Status *enums.VendorStatus
	Cursor *pagination.Cursor
	Limit  int
}

func (r *Repository) List(ctx context.Context, q vendorListQuery) ([]models.Vendor, error) {
	query := r.db.WithContext(ctx).Model(&models.Vendor{}).Where("vendors.is_active = ?", true)
	if q.Status != nil {
		query = query.Where("vendors.status = ?", *q.Status)
	}
	query = pagination.Search(query, q.Query, "vendors.name", "vendors.username")
	query = pagination.Apply(query, "vendors", q.Cursor, q.Limit)

	var rows []models.Vendor
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Save writes profile columns. Credentials and presence stamps have their
// own writers.
func (r *Repository) Save(ctx context.Context, vendor *models.Vendor) error {
	return r.db.WithContext(ctx).
		Omit("password_hash", "username", "last_seen_at", "last_orders_read_at", "created_at").
		Save(vendor).Error
}

func (r *Repository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	return r.db.WithContext(ctx).Model(&models.Vendor{}).Where("id = ?", id).Update("password_hash", hash).Error
}

// Touch sets one of the presence timestamps.
func (r *Repository) Touch(ctx context.Context, id uuid.UUID, column string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Vendor{}).
		Where("id = ? AND is_active = ?", id, true).
		UpdateColumn(column, at)
	return res.RowsAffected > 0, res.Error
}

func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Vendor{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]any{"is_active": false, "status": enums.VendorStatusInactive})
	return res.RowsAffected > 0, res.Error
}

type unreadRow struct {
	VendorID uuid.UUID
	Count    int64
}

// UnreadOrderCounts counts, per vendor, active orders touched after the
// vendor last opened its order list.
func (r *Repository) UnreadOrderCounts(ctx context.Context, vendorIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(vendorIDs))
	if len(vendorIDs) == 0 {
		return out, nil
	}
	var rows []unreadRow
	err := r.db.WithContext(ctx).
		Table("orders").
		Select("orders.vendor_id AS vendor_id, COUNT(*) AS count").
		Joins("JOIN vendors ON vendors.id = orders.vendor_id").
		Where("orders.is_active = ? AND orders.vendor_id IN ?", true, vendorIDs).
		Where("vendors.last_orders_read_at IS NULL OR orders.updated_at > vendors.last_orders_read_at").
		Group("orders.vendor_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.VendorID] = row.Count
	}
	return out, nil
}
