package demands

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	"github.com/angelmondragon/vendorcrm-backend/pkg/pagination"
)

// Repository defines persistence operations for demands.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, demand *models.Demand) error
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Demand, error)
	Save(ctx context.Context, demand *models.Demand) error
	List(ctx context.Context, query demandListQuery) ([]models.Demand, error)
	PendingSummary(ctx context.Context) ([]summaryRow, error)
	ClientName(ctx context.Context, clientID uuid.UUID) (string, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, demand *models.Demand) error {
	return r.db.WithContext(ctx).Create(demand).Error
}

func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Demand, error) {
	var demand models.Demand
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&demand, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &demand, nil
}

func (r *repository) Save(ctx context.Context, demand *models.Demand) error {
	return r.db.WithContext(ctx).Omit("created_at").Save(demand).Error
}

type demandListQuery struct {
	ClientID *uuid.UUID
	Status   *enums.DemandStatus
	Cursor   *pagination.Cursor
	Limit    int
}

func (r *repository) List(ctx context.Context, q demandListQuery) ([]models.Demand, error) {
	query := r.db.WithContext(ctx).Model(&models.Demand{})
	if q.ClientID != nil {
		query = query.Where("demands.client_id = ?", *q.ClientID)
	}
	if q.Status != nil {
		query = query.Where("demands.status = ?", *q.Status)
	}
	query = pagination.Apply(query, "demands", q.Cursor, q.Limit)

	var rows []models.Demand
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

type summaryRow struct {
	ItemNumber  string
	ProductName string
	Quantity    int
	Requests    int
}

// PendingSummary totals pending demand per item number, largest first.
func (r *repository) PendingSummary(ctx context.Context) ([]summaryRow, error) {
	var rows []summaryRow
	err := r.db.WithContext(ctx).
		Model(&models.Demand{}).
		Select("item_number, MAX(product_name) AS product_name, SUM(quantity) AS quantity, COUNT(*) AS requests").
		Where("status = ?", enums.DemandStatusPending).
		Group("item_number").
		Order("quantity DESC, item_number ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *repository) ClientName(ctx context.Context, clientID uuid.UUID) (string, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Select("display_name", "username").First(&user, "id = ?", clientID).Error; err != nil {
		return "", err
	}
	if user.DisplayName != "" {
		return user.DisplayName, nil
	}
	return user.Username, nil
}
