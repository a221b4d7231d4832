package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	"github.com/angelmondragon/vendorcrm-backend/pkg/pagination"
)

// Repository exposes persistence helpers for notifications.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, params listNotificationsParams) ([]models.Notification, error)
	CountUnread(ctx context.Context, recipient Recipient) (int64, error)
	MarkRead(ctx context.Context, recipient Recipient, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error)
	MarkAllRead(ctx context.Context, recipient Recipient, now time.Time) (int64, error)
	PurgeReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a notifications repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listNotificationsParams struct {
	Recipient  Recipient
	Limit      int
	Cursor     *pagination.Cursor
	UnreadOnly bool
}

type notificationMarkResult struct {
	Updated bool
	Found   bool
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

// List returns up to Limit+1 rows so the caller can detect a next page.
func (r *repositoryImpl) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, error) {
	query := r.scoped(ctx, params.Recipient)
	if params.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}
	query = pagination.Apply(query, "", params.Cursor, params.Limit)

	var notifications []models.Notification
	if err := query.Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *repositoryImpl) CountUnread(ctx context.Context, recipient Recipient) (int64, error) {
	var count int64
	err := r.scoped(ctx, recipient).Where("read_at IS NULL").Count(&count).Error
	return count, err
}

func (r *repositoryImpl) MarkRead(ctx context.Context, recipient Recipient, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	result := r.scoped(ctx, recipient).
		Where("id = ? AND read_at IS NULL", notificationID).
		UpdateColumn("read_at", now)
	if result.Error != nil {
		return notificationMarkResult{}, result.Error
	}
	if result.RowsAffected > 0 {
		return notificationMarkResult{Updated: true, Found: true}, nil
	}

	// Nothing changed: either it was already read or it is not visible here.
	var visible int64
	err := r.scoped(ctx, recipient).Where("id = ?", notificationID).Count(&visible).Error
	return notificationMarkResult{Found: visible > 0}, err
}

func (r *repositoryImpl) MarkAllRead(ctx context.Context, recipient Recipient, now time.Time) (int64, error) {
	result := r.scoped(ctx, recipient).
		Where("read_at IS NULL").
		UpdateColumn("read_at", now)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// PurgeReadBefore deletes notifications read before cutoff. Unread rows are kept.
func (r *repositoryImpl) PurgeReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("read_at IS NOT NULL AND read_at < ?", cutoff).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}

// scoped restricts a query to what recipient may read. Staff see broadcast
// rows (no recipient) plus rows addressed to them personally.
func (r *repositoryImpl) scoped(ctx context.Context, recipient Recipient) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Notification{}).Where("audience = ?", recipient.Audience)
	if recipient.Audience == enums.AudienceAdmins {
		if recipient.ID != nil {
			return query.Where("recipient_id IS NULL OR recipient_id = ?", *recipient.ID)
		}
		return query.Where("recipient_id IS NULL")
	}
	if recipient.ID == nil {
		return query.Where("1 = 0")
	}
	return query.Where("recipient_id = ?", *recipient.ID)
}
