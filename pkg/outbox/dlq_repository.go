package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
)

// ErrNotDeadLettered is returned by Requeue when the event has no DLQ entry
// or its outbox row is gone.
var ErrNotDeadLettered = errors.New("event is not dead-lettered")

// DLQRepository stores events the dispatcher stopped retrying and lets an
// operator put them back in line.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx records a dead letter inside the dispatcher's batch transaction.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil {
		msg := truncate(*entry.ErrorMessage)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

// FindByEventID returns nil, nil when the event never reached the DLQ.
func (r *DLQRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var entry models.OutboxDLQ
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns the newest dead letters first.
func (r *DLQRepository) List(ctx context.Context, limit int) ([]models.OutboxDLQ, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []models.OutboxDLQ
	err := r.db.WithContext(ctx).
		Order("failed_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// Requeue clears the attempt counter on the original outbox row and drops its
// DLQ entries in one transaction. Sinks that already delivered the event are
// still skipped by the delivery guard.
func (r *DLQRepository) Requeue(ctx context.Context, eventID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dropped := tx.Where("event_id = ?", eventID).Delete(&models.OutboxDLQ{})
		if dropped.Error != nil {
			return dropped.Error
		}
		if dropped.RowsAffected == 0 {
			return fmt.Errorf("%s: %w", eventID, ErrNotDeadLettered)
		}
		reset := tx.Model(&models.OutboxEvent{}).
			Where("id = ? AND published_at IS NULL", eventID).
			Updates(map[string]any{"attempt_count": 0, "last_error": nil})
		if reset.Error != nil {
			return reset.Error
		}
		if reset.RowsAffected == 0 {
			return fmt.Errorf("%s: outbox row missing: %w", eventID, ErrNotDeadLettered)
		}
		return nil
	})
}

// RequeueAll requeues every dead letter and reports how many were moved.
func (r *DLQRepository) RequeueAll(ctx context.Context) (int, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&models.OutboxDLQ{}).Distinct().Pluck("event_id", &ids).Error; err != nil {
		return 0, err
	}
	moved := 0
	for _, id := range ids {
		if err := r.Requeue(ctx, id); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}
