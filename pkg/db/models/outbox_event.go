package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
)

// OutboxEvent is one queued domain event. It is inserted in the same
// transaction as the change it describes and stays until the dispatcher marks
// it published (or parks it at the attempt ceiling) and the retention job
// purges it.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:text;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:text;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	// Payload holds a PayloadEnvelope.
	Payload      json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	AttemptCount int             `gorm:"column:attempt_count;not null;default:0"`
	LastError    *string         `gorm:"column:last_error"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	PublishedAt  *time.Time      `gorm:"column:published_at"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }
