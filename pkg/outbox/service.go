package outbox

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
)

const currentVersion = 1

// DomainEvent is what a service announces. Data is marshalled into the
// envelope's data field as is.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

// Emitter is what domain services depend on to queue events.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error
}

// Service turns domain events into outbox rows.
type Service struct {
	repo  *Repository
	logg  *logger.Logger
	now   func() time.Time
	newID func() uuid.UUID
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{repo: repo, logg: logg, now: time.Now, newID: uuid.New}
}

// Emit writes event through tx, so the row only becomes visible to the
// dispatcher if the caller's transaction commits.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	row, err := s.encode(event)
	if err != nil {
		return fmt.Errorf("outbox %s: %w", event.EventType, err)
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return err
	}
	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"event_id":     row.ID.String(),
		"event_type":   row.EventType,
		"aggregate":    row.AggregateType,
		"aggregate_id": row.AggregateID.String(),
	}), "outbox event queued")
	return nil
}

func (s *Service) encode(event DomainEvent) (models.OutboxEvent, error) {
	switch {
	case !event.EventType.IsValid():
		return models.OutboxEvent{}, fmt.Errorf("unknown event type %q", event.EventType)
	case !event.AggregateType.IsValid():
		return models.OutboxEvent{}, fmt.Errorf("unknown aggregate type %q", event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return models.OutboxEvent{}, errors.New("aggregate id is required")
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("marshal data: %w", err)
	}
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = s.now()
	}
	id := s.newID()
	body, err := json.Marshal(PayloadEnvelope{
		Version:    cmp.Or(event.Version, currentVersion),
		EventID:    id.String(),
		OccurredAt: occurred.UTC(),
		Actor:      event.Actor,
		Data:       data,
	})
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("marshal envelope: %w", err)
	}
	return models.OutboxEvent{
		ID:            id,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       body,
	}, nil
}
