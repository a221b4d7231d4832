package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	"github.com/angelmondragon/vendorcrm-backend/pkg/outbox"
	"github.com/angelmondragon/vendorcrm-backend/pkg/outbox/payloads"
)

// Sink names the delivery targets of the dispatcher.
type Sink string

const (
	SinkRealtime    Sink = "realtime"
	SinkWhatsApp    Sink = "whatsapp"
	SinkDomainTopic Sink = "domain_topic"
)

// EventDescriptor links an event type to its aggregate, sinks and payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Sinks          []Sink
	PayloadFactory func() payloads.Routable
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    payloads.Routable
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// NewEventRegistry builds the routing table. Every event goes to the
// real-time stream and the domain topic; demand events also reach WhatsApp.
func NewEventRegistry() *EventRegistry {
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	common := []Sink{SinkRealtime, SinkDomainTopic}
	withWhatsApp := []Sink{SinkRealtime, SinkWhatsApp, SinkDomainTopic}

	for _, eventType := range []enums.OutboxEventType{enums.EventOrderCreated, enums.EventOrderUpdated, enums.EventOrderDeleted} {
		reg.register(EventDescriptor{
			EventType:      eventType,
			AggregateType:  enums.AggregateOrder,
			Sinks:          common,
			PayloadFactory: func() payloads.Routable { return &payloads.OrderEvent{} },
		})
	}
	reg.register(EventDescriptor{
		EventType:      enums.EventProductUpdated,
		AggregateType:  enums.AggregateProduct,
		Sinks:          common,
		PayloadFactory: func() payloads.Routable { return &payloads.ProductUpdatedEvent{} },
	})
	reg.register(EventDescriptor{
		EventType:      enums.EventDemandCreated,
		AggregateType:  enums.AggregateDemand,
		Sinks:          withWhatsApp,
		PayloadFactory: func() payloads.Routable { return &payloads.DemandEvent{} },
	})
	reg.register(EventDescriptor{
		EventType:      enums.EventDemandUpdated,
		AggregateType:  enums.AggregateDemand,
		Sinks:          common,
		PayloadFactory: func() payloads.Routable { return &payloads.DemandEvent{} },
	})
	reg.register(EventDescriptor{
		EventType:      enums.EventDemandReport,
		AggregateType:  enums.AggregateDemand,
		Sinks:          []Sink{SinkWhatsApp, SinkDomainTopic},
		PayloadFactory: func() payloads.Routable { return &payloads.DemandReportEvent{} },
	})
	reg.register(EventDescriptor{
		EventType:      enums.EventNotificationPush,
		AggregateType:  enums.AggregateNotification,
		Sinks:          []Sink{SinkRealtime},
		PayloadFactory: func() payloads.Routable { return &payloads.NotificationPushEvent{} },
	})
	return reg
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}
