package main

import (
	"context"
	"fmt"

	"github.com/angelmondragon/vendorcrm-backend/internal/realtime"
	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/vendorcrm-backend/pkg/outbox/registry"
	"github.com/angelmondragon/vendorcrm-backend/pkg/pubsub"
	"github.com/angelmondragon/vendorcrm-backend/pkg/whatsapp"
)

// sink delivers one resolved event to an external target.
type sink interface {
	Name() registry.Sink
	Deliver(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error
}

type realtimePublisher interface {
	Publish(ctx context.Context, msg realtime.Message) error
}

type realtimeSink struct {
	publisher realtimePublisher
}

func (realtimeSink) Name() registry.Sink { return registry.SinkRealtime }

func (s realtimeSink) Deliver(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	return s.publisher.Publish(ctx, realtime.Message{
		ID:         resolved.Envelope.EventID,
		Type:       event.EventType,
		OccurredAt: resolved.Envelope.OccurredAt,
		Route:      resolved.Payload.EventRoute(),
		Data:       resolved.Envelope.Data,
	})
}

type broadcaster interface {
	Broadcast(ctx context.Context, body string) error
}

type whatsappSink struct {
	client broadcaster
}

func (whatsappSink) Name() registry.Sink { return registry.SinkWhatsApp }

func (s whatsappSink) Deliver(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	var body string
	switch p := resolved.Payload.(type) {
	case *payloads.DemandReportEvent:
		body = whatsapp.FormatDemandReport(*p)
	case *payloads.DemandEvent:
		body = whatsapp.FormatDemandCreated(*p)
	default:
		return registry.NewNonRetryableError(fmt.Errorf("no whatsapp template for %s", event.EventType))
	}
	if err := s.client.Broadcast(ctx, body); err != nil {
		if !whatsapp.IsRetryable(err) {
			return registry.NewNonRetryableError(err)
		}
		return err
	}
	return nil
}

type topicPublisher interface {
	Publish(ctx context.Context, msg pubsub.Message) error
}

type domainTopicSink struct {
	client topicPublisher
}

func (domainTopicSink) Name() registry.Sink { return registry.SinkDomainTopic }

func (s domainTopicSink) Deliver(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	return s.client.Publish(ctx, pubsub.Message{
		EventID:   resolved.Envelope.EventID,
		EventType: string(event.EventType),
		Aggregate: string(event.AggregateType),
		Data:      event.Payload,
	})
}
