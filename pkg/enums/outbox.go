package enums

import "slices"

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateProduct      OutboxAggregateType = "product"
	AggregateDemand       OutboxAggregateType = "demand"
	AggregateNotification OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateProduct,
	AggregateDemand,
	AggregateNotification,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// OutboxEventType doubles as the real-time channel event name.
type OutboxEventType string

const (
	EventOrderCreated     OutboxEventType = "orders:created"
	EventOrderUpdated     OutboxEventType = "orders:updated"
	EventOrderDeleted     OutboxEventType = "orders:deleted"
	EventProductUpdated   OutboxEventType = "products:updated"
	EventDemandCreated    OutboxEventType = "demands:created"
	EventDemandUpdated    OutboxEventType = "demands:updated"
	EventDemandReport     OutboxEventType = "demands:report"
	EventNotificationPush OutboxEventType = "notifications:push"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderUpdated,
	EventOrderDeleted,
	EventProductUpdated,
	EventDemandCreated,
	EventDemandUpdated,
	EventDemandReport,
	EventNotificationPush,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(value, validOutboxEventTypes, "event type")
}

type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
