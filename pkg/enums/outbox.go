package enums

import "slices"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "order"
	AggregateProduct OutboxAggregateType = "product"
)

var aggregateTypes = []OutboxAggregateType{AggregateOrder, AggregateProduct}

func (a OutboxAggregateType) IsValid() bool { return slices.Contains(aggregateTypes, a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", aggregateTypes, value)
}

// OutboxEventType maps to the event_type column of outbox_events. Each type
// is registered with a payload shape and topic in pkg/outbox/registry.
type OutboxEventType string

const (
	EventOrderConfirmed         OutboxEventType = "order_confirmed"
	EventOrderApproved          OutboxEventType = "order_approved"
	EventOrderRejected          OutboxEventType = "order_rejected"
	EventOrderCompleted         OutboxEventType = "order_completed"
	EventOrderPendingNudge      OutboxEventType = "order_pending_nudge"
	EventProductApprovalChanged OutboxEventType = "product_approval_changed"
)

var eventTypes = []OutboxEventType{
	EventOrderConfirmed,
	EventOrderApproved,
	EventOrderRejected,
	EventOrderCompleted,
	EventOrderPendingNudge,
	EventProductApprovalChanged,
}

func (e OutboxEventType) IsValid() bool { return slices.Contains(eventTypes, e) }

// Aggregate is the aggregate kind events of this type are keyed by.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	if e == EventProductApprovalChanged {
		return AggregateProduct
	}
	return AggregateOrder
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", eventTypes, value)
}
