// Package registry maps outbox event types to their topic and payload schema
// and decodes stored rows before they are published.
package registry

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox/payloads"
)

type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	newPayload    func() any
}

func describe[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:     eventType,
		AggregateType: aggregate,
		Topic:         topic,
		newPayload:    func() any { return new(T) },
	}
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	// Payload is a pointer to the typed struct for the event, e.g. *payloads.OrderApprovedEvent.
	Payload any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a failure that publishing again cannot fix.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

// NewEventRegistry wires every event type to its topic. Order events go to the
// orders topic; product events go to the products topic when one is set.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.OrdersTopic == "" {
		return nil, fmt.Errorf("orders topic is required")
	}
	orders := cfg.OrdersTopic
	products := cfg.ProductsTopic
	if products == "" {
		products = orders
	}

	descriptors := []EventDescriptor{
		describe[payloads.OrderConfirmedEvent](enums.EventOrderConfirmed, enums.AggregateOrder, orders),
		describe[payloads.OrderApprovedEvent](enums.EventOrderApproved, enums.AggregateOrder, orders),
		describe[payloads.OrderRejectedEvent](enums.EventOrderRejected, enums.AggregateOrder, orders),
		describe[payloads.OrderCompletedEvent](enums.EventOrderCompleted, enums.AggregateOrder, orders),
		describe[payloads.OrderPendingNudgeEvent](enums.EventOrderPendingNudge, enums.AggregateOrder, orders),
		describe[payloads.ProductApprovalChangedEvent](enums.EventProductApprovalChanged, enums.AggregateProduct, products),
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	for _, d := range descriptors {
		reg.entries[d.EventType] = d
	}
	return reg, nil
}

// Topics lists the distinct topics in sorted order.
func (r *EventRegistry) Topics() []string {
	topics := make([]string, 0, len(r.entries))
	for _, d := range r.entries {
		topics = append(topics, d.Topic)
	}
	slices.Sort(topics)
	return slices.Compact(topics)
}

// Resolve checks the row against its descriptor and decodes the typed payload.
// Every failure is non-retryable: the stored bytes will not change.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	d, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if d.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("%s expects aggregate %s, row has %s", event.EventType, d.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s row has no aggregate_id", event.EventType))
	}

	env, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}
	payload := d.newPayload()
	if err := json.Unmarshal(env.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: d, Envelope: env, Payload: payload}, nil
}
