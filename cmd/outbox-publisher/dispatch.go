package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox/registry"
)

type verdict int

const (
	verdictPublished verdict = iota
	verdictRetry
	verdictDeadLetter
)

// outcome is what happened to one row; settle turns it into writes.
type outcome struct {
	verdict  verdict
	reason   enums.OutboxDLQErrorReason
	err      error
	topic    string
	envelope outbox.PayloadEnvelope
}

func (r *Relay) dispatch(ctx context.Context, event models.OutboxEvent) outcome {
	resolved, err := r.registry.Resolve(event)
	if err != nil {
		return outcome{verdict: verdictDeadLetter, reason: enums.OutboxDLQReasonUndecodable, err: err}
	}
	o := outcome{topic: resolved.Descriptor.Topic, envelope: resolved.Envelope}

	err = r.sink.Send(ctx, o.topic, messageFor(event, resolved.Envelope))
	var permanent registry.NonRetryableError
	switch {
	case err == nil:
		o.verdict = verdictPublished
	case errors.As(err, &permanent):
		o.verdict, o.reason, o.err = verdictDeadLetter, enums.OutboxDLQReasonNonRetryable, err
	case event.AttemptCount+1 >= r.maxAttempts:
		o.verdict, o.reason = verdictDeadLetter, enums.OutboxDLQReasonMaxAttempts
		o.err = fmt.Errorf("gave up after %d attempts: %w", event.AttemptCount+1, err)
	default:
		o.verdict, o.err = verdictRetry, err
	}
	return o
}

func (r *Relay) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, o outcome) error {
	ctx = r.logg.WithFields(ctx, r.fields(event, o))
	eventType := string(event.EventType)

	switch o.verdict {
	case verdictPublished:
		if err := r.events.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		r.metrics.IncPublished(eventType)
		r.logg.Info(ctx, "outbox.published")

	case verdictRetry:
		if err := r.events.MarkFailedTx(tx, event.ID, o.err); err != nil {
			return fmt.Errorf("mark failed %s: %w", event.ID, err)
		}
		r.metrics.IncFailed(eventType)
		r.logg.Warn(ctx, "outbox.publish_failed")

	case verdictDeadLetter:
		if err := r.deadLetters.InsertTx(tx, outbox.DeadLetter(event, o.reason, o.err, r.now())); err != nil {
			return fmt.Errorf("insert dlq %s: %w", event.ID, err)
		}
		if err := r.events.MarkTerminalTx(tx, event.ID, o.err, r.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", event.ID, err)
		}
		r.metrics.IncDeadLetter(eventType, o.reason.String())
		r.logg.Warn(ctx, "outbox.dead_lettered")
	}
	return nil
}

// messageFor publishes the stored envelope verbatim. Attributes let
// subscribers filter without decoding the body.
func messageFor(event models.OutboxEvent, env outbox.PayloadEnvelope) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       env.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

func (r *Relay) fields(event models.OutboxEvent, o outcome) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if o.topic != "" {
		fields["topic"] = o.topic
	}
	if o.envelope.EventID != "" {
		fields["event_id"] = o.envelope.EventID
	}
	if o.err != nil {
		fields["error"] = o.err.Error()
	}
	if o.reason != "" {
		fields["error_reason"] = o.reason
	}
	return fields
}
