package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/metrics"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox/registry"
)

func TestDrainKeepsGoingAfterTransientFailure(t *testing.T) {
	first, second := approvedEvent(t, 0), approvedEvent(t, 0)
	events := &fakeEvents{rows: []models.OutboxEvent{first, second}}
	out := &fakeSink{errs: []error{errors.New("unavailable"), nil}}
	relay := newTestRelay(t, events, &fakeDLQ{}, out, config.OutboxConfig{BatchSize: 2, MaxAttempts: 5}, nil)

	n, err := relay.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []uuid.UUID{first.ID}, events.failed)
	assert.Equal(t, []uuid.UUID{second.ID}, events.published)

	require.Len(t, out.sent, 2)
	msg := out.sent[1]
	assert.Equal(t, "orders-topic", msg.topic)
	assert.Equal(t, string(enums.EventOrderApproved), msg.Attributes["event_type"])
	assert.Equal(t, second.AggregateID.String(), msg.Attributes["aggregate_id"])
	assert.True(t, bytes.Equal(second.Payload, msg.Data), "envelope is published verbatim")
}

func TestDrainDeadLettersUndecodableRows(t *testing.T) {
	event := approvedEvent(t, 0)
	event.AggregateType = enums.AggregateProduct
	events := &fakeEvents{rows: []models.OutboxEvent{event}}
	dlq := &fakeDLQ{}
	out := &fakeSink{}
	relay := newTestRelay(t, events, dlq, out, config.OutboxConfig{MaxAttempts: 5}, nil)

	_, err := relay.Drain(context.Background())
	require.NoError(t, err)

	require.Len(t, dlq.entries, 1)
	entry := dlq.entries[0]
	assert.Equal(t, event.ID, entry.EventID)
	assert.Equal(t, enums.OutboxDLQReasonUndecodable, entry.ErrorReason)
	assert.True(t, bytes.Equal(event.Payload, entry.Payload))
	assert.Equal(t, []uuid.UUID{event.ID}, events.terminal)
	assert.Empty(t, out.sent, "undecodable rows are never sent")
}

func TestDrainDeadLettersPermanentBrokerErrors(t *testing.T) {
	event := approvedEvent(t, 0)
	events := &fakeEvents{rows: []models.OutboxEvent{event}}
	dlq := &fakeDLQ{}
	out := &fakeSink{errs: []error{classifyPublishError(status.Error(codes.NotFound, "topic gone"))}}
	relay := newTestRelay(t, events, dlq, out, config.OutboxConfig{MaxAttempts: 5}, nil)

	_, err := relay.Drain(context.Background())
	require.NoError(t, err)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, dlq.entries[0].ErrorReason)
	assert.Empty(t, events.failed)
}

func TestDrainDeadLettersWhenAttemptsRunOut(t *testing.T) {
	event := approvedEvent(t, 1)
	events := &fakeEvents{rows: []models.OutboxEvent{event}}
	dlq := &fakeDLQ{}
	out := &fakeSink{errs: []error{errors.New("deadline exceeded")}}
	reg := prometheus.NewRegistry()
	relay := newTestRelay(t, events, dlq, out, config.OutboxConfig{BatchSize: 1, MaxAttempts: 2}, metrics.NewOutboxMetrics(reg))

	_, err := relay.Drain(context.Background())
	require.NoError(t, err)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, dlq.entries[0].ErrorReason)
	require.NotNil(t, dlq.entries[0].ErrorMessage)
	assert.Contains(t, *dlq.entries[0].ErrorMessage, "deadline exceeded")

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var deadLettered float64
	for _, mf := range mfs {
		if mf.GetName() == "outbox_dead_lettered_total" {
			deadLettered = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(1), deadLettered)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	relay := newTestRelay(t, &fakeEvents{}, &fakeDLQ{}, &fakeSink{}, config.OutboxConfig{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, relay.Run(ctx), context.Canceled)
}

func TestClassifyPublishError(t *testing.T) {
	var permanent registry.NonRetryableError
	assert.ErrorAs(t, classifyPublishError(status.Error(codes.PermissionDenied, "nope")), &permanent)
	assert.False(t, errors.As(classifyPublishError(status.Error(codes.Unavailable, "later")), &permanent))
	assert.NoError(t, classifyPublishError(nil))
}

func TestPubSubSinkWithoutPublisherIsPermanent(t *testing.T) {
	source := &fakeTopicSource{}
	s := newPubSubSink(source, 0)

	err := s.Send(context.Background(), "orders", &gcppubsub.Message{})
	var permanent registry.NonRetryableError
	assert.ErrorAs(t, err, &permanent)
	_ = s.Send(context.Background(), "orders", &gcppubsub.Message{})
	assert.Equal(t, 2, source.calls, "missing publishers are looked up again")
	s.Close()
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	b := newBackoff(time.Second, 5*time.Second)
	assert.Equal(t, 2*time.Second, b.next())
	assert.Equal(t, 4*time.Second, b.next())
	assert.Equal(t, 5*time.Second, b.next())
	b.reset()
	assert.Equal(t, 2*time.Second, b.next())

	d := withJitter(time.Second)
	assert.GreaterOrEqual(t, d, time.Second)
	assert.Less(t, d, time.Second+jitterWindow)
}

func newTestRelay(t *testing.T, events eventStore, dlq deadLetterStore, out sink, cfg config.OutboxConfig, m *metrics.OutboxMetrics) *Relay {
	t.Helper()
	reg, err := registry.NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders-topic"})
	require.NoError(t, err)
	relay, err := NewRelay(RelayParams{
		Config:      cfg,
		Logger:      logger.New(logger.Options{ServiceName: "relay-test", Output: io.Discard}),
		Metrics:     m,
		DB:          fakeDB{},
		Events:      events,
		DeadLetters: dlq,
		Registry:    reg,
		Sink:        out,
	})
	require.NoError(t, err)
	return relay
}

func approvedEvent(tb testing.TB, attempts int) models.OutboxEvent {
	tb.Helper()
	orderID := uuid.New()
	data, err := json.Marshal(payloads.OrderApprovedEvent{OrderID: orderID, OrderNumber: "ORD-1", BuyerID: uuid.New()})
	require.NoError(tb, err)
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(tb, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderApproved,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       envelope,
		AttemptCount:  attempts,
	}
}

type fakeEvents struct {
	rows      []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeEvents) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.rows, nil
}

func (f *fakeEvents) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeEvents) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeEvents) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDLQ struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQ) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type sentMessage struct {
	topic string
	*gcppubsub.Message
}

type fakeSink struct {
	errs []error
	sent []sentMessage
}

func (f *fakeSink) Send(_ context.Context, topic string, msg *gcppubsub.Message) error {
	f.sent = append(f.sent, sentMessage{topic: topic, Message: msg})
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

type fakeTopicSource struct {
	calls int
}

func (f *fakeTopicSource) Publisher(string) *gcppubsub.Publisher {
	f.calls++
	return nil
}
