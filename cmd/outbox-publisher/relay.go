package main

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/metrics"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	maxIdleBackoff     = 10 * time.Second
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type eventStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetterStore interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type RelayParams struct {
	Config      config.OutboxConfig
	Logger      *logger.Logger
	Metrics     *metrics.OutboxMetrics
	DB          txRunner
	Events      eventStore
	DeadLetters deadLetterStore
	Registry    eventResolver
	Sink        sink
}

// Relay moves committed outbox rows onto Pub/Sub. Each batch is claimed with
// FOR UPDATE SKIP LOCKED inside one transaction, so replicas never publish the
// same row concurrently and a crash mid-batch releases every claim.
type Relay struct {
	logg        *logger.Logger
	metrics     *metrics.OutboxMetrics
	db          txRunner
	events      eventStore
	deadLetters deadLetterStore
	registry    eventResolver
	sink        sink
	batchSize   int
	maxAttempts int
	poll        time.Duration
	now         func() time.Time
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.Events == nil:
		return nil, errors.New("outbox repository is required")
	case p.DeadLetters == nil:
		return nil, errors.New("dlq repository is required")
	case p.Registry == nil:
		return nil, errors.New("event registry is required")
	case p.Sink == nil:
		return nil, errors.New("message sink is required")
	}

	r := &Relay{
		logg:        p.Logger,
		metrics:     p.Metrics,
		db:          p.DB,
		events:      p.Events,
		deadLetters: p.DeadLetters,
		registry:    p.Registry,
		sink:        p.Sink,
		batchSize:   orDefault(p.Config.BatchSize, defaultBatchSize),
		maxAttempts: orDefault(p.Config.MaxAttempts, defaultMaxAttempts),
		poll:        defaultPoll,
		now:         time.Now,
	}
	if p.Config.PollIntervalMS > 0 {
		r.poll = time.Duration(p.Config.PollIntervalMS) * time.Millisecond
	}
	return r, nil
}

// Run drains batches back to back while there is work, polls when the table
// is empty, and backs off exponentially while batches keep failing.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return err
	}
	wait := newBackoff(r.poll, maxIdleBackoff)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Drain(ctx)
		var pause time.Duration
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox.batch_failed", err)
			pause = wait.next()
		case n == 0:
			wait.reset()
			pause = r.poll
		default:
			wait.reset()
			continue
		}
		if err := sleep(ctx, withJitter(pause)); err != nil {
			return err
		}
	}
}

// Drain claims and settles one batch, returning how many rows it touched.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	var claimed int
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := r.events.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		claimed = len(events)
		for _, event := range events {
			if err := r.settle(ctx, tx, event, r.dispatch(ctx, event)); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

func orDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
