package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/pkg/logger"
)

const defaultOutboxRetentionDays = 30

type publishedEventPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type deadLetterPruner interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// OutboxRetentionJobParams configure outbox housekeeping. DeadLetters is
// optional; when nil only published events are pruned.
type OutboxRetentionJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Events        publishedEventPruner
	DeadLetters   deadLetterPruner
	RetentionDays int
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	days := params.RetentionDays
	if days <= 0 {
		days = defaultOutboxRetentionDays
	}
	return &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		events:      params.Events,
		deadLetters: params.DeadLetters,
		days:        days,
		now:         time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	events      publishedEventPruner
	deadLetters deadLetterPruner
	days        int
	now         func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.days) * 24 * time.Hour)
	var published, dead int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.events.DeletePublishedBefore(ctx, tx, cutoff, 0)
		if err != nil {
			return fmt.Errorf("prune published events: %w", err)
		}
		published = rows
		if j.deadLetters == nil {
			return nil
		}
		rows, err = j.deadLetters.DeleteFailedBefore(ctx, tx, cutoff)
		if err != nil {
			return fmt.Errorf("prune dead letters: %w", err)
		}
		dead = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":              cutoff,
		"retention_days":      j.days,
		"published_deleted":   published,
		"dead_letter_deleted": dead,
	})
	j.logg.Info(logCtx, "outbox retention cleanup complete")
	return nil
}
