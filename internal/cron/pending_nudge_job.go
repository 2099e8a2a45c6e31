package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/metrics"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox/payloads"
)

const (
	defaultPendingNudgeDays = 3
	pendingNudgeBatchSize   = 500
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type pendingOrderReader interface {
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	CountByStatus(ctx context.Context) (map[enums.OrderStatus]int64, error)
}

type nudgeEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// PendingNudgeJobParams configure the stale pending order reminder.
type PendingNudgeJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Orders      pendingOrderReader
	Outbox      nudgeEmitter
	Metrics     *metrics.OrderMetrics
	PendingDays int
}

// NewPendingNudgeJob builds the job that emits one order_pending_nudge event
// per order left pending longer than PendingDays.
func NewPendingNudgeJob(params PendingNudgeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	days := params.PendingDays
	if days <= 0 {
		days = defaultPendingNudgeDays
	}
	return &pendingNudgeJob{
		logg:    params.Logger,
		db:      params.DB,
		orders:  params.Orders,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		days:    days,
		now:     time.Now,
	}, nil
}

type pendingNudgeJob struct {
	logg    *logger.Logger
	db      txRunner
	orders  pendingOrderReader
	outbox  nudgeEmitter
	metrics *metrics.OrderMetrics
	days    int
	now     func() time.Time
}

func (j *pendingNudgeJob) Name() string { return "pending-order-nudge" }

func (j *pendingNudgeJob) Run(ctx context.Context) error {
	var errs []error
	if err := j.nudge(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := j.refreshPendingGauge(ctx); err != nil {
		errs = append(errs, err)
	}
	return multierr.Combine(errs...)
}

func (j *pendingNudgeJob) nudge(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.days) * 24 * time.Hour)
	stale, err := j.orders.ListPendingBefore(ctx, cutoff, pendingNudgeBatchSize)
	if err != nil {
		return fmt.Errorf("query pending orders for nudge: %w", err)
	}

	var errs []error
	emitted := 0
	for _, order := range stale {
		if err := j.emitNudge(ctx, order); err != nil {
			errs = append(errs, fmt.Errorf("nudge order %s: %w", order.ID, err))
			continue
		}
		emitted++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"stale":   len(stale),
		"emitted": emitted,
	})
	j.logg.Info(logCtx, "pending order nudge loop complete")
	return multierr.Combine(errs...)
}

func (j *pendingNudgeJob) emitNudge(ctx context.Context, order models.Order) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPendingNudge,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			OccurredAt:    j.now().UTC(),
			Data: payloads.OrderPendingNudgeEvent{
				OrderID:      order.ID,
				OrderNumber:  order.OrderNumber,
				BuyerID:      order.BuyerID,
				Status:       order.Status,
				PendingSince: order.CreatedAt,
			},
		})
	})
}

func (j *pendingNudgeJob) refreshPendingGauge(ctx context.Context) error {
	counts, err := j.orders.CountByStatus(ctx)
	if err != nil {
		return fmt.Errorf("count orders by status: %w", err)
	}
	j.metrics.SetPending(counts[enums.OrderStatusPending])
	return nil
}
