package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/laggedout/storefront-backend/pkg/logger"
	"github.com/laggedout/storefront-backend/pkg/metrics"
)

const (
	orderExpiryJobName = "order-expiry"
	defaultExpiryBatch = 200
	maxExpiryBatches   = 50
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderExpirer interface {
	ExpireStale(ctx context.Context, now time.Time, limit int) (int, error)
}

// OrderExpiryJobParams configure the abandoned order sweep.
type OrderExpiryJobParams struct {
	Logger  *logger.Logger
	Orders  orderExpirer
	Metrics *metrics.CronJobMetrics
	Batch   int
}

// NewOrderExpiryJob builds the job that fails pending orders whose payment
// window (plus grace) has elapsed.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &orderExpiryJob{
		logg:    params.Logger,
		orders:  params.Orders,
		metrics: params.Metrics,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg    *logger.Logger
	orders  orderExpirer
	metrics *metrics.CronJobMetrics
	batch   int
	now     func() time.Time
}

func (j *orderExpiryJob) Name() string { return orderExpiryJobName }

// Run drains stale orders in batches. A short batch means nothing is left.
func (j *orderExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	total := 0
	for i := 0; i < maxExpiryBatches; i++ {
		expired, err := j.orders.ExpireStale(ctx, now, j.batch)
		total += expired
		if err != nil {
			j.metrics.AddAffected(orderExpiryJobName, total)
			return fmt.Errorf("expire stale orders: %w", err)
		}
		if expired < j.batch {
			break
		}
	}
	j.metrics.AddAffected(orderExpiryJobName, total)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"now":     now,
		"expired": total,
	})
	j.logg.Info(logCtx, "order expiry sweep complete")
	return nil
}
