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
	outboxRetentionJobName     = "outbox-retention"
	notificationCleanupJobName = "notification-cleanup"

	defaultRetention  = 30 * 24 * time.Hour
	outboxMinAttempts = 5
	retentionCadence  = 24 * time.Hour
)

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type notificationsCleanupRepo interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Metrics    *metrics.CronJobMetrics
	DB         txRunner
	Repository outboxRetentionRepo
	Retention  time.Duration
	// MinAttempts is the attempt count after which an unpublished row
	// counts as abandoned and may be swept with the published ones.
	MinAttempts int
}

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	Metrics    *metrics.CronJobMetrics
	DB         txRunner
	Repository notificationsCleanupRepo
	Retention  time.Duration
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	minAttempts := params.MinAttempts
	if minAttempts <= 0 {
		minAttempts = outboxMinAttempts
	}
	repo := params.Repository
	job, err := newSweepJob(sweepJob{
		name:      outboxRetentionJobName,
		logg:      params.Logger,
		metrics:   params.Metrics,
		db:        params.DB,
		retention: params.Retention,
		fields:    map[string]any{"min_attempts": minAttempts},
		purge: func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
			return repo.DeletePublishedBefore(ctx, tx, cutoff, minAttempts)
		},
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	job, err := newSweepJob(sweepJob{
		name:      notificationCleanupJobName,
		logg:      params.Logger,
		metrics:   params.Metrics,
		db:        params.DB,
		retention: params.Retention,
		purge:     params.Repository.DeleteOlderThan,
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// sweepJob deletes rows past their retention window in one transaction,
// once per retentionCadence.
type sweepJob struct {
	name      string
	logg      *logger.Logger
	metrics   *metrics.CronJobMetrics
	db        txRunner
	purge     func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	retention time.Duration
	fields    map[string]any
	now       func() time.Time
}

func newSweepJob(j sweepJob) (*sweepJob, error) {
	if j.logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if j.db == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if j.retention <= 0 {
		j.retention = defaultRetention
	}
	j.now = time.Now
	return &j, nil
}

func (j *sweepJob) Name() string { return j.name }

func (j *sweepJob) Every() time.Duration { return retentionCadence }

func (j *sweepJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) (err error) {
		deleted, err = j.purge(ctx, tx, cutoff)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.metrics.AddAffected(j.name, int(deleted))

	logCtx := j.logg.WithFields(ctx, j.fields)
	logCtx = j.logg.WithFields(logCtx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "retention sweep complete")
	return nil
}
