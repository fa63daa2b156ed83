package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/laggedout/storefront-backend/pkg/logger"
	"github.com/laggedout/storefront-backend/pkg/metrics"
)

const defaultInterval = time.Minute

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	// Interval is the tick; order expiry runs on every tick it wins the lock.
	Interval time.Duration
}

// Service ticks the cron worker. Each tick runs the due jobs under the
// shared lock and within the lock's TTL.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	if ttl := params.Lock.TTL(); ttl > 0 && ttl < interval {
		params.Logger.Warn(params.Logger.WithFields(context.Background(), map[string]any{
			"interval": interval.String(),
			"lock_ttl": ttl.String(),
		}), "cron lock expires before the next tick; replicas may overlap on slow cycles")
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
		now:      time.Now,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	s.logg.Info(s.logg.WithField(ctx, "jobs", s.registry.Names()), "cron schedule loaded")
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "cron cycle failed", err)
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	due := s.registry.Due(s.now())
	if len(due) == 0 {
		return nil
	}

	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		holder, _ := s.lock.Holder(ctx)
		s.logg.Info(s.logg.WithField(ctx, "lock_holder", holder), "cron lock held elsewhere, skipping tick")
		return nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron lock release failed", err)
		}
	}()

	cycleCtx := ctx
	if ttl := s.lock.TTL(); ttl > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(ctx, ttl)
		defer cancel()
	}

	for _, job := range due {
		if err := cycleCtx.Err(); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "job", job.Name()), "cron lease ran out before job started")
			break
		}
		s.runJob(cycleCtx, job)
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	name := job.Name()
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})

	start := s.now()
	err := job.Run(jobCtx)
	elapsed := s.now().Sub(start)
	s.metrics.ObserveDuration(name, elapsed)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.metrics.IncFailure(name)
		s.logg.Error(jobCtx, "cron job failed", err)
		return
	}
	s.metrics.IncSuccess(name)
	s.registry.MarkRan(name, start)
	s.logg.Info(jobCtx, "cron job done")
}
