package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/laggedout/storefront-backend/pkg/logger"
	"github.com/laggedout/storefront-backend/pkg/metrics"
)

type fakeExpirer struct {
	results []int
	err     error
	calls   int
	now     time.Time
	limit   int
}

func (f *fakeExpirer) ExpireStale(_ context.Context, now time.Time, limit int) (int, error) {
	f.now = now
	f.limit = limit
	idx := f.calls
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	if idx < len(f.results) {
		return f.results[idx], nil
	}
	return 0, nil
}

func TestOrderExpiryJobDrainsFullBatches(t *testing.T) {
	reg := prometheus.NewRegistry()
	jobMetrics := metrics.NewCronJobMetrics(reg)
	expirer := &fakeExpirer{results: []int{2, 2, 1}}
	job := newOrderExpiryJob(t, expirer, jobMetrics, 2)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 3, expirer.calls)
	require.Equal(t, 2, expirer.limit)
	require.True(t, expirer.now.Equal(now))

	count, err := testutil.GatherAndCount(reg, "laggedout_cron_job_rows_affected_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestOrderExpiryJobPropagatesError(t *testing.T) {
	expirer := &fakeExpirer{err: errors.New("db down")}
	job := newOrderExpiryJob(t, expirer, nil, 10)
	require.Error(t, job.Run(context.Background()))
	require.Equal(t, 1, expirer.calls)
}

func newOrderExpiryJob(t *testing.T, expirer orderExpirer, jobMetrics *metrics.CronJobMetrics, batch int) *orderExpiryJob {
	t.Helper()
	jobIface, err := NewOrderExpiryJob(OrderExpiryJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Orders:  expirer,
		Metrics: jobMetrics,
		Batch:   batch,
	})
	require.NoError(t, err)
	job, ok := jobIface.(*orderExpiryJob)
	require.True(t, ok)
	return job
}
