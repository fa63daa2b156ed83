package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsRecordsAJobCycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.ObserveDuration("order-expiry", 250*time.Millisecond)
	m.IncSuccess("order-expiry")
	m.AddAffected("order-expiry", 3)
	m.AddAffected("order-expiry", 0)
	m.IncFailure("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	checks := []struct {
		name, job string
		want      float64
	}{
		{"laggedout_cron_job_success_total", "order-expiry", 1},
		{"laggedout_cron_job_rows_affected_total", "order-expiry", 3},
		{"laggedout_cron_job_failure_total", "unknown", 1},
	}
	for _, c := range checks {
		got, err := fetchCounterValue(mfs, c.name, "job", c.job)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if got != c.want {
			t.Fatalf("%s{job=%q} = %v, want %v", c.name, c.job, got, c.want)
		}
	}
	if sum, err := fetchHistogramSum(mfs, "laggedout_cron_job_duration_seconds", "job", "order-expiry"); err != nil || sum != 0.25 {
		t.Fatalf("expected 0.25s observed, got %v (%v)", sum, err)
	}
}

func TestCronJobMetricsWithoutRegistryIsNoop(t *testing.T) {
	var nilMetrics *CronJobMetrics
	nilMetrics.IncSuccess("order-expiry")
	nilMetrics.AddAffected("order-expiry", 1)

	m := NewCronJobMetrics(nil)
	m.ObserveDuration("order-expiry", time.Second)
	m.IncFailure("order-expiry")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
