package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.ObserveRun("pending-order-nudge", 250*time.Millisecond, nil)
	m.ObserveRun("pending-order-nudge", time.Second, errors.New("db down"))
	m.ObserveRun("", time.Millisecond, nil)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	runs := family(mfs, "cron_job_runs_total")
	if got := value(runs, map[string]string{"job": "pending-order-nudge", "result": "success"}); got != 1 {
		t.Fatalf("expected 1 success, got %v", got)
	}
	if got := value(runs, map[string]string{"job": "pending-order-nudge", "result": "failure"}); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
	if got := value(runs, map[string]string{"job": "unknown", "result": "success"}); got != 1 {
		t.Fatalf("expected empty job name to be labelled unknown, got %v", got)
	}

	last := family(mfs, "cron_job_last_success_timestamp_seconds")
	if got := value(last, map[string]string{"job": "pending-order-nudge"}); got <= 0 {
		t.Fatalf("expected last success timestamp, got %v", got)
	}

	duration := family(mfs, "cron_job_duration_seconds")
	if duration == nil || len(duration.GetMetric()) != 2 {
		t.Fatalf("expected histogram series for two jobs")
	}
	if count := duration.GetMetric()[1].GetHistogram().GetSampleCount() + duration.GetMetric()[0].GetHistogram().GetSampleCount(); count != 3 {
		t.Fatalf("expected 3 observations, got %d", count)
	}
}

func TestCronJobMetricsNilRegistererIsNoop(t *testing.T) {
	m := NewCronJobMetrics(nil)
	m.ObserveRun("job", time.Second, nil)

	var unset *CronJobMetrics
	unset.ObserveRun("job", time.Second, errors.New("x"))
}

func family(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

// value returns the counter or gauge value of the series matching labels, or
// -1 when no series matches.
func value(mf *dto.MetricFamily, labels map[string]string) float64 {
	if mf == nil {
		return -1
	}
	for _, metric := range mf.GetMetric() {
		if hasLabels(metric.GetLabel(), labels) {
			if c := metric.GetCounter(); c != nil {
				return c.GetValue()
			}
			return metric.GetGauge().GetValue()
		}
	}
	return -1
}

func hasLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
