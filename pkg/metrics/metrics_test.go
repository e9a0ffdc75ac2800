package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestJobMetricsRecordRunsAndLastSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewJobMetrics(reg)
	job := "outbox_publish"
	metrics.ObserveDuration(job, 250*time.Millisecond)
	metrics.IncSuccess(job)
	metrics.IncFailure(job)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	for _, result := range []string{"success", "failure"} {
		got, err := fetchCounterValue(mfs, "job_runs_total", "result", result)
		if err != nil {
			t.Fatalf("fetch %s: %v", result, err)
		}
		if got != 1 {
			t.Fatalf("expected %s=1, got %f", result, got)
		}
	}

	if got, err := fetchHistogramSum(mfs, "job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}

	gauge := findMetricFamily(mfs, "job_last_success_timestamp_seconds")
	if gauge == nil || len(gauge.GetMetric()) != 1 || gauge.GetMetric()[0].GetGauge().GetValue() <= 0 {
		t.Fatalf("expected last success timestamp to be set")
	}
}

func TestFulfillmentMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewFulfillmentMetrics(reg)
	m.ObserveOutcome("fulfilled", "", 20*time.Millisecond)
	m.ObserveOutcome("rejected", "insufficient_stock", 5*time.Millisecond)
	m.ObserveOutcome("rejected", "insufficient_stock", 5*time.Millisecond)
	m.ObserveStockDecrement("ok")
	m.ObserveLease("contended")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "fulfillment_outcomes_total", "reason", "insufficient_stock"); err != nil || got != 2 {
		t.Fatalf("expected 2 insufficient_stock rejections, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "fulfillment_outcomes_total", "reason", "none"); err != nil || got != 1 {
		t.Fatalf("expected 1 fulfilled outcome, got %f (%v)", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "fulfillment_processing_seconds", "status", "fulfilled"); err != nil || got <= 0 {
		t.Fatalf("expected fulfilled duration, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "stock_decrement_attempts_total", "result", "ok"); err != nil || got != 1 {
		t.Fatalf("expected 1 stock decrement, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "fulfillment_lease_attempts_total", "result", "contended"); err != nil || got != 1 {
		t.Fatalf("expected 1 contended lease, got %f (%v)", got, err)
	}
}

func TestOutboxMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.IncPublished("order_fulfilled")
	m.IncFailed("order_rejected")
	m.IncDeadLettered("order_rejected", "max_attempts")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_events_published_total", "event_type", "order_fulfilled"); err != nil || got != 1 {
		t.Fatalf("expected 1 published, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_events_dead_lettered_total", "reason", "max_attempts"); err != nil || got != 1 {
		t.Fatalf("expected 1 dead lettered, got %f (%v)", got, err)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var f *FulfillmentMetrics
	f.ObserveOutcome("fulfilled", "", time.Second)
	f.ObserveStockDecrement("ok")
	NewFulfillmentMetrics(nil).ObserveLease("acquired")
	var o *OutboxMetrics
	o.IncPublished("x")
	var j *JobMetrics
	j.IncSuccess("x")
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

func TestHTTPMetricsLabelsByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.ObserveRequest("/api/v1/orders/{orderId}", "GET", 404, time.Millisecond)
	m.ObserveRequest("/api/v1/orders/{orderId}", "GET", 404, time.Millisecond)
	m.ObserveRequest("", "GET", 404, time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "http_requests_total", "route", "/api/v1/orders/{orderId}"); err != nil || got != 2 {
		t.Fatalf("expected 2 requests for route, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "http_requests_total", "route", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected unmatched route bucket, got %f (%v)", got, err)
	}
}

func TestNilHTTPMetricsIsSafe(t *testing.T) {
	var m *HTTPMetrics
	m.ObserveRequest("/", "GET", 200, time.Millisecond)
	NewHTTPMetrics(nil).ObserveRequest("/", "GET", 200, time.Millisecond)
}
