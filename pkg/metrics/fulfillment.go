package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FulfillmentMetrics tracks worker outcomes and stock contention.
type FulfillmentMetrics struct {
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
	stock    *prometheus.CounterVec
	leases   *prometheus.CounterVec
}

// NewFulfillmentMetrics registers the fulfillment metrics on reg. A nil
// registerer yields a no-op recorder.
func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_outcomes_total",
		Help: "Order requests processed, by terminal status and rejection reason.",
	}, []string{"status", "reason"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fulfillment_processing_seconds",
		Help:    "Time spent processing one order request.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"status"})
	stock := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_decrement_attempts_total",
		Help: "Conditional stock decrements, by result.",
	}, []string{"result"})
	leases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_lease_attempts_total",
		Help: "In-flight lease acquisitions, by result.",
	}, []string{"result"})
	reg.MustRegister(outcomes, duration, stock, leases)
	return &FulfillmentMetrics{
		outcomes: outcomes,
		duration: duration,
		stock:    stock,
		leases:   leases,
	}
}

// ObserveOutcome records one processed request. reason is empty unless the
// request was rejected.
func (m *FulfillmentMetrics) ObserveOutcome(status, reason string, elapsed time.Duration) {
	if m == nil || m.outcomes == nil {
		return
	}
	if reason == "" {
		reason = "none"
	}
	m.outcomes.WithLabelValues(labelOrUnknown(status), reason).Inc()
	m.duration.WithLabelValues(labelOrUnknown(status)).Observe(elapsed.Seconds())
}

// ObserveStockDecrement satisfies stock.Observer.
func (m *FulfillmentMetrics) ObserveStockDecrement(result string) {
	if m == nil || m.stock == nil {
		return
	}
	m.stock.WithLabelValues(labelOrUnknown(result)).Inc()
}

// ObserveLease records acquired, contended or error.
func (m *FulfillmentMetrics) ObserveLease(result string) {
	if m == nil || m.leases == nil {
		return
	}
	m.leases.WithLabelValues(labelOrUnknown(result)).Inc()
}
