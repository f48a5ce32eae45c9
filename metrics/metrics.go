// Package metrics provides Prometheus metrics for entitlement resolution and
// service-date calculation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "entitlement_engine"

// Metrics groups every collector the engine reports. All methods are safe on
// a nil receiver so components can run without metrics.
type Metrics struct {
	Resolutions      *prometheus.CounterVec
	Calculations     *prometheus.CounterVec
	CapacityRequests *prometheus.CounterVec
	CapacityLatency  prometheus.Histogram
	CapacitySkipped  prometheus.Counter
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		// =============================================================================
		// RESOLUTION
		// =============================================================================
		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Records processed by the prioritized resolver, by outcome (matched, unmatched)",
		}, []string{"outcome"}),

		// =============================================================================
		// CALCULATION
		// =============================================================================
		Calculations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculations_total",
			Help:      "Service-date calculations by calculation method",
		}, []string{"method"}),

		// =============================================================================
		// CAPACITY PLANNER
		// =============================================================================
		CapacityRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capacity_requests_total",
			Help:      "Capacity planner calls by outcome (ok, empty, error, timeout)",
		}, []string{"outcome"}),

		CapacityLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capacity_request_duration_seconds",
			Help:      "Latency of capacity planner calls",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		CapacitySkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capacity_requests_skipped_total",
			Help:      "Capacity planner calls not started because the batch deadline passed",
		}),
	}
}

// NewRegistry returns a registry with Go and process collectors plus the
// engine metrics.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, New(reg)
}

func (m *Metrics) ObserveResolution(matched bool) {
	if m == nil {
		return
	}
	outcome := "unmatched"
	if matched {
		outcome = "matched"
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCalculation(method string) {
	if m == nil {
		return
	}
	m.Calculations.WithLabelValues(method).Inc()
}

func (m *Metrics) ObserveCapacityRequest(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CapacityRequests.WithLabelValues(outcome).Inc()
	m.CapacityLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCapacitySkipped() {
	if m == nil {
		return
	}
	m.CapacitySkipped.Inc()
}
