package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "easy_homey"

// Metrics holds the Prometheus collectors for refreshes, API calls and entities.
type Metrics struct {
	// Coordinator refresh metrics.
	Refreshes       *prometheus.CounterVec   // labels: coordinator, outcome={success,failure}
	RefreshDuration *prometheus.HistogramVec // labels: coordinator
	LastSuccess     *prometheus.GaugeVec     // labels: coordinator; unix seconds

	// Upstream API metrics.
	APIRequests *prometheus.CounterVec // labels: endpoint, outcome={success,connection,timeout,api}

	// Entity metrics.
	EntityValue     *prometheus.GaugeVec // labels: entity; numeric states only
	EntityAvailable *prometheus.GaugeVec // labels: entity

	// Publication sinks.
	PublishErrors *prometheus.CounterVec // labels: sink={mqtt,kafka}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Refreshes,
		m.RefreshDuration,
		m.LastSuccess,
		m.APIRequests,
		m.EntityValue,
		m.EntityAvailable,
		m.PublishErrors,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as many as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coordinator_refreshes_total",
			Help:      "Coordinator refreshes by outcome.",
		}, []string{"coordinator", "outcome"}),
		RefreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "coordinator_refresh_duration_seconds",
			Help:      "Duration of a complete coordinator refresh.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"coordinator"}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coordinator_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful refresh.",
		}, []string{"coordinator"}),
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Easy Homey API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		EntityValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entity_value",
			Help:      "Current numeric state of an entity.",
		}, []string{"entity"}),
		EntityAvailable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entity_available",
			Help:      "1 when the entity is available, 0 otherwise.",
		}, []string{"entity"}),
		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed entity publications by sink.",
		}, []string{"sink"}),
	}
}
