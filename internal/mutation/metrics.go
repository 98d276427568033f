package mutation

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricMutationsTotal   = "mutations_total"
	MetricMutationDuration = "mutation_duration_seconds"
)

// Metrics counts mutations by entity kind, operation and result.
type Metrics struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates unregistered mutation metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		total: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricMutationsTotal,
				Help: "Total number of mutations by kind, operation and result",
			},
			[]string{"kind", "operation", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricMutationDuration,
				Help:    "Histogram of mutation round trip duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"kind", "operation"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Observe records one mutation.
func (m *Metrics) Observe(kind, op, result string, seconds float64) {
	m.total.WithLabelValues(kind, op, result).Inc()
	m.duration.WithLabelValues(kind, op).Observe(seconds)
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.total, m.duration}
}
