package query

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricPageFetchesTotal   = "query_page_fetches_total"
	MetricPageFetchDuration  = "query_page_fetch_duration_seconds"
	MetricPageRetriesTotal   = "query_page_retries_total"
	MetricSequencesActive    = "query_sequences"
	MetricSequencesEvictions = "query_sequence_evictions_total"
)

// Metrics contains Prometheus metrics for query engines, labeled by engine
// name. All operations are thread-safe.
type Metrics struct {
	fetches   *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	retries   *prometheus.CounterVec
	sequences *prometheus.GaugeVec
	evictions *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPageFetchesTotal,
				Help: "Total number of page fetches by engine and result",
			},
			[]string{"engine", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricPageFetchDuration,
				Help:    "Histogram of page fetch duration in seconds, retries included",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"engine"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPageRetriesTotal,
				Help: "Total number of page fetch retries",
			},
			[]string{"engine"},
		),
		sequences: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: MetricSequencesActive,
				Help: "Number of cached paginated sequences",
			},
			[]string{"engine"},
		),
		evictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSequencesEvictions,
				Help: "Total number of sequences evicted after becoming inactive",
			},
			[]string{"engine"},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveFetch records one page fetch with its total duration.
func (m *Metrics) ObserveFetch(engine, result string, seconds float64) {
	m.fetches.WithLabelValues(engine, result).Inc()
	m.duration.WithLabelValues(engine).Observe(seconds)
}

// IncRetries increments the retry counter.
func (m *Metrics) IncRetries(engine string) {
	m.retries.WithLabelValues(engine).Inc()
}

// SetSequences sets the number of cached sequences.
func (m *Metrics) SetSequences(engine string, n int) {
	m.sequences.WithLabelValues(engine).Set(float64(n))
}

// IncEvictions increments the eviction counter.
func (m *Metrics) IncEvictions(engine string) {
	m.evictions.WithLabelValues(engine).Inc()
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.fetches,
		m.duration,
		m.retries,
		m.sequences,
		m.evictions,
	}
}
