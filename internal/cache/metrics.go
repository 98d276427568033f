package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricCacheHitsTotal          = "entity_cache_hits_total"
	MetricCacheMissesTotal        = "entity_cache_misses_total"
	MetricCacheTombstoneReadTotal = "entity_cache_tombstone_reads_total"
	MetricCacheRevalidationsTotal = "entity_cache_revalidations_total"
)

// Metrics contains Prometheus metrics for entity caches, labeled by cache
// name. All operations are thread-safe.
type Metrics struct {
	hits           *prometheus.CounterVec
	misses         *prometheus.CounterVec
	tombstoneReads *prometheus.CounterVec
	revalidations  *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		hits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCacheHitsTotal,
				Help: "Total number of entity cache reads that found a live value",
			},
			[]string{"cache"},
		),
		misses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCacheMissesTotal,
				Help: "Total number of entity cache reads for unknown ids",
			},
			[]string{"cache"},
		),
		tombstoneReads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCacheTombstoneReadTotal,
				Help: "Total number of entity cache reads that hit a deleted id",
			},
			[]string{"cache"},
		),
		revalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCacheRevalidationsTotal,
				Help: "Total number of loader fetches by result",
			},
			[]string{"cache", "result"},
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

// IncHit increments the hit counter.
func (m *Metrics) IncHit(cache string) {
	m.hits.WithLabelValues(cache).Inc()
}

// IncMiss increments the miss counter.
func (m *Metrics) IncMiss(cache string) {
	m.misses.WithLabelValues(cache).Inc()
}

// IncTombstoneRead increments the tombstone read counter.
func (m *Metrics) IncTombstoneRead(cache string) {
	m.tombstoneReads.WithLabelValues(cache).Inc()
}

// IncRevalidation increments the loader fetch counter.
// result: "success" or "failure"
func (m *Metrics) IncRevalidation(cache, result string) {
	m.revalidations.WithLabelValues(cache, result).Inc()
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.hits,
		m.misses,
		m.tombstoneReads,
		m.revalidations,
	}
}
