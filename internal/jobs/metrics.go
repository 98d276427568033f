// Package jobs runs the client's periodic background work and reports it to
// the shared background job metrics.
package jobs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricBackgroundJobsTotal        = "background_jobs_total"
	MetricBackgroundJobsDuration     = "background_jobs_duration_seconds"
	MetricBackgroundJobErrorsTotal   = "background_job_errors_total"
	MetricBackgroundJobLastSuccessTS = "background_job_last_success_timestamp_seconds"
)

// Job type constants for labeling.
const (
	JobTypeLocationPush = "location_push"
	JobTypeCacheFlush   = "cache_flush"
)

// Status constants for job completion.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
)

// Error type labels.
const (
	ErrorTypeLocation = "location_unavailable"
	ErrorTypeTimeout  = "timeout"
	ErrorTypeAPI      = "api_error"
	ErrorTypeStore    = "store_error"
)

// Run is the outcome of one task run.
type Run struct {
	JobType string
	Status  string
	// ErrorType is set for StatusFailure.
	ErrorType  string
	Seconds    float64
	FinishedAt time.Time
}

// Metrics tracks background job runs. A location push that stops
// succeeding shows up as a stale last-success gauge.
type Metrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	errors      *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
}

// NewMetrics creates unregistered job metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricBackgroundJobsTotal,
				Help: "Background job runs by job type and status",
			},
			[]string{"job_type", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: MetricBackgroundJobsDuration,
				Help: "Background job run duration in seconds",
				// Runs are single network calls bounded by DefaultTimeout.
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"job_type"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricBackgroundJobErrorsTotal,
				Help: "Failed background job runs by job type and error type",
			},
			[]string{"job_type", "error_type"},
		),
		lastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: MetricBackgroundJobLastSuccessTS,
				Help: "Unix time of the last successful run",
			},
			[]string{"job_type"},
		),
	}
}

// Register registers all metrics with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRun implements JobMetrics.
func (m *Metrics) ObserveRun(r Run) {
	m.runs.WithLabelValues(r.JobType, r.Status).Inc()
	m.duration.WithLabelValues(r.JobType).Observe(r.Seconds)
	switch r.Status {
	case StatusFailure:
		m.errors.WithLabelValues(r.JobType, r.ErrorType).Inc()
	case StatusSuccess:
		m.lastSuccess.WithLabelValues(r.JobType).Set(float64(r.FinishedAt.Unix()))
	}
}

// Collectors returns all collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.runs, m.duration, m.errors, m.lastSuccess}
}
