package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricHTTPClientRequestDuration = "api_client_request_duration_seconds"
	MetricHTTPClientRequestsTotal   = "api_client_requests_total"
	MetricHTTPClientErrorsTotal     = "api_client_transport_errors_total"
)

// Metrics contains Prometheus metrics for outgoing API requests.
// All operations are thread-safe.
type Metrics struct {
	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	transportErrors *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPClientRequestDuration,
				Help:    "Outgoing API request duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"method", "path"},
		),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricHTTPClientRequestsTotal,
				Help: "Total number of outgoing API requests by status",
			},
			[]string{"method", "path", "status"},
		),
		transportErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricHTTPClientErrorsTotal,
				Help: "Total number of outgoing API requests that failed before a response",
			},
			[]string{"method", "path"},
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

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requestDuration,
		m.requestsTotal,
		m.transportErrors,
	}
}

// HTTPMetrics records duration, count, and transport failures per
// normalized route.
func HTTPMetrics(m *Metrics) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(r)
			path := NormalizePath(r.URL.Path)

			m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
			if err != nil {
				m.transportErrors.WithLabelValues(r.Method, path).Inc()
				return resp, err
			}
			m.requestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(resp.StatusCode)).Inc()
			return resp, nil
		})
	}
}

// staticRoutes are API paths without dynamic segments.
var staticRoutes = map[string]bool{
	"/questions":        true,
	"/responses":        true,
	"/media/upload":     true,
	"/auth/sync-clerk":  true,
	"/auth/me":          true,
	"/users/push-token": true,
	"/users/location":   true,
}

// NormalizePath maps request paths with ids to route patterns so metric
// labels stay bounded, e.g. /questions/abc123 becomes /questions/{id}.
// Any path prefix in front of the API root (such as /api/v1) is preserved.
func NormalizePath(path string) string {
	trimmed := strings.TrimSuffix(path, "/")
	if trimmed == "" {
		return "/"
	}

	idx := -1
	for _, marker := range []string{"/questions", "/responses", "/media", "/auth", "/users"} {
		if i := strings.Index(trimmed, marker); i >= 0 && (idx < 0 || i < idx) {
			idx = i
		}
	}
	if idx < 0 {
		return trimmed
	}
	return trimmed[:idx] + normalizeRoute(trimmed[idx:])
}

func normalizeRoute(route string) string {
	if staticRoutes[route] {
		return route
	}
	parts := strings.Split(route, "/")
	switch {
	// /questions/{id}, /questions/{id}/vote
	case len(parts) == 3 && parts[1] == "questions":
		return "/questions/{id}"
	case len(parts) == 4 && parts[1] == "questions":
		return "/questions/{id}/" + parts[3]
	// /responses/questions/{id}
	case len(parts) == 4 && parts[1] == "responses" && parts[2] == "questions":
		return "/responses/questions/{id}"
	// /responses/{id}
	case len(parts) == 3 && parts[1] == "responses":
		return "/responses/{id}"
	}
	return route
}
