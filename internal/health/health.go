// Package health checks the client's external dependencies: the askaround
// API and the optional redis cache.
package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds each check.
const DefaultTimeout = 5 * time.Second

// ErrUnhealthy is returned by Report.Err when any check failed.
var ErrUnhealthy = errors.New("dependency unhealthy")

// Checker reports whether one dependency is reachable.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f CheckerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// Result is the outcome of one check.
type Result struct {
	Name    string
	Err     error
	Latency time.Duration
}

// Report is the outcome of a Run, sorted by name.
type Report []Result

// Healthy reports whether every check passed.
func (r Report) Healthy() bool {
	for _, res := range r {
		if res.Err != nil {
			return false
		}
	}
	return true
}

// Err joins the failed checks, or returns nil.
func (r Report) Err() error {
	var failed []string
	for _, res := range r {
		if res.Err != nil {
			failed = append(failed, res.Name+": "+res.Err.Error())
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnhealthy, strings.Join(failed, "; "))
}

// Run executes every checker concurrently, each bounded by timeout (zero
// uses DefaultTimeout).
func Run(ctx context.Context, checkers map[string]Checker, timeout time.Duration) Report {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		report = make(Report, 0, len(checkers))
	)
	for name, c := range checkers {
		wg.Add(1)
		go func(name string, c Checker) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			start := time.Now()
			err := c.HealthCheck(cctx)
			res := Result{Name: name, Err: err, Latency: time.Since(start)}
			mu.Lock()
			report = append(report, res)
			mu.Unlock()
		}(name, c)
	}
	wg.Wait()
	sort.Slice(report, func(i, j int) bool { return report[i].Name < report[j].Name })
	return report
}

// HTTPChecker issues a GET and expects a 2xx status.
type HTTPChecker struct {
	url    string
	client *http.Client
}

// NewHTTPChecker creates a checker for url. A nil transport uses
// http.DefaultTransport.
func NewHTTPChecker(url string, transport http.RoundTripper) *HTTPChecker {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &HTTPChecker{url: url, client: &http.Client{Transport: transport}}
}

// HealthCheck implements Checker.
func (h *HTTPChecker) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("GET %s: status %d", req.URL.Path, resp.StatusCode)
	}
	return nil
}
