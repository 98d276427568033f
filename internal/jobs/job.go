package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Defaults for Config.
const (
	DefaultInterval = 30 * time.Second
	DefaultTimeout  = 10 * time.Second
)

// JobMetrics receives run outcomes. *Metrics implements it.
type JobMetrics interface {
	ObserveRun(run Run)
}

// Task is one run of a periodic job.
type Task func(ctx context.Context) error

// Error labels a task failure with an error type for metrics.
type Error struct {
	Type string
	Err  error
}

func (e *Error) Error() string { return e.Type + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// ErrSkipped is returned by a task that had nothing to do this run.
var ErrSkipped = errors.New("run skipped")

func errorType(err error) string {
	var je *Error
	switch {
	case errors.As(err, &je):
		return je.Type
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	default:
		return "task_error"
	}
}

// Config configures a Job.
type Config struct {
	// Interval is the time between runs.
	Interval time.Duration
	// Timeout bounds a single run.
	Timeout time.Duration
	// RunOnStart runs the task once immediately when the job starts.
	RunOnStart bool
	Clock      clock.Clock
	Logger     *slog.Logger
	Metrics    JobMetrics
}

// Job runs a task on a fixed interval in one background goroutine. Start
// and Stop own its lifetime; at most one loop runs per Job.
type Job struct {
	jobType string
	task    Task
	config  Config

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a stopped job of jobType.
func New(jobType string, task Task, config Config) *Job {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Job{jobType: jobType, task: task, config: config}
}

// Type returns the job type label.
func (j *Job) Type() string { return j.jobType }

// Start begins the periodic loop and returns immediately. Starting a
// running job does nothing.
func (j *Job) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	stopCh, doneCh := j.stopCh, j.doneCh
	ticker := j.config.Clock.Ticker(j.config.Interval)
	j.mu.Unlock()

	j.config.Logger.Info("background job started",
		slog.String("job_type", j.jobType),
		slog.Duration("interval", j.config.Interval))
	go j.run(ctx, ticker, stopCh, doneCh)
	return nil
}

// Stop signals the loop to stop and waits for it to exit. A run in
// progress finishes first.
func (j *Job) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	stopCh := j.stopCh
	doneCh := j.doneCh
	j.mu.Unlock()

	close(stopCh)
	<-doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()
}

// IsRunning returns whether the loop is running.
func (j *Job) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

func stopped(ctx context.Context, stopCh <-chan struct{}) bool {
	select {
	case <-stopCh:
		return true
	default:
		return ctx.Err() != nil
	}
}

// run is the job loop. The stop signal is checked before every wait and
// again after waking, so a run never starts once Stop has been called.
func (j *Job) run(ctx context.Context, ticker *clock.Ticker, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	defer ticker.Stop()

	if j.config.RunOnStart && !stopped(ctx, stopCh) {
		_ = j.RunOnce(ctx)
	}

	for {
		if stopped(ctx, stopCh) {
			break
		}
		select {
		case <-ctx.Done():
		case <-stopCh:
		case <-ticker.C:
		}
		if stopped(ctx, stopCh) {
			break
		}
		_ = j.RunOnce(ctx)
	}
	j.config.Logger.Info("background job stopped", slog.String("job_type", j.jobType))
}

// RunOnce runs the task once with the configured timeout and records the
// outcome.
func (j *Job) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	start := j.config.Clock.Now()
	err := j.task(ctx)
	duration := j.config.Clock.Since(start).Seconds()

	status := StatusSuccess
	switch {
	case errors.Is(err, ErrSkipped):
		status = StatusSkipped
		err = nil
	case err != nil:
		status = StatusFailure
		j.config.Logger.Warn("background job run failed",
			slog.String("job_type", j.jobType),
			slog.String("error", err.Error()))
	}

	if m := j.config.Metrics; m != nil {
		run := Run{JobType: j.jobType, Status: status, Seconds: duration, FinishedAt: j.config.Clock.Now()}
		if status == StatusFailure {
			run.ErrorType = errorType(err)
		}
		m.ObserveRun(run)
	}
	return err
}
