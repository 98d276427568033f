package jobs

import (
	"context"
	"errors"
)

// Flusher persists in-memory state. *cache.Cache implements it.
type Flusher interface {
	Name() string
	Flush(ctx context.Context) error
}

// NewCacheFlushJob creates the job that writes every flusher's live entries
// to its store. All flushers run even when one fails.
func NewCacheFlushJob(config Config, flushers ...Flusher) *Job {
	task := func(ctx context.Context) error {
		if len(flushers) == 0 {
			return ErrSkipped
		}
		var errs []error
		for _, f := range flushers {
			if err := f.Flush(ctx); err != nil {
				errs = append(errs, &Error{Type: ErrorTypeStore, Err: err})
			}
		}
		return errors.Join(errs...)
	}
	return New(JobTypeCacheFlush, task, config)
}
