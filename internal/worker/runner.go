// Package worker provides detached background task execution. Tasks
// scheduled from a request handler run to completion independently of
// the response having been sent; failures and panics are contained at
// the task boundary and logged, never propagated.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultTaskTimeout = 60 * time.Second

// Runner executes fire-and-forget tasks on their own goroutines with a
// detached context, so a closed client connection never cancels work
// already scheduled.
type Runner struct {
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewRunner constructs a Runner. The logger is required.
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logger, timeout: defaultTaskTimeout}
}

// Go schedules fn on a fresh goroutine with a detached, time-bounded
// context. A returned error or a panic is logged and swallowed; the
// failed cycle self-heals on the next poll or fill.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("background task panicked", "task", name, "panic", rec)
			}
		}()

		if err := fn(ctx); err != nil {
			r.logger.Warn("background task failed", "task", name, "error", err)
		}
	}()
}

// Wait blocks until every scheduled task has finished. Used on shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}
