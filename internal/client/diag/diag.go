// Package diag runs fire-and-forget work on behalf of the client core and
// routes its failures to a single logging sink.
package diag

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/logger"
)

// Reporter starts detached tasks and logs the ones that fail.
// Callers never observe a task's error.
type Reporter struct {
	log *zap.Logger
	wg  sync.WaitGroup
}

// New returns a Reporter logging to log.
func New(log *zap.Logger) *Reporter {
	return &Reporter{log: logger.OrNop(log)}
}

// Go runs fn in its own goroutine with a background context. The task keeps
// running even if the caller goes away; a returned error is logged at Warn.
func (r *Reporter) Go(task string, fn func(ctx context.Context) error) {
	id := uuid.NewString()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := fn(context.Background()); err != nil {
			r.log.Warn("background task failed",
				zap.String("task", task),
				zap.String("task_id", id),
				zap.Error(err),
			)
			return
		}
		r.log.Debug("background task done", zap.String("task", task), zap.String("task_id", id))
	}()
}

// Wait blocks until every task started so far has finished.
func (r *Reporter) Wait() {
	r.wg.Wait()
}

// Logger returns the sink the Reporter writes to.
func (r *Reporter) Logger() *zap.Logger {
	return r.log
}
