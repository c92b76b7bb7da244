package dispatch

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool is a background Executor. Each work item gets its own goroutine;
// at most limit of them run at once. Execute never blocks.
type Pool struct {
	g       errgroup.Group
	sem     *semaphore.Weighted
	running atomic.Int64
	logger  *zap.Logger
}

// NewPool creates a Pool running at most limit items concurrently. A limit
// of zero or less means no bound.
func NewPool(limit int) *Pool {
	p := &Pool{logger: zap.L().Named("dispatch.pool")}
	if limit > 0 {
		p.sem = semaphore.NewWeighted(int64(limit))
	}
	return p
}

// Execute implements Executor.
func (p *Pool) Execute(work func()) {
	p.g.Go(func() error {
		if p.sem != nil {
			// Acquire with a background context cannot fail.
			_ = p.sem.Acquire(context.Background(), 1)
			defer p.sem.Release(1)
		}
		p.running.Add(1)
		defer p.running.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("work item panicked", zap.Any("panic", r))
			}
		}()
		work()
		return nil
	})
}

// Running returns the number of work items currently executing.
func (p *Pool) Running() int {
	return int(p.running.Load())
}

// Wait blocks until every submitted work item has finished.
func (p *Pool) Wait() {
	_ = p.g.Wait()
}
