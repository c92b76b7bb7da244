package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Loop is a MainDispatcher that runs queued work on the goroutine that calls
// Run. Submissions never block.
type Loop struct {
	mu       sync.Mutex
	queue    []func()
	quitting bool
	wake     chan struct{}
	logger   *zap.Logger
}

// NewLoop creates an idle Loop.
func NewLoop() *Loop {
	return &Loop{
		wake:   make(chan struct{}, 1),
		logger: zap.L().Named("dispatch.loop"),
	}
}

// ExecuteOnMain implements MainDispatcher.
func (l *Loop) ExecuteOnMain(work func()) {
	l.mu.Lock()
	l.queue = append(l.queue, work)
	l.mu.Unlock()
	l.signal()
}

// ExecuteDelayed implements MainDispatcher.
func (l *Loop) ExecuteDelayed(work func(), delay time.Duration) *Delayed {
	d := newDelayed(work)
	d.timer = time.AfterFunc(delay, func() {
		l.ExecuteOnMain(d.run)
	})
	return d
}

// ExecuteSynchronously implements MainDispatcher.
func (l *Loop) ExecuteSynchronously(work func()) {
	done := make(chan struct{})
	l.ExecuteOnMain(func() {
		defer close(done)
		work()
	})
	<-done
}

// Cancel implements MainDispatcher.
func (l *Loop) Cancel(d *Delayed) bool {
	return d.cancel()
}

// Quit makes Run return once every item queued before the call has run.
func (l *Loop) Quit() {
	l.ExecuteOnMain(func() {
		l.mu.Lock()
		l.quitting = true
		l.mu.Unlock()
	})
}

// Len returns the number of queued items.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Run executes queued work until Quit is processed or ctx is done. Items
// still queued when ctx ends are left in the queue.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	l.quitting = false
	l.mu.Unlock()

	for {
		for {
			work, quit := l.next()
			if quit {
				return nil
			}
			if work == nil {
				break
			}
			work()
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			l.logger.Debug("loop stopped", zap.Int("pending", l.Len()))
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// RunPending executes everything currently queued and returns the number of
// items run. It is useful in tests that drive the loop by hand.
func (l *Loop) RunPending() int {
	n := 0
	for {
		work, quit := l.next()
		if quit || work == nil {
			return n
		}
		work()
		n++
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.quitting {
		return nil, true
	}
	if len(l.queue) == 0 {
		return nil, false
	}
	work := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return work, false
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
