package dispatch

import (
	"sync/atomic"
	"time"
)

// Executor runs work items, typically on a goroutine other than the caller's.
type Executor interface {
	Execute(work func())
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(work func())

// Execute calls f(work).
func (f ExecutorFunc) Execute(work func()) {
	f(work)
}

// MainDispatcher runs work serially, in submission order, on one logical
// goroutine.
type MainDispatcher interface {
	// ExecuteOnMain queues work and returns without waiting for it.
	ExecuteOnMain(work func())
	// ExecuteDelayed queues work after delay. The returned handle can be
	// passed to Cancel.
	ExecuteDelayed(work func(), delay time.Duration) *Delayed
	// ExecuteSynchronously queues work and waits until it has run. It must
	// not be called from the main goroutine itself.
	ExecuteSynchronously(work func())
	// Cancel prevents delayed work from running. It reports whether the
	// work was still pending.
	Cancel(d *Delayed) bool
}

// Inline runs work on the calling goroutine.
type Inline struct{}

// Execute runs work immediately.
func (Inline) Execute(work func()) {
	work()
}

const (
	delayedPending int32 = iota
	delayedRan
	delayedCancelled
)

// Delayed is a handle to work scheduled with ExecuteDelayed.
type Delayed struct {
	state atomic.Int32
	timer *time.Timer
	work  func()
}

func newDelayed(work func()) *Delayed {
	return &Delayed{work: work}
}

// run executes the work unless it was cancelled first.
func (d *Delayed) run() {
	if d.state.CompareAndSwap(delayedPending, delayedRan) {
		d.work()
	}
}

// cancel marks the work cancelled and stops its timer.
func (d *Delayed) cancel() bool {
	if d == nil || !d.state.CompareAndSwap(delayedPending, delayedCancelled) {
		return false
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	return true
}

// Pending reports whether the work has neither run nor been cancelled.
func (d *Delayed) Pending() bool {
	return d.state.Load() == delayedPending
}
