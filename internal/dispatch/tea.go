package dispatch

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// WorkMsg carries a work item into a Bubble Tea program. Models forward it
// to Run from Update.
type WorkMsg struct {
	work func()
}

// Run executes the carried work.
func (m WorkMsg) Run() {
	if m.work != nil {
		m.work()
	}
}

// Sender is the part of *tea.Program used by Tea.
type Sender interface {
	Send(msg tea.Msg)
}

// Tea is a MainDispatcher backed by a Bubble Tea program. Work submitted
// before Bind is buffered and sent, in order, when the program is bound.
type Tea struct {
	mu      sync.Mutex
	sender  Sender
	pending []tea.Msg
	sendMu  sync.Mutex
}

// NewTea returns an unbound Tea dispatcher.
func NewTea() *Tea {
	return &Tea{}
}

// Bind attaches the program that will receive work.
func (t *Tea) Bind(s Sender) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.mu.Lock()
	t.sender = s
	pending := t.pending
	t.pending = nil
	t.mu.Unlock()

	for _, msg := range pending {
		s.Send(msg)
	}
}

// ExecuteOnMain implements MainDispatcher. It blocks until the program has
// accepted the message, which keeps submissions from one goroutine in order.
func (t *Tea) ExecuteOnMain(work func()) {
	t.send(WorkMsg{work: work})
}

// ExecuteDelayed implements MainDispatcher.
func (t *Tea) ExecuteDelayed(work func(), delay time.Duration) *Delayed {
	d := newDelayed(work)
	d.timer = time.AfterFunc(delay, func() {
		t.ExecuteOnMain(d.run)
	})
	return d
}

// ExecuteSynchronously implements MainDispatcher. Calling it from Update
// deadlocks.
func (t *Tea) ExecuteSynchronously(work func()) {
	done := make(chan struct{})
	t.ExecuteOnMain(func() {
		defer close(done)
		work()
	})
	<-done
}

// Cancel implements MainDispatcher.
func (t *Tea) Cancel(d *Delayed) bool {
	return d.cancel()
}

func (t *Tea) send(msg tea.Msg) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.mu.Lock()
	s := t.sender
	if s == nil {
		t.pending = append(t.pending, msg)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	s.Send(msg)
}
