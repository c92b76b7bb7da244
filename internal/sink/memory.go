package sink

import (
	"bytes"
	"io"
	"sync"
)

// MemorySink accumulates written bytes in memory.
type MemorySink struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Write appends p to the buffer.
func (s *MemorySink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.buf.Write(p)
}

// Close forbids further writes. Calling it twice is harmless.
func (s *MemorySink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Closed reports whether Close has been called.
func (s *MemorySink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Bytes returns a copy of everything written so far.
func (s *MemorySink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.buf.Bytes())
}

// Len returns the number of bytes written.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}

// Open returns a reader over a snapshot of the content.
func (s *MemorySink) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.Bytes())), nil
}

// MemoryFactory creates MemorySinks and remembers them in creation order.
type MemoryFactory struct {
	mu    sync.Mutex
	sinks []*MemorySink
}

// NewMemoryFactory returns an empty MemoryFactory.
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{}
}

// NewSink implements Factory.
func (f *MemoryFactory) NewSink() (ByteSink, error) {
	s := NewMemorySink()
	f.mu.Lock()
	f.sinks = append(f.sinks, s)
	f.mu.Unlock()
	return s, nil
}

// Sinks returns every sink created so far.
func (f *MemoryFactory) Sinks() []*MemorySink {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*MemorySink, len(f.sinks))
	copy(out, f.sinks)
	return out
}

// Last returns the most recently created sink, or nil.
func (f *MemoryFactory) Last() *MemorySink {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sinks) == 0 {
		return nil
	}
	return f.sinks[len(f.sinks)-1]
}
