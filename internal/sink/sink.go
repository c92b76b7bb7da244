package sink

import (
	"io"

	"github.com/rotisserie/eris"
)

var (
	// ErrClosed is returned by Write after the sink has been closed.
	ErrClosed = eris.New("sink: write after close")
	// ErrNotReopenable is returned by Open for sinks that cannot be read back.
	ErrNotReopenable = eris.New("sink: content cannot be reopened")
)

// ByteSink is an append-only byte destination with an explicit close.
type ByteSink interface {
	io.Writer
	io.Closer
}

// Factory creates a fresh ByteSink for every fetch.
type Factory interface {
	NewSink() (ByteSink, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func() (ByteSink, error)

// NewSink calls f.
func (f FactoryFunc) NewSink() (ByteSink, error) {
	return f()
}

// Reopener is implemented by sinks whose content can be read back once
// writing is finished.
type Reopener interface {
	Open() (io.ReadCloser, error)
}

// Open returns a reader over the content of s, or ErrNotReopenable.
func Open(s ByteSink) (io.ReadCloser, error) {
	r, ok := s.(Reopener)
	if !ok {
		return nil, eris.Wrapf(ErrNotReopenable, "sink %T", s)
	}
	return r.Open()
}
