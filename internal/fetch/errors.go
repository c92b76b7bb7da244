package fetch

import (
	"fmt"
)

// Kind classifies fetch failures.
type Kind int

const (
	// KindRequest means the request could not be built, e.g. a malformed URL.
	KindRequest Kind = iota
	// KindTransport covers connection errors and body read errors.
	KindTransport
	// KindStatus means the server answered outside the 2xx range.
	KindStatus
	// KindSink means the destination could not be created, written or closed.
	KindSink
	// KindParse means the typed result could not be derived from the content.
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindSink:
		return "sink"
	case KindParse:
		return "parse"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the failure delivered to Callback.Fail.
type Error struct {
	URL        string
	Kind       Kind
	StatusCode int // set for KindStatus
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
