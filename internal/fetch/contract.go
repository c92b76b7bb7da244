package fetch

import (
	"context"
	"net/http"

	"github.com/handiism/fetcher/internal/sink"
)

// Void is the result type of fetches that only signal success.
type Void struct{}

// HTTPClient performs a request synchronously. The handler is called once
// with the response while its body is still open; the client closes the
// body afterwards.
type HTTPClient interface {
	Execute(req *http.Request, handle func(resp *http.Response) error) error
}

// ClientProvider hands out an HTTPClient for each fetch. Implementations may
// build a fresh client every time or return a shared one.
type ClientProvider interface {
	Client() HTTPClient
}

// ClientProviderFunc adapts a function to the ClientProvider interface.
type ClientProviderFunc func() HTTPClient

// Client calls f.
func (f ClientProviderFunc) Client() HTTPClient {
	return f()
}

// ProgressListener receives percentage updates on the main dispatcher.
type ProgressListener interface {
	HearProgress(percent int)
}

// ProgressFunc adapts a function to the ProgressListener interface.
type ProgressFunc func(percent int)

// HearProgress calls f.
func (f ProgressFunc) HearProgress(percent int) {
	f(percent)
}

// Callback receives the terminal outcome of a fetch on the main dispatcher.
// Exactly one of its methods is called, once.
type Callback[T any] interface {
	Call(result T)
	Fail(err error)
}

// CallbackFuncs adapts a pair of functions to the Callback interface. Nil
// functions are skipped.
type CallbackFuncs[T any] struct {
	OnResult func(result T)
	OnError  func(err error)
}

// Call implements Callback.
func (c CallbackFuncs[T]) Call(result T) {
	if c.OnResult != nil {
		c.OnResult(result)
	}
}

// Fail implements Callback.
func (c CallbackFuncs[T]) Fail(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}

// Parser derives a typed result from a completed, closed sink.
type Parser[T any] interface {
	Parse(ctx context.Context, s sink.ByteSink) (T, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc[T any] func(ctx context.Context, s sink.ByteSink) (T, error)

// Parse calls f.
func (f ParserFunc[T]) Parse(ctx context.Context, s sink.ByteSink) (T, error) {
	return f(ctx, s)
}
