package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/handiism/fetcher/internal/dispatch"
	"github.com/handiism/fetcher/internal/sink"
)

// DefaultBufferSize is the read buffer used when no option overrides it.
const DefaultBufferSize = 4096

// maxEmptyReads bounds consecutive (0, nil) reads from a body, as in bufio.
const maxEmptyReads = 100

// State is the lifecycle stage of a single fetch.
type State int

const (
	StatePending State = iota
	StateRequesting
	StateStreaming
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Option configures a Fetcher.
type Option func(*options)

type options struct {
	logger        *zap.Logger
	bufferSize    int
	unknownLength UnknownLengthPolicy
}

// WithLogger sets the logger. The global zap logger is used by default.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithBufferSize sets the read buffer size. Values below one are ignored.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// WithUnknownLength sets what is reported for bodies of unknown length.
func WithUnknownLength(policy UnknownLengthPolicy) Option {
	return func(o *options) {
		o.unknownLength = policy
	}
}

// Fetcher runs fetches whose result type is T.
type Fetcher[T any] struct {
	clients    ClientProvider
	background dispatch.Executor
	main       dispatch.MainDispatcher
	parser     Parser[T]
	opts       options
}

// New creates a Fetcher that derives results with parser. A nil parser
// delivers the zero value of T.
func New[T any](clients ClientProvider, background dispatch.Executor, main dispatch.MainDispatcher, parser Parser[T], opts ...Option) *Fetcher[T] {
	o := options{
		logger:     zap.L(),
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Fetcher[T]{
		clients:    clients,
		background: background,
		main:       main,
		parser:     parser,
		opts:       o,
	}
}

// NewVoid creates a Fetcher that only signals success.
func NewVoid(clients ClientProvider, background dispatch.Executor, main dispatch.MainDispatcher, opts ...Option) *Fetcher[Void] {
	return New[Void](clients, background, main, nil, opts...)
}

// request is the state owned by one background work item.
type request[T any] struct {
	ctx      context.Context
	url      string
	sinks    sink.Factory
	callback Callback[T]
	listener ProgressListener
	state    State
	logger   *zap.Logger

	// stage classifies a panic raised by a collaborator.
	stage Kind
}

func (r *request[T]) transition(s State) {
	r.logger.Debug("fetch state", zap.Stringer("from", r.state), zap.Stringer("to", s))
	r.state = s
}

// Fetch submits one fetch of url and returns immediately. Progress and the
// outcome are delivered on the main dispatcher; listener may be nil.
func (f *Fetcher[T]) Fetch(ctx context.Context, url string, sinks sink.Factory, callback Callback[T], listener ProgressListener) {
	req := &request[T]{
		ctx:      ctx,
		url:      url,
		sinks:    sinks,
		callback: callback,
		listener: listener,
		state:    StatePending,
		logger:   f.opts.logger.With(zap.String("url", url)),
		stage:    KindTransport,
	}
	f.background.Execute(func() {
		f.run(req)
	})
}

// run is the background work item. It ends with exactly one terminal
// submission to the main dispatcher.
//
// A panic in a collaborator (client, sink, parser) fails the fetch with the
// kind of the stage it happened in. The sink has already been closed by
// then.
func (f *Fetcher[T]) run(req *request[T]) {
	started := time.Now()
	terminal := false
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if terminal {
			req.logger.Error("panic after terminal notification", zap.Any("panic", r))
			return
		}
		err := req.fail(req.stage, eris.Errorf("panic: %v", r))
		req.transition(StateFailed)
		req.logger.Error("fetch panicked", zap.Error(err))
		f.main.ExecuteOnMain(func() {
			req.callback.Fail(err)
		})
	}()

	req.transition(StateRequesting)

	result, n, err := f.execute(req)
	terminal = true
	if err != nil {
		req.transition(StateFailed)
		req.logger.Warn("fetch failed", zap.Error(err), zap.Int64("bytes", n))
		f.main.ExecuteOnMain(func() {
			req.callback.Fail(err)
		})
		return
	}

	req.transition(StateCompleted)
	req.logger.Info("fetch completed",
		zap.Int64("bytes", n),
		zap.Duration("elapsed", time.Since(started)),
	)
	f.main.ExecuteOnMain(func() {
		req.callback.Call(result)
	})
}

func (f *Fetcher[T]) execute(req *request[T]) (T, int64, error) {
	var (
		result T
		read   int64
	)

	client := f.clients.Client()
	if client == nil {
		return result, 0, req.fail(KindTransport, eris.New("no HTTP client available"))
	}

	httpReq, err := http.NewRequestWithContext(req.ctx, http.MethodGet, req.url, nil)
	if err != nil {
		return result, 0, req.fail(KindRequest, eris.Wrap(err, "build request"))
	}

	err = client.Execute(httpReq, func(resp *http.Response) error {
		req.logger.Debug("response", zap.Int("status", resp.StatusCode), zap.Int64("content_length", resp.ContentLength))
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &Error{URL: req.url, Kind: KindStatus, StatusCode: resp.StatusCode, Err: eris.Errorf("unexpected status %q", resp.Status)}
		}
		req.transition(StateStreaming)
		var streamErr error
		result, read, streamErr = f.stream(req, resp.Body, resp.ContentLength)
		return streamErr
	})
	if err != nil {
		var fe *Error
		if errors.As(err, &fe) {
			return result, read, fe
		}
		return result, read, req.fail(KindTransport, eris.Wrap(err, "execute request"))
	}
	return result, read, nil
}

// stream copies body into a new sink, reporting progress as it goes. The
// sink is closed exactly once on every path after creation.
func (f *Fetcher[T]) stream(req *request[T], body io.Reader, total int64) (result T, read int64, err error) {
	req.stage = KindSink
	s, err := req.sinks.NewSink()
	if err != nil {
		return result, 0, req.fail(KindSink, eris.Wrap(err, "create sink"))
	}

	closed := false
	defer func() {
		if closed {
			return
		}
		if cerr := s.Close(); cerr != nil {
			req.logger.Warn("closing sink after failure", zap.Error(cerr))
		}
	}()

	tracker := newProgress(total, f.opts.unknownLength)
	buf := make([]byte, f.opts.bufferSize)
	empty := 0
	for {
		req.stage = KindTransport
		n, rerr := body.Read(buf)
		if n == 0 && rerr == nil {
			empty++
			if empty >= maxEmptyReads {
				return result, read, req.fail(KindTransport, eris.Wrap(io.ErrNoProgress, "read body"))
			}
			continue
		}
		empty = 0
		req.stage = KindSink
		if n > 0 {
			written, werr := s.Write(buf[:n])
			if werr == nil && written != n {
				werr = io.ErrShortWrite
			}
			read += int64(written)
			if werr != nil {
				return result, read, req.fail(KindSink, eris.Wrap(werr, "write sink"))
			}
			if percent, ok := tracker.advance(n); ok {
				f.report(req, percent)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return result, read, req.fail(KindTransport, eris.Wrap(rerr, "read body"))
		}
	}
	if percent, ok := tracker.finish(); ok {
		f.report(req, percent)
	}

	req.stage = KindSink
	closed = true
	if cerr := s.Close(); cerr != nil {
		return result, read, req.fail(KindSink, eris.Wrap(cerr, "close sink"))
	}

	if f.parser != nil {
		req.stage = KindParse
		result, err = f.parser.Parse(req.ctx, s)
		if err != nil {
			return result, read, req.fail(KindParse, err)
		}
	}
	return result, read, nil
}

// report submits one progress notification to the main dispatcher.
func (f *Fetcher[T]) report(req *request[T], percent int) {
	if req.listener == nil {
		return
	}
	listener := req.listener
	f.main.ExecuteOnMain(func() {
		listener.HearProgress(percent)
	})
}

func (r *request[T]) fail(kind Kind, err error) *Error {
	return &Error{URL: r.url, Kind: kind, Err: err}
}
