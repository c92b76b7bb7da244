package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/handiism/fetcher/internal/dispatch"
	"github.com/handiism/fetcher/internal/sink"
)

const testURL = "http://crazybob.org/"

// oneByteReader returns {1, 2, 3}, one byte per Read.
type oneByteReader struct {
	count   int
	failAt  int
	failErr error
}

func (r *oneByteReader) Read(p []byte) (int, error) {
	if r.failErr != nil && r.count == r.failAt {
		return 0, r.failErr
	}
	if r.count == 3 {
		return 0, io.EOF
	}
	r.count++
	p[0] = byte(r.count)
	return 1, nil
}

// singletonClient answers every request with the same response.
type singletonClient struct {
	t      *testing.T
	status int
	length int64
	body   io.Reader
	err    error
	calls  int
}

func (c *singletonClient) Execute(req *http.Request, handle func(*http.Response) error) error {
	c.calls++
	assert.Equal(c.t, testURL, req.URL.String())
	assert.Equal(c.t, http.MethodGet, req.Method)
	if c.err != nil {
		return c.err
	}
	return handle(&http.Response{
		StatusCode:    c.status,
		Status:        strconv.Itoa(c.status) + " " + http.StatusText(c.status),
		ContentLength: c.length,
		Body:          io.NopCloser(c.body),
	})
}

type countingExecutor struct {
	calls int
}

func (e *countingExecutor) Execute(work func()) {
	e.calls++
	work()
}

// countingMain runs ExecuteOnMain inline; the other operations are not used
// by the fetcher.
type countingMain struct {
	calls int
}

func (m *countingMain) ExecuteOnMain(work func()) {
	m.calls++
	work()
}

func (m *countingMain) ExecuteDelayed(func(), time.Duration) *dispatch.Delayed {
	panic("unexpected ExecuteDelayed")
}

func (m *countingMain) ExecuteSynchronously(func()) {
	panic("unexpected ExecuteSynchronously")
}

func (m *countingMain) Cancel(*dispatch.Delayed) bool {
	panic("unexpected Cancel")
}

type mockFactory struct {
	mock.Mock
}

func (m *mockFactory) NewSink() (sink.ByteSink, error) {
	args := m.Called()
	s, _ := args.Get(0).(sink.ByteSink)
	return s, args.Error(1)
}

type mockCallback[T any] struct {
	mock.Mock
}

func (m *mockCallback[T]) Call(result T) {
	m.Called(result)
}

func (m *mockCallback[T]) Fail(err error) {
	m.Called(err)
}

type mockListener struct {
	mock.Mock
}

func (m *mockListener) HearProgress(percent int) {
	m.Called(percent)
}

// recorder captures notifications in the order they reach the main dispatcher.
type recorder[T any] struct {
	mu       sync.Mutex
	events   []string
	percents []int
	results  []T
	errs     []error
}

func (r *recorder[T]) HearProgress(percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "progress")
	r.percents = append(r.percents, percent)
}

func (r *recorder[T]) Call(result T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "result")
	r.results = append(r.results, result)
}

func (r *recorder[T]) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "error")
	r.errs = append(r.errs, err)
}

// trackingSink counts writes and closes and can be told to fail.
type trackingSink struct {
	sink.MemorySink
	writeErr error
	closeErr error
	closes   int
}

func (s *trackingSink) Write(p []byte) (int, error) {
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	return s.MemorySink.Write(p)
}

func (s *trackingSink) Close() error {
	s.closes++
	_ = s.MemorySink.Close()
	return s.closeErr
}

func staticProvider(c HTTPClient) ClientProvider {
	return ClientProviderFunc(func() HTTPClient { return c })
}

func requireFetchError(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	var fe *Error
	require.True(t, errors.As(err, &fe), "expected *fetch.Error, got %T", err)
	require.Equal(t, kind, fe.Kind)
	require.Equal(t, testURL, fe.URL)
	return fe
}

func TestFetch_Successful(t *testing.T) {
	client := &singletonClient{t: t, status: 200, length: 3, body: &oneByteReader{}}
	executor := &countingExecutor{}
	uiThread := &countingMain{}
	out := &trackingSink{}

	factory := &mockFactory{}
	factory.On("NewSink").Return(out, nil).Once()
	callback := &mockCallback[Void]{}
	callback.On("Call", Void{}).Once()
	listener := &mockListener{}
	listener.On("HearProgress", mock.AnythingOfType("int"))

	fetcher := NewVoid(staticProvider(client), executor, uiThread, WithLogger(zaptest.NewLogger(t)))
	fetcher.Fetch(context.Background(), testURL, factory, callback, listener)

	factory.AssertExpectations(t)
	callback.AssertExpectations(t)
	listener.AssertExpectations(t)
	callback.AssertNotCalled(t, "Fail", mock.Anything)

	assert.Equal(t, 1, executor.calls)
	assert.Greater(t, uiThread.calls, 1) // result + progress updates
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, []byte{1, 2, 3}, out.Bytes())
	assert.Equal(t, 1, out.closes)
}

func TestFetch_ProgressPrecedesResult(t *testing.T) {
	client := &singletonClient{t: t, status: 200, length: 3, body: &oneByteReader{}}
	uiThread := &countingMain{}
	rec := &recorder[Void]{}

	fetcher := NewVoid(staticProvider(client), &countingExecutor{}, uiThread)
	fetcher.Fetch(context.Background(), testURL, sink.NewMemoryFactory(), rec, rec)

	require.Equal(t, []int{33, 66, 100}, rec.percents)
	require.Equal(t, []string{"progress", "progress", "progress", "result"}, rec.events)
	require.Equal(t, len(rec.percents)+1, uiThread.calls)
}

func TestFetch_ReportsOnlyChangedPercentages(t *testing.T) {
	body := bytes.Repeat([]byte{7}, 1000)
	client := &singletonClient{t: t, status: 200, length: int64(len(body)), body: bytes.NewReader(body)}
	uiThread := &countingMain{}
	rec := &recorder[Void]{}
	factory := sink.NewMemoryFactory()

	fetcher := NewVoid(staticProvider(client), &countingExecutor{}, uiThread, WithBufferSize(3))
	fetcher.Fetch(context.Background(), testURL, factory, rec, rec)

	require.Equal(t, body, factory.Last().Bytes())
	require.NotEmpty(t, rec.percents)
	for i := 1; i < len(rec.percents); i++ {
		require.Greater(t, rec.percents[i], rec.percents[i-1])
	}
	require.Equal(t, 100, rec.percents[len(rec.percents)-1])
	require.Equal(t, len(rec.percents)+1, uiThread.calls)
}

func TestFetch_NonSuccessStatus(t *testing.T) {
	client := &singletonClient{t: t, status: 404, length: 3, body: &oneByteReader{}}
	uiThread := &countingMain{}
	factory := &mockFactory{}
	rec := &recorder[Void]{}

	fetcher := NewVoid(staticProvider(client), &countingExecutor{}, uiThread)
	fetcher.Fetch(context.Background(), testURL, factory, rec, rec)

	factory.AssertNotCalled(t, "NewSink")
	require.Equal(t, []string{"error"}, rec.events)
	fe := requireFetchError(t, rec.errs[0], KindStatus)
	require.Equal(t, 404, fe.StatusCode)
	require.Contains(t, fe.Error(), "HTTP 404")
	require.Equal(t, 1, uiThread.calls)
}

func TestFetch_ReadErrorMidStream(t *testing.T) {
	readErr := errors.New("connection reset")
	client := &singletonClient{t: t, status: 200, length: 3, body: &oneByteReader{failAt: 1, failErr: readErr}}
	out := &trackingSink{}
	rec := &recorder[Void]{}

	fetcher := NewVoid(staticProvider(client), &countingExecutor{}, &countingMain{})
	fetcher.Fetch(context.Background(), testURL, sink.FactoryFunc(func() (sink.ByteSink, error) { return out, nil }), rec, rec)

	require.Equal(t, []byte{1}, out.Bytes())
	require.Equal(t, 1, out.closes)
	require.Len(t, rec.errs, 1)
	require.Empty(t, rec.results)
	fe := requireFetchError(t, rec.errs[0], KindTransport)
	require.Contains(t, fe.Error(), "connection reset")
	require.Equal(t, "error", rec.events[len(rec.events)-1])
}

func TestFetch_SinkWriteError(t *testing.T) {
	client := &singletonClient{t: t, status: 200, length: 3, body: &oneByteReader{}}
	out := &trackingSink{writeErr: errors.New("disk full")}
	rec := &recorder[Void]{}

	fetcher := NewVoid(staticProvider(client), &countingExecutor{}, &countingMain{})
	fetcher.Fetch(context.Background(), testURL, sink.FactoryFunc(func() (sink.ByteSink, error) { return out, nil }), rec, rec)

	require.Equal(t, 1, out.closes)
	require.Equal(t, []string{"error"}, rec.events)
	requireFetchError(t, rec.errs[0], KindSink)
}

func TestFetch_SinkCloseError(t *testing.T) {
	client := &singletonClient{t: t, status: 200, length: 3, body: &oneByteReader{}}
	out := &trackingSink{closeErr: errors.New("flush failed")}
	rec := &recorder[Void]{}

	fetcher := NewVoid(staticProvider(client), &countingExecutor{}, &countingMain{})
	fetcher.Fetch(context.Background(), testURL, sink.FactoryFunc(func() (sink.ByteSink, error) { return out, nil }), rec, rec)

	require.Equal(t, 1, out.closes)
	require.Empty(t, rec.results)
	require.Len(t, rec.errs, 1)
	requireFetchError(t, rec.errs[0], KindSink)
}

func TestFetch_SinkFactoryError(t *testing.T) {
	client := &singletonClient{t: t, status: 200, length: 3, body: &oneByteReader{}}
	factory := &mockFactory{}
	factory.On("NewSink").Return(nil, errors.New("read-only filesystem")).Once()
	callback := &mockCallback[Void]{}
	callback.On("Fail", mock.MatchedBy(func(err error) bool {
		var fe *Error
		return errors.As(err, &fe) && fe.Kind == KindSink
	})).Once()

	fetcher := NewVoid(staticProvider(client), &countingExecutor{}, &countingMain{})
	fetcher.Fetch(context.Background(), testURL, factory, callback, nil)

	factory.AssertExpectations(t)
	callback.AssertExpectations(t)
	callback.AssertNotCalled(t, "Call", mock.Anything)
}

func TestFetch_TransportError(t *testing.T) {
	client := &singletonClient{t: t, err: errors.New("dial tcp: connection refused")}
	factory := &mockFactory{}
	rec := &recorder[Void]{}

	fetcher := NewVoid(staticProvider(client), &countingExecutor{}, &countingMain{})
	fetcher.Fetch(context.Background(), testURL, factory, rec, rec)

	factory.AssertNotCalled(t, "NewSink")
	require.Equal(t, []string{"error"}, rec.events)
	requireFetchError(t, rec.errs[0], KindTransport)
}

func TestFetch_MalformedURL(t *testing.T) {
	client := &singletonClient{t: t}
	rec := &recorder[Void]{}

	fetcher := NewVoid(staticProvider(client), &countingExecutor{}, &countingMain{})
	fetcher.Fetch(context.Background(), "://missing-scheme", sink.NewMemoryFactory(), rec, rec)

	require.Equal(t, 0, client.calls)
	require.Len(t, rec.errs, 1)
	var fe *Error
	require.True(t, errors.As(rec.errs[0], &fe))
	require.Equal(t, KindRequest, fe.Kind)
}

func TestFetch_NoClient(t *testing.T) {
	rec := &recorder[Void]{}
	fetcher := NewVoid(ClientProviderFunc(func() HTTPClient { return nil }), &countingExecutor{}, &countingMain{})
	fetcher.Fetch(context.Background(), testURL, sink.NewMemoryFactory(), rec, rec)

	require.Len(t, rec.errs, 1)
	requireFetchError(t, rec.errs[0], KindTransport)
}

func TestFetch_ProviderCalledPerFetch(t *testing.T) {
	provided := 0
	provider := ClientProviderFunc(func() HTTPClient {
		provided++
		return &singletonClient{t: t, status: 200, length: 3, body: &oneByteReader{}}
	})
	rec := &recorder[Void]{}

	fetcher := NewVoid(provider, &countingExecutor{}, &countingMain{})
	fetcher.Fetch(context.Background(), testURL, sink.NewMemoryFactory(), rec, nil)
	fetcher.Fetch(context.Background(), testURL, sink.NewMemoryFactory(), rec, nil)

	require.Equal(t, 2, provided)
	require.Len(t, rec.results, 2)
}

func TestFetch_UnknownLength(t *testing.T) {
	tests := []struct {
		name     string
		policy   UnknownLengthPolicy
		percents []int
	}{
		{name: "suppress", policy: UnknownSuppress, percents: nil},
		{name: "indeterminate", policy: UnknownIndeterminate, percents: []int{Indeterminate}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &singletonClient{t: t, status: 200, length: -1, body: &oneByteReader{}}
			uiThread := &countingMain{}
			rec := &recorder[Void]{}
			factory := sink.NewMemoryFactory()

			fetcher := NewVoid(staticProvider(client), &countingExecutor{}, uiThread, WithUnknownLength(tt.policy))
			fetcher.Fetch(context.Background(), testURL, factory, rec, rec)

			require.Equal(t, tt.percents, rec.percents)
			require.Len(t, rec.results, 1)
			require.Equal(t, len(tt.percents)+1, uiThread.calls)
			require.Equal(t, []byte{1, 2, 3}, factory.Last().Bytes())
		})
	}
}

func TestFetch_EmptyBody(t *testing.T) {
	client := &singletonClient{t: t, status: 204, length: 0, body: bytes.NewReader(nil)}
	rec := &recorder[Void]{}
	factory := sink.NewMemoryFactory()

	fetcher := NewVoid(staticProvider(client), &countingExecutor{}, &countingMain{})
	fetcher.Fetch(context.Background(), testURL, factory, rec, rec)

	require.Equal(t, []int{100}, rec.percents)
	require.Len(t, rec.results, 1)
	require.True(t, factory.Last().Closed())
	require.Zero(t, factory.Last().Len())
}

func lengthParser() Parser[int] {
	return ParserFunc[int](func(_ context.Context, s sink.ByteSink) (int, error) {
		r, err := sink.Open(s)
		if err != nil {
			return 0, err
		}
		defer r.Close()
		data, err := io.ReadAll(r)
		return len(data), err
	})
}

func TestFetch_TypedResult(t *testing.T) {
	client := &singletonClient{t: t, status: 200, length: 3, body: &oneByteReader{}}
	rec := &recorder[int]{}

	fetcher := New[int](staticProvider(client), &countingExecutor{}, &countingMain{}, lengthParser())
	fetcher.Fetch(context.Background(), testURL, sink.NewMemoryFactory(), rec, rec)

	require.Equal(t, []int{3}, rec.results)
	require.Empty(t, rec.errs)
}

func TestFetch_ParseError(t *testing.T) {
	client := &singletonClient{t: t, status: 200, length: 3, body: &oneByteReader{}}
	rec := &recorder[int]{}
	factory := sink.FactoryFunc(func() (sink.ByteSink, error) { return &trackingSink{}, nil })

	fetcher := New[int](staticProvider(client), &countingExecutor{}, &countingMain{}, ParserFunc[int](func(context.Context, sink.ByteSink) (int, error) {
		return 0, errors.New("not an image")
	}))
	fetcher.Fetch(context.Background(), testURL, factory, rec, rec)

	require.Empty(t, rec.results)
	require.Len(t, rec.errs, 1)
	requireFetchError(t, rec.errs[0], KindParse)
}

func TestFetch_ParserPanics(t *testing.T) {
	client := &singletonClient{t: t, status: 200, length: 3, body: &oneByteReader{}}
	out := &trackingSink{}
	uiThread := &countingMain{}
	rec := &recorder[int]{}

	fetcher := New[int](staticProvider(client), &countingExecutor{}, uiThread, ParserFunc[int](func(context.Context, sink.ByteSink) (int, error) {
		panic("corrupt header")
	}))
	fetcher.Fetch(context.Background(), testURL, sink.FactoryFunc(func() (sink.ByteSink, error) { return out, nil }), rec, rec)

	require.Equal(t, []string{"progress", "progress", "progress", "error"}, rec.events)
	require.Empty(t, rec.results)
	fe := requireFetchError(t, rec.errs[0], KindParse)
	require.Contains(t, fe.Error(), "panic: corrupt header")
	require.Equal(t, 1, out.closes)
	require.Equal(t, 4, uiThread.calls)
}

type panickingSink struct {
	trackingSink
}

func (s *panickingSink) Write([]byte) (int, error) {
	panic("write on broken device")
}

func TestFetch_SinkPanics(t *testing.T) {
	client := &singletonClient{t: t, status: 200, length: 3, body: &oneByteReader{}}
	out := &panickingSink{}
	rec := &recorder[Void]{}

	fetcher := NewVoid(staticProvider(client), &countingExecutor{}, &countingMain{})
	fetcher.Fetch(context.Background(), testURL, sink.FactoryFunc(func() (sink.ByteSink, error) { return out, nil }), rec, rec)

	require.Equal(t, []string{"error"}, rec.events)
	requireFetchError(t, rec.errs[0], KindSink)
	require.Equal(t, 1, out.closes)
}

func TestFetch_CallbackPanicIsNotReportedTwice(t *testing.T) {
	client := &singletonClient{t: t, status: 200, length: 3, body: &oneByteReader{}}
	failures := 0

	fetcher := NewVoid(staticProvider(client), &countingExecutor{}, &countingMain{})
	fetcher.Fetch(context.Background(), testURL, sink.NewMemoryFactory(), CallbackFuncs[Void]{
		OnResult: func(Void) { panic("caller bug") },
		OnError:  func(error) { failures++ },
	}, nil)

	require.Zero(t, failures)
}

func TestFetch_PanicOnPoolStillNotifiesLoop(t *testing.T) {
	client := &singletonClient{t: t, status: 200, length: 3, body: &oneByteReader{}}
	pool := dispatch.NewPool(1)
	loop := dispatch.NewLoop()
	rec := &recorder[int]{}

	fetcher := New[int](staticProvider(client), pool, loop, ParserFunc[int](func(context.Context, sink.ByteSink) (int, error) {
		panic("decoder bug")
	}))
	fetcher.Fetch(context.Background(), testURL, sink.NewMemoryFactory(), rec, rec)

	pool.Wait()
	loop.RunPending()

	require.Equal(t, []string{"progress", "progress", "progress", "error"}, rec.events)
	requireFetchError(t, rec.errs[0], KindParse)
}

// stallingReader returns (0, nil) stalls times before each byte, forever
// when stalls is negative.
type stallingReader struct {
	stalls int
	empty  int
	data   []byte
}

func (r *stallingReader) Read(p []byte) (int, error) {
	if r.stalls < 0 || r.empty < r.stalls {
		r.empty++
		return 0, nil
	}
	r.empty = 0
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	p[0] = r.data[0]
	r.data = r.data[1:]
	return 1, nil
}

func TestFetch_BodyWithoutProgress(t *testing.T) {
	client := &singletonClient{t: t, status: 200, length: 3, body: &stallingReader{stalls: -1}}
	out := &trackingSink{}
	rec := &recorder[Void]{}

	fetcher := NewVoid(staticProvider(client), &countingExecutor{}, &countingMain{})
	fetcher.Fetch(context.Background(), testURL, sink.FactoryFunc(func() (sink.ByteSink, error) { return out, nil }), rec, rec)

	require.Equal(t, []string{"error"}, rec.events)
	fe := requireFetchError(t, rec.errs[0], KindTransport)
	require.ErrorContains(t, fe, io.ErrNoProgress.Error())
	require.Equal(t, 1, out.closes)
}

func TestFetch_OccasionalEmptyReads(t *testing.T) {
	client := &singletonClient{t: t, status: 200, length: 3, body: &stallingReader{stalls: maxEmptyReads - 1, data: []byte{1, 2, 3}}}
	factory := sink.NewMemoryFactory()
	rec := &recorder[Void]{}

	fetcher := NewVoid(staticProvider(client), &countingExecutor{}, &countingMain{})
	fetcher.Fetch(context.Background(), testURL, factory, rec, rec)

	require.Empty(t, rec.errs)
	require.Equal(t, []int{33, 66, 100}, rec.percents)
	require.Equal(t, []byte{1, 2, 3}, factory.Last().Bytes())
}

// netClient drives a real net/http round trip.
type netClient struct{}

func (netClient) Execute(req *http.Request, handle func(*http.Response) error) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return handle(resp)
}

func TestFetch_BackgroundPoolAndMainLoop(t *testing.T) {
	payload := bytes.Repeat([]byte("abcdefgh"), 2048)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	pool := dispatch.NewPool(2)
	loop := dispatch.NewLoop()
	fetcher := NewVoid(staticProvider(netClient{}), pool, loop, WithBufferSize(1024))

	const fetches = 4
	recs := make([]*recorder[Void], fetches+1)
	factories := make([]*sink.MemoryFactory, fetches)
	for i := 0; i < fetches; i++ {
		recs[i] = &recorder[Void]{}
		factories[i] = sink.NewMemoryFactory()
		fetcher.Fetch(context.Background(), fmt.Sprintf("%s/file/%d", srv.URL, i), factories[i], recs[i], recs[i])
	}
	recs[fetches] = &recorder[Void]{}
	fetcher.Fetch(context.Background(), srv.URL+"/missing", sink.NewMemoryFactory(), recs[fetches], recs[fetches])

	go func() {
		pool.Wait()
		loop.Quit()
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, loop.Run(ctx))

	for i := 0; i < fetches; i++ {
		rec := recs[i]
		require.Len(t, rec.results, 1, "fetch %d", i)
		require.Empty(t, rec.errs)
		require.Equal(t, "result", rec.events[len(rec.events)-1])
		require.Equal(t, 100, rec.percents[len(rec.percents)-1])
		require.Equal(t, payload, factories[i].Last().Bytes())
		require.True(t, factories[i].Last().Closed())
	}
	require.Len(t, recs[fetches].errs, 1)
	require.Empty(t, recs[fetches].results)
}
