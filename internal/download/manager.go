package download

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/handiism/fetcher/internal/config"
	"github.com/handiism/fetcher/internal/dispatch"
	"github.com/handiism/fetcher/internal/fetch"
	"github.com/handiism/fetcher/internal/http"
	"github.com/handiism/fetcher/internal/sink"
)

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent represents a download progress update. URL and Percent are
// set for per-file percentage updates; Percent is fetch.Indeterminate when
// the size is unknown.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
	URL     string
	Percent int
}

// Result is the outcome of one file.
type Result struct {
	URL  string
	Path string
	Err  error
}

// Summary is delivered once every started fetch has finished.
type Summary struct {
	Results   []Result
	Succeeded int
	Failed    int
	Elapsed   time.Duration
}

// Manager downloads a batch of URLs into the configured output directory.
//
// Everything that touches Manager state after Start runs on the main
// dispatcher, so the progress callback and onDone may update UI state
// directly.
type Manager struct {
	settings *config.Settings
	provider *http.Provider
	main     dispatch.MainDispatcher
	fetcher  *fetch.Fetcher[fetch.Void]
	logger   *zap.Logger

	onProgress func(ProgressEvent)

	// owned by the main dispatcher
	percents  map[int]int // by position in the batch
	results   []Result
	remaining int
	started   time.Time

	totalBytes int64
	mu         sync.RWMutex
}

// NewManager creates a Manager that runs fetches on background and delivers
// events on main.
func NewManager(settings *config.Settings, background dispatch.Executor, main dispatch.MainDispatcher, onProgress func(ProgressEvent)) *Manager {
	logger := zap.L().Named("download")
	provider := http.NewProvider(settings.ToClientOptions(), settings.FreshClientPerFetch)
	opts := append(settings.ToFetchOptions(), fetch.WithLogger(logger))

	return &Manager{
		settings:   settings,
		provider:   provider,
		main:       main,
		fetcher:    fetch.NewVoid(provider, background, main, opts...),
		logger:     logger,
		onProgress: onProgress,
		percents:   make(map[int]int),
	}
}

// ParseInputURLs splits input on newlines, commas and whitespace and keeps
// http(s) URLs.
func ParseInputURLs(input string) []string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == '\n' || r == ',' || r == ' ' || r == '\t' || r == '\r'
	})
	var urls []string
	for _, field := range fields {
		if strings.HasPrefix(field, "http://") || strings.HasPrefix(field, "https://") {
			urls = append(urls, field)
		}
	}
	return urls
}

// Probe sums the sizes advertised by HEAD requests. It blocks and may be
// called from any goroutine; URLs without a size are skipped and reported on
// the main dispatcher.
func (m *Manager) Probe(ctx context.Context, urls []string) int64 {
	client := m.provider.HTTPClient()
	var total int64
	for _, u := range urls {
		size, err := client.GetFileSize(ctx, u)
		if err != nil {
			event := ProgressEvent{Message: fmt.Sprintf("Size unknown for %s: %v", u, err), Level: LevelWarning, URL: u}
			m.main.ExecuteOnMain(func() { m.progress(event) })
			continue
		}
		total += size
	}
	m.mu.Lock()
	m.totalBytes = total
	m.mu.Unlock()
	return total
}

// TotalBytes returns the total computed by the last Probe.
func (m *Manager) TotalBytes() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalBytes
}

// Start begins one fetch per URL and returns immediately. onDone runs on
// the main dispatcher after the last fetch has reported. Start must be
// called from the main dispatcher's goroutine or before it starts running.
func (m *Manager) Start(ctx context.Context, urls []string, onDone func(Summary)) {
	m.started = time.Now()
	m.results = nil
	m.percents = make(map[int]int, len(urls))
	m.remaining = len(urls)

	if len(urls) == 0 {
		m.main.ExecuteOnMain(func() { onDone(m.summary()) })
		return
	}

	used := make(map[string]bool, len(urls))
	for i, u := range urls {
		name := uniqueName(FileName(m.settings.FileNameFormat, u, i+1), used)
		factory := sink.NewFileFactory(m.settings.OutputDir, name)
		m.percents[i] = 0
		m.progress(ProgressEvent{Message: fmt.Sprintf("Fetching %s", u), Level: LevelVerbose, URL: u})

		m.fetcher.Fetch(ctx, u, factory,
			fetch.CallbackFuncs[fetch.Void]{
				OnResult: func(fetch.Void) {
					m.percents[i] = 100
					m.finish(Result{URL: u, Path: factory.Path()}, onDone)
				},
				OnError: func(err error) {
					m.finish(Result{URL: u, Path: factory.Path(), Err: err}, onDone)
				},
			},
			fetch.ProgressFunc(func(percent int) {
				if percent >= 0 {
					m.percents[i] = percent
				}
				m.progress(ProgressEvent{
					Message: fmt.Sprintf("%s: %s", path.Base(factory.Path()), percentLabel(percent)),
					Level:   LevelVerbose,
					URL:     u,
					Percent: percent,
				})
			}),
		)
	}
}

// Percent returns the mean completion of the current batch. It must be
// called on the main dispatcher.
func (m *Manager) Percent() int {
	if len(m.percents) == 0 {
		return 0
	}
	sum := 0
	for _, p := range m.percents {
		sum += p
	}
	return sum / len(m.percents)
}

func (m *Manager) finish(r Result, onDone func(Summary)) {
	m.results = append(m.results, r)
	if r.Err != nil {
		m.progress(ProgressEvent{Message: fmt.Sprintf("Error downloading %s: %v", r.URL, r.Err), Level: LevelError, URL: r.URL})
	} else {
		m.progress(ProgressEvent{Message: fmt.Sprintf("Downloaded: %s", path.Base(r.Path)), Level: LevelSuccess, URL: r.URL, Percent: 100})
	}

	m.remaining--
	if m.remaining == 0 {
		s := m.summary()
		m.logger.Info("batch finished",
			zap.Int("succeeded", s.Succeeded),
			zap.Int("failed", s.Failed),
			zap.Duration("elapsed", s.Elapsed),
		)
		onDone(s)
	}
}

func (m *Manager) summary() Summary {
	s := Summary{Results: append([]Result(nil), m.results...), Elapsed: time.Since(m.started)}
	for _, r := range m.results {
		if r.Err != nil {
			s.Failed++
		} else {
			s.Succeeded++
		}
	}
	return s
}

func (m *Manager) progress(event ProgressEvent) {
	if m.onProgress != nil {
		m.onProgress(event)
	}
}

// FileName expands format for rawURL. Supported placeholders are {name}
// (last path segment), {host} and {index} (1-based position in the batch).
func FileName(format, rawURL string, index int) string {
	name, host := "download", ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Hostname()
		if base := path.Base(u.Path); base != "." && base != "/" && base != "" {
			name = base
		}
	}
	if format == "" {
		format = "{name}"
	}
	r := strings.NewReplacer(
		"{name}", name,
		"{host}", host,
		"{index}", strconv.Itoa(index),
	)
	return sink.SanitizeFileName(r.Replace(format))
}

// uniqueName returns name, or name with " (n)" before the extension when an
// earlier file in the batch already took it. Names are compared
// case-insensitively.
func uniqueName(name string, used map[string]bool) string {
	if key := strings.ToLower(name); !used[key] {
		used[key] = true
		return name
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if key := strings.ToLower(candidate); !used[key] {
			used[key] = true
			return candidate
		}
	}
}

func percentLabel(percent int) string {
	if percent == fetch.Indeterminate {
		return "in progress"
	}
	return fmt.Sprintf("%d%%", percent)
}
