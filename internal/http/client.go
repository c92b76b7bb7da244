package http

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Proxy modes accepted by Options.ProxyType.
const (
	ProxyNone   = "none"
	ProxySystem = "system"
	ProxyManual = "manual"
)

// Options configures a Client.
type Options struct {
	// UserAgent is sent with every request. Defaults to "fetcher/1.0".
	UserAgent string

	// Timeout bounds a whole request including the body. Zero means no limit.
	Timeout time.Duration

	// ProxyType is one of ProxyNone, ProxySystem (environment) or ProxyManual.
	ProxyType string

	// ProxyURL is used when ProxyType is ProxyManual, e.g. "http://10.0.0.1:3128".
	ProxyURL string

	// RateLimit is the number of requests per second allowed. Zero disables
	// limiting.
	RateLimit float64

	// RateBurst is the limiter's burst size. Defaults to 1.
	RateBurst int

	// Logger defaults to the global zap logger.
	Logger *zap.Logger
}

// Client wraps net/http with fetcher-specific configuration.
type Client struct {
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter
	logger     *zap.Logger

	// closeIdle drops idle connections after each request, for clients
	// used only once.
	closeIdle bool
}

// NewClient creates a Client from opts.
func NewClient(opts Options) *Client {
	return newClient(opts, newLimiter(opts))
}

// newLimiter returns nil when opts disables rate limiting.
func newLimiter(opts Options) *rate.Limiter {
	if opts.RateLimit <= 0 {
		return nil
	}
	burst := opts.RateBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
}

func newClient(opts Options, limiter *rate.Limiter) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = "fetcher/1.0"
	}
	if opts.Logger == nil {
		opts.Logger = zap.L()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: newTransport(opts.ProxyType, opts.ProxyURL, opts.Logger),
		},
		userAgent: opts.UserAgent,
		limiter:   limiter,
		logger:    opts.Logger.Named("http"),
	}
}

func newTransport(proxyType, proxyURL string, logger *zap.Logger) http.RoundTripper {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return http.DefaultTransport
	}
	transport := base.Clone()

	switch proxyType {
	case ProxyNone:
		transport.Proxy = nil
	case ProxyManual:
		parsed, err := url.Parse(strings.TrimSpace(proxyURL))
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			logger.Warn("ignoring invalid proxy URL", zap.String("proxy", proxyURL))
			transport.Proxy = nil
			break
		}
		transport.Proxy = http.ProxyURL(parsed)
	default:
		transport.Proxy = http.ProxyFromEnvironment
	}
	return transport
}

// Execute sends req and calls handle with the response. The body is closed
// after handle returns. An error returned by handle is passed through
// unchanged.
func (c *Client) Execute(req *http.Request, handle func(resp *http.Response) error) error {
	if c.closeIdle {
		defer c.httpClient.CloseIdleConnections()
	}
	if err := c.wait(req.Context()); err != nil {
		return err
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return eris.Wrapf(err, "%s %s", req.Method, req.URL.Redacted())
	}
	defer resp.Body.Close()

	c.logger.Debug("response",
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.Int("status", resp.StatusCode),
	)
	return handle(resp)
}

// GetFileSize returns the size of the resource at rawURL via a HEAD request.
//
// Returns an error if:
//   - The request fails
//   - The response status is not 2xx
//   - The server doesn't return a Content-Length header
func (c *Client) GetFileSize(ctx context.Context, rawURL string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0, eris.Wrap(err, "build HEAD request")
	}

	var size int64
	err = c.Execute(req, func(resp *http.Response) error {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
		}
		if resp.ContentLength < 0 {
			return fmt.Errorf("no Content-Length header for %s", rawURL)
		}
		size = resp.ContentLength
		return nil
	})
	return size, err
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "rate limit wait")
	}
	return nil
}
