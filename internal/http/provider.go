package http

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/handiism/fetcher/internal/fetch"
)

// Provider hands clients to the fetcher. It implements fetch.ClientProvider.
type Provider struct {
	opts    Options
	fresh   bool
	limiter *rate.Limiter

	once   sync.Once
	shared *Client
}

// NewProvider returns a provider that builds clients from opts. When fresh
// is true every call to Client builds a new one; otherwise one client is
// built lazily and shared.
//
// Fresh clients share one rate limiter, so opts.RateLimit still bounds the
// whole provider, and drop their idle connections after each request.
func NewProvider(opts Options, fresh bool) *Provider {
	return &Provider{opts: opts, fresh: fresh, limiter: newLimiter(opts)}
}

// Client implements fetch.ClientProvider.
func (p *Provider) Client() fetch.HTTPClient {
	return p.HTTPClient()
}

// HTTPClient is Client with the concrete return type.
func (p *Provider) HTTPClient() *Client {
	if p.fresh {
		c := newClient(p.opts, p.limiter)
		c.closeIdle = true
		return c
	}
	p.once.Do(func() {
		p.shared = newClient(p.opts, p.limiter)
	})
	return p.shared
}
