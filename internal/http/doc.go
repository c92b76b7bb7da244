// Package http provides the concrete HTTP transport used by the fetcher.
//
// The Client in this package handles:
//   - User-Agent headers
//   - Timeouts and proxy selection
//   - Request rate limiting
//   - Closing response bodies once the fetcher's handler returns
//   - File size retrieval via HEAD requests
//
// # Basic Usage
//
//	client := http.NewClient(http.Options{UserAgent: "fetcher/1.0"})
//
//	err := client.Execute(req, func(resp *nethttp.Response) error {
//	    _, err := io.Copy(dst, resp.Body)
//	    return err
//	})
//
// # Providers
//
// The fetcher asks a provider for a client on every fetch. Provider either
// returns one shared Client or builds a fresh one per call:
//
//	provider := http.NewProvider(opts, false) // shared
//	fetcher := fetch.NewVoid(provider, pool, loop)
package http
