// Package download runs batches of fetches into an output directory.
//
// # Manager
//
// The Manager coordinates a batch:
//
//  1. Parse input URLs
//  2. Optionally probe sizes with HEAD requests
//  3. Start one fetch per URL, each streaming into its own file
//  4. Report per-file progress and results on the main dispatcher
//  5. Deliver a Summary when the last fetch finishes
//
// # Basic Usage
//
//	pool := dispatch.NewPool(settings.MaxConcurrentFetches)
//	loop := dispatch.NewLoop()
//	manager := download.NewManager(settings, pool, loop, func(event download.ProgressEvent) {
//	    fmt.Println(event.Message)
//	})
//
//	manager.Start(ctx, download.ParseInputURLs(input), func(s download.Summary) {
//	    fmt.Printf("%d ok, %d failed\n", s.Succeeded, s.Failed)
//	    loop.Quit()
//	})
//	_ = loop.Run(ctx)
//
// # Progress Tracking
//
// Progress is reported via a callback function that receives ProgressEvent:
//
//	type ProgressEvent struct {
//	    Message string
//	    Level   ProgressLevel // Info, Verbose, Warning, Error, Success
//	    URL     string
//	    Percent int
//	}
//
// Failed downloads are not retried.
package download
