// Package fetch retrieves a URL on a background executor, streams the body
// into a caller-supplied sink and reports progress and the final result on
// a main dispatcher.
//
// # Basic Usage
//
//	fetcher := fetch.NewVoid(provider, dispatch.NewPool(4), loop)
//
//	fetcher.Fetch(ctx, "https://example.com/file.bin",
//	    sink.NewFileFactory(dir, "file.bin"),
//	    fetch.CallbackFuncs[fetch.Void]{
//	        OnResult: func(fetch.Void) { fmt.Println("done") },
//	        OnError:  func(err error) { fmt.Println("failed:", err) },
//	    },
//	    fetch.ProgressFunc(func(percent int) { fmt.Printf("%d%%\n", percent) }),
//	)
//
// # Guarantees
//
// For every call to Fetch:
//   - the background executor receives exactly one work item
//   - progress notifications and then exactly one of Call or Fail are
//     submitted to the main dispatcher, in that order, from one goroutine
//   - a sink is created only after a 2xx response, and once created it is
//     closed exactly once
//
// # Typed Results
//
// A Parser turns the closed sink's content into a value of the fetcher's
// result type. NewVoid builds a fetcher that delivers Void without reading
// the sink back.
package fetch
