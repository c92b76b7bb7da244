// Package dispatch provides the execution contexts used by the fetcher.
//
// Two kinds of context exist:
//
//   - An Executor runs blocking work off the caller's goroutine. Pool is the
//     production implementation; Inline runs work synchronously and is meant
//     for tests and one-shot tools.
//   - A MainDispatcher runs notifications one at a time, in submission
//     order, on a single logical "main" goroutine. Loop turns any goroutine
//     into that main goroutine; Tea routes work through a Bubble Tea program
//     so it runs inside Update.
//
// # Basic Usage
//
//	pool := dispatch.NewPool(4)
//	loop := dispatch.NewLoop()
//
//	pool.Execute(func() {
//	    result := slowWork()
//	    loop.ExecuteOnMain(func() {
//	        fmt.Println(result)
//	        loop.Quit()
//	    })
//	})
//
//	_ = loop.Run(ctx) // blocks until Quit
package dispatch
