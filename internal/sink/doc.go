// Package sink provides byte destinations for fetched content.
//
// A ByteSink is an append-only destination with an explicit Close. Sinks are
// created per fetch by a Factory, written to while the response body streams,
// and closed exactly once.
//
// # Memory Sinks
//
//	factory := sink.NewMemoryFactory()
//	// after the fetch completes
//	data := factory.Last().Bytes()
//
// # File Sinks
//
// FileFactory creates (or truncates) a file for every new sink. File names
// are passed through SanitizeFileName so any URL-derived name is valid on
// every platform:
//
//	factory := sink.NewFileFactory("/downloads", "cover: large.jpg")
//	// writes /downloads/cover_ large.jpg
//
// # Re-reading
//
// Both sink kinds implement Reopener, which lets typed-result parsers read
// the content back after the sink has been closed.
package sink
