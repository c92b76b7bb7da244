// Package media provides typed-result parsers for fetched content.
//
// Each parser implements fetch.Parser and reads the closed sink back through
// sink.Open:
//
//   - ImageParser decodes JPEG, PNG, GIF, BMP and WebP content into ImageInfo
//     and can attach a JPEG thumbnail
//   - TagParser reads ID3v2 tags from MP3 content
//   - InfoParser sniffs the content and delegates to one of the above
//
// # Example
//
//	fetcher := fetch.New[media.Info](provider, pool, loop, media.NewInfoParser(300))
package media
