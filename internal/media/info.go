package media

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/handiism/fetcher/internal/sink"
)

// Kind is the detected content family.
type Kind string

const (
	KindImage Kind = "image"
	KindAudio Kind = "audio"
	KindOther Kind = "other"
)

// Info is the result of InfoParser.
type Info struct {
	Kind        Kind
	ContentType string
	Size        int
	Image       *ImageInfo
	Tags        *Tags
}

// InfoParser sniffs content and parses images and tagged MP3s.
type InfoParser struct {
	Images ImageParser
}

// NewInfoParser returns an InfoParser producing thumbnails up to
// thumbnailSize pixels; zero disables them.
func NewInfoParser(thumbnailSize int) InfoParser {
	return InfoParser{Images: ImageParser{ThumbnailSize: thumbnailSize}}
}

// Parse implements fetch.Parser. Content that is neither an image nor an
// ID3-tagged file yields KindOther without error.
func (p InfoParser) Parse(ctx context.Context, s sink.ByteSink) (Info, error) {
	data, err := readAll(s)
	if err != nil {
		return Info{}, err
	}

	info := Info{
		Kind:        KindOther,
		ContentType: http.DetectContentType(data),
		Size:        len(data),
	}
	switch {
	case bytes.HasPrefix(data, []byte("ID3")):
		tags, err := parseTags(data)
		if err != nil {
			return info, err
		}
		info.Kind = KindAudio
		info.Tags = &tags
	case isImage(info.ContentType, data):
		img, err := p.Images.parseBytes(ctx, data)
		if err != nil {
			return info, err
		}
		info.Kind = KindImage
		info.Image = &img
	}
	return info, nil
}

func isImage(contentType string, data []byte) bool {
	if strings.HasPrefix(contentType, "image/") {
		return true
	}
	// DetectContentType only knows WebP when the RIFF header is complete.
	return len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP"))
}
