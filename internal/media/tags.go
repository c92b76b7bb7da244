package media

import (
	"bytes"
	"context"

	"github.com/bogem/id3v2"
	"github.com/rotisserie/eris"

	"github.com/handiism/fetcher/internal/sink"
)

// Tags holds the ID3v2 fields the fetcher surfaces.
type Tags struct {
	Version    byte
	Title      string
	Artist     string
	Album      string
	Year       string
	Genre      string
	Track      string
	HasArtwork bool
}

// TagParser reads ID3v2 tags from MP3 content.
type TagParser struct{}

// Parse implements fetch.Parser.
func (TagParser) Parse(_ context.Context, s sink.ByteSink) (Tags, error) {
	data, err := readAll(s)
	if err != nil {
		return Tags{}, err
	}
	return parseTags(data)
}

func parseTags(data []byte) (Tags, error) {
	tag, err := id3v2.ParseReader(bytes.NewReader(data), id3v2.Options{Parse: true})
	if err != nil {
		return Tags{}, eris.Wrap(err, "parse id3 tags")
	}
	defer tag.Close()

	tags := Tags{
		Version: tag.Version(),
		Title:   tag.Title(),
		Artist:  tag.Artist(),
		Album:   tag.Album(),
		Year:    tag.Year(),
		Genre:   tag.Genre(),
	}
	if tf, ok := tag.GetLastFrame("TRCK").(id3v2.TextFrame); ok {
		tags.Track = tf.Text
	}
	tags.HasArtwork = len(tag.GetFrames(tag.CommonID("Attached picture"))) > 0
	return tags, nil
}
