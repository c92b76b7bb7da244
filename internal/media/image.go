package media

import (
	"bytes"
	"context"
	"image"
	_ "image/gif" // GIF decoder registration
	"image/jpeg"
	_ "image/png" // PNG decoder registration
	"io"

	"github.com/rotisserie/eris"
	_ "golang.org/x/image/bmp" // BMP decoder registration
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decoder registration

	"github.com/handiism/fetcher/internal/sink"
)

// ImageInfo describes a decoded image.
type ImageInfo struct {
	Format string
	Width  int
	Height int

	// Thumbnail is a JPEG no larger than the parser's bounds, or nil when
	// thumbnails are disabled.
	Thumbnail []byte
}

// ImageParser decodes image content.
type ImageParser struct {
	// ThumbnailSize bounds the thumbnail's width and height. Zero disables
	// thumbnails.
	ThumbnailSize int
}

// Parse implements fetch.Parser.
func (p ImageParser) Parse(ctx context.Context, s sink.ByteSink) (ImageInfo, error) {
	data, err := readAll(s)
	if err != nil {
		return ImageInfo{}, err
	}
	return p.parseBytes(ctx, data)
}

func (p ImageParser) parseBytes(ctx context.Context, data []byte) (ImageInfo, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, eris.Wrap(err, "decode image")
	}
	bounds := img.Bounds()
	info := ImageInfo{Format: format, Width: bounds.Dx(), Height: bounds.Dy()}

	if p.ThumbnailSize > 0 {
		if err := ctx.Err(); err != nil {
			return info, err
		}
		info.Thumbnail, err = encodeJPEG(resize(img, p.ThumbnailSize, p.ThumbnailSize))
		if err != nil {
			return info, err
		}
	}
	return info, nil
}

// Thumbnail resizes an encoded image to fit within maxWidth x maxHeight and
// returns it as JPEG.
//
// The aspect ratio is preserved. Images already within bounds keep their
// size but are still re-encoded.
func Thumbnail(data []byte, maxWidth, maxHeight int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "decode image")
	}
	return encodeJPEG(resize(img, maxWidth, maxHeight))
}

// resize scales img to fit the bounds using Catmull-Rom.
func resize(img image.Image, maxWidth, maxHeight int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width > maxWidth || height > maxHeight {
		ratio := float64(width) / float64(height)
		if float64(maxWidth)/float64(maxHeight) > ratio {
			// Height is the limiting factor
			width = int(float64(maxHeight) * ratio)
			height = maxHeight
		} else {
			height = int(float64(maxWidth) / ratio)
			width = maxWidth
		}
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, eris.Wrap(err, "encode jpeg")
	}
	return buf.Bytes(), nil
}

func readAll(s sink.ByteSink) ([]byte, error) {
	r, err := sink.Open(s)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "read sink")
	}
	return data, nil
}
