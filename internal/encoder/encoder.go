// Package encoder writes composed frames to disk as JPEG, PNG or WebP.
package encoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"

	"github.com/disintegration/imaging"

	"github.com/ivlev/video2frames/internal/config"
	"github.com/ivlev/video2frames/internal/frame"
	"github.com/ivlev/video2frames/internal/system"
)

var ErrUnsupportedFormat = errors.New("unsupported output format")

// Encoder writes one frame to path. Implementations are safe for concurrent
// use by several workers.
type Encoder interface {
	Encode(ctx context.Context, f *frame.RGB, path string) error
	Format() config.Format
}

// Params are the per-format encoder settings derived from a 0-100 quality.
type Params struct {
	Format         config.Format
	JPEGQuality    int
	PNGCompression png.CompressionLevel
	WebPQuality    int
}

func ParamsFor(format config.Format, quality int) Params {
	quality = config.ClampQuality(quality)
	p := Params{Format: format}
	switch format {
	case config.JPEG:
		p.JPEGQuality = quality
	case config.PNG:
		// PNG is lossless; quality trades file size for encode time.
		switch {
		case quality < 34:
			p.PNGCompression = png.BestSpeed
		case quality < 67:
			p.PNGCompression = png.DefaultCompression
		default:
			p.PNGCompression = png.BestCompression
		}
	case config.WEBP:
		p.WebPQuality = quality
	}
	return p
}

// hasEncoder is swapped in tests.
var hasEncoder = system.HasEncoder

// New returns the encoder for format. WebP goes through ffmpeg and fails with
// ErrUnsupportedFormat when ffmpeg lacks libwebp, or with ctx's error when
// ctx ends while ffmpeg is being asked.
func New(ctx context.Context, format config.Format, quality int) (Encoder, error) {
	params := ParamsFor(format, quality)
	switch format {
	case config.JPEG, config.PNG:
		return &ImageEncoder{params: params}, nil
	case config.WEBP:
		ok, err := hasEncoder(ctx, webpCodec)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: webp needs an ffmpeg built with %s", ErrUnsupportedFormat, webpCodec)
		}
		return &WebPEncoder{params: params}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
}

// FrameName is the file name for output sequence number seq.
func FrameName(seq int, format config.Format) string {
	return fmt.Sprintf("frame%06d.%s", seq, format.Ext())
}

// ImageEncoder encodes JPEG and PNG in-process with imaging.
type ImageEncoder struct {
	params Params
}

func (e *ImageEncoder) Format() config.Format {
	return e.params.Format
}

func (e *ImageEncoder) Encode(ctx context.Context, f *frame.RGB, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !f.Valid() {
		return fmt.Errorf("encode %s: invalid frame", path)
	}

	format := imaging.JPEG
	opts := []imaging.EncodeOption{imaging.JPEGQuality(e.params.JPEGQuality)}
	if e.params.Format == config.PNG {
		format = imaging.PNG
		opts = []imaging.EncodeOption{imaging.PNGCompressionLevel(e.params.PNGCompression)}
	}

	img := f.NRGBA()
	return writeAtomic(path, func(w io.Writer) error {
		return imaging.Encode(w, img, format, opts...)
	})
}

// writeAtomic writes to path+".part" and renames it into place, so an
// interrupted write never leaves a truncated file under the final name.
func writeAtomic(path string, write func(io.Writer) error) (err error) {
	tmp := path + ".part"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			file.Close()
			os.Remove(tmp)
		}
	}()

	bw := bufio.NewWriter(file)
	if err = write(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = file.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
