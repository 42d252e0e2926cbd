package source

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ivlev/video2frames/internal/frame"
)

var (
	ErrOpen   = errors.New("cannot open video")
	ErrClosed = errors.New("source closed")
	ErrRange  = errors.New("frame index out of range")
)

// Metadata describes the decodable video stream.
type Metadata struct {
	Path        string
	Codec       string
	TotalFrames int
	FPS         float64
	Width       int
	Height      int
}

// Duration in seconds; 0 when the frame rate is unknown.
func (m Metadata) Duration() float64 {
	if m.FPS <= 0 {
		return 0
	}
	return float64(m.TotalFrames) / m.FPS
}

// Source is an open decoder session. Implementations are not safe for
// concurrent Frame calls; callers should request indices in increasing order,
// which is the cheap path for every backend here.
type Source interface {
	Metadata() Metadata
	Frame(ctx context.Context, index int) (*frame.RGB, error)
	Close() error
}

type Options struct {
	// SequenceFPS is the frame rate assumed for a directory of images.
	SequenceFPS float64
}

// Open picks a backend for path: a directory is read as an image sequence,
// anything else is probed with ffprobe.
func Open(ctx context.Context, path string, opts Options) (Source, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	if fi.IsDir() {
		return NewImageSource(path, opts.SequenceFPS)
	}
	return OpenFFmpeg(ctx, path)
}

func checkIndex(m Metadata, index int) error {
	if index < 0 || index >= m.TotalFrames {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrRange, index, m.TotalFrames)
	}
	return nil
}
