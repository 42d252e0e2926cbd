package source

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ivlev/video2frames/internal/frame"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// ImageSource treats a directory of still images, sorted by name, as a video
// running at a fixed frame rate.
type ImageSource struct {
	paths  []string
	meta   Metadata
	closed bool
}

func NewImageSource(dir string, fps float64) (*ImageSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	s := &ImageSource{
		paths: paths,
		meta: Metadata{
			Path:        dir,
			Codec:       "image2",
			TotalFrames: len(paths),
			FPS:         fps,
		},
	}

	if len(paths) > 0 {
		w, h, format, err := decodeConfig(paths[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOpen, err)
		}
		s.meta.Width, s.meta.Height = w, h
		s.meta.Codec = format
	}

	return s, nil
}

func decodeConfig(path string) (int, int, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, "", err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, "", fmt.Errorf("%s: %w", path, err)
	}
	return cfg.Width, cfg.Height, format, nil
}

func (s *ImageSource) Metadata() Metadata {
	return s.meta
}

func (s *ImageSource) Frame(ctx context.Context, index int) (*frame.RGB, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkIndex(s.meta, index); err != nil {
		return nil, err
	}

	img, err := imaging.Open(s.paths[index])
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(s.paths[index]), err)
	}
	return frame.FromImage(img), nil
}

func (s *ImageSource) Close() error {
	s.closed = true
	return nil
}
