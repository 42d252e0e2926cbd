// Package compositor fits a decoded frame into a fixed-size canvas without
// distorting it, padding the rest with black.
package compositor

import (
	"errors"
	"fmt"
	"math"

	"github.com/disintegration/imaging"

	"github.com/ivlev/video2frames/internal/frame"
)

var (
	ErrInvalidFrame  = errors.New("invalid frame")
	ErrInvalidTarget = errors.New("invalid target dimensions")
)

// Geometry is the placement of the scaled source inside the canvas.
type Geometry struct {
	Width   int
	Height  int
	OffsetX int
	OffsetY int
}

// Fit scales (srcW, srcH) by min(dstW/srcW, dstH/srcH), rounding down, and
// centers the result in (dstW, dstH). Scaled sides never drop below 1 pixel.
func Fit(srcW, srcH, dstW, dstH int) Geometry {
	ratio := math.Min(float64(dstW)/float64(srcW), float64(dstH)/float64(srcH))

	w := clamp(int(math.Floor(float64(srcW)*ratio)), 1, dstW)
	h := clamp(int(math.Floor(float64(srcH)*ratio)), 1, dstH)

	return Geometry{
		Width:   w,
		Height:  h,
		OffsetX: (dstW - w) / 2,
		OffsetY: (dstH - h) / 2,
	}
}

// Compositor composes frames into canvases taken from a buffer pool. The zero
// value allocates a fresh canvas per call.
type Compositor struct {
	Pool *frame.Pool
}

// Compose resizes src with a Lanczos filter and letterboxes it into a black
// dstW x dstH canvas. The output depends only on the inputs.
func (c *Compositor) Compose(src *frame.RGB, dstW, dstH int) (*frame.RGB, error) {
	if !src.Valid() {
		if src == nil {
			return nil, fmt.Errorf("%w: nil frame", ErrInvalidFrame)
		}
		return nil, fmt.Errorf("%w: %dx%d with %d bytes", ErrInvalidFrame, src.Width, src.Height, len(src.Pix))
	}
	if dstW <= 0 || dstH <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidTarget, dstW, dstH)
	}

	g := Fit(src.Width, src.Height, dstW, dstH)
	resized := imaging.Resize(src.NRGBA(), g.Width, g.Height, imaging.Lanczos)

	var canvas *frame.RGB
	if c != nil && c.Pool != nil {
		canvas = c.Pool.Get(dstW, dstH)
	} else {
		canvas = frame.New(dstW, dstH)
	}

	for y := 0; y < g.Height; y++ {
		srcRow := resized.Pix[y*resized.Stride:]
		dst := canvas.Pix[((g.OffsetY+y)*dstW+g.OffsetX)*3:]
		for x := 0; x < g.Width; x++ {
			dst[x*3+0] = srcRow[x*4+0]
			dst[x*3+1] = srcRow[x*4+1]
			dst[x*3+2] = srcRow[x*4+2]
		}
	}

	return canvas, nil
}

// Compose is Compositor.Compose without pooling.
func Compose(src *frame.RGB, dstW, dstH int) (*frame.RGB, error) {
	var c Compositor
	return c.Compose(src, dstW, dstH)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
