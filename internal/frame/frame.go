package frame

import (
	"image"
	"image/color"
	"image/draw"
)

// RGB is a packed 8-bit, 3-channel pixel buffer. Row y starts at
// Pix[y*Width*3].
type RGB struct {
	Width  int
	Height int
	Pix    []byte
}

func New(width, height int) *RGB {
	return &RGB{
		Width:  width,
		Height: height,
		Pix:    make([]byte, 3*width*height),
	}
}

// Valid reports whether the buffer has positive dimensions and enough bytes
// to hold them.
func (f *RGB) Valid() bool {
	if f == nil || f.Width <= 0 || f.Height <= 0 {
		return false
	}
	return len(f.Pix) >= 3*f.Width*f.Height
}

func (f *RGB) SetRGB(x, y int, r, g, b uint8) {
	if x < 0 || x >= f.Width || y < 0 || y >= f.Height {
		return
	}
	i := (y*f.Width + x) * 3
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = r, g, b
}

func (f *RGB) RGBAt(x, y int) (r, g, b uint8) {
	i := (y*f.Width + x) * 3
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

func (f *RGB) ColorModel() color.Model {
	return color.RGBAModel
}

func (f *RGB) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

func (f *RGB) At(x, y int) color.Color {
	if x < 0 || x >= f.Width || y < 0 || y >= f.Height {
		return color.RGBA{}
	}
	r, g, b := f.RGBAt(x, y)
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// NRGBA expands the buffer to an opaque *image.NRGBA.
func (f *RGB) NRGBA() *image.NRGBA {
	out := image.NewNRGBA(f.Bounds())
	n := f.Width * f.Height
	for i := 0; i < n; i++ {
		out.Pix[i*4+0] = f.Pix[i*3+0]
		out.Pix[i*4+1] = f.Pix[i*3+1]
		out.Pix[i*4+2] = f.Pix[i*3+2]
		out.Pix[i*4+3] = 255
	}
	return out
}

// FromImage converts any image to an RGB buffer, dropping alpha. Bounds are
// shifted so the result starts at (0,0).
func FromImage(img image.Image) *RGB {
	b := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) || nrgba.Stride != b.Dx()*4 {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}
	out := New(b.Dx(), b.Dy())
	n := out.Width * out.Height
	for i := 0; i < n; i++ {
		out.Pix[i*3+0] = nrgba.Pix[i*4+0]
		out.Pix[i*3+1] = nrgba.Pix[i*4+1]
		out.Pix[i*3+2] = nrgba.Pix[i*4+2]
	}
	return out
}

// FrameBytes is the size in bytes of a width x height RGB buffer.
func FrameBytes(width, height int) int {
	return 3 * width * height
}
