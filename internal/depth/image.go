// Package depth turns a floating-point depth channel into an 8-bit grayscale image.
package depth

import (
	"fmt"
	"image"
	"math"

	"gfxprep/internal/exr"
)

// DefaultEpsilon is the smallest value range mapped without widening.
const DefaultEpsilon = 1e-6

// DefaultChannel is the EXR channel that stores depth.
const DefaultChannel = "Z"

// Image is a dense row-major grid of depth samples.
type Image struct {
	Width  int
	Height int
	Pix    []float32
}

// New wraps pix as a width×height image.
func New(width, height int, pix []float32) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("depth: invalid size %dx%d", width, height)
	}
	if len(pix) != width*height {
		return nil, fmt.Errorf("depth: have %d samples, want %d", len(pix), width*height)
	}
	return &Image{Width: width, Height: height, Pix: pix}, nil
}

// LoadEXR decodes channel from the EXR file at path. Width and height come
// from the data window.
func LoadEXR(path, channel string) (*Image, error) {
	f, err := exr.Open(path)
	if err != nil {
		return nil, err
	}
	pix, err := f.Channel(channel)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return New(f.Header.Width(), f.Header.Height(), pix)
}

// At returns the sample at column x, row y.
func (m *Image) At(x, y int) float32 {
	return m.Pix[y*m.Width+x]
}

// Shape formats the dimensions as (height, width).
func (m *Image) Shape() string {
	return fmt.Sprintf("(%d, %d)", m.Height, m.Width)
}

// Range returns the smallest and largest sample. NaNs are ignored; an image
// of only NaNs reports (0, 0).
func (m *Image) Range() (lo, hi float32) {
	first := true
	for _, v := range m.Pix {
		if v != v {
			continue
		}
		if first {
			lo, hi = v, v
			first = false
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}

// Gray maps samples linearly from [min, max] onto [0, 255] and truncates to
// uint8. A range narrower than eps is widened to eps, so a constant image
// comes out black.
func (m *Image) Gray(eps float64) *image.Gray {
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	lo, hi := m.Range()
	span := float64(hi) - float64(lo)
	if span < eps {
		span = eps
	}

	out := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for y := range m.Height {
		row := out.Pix[y*out.Stride : y*out.Stride+m.Width]
		for x := range m.Width {
			row[x] = toByte((float64(m.At(x, y)) - float64(lo)) / span * 255)
		}
	}
	return out
}

func toByte(v float64) uint8 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}
