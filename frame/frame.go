// Package frame holds RGB-D frames as planar float32 images and reads and
// writes the plaintext interchange format used by the capture tools.
package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrBadDimensions is returned for non-positive or absurd image sizes.
	ErrBadDimensions = errors.New("frame: bad image dimensions")

	// ErrBadCrop is returned when a crop window leaves the image.
	ErrBadCrop = errors.New("frame: crop window out of bounds")
)

// Frame is one RGB-D capture: a grayscale plane and a raw depth plane of
// equal size, both row-major.
type Frame struct {
	Width  int
	Height int

	// Gray holds intensity in 0..255. Values are whole numbers after
	// decoding but kept as float32 for direct upload.
	Gray []float32

	// Depth holds raw sensor depth values.
	Depth []float32
}

// New returns a zero-filled frame of the given size.
func New(width, height int) (*Frame, error) {
	if width <= 0 || height <= 0 || width > 1<<15 || height > 1<<15 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadDimensions, width, height)
	}
	return &Frame{
		Width:  width,
		Height: height,
		Gray:   make([]float32, width*height),
		Depth:  make([]float32, width*height),
	}, nil
}

// GrayAt returns the intensity at (x, y). No bounds check.
func (f *Frame) GrayAt(x, y int) float32 {
	return f.Gray[y*f.Width+x]
}

// DepthAt returns the raw depth at (x, y). No bounds check.
func (f *Frame) DepthAt(x, y int) float32 {
	return f.Depth[y*f.Width+x]
}

// Crop copies a window of the frame starting at (x0, y0).
func (f *Frame) Crop(x0, y0, width, height int) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadDimensions, width, height)
	}
	if x0 < 0 || y0 < 0 || x0+width > f.Width || y0+height > f.Height {
		return nil, fmt.Errorf("%w: %dx%d at (%d, %d) from %dx%d",
			ErrBadCrop, width, height, x0, y0, f.Width, f.Height)
	}

	out, err := New(width, height)
	if err != nil {
		return nil, err
	}
	for y := 0; y < height; y++ {
		src := (y0+y)*f.Width + x0
		dst := y * width
		copy(out.Gray[dst:dst+width], f.Gray[src:src+width])
		copy(out.Depth[dst:dst+width], f.Depth[src:src+width])
	}
	return out, nil
}
