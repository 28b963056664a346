// Package calib models the pinhole camera: intrinsic parameters, per-pixel
// unprojection ray tables, and conversion of raw depth to the inverse-depth
// plane the pose solver consumes.
package calib

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrBadIntrinsics is returned for invalid camera parameters.
var ErrBadIntrinsics = errors.New("calib: bad intrinsics")

// Intrinsics holds pinhole camera parameters for a perspective projection
// between pixels and rays at unit depth.
type Intrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// KinectDefaults returns the stock calibration of the structured-light
// sensor the capture format was built around.
func KinectDefaults() Intrinsics {
	return Intrinsics{
		Width:  640,
		Height: 480,
		Fx:     594.21,
		Fy:     591.04,
		Ppx:    339.5,
		Ppy:    242.7,
	}
}

// Validate checks the parameters for plausibility.
func (in Intrinsics) Validate() error {
	if in.Width <= 0 || in.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrBadIntrinsics, in.Width, in.Height)
	}
	if in.Fx <= 0 || in.Fy <= 0 {
		return fmt.Errorf("%w: focal length (%g, %g)", ErrBadIntrinsics, in.Fx, in.Fy)
	}
	if in.Ppx < 0 || in.Ppy < 0 {
		return fmt.Errorf("%w: principal point (%g, %g)", ErrBadIntrinsics, in.Ppx, in.Ppy)
	}
	return nil
}

// ParseIntrinsics decodes intrinsics from JSON.
func ParseIntrinsics(r io.Reader) (Intrinsics, error) {
	var in Intrinsics
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return Intrinsics{}, fmt.Errorf("calib: parsing intrinsics: %w", err)
	}
	if err := in.Validate(); err != nil {
		return Intrinsics{}, err
	}
	return in, nil
}

// LoadIntrinsics reads an intrinsics JSON file from disk.
func LoadIntrinsics(path string) (Intrinsics, error) {
	file, err := os.Open(path)
	if err != nil {
		return Intrinsics{}, fmt.Errorf("calib: %w", err)
	}
	defer file.Close()
	in, err := ParseIntrinsics(file)
	if err != nil {
		return Intrinsics{}, fmt.Errorf("calib: %s: %w", path, err)
	}
	return in, nil
}

// Unproject maps a pixel to its ray direction at unit depth.
func (in Intrinsics) Unproject(x, y float64) (u, v float64) {
	return (x - in.Ppx) / in.Fx, (y - in.Ppy) / in.Fy
}

// Project maps a ray direction at unit depth back to pixel coordinates.
func (in Intrinsics) Project(u, v float64) (x, y float64) {
	return u*in.Fx + in.Ppx, v*in.Fy + in.Ppy
}

// Crop returns the intrinsics of a window at (x0, y0), shifting the
// principal point into the window's coordinates.
func (in Intrinsics) Crop(x0, y0, width, height int) Intrinsics {
	out := in
	out.Width = width
	out.Height = height
	out.Ppx = in.Ppx - float64(x0)
	out.Ppy = in.Ppy - float64(y0)
	return out
}
