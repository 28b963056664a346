package frame

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// ErrBadSample is returned when a pixel record is missing or out of range.
var ErrBadSample = errors.New("frame: bad pixel sample")

// ReadRGBD decodes the plaintext RGB-D format: two whitespace-separated
// integers "nx ny" followed by nx*ny records of "r g b d", rows outer.
// Color collapses to gray as (r+g+b)/3 in integer arithmetic; depth is
// kept raw.
func ReadRGBD(r io.Reader) (*Frame, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024)
	sc.Split(bufio.ScanWords)

	next := func() (uint64, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return 0, err
			}
			return 0, io.ErrUnexpectedEOF
		}
		return strconv.ParseUint(sc.Text(), 10, 32)
	}

	nx, err := next()
	if err != nil {
		return nil, fmt.Errorf("frame: reading width: %w", err)
	}
	ny, err := next()
	if err != nil {
		return nil, fmt.Errorf("frame: reading height: %w", err)
	}

	f, err := New(int(nx), int(ny))
	if err != nil {
		return nil, err
	}

	for i := 0; i < f.Width*f.Height; i++ {
		var rgbd [4]uint64
		for k := range rgbd {
			v, err := next()
			if err != nil {
				return nil, fmt.Errorf("frame: pixel %d: %w", i, err)
			}
			rgbd[k] = v
		}
		if rgbd[0] > 0xFF || rgbd[1] > 0xFF || rgbd[2] > 0xFF {
			return nil, fmt.Errorf("%w: pixel %d color %d %d %d",
				ErrBadSample, i, rgbd[0], rgbd[1], rgbd[2])
		}
		if rgbd[3] > 0xFFFF {
			return nil, fmt.Errorf("%w: pixel %d depth %d", ErrBadSample, i, rgbd[3])
		}

		f.Gray[i] = float32((rgbd[0] + rgbd[1] + rgbd[2]) / 3)
		f.Depth[i] = float32(rgbd[3])
	}
	return f, nil
}

// LoadRGBD reads a plaintext RGB-D file from disk.
func LoadRGBD(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("frame: %w", err)
	}
	defer file.Close()

	f, err := ReadRGBD(file)
	if err != nil {
		return nil, fmt.Errorf("frame: %s: %w", path, err)
	}
	return f, nil
}

// WriteRGBD encodes a frame in the plaintext format, replicating gray into
// all three color channels. Values are clamped to the format's ranges.
func WriteRGBD(w io.Writer, f *Frame) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%d %d\n", f.Width, f.Height); err != nil {
		return fmt.Errorf("frame: %w", err)
	}

	for i := 0; i < f.Width*f.Height; i++ {
		g := clampRound(f.Gray[i], 0xFF)
		d := clampRound(f.Depth[i], 0xFFFF)
		if _, err := fmt.Fprintf(bw, "%d %d %d %d\n", g, g, g, d); err != nil {
			return fmt.Errorf("frame: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("frame: %w", err)
	}
	return nil
}

func clampRound(v float32, limit uint32) uint32 {
	if v <= 0 {
		return 0
	}
	u := uint32(v + 0.5)
	if u > limit {
		return limit
	}
	return u
}
