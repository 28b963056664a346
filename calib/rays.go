package calib

import "fmt"

// DepthMode selects how raw sensor depth converts to the inverse-depth
// plane q.
type DepthMode int

const (
	// DepthDisparity treats raw values as already proportional to inverse
	// depth, as structured-light sensors report. q = raw * scale.
	DepthDisparity DepthMode = iota

	// DepthMetric treats raw values as metric distance. q = scale / raw,
	// zero where no depth was measured.
	DepthMetric
)

func (m DepthMode) String() string {
	switch m {
	case DepthDisparity:
		return "disparity"
	case DepthMetric:
		return "metric"
	default:
		return fmt.Sprintf("DepthMode(%d)", int(m))
	}
}

// ParseDepthMode converts a mode name to a DepthMode.
func ParseDepthMode(s string) (DepthMode, error) {
	switch s {
	case "disparity":
		return DepthDisparity, nil
	case "metric":
		return DepthMetric, nil
	default:
		return 0, fmt.Errorf("calib: unknown depth mode %q", s)
	}
}

// RayTables builds the per-pixel unprojection planes for an image of the
// intrinsics' size: u and v ray components at unit depth, row-major.
func (in Intrinsics) RayTables() (umap, vmap []float32) {
	umap = make([]float32, in.Width*in.Height)
	vmap = make([]float32, in.Width*in.Height)
	for y := 0; y < in.Height; y++ {
		for x := 0; x < in.Width; x++ {
			u, v := in.Unproject(float64(x), float64(y))
			umap[y*in.Width+x] = float32(u)
			vmap[y*in.Width+x] = float32(v)
		}
	}
	return umap, vmap
}

// QPlane converts a raw depth plane to inverse depth under the given mode.
// The output is freshly allocated and aligned with the input.
func QPlane(depth []float32, mode DepthMode, scale float64) []float32 {
	q := make([]float32, len(depth))
	switch mode {
	case DepthMetric:
		for i, d := range depth {
			if d > 0 {
				q[i] = float32(scale / float64(d))
			}
		}
	default:
		for i, d := range depth {
			q[i] = float32(float64(d) * scale)
		}
	}
	return q
}
