package vodom

import (
	"errors"
	"fmt"

	"github.com/gogpu/vodom/calib"
)

// ErrBadConfig is returned when a Config fails validation.
var ErrBadConfig = errors.New("vodom: bad config")

// Config holds every tunable of the odometry pipeline. Zero values are not
// usable; start from [DefaultConfig] and override fields.
type Config struct {
	// FastThreshold is the minimum absolute intensity difference for the
	// corner tests, in gray levels.
	FastThreshold float32

	// FastRing is the contiguous arc length, out of 16 ring pixels, that
	// must pass the threshold test in the full detector.
	FastRing uint32

	// MaxCorners caps the detected corners kept per frame.
	MaxCorners uint32

	// RefBlend and QueryBlend are the descriptor blending footprints for
	// the reference and query frames. Valid sizes are 1, 5 and 9; blending
	// the reference wider than the query keeps blended-in bits a superset
	// of the unblended ones.
	RefBlend   uint32
	QueryBlend uint32

	// MaxBits zeroes descriptors with more than this many set bits.
	MaxBits uint32

	// MaxError is the match acceptance threshold on descriptor error.
	MaxError uint32

	// TreeLeaves and TreeLevels shape the reference search forest.
	// TreeLeaves must be a power of two; TreeLeaves >> TreeLevels roots
	// remain after removing the top of the tree.
	TreeLeaves int
	TreeLevels int

	// Rotations enables matching over all sixteen angular shifts of each
	// query descriptor.
	Rotations bool

	// Iterations is the Gauss-Newton refinement count per hypothesis.
	Iterations int

	// Hypotheses is the pose hypothesis pool size.
	Hypotheses uint32

	// Seed drives the deterministic correspondence sampler.
	Seed uint32

	// QMin is the inverse-depth cutoff below which a corner counts as
	// having no usable depth.
	QMin float32

	// Bound is the reprojection residual, in ray units, at which a
	// correspondence stops supporting a hypothesis.
	Bound float32

	// ZMin is the transformed-depth cutoff treating points at or behind
	// the camera plane as unusable.
	ZMin float32

	// DepthMode selects how raw sensor depth maps to inverse depth, and
	// DepthScale scales that conversion.
	DepthMode  calib.DepthMode
	DepthScale float64
}

// DefaultConfig returns the tuning the pipeline was developed against:
// structured-light sensor frames with raw disparity depth.
func DefaultConfig() Config {
	return Config{
		FastThreshold: 40,
		FastRing:      9,
		MaxCorners:    2048,
		RefBlend:      5,
		QueryBlend:    1,
		MaxBits:       150,
		MaxError:      3,
		TreeLeaves:    512,
		TreeLevels:    5,
		Rotations:     true,
		Iterations:    10,
		Hypotheses:    8192,
		Seed:          1,
		QMin:          1e-6,
		Bound:         0.02,
		ZMin:          1e-6,
		DepthMode:     calib.DepthDisparity,
		DepthScale:    1.0 / 2048,
	}
}

func validBlend(b uint32) bool { return b == 1 || b == 5 || b == 9 }

// Validate checks the configuration before any device allocation happens.
func (c Config) Validate() error {
	if c.FastThreshold <= 0 {
		return fmt.Errorf("%w: fast threshold %g", ErrBadConfig, c.FastThreshold)
	}
	if c.FastRing < 1 || c.FastRing > 16 {
		return fmt.Errorf("%w: fast ring %d", ErrBadConfig, c.FastRing)
	}
	if c.MaxCorners < 64 {
		return fmt.Errorf("%w: max corners %d", ErrBadConfig, c.MaxCorners)
	}
	if !validBlend(c.RefBlend) || !validBlend(c.QueryBlend) {
		return fmt.Errorf("%w: blend sizes %d/%d", ErrBadConfig, c.RefBlend, c.QueryBlend)
	}
	if c.MaxBits == 0 || c.MaxBits > 256 {
		return fmt.Errorf("%w: max bits %d", ErrBadConfig, c.MaxBits)
	}
	if c.TreeLeaves < 2 || c.TreeLeaves&(c.TreeLeaves-1) != 0 {
		return fmt.Errorf("%w: tree leaves %d", ErrBadConfig, c.TreeLeaves)
	}
	if c.TreeLevels < 1 || c.TreeLeaves>>c.TreeLevels < 1 {
		return fmt.Errorf("%w: tree levels %d for %d leaves", ErrBadConfig, c.TreeLevels, c.TreeLeaves)
	}
	if c.Iterations < 1 {
		return fmt.Errorf("%w: iterations %d", ErrBadConfig, c.Iterations)
	}
	if c.Hypotheses == 0 {
		return fmt.Errorf("%w: empty hypothesis pool", ErrBadConfig)
	}
	if c.QMin <= 0 {
		return fmt.Errorf("%w: q cutoff %g", ErrBadConfig, c.QMin)
	}
	if c.Bound <= 0 {
		return fmt.Errorf("%w: acceptance bound %g", ErrBadConfig, c.Bound)
	}
	if c.ZMin <= 0 {
		return fmt.Errorf("%w: depth cutoff %g", ErrBadConfig, c.ZMin)
	}
	if c.DepthScale <= 0 {
		return fmt.Errorf("%w: depth scale %g", ErrBadConfig, c.DepthScale)
	}
	return nil
}
