package vodom

import (
	"fmt"
	"strings"
	"time"

	"github.com/gogpu/vodom/compute"
	"github.com/gogpu/vodom/pose"
)

// StageTiming is the measured wall time of one pipeline stage. Iterated
// stages report the sum over all iterations.
type StageTiming struct {
	Stage   string
	Elapsed time.Duration
}

// Correspondence is one consumed replay record: the matched corner pixels
// in both frames and the reference corner's reprojection under the winning
// pose, in ray units. Behind marks tuples the pose moved behind the camera.
type Correspondence struct {
	Ref    compute.Point
	Query  compute.Point
	Proj   [2]float32
	Behind bool
}

// Result is everything one two-frame run produces.
type Result struct {
	// Pose is the winning reference-to-query transform.
	Pose      pose.Mat4
	BestIndex int
	Stats     pose.ScoreStats

	// Per-frame counts, reference first.
	RoughCorners [2]uint32
	DepthCorners [2]uint32
	Corners      [2]uint32
	Descriptors  [2]uint32

	TreeFilled int
	Matches    uint32

	// RefCorners and QueryCorners are the downloaded detector outputs,
	// the coordinate space the correspondence indices point into.
	RefCorners   []compute.Point
	QueryCorners []compute.Point

	// Correspondences holds the consumed replay pairs; BadPairs counts
	// records dropped by index bounds checks during consumption.
	Correspondences []Correspondence
	BadPairs        int

	Timings []StageTiming
}

// Report renders the counts, score summary and stage timings as the fixed
// width text block the command line tool prints per device.
func (r *Result) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%8d%8d  corners from coarse filter\n", r.RoughCorners[0], r.RoughCorners[1])
	fmt.Fprintf(&b, "%8d%8d  corners with usable depth\n", r.DepthCorners[0], r.DepthCorners[1])
	fmt.Fprintf(&b, "%8d%8d  corners from ring test\n", r.Corners[0], r.Corners[1])
	fmt.Fprintf(&b, "%8d%8d  descriptors kept\n", r.Descriptors[0], r.Descriptors[1])
	fmt.Fprintf(&b, "%8d  tree leaves filled\n", r.TreeFilled)
	fmt.Fprintf(&b, "%8d  matches (%d dropped in replay)\n", r.Matches, r.BadPairs)
	fmt.Fprintf(&b, "%8d of %d hypotheses supported\n", r.Stats.Supported, r.Stats.Total)
	fmt.Fprintf(&b, "%8.1f  best score at index %d (mean %.2f, median %.2f)\n",
		r.Stats.Best, r.BestIndex, r.Stats.Mean, r.Stats.Median)
	t := r.Pose.Translation()
	fmt.Fprintf(&b, "          translation (%+.5f, %+.5f, %+.5f) q units\n", t[0], t[1], t[2])
	fmt.Fprintf(&b, "          rotation    %.5f rad\n", r.Pose.RotationAngle())
	for _, st := range r.Timings {
		fmt.Fprintf(&b, "%8d  us  %s\n", st.Elapsed.Microseconds(), st.Stage)
	}
	return b.String()
}

// addTiming appends one stage measurement.
func (r *Result) addTiming(stage string, d time.Duration) {
	r.Timings = append(r.Timings, StageTiming{Stage: stage, Elapsed: d})
}
