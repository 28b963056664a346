package vodom

import (
	"strings"
	"testing"
	"time"

	"github.com/gogpu/vodom/pose"
)

func TestResultReport(t *testing.T) {
	p := pose.Identity()
	p[3] = 0.0125
	r := &Result{
		Pose:         p,
		BestIndex:    37,
		Stats:        pose.ScoreStats{Supported: 4100, Total: 8192, Mean: 3.5, Median: 2.25, Best: 412, BestIndex: 37},
		RoughCorners: [2]uint32{5120, 4800},
		DepthCorners: [2]uint32{3100, 2900},
		Corners:      [2]uint32{1450, 1390},
		Descriptors:  [2]uint32{1408, 1344},
		TreeFilled:   512,
		Matches:      611,
		BadPairs:     2,
	}
	r.addTiming("descriptor matching", 1500*time.Microsecond)
	r.addTiming("hypothesis scoring", 2400*time.Microsecond)

	out := r.Report()
	for _, want := range []string{
		"5120", "4800", "corners from coarse filter",
		"corners with usable depth",
		"corners from ring test",
		"1408", "descriptors kept",
		"512  tree leaves filled",
		"611  matches (2 dropped in replay)",
		"4100 of 8192 hypotheses supported",
		"best score at index 37 (mean 3.50, median 2.25)",
		"translation (+0.01250",
		"rotation    0.00000",
		"1500  us  descriptor matching",
		"2400  us  hypothesis scoring",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Report() missing %q in:\n%s", want, out)
		}
	}
}

func TestResultTimingOrder(t *testing.T) {
	r := &Result{}
	r.addTiming("first", time.Millisecond)
	r.addTiming("second", 2*time.Millisecond)
	if len(r.Timings) != 2 || r.Timings[0].Stage != "first" || r.Timings[1].Stage != "second" {
		t.Fatalf("Timings = %+v", r.Timings)
	}
}
