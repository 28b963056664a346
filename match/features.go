package match

import (
	"errors"
	"fmt"

	"github.com/gogpu/vodom/compute"
)

// ErrCountMismatch is returned when a feature pair's counts drift apart.
var ErrCountMismatch = errors.New("match: feature counts out of step")

// FrameFeatures pairs one frame's corner positions with their descriptors.
// The two lists are index-aligned: descriptor i belongs to corner i. The
// descriptor list runs grid-truncated, so its count is the corner count
// rounded down to a whole number of workgroups.
type FrameFeatures struct {
	Points *compute.PointList
	Descs  *compute.DescriptorList
}

// NewFrameFeatures allocates an aligned corner/descriptor pair.
func NewFrameFeatures(w *compute.Worker, label string, capacity uint32) (*FrameFeatures, error) {
	pts, err := w.NewPointList(label+".corners", capacity)
	if err != nil {
		return nil, err
	}
	descs, err := w.NewDescriptorList(label+".hips", capacity)
	if err != nil {
		pts.Destroy()
		return nil, err
	}
	return &FrameFeatures{Points: pts, Descs: descs}, nil
}

// Validate checks the alignment invariant on the host-cached counts. Call
// after the counts have been refreshed.
func (f *FrameFeatures) Validate() error {
	want := compute.GridTruncate(f.Points.Count())
	if got := f.Descs.Count(); got != want {
		return fmt.Errorf("%w: %d descriptors for %d corners (want %d)",
			ErrCountMismatch, got, f.Points.Count(), want)
	}
	return nil
}

// Destroy releases both lists.
func (f *FrameFeatures) Destroy() {
	if f.Points != nil {
		f.Points.Destroy()
	}
	if f.Descs != nil {
		f.Descs.Destroy()
	}
}
