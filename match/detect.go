package match

import (
	"github.com/gogpu/vodom/compute"
	"github.com/gogpu/vodom/internal/kernels"
)

// NewPreFastStep builds the coarse corner pre-filter: one thread per pixel
// samples four compass points at the ring radius and appends pixels where an
// adjacent pair differs from the centre by more than the threshold. A cheap
// cull so the full ring test runs on a short candidate list.
func NewPreFastStep(w *compute.Worker, image *compute.ImageState, corners *compute.PointList, threshold float32) (*compute.Step, error) {
	src, err := kernels.Source(kernels.PreFast)
	if err != nil {
		return nil, err
	}
	return w.NewStep(compute.StepSpec{
		Name:        "prefast",
		Kernel:      kernels.PreFast,
		Source:      src,
		UniformSize: 16,
		Uniform: func() []byte {
			return new(compute.Packer).
				U32(image.W).U32(image.H).
				U32(corners.Capacity()).
				F32(threshold).
				Bytes()
		},
		Bindings: []compute.Binding{
			compute.Data(image.State),
			compute.DataRW(corners.State),
			compute.CountRW(corners.State),
		},
		Dispatch: func() uint32 { return compute.Groups(image.W * image.H) },
		Before:   func() error { return corners.ResetCount() },
	})
}

// NewClipDepthStep builds the depth gate: candidates whose inverse depth is
// at or below qmin carry no usable range and are dropped before the ring
// test.
func NewClipDepthStep(w *compute.Worker, qmap *compute.ImageState, src, dst *compute.PointList, qmin float32) (*compute.Step, error) {
	source, err := kernels.Source(kernels.ClipDepth)
	if err != nil {
		return nil, err
	}
	return w.NewStep(compute.StepSpec{
		Name:        "clip_depth",
		Kernel:      kernels.ClipDepth,
		Source:      source,
		UniformSize: 16,
		Uniform: func() []byte {
			return new(compute.Packer).
				U32(qmap.W).U32(qmap.H).
				U32(dst.Capacity()).
				F32(qmin).
				Bytes()
		},
		Bindings: []compute.Binding{
			compute.Data(qmap.State),
			compute.Data(src.State),
			compute.Count(src.State),
			compute.DataRW(dst.State),
			compute.CountRW(dst.State),
		},
		Dispatch: func() uint32 { return compute.Groups(src.Count()) },
		Before:   func() error { return dst.ResetCount() },
	})
}

// NewFastStep builds the full segment test: a candidate passes when the ring
// of sixteen pixels at radius three holds a long enough run of consistently
// brighter or consistently darker samples.
func NewFastStep(w *compute.Worker, image *compute.ImageState, src, dst *compute.PointList, threshold float32, ring uint32) (*compute.Step, error) {
	source, err := kernels.Source(kernels.Fast)
	if err != nil {
		return nil, err
	}
	return w.NewStep(compute.StepSpec{
		Name:        "fast",
		Kernel:      kernels.Fast,
		Source:      source,
		UniformSize: 32,
		Uniform: func() []byte {
			return new(compute.Packer).
				U32(image.W).U32(image.H).
				U32(dst.Capacity()).
				F32(threshold).
				U32(ring).
				U32(0).U32(0).U32(0).
				Bytes()
		},
		Bindings: []compute.Binding{
			compute.Data(image.State),
			compute.Data(src.State),
			compute.Count(src.State),
			compute.DataRW(dst.State),
			compute.CountRW(dst.State),
		},
		Dispatch: func() uint32 { return compute.Groups(src.Count()) },
		Before:   func() error { return dst.ResetCount() },
	})
}
