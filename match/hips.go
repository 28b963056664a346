package match

import (
	"github.com/gogpu/vodom/compute"
	"github.com/gogpu/vodom/internal/kernels"
)

// NewHipsBlendStep builds the descriptor extraction stage: one thread per
// corner, one descriptor per thread, blended by OR over the given number of
// neighbourhood offsets. The stage is grid-parallel with no per-thread
// guard, so the output count is the corner count truncated to a whole
// number of workgroups; the remainder corners keep no descriptor.
func NewHipsBlendStep(w *compute.Worker, image *compute.ImageState, corners *compute.PointList, descs *compute.DescriptorList, blend uint32) (*compute.Step, error) {
	src, err := kernels.Source(kernels.HipsBlend)
	if err != nil {
		return nil, err
	}
	return w.NewStep(compute.StepSpec{
		Name:        "hips_blend",
		Kernel:      kernels.HipsBlend,
		Source:      src,
		UniformSize: 16,
		Uniform: func() []byte {
			return new(compute.Packer).
				U32(image.W).U32(image.H).
				U32(blend).
				U32(0).
				Bytes()
		},
		Bindings: []compute.Binding{
			compute.Data(image.State),
			compute.Data(corners.State),
			compute.DataRW(descs.State),
		},
		Dispatch: func() uint32 {
			return compute.GridTruncate(corners.Count()) / compute.WorkgroupSize
		},
		Before: func() error {
			return descs.SetCount(compute.GridTruncate(corners.Count()))
		},
	})
}

// NewHipsClipStep builds the in-place descriptor clip: descriptors whose
// popcount exceeds maxBits are zeroed. Count and index alignment are
// preserved.
func NewHipsClipStep(w *compute.Worker, descs *compute.DescriptorList, maxBits uint32) (*compute.Step, error) {
	src, err := kernels.Source(kernels.HipsClip)
	if err != nil {
		return nil, err
	}
	return w.NewStep(compute.StepSpec{
		Name:        "hips_clip",
		Kernel:      kernels.HipsClip,
		Source:      src,
		UniformSize: 16,
		Uniform: func() []byte {
			return new(compute.Packer).
				U32(maxBits).
				U32(0).U32(0).U32(0).
				Bytes()
		},
		Bindings: []compute.Binding{
			compute.DataRW(descs.State),
			compute.Count(descs.State),
		},
		Dispatch: func() uint32 { return compute.Groups(descs.Count()) },
	})
}
