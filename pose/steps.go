package pose

import (
	"github.com/gogpu/vodom/compute"
	"github.com/gogpu/vodom/internal/kernels"
)

// NewToUvqUvStep builds the conversion from match pairs to correspondence
// tuples: one thread per pair looks up the ray tables at both corners and
// the reference frame's inverse-depth plane at the reference corner. The
// tuple list stays index-aligned with the match list.
func NewToUvqUvStep(w *compute.Worker, umap, vmap, qmap *compute.ImageState, pts1, pts2, matches *compute.PointList, tuples *TupleList) (*compute.Step, error) {
	if err := tuples.requireRecords(1); err != nil {
		return nil, err
	}
	src, err := kernels.Source(kernels.ToUvqUv)
	if err != nil {
		return nil, err
	}
	return w.NewStep(compute.StepSpec{
		Name:        "to_uvquv",
		Kernel:      kernels.ToUvqUv,
		Source:      src,
		UniformSize: 16,
		Uniform: func() []byte {
			return new(compute.Packer).
				U32(umap.W).U32(umap.H).
				U32(tuples.Capacity()).
				U32(0).
				Bytes()
		},
		Bindings: []compute.Binding{
			compute.Data(umap.State),
			compute.Data(vmap.State),
			compute.Data(qmap.State),
			compute.Data(pts1.State),
			compute.Data(pts2.State),
			compute.Data(matches.State),
			compute.Count(matches.State),
			compute.DataRW(tuples.Uvq.State),
			compute.DataRW(tuples.Uv.State),
		},
		Dispatch: func() uint32 { return compute.Groups(matches.Count()) },
		Before:   func() error { return tuples.SetCount(matches.Count()) },
	})
}

// NewMixStep builds the hypothesis sampler: three tuples per hypothesis,
// drawn with replacement from the whole pool by a seeded integer hash.
func NewMixStep(w *compute.Worker, src, dst *TupleList, seed uint32) (*compute.Step, error) {
	if err := src.requireRecords(1); err != nil {
		return nil, err
	}
	if err := dst.requireRecords(3); err != nil {
		return nil, err
	}
	source, err := kernels.Source(kernels.MixUvqUv)
	if err != nil {
		return nil, err
	}
	pool := dst.Capacity()
	return w.NewStep(compute.StepSpec{
		Name:        "mix_uvquv",
		Kernel:      kernels.MixUvqUv,
		Source:      source,
		UniformSize: 16,
		Uniform: func() []byte {
			return new(compute.Packer).
				U32(seed).
				U32(pool).
				U32(0).U32(0).
				Bytes()
		},
		Bindings: []compute.Binding{
			compute.Data(src.Uvq.State),
			compute.Data(src.Uv.State),
			compute.Count(src.Uvq.State),
			compute.DataRW(dst.Uvq.State),
			compute.DataRW(dst.Uv.State),
		},
		Dispatch: func() uint32 { return compute.Groups(pool) },
		Before:   func() error { return dst.SetCount(pool) },
	})
}

// NewIdentStep builds the pose pool seeding stage.
func NewIdentStep(w *compute.Worker, poses *compute.MatrixBatch) (*compute.Step, error) {
	src, err := kernels.Source(kernels.MatIdent)
	if err != nil {
		return nil, err
	}
	n := poses.Capacity()
	return w.NewStep(compute.StepSpec{
		Name:        "mat_ident",
		Kernel:      kernels.MatIdent,
		Source:      src,
		UniformSize: 16,
		Uniform: func() []byte {
			return new(compute.Packer).U32(n).U32(0).U32(0).U32(0).Bytes()
		},
		Bindings: []compute.Binding{
			compute.DataRW(poses.State),
		},
		Dispatch: func() uint32 { return compute.Groups(n) },
		Before:   func() error { return poses.SetCount(n) },
	})
}

// NewWlsStep builds the linearization stage: per hypothesis, the 6x6 normal
// equations of the reprojection error of its three tuples around the current
// pose.
func NewWlsStep(w *compute.Worker, mixed *TupleList, poses, amats, bvecs *compute.MatrixBatch) (*compute.Step, error) {
	if err := mixed.requireRecords(3); err != nil {
		return nil, err
	}
	src, err := kernels.Source(kernels.PoseWls)
	if err != nil {
		return nil, err
	}
	n := poses.Capacity()
	return w.NewStep(compute.StepSpec{
		Name:        "pose_wls",
		Kernel:      kernels.PoseWls,
		Source:      src,
		UniformSize: 16,
		Uniform: func() []byte {
			return new(compute.Packer).U32(n).U32(0).U32(0).U32(0).Bytes()
		},
		Bindings: []compute.Binding{
			compute.Data(mixed.Uvq.State),
			compute.Data(mixed.Uv.State),
			compute.Data(poses.State),
			compute.DataRW(amats.State),
			compute.DataRW(bvecs.State),
		},
		Dispatch: func() uint32 { return compute.Groups(n) },
		Before: func() error {
			if err := amats.SetCount(n); err != nil {
				return err
			}
			return bvecs.SetCount(n)
		},
	})
}

// NewCholeskyStep builds the per-hypothesis solver of A x = b. Degenerate
// systems yield a zero update instead of failing the batch.
func NewCholeskyStep(w *compute.Worker, amats, bvecs, xvecs *compute.MatrixBatch) (*compute.Step, error) {
	src, err := kernels.Source(kernels.Cholesky6)
	if err != nil {
		return nil, err
	}
	n := xvecs.Capacity()
	return w.NewStep(compute.StepSpec{
		Name:        "cholesky6",
		Kernel:      kernels.Cholesky6,
		Source:      src,
		UniformSize: 16,
		Uniform: func() []byte {
			return new(compute.Packer).U32(n).U32(0).U32(0).U32(0).Bytes()
		},
		Bindings: []compute.Binding{
			compute.Data(amats.State),
			compute.Data(bvecs.State),
			compute.DataRW(xvecs.State),
		},
		Dispatch: func() uint32 { return compute.Groups(n) },
		Before:   func() error { return xvecs.SetCount(n) },
	})
}

// NewExpStep builds the twist-to-transform stage.
func NewExpStep(w *compute.Worker, xvecs, deltas *compute.MatrixBatch) (*compute.Step, error) {
	src, err := kernels.Source(kernels.SE3Exp)
	if err != nil {
		return nil, err
	}
	n := deltas.Capacity()
	return w.NewStep(compute.StepSpec{
		Name:        "se3_exp",
		Kernel:      kernels.SE3Exp,
		Source:      src,
		UniformSize: 16,
		Uniform: func() []byte {
			return new(compute.Packer).U32(n).U32(0).U32(0).U32(0).Bytes()
		},
		Bindings: []compute.Binding{
			compute.Data(xvecs.State),
			compute.DataRW(deltas.State),
		},
		Dispatch: func() uint32 { return compute.Groups(n) },
		Before:   func() error { return deltas.SetCount(n) },
	})
}

// NewMulStep builds the pose accumulation stage: poses[h] becomes
// poses[h] * deltas[h]. The stage accumulates, so it must execute exactly
// once per refinement iteration; measure it with repeat 1.
func NewMulStep(w *compute.Worker, deltas, poses *compute.MatrixBatch) (*compute.Step, error) {
	src, err := kernels.Source(kernels.MatMul)
	if err != nil {
		return nil, err
	}
	n := poses.Capacity()
	return w.NewStep(compute.StepSpec{
		Name:        "mat_mul",
		Kernel:      kernels.MatMul,
		Source:      src,
		UniformSize: 16,
		Uniform: func() []byte {
			return new(compute.Packer).U32(n).U32(0).U32(0).U32(0).Bytes()
		},
		Bindings: []compute.Binding{
			compute.Data(deltas.State),
			compute.DataRW(poses.State),
		},
		Dispatch: func() uint32 { return compute.Groups(n) },
	})
}

// NewScoreStep builds the consensus scorer: each hypothesis reprojects the
// full tuple pool under its final pose and accumulates soft inlier weights
// within the acceptance bound.
func NewScoreStep(w *compute.Worker, tuples *TupleList, poses *compute.MatrixBatch, scores *compute.FloatList, bound, zmin float32) (*compute.Step, error) {
	if err := tuples.requireRecords(1); err != nil {
		return nil, err
	}
	src, err := kernels.Source(kernels.SE3Score)
	if err != nil {
		return nil, err
	}
	pool := scores.Capacity()
	return w.NewStep(compute.StepSpec{
		Name:        "se3_score",
		Kernel:      kernels.SE3Score,
		Source:      src,
		UniformSize: 16,
		Uniform: func() []byte {
			return new(compute.Packer).
				U32(pool).
				F32(bound * bound).
				F32(zmin).
				U32(0).
				Bytes()
		},
		Bindings: []compute.Binding{
			compute.Data(tuples.Uvq.State),
			compute.Data(tuples.Uv.State),
			compute.Count(tuples.Uvq.State),
			compute.Data(poses.State),
			compute.DataRW(scores.State),
		},
		Dispatch: func() uint32 { return compute.Groups(pool) },
		Before:   func() error { return scores.SetCount(pool) },
	})
}

// NewRun1Step builds the winning-pose replay: one thread per tuple
// reprojects under the hypothesis whose index the host wrote into the best
// cell, producing per-tuple coordinates the batch scorer never keeps.
func NewRun1Step(w *compute.Worker, tuples *TupleList, poses *compute.MatrixBatch, best *compute.CountCell, outuv *compute.StridedFloatList, zmin float32) (*compute.Step, error) {
	if err := tuples.requireRecords(1); err != nil {
		return nil, err
	}
	src, err := kernels.Source(kernels.SE3Run1)
	if err != nil {
		return nil, err
	}
	pool := poses.Capacity()
	return w.NewStep(compute.StepSpec{
		Name:        "se3_run1",
		Kernel:      kernels.SE3Run1,
		Source:      src,
		UniformSize: 16,
		Uniform: func() []byte {
			return new(compute.Packer).
				U32(pool).
				F32(zmin).
				U32(0).U32(0).
				Bytes()
		},
		Bindings: []compute.Binding{
			compute.Data(tuples.Uvq.State),
			compute.Count(tuples.Uvq.State),
			compute.Data(poses.State),
			compute.Count(best.State),
			compute.DataRW(outuv.State),
		},
		Dispatch: func() uint32 { return compute.Groups(tuples.Count()) },
		Before:   func() error { return outuv.SetCount(tuples.Count()) },
	})
}
