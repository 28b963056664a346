package vodom

import (
	"fmt"

	"github.com/gogpu/vodom/calib"
	"github.com/gogpu/vodom/compute"
	"github.com/gogpu/vodom/match"
	"github.com/gogpu/vodom/pose"
)

// framePipeline is the per-frame half of the detector: upload targets and
// the five stages from raw gray to clipped descriptors. Bindings are fixed,
// so each frame slot owns its own states and steps.
type framePipeline struct {
	label string

	gray *compute.ImageState
	qmap *compute.ImageState

	rough   *compute.PointList
	depthOK *compute.PointList
	feats   *match.FrameFeatures

	prefast *compute.Step
	clip    *compute.Step
	fast    *compute.Step
	blend   *compute.Step
	hclip   *compute.Step
}

func (f *framePipeline) destroy() {
	for _, s := range []*compute.Step{f.prefast, f.clip, f.fast, f.blend, f.hclip} {
		if s != nil {
			s.Destroy()
		}
	}
	if f.feats != nil {
		f.feats.Destroy()
	}
	for _, st := range []*compute.PointList{f.rough, f.depthOK} {
		if st != nil {
			st.Destroy()
		}
	}
	for _, st := range []*compute.ImageState{f.gray, f.qmap} {
		if st != nil {
			st.Destroy()
		}
	}
}

// Odometer owns the full two-frame pipeline on one Worker: every device
// buffer and every stage, allocated and validated up front. Construction
// wires all stages with fixed bindings; Run only uploads frames, executes,
// and reads results back. Create one per Worker and Close it before closing
// the Worker.
type Odometer struct {
	w    *compute.Worker
	cfg  Config
	intr calib.Intrinsics

	umap *compute.ImageState
	vmap *compute.ImageState

	ref   *framePipeline
	query *framePipeline

	tree    *match.DeviceTree
	matches *compute.PointList
	tuples  *pose.TupleList
	mixed   *pose.TupleList

	poses  *compute.MatrixBatch
	amats  *compute.MatrixBatch
	bvecs  *compute.MatrixBatch
	xvecs  *compute.MatrixBatch
	deltas *compute.MatrixBatch
	scores *compute.FloatList
	best   *compute.CountCell
	outuv  *compute.StridedFloatList

	find     *compute.Step
	toTuples *compute.Step
	mix      *compute.Step
	ident    *compute.Step
	wls      *compute.Step
	chol     *compute.Step
	exp      *compute.Step
	mul      *compute.Step
	score    *compute.Step
	run1     *compute.Step
}

// NewOdometer validates the configuration, allocates every device state for
// frames of the intrinsics' size, and constructs all stages. Any failure
// releases what was already allocated.
func NewOdometer(w *compute.Worker, intr calib.Intrinsics, cfg Config) (*Odometer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := intr.Validate(); err != nil {
		return nil, err
	}

	o := &Odometer{w: w, cfg: cfg, intr: intr}
	if err := o.build(); err != nil {
		o.Close()
		return nil, err
	}

	slogger().Debug("vodom: odometer ready",
		"size", fmt.Sprintf("%dx%d", intr.Width, intr.Height),
		"max_corners", cfg.MaxCorners,
		"hypotheses", cfg.Hypotheses)
	return o, nil
}

func (o *Odometer) build() error {
	nx := uint32(o.intr.Width)
	ny := uint32(o.intr.Height)

	var err error
	if o.umap, err = o.w.NewImageState("calib.umap", nx, ny); err != nil {
		return err
	}
	if o.vmap, err = o.w.NewImageState("calib.vmap", nx, ny); err != nil {
		return err
	}
	umap, vmap := o.intr.RayTables()
	if err = o.umap.WritePixels(umap); err != nil {
		return err
	}
	if err = o.vmap.WritePixels(vmap); err != nil {
		return err
	}

	if o.ref, err = o.buildFrame("ref", o.cfg.RefBlend); err != nil {
		return err
	}
	if o.query, err = o.buildFrame("query", o.cfg.QueryBlend); err != nil {
		return err
	}

	if o.tree, err = match.NewDeviceTree(o.w, "ref.tree", o.cfg.TreeLeaves, o.cfg.TreeLevels); err != nil {
		return err
	}
	if o.matches, err = o.w.NewPointList("matches", o.cfg.MaxCorners); err != nil {
		return err
	}
	if o.find, err = match.NewTreeFindStep(o.w, o.tree, o.query.feats.Descs, o.matches,
		o.cfg.MaxError, o.cfg.Rotations); err != nil {
		return err
	}

	if o.tuples, err = pose.NewTupleList(o.w, "tuples", 1, o.cfg.MaxCorners); err != nil {
		return err
	}
	if o.toTuples, err = pose.NewToUvqUvStep(o.w, o.umap, o.vmap, o.ref.qmap,
		o.ref.feats.Points, o.query.feats.Points, o.matches, o.tuples); err != nil {
		return err
	}

	h := o.cfg.Hypotheses
	if o.mixed, err = pose.NewTupleList(o.w, "hypo.tuples", 3, h); err != nil {
		return err
	}
	if o.mix, err = pose.NewMixStep(o.w, o.tuples, o.mixed, o.cfg.Seed); err != nil {
		return err
	}

	if o.poses, err = o.w.NewMatrixBatch("hypo.pose", 4, 4, h); err != nil {
		return err
	}
	if o.amats, err = o.w.NewMatrixBatch("hypo.a", 6, 6, h); err != nil {
		return err
	}
	if o.bvecs, err = o.w.NewMatrixBatch("hypo.b", 6, 1, h); err != nil {
		return err
	}
	if o.xvecs, err = o.w.NewMatrixBatch("hypo.x", 6, 1, h); err != nil {
		return err
	}
	if o.deltas, err = o.w.NewMatrixBatch("hypo.delta", 4, 4, h); err != nil {
		return err
	}
	if o.scores, err = o.w.NewFloatList("hypo.score", h); err != nil {
		return err
	}
	if o.best, err = o.w.NewCountCell("hypo.best", h); err != nil {
		return err
	}
	if o.outuv, err = o.w.NewStridedFloatList("replay.uv", 2, o.cfg.MaxCorners); err != nil {
		return err
	}

	if o.ident, err = pose.NewIdentStep(o.w, o.poses); err != nil {
		return err
	}
	if o.wls, err = pose.NewWlsStep(o.w, o.mixed, o.poses, o.amats, o.bvecs); err != nil {
		return err
	}
	if o.chol, err = pose.NewCholeskyStep(o.w, o.amats, o.bvecs, o.xvecs); err != nil {
		return err
	}
	if o.exp, err = pose.NewExpStep(o.w, o.xvecs, o.deltas); err != nil {
		return err
	}
	if o.mul, err = pose.NewMulStep(o.w, o.deltas, o.poses); err != nil {
		return err
	}
	if o.score, err = pose.NewScoreStep(o.w, o.tuples, o.poses, o.scores,
		o.cfg.Bound, o.cfg.ZMin); err != nil {
		return err
	}
	if o.run1, err = pose.NewRun1Step(o.w, o.tuples, o.poses, o.best, o.outuv,
		o.cfg.ZMin); err != nil {
		return err
	}
	return nil
}

func (o *Odometer) buildFrame(label string, blend uint32) (*framePipeline, error) {
	nx := uint32(o.intr.Width)
	ny := uint32(o.intr.Height)
	nxy := nx * ny

	f := &framePipeline{label: label}
	var err error
	if f.gray, err = o.w.NewImageState(label+".gray", nx, ny); err != nil {
		return f, err
	}
	if f.qmap, err = o.w.NewImageState(label+".qmap", nx, ny); err != nil {
		return f, err
	}
	if f.rough, err = o.w.NewPointList(label+".rough", nxy); err != nil {
		return f, err
	}
	if f.depthOK, err = o.w.NewPointList(label+".depth", nxy); err != nil {
		return f, err
	}
	if f.feats, err = match.NewFrameFeatures(o.w, label, o.cfg.MaxCorners); err != nil {
		return f, err
	}

	if f.prefast, err = match.NewPreFastStep(o.w, f.gray, f.rough, o.cfg.FastThreshold); err != nil {
		return f, err
	}
	if f.clip, err = match.NewClipDepthStep(o.w, f.qmap, f.rough, f.depthOK, o.cfg.QMin); err != nil {
		return f, err
	}
	if f.fast, err = match.NewFastStep(o.w, f.gray, f.depthOK, f.feats.Points,
		o.cfg.FastThreshold, o.cfg.FastRing); err != nil {
		return f, err
	}
	if f.blend, err = match.NewHipsBlendStep(o.w, f.gray, f.feats.Points, f.feats.Descs, blend); err != nil {
		return f, err
	}
	if f.hclip, err = match.NewHipsClipStep(o.w, f.feats.Descs, o.cfg.MaxBits); err != nil {
		return f, err
	}
	return f, nil
}

// Config returns the configuration the Odometer was built with.
func (o *Odometer) Config() Config { return o.cfg }

// Intrinsics returns the camera model the Odometer was built for.
func (o *Odometer) Intrinsics() calib.Intrinsics { return o.intr }

// Close releases every state and step. The Worker stays open.
func (o *Odometer) Close() {
	for _, s := range []*compute.Step{
		o.find, o.toTuples, o.mix, o.ident, o.wls, o.chol, o.exp, o.mul, o.score, o.run1,
	} {
		if s != nil {
			s.Destroy()
		}
	}
	if o.ref != nil {
		o.ref.destroy()
	}
	if o.query != nil {
		o.query.destroy()
	}
	if o.tree != nil {
		o.tree.Destroy()
	}
	if o.tuples != nil {
		o.tuples.Destroy()
	}
	if o.mixed != nil {
		o.mixed.Destroy()
	}
	for _, st := range []*compute.MatrixBatch{o.poses, o.amats, o.bvecs, o.xvecs, o.deltas} {
		if st != nil {
			st.Destroy()
		}
	}
	if o.matches != nil {
		o.matches.Destroy()
	}
	if o.scores != nil {
		o.scores.Destroy()
	}
	if o.best != nil {
		o.best.Destroy()
	}
	if o.outuv != nil {
		o.outuv.Destroy()
	}
	for _, st := range []*compute.ImageState{o.umap, o.vmap} {
		if st != nil {
			st.Destroy()
		}
	}
}
