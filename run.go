package vodom

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/vodom/calib"
	"github.com/gogpu/vodom/compute"
	"github.com/gogpu/vodom/frame"
	"github.com/gogpu/vodom/match"
	"github.com/gogpu/vodom/pose"
)

// ErrFrameSize is returned when a frame does not match the camera geometry
// the Odometer was built for.
var ErrFrameSize = errors.New("vodom: frame size does not match intrinsics")

// replayFar is the sentinel the replay kernel writes for tuples the winning
// pose moved behind the camera.
const replayFar = float32(1e30)

// measureStage runs one step to completion and records its wall time.
func measureStage(r *Result, s *compute.Step, stage string) error {
	d, err := s.Measure(1)
	if err != nil {
		return fmt.Errorf("vodom: %s: %w", stage, err)
	}
	r.addTiming(stage, d)
	return nil
}

// Run estimates the rigid transform from ref to query. Both frames must have
// the intrinsics' dimensions. The returned Result always carries the stage
// counts and timings gathered up to the point the pipeline stopped; with no
// acceptable matches the pose is the identity and BestIndex is -1.
func (o *Odometer) Run(ref, query *frame.Frame) (*Result, error) {
	for _, f := range []*frame.Frame{ref, query} {
		if f == nil {
			return nil, fmt.Errorf("%w: nil frame", ErrFrameSize)
		}
		if f.Width != o.intr.Width || f.Height != o.intr.Height {
			return nil, fmt.Errorf("%w: frame %dx%d, camera %dx%d",
				ErrFrameSize, f.Width, f.Height, o.intr.Width, o.intr.Height)
		}
	}

	r := &Result{Pose: pose.Identity(), BestIndex: -1}

	if err := o.detect(o.ref, ref, r, 0); err != nil {
		return nil, err
	}
	if err := o.detect(o.query, query, r, 1); err != nil {
		return nil, err
	}
	if err := o.buildTree(r); err != nil {
		return nil, err
	}

	if err := measureStage(r, o.find, "descriptor matching"); err != nil {
		return nil, err
	}
	nmatches, err := o.matches.GetCount()
	if err != nil {
		return nil, err
	}
	r.Matches = nmatches
	if nmatches == 0 {
		slogger().Info("vodom: no acceptable matches, keeping identity pose")
		return r, nil
	}

	if err := measureStage(r, o.toTuples, "tuple conversion"); err != nil {
		return nil, err
	}
	if err := measureStage(r, o.mix, "hypothesis sampling"); err != nil {
		return nil, err
	}
	if err := measureStage(r, o.ident, "pose seeding"); err != nil {
		return nil, err
	}

	var tWls, tChol, tExp, tMul time.Duration
	for i := 0; i < o.cfg.Iterations; i++ {
		d, err := o.wls.Measure(1)
		if err != nil {
			return nil, fmt.Errorf("vodom: normal equations: %w", err)
		}
		tWls += d
		if d, err = o.chol.Measure(1); err != nil {
			return nil, fmt.Errorf("vodom: cholesky solve: %w", err)
		}
		tChol += d
		if d, err = o.exp.Measure(1); err != nil {
			return nil, fmt.Errorf("vodom: exp map: %w", err)
		}
		tExp += d
		// The accumulate stage applies its delta on every execution, so
		// exactly one dispatch per iteration.
		if d, err = o.mul.Measure(1); err != nil {
			return nil, fmt.Errorf("vodom: pose accumulate: %w", err)
		}
		tMul += d
	}
	iters := fmt.Sprintf("%d iterations", o.cfg.Iterations)
	r.addTiming("normal equations, "+iters, tWls)
	r.addTiming("cholesky solve, "+iters, tChol)
	r.addTiming("exp map, "+iters, tExp)
	r.addTiming("pose accumulate, "+iters, tMul)

	if err := measureStage(r, o.score, "hypothesis scoring"); err != nil {
		return nil, err
	}
	scores, err := o.scores.ReadFloats()
	if err != nil {
		return nil, err
	}
	idx, bestScore := pose.BestScore(scores)
	if idx < 0 {
		slogger().Info("vodom: empty score buffer, keeping identity pose")
		return r, nil
	}
	r.BestIndex = idx
	r.Stats = pose.Summarize(scores)

	vals, err := o.poses.ReadMatrix(uint32(idx))
	if err != nil {
		return nil, err
	}
	r.Pose = pose.FromFloats(vals)

	if err := o.best.SetCount(uint32(idx)); err != nil {
		return nil, err
	}
	if err := measureStage(r, o.run1, "winning-pose replay"); err != nil {
		return nil, err
	}
	if err := o.consumeReplay(r); err != nil {
		return nil, err
	}

	slogger().Info("vodom: pose estimated",
		"matches", nmatches,
		"best_index", idx,
		"best_score", bestScore,
		"supported", r.Stats.Supported,
		"rotation_rad", r.Pose.RotationAngle())
	return r, nil
}

// detect uploads one frame and runs its five detector stages, recording the
// surviving count after each.
func (o *Odometer) detect(p *framePipeline, fr *frame.Frame, r *Result, slot int) error {
	if err := p.gray.WritePixels(fr.Gray); err != nil {
		return err
	}
	qplane := calib.QPlane(fr.Depth, o.cfg.DepthMode, o.cfg.DepthScale)
	if err := p.qmap.WritePixels(qplane); err != nil {
		return err
	}

	if err := measureStage(r, p.prefast, "coarse filter ("+p.label+")"); err != nil {
		return err
	}
	n, err := p.rough.GetCount()
	if err != nil {
		return err
	}
	r.RoughCorners[slot] = n

	if err := measureStage(r, p.clip, "depth clip ("+p.label+")"); err != nil {
		return err
	}
	if n, err = p.depthOK.GetCount(); err != nil {
		return err
	}
	r.DepthCorners[slot] = n

	if err := measureStage(r, p.fast, "ring test ("+p.label+")"); err != nil {
		return err
	}
	if n, err = p.feats.Points.GetCount(); err != nil {
		return err
	}
	r.Corners[slot] = n

	if err := measureStage(r, p.blend, "descriptor extract ("+p.label+")"); err != nil {
		return err
	}
	if err := measureStage(r, p.hclip, "descriptor clip ("+p.label+")"); err != nil {
		return err
	}
	r.Descriptors[slot] = p.feats.Descs.Count()

	if err := p.feats.Validate(); err != nil {
		return err
	}
	slogger().Debug("vodom: frame detected",
		"frame", p.label,
		"rough", r.RoughCorners[slot],
		"depth_ok", r.DepthCorners[slot],
		"corners", r.Corners[slot],
		"descriptors", r.Descriptors[slot])
	return nil
}

// buildTree downloads the reference descriptors, builds the search forest on
// the host and uploads it.
func (o *Odometer) buildTree(r *Result) error {
	start := time.Now()
	words, err := o.ref.feats.Descs.ReadWords()
	if err != nil {
		return err
	}
	tree, err := match.BuildTree(match.FromWords(words), o.cfg.TreeLeaves, o.cfg.TreeLevels)
	if err != nil {
		return err
	}
	if err := o.tree.Upload(tree); err != nil {
		return err
	}
	r.TreeFilled = tree.Filled()
	r.addTiming("tree build + upload", time.Since(start))
	return nil
}

// consumeReplay pairs the match list with the replay projections, bounds
// checking every index and aggregating failures instead of aborting.
func (o *Odometer) consumeReplay(r *Result) error {
	projs, err := o.outuv.ReadFloats()
	if err != nil {
		return err
	}
	pairs, err := o.matches.ReadPoints()
	if err != nil {
		return err
	}
	pts1, err := o.ref.feats.Points.ReadPoints()
	if err != nil {
		return err
	}
	pts2, err := o.query.feats.Points.ReadPoints()
	if err != nil {
		return err
	}
	r.RefCorners = pts1
	r.QueryCorners = pts2

	r.Correspondences = make([]Correspondence, 0, len(pairs))
	for i, pair := range pairs {
		if 2*i+1 >= len(projs) {
			r.BadPairs += len(pairs) - i
			break
		}
		ir, iq := int(pair.X), int(pair.Y)
		if ir < 0 || ir >= len(pts1) || iq < 0 || iq >= len(pts2) {
			slogger().Warn("vodom: replay pair out of range",
				"pair", i, "ref", ir, "query", iq,
				"ref_corners", len(pts1), "query_corners", len(pts2))
			r.BadPairs++
			continue
		}
		px, py := projs[2*i], projs[2*i+1]
		r.Correspondences = append(r.Correspondences, Correspondence{
			Ref:    pts1[ir],
			Query:  pts2[iq],
			Proj:   [2]float32{px, py},
			Behind: px == replayFar && py == replayFar,
		})
	}
	if r.BadPairs > 0 {
		slogger().Warn("vodom: replay pairs dropped", "count", r.BadPairs)
	}
	return nil
}
