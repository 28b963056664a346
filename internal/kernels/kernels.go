// Package kernels embeds the WGSL compute kernel sources used by the
// odometry pipeline and exposes them by name.
package kernels

import (
	_ "embed"
	"fmt"
	"sort"
)

// Kernel module names, stable across releases. A name doubles as the
// compile cache key on a worker.
const (
	PreFast   = "prefast"
	ClipDepth = "clip_depth"
	Fast      = "fast"
	HipsBlend = "hips_blend"
	HipsClip  = "hips_clip"
	TreeFind  = "tree_find"
	ToUvqUv   = "to_uvquv"
	MixUvqUv  = "mix_uvquv"
	MatIdent  = "mat_ident"
	PoseWls   = "pose_wls"
	Cholesky6 = "cholesky6"
	SE3Exp    = "se3_exp"
	MatMul    = "mat_mul"
	SE3Score  = "se3_score"
	SE3Run1   = "se3_run1"
)

//go:embed prefast.wgsl
var preFastWGSL string

//go:embed clip_depth.wgsl
var clipDepthWGSL string

//go:embed fast.wgsl
var fastWGSL string

//go:embed hips_blend.wgsl
var hipsBlendWGSL string

//go:embed hips_clip.wgsl
var hipsClipWGSL string

//go:embed tree_find.wgsl
var treeFindWGSL string

//go:embed to_uvquv.wgsl
var toUvqUvWGSL string

//go:embed mix_uvquv.wgsl
var mixUvqUvWGSL string

//go:embed mat_ident.wgsl
var matIdentWGSL string

//go:embed pose_wls.wgsl
var poseWlsWGSL string

//go:embed cholesky6.wgsl
var cholesky6WGSL string

//go:embed se3_exp.wgsl
var se3ExpWGSL string

//go:embed mat_mul.wgsl
var matMulWGSL string

//go:embed se3_score.wgsl
var se3ScoreWGSL string

//go:embed se3_run1.wgsl
var se3Run1WGSL string

var sources = map[string]string{
	PreFast:   preFastWGSL,
	ClipDepth: clipDepthWGSL,
	Fast:      fastWGSL,
	HipsBlend: hipsBlendWGSL,
	HipsClip:  hipsClipWGSL,
	TreeFind:  treeFindWGSL,
	ToUvqUv:   toUvqUvWGSL,
	MixUvqUv:  mixUvqUvWGSL,
	MatIdent:  matIdentWGSL,
	PoseWls:   poseWlsWGSL,
	Cholesky6: cholesky6WGSL,
	SE3Exp:    se3ExpWGSL,
	MatMul:    matMulWGSL,
	SE3Score:  se3ScoreWGSL,
	SE3Run1:   se3Run1WGSL,
}

// Source returns the WGSL source for a named kernel module.
func Source(name string) (string, error) {
	src, ok := sources[name]
	if !ok {
		return "", fmt.Errorf("kernels: unknown kernel %q", name)
	}
	return src, nil
}

// Names returns all kernel module names in sorted order.
func Names() []string {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
