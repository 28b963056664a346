// Package vodom estimates the rigid transform between two RGB-D frames on
// the GPU.
//
// # Overview
//
// vodom is a sparse visual odometry pipeline for the GoGPU ecosystem. Corner
// detection, binary descriptor extraction, tree matching and a large pool of
// random-sampling pose hypotheses all run as compute kernels on one device
// queue; the host only uploads frames, builds the descriptor search tree and
// reduces the final scores.
//
// # Quick Start
//
//	import (
//		"github.com/gogpu/vodom"
//		"github.com/gogpu/vodom/calib"
//		"github.com/gogpu/vodom/compute"
//	)
//
//	worker, err := compute.New()
//	// handle err
//	defer worker.Close()
//
//	odo, err := vodom.NewOdometer(worker, calib.KinectDefaults(), vodom.DefaultConfig())
//	// handle err
//	defer odo.Close()
//
//	result, err := odo.Run(refFrame, queryFrame)
//	// handle err
//	fmt.Println(result.Report())
//
// # Architecture
//
// The library is organized into:
//   - Root: Odometer pipeline wiring, Config, Result
//   - compute: device worker, typed buffers with logical counts, kernel steps
//   - match: detection, descriptors, search tree, matching stages
//   - pose: hypothesis sampling, Gauss-Newton refinement, scoring, replay
//   - frame, calib: RGB-D plaintext frames and pinhole camera geometry
//
// # Coordinate System
//
// Image origin (0,0) at top-left, x right, y down. Corners unproject through
// the pinhole model to rays at unit depth; depth enters as inverse depth q,
// so pose translation is expressed in q units.
//
// # Determinism
//
// Hypothesis sampling is a pure function of (seed, hypothesis, slot), and
// score reduction breaks ties toward the lowest index, so a run with a fixed
// seed returns the same best hypothesis every time.
package vodom

// Version information
const (
	// Version is the current version of the library
	Version = "0.3.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 3

	// VersionPatch is the patch version
	VersionPatch = 0
)
