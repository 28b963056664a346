// Package main is the vodom command line tool.
package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/gogpu/vodom"
	"github.com/gogpu/vodom/calib"
	"github.com/gogpu/vodom/compute"
	"github.com/gogpu/vodom/frame"
	"github.com/gogpu/vodom/internal/overlay"
)

const (
	// Flags.
	poseFlagRef        = "ref"
	poseFlagQuery      = "query"
	poseFlagCalib      = "calib"
	poseFlagAdapter    = "adapter"
	poseFlagOverlay    = "overlay"
	poseFlagCropX      = "crop-x"
	poseFlagCropY      = "crop-y"
	poseFlagCropWidth  = "crop-width"
	poseFlagCropHeight = "crop-height"
	poseFlagThreshold  = "threshold"
	poseFlagRing       = "ring"
	poseFlagMaxCorners = "max-corners"
	poseFlagRefBlend   = "ref-blend"
	poseFlagQueryBlend = "query-blend"
	poseFlagMaxBits    = "max-bits"
	poseFlagMaxError   = "max-error"
	poseFlagLeaves     = "leaves"
	poseFlagLevels     = "levels"
	poseFlagRotations  = "rotations"
	poseFlagIterations = "iterations"
	poseFlagHypotheses = "hypotheses"
	poseFlagSeed       = "seed"
	poseFlagBound      = "bound"
	poseFlagQMin       = "qmin"
	poseFlagDepthMode  = "depth-mode"
	poseFlagDepthScale = "depth-scale"
)

func main() {
	defaults := vodom.DefaultConfig()

	app := &cli.App{
		Name:  "vodom",
		Usage: "estimate camera motion between two RGB-D frames",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				vodom.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})))
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "devices",
				Usage: "list GPU adapters",
				Action: func(c *cli.Context) error {
					infos, err := compute.Enumerate()
					if err != nil {
						return err
					}
					for _, info := range infos {
						fmt.Fprintf(c.App.Writer, "%2d  %-10s  %s\n", info.Index, info.TypeName(), info.Name)
					}
					return nil
				},
			},
			{
				Name:  "pose",
				Usage: "estimate the pose between a reference and a query frame",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     poseFlagRef,
						Usage:    "reference frame `FILE`",
						Required: true,
					},
					&cli.StringFlag{
						Name:     poseFlagQuery,
						Usage:    "query frame `FILE`",
						Required: true,
					},
					&cli.StringFlag{
						Name:  poseFlagCalib,
						Usage: "camera intrinsics JSON `FILE` (structured-light defaults when unset)",
					},
					&cli.IntFlag{
						Name:        poseFlagAdapter,
						Usage:       "run on this adapter index only",
						DefaultText: "all adapters",
					},
					&cli.StringFlag{
						Name:  poseFlagOverlay,
						Usage: "write a corner and correspondence overlay PNG to `FILE`",
					},
					&cli.IntFlag{
						Name:  poseFlagCropX,
						Usage: "crop window left edge",
						Value: 80,
					},
					&cli.IntFlag{
						Name:  poseFlagCropY,
						Usage: "crop window top edge",
						Value: 0,
					},
					&cli.IntFlag{
						Name:  poseFlagCropWidth,
						Usage: "crop window width, 0 to process full frames",
						Value: 512,
					},
					&cli.IntFlag{
						Name:  poseFlagCropHeight,
						Usage: "crop window height",
						Value: 256,
					},
					&cli.Float64Flag{
						Name:  poseFlagThreshold,
						Usage: "corner intensity threshold in gray levels",
						Value: float64(defaults.FastThreshold),
					},
					&cli.UintFlag{
						Name:  poseFlagRing,
						Usage: "contiguous ring arc length for the corner test",
						Value: uint(defaults.FastRing),
					},
					&cli.UintFlag{
						Name:  poseFlagMaxCorners,
						Usage: "corner cap per frame",
						Value: uint(defaults.MaxCorners),
					},
					&cli.UintFlag{
						Name:  poseFlagRefBlend,
						Usage: "reference descriptor blend footprint (1, 5 or 9)",
						Value: uint(defaults.RefBlend),
					},
					&cli.UintFlag{
						Name:  poseFlagQueryBlend,
						Usage: "query descriptor blend footprint (1, 5 or 9)",
						Value: uint(defaults.QueryBlend),
					},
					&cli.UintFlag{
						Name:  poseFlagMaxBits,
						Usage: "descriptor population cutoff",
						Value: uint(defaults.MaxBits),
					},
					&cli.UintFlag{
						Name:  poseFlagMaxError,
						Usage: "match acceptance threshold",
						Value: uint(defaults.MaxError),
					},
					&cli.IntFlag{
						Name:  poseFlagLeaves,
						Usage: "search forest leaf count, a power of two",
						Value: defaults.TreeLeaves,
					},
					&cli.IntFlag{
						Name:  poseFlagLevels,
						Usage: "search forest levels below the roots",
						Value: defaults.TreeLevels,
					},
					&cli.BoolFlag{
						Name:  poseFlagRotations,
						Usage: "match over all sixteen descriptor rotations",
						Value: defaults.Rotations,
					},
					&cli.IntFlag{
						Name:  poseFlagIterations,
						Usage: "refinement iterations per hypothesis",
						Value: defaults.Iterations,
					},
					&cli.UintFlag{
						Name:  poseFlagHypotheses,
						Usage: "pose hypothesis pool size",
						Value: uint(defaults.Hypotheses),
					},
					&cli.UintFlag{
						Name:  poseFlagSeed,
						Usage: "correspondence sampler seed",
						Value: uint(defaults.Seed),
					},
					&cli.Float64Flag{
						Name:  poseFlagBound,
						Usage: "support residual bound in ray units",
						Value: float64(defaults.Bound),
					},
					&cli.Float64Flag{
						Name:  poseFlagQMin,
						Usage: "inverse-depth cutoff for usable corners",
						Value: float64(defaults.QMin),
					},
					&cli.StringFlag{
						Name:  poseFlagDepthMode,
						Usage: "raw depth interpretation, disparity or metric",
						Value: defaults.DepthMode.String(),
					},
					&cli.Float64Flag{
						Name:  poseFlagDepthScale,
						Usage: "raw depth to inverse depth scale",
						Value: defaults.DepthScale,
					},
				},
				Action: runPose,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func configFromFlags(c *cli.Context) (vodom.Config, error) {
	cfg := vodom.DefaultConfig()
	cfg.FastThreshold = float32(c.Float64(poseFlagThreshold))
	cfg.FastRing = uint32(c.Uint(poseFlagRing))
	cfg.MaxCorners = uint32(c.Uint(poseFlagMaxCorners))
	cfg.RefBlend = uint32(c.Uint(poseFlagRefBlend))
	cfg.QueryBlend = uint32(c.Uint(poseFlagQueryBlend))
	cfg.MaxBits = uint32(c.Uint(poseFlagMaxBits))
	cfg.MaxError = uint32(c.Uint(poseFlagMaxError))
	cfg.TreeLeaves = c.Int(poseFlagLeaves)
	cfg.TreeLevels = c.Int(poseFlagLevels)
	cfg.Rotations = c.Bool(poseFlagRotations)
	cfg.Iterations = c.Int(poseFlagIterations)
	cfg.Hypotheses = uint32(c.Uint(poseFlagHypotheses))
	cfg.Seed = uint32(c.Uint(poseFlagSeed))
	cfg.Bound = float32(c.Float64(poseFlagBound))
	cfg.QMin = float32(c.Float64(poseFlagQMin))
	cfg.DepthScale = c.Float64(poseFlagDepthScale)

	mode, err := calib.ParseDepthMode(c.String(poseFlagDepthMode))
	if err != nil {
		return cfg, err
	}
	cfg.DepthMode = mode
	return cfg, cfg.Validate()
}

func runPose(c *cli.Context) error {
	ref, err := frame.LoadRGBD(c.String(poseFlagRef))
	if err != nil {
		return err
	}
	query, err := frame.LoadRGBD(c.String(poseFlagQuery))
	if err != nil {
		return err
	}

	intr := calib.KinectDefaults()
	if path := c.String(poseFlagCalib); path != "" {
		if intr, err = calib.LoadIntrinsics(path); err != nil {
			return err
		}
	}

	cfg, err := configFromFlags(c)
	if err != nil {
		return err
	}

	if w := c.Int(poseFlagCropWidth); w > 0 {
		x0, y0, h := c.Int(poseFlagCropX), c.Int(poseFlagCropY), c.Int(poseFlagCropHeight)
		if ref, err = ref.Crop(x0, y0, w, h); err != nil {
			return err
		}
		if query, err = query.Crop(x0, y0, w, h); err != nil {
			return err
		}
		intr = intr.Crop(x0, y0, w, h)
	}

	var indices []int
	if c.IsSet(poseFlagAdapter) {
		indices = []int{c.Int(poseFlagAdapter)}
	} else {
		infos, err := compute.Enumerate()
		if err != nil {
			return err
		}
		for _, info := range infos {
			indices = append(indices, info.Index)
		}
	}
	if len(indices) == 0 {
		return compute.ErrNoAdapters
	}

	completed := 0
	for _, index := range indices {
		res, err := poseOnAdapter(c, index, intr, cfg, ref, query)
		if err != nil {
			fmt.Fprintf(c.App.ErrWriter, "adapter %d: %v\n", index, err)
			continue
		}
		completed++

		if path := c.String(poseFlagOverlay); path != "" && completed == 1 {
			img, err := overlay.Compose(ref, query, intr, res)
			if err != nil {
				return err
			}
			if err := overlay.SavePNG(path, img); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "overlay written to %s\n", path)
		}
	}
	if completed == 0 {
		return errors.New("no adapter completed the run")
	}
	return nil
}

func poseOnAdapter(c *cli.Context, index int, intr calib.Intrinsics, cfg vodom.Config, ref, query *frame.Frame) (*vodom.Result, error) {
	worker, err := compute.New(compute.WithAdapterIndex(index))
	if err != nil {
		return nil, err
	}
	defer worker.Close()

	odo, err := vodom.NewOdometer(worker, intr, cfg)
	if err != nil {
		return nil, err
	}
	defer odo.Close()

	res, err := odo.Run(ref, query)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(c.App.Writer, "== adapter %d: %s (%s)\n", index, worker.Adapter().Name, worker.Adapter().TypeName())
	fmt.Fprint(c.App.Writer, res.Report())
	return res, nil
}
