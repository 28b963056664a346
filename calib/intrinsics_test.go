package calib

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestParseIntrinsics(t *testing.T) {
	const doc = `{
		"width_px": 640, "height_px": 480,
		"fx": 594.21, "fy": 591.04,
		"ppx": 339.5, "ppy": 242.7
	}`

	in, err := ParseIntrinsics(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseIntrinsics: %v", err)
	}
	if in != KinectDefaults() {
		t.Fatalf("got %+v, want kinect defaults", in)
	}
}

func TestParseIntrinsicsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"zero size", `{"width_px": 0, "height_px": 480, "fx": 1, "fy": 1}`},
		{"negative focal", `{"width_px": 10, "height_px": 10, "fx": -2, "fy": 1}`},
		{"garbage", `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseIntrinsics(strings.NewReader(tt.doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if err := (Intrinsics{Width: 1, Height: 1, Fx: 1, Fy: 0}).Validate(); !errors.Is(err, ErrBadIntrinsics) {
		t.Fatalf("Validate: got %v, want ErrBadIntrinsics", err)
	}
}

func TestProjectRoundTrip(t *testing.T) {
	in := KinectDefaults()
	for _, px := range [][2]float64{{0, 0}, {320, 240}, {639, 479}, {80, 255}} {
		u, v := in.Unproject(px[0], px[1])
		x, y := in.Project(u, v)
		if math.Abs(x-px[0]) > 1e-9 || math.Abs(y-px[1]) > 1e-9 {
			t.Errorf("round trip (%g, %g): got (%g, %g)", px[0], px[1], x, y)
		}
	}
}

func TestCropShiftsPrincipalPoint(t *testing.T) {
	full := KinectDefaults()
	crop := full.Crop(80, 0, 512, 256)

	if crop.Width != 512 || crop.Height != 256 {
		t.Fatalf("crop size: got %dx%d", crop.Width, crop.Height)
	}

	// The same physical pixel must unproject to the same ray.
	ufull, vfull := full.Unproject(300, 100)
	ucrop, vcrop := crop.Unproject(300-80, 100)
	if math.Abs(ufull-ucrop) > 1e-12 || math.Abs(vfull-vcrop) > 1e-12 {
		t.Fatalf("ray mismatch: full (%g, %g), crop (%g, %g)", ufull, vfull, ucrop, vcrop)
	}
}

func TestRayTables(t *testing.T) {
	in := Intrinsics{Width: 4, Height: 2, Fx: 2, Fy: 4, Ppx: 1, Ppy: 1}
	umap, vmap := in.RayTables()

	if len(umap) != 8 || len(vmap) != 8 {
		t.Fatalf("table size: got %d, %d, want 8", len(umap), len(vmap))
	}

	// Pixel (1, 1) sits on the principal point.
	if umap[1*4+1] != 0 || vmap[1*4+1] != 0 {
		t.Errorf("principal point ray: got (%v, %v), want (0, 0)", umap[5], vmap[5])
	}
	// Pixel (3, 0): u = (3-1)/2 = 1, v = (0-1)/4 = -0.25.
	if umap[3] != 1 || vmap[3] != -0.25 {
		t.Errorf("ray at (3, 0): got (%v, %v), want (1, -0.25)", umap[3], vmap[3])
	}
}

func TestQPlane(t *testing.T) {
	depth := []float32{0, 100, 500}

	disp := QPlane(depth, DepthDisparity, 2)
	if disp[0] != 0 || disp[1] != 200 || disp[2] != 1000 {
		t.Errorf("disparity: got %v", disp)
	}

	metric := QPlane(depth, DepthMetric, 1000)
	if metric[0] != 0 {
		t.Errorf("metric zero depth: got %v, want 0", metric[0])
	}
	if metric[1] != 10 || metric[2] != 2 {
		t.Errorf("metric: got %v", metric)
	}
}

func TestParseDepthMode(t *testing.T) {
	for _, tt := range []struct {
		s    string
		want DepthMode
	}{
		{"disparity", DepthDisparity},
		{"metric", DepthMetric},
	} {
		got, err := ParseDepthMode(tt.s)
		if err != nil || got != tt.want {
			t.Errorf("ParseDepthMode(%q): got %v, %v", tt.s, got, err)
		}
		if got.String() != tt.s {
			t.Errorf("String: got %q, want %q", got.String(), tt.s)
		}
	}
	if _, err := ParseDepthMode("bogus"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
