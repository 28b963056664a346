package overlay

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/vodom"
	"github.com/gogpu/vodom/calib"
	"github.com/gogpu/vodom/compute"
	"github.com/gogpu/vodom/frame"
)

func testFrame(t *testing.T, w, h int, base float32) *frame.Frame {
	t.Helper()
	f, err := frame.New(w, h)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f.Gray[y*w+x] = base + float32((x+y)%32)
		}
	}
	return f
}

func testIntrinsics(w, h int) calib.Intrinsics {
	return calib.Intrinsics{Width: w, Height: h, Fx: 40, Fy: 40, Ppx: float64(w) / 2, Ppy: float64(h) / 2}
}

func TestComposeLayout(t *testing.T) {
	const w, h = 64, 48
	ref := testFrame(t, w, h, 10)
	query := testFrame(t, w, h, 40)
	intr := testIntrinsics(w, h)

	res := &vodom.Result{
		RefCorners:   []compute.Point{{X: 10, Y: 10}, {X: 20, Y: 15}},
		QueryCorners: []compute.Point{{X: 12, Y: 11}},
		Correspondences: []vodom.Correspondence{
			// Projects to pixel (42, 20): 0.25*40+32, -0.1*40+24.
			{Ref: compute.Point{X: 10, Y: 10}, Query: compute.Point{X: 12, Y: 11}, Proj: [2]float32{0.25, -0.1}},
		},
	}

	img, err := Compose(ref, query, intr, res)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	want := image.Rect(0, 0, 3*pad+2*w, 3*pad+2*h)
	if img.Bounds() != want {
		t.Fatalf("bounds = %v, want %v", img.Bounds(), want)
	}

	// Corner dots in the top panels.
	if got := img.RGBAAt(pad+10, pad+10); got != cornerColor {
		t.Errorf("ref corner pixel = %v, want %v", got, cornerColor)
	}
	if got := img.RGBAAt(2*pad+w+12, pad+11); got != cornerColor {
		t.Errorf("query corner pixel = %v, want %v", got, cornerColor)
	}

	// Line endpoints in the bottom panels.
	if got := img.RGBAAt(pad+10, 2*pad+h+10); got != matchColor {
		t.Errorf("line start pixel = %v, want %v", got, matchColor)
	}
	if got := img.RGBAAt(2*pad+w+42, 2*pad+h+20); got != matchColor {
		t.Errorf("line end pixel = %v, want %v", got, matchColor)
	}
}

func TestComposeSkipsUnusable(t *testing.T) {
	const w, h = 64, 48
	ref := testFrame(t, w, h, 0)
	query := testFrame(t, w, h, 0)
	intr := testIntrinsics(w, h)

	res := &vodom.Result{
		Correspondences: []vodom.Correspondence{
			{Ref: compute.Point{X: 5, Y: 5}, Proj: [2]float32{1e30, 1e30}, Behind: true},
			// Projects far outside the frame.
			{Ref: compute.Point{X: 5, Y: 5}, Proj: [2]float32{4.0, 0}},
		},
	}

	img, err := Compose(ref, query, intr, res)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y) == matchColor {
				t.Fatalf("unexpected line pixel at (%d, %d)", x, y)
			}
		}
	}
}

func TestComposeClampsGray(t *testing.T) {
	const w, h = 32, 24
	ref := testFrame(t, w, h, 0)
	query := testFrame(t, w, h, 0)
	ref.Gray[3*w+3] = 300
	ref.Gray[3*w+4] = -5
	intr := testIntrinsics(w, h)

	img, err := Compose(ref, query, intr, &vodom.Result{})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if got := img.RGBAAt(pad+3, pad+3); got.R != 255 || got.G != 255 || got.B != 255 {
		t.Errorf("overbright pixel = %v, want white", got)
	}
	if got := img.RGBAAt(pad+4, pad+3); got.R != 0 || got.G != 0 || got.B != 0 {
		t.Errorf("negative pixel = %v, want black", got)
	}
}

func TestComposeRejectsMismatch(t *testing.T) {
	ref := testFrame(t, 64, 48, 0)
	query := testFrame(t, 32, 24, 0)
	intr := testIntrinsics(64, 48)

	if _, err := Compose(ref, query, intr, &vodom.Result{}); !errors.Is(err, ErrBadInput) {
		t.Fatalf("err = %v, want ErrBadInput", err)
	}
	if _, err := Compose(nil, nil, intr, &vodom.Result{}); !errors.Is(err, ErrBadInput) {
		t.Fatalf("nil frames: err = %v, want ErrBadInput", err)
	}
}

func TestSavePNG(t *testing.T) {
	const w, h = 32, 24
	ref := testFrame(t, w, h, 10)
	query := testFrame(t, w, h, 10)
	img, err := Compose(ref, query, testIntrinsics(w, h), &vodom.Result{})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	path := filepath.Join(t.TempDir(), "overlay.png")
	if err := SavePNG(path, img); err != nil {
		t.Fatalf("SavePNG: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Bounds() != img.Bounds() {
		t.Fatalf("decoded bounds = %v, want %v", decoded.Bounds(), img.Bounds())
	}
}

func TestLineCoversEndpoints(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	line(img, 2, 3, 17, 12, matchColor)
	if img.RGBAAt(2, 3) != matchColor {
		t.Error("start pixel not drawn")
	}
	if img.RGBAAt(17, 12) != matchColor {
		t.Error("end pixel not drawn")
	}
	// Steep and degenerate cases terminate.
	line(img, 5, 15, 5, 2, matchColor)
	line(img, 8, 8, 8, 8, matchColor)
	if img.RGBAAt(8, 8) != matchColor {
		t.Error("single point not drawn")
	}
}
