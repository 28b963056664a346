// Package overlay renders inspection images for a two-frame run: the input
// frames with their detected corners on the top row, and the same frames
// with correspondence lines to the winning pose's reprojections below.
package overlay

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/vodom"
	"github.com/gogpu/vodom/calib"
	"github.com/gogpu/vodom/frame"
)

// ErrBadInput is returned when the frames do not match the camera geometry.
var ErrBadInput = errors.New("overlay: frames do not match intrinsics")

var (
	cornerColor = color.RGBA{G: 0xc8, A: 0xff}
	matchColor  = color.RGBA{R: 0xe6, G: 0x28, B: 0x28, A: 0xff}
	labelColor  = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// pad is the gutter around and between panels, sized to fit a label line.
const pad = 16

// Compose lays out a 2x2 panel image: reference and query frames with
// corner markers on top, and underneath the same frames joined by a line
// per correspondence, from the reference corner to the reprojected position
// in the query frame. Reprojections behind the camera or outside the frame
// are skipped.
func Compose(ref, query *frame.Frame, intr calib.Intrinsics, res *vodom.Result) (*image.RGBA, error) {
	if ref == nil || query == nil ||
		ref.Width != intr.Width || ref.Height != intr.Height ||
		query.Width != intr.Width || query.Height != intr.Height {
		return nil, ErrBadInput
	}

	w, h := intr.Width, intr.Height
	canvas := image.NewRGBA(image.Rect(0, 0, 3*pad+2*w, 3*pad+2*h))

	panels := [4]image.Point{
		{pad, pad},
		{2*pad + w, pad},
		{pad, 2*pad + h},
		{2*pad + w, 2*pad + h},
	}
	grays := [4]*image.Gray{grayImage(ref), grayImage(query), grayImage(ref), grayImage(query)}
	for i, origin := range panels {
		xdraw.Copy(canvas, origin, grays[i], grays[i].Bounds(), xdraw.Src, nil)
	}

	for _, p := range res.RefCorners {
		dot(canvas, panels[0].X+int(p.X), panels[0].Y+int(p.Y), cornerColor)
	}
	for _, p := range res.QueryCorners {
		dot(canvas, panels[1].X+int(p.X), panels[1].Y+int(p.Y), cornerColor)
	}

	for _, c := range res.Correspondences {
		if c.Behind {
			continue
		}
		px, py := intr.Project(float64(c.Proj[0]), float64(c.Proj[1]))
		x2, y2 := int(px+0.5), int(py+0.5)
		if x2 < 0 || x2 >= w || y2 < 0 || y2 >= h {
			continue
		}
		line(canvas,
			panels[2].X+int(c.Ref.X), panels[2].Y+int(c.Ref.Y),
			panels[3].X+x2, panels[3].Y+y2,
			matchColor)
	}

	label(canvas, panels[0].X, panels[0].Y-4, "reference corners")
	label(canvas, panels[1].X, panels[1].Y-4, "query corners")
	label(canvas, panels[2].X, panels[2].Y-4, "correspondences")
	label(canvas, panels[3].X, panels[3].Y-4, "winning-pose reprojection")
	return canvas, nil
}

// SavePNG writes the composed image to a PNG file.
func SavePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	return png.Encode(f, img)
}

// grayImage converts a frame's intensity plane to an 8-bit image.
func grayImage(f *frame.Frame) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			g := f.GrayAt(x, y)
			if g < 0 {
				g = 0
			} else if g > 255 {
				g = 255
			}
			img.SetGray(x, y, color.Gray{Y: uint8(g)})
		}
	}
	return img
}

// dot marks a corner with a 3x3 square.
func dot(img *image.RGBA, x, y int, c color.RGBA) {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			img.SetRGBA(x+dx, y+dy, c)
		}
	}
}

// line draws with integer Bresenham steps.
func line(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx := x2 - x1
	if dx < 0 {
		dx = -dx
	}
	dy := y2 - y1
	if dy < 0 {
		dy = -dy
	}
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	e := dx - dy
	for {
		img.SetRGBA(x1, y1, c)
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * e
		if e2 > -dy {
			e -= dy
			x1 += sx
		}
		if e2 < dx {
			e += dx
			y1 += sy
		}
	}
}

// label draws a panel caption with the stock bitmap face.
func label(img *image.RGBA, x, y int, s string) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
