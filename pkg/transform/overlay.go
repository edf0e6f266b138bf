package transform

import (
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"
)

var (
	dimColor    = color.NRGBA{A: 128}
	borderColor = color.NRGBA{R: 0x42, G: 0x99, B: 0xe1, A: 255}
	gridColor   = color.NRGBA{R: 255, G: 255, B: 255, A: 204}
	handleEdge  = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

const (
	borderWidth = 2
	handleSize  = 10
)

func fill(dst *image.RGBA, r image.Rectangle, c color.Color) {
	xdraw.Draw(dst, r.Intersect(dst.Bounds()), image.NewUniform(c), image.Point{}, xdraw.Over)
}

func outline(dst *image.RGBA, r image.Rectangle, w int, c color.Color) {
	fill(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+w), c)
	fill(dst, image.Rect(r.Min.X, r.Max.Y-w, r.Max.X, r.Max.Y), c)
	fill(dst, image.Rect(r.Min.X, r.Min.Y+w, r.Min.X+w, r.Max.Y-w), c)
	fill(dst, image.Rect(r.Max.X-w, r.Min.Y+w, r.Max.X, r.Max.Y-w), c)
}

// Overlay draws the crop UI onto dst, which holds the working image: the area
// outside the box is dimmed, then the border, rule-of-thirds grid and
// handles are drawn. It does nothing outside crop mode.
func (m *Machine) Overlay(dst *image.RGBA) {
	box, active := m.CropBox()
	if !active {
		return
	}
	DrawCropUI(dst, box)
}

// DrawCropUI draws the crop box decorations for box onto dst.
func DrawCropUI(dst *image.RGBA, box CropBox) {
	o := dst.Bounds().Min
	r := image.Rect(
		int(math.Round(box.X)), int(math.Round(box.Y)),
		int(math.Round(box.X+box.Width)), int(math.Round(box.Y+box.Height)),
	).Add(o)
	b := dst.Bounds()

	fill(dst, image.Rect(b.Min.X, b.Min.Y, b.Max.X, r.Min.Y), dimColor)
	fill(dst, image.Rect(b.Min.X, r.Max.Y, b.Max.X, b.Max.Y), dimColor)
	fill(dst, image.Rect(b.Min.X, r.Min.Y, r.Min.X, r.Max.Y), dimColor)
	fill(dst, image.Rect(r.Max.X, r.Min.Y, b.Max.X, r.Max.Y), dimColor)

	outline(dst, r, borderWidth, borderColor)

	for i := 1; i < 3; i++ {
		x := r.Min.X + r.Dx()*i/3
		y := r.Min.Y + r.Dy()*i/3
		fill(dst, image.Rect(x, r.Min.Y, x+1, r.Max.Y), gridColor)
		fill(dst, image.Rect(r.Min.X, y, r.Max.X, y+1), gridColor)
	}

	for _, h := range box.Handles() {
		c := image.Pt(int(math.Round(h.X)), int(math.Round(h.Y))).Add(o)
		hr := image.Rect(c.X-handleSize/2, c.Y-handleSize/2, c.X+handleSize/2, c.Y+handleSize/2)
		fill(dst, hr, borderColor)
		outline(dst, hr, borderWidth, handleEdge)
	}
}
