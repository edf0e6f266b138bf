package render

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/transform"
	xdraw "golang.org/x/image/draw"

	"github.com/tstromberg/imgecho/pkg/layout"
	"github.com/tstromberg/imgecho/pkg/meta"
)

const (
	tileSpacing  = 1.5
	tileAngle    = -30.0
	tileMaxAlpha = 0.3
)

// LogoSize returns the drawn size of a logo: a share of the canvas width,
// with the height following the logo's aspect ratio.
func LogoSize(logo image.Rectangle, canvasW, sizePercent float64) (float64, float64) {
	if logo.Dx() == 0 {
		return 0, 0
	}
	w := canvasW * sizePercent / 100
	return w, w * float64(logo.Dy()) / float64(logo.Dx())
}

func opacityMask(a float64) *image.Uniform {
	return image.NewUniform(color.Alpha{A: uint8(clamp01(a)*255 + 0.5)})
}

// drawLogo places img on dst according to s.
func drawLogo(dst *image.RGBA, img image.Image, s meta.LogoSettings) {
	canvas := layout.Size{W: float64(dst.Bounds().Dx()), H: float64(dst.Bounds().Dy())}
	w, h := LogoSize(img.Bounds(), canvas.W, s.SizePercent)
	if w < 1 || h < 1 {
		return
	}
	scaled := transform.Resize(img, int(math.Round(w)), int(math.Round(h)), transform.Linear)

	if s.Tiled {
		drawTiled(dst, scaled, w, h, s.Opacity)
		return
	}

	x, y := layout.LogoPosition(s.Position, w, h, canvas)
	at := scaled.Bounds().Add(dst.Bounds().Min).Add(image.Pt(int(math.Round(x)), int(math.Round(y))))
	xdraw.DrawMask(dst, at, scaled, scaled.Bounds().Min, opacityMask(s.Opacity), image.Point{}, xdraw.Over)
}

// drawTiled repeats the logo on a grid rotated about the canvas center at a
// reduced opacity, for watermarking.
func drawTiled(dst *image.RGBA, tile *image.RGBA, w, h, opacity float64) {
	b := dst.Bounds()
	sx, sy := w*tileSpacing, h*tileSpacing
	cols := int(math.Ceil(float64(b.Dx())/sx)) + 2
	rows := int(math.Ceil(float64(b.Dy())/sy)) + 2

	// Rotated rows reach past the canvas, so the grid layer is larger than it.
	grid := image.NewRGBA(image.Rect(int(-sx), int(-sy), int(float64(cols)*sx), int(float64(rows)*sy)))
	for row := -1; row < rows; row++ {
		for col := -1; col < cols; col++ {
			pt := image.Pt(int(math.Round(float64(col)*sx)), int(math.Round(float64(row)*sy)))
			xdraw.Draw(grid, tile.Bounds().Add(pt), tile, tile.Bounds().Min, xdraw.Over)
		}
	}

	layer := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	cx, cy := float64(b.Dx())/2, float64(b.Dy())/2
	xdraw.BiLinear.Transform(layer, rotation(tileAngle, cx, cy), grid, grid.Bounds(), xdraw.Over, nil)

	a := math.Min(opacity*tileMaxAlpha, tileMaxAlpha)
	xdraw.DrawMask(dst, b, layer, image.Point{}, opacityMask(a), image.Point{}, xdraw.Over)
}
