package render

import (
	"image"
	"image/color"
	"math"
	"unicode/utf8"

	"github.com/anthonynsimon/bild/blur"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"

	"github.com/tstromberg/imgecho/pkg/layout"
	"github.com/tstromberg/imgecho/pkg/meta"
)

const (
	shadowAlpha  = 0.5
	shadowBlur   = 2.0
	shadowOffset = 1
)

// TextBlock is the measured geometry of a text overlay.
type TextBlock struct {
	Lines      []string
	FontSize   float64
	LineHeight float64
	Width      float64
	Height     float64
	X, Y       float64 // draw origin
	Align      layout.Align
	Baseline   layout.Baseline
}

func toFixed(f float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(f * 64))
}

func fromFixed(f fixed.Int26_6) float64 {
	return float64(f) / 64
}

// Measure lays out lines on a canvas of the given size without drawing.
func Measure(face font.Face, lines []string, rec meta.Record, canvas layout.Size) TextBlock {
	size := layout.FontSize(canvas.H, rec.FontSizePercent)
	mult := rec.LineHeightMultiplier
	if mult <= 0 {
		mult = meta.DefaultRecord().LineHeightMultiplier
	}

	b := TextBlock{
		Lines:      lines,
		FontSize:   size,
		LineHeight: size * mult,
		Align:      layout.AlignmentFor(rec.FontPosition),
		Baseline:   layout.BaselineFor(rec.FontPosition),
	}
	for _, l := range lines {
		b.Width = math.Max(b.Width, fromFixed(font.MeasureString(face, l)))
	}
	b.Height = float64(len(lines)) * b.LineHeight
	b.X, b.Y = layout.TextPosition(rec.FontPosition, layout.Margin(size), b.Width, b.Height, canvas)
	return b
}

// Mask is the background rectangle behind the block.
func (b TextBlock) Mask() layout.Rect {
	return layout.MaskRect(b.X, b.Y, b.Width, b.Height, b.Align, b.Baseline, b.LineHeight)
}

// center is the rotation pivot: the middle of the unaligned block.
func (b TextBlock) center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

func rect(r layout.Rect) image.Rectangle {
	return image.Rect(int(math.Floor(r.X)), int(math.Floor(r.Y)), int(math.Ceil(r.X+r.W)), int(math.Ceil(r.Y+r.H)))
}

// drawLine draws one line starting at the left edge x. With spacing > 0
// glyphs are placed one at a time.
func drawLine(dst *image.RGBA, src image.Image, face font.Face, line string, x, dotY, spacing float64) {
	d := &font.Drawer{Dst: dst, Src: src, Face: face, Dot: fixed.Point26_6{X: toFixed(x), Y: toFixed(dotY)}}
	if spacing <= 0 {
		d.DrawString(line)
		return
	}
	cur := x
	for _, r := range line {
		s := string(r)
		d.Dot = fixed.Point26_6{X: toFixed(cur), Y: toFixed(dotY)}
		d.DrawString(s)
		cur += fromFixed(font.MeasureString(face, s)) + spacing
	}
}

// strokeOffsets approximates an outline of the given width by the set of
// integer offsets within half of it.
func strokeOffsets(width float64) []image.Point {
	if width <= 0 {
		return nil
	}
	r := math.Max(1, width/2)
	n := int(math.Ceil(r))
	var pts []image.Point
	for dy := -n; dy <= n; dy++ {
		for dx := -n; dx <= n; dx++ {
			if (dx != 0 || dy != 0) && float64(dx*dx+dy*dy) <= r*r {
				pts = append(pts, image.Pt(dx, dy))
			}
		}
	}
	return pts
}

func maxRunes(lines []string) int {
	n := 0
	for _, l := range lines {
		if c := utf8.RuneCountInString(l); c > n {
			n = c
		}
	}
	return n
}

// drawText composites the text block onto dst: mask, shadow, stroke, fill.
func drawText(dst *image.RGBA, face font.Face, b TextBlock, rec meta.Record) {
	if len(b.Lines) == 0 {
		return
	}

	m := face.Metrics()
	ascent, descent := fromFixed(m.Ascent), fromFixed(m.Descent)
	spacing := math.Max(0, rec.LetterSpacingPx)

	// The layer covers the block with room for glyph overhang, stroke and blur.
	pad := rec.StrokeWidth + b.FontSize + shadowBlur*3 + spacing*float64(maxRunes(b.Lines))
	mr := b.Mask()
	bounds := rect(layout.Rect{X: mr.X - pad, Y: mr.Y - pad, W: mr.W + 2*pad, H: mr.H + 2*pad})

	glyphs := image.NewRGBA(bounds)
	fill := image.NewUniform(ParseHex(rec.FontColor, color.NRGBA{255, 255, 255, 255}))
	stroke := image.NewUniform(ParseHex(rec.StrokeColor, color.NRGBA{0, 0, 0, 255}))
	offsets := strokeOffsets(rec.StrokeWidth)

	for i, line := range b.Lines {
		y := b.Y + float64(i)*b.LineHeight
		dotY := y + ascent
		if b.Baseline == layout.BaselineBottom {
			dotY = y - descent
		}
		x := layout.LineStart(b.X, fromFixed(font.MeasureString(face, line)), b.Align)

		for _, o := range offsets {
			drawLine(glyphs, stroke, face, line, x+float64(o.X), dotY+float64(o.Y), spacing)
		}
		drawLine(glyphs, fill, face, line, x, dotY, spacing)
	}

	layer := image.NewRGBA(bounds)
	if rec.BackgroundMask {
		xdraw.Draw(layer, rect(mr), image.NewUniform(withAlpha(color.NRGBA{A: 255}, rec.MaskOpacity)), image.Point{}, xdraw.Over)
	}

	textAlpha := image.NewUniform(color.Alpha{A: uint8(clamp01(rec.FontOpacity)*255 + 0.5)})
	if rec.TextShadowEnabled {
		shadow := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		xdraw.DrawMask(shadow, shadow.Bounds(), image.NewUniform(withAlpha(color.NRGBA{A: 255}, shadowAlpha)), image.Point{}, glyphs, bounds.Min, xdraw.Src)
		blurred := blur.Gaussian(shadow, shadowBlur)
		at := bounds.Add(image.Pt(shadowOffset, shadowOffset))
		xdraw.DrawMask(layer, at, blurred, blurred.Bounds().Min, textAlpha, image.Point{}, xdraw.Over)
	}
	xdraw.DrawMask(layer, bounds, glyphs, bounds.Min, textAlpha, image.Point{}, xdraw.Over)

	if rec.TextRotationDegrees == 0 {
		xdraw.Draw(dst, bounds, layer, bounds.Min, xdraw.Over)
		return
	}
	cx, cy := b.center()
	xdraw.BiLinear.Transform(dst, rotation(rec.TextRotationDegrees, cx, cy), layer, bounds, xdraw.Over, nil)
}

// rotation returns the affine transform turning degrees clockwise about (cx, cy).
func rotation(degrees, cx, cy float64) f64.Aff3 {
	rad := degrees * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	return f64.Aff3{
		cos, -sin, cx - cos*cx + sin*cy,
		sin, cos, cy - sin*cx - cos*cy,
	}
}
