// Package layout computes where overlays land on a canvas.
//
// Everything here is a pure function of its arguments: the same inputs always
// produce the same coordinates, which keeps live previews, history thumbnails
// and exports pixel-identical.
package layout

import (
	"math"
	"strings"
)

// Anchor names a placement position for the text block or a logo.
type Anchor string

const (
	TopLeft      Anchor = "top-left"
	TopRight     Anchor = "top-right"
	BottomLeft   Anchor = "bottom-left"
	BottomCenter Anchor = "bottom-center"
	BottomRight  Anchor = "bottom-right"
	Center       Anchor = "center"
)

// Anchors lists the text anchors in display order.
var Anchors = []Anchor{TopLeft, TopRight, BottomLeft, BottomCenter, BottomRight, Center}

// Align is the horizontal text alignment relative to the draw origin.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Baseline is the vertical reference of the draw origin for each line.
type Baseline int

const (
	BaselineTop Baseline = iota
	BaselineBottom
)

// MaskPadding is the border added around the text block by the background mask.
const MaskPadding = 10.0

// Size is a canvas size in pixels.
type Size struct {
	W float64
	H float64
}

// Rect is an axis-aligned rectangle in canvas pixels.
type Rect struct {
	X, Y, W, H float64
}

// Valid reports whether a is one of the known anchors.
func (a Anchor) Valid() bool {
	for _, k := range Anchors {
		if k == a {
			return true
		}
	}
	return false
}

func (a Anchor) isRight() bool  { return strings.Contains(string(a), "right") }
func (a Anchor) isBottom() bool { return strings.Contains(string(a), "bottom") }

// Margin returns the text margin for a font size.
func Margin(fontSizePx float64) float64 {
	return math.Max(25, fontSizePx*1.2)
}

// FontSize returns the font size in pixels, relative to the image's own height.
func FontSize(canvasH, percent float64) float64 {
	return math.Max(12, canvasH*percent/100)
}

// TextPosition returns the draw origin for a text block of the given size.
// Unknown anchors are treated as top-left.
func TextPosition(a Anchor, margin, blockW, blockH float64, canvas Size) (x, y float64) {
	switch a {
	case TopRight:
		return canvas.W - margin - blockW, margin
	case BottomLeft:
		return margin, canvas.H - margin - blockH
	case BottomCenter:
		return (canvas.W - blockW) / 2, canvas.H - margin - blockH
	case BottomRight:
		return canvas.W - margin - blockW, canvas.H - margin - blockH
	case Center:
		return (canvas.W - blockW) / 2, (canvas.H - blockH) / 2
	default:
		return margin, margin
	}
}

// AlignmentFor derives the text alignment from an anchor.
func AlignmentFor(a Anchor) Align {
	switch {
	case a == Center || a == BottomCenter:
		return AlignCenter
	case a.isRight():
		return AlignRight
	default:
		return AlignLeft
	}
}

// BaselineFor derives the text baseline from an anchor.
func BaselineFor(a Anchor) Baseline {
	if a.isBottom() {
		return BaselineBottom
	}
	return BaselineTop
}

// MaskRect returns the background mask rectangle for a text block drawn from
// origin (x, y). The alignment and baseline offsets applied while drawing are
// undone before padding.
func MaskRect(x, y, blockW, blockH float64, align Align, baseline Baseline, lineHeight float64) Rect {
	switch align {
	case AlignCenter:
		x -= blockW / 2
	case AlignRight:
		x -= blockW
	}
	if baseline == BaselineBottom {
		y -= lineHeight
	}
	return Rect{
		X: x - MaskPadding,
		Y: y - MaskPadding,
		W: blockW + MaskPadding*2,
		H: blockH + MaskPadding*2,
	}
}

// LineStart returns the left edge of a line of width lineW drawn at x with the given alignment.
func LineStart(x, lineW float64, align Align) float64 {
	switch align {
	case AlignCenter:
		return x - lineW/2
	case AlignRight:
		return x - lineW
	default:
		return x
	}
}

// LogoMargin returns the inset used for single logos.
func LogoMargin(canvasW float64) float64 {
	return math.Max(20, canvasW*0.02)
}

// LogoPosition places a logo of size (w, h) at one of the four corners or the center.
// Unknown anchors, including bottom-center, fall back to bottom-right.
func LogoPosition(a Anchor, w, h float64, canvas Size) (x, y float64) {
	m := LogoMargin(canvas.W)
	switch a {
	case TopLeft:
		return m, m
	case TopRight:
		return canvas.W - w - m, m
	case BottomLeft:
		return m, canvas.H - h - m
	case Center:
		return (canvas.W - w) / 2, (canvas.H - h) / 2
	default:
		return canvas.W - w - m, canvas.H - h - m
	}
}

// RotatedBounds returns the bounding box of a w×h rectangle rotated by degrees.
func RotatedBounds(w, h, degrees float64) (float64, float64) {
	rad := degrees * math.Pi / 180
	sin := math.Abs(math.Sin(rad))
	cos := math.Abs(math.Cos(rad))
	return w*cos + h*sin, w*sin + h*cos
}

// FitMode selects how a source is scaled into a destination.
type FitMode string

const (
	FitCover   FitMode = "cover"
	FitContain FitMode = "contain"
	FitFill    FitMode = "fill"
)

// FitRect returns where a src-sized image lands inside a dst-sized area.
// Cover fills and may overflow, contain letterboxes, fill stretches.
func FitRect(src, dst Size, mode FitMode) Rect {
	if src.W <= 0 || src.H <= 0 {
		return Rect{W: dst.W, H: dst.H}
	}
	var scale float64
	switch mode {
	case FitCover:
		scale = math.Max(dst.W/src.W, dst.H/src.H)
	case FitContain:
		scale = math.Min(dst.W/src.W, dst.H/src.H)
	default:
		return Rect{W: dst.W, H: dst.H}
	}
	w := src.W * scale
	h := src.H * scale
	return Rect{X: (dst.W - w) / 2, Y: (dst.H - h) / 2, W: w, H: h}
}
