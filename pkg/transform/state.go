// Package transform implements interactive crop, rotate and flip of the
// working image.
package transform

import (
	"math"
	"sort"
)

// MinCropSize is the smallest crop box side, in image pixels.
const MinCropSize = 50.0

// HandleRadius is the hit radius of resize handles.
const HandleRadius = 10.0

// State is a pending, uncommitted rotate/flip.
type State struct {
	RotationDegrees float64 `json:"rotation"`
	FlipHorizontal  bool    `json:"flipHorizontal"`
	FlipVertical    bool    `json:"flipVertical"`
}

// IsIdentity reports whether s leaves the image unchanged.
func (s State) IsIdentity() bool {
	return math.Mod(s.RotationDegrees, 360) == 0 && !s.FlipHorizontal && !s.FlipVertical
}

// CropBox is the crop rectangle in image pixels.
type CropBox struct {
	X, Y, Width, Height float64
}

// Contains reports whether (x, y) is inside or on the edge of b.
func (b CropBox) Contains(x, y float64) bool {
	return x >= b.X && x <= b.X+b.Width && y >= b.Y && y <= b.Y+b.Height
}

// Constrain clamps b into a canvas of w×h, keeping each side at least
// MinCropSize. Sizes are settled before positions so the box never pokes out.
func (b CropBox) Constrain(w, h float64) CropBox {
	b.Width = math.Min(math.Max(b.Width, MinCropSize), w)
	b.Height = math.Min(math.Max(b.Height, MinCropSize), h)
	b.X = math.Max(0, math.Min(b.X, w-b.Width))
	b.Y = math.Max(0, math.Min(b.Y, h-b.Height))
	return b
}

// DefaultCropBox is the canvas inset by 10% of its shorter side.
func DefaultCropBox(w, h float64) CropBox {
	m := math.Min(w, h) * 0.1
	return CropBox{X: m, Y: m, Width: w - 2*m, Height: h - 2*m}
}

// FitAspect returns the largest centered box of the given width/height ratio
// inside the 10%-inset canvas.
func FitAspect(w, h, ratio float64) CropBox {
	d := DefaultCropBox(w, h)
	nw, nh := d.Width, d.Width/ratio
	if d.Width/d.Height > ratio {
		nw, nh = d.Height*ratio, d.Height
	}
	return CropBox{X: (w - nw) / 2, Y: (h - nh) / 2, Width: nw, Height: nh}
}

// Handle names a resize handle by compass direction.
type Handle string

const (
	NoHandle Handle = ""
	NW       Handle = "nw"
	N        Handle = "n"
	NE       Handle = "ne"
	E        Handle = "e"
	SE       Handle = "se"
	S        Handle = "s"
	SW       Handle = "sw"
	W        Handle = "w"
)

// HandlePoint is a handle and its position.
type HandlePoint struct {
	Handle Handle
	X, Y   float64
}

// Handles returns the eight handles of b in hit-test order.
func (b CropBox) Handles() []HandlePoint {
	r, bt := b.X+b.Width, b.Y+b.Height
	cx, cy := b.X+b.Width/2, b.Y+b.Height/2
	return []HandlePoint{
		{NW, b.X, b.Y},
		{N, cx, b.Y},
		{NE, r, b.Y},
		{E, r, cy},
		{SE, r, bt},
		{S, cx, bt},
		{SW, b.X, bt},
		{W, b.X, cy},
	}
}

// HandleAt returns the first handle within HandleRadius of (x, y).
func (b CropBox) HandleAt(x, y float64) Handle {
	for _, h := range b.Handles() {
		if math.Hypot(x-h.X, y-h.Y) <= HandleRadius {
			return h.Handle
		}
	}
	return NoHandle
}

// Resize moves the edges belonging to h so they track (x, y). With a
// positive ratio the height follows the width, except for the n and s
// handles where the width follows the height. Edges opposite the handle stay
// in place.
func (b CropBox) Resize(h Handle, x, y, ratio float64) CropBox {
	right, bottom := b.X+b.Width, b.Y+b.Height

	switch h {
	case NW:
		b.X, b.Y = math.Min(x, right-MinCropSize), math.Min(y, bottom-MinCropSize)
		b.Width, b.Height = right-b.X, bottom-b.Y
	case N:
		b.Y = math.Min(y, bottom-MinCropSize)
		b.Height = bottom - b.Y
	case NE:
		b.Y = math.Min(y, bottom-MinCropSize)
		b.Width, b.Height = math.Max(MinCropSize, x-b.X), bottom-b.Y
	case E:
		b.Width = math.Max(MinCropSize, x-b.X)
	case SE:
		b.Width, b.Height = math.Max(MinCropSize, x-b.X), math.Max(MinCropSize, y-b.Y)
	case S:
		b.Height = math.Max(MinCropSize, y-b.Y)
	case SW:
		b.X = math.Min(x, right-MinCropSize)
		b.Width, b.Height = right-b.X, math.Max(MinCropSize, y-b.Y)
	case W:
		b.X = math.Min(x, right-MinCropSize)
		b.Width = right - b.X
	default:
		return b
	}

	if ratio > 0 {
		if h == N || h == S {
			b.Width = b.Height * ratio
		} else {
			b.Height = b.Width / ratio
		}
		if b.Width < MinCropSize {
			b.Width, b.Height = MinCropSize, MinCropSize/ratio
		}
		if b.Height < MinCropSize {
			b.Width, b.Height = MinCropSize*ratio, MinCropSize
		}
		if h == NW || h == W || h == SW {
			b.X = right - b.Width
		}
		if h == NW || h == N || h == NE {
			b.Y = bottom - b.Height
		}
	}
	return b
}

// Ratios are the preset aspect ratios offered for cropping, keyed by label.
var Ratios = map[string]float64{
	"1:1":  1,
	"4:3":  4.0 / 3,
	"3:2":  3.0 / 2,
	"16:9": 16.0 / 9,
	"3:4":  3.0 / 4,
	"9:16": 9.0 / 16,
}

// RatioNames returns the preset labels in a stable order.
func RatioNames() []string {
	names := make([]string, 0, len(Ratios))
	for k := range Ratios {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool { return Ratios[names[i]] > Ratios[names[j]] })
	return names
}
