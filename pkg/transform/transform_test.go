package transform

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type holder struct {
	working, pristine image.Image
}

func (h *holder) Working() image.Image     { return h.working }
func (h *holder) Pristine() image.Image    { return h.pristine }
func (h *holder) SetWorking(i image.Image) { h.working = i }

type drop struct{ enabled []bool }

func (d *drop) SetClickEnabled(b bool) { d.enabled = append(d.enabled, b) }

var (
	red  = color.RGBA{255, 0, 0, 255}
	blue = color.RGBA{0, 0, 255, 255}
)

// halves returns a w×h image, red on the left half and blue on the right.
func halves(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := red
			if x >= w/2 {
				c = blue
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func newMachine(w, h int) (*Machine, *holder, *drop) {
	img := halves(w, h)
	hd := &holder{working: img, pristine: img}
	d := &drop{}
	return New(hd, d), hd, d
}

func TestConstrain(t *testing.T) {
	tests := []struct {
		name string
		in   CropBox
		want CropBox
	}{
		{"overflowing", CropBox{-50, 10, 1100, 200}, CropBox{0, 10, 1000, 200}},
		{"tiny", CropBox{10, 10, 5, 5}, CropBox{10, 10, 50, 50}},
		{"past bottom right", CropBox{990, 790, 100, 100}, CropBox{900, 700, 100, 100}},
		{"inside", CropBox{100, 100, 200, 200}, CropBox{100, 100, 200, 200}},
		{"narrow at corner", CropBox{990, 780, 30, 30}, CropBox{950, 750, 50, 50}},
		{"thin and offscreen", CropBox{-10, -10, 20, 2000}, CropBox{0, 0, 50, 800}},
		{"tiny past bottom right", CropBox{1200, 900, 1, 1}, CropBox{950, 750, 50, 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Constrain(1000, 800)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got.X, 0.0)
			assert.GreaterOrEqual(t, got.Y, 0.0)
			assert.LessOrEqual(t, got.X+got.Width, 1000.0)
			assert.LessOrEqual(t, got.Y+got.Height, 800.0)
			assert.GreaterOrEqual(t, got.Width, MinCropSize)
			assert.GreaterOrEqual(t, got.Height, MinCropSize)
		})
	}
}

func TestFitAspect(t *testing.T) {
	b := FitAspect(1000, 800, 16.0/9)
	assert.InDelta(t, 840, b.Width, 1e-9)
	assert.InDelta(t, 472.5, b.Height, 1e-9)
	assert.InDelta(t, 80, b.X, 1e-9)
	assert.InDelta(t, 163.75, b.Y, 1e-9)

	tall := FitAspect(1000, 800, 9.0/16)
	assert.InDelta(t, 640, tall.Height, 1e-9)
	assert.InDelta(t, 360, tall.Width, 1e-9)
	assert.InDelta(t, 500, tall.X+tall.Width/2, 1e-9)
}

func TestHandleAt(t *testing.T) {
	b := CropBox{100, 100, 400, 300}
	assert.Equal(t, NW, b.HandleAt(105, 95))
	assert.Equal(t, SE, b.HandleAt(500, 400))
	assert.Equal(t, N, b.HandleAt(300, 108))
	assert.Equal(t, W, b.HandleAt(92, 250))
	assert.Equal(t, NoHandle, b.HandleAt(300, 250))
	assert.Equal(t, NoHandle, b.HandleAt(0, 0))
}

func TestResize(t *testing.T) {
	b := CropBox{100, 100, 400, 300}
	tests := []struct {
		name  string
		h     Handle
		x, y  float64
		ratio float64
		want  CropBox
	}{
		{"se", SE, 600, 500, 0, CropBox{100, 100, 500, 400}},
		{"nw", NW, 200, 150, 0, CropBox{200, 150, 300, 250}},
		{"e", E, 300, 999, 0, CropBox{100, 100, 200, 300}},
		{"s", S, 999, 200, 0, CropBox{100, 100, 400, 100}},
		{"w past right edge keeps minimum", W, 900, 0, 0, CropBox{450, 100, 50, 300}},
		{"se locked", SE, 600, 999, 2, CropBox{100, 100, 500, 250}},
		{"nw locked keeps bottom", NW, 200, 150, 2, CropBox{200, 250, 300, 150}},
		{"ne locked keeps bottom", NE, 300, 0, 1, CropBox{100, 200, 200, 200}},
		{"s locked drives width", S, 0, 500, 2, CropBox{100, 100, 800, 400}},
		{"n locked drives width", N, 0, 200, 1, CropBox{100, 200, 200, 200}},
		{"e locked keeps minimum height", E, 180, 0, 2, CropBox{100, 100, 100, 50}},
		{"w locked keeps right edge", W, 420, 0, 2, CropBox{400, 100, 100, 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Resize(tt.h, tt.x, tt.y, tt.ratio))
		})
	}
}

func TestCropModeRequiresImage(t *testing.T) {
	m := New(&holder{}, nil)
	assert.False(t, m.EnterCropMode())
	assert.False(t, m.ApplyCrop())
	assert.False(t, m.Rotate(90))
	assert.False(t, m.SetRotation(45))
	assert.False(t, m.Flip(Horizontal))
	assert.False(t, m.Confirm())
	assert.False(t, m.Reset())
	assert.Nil(t, m.Preview())
	m.ExitCropMode()
	assert.Equal(t, Idle, m.Mode())
}

func TestEnterAndExitCropMode(t *testing.T) {
	m, _, d := newMachine(1000, 800)
	require.True(t, m.EnterCropMode())

	box, ok := m.CropBox()
	require.True(t, ok)
	assert.Equal(t, CropBox{80, 80, 840, 640}, box)
	assert.Equal(t, CropIdle, m.Mode())

	m.ExitCropMode()
	_, ok = m.CropBox()
	assert.False(t, ok)
	assert.Equal(t, []bool{false, true}, d.enabled)
}

func TestPointerInteraction(t *testing.T) {
	m, _, _ := newMachine(1000, 800)
	require.True(t, m.EnterCropMode())

	// Handles win over the inside test.
	assert.Equal(t, Resizing, m.PointerDown(82, 82))
	m.PointerMove(200, 180)
	m.PointerUp()
	box, _ := m.CropBox()
	assert.Equal(t, CropBox{200, 180, 720, 540}, box)

	assert.Equal(t, Dragging, m.PointerDown(500, 400))
	m.PointerMove(520, 410)
	box, _ = m.CropBox()
	assert.Equal(t, CropBox{220, 190, 720, 540}, box)

	m.PointerMove(5000, 5000)
	box, _ = m.CropBox()
	assert.Equal(t, CropBox{280, 260, 720, 540}, box)
	m.PointerUp()
	assert.Equal(t, CropIdle, m.Mode())

	assert.Equal(t, CropIdle, m.PointerDown(5, 5))

	// Resizing past the canvas stops at its edge without moving the box.
	assert.Equal(t, Resizing, m.PointerDown(1000, 800))
	m.PointerMove(5000, 5000)
	m.PointerUp()
	box, _ = m.CropBox()
	assert.Equal(t, CropBox{280, 260, 720, 540}, box)

	assert.Equal(t, Resizing, m.PointerDown(280, 260))
	m.PointerMove(-500, -500)
	m.PointerUp()
	box, _ = m.CropBox()
	assert.Equal(t, CropBox{0, 0, 1000, 800}, box)
}

func TestSetAspectRatio(t *testing.T) {
	m, _, _ := newMachine(1000, 800)
	require.True(t, m.EnterCropMode())

	m.SetAspectRatio(16.0 / 9)
	box, _ := m.CropBox()
	assert.InDelta(t, 16.0/9, box.Width/box.Height, 1e-9)
	assert.InDelta(t, 500, box.X+box.Width/2, 1e-9)
	assert.InDelta(t, 400, box.Y+box.Height/2, 1e-9)

	// Locked resizes keep the ratio.
	m.PointerDown(box.X+box.Width, box.Y+box.Height)
	m.PointerMove(box.X+box.Width-100, box.Y+box.Height)
	m.PointerUp()
	box, _ = m.CropBox()
	assert.InDelta(t, 16.0/9, box.Width/box.Height, 1e-9)

	m.SetAspectRatio(0)
	box, _ = m.CropBox()
	assert.Equal(t, CropBox{80, 80, 840, 640}, box)
}

func TestApplyCrop(t *testing.T) {
	m, hd, d := newMachine(200, 100)
	var events []Event
	m.OnEvent(func(e Event) { events = append(events, e) })

	require.True(t, m.EnterCropMode())
	require.True(t, m.SetCropBox(CropBox{X: 50, Y: 20, Width: 100, Height: 60}))
	require.True(t, m.ApplyCrop())

	got := hd.working.(*image.RGBA)
	assert.Equal(t, image.Rect(0, 0, 100, 60), got.Bounds())
	assert.Equal(t, red, got.RGBAAt(10, 10))
	assert.Equal(t, blue, got.RGBAAt(90, 10))
	assert.Equal(t, Idle, m.Mode())
	assert.Equal(t, []Event{CropApplied}, events)
	assert.Equal(t, []bool{false, true}, d.enabled)

	// The pristine image survives.
	assert.Equal(t, image.Rect(0, 0, 200, 100), hd.pristine.Bounds())
}

func TestRotatePreviewBounds(t *testing.T) {
	m, hd, _ := newMachine(100, 50)

	require.True(t, m.Rotate(90))
	w, h := m.PreviewSize()
	assert.InDelta(t, 50, w, 1e-9)
	assert.InDelta(t, 100, h, 1e-9)

	p := m.Preview()
	assert.Equal(t, image.Rect(0, 0, 50, 100), p.Bounds())
	assert.Equal(t, image.Rect(0, 0, 100, 50), hd.working.Bounds(), "preview must not touch the base")

	require.True(t, m.SetRotation(45))
	w, h = m.PreviewSize()
	assert.InDelta(t, 106.066, w, 1e-3)
	assert.InDelta(t, 106.066, h, 1e-3)

	require.True(t, m.Rotate(-45))
	require.True(t, m.Rotate(360))
	assert.True(t, m.State().IsIdentity())
}

func TestConfirmBakesPreview(t *testing.T) {
	m, hd, _ := newMachine(100, 50)
	require.True(t, m.Rotate(90))
	require.True(t, m.Confirm())

	got := hd.working.(*image.RGBA)
	assert.Equal(t, image.Rect(0, 0, 50, 100), got.Bounds())
	// Clockwise: the left half ends up on top.
	assert.Equal(t, red, got.RGBAAt(25, 25))
	assert.Equal(t, blue, got.RGBAAt(25, 75))
	assert.Equal(t, State{}, m.State())
}

func TestFlipAndCancel(t *testing.T) {
	m, hd, _ := newMachine(100, 50)
	require.True(t, m.Flip(Horizontal))
	assert.True(t, m.State().FlipHorizontal)

	p := m.Preview().(*image.RGBA)
	assert.Equal(t, blue, p.RGBAAt(25, 25))

	m.Cancel()
	assert.Equal(t, State{}, m.State())
	assert.Equal(t, red, hd.working.(*image.RGBA).RGBAAt(25, 25))

	require.True(t, m.Flip(Vertical))
	require.True(t, m.Flip(Vertical))
	assert.True(t, m.State().IsIdentity())
}

func TestResetRestoresPristine(t *testing.T) {
	m, hd, _ := newMachine(100, 50)
	require.True(t, m.Rotate(90))
	require.True(t, m.Confirm())
	require.True(t, m.Rotate(90))

	require.True(t, m.Reset())
	assert.Same(t, hd.pristine, hd.working)
	assert.Equal(t, State{}, m.State())
}

func TestOverlay(t *testing.T) {
	m, hd, _ := newMachine(200, 200)
	dst := image.NewRGBA(image.Rect(0, 0, 200, 200))
	m.Overlay(dst)
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(5, 5), "no overlay outside crop mode")

	require.True(t, m.EnterCropMode())
	copy(dst.Pix, hd.working.(*image.RGBA).Pix)
	m.Overlay(dst)

	// Outside the box is dimmed, the center is untouched.
	dim := dst.RGBAAt(5, 100)
	assert.InDelta(t, 128, float64(dim.R), 2)
	assert.Equal(t, uint8(255), dim.A)
	assert.Equal(t, red, dst.RGBAAt(60, 100))
	// The border sits on the box edge.
	assert.Equal(t, color.RGBA{0x42, 0x99, 0xe1, 255}, dst.RGBAAt(50, 21))
}

func TestRatioNames(t *testing.T) {
	names := RatioNames()
	require.Len(t, names, len(Ratios))
	assert.Equal(t, "16:9", names[0])
	assert.Equal(t, "9:16", names[len(names)-1])
}
