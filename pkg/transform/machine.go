package transform

import (
	"image"
	"math"
	"sync"

	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/transform"
	"k8s.io/klog/v2"

	"github.com/tstromberg/imgecho/pkg/layout"
)

// ImageHolder owns the working and pristine images the machine edits.
type ImageHolder interface {
	// Working is the current base image, or nil.
	Working() image.Image
	// Pristine is the first decode of the photo, or nil.
	Pristine() image.Image
	SetWorking(image.Image)
}

// DropTarget is the upload surface; crop mode suspends its click handling.
type DropTarget interface {
	SetClickEnabled(bool)
}

// Mode is the interaction state.
type Mode int

const (
	Idle Mode = iota
	CropIdle
	Dragging
	Resizing
)

func (m Mode) String() string {
	switch m {
	case CropIdle:
		return "crop"
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	}
	return "idle"
}

// Event is emitted after the working image or pending transform changes.
type Event int

const (
	CropApplied Event = iota
	TransformChanged
	TransformConfirmed
	TransformCancelled
	TransformReset
)

// Axis selects a flip direction.
type Axis int

const (
	Horizontal Axis = iota
	Vertical
)

// Machine is the crop/rotate/flip state machine.
type Machine struct {
	mu        sync.Mutex
	holder    ImageHolder
	drop      DropTarget
	mode      Mode
	box       CropBox
	handle    Handle
	grabX     float64
	grabY     float64
	ratio     float64
	state     State
	listeners []func(Event)
}

// New returns an idle machine. drop may be nil.
func New(holder ImageHolder, drop DropTarget) *Machine {
	return &Machine{holder: holder, drop: drop}
}

// OnEvent registers a listener.
func (m *Machine) OnEvent(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Machine) emit(e Event) {
	m.mu.Lock()
	ls := append([]func(Event){}, m.listeners...)
	m.mu.Unlock()
	for _, fn := range ls {
		fn(e)
	}
}

func size(img image.Image) (float64, float64) {
	b := img.Bounds()
	return float64(b.Dx()), float64(b.Dy())
}

// Mode returns the interaction state.
func (m *Machine) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// CropBox returns the crop box and whether crop mode is active.
func (m *Machine) CropBox() (CropBox, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.box, m.mode != Idle
}

// SetCropBox replaces the crop box, clamped to the canvas.
func (m *Machine) SetCropBox(b CropBox) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	img := m.holder.Working()
	if m.mode == Idle || img == nil {
		return false
	}
	w, h := size(img)
	m.box = b.Constrain(w, h)
	return true
}

// State returns the pending transform.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetState replaces the pending transform, as when restoring history.
func (m *Machine) SetState(s State) {
	m.mu.Lock()
	s.RotationDegrees = math.Mod(s.RotationDegrees, 360)
	m.state = s
	m.mu.Unlock()
	m.emit(TransformChanged)
}

// EnterCropMode starts cropping with the default box. It fails without a working image.
func (m *Machine) EnterCropMode() bool {
	m.mu.Lock()
	img := m.holder.Working()
	if img == nil {
		m.mu.Unlock()
		return false
	}
	w, h := size(img)
	m.mode = CropIdle
	m.box = DefaultCropBox(w, h)
	m.handle = NoHandle
	box := m.box
	m.mu.Unlock()

	if m.drop != nil {
		m.drop.SetClickEnabled(false)
	}
	klog.V(1).Infof("crop mode: %+v", box)
	return true
}

// ExitCropMode leaves crop mode. It is always legal.
func (m *Machine) ExitCropMode() {
	m.mu.Lock()
	m.mode = Idle
	m.box = CropBox{}
	m.handle = NoHandle
	m.ratio = 0
	m.mu.Unlock()

	if m.drop != nil {
		m.drop.SetClickEnabled(true)
	}
}

// PointerDown starts a resize when a handle is hit, otherwise a drag when
// the point is inside the box. It returns the new mode.
func (m *Machine) PointerDown(x, y float64) Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode == Idle {
		return Idle
	}

	if h := m.box.HandleAt(x, y); h != NoHandle {
		m.mode, m.handle = Resizing, h
		return m.mode
	}
	if m.box.Contains(x, y) {
		m.mode = Dragging
		m.grabX, m.grabY = x-m.box.X, y-m.box.Y
	}
	return m.mode
}

// PointerMove drags or resizes the box.
func (m *Machine) PointerMove(x, y float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	img := m.holder.Working()
	if img == nil {
		return
	}
	w, h := size(img)

	switch m.mode {
	case Dragging:
		m.box.X, m.box.Y = x-m.grabX, y-m.grabY
	case Resizing:
		x, y = math.Max(0, math.Min(x, w)), math.Max(0, math.Min(y, h))
		m.box = m.box.Resize(m.handle, x, y, m.ratio)
	default:
		return
	}
	m.box = m.box.Constrain(w, h)
}

// PointerUp ends a drag or resize.
func (m *Machine) PointerUp() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode == Dragging || m.mode == Resizing {
		m.mode = CropIdle
		m.handle = NoHandle
	}
}

// SetAspectRatio locks the box to width/height = ratio and re-fits it;
// zero unlocks and restores the default box.
func (m *Machine) SetAspectRatio(ratio float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ratio = math.Max(0, ratio)
	img := m.holder.Working()
	if m.mode == Idle || img == nil {
		return
	}
	w, h := size(img)
	if m.ratio > 0 {
		m.box = FitAspect(w, h, m.ratio)
	} else {
		m.box = DefaultCropBox(w, h)
	}
	m.box = m.box.Constrain(w, h)
}

// ConstrainCropBox clamps the box into the canvas.
func (m *Machine) ConstrainCropBox() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if img := m.holder.Working(); img != nil && m.mode != Idle {
		w, h := size(img)
		m.box = m.box.Constrain(w, h)
	}
}

// ApplyCrop replaces the working image with the region under the box and
// leaves crop mode.
func (m *Machine) ApplyCrop() bool {
	m.mu.Lock()
	img := m.holder.Working()
	if m.mode == Idle || img == nil {
		m.mu.Unlock()
		return false
	}
	b := img.Bounds()
	r := image.Rect(
		int(math.Round(m.box.X)), int(math.Round(m.box.Y)),
		int(math.Round(m.box.X+m.box.Width)), int(math.Round(m.box.Y+m.box.Height)),
	).Add(b.Min).Intersect(b)
	m.mu.Unlock()

	cropped := transform.Crop(img, r)
	cropped.Rect = cropped.Rect.Sub(cropped.Rect.Min)
	m.holder.SetWorking(cropped)
	klog.V(1).Infof("cropped to %v", cropped.Bounds())

	m.ExitCropMode()
	m.emit(CropApplied)
	return true
}

// Rotate adds degrees to the pending rotation.
func (m *Machine) Rotate(degrees float64) bool {
	return m.update(func(s *State) { s.RotationDegrees = math.Mod(s.RotationDegrees+degrees, 360) })
}

// SetRotation sets the pending rotation.
func (m *Machine) SetRotation(degrees float64) bool {
	return m.update(func(s *State) { s.RotationDegrees = math.Mod(degrees, 360) })
}

// Flip toggles a pending flip.
func (m *Machine) Flip(a Axis) bool {
	return m.update(func(s *State) {
		if a == Horizontal {
			s.FlipHorizontal = !s.FlipHorizontal
		} else {
			s.FlipVertical = !s.FlipVertical
		}
	})
}

func (m *Machine) update(fn func(*State)) bool {
	m.mu.Lock()
	if m.holder.Working() == nil {
		m.mu.Unlock()
		return false
	}
	fn(&m.state)
	m.mu.Unlock()
	m.emit(TransformChanged)
	return true
}

// PreviewSize returns the preview canvas size for the pending rotation.
func (m *Machine) PreviewSize() (float64, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img := m.holder.Working()
	if img == nil {
		return 0, 0
	}
	w, h := size(img)
	return layout.RotatedBounds(w, h, m.state.RotationDegrees)
}

// Preview returns the working image with the pending transform applied:
// rotated clockwise onto a canvas large enough to hold it, then flipped.
// The working image is not modified.
func (m *Machine) Preview() image.Image {
	m.mu.Lock()
	img, s := m.holder.Working(), m.state
	m.mu.Unlock()
	if img == nil {
		return nil
	}
	return Apply(img, s)
}

// Apply renders s onto a copy of img.
func Apply(img image.Image, s State) *image.RGBA {
	out := clone.AsRGBA(img)
	out.Rect = out.Rect.Sub(out.Rect.Min)
	if math.Mod(s.RotationDegrees, 360) != 0 {
		out = transform.Rotate(out, s.RotationDegrees, &transform.RotationOptions{ResizeBounds: true})
	}
	if s.FlipHorizontal {
		out = transform.FlipH(out)
	}
	if s.FlipVertical {
		out = transform.FlipV(out)
	}
	return out
}

// Confirm bakes the pending transform into the working image.
func (m *Machine) Confirm() bool {
	preview := m.Preview()
	if preview == nil {
		return false
	}
	m.mu.Lock()
	m.state = State{}
	m.mu.Unlock()

	m.holder.SetWorking(preview)
	m.emit(TransformConfirmed)
	return true
}

// Cancel drops the pending transform, keeping previously confirmed ones.
func (m *Machine) Cancel() {
	m.mu.Lock()
	m.state = State{}
	m.mu.Unlock()
	m.emit(TransformCancelled)
}

// Reset restores the pristine image and drops every transform.
func (m *Machine) Reset() bool {
	pristine := m.holder.Pristine()
	if pristine == nil {
		return false
	}
	m.mu.Lock()
	m.state = State{}
	m.mu.Unlock()

	m.holder.SetWorking(pristine)
	m.emit(TransformReset)
	return true
}
