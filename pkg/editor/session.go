// Package editor ties the queue, history, transforms and compositors into
// one editing session.
package editor

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/tstromberg/imgecho/pkg/batch"
	"github.com/tstromberg/imgecho/pkg/history"
	"github.com/tstromberg/imgecho/pkg/logo"
	"github.com/tstromberg/imgecho/pkg/meta"
	"github.com/tstromberg/imgecho/pkg/render"
	"github.com/tstromberg/imgecho/pkg/template"
	"github.com/tstromberg/imgecho/pkg/transform"
)

// DefaultRefreshDelay is the quiet period before a scheduled refresh runs.
const DefaultRefreshDelay = 50 * time.Millisecond

// ErrNoImage is returned when there is no current image to work on.
var ErrNoImage = errors.New("no image loaded")

// EventKind identifies an Event.
type EventKind int

const (
	// Refreshed is sent after the preview canvas is redrawn.
	Refreshed EventKind = iota
	// RecordChanged is sent when the record is replaced wholesale, as on
	// selection, restore or template application.
	RecordChanged
	// Emptied is sent when the last image leaves the queue.
	Emptied
)

// Event is delivered to listeners without the session lock held.
type Event struct {
	Kind   EventKind
	Canvas *image.RGBA
	Record meta.Record
}

// Options configure a Session. Nil components are created with defaults;
// Logos and Templates may stay nil to disable those features.
type Options struct {
	Renderer  *render.Renderer
	Queue     *batch.Queue
	History   *history.Engine
	Logos     *logo.Library
	Templates *template.Manager
	Drop      transform.DropTarget
	// Base is the styling used before any image is loaded.
	Base         meta.Record
	RefreshDelay time.Duration
}

// Session is the state behind one editor window.
type Session struct {
	mu        sync.Mutex
	record    meta.Record
	canvas    *image.RGBA
	applying  bool
	listeners []func(Event)

	renderer  *render.Renderer
	queue     *batch.Queue
	hist      *history.Engine
	logos     *logo.Library
	templates *template.Manager
	machine   *transform.Machine
	refresh   *history.Debouncer
}

// New wires a session together.
func New(o Options) (*Session, error) {
	s := &Session{
		record:    o.Base,
		renderer:  o.Renderer,
		queue:     o.Queue,
		hist:      o.History,
		logos:     o.Logos,
		templates: o.Templates,
	}
	if s.record == (meta.Record{}) {
		s.record = meta.DefaultRecord()
	}
	if s.renderer == nil {
		fm, err := render.NewFontManager("")
		if err != nil {
			return nil, fmt.Errorf("fonts: %w", err)
		}
		s.renderer = render.New(fm, nil)
	}
	if s.queue == nil {
		s.queue = batch.NewQueue(nil)
	}
	if s.hist == nil {
		s.hist = history.New(history.Options{})
	}
	d := o.RefreshDelay
	if d <= 0 {
		d = DefaultRefreshDelay
	}
	s.refresh = history.NewDebouncer(d)
	s.machine = transform.New(currentItem{s.queue}, o.Drop)
	s.hist.SetSurfaceSource(s.surface)

	s.queue.OnEvent(s.onQueue)
	s.hist.OnEvent(s.onHistory)
	s.machine.OnEvent(s.onTransform)
	if s.logos != nil {
		s.logos.OnEvent(s.onLogo)
	}
	return s, nil
}

// currentItem exposes the queue's current item to the transform machine.
type currentItem struct{ q *batch.Queue }

func (c currentItem) Working() image.Image {
	if it, _ := c.q.Current(); it != nil {
		return it.Working()
	}
	return nil
}

func (c currentItem) Pristine() image.Image {
	if it, _ := c.q.Current(); it != nil {
		return it.Pristine()
	}
	return nil
}

func (c currentItem) SetWorking(img image.Image) {
	if it, _ := c.q.Current(); it != nil {
		it.SetWorking(img)
	}
}

// OnEvent registers a listener.
func (s *Session) OnEvent(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Session) emit(e Event) {
	s.mu.Lock()
	ls := append([]func(Event){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range ls {
		fn(e)
	}
}

// Queue returns the image queue.
func (s *Session) Queue() *batch.Queue { return s.queue }

// History returns the undo/redo history.
func (s *Session) History() *history.Engine { return s.hist }

// Transform returns the crop/rotate/flip machine.
func (s *Session) Transform() *transform.Machine { return s.machine }

// Logos returns the logo library, which may be nil.
func (s *Session) Logos() *logo.Library { return s.logos }

// Templates returns the template manager, which may be nil.
func (s *Session) Templates() *template.Manager { return s.templates }

// Record returns the record being edited.
func (s *Session) Record() meta.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record
}

// Canvas returns the last rendered preview, or nil.
func (s *Session) Canvas() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canvas
}

// surface returns the canvas as an image.Image, nil when there is none.
func (s *Session) surface() image.Image {
	if c := s.Canvas(); c != nil {
		return c
	}
	return nil
}

func (s *Session) state() history.State {
	s.mu.Lock()
	rec := s.record
	s.mu.Unlock()
	return history.State{Record: rec, Transform: s.machine.State()}
}

func (s *Session) isApplying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applying
}

// replace swaps in rec and re-syncs the transform machine and logo
// selection without recording history.
func (s *Session) replace(rec meta.Record, ts transform.State) {
	s.mu.Lock()
	s.record = rec
	s.applying = true
	s.mu.Unlock()

	s.machine.SetState(ts)
	if s.logos != nil {
		if rec.LogoID == "" || s.logos.SetCurrent(rec.LogoID) == nil {
			s.logos.ClearCurrent()
		}
	}

	s.mu.Lock()
	s.applying = false
	s.mu.Unlock()
	s.emit(Event{Kind: RecordChanged, Record: rec})
}

// Update edits the record. The change is recorded in history once edits
// stop arriving, labelled with what changed.
func (s *Session) Update(kind history.Kind, fn func(*meta.Record)) {
	s.mu.Lock()
	fn(&s.record)
	s.mu.Unlock()

	s.hist.DebouncedSnapshot(s.state(), kind, "", nil, nil)
	s.ScheduleRefresh()
}

// snapshotNow redraws and records the current state immediately.
func (s *Session) snapshotNow(kind history.Kind, label string) {
	s.hist.Flush()
	if _, err := s.Refresh(); err != nil && !errors.Is(err, ErrNoImage) {
		klog.Warningf("refresh before %s snapshot: %v", kind, err)
	}
	s.hist.SaveSnapshot(s.state(), kind, label, s.surface())
}

// ApplyTemplate applies a template's styling to the record.
func (s *Session) ApplyTemplate(id string) bool {
	if s.templates == nil {
		return false
	}
	t, ok := s.templates.Get(id)
	if !ok {
		return false
	}
	settings, _ := s.templates.Apply(id)

	s.mu.Lock()
	s.record = settings.Apply(s.record)
	rec := s.record
	s.mu.Unlock()

	s.emit(Event{Kind: RecordChanged, Record: rec})
	s.snapshotNow(history.KindTemplate, "Template: "+t.Name)
	return true
}

// SelectLogo makes id the overlay logo. An empty id removes the logo.
func (s *Session) SelectLogo(id string) bool {
	if s.logos == nil {
		return false
	}
	if id == "" {
		s.logos.ClearCurrent()
		return true
	}
	return s.logos.SetCurrent(id) != nil
}

// ApplyToAll makes the current record the shared settings of every queued image.
func (s *Session) ApplyToAll() int {
	rec := s.Record()
	s.queue.ApplySharedSettings(rec)
	n := s.queue.Len()
	s.snapshotNow(history.KindBatch, fmt.Sprintf("Applied to %d images", n))
	return n
}

// ResetToImageMetadata drops the current image's override and reloads its EXIF.
func (s *Session) ResetToImageMetadata() bool {
	_, i := s.queue.Current()
	return s.queue.ResetOverride(i)
}

func (s *Session) logoFor(rec meta.Record) *logo.Logo {
	if s.logos == nil || rec.LogoID == "" {
		return nil
	}
	return s.logos.Get(rec.LogoID)
}

// Refresh redraws the preview canvas from the current image, pending
// transform, record and logo, plus the crop UI in crop mode.
func (s *Session) Refresh() (*image.RGBA, error) {
	base := s.machine.Preview()
	if base == nil {
		return nil, ErrNoImage
	}
	rec := s.Record()
	canvas, err := s.renderer.RenderImage(base, rec, s.logoFor(rec))
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	s.machine.Overlay(canvas)

	s.mu.Lock()
	s.canvas = canvas
	s.mu.Unlock()
	s.emit(Event{Kind: Refreshed, Canvas: canvas, Record: rec})
	return canvas, nil
}

// ScheduleRefresh refreshes once calls stop arriving for the refresh delay.
func (s *Session) ScheduleRefresh() {
	s.refresh.Call(func() {
		if _, err := s.Refresh(); err != nil && !errors.Is(err, ErrNoImage) {
			klog.Errorf("refresh: %v", err)
		}
	})
}

// Flush runs any pending refresh and snapshot now.
func (s *Session) Flush() {
	s.refresh.Flush()
	s.hist.Flush()
}

// Close flushes pending history and stops the refresh timer.
func (s *Session) Close() {
	s.hist.Flush()
	s.refresh.Stop()
}

// EnterCrop starts crop mode.
func (s *Session) EnterCrop() bool {
	ok := s.machine.EnterCropMode()
	if ok {
		s.ScheduleRefresh()
	}
	return ok
}

// ExitCrop leaves crop mode without cropping.
func (s *Session) ExitCrop() {
	s.machine.ExitCropMode()
	s.ScheduleRefresh()
}

func (s *Session) PointerDown(x, y float64) transform.Mode {
	m := s.machine.PointerDown(x, y)
	s.ScheduleRefresh()
	return m
}

func (s *Session) PointerMove(x, y float64) {
	s.machine.PointerMove(x, y)
	s.ScheduleRefresh()
}

func (s *Session) PointerUp() {
	s.machine.PointerUp()
	s.ScheduleRefresh()
}

func transformLabel(ts transform.State) string {
	var parts []string
	if ts.RotationDegrees != 0 {
		parts = append(parts, fmt.Sprintf("Rotate %g°", ts.RotationDegrees))
	}
	if ts.FlipHorizontal {
		parts = append(parts, "Flip horizontal")
	}
	if ts.FlipVertical {
		parts = append(parts, "Flip vertical")
	}
	if len(parts) == 0 {
		return "Clear transform"
	}
	return strings.Join(parts, ", ")
}

func (s *Session) onTransform(e transform.Event) {
	if s.isApplying() {
		return
	}
	switch e {
	case transform.CropApplied:
		s.snapshotNow(history.KindCrop, "Crop")
	case transform.TransformConfirmed:
		s.snapshotNow(history.KindTransform, "Apply transform")
	case transform.TransformReset:
		s.snapshotNow(history.KindTransform, "Reset image")
	case transform.TransformChanged:
		st := s.state()
		s.hist.DebouncedSnapshot(st, history.KindTransform, transformLabel(st.Transform), nil, nil)
		s.ScheduleRefresh()
	default:
		s.ScheduleRefresh()
	}
}

func (s *Session) onHistory(e history.Event) {
	if e.Kind != history.SnapshotRestored {
		return
	}
	s.replace(e.Snapshot.State.Record, e.Snapshot.State.Transform)
	s.ScheduleRefresh()
}

func (s *Session) onLogo(e logo.Event) {
	if e.Kind != logo.Changed && e.Kind != logo.Deleted {
		return
	}
	if s.isApplying() {
		return
	}

	s.mu.Lock()
	prev := s.record.LogoID
	switch e.Kind {
	case logo.Changed:
		s.record.LogoID = e.ID
	case logo.Deleted:
		if s.record.LogoID == e.ID {
			s.record.LogoID = ""
		}
	}
	changed := prev != s.record.LogoID
	s.mu.Unlock()

	if !changed {
		return
	}
	label := "Remove logo"
	if e.Logo != nil {
		label = "Logo: " + e.Logo.Name
	}
	s.snapshotNow(history.KindLogo, label)
}

// load makes rec the record for a newly selected image with a fresh history.
func (s *Session) load(it *batch.Item, rec meta.Record) {
	s.machine.ExitCropMode()
	s.replace(rec, transform.State{})
	s.hist.Clear()
	s.refresh.Stop()
	s.snapshotNow(history.KindInitial, "Opened "+it.Name)
}

func (s *Session) onQueue(e batch.Event) {
	switch e.Kind {
	case batch.BeforeChange:
		s.hist.Flush()
		if e.OldIndex >= 0 {
			s.queue.SaveCurrentOverride(s.Record())
		}
	case batch.Selected:
		rec, layer := s.queue.Resolve(e.Item, s.Record())
		klog.V(1).Infof("editing %s (layer %d)", e.Item.Name, layer)
		s.load(e.Item, rec)
	case batch.ExifLoaded:
		if !e.Current {
			return
		}
		// Overrides and shared settings outrank EXIF, so only a record
		// still drawing from EXIF picks up the camera fields.
		if _, layer := s.queue.Resolve(e.Item, s.Record()); layer != batch.LayerExif {
			return
		}
		ex, _ := e.Item.Exif()
		s.mu.Lock()
		rec := s.record.WithCamera(ex)
		same := rec == s.record
		s.record = rec
		s.mu.Unlock()
		if same {
			return
		}
		s.emit(Event{Kind: RecordChanged, Record: rec})
		s.hist.DebouncedSnapshot(s.state(), history.KindMetadata, "Metadata loaded", nil, nil)
		s.ScheduleRefresh()
	case batch.Reset:
		rec, _ := s.queue.Resolve(e.Item, s.Record())
		s.mu.Lock()
		s.record = rec
		s.mu.Unlock()
		s.emit(Event{Kind: RecordChanged, Record: rec})
		s.snapshotNow(history.KindMetadata, "Reset to image metadata")
	case batch.Removed, batch.Cleared:
		if s.queue.Len() > 0 {
			return
		}
		s.refresh.Stop()
		s.machine.ExitCropMode()
		s.hist.Clear()
		s.mu.Lock()
		s.canvas = nil
		s.mu.Unlock()
		s.emit(Event{Kind: Emptied})
	}
}
