// Package history keeps bounded undo/redo stacks of edit snapshots.
package history

import (
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/tstromberg/imgecho/pkg/meta"
)

const (
	// DefaultCapacity is the number of undo entries kept.
	DefaultCapacity = 50
	// DefaultDebounce is the quiet period before a debounced snapshot is taken.
	DefaultDebounce = 500 * time.Millisecond
	// RestoreGuard is how long snapshots are suppressed after a restore.
	RestoreGuard = 100 * time.Millisecond
)

// EventKind identifies an Event.
type EventKind int

const (
	SnapshotSaved EventKind = iota
	SnapshotRestored
	StateChanged
)

// Event is delivered to listeners after the stacks change.
type Event struct {
	Kind EventKind
	// Snapshot is set for SnapshotSaved and SnapshotRestored.
	Snapshot Snapshot
	CanUndo  bool
	CanRedo  bool
	Total    int
}

// DescribeFunc labels a change. prev is nil for the first snapshot.
type DescribeFunc func(prev *State, next State) string

// Options configure an Engine. Zero values select defaults.
type Options struct {
	Capacity    int
	Debounce    time.Duration
	Thumbnailer Thumbnailer
	Labeler     meta.Labeler
	// Now is the clock used for timestamps and the restore guard.
	Now func() time.Time
}

// Engine is the undo/redo history.
type Engine struct {
	mu         sync.Mutex
	undo       []Snapshot
	redo       []Snapshot
	capacity   int
	guardUntil time.Time
	now        func() time.Time
	thumbs     Thumbnailer
	labeler    meta.Labeler
	debounce   *Debouncer
	surface    func() image.Image
	listeners  []func(Event)
}

// New returns an empty history.
func New(o Options) *Engine {
	e := &Engine{
		capacity: o.Capacity,
		now:      o.Now,
		thumbs:   o.Thumbnailer,
		labeler:  o.Labeler,
	}
	if e.capacity <= 0 {
		e.capacity = DefaultCapacity
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.thumbs == nil {
		e.thumbs = NewJPEGThumbnailer()
	}
	if e.labeler == nil {
		e.labeler = meta.English
	}
	d := o.Debounce
	if d <= 0 {
		d = DefaultDebounce
	}
	e.debounce = NewDebouncer(d)
	return e
}

// OnEvent registers a listener.
func (e *Engine) OnEvent(fn func(Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

func (e *Engine) emit(evs ...Event) {
	e.mu.Lock()
	ls := append([]func(Event){}, e.listeners...)
	e.mu.Unlock()
	for _, ev := range evs {
		for _, fn := range ls {
			fn(ev)
		}
	}
}

// status returns a StateChanged event. e.mu must be held.
func (e *Engine) status() Event {
	return Event{Kind: StateChanged, CanUndo: len(e.undo) > 1, CanRedo: len(e.redo) > 0, Total: len(e.undo)}
}

// SetSurfaceSource sets where debounced snapshots without a surface get
// their thumbnail from. fn is called when the snapshot is taken.
func (e *Engine) SetSurfaceSource(fn func() image.Image) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.surface = fn
}

// Describe labels the change from prev to next with meta.DescribeChange.
func (e *Engine) Describe(prev *State, next State) string {
	if prev == nil {
		return meta.DescribeChange(nil, next.Record, e.labeler)
	}
	return meta.DescribeChange(&prev.Record, next.Record, e.labeler)
}

// Restoring reports whether a restore happened within RestoreGuard.
func (e *Engine) Restoring() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now().Before(e.guardUntil)
}

// SaveSnapshot pushes state and clears the redo stack. surface may be nil,
// in which case the snapshot has no thumbnail. It does nothing while a
// restore is settling.
func (e *Engine) SaveSnapshot(state State, kind Kind, label string, surface image.Image) (Snapshot, bool) {
	if e.Restoring() {
		klog.V(2).Infof("skipping %s snapshot during restore", kind)
		return Snapshot{}, false
	}

	s := Snapshot{
		ID:    uuid.NewString(),
		Kind:  kind,
		Label: label,
		State: state,
	}
	if surface != nil {
		th, err := e.thumbs.Thumbnail(surface)
		if err != nil {
			klog.Warningf("snapshot thumbnail: %v", err)
		}
		s.Thumbnail = th
	}

	e.mu.Lock()
	s.Timestamp = e.now()
	e.undo = append(e.undo, s)
	if over := len(e.undo) - e.capacity; over > 0 {
		e.undo = append([]Snapshot{}, e.undo[over:]...)
	}
	e.redo = nil
	st := e.status()
	e.mu.Unlock()

	klog.V(1).Infof("snapshot %q (%s), %d entries", s.Label, s.Kind, st.Total)
	e.emit(Event{Kind: SnapshotSaved, Snapshot: s}, st)
	return s, true
}

// DebouncedSnapshot saves a snapshot once calls stop arriving for the
// debounce period; only the last call of a burst is recorded. When describe
// is nil and label is empty, the label is computed with Describe. A nil
// surface is read from the surface source when the snapshot is taken.
func (e *Engine) DebouncedSnapshot(state State, kind Kind, label string, surface image.Image, describe DescribeFunc) {
	if describe == nil && label == "" {
		describe = e.Describe
	}
	e.debounce.Call(func() {
		l := label
		if describe != nil {
			var prev *State
			if top, ok := e.Current(); ok {
				prev = &top.State
			}
			l = describe(prev, state)
		}
		img := surface
		e.mu.Lock()
		src := e.surface
		e.mu.Unlock()
		if img == nil && src != nil {
			img = src()
		}
		e.SaveSnapshot(state, kind, l, img)
	})
}

// Flush takes the pending debounced snapshot now.
func (e *Engine) Flush() bool {
	return e.debounce.Flush()
}

// restored sets the guard and broadcasts s. e.mu must be held; it is released.
func (e *Engine) restored(s Snapshot) {
	e.guardUntil = e.now().Add(RestoreGuard)
	st := e.status()
	e.mu.Unlock()

	klog.V(1).Infof("restoring %q", s.Label)
	e.emit(Event{Kind: SnapshotRestored, Snapshot: s}, st)
}

// Undo restores the entry below the top. The oldest entry is never undone.
func (e *Engine) Undo() (Snapshot, bool) {
	e.debounce.Stop()
	e.mu.Lock()
	if len(e.undo) <= 1 {
		e.mu.Unlock()
		return Snapshot{}, false
	}
	top := e.undo[len(e.undo)-1]
	e.undo = e.undo[:len(e.undo)-1]
	e.redo = append(e.redo, top)
	s := e.undo[len(e.undo)-1]
	e.restored(s)
	return s, true
}

// Redo restores the most recently undone entry.
func (e *Engine) Redo() (Snapshot, bool) {
	e.debounce.Stop()
	e.mu.Lock()
	if len(e.redo) == 0 {
		e.mu.Unlock()
		return Snapshot{}, false
	}
	s := e.redo[len(e.redo)-1]
	e.redo = e.redo[:len(e.redo)-1]
	e.undo = append(e.undo, s)
	e.restored(s)
	return s, true
}

// JumpTo makes the undo entry with id the top, moving everything after it
// onto the redo stack.
func (e *Engine) JumpTo(id string) (Snapshot, bool) {
	e.debounce.Stop()
	e.mu.Lock()
	idx := -1
	for i, s := range e.undo {
		if s.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.mu.Unlock()
		return Snapshot{}, false
	}
	for i := len(e.undo) - 1; i > idx; i-- {
		e.redo = append(e.redo, e.undo[i])
	}
	e.undo = e.undo[:idx+1]
	s := e.undo[idx]
	e.restored(s)
	return s, true
}

// Clear empties both stacks and drops any pending snapshot.
func (e *Engine) Clear() {
	e.debounce.Stop()
	e.mu.Lock()
	e.undo, e.redo = nil, nil
	st := e.status()
	e.mu.Unlock()
	e.emit(st)
}

// CanUndo reports whether Undo would succeed.
func (e *Engine) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.undo) > 1
}

// CanRedo reports whether Redo would succeed.
func (e *Engine) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.redo) > 0
}

// Snapshots returns the undo stack, newest first.
func (e *Engine) Snapshots() []Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Snapshot, 0, len(e.undo))
	for i := len(e.undo) - 1; i >= 0; i-- {
		out = append(out, e.undo[i])
	}
	return out
}

// Current returns the top of the undo stack.
func (e *Engine) Current() (Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.undo) == 0 {
		return Snapshot{}, false
	}
	return e.undo[len(e.undo)-1], true
}
