package logo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/tstromberg/imgecho/pkg/store"
)

// StoreKey is where the library persists its logos.
const StoreKey = "imgecho_logos"

// Persistence keeps the newest logos, retrying with fewer when the store refuses.
var persistLimits = []int{10, 5}

// EventKind describes a library change.
type EventKind int

const (
	Uploaded EventKind = iota
	Deleted
	Changed
)

// Event is delivered to listeners after the library changes. Logo is the new
// current logo for Changed, and nil when it was cleared.
type Event struct {
	Kind EventKind
	ID   string
	Logo *Logo
}

// Library holds uploaded logos, newest first, and the current selection.
type Library struct {
	mu        sync.Mutex
	logos     []*Logo
	current   *Logo
	store     store.Store
	listeners []func(Event)
	now       func() time.Time
}

// NewLibrary returns an empty library persisted to st, which may be nil.
func NewLibrary(st store.Store) *Library {
	return &Library{store: st, now: time.Now}
}

// OnEvent registers a listener.
func (l *Library) OnEvent(fn func(Event)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

func (l *Library) emit(e Event) {
	l.mu.Lock()
	ls := append([]func(Event){}, l.listeners...)
	l.mu.Unlock()
	for _, fn := range ls {
		fn(e)
	}
}

// Load replaces the library contents with what the store holds.
func (l *Library) Load(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	var logos []*Logo
	err := l.store.Load(ctx, StoreKey, &logos)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load logos: %w", err)
	}

	l.mu.Lock()
	l.logos = logos
	l.mu.Unlock()
	klog.V(1).Infof("loaded %d logos", len(logos))
	return nil
}

func (l *Library) persist(ctx context.Context) {
	if l.store == nil {
		return
	}
	l.mu.Lock()
	all := append([]*Logo{}, l.logos...)
	l.mu.Unlock()

	var err error
	for _, n := range persistLimits {
		keep := all
		if len(keep) > n {
			keep = keep[:n]
		}
		if err = l.store.Save(ctx, StoreKey, keep); err == nil {
			return
		}
		klog.Warningf("saving %d logos failed: %v", len(keep), err)
	}
	klog.Errorf("logos not persisted: %v", err)
}

// Add validates and stores a new logo at the front of the library.
func (l *Library) Add(ctx context.Context, name, mime string, data []byte) (*Logo, error) {
	mime = strings.ToLower(mime)
	if err := Validate(mime, len(data)); err != nil {
		return nil, err
	}
	w, h, err := dimensions(mime, data)
	if err != nil {
		return nil, fmt.Errorf("add logo: %w", err)
	}
	if name == "" {
		name = "logo"
	}

	lg := &Logo{
		ID:        "logo-" + uuid.NewString(),
		Name:      name,
		DataURL:   DataURL(mime, data),
		Width:     w,
		Height:    h,
		CreatedAt: l.now(),
	}

	l.mu.Lock()
	l.logos = append([]*Logo{lg}, l.logos...)
	l.mu.Unlock()

	l.persist(ctx)
	l.emit(Event{Kind: Uploaded, ID: lg.ID, Logo: lg})
	return lg, nil
}

// Delete removes a logo, clearing the selection if it was current.
func (l *Library) Delete(ctx context.Context, id string) bool {
	l.mu.Lock()
	idx := -1
	for i, lg := range l.logos {
		if lg.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return false
	}
	l.logos = append(l.logos[:idx], l.logos[idx+1:]...)
	cleared := l.current != nil && l.current.ID == id
	if cleared {
		l.current = nil
	}
	l.mu.Unlock()

	l.persist(ctx)
	l.emit(Event{Kind: Deleted, ID: id})
	if cleared {
		l.emit(Event{Kind: Changed})
	}
	return true
}

// List returns the logos, newest first.
func (l *Library) List() []*Logo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Logo{}, l.logos...)
}

// Get returns a logo by id, or nil.
func (l *Library) Get(id string) *Logo {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, lg := range l.logos {
		if lg.ID == id {
			return lg
		}
	}
	return nil
}

// SetCurrent selects a logo. An empty id clears the selection; unknown ids
// leave it unchanged and return nil.
func (l *Library) SetCurrent(id string) *Logo {
	if id == "" {
		l.ClearCurrent()
		return nil
	}
	lg := l.Get(id)
	if lg == nil {
		return nil
	}
	l.mu.Lock()
	l.current = lg
	l.mu.Unlock()
	l.emit(Event{Kind: Changed, ID: id, Logo: lg})
	return lg
}

// ClearCurrent deselects the current logo.
func (l *Library) ClearCurrent() {
	l.mu.Lock()
	l.current = nil
	l.mu.Unlock()
	l.emit(Event{Kind: Changed})
}

// Current returns the selected logo, or nil.
func (l *Library) Current() *Logo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}
