// Package template stores reusable styling presets.
package template

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/tstromberg/imgecho/pkg/layout"
	"github.com/tstromberg/imgecho/pkg/meta"
	"github.com/tstromberg/imgecho/pkg/store"
)

// StoreKey is the key user templates are persisted under.
const StoreKey = "imgecho_templates"

var (
	// ErrNotFound is returned for unknown template ids.
	ErrNotFound = errors.New("template not found")
	// ErrBuiltIn is returned when changing a built-in template.
	ErrBuiltIn = errors.New("built-in templates are read-only")
)

// Template is a named styling preset.
type Template struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	BuiltIn     bool      `json:"isBuiltIn"`
	Settings    Settings  `json:"settings"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (t Template) clone() Template {
	t.Settings = t.Settings.Clone()
	return t
}

func builtIns() []Template {
	preset := func(id, name, desc, family, weight string, size float64, pos layout.Anchor, mode meta.DisplayMode, blur float64) Template {
		return Template{
			ID:          "preset-" + id,
			Name:        name,
			Description: desc,
			BuiltIn:     true,
			Settings: Settings{
				FontFamily:      ptr(family),
				FontWeight:      ptr(weight),
				FontSizePercent: ptr(Number(size)),
				FontPosition:    ptr(pos),
				DisplayMode:     ptr(mode),
				BlurValuePx:     ptr(Number(blur)),
			},
		}
	}
	return []Template{
		preset("photography", "Photography portfolio", "White text in the bottom left, for showing off photos",
			"Arial, sans-serif", "normal", 3.0, layout.BottomLeft, meta.DisplayFull, 5),
		preset("instagram", "Instagram", "Large centered text along the bottom, for social media",
			"Helvetica, sans-serif", "bold", 4.0, layout.BottomCenter, meta.DisplaySimple, 6),
		preset("product", "Product shot", "Camera details in the bottom right, for product photos",
			"'Segoe UI', sans-serif", "600", 2.5, layout.BottomRight, meta.DisplayCameraOnly, 4),
		preset("minimal", "Minimal", "Small text in the bottom right",
			"Georgia, serif", "300", 2.0, layout.BottomRight, meta.DisplaySimple, 3),
	}
}

// EventKind identifies an Event.
type EventKind int

const (
	Created EventKind = iota
	Updated
	Deleted
	Applied
)

// Event is delivered to listeners after a change.
type Event struct {
	Kind     EventKind
	Template Template
}

// Manager holds the built-in and user templates.
type Manager struct {
	mu        sync.Mutex
	templates []Template
	current   string
	store     store.Store
	now       func() time.Time
	listeners []func(Event)
}

// NewManager returns a manager holding the built-in templates. st may be
// nil, in which case user templates are not persisted.
func NewManager(st store.Store) *Manager {
	return &Manager{templates: builtIns(), store: st, now: time.Now}
}

// OnEvent registers a listener.
func (m *Manager) OnEvent(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Manager) emit(e Event) {
	m.mu.Lock()
	ls := append([]func(Event){}, m.listeners...)
	m.mu.Unlock()
	for _, fn := range ls {
		fn(e)
	}
}

// Load appends the persisted user templates to the built-ins.
func (m *Manager) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	var user []Template
	err := m.store.Load(ctx, StoreKey, &user)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	m.mu.Lock()
	m.templates = builtIns()
	for _, t := range user {
		t.BuiltIn = false
		m.templates = append(m.templates, t)
	}
	m.mu.Unlock()
	klog.V(1).Infof("loaded %d user templates", len(user))
	return nil
}

// persist saves the user templates. Failures are logged, not returned.
func (m *Manager) persist(ctx context.Context) {
	if m.store == nil {
		return
	}
	user := m.User()
	if err := m.store.Save(ctx, StoreKey, user); err != nil {
		klog.Warningf("saving %d templates failed: %v", len(user), err)
	}
}

func (m *Manager) filter(keep func(Template) bool) []Template {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Template{}
	for _, t := range m.templates {
		if keep(t) {
			out = append(out, t.clone())
		}
	}
	return out
}

// All returns every template, built-ins first.
func (m *Manager) All() []Template {
	return m.filter(func(Template) bool { return true })
}

// User returns the user templates.
func (m *Manager) User() []Template {
	return m.filter(func(t Template) bool { return !t.BuiltIn })
}

// BuiltIn returns the built-in templates.
func (m *Manager) BuiltIn() []Template {
	return m.filter(func(t Template) bool { return t.BuiltIn })
}

// index returns the position of id. m.mu must be held.
func (m *Manager) index(id string) int {
	for i, t := range m.templates {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Get returns the template with id.
func (m *Manager) Get(id string) (Template, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return Template{}, false
	}
	return m.templates[i].clone(), true
}

// Create adds a user template.
func (m *Manager) Create(ctx context.Context, name, description string, s Settings) Template {
	t := Template{
		ID:          "user-" + uuid.NewString(),
		Name:        name,
		Description: description,
		Settings:    s.Clone(),
		CreatedAt:   m.now(),
	}
	m.mu.Lock()
	m.templates = append(m.templates, t)
	m.mu.Unlock()

	m.persist(ctx)
	klog.V(1).Infof("created template %q", name)
	m.emit(Event{Kind: Created, Template: t.clone()})
	return t.clone()
}

// Changes are the fields Update replaces. Empty strings and nil settings
// are left alone.
type Changes struct {
	Name        string
	Description string
	Settings    *Settings
}

// Update changes a user template.
func (m *Manager) Update(ctx context.Context, id string, c Changes) error {
	m.mu.Lock()
	i := m.index(id)
	if i < 0 {
		m.mu.Unlock()
		return fmt.Errorf("update %q: %w", id, ErrNotFound)
	}
	if m.templates[i].BuiltIn {
		m.mu.Unlock()
		return fmt.Errorf("update %q: %w", id, ErrBuiltIn)
	}
	t := &m.templates[i]
	if c.Name != "" {
		t.Name = c.Name
	}
	if c.Description != "" {
		t.Description = c.Description
	}
	if c.Settings != nil {
		t.Settings = c.Settings.Clone()
	}
	updated := t.clone()
	m.mu.Unlock()

	m.persist(ctx)
	m.emit(Event{Kind: Updated, Template: updated})
	return nil
}

// Delete removes a user template.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	i := m.index(id)
	if i < 0 {
		m.mu.Unlock()
		return fmt.Errorf("delete %q: %w", id, ErrNotFound)
	}
	if m.templates[i].BuiltIn {
		m.mu.Unlock()
		return fmt.Errorf("delete %q: %w", id, ErrBuiltIn)
	}
	t := m.templates[i]
	m.templates = append(m.templates[:i:i], m.templates[i+1:]...)
	if m.current == id {
		m.current = ""
	}
	m.mu.Unlock()

	m.persist(ctx)
	m.emit(Event{Kind: Deleted, Template: t})
	return nil
}

// Apply marks id as the current template and returns its settings.
func (m *Manager) Apply(id string) (Settings, bool) {
	m.mu.Lock()
	i := m.index(id)
	if i < 0 {
		m.mu.Unlock()
		return Settings{}, false
	}
	m.current = id
	t := m.templates[i].clone()
	m.mu.Unlock()

	klog.V(1).Infof("applied template %q", t.Name)
	m.emit(Event{Kind: Applied, Template: t})
	return t.Settings.Clone(), true
}

// CurrentID returns the id of the last applied template.
func (m *Manager) CurrentID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// ClearCurrent forgets the applied template.
func (m *Manager) ClearCurrent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = ""
}

// Export returns id as indented JSON. The copy is a user template with a
// fresh id, so importing it never collides with the original.
func (m *Manager) Export(id string) ([]byte, error) {
	t, ok := m.Get(id)
	if !ok {
		return nil, fmt.Errorf("export %q: %w", id, ErrNotFound)
	}
	t.BuiltIn = false
	t.ID = "user-" + uuid.NewString()
	return json.MarshalIndent(t, "", "  ")
}

// ExportUser returns every user template as an indented JSON array.
func (m *Manager) ExportUser() ([]byte, error) {
	return json.MarshalIndent(m.User(), "", "  ")
}

type importable struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Settings    *Settings `json:"settings"`
}

// Import creates user templates from a JSON object or array. Entries
// without a name or settings are skipped.
func (m *Manager) Import(ctx context.Context, data []byte) ([]Template, error) {
	var many []importable
	if err := json.Unmarshal(data, &many); err != nil {
		var one importable
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, fmt.Errorf("import: %w", err)
		}
		many = []importable{one}
	}

	out := []Template{}
	for _, in := range many {
		if in.Name == "" || in.Settings == nil {
			klog.Warningf("skipping template without name or settings: %+v", in)
			continue
		}
		out = append(out, m.Create(ctx, in.Name, in.Description, *in.Settings))
	}
	return out, nil
}
