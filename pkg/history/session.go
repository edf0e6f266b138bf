package history

import (
	"context"
	"errors"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/tstromberg/imgecho/pkg/store"
)

// StoreKey is the key the session is persisted under.
const StoreKey = "history_session"

type session struct {
	Undo []Snapshot `json:"undo"`
	Redo []Snapshot `json:"redo"`
}

// Save persists both stacks.
func (e *Engine) Save(ctx context.Context, st store.Store) error {
	e.mu.Lock()
	s := session{
		Undo: append([]Snapshot{}, e.undo...),
		Redo: append([]Snapshot{}, e.redo...),
	}
	e.mu.Unlock()

	if err := st.Save(ctx, StoreKey, s); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	klog.V(1).Infof("saved history: %d undo, %d redo", len(s.Undo), len(s.Redo))
	return nil
}

// Load replaces both stacks with the persisted session. A missing session
// leaves the history empty.
func (e *Engine) Load(ctx context.Context, st store.Store) error {
	var s session
	err := st.Load(ctx, StoreKey, &s)
	if errors.Is(err, store.ErrNotFound) {
		s = session{}
	} else if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	if over := len(s.Undo) - e.capacity; over > 0 {
		s.Undo = s.Undo[over:]
	}

	e.debounce.Stop()
	e.mu.Lock()
	e.undo, e.redo = s.Undo, s.Redo
	ev := e.status()
	e.mu.Unlock()
	e.emit(ev)
	return nil
}
