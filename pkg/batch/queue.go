// Package batch coordinates a queue of photos that share one editor.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"k8s.io/klog/v2"

	"github.com/tstromberg/imgecho/pkg/exif"
	"github.com/tstromberg/imgecho/pkg/meta"
)

// MaxItems is the queue ceiling.
const MaxItems = 100

// ErrQueueFull is reported by AddResult.Err when the ceiling truncated a request.
var ErrQueueFull = errors.New("queue is full")

// EventKind identifies an Event.
type EventKind int

const (
	ItemsAdded EventKind = iota
	// BeforeChange is sent while the outgoing item is still current.
	BeforeChange
	Selected
	ExifLoaded
	// Reset is sent when the current item's override is cleared.
	Reset
	Removed
	Cleared
	SharedApplied
)

// Event is delivered to listeners without the queue lock held.
type Event struct {
	Kind     EventKind
	Index    int
	OldIndex int
	Item     *Item
	// Current is set on ExifLoaded when the item is the selected one.
	Current bool
	// Added and Notice are set on ItemsAdded.
	Added  []*Item
	Notice string
}

// Failure is a source that could not be added.
type Failure struct {
	Name string
	Err  error
}

// AddResult reports what Add did.
type AddResult struct {
	Added  []*Item
	Failed []Failure
	// Notice is set when the ceiling truncated the request.
	Notice string
}

// Err returns an error wrapping ErrQueueFull if the request was truncated.
func (r AddResult) Err() error {
	if r.Notice == "" {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrQueueFull, r.Notice)
}

// Layer names where a resolved record came from.
type Layer int

const (
	LayerEmpty Layer = iota
	LayerExif
	LayerShared
	LayerOverride
)

// Queue is an ordered list of items with one current item.
type Queue struct {
	mu        sync.Mutex
	items     []*Item
	current   int
	shared    *meta.Record
	extractor exif.Extractor
	max       int
	wg        sync.WaitGroup
	listeners []func(Event)
}

// NewQueue returns an empty queue. A nil extractor uses goexif.
func NewQueue(ex exif.Extractor) *Queue {
	if ex == nil {
		ex = exif.NewGoExif()
	}
	return &Queue{current: -1, extractor: ex, max: MaxItems}
}

// OnEvent registers a listener.
func (q *Queue) OnEvent(fn func(Event)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.listeners = append(q.listeners, fn)
}

func (q *Queue) emit(e Event) {
	q.mu.Lock()
	ls := append([]func(Event){}, q.listeners...)
	q.mu.Unlock()
	for _, fn := range ls {
		fn(e)
	}
}

// Add decodes sources and appends them. Sources past the ceiling are
// dropped with a notice, and undecodable sources are reported in Failed;
// neither is an error. Metadata loads in the background: see Wait.
// The first add selects the first item.
func (q *Queue) Add(ctx context.Context, sources []Source) (AddResult, error) {
	var res AddResult

	q.mu.Lock()
	room := q.max - len(q.items)
	q.mu.Unlock()

	if len(sources) > room {
		res.Notice = fmt.Sprintf("the queue holds at most %d images: added %d of %d", q.max, max(room, 0), len(sources))
		klog.Warning(res.Notice)
		sources = sources[:max(room, 0)]
	}

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		it, data, err := newSourceItem(src)
		if err != nil {
			klog.Errorf("skipping %s: %v", src.name(), err)
			res.Failed = append(res.Failed, Failure{Name: src.name(), Err: err})
			continue
		}

		q.mu.Lock()
		q.items = append(q.items, it)
		q.mu.Unlock()
		res.Added = append(res.Added, it)

		q.wg.Add(1)
		go q.loadExif(context.WithoutCancel(ctx), it, exif.Source{Path: src.Path, Data: data})
	}

	klog.Infof("added %d images (%d failed)", len(res.Added), len(res.Failed))
	q.emit(Event{Kind: ItemsAdded, Added: res.Added, Notice: res.Notice})

	q.mu.Lock()
	first := q.current < 0 && len(q.items) > 0
	q.mu.Unlock()
	if first {
		q.Select(0)
	}
	return res, nil
}

func newSourceItem(src Source) (*Item, []byte, error) {
	data, err := src.bytes()
	if err != nil {
		return nil, nil, err
	}
	img, err := Decode(data)
	if err != nil {
		return nil, nil, err
	}

	it := NewItem(src.name(), src.Path, img)
	it.Thumbnail, it.Blurhash, err = thumbnail(img)
	if err != nil {
		klog.Warningf("thumbnail for %s: %v", it.Name, err)
	}
	return it, data, nil
}

func (q *Queue) loadExif(ctx context.Context, it *Item, src exif.Source) {
	defer q.wg.Done()
	rec := q.extractor.Extract(ctx, src)

	q.mu.Lock()
	idx := q.indexOf(it)
	if idx < 0 {
		q.mu.Unlock()
		klog.V(2).Infof("%s was removed before its metadata loaded", it.Name)
		return
	}
	it.setExif(rec)
	current := idx == q.current
	q.mu.Unlock()

	klog.V(1).Infof("metadata loaded for %s: %+v", it.Name, rec)
	q.emit(Event{Kind: ExifLoaded, Index: idx, Item: it, Current: current})
}

// indexOf returns the position of it. q.mu must be held.
func (q *Queue) indexOf(it *Item) int {
	for i, x := range q.items {
		if x == it {
			return i
		}
	}
	return -1
}

// Wait blocks until every pending metadata load has finished.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Len returns the number of items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Items returns the items in order.
func (q *Queue) Items() []*Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*Item{}, q.items...)
}

// Current returns the selected item and its index, or nil and -1.
func (q *Queue) Current() (*Item, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current < 0 {
		return nil, -1
	}
	return q.items[q.current], q.current
}

// Select makes item i current. Listeners see BeforeChange while the old
// item is still current, then Selected.
func (q *Queue) Select(i int) bool {
	q.mu.Lock()
	if i < 0 || i >= len(q.items) {
		q.mu.Unlock()
		return false
	}
	old := q.current
	q.mu.Unlock()
	if old == i {
		return true
	}

	q.emit(Event{Kind: BeforeChange, OldIndex: old, Index: i})

	q.mu.Lock()
	if i >= len(q.items) {
		q.mu.Unlock()
		return false
	}
	q.current = i
	it := q.items[i]
	q.mu.Unlock()

	klog.V(1).Infof("selected %d: %s", i, it.Name)
	q.emit(Event{Kind: Selected, Index: i, OldIndex: old, Item: it})
	return true
}

// SaveCurrentOverride stores rec as the current item's override.
func (q *Queue) SaveCurrentOverride(rec meta.Record) bool {
	it, _ := q.Current()
	if it == nil {
		return false
	}
	it.setOverride(&rec)
	return true
}

// ResetOverride clears item i's override.
func (q *Queue) ResetOverride(i int) bool {
	q.mu.Lock()
	if i < 0 || i >= len(q.items) {
		q.mu.Unlock()
		return false
	}
	it := q.items[i]
	current := i == q.current
	q.mu.Unlock()

	it.setOverride(nil)
	if current {
		q.emit(Event{Kind: Reset, Index: i, Item: it})
	}
	return true
}

// Remove deletes item i. Removing the current item selects its neighbor.
func (q *Queue) Remove(i int) bool {
	q.mu.Lock()
	if i < 0 || i >= len(q.items) {
		q.mu.Unlock()
		return false
	}
	it := q.items[i]
	q.items = append(q.items[:i:i], q.items[i+1:]...)

	reselect := false
	switch {
	case i < q.current:
		q.current--
	case i == q.current:
		q.current = min(i, len(q.items)-1)
		reselect = q.current >= 0
	}
	cur := q.current
	var next *Item
	if reselect {
		next = q.items[cur]
	}
	q.mu.Unlock()

	q.emit(Event{Kind: Removed, Index: i, Item: it})
	if reselect {
		q.emit(Event{Kind: Selected, Index: cur, OldIndex: i, Item: next})
	}
	return true
}

// Clear empties the queue and drops the shared settings.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.current = -1
	q.shared = nil
	q.mu.Unlock()
	q.emit(Event{Kind: Cleared, Index: -1})
}

// ApplySharedSettings makes rec the record for every item, clearing all
// per-item overrides.
func (q *Queue) ApplySharedSettings(rec meta.Record) {
	q.mu.Lock()
	q.shared = &rec
	items := append([]*Item{}, q.items...)
	q.mu.Unlock()

	for _, it := range items {
		it.setOverride(nil)
	}
	klog.V(1).Infof("shared settings applied to %d items", len(items))
	q.emit(Event{Kind: SharedApplied, Index: -1})
}

// ClearSharedSettings drops the shared settings.
func (q *Queue) ClearSharedSettings() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.shared = nil
}

// SharedSettings returns the shared settings, if any.
func (q *Queue) SharedSettings() (meta.Record, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.shared == nil {
		return meta.Record{}, false
	}
	return *q.shared, true
}

// Resolve returns the record to render it with: its override, else the
// shared settings, else base styling with its EXIF metadata, else base
// styling with empty metadata.
func (q *Queue) Resolve(it *Item, base meta.Record) (meta.Record, Layer) {
	if rec, ok := it.Override(); ok {
		return rec, LayerOverride
	}
	if rec, ok := q.SharedSettings(); ok {
		return rec, LayerShared
	}
	if rec, ok := it.Exif(); ok {
		return base.WithExif(rec), LayerExif
	}
	return base.WithExif(meta.Record{}), LayerEmpty
}
