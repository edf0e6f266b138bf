package batch

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tstromberg/imgecho/pkg/exif"
	"github.com/tstromberg/imgecho/pkg/meta"
)

type fakeExtractor struct {
	release chan struct{}
	rec     meta.Record
}

func (f *fakeExtractor) Extract(_ context.Context, _ exif.Source) meta.Record {
	if f.release != nil {
		<-f.release
	}
	return f.rec
}

func pngSource(t *testing.T, name string, w, h int) Source {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return Source{Name: name, Data: buf.Bytes()}
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ks []EventKind
	for _, e := range r.events {
		ks = append(ks, e.Kind)
	}
	return ks
}

func (r *recorder) count(k EventKind) int {
	n := 0
	for _, x := range r.kinds() {
		if x == k {
			n++
		}
	}
	return n
}

func TestAdd(t *testing.T) {
	q := NewQueue(&fakeExtractor{rec: meta.Record{Camera: "X-T5"}})
	rec := &recorder{}
	q.OnEvent(rec.add)

	res, err := q.Add(context.Background(), []Source{
		pngSource(t, "a.png", 400, 200),
		{Name: "broken.jpg", Data: []byte("not an image")},
		pngSource(t, "b.png", 50, 80),
	})
	require.NoError(t, err)
	q.Wait()

	require.Len(t, res.Added, 2)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "broken.jpg", res.Failed[0].Name)
	assert.Empty(t, res.Notice)
	assert.NoError(t, res.Err())
	assert.Equal(t, 2, q.Len())

	a := res.Added[0]
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, res.Added[1].ID)
	assert.NotEmpty(t, a.Blurhash)
	th, err := jpeg.Decode(bytes.NewReader(a.Thumbnail))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, ThumbSize, 60), th.Bounds())

	cur, idx := q.Current()
	assert.Equal(t, 0, idx)
	assert.Same(t, a, cur)

	e, ok := a.Exif()
	assert.True(t, ok)
	assert.Equal(t, "X-T5", e.Camera)
	assert.Equal(t, 2, rec.count(ExifLoaded))
	st, _ := a.Status()
	assert.Equal(t, StatusPending, st)
}

func TestAddCeiling(t *testing.T) {
	q := NewQueue(&fakeExtractor{})
	q.max = 3
	var srcs []Source
	for i := 0; i < 5; i++ {
		srcs = append(srcs, pngSource(t, "x.png", 10, 10))
	}

	res, err := q.Add(context.Background(), srcs)
	require.NoError(t, err)
	assert.Len(t, res.Added, 3)
	assert.Contains(t, res.Notice, "added 3 of 5")
	assert.ErrorIs(t, res.Err(), ErrQueueFull)

	res, err = q.Add(context.Background(), srcs[:1])
	require.NoError(t, err)
	assert.Empty(t, res.Added)
	assert.NotEmpty(t, res.Notice)
	assert.Equal(t, 3, q.Len())
	q.Wait()
}

func TestAddCancelled(t *testing.T) {
	q := NewQueue(&fakeExtractor{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Add(ctx, []Source{pngSource(t, "a.png", 10, 10)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, q.Len())
}

func TestExifLoadsAsynchronously(t *testing.T) {
	ex := &fakeExtractor{release: make(chan struct{}), rec: meta.Record{ISO: "800"}}
	q := NewQueue(ex)
	rec := &recorder{}
	q.OnEvent(rec.add)

	res, err := q.Add(context.Background(), []Source{pngSource(t, "a.png", 10, 10)})
	require.NoError(t, err)

	it := res.Added[0]
	_, loaded := it.Exif()
	assert.False(t, loaded, "usable before metadata arrives")
	assert.NotNil(t, it.Working())

	close(ex.release)
	q.Wait()

	e, loaded := it.Exif()
	assert.True(t, loaded)
	assert.Equal(t, "800", e.ISO)

	rec.mu.Lock()
	last := rec.events[len(rec.events)-1]
	rec.mu.Unlock()
	assert.Equal(t, ExifLoaded, last.Kind)
	assert.True(t, last.Current)
}

func TestExifForRemovedItemIgnored(t *testing.T) {
	ex := &fakeExtractor{release: make(chan struct{}), rec: meta.Record{ISO: "800"}}
	q := NewQueue(ex)
	rec := &recorder{}
	q.OnEvent(rec.add)

	res, err := q.Add(context.Background(), []Source{pngSource(t, "a.png", 10, 10)})
	require.NoError(t, err)
	require.True(t, q.Remove(0))

	close(ex.release)
	q.Wait()

	assert.Zero(t, rec.count(ExifLoaded))
	_, loaded := res.Added[0].Exif()
	assert.False(t, loaded)
	_, idx := q.Current()
	assert.Equal(t, -1, idx)
}

func newFilledQueue(t *testing.T, n int) (*Queue, []*Item) {
	t.Helper()
	q := NewQueue(&fakeExtractor{rec: meta.Record{Camera: "from-exif"}})
	var srcs []Source
	for i := 0; i < n; i++ {
		srcs = append(srcs, pngSource(t, "p.png", 10, 10))
	}
	res, err := q.Add(context.Background(), srcs)
	require.NoError(t, err)
	q.Wait()
	return q, res.Added
}

func TestSelectOrdering(t *testing.T) {
	q, items := newFilledQueue(t, 3)
	rec := &recorder{}
	q.OnEvent(rec.add)

	// The outgoing item can still be saved from BeforeChange.
	q.OnEvent(func(e Event) {
		if e.Kind == BeforeChange {
			_, idx := q.Current()
			assert.Equal(t, e.OldIndex, idx)
			q.SaveCurrentOverride(meta.Record{Camera: "edited"})
		}
	})

	require.True(t, q.Select(2))
	assert.Equal(t, []EventKind{BeforeChange, Selected}, rec.kinds())
	assert.Same(t, items[2], rec.events[1].Item)
	assert.Equal(t, 2, rec.events[1].Index)

	o, ok := items[0].Override()
	require.True(t, ok)
	assert.Equal(t, "edited", o.Camera)
	_, ok = items[2].Override()
	assert.False(t, ok)

	assert.False(t, q.Select(3))
	assert.False(t, q.Select(-1))
	assert.True(t, q.Select(2))
	assert.Len(t, rec.kinds(), 2, "reselecting the current item sends nothing")
}

func TestResolvePrecedence(t *testing.T) {
	q, items := newFilledQueue(t, 2)
	base := meta.DefaultRecord()
	base.Notes = "base notes"

	got, layer := q.Resolve(items[0], base)
	assert.Equal(t, LayerExif, layer)
	assert.Equal(t, "from-exif", got.Camera)
	assert.Empty(t, got.Notes)
	assert.Equal(t, base.FontFamily, got.FontFamily)

	override := base
	override.Camera = "override"
	require.True(t, q.SaveCurrentOverride(override))
	got, layer = q.Resolve(items[0], base)
	assert.Equal(t, LayerOverride, layer)
	assert.Equal(t, "override", got.Camera)

	shared := base
	shared.Camera = "shared"
	q.ApplySharedSettings(shared)
	for _, it := range items {
		got, layer = q.Resolve(it, base)
		assert.Equal(t, LayerShared, layer)
		assert.Equal(t, shared, got)
	}

	// Overrides saved after sharing win again.
	require.True(t, q.SaveCurrentOverride(override))
	got, _ = q.Resolve(items[0], base)
	assert.Equal(t, "override", got.Camera)

	fresh := NewItem("n", "", image.NewRGBA(image.Rect(0, 0, 1, 1)))
	q.ClearSharedSettings()
	got, layer = q.Resolve(fresh, base)
	assert.Equal(t, LayerEmpty, layer)
	assert.True(t, got.IsEmpty())
}

func TestResetOverride(t *testing.T) {
	q, items := newFilledQueue(t, 2)
	rec := &recorder{}
	q.OnEvent(rec.add)

	q.SaveCurrentOverride(meta.Record{Camera: "x"})
	require.True(t, q.ResetOverride(0))
	_, ok := items[0].Override()
	assert.False(t, ok)
	assert.Equal(t, []EventKind{Reset}, rec.kinds())

	require.True(t, q.ResetOverride(1))
	assert.Len(t, rec.kinds(), 1, "non-current reset is silent")
	assert.False(t, q.ResetOverride(5))
}

func TestRemoveAdjustsCurrent(t *testing.T) {
	q, items := newFilledQueue(t, 4)
	require.True(t, q.Select(2))

	require.True(t, q.Remove(0))
	cur, idx := q.Current()
	assert.Equal(t, 1, idx)
	assert.Same(t, items[2], cur)

	require.True(t, q.Remove(1))
	cur, idx = q.Current()
	assert.Equal(t, 1, idx)
	assert.Same(t, items[3], cur)

	require.True(t, q.Remove(1))
	cur, idx = q.Current()
	assert.Equal(t, 0, idx)
	assert.Same(t, items[1], cur)

	assert.False(t, q.Remove(3))
}

func TestClear(t *testing.T) {
	q, _ := newFilledQueue(t, 2)
	q.ApplySharedSettings(meta.DefaultRecord())
	q.Clear()
	assert.Zero(t, q.Len())
	_, idx := q.Current()
	assert.Equal(t, -1, idx)
	_, ok := q.SharedSettings()
	assert.False(t, ok)
	assert.False(t, q.SaveCurrentOverride(meta.Record{}))
}

func TestWorkingAndPristine(t *testing.T) {
	orig := image.NewRGBA(image.Rect(0, 0, 4, 4))
	it := NewItem("a", "", orig)

	cropped := image.NewRGBA(image.Rect(0, 0, 2, 2))
	it.SetWorkingImage(cropped)
	assert.Same(t, cropped, it.Working())
	assert.Same(t, orig, it.Pristine())

	it.ResetToPristine()
	assert.Same(t, orig, it.Working())
}

func TestItemStatus(t *testing.T) {
	it := NewItem("a", "", image.NewRGBA(image.Rect(0, 0, 1, 1)))
	it.SetStatus(StatusError, "boom")
	st, msg := it.Status()
	assert.Equal(t, StatusError, st)
	assert.Equal(t, "boom", msg)

	it.SetOutput([]byte("out"))
	st, msg = it.Status()
	assert.Equal(t, StatusCompleted, st)
	assert.Empty(t, msg)
	assert.Equal(t, []byte("out"), it.Output())
}

func TestDecodeAppliesNothingToPlainPNG(t *testing.T) {
	src := pngSource(t, "a.png", 30, 20)
	img, err := Decode(src.Data)
	require.NoError(t, err)
	assert.Equal(t, 30, img.Bounds().Dx())
	assert.Equal(t, color.NRGBAModel.Convert(color.RGBA{200, 200, 200, 200}), color.NRGBAModel.Convert(img.At(0, 0)))

	_, err = Decode([]byte("junk"))
	assert.Error(t, err)
}

func TestScaled(t *testing.T) {
	tests := []struct{ w, h, ew, eh int }{
		{400, 200, 120, 60},
		{200, 400, 60, 120},
		{50, 80, 50, 80},
		{1000, 1, 120, 1},
	}
	for _, tt := range tests {
		w, h := scaled(tt.w, tt.h, ThumbSize)
		assert.Equal(t, tt.ew, w)
		assert.Equal(t, tt.eh, h)
	}
}

func TestFindImages(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"b.JPG", "a.png", "notes.txt", ".hidden.jpg", ".cache/c.jpg", "sub/d.webp"} {
		full := filepath.Join(dir, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))
	}

	got, err := FindImages(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "b.JPG"),
		filepath.Join(dir, "sub/d.webp"),
	}, got)
}

func TestAddFromPath(t *testing.T) {
	src := pngSource(t, "", 10, 10)
	path := filepath.Join(t.TempDir(), "disk.png")
	require.NoError(t, os.WriteFile(path, src.Data, 0o644))

	q := NewQueue(&fakeExtractor{})
	res, err := q.Add(context.Background(), []Source{{Path: path}})
	require.NoError(t, err)
	q.Wait()
	require.Len(t, res.Added, 1)
	assert.Equal(t, "disk.png", res.Added[0].Name)
	assert.Equal(t, path, res.Added[0].Path)
}
