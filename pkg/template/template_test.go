package template

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tstromberg/imgecho/pkg/layout"
	"github.com/tstromberg/imgecho/pkg/meta"
	"github.com/tstromberg/imgecho/pkg/store"
)

type failingStore struct{ saves int }

func (f *failingStore) Load(context.Context, string, any) error { return store.ErrNotFound }
func (f *failingStore) Save(context.Context, string, any) error {
	f.saves++
	return errors.New("disk full")
}
func (f *failingStore) Delete(context.Context, string) error { return nil }

func TestBuiltIns(t *testing.T) {
	m := NewManager(nil)
	b := m.BuiltIn()
	require.Len(t, b, 4)
	assert.Empty(t, m.User())

	ig, ok := m.Get("preset-instagram")
	require.True(t, ok)
	assert.True(t, ig.BuiltIn)
	assert.Equal(t, layout.BottomCenter, *ig.Settings.FontPosition)
	assert.Equal(t, "bold", *ig.Settings.FontWeight)
	assert.Equal(t, meta.DisplaySimple, *ig.Settings.DisplayMode)
	assert.Equal(t, Number(4), *ig.Settings.FontSizePercent)
	assert.Equal(t, Number(6), *ig.Settings.BlurValuePx)

	product, _ := m.Get("preset-product")
	assert.Equal(t, meta.DisplayCameraOnly, *product.Settings.DisplayMode)

	ctx := context.Background()
	assert.ErrorIs(t, m.Delete(ctx, "preset-minimal"), ErrBuiltIn)
	assert.ErrorIs(t, m.Update(ctx, "preset-minimal", Changes{Name: "x"}), ErrBuiltIn)
	assert.ErrorIs(t, m.Delete(ctx, "nope"), ErrNotFound)
}

func TestApplySettings(t *testing.T) {
	rec := meta.DefaultRecord()
	rec.Camera = "X100V"

	m := NewManager(nil)
	s, ok := m.Apply("preset-instagram")
	require.True(t, ok)
	assert.Equal(t, "preset-instagram", m.CurrentID())

	got := s.Apply(rec)
	assert.Equal(t, "X100V", got.Camera, "metadata untouched")
	assert.Equal(t, layout.BottomCenter, got.FontPosition)
	assert.Equal(t, 4.0, got.FontSizePercent)
	assert.Equal(t, 6.0, got.BlurValuePx)
	assert.Equal(t, rec.FontColor, got.FontColor, "unset fields untouched")

	_, ok = m.Apply("missing")
	assert.False(t, ok)
	m.ClearCurrent()
	assert.Empty(t, m.CurrentID())
}

func TestSettingsFromRoundTrip(t *testing.T) {
	rec := meta.DefaultRecord()
	rec.StrokeWidth = 2
	rec.BackgroundMask = true
	rec.LetterSpacingPx = 1.5

	other := meta.DefaultRecord()
	other.Camera = "keep"
	got := SettingsFrom(rec).Apply(other)
	rec.Camera = "keep"
	assert.Equal(t, rec, got)
}

func TestCRUDPersists(t *testing.T) {
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	m := NewManager(st)
	var kinds []EventKind
	m.OnEvent(func(e Event) { kinds = append(kinds, e.Kind) })

	created := m.Create(ctx, "Mine", "desc", Settings{FontWeight: ptr("bold")})
	assert.False(t, created.BuiltIn)
	assert.Contains(t, created.ID, "user-")

	require.NoError(t, m.Update(ctx, created.ID, Changes{Name: "Renamed", Settings: &Settings{BlurValuePx: ptr(Number(2))}}))
	got, _ := m.Get(created.ID)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "desc", got.Description)
	assert.Nil(t, got.Settings.FontWeight)

	reloaded := NewManager(st)
	require.NoError(t, reloaded.Load(ctx))
	require.Len(t, reloaded.User(), 1)
	assert.Equal(t, "Renamed", reloaded.User()[0].Name)
	assert.Len(t, reloaded.All(), 5)

	m.Apply(created.ID)
	require.NoError(t, m.Delete(ctx, created.ID))
	assert.Empty(t, m.CurrentID())
	assert.Equal(t, []EventKind{Created, Updated, Applied, Deleted}, kinds)

	require.NoError(t, reloaded.Load(ctx))
	assert.Empty(t, reloaded.User())
}

func TestPersistFailureIsLogged(t *testing.T) {
	fs := &failingStore{}
	m := NewManager(fs)
	m.Create(context.Background(), "a", "", Settings{})
	assert.Equal(t, 1, fs.saves)
	assert.Len(t, m.User(), 1)
}

func TestReturnedTemplatesAreCopies(t *testing.T) {
	m := NewManager(nil)
	ig, _ := m.Get("preset-instagram")
	*ig.Settings.FontWeight = "300"

	again, _ := m.Get("preset-instagram")
	assert.Equal(t, "bold", *again.Settings.FontWeight)
}

func TestExport(t *testing.T) {
	m := NewManager(nil)
	b, err := m.Export("preset-photography")
	require.NoError(t, err)

	var got Template
	require.NoError(t, json.Unmarshal(b, &got))
	assert.False(t, got.BuiltIn)
	assert.NotEqual(t, "preset-photography", got.ID)
	assert.Equal(t, "Photography portfolio", got.Name)
	assert.Equal(t, Number(3), *got.Settings.FontSizePercent)

	_, err = m.Export("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		in      string
		want    int
		wantErr bool
	}{
		{"single", `{"name":"One","settings":{"fontSize":"3.5","blurValue":5}}`, 1, false},
		{"array", `[{"name":"A","settings":{}},{"name":"B","settings":{"fontWeight":"bold"}}]`, 2, false},
		{"missing settings skipped", `[{"name":"A"},{"settings":{}},{"name":"C","settings":{}}]`, 1, false},
		{"garbage", `not json`, 0, true},
		{"bad number", `{"name":"A","settings":{"fontSize":"big"}}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(nil)
			got, err := m.Import(ctx, []byte(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
			assert.Len(t, m.User(), tt.want)
		})
	}

	m := NewManager(nil)
	got, err := m.Import(ctx, []byte(`{"name":"One","settings":{"fontSize":"3.5"}}`))
	require.NoError(t, err)
	assert.Equal(t, 3.5, got[0].Settings.Apply(meta.DefaultRecord()).FontSizePercent)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := NewManager(nil)
	src.Create(ctx, "A", "first", SettingsFrom(meta.DefaultRecord()))
	src.Create(ctx, "B", "second", Settings{})

	b, err := src.ExportUser()
	require.NoError(t, err)

	dst := NewManager(nil)
	got, err := dst.Import(ctx, b)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Description)
	assert.Equal(t, SettingsFrom(meta.DefaultRecord()).Apply(meta.Record{}), got[0].Settings.Apply(meta.Record{}))
}
