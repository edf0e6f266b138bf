package logo

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tstromberg/imgecho/pkg/store"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.NRGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestValidate(t *testing.T) {
	tests := []struct {
		mime string
		size int
		want error
	}{
		{"image/png", 100, nil},
		{"IMAGE/JPEG", 100, nil},
		{"image/svg+xml", 100, nil},
		{"image/webp", MaxBytes, nil},
		{"image/bmp", 100, ErrUnsupported},
		{"application/pdf", 100, ErrUnsupported},
		{"image/png", MaxBytes + 1, ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d", tt.mime, tt.size), func(t *testing.T) {
			err := Validate(tt.mime, tt.size)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAddAndCurrent(t *testing.T) {
	ctx := context.Background()
	lib := NewLibrary(nil)

	var events []Event
	lib.OnEvent(func(e Event) { events = append(events, e) })

	first, err := lib.Add(ctx, "", "image/png", pngBytes(t, 40, 20))
	require.NoError(t, err)
	second, err := lib.Add(ctx, "brand", "image/png", pngBytes(t, 10, 10))
	require.NoError(t, err)

	assert.Equal(t, "logo", first.Name)
	assert.Equal(t, 40, first.Width)
	assert.Equal(t, 20, first.Height)
	assert.Equal(t, []*Logo{second, first}, lib.List())

	assert.Nil(t, lib.SetCurrent("nope"))
	assert.Nil(t, lib.Current())
	assert.Same(t, first, lib.SetCurrent(first.ID))
	assert.Same(t, first, lib.Current())

	assert.True(t, lib.Delete(ctx, first.ID))
	assert.Nil(t, lib.Current())
	assert.False(t, lib.Delete(ctx, first.ID))

	kinds := []EventKind{}
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []EventKind{Uploaded, Uploaded, Changed, Deleted, Changed}, kinds)
}

func TestAddRejectsUndecodable(t *testing.T) {
	_, err := NewLibrary(nil).Add(context.Background(), "x", "image/png", []byte("garbage"))
	assert.Error(t, err)
}

func TestImageDecodesLazily(t *testing.T) {
	lib := NewLibrary(nil)
	lg, err := lib.Add(context.Background(), "x", "image/png", pngBytes(t, 8, 4))
	require.NoError(t, err)

	img, err := lg.Image()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 4), img.Bounds())

	again, err := lg.Image()
	require.NoError(t, err)
	assert.Same(t, img.(*image.NRGBA), again.(*image.NRGBA))
}

func TestImageFailures(t *testing.T) {
	svg := &Logo{ID: "s", DataURL: DataURL("image/svg+xml", []byte("<svg/>"))}
	_, err := svg.Image()
	assert.Error(t, err)

	bad := &Logo{ID: "b", DataURL: "data:image/png;base64,!!!"}
	_, err = bad.Image()
	assert.Error(t, err)

	notURL := &Logo{ID: "n", DataURL: "https://example.com/x.png"}
	_, err = notURL.Image()
	assert.Error(t, err)
}

func TestPersistenceDegrades(t *testing.T) {
	ctx := context.Background()
	data := pngBytes(t, 4, 4)
	one := len(DataURL("image/png", data))

	// Room for roughly seven logos: ten will not fit, five will.
	fs := &store.FileStore{Dir: t.TempDir(), MaxBytes: one*7 + 7*200}
	lib := NewLibrary(fs)
	for i := 0; i < 12; i++ {
		_, err := lib.Add(ctx, fmt.Sprintf("l%d", i), "image/png", data)
		require.NoError(t, err)
	}
	assert.Len(t, lib.List(), 12)

	reloaded := NewLibrary(fs)
	require.NoError(t, reloaded.Load(ctx))
	got := reloaded.List()
	require.Len(t, got, 5)
	assert.Equal(t, "l11", got[0].Name)
}

func TestLoadEmptyStore(t *testing.T) {
	fs := &store.FileStore{Dir: t.TempDir()}
	lib := NewLibrary(fs)
	require.NoError(t, lib.Load(context.Background()))
	assert.Empty(t, lib.List())
}
