package history

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/disintegration/imaging"

	"github.com/tstromberg/imgecho/pkg/meta"
	"github.com/tstromberg/imgecho/pkg/transform"
)

// Kind is the kind of edit a snapshot records.
type Kind string

const (
	KindInitial   Kind = "initial"
	KindMetadata  Kind = "metadata"
	KindStyle     Kind = "style"
	KindCrop      Kind = "crop"
	KindTransform Kind = "transform"
	KindLogo      Kind = "logo"
	KindTemplate  Kind = "template"
	KindBatch     Kind = "batch"
)

// State is everything a snapshot restores. It is a value: copying it copies
// all of it.
type State struct {
	Record    meta.Record     `json:"record"`
	Transform transform.State `json:"transform"`
}

// Snapshot is a pixel-free point in the edit history.
type Snapshot struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	Label     string    `json:"label"`
	// Thumbnail is a JPEG preview, possibly empty.
	Thumbnail []byte `json:"thumbnail,omitempty"`
	State     State  `json:"state"`
}

// Thumbnailer encodes a small preview of a surface.
type Thumbnailer interface {
	Thumbnail(img image.Image) ([]byte, error)
}

// ThumbOpts configure a JPEGThumbnailer.
type ThumbOpts struct {
	Size       int
	Quality    int
	Background color.Color
}

// DefaultThumbOpts are used for history previews.
var DefaultThumbOpts = ThumbOpts{
	Size:       100,
	Quality:    70,
	Background: color.NRGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff},
}

// JPEGThumbnailer letterboxes a surface into a Size×Size JPEG.
type JPEGThumbnailer struct {
	Opts ThumbOpts
}

// NewJPEGThumbnailer returns a thumbnailer using DefaultThumbOpts.
func NewJPEGThumbnailer() *JPEGThumbnailer {
	return &JPEGThumbnailer{Opts: DefaultThumbOpts}
}

// Thumbnail implements Thumbnailer.
func (t *JPEGThumbnailer) Thumbnail(img image.Image) ([]byte, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("empty surface: %v", b)
	}

	fit := imaging.Fit(img, t.Opts.Size, t.Opts.Size, imaging.Lanczos)
	canvas := imaging.New(t.Opts.Size, t.Opts.Size, t.Opts.Background)
	canvas = imaging.PasteCenter(canvas, fit)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.JPEG, imaging.JPEGQuality(t.Opts.Quality)); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}
