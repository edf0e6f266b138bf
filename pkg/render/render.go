// Package render draws the metadata overlay and logo onto a photo.
//
// The pipeline is fixed: base image (optionally blurred), text block, logo.
package render

import (
	"fmt"
	"image"
	"sync"

	"github.com/anthonynsimon/bild/blur"
	xdraw "golang.org/x/image/draw"
	"k8s.io/klog/v2"

	"github.com/tstromberg/imgecho/pkg/layout"
	"github.com/tstromberg/imgecho/pkg/logo"
	"github.com/tstromberg/imgecho/pkg/meta"
)

// Renderer composites records onto images. Render calls are serialized
// because font faces carry per-glyph state.
type Renderer struct {
	mu      sync.Mutex
	fonts   *FontManager
	labeler meta.Labeler
}

// New returns a Renderer. A nil labeler uses English field labels.
func New(fonts *FontManager, l meta.Labeler) *Renderer {
	if l == nil {
		l = meta.English
	}
	return &Renderer{fonts: fonts, labeler: l}
}

// Lines returns the overlay lines for rec.
func (r *Renderer) Lines(rec meta.Record) []string {
	return meta.BuildTextLines(rec, rec.Notes, rec.DisplayMode, r.labeler)
}

// Render redraws dst from scratch: base scaled to dst, blur, text, logo.
// A logo that cannot be decoded is skipped with a warning.
func (r *Renderer) Render(dst *image.RGBA, base image.Image, rec meta.Record, lg *logo.Logo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := dst.Bounds()
	xdraw.Draw(dst, b, image.Transparent, image.Point{}, xdraw.Src)

	if base != nil {
		if rec.BlurValuePx > 0 {
			base = blur.Gaussian(base, rec.BlurValuePx)
		}
		if base.Bounds().Size() == b.Size() {
			xdraw.Draw(dst, b, base, base.Bounds().Min, xdraw.Src)
		} else {
			xdraw.ApproxBiLinear.Scale(dst, b, base, base.Bounds(), xdraw.Src, nil)
		}
	}

	if lines := r.Lines(rec); len(lines) > 0 {
		canvas := layout.Size{W: float64(b.Dx()), H: float64(b.Dy())}
		face, err := r.fonts.Face(rec.FontFamily, rec.FontWeight, layout.FontSize(canvas.H, rec.FontSizePercent))
		if err != nil {
			return fmt.Errorf("font: %w", err)
		}
		tb := Measure(face, lines, rec, canvas)
		tb.X += float64(b.Min.X)
		tb.Y += float64(b.Min.Y)
		drawText(dst, face, tb, rec)
	}

	if lg != nil {
		img, err := lg.Image()
		if err != nil {
			klog.Warningf("skipping logo overlay: %v", err)
			return nil
		}
		drawLogo(dst, img, rec.LogoSettings)
	}
	return nil
}

// RenderImage renders onto a new canvas the size of base.
func (r *Renderer) RenderImage(base image.Image, rec meta.Record, lg *logo.Logo) (*image.RGBA, error) {
	b := base.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if err := r.Render(dst, base, rec, lg); err != nil {
		return nil, err
	}
	return dst, nil
}
