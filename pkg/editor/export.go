package editor

import (
	"context"
	"fmt"
	"image"
	"io"

	"k8s.io/klog/v2"

	"github.com/tstromberg/imgecho/pkg/batch"
	"github.com/tstromberg/imgecho/pkg/export"
	"github.com/tstromberg/imgecho/pkg/layout"
	"github.com/tstromberg/imgecho/pkg/meta"
	"github.com/tstromberg/imgecho/pkg/transform"
)

// renderItem produces the finished, full-resolution surface for it.
func (s *Session) renderItem(it *batch.Item, rec meta.Record, ts transform.State) (*image.RGBA, error) {
	base := it.Working()
	if base == nil {
		return nil, fmt.Errorf("%s: %w", it.Name, ErrNoImage)
	}
	if !ts.IsIdentity() {
		base = transform.Apply(base, ts)
	}
	return s.renderer.RenderImage(base, rec, s.logoFor(rec))
}

// Render returns the current image as it would be exported, without the
// crop UI.
func (s *Session) Render() (*image.RGBA, error) {
	it, _ := s.queue.Current()
	if it == nil {
		return nil, ErrNoImage
	}
	return s.renderItem(it, s.Record(), s.machine.State())
}

// Export writes the current image to w. PDF output is captioned with the
// overlay lines.
func (s *Session) Export(ctx context.Context, w io.Writer, o export.Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Flush()
	img, err := s.Render()
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if o.Format == export.PDF {
		it, _ := s.queue.Current()
		if o.Title == "" && it != nil {
			o.Title = it.Name
		}
		if o.Caption == nil {
			o.Caption = s.renderer.Lines(s.Record())
		}
	}
	if err := export.Encode(w, img, o); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

// ExportBatch renders every queued image with its resolved record into a
// ZIP archive. The current image's edits are saved as its override first.
func (s *Session) ExportBatch(ctx context.Context, w io.Writer, o export.Options, progress export.ProgressFunc) (export.Result, error) {
	items := s.queue.Items()
	if len(items) == 0 {
		return export.Result{}, ErrNoImage
	}
	s.Flush()
	s.queue.SaveCurrentOverride(s.Record())
	cur, _ := s.queue.Current()
	pending := s.machine.State()
	base := s.Record()

	render := func(_ context.Context, it *batch.Item) (image.Image, error) {
		rec, layer := s.queue.Resolve(it, base)
		klog.V(2).Infof("exporting %s with layer %d", it.Name, layer)
		ts := transform.State{}
		if it == cur {
			ts = pending
		}
		img, err := s.renderItem(it, rec, ts)
		if err != nil {
			return nil, err
		}
		return img, nil
	}
	return export.Batch(ctx, w, items, render, o, progress)
}

// ExportSocial writes the current image resized for each preset into a
// ZIP archive.
func (s *Session) ExportSocial(ctx context.Context, w io.Writer, keys []string, mode layout.FitMode, o export.Options) (export.Result, error) {
	s.Flush()
	img, err := s.Render()
	if err != nil {
		return export.Result{}, fmt.Errorf("export social: %w", err)
	}
	return export.SocialBatch(ctx, w, img, keys, mode, o)
}
