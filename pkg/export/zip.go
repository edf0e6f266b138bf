package export

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"context"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"k8s.io/klog/v2"

	"github.com/tstromberg/imgecho/pkg/batch"
)

// Result counts the outcome of a batch export.
type Result struct {
	Succeeded int
	Failed    int
}

// RenderFunc produces the finished surface for an item.
type RenderFunc func(ctx context.Context, it *batch.Item) (image.Image, error)

// ProgressFunc is called after each item with the number handled so far.
type ProgressFunc func(done, total int)

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_\x{4e00}-\x{9fa5}-]`)

// SanitizeName returns the archive name for the i'th (zero-based) item:
// the base name without extension, unsafe characters replaced by '_', and
// a 1-based three digit index.
func SanitizeName(name string, i int, ext string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return fmt.Sprintf("%s_%03d%s", unsafeName.ReplaceAllString(base, "_"), i+1, ext)
}

func newZipWriter(w io.Writer) *zip.Writer {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, 6)
	})
	return zw
}

// Batch renders and encodes every item into a ZIP archive written to w.
// A failing item is marked with StatusError and skipped; a failure writing
// the archive aborts the export.
func Batch(ctx context.Context, w io.Writer, items []*batch.Item, render RenderFunc, o Options, progress ProgressFunc) (Result, error) {
	var res Result
	zw := newZipWriter(w)

	for i, it := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		it.SetStatus(batch.StatusProcessing, "")

		data, err := renderItem(ctx, it, render, o)
		if err != nil {
			klog.Errorf("export %s: %v", it.Name, err)
			it.SetStatus(batch.StatusError, err.Error())
			res.Failed++
		} else {
			name := SanitizeName(it.Name, i, o.Format.Ext())
			f, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
			if err != nil {
				return res, fmt.Errorf("zip create %s: %w", name, err)
			}
			if _, err := f.Write(data); err != nil {
				return res, fmt.Errorf("zip write %s: %w", name, err)
			}
			it.SetOutput(data)
			res.Succeeded++
		}

		if progress != nil {
			progress(i+1, len(items))
		}
	}

	if err := zw.Close(); err != nil {
		return res, fmt.Errorf("zip close: %w", err)
	}
	klog.Infof("exported %d images, %d failed", res.Succeeded, res.Failed)
	return res, nil
}

func renderItem(ctx context.Context, it *batch.Item, render RenderFunc, o Options) ([]byte, error) {
	img, err := render(ctx, it)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, img, o); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}
