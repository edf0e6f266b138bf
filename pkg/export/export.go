// Package export encodes finished surfaces into downloadable artifacts.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"github.com/go-pdf/fpdf"
	"k8s.io/klog/v2"
)

// Format is an output format.
type Format string

const (
	JPEG      Format = "jpeg"
	PNG       Format = "png"
	JPEGSmall Format = "jpeg-small"
	PDF       Format = "pdf"
)

// Formats lists the supported formats.
var Formats = []Format{JPEG, PNG, JPEGSmall, PDF}

// ErrUnknownFormat is returned for unsupported formats.
var ErrUnknownFormat = errors.New("unknown format")

const (
	// SmallEdge caps the long edge of JPEGSmall output.
	SmallEdge = 1600
	// DefaultQuality is used by DefaultOptions.
	DefaultQuality = 95
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case JPEG, PNG, JPEGSmall, PDF:
		return f, nil
	case "jpg":
		return JPEG, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownFormat)
}

// Ext returns the file extension for f.
func (f Format) Ext() string {
	switch f {
	case PNG:
		return ".png"
	case PDF:
		return ".pdf"
	}
	return ".jpg"
}

// Options control encoding.
type Options struct {
	Format Format
	// Quality is the JPEG quality, 0-100.
	Quality int
	// Title and Caption are written below the photo in PDF output.
	Title   string
	Caption []string
}

// DefaultOptions returns full-size JPEG options.
func DefaultOptions() Options {
	return Options{Format: JPEG, Quality: DefaultQuality}
}

func (o Options) quality() int {
	return max(1, min(100, o.Quality))
}

// Encode writes img to w in the requested format.
func Encode(w io.Writer, img image.Image, o Options) error {
	klog.V(1).Infof("encoding %v as %s (q=%d)", img.Bounds(), o.Format, o.Quality)
	switch o.Format {
	case JPEG, "":
		return imgio.JPEGEncoder(o.quality())(w, img)
	case PNG:
		return imgio.PNGEncoder()(w, img)
	case JPEGSmall:
		return imgio.JPEGEncoder(o.quality())(w, Shrink(img, SmallEdge))
	case PDF:
		return encodePDF(w, img, o)
	}
	return fmt.Errorf("encode %q: %w", o.Format, ErrUnknownFormat)
}

// Shrink scales img down so its long edge is at most edge. Smaller images
// are returned unchanged.
func Shrink(img image.Image, edge int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= edge && h <= edge {
		return img
	}
	if w >= h {
		h = max(1, h*edge/w)
		w = edge
	} else {
		w = max(1, w*edge/h)
		h = edge
	}
	return transform.Resize(img, w, h, transform.Linear)
}

const (
	pdfMargin    = 15.0
	pdfLineH     = 5.0
	pdfFontSize  = 10.0
	pdfTitleSize = 14.0
)

// encodePDF writes a single A4 page holding the photo and its caption.
func encodePDF(w io.Writer, img image.Image, o Options) error {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return fmt.Errorf("pdf: empty image")
	}
	orientation := "P"
	if b.Dx() > b.Dy() {
		orientation = "L"
	}

	pdf := fpdf.New(orientation, "mm", "A4", "")
	pdf.SetCreator("imgecho", true)
	if o.Title != "" {
		pdf.SetTitle(o.Title, true)
	}
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	var jpg bytes.Buffer
	if err := imgio.JPEGEncoder(o.quality())(&jpg, img); err != nil {
		return fmt.Errorf("pdf image: %w", err)
	}
	pdf.RegisterImageOptionsReader("photo", fpdf.ImageOptions{ImageType: "JPG"}, &jpg)

	pw, ph := pdf.GetPageSize()
	textH := float64(len(o.Caption))*pdfLineH + 2*pdfLineH
	if o.Title != "" {
		textH += pdfLineH * 2
	}
	maxW := pw - 2*pdfMargin
	maxH := ph - 2*pdfMargin - textH
	iw := maxW
	ih := iw * float64(b.Dy()) / float64(b.Dx())
	if ih > maxH {
		ih = maxH
		iw = ih * float64(b.Dx()) / float64(b.Dy())
	}
	x := (pw - iw) / 2
	pdf.ImageOptions("photo", x, pdfMargin, iw, ih, false, fpdf.ImageOptions{ImageType: "JPG"}, 0, "")

	pdf.SetXY(pdfMargin, pdfMargin+ih+pdfLineH)
	if o.Title != "" {
		pdf.SetFont("Helvetica", "B", pdfTitleSize)
		pdf.MultiCell(0, pdfLineH*1.5, tr(o.Title), "", "L", false)
	}
	pdf.SetFont("Helvetica", "", pdfFontSize)
	for _, l := range o.Caption {
		pdf.MultiCell(0, pdfLineH, tr(l), "", "L", false)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("pdf output: %w", err)
	}
	return nil
}
