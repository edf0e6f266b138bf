package batch

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"github.com/bbrks/go-blurhash"
	"github.com/disintegration/imaging"
)

// Source is a photo to add to the queue. Data takes priority over Path.
type Source struct {
	Name string
	Path string
	Data []byte
}

func (s Source) name() string {
	if s.Name != "" {
		return s.Name
	}
	return filepath.Base(s.Path)
}

func (s Source) bytes() ([]byte, error) {
	if len(s.Data) > 0 {
		return s.Data, nil
	}
	if s.Path == "" {
		return nil, fmt.Errorf("source %q has no data", s.Name)
	}
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return b, nil
}

// Decode decodes a photo, applying its EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("decode: empty image %v", b)
	}
	return img, nil
}

const (
	// ThumbSize is the long edge of queue thumbnails.
	ThumbSize    = 120
	thumbQuality = 75
	// Blurhash doesn't need detail; hash a tiny copy.
	hashSize        = 32
	hashXComponents = 4
	hashYComponents = 3
)

// scaled returns w×h scaled so the long edge is at most edge.
func scaled(w, h, edge int) (int, int) {
	if w >= h && w > edge {
		return edge, max(1, h*edge/w)
	}
	if h > w && h > edge {
		return max(1, w*edge/h), edge
	}
	return w, h
}

// thumbnail returns a JPEG preview of img and its blurhash.
func thumbnail(img image.Image) ([]byte, string, error) {
	b := img.Bounds()
	x, y := scaled(b.Dx(), b.Dy(), ThumbSize)
	small := transform.Resize(img, x, y, transform.Lanczos)

	var buf bytes.Buffer
	if err := imgio.JPEGEncoder(thumbQuality)(&buf, small); err != nil {
		return nil, "", fmt.Errorf("encode thumb: %w", err)
	}

	hx, hy := scaled(x, y, hashSize)
	hash, err := blurhash.Encode(hashXComponents, hashYComponents, transform.Resize(small, hx, hy, transform.Linear))
	if err != nil {
		return buf.Bytes(), "", fmt.Errorf("blurhash: %w", err)
	}
	return buf.Bytes(), hash, nil
}
