// Package logo manages the user's watermark logos.
package logo

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // decoder
	_ "image/jpeg" // decoder
	_ "image/png"  // decoder
	"strings"
	"sync"
	"time"

	_ "golang.org/x/image/webp" // decoder
)

// MaxBytes is the largest accepted logo upload.
const MaxBytes = 2 << 20

var (
	ErrUnsupported = errors.New("unsupported logo format: use PNG, SVG, JPEG, GIF or WebP")
	ErrTooLarge    = errors.New("logo must be smaller than 2MB")
)

// Mime types accepted for uploads.
var accepted = map[string]bool{
	"image/png":     true,
	"image/svg+xml": true,
	"image/jpeg":    true,
	"image/jpg":     true,
	"image/gif":     true,
	"image/webp":    true,
}

// Logo is an uploaded watermark, stored as a data URL.
type Logo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	DataURL   string    `json:"dataUrl"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	CreatedAt time.Time `json:"createdAt"`

	mu      sync.Mutex
	decoded image.Image
	err     error
	tried   bool
}

// Validate checks an upload against the accepted formats and size limit.
func Validate(mime string, size int) error {
	if !accepted[strings.ToLower(mime)] {
		return fmt.Errorf("%q: %w", mime, ErrUnsupported)
	}
	if size > MaxBytes {
		return ErrTooLarge
	}
	return nil
}

// DataURL encodes data as a base64 data URL.
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func parseDataURL(u string) (mime string, data []byte, err error) {
	rest, ok := strings.CutPrefix(u, "data:")
	if !ok {
		return "", nil, errors.New("not a data URL")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("data URL has no payload")
	}
	mime, enc, _ := strings.Cut(header, ";")
	if enc != "base64" {
		return mime, []byte(payload), nil
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("base64: %w", err)
	}
	return mime, data, nil
}

// Image decodes the logo on first use and caches the result, including failures.
func (l *Logo) Image() (image.Image, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.tried {
		return l.decoded, l.err
	}
	l.tried = true

	mime, data, err := parseDataURL(l.DataURL)
	if err != nil {
		l.err = fmt.Errorf("logo %s: %w", l.ID, err)
		return nil, l.err
	}
	if mime == "image/svg+xml" {
		l.err = fmt.Errorf("logo %s: vector logos cannot be rasterized", l.ID)
		return nil, l.err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		l.err = fmt.Errorf("decode logo %s: %w", l.ID, err)
		return nil, l.err
	}
	l.decoded = img
	return img, nil
}

func dimensions(mime string, data []byte) (int, int, error) {
	if mime == "image/svg+xml" {
		return 0, 0, nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
