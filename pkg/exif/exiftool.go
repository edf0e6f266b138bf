package exif

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/barasher/go-exiftool"
	"k8s.io/klog/v2"

	"github.com/tstromberg/imgecho/pkg/meta"
)

// Exiftool reads metadata through a long-running exiftool process. It
// understands more maker notes and IPTC place names than GoExif, which it
// falls back to for in-memory sources and extraction failures.
type Exiftool struct {
	mu       sync.Mutex
	et       *exiftool.Exiftool
	fallback Extractor
}

// NewExiftool starts exiftool. The returned extractor must be closed.
func NewExiftool(binary string) (*Exiftool, error) {
	opts := []func(*exiftool.Exiftool) error{exiftool.NoPrintConversion()}
	if binary != "" {
		opts = append(opts, exiftool.SetExiftoolBinaryPath(binary))
	}

	et, err := exiftool.NewExiftool(opts...)
	if err != nil {
		return nil, fmt.Errorf("exiftool: %w", err)
	}
	return &Exiftool{et: et, fallback: NewGoExif()}, nil
}

// Close stops the exiftool process.
func (e *Exiftool) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.et.Close()
}

// Extract implements Extractor.
func (e *Exiftool) Extract(ctx context.Context, src Source) meta.Record {
	if src.Path == "" {
		return e.fallback.Extract(ctx, src)
	}

	e.mu.Lock()
	fis := e.et.ExtractMetadata(src.Path)
	e.mu.Unlock()

	if len(fis) == 0 || fis[0].Err != nil {
		if len(fis) > 0 {
			klog.V(1).Infof("exiftool failed for %q: %v", src.Path, fis[0].Err)
		}
		return e.fallback.Extract(ctx, src)
	}
	fi := fis[0]

	for k, v := range fi.Fields {
		klog.V(2).Infof("%q=%v", k, v)
	}

	getS := func(keys ...string) string {
		for _, k := range keys {
			if v, err := fi.GetString(k); err == nil && strings.TrimSpace(v) != "" {
				return v
			}
		}
		return ""
	}
	getF := func(keys ...string) float64 {
		for _, k := range keys {
			if v, err := fi.GetFloat(k); err == nil && v != 0 {
				return v
			}
		}
		return 0
	}

	f := fields{
		model:    getS("Model", "CameraModelName"),
		lenses:   []string{getS("LensModel"), getS("Lens"), getS("LensType"), getS("LensID")},
		focal:    getF("FocalLength", "FocalLengthIn35mmFormat"),
		fNumber:  getF("FNumber", "ApertureValue"),
		exposure: getF("ExposureTime", "ShutterSpeedValue"),
		places: [3]string{
			getS("City"),
			getS("State", "Province-State"),
			getS("Country", "Country-PrimaryLocationName"),
		},
	}

	if iso, err := fi.GetInt("ISO"); err == nil {
		f.iso = int(iso)
	}

	if spec := strings.Fields(getS("LensInfo", "LensSpecification")); len(spec) == 4 {
		for i, s := range spec {
			f.spec[i], _ = strconv.ParseFloat(s, 64)
		}
	}

	// With print conversion disabled, coordinates arrive signed and decimal.
	lat, errLat := fi.GetFloat("GPSLatitude")
	lon, errLon := fi.GetFloat("GPSLongitude")
	if errLat == nil && errLon == nil {
		f.hasGPS, f.lat, f.lon = true, lat, lon
	}

	return f.record()
}
