// Package exif reads camera metadata from photos into a meta.Record.
package exif

import (
	"context"
	"strconv"
	"strings"

	"github.com/tstromberg/imgecho/pkg/meta"
)

// Source is a photo to read metadata from. Data takes priority over Path.
type Source struct {
	Path string
	Data []byte
}

// Extractor reads EXIF data. Extract never fails: unreadable or missing
// metadata yields an empty record.
type Extractor interface {
	Extract(ctx context.Context, src Source) meta.Record
}

// fields is the subset of tags both backends agree on.
type fields struct {
	model    string
	lenses   []string
	spec     [4]float64
	focal    float64
	iso      int
	fNumber  float64
	exposure float64

	hasGPS   bool
	lat, lon float64
	places   [3]string // city, state, country
}

func (f fields) record() meta.Record {
	r := meta.Record{
		Camera:      strings.TrimSpace(f.model),
		FocalLength: FormatFocalLength(f.focal),
		Aperture:    FormatAperture(f.fNumber),
		Shutter:     FormatExposure(f.exposure),
		Location:    FormatLocation(f.lat, f.lon, f.hasGPS, f.places[:]...),
	}
	if f.iso > 0 {
		r.ISO = strconv.Itoa(f.iso)
	}

	for _, l := range f.lenses {
		if usableLens(l) {
			r.Lens = strings.TrimSpace(l)
			break
		}
	}
	if r.Lens == "" {
		r.Lens = lensSpec(f.spec[0], f.spec[1], f.spec[2], f.spec[3])
	}
	if r.Lens == "" {
		r.Lens = r.FocalLength
	}
	return r
}
