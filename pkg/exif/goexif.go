package exif

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
	"github.com/rwcarlsen/goexif/tiff"
	"k8s.io/klog/v2"

	"github.com/tstromberg/imgecho/pkg/meta"
)

func init() {
	exif.RegisterParsers(mknote.All...)
}

// GoExif decodes EXIF in-process.
type GoExif struct{}

// NewGoExif returns an in-process extractor.
func NewGoExif() *GoExif {
	return &GoExif{}
}

// Extract implements Extractor.
func (g *GoExif) Extract(_ context.Context, src Source) meta.Record {
	f, err := g.read(src)
	if err != nil {
		klog.V(1).Infof("exif unavailable for %q: %v", src.Path, err)
		return meta.Record{}
	}
	return f.record()
}

func (g *GoExif) read(src Source) (fields, error) {
	var r io.Reader
	switch {
	case len(src.Data) > 0:
		r = bytes.NewReader(src.Data)
	case src.Path != "":
		fh, err := os.Open(src.Path)
		if err != nil {
			return fields{}, fmt.Errorf("open: %w", err)
		}
		defer fh.Close()
		r = fh
	default:
		return fields{}, errors.New("empty source")
	}

	x, err := exif.Decode(r)
	if err != nil {
		return fields{}, fmt.Errorf("decode: %w", err)
	}
	return parseGoExif(x), nil
}

func str(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	v, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return v
}

func rat(tag *tiff.Tag, i int) float64 {
	n, d, err := tag.Rat2(i)
	if err != nil || d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func ratField(x *exif.Exif, name exif.FieldName) float64 {
	tag, err := x.Get(name)
	if err != nil {
		return 0
	}
	return rat(tag, 0)
}

func dms(x *exif.Exif, coord, ref exif.FieldName) (float64, bool) {
	tag, err := x.Get(coord)
	if err != nil || tag.Count < 3 {
		return 0, false
	}
	return DMSToDecimal(rat(tag, 0), rat(tag, 1), rat(tag, 2), str(x, ref)), true
}

func parseGoExif(x *exif.Exif) fields {
	f := fields{
		model:    str(x, exif.Model),
		lenses:   []string{str(x, exif.LensModel), str(x, exif.LensMake)},
		focal:    ratField(x, exif.FocalLength),
		fNumber:  ratField(x, exif.FNumber),
		exposure: ratField(x, exif.ExposureTime),
	}

	if tag, err := x.Get(exif.ISOSpeedRatings); err == nil {
		if v, err := tag.Int(0); err == nil {
			f.iso = v
		}
	}

	lat, okLat := dms(x, exif.GPSLatitude, exif.GPSLatitudeRef)
	lon, okLon := dms(x, exif.GPSLongitude, exif.GPSLongitudeRef)
	if okLat && okLon {
		f.hasGPS, f.lat, f.lon = true, lat, lon
	}
	return f
}
