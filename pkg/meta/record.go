// Package meta holds the metadata record rendered onto photos.
package meta

import (
	"strings"

	"github.com/tstromberg/imgecho/pkg/layout"
)

// DisplayMode selects how metadata lines are labelled.
type DisplayMode string

const (
	// DisplayFull renders "Label: value".
	DisplayFull DisplayMode = "full"
	// DisplaySimple renders values only.
	DisplaySimple DisplayMode = "simple"
	// DisplayCameraOnly renders values only; kept for templates that name it.
	DisplayCameraOnly DisplayMode = "camera-only"
)

// LogoSettings are the per-render options of the current logo.
type LogoSettings struct {
	Position    layout.Anchor `json:"position"`
	SizePercent float64       `json:"sizePercent"`
	Opacity     float64       `json:"opacity"`
	Tiled       bool          `json:"tiled"`
}

// Record is everything a render pass needs besides pixels. It contains no
// reference types, so assigning a Record copies it completely.
type Record struct {
	Camera      string `json:"camera"`
	Lens        string `json:"lens"`
	Location    string `json:"location"`
	ISO         string `json:"iso"`
	Aperture    string `json:"aperture"`
	Shutter     string `json:"shutter"`
	FocalLength string `json:"focalLength,omitempty"`
	Copyright   string `json:"copyright"`
	Notes       string `json:"notes"`

	FontFamily           string        `json:"fontFamily"`
	FontWeight           string        `json:"fontWeight"`
	FontSizePercent      float64       `json:"fontSizePercent"`
	FontPosition         layout.Anchor `json:"fontPosition"`
	DisplayMode          DisplayMode   `json:"displayMode"`
	FontColor            string        `json:"fontColor"`
	FontOpacity          float64       `json:"fontOpacity"`
	StrokeColor          string        `json:"strokeColor"`
	StrokeWidth          float64       `json:"strokeWidth"`
	TextShadowEnabled    bool          `json:"textShadowEnabled"`
	BackgroundMask       bool          `json:"backgroundMaskEnabled"`
	MaskOpacity          float64       `json:"maskOpacity"`
	TextRotationDegrees  float64       `json:"textRotationDegrees"`
	LetterSpacingPx      float64       `json:"letterSpacingPx"`
	LineHeightMultiplier float64       `json:"lineHeightMultiplier"`
	BlurValuePx          float64       `json:"blurValuePx"`

	LogoID       string       `json:"logoId"`
	LogoSettings LogoSettings `json:"logoSettings"`
}

// DefaultRecord returns a record with empty metadata and default styling.
func DefaultRecord() Record {
	return Record{
		FontFamily:           "sans-serif",
		FontWeight:           "normal",
		FontSizePercent:      3,
		FontPosition:         layout.BottomLeft,
		DisplayMode:          DisplayFull,
		FontColor:            "#FFFFFF",
		FontOpacity:          1,
		StrokeColor:          "#000000",
		TextShadowEnabled:    true,
		MaskOpacity:          0.5,
		LineHeightMultiplier: 1.8,
		LogoSettings: LogoSettings{
			Position:    layout.BottomRight,
			SizePercent: 10,
			Opacity:     1,
		},
	}
}

// Field identifies one of the metadata text fields.
type Field string

const (
	FieldCamera    Field = "camera"
	FieldLens      Field = "lens"
	FieldLocation  Field = "location"
	FieldISO       Field = "iso"
	FieldAperture  Field = "aperture"
	FieldShutter   Field = "shutter"
	FieldCopyright Field = "copyright"
)

// TextFields is the fixed order metadata lines are emitted in.
var TextFields = []Field{FieldCamera, FieldLens, FieldLocation, FieldISO, FieldAperture, FieldShutter, FieldCopyright}

// Value returns the value of a text field.
func (r Record) Value(f Field) string {
	switch f {
	case FieldCamera:
		return r.Camera
	case FieldLens:
		return r.Lens
	case FieldLocation:
		return r.Location
	case FieldISO:
		return r.ISO
	case FieldAperture:
		return r.Aperture
	case FieldShutter:
		return r.Shutter
	case FieldCopyright:
		return r.Copyright
	}
	return ""
}

// IsEmpty reports whether the record has no text to render.
func (r Record) IsEmpty() bool {
	for _, f := range TextFields {
		if strings.TrimSpace(r.Value(f)) != "" {
			return false
		}
	}
	return strings.TrimSpace(r.Notes) == ""
}

// WithExif returns r with its camera fields replaced by those of e.
// Notes and copyright are cleared, matching a fresh upload.
func (r Record) WithExif(e Record) Record {
	r = r.WithCamera(e)
	r.Notes = ""
	r.Copyright = ""
	return r
}

// WithCamera returns r with the camera fields of e, leaving notes,
// copyright and styling alone.
func (r Record) WithCamera(e Record) Record {
	r.Camera = e.Camera
	r.Lens = e.Lens
	r.Location = e.Location
	r.ISO = e.ISO
	r.Aperture = e.Aperture
	r.Shutter = e.Shutter
	r.FocalLength = e.FocalLength
	return r
}
