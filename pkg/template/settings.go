package template

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tstromberg/imgecho/pkg/layout"
	"github.com/tstromberg/imgecho/pkg/meta"
)

// Number is a float that also decodes from a JSON string, as older exports
// wrote font sizes like "3.0".
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("number %s: %w", b, err)
	}
	*n = Number(f)
	return nil
}

// Settings is the styling a template sets. Nil fields are left alone on apply.
type Settings struct {
	FontFamily          *string           `json:"fontFamily,omitempty"`
	FontWeight          *string           `json:"fontWeight,omitempty"`
	FontSizePercent     *Number           `json:"fontSize,omitempty"`
	FontPosition        *layout.Anchor    `json:"fontPosition,omitempty"`
	DisplayMode         *meta.DisplayMode `json:"displayMode,omitempty"`
	FontColor           *string           `json:"fontColor,omitempty"`
	FontOpacity         *Number           `json:"fontOpacity,omitempty"`
	StrokeColor         *string           `json:"strokeColor,omitempty"`
	StrokeWidth         *Number           `json:"strokeWidth,omitempty"`
	TextShadowEnabled   *bool             `json:"textShadowEnabled,omitempty"`
	BackgroundMask      *bool             `json:"backgroundMaskEnabled,omitempty"`
	MaskOpacity         *Number           `json:"maskOpacity,omitempty"`
	TextRotationDegrees *Number           `json:"textRotation,omitempty"`
	LetterSpacingPx     *Number           `json:"letterSpacing,omitempty"`
	LineHeight          *Number           `json:"lineHeight,omitempty"`
	BlurValuePx         *Number           `json:"blurValue,omitempty"`
}

func ptr[T any](v T) *T { return &v }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	return ptr(*p)
}

// Clone returns a copy of s that shares no pointers with it.
func (s Settings) Clone() Settings {
	return Settings{
		FontFamily:          clonePtr(s.FontFamily),
		FontWeight:          clonePtr(s.FontWeight),
		FontSizePercent:     clonePtr(s.FontSizePercent),
		FontPosition:        clonePtr(s.FontPosition),
		DisplayMode:         clonePtr(s.DisplayMode),
		FontColor:           clonePtr(s.FontColor),
		FontOpacity:         clonePtr(s.FontOpacity),
		StrokeColor:         clonePtr(s.StrokeColor),
		StrokeWidth:         clonePtr(s.StrokeWidth),
		TextShadowEnabled:   clonePtr(s.TextShadowEnabled),
		BackgroundMask:      clonePtr(s.BackgroundMask),
		MaskOpacity:         clonePtr(s.MaskOpacity),
		TextRotationDegrees: clonePtr(s.TextRotationDegrees),
		LetterSpacingPx:     clonePtr(s.LetterSpacingPx),
		LineHeight:          clonePtr(s.LineHeight),
		BlurValuePx:         clonePtr(s.BlurValuePx),
	}
}

func setStr(dst *string, p *string) {
	if p != nil {
		*dst = *p
	}
}

func setNum(dst *float64, p *Number) {
	if p != nil {
		*dst = float64(*p)
	}
}

func setBool(dst *bool, p *bool) {
	if p != nil {
		*dst = *p
	}
}

// Apply returns r with every set field of s copied over it. Metadata fields
// are never touched.
func (s Settings) Apply(r meta.Record) meta.Record {
	setStr(&r.FontFamily, s.FontFamily)
	setStr(&r.FontWeight, s.FontWeight)
	setNum(&r.FontSizePercent, s.FontSizePercent)
	if s.FontPosition != nil && s.FontPosition.Valid() {
		r.FontPosition = *s.FontPosition
	}
	if s.DisplayMode != nil {
		r.DisplayMode = *s.DisplayMode
	}
	setStr(&r.FontColor, s.FontColor)
	setNum(&r.FontOpacity, s.FontOpacity)
	setStr(&r.StrokeColor, s.StrokeColor)
	setNum(&r.StrokeWidth, s.StrokeWidth)
	setBool(&r.TextShadowEnabled, s.TextShadowEnabled)
	setBool(&r.BackgroundMask, s.BackgroundMask)
	setNum(&r.MaskOpacity, s.MaskOpacity)
	setNum(&r.TextRotationDegrees, s.TextRotationDegrees)
	setNum(&r.LetterSpacingPx, s.LetterSpacingPx)
	setNum(&r.LineHeightMultiplier, s.LineHeight)
	setNum(&r.BlurValuePx, s.BlurValuePx)
	return r
}

// SettingsFrom captures the styling of r.
func SettingsFrom(r meta.Record) Settings {
	return Settings{
		FontFamily:          ptr(r.FontFamily),
		FontWeight:          ptr(r.FontWeight),
		FontSizePercent:     ptr(Number(r.FontSizePercent)),
		FontPosition:        ptr(r.FontPosition),
		DisplayMode:         ptr(r.DisplayMode),
		FontColor:           ptr(r.FontColor),
		FontOpacity:         ptr(Number(r.FontOpacity)),
		StrokeColor:         ptr(r.StrokeColor),
		StrokeWidth:         ptr(Number(r.StrokeWidth)),
		TextShadowEnabled:   ptr(r.TextShadowEnabled),
		BackgroundMask:      ptr(r.BackgroundMask),
		MaskOpacity:         ptr(Number(r.MaskOpacity)),
		TextRotationDegrees: ptr(Number(r.TextRotationDegrees)),
		LetterSpacingPx:     ptr(Number(r.LetterSpacingPx)),
		LineHeight:          ptr(Number(r.LineHeightMultiplier)),
		BlurValuePx:         ptr(Number(r.BlurValuePx)),
	}
}
