package meta

import (
	"fmt"
	"strconv"
)

// maxDescribedChanges caps how many differing fields are collected.
const maxDescribedChanges = 3

type fieldGetter struct {
	key string
	get func(Record) string
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// describedFields is the comparison order used by DescribeChange.
var describedFields = []fieldGetter{
	{"camera", func(r Record) string { return r.Camera }},
	{"lens", func(r Record) string { return r.Lens }},
	{"location", func(r Record) string { return r.Location }},
	{"iso", func(r Record) string { return r.ISO }},
	{"aperture", func(r Record) string { return r.Aperture }},
	{"shutter", func(r Record) string { return r.Shutter }},
	{"copyright", func(r Record) string { return r.Copyright }},
	{"notes", func(r Record) string { return r.Notes }},
	{"fontFamily", func(r Record) string { return r.FontFamily }},
	{"fontWeight", func(r Record) string { return r.FontWeight }},
	{"fontSizePercent", func(r Record) string { return formatFloat(r.FontSizePercent) }},
	{"fontPosition", func(r Record) string { return string(r.FontPosition) }},
	{"displayMode", func(r Record) string { return string(r.DisplayMode) }},
	{"fontColor", func(r Record) string { return r.FontColor }},
	{"fontOpacity", func(r Record) string { return formatFloat(r.FontOpacity) }},
	{"strokeColor", func(r Record) string { return r.StrokeColor }},
	{"strokeWidth", func(r Record) string { return formatFloat(r.StrokeWidth) }},
	{"textShadowEnabled", nil},
	{"backgroundMask", nil},
	{"maskOpacity", func(r Record) string { return formatFloat(r.MaskOpacity) }},
	{"textRotationDegrees", func(r Record) string { return formatFloat(r.TextRotationDegrees) }},
	{"letterSpacingPx", func(r Record) string { return formatFloat(r.LetterSpacingPx) }},
	{"lineHeightMultiplier", func(r Record) string { return formatFloat(r.LineHeightMultiplier) }},
	{"blurValuePx", func(r Record) string { return formatFloat(r.BlurValuePx) }},
	{"logoId", nil},
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) > n {
		return string(rs[:n])
	}
	return s
}

// DescribeChange summarizes how next differs from prev, for history labels.
// At most three differences are collected; one is shown verbatim, more are
// folded into the summary format. A nil prev yields the generic label.
func DescribeChange(prev *Record, next Record, l Labeler) string {
	l = labelerOrDefault(l)
	if prev == nil {
		return l.Label(KeyDefaultChange)
	}

	toggle := func(on bool) string {
		if on {
			return l.Label(KeyEnabled)
		}
		return l.Label(KeyDisabled)
	}

	var changes []string
	for _, fg := range describedFields {
		if len(changes) >= maxDescribedChanges {
			break
		}
		label := l.Label(fg.key)

		switch fg.key {
		case "textShadowEnabled":
			if prev.TextShadowEnabled != next.TextShadowEnabled {
				changes = append(changes, fmt.Sprintf("%s: %s → %s", label, toggle(prev.TextShadowEnabled), toggle(next.TextShadowEnabled)))
			}
			continue
		case "backgroundMask":
			if prev.BackgroundMask != next.BackgroundMask {
				changes = append(changes, fmt.Sprintf("%s: %s → %s", label, toggle(prev.BackgroundMask), toggle(next.BackgroundMask)))
			}
			continue
		case "logoId":
			switch {
			case prev.LogoID == next.LogoID:
			case prev.LogoID == "":
				changes = append(changes, l.Label(KeyLogoAdded))
			case next.LogoID == "":
				changes = append(changes, l.Label(KeyLogoRemoved))
			default:
				changes = append(changes, l.Label(KeyLogoChanged))
			}
			continue
		}

		a, b := fg.get(*prev), fg.get(next)
		if a == b {
			continue
		}
		a, b = truncate(a, 20), truncate(b, 20)
		if a == "" {
			a = l.Label(KeyEmpty)
		}
		if b == "" {
			b = l.Label(KeyEmpty)
		}
		changes = append(changes, fmt.Sprintf("%s: %s → %s", label, a, b))
	}

	switch len(changes) {
	case 0:
		return l.Label(KeyDefaultChange)
	case 1:
		return changes[0]
	default:
		return fmt.Sprintf(l.Label(KeySummary), changes[0], len(changes))
	}
}
