package meta

// Labeler turns label keys into display strings.
type Labeler interface {
	Label(key string) string
}

// Label keys used outside of the field names.
const (
	KeyEnabled       = "enabled"
	KeyDisabled      = "disabled"
	KeyEmpty         = "empty"
	KeyDefaultChange = "operationMetadataChange"
	KeyLogoAdded     = "logoAdded"
	KeyLogoRemoved   = "logoRemoved"
	KeyLogoChanged   = "logoChanged"
	// KeySummary is a format string taking the first change and the change count.
	KeySummary = "changesSummary"
)

// Labels is a Labeler backed by a map. Missing keys render as the key itself.
type Labels map[string]string

// Label implements Labeler.
func (l Labels) Label(key string) string {
	if v, ok := l[key]; ok {
		return v
	}
	return key
}

// English is the default label table.
var English = Labels{
	"camera":               "Camera",
	"lens":                 "Lens",
	"location":             "Location",
	"iso":                  "ISO",
	"aperture":             "Aperture",
	"shutter":              "Shutter",
	"copyright":            "Copyright",
	"notes":                "Notes",
	"fontFamily":           "Font",
	"fontWeight":           "Font weight",
	"fontSizePercent":      "Font size",
	"fontPosition":         "Text position",
	"displayMode":          "Display mode",
	"fontColor":            "Text color",
	"fontOpacity":          "Text opacity",
	"strokeColor":          "Stroke color",
	"strokeWidth":          "Stroke width",
	"textShadowEnabled":    "Text shadow",
	"backgroundMask":       "Background mask",
	"maskOpacity":          "Mask opacity",
	"textRotationDegrees":  "Text rotation",
	"letterSpacingPx":      "Letter spacing",
	"lineHeightMultiplier": "Line height",
	"blurValuePx":          "Blur",
	"logoId":               "Logo",
	KeyEnabled:             "on",
	KeyDisabled:            "off",
	KeyEmpty:               "empty",
	KeyDefaultChange:       "Edit settings",
	KeyLogoAdded:           "Add logo",
	KeyLogoRemoved:         "Remove logo",
	KeyLogoChanged:         "Change logo",
	KeySummary:             "%s (%d changes)",
}

func labelerOrDefault(l Labeler) Labeler {
	if l == nil {
		return English
	}
	return l
}
