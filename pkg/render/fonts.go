package render

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"k8s.io/klog/v2"
)

type weightClass int

const (
	weightRegular weightClass = iota
	weightMedium
	weightBold
)

// classifyWeight maps CSS-style weights ("normal", "bold", "300", "600") to
// the three embedded cuts.
func classifyWeight(w string) weightClass {
	w = strings.ToLower(strings.TrimSpace(w))
	switch w {
	case "bold", "bolder":
		return weightBold
	case "", "normal", "lighter":
		return weightRegular
	}
	n, err := strconv.Atoi(w)
	if err != nil {
		return weightRegular
	}
	switch {
	case n >= 700:
		return weightBold
	case n >= 500:
		return weightMedium
	default:
		return weightRegular
	}
}

func isMonospace(family string) bool {
	f := strings.ToLower(family)
	return strings.Contains(f, "mono") || strings.Contains(f, "courier")
}

type faceKey struct {
	mono   bool
	weight weightClass
	size   int64 // 1/64 px
}

// FontManager hands out font faces for a family, weight and pixel size.
// Families map onto the embedded Go fonts unless a custom TTF is configured,
// in which case every family uses it.
type FontManager struct {
	mu     sync.Mutex
	custom *opentype.Font
	fonts  map[string]*opentype.Font
	faces  map[faceKey]font.Face
}

// NewFontManager returns a manager. An unreadable customPath logs a warning
// and falls back to the embedded fonts.
func NewFontManager(customPath string) (*FontManager, error) {
	fm := &FontManager{
		fonts: map[string]*opentype.Font{},
		faces: map[faceKey]font.Face{},
	}
	if customPath == "" {
		return fm, nil
	}

	data, err := os.ReadFile(customPath)
	if err != nil {
		klog.Warningf("could not load font %q, using default: %v", customPath, err)
		return fm, nil
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %q: %w", customPath, err)
	}
	fm.custom = f
	return fm, nil
}

func (fm *FontManager) embedded(mono bool, w weightClass) (*opentype.Font, error) {
	var name string
	var data []byte
	switch {
	case mono && w == weightBold:
		name, data = "gomonobold", gomonobold.TTF
	case mono:
		name, data = "gomono", gomono.TTF
	case w == weightBold:
		name, data = "gobold", gobold.TTF
	case w == weightMedium:
		name, data = "gomedium", gomedium.TTF
	default:
		name, data = "goregular", goregular.TTF
	}

	if f, ok := fm.fonts[name]; ok {
		return f, nil
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	fm.fonts[name] = f
	return f, nil
}

// Face returns a cached face. Faces are not safe for concurrent use; callers
// serialize drawing.
func (fm *FontManager) Face(family, weight string, sizePx float64) (font.Face, error) {
	key := faceKey{
		mono:   isMonospace(family),
		weight: classifyWeight(weight),
		size:   int64(math.Round(sizePx * 64)),
	}

	fm.mu.Lock()
	defer fm.mu.Unlock()

	if f, ok := fm.faces[key]; ok {
		return f, nil
	}

	src := fm.custom
	if src == nil {
		var err error
		src, err = fm.embedded(key.mono, key.weight)
		if err != nil {
			return nil, err
		}
	}

	face, err := opentype.NewFace(src, &opentype.FaceOptions{
		Size:    sizePx,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("new face: %w", err)
	}
	fm.faces[key] = face
	return face, nil
}
