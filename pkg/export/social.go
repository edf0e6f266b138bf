package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"sort"

	xdraw "golang.org/x/image/draw"
	"k8s.io/klog/v2"

	"github.com/tstromberg/imgecho/pkg/layout"
)

// SafeArea is the margin, in preset pixels, that platform chrome covers.
type SafeArea struct {
	Top, Bottom, Left, Right int
}

// Preset is a social media output size.
type Preset struct {
	Key    string
	Name   string
	Width  int
	Height int
	Safe   SafeArea
}

var presets = map[string]Preset{
	"instagram_square":  {Key: "instagram_square", Name: "Instagram square", Width: 1080, Height: 1080},
	"instagram_story":   {Key: "instagram_story", Name: "Instagram story", Width: 1080, Height: 1920, Safe: SafeArea{Top: 250, Bottom: 250}},
	"wechat_moments":    {Key: "wechat_moments", Name: "WeChat moments", Width: 1280, Height: 1280},
	"weibo":             {Key: "weibo", Name: "Weibo", Width: 2048, Height: 2048},
	"youtube_thumbnail": {Key: "youtube_thumbnail", Name: "YouTube thumbnail", Width: 1280, Height: 720, Safe: SafeArea{Bottom: 80, Right: 180}},
	"twitter_post":      {Key: "twitter_post", Name: "Twitter post", Width: 1200, Height: 675},
	"facebook_post":     {Key: "facebook_post", Name: "Facebook post", Width: 1200, Height: 630},
}

// Presets returns every preset sorted by key.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// PresetByKey looks up a preset.
func PresetByKey(key string) (Preset, bool) {
	p, ok := presets[key]
	return p, ok
}

// Resize scales src onto a white preset-sized canvas.
func Resize(src image.Image, p Preset, mode layout.FitMode) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	xdraw.Draw(dst, dst.Bounds(), image.White, image.Point{}, xdraw.Src)

	sb := src.Bounds()
	r := layout.FitRect(
		layout.Size{W: float64(sb.Dx()), H: float64(sb.Dy())},
		layout.Size{W: float64(p.Width), H: float64(p.Height)},
		mode,
	)
	target := image.Rect(
		int(math.Round(r.X)), int(math.Round(r.Y)),
		int(math.Round(r.X+r.W)), int(math.Round(r.Y+r.H)),
	)
	xdraw.CatmullRom.Scale(dst, target, src, sb, xdraw.Over, nil)
	return dst
}

// ResizeToPreset resizes src for the named preset.
func ResizeToPreset(src image.Image, key string, mode layout.FitMode) (*image.RGBA, error) {
	p, ok := PresetByKey(key)
	if !ok {
		return nil, fmt.Errorf("unknown preset %q", key)
	}
	return Resize(src, p, mode), nil
}

var (
	safeFill   = color.NRGBA{R: 255, A: 26}
	safeBorder = color.NRGBA{R: 255, A: 128}
)

// DrawSafeArea tints the regions of dst that p's safe area covers and
// outlines the usable area. Margins are scaled to dst's size.
func DrawSafeArea(dst *image.RGBA, p Preset) {
	if p.Safe == (SafeArea{}) || p.Width == 0 || p.Height == 0 {
		return
	}
	b := dst.Bounds()
	sx := float64(b.Dx()) / float64(p.Width)
	sy := float64(b.Dy()) / float64(p.Height)
	top := b.Min.Y + int(float64(p.Safe.Top)*sy)
	bottom := b.Max.Y - int(float64(p.Safe.Bottom)*sy)
	left := b.Min.X + int(float64(p.Safe.Left)*sx)
	right := b.Max.X - int(float64(p.Safe.Right)*sx)

	tint := image.NewUniform(safeFill)
	for _, r := range []image.Rectangle{
		image.Rect(b.Min.X, b.Min.Y, b.Max.X, top),
		image.Rect(b.Min.X, bottom, b.Max.X, b.Max.Y),
		image.Rect(b.Min.X, top, left, bottom),
		image.Rect(right, top, b.Max.X, bottom),
	} {
		if !r.Empty() {
			xdraw.Draw(dst, r, tint, image.Point{}, xdraw.Over)
		}
	}

	line := image.NewUniform(safeBorder)
	for _, r := range []image.Rectangle{
		image.Rect(left, top, right, top+2),
		image.Rect(left, bottom-2, right, bottom),
		image.Rect(left, top, left+2, bottom),
		image.Rect(right-2, top, right, bottom),
	} {
		xdraw.Draw(dst, r, line, image.Point{}, xdraw.Over)
	}
}

// SocialBatch writes src resized for each preset key into a ZIP archive as
// <key>_<w>x<h>.jpg. Unknown keys are skipped.
func SocialBatch(ctx context.Context, w io.Writer, src image.Image, keys []string, mode layout.FitMode, o Options) (Result, error) {
	var res Result
	zw := newZipWriter(w)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		p, ok := PresetByKey(k)
		if !ok {
			klog.Warningf("skipping unknown preset %q", k)
			res.Failed++
			continue
		}
		var buf bytes.Buffer
		if err := Encode(&buf, Resize(src, p, mode), o); err != nil {
			klog.Errorf("encode %s: %v", k, err)
			res.Failed++
			continue
		}
		name := fmt.Sprintf("%s_%dx%d%s", p.Key, p.Width, p.Height, o.Format.Ext())
		f, err := zw.Create(name)
		if err != nil {
			return res, fmt.Errorf("zip create %s: %w", name, err)
		}
		if _, err := f.Write(buf.Bytes()); err != nil {
			return res, fmt.Errorf("zip write %s: %w", name, err)
		}
		res.Succeeded++
	}
	if err := zw.Close(); err != nil {
		return res, fmt.Errorf("zip close: %w", err)
	}
	return res, nil
}
