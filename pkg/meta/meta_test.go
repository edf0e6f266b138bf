package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleRecord() Record {
	r := DefaultRecord()
	r.Camera = "Canon EOS R5"
	r.Lens = "EF 24-70mm f/2.8L II USM"
	r.ISO = "100"
	r.Aperture = "f/8"
	r.Shutter = "1/125s"
	return r
}

func TestBuildTextLines(t *testing.T) {
	tests := []struct {
		name  string
		rec   Record
		notes string
		mode  DisplayMode
		want  []string
	}{
		{
			name: "empty",
			rec:  DefaultRecord(),
			mode: DisplayFull,
			want: []string{},
		},
		{
			name:  "whitespace only",
			rec:   Record{Camera: "   ", Lens: "\t"},
			notes: "  \n ",
			mode:  DisplayFull,
			want:  []string{},
		},
		{
			name: "full mode labels",
			rec:  Record{Camera: "X100V", ISO: "200"},
			mode: DisplayFull,
			want: []string{"Camera: X100V", "ISO: 200"},
		},
		{
			name: "simple mode values only",
			rec:  Record{Camera: "X100V", Copyright: "© me"},
			mode: DisplaySimple,
			want: []string{"X100V", "© me"},
		},
		{
			name:  "notes after separator",
			rec:   Record{Camera: "X100V"},
			notes: " first\nsecond ",
			mode:  DisplayCameraOnly,
			want:  []string{"X100V", Separator, "first", "second"},
		},
		{
			name:  "notes only has no separator",
			notes: "hello",
			mode:  DisplayFull,
			want:  []string{"hello"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildTextLines(tt.rec, tt.notes, tt.mode, nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildTextLinesOrderAndDeterminism(t *testing.T) {
	r := sampleRecord()
	r.Location = "Tokyo"
	r.Copyright = "© 2024"
	first := BuildTextLines(r, "n", DisplayFull, English)
	assert.Equal(t, []string{
		"Camera: Canon EOS R5",
		"Lens: EF 24-70mm f/2.8L II USM",
		"Location: Tokyo",
		"ISO: 100",
		"Aperture: f/8",
		"Shutter: 1/125s",
		"Copyright: © 2024",
		Separator,
		"n",
	}, first)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, BuildTextLines(r, "n", DisplayFull, English))
	}
}

func TestSeparatorLength(t *testing.T) {
	assert.Equal(t, 15, len([]rune(Separator)))
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, DefaultRecord().IsEmpty())
	assert.False(t, sampleRecord().IsEmpty())
	assert.False(t, Record{Notes: "x"}.IsEmpty())
}

func TestRecordCopyIsDeep(t *testing.T) {
	a := sampleRecord()
	b := a
	b.Camera = "other"
	b.LogoSettings.Tiled = true
	assert.Equal(t, "Canon EOS R5", a.Camera)
	assert.False(t, a.LogoSettings.Tiled)
}

func TestDescribeChange(t *testing.T) {
	base := sampleRecord()

	tests := []struct {
		name   string
		mutate func(*Record)
		want   string
	}{
		{"no change", func(*Record) {}, "Edit settings"},
		{"single field", func(r *Record) { r.ISO = "400" }, "ISO: 100 → 400"},
		{"cleared field", func(r *Record) { r.Lens = "" }, "Lens: EF 24-70mm f/2.8L II → empty"},
		{"toggle", func(r *Record) { r.TextShadowEnabled = false }, "Text shadow: on → off"},
		{"logo added", func(r *Record) { r.LogoID = "logo-1" }, "Add logo"},
		{"float", func(r *Record) { r.FontSizePercent = 4.5 }, "Font size: 3 → 4.5"},
		{
			"many changes",
			func(r *Record) {
				r.Camera = "A"
				r.Lens = "B"
				r.ISO = "C"
				r.Shutter = "D"
			},
			"Camera: Canon EOS R5 → A (3 changes)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := base
			tt.mutate(&next)
			assert.Equal(t, tt.want, DescribeChange(&base, next, English))
		})
	}
}

func TestDescribeChangeWithoutPrevious(t *testing.T) {
	assert.Equal(t, "Edit settings", DescribeChange(nil, sampleRecord(), nil))
}

func TestLabelsFallback(t *testing.T) {
	assert.Equal(t, "unknown-key", Labels{}.Label("unknown-key"))
	zh := Labels{KeySummary: "%s等%d项", "camera": "相机"}
	prev := Record{Camera: "a", Lens: "b"}
	next := Record{Camera: "c", Lens: "d"}
	assert.Equal(t, "相机: a → c等2项", DescribeChange(&prev, next, zh))
}

func TestWithCamera(t *testing.T) {
	r := DefaultRecord()
	r.Notes = "typed"
	r.Copyright = "me"
	r.Camera = "old"

	got := r.WithCamera(sampleRecord())
	assert.Equal(t, "Canon EOS R5", got.Camera)
	assert.Equal(t, "100", got.ISO)
	assert.Equal(t, "typed", got.Notes)
	assert.Equal(t, "me", got.Copyright)
	assert.Equal(t, r.FontFamily, got.FontFamily)

	got = r.WithExif(sampleRecord())
	assert.Empty(t, got.Notes)
	assert.Empty(t, got.Copyright)
}
