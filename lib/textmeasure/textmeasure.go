// Package textmeasure measures text runs against TrueType font metrics. It
// stands in for the browser text-measurement APIs when laying out labels.
package textmeasure

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"github.com/rivo/uniseg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

const TAB_SIZE = 4

type FontFamily string

const (
	Sans FontFamily = "sans"
	Mono FontFamily = "mono"
)

type FontStyle string

const (
	Regular    FontStyle = "regular"
	Bold       FontStyle = "bold"
	Italic     FontStyle = "italic"
	BoldItalic FontStyle = "bold-italic"
)

type Font struct {
	Family FontFamily
	Style  FontStyle
	Size   float64
}

func (f Font) sizeless() Font {
	f.Size = 0
	return f
}

func (f Font) String() string {
	return fmt.Sprintf("%s-%s-%v", f.Family, f.Style, f.Size)
}

// FamilyFromCSS maps a CSS font-family list onto a loaded family.
func FamilyFromCSS(css string) FontFamily {
	css = strings.ToLower(css)
	if strings.Contains(css, "mono") || strings.Contains(css, "courier") {
		return Mono
	}
	return Sans
}

var builtinFaces = map[Font][]byte{
	{Family: Sans, Style: Regular}:    goregular.TTF,
	{Family: Sans, Style: Bold}:       gobold.TTF,
	{Family: Sans, Style: Italic}:     goitalic.TTF,
	{Family: Sans, Style: BoldItalic}: gobolditalic.TTF,
	{Family: Mono, Style: Regular}:    gomono.TTF,
}

// Ruler measures text. It is safe for concurrent use.
type Ruler struct {
	LineHeightFactor float64

	mu    sync.Mutex
	ttfs  map[Font]*truetype.Font
	faces map[Font]font.Face
}

func NewRuler() (*Ruler, error) {
	r := &Ruler{
		LineHeightFactor: 1.,
		ttfs:             make(map[Font]*truetype.Font),
		faces:            make(map[Font]font.Face),
	}
	for f, data := range builtinFaces {
		ttf, err := truetype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse font %s: %w", f, err)
		}
		r.ttfs[f] = ttf
	}
	return r, nil
}

// LoadFont registers a TrueType font for family and style, replacing any
// builtin face.
func (r *Ruler) LoadFont(family FontFamily, style FontStyle, data []byte) error {
	ttf, err := truetype.Parse(data)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := Font{Family: family, Style: style}
	r.ttfs[key] = ttf
	for f := range r.faces {
		if f.sizeless() == key {
			delete(r.faces, f)
		}
	}
	return nil
}

func (r *Ruler) face(f Font) font.Face {
	if face, ok := r.faces[f]; ok {
		return face
	}
	ttf, ok := r.ttfs[f.sizeless()]
	if !ok {
		ttf = r.ttfs[Font{Family: f.Family, Style: Regular}]
	}
	if ttf == nil {
		ttf = r.ttfs[Font{Family: Sans, Style: Regular}]
	}
	face := truetype.NewFace(ttf, &truetype.Options{
		Size:    f.Size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	r.faces[f] = face
	return face
}

// Measure returns the width of the widest line of s and the height of all
// its lines.
func (r *Ruler) Measure(f Font, s string) (width, height float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	face := r.face(f)
	lines := strings.Split(s, "\n")
	for _, line := range lines {
		width = math.Max(width, r.lineWidth(face, line))
	}
	metrics := face.Metrics()
	lineHeight := i2f(metrics.Height) * r.LineHeightFactor
	return math.Ceil(width), math.Ceil(lineHeight * float64(len(lines)))
}

// MeasureWidth returns the rendered width of a single line of s.
func (r *Ruler) MeasureWidth(f Font, s string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lineWidth(r.face(f), s)
}

// DrawString draws a single line of s onto dst with its baseline starting
// at (x, y).
func (r *Ruler) DrawString(dst *image.RGBA, f Font, x, y float64, c color.Color, s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: r.face(f),
		Dot:  fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(y * 64)},
	}
	d.DrawString(strings.ReplaceAll(s, "\t", strings.Repeat(" ", TAB_SIZE)))
}

func (r *Ruler) lineWidth(face font.Face, line string) float64 {
	var w fixed.Int26_6
	prev := rune(-1)
	gr := uniseg.NewGraphemes(line)
	for gr.Next() {
		runes := gr.Runes()
		if len(runes) == 1 && runes[0] == '\t' {
			space, _ := face.GlyphAdvance(' ')
			w += space * TAB_SIZE
			prev = -1
			continue
		}
		adv, ok := face.GlyphAdvance(runes[0])
		if !ok {
			// Missing glyph. Approximate with the width of a digit scaled by
			// the grapheme's display width.
			digit, _ := face.GlyphAdvance('0')
			adv = digit * fixed.Int26_6(uniseg.StringWidth(gr.Str()))
		}
		if prev >= 0 {
			w += face.Kern(prev, runes[0])
		}
		w += adv
		prev = runes[len(runes)-1]
	}
	return i2f(w)
}

func i2f(i fixed.Int26_6) float64 {
	return float64(i) / (1 << 6)
}

// GraphemeBoundaries returns the byte offsets of every grapheme cluster
// boundary in s, including 0 and len(s).
func GraphemeBoundaries(s string) []int {
	bounds := []int{0}
	gr := uniseg.NewGraphemes(s)
	for gr.Next() {
		_, to := gr.Positions()
		bounds = append(bounds, to)
	}
	return bounds
}
