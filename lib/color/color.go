// Package color normalizes CSS colors for property rendering.
package color

import (
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mazznoer/csscolorparser"
)

const (
	Empty = ""
	None  = "none"
)

// Normalize parses any CSS color and returns it as #rrggbb. "none" and the
// empty string pass through unchanged.
func Normalize(colorString string) (string, error) {
	s := strings.TrimSpace(colorString)
	if s == Empty || strings.EqualFold(s, None) {
		return strings.ToLower(s), nil
	}
	c, err := parse(s)
	if err != nil {
		return "", err
	}
	return c.Hex(), nil
}

func parse(colorString string) (colorful.Color, error) {
	c, err := csscolorparser.Parse(colorString)
	if err != nil {
		return colorful.Color{}, err
	}
	return colorful.Color{R: c.R, G: c.G, B: c.B}, nil
}

func Darken(colorString string) (string, error) {
	return shift(colorString, -.1)
}

func Lighten(colorString string) (string, error) {
	return shift(colorString, .1)
}

func shift(colorString string, dl float64) (string, error) {
	c, err := parse(colorString)
	if err != nil {
		return "", err
	}
	h, s, l := c.Hsl()
	return colorful.Hsl(h, s, l+dl).Clamped().Hex(), nil
}

// GradientStops returns the stop colors used when a gradient is tinted with
// base: a lightened start fading to base itself.
func GradientStops(base string, n int) ([]string, error) {
	c, err := parse(base)
	if err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, nil
	}
	h, s, l := c.Hsl()
	light := colorful.Hsl(h, s, l+(1-l)*.6).Clamped()
	stops := make([]string, n)
	for i := range stops {
		t := 1.
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		if t == 1 {
			stops[i] = c.Hex()
			continue
		}
		stops[i] = light.BlendLab(c, t).Clamped().Hex()
	}
	return stops, nil
}

func Luminance(colorString string) (float64, error) {
	c, err := parse(colorString)
	if err != nil {
		return 0, err
	}
	return 0.299*c.R + 0.587*c.G + 0.114*c.B, nil
}

// RGBA converts a CSS color to an image color. "none" is fully transparent.
func RGBA(colorString string) (color.RGBA, error) {
	if strings.EqualFold(strings.TrimSpace(colorString), None) {
		return color.RGBA{}, nil
	}
	c, err := csscolorparser.Parse(colorString)
	if err != nil {
		return color.RGBA{}, err
	}
	r, g, b, a := c.RGBA255()
	return color.RGBA{R: r, G: g, B: b, A: a}, nil
}
