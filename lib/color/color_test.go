package color

import (
	stdcolor "image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		in  string
		exp string
		err bool
	}{
		{in: "#FFF", exp: "#ffffff"},
		{in: "red", exp: "#ff0000"},
		{in: "rgb(0, 128, 0)", exp: "#008000"},
		{in: "none", exp: "none"},
		{in: "", exp: ""},
		{in: "not-a-color", err: true},
	}
	for _, tc := range tcs {
		got, err := Normalize(tc.in)
		if tc.err {
			assert.Error(t, err, tc.in)
			continue
		}
		assert.NoError(t, err, tc.in)
		assert.Equal(t, tc.exp, got, tc.in)
	}
}

func TestGradientStops(t *testing.T) {
	t.Parallel()

	stops, err := GradientStops("#336699", 2)
	assert.NoError(t, err)
	assert.Len(t, stops, 2)
	assert.Equal(t, "#336699", stops[1])

	l0, _ := Luminance(stops[0])
	l1, _ := Luminance(stops[1])
	assert.Greater(t, l0, l1)
}

func TestRGBA(t *testing.T) {
	t.Parallel()

	c, err := RGBA("#ff8000")
	assert.NoError(t, err)
	assert.Equal(t, stdcolor.RGBA{R: 255, G: 128, B: 0, A: 255}, c)

	c, err = RGBA("None")
	assert.NoError(t, err)
	assert.Equal(t, uint8(0), c.A)

	_, err = RGBA("not-a-color")
	assert.Error(t, err)
}
