package png_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	stdpng "image/png"
	"testing"

	tassert "github.com/stretchr/testify/assert"

	"oss.terrastruct.com/util-go/assert"

	"github.com/stencilkit/stencilkit/lib/log"
	"github.com/stencilkit/stencilkit/lib/png"
	"github.com/stencilkit/stencilkit/lib/textmeasure"
)

const doc = `<?xml version="1.0"?>
<svg xmlns="http://www.w3.org/2000/svg" width="100" height="50" viewBox="10 10 100 50">
<rect x="10" y="10" width="40" height="20" fill="#ff0000"/>
<g transform="translate(60,10)">
<text x="20" y="0" font-size="12" text-anchor="middle" fill="#000000"><tspan x="20" y="0" dy="30">Task</tspan></text>
</g>
<g transform="rotate(45)"><text x="0" y="0">skipped</text></g>
</svg>`

func decode(t *testing.T, b []byte) image.Image {
	t.Helper()
	img, err := stdpng.Decode(bytes.NewReader(b))
	assert.Success(t, err)
	return img
}

func rgba(c color.Color) color.RGBA {
	return color.RGBAModel.Convert(c).(color.RGBA)
}

func TestFromSVG(t *testing.T) {
	t.Parallel()

	ctx := log.WithTB(context.Background(), t, nil)
	ruler, err := textmeasure.NewRuler()
	assert.Success(t, err)

	out, err := png.FromSVG(ctx, []byte(doc), 2, ruler)
	assert.Success(t, err)
	img := decode(t, out)
	assert.Equal(t, image.Rect(0, 0, 200, 100), img.Bounds())

	assert.Equal(t, color.RGBA{R: 255, A: 255}, rgba(img.At(20, 20)))
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, rgba(img.At(150, 5)))

	// The label is drawn around (140, 60) in image space.
	dark := 0
	for x := 110; x < 170; x++ {
		for y := 40; y < 65; y++ {
			if rgba(img.At(x, y)).R < 128 {
				dark++
			}
		}
	}
	tassert.Greater(t, dark, 0)
}

func TestFromSVGWithoutRuler(t *testing.T) {
	t.Parallel()

	ctx := log.WithTB(context.Background(), t, nil)
	out, err := png.FromSVG(ctx, []byte(doc), 1, nil)
	assert.Success(t, err)
	img := decode(t, out)
	assert.Equal(t, image.Rect(0, 0, 100, 50), img.Bounds())
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, rgba(img.At(80, 40)))
}

func TestFromSVGErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		doc   string
		scale float64
	}{
		{name: "scale", doc: doc, scale: 0},
		{name: "malformed", doc: "<svg", scale: 1},
		{name: "no_size", doc: `<svg xmlns="http://www.w3.org/2000/svg"/>`, scale: 1},
		{name: "too_large", doc: `<svg xmlns="http://www.w3.org/2000/svg" width="100000" height="100000"/>`, scale: 1},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ctx := log.WithTB(context.Background(), t, nil)
			_, err := png.FromSVG(ctx, []byte(tc.doc), tc.scale, nil)
			tassert.Error(t, err)
		})
	}
}
