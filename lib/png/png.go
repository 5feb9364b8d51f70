// Package png rasterizes exported SVG documents.
package png

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	stdpng "image/png"
	"math"
	"strings"

	"cdr.dev/slog"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"oss.terrastruct.com/util-go/xdefer"

	skcolor "github.com/stencilkit/stencilkit/lib/color"
	"github.com/stencilkit/stencilkit/lib/log"
	"github.com/stencilkit/stencilkit/lib/svg"
	"github.com/stencilkit/stencilkit/lib/svgdom"
	"github.com/stencilkit/stencilkit/lib/textmeasure"
)

// MaxPixels bounds the size of a rendered image.
const MaxPixels = 64 << 20

type viewBox struct {
	x, y, w, h float64
}

func readViewBox(doc *svgdom.Element) (viewBox, error) {
	if fields := strings.Fields(strings.ReplaceAll(doc.Attr("viewBox"), ",", " ")); len(fields) == 4 {
		var vb viewBox
		var ok [4]bool
		vb.x, ok[0] = svg.ParseNumber(fields[0])
		vb.y, ok[1] = svg.ParseNumber(fields[1])
		vb.w, ok[2] = svg.ParseNumber(fields[2])
		vb.h, ok[3] = svg.ParseNumber(fields[3])
		if ok == [4]bool{true, true, true, true} {
			return vb, nil
		}
	}
	w, okW := svg.ParseNumber(doc.Attr("width"))
	h, okH := svg.ParseNumber(doc.Attr("height"))
	if !okW || !okH {
		return viewBox{}, fmt.Errorf("missing viewBox and size")
	}
	return viewBox{w: w, h: h}, nil
}

// FromSVG renders data onto a white background at scale and encodes the
// result as PNG. The rasterizer draws shapes only, so text is drawn on top
// with the faces of ruler.
func FromSVG(ctx context.Context, data []byte, scale float64, ruler *textmeasure.Ruler) (_ []byte, err error) {
	defer xdefer.Errorf(&err, "failed to rasterize svg")

	if scale <= 0 {
		return nil, fmt.Errorf("invalid scale %v", scale)
	}
	doc, err := svgdom.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	vb, err := readViewBox(doc)
	if err != nil {
		return nil, err
	}
	w := int(math.Ceil(vb.w * scale))
	h := int(math.Ceil(vb.h * scale))
	if w <= 0 || h <= 0 || w*h > MaxPixels {
		return nil, fmt.Errorf("invalid image size %dx%d", w, h)
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, err
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	raster := rasterx.NewDasher(w, h, scanner)
	icon.Draw(raster, 1.0)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ruler != nil {
		t := &textPainter{
			ctx:   ctx,
			img:   img,
			ruler: ruler,
			vb:    vb,
			scale: scale,
		}
		t.walk(doc, 0, 0)
		log.Debug(ctx, "drew text", slog.F("runs", t.runs), slog.F("skipped", t.skipped))
	}

	var buf bytes.Buffer
	if err := stdpng.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type textPainter struct {
	ctx   context.Context
	img   *image.RGBA
	ruler *textmeasure.Ruler
	vb    viewBox
	scale float64

	runs    int
	skipped int
}

// translation returns the offset of a translate() transform. ok is false
// for any other transform.
func translation(transform string) (dx, dy float64, ok bool) {
	transform = strings.TrimSpace(transform)
	if transform == "" {
		return 0, 0, true
	}
	if !strings.HasPrefix(transform, "translate(") || !strings.HasSuffix(transform, ")") {
		return 0, 0, false
	}
	args := strings.Fields(strings.ReplaceAll(transform[len("translate("):len(transform)-1], ",", " "))
	if len(args) == 0 || len(args) > 2 {
		return 0, 0, false
	}
	dx, ok = svg.ParseNumber(args[0])
	if !ok {
		return 0, 0, false
	}
	if len(args) == 2 {
		dy, ok = svg.ParseNumber(args[1])
	}
	return dx, dy, ok
}

func (t *textPainter) walk(e *svgdom.Element, tx, ty float64) {
	if e.IsHidden() {
		return
	}
	dx, dy, ok := translation(e.Attr("transform"))
	if !ok {
		t.skipped++
		return
	}
	tx, ty = tx+dx, ty+dy
	if e.Local() == "text" {
		t.text(e, tx, ty)
		return
	}
	for _, c := range e.Children {
		t.walk(c, tx, ty)
	}
}

func (t *textPainter) text(e *svgdom.Element, tx, ty float64) {
	size, ok := svg.ParseNumber(e.Presentation("font-size"))
	if !ok {
		size = 12
	}
	f := textmeasure.Font{
		Family: textmeasure.FamilyFromCSS(e.Presentation("font-family")),
		Style:  style(e),
		Size:   size * t.scale,
	}
	fill := color.Color(color.Black)
	if v := e.Presentation("fill"); v != "" {
		c, err := skcolor.RGBA(v)
		if err != nil {
			log.Warn(t.ctx, "unsupported text fill", slog.F("fill", v))
		} else {
			fill = c
		}
	}
	anchor := e.Presentation("text-anchor")

	paint := func(x, y float64, s string) {
		if s == "" {
			return
		}
		px := (x + tx - t.vb.x) * t.scale
		py := (y + ty - t.vb.y) * t.scale
		switch anchor {
		case "middle":
			px -= t.ruler.MeasureWidth(f, s) / 2
		case "end":
			px -= t.ruler.MeasureWidth(f, s)
		}
		t.ruler.DrawString(t.img, f, px, py, fill, s)
		t.runs++
	}

	x, _ := svg.ParseNumber(e.Attr("x"))
	y, _ := svg.ParseNumber(e.Attr("y"))
	paint(x, y, e.Text)
	for _, span := range e.Children {
		if span.Local() != "tspan" || span.IsHidden() {
			continue
		}
		sx, ok := svg.ParseNumber(span.Attr("x"))
		if !ok {
			sx = x
		}
		sy, ok := svg.ParseNumber(span.Attr("y"))
		if !ok {
			sy = y
		}
		sdy, _ := svg.ParseNumber(span.Attr("dy"))
		paint(sx, sy+sdy, span.Text)
	}
}

func style(e *svgdom.Element) textmeasure.FontStyle {
	bold := e.Presentation("font-weight") == "bold"
	italic := e.Presentation("font-style") == "italic"
	switch {
	case bold && italic:
		return textmeasure.BoldItalic
	case bold:
		return textmeasure.Bold
	case italic:
		return textmeasure.Italic
	}
	return textmeasure.Regular
}
