// Package skpdf exports canvases as pages of a PDF document.
package skpdf

import (
	"context"

	"cdr.dev/slog"

	"oss.terrastruct.com/util-go/xdefer"

	"github.com/stencilkit/stencilkit/lib/log"
	"github.com/stencilkit/stencilkit/lib/pdf"
	"github.com/stencilkit/stencilkit/lib/png"
	"github.com/stencilkit/stencilkit/lib/textmeasure"
	"github.com/stencilkit/stencilkit/skgraph"
	"github.com/stencilkit/stencilkit/skrenderers/sksvg"
	"github.com/stencilkit/stencilkit/skstencil"
)

// SCALE is the rasterization factor of page images.
const SCALE = 2

type Page struct {
	Title  []string
	Canvas *skgraph.Canvas
	// Fill is the page background. Empty means white.
	Fill string
}

func Render(ctx context.Context, ruler *textmeasure.Ruler, pages []Page, opts *sksvg.RenderOpts) (_ []byte, err error) {
	defer xdefer.Errorf(&err, "failed to export pdf")

	doc := pdf.Init()
	for i, p := range pages {
		svg, err := sksvg.Render(ctx, p.Canvas, opts)
		if err != nil {
			return nil, err
		}
		img, err := png.FromSVG(ctx, svg, SCALE, ruler)
		if err != nil {
			return nil, err
		}
		pad := p.Canvas.Config().Export.Padding
		if opts != nil && opts.Pad != nil {
			pad = float64(*opts.Pad)
		}
		ul := sksvg.Bounds(p.Canvas, pad).UpperLeft()
		links := Links(p.Canvas)
		err = doc.AddPDFPage(img, p.Title, p.Fill, links, SCALE, ul.X, ul.Y)
		if err != nil {
			return nil, err
		}
		log.Debug(ctx, "added pdf page", slog.F("page", i+1), slog.F("links", len(links)))
	}
	return doc.Bytes()
}

// Links are the areas of shapes carrying a URL property value.
func Links(c *skgraph.Canvas) []pdf.Link {
	var links []pdf.Link
	for _, s := range c.Shapes() {
		for _, p := range s.Stencil().Properties {
			if p.Type != skstencil.TypeURL {
				continue
			}
			v := s.Property(p.ID)
			if v == nil || v.String() == "" {
				continue
			}
			b := s.AbsoluteBounds()
			ul := b.UpperLeft()
			links = append(links, pdf.Link{
				X:      ul.X,
				Y:      ul.Y,
				Width:  b.Width(),
				Height: b.Height(),
				URL:    v.String(),
			})
			break
		}
	}
	return links
}
