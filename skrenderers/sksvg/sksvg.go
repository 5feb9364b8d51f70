// Package sksvg renders a canvas into a standalone SVG document: editor
// controls and hidden elements are dropped, editor attributes are stripped
// and the view box is cropped to the content.
package sksvg

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"

	svg "github.com/ajstarks/svgo"

	"cdr.dev/slog"

	"github.com/stencilkit/stencilkit/lib/geo"
	"github.com/stencilkit/stencilkit/lib/log"
	"github.com/stencilkit/stencilkit/lib/svgdom"
	"github.com/stencilkit/stencilkit/skgraph"
)

// editorClasses are group classes that only exist for interaction.
var editorClasses = map[string]struct{}{
	"controls": {},
	"underlay": {},
	"magnets":  {},
	"dockers":  {},
}

type RenderOpts struct {
	// Pad overrides the configured export padding.
	Pad *int64
	// EscapeText writes non-ASCII text as character references.
	EscapeText *bool
	Title      string
}

func Render(ctx context.Context, c *skgraph.Canvas, opts *RenderOpts) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pad := c.Config().Export.Padding
	escape := false
	var title string
	if opts != nil {
		if opts.Pad != nil {
			pad = float64(*opts.Pad)
		}
		if opts.EscapeText != nil {
			escape = *opts.EscapeText
		}
		title = opts.Title
	}

	doc := c.Document().Clone()
	pruned := prune(doc)
	log.Debug(ctx, "pruned editor elements", slog.F("count", pruned))

	box := Bounds(c, pad)
	ul := box.UpperLeft()
	x, y := ul.X, ul.Y
	w, h := box.Width(), box.Height()

	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Startraw(
		fmt.Sprintf(`width="%s"`, num(w)),
		fmt.Sprintf(`height="%s"`, num(h)),
		fmt.Sprintf(`viewBox="%s %s %s %s"`, num(x), num(y), num(w), num(h)),
	)
	if title != "" {
		canvas.Title(title)
	}
	encOpts := svgdom.EncodeOptions{Fragment: true, ASCII: escape}
	for _, child := range doc.Children {
		if err := child.EncodeWith(canvas.Writer, encOpts); err != nil {
			return nil, err
		}
	}
	canvas.End()
	return buf.Bytes(), nil
}

// prune removes everything from root that does not belong in an exported
// picture and returns how many elements were dropped.
func prune(root *svgdom.Element) int {
	n := 0
	var visit func(e *svgdom.Element)
	visit = func(e *svgdom.Element) {
		kept := e.Children[:0]
		for _, child := range e.Children {
			if dropped(child) {
				n++
				continue
			}
			kept = append(kept, child)
		}
		for i := len(kept); i < len(e.Children); i++ {
			e.Children[i] = nil
		}
		e.Children = kept
		attrs := e.Attrs[:0]
		for _, a := range e.Attrs {
			switch a.Name.Space {
			case "", svgdom.NamespaceSVG, svgdom.NamespaceXLink, svgdom.NamespaceXML:
				attrs = append(attrs, a)
			}
		}
		e.Attrs = attrs
		for _, child := range e.Children {
			visit(child)
		}
	}
	visit(root)
	return n
}

func dropped(e *svgdom.Element) bool {
	if e.Name.Space != svgdom.NamespaceSVG && e.Name.Space != "" {
		return true
	}
	if _, ok := editorClasses[e.Attr("class")]; ok {
		return true
	}
	return e.IsHidden()
}

func num(f float64) string {
	return strconv.FormatFloat(math.Round(f*1000)/1000, 'f', -1, 64)
}

// Bounds is the view box Render would use for c.
func Bounds(c *skgraph.Canvas, pad float64) *geo.Bounds {
	box := c.ContentBounds()
	if box == nil {
		box = c.Bounds().Copy()
	}
	box.Widen(pad)
	return box
}
