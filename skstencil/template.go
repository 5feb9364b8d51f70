package skstencil

import (
	"fmt"
	"math"
	"strings"

	"github.com/stencilkit/stencilkit/lib/geo"
	"github.com/stencilkit/stencilkit/lib/label"
	"github.com/stencilkit/stencilkit/lib/svg"
	"github.com/stencilkit/stencilkit/lib/svgdom"
)

// PrimitiveKind is the SVG element a sub-shape is drawn with.
type PrimitiveKind string

const (
	PrimitiveRect     PrimitiveKind = "rect"
	PrimitiveCircle   PrimitiveKind = "circle"
	PrimitiveEllipse  PrimitiveKind = "ellipse"
	PrimitivePath     PrimitiveKind = "path"
	PrimitiveLine     PrimitiveKind = "line"
	PrimitivePolyline PrimitiveKind = "polyline"
	PrimitivePolygon  PrimitiveKind = "polygon"
	PrimitiveImage    PrimitiveKind = "image"
)

var primitiveKinds = map[string]PrimitiveKind{
	"rect":     PrimitiveRect,
	"circle":   PrimitiveCircle,
	"ellipse":  PrimitiveEllipse,
	"path":     PrimitivePath,
	"line":     PrimitiveLine,
	"polyline": PrimitivePolyline,
	"polygon":  PrimitivePolygon,
	"image":    PrimitiveImage,
}

// Primitive describes one geometric sub-shape of a node template in template
// coordinates. Index is its position in the document order of primitives of
// the template body, which instances use to find their cloned element.
type Primitive struct {
	Index int
	Kind  PrimitiveKind
	ID    string

	Box     *geo.Box
	Anchors label.Anchors
	// ResizeH and ResizeV report whether the primitive scales with its shape
	// on that axis.
	ResizeH bool
	ResizeV bool

	Path   *svg.Path
	Points []*geo.Point
}

type MagnetDef struct {
	Center  geo.Point
	Anchors label.Anchors
	Default bool
}

type DockerDef struct {
	Center  geo.Point
	Anchors label.Anchors
}

// TextDef is a label declared by a <text> element of the template.
type TextDef struct {
	ID           string
	X, Y         float64
	Align        label.HAlign
	Valign       label.VAlign
	Anchors      label.Anchors
	EdgePosition label.EdgePosition
	// FitToElem names the template element whose width wraps the text.
	FitToElem string
	Rotation  float64
	FontSize  float64
	Text      string
}

// Template is a parsed stencil view.
type Template struct {
	// Body holds the drawable content of the view with oryx metadata
	// elements removed.
	Body *svgdom.Element
	// Defs holds gradients and markers the body refers to by url(#id).
	Defs *svgdom.Element

	Size        geo.Size
	MinimumSize *geo.Size
	MaximumSize *geo.Size

	Primitives []*Primitive
	Magnets    []MagnetDef
	Docker     *DockerDef
	Texts      []*TextDef

	// Warnings lists malformed template content that was ignored.
	Warnings []string
}

func (t *Template) warnf(format string, args ...any) {
	t.Warnings = append(t.Warnings, fmt.Sprintf(format, args...))
}

// IsPrimitive reports whether e is drawn as a sub-shape.
func IsPrimitive(e *svgdom.Element) bool {
	if e.Name.Space != svgdom.NamespaceSVG && e.Name.Space != "" {
		return false
	}
	_, ok := primitiveKinds[e.Local()]
	return ok
}

// ParseTemplate parses a stencil view.
func ParseTemplate(root *svgdom.Element, kind Kind) (*Template, error) {
	if root.Local() != "svg" {
		return nil, fmt.Errorf("stencil view root must be <svg>, got <%s>", root.Local())
	}
	t := &Template{
		Body: svgdom.New("g"),
		Defs: svgdom.New("defs"),
	}
	for _, c := range append([]*svgdom.Element(nil), root.Children...) {
		switch {
		case c.Name.Space == svgdom.NamespaceOryx && c.Local() == "magnets":
			for _, m := range c.Children {
				t.parseMagnet(m)
			}
		case c.Name.Space == svgdom.NamespaceOryx && c.Local() == "docker":
			t.Docker = t.parseDocker(c)
		case c.Local() == "defs":
			for _, d := range append([]*svgdom.Element(nil), c.Children...) {
				t.Defs.AppendChild(d.Clone())
			}
		case c.Name.Space == svgdom.NamespaceOryx:
			t.warnf("unknown template element oryx:%s", c.Local())
		default:
			t.Body.AppendChild(c.Clone())
		}
	}

	t.MinimumSize = t.parseSizeAttr(root, "minimumSize")
	t.MaximumSize = t.parseSizeAttr(root, "maximumSize")
	for _, g := range t.Body.Children {
		if t.MinimumSize == nil {
			t.MinimumSize = t.parseSizeAttr(g, "minimumSize")
		}
		if t.MaximumSize == nil {
			t.MaximumSize = t.parseSizeAttr(g, "maximumSize")
		}
	}

	if kind == KindNode {
		t.parsePrimitives()
	}
	t.parseTexts()
	t.Size = t.extent(root)

	if kind == KindNode && len(t.Magnets) == 0 {
		t.Magnets = append(t.Magnets, MagnetDef{
			Center:  geo.Point{X: t.Size.Width / 2, Y: t.Size.Height / 2},
			Default: true,
		})
	}
	return t, nil
}

func (t *Template) parseSizeAttr(e *svgdom.Element, name string) *geo.Size {
	v, ok := e.OryxAttr(name)
	if !ok {
		return nil
	}
	fields := strings.FieldsFunc(v, func(r rune) bool { return r == ' ' || r == ',' })
	if len(fields) != 2 {
		t.warnf("malformed oryx:%s %q", name, v)
		return nil
	}
	w, ok1 := svg.ParseNumber(fields[0])
	h, ok2 := svg.ParseNumber(fields[1])
	if !ok1 || !ok2 || w < 0 || h < 0 {
		t.warnf("malformed oryx:%s %q", name, v)
		return nil
	}
	return geo.NewSize(w, h)
}

func (t *Template) parseCenter(e *svgdom.Element) (geo.Point, bool) {
	cx, _ := e.OryxAttr("cx")
	cy, _ := e.OryxAttr("cy")
	x, ok1 := svg.ParseNumber(cx)
	y, ok2 := svg.ParseNumber(cy)
	if !ok1 || !ok2 {
		t.warnf("%s without numeric oryx:cx/oryx:cy", e.Local())
		return geo.Point{}, false
	}
	return geo.Point{X: x, Y: y}, true
}

func (t *Template) parseMagnet(e *svgdom.Element) {
	if e.Name.Space != svgdom.NamespaceOryx || e.Local() != "magnet" {
		return
	}
	c, ok := t.parseCenter(e)
	if !ok {
		return
	}
	anchors, _ := e.OryxAttr("anchors")
	def, _ := e.OryxAttr("default")
	t.Magnets = append(t.Magnets, MagnetDef{
		Center:  c,
		Anchors: label.ParseAnchors(anchors),
		Default: def == "yes" || def == "true",
	})
}

func (t *Template) parseDocker(e *svgdom.Element) *DockerDef {
	c, ok := t.parseCenter(e)
	if !ok {
		return nil
	}
	anchors, _ := e.OryxAttr("anchors")
	return &DockerDef{Center: c, Anchors: label.ParseAnchors(anchors)}
}

func (t *Template) parsePrimitives() {
	t.Body.Walk(func(e *svgdom.Element) bool {
		if e.Local() == "text" {
			return false
		}
		if !IsPrimitive(e) {
			return true
		}
		p := &Primitive{
			Index: len(t.Primitives),
			Kind:  primitiveKinds[e.Local()],
			ID:    e.ID(),
		}
		anchors, _ := e.OryxAttr("anchors")
		p.Anchors = label.ParseAnchors(anchors)
		resize, _ := e.OryxAttr("resize")
		for _, f := range strings.Fields(resize) {
			switch f {
			case "horizontal":
				p.ResizeH = true
			case "vertical":
				p.ResizeV = true
			default:
				t.warnf("unknown oryx:resize value %q on %s", f, e.Local())
			}
		}
		if err := p.measure(e); err != nil {
			t.warnf("%s %q: %v", e.Local(), e.ID(), err)
			p.Box = geo.NewBox(geo.NewPoint(0, 0), 0, 0)
		}
		t.Primitives = append(t.Primitives, p)
		return false
	})
}

func num(e *svgdom.Element, name string) float64 {
	v, _ := svg.ParseNumber(e.Attr(name))
	return v
}

func (p *Primitive) measure(e *svgdom.Element) error {
	switch p.Kind {
	case PrimitiveRect, PrimitiveImage:
		p.Box = geo.NewBox(geo.NewPoint(num(e, "x"), num(e, "y")), num(e, "width"), num(e, "height"))
	case PrimitiveCircle:
		r := num(e, "r")
		p.Box = geo.NewBox(geo.NewPoint(num(e, "cx")-r, num(e, "cy")-r), 2*r, 2*r)
	case PrimitiveEllipse:
		rx, ry := num(e, "rx"), num(e, "ry")
		p.Box = geo.NewBox(geo.NewPoint(num(e, "cx")-rx, num(e, "cy")-ry), 2*rx, 2*ry)
	case PrimitiveLine:
		p.Points = []*geo.Point{
			geo.NewPoint(num(e, "x1"), num(e, "y1")),
			geo.NewPoint(num(e, "x2"), num(e, "y2")),
		}
		p.Box = pointsBox(p.Points)
	case PrimitivePolyline, PrimitivePolygon:
		pts, err := ParsePoints(e.Attr("points"))
		if err != nil {
			return err
		}
		p.Points = pts
		p.Box = pointsBox(pts)
	case PrimitivePath:
		path, err := svg.ParsePath(e.Attr("d"))
		if err != nil {
			return err
		}
		p.Path = path
		p.Box = path.BoundingBox()
	}
	return nil
}

func pointsBox(pts []*geo.Point) *geo.Box {
	if len(pts) == 0 {
		return geo.NewBox(geo.NewPoint(0, 0), 0, 0)
	}
	tl, br := geo.Route(pts).GetBoundingBox()
	return geo.NewBox(tl, br.X-tl.X, br.Y-tl.Y)
}

// ParsePoints parses the points attribute of a polyline or polygon.
func ParsePoints(s string) ([]*geo.Point, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\n' || r == '\t' || r == '\r'
	})
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("odd number of coordinates in points %q", s)
	}
	pts := make([]*geo.Point, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		x, ok1 := svg.ParseNumber(fields[i])
		y, ok2 := svg.ParseNumber(fields[i+1])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("malformed points %q", s)
		}
		pts = append(pts, geo.NewPoint(x, y))
	}
	return pts, nil
}

func (t *Template) parseTexts() {
	for i, e := range t.Body.FindAll(svgdom.NamespaceSVG, "text") {
		td := &TextDef{
			ID:       e.ID(),
			X:        num(e, "x"),
			Y:        num(e, "y"),
			Align:    label.Left,
			Valign:   label.Bottom,
			FontSize: num(e, "font-size"),
			Text:     strings.TrimSpace(e.Text),
		}
		if td.ID == "" {
			td.ID = fmt.Sprintf("text%d", i)
			e.SetAttr("id", td.ID)
			t.warnf("text element without id, using %q", td.ID)
		}
		if fs, ok := svg.ParseNumber(strings.TrimSuffix(e.Style("font-size"), "px")); ok && td.FontSize == 0 {
			td.FontSize = fs
		}
		switch e.Presentation("text-anchor") {
		case "middle":
			td.Align = label.Center
		case "end":
			td.Align = label.Right
		}
		if v, ok := e.OryxAttr("align"); ok {
			for _, w := range strings.Fields(v) {
				if h, ok := label.HAlignFromString(w); ok {
					td.Align = h
				} else if va, ok := label.VAlignFromString(w); ok {
					td.Valign = va
				} else {
					t.warnf("text %q: unknown oryx:align value %q", td.ID, w)
				}
			}
		}
		if v, ok := e.OryxAttr("anchors"); ok {
			td.Anchors = label.ParseAnchors(v)
		}
		if v, ok := e.OryxAttr("edgePosition"); ok {
			td.EdgePosition = label.EdgePositionFromString(v)
			if td.EdgePosition == label.Unset && v != "" {
				t.warnf("text %q: unknown oryx:edgePosition %q", td.ID, v)
			}
		}
		if v, ok := e.OryxAttr("fittoelem"); ok {
			td.FitToElem = v
		}
		if v, ok := e.OryxAttr("rotate"); ok {
			if r, ok := svg.ParseNumber(v); ok {
				td.Rotation = r
			} else {
				t.warnf("text %q: malformed oryx:rotate %q", td.ID, v)
			}
		}
		t.Texts = append(t.Texts, td)
	}
}

// extent is the box from the origin to the furthest primitive corner,
// falling back to the root's width and height.
func (t *Template) extent(root *svgdom.Element) geo.Size {
	var w, h float64
	for _, p := range t.Primitives {
		w = math.Max(w, p.Box.Right())
		h = math.Max(h, p.Box.Bottom())
	}
	if w == 0 {
		w = num(root, "width")
	}
	if h == 0 {
		h = num(root, "height")
	}
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	return geo.Size{Width: w, Height: h}
}

func (t *Template) TextDef(id string) (*TextDef, bool) {
	for _, td := range t.Texts {
		if td.ID == id {
			return td, true
		}
	}
	return nil, false
}
