package skgraph

import (
	"math"
	"strconv"
	"strings"

	"github.com/stencilkit/stencilkit/lib/geo"
	"github.com/stencilkit/stencilkit/lib/label"
	"github.com/stencilkit/stencilkit/lib/svgdom"
	"github.com/stencilkit/stencilkit/skstencil"
)

// SVGShape is one geometric primitive of a node view. Its box is in the
// node's local coordinates.
type SVGShape struct {
	def     *skstencil.Primitive
	element *svgdom.Element

	X, Y, Width, Height float64

	oldX, oldY, oldWidth, oldHeight float64
}

func newSVGShape(def *skstencil.Primitive, e *svgdom.Element) *SVGShape {
	s := &SVGShape{
		def:     def,
		element: e,
		X:       def.Box.TopLeft.X,
		Y:       def.Box.TopLeft.Y,
		Width:   def.Box.Width,
		Height:  def.Box.Height,
	}
	s.commit()
	return s
}

// ID is the template id of the primitive.
func (s *SVGShape) ID() string {
	return s.def.ID
}

func (s *SVGShape) Kind() skstencil.PrimitiveKind {
	return s.def.Kind
}

func (s *SVGShape) Element() *svgdom.Element {
	return s.element
}

func (s *SVGShape) Anchors() label.Anchors {
	return s.def.Anchors
}

func (s *SVGShape) IsHorizontallyResizable() bool {
	return s.def.ResizeH
}

func (s *SVGShape) IsVerticallyResizable() bool {
	return s.def.ResizeV
}

func (s *SVGShape) Box() *geo.Box {
	return geo.NewBox(geo.NewPoint(s.X, s.Y), s.Width, s.Height)
}

// resize applies the sub-shape resize rule for a node that changed from
// oldW x oldH to newW x newH. Resizable axes scale, anchored sides keep
// their distance to the node's border and unanchored axes scale their
// position only.
func (s *SVGShape) resize(oldW, oldH, newW, newH float64) {
	wd, hd := newW/oldW, newH/oldH
	a := s.def.Anchors

	if s.def.ResizeH {
		s.Width = s.oldWidth * wd
	}
	if a.Has(label.AnchorRight) {
		offset := oldW - (s.oldX + s.oldWidth)
		if a.Has(label.AnchorLeft) {
			s.Width = newW - s.X - offset
		} else {
			s.X = newW - (offset + s.Width)
		}
	} else if !a.Has(label.AnchorLeft) {
		s.X = s.oldX * wd
	}

	if s.def.ResizeV {
		s.Height = s.oldHeight * hd
	}
	if a.Has(label.AnchorBottom) {
		offset := oldH - (s.oldY + s.oldHeight)
		if a.Has(label.AnchorTop) {
			s.Height = newH - s.Y - offset
		} else {
			s.Y = newH - (offset + s.Height)
		}
	} else if !a.Has(label.AnchorTop) {
		s.Y = s.oldY * hd
	}

	s.Width = math.Max(s.Width, 0)
	s.Height = math.Max(s.Height, 0)
}

func fmtNum(f float64) string {
	return strconv.FormatFloat(math.Round(f*1000)/1000, 'f', -1, 64)
}

// transform maps template coordinates onto the current box.
func (s *SVGShape) transform() (sx, sy, tx, ty float64) {
	tb := s.def.Box
	sx, sy = 1, 1
	if tb.Width != 0 {
		sx = s.Width / tb.Width
	}
	if tb.Height != 0 {
		sy = s.Height / tb.Height
	}
	return sx, sy, s.X - tb.TopLeft.X*sx, s.Y - tb.TopLeft.Y*sy
}

func (s *SVGShape) mappedPoints() []*geo.Point {
	sx, sy, tx, ty := s.transform()
	pts := make([]*geo.Point, 0, len(s.def.Points))
	for _, p := range s.def.Points {
		pts = append(pts, geo.NewPoint(p.X*sx+tx, p.Y*sy+ty))
	}
	return pts
}

// update writes the box into the element and makes it the baseline of the
// next resize.
func (s *SVGShape) update() {
	e := s.element
	switch s.def.Kind {
	case skstencil.PrimitiveRect, skstencil.PrimitiveImage:
		e.SetAttr("x", fmtNum(s.X))
		e.SetAttr("y", fmtNum(s.Y))
		e.SetAttr("width", fmtNum(s.Width))
		e.SetAttr("height", fmtNum(s.Height))
	case skstencil.PrimitiveCircle:
		e.SetAttr("cx", fmtNum(s.X+s.Width/2))
		e.SetAttr("cy", fmtNum(s.Y+s.Height/2))
		e.SetAttr("r", fmtNum(math.Min(s.Width, s.Height)/2))
	case skstencil.PrimitiveEllipse:
		e.SetAttr("cx", fmtNum(s.X+s.Width/2))
		e.SetAttr("cy", fmtNum(s.Y+s.Height/2))
		e.SetAttr("rx", fmtNum(s.Width/2))
		e.SetAttr("ry", fmtNum(s.Height/2))
	case skstencil.PrimitiveLine:
		pts := s.mappedPoints()
		e.SetAttr("x1", fmtNum(pts[0].X))
		e.SetAttr("y1", fmtNum(pts[0].Y))
		e.SetAttr("x2", fmtNum(pts[1].X))
		e.SetAttr("y2", fmtNum(pts[1].Y))
	case skstencil.PrimitivePolyline, skstencil.PrimitivePolygon:
		pts := s.mappedPoints()
		coords := make([]string, 0, len(pts))
		for _, p := range pts {
			coords = append(coords, fmtNum(p.X)+","+fmtNum(p.Y))
		}
		e.SetAttr("points", strings.Join(coords, " "))
	case skstencil.PrimitivePath:
		if s.def.Path != nil {
			e.SetAttr("d", s.def.Path.Map(s.transform()).String())
		}
	}
	s.commit()
}

func (s *SVGShape) commit() {
	s.oldX, s.oldY, s.oldWidth, s.oldHeight = s.X, s.Y, s.Width, s.Height
}

func (s *SVGShape) isVisible(stop *svgdom.Element) bool {
	for e := s.element; e != nil && e != stop; e = e.Parent() {
		if e.IsHidden() {
			return false
		}
	}
	return true
}

func (s *SVGShape) filled() bool {
	return s.element.Presentation("fill") != "none"
}

// Contains reports whether the local point (x, y) hits the primitive.
// Unfilled and open primitives are hit within tolerance of their outline.
func (s *SVGShape) Contains(x, y, tolerance float64) bool {
	switch s.def.Kind {
	case skstencil.PrimitiveRect, skstencil.PrimitiveImage:
		return s.Box().Contains(x, y)
	case skstencil.PrimitiveCircle, skstencil.PrimitiveEllipse:
		r := math.Min(s.Width, s.Height) / 2
		rx, ry := s.Width/2, s.Height/2
		if s.def.Kind == skstencil.PrimitiveCircle {
			rx, ry = r, r
		}
		return geo.NewEllipse(geo.NewPoint(s.X+s.Width/2, s.Y+s.Height/2), rx, ry).Contains(x, y)
	case skstencil.PrimitiveLine, skstencil.PrimitivePolyline:
		return geo.PolylineNear(s.mappedPoints(), x, y, tolerance)
	case skstencil.PrimitivePolygon:
		pts := s.mappedPoints()
		if len(pts) == 0 {
			return false
		}
		return geo.PolygonContains(pts, x, y) || geo.PolylineNear(append(pts, pts[0]), x, y, tolerance)
	case skstencil.PrimitivePath:
		if s.def.Path == nil {
			return false
		}
		pts := s.def.Path.Map(s.transform()).Flatten()
		if s.filled() && geo.PolygonContains(pts, x, y) {
			return true
		}
		return geo.PolylineNear(pts, x, y, tolerance)
	}
	return false
}
