package skgraph

import (
	"github.com/stencilkit/stencilkit/lib/geo"
	"github.com/stencilkit/stencilkit/lib/label"
	"github.com/stencilkit/stencilkit/lib/svgdom"
)

// transformPoint moves a point of an owner resized from oldW x oldH to
// newW x newH. An anchored axis keeps its distance to that side, an
// unanchored axis scales.
func transformPoint(p geo.Point, a label.Anchors, oldW, oldH, newW, newH float64) geo.Point {
	switch {
	case a.Has(label.AnchorLeft):
	case a.Has(label.AnchorRight):
		p.X = newW - (oldW - p.X)
	default:
		p.X *= newW / oldW
	}
	switch {
	case a.Has(label.AnchorTop):
	case a.Has(label.AnchorBottom):
		p.Y = newH - (oldH - p.Y)
	default:
		p.Y *= newH / oldH
	}
	return p
}

// Magnet is a connection point of a node in the node's local coordinates.
type Magnet struct {
	owner   Shape
	center  geo.Point
	anchors label.Anchors
	Default bool

	element *svgdom.Element
}

func (m *Magnet) Owner() Shape {
	return m.owner
}

func (m *Magnet) Center() geo.Point {
	return m.center
}

func (m *Magnet) SetCenter(p geo.Point) {
	m.center = p
}

func (m *Magnet) Anchors() label.Anchors {
	return m.anchors
}

func (m *Magnet) AbsoluteCenter() geo.Point {
	ul := m.owner.AbsoluteBounds().UpperLeft()
	return m.center.Translate(ul.X, ul.Y)
}

func (m *Magnet) render() {
	m.element.SetAttr("cx", fmtNum(m.center.X))
	m.element.SetAttr("cy", fmtNum(m.center.Y))
}

// Docker is a movable control point. Edge dockers are in canvas coordinates
// and form the edge route. A node docker is in the node's local coordinates.
// A docker may be docked to a node, in which case its reference point is in
// that node's local coordinates.
type Docker struct {
	owner   Shape
	center  geo.Point
	anchors label.Anchors

	docked         *Node
	referencePoint geo.Point

	// updated is set when the center was moved since the owner's last
	// update.
	updated bool
	element *svgdom.Element
}

func (d *Docker) Owner() Shape {
	return d.owner
}

func (d *Docker) Center() geo.Point {
	return d.center
}

func (d *Docker) SetCenter(p geo.Point) {
	if d.center == p {
		return
	}
	d.center = p
	d.updated = true
	d.owner.base().markChanged()
}

func (d *Docker) Anchors() label.Anchors {
	return d.anchors
}

func (d *Docker) DockedShape() *Node {
	return d.docked
}

func (d *Docker) ReferencePoint() geo.Point {
	return d.referencePoint
}

// Dock attaches d to n at the local reference point ref.
func (d *Docker) Dock(n *Node, ref geo.Point) {
	if d.docked != nil && d.docked != n {
		d.undock()
	}
	d.docked = n
	d.referencePoint = ref
	if e, ok := d.owner.(*Edge); ok {
		e.linkDocker(d)
	}
	d.owner.base().markChanged()
}

// DockCenter docks d at the center of n.
func (d *Docker) DockCenter(n *Node) {
	b := n.Bounds()
	d.Dock(n, geo.Point{X: b.Width() / 2, Y: b.Height() / 2})
}

func (d *Docker) Undock() {
	if d.docked == nil {
		return
	}
	d.undock()
	d.owner.base().markChanged()
}

func (d *Docker) undock() {
	if e, ok := d.owner.(*Edge); ok {
		e.unlinkDocker(d)
	}
	d.docked = nil
}

// AbsoluteCenter is the center in canvas coordinates.
func (d *Docker) AbsoluteCenter() geo.Point {
	if _, ok := d.owner.(*Edge); ok {
		return d.center
	}
	ul := d.owner.AbsoluteBounds().UpperLeft()
	return d.center.Translate(ul.X, ul.Y)
}

// dockedCenter is the absolute position of the reference point.
func (d *Docker) dockedCenter() geo.Point {
	ul := d.docked.AbsoluteBounds().UpperLeft()
	return d.referencePoint.Translate(ul.X, ul.Y)
}

func (d *Docker) render() {
	d.element.SetAttr("cx", fmtNum(d.center.X))
	d.element.SetAttr("cy", fmtNum(d.center.Y))
}

func newControlElement(class string, radius float64) *svgdom.Element {
	e := svgdom.New("circle")
	e.SetAttr("class", class)
	e.SetAttr("r", fmtNum(radius))
	return e
}
