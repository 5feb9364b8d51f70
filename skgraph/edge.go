package skgraph

import (
	"context"
	"math"

	"github.com/samber/lo"

	"github.com/stencilkit/stencilkit/lib/geo"
	"github.com/stencilkit/stencilkit/lib/svg"
	"github.com/stencilkit/stencilkit/lib/svgdom"
	"github.com/stencilkit/stencilkit/skconfig"
	"github.com/stencilkit/stencilkit/skstencil"
)

// Edge is a connector drawn from an edge stencil. Its dockers form the
// route, in canvas coordinates. The first and last docker may be docked to
// nodes.
type Edge struct {
	shapeBase

	paths       []*svgdom.Element
	dockerGroup *svgdom.Element
	routeBounds *geo.Bounds
}

func newEdge(ctx context.Context, cfg *skconfig.Config, st *skstencil.Stencil, id string) *Edge {
	tmpl := st.Template()
	e := &Edge{}
	e.shapeBase = shapeBase{
		id:      id,
		self:    e,
		stencil: st,
		cfg:     cfg,
	}
	for _, w := range tmpl.Warnings {
		e.report(ctx, layoutErrorf(MalformedTemplate, id, "%s", w))
	}
	e.newView(tmpl)
	e.me.Walk(func(el *svgdom.Element) bool {
		if el.Local() == "defs" {
			return false
		}
		if el.Local() == "path" {
			e.paths = append(e.paths, el)
		}
		return true
	})

	e.dockerGroup = svgdom.New("g")
	e.dockerGroup.SetAttr("class", "dockers")
	e.controls.AppendChild(e.dockerGroup)

	start, end := geo.Point{X: 0, Y: 0}, geo.Point{X: 100, Y: 0}
	if len(e.paths) > 0 {
		if p, err := svg.ParsePath(e.paths[0].Attr("d")); err == nil {
			if pts := p.Flatten(); len(pts) >= 2 {
				start, end = *pts[0], *pts[len(pts)-1]
			}
		}
	}
	e.appendDocker(start)
	e.appendDocker(end)

	for _, td := range tmpl.Texts {
		el := e.me.FindByID(instanceID(id, td.ID))
		if el == nil {
			e.report(ctx, layoutErrorf(MalformedTemplate, id, "text %q not found in view", td.ID))
			continue
		}
		e.labels = append(e.labels, newLabel(e, td, el, cfg.Label.FontSize, cfg.Label.FontFamily))
	}

	e.bounds = geo.NewBoundsXYXY(start.X, start.Y, end.X, end.Y)
	e.routeBounds = e.bounds.Copy()
	e.trackBounds()
	e.initProperties(ctx)
	e.isChanged = true
	return e
}

func (e *Edge) newDocker(p geo.Point) *Docker {
	d := &Docker{
		owner:   e,
		center:  p,
		element: newControlElement("docker", e.cfg.Docker.Radius),
	}
	d.render()
	return d
}

func (e *Edge) appendDocker(p geo.Point) *Docker {
	d := e.newDocker(p)
	e.dockers = append(e.dockers, d)
	e.dockerGroup.AppendChild(d.element)
	return d
}

// AddDocker inserts a bend point at index i, clamped to keep the first and
// last docker in place.
func (e *Edge) AddDocker(i int, p geo.Point) *Docker {
	i = int(math.Max(1, math.Min(float64(i), float64(len(e.dockers)-1))))
	d := e.newDocker(p)
	e.dockers = append(e.dockers, nil)
	copy(e.dockers[i+1:], e.dockers[i:])
	e.dockers[i] = d
	e.dockerGroup.InsertChild(i, d.element)
	e.markChanged()
	return d
}

// RemoveDocker removes a bend point. The first and last docker cannot be
// removed.
func (e *Edge) RemoveDocker(d *Docker) bool {
	i := lo.IndexOf(e.dockers, d)
	if i <= 0 || i >= len(e.dockers)-1 {
		return false
	}
	e.dockers = append(e.dockers[:i:i], e.dockers[i+1:]...)
	e.dockerGroup.RemoveChild(d.element)
	e.markChanged()
	return true
}

func (e *Edge) Source() *Node {
	return e.dockers[0].docked
}

func (e *Edge) Target() *Node {
	return e.dockers[len(e.dockers)-1].docked
}

// linkDocker records graph adjacency for a docker that was just docked.
func (e *Edge) linkDocker(d *Docker) {
	n := d.docked
	switch d {
	case e.dockers[0]:
		if !lo.Contains(n.outgoing, Shape(e)) {
			n.outgoing = append(n.outgoing, e)
		}
		if !lo.Contains(e.incoming, Shape(n)) {
			e.incoming = append(e.incoming, n)
		}
	case e.dockers[len(e.dockers)-1]:
		if !lo.Contains(e.outgoing, Shape(n)) {
			e.outgoing = append(e.outgoing, n)
		}
		if !lo.Contains(n.incoming, Shape(e)) {
			n.incoming = append(n.incoming, e)
		}
	}
}

func (e *Edge) unlinkDocker(d *Docker) {
	n := d.docked
	switch d {
	case e.dockers[0]:
		n.outgoing = lo.Without(n.outgoing, Shape(e))
		e.incoming = lo.Without(e.incoming, Shape(n))
	case e.dockers[len(e.dockers)-1]:
		e.outgoing = lo.Without(e.outgoing, Shape(n))
		n.incoming = lo.Without(n.incoming, Shape(e))
	}
}

// Route is the polyline through the docker centers. Ends docked to a node
// are clipped to the node's border.
func (e *Edge) Route() geo.Route {
	route := make(geo.Route, 0, len(e.dockers))
	for _, d := range e.dockers {
		c := d.center
		route = append(route, geo.NewPoint(c.X, c.Y))
	}
	if len(route) < 2 {
		return route
	}
	last := len(route) - 1
	if n := e.dockers[0].docked; n != nil {
		route[0] = clipToBox(route[0], route[1], n.AbsoluteBounds().ToBox())
	}
	if n := e.dockers[last].docked; n != nil {
		route[last] = clipToBox(route[last], route[last-1], n.AbsoluteBounds().ToBox())
	}
	return route
}

// clipToBox moves inside along the segment towards outside until it leaves
// box. inside is returned unchanged when outside is within box too.
func clipToBox(inside, outside *geo.Point, box *geo.Box) *geo.Point {
	if box.Contains(outside.X, outside.Y) || !box.Contains(inside.X, inside.Y) {
		return inside
	}
	dx, dy := outside.X-inside.X, outside.Y-inside.Y
	t := 1.0
	if dx > 0 {
		t = math.Min(t, (box.Right()-inside.X)/dx)
	} else if dx < 0 {
		t = math.Min(t, (box.TopLeft.X-inside.X)/dx)
	}
	if dy > 0 {
		t = math.Min(t, (box.Bottom()-inside.Y)/dy)
	} else if dy < 0 {
		t = math.Min(t, (box.TopLeft.Y-inside.Y)/dy)
	}
	return geo.NewPoint(inside.X+dx*t, inside.Y+dy*t)
}

func (e *Edge) update(ctx context.Context) {
	// A bounds move that was not made by update itself drags the free
	// dockers along.
	if !e.bounds.Equals(e.routeBounds) {
		from, to := e.routeBounds.UpperLeft(), e.bounds.UpperLeft()
		dx, dy := to.X-from.X, to.Y-from.Y
		if dx != 0 || dy != 0 {
			for _, d := range e.dockers {
				if d.docked == nil {
					d.center = d.center.Translate(dx, dy)
				}
			}
		}
	}
	for _, d := range e.dockers {
		if d.docked != nil {
			d.center = d.dockedCenter()
		}
		d.updated = false
		d.render()
	}

	route := e.Route()
	tl, br := route.GetBoundingBox()
	e.bounds.SuspendChange()
	e.bounds.SetXYXY(tl.X, tl.Y, br.X, br.Y)
	e.bounds.ResumeChange()
	e.routeBounds = e.bounds.Copy()

	d := svg.RoutePath(route)
	for _, p := range e.paths {
		p.SetAttr("d", d)
	}

	e.refresh(ctx)
	for _, l := range e.labels {
		l.Update(ctx, true)
	}
	e.isChanged = false
}

// IsPointIncluded reports whether (x, y) is near the route.
func (e *Edge) IsPointIncluded(x, y float64) bool {
	tol := e.cfg.Layout.HitTolerance + e.cfg.Docker.Radius
	return geo.PolylineNear(e.Route(), x, y, tol)
}
