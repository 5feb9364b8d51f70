package skgraph

import (
	"context"
	"math"

	"cdr.dev/slog"

	"github.com/stencilkit/stencilkit/lib/geo"
	"github.com/stencilkit/stencilkit/lib/log"
	"github.com/stencilkit/stencilkit/lib/svgdom"
	"github.com/stencilkit/stencilkit/skconfig"
	"github.com/stencilkit/stencilkit/skstencil"
)

// Node is a shape drawn from a node stencil.
type Node struct {
	shapeBase

	svgShapes   []*SVGShape
	minimumSize *geo.Size
	maximumSize *geo.Size
	oldBounds   *geo.Bounds

	// ForcedHeight pins the height when positive.
	ForcedHeight float64
}

func newNode(ctx context.Context, cfg *skconfig.Config, st *skstencil.Stencil, id string) *Node {
	tmpl := st.Template()
	n := &Node{}
	n.shapeBase = shapeBase{
		id:      id,
		self:    n,
		stencil: st,
		cfg:     cfg,
	}
	for _, w := range tmpl.Warnings {
		n.report(ctx, layoutErrorf(MalformedTemplate, id, "%s", w))
	}
	n.newView(tmpl)
	n.bounds = geo.NewBoundsXYXY(0, 0, tmpl.Size.Width, tmpl.Size.Height)
	n.oldBounds = n.bounds.Copy()
	n.trackBounds()

	if tmpl.MinimumSize != nil {
		min := *tmpl.MinimumSize
		n.minimumSize = &min
	}
	if tmpl.MaximumSize != nil {
		max := *tmpl.MaximumSize
		n.maximumSize = &max
	}
	if n.minimumSize != nil && n.maximumSize != nil &&
		(n.minimumSize.Width > n.maximumSize.Width || n.minimumSize.Height > n.maximumSize.Height) {
		n.report(ctx, layoutErrorf(ConstraintViolation, id, "minimum size %v exceeds maximum size %v, minimum wins", n.minimumSize, n.maximumSize))
	}

	var prims []*svgdom.Element
	n.me.Walk(func(e *svgdom.Element) bool {
		if e.Local() == "text" || e.Local() == "defs" {
			return false
		}
		if skstencil.IsPrimitive(e) {
			prims = append(prims, e)
			return false
		}
		return true
	})
	for _, def := range tmpl.Primitives {
		if def.Index < len(prims) {
			n.svgShapes = append(n.svgShapes, newSVGShape(def, prims[def.Index]))
		}
	}

	for _, td := range tmpl.Texts {
		e := n.me.FindByID(instanceID(id, td.ID))
		if e == nil {
			n.report(ctx, layoutErrorf(MalformedTemplate, id, "text %q not found in view", td.ID))
			continue
		}
		n.labels = append(n.labels, newLabel(n, td, e, cfg.Label.FontSize, cfg.Label.FontFamily))
	}

	magnets := svgdom.New("g")
	magnets.SetAttr("class", "magnets")
	for _, md := range tmpl.Magnets {
		m := &Magnet{
			owner:   n,
			center:  md.Center,
			anchors: md.Anchors,
			Default: md.Default,
			element: newControlElement("magnet", cfg.Docker.Radius),
		}
		m.render()
		magnets.AppendChild(m.element)
		n.magnets = append(n.magnets, m)
	}
	n.controls.AppendChild(magnets)

	if tmpl.Docker != nil {
		d := &Docker{
			owner:   n,
			center:  tmpl.Docker.Center,
			anchors: tmpl.Docker.Anchors,
			element: newControlElement("docker", cfg.Docker.Radius),
		}
		d.render()
		dockers := svgdom.New("g")
		dockers.SetAttr("class", "dockers")
		dockers.AppendChild(d.element)
		n.controls.AppendChild(dockers)
		n.dockers = append(n.dockers, d)
	}

	if st.AutoGrow {
		for _, l := range n.labels {
			l.RegisterOnChange(func(*Label) {
				n.FitToLabels()
			})
		}
	}

	n.initProperties(ctx)
	n.isChanged = true
	n.writeTransform()
	return n
}

func (n *Node) MinimumSize() *geo.Size {
	return n.minimumSize
}

func (n *Node) MaximumSize() *geo.Size {
	return n.maximumSize
}

func (n *Node) SetMinimumSize(s *geo.Size) {
	n.minimumSize = s
	n.markChanged()
}

func (n *Node) SetMaximumSize(s *geo.Size) {
	n.maximumSize = s
	n.markChanged()
}

func (n *Node) SVGShapes() []*SVGShape {
	return append([]*SVGShape(nil), n.svgShapes...)
}

// SVGShape finds a sub-shape by its template id.
func (n *Node) SVGShape(id string) *SVGShape {
	for _, s := range n.svgShapes {
		if s.ID() == id {
			return s
		}
	}
	return nil
}

func (n *Node) IsHorizontallyResizable() bool {
	for _, s := range n.svgShapes {
		if s.IsHorizontallyResizable() {
			return true
		}
	}
	return false
}

func (n *Node) IsVerticallyResizable() bool {
	for _, s := range n.svgShapes {
		if s.IsVerticallyResizable() {
			return true
		}
	}
	return false
}

// Docker is the node's own docker, if its stencil declares one.
func (n *Node) Docker() *Docker {
	if len(n.dockers) == 0 {
		return nil
	}
	return n.dockers[0]
}

// clampSize enforces minimum and maximum size. The minimum wins when they
// conflict.
func (n *Node) clampSize() {
	w, h := n.bounds.Width(), n.bounds.Height()
	if n.maximumSize != nil {
		w = math.Min(w, n.maximumSize.Width)
		h = math.Min(h, n.maximumSize.Height)
	}
	if n.minimumSize != nil {
		w = math.Max(w, n.minimumSize.Width)
		h = math.Max(h, n.minimumSize.Height)
	}
	if n.ForcedHeight > 0 {
		h = n.ForcedHeight
	}
	if w != n.bounds.Width() || h != n.bounds.Height() {
		n.bounds.SetSize(w, h)
	}
}

func (n *Node) update(ctx context.Context) {
	n.clampSize()

	oldW, oldH := n.oldBounds.Width(), n.oldBounds.Height()
	newW, newH := n.bounds.Width(), n.bounds.Height()
	if oldW != newW || oldH != newH {
		log.Debug(ctx, "resizing node", slog.F("node", n.id), slog.F("from", n.oldBounds.String()), slog.F("to", n.bounds.String()))
		for _, s := range n.svgShapes {
			s.resize(oldW, oldH, newW, newH)
			s.update()
		}
		for _, m := range n.magnets {
			m.center = transformPoint(m.center, m.anchors, oldW, oldH, newW, newH)
			m.render()
		}
		for _, l := range n.labels {
			l.transform(oldW, oldH, newW, newH)
		}
		for _, e := range n.dockedEdges() {
			for _, d := range e.dockers {
				if d.docked == n {
					d.referencePoint.X *= newW / oldW
					d.referencePoint.Y *= newH / oldH
				}
			}
			e.markChanged()
		}
	}

	if d := n.Docker(); d != nil {
		if !d.updated {
			d.center = geo.Point{X: newW / 2, Y: newH / 2}
		}
		d.updated = false
		d.render()
	}

	n.refresh(ctx)
	for _, l := range n.labels {
		l.Update(ctx, false)
	}
	n.writeTransform()
	n.oldBounds = n.bounds.Copy()
	n.isChanged = false
}

func (n *Node) dockedEdges() []*Edge {
	var out []*Edge
	for _, s := range append(n.Incoming(), n.Outgoing()...) {
		if e, ok := s.(*Edge); ok {
			out = append(out, e)
		}
	}
	return out
}

func (n *Node) writeTransform() {
	ul := n.bounds.UpperLeft()
	n.elem.SetAttr("transform", "translate("+fmtNum(ul.X)+","+fmtNum(ul.Y)+")")
}

// FitToLabels sets the height to the lowest bottom extent of the visible
// labels with committed lines, padded by Label.FitPadding. The node grows or
// shrinks but never below its minimum height, and keeps its height while
// ForcedHeight is set. It reports whether the bounds changed.
func (n *Node) FitToLabels() bool {
	if n.ForcedHeight > 0 {
		return false
	}
	h, found := 0.0, false
	for _, l := range n.labels {
		if !l.IsVisible() || len(l.lines) == 0 {
			continue
		}
		h = math.Max(h, l.BBox().Bottom())
		found = true
	}
	if !found {
		return false
	}
	h += n.cfg.Label.FitPadding
	if n.minimumSize != nil {
		h = math.Max(h, n.minimumSize.Height)
	}
	if h == n.bounds.Height() {
		return false
	}
	n.bounds.SetSize(n.bounds.Width(), h)
	return true
}

// IsPointIncluded reports whether the absolute point (x, y) hits a visible
// primitive of the node.
func (n *Node) IsPointIncluded(x, y float64) bool {
	abs := n.AbsoluteBounds()
	tol := n.cfg.Layout.HitTolerance
	if !abs.IsIncluded(x, y, tol) {
		return false
	}
	ul := abs.UpperLeft()
	lx, ly := x-ul.X, y-ul.Y
	for _, s := range n.svgShapes {
		if s.isVisible(n.me) && s.Contains(lx, ly, tol) {
			return true
		}
	}
	return false
}
