package skgraph

import (
	"context"
	"fmt"

	"cdr.dev/slog"
	"github.com/google/uuid"

	"oss.terrastruct.com/util-go/xdefer"

	"github.com/stencilkit/stencilkit/lib/geo"
	"github.com/stencilkit/stencilkit/lib/log"
	"github.com/stencilkit/stencilkit/lib/svgdom"
	"github.com/stencilkit/stencilkit/skconfig"
	"github.com/stencilkit/stencilkit/skstencil"
)

// Canvas is the root of the scene graph. It owns the SVG document, the
// index of every shape on it, the deferred work queue and the diagnostics.
// A Canvas is not safe for concurrent use; see Session.
type Canvas struct {
	shapeBase

	set       *skstencil.Set
	measurer  Measurer
	renderers Renderers
	hooks     map[string]Hooks
	queue     *Queue

	doc       *svgdom.Element
	docDefs   *svgdom.Element
	underlay  *svgdom.Element
	nodeGroup *svgdom.Element
	edgeGroup *svgdom.Element

	index       map[string]Shape
	diagnostics LayoutErrors

	onAdded        []func(Shape)
	onRemoved      []func(Shape)
	labelListeners map[*Label]ListenerID

	selection       []Shape
	selectionBounds *geo.Bounds
}

type Option func(*Canvas)

// WithMeasurer enables text wrapping and measured label boxes.
func WithMeasurer(m Measurer) Option {
	return func(c *Canvas) {
		c.measurer = m
	}
}

// WithRenderers replaces the property renderer registry.
func WithRenderers(r Renderers) Option {
	return func(c *Canvas) {
		c.renderers = r
	}
}

// WithHooks registers serialization hooks keyed by stencil id.
func WithHooks(hooks map[string]Hooks) Option {
	return func(c *Canvas) {
		for k, v := range hooks {
			c.hooks[k] = v
		}
	}
}

func WithID(id string) Option {
	return func(c *Canvas) {
		c.id = id
	}
}

func NewCanvas(cfg *skconfig.Config, set *skstencil.Set, opts ...Option) *Canvas {
	if cfg == nil {
		cfg = skconfig.Default()
	}
	c := &Canvas{
		set:            set,
		renderers:      DefaultRenderers(),
		hooks:          make(map[string]Hooks),
		queue:          NewQueue(),
		index:          make(map[string]Shape),
		labelListeners: make(map[*Label]ListenerID),
	}
	c.shapeBase = shapeBase{
		id:         "canvas",
		self:       c,
		cfg:        cfg,
		properties: make(map[string]PropertyValue),
		dirtyProps: make(map[string]struct{}),
	}
	c.canvas = c
	for _, opt := range opts {
		opt(c)
	}

	c.bounds = geo.NewBoundsXYXY(0, 0, cfg.Canvas.Width, cfg.Canvas.Height)
	c.doc = svgdom.New("svg")
	c.doc.SetAttr("id", "svg-"+c.id)
	c.doc.SetAttr("width", fmtNum(cfg.Canvas.Width))
	c.doc.SetAttr("height", fmtNum(cfg.Canvas.Height))
	c.doc.SetAttrNS(svgdom.NamespaceOryx, "canvas", c.id)
	c.docDefs = svgdom.New("defs")
	c.doc.AppendChild(c.docDefs)
	c.underlay = svgdom.New("g")
	c.underlay.SetAttr("class", "underlay")
	c.doc.AppendChild(c.underlay)
	stencils := svgdom.New("g")
	stencils.SetAttr("class", "stencils")
	c.nodeGroup = svgdom.New("g")
	c.nodeGroup.SetAttr("class", "nodes")
	c.edgeGroup = svgdom.New("g")
	c.edgeGroup.SetAttr("class", "edges")
	stencils.AppendChild(c.nodeGroup)
	stencils.AppendChild(c.edgeGroup)
	c.doc.AppendChild(stencils)

	c.elem = c.doc
	c.childGroup = c.nodeGroup
	c.bounds.RegisterCallback(func(b *geo.Bounds, _ bool) {
		c.doc.SetAttr("width", fmtNum(b.Width()))
		c.doc.SetAttr("height", fmtNum(b.Height()))
	})
	return c
}

func (c *Canvas) Config() *skconfig.Config {
	return c.cfg
}

func (c *Canvas) StencilSet() *skstencil.Set {
	return c.set
}

func (c *Canvas) Queue() *Queue {
	return c.queue
}

// Document is the live SVG document of the canvas.
func (c *Canvas) Document() *svgdom.Element {
	return c.doc
}

func (c *Canvas) Diagnostics() *LayoutErrors {
	out := &LayoutErrors{}
	for _, e := range c.diagnostics.Errors {
		out.add(e)
	}
	return out
}

func (c *Canvas) ClearDiagnostics() {
	c.diagnostics = LayoutErrors{}
}

func (c *Canvas) report(ctx context.Context, e *LayoutError) {
	if c.diagnostics.add(e) {
		log.Warn(ctx, "layout diagnostic", slog.F("kind", e.Kind.String()), slog.F("shape", e.ShapeID), slog.Error(e))
	}
}

func (c *Canvas) OnShapeAdded(fn func(Shape)) {
	c.onAdded = append(c.onAdded, fn)
}

func (c *Canvas) OnShapeRemoved(fn func(Shape)) {
	c.onRemoved = append(c.onRemoved, fn)
}

func (c *Canvas) fireAdded(s Shape) {
	for _, fn := range c.onAdded {
		fn(s)
	}
}

func (c *Canvas) fireRemoved(s Shape) {
	for _, fn := range c.onRemoved {
		fn(s)
	}
}

type shapeOptions struct {
	id string
}

type ShapeOption func(*shapeOptions)

// ShapeID sets the resource id of a new shape instead of generating one.
func ShapeID(id string) ShapeOption {
	return func(o *shapeOptions) {
		o.id = id
	}
}

// NewShape instantiates a stencil. The shape is not on the canvas until it
// is added to the canvas or one of its nodes.
func (c *Canvas) NewShape(ctx context.Context, stencilID string, opts ...ShapeOption) (_ Shape, err error) {
	defer xdefer.Errorf(&err, "failed to create shape of stencil %q", stencilID)

	o := &shapeOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.id == "" {
		o.id = "sid-" + uuid.NewString()
	}
	if _, ok := c.index[o.id]; ok {
		return nil, fmt.Errorf("resource id %q is already in use", o.id)
	}
	if c.set == nil {
		return nil, ErrUnknownStencil
	}
	st, ok := c.set.Stencil(stencilID)
	if !ok {
		return nil, ErrUnknownStencil
	}
	if st.IsEdge() {
		return newEdge(ctx, c.cfg, st, o.id), nil
	}
	return newNode(ctx, c.cfg, st, o.id), nil
}

// attach links a subtree that was just added into the canvas indexes.
func (c *Canvas) attach(ctx context.Context, s Shape) {
	walkShapes(s, func(s Shape) bool {
		b := s.base()
		b.canvas = c
		b.trackBounds()
		c.index[b.id] = s
		for _, e := range b.pending.Errors {
			c.report(ctx, e)
		}
		b.pending = LayoutErrors{}
		for _, l := range b.labels {
			if _, ok := c.labelListeners[l]; !ok {
				c.labelListeners[l] = l.RegisterOnChange(func(*Label) {
					c.refreshSelection()
				})
			}
		}
		return true
	})
}

// destroy tears down a removed subtree.
func (c *Canvas) destroy(ctx context.Context, s Shape) {
	removed := make(map[Shape]struct{})
	walkShapes(s, func(s Shape) bool {
		removed[s] = struct{}{}
		return true
	})
	for r := range removed {
		b := r.base()
		c.queue.CancelOwner(b.id)
		for _, l := range b.labels {
			l.measureTask, l.commitTask = 0, 0
			if id, ok := c.labelListeners[l]; ok {
				l.UnregisterOnChange(id)
				delete(c.labelListeners, l)
			}
		}
		delete(c.index, b.id)
	}
	for _, other := range c.index {
		for _, d := range other.base().dockers {
			if d.docked == nil {
				continue
			}
			if _, ok := removed[Shape(d.docked)]; ok {
				c.report(ctx, layoutErrorf(DanglingReference, other.ID(), "docker was docked to removed shape %s", d.docked.id))
				d.Undock()
			}
		}
	}
	for r := range removed {
		teardown(r)
	}
	c.selection = filterShapes(c.selection, func(s Shape) bool {
		_, gone := removed[s]
		return !gone
	})
	c.refreshSelection()
}

func filterShapes(shapes []Shape, keep func(Shape) bool) []Shape {
	var out []Shape
	for _, s := range shapes {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// GetShape finds a shape on the canvas by resource id.
func (c *Canvas) GetShape(id string) Shape {
	return c.index[id]
}

// Shapes returns every shape on the canvas, parents before children.
func (c *Canvas) Shapes() []Shape {
	var out []Shape
	for _, ch := range c.children {
		walkShapes(ch, func(s Shape) bool {
			out = append(out, s)
			return true
		})
	}
	return out
}

func (c *Canvas) Nodes() []*Node {
	var out []*Node
	for _, s := range c.Shapes() {
		if n, ok := s.(*Node); ok {
			out = append(out, n)
		}
	}
	return out
}

func (c *Canvas) Edges() []*Edge {
	var out []*Edge
	for _, s := range c.children {
		if e, ok := s.(*Edge); ok {
			out = append(out, e)
		}
	}
	return out
}

// SetSelection replaces the selection. Shapes not on the canvas are
// ignored.
func (c *Canvas) SetSelection(shapes ...Shape) {
	c.selection = filterShapes(shapes, func(s Shape) bool {
		return c.index[s.ID()] == s
	})
	c.refreshSelection()
}

func (c *Canvas) Selection() []Shape {
	return append([]Shape(nil), c.selection...)
}

// SelectionBounds encloses the selected shapes and their labels, in canvas
// coordinates. It is nil when nothing is selected.
func (c *Canvas) SelectionBounds() *geo.Bounds {
	if c.selectionBounds == nil {
		return nil
	}
	return c.selectionBounds.Copy()
}

func (c *Canvas) refreshSelection() {
	c.selectionBounds = shapesBounds(c.selection)
}

// ContentBounds encloses every shape and visible label on the canvas, in
// canvas coordinates. It is nil for an empty canvas.
func (c *Canvas) ContentBounds() *geo.Bounds {
	return shapesBounds(c.Shapes())
}

func shapesBounds(shapes []Shape) *geo.Bounds {
	var b *geo.Bounds
	for _, s := range shapes {
		abs := s.AbsoluteBounds()
		ul := abs.UpperLeft()
		for _, l := range s.Labels() {
			if len(l.lines) == 0 || l.hidden {
				continue
			}
			box := l.BBox()
			if _, ok := s.(*Edge); !ok {
				box.TopLeft.X += ul.X
				box.TopLeft.Y += ul.Y
			}
			abs.Include(geo.NewBoundsXYXY(box.TopLeft.X, box.TopLeft.Y, box.Right(), box.Bottom()))
		}
		if b == nil {
			b = abs
		} else {
			b.Include(abs)
		}
	}
	return b
}

// ShapeAt returns the topmost shape hit by the canvas point (x, y). Edges
// are above nodes and children above their parents.
func (c *Canvas) ShapeAt(x, y float64) Shape {
	edges := c.Edges()
	for i := len(edges) - 1; i >= 0; i-- {
		if edges[i].IsPointIncluded(x, y) {
			return edges[i]
		}
	}
	var hit Shape
	var visit func(children []Shape)
	visit = func(children []Shape) {
		for _, s := range children {
			n, ok := s.(*Node)
			if !ok {
				continue
			}
			if n.IsPointIncluded(x, y) {
				hit = n
			}
			visit(n.children)
		}
	}
	visit(c.children)
	return hit
}

// treeChanged reports whether s, one of its labels or a descendant needs an
// update.
func treeChanged(s Shape) bool {
	b := s.base()
	if b.isChanged {
		return true
	}
	for _, l := range b.labels {
		if l.isChanged {
			return true
		}
	}
	for _, c := range b.children {
		if treeChanged(c) {
			return true
		}
	}
	return false
}

func (c *Canvas) update(ctx context.Context) {
	c.isChanged = false
}

// Update lays out every changed shape. Nodes are updated depth first, then
// edges whose docked shapes moved, then the deferred work queue is drained.
// Deferred work can change shapes again, so this repeats until nothing
// changes or Layout.MaxSettlePasses is reached.
func (c *Canvas) Update(ctx context.Context) (err error) {
	defer xdefer.Errorf(&err, "failed to update canvas")

	for pass := 0; pass < c.cfg.Layout.MaxSettlePasses; pass++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		updated := make(map[Shape]struct{})
		c.updateTree(ctx, c.children, updated)
		c.followDockers(ctx, updated)
		for _, e := range c.Edges() {
			if e.isChanged || edgeMoved(e, updated) || treeChanged(e) {
				e.update(ctx)
				updated[e] = struct{}{}
			}
		}
		if err := c.queue.Drain(ctx); err != nil {
			return err
		}
		c.update(ctx)
		if !treeChanged(c) {
			c.refreshSelection()
			return nil
		}
	}
	c.report(ctx, layoutErrorf(ConstraintViolation, c.id, "layout did not settle after %d passes", c.cfg.Layout.MaxSettlePasses))
	return nil
}

func (c *Canvas) updateTree(ctx context.Context, shapes []Shape, updated map[Shape]struct{}) {
	for _, s := range shapes {
		n, ok := s.(*Node)
		if !ok || !treeChanged(n) {
			continue
		}
		if n.isChanged || labelsChanged(n) {
			n.update(ctx)
			updated[n] = struct{}{}
		}
		c.updateTree(ctx, n.children, updated)
	}
}

func labelsChanged(s Shape) bool {
	for _, l := range s.base().labels {
		if l.isChanged {
			return true
		}
	}
	return false
}

// edgeMoved reports whether a shape an edge is docked to, or one of that
// shape's ancestors, was updated.
func edgeMoved(e *Edge, updated map[Shape]struct{}) bool {
	for _, d := range e.dockers {
		if d.docked == nil {
			continue
		}
		for s := Shape(d.docked); s != nil; s = s.Parent() {
			if _, ok := updated[s]; ok {
				return true
			}
		}
	}
	return false
}

// followDockers moves nodes whose own docker is docked to another node so
// the docker stays on its reference point.
func (c *Canvas) followDockers(ctx context.Context, updated map[Shape]struct{}) {
	for _, n := range c.Nodes() {
		d := n.Docker()
		if d == nil || d.docked == nil {
			continue
		}
		moved := false
		for s := Shape(d.docked); s != nil; s = s.Parent() {
			if _, ok := updated[s]; ok {
				moved = true
			}
		}
		if _, ok := updated[n]; !moved && !ok {
			continue
		}
		want := d.dockedCenter()
		have := d.AbsoluteCenter()
		if want == have {
			continue
		}
		n.bounds.MoveBy(want.X-have.X, want.Y-have.Y)
		n.update(ctx)
		updated[n] = struct{}{}
	}
}
