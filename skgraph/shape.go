// Package skgraph is the retained scene graph of a stencil diagram: the
// Canvas, its Nodes and Edges, their Labels, Dockers and Magnets, and the
// resize propagation that keeps their SVG views in sync with their bounds.
package skgraph

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"cdr.dev/slog"
	"github.com/samber/lo"

	"github.com/stencilkit/stencilkit/lib/geo"
	"github.com/stencilkit/stencilkit/lib/log"
	"github.com/stencilkit/stencilkit/lib/svgdom"
	"github.com/stencilkit/stencilkit/skconfig"
	"github.com/stencilkit/stencilkit/skstencil"
)

// Shape is implemented by *Node, *Edge and *Canvas.
type Shape interface {
	ID() string
	Stencil() *skstencil.Stencil
	Parent() Shape
	Children() []Shape

	Add(ctx context.Context, child Shape, opts ...AddOption) error
	Remove(ctx context.Context, child Shape, opts ...AddOption) error

	Bounds() *geo.Bounds
	AbsoluteBounds() *geo.Bounds

	Labels() []*Label
	Label(ref string) *Label
	Dockers() []*Docker
	Magnets() []*Magnet

	Property(id string) PropertyValue
	SetProperty(id string, v PropertyValue) error

	IsChanged() bool
	Incoming() []Shape
	Outgoing() []Shape

	Serialize() []Triple
	Deserialize(ctx context.Context, triples []Triple) error
	ToJSON() *ShapeJSON

	// Element is the root of the shape's SVG view.
	Element() *svgdom.Element

	base() *shapeBase
	update(ctx context.Context)
}

// Positionable is anything with observable bounds.
type Positionable interface {
	Bounds() *geo.Bounds
	AbsoluteBounds() *geo.Bounds
}

// Resizable is a Positionable with size constraints.
type Resizable interface {
	Positionable
	IsHorizontallyResizable() bool
	IsVerticallyResizable() bool
	MinimumSize() *geo.Size
	MaximumSize() *geo.Size
}

var (
	_ Resizable    = &Node{}
	_ Positionable = &Edge{}
)

type addOptions struct {
	index  int
	silent bool
}

type AddOption func(*addOptions)

// AtIndex inserts the child at position i among its siblings.
func AtIndex(i int) AddOption {
	return func(o *addOptions) {
		o.index = i
	}
}

// Silent suppresses the added and removed events.
func Silent() AddOption {
	return func(o *addOptions) {
		o.silent = true
	}
}

func newAddOptions(opts []AddOption) *addOptions {
	o := &addOptions{index: -1}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type shapeBase struct {
	id      string
	self    Shape
	stencil *skstencil.Stencil
	cfg     *skconfig.Config

	parent   Shape
	children []Shape
	incoming []Shape
	outgoing []Shape

	properties map[string]PropertyValue
	dirtyProps map[string]struct{}

	labels  []*Label
	dockers []*Docker
	magnets []*Magnet

	bounds     *geo.Bounds
	boundsCB   geo.CallbackID
	isChanged  bool
	elem       *svgdom.Element
	me         *svgdom.Element
	defs       *svgdom.Element
	childGroup *svgdom.Element
	controls   *svgdom.Element

	canvas  *Canvas
	pending LayoutErrors
}

func (b *shapeBase) base() *shapeBase {
	return b
}

func (b *shapeBase) ID() string {
	return b.id
}

func (b *shapeBase) Stencil() *skstencil.Stencil {
	return b.stencil
}

func (b *shapeBase) Parent() Shape {
	return b.parent
}

func (b *shapeBase) Children() []Shape {
	return append([]Shape(nil), b.children...)
}

func (b *shapeBase) Bounds() *geo.Bounds {
	return b.bounds
}

// AbsoluteBounds is a copy of the bounds in canvas coordinates.
func (b *shapeBase) AbsoluteBounds() *geo.Bounds {
	abs := b.bounds.Copy()
	for p := b.parent; p != nil; p = p.Parent() {
		if _, ok := p.(*Canvas); ok {
			break
		}
		ul := p.Bounds().UpperLeft()
		abs.MoveBy(ul.X, ul.Y)
	}
	return abs
}

func (b *shapeBase) Labels() []*Label {
	return append([]*Label(nil), b.labels...)
}

func (b *shapeBase) Label(ref string) *Label {
	for _, l := range b.labels {
		if l.id == ref {
			return l
		}
	}
	return nil
}

func (b *shapeBase) Dockers() []*Docker {
	return append([]*Docker(nil), b.dockers...)
}

func (b *shapeBase) Magnets() []*Magnet {
	return append([]*Magnet(nil), b.magnets...)
}

func (b *shapeBase) Incoming() []Shape {
	return append([]Shape(nil), b.incoming...)
}

func (b *shapeBase) Outgoing() []Shape {
	return append([]Shape(nil), b.outgoing...)
}

func (b *shapeBase) Element() *svgdom.Element {
	return b.elem
}

func (b *shapeBase) IsChanged() bool {
	return b.isChanged
}

func (b *shapeBase) markChanged() {
	b.isChanged = true
}

// Property returns the value of id, falling back to the stencil default.
func (b *shapeBase) Property(id string) PropertyValue {
	if v, ok := b.properties[strings.ToLower(id)]; ok {
		return v
	}
	return nil
}

// SetProperty sets a property declared by the shape's stencil. Values are
// rendered into the view on the next update.
func (b *shapeBase) SetProperty(id string, v PropertyValue) error {
	id = strings.ToLower(id)
	if b.stencil != nil {
		def, ok := b.stencil.Property(id)
		if !ok {
			return fmt.Errorf("%s has no property %q", b.stencil.ID, id)
		}
		if err := checkProperty(def, v); err != nil {
			return err
		}
	}
	if old, ok := b.properties[id]; ok && old == v {
		return nil
	}
	b.properties[id] = v
	b.dirtyProps[id] = struct{}{}
	b.markChanged()
	return nil
}

func checkProperty(def *skstencil.Property, v PropertyValue) error {
	if v == nil {
		return fmt.Errorf("property %q cannot be nil", def.ID)
	}
	if v.Kind() != def.Type {
		return fmt.Errorf("property %q is of type %s, got %s", def.ID, def.Type, v.Kind())
	}
	var f float64
	switch vv := v.(type) {
	case IntValue:
		f = float64(vv)
	case FloatValue:
		f = float64(vv)
	default:
		return nil
	}
	if def.Min != nil && f < *def.Min {
		return fmt.Errorf("property %q must be at least %v, got %v", def.ID, *def.Min, f)
	}
	if def.Max != nil && f > *def.Max {
		return fmt.Errorf("property %q must be at most %v, got %v", def.ID, *def.Max, f)
	}
	return nil
}

func (b *shapeBase) initProperties(ctx context.Context) {
	b.properties = make(map[string]PropertyValue)
	b.dirtyProps = make(map[string]struct{})
	if b.stencil == nil {
		return
	}
	for _, def := range b.stencil.Properties {
		v, err := ParsePropertyJSON(def.Type, def.Value)
		if err != nil {
			b.report(ctx, &LayoutError{
				Kind:    InvalidProperty,
				ShapeID: b.id,
				Message: "default of " + def.ID,
				Err:     err,
			})
			continue
		}
		id := strings.ToLower(def.ID)
		b.properties[id] = v
		b.dirtyProps[id] = struct{}{}
	}
}

// refresh renders dirty properties. A property that fails to render is
// reported and the rest still render.
func (b *shapeBase) refresh(ctx context.Context) {
	if b.stencil == nil || len(b.dirtyProps) == 0 {
		return
	}
	renderers := DefaultRenderers()
	if b.canvas != nil {
		renderers = b.canvas.renderers
	}
	for _, def := range b.stencil.Properties {
		id := strings.ToLower(def.ID)
		if _, ok := b.dirtyProps[id]; !ok {
			continue
		}
		delete(b.dirtyProps, id)
		v, ok := b.properties[id]
		if !ok {
			continue
		}
		render, ok := renderers[def.Type]
		if !ok {
			continue
		}
		rt := &RenderTarget{Shape: b.self, Def: def, View: b.me, Defs: b.defs}
		if err := safeRender(ctx, render, rt, v); err != nil {
			kind := InvalidProperty
			if errors.Is(err, ErrMissingElement) {
				kind = MalformedTemplate
			}
			b.report(ctx, &LayoutError{
				Kind:    kind,
				ShapeID: b.id,
				Message: "property " + def.ID,
				Err:     err,
			})
		}
	}
}

func safeRender(ctx context.Context, render Renderer, rt *RenderTarget, v PropertyValue) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("renderer panicked: %v", r)
		}
	}()
	return render(ctx, rt, v)
}

// report records a diagnostic on the canvas, or keeps it until the shape is
// added to one.
func (b *shapeBase) report(ctx context.Context, e *LayoutError) {
	if b.canvas != nil {
		b.canvas.report(ctx, e)
		return
	}
	b.pending.add(e)
}

func (b *shapeBase) trackBounds() {
	if b.boundsCB != 0 {
		return
	}
	b.boundsCB = b.bounds.RegisterCallback(func(*geo.Bounds, bool) {
		b.markChanged()
	})
}

func (b *shapeBase) Add(ctx context.Context, child Shape, opts ...AddOption) error {
	o := newAddOptions(opts)
	if _, ok := child.(*Canvas); ok {
		return errors.New("the canvas cannot be added to a shape")
	}
	if _, ok := child.(*Edge); ok {
		if _, ok := b.self.(*Canvas); !ok {
			log.Warn(ctx, "rejected edge added to a node", slog.F("parent", b.id), slog.F("edge", child.ID()))
			return fmt.Errorf("%w: %s", ErrEdgeNotAllowed, child.ID())
		}
	}
	if lo.Contains(b.children, child) {
		log.Warn(ctx, "rejected duplicate child", slog.F("parent", b.id), slog.F("child", child.ID()))
		return fmt.Errorf("%w: %s", ErrDuplicateChild, child.ID())
	}
	for p := b.self; p != nil; p = p.Parent() {
		if p == child {
			return fmt.Errorf("cannot add %s to its own descendant %s", child.ID(), b.id)
		}
	}

	if old := child.Parent(); old != nil {
		old.base().detach(child)
	}

	i := o.index
	if i < 0 || i > len(b.children) {
		i = len(b.children)
	}
	b.children = append(b.children, nil)
	copy(b.children[i+1:], b.children[i:])
	b.children[i] = child

	group := b.groupFor(child)
	at := 0
	for _, sib := range b.children[:i] {
		if b.groupFor(sib) == group {
			at++
		}
	}
	group.InsertChild(at, child.Element())

	cb := child.base()
	cb.parent = b.self
	cb.markChanged()
	b.markChanged()
	if b.canvas != nil {
		b.canvas.attach(ctx, child)
		if !o.silent {
			b.canvas.fireAdded(child)
		}
	}
	return nil
}

func (b *shapeBase) groupFor(child Shape) *svgdom.Element {
	if c, ok := b.self.(*Canvas); ok {
		if _, ok := child.(*Edge); ok {
			return c.edgeGroup
		}
	}
	return b.childGroup
}

// detach unlinks child without tearing it down.
func (b *shapeBase) detach(child Shape) bool {
	i := lo.IndexOf(b.children, child)
	if i < 0 {
		return false
	}
	b.children = append(b.children[:i:i], b.children[i+1:]...)
	b.groupFor(child).RemoveChild(child.Element())
	child.base().parent = nil
	b.markChanged()
	return true
}

// Remove detaches child and tears down its subtree: queued label work is
// cancelled, dockers referencing it are undocked and its bounds callbacks
// are dropped.
func (b *shapeBase) Remove(ctx context.Context, child Shape, opts ...AddOption) error {
	o := newAddOptions(opts)
	if !b.detach(child) {
		return fmt.Errorf("%w: %s is not a child of %s", ErrNotChild, child.ID(), b.id)
	}
	if b.canvas != nil {
		b.canvas.destroy(ctx, child)
		if !o.silent {
			b.canvas.fireRemoved(child)
		}
	} else {
		walkShapes(child, teardown)
	}
	return nil
}

func teardown(s Shape) bool {
	b := s.base()
	b.bounds.UnregisterAll()
	b.boundsCB = 0
	for _, d := range b.dockers {
		if d.docked != nil {
			d.undock()
		}
	}
	b.canvas = nil
	return true
}

// walkShapes visits s and its descendants depth first, parents before
// children. Returning false skips the children.
func walkShapes(s Shape, fn func(Shape) bool) {
	if !fn(s) {
		return
	}
	for _, c := range s.base().children {
		walkShapes(c, fn)
	}
}

// newView builds the element skeleton of a shape:
//
//	<g id="svg-ID"><g class="me">…</g><g class="children"/><g class="controls"/></g>
func (b *shapeBase) newView(tmpl *skstencil.Template) {
	b.elem = svgdom.New("g")
	b.elem.SetAttr("id", "svg-"+b.id)
	b.elem.SetAttrNS(svgdom.NamespaceOryx, "type", b.stencil.FullID())

	b.me = svgdom.New("g")
	b.me.SetAttr("class", "me")
	if len(tmpl.Defs.Children) > 0 {
		b.defs = tmpl.Defs.Clone()
		prefixIDs(b.defs, b.id)
		b.me.AppendChild(b.defs)
	}
	for _, c := range tmpl.Body.Children {
		cc := c.Clone()
		prefixIDs(cc, b.id)
		b.me.AppendChild(cc)
	}
	b.elem.AppendChild(b.me)

	b.childGroup = svgdom.New("g")
	b.childGroup.SetAttr("class", "children")
	b.elem.AppendChild(b.childGroup)

	b.controls = svgdom.New("g")
	b.controls.SetAttr("class", "controls")
	b.elem.AppendChild(b.controls)
}

var urlRef = regexp.MustCompile(`url\(#([^)]+)\)`)

// instanceID is the id of a template element in the view of shape id.
func instanceID(shapeID, ref string) string {
	return shapeID + ref
}

// prefixIDs makes template ids unique per shape and rewrites references to
// them.
func prefixIDs(root *svgdom.Element, prefix string) {
	root.Walk(func(e *svgdom.Element) bool {
		for i, a := range e.Attrs {
			switch {
			case a.Name.Space == "" && a.Name.Local == "id":
				e.Attrs[i].Value = instanceID(prefix, a.Value)
			case a.Name.Space == svgdom.NamespaceXLink && a.Name.Local == "href" && strings.HasPrefix(a.Value, "#"):
				e.Attrs[i].Value = "#" + instanceID(prefix, a.Value[1:])
			case strings.Contains(a.Value, "url(#"):
				e.Attrs[i].Value = urlRef.ReplaceAllString(a.Value, "url(#"+prefix+"$1)")
			}
		}
		return true
	})
}
