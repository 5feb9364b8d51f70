package skgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"cdr.dev/slog"

	"oss.terrastruct.com/util-go/xdefer"

	"github.com/stencilkit/stencilkit/lib/geo"
	"github.com/stencilkit/stencilkit/lib/log"
)

const (
	PrefixOryx   = "oryx"
	PrefixRaziel = "raziel"

	TypeLiteral  = "literal"
	TypeResource = "resource"
)

// Triple is one flat fact about a shape.
type Triple struct {
	Prefix string `json:"prefix"`
	Name   string `json:"name"`
	Value  string `json:"value"`
	Type   string `json:"type"`
}

func literal(name, value string) Triple {
	return Triple{Prefix: PrefixOryx, Name: name, Value: value, Type: TypeLiteral}
}

func resource(name, id string) Triple {
	return Triple{Prefix: PrefixRaziel, Name: name, Value: "#" + id, Type: TypeResource}
}

// Hooks let a stencil rewrite its triples on the way out and in.
type Hooks struct {
	Serialize   func(s Shape, triples []Triple) []Triple
	Deserialize func(s Shape, triples []Triple) []Triple
}

func (b *shapeBase) hooks() Hooks {
	if b.canvas == nil || b.stencil == nil {
		return Hooks{}
	}
	return b.canvas.hooks[b.stencil.ID]
}

func formatBounds(b *geo.Bounds) string {
	ul, lr := b.UpperLeft(), b.LowerRight()
	return strings.Join([]string{fmtNum(ul.X), fmtNum(ul.Y), fmtNum(lr.X), fmtNum(lr.Y)}, ",")
}

func parseBounds(s string) (x1, y1, x2, y2 float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("bounds %q must have four coordinates", s)
	}
	var v [4]float64
	for i, p := range parts {
		v[i], err = strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, 0, 0, 0, fmt.Errorf("invalid bounds %q", s)
		}
	}
	return v[0], v[1], v[2], v[3], nil
}

// formatDockers writes points as "x y x y #".
func formatDockers(pts []geo.Point) string {
	var sb strings.Builder
	for _, p := range pts {
		sb.WriteString(fmtNum(p.X))
		sb.WriteByte(' ')
		sb.WriteString(fmtNum(p.Y))
		sb.WriteByte(' ')
	}
	sb.WriteByte('#')
	return sb.String()
}

func parseDockers(s string) ([]geo.Point, error) {
	var pts []geo.Point
	fields := strings.Fields(s)
	for i := 0; i < len(fields); i += 2 {
		if fields[i] == "#" {
			break
		}
		if i+1 >= len(fields) || fields[i+1] == "#" {
			return nil, fmt.Errorf("dockers %q have an odd number of coordinates", s)
		}
		x, err1 := strconv.ParseFloat(fields[i], 64)
		y, err2 := strconv.ParseFloat(fields[i+1], 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("invalid dockers %q", s)
		}
		pts = append(pts, geo.Point{X: x, Y: y})
	}
	return pts, nil
}

// dockerPoints are the persisted docker positions: the reference point for
// docked dockers, the center otherwise.
func (b *shapeBase) dockerPoints() []geo.Point {
	pts := make([]geo.Point, 0, len(b.dockers))
	for _, d := range b.dockers {
		if d.docked != nil {
			pts = append(pts, d.referencePoint)
		} else {
			pts = append(pts, d.center)
		}
	}
	return pts
}

func (b *shapeBase) labelStates() []*LabelState {
	var out []*LabelState
	for _, l := range b.labels {
		if s := l.Serialize(); !s.IsEmpty() {
			out = append(out, s)
		}
	}
	return out
}

func (b *shapeBase) sortedPropertyIDs() []string {
	ids := make([]string, 0, len(b.properties))
	for id := range b.properties {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (b *shapeBase) commonTriples() []Triple {
	var out []Triple
	if b.stencil != nil {
		out = append(out, literal("type", b.stencil.FullID()))
	}
	out = append(out, literal("bounds", formatBounds(b.bounds)))
	for _, id := range b.sortedPropertyIDs() {
		out = append(out, literal(id, b.properties[id].String()))
	}
	if states := b.labelStates(); len(states) > 0 {
		if data, err := json.Marshal(states); err == nil {
			out = append(out, literal("labels", string(data)))
		}
	}
	if len(b.dockers) > 0 {
		out = append(out, literal("dockers", formatDockers(b.dockerPoints())))
	}
	if b.parent != nil {
		out = append(out, resource("parent", b.parent.ID()))
	}
	for _, s := range b.outgoing {
		out = append(out, resource("outgoing", s.ID()))
	}
	return out
}

func (n *Node) Serialize() []Triple {
	triples := n.commonTriples()
	if d := n.Docker(); d != nil && d.docked != nil {
		triples = append(triples, resource("target", d.docked.id))
	}
	if h := n.hooks(); h.Serialize != nil {
		triples = h.Serialize(n, triples)
	}
	return triples
}

func (e *Edge) Serialize() []Triple {
	triples := e.commonTriples()
	if src := e.Source(); src != nil {
		triples = append(triples, resource("source", src.id))
	}
	if tgt := e.Target(); tgt != nil {
		triples = append(triples, resource("target", tgt.id))
	}
	if h := e.hooks(); h.Serialize != nil {
		triples = h.Serialize(e, triples)
	}
	return triples
}

func (c *Canvas) Serialize() []Triple {
	return []Triple{
		literal("type", "canvas"),
		literal("bounds", formatBounds(c.bounds)),
	}
}

// decoded is the part of a triple list every shape kind understands.
type decoded struct {
	bounds     *[4]float64
	dockers    []geo.Point
	hasDockers bool
	labels     []*LabelState
	source     string
	target     string
	properties map[string]string
}

func (b *shapeBase) decode(ctx context.Context, triples []Triple) (*decoded, error) {
	if h := b.hooks(); h.Deserialize != nil {
		triples = h.Deserialize(b.self, triples)
	}
	d := &decoded{properties: make(map[string]string)}
	var errs []error
	for _, t := range triples {
		switch {
		case t.Prefix == PrefixOryx && t.Name == "type":
			if b.stencil != nil && t.Value != b.stencil.FullID() {
				errs = append(errs, fmt.Errorf("%w: type %q does not match %q", ErrUnknownStencil, t.Value, b.stencil.FullID()))
			}
		case t.Prefix == PrefixOryx && t.Name == "bounds":
			x1, y1, x2, y2, err := parseBounds(t.Value)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			d.bounds = &[4]float64{x1, y1, x2, y2}
		case t.Prefix == PrefixOryx && t.Name == "dockers":
			pts, err := parseDockers(t.Value)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			d.dockers, d.hasDockers = pts, true
		case t.Prefix == PrefixOryx && t.Name == "labels":
			if err := json.Unmarshal([]byte(t.Value), &d.labels); err != nil {
				errs = append(errs, fmt.Errorf("invalid labels: %w", err))
			}
		case t.Prefix == PrefixRaziel && t.Name == "source":
			d.source = strings.TrimPrefix(t.Value, "#")
		case t.Prefix == PrefixRaziel && t.Name == "target":
			d.target = strings.TrimPrefix(t.Value, "#")
		case t.Prefix == PrefixRaziel:
			// Parent and outgoing are derived from add and docking.
		case t.Prefix == PrefixOryx:
			d.properties[strings.ToLower(t.Name)] = t.Value
		default:
			log.Debug(ctx, "ignoring triple", slog.F("shape", b.id), slog.F("prefix", t.Prefix), slog.F("name", t.Name))
		}
	}
	return d, errors.Join(errs...)
}

func (b *shapeBase) applyProperties(ctx context.Context, props map[string]string) {
	ids := make([]string, 0, len(props))
	for id := range props {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if b.stencil == nil {
			break
		}
		def, ok := b.stencil.Property(id)
		if !ok {
			log.Debug(ctx, "ignoring unknown property", slog.F("shape", b.id), slog.F("property", id))
			continue
		}
		v, err := ParsePropertyString(def.Type, props[id])
		if err == nil {
			err = b.SetProperty(id, v)
		}
		if err != nil {
			b.report(ctx, &LayoutError{Kind: InvalidProperty, ShapeID: b.id, Message: "property " + def.ID, Err: err})
		}
	}
}

func (b *shapeBase) applyLabels(ctx context.Context, states []*LabelState) {
	for _, s := range states {
		l := b.Label(s.Ref)
		if l == nil {
			b.report(ctx, layoutErrorf(DanglingReference, b.id, "no label %q", s.Ref))
			continue
		}
		l.Deserialize(ctx, s)
	}
}

// lookupNode resolves a docking target on the shape's canvas.
func (b *shapeBase) lookupNode(ctx context.Context, id string) *Node {
	if b.canvas != nil {
		if n, ok := b.canvas.index[id].(*Node); ok {
			return n
		}
	}
	b.report(ctx, layoutErrorf(DanglingReference, b.id, "docked to unknown node %q", id))
	return nil
}

func (n *Node) Deserialize(ctx context.Context, triples []Triple) (err error) {
	defer xdefer.Errorf(&err, "failed to deserialize node %s", n.id)

	d, err := n.decode(ctx, triples)
	if d.bounds != nil {
		n.bounds.SetXYXY(d.bounds[0], d.bounds[1], d.bounds[2], d.bounds[3])
	}
	n.applyProperties(ctx, d.properties)
	n.applyLabels(ctx, d.labels)
	if dk := n.Docker(); dk != nil && len(d.dockers) > 0 {
		p := d.dockers[0]
		if d.target != "" {
			if target := n.lookupNode(ctx, d.target); target != nil {
				dk.Dock(target, p)
			}
		} else {
			dk.SetCenter(p)
		}
	}
	n.markChanged()
	return err
}

func (e *Edge) Deserialize(ctx context.Context, triples []Triple) (err error) {
	defer xdefer.Errorf(&err, "failed to deserialize edge %s", e.id)

	d, err := e.decode(ctx, triples)
	if d.hasDockers && len(d.dockers) < 2 {
		return errors.Join(err, fmt.Errorf("an edge needs at least two dockers, got %d", len(d.dockers)))
	}
	if d.hasDockers {
		for len(e.dockers) > len(d.dockers) {
			e.RemoveDocker(e.dockers[len(e.dockers)-2])
		}
		for len(e.dockers) < len(d.dockers) {
			e.AddDocker(len(e.dockers)-1, geo.Point{})
		}
		for i, p := range d.dockers {
			e.dockers[i].center = p
		}
		e.routeBounds = e.bounds.Copy()
	} else if d.bounds != nil {
		e.bounds.SetXYXY(d.bounds[0], d.bounds[1], d.bounds[2], d.bounds[3])
	}

	first, last := e.dockers[0], e.dockers[len(e.dockers)-1]
	if d.source != "" {
		if n := e.lookupNode(ctx, d.source); n != nil {
			first.Dock(n, first.center)
		}
	}
	if d.target != "" {
		if n := e.lookupNode(ctx, d.target); n != nil {
			last.Dock(n, last.center)
		}
	}
	e.applyProperties(ctx, d.properties)
	e.applyLabels(ctx, d.labels)
	e.markChanged()
	return err
}

func (c *Canvas) Deserialize(ctx context.Context, triples []Triple) (err error) {
	defer xdefer.Errorf(&err, "failed to deserialize canvas")

	d, err := c.decode(ctx, triples)
	if d.bounds != nil {
		c.bounds.SetXYXY(d.bounds[0], d.bounds[1], d.bounds[2], d.bounds[3])
	}
	return err
}

type StencilRef struct {
	ID string `json:"id"`
}

type ResourceRef struct {
	ResourceID string `json:"resourceId"`
}

type BoundsJSON struct {
	UpperLeft  geo.Point `json:"upperLeft"`
	LowerRight geo.Point `json:"lowerRight"`
}

// ShapeJSON is the JSON document form of a shape and its subtree.
type ShapeJSON struct {
	ResourceID  string                 `json:"resourceId"`
	Stencil     StencilRef             `json:"stencil"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
	ChildShapes []*ShapeJSON           `json:"childShapes"`
	Outgoing    []ResourceRef          `json:"outgoing"`
	Target      *ResourceRef           `json:"target,omitempty"`
	Bounds      BoundsJSON             `json:"bounds"`
	Dockers     []geo.Point            `json:"dockers"`
	Labels      []*LabelState          `json:"labels,omitempty"`
}

func refs(shapes []Shape) []ResourceRef {
	out := []ResourceRef{}
	for _, s := range shapes {
		out = append(out, ResourceRef{ResourceID: s.ID()})
	}
	return out
}

func (b *shapeBase) toJSON() *ShapeJSON {
	sj := &ShapeJSON{
		ResourceID:  b.id,
		Properties:  make(map[string]interface{}),
		ChildShapes: []*ShapeJSON{},
		Outgoing:    refs(b.outgoing),
		Bounds: BoundsJSON{
			UpperLeft:  b.bounds.UpperLeft(),
			LowerRight: b.bounds.LowerRight(),
		},
		Dockers: b.dockerPoints(),
		Labels:  b.labelStates(),
	}
	if b.stencil != nil {
		sj.Stencil.ID = b.stencil.ID
	}
	for id, v := range b.properties {
		sj.Properties[id] = propertyJSON(v)
	}
	for _, c := range b.children {
		sj.ChildShapes = append(sj.ChildShapes, c.ToJSON())
	}
	return sj
}

func (n *Node) ToJSON() *ShapeJSON {
	sj := n.toJSON()
	if d := n.Docker(); d != nil && d.docked != nil {
		sj.Target = &ResourceRef{ResourceID: d.docked.id}
	}
	return sj
}

func (e *Edge) ToJSON() *ShapeJSON {
	sj := e.toJSON()
	if t := e.Target(); t != nil {
		sj.Target = &ResourceRef{ResourceID: t.id}
	}
	return sj
}

func (c *Canvas) ToJSON() *ShapeJSON {
	sj := c.toJSON()
	sj.ResourceID = c.id
	sj.Stencil.ID = "canvas"
	sj.Dockers = []geo.Point{}
	return sj
}

func anyString(v interface{}) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case bool:
		return strconv.FormatBool(vv)
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// triples converts the JSON form of one shape, without its children, to
// triples. source is the node listing the shape as outgoing, if any.
func (sj *ShapeJSON) triples(source string) []Triple {
	var out []Triple
	ul, lr := sj.Bounds.UpperLeft, sj.Bounds.LowerRight
	out = append(out, literal("bounds", formatBounds(geo.NewBounds(ul, lr))))
	for id, v := range sj.Properties {
		out = append(out, literal(id, anyString(v)))
	}
	if len(sj.Labels) > 0 {
		if data, err := json.Marshal(sj.Labels); err == nil {
			out = append(out, literal("labels", string(data)))
		}
	}
	if len(sj.Dockers) > 0 {
		out = append(out, literal("dockers", formatDockers(sj.Dockers)))
	}
	if source != "" {
		out = append(out, resource("source", source))
	}
	if sj.Target != nil && sj.Target.ResourceID != "" {
		out = append(out, resource("target", sj.Target.ResourceID))
	}
	return out
}

// AddShapeObjects bulk loads shape documents onto the canvas. Every stencil
// and resource id is checked before anything is created. Shapes are then
// created and added parent first, node state is applied, and edge state is
// applied last so edges may reference nodes that appear later in the
// input. Edges nested under nodes are added to the canvas.
func (c *Canvas) AddShapeObjects(ctx context.Context, objs []*ShapeJSON) (_ []Shape, err error) {
	defer xdefer.Errorf(&err, "failed to add shape objects")

	type entry struct {
		sj     *ShapeJSON
		parent *ShapeJSON
	}
	var all []entry
	var walk func(objs []*ShapeJSON, parent *ShapeJSON)
	walk = func(objs []*ShapeJSON, parent *ShapeJSON) {
		for _, sj := range objs {
			if sj == nil {
				continue
			}
			all = append(all, entry{sj: sj, parent: parent})
			walk(sj.ChildShapes, sj)
		}
	}
	walk(objs, nil)

	var errs []error
	seen := make(map[string]struct{})
	for _, e := range all {
		id := e.sj.ResourceID
		if id != "" {
			if _, ok := seen[id]; ok {
				errs = append(errs, fmt.Errorf("duplicate resource id %q", id))
			}
			if _, ok := c.index[id]; ok {
				errs = append(errs, fmt.Errorf("resource id %q is already on the canvas", id))
			}
			seen[id] = struct{}{}
		}
		if c.set == nil {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownStencil, e.sj.Stencil.ID))
		} else if _, ok := c.set.Stencil(e.sj.Stencil.ID); !ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownStencil, e.sj.Stencil.ID))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	created := make([]Shape, 0, len(all))
	byJSON := make(map[*ShapeJSON]Shape, len(all))
	for _, e := range all {
		var opts []ShapeOption
		if e.sj.ResourceID != "" {
			opts = append(opts, ShapeID(e.sj.ResourceID))
		}
		s, err := c.NewShape(ctx, e.sj.Stencil.ID, opts...)
		if err != nil {
			return created, err
		}
		var parent Shape = c
		if p, ok := byJSON[e.parent]; ok {
			parent = p
		}
		if _, ok := s.(*Edge); ok {
			parent = c
		}
		if err := parent.Add(ctx, s); err != nil {
			return created, err
		}
		created = append(created, s)
		byJSON[e.sj] = s
	}

	sources := make(map[string]string)
	for _, e := range all {
		for _, o := range e.sj.Outgoing {
			if _, ok := byJSON[e.sj].(*Node); ok {
				sources[o.ResourceID] = byJSON[e.sj].ID()
			}
		}
	}
	for _, e := range all {
		n, ok := byJSON[e.sj].(*Node)
		if !ok {
			continue
		}
		if err := n.Deserialize(ctx, e.sj.triples("")); err != nil {
			errs = append(errs, err)
		}
	}
	for _, e := range all {
		edge, ok := byJSON[e.sj].(*Edge)
		if !ok {
			continue
		}
		if err := edge.Deserialize(ctx, e.sj.triples(sources[edge.id])); err != nil {
			errs = append(errs, err)
		}
	}
	log.Info(ctx, "added shape objects", slog.F("count", len(created)))
	return created, errors.Join(errs...)
}

// LoadJSON applies a canvas document's bounds, adds its shapes and lays the
// canvas out.
func (c *Canvas) LoadJSON(ctx context.Context, data []byte) (err error) {
	defer xdefer.Errorf(&err, "failed to load canvas document")

	var doc ShapeJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	ul, lr := doc.Bounds.UpperLeft, doc.Bounds.LowerRight
	if lr.X > ul.X && lr.Y > ul.Y {
		c.bounds.SetXYXY(ul.X, ul.Y, lr.X, lr.Y)
	}
	if _, err := c.AddShapeObjects(ctx, doc.ChildShapes); err != nil {
		return err
	}
	return c.Update(ctx)
}
