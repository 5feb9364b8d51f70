package skgraph

import (
	"context"
	"math"
	"strings"

	"cdr.dev/slog"
	"github.com/rivo/uniseg"
	"golang.org/x/text/unicode/norm"

	"github.com/stencilkit/stencilkit/lib/geo"
	"github.com/stencilkit/stencilkit/lib/label"
	"github.com/stencilkit/stencilkit/lib/log"
	"github.com/stencilkit/stencilkit/lib/svg"
	"github.com/stencilkit/stencilkit/lib/svgdom"
	"github.com/stencilkit/stencilkit/lib/textmeasure"
	"github.com/stencilkit/stencilkit/skstencil"
)

// Measurer measures the rendered width of a single line of text.
// *textmeasure.Ruler implements it.
type Measurer interface {
	MeasureWidth(f textmeasure.Font, s string) float64
}

type positionMode int8

const (
	modeDefault positionMode = iota
	modePositioned
	modeReferencePoint
	modeEdgePosition
)

type LabelSegment struct {
	FromIndex int       `json:"fromIndex"`
	ToIndex   int       `json:"toIndex"`
	From      geo.Point `json:"from"`
	To        geo.Point `json:"to"`
}

// ReferencePoint binds an edge label to a point on one of the edge's
// segments. The label keeps its offset from Intersection, which sits at
// fraction Distance of the segment.
type ReferencePoint struct {
	X            float64         `json:"x"`
	Y            float64         `json:"y"`
	Segment      LabelSegment    `json:"segment"`
	Intersection geo.Point       `json:"intersection"`
	Distance     float64         `json:"distance"`
	Orientation  geo.Orientation `json:"orientation"`
}

type Line struct {
	Text string
	DY   float64
}

type ListenerID int

// Label is a text view element owned by a shape.
type Label struct {
	id    string
	owner Shape
	elem  *svgdom.Element

	text        string
	textChanged bool
	fontSize    float64
	fontFamily  string
	fontStyle   textmeasure.FontStyle

	halign, originHAlign label.HAlign
	valign, originVAlign label.VAlign
	anchors              label.Anchors
	originAnchors        label.Anchors

	// x, y is the anchor point in owner coordinates.
	x, y             float64
	originX, originY float64

	mode           positionMode
	position       *geo.Point
	referencePoint *ReferencePoint
	edgePosition   label.EdgePosition
	originEdgePos  label.EdgePosition

	rotation, originRotation float64
	pivot                    *geo.Point

	fitToElem string
	hidden    bool
	color     string

	wrapped      []string
	lastFitWidth float64
	lines        []Line
	committedX   float64
	committedY   float64

	measureTask TaskID
	commitTask  TaskID

	listeners    map[ListenerID]func(*Label)
	nextListener ListenerID

	isChanged bool
}

func newLabel(owner Shape, def *skstencil.TextDef, elem *svgdom.Element, fontSize float64, fontFamily string) *Label {
	if def.FontSize > 0 {
		fontSize = def.FontSize
	}
	if ff := elem.Presentation("font-family"); ff != "" {
		fontFamily = ff
	}
	l := &Label{
		id:             def.ID,
		owner:          owner,
		elem:           elem,
		fontSize:       fontSize,
		fontFamily:     fontFamily,
		fontStyle:      fontStyle(elem),
		halign:         def.Align,
		originHAlign:   def.Align,
		valign:         def.Valign,
		originVAlign:   def.Valign,
		anchors:        def.Anchors,
		originAnchors:  def.Anchors,
		x:              def.X,
		y:              def.Y,
		originX:        def.X,
		originY:        def.Y,
		edgePosition:   def.EdgePosition,
		originEdgePos:  def.EdgePosition,
		rotation:       def.Rotation,
		originRotation: def.Rotation,
		fitToElem:      def.FitToElem,
		isChanged:      true,
		listeners:      make(map[ListenerID]func(*Label)),
	}
	if def.EdgePosition != label.Unset {
		l.mode = modeEdgePosition
	}
	l.setText(def.Text)
	elem.Text = ""
	elem.RemoveChildren()
	elem.RemoveAttrNS(svgdom.NamespaceOryx, "align")
	elem.RemoveAttrNS(svgdom.NamespaceOryx, "fittoelem")
	elem.RemoveAttrNS(svgdom.NamespaceOryx, "edgePosition")
	elem.RemoveAttrNS(svgdom.NamespaceOryx, "anchors")
	elem.RemoveAttrNS(svgdom.NamespaceOryx, "rotate")
	return l
}

func fontStyle(e *svgdom.Element) textmeasure.FontStyle {
	bold := e.Presentation("font-weight") == "bold"
	italic := e.Presentation("font-style") == "italic"
	switch {
	case bold && italic:
		return textmeasure.BoldItalic
	case bold:
		return textmeasure.Bold
	case italic:
		return textmeasure.Italic
	}
	return textmeasure.Regular
}

// ID is the reference name of the label in its owner's view.
func (l *Label) ID() string {
	return l.id
}

func (l *Label) Owner() Shape {
	return l.owner
}

func (l *Label) Element() *svgdom.Element {
	return l.elem
}

func (l *Label) Font() textmeasure.Font {
	return textmeasure.Font{
		Family: textmeasure.FamilyFromCSS(l.fontFamily),
		Style:  l.fontStyle,
		Size:   l.fontSize,
	}
}

func (l *Label) FontSize() float64 {
	return l.fontSize
}

func (l *Label) Text() string {
	return l.text
}

// SetText replaces the text. Runs of spaces collapse to one.
func (l *Label) SetText(s string) {
	if l.setText(s) {
		l.changed()
	}
}

func (l *Label) setText(s string) bool {
	s = svg.CollapseSpaces(norm.NFC.String(s))
	if s == l.text {
		return false
	}
	l.text = s
	l.textChanged = true
	return true
}

func (l *Label) changed() {
	l.isChanged = true
	if l.owner != nil {
		l.owner.base().markChanged()
	}
}

func (l *Label) IsChanged() bool {
	return l.isChanged
}

// HorizontalAlign is the effective horizontal alignment.
func (l *Label) HorizontalAlign() label.HAlign {
	h, _ := l.effectiveAlign()
	return h
}

// VerticalAlign is the effective vertical alignment.
func (l *Label) VerticalAlign() label.VAlign {
	_, v := l.effectiveAlign()
	return v
}

func (l *Label) SetHorizontalAlign(a label.HAlign) {
	if l.halign != a {
		l.halign = a
		l.changed()
	}
}

func (l *Label) SetVerticalAlign(a label.VAlign) {
	if l.valign != a {
		l.valign = a
		l.changed()
	}
}

func (l *Label) effectiveAlign() (label.HAlign, label.VAlign) {
	switch l.mode {
	case modeEdgePosition:
		return l.edgePosition.Alignment()
	case modeReferencePoint:
		switch l.referencePoint.Orientation {
		case geo.TopLeft:
			return label.Right, label.Bottom
		case geo.TopRight:
			return label.Left, label.Bottom
		case geo.BottomLeft:
			return label.Right, label.Top
		case geo.BottomRight:
			return label.Left, label.Top
		}
	}
	return l.halign, l.valign
}

// TextAnchor is the SVG text-anchor of the effective horizontal alignment.
func (l *Label) TextAnchor() string {
	return l.HorizontalAlign().TextAnchor()
}

func (l *Label) Anchors() label.Anchors {
	return l.anchors
}

func (l *Label) SetAnchors(a label.Anchors) {
	if l.anchors != a {
		l.anchors = a
		l.changed()
	}
}

// Position is the anchor point in owner coordinates.
func (l *Label) Position() geo.Point {
	return geo.Point{X: l.x, Y: l.y}
}

// SetPosition pins the label at p. A nil p returns it to its template
// position.
func (l *Label) SetPosition(p *geo.Point) {
	if p == nil {
		l.position = nil
		l.mode = modeDefault
		l.x, l.y = l.originX, l.originY
	} else {
		l.position = p.Copy()
		l.mode = modePositioned
		l.referencePoint = nil
	}
	l.changed()
}

func (l *Label) ReferencePoint() *ReferencePoint {
	if l.referencePoint == nil {
		return nil
	}
	rp := *l.referencePoint
	return &rp
}

func (l *Label) SetReferencePoint(rp *ReferencePoint) {
	if rp == nil {
		l.SetPosition(nil)
		return
	}
	cp := *rp
	l.referencePoint = &cp
	l.position = nil
	l.mode = modeReferencePoint
	l.changed()
}

// SetReferencePointAt binds an edge label dropped at p to the closest
// segment of the route. It reports false when the owner has no route.
func (l *Label) SetReferencePointAt(p geo.Point) bool {
	route := l.route()
	if len(route) < 2 {
		return false
	}
	i, inter := route.ClosestSegment(&p)
	seg := route.Segment(i)
	l.SetReferencePoint(&ReferencePoint{
		X:            p.X,
		Y:            p.Y,
		Segment:      LabelSegment{FromIndex: i, ToIndex: i + 1, From: *seg.Start, To: *seg.End},
		Intersection: *inter,
		Distance:     seg.Fraction(inter),
		Orientation:  p.GetOrientation(inter),
	})
	return true
}

func (l *Label) EdgePosition() label.EdgePosition {
	if l.mode != modeEdgePosition {
		return label.Unset
	}
	return l.edgePosition
}

// SetEdgePosition moves the label into a named edge slot. Unknown names are
// ignored and reported as false.
func (l *Label) SetEdgePosition(ctx context.Context, s string) bool {
	p := label.EdgePositionFromString(s)
	if p == label.Unset {
		log.Debug(ctx, "ignoring unknown edge position", slog.F("label", l.id), slog.F("position", s))
		return false
	}
	l.edgePosition = p
	l.mode = modeEdgePosition
	l.position = nil
	l.referencePoint = nil
	l.changed()
	return true
}

// ResetEdgePosition leaves the edge slot and returns to the template
// position.
func (l *Label) ResetEdgePosition() {
	if l.mode == modeEdgePosition {
		l.edgePosition = label.Unset
		l.SetPosition(nil)
	}
}

func (l *Label) Rotation() (float64, *geo.Point) {
	return l.rotation, l.pivot
}

// SetRotation rotates the label clockwise by angle degrees around pivot,
// or around its anchor point when pivot is nil.
func (l *Label) SetRotation(angle float64, pivot *geo.Point) {
	l.rotation = angle
	l.pivot = pivot.Copy()
	l.changed()
}

func (l *Label) Hide() {
	if !l.hidden {
		l.hidden = true
		l.changed()
	}
}

func (l *Label) Show() {
	if l.hidden {
		l.hidden = false
		l.changed()
	}
}

func (l *Label) IsVisible() bool {
	return !l.hidden
}

func (l *Label) setColor(c string) {
	if l.color != c {
		l.color = c
		l.changed()
	}
}

// Lines are the committed lines in tspan order.
func (l *Label) Lines() []Line {
	return append([]Line(nil), l.lines...)
}

func (l *Label) RegisterOnChange(fn func(*Label)) ListenerID {
	l.nextListener++
	l.listeners[l.nextListener] = fn
	return l.nextListener
}

func (l *Label) UnregisterOnChange(id ListenerID) {
	delete(l.listeners, id)
}

// transform applies the owner resize rule to the template and pinned
// positions.
func (l *Label) transform(oldW, oldH, newW, newH float64) {
	o := transformPoint(geo.Point{X: l.originX, Y: l.originY}, l.anchors, oldW, oldH, newW, newH)
	l.originX, l.originY = o.X, o.Y
	if l.mode == modeDefault {
		l.x, l.y = o.X, o.Y
	}
	if l.mode == modePositioned {
		p := transformPoint(*l.position, l.anchors, oldW, oldH, newW, newH)
		l.position = &p
	}
	l.changed()
}

func (l *Label) route() geo.Route {
	if e, ok := l.owner.(*Edge); ok {
		return e.Route()
	}
	return nil
}

func (l *Label) place(ctx context.Context) {
	switch l.mode {
	case modePositioned:
		l.x, l.y = l.position.X, l.position.Y
	case modeEdgePosition:
		route := l.route()
		if route == nil {
			return
		}
		cfg := l.owner.base().cfg
		p, _ := l.edgePosition.GetPointOnRoute(route, cfg.Label.EdgeStartOffset, cfg.Label.EdgeDistance)
		if p != nil {
			l.x, l.y = p.X, p.Y
		}
	case modeReferencePoint:
		l.placeAtReference(ctx)
	}
}

func (l *Label) placeAtReference(ctx context.Context) {
	rp := l.referencePoint
	route := l.route()
	if route == nil {
		l.x, l.y = rp.X, rp.Y
		return
	}
	seg := rp.Segment
	if seg.FromIndex < 0 || seg.ToIndex >= len(route) || seg.FromIndex >= seg.ToIndex {
		log.Debug(ctx, "label reference segment out of range, using closest segment", slog.F("label", l.id))
		i, _ := route.ClosestSegment(geo.NewPoint(rp.Intersection.X, rp.Intersection.Y))
		seg.FromIndex, seg.ToIndex = i, i+1
	}
	from, to := route[seg.FromIndex], route[seg.ToIndex]
	inter := from.Interpolate(to, rp.Distance)
	rp.X = inter.X + (rp.X - rp.Intersection.X)
	rp.Y = inter.Y + (rp.Y - rp.Intersection.Y)
	rp.Intersection = *inter
	seg.From, seg.To = *from, *to
	rp.Segment = seg
	l.x, l.y = rp.X, rp.Y
}

// Update re-lays out the label when it changed or force is set. Text
// wrapping runs as two deferred tasks on the canvas queue: measuring and
// committing. Labels of shapes that are not on a canvas run both inline.
func (l *Label) Update(ctx context.Context, force bool) {
	if !force && !l.isChanged {
		return
	}
	l.isChanged = false
	l.place(ctx)
	l.writeAttrs()

	q := l.queue()
	if q == nil {
		l.measure(ctx)
		l.commit(ctx)
		return
	}
	if l.measureTask != 0 {
		q.Cancel(l.measureTask)
	}
	if l.commitTask != 0 {
		q.Cancel(l.commitTask)
	}
	owner := l.owner.ID()
	l.measureTask = q.Schedule(owner, func(ctx context.Context) error {
		l.measureTask = 0
		l.measure(ctx)
		l.commitTask = q.Schedule(owner, func(ctx context.Context) error {
			l.commitTask = 0
			l.commit(ctx)
			return nil
		})
		return nil
	})
}

func (l *Label) queue() *Queue {
	if c := l.owner.base().canvas; c != nil {
		return c.queue
	}
	return nil
}

func (l *Label) measurer() Measurer {
	if c := l.owner.base().canvas; c != nil {
		return c.measurer
	}
	return nil
}

func (l *Label) writeAttrs() {
	e := l.elem
	e.SetAttr("x", fmtNum(l.x))
	e.SetAttr("y", fmtNum(l.y))
	e.SetAttr("font-size", fmtNum(l.fontSize))
	e.SetAttr("text-anchor", l.TextAnchor())
	if l.rotation != 0 {
		p := l.rotationPivot()
		e.SetAttr("transform", "rotate("+fmtNum(l.rotation)+" "+fmtNum(p.X)+" "+fmtNum(p.Y)+")")
	} else {
		e.RemoveAttr("transform")
	}
	if l.color != "" {
		e.SetAttr("fill", l.color)
	}
	setVisible(e, !l.hidden)
}

func (l *Label) rotationPivot() geo.Point {
	if l.pivot != nil {
		return *l.pivot
	}
	return geo.Point{X: l.x, Y: l.y}
}

// fitWidth is the width lines must fit in, from the fitToElem sub-shape.
func (l *Label) fitWidth() (float64, bool) {
	if l.fitToElem == "" {
		return 0, false
	}
	n, ok := l.owner.(*Node)
	if !ok {
		return 0, false
	}
	s := n.SVGShape(l.fitToElem)
	if s == nil {
		return 0, false
	}
	if math.Mod(math.Abs(l.rotation), 180) == 90 {
		return s.Height, true
	}
	return s.Width, true
}

func (l *Label) explicitLines() []string {
	if l.text == "" {
		return nil
	}
	return strings.Split(l.text, "\n")
}

// measure computes the wrapped lines. Text is only re-wrapped when it or
// the available width changed.
func (l *Label) measure(ctx context.Context) {
	width, ok := l.fitWidth()
	if !ok || l.text == "" {
		l.wrapped = l.explicitLines()
		l.textChanged = false
		return
	}
	if !l.textChanged && width == l.lastFitWidth && l.wrapped != nil {
		return
	}
	m := l.measurer()
	if m == nil {
		l.wrapped = l.explicitLines()
		l.owner.base().report(ctx, &LayoutError{
			Kind:    MeasurementUnavailable,
			ShapeID: l.owner.ID(),
			Message: "label " + l.id + " laid out without text measurement",
		})
	} else {
		var lines []string
		for _, line := range l.explicitLines() {
			lines = append(lines, wrapLine(m, l.Font(), line, width)...)
		}
		l.wrapped = lines
	}
	l.textChanged = false
	l.lastFitWidth = width
}

const breakChars = " -,;.:/\\"

// wrapLine splits line into pieces no wider than width, keeping at least one
// grapheme per piece. Pieces break after the last whitespace or punctuation
// that fits and inside a word only when none does.
func wrapLine(m Measurer, f textmeasure.Font, line string, width float64) []string {
	var out []string
	for line != "" {
		if m.MeasureWidth(f, line) <= width {
			out = append(out, line)
			break
		}
		bounds := textmeasure.GraphemeBoundaries(line)
		lo, hi := 1, len(bounds)-1
		for lo < hi {
			mid := (lo + hi + 1) / 2
			if m.MeasureWidth(f, line[:bounds[mid]]) <= width {
				lo = mid
			} else {
				hi = mid - 1
			}
		}
		cut := bounds[lo]
		// A prefix followed by a space already ends at a word.
		if line[cut] != ' ' {
			if i := strings.LastIndexAny(line[:cut], breakChars); i > 0 {
				if line[i] == ' ' {
					cut = i
				} else {
					cut = i + 1
				}
			}
		}
		piece := strings.TrimRight(line[:cut], " ")
		if piece == "" {
			piece = line[:bounds[1]]
			cut = bounds[1]
		}
		out = append(out, piece)
		line = strings.TrimLeft(line[cut:], " ")
	}
	return out
}

// commit writes the wrapped lines as tspans and notifies listeners when the
// rendered label changed.
func (l *Label) commit(ctx context.Context) {
	_, v := l.effectiveAlign()
	n := len(l.wrapped)
	lines := make([]Line, n)
	for i := range lines {
		text := l.wrapped[i]
		if v == label.Bottom {
			text = l.wrapped[n-1-i]
		}
		lines[i] = Line{Text: text, DY: v.LineOffset(i, n, l.fontSize)}
	}

	l.elem.RemoveChildren()
	for _, line := range lines {
		ts := svgdom.New("tspan")
		ts.SetAttr("x", fmtNum(l.x))
		ts.SetAttr("y", fmtNum(l.y))
		ts.SetAttr("dy", fmtNum(line.DY))
		ts.Text = line.Text
		l.elem.AppendChild(ts)
	}

	changed := !equalLines(l.lines, lines) || l.committedX != l.x || l.committedY != l.y
	l.lines = lines
	l.committedX, l.committedY = l.x, l.y
	if !changed {
		return
	}
	for id := ListenerID(1); id <= l.nextListener; id++ {
		if fn, ok := l.listeners[id]; ok {
			fn(l)
		}
	}
}

func equalLines(a, b []Line) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (l *Label) lineWidth(s string) float64 {
	if m := l.measurer(); m != nil {
		return m.MeasureWidth(l.Font(), s)
	}
	return l.fontSize * 0.6 * float64(uniseg.GraphemeClusterCount(s))
}

// BBox is the box of the committed lines in owner coordinates, including
// rotation.
func (l *Label) BBox() *geo.Box {
	var w float64
	for _, line := range l.lines {
		w = math.Max(w, l.lineWidth(line.Text))
	}
	h := float64(len(l.lines)) * l.fontSize
	x, y := l.committedX, l.committedY

	hAlign, vAlign := l.effectiveAlign()
	switch hAlign {
	case label.Center:
		x -= w / 2
	case label.Right:
		x -= w
	}
	switch vAlign {
	case label.Middle:
		y -= h / 2
	case label.Bottom:
		y -= h
	}
	box := geo.NewBox(geo.NewPoint(x, y), w, h)
	if l.rotation == 0 {
		return box
	}
	return box.Rotate(l.rotation, l.rotationPivot())
}

// LabelState is the persisted form of a label: only what differs from the
// template.
type LabelState struct {
	Ref            string          `json:"ref"`
	X              *float64        `json:"x,omitempty"`
	Y              *float64        `json:"y,omitempty"`
	Align          string          `json:"align,omitempty"`
	Valign         string          `json:"valign,omitempty"`
	Anchors        *string         `json:"anchors,omitempty"`
	EdgePosition   *string         `json:"edgePosition,omitempty"`
	ReferencePoint *ReferencePoint `json:"referencePoint,omitempty"`
	Rotation       *float64        `json:"rotation,omitempty"`
	Pivot          *geo.Point      `json:"pivot,omitempty"`
}

// IsEmpty reports whether the state carries no deltas.
func (s *LabelState) IsEmpty() bool {
	return s.X == nil && s.Y == nil && s.Align == "" && s.Valign == "" &&
		s.Anchors == nil && s.EdgePosition == nil && s.ReferencePoint == nil &&
		s.Rotation == nil && s.Pivot == nil
}

func (l *Label) Serialize() *LabelState {
	s := &LabelState{Ref: l.id}
	switch l.mode {
	case modePositioned:
		x, y := l.position.X, l.position.Y
		s.X, s.Y = &x, &y
	case modeReferencePoint:
		s.ReferencePoint = l.ReferencePoint()
	case modeEdgePosition:
		if l.edgePosition != l.originEdgePos {
			ep := l.edgePosition.String()
			s.EdgePosition = &ep
		}
	}
	if l.mode != modeEdgePosition && l.originEdgePos != label.Unset {
		ep := ""
		s.EdgePosition = &ep
	}
	if l.halign != l.originHAlign {
		s.Align = l.halign.String()
	}
	if l.valign != l.originVAlign {
		s.Valign = l.valign.String()
	}
	if l.anchors != l.originAnchors {
		a := l.anchors.String()
		s.Anchors = &a
	}
	if l.rotation != l.originRotation {
		r := l.rotation
		s.Rotation = &r
	}
	s.Pivot = l.pivot.Copy()
	return s
}

// Deserialize applies a state written by Serialize.
func (l *Label) Deserialize(ctx context.Context, s *LabelState) {
	if s == nil {
		return
	}
	if a, ok := label.HAlignFromString(s.Align); ok {
		l.halign = a
	}
	if a, ok := label.VAlignFromString(s.Valign); ok {
		l.valign = a
	}
	if s.Anchors != nil {
		l.anchors = label.ParseAnchors(*s.Anchors)
	}
	if s.Rotation != nil {
		l.rotation = *s.Rotation
	}
	if s.Pivot != nil {
		l.pivot = s.Pivot.Copy()
	}
	switch {
	case s.X != nil && s.Y != nil:
		l.SetPosition(geo.NewPoint(*s.X, *s.Y))
	case s.ReferencePoint != nil:
		l.SetReferencePoint(s.ReferencePoint)
	case s.EdgePosition != nil && *s.EdgePosition == "":
		l.edgePosition = label.Unset
		l.SetPosition(nil)
	case s.EdgePosition != nil:
		l.SetEdgePosition(ctx, *s.EdgePosition)
	default:
		l.changed()
	}
}
