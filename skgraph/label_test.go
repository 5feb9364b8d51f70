package skgraph

import (
	"testing"

	tassert "github.com/stretchr/testify/assert"

	"oss.terrastruct.com/util-go/assert"

	"github.com/stencilkit/stencilkit/lib/geo"
	"github.com/stencilkit/stencilkit/lib/label"
	"github.com/stencilkit/stencilkit/lib/textmeasure"
)

func TestLabelBottomAligned(t *testing.T) {
	t.Parallel()

	ctx, c := newTestCanvas(t, loadInline(t), WithMeasurer(runeMeasurer(7)))
	n := mustNode(ctx, t, c, "Note", c, 0, 0)
	assert.Success(t, n.SetProperty("text", TextValue("Alpha\nBeta\nGamma")))
	assert.Success(t, c.Update(ctx))

	l := n.Label("text")
	tassert.Equal(t, []Line{
		{Text: "Gamma", DY: 0},
		{Text: "Beta", DY: -14},
		{Text: "Alpha", DY: -28},
	}, l.Lines())

	tspans := l.Element().Children
	assert.Equal(t, 3, len(tspans))
	assert.String(t, "Gamma", tspans[0].Text)
	assert.String(t, "0", tspans[0].Attr("dy"))
	assert.String(t, "-28", tspans[2].Attr("dy"))
	assert.String(t, "middle", l.Element().Attr("text-anchor"))
	assert.Equal(t, true, c.Diagnostics().Empty())
}

func TestWrapLine(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		line  string
		width float64
		exp   []string
	}{
		{
			name:  "whitespace",
			line:  "hello world foo",
			width: 100,
			exp:   []string{"hello", "world foo"},
		},
		{
			name:  "prefix_ends_at_space",
			line:  "aa bb cc",
			width: 50,
			exp:   []string{"aa bb", "cc"},
		},
		{
			name:  "fits",
			line:  "short",
			width: 100,
			exp:   []string{"short"},
		},
		{
			name:  "hyphen",
			line:  "a-b-c-d",
			width: 40,
			exp:   []string{"a-b-", "c-d"},
		},
		{
			name:  "no_break",
			line:  "supercalifragilistic",
			width: 50,
			exp:   []string{"super", "calif", "ragil", "istic"},
		},
		{
			name:  "too_narrow",
			line:  "xy",
			width: 5,
			exp:   []string{"x", "y"},
		},
		{
			name:  "graphemes",
			line:  "héllo wörld",
			width: 60,
			exp:   []string{"héllo", "wörld"},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := wrapLine(runeMeasurer(10), textmeasure.Font{Size: 10}, tc.line, tc.width)
			tassert.Equal(t, tc.exp, got)
		})
	}
}

func TestLabelWrapsToFitElement(t *testing.T) {
	t.Parallel()

	ctx, c := newTestCanvas(t, loadBasic(t), WithMeasurer(runeMeasurer(10)))
	n := mustNode(ctx, t, c, "Task", c, 0, 0)
	assert.Success(t, n.SetProperty("name", StringValue("hello   world foo")))
	assert.Success(t, c.Update(ctx))

	l := n.Label("text_name")
	assert.String(t, "hello world foo", l.Text())
	tassert.Equal(t, []Line{
		{Text: "hello", DY: 0},
		{Text: "world foo", DY: 12},
	}, l.Lines())

	// Widening the frame re-wraps.
	n.Bounds().SetSize(200, 80)
	assert.Success(t, c.Update(ctx))
	tassert.Equal(t, []Line{{Text: "hello world foo", DY: 6}}, l.Lines())
}

func TestLabelWithoutMeasurer(t *testing.T) {
	t.Parallel()

	ctx, c := newTestCanvas(t, loadBasic(t))
	n := mustNode(ctx, t, c, "Task", c, 0, 0)
	assert.Success(t, n.SetProperty("name", StringValue("hello world foo")))
	assert.Success(t, c.Update(ctx))

	tassert.Equal(t, []Line{{Text: "hello world foo", DY: 6}}, n.Label("text_name").Lines())
	diags := c.Diagnostics().Of(MeasurementUnavailable)
	assert.Equal(t, 1, len(diags))
	assert.String(t, n.ID(), diags[0].ShapeID)
}

func TestLabelOnChange(t *testing.T) {
	t.Parallel()

	ctx, c := newTestCanvas(t, loadBasic(t), WithMeasurer(runeMeasurer(6)))
	n := mustNode(ctx, t, c, "Task", c, 0, 0)
	l := n.Label("text_name")

	calls := 0
	id := l.RegisterOnChange(func(*Label) {
		calls++
	})
	assert.Success(t, n.SetProperty("name", StringValue("one")))
	assert.Success(t, c.Update(ctx))
	assert.Equal(t, 1, calls)

	// Unchanged lines and position do not notify.
	l.Update(ctx, true)
	assert.Success(t, c.Update(ctx))
	assert.Equal(t, 1, calls)

	l.UnregisterOnChange(id)
	assert.Success(t, n.SetProperty("name", StringValue("two")))
	assert.Success(t, c.Update(ctx))
	assert.Equal(t, 1, calls)
}

func TestLabelEdgePosition(t *testing.T) {
	t.Parallel()

	ctx, c := newTestCanvas(t, loadBasic(t), WithMeasurer(runeMeasurer(6)))
	e := mustEdge(ctx, t, c, nil, nil)
	assert.Success(t, c.Update(ctx))

	l := e.Label("text_name")
	assert.Equal(t, label.MidTop, l.EdgePosition())
	assert.Equal(t, 110.0, l.Position().X)
	tassert.Less(t, l.Position().Y, 50.0)

	assert.Equal(t, false, l.SetEdgePosition(ctx, "sideways"))
	assert.Equal(t, label.MidTop, l.EdgePosition())

	assert.Equal(t, true, l.SetEdgePosition(ctx, "endbottom"))
	assert.Success(t, c.Update(ctx))
	assert.Equal(t, 200.0, l.Position().X)
	tassert.Greater(t, l.Position().Y, 50.0)
	h, v := l.HorizontalAlign(), l.VerticalAlign()
	assert.Equal(t, label.EndBottom.String(), l.EdgePosition().String())
	ah, av := label.EndBottom.Alignment()
	assert.Equal(t, ah, h)
	assert.Equal(t, av, v)

	l.ResetEdgePosition()
	assert.Equal(t, label.Unset, l.EdgePosition())
}

func TestLabelReferencePointFollowsEdge(t *testing.T) {
	t.Parallel()

	ctx, c := newTestCanvas(t, loadBasic(t), WithMeasurer(runeMeasurer(6)))
	e := mustEdge(ctx, t, c, nil, nil)
	e.Dockers()[0].SetCenter(geo.Point{X: 0, Y: 0})
	e.Dockers()[1].SetCenter(geo.Point{X: 100, Y: 0})
	assert.Success(t, c.Update(ctx))

	l := e.Label("text_name")
	l.SetReferencePoint(&ReferencePoint{
		X:            50,
		Y:            -10,
		Segment:      LabelSegment{FromIndex: 0, ToIndex: 1},
		Intersection: geo.Point{X: 50, Y: 0},
		Distance:     0.5,
		Orientation:  geo.BottomRight,
	})
	assert.Success(t, c.Update(ctx))
	assert.Equal(t, geo.Point{X: 50, Y: -10}, l.Position())
	assert.Equal(t, label.Left, l.HorizontalAlign())
	assert.Equal(t, label.Top, l.VerticalAlign())

	e.Dockers()[1].SetCenter(geo.Point{X: 200, Y: 0})
	assert.Success(t, c.Update(ctx))
	assert.Equal(t, geo.Point{X: 100, Y: -10}, l.Position())
	assert.Equal(t, geo.Point{X: 100, Y: 0}, l.ReferencePoint().Intersection)
}

func TestLabelSetReferencePointAt(t *testing.T) {
	t.Parallel()

	ctx, c := newTestCanvas(t, loadBasic(t), WithMeasurer(runeMeasurer(6)))
	e := mustEdge(ctx, t, c, nil, nil)
	e.Dockers()[0].SetCenter(geo.Point{X: 0, Y: 0})
	e.Dockers()[1].SetCenter(geo.Point{X: 100, Y: 0})
	assert.Success(t, c.Update(ctx))

	l := e.Label("text_name")
	assert.Equal(t, true, l.SetReferencePointAt(geo.Point{X: 120, Y: -10}))
	rp := l.ReferencePoint()
	assert.Equal(t, geo.Point{X: 100, Y: 0}, rp.Intersection)
	assert.Equal(t, 1.0, rp.Distance)
	assert.Equal(t, geo.TopRight, rp.Orientation)
	assert.Equal(t, 0, rp.Segment.FromIndex)

	assert.Success(t, c.Update(ctx))
	assert.Equal(t, geo.Point{X: 120, Y: -10}, l.Position())
	assert.Equal(t, label.Left, l.HorizontalAlign())
	assert.Equal(t, label.Bottom, l.VerticalAlign())

	e.Dockers()[1].SetCenter(geo.Point{X: 200, Y: 0})
	assert.Success(t, c.Update(ctx))
	assert.Equal(t, geo.Point{X: 220, Y: -10}, l.Position())

	n := mustNode(ctx, t, c, "Task", c, 0, 0)
	assert.Equal(t, false, n.Label("text_name").SetReferencePointAt(geo.Point{X: 1, Y: 1}))
}

func TestLabelSerializeRoundTrip(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		stencil string
		ref     string
		mutate  func(l *Label)
		empty   bool
	}{
		{
			name:    "node_default",
			stencil: "Task",
			ref:     "text_name",
			mutate:  func(*Label) {},
			empty:   true,
		},
		{
			name:    "edge_default",
			stencil: "SequenceFlow",
			ref:     "text_name",
			mutate:  func(*Label) {},
			empty:   true,
		},
		{
			name:    "positioned",
			stencil: "Task",
			ref:     "text_name",
			mutate: func(l *Label) {
				l.SetPosition(geo.NewPoint(10, 20))
			},
		},
		{
			name:    "edge_position",
			stencil: "SequenceFlow",
			ref:     "text_condition",
			mutate: func(l *Label) {
				l.edgePosition = label.EndTop
			},
		},
		{
			name:    "cleared_edge_position",
			stencil: "SequenceFlow",
			ref:     "text_name",
			mutate: func(l *Label) {
				l.SetPosition(nil)
			},
		},
		{
			name:    "positioned_edge_label",
			stencil: "SequenceFlow",
			ref:     "text_name",
			mutate: func(l *Label) {
				l.SetPosition(geo.NewPoint(-4, 7))
			},
		},
		{
			name:    "reference_point",
			stencil: "SequenceFlow",
			ref:     "text_name",
			mutate: func(l *Label) {
				l.SetReferencePoint(&ReferencePoint{
					X:            60,
					Y:            40,
					Segment:      LabelSegment{FromIndex: 0, ToIndex: 1, From: geo.Point{X: 10, Y: 50}, To: geo.Point{X: 210, Y: 50}},
					Intersection: geo.Point{X: 60, Y: 50},
					Distance:     0.25,
					Orientation:  geo.TopLeft,
				})
			},
		},
		{
			name:    "alignment_anchors_rotation",
			stencil: "Task",
			ref:     "text_name",
			mutate: func(l *Label) {
				l.SetHorizontalAlign(label.Right)
				l.SetVerticalAlign(label.Top)
				l.SetAnchors(label.AnchorLeft | label.AnchorBottom)
				l.SetRotation(90, geo.NewPoint(5, 5))
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx, c := newTestCanvas(t, loadBasic(t))
			a, err := c.NewShape(ctx, tc.stencil)
			assert.Success(t, err)
			b, err := c.NewShape(ctx, tc.stencil)
			assert.Success(t, err)

			tc.mutate(a.Label(tc.ref))
			state := a.Label(tc.ref).Serialize()
			assert.Equal(t, tc.empty, state.IsEmpty())

			b.Label(tc.ref).Deserialize(ctx, state)
			tassert.Equal(t, state, b.Label(tc.ref).Serialize())
		})
	}
}

func TestLabelBBoxRotated(t *testing.T) {
	t.Parallel()

	ctx, c := newTestCanvas(t, loadInline(t), WithMeasurer(runeMeasurer(10)))
	n := mustNode(ctx, t, c, "Lane", c, 0, 0)
	assert.Success(t, n.SetProperty("text", TextValue("abcd")))
	assert.Success(t, c.Update(ctx))

	l := n.Label("text")
	box := l.BBox()
	assert.Equal(t, 10.0, box.TopLeft.X)
	assert.Equal(t, 40.0, box.Width)
	assert.Equal(t, 10.0, box.Height)

	l.SetRotation(90, geo.NewPoint(10, 10))
	assert.Success(t, c.Update(ctx))
	box = l.BBox()
	tassert.InDelta(t, 10.0, box.Width, 1e-9)
	tassert.InDelta(t, 40.0, box.Height, 1e-9)
	// The lane grows to fit the rotated label.
	tassert.InDelta(t, 50.0, n.Bounds().Height(), 1e-9)
	assert.String(t, "rotate(90 10 10)", l.Element().Attr("transform"))
}
