package skgraph

import (
	"testing"

	tassert "github.com/stretchr/testify/assert"

	"oss.terrastruct.com/util-go/assert"

	"github.com/stencilkit/stencilkit/lib/geo"
	"github.com/stencilkit/stencilkit/lib/svgdom"
)

func TestAnchoredResize(t *testing.T) {
	t.Parallel()

	ctx, c := newTestCanvas(t, loadBasic(t))
	n := mustNode(ctx, t, c, "Marker", c, 0, 0)
	assert.Success(t, c.Update(ctx))

	n.Bounds().SetSize(200, 100)
	assert.Success(t, c.Update(ctx))

	testCases := []struct {
		id    string
		x     float64
		width float64
	}{
		{id: "frame", x: 0, width: 200},
		// Unanchored and not resizable: only the position scales.
		{id: "free", x: 80, width: 20},
		{id: "right1", x: 160, width: 40},
		{id: "right2", x: 180, width: 20},
		{id: "stretch", x: 10, width: 180},
	}
	for _, tc := range testCases {
		s := n.SVGShape(tc.id)
		if s == nil {
			t.Fatalf("missing sub-shape %q", tc.id)
		}
		assert.Equal(t, tc.x, s.X)
		assert.Equal(t, tc.width, s.Width)
	}
	assert.String(t, "80", n.SVGShape("free").Element().Attr("x"))
	assert.String(t, "180", n.SVGShape("stretch").Element().Attr("width"))
	assert.String(t, "translate(0,0)", n.Element().Attr("transform"))
}

func TestResizeScalesFromLastUpdate(t *testing.T) {
	t.Parallel()

	ctx, c := newTestCanvas(t, loadBasic(t))
	n := mustNode(ctx, t, c, "Marker", c, 0, 0)
	assert.Success(t, c.Update(ctx))

	n.Bounds().SetSize(200, 100)
	assert.Success(t, c.Update(ctx))
	n.Bounds().SetSize(100, 100)
	assert.Success(t, c.Update(ctx))

	assert.Equal(t, 40.0, n.SVGShape("free").X)
	assert.Equal(t, 80.0, n.SVGShape("right1").X)
	assert.Equal(t, 20.0, n.SVGShape("right1").Width)
	assert.Equal(t, 80.0, n.SVGShape("stretch").Width)
}

func TestSizeConstraints(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		stencil string
		setup   func(n *Node)
		w, h    float64
	}{
		{
			name:    "minimum",
			stencil: "Pool",
			setup: func(n *Node) {
				n.Bounds().SetSize(20, 20)
			},
			w: 100,
			h: 50,
		},
		{
			name:    "maximum",
			stencil: "Task",
			setup: func(n *Node) {
				n.Bounds().SetSize(1000, 1000)
			},
			w: 400,
			h: 300,
		},
		{
			name:    "forced_height",
			stencil: "Task",
			setup: func(n *Node) {
				n.ForcedHeight = 120
				n.markChanged()
			},
			w: 100,
			h: 120,
		},
		{
			name:    "minimum_wins",
			stencil: "Task",
			setup: func(n *Node) {
				n.SetMaximumSize(geo.NewSize(30, 30))
			},
			w: 50,
			h: 40,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx, c := newTestCanvas(t, loadBasic(t), WithMeasurer(runeMeasurer(6)))
			n := mustNode(ctx, t, c, tc.stencil, c, 10, 10)
			assert.Success(t, c.Update(ctx))

			tc.setup(n)
			assert.Success(t, c.Update(ctx))
			assert.Equal(t, tc.w, n.Bounds().Width())
			assert.Equal(t, tc.h, n.Bounds().Height())
			assert.Equal(t, geo.Point{X: 10, Y: 10}, n.Bounds().UpperLeft())
		})
	}
}

func TestPoolMinimumClampMovesParts(t *testing.T) {
	t.Parallel()

	ctx, c := newTestCanvas(t, loadBasic(t), WithMeasurer(runeMeasurer(6)))
	n := mustNode(ctx, t, c, "Pool", c, 0, 0)
	assert.Success(t, c.Update(ctx))

	n.Bounds().SetSize(20, 20)
	assert.Success(t, c.Update(ctx))

	caption := n.SVGShape("caption")
	assert.Equal(t, 30.0, caption.Width)
	assert.Equal(t, 50.0, caption.Height)
	assert.Equal(t, geo.Point{X: 15, Y: 25}, n.Label("text_name").Position())
}

func TestMagnetsAndDockerFollowResize(t *testing.T) {
	t.Parallel()

	ctx, c := newTestCanvas(t, loadBasic(t))
	task := mustNode(ctx, t, c, "Task", c, 0, 0)
	event := mustNode(ctx, t, c, "StartEvent", c, 300, 0)
	assert.Success(t, c.Update(ctx))

	task.Bounds().SetSize(200, 160)
	event.Bounds().SetSize(60, 60)
	assert.Success(t, c.Update(ctx))

	m := task.Magnets()
	assert.Equal(t, geo.Point{X: 0, Y: 80}, m[0].Center())
	assert.Equal(t, geo.Point{X: 100, Y: 160}, m[1].Center())
	assert.Equal(t, geo.Point{X: 200, Y: 80}, m[2].Center())
	assert.Equal(t, geo.Point{X: 100, Y: 80}, m[4].Center())
	assert.Equal(t, true, m[4].Default)

	assert.Equal(t, geo.Point{X: 30, Y: 30}, event.Docker().Center())
	assert.Equal(t, geo.Point{X: 330, Y: 30}, event.Docker().AbsoluteCenter())
}

func TestFitToLabels(t *testing.T) {
	t.Parallel()

	ctx, c := newTestCanvas(t, loadInline(t), WithMeasurer(runeMeasurer(10)))
	n := mustNode(ctx, t, c, "Lane", c, 0, 0)
	assert.Success(t, n.SetProperty("text", TextValue("abcdefghijklmnop")))
	assert.Success(t, c.Update(ctx))

	// One line at y 10 ends at 20. Width is left alone.
	assert.Equal(t, 100.0, n.Bounds().Width())
	assert.Equal(t, 20.0, n.Bounds().Height())
	assert.Equal(t, 20.0, n.SVGShape("frame").Height)

	assert.Equal(t, false, n.FitToLabels())
	assert.Success(t, c.Update(ctx))
	assert.Equal(t, 20.0, n.Bounds().Height())
	assert.Equal(t, true, c.Diagnostics().Empty())

	assert.Success(t, n.SetProperty("text", TextValue("a\nb\nc\nd\ne")))
	assert.Success(t, c.Update(ctx))
	assert.Equal(t, 60.0, n.Bounds().Height())
	assert.Equal(t, 100.0, n.Bounds().Width())

	n.Bounds().SetSize(100, 300)
	assert.Success(t, n.SetProperty("text", TextValue("ab")))
	assert.Success(t, c.Update(ctx))
	assert.Equal(t, 20.0, n.Bounds().Height())

	n.SetMinimumSize(&geo.Size{Width: 50, Height: 30})
	n.Bounds().SetSize(100, 300)
	assert.Equal(t, true, n.FitToLabels())
	assert.Equal(t, 30.0, n.Bounds().Height())
	assert.Equal(t, false, n.FitToLabels())
}

func TestFitToLabelsForcedHeight(t *testing.T) {
	t.Parallel()

	ctx, c := newTestCanvas(t, loadInline(t), WithMeasurer(runeMeasurer(10)))
	n := mustNode(ctx, t, c, "Lane", c, 0, 0)
	n.ForcedHeight = 40
	assert.Success(t, n.SetProperty("text", TextValue("a\nb\nc\nd\ne\nf\ng")))
	assert.Success(t, c.Update(ctx))

	assert.Equal(t, false, n.FitToLabels())
	assert.Equal(t, 40.0, n.Bounds().Height())
	assert.Success(t, c.Update(ctx))
	assert.Equal(t, 40.0, n.Bounds().Height())
}

func TestIsPointIncluded(t *testing.T) {
	t.Parallel()

	ctx, c := newTestCanvas(t, loadBasic(t))
	pool := mustNode(ctx, t, c, "Pool", c, 0, 300)
	task := mustNode(ctx, t, c, "Task", pool, 100, 50)
	event := mustNode(ctx, t, c, "StartEvent", c, 700, 0)
	assert.Success(t, c.Update(ctx))

	testCases := []struct {
		name string
		x, y float64
		exp  Shape
	}{
		{name: "child_over_parent", x: 150, y: 390, exp: task},
		{name: "parent", x: 300, y: 500, exp: pool},
		{name: "circle_center", x: 716, y: 16, exp: event},
		{name: "circle_corner", x: 701, y: 1, exp: nil},
		{name: "empty", x: 1000, y: 1000, exp: nil},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := c.ShapeAt(tc.x, tc.y)
			if tc.exp == nil {
				tassert.Nil(t, got)
				return
			}
			tassert.Equal(t, tc.exp.ID(), got.ID())
		})
	}

	assert.Equal(t, geo.Point{X: 100, Y: 350}, task.AbsoluteBounds().UpperLeft())
	assert.Equal(t, true, task.IsPointIncluded(101, 351))
	assert.Equal(t, false, task.IsPointIncluded(99-c.cfg.Layout.HitTolerance, 351))
}

func TestNewNodeView(t *testing.T) {
	t.Parallel()

	ctx, c := newTestCanvas(t, loadBasic(t))
	s, err := c.NewShape(ctx, "Task", ShapeID("t1"))
	assert.Success(t, err)
	n := s.(*Node)

	assert.String(t, "svg-t1", n.Element().ID())
	typ, _ := n.Element().AttrNS(svgdom.NamespaceOryx, "type")
	assert.String(t, "http://stencilkit.dev/stencilset/basic#Task", typ)
	frame := n.Element().FindByID("t1bg_frame")
	if frame == nil {
		t.Fatal("missing bg_frame instance")
	}
	assert.String(t, "url(#t1background)", frame.Attr("fill"))
	assert.Equal(t, true, n.IsHorizontallyResizable())
	assert.Equal(t, true, n.IsVerticallyResizable())
	assert.Equal(t, 5, len(n.Magnets()))
	assert.Equal(t, 0, len(n.Dockers()))

	_, err = c.NewShape(ctx, "Nope")
	tassert.ErrorIs(t, err, ErrUnknownStencil)
}
