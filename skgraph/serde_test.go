package skgraph

import (
	"encoding/json"
	"testing"

	tassert "github.com/stretchr/testify/assert"

	"oss.terrastruct.com/util-go/assert"

	"github.com/stencilkit/stencilkit/lib/geo"
)

func TestNodeTriples(t *testing.T) {
	t.Parallel()

	ctx, c := newTestCanvas(t, loadBasic(t), WithMeasurer(runeMeasurer(6)))
	n := mustNode(ctx, t, c, "Task", c, 10, 20)
	assert.Success(t, n.SetProperty("name", StringValue("Check order")))
	assert.Success(t, n.SetProperty("priority", IntValue(3)))
	n.Label("text_name").SetPosition(geo.NewPoint(12, 14))
	assert.Success(t, c.Update(ctx))

	triples := n.Serialize()
	tassert.Contains(t, triples, literal("type", "http://stencilkit.dev/stencilset/basic#Task"))
	tassert.Contains(t, triples, literal("bounds", "10,20,110,100"))
	tassert.Contains(t, triples, literal("name", "Check order"))
	tassert.Contains(t, triples, literal("priority", "3"))
	tassert.Contains(t, triples, resource("parent", "canvas"))

	ctx2, c2 := newTestCanvas(t, loadBasic(t), WithMeasurer(runeMeasurer(6)))
	m := mustNode(ctx2, t, c2, "Task", c2, 0, 0)
	assert.Success(t, m.Deserialize(ctx2, triples))
	assert.Success(t, c2.Update(ctx2))

	assert.Equal(t, geo.Point{X: 10, Y: 20}, m.Bounds().UpperLeft())
	assert.Equal(t, geo.Point{X: 110, Y: 100}, m.Bounds().LowerRight())
	assert.Equal(t, StringValue("Check order"), m.Property("name"))
	assert.Equal(t, IntValue(3), m.Property("priority"))
	assert.Equal(t, geo.Point{X: 12, Y: 14}, m.Label("text_name").Position())
	assert.Equal(t, true, c2.Diagnostics().Empty())
}

func TestEdgeTriples(t *testing.T) {
	t.Parallel()

	ctx, c := newTestCanvas(t, loadBasic(t))
	a := mustNode(ctx, t, c, "Task", c, 0, 0)
	b := mustNode(ctx, t, c, "Task", c, 300, 100)
	e := mustEdge(ctx, t, c, a, b)
	e.AddDocker(1, geo.Point{X: 350, Y: 40})
	assert.Success(t, c.Update(ctx))

	triples := e.Serialize()
	tassert.Contains(t, triples, literal("dockers", "50 40 350 40 50 40 #"))
	tassert.Contains(t, triples, resource("source", a.ID()))
	tassert.Contains(t, triples, resource("target", b.ID()))
	tassert.Contains(t, triples, resource("outgoing", b.ID()))
	tassert.Contains(t, a.Serialize(), resource("outgoing", e.ID()))

	ctx2, c2 := newTestCanvas(t, loadBasic(t))
	a2, err := c2.NewShape(ctx2, "Task", ShapeID(a.ID()))
	assert.Success(t, err)
	assert.Success(t, c2.Add(ctx2, a2))
	b2, err := c2.NewShape(ctx2, "Task", ShapeID(b.ID()))
	assert.Success(t, err)
	assert.Success(t, c2.Add(ctx2, b2))
	b2.Bounds().MoveTo(geo.Point{X: 300, Y: 100})
	e2 := mustEdge(ctx2, t, c2, nil, nil)

	assert.Success(t, e2.Deserialize(ctx2, triples))
	assert.Success(t, c2.Update(ctx2))
	assert.Equal(t, 3, len(e2.Dockers()))
	tassert.Equal(t, a2, Shape(e2.Source()))
	tassert.Equal(t, b2, Shape(e2.Target()))
	tassert.Equal(t, e.Route(), e2.Route())
	assert.Equal(t, geo.Point{X: 350, Y: 140}, e2.Dockers()[2].Center())
}

func TestSerializeHooks(t *testing.T) {
	t.Parallel()

	hooks := map[string]Hooks{
		"Task": {
			Serialize: func(s Shape, triples []Triple) []Triple {
				return append(triples, Triple{Prefix: PrefixOryx, Name: "legacyname", Value: s.Property("name").String(), Type: TypeLiteral})
			},
			Deserialize: func(s Shape, triples []Triple) []Triple {
				out := triples[:0:0]
				for _, tr := range triples {
					if tr.Name == "legacyname" {
						tr.Name = "name"
					}
					out = append(out, tr)
				}
				return out
			},
		},
	}
	ctx, c := newTestCanvas(t, loadBasic(t), WithHooks(hooks))
	n := mustNode(ctx, t, c, "Task", c, 0, 0)
	assert.Success(t, n.SetProperty("name", StringValue("Ship")))
	tassert.Contains(t, n.Serialize(), literal("legacyname", "Ship"))

	m := mustNode(ctx, t, c, "Task", c, 0, 0)
	assert.Success(t, m.Deserialize(ctx, []Triple{literal("legacyname", "Pack")}))
	assert.Equal(t, StringValue("Pack"), m.Property("name"))

	// Other stencils are untouched.
	p := mustNode(ctx, t, c, "Pool", c, 0, 0)
	for _, tr := range p.Serialize() {
		tassert.NotEqual(t, "legacyname", tr.Name)
	}
}

func TestDeserializeErrors(t *testing.T) {
	t.Parallel()

	t.Run("node", func(t *testing.T) {
		t.Parallel()

		ctx, c := newTestCanvas(t, loadBasic(t))
		event := mustNode(ctx, t, c, "StartEvent", c, 0, 0)
		err := event.Deserialize(ctx, []Triple{
			literal("bounds", "1,2,3"),
			literal("name", "Start"),
			literal("nope", "ignored"),
			literal("icon", "https://example.com/a.png"),
			literal("dockers", "5 5 #"),
			resource("target", "ghost"),
		})
		tassert.Error(t, err)
		assert.Equal(t, StringValue("Start"), event.Property("name"))
		tassert.Nil(t, event.Docker().DockedShape())
		assert.Equal(t, 1, len(c.Diagnostics().Of(DanglingReference)))
	})

	t.Run("type_mismatch", func(t *testing.T) {
		t.Parallel()

		ctx, c := newTestCanvas(t, loadBasic(t))
		n := mustNode(ctx, t, c, "Task", c, 0, 0)
		err := n.Deserialize(ctx, []Triple{literal("type", "http://stencilkit.dev/stencilset/basic#Pool")})
		tassert.ErrorIs(t, err, ErrUnknownStencil)
	})

	t.Run("invalid_property", func(t *testing.T) {
		t.Parallel()

		ctx, c := newTestCanvas(t, loadBasic(t))
		n := mustNode(ctx, t, c, "Task", c, 0, 0)
		assert.Success(t, n.Deserialize(ctx, []Triple{
			literal("priority", "high"),
			literal("looping", "true"),
		}))
		assert.Equal(t, IntValue(1), n.Property("priority"))
		assert.Equal(t, BoolValue(true), n.Property("looping"))
		assert.Equal(t, 1, len(c.Diagnostics().Of(InvalidProperty)))
	})

	t.Run("edge_dockers", func(t *testing.T) {
		t.Parallel()

		ctx, c := newTestCanvas(t, loadBasic(t))
		e := mustEdge(ctx, t, c, nil, nil)
		err := e.Deserialize(ctx, []Triple{literal("dockers", "1 1 #")})
		tassert.Error(t, err)
		assert.Equal(t, 2, len(e.Dockers()))

		err = e.Deserialize(ctx, []Triple{literal("dockers", "1 1 2 #")})
		tassert.Error(t, err)
	})

	t.Run("labels", func(t *testing.T) {
		t.Parallel()

		ctx, c := newTestCanvas(t, loadBasic(t))
		n := mustNode(ctx, t, c, "Task", c, 0, 0)
		assert.Success(t, n.Deserialize(ctx, []Triple{literal("labels", `[{"ref":"text_missing","x":1,"y":2}]`)}))
		assert.Equal(t, 1, len(c.Diagnostics().Of(DanglingReference)))

		err := n.Deserialize(ctx, []Triple{literal("labels", `{`)})
		tassert.Error(t, err)
	})
}

const bulkDoc = `{
  "resourceId": "canvas",
  "stencil": {"id": "canvas"},
  "bounds": {"upperLeft": {"x": 0, "y": 0}, "lowerRight": {"x": 1200, "y": 900}},
  "childShapes": [
    {
      "resourceId": "flow1",
      "stencil": {"id": "SequenceFlow"},
      "properties": {"name": "go"},
      "outgoing": [{"resourceId": "task2"}],
      "target": {"resourceId": "task2"},
      "dockers": [{"x": 50, "y": 40}, {"x": 50, "y": 40}],
      "childShapes": []
    },
    {
      "resourceId": "task1",
      "stencil": {"id": "Task"},
      "properties": {"name": "first", "priority": 2, "looping": true},
      "outgoing": [{"resourceId": "flow1"}],
      "bounds": {"upperLeft": {"x": 0, "y": 0}, "lowerRight": {"x": 100, "y": 80}},
      "childShapes": []
    },
    {
      "resourceId": "pool1",
      "stencil": {"id": "Pool"},
      "bounds": {"upperLeft": {"x": 200, "y": 0}, "lowerRight": {"x": 800, "y": 250}},
      "childShapes": [
        {
          "resourceId": "task2",
          "stencil": {"id": "Task"},
          "properties": {"name": "second"},
          "bounds": {"upperLeft": {"x": 100, "y": 0}, "lowerRight": {"x": 200, "y": 80}},
          "childShapes": []
        }
      ]
    },
    {
      "resourceId": "start1",
      "stencil": {"id": "StartEvent"},
      "target": {"resourceId": "task1"},
      "dockers": [{"x": 0, "y": 40}],
      "bounds": {"upperLeft": {"x": 0, "y": 0}, "lowerRight": {"x": 32, "y": 32}},
      "childShapes": []
    }
  ]
}`

func TestLoadJSON(t *testing.T) {
	t.Parallel()

	ctx, c := newTestCanvas(t, loadBasic(t), WithMeasurer(runeMeasurer(6)))
	assert.Success(t, c.LoadJSON(ctx, []byte(bulkDoc)))

	assert.Equal(t, 1200.0, c.Bounds().Width())
	assert.Equal(t, 5, len(c.Shapes()))
	assert.Equal(t, 3, len(c.Nodes()))
	assert.Equal(t, 1, len(c.Edges()))

	task1 := c.GetShape("task1").(*Node)
	task2 := c.GetShape("task2").(*Node)
	flow := c.GetShape("flow1").(*Edge)
	tassert.Equal(t, c.GetShape("pool1"), task2.Parent())
	tassert.Equal(t, Shape(c), flow.Parent())
	tassert.Equal(t, task1, flow.Source())
	tassert.Equal(t, task2, flow.Target())
	assert.Equal(t, StringValue("go"), flow.Property("name"))
	assert.Equal(t, IntValue(2), task1.Property("priority"))
	assert.Equal(t, BoolValue(true), task1.Property("looping"))

	route := flow.Route()
	assert.Equal(t, 2, len(route))
	assert.Equal(t, geo.Point{X: 100, Y: 40}, *route[0])
	assert.Equal(t, geo.Point{X: 300, Y: 40}, *route[1])

	start := c.GetShape("start1").(*Node)
	tassert.Equal(t, task1, start.Docker().DockedShape())
	assert.Equal(t, geo.Point{X: 0, Y: 40}, start.Docker().AbsoluteCenter())
	assert.Equal(t, true, c.Diagnostics().Empty())
}

func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()

	ctx, c := newTestCanvas(t, loadBasic(t), WithMeasurer(runeMeasurer(6)))
	assert.Success(t, c.LoadJSON(ctx, []byte(bulkDoc)))
	c.GetShape("flow1").(*Edge).AddDocker(1, geo.Point{X: 200, Y: 300})
	assert.Success(t, c.Update(ctx))
	first, err := json.Marshal(c.ToJSON())
	assert.Success(t, err)

	ctx2, c2 := newTestCanvas(t, loadBasic(t), WithMeasurer(runeMeasurer(6)))
	assert.Success(t, c2.LoadJSON(ctx2, first))
	second, err := json.Marshal(c2.ToJSON())
	assert.Success(t, err)

	tassert.JSONEq(t, string(first), string(second))
	for _, s := range c.Shapes() {
		s2 := c2.GetShape(s.ID())
		if s2 == nil {
			t.Fatalf("missing %s after reload", s.ID())
		}
		assert.String(t, s.AbsoluteBounds().String(), s2.AbsoluteBounds().String())
	}
}

func TestAddShapeObjectsValidates(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		objs []*ShapeJSON
	}{
		{
			name: "unknown_stencil",
			objs: []*ShapeJSON{
				{ResourceID: "a", Stencil: StencilRef{ID: "Task"}},
				{ResourceID: "b", Stencil: StencilRef{ID: "Gateway"}},
			},
		},
		{
			name: "duplicate_id",
			objs: []*ShapeJSON{
				{ResourceID: "a", Stencil: StencilRef{ID: "Task"}},
				{ResourceID: "p", Stencil: StencilRef{ID: "Pool"}, ChildShapes: []*ShapeJSON{
					{ResourceID: "a", Stencil: StencilRef{ID: "Task"}},
				}},
			},
		},
		{
			name: "already_on_canvas",
			objs: []*ShapeJSON{
				{ResourceID: "existing", Stencil: StencilRef{ID: "Task"}},
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx, c := newTestCanvas(t, loadBasic(t))
			s, err := c.NewShape(ctx, "Task", ShapeID("existing"))
			assert.Success(t, err)
			assert.Success(t, c.Add(ctx, s))

			created, err := c.AddShapeObjects(ctx, tc.objs)
			tassert.Error(t, err)
			assert.Equal(t, 0, len(created))
			assert.Equal(t, 1, len(c.Shapes()))
		})
	}
}

func TestAddShapeObjectsParentWithoutID(t *testing.T) {
	t.Parallel()

	ctx, c := newTestCanvas(t, loadBasic(t))
	created, err := c.AddShapeObjects(ctx, []*ShapeJSON{
		{Stencil: StencilRef{ID: "Pool"}, ChildShapes: []*ShapeJSON{
			{ResourceID: "t1", Stencil: StencilRef{ID: "Task"}},
		}},
	})
	assert.Success(t, err)
	assert.Equal(t, 2, len(created))

	pool := created[0]
	tassert.Same(t, pool, c.GetShape("t1").Parent())
	assert.Equal(t, 1, len(pool.Children()))
	assert.Equal(t, 1, len(c.Children()))
}
