package skgraph

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"oss.terrastruct.com/util-go/assert"

	"github.com/stencilkit/stencilkit/lib/geo"
	"github.com/stencilkit/stencilkit/lib/log"
	"github.com/stencilkit/stencilkit/lib/textmeasure"
	"github.com/stencilkit/stencilkit/skconfig"
	"github.com/stencilkit/stencilkit/skstencil"
)

// runeMeasurer gives every rune the same width.
type runeMeasurer float64

func (m runeMeasurer) MeasureWidth(_ textmeasure.Font, s string) float64 {
	return float64(m) * float64(utf8.RuneCountInString(s))
}

func loadBasic(t *testing.T) *skstencil.Set {
	t.Helper()
	set, err := skstencil.LoadSet(os.DirFS(filepath.Join("..", "testdata", "stencilset")), "basic.json")
	assert.Success(t, err)
	return set
}

const noteView = `<svg xmlns="http://www.w3.org/2000/svg" xmlns:oryx="http://www.b3mn.org/oryx" width="200" height="100">
  <g>
    <rect id="frame" x="0" y="0" width="200" height="100" fill="#ffffff" oryx:resize="horizontal vertical"/>
    <text id="text" x="100" y="90" font-size="14" oryx:align="bottom center" oryx:fittoelem="frame"/>
  </g>
</svg>`

const laneView = `<svg xmlns="http://www.w3.org/2000/svg" xmlns:oryx="http://www.b3mn.org/oryx" width="100" height="40">
  <g>
    <rect id="frame" x="0" y="0" width="100" height="40" fill="#ffffff" oryx:resize="horizontal vertical"/>
    <text id="text" x="10" y="10" font-size="10" oryx:align="top left" oryx:anchors="left top"/>
  </g>
</svg>`

// loadInline builds a set with a bottom aligned Note and an auto growing
// Lane.
func loadInline(t *testing.T) *skstencil.Set {
	t.Helper()
	textProp := []map[string]interface{}{
		{"id": "text", "type": "text", "title": "Text", "value": "", "refToView": "text"},
	}
	data, err := json.Marshal(map[string]interface{}{
		"namespace": "http://stencilkit.dev/stencilset/inline#",
		"title":     "Inline",
		"stencils": []map[string]interface{}{
			{"type": "node", "id": "Note", "title": "Note", "view": noteView, "properties": textProp},
			{"type": "node", "id": "Lane", "title": "Lane", "view": laneView, "autoGrow": true, "properties": textProp},
		},
	})
	assert.Success(t, err)
	set, err := skstencil.ParseSet(data, nil, "")
	assert.Success(t, err)
	return set
}

func newTestCanvas(t *testing.T, set *skstencil.Set, opts ...Option) (context.Context, *Canvas) {
	t.Helper()
	ctx := log.WithTB(context.Background(), t, nil)
	return ctx, NewCanvas(skconfig.Default(), set, opts...)
}

func mustNode(ctx context.Context, t *testing.T, c *Canvas, stencil string, parent Shape, x, y float64) *Node {
	t.Helper()
	s, err := c.NewShape(ctx, stencil)
	assert.Success(t, err)
	n := s.(*Node)
	assert.Success(t, parent.Add(ctx, n))
	n.Bounds().MoveTo(geo.Point{X: x, Y: y})
	return n
}

func mustEdge(ctx context.Context, t *testing.T, c *Canvas, from, to *Node) *Edge {
	t.Helper()
	s, err := c.NewShape(ctx, "SequenceFlow")
	assert.Success(t, err)
	e := s.(*Edge)
	assert.Success(t, c.Add(ctx, e))
	if from != nil {
		e.Dockers()[0].DockCenter(from)
	}
	if to != nil {
		e.Dockers()[1].DockCenter(to)
	}
	return e
}
