package skpdf_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	tassert "github.com/stretchr/testify/assert"

	"oss.terrastruct.com/util-go/assert"

	"github.com/stencilkit/stencilkit/lib/geo"
	"github.com/stencilkit/stencilkit/lib/log"
	"github.com/stencilkit/stencilkit/lib/textmeasure"
	"github.com/stencilkit/stencilkit/skconfig"
	"github.com/stencilkit/stencilkit/skgraph"
	"github.com/stencilkit/stencilkit/skrenderers/skpdf"
	"github.com/stencilkit/stencilkit/skstencil"
)

func newCanvas(ctx context.Context, t *testing.T, ruler *textmeasure.Ruler) *skgraph.Canvas {
	t.Helper()
	set, err := skstencil.LoadSet(os.DirFS(filepath.Join("..", "..", "testdata", "stencilset")), "basic.json")
	assert.Success(t, err)
	c := skgraph.NewCanvas(skconfig.Default(), set, skgraph.WithMeasurer(ruler))

	task, err := c.NewShape(ctx, "Task")
	assert.Success(t, err)
	assert.Success(t, c.Add(ctx, task))
	assert.Success(t, task.SetProperty("name", skgraph.StringValue("Check order")))

	start, err := c.NewShape(ctx, "StartEvent")
	assert.Success(t, err)
	assert.Success(t, c.Add(ctx, start))
	start.Bounds().MoveTo(geo.Point{X: 200, Y: 20})
	assert.Success(t, start.SetProperty("icon", skgraph.URLValue("https://example.com/start.png")))
	assert.Success(t, c.Update(ctx))
	return c
}

func TestRender(t *testing.T) {
	t.Parallel()

	ctx := log.WithTB(context.Background(), t, nil)
	ruler, err := textmeasure.NewRuler()
	assert.Success(t, err)
	c := newCanvas(ctx, t, ruler)

	links := skpdf.Links(c)
	assert.Equal(t, 1, len(links))
	assert.String(t, "https://example.com/start.png", links[0].URL)
	assert.Equal(t, 200.0, links[0].X)

	out, err := skpdf.Render(ctx, ruler, []skpdf.Page{
		{Title: []string{"orders", "main"}, Canvas: c},
		{Title: []string{"orders", "copy"}, Canvas: c, Fill: "#202020"},
	}, nil)
	assert.Success(t, err)
	tassert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}
