package label

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stencilkit/stencilkit/lib/geo"
)

func TestEdgePositionStrings(t *testing.T) {
	t.Parallel()

	for p := StartTop; p <= EndBottom; p++ {
		assert.Equal(t, p, EdgePositionFromString(p.String()))
	}
	assert.Equal(t, Unset, EdgePositionFromString("sideways"))
}

func TestLineOffset(t *testing.T) {
	t.Parallel()

	var got []float64
	for i := 0; i < 3; i++ {
		got = append(got, Bottom.LineOffset(i, 3, 14))
	}
	assert.Equal(t, []float64{0, -14, -28}, got)

	assert.Equal(t, 14., Top.LineOffset(0, 3, 14))
	assert.Equal(t, 28., Top.LineOffset(1, 3, 14))
	assert.Equal(t, 7., Middle.LineOffset(0, 1, 14))
}

func TestAnchors(t *testing.T) {
	t.Parallel()

	a := ParseAnchors("Right  top bogus")
	assert.True(t, a.Has(AnchorRight))
	assert.True(t, a.Has(AnchorTop))
	assert.False(t, a.Has(AnchorLeft))
	assert.Equal(t, "right top", a.String())
	assert.Equal(t, Anchors(0), ParseAnchors(""))
}

func TestGetPointOnRoute(t *testing.T) {
	t.Parallel()

	route := geo.Route{geo.NewPoint(0, 100), geo.NewPoint(200, 100)}

	p, i := MidTop.GetPointOnRoute(route, 10, 3)
	assert.Equal(t, 0, i)
	assert.Equal(t, geo.Point{X: 100, Y: 92}, *p)

	p, _ = MidBottom.GetPointOnRoute(route, 10, 3)
	assert.Equal(t, geo.Point{X: 100, Y: 108}, *p)

	p, _ = StartMiddle.GetPointOnRoute(route, 10, 3)
	assert.Equal(t, geo.Point{X: 10, Y: 100}, *p)

	p, _ = EndTop.GetPointOnRoute(route, 10, 3)
	assert.Equal(t, geo.Point{X: 190, Y: 92}, *p)

	// reversed direction keeps "top" above the edge
	reversed := geo.Route{geo.NewPoint(200, 100), geo.NewPoint(0, 100)}
	p, _ = MidTop.GetPointOnRoute(reversed, 10, 3)
	assert.Equal(t, geo.Point{X: 100, Y: 92}, *p)
}
