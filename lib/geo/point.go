package geo

import (
	"fmt"
	"math"
	"strings"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func NewPoint(x, y float64) *Point {
	return &Point{X: x, Y: y}
}

func (p1 *Point) Equals(p2 *Point) bool {
	if p1 == nil {
		return p2 == nil
	} else if p2 == nil {
		return false
	}
	return (p1.X == p2.X) && (p1.Y == p2.Y)
}

func (p *Point) Copy() *Point {
	if p == nil {
		return nil
	}
	return &Point{X: p.X, Y: p.Y}
}

// Translate returns p moved by dx, dy.
func (p Point) Translate(dx, dy float64) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

type Points []*Point

// Route converts ps into a polyline route.
func (ps Points) Route() Route {
	return Route(ps)
}

// GetOrientation gets orientation of pFrom to pTo
// E.g. pFrom ---> pTo, here, pFrom is to the left of pTo, so Left would be returned
func (pFrom *Point) GetOrientation(pTo *Point) Orientation {
	if pFrom.Y < pTo.Y {
		if pFrom.X < pTo.X {
			return TopLeft
		}
		if pFrom.X > pTo.X {
			return TopRight
		}
		return Top
	}

	if pFrom.Y > pTo.Y {
		if pFrom.X < pTo.X {
			return BottomLeft
		}
		if pFrom.X > pTo.X {
			return BottomRight
		}
		return Bottom
	}

	if pFrom.X < pTo.X {
		return Left
	}
	if pFrom.X > pTo.X {
		return Right
	}
	return NONE
}

func (p *Point) ToString() string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("(%v, %v)", p.X, p.Y)
}

func (points Points) ToString() string {
	strs := make([]string, 0, len(points))
	for _, p := range points {
		strs = append(strs, p.ToString())
	}
	return strings.Join(strs, ", ")
}

// DistanceToLine is the shortest distance from p to the segment p1 -> p2.
func (p *Point) DistanceToLine(p1, p2 *Point) float64 {
	c := p.ProjectOnto(p1, p2)
	return EuclideanDistance(p.X, p.Y, c.X, c.Y)
}

// ProjectOnto returns the point on segment p1 -> p2 closest to p.
func (p *Point) ProjectOnto(p1, p2 *Point) *Point {
	t := p.projectionParam(p1, p2)
	return p1.Interpolate(p2, t)
}

// projectionParam is the clamped [0,1] parameter of p projected on p1 -> p2.
func (p *Point) projectionParam(p1, p2 *Point) float64 {
	c := p2.X - p1.X
	d := p2.Y - p1.Y
	lenSq := c*c + d*d
	if lenSq == 0 {
		return 0
	}
	t := ((p.X-p1.X)*c + (p.Y-p1.Y)*d) / lenSq
	return math.Max(0, math.Min(1, t))
}

// Moves the given point by Vector
func (start *Point) AddVector(v Vector) *Point {
	return start.ToVector().Add(v).ToPoint()
}

// Creates a Vector of the size between start and endpoint, pointing to endpoint
func (start *Point) VectorTo(endpoint *Point) Vector {
	return endpoint.ToVector().Minus(start.ToVector())
}

// Creates a Vector pointing to point
func (endpoint *Point) ToVector() Vector {
	return []float64{endpoint.X, endpoint.Y}
}

// point t% of the way between a and b
func (a *Point) Interpolate(b *Point, t float64) *Point {
	return NewPoint(
		a.X*(1.0-t)+b.X*t,
		a.Y*(1.0-t)+b.Y*t,
	)
}

// Rotate rotates p by deg degrees clockwise (SVG orientation) around pivot.
func (p Point) Rotate(deg float64, pivot Point) Point {
	if deg == 0 {
		return p
	}
	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	dx, dy := p.X-pivot.X, p.Y-pivot.Y
	return Point{
		X: pivot.X + dx*cos - dy*sin,
		Y: pivot.Y + dx*sin + dy*cos,
	}
}
