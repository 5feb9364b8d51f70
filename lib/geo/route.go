package geo

import (
	"math"
)

type Route []*Point

func (route Route) Length() float64 {
	l := 0.
	for i := 0; i < len(route)-1; i++ {
		l += EuclideanDistance(
			route[i].X, route[i].Y,
			route[i+1].X, route[i+1].Y,
		)
	}
	return l
}

// return the point at _distance_ along the route, and the index of the segment it's on
func (route Route) GetPointAtDistance(distance float64) (*Point, int) {
	if len(route) == 0 {
		return nil, -1
	}
	if len(route) == 1 || distance <= 0 {
		return route[0].Copy(), 0
	}
	remaining := distance
	for i := 0; i < len(route)-1; i++ {
		curr, next := route[i], route[i+1]
		length := EuclideanDistance(curr.X, curr.Y, next.X, next.Y)

		if remaining <= length {
			if length == 0 {
				return curr.Copy(), i
			}
			return curr.Interpolate(next, remaining/length), i
		}
		remaining -= length
	}

	return route[len(route)-1].Copy(), len(route) - 2
}

// Segment returns the i-th segment of the route.
func (route Route) Segment(i int) Segment {
	return Segment{Start: route[i], End: route[i+1]}
}

// ClosestSegment returns the index of the segment nearest to p and the
// projection of p onto it.
func (route Route) ClosestSegment(p *Point) (int, *Point) {
	best := -1
	var bestPoint *Point
	bestDist := math.Inf(1)
	for i := 0; i < len(route)-1; i++ {
		proj := p.ProjectOnto(route[i], route[i+1])
		d := EuclideanDistance(p.X, p.Y, proj.X, proj.Y)
		if d < bestDist {
			best, bestPoint, bestDist = i, proj, d
		}
	}
	return best, bestPoint
}

func (route Route) GetBoundingBox() (tl, br *Point) {
	minX := math.Inf(1)
	minY := math.Inf(1)
	maxX := math.Inf(-1)
	maxY := math.Inf(-1)

	for _, p := range route {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return NewPoint(minX, minY), NewPoint(maxX, maxY)
}
