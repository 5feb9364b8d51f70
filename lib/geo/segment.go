package geo

import (
	"fmt"
)

type Segment struct {
	Start *Point
	End   *Point
}

func (s Segment) ToString() string {
	return fmt.Sprintf("%v -> %v", s.Start.ToString(), s.End.ToString())
}

func (segment Segment) Length() float64 {
	return EuclideanDistance(segment.Start.X, segment.Start.Y, segment.End.X, segment.End.Y)
}

func (segment Segment) ToVector() Vector {
	return NewVector(segment.End.X-segment.Start.X, segment.End.Y-segment.Start.Y)
}

// Fraction returns how far along the segment the projection of p lies, in [0,1].
func (segment Segment) Fraction(p *Point) float64 {
	return p.projectionParam(segment.Start, segment.End)
}

// UnitNormal is the segment's left-hand unit normal.
func (segment Segment) UnitNormal() Vector {
	x, y := GetUnitNormalVector(segment.Start.X, segment.Start.Y, segment.End.X, segment.End.Y)
	return NewVector(x, y)
}
