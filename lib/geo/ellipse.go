package geo

// Ellipse is an axis-aligned ellipse. Circles are ellipses with Rx == Ry.
type Ellipse struct {
	Center *Point
	Rx     float64
	Ry     float64
}

func NewEllipse(center *Point, rx, ry float64) *Ellipse {
	return &Ellipse{
		Center: center,
		Rx:     rx,
		Ry:     ry,
	}
}

// Contains reports whether (x, y) lies inside or on the ellipse.
func (e Ellipse) Contains(x, y float64) bool {
	if e.Rx <= 0 || e.Ry <= 0 {
		return false
	}
	dx := (x - e.Center.X) / e.Rx
	dy := (y - e.Center.Y) / e.Ry
	return dx*dx+dy*dy <= 1
}

func (e Ellipse) BoundingBox() *Box {
	return NewBox(NewPoint(e.Center.X-e.Rx, e.Center.Y-e.Ry), 2*e.Rx, 2*e.Ry)
}
