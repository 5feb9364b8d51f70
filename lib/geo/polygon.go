package geo

// PolygonContains reports whether (x, y) lies inside the closed polygon
// described by pts, using the even-odd rule.
func PolygonContains(pts []*Point, x, y float64) bool {
	if len(pts) < 3 {
		return false
	}
	inside := false
	j := len(pts) - 1
	for i := 0; i < len(pts); i++ {
		pi, pj := pts[i], pts[j]
		if (pi.Y > y) != (pj.Y > y) {
			xCross := (pj.X-pi.X)*(y-pi.Y)/(pj.Y-pi.Y) + pi.X
			if x < xCross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// PolylineNear reports whether (x, y) is within tolerance of any segment of pts.
func PolylineNear(pts []*Point, x, y, tolerance float64) bool {
	p := NewPoint(x, y)
	for i := 0; i < len(pts)-1; i++ {
		if p.DistanceToLine(pts[i], pts[i+1]) <= tolerance {
			return true
		}
	}
	return false
}
