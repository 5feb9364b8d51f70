package geo

import "fmt"

// Box is a plain rectangle value without change tracking. Use Bounds for
// geometry that other objects observe.
type Box struct {
	TopLeft *Point
	Width   float64
	Height  float64
}

func NewBox(tl *Point, width, height float64) *Box {
	return &Box{
		TopLeft: tl,
		Width:   width,
		Height:  height,
	}
}

func (b *Box) Copy() *Box {
	if b == nil {
		return nil
	}
	return NewBox(b.TopLeft.Copy(), b.Width, b.Height)
}

func (b *Box) Center() *Point {
	return NewPoint(b.TopLeft.X+b.Width/2, b.TopLeft.Y+b.Height/2)
}

func (b *Box) Bottom() float64 {
	return b.TopLeft.Y + b.Height
}

func (b *Box) Right() float64 {
	return b.TopLeft.X + b.Width
}

func (b *Box) Contains(x, y float64) bool {
	return x >= b.TopLeft.X && x <= b.Right() && y >= b.TopLeft.Y && y <= b.Bottom()
}

// Rotate returns the axis-aligned box enclosing b rotated by deg around pivot.
func (b *Box) Rotate(deg float64, pivot Point) *Box {
	if deg == 0 {
		return b.Copy()
	}
	corners := []Point{
		*b.TopLeft,
		{X: b.Right(), Y: b.TopLeft.Y},
		{X: b.Right(), Y: b.Bottom()},
		{X: b.TopLeft.X, Y: b.Bottom()},
	}
	r := make(Route, 0, len(corners))
	for _, c := range corners {
		p := c.Rotate(deg, pivot)
		r = append(r, &p)
	}
	tl, br := r.GetBoundingBox()
	return NewBox(tl, br.X-tl.X, br.Y-tl.Y)
}

func (b *Box) ToString() string {
	if b == nil {
		return ""
	}
	return fmt.Sprintf("{TopLeft: %s, Width: %.0f, Height: %.0f}", b.TopLeft.ToString(), b.Width, b.Height)
}
