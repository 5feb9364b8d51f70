package geo

import (
	"fmt"
	"math"
)

// CallbackID identifies a callback registered on a Bounds.
type CallbackID uint64

// BoundsCallback is invoked after a Bounds changed. sizeChanged is false for
// pure translations.
type BoundsCallback func(b *Bounds, sizeChanged bool)

type boundsCallback struct {
	id CallbackID
	fn BoundsCallback
}

// Bounds is an axis-aligned rectangle in parent-local coordinates that
// notifies registered callbacks whenever it changes.
//
// The lower right corner never lies above or left of the upper left corner:
// reversed corners are swapped and zero width or height is coerced to 1.
type Bounds struct {
	ul Point
	lr Point

	callbacks []boundsCallback
	nextID    CallbackID

	suspended   int
	pending     bool
	pendingSize bool
}

func NewBounds(ul, lr Point) *Bounds {
	b := &Bounds{}
	b.ul, b.lr = normalize(ul, lr)
	return b
}

// NewBoundsXYXY is NewBounds from raw coordinates.
func NewBoundsXYXY(x1, y1, x2, y2 float64) *Bounds {
	return NewBounds(Point{X: x1, Y: y1}, Point{X: x2, Y: y2})
}

func normalize(ul, lr Point) (Point, Point) {
	if lr.X < ul.X {
		ul.X, lr.X = lr.X, ul.X
	}
	if lr.Y < ul.Y {
		ul.Y, lr.Y = lr.Y, ul.Y
	}
	if lr.X == ul.X {
		lr.X = ul.X + 1
	}
	if lr.Y == ul.Y {
		lr.Y = ul.Y + 1
	}
	return ul, lr
}

func (b *Bounds) UpperLeft() Point  { return b.ul }
func (b *Bounds) LowerRight() Point { return b.lr }
func (b *Bounds) Width() float64    { return b.lr.X - b.ul.X }
func (b *Bounds) Height() float64   { return b.lr.Y - b.ul.Y }

func (b *Bounds) Center() Point {
	return Point{X: b.ul.X + b.Width()/2, Y: b.ul.Y + b.Height()/2}
}

// Set stores new corners and notifies callbacks if anything changed.
func (b *Bounds) Set(ul, lr Point) {
	ul, lr = normalize(ul, lr)
	if ul == b.ul && lr == b.lr {
		return
	}
	sizeChanged := lr.X-ul.X != b.Width() || lr.Y-ul.Y != b.Height()
	b.ul, b.lr = ul, lr
	b.changed(sizeChanged)
}

func (b *Bounds) SetXYXY(x1, y1, x2, y2 float64) {
	b.Set(Point{X: x1, Y: y1}, Point{X: x2, Y: y2})
}

// SetSize keeps the upper left corner and resizes to w x h.
func (b *Bounds) SetSize(w, h float64) {
	b.Set(b.ul, Point{X: b.ul.X + w, Y: b.ul.Y + h})
}

func (b *Bounds) MoveTo(p Point) {
	b.MoveBy(p.X-b.ul.X, p.Y-b.ul.Y)
}

func (b *Bounds) MoveBy(dx, dy float64) {
	b.Set(b.ul.Translate(dx, dy), b.lr.Translate(dx, dy))
}

// CenterMoveTo moves b so its center is at p, preserving its size.
func (b *Bounds) CenterMoveTo(p Point) {
	c := b.Center()
	b.MoveBy(p.X-c.X, p.Y-c.Y)
}

// Extend shifts the lower right corner by v.
func (b *Bounds) Extend(v Vector) {
	b.Set(b.ul, b.lr.Translate(v[0], v[1]))
}

// Widen grows b by d on every side.
func (b *Bounds) Widen(d float64) {
	b.Set(b.ul.Translate(-d, -d), b.lr.Translate(d, d))
}

// Include grows b to contain other.
func (b *Bounds) Include(other *Bounds) {
	b.Set(
		Point{X: math.Min(b.ul.X, other.ul.X), Y: math.Min(b.ul.Y, other.ul.Y)},
		Point{X: math.Max(b.lr.X, other.lr.X), Y: math.Max(b.lr.Y, other.lr.Y)},
	)
}

// IsIncluded reports whether (x, y) lies within b widened by offset.
func (b *Bounds) IsIncluded(x, y, offset float64) bool {
	return x >= b.ul.X-offset && x <= b.lr.X+offset &&
		y >= b.ul.Y-offset && y <= b.lr.Y+offset
}

func (b *Bounds) Equals(other *Bounds) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.ul == other.ul && b.lr == other.lr
}

// Copy returns a detached copy without callbacks.
func (b *Bounds) Copy() *Bounds {
	return &Bounds{ul: b.ul, lr: b.lr}
}

func (b *Bounds) ToBox() *Box {
	return NewBox(NewPoint(b.ul.X, b.ul.Y), b.Width(), b.Height())
}

// RegisterCallback adds fn to the observers of b.
func (b *Bounds) RegisterCallback(fn BoundsCallback) CallbackID {
	b.nextID++
	b.callbacks = append(b.callbacks, boundsCallback{id: b.nextID, fn: fn})
	return b.nextID
}

func (b *Bounds) UnregisterCallback(id CallbackID) {
	for i, cb := range b.callbacks {
		if cb.id == id {
			b.callbacks = append(b.callbacks[:i:i], b.callbacks[i+1:]...)
			return
		}
	}
}

// UnregisterAll drops every callback.
func (b *Bounds) UnregisterAll() {
	b.callbacks = nil
}

// SuspendChange defers notifications until the matching ResumeChange.
func (b *Bounds) SuspendChange() {
	b.suspended++
}

// ResumeChange ends a SuspendChange. If b changed while suspended, callbacks
// fire once.
func (b *Bounds) ResumeChange() {
	if b.suspended == 0 {
		return
	}
	b.suspended--
	if b.suspended == 0 && b.pending {
		size := b.pendingSize
		b.pending, b.pendingSize = false, false
		b.notify(size)
	}
}

func (b *Bounds) changed(sizeChanged bool) {
	if b.suspended > 0 {
		b.pending = true
		b.pendingSize = b.pendingSize || sizeChanged
		return
	}
	b.notify(sizeChanged)
}

func (b *Bounds) notify(sizeChanged bool) {
	cbs := append([]boundsCallback(nil), b.callbacks...)
	for _, cb := range cbs {
		cb.fn(b, sizeChanged)
	}
}

func (b *Bounds) String() string {
	return fmt.Sprintf("{%v,%v,%v,%v}", b.ul.X, b.ul.Y, b.lr.X, b.lr.Y)
}
