package label

import (
	"math"
	"strings"

	"github.com/stencilkit/stencilkit/lib/geo"
)

// This is the space between an edge and a label placed above or below it
const PADDING = 5

type HAlign int8

const (
	Left HAlign = iota
	Center
	Right
)

func HAlignFromString(s string) (HAlign, bool) {
	switch strings.ToLower(s) {
	case "left":
		return Left, true
	case "center":
		return Center, true
	case "right":
		return Right, true
	default:
		return Left, false
	}
}

func (a HAlign) String() string {
	switch a {
	case Center:
		return "center"
	case Right:
		return "right"
	default:
		return "left"
	}
}

// TextAnchor is the SVG text-anchor for a.
func (a HAlign) TextAnchor() string {
	switch a {
	case Center:
		return "middle"
	case Right:
		return "end"
	default:
		return "start"
	}
}

type VAlign int8

const (
	Top VAlign = iota
	Middle
	Bottom
)

func VAlignFromString(s string) (VAlign, bool) {
	switch strings.ToLower(s) {
	case "top":
		return Top, true
	case "middle":
		return Middle, true
	case "bottom":
		return Bottom, true
	default:
		return Top, false
	}
}

func (a VAlign) String() string {
	switch a {
	case Middle:
		return "middle"
	case Bottom:
		return "bottom"
	default:
		return "top"
	}
}

// LineOffset returns the dy of line i (0-based) of n lines rendered at
// fontSize. Lines are ordered outward from the anchor point, so for bottom
// alignment line 0 is the last line of text.
func (a VAlign) LineOffset(i, n int, fontSize float64) float64 {
	switch a {
	case Middle:
		return (float64(i)-float64(n-1)/2)*fontSize + fontSize/2
	case Bottom:
		if i == 0 {
			return 0
		}
		return -float64(i) * fontSize
	default:
		return float64(i)*fontSize + fontSize
	}
}

// Anchors pins an element to sides of its owner, exempting it from
// proportional scaling on that axis.
type Anchors uint8

const (
	AnchorLeft Anchors = 1 << iota
	AnchorRight
	AnchorTop
	AnchorBottom
)

// ParseAnchors parses a space separated list such as "left top". Unknown
// words are ignored.
func ParseAnchors(s string) Anchors {
	var a Anchors
	for _, w := range strings.Fields(strings.ToLower(s)) {
		switch w {
		case "left":
			a |= AnchorLeft
		case "right":
			a |= AnchorRight
		case "top":
			a |= AnchorTop
		case "bottom":
			a |= AnchorBottom
		}
	}
	return a
}

func (a Anchors) Has(flag Anchors) bool {
	return a&flag != 0
}

func (a Anchors) String() string {
	var words []string
	if a.Has(AnchorLeft) {
		words = append(words, "left")
	}
	if a.Has(AnchorRight) {
		words = append(words, "right")
	}
	if a.Has(AnchorTop) {
		words = append(words, "top")
	}
	if a.Has(AnchorBottom) {
		words = append(words, "bottom")
	}
	return strings.Join(words, " ")
}

// EdgePosition is one of the named label slots along an edge.
type EdgePosition int8

const (
	Unset EdgePosition = iota

	StartTop
	StartMiddle
	StartBottom

	MidTop
	MidBottom

	EndTop
	EndBottom
)

func EdgePositionFromString(s string) EdgePosition {
	switch strings.ToLower(s) {
	case "starttop":
		return StartTop
	case "startmiddle":
		return StartMiddle
	case "startbottom":
		return StartBottom
	case "midtop":
		return MidTop
	case "midbottom":
		return MidBottom
	case "endtop":
		return EndTop
	case "endbottom":
		return EndBottom
	default:
		return Unset
	}
}

func (p EdgePosition) String() string {
	switch p {
	case StartTop:
		return "starttop"
	case StartMiddle:
		return "startmiddle"
	case StartBottom:
		return "startbottom"
	case MidTop:
		return "midtop"
	case MidBottom:
		return "midbottom"
	case EndTop:
		return "endtop"
	case EndBottom:
		return "endbottom"
	default:
		return ""
	}
}

// Alignment is the effective alignment of a label placed at p.
func (p EdgePosition) Alignment() (HAlign, VAlign) {
	switch p {
	case StartTop:
		return Left, Bottom
	case StartMiddle:
		return Left, Middle
	case StartBottom:
		return Left, Top
	case MidTop:
		return Center, Bottom
	case MidBottom:
		return Center, Top
	case EndTop:
		return Right, Bottom
	case EndBottom:
		return Right, Top
	default:
		return Left, Top
	}
}

func (p EdgePosition) isStart() bool {
	return p == StartTop || p == StartMiddle || p == StartBottom
}

func (p EdgePosition) isEnd() bool {
	return p == EndTop || p == EndBottom
}

func (p EdgePosition) isAbove() bool {
	return p == StartTop || p == MidTop || p == EndTop
}

func (p EdgePosition) isBelow() bool {
	return p == StartBottom || p == MidBottom || p == EndBottom
}

// GetPointOnRoute returns the anchor point of a label at position p on route,
// and the index of the route segment that point is on. startOffset is the
// distance from either end of the route used by the start and end slots;
// distance is how far above or below the route the top and bottom slots sit.
func (p EdgePosition) GetPointOnRoute(route geo.Route, startOffset, distance float64) (*geo.Point, int) {
	if len(route) < 2 {
		if len(route) == 1 {
			return route[0].Copy(), 0
		}
		return nil, -1
	}
	total := route.Length()
	var along float64
	switch {
	case p.isStart():
		along = math.Min(startOffset, total)
	case p.isEnd():
		along = math.Max(total-startOffset, 0)
	default:
		along = total / 2
	}
	base, index := route.GetPointAtDistance(along)

	if !p.isAbove() && !p.isBelow() {
		return base, index
	}

	// The normal points left of the direction of travel. Positive Y is down in
	// SVG, so "above" means the side with the smaller Y.
	seg := route.Segment(index)
	normal := seg.UnitNormal()
	if normal[1] > 0 || (normal[1] == 0 && normal[0] < 0) {
		normal = normal.Negate()
	}
	if p.isBelow() {
		normal = normal.Negate()
	}
	offset := distance + PADDING
	return geo.NewPoint(base.X+normal[0]*offset, base.Y+normal[1]*offset), index
}
