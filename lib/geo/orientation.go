package geo

// Orientation describes where one point lies relative to another. Labels
// bound to an edge keep the orientation of their offset from the edge.
type Orientation int

const (
	TopLeft Orientation = iota
	TopRight
	BottomLeft
	BottomRight

	Top
	Right
	Bottom
	Left

	NONE
)

func (o Orientation) ToString() string {
	switch o {
	case TopLeft:
		return "TopLeft"
	case TopRight:
		return "TopRight"
	case BottomLeft:
		return "BottomLeft"
	case BottomRight:
		return "BottomRight"

	case Top:
		return "Top"
	case Right:
		return "Right"
	case Bottom:
		return "Bottom"
	case Left:
		return "Left"
	default:
		return ""
	}
}

func OrientationFromString(s string) Orientation {
	for o := TopLeft; o < NONE; o++ {
		if o.ToString() == s {
			return o
		}
	}
	return NONE
}

func (o Orientation) MarshalText() ([]byte, error) {
	return []byte(o.ToString()), nil
}

func (o *Orientation) UnmarshalText(b []byte) error {
	*o = OrientationFromString(string(b))
	return nil
}
