package geo

import "fmt"

// Size is a width/height pair, used for minimum and maximum node sizes.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func NewSize(w, h float64) *Size {
	return &Size{Width: w, Height: h}
}

func (s *Size) String() string {
	if s == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%vx%v", s.Width, s.Height)
}
