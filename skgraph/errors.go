package skgraph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEdgeNotAllowed = errors.New("edges can only be added to the canvas")
	ErrDuplicateChild = errors.New("shape is already a child")
	ErrNotChild       = errors.New("shape is not a child")
	ErrUnknownStencil = errors.New("unknown stencil")
	ErrMissingElement = errors.New("referenced view element does not exist")
)

type ErrorKind int8

const (
	// MalformedTemplate is a stencil view attribute or element that could
	// not be used.
	MalformedTemplate ErrorKind = iota
	// MeasurementUnavailable means text was laid out without measuring it.
	MeasurementUnavailable
	// ConstraintViolation is a size constraint or layout budget that could
	// not be honored.
	ConstraintViolation
	// DanglingReference is a docker or resource reference to a shape that
	// does not exist.
	DanglingReference
	// InvalidProperty is a property value that could not be rendered.
	InvalidProperty
)

func (k ErrorKind) String() string {
	switch k {
	case MalformedTemplate:
		return "malformed template"
	case MeasurementUnavailable:
		return "measurement unavailable"
	case ConstraintViolation:
		return "constraint violation"
	case DanglingReference:
		return "dangling reference"
	case InvalidProperty:
		return "invalid property"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

// LayoutError is a non-fatal diagnostic. Layout continues past it.
type LayoutError struct {
	Kind    ErrorKind `json:"kind"`
	ShapeID string    `json:"shapeId,omitempty"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func layoutErrorf(kind ErrorKind, shapeID string, f string, v ...interface{}) *LayoutError {
	return &LayoutError{
		Kind:    kind,
		ShapeID: shapeID,
		Message: fmt.Sprintf(f, v...),
	}
}

func (e *LayoutError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.ShapeID == "" {
		return fmt.Sprintf("%v: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %v: %s", e.ShapeID, e.Kind, msg)
}

func (e *LayoutError) Unwrap() error {
	return e.Err
}

// LayoutErrors aggregates diagnostics.
type LayoutErrors struct {
	Errors []*LayoutError `json:"errs"`

	lookup map[string]struct{}
}

func (le *LayoutErrors) Empty() bool {
	if le == nil {
		return true
	}
	return len(le.Errors) == 0
}

// add appends e unless an identical diagnostic was already recorded.
func (le *LayoutErrors) add(e *LayoutError) bool {
	if le.lookup == nil {
		le.lookup = make(map[string]struct{})
	}
	key := e.Error()
	if _, ok := le.lookup[key]; ok {
		return false
	}
	le.lookup[key] = struct{}{}
	le.Errors = append(le.Errors, e)
	return true
}

func (le *LayoutErrors) Error() string {
	var sb strings.Builder
	for i, err := range le.Errors {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Of returns the diagnostics of the given kind.
func (le *LayoutErrors) Of(kind ErrorKind) []*LayoutError {
	if le == nil {
		return nil
	}
	var out []*LayoutError
	for _, e := range le.Errors {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
