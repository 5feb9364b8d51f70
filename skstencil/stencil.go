// Package skstencil loads stencil sets: the JSON catalogue of shape types and
// the SVG templates that define each shape's view, constraints, magnets,
// docker and labels.
package skstencil

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Kind string

const (
	KindNode Kind = "node"
	KindEdge Kind = "edge"
)

type PropertyType string

const (
	TypeBoolean    PropertyType = "boolean"
	TypeInteger    PropertyType = "integer"
	TypeFloat      PropertyType = "float"
	TypeColor      PropertyType = "color"
	TypeString     PropertyType = "string"
	TypeText       PropertyType = "text"
	TypeExpression PropertyType = "expression"
	TypeChoice     PropertyType = "choice"
	TypeURL        PropertyType = "url"
)

type Item struct {
	ID        string `json:"id,omitempty"`
	Title     string `json:"title,omitempty"`
	Value     string `json:"value"`
	RefToView string `json:"refToView,omitempty"`
}

// Property declares one entry of a shape's property bag.
type Property struct {
	ID    string          `json:"id"`
	Type  PropertyType    `json:"type"`
	Title string          `json:"title,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`

	// RefToView names template elements (or labels) the value renders into.
	RefToView RefList `json:"refToView,omitempty"`
	Items     []Item  `json:"items,omitempty"`

	Fill      bool     `json:"fill,omitempty"`
	Stroke    bool     `json:"stroke,omitempty"`
	Inverse   bool     `json:"inverse,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	WrapLines bool     `json:"wrapLines,omitempty"`
}

// RefList accepts either a single string or a list of strings.
type RefList []string

func (r *RefList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if one == "" {
			*r = nil
		} else {
			*r = RefList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("refToView must be a string or a list of strings: %w", err)
	}
	*r = many
	return nil
}

type Stencil struct {
	Type        Kind        `json:"type"`
	ID          string      `json:"id"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	View        string      `json:"view"`
	Groups      []string    `json:"groups,omitempty"`
	Roles       []string    `json:"roles,omitempty"`
	AutoGrow    bool        `json:"autoGrow,omitempty"`
	Properties  []*Property `json:"properties,omitempty"`

	namespace string
	template  *Template
}

// FullID is the namespace qualified stencil id.
func (s *Stencil) FullID() string {
	return s.namespace + s.ID
}

func (s *Stencil) Namespace() string {
	return s.namespace
}

func (s *Stencil) Template() *Template {
	return s.template
}

func (s *Stencil) IsEdge() bool {
	return s.Type == KindEdge
}

func (s *Stencil) Property(id string) (*Property, bool) {
	for _, p := range s.Properties {
		if strings.EqualFold(p.ID, id) {
			return p, true
		}
	}
	return nil, false
}
