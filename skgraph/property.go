package skgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/stencilkit/stencilkit/lib/color"
	"github.com/stencilkit/stencilkit/lib/svgdom"
	"github.com/stencilkit/stencilkit/skstencil"
)

// PropertyValue is a typed property of a shape. The set of implementations
// is closed.
type PropertyValue interface {
	Kind() skstencil.PropertyType
	String() string
	isPropertyValue()
}

type (
	BoolValue       bool
	IntValue        int64
	FloatValue      float64
	ColorValue      string
	StringValue     string
	TextValue       string
	ExpressionValue string
	ChoiceValue     string
	URLValue        string
)

func (BoolValue) Kind() skstencil.PropertyType       { return skstencil.TypeBoolean }
func (IntValue) Kind() skstencil.PropertyType        { return skstencil.TypeInteger }
func (FloatValue) Kind() skstencil.PropertyType      { return skstencil.TypeFloat }
func (ColorValue) Kind() skstencil.PropertyType      { return skstencil.TypeColor }
func (StringValue) Kind() skstencil.PropertyType     { return skstencil.TypeString }
func (TextValue) Kind() skstencil.PropertyType       { return skstencil.TypeText }
func (ExpressionValue) Kind() skstencil.PropertyType { return skstencil.TypeExpression }
func (ChoiceValue) Kind() skstencil.PropertyType     { return skstencil.TypeChoice }
func (URLValue) Kind() skstencil.PropertyType        { return skstencil.TypeURL }

func (v BoolValue) String() string       { return strconv.FormatBool(bool(v)) }
func (v IntValue) String() string        { return strconv.FormatInt(int64(v), 10) }
func (v FloatValue) String() string      { return strconv.FormatFloat(float64(v), 'f', -1, 64) }
func (v ColorValue) String() string      { return string(v) }
func (v StringValue) String() string     { return string(v) }
func (v TextValue) String() string       { return string(v) }
func (v ExpressionValue) String() string { return string(v) }
func (v ChoiceValue) String() string     { return string(v) }
func (v URLValue) String() string        { return string(v) }

func (BoolValue) isPropertyValue()       {}
func (IntValue) isPropertyValue()        {}
func (FloatValue) isPropertyValue()      {}
func (ColorValue) isPropertyValue()      {}
func (StringValue) isPropertyValue()     {}
func (TextValue) isPropertyValue()       {}
func (ExpressionValue) isPropertyValue() {}
func (ChoiceValue) isPropertyValue()     {}
func (URLValue) isPropertyValue()        {}

// ParsePropertyString parses the string form of a value of type t, as found
// in triples.
func ParsePropertyString(t skstencil.PropertyType, s string) (PropertyValue, error) {
	switch t {
	case skstencil.TypeBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("invalid boolean %q", s)
		}
		return BoolValue(b), nil
	case skstencil.TypeInteger:
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", s)
		}
		return IntValue(i), nil
	case skstencil.TypeFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q", s)
		}
		return FloatValue(f), nil
	case skstencil.TypeColor:
		return ColorValue(s), nil
	case skstencil.TypeString:
		return StringValue(s), nil
	case skstencil.TypeText:
		return TextValue(s), nil
	case skstencil.TypeExpression:
		return ExpressionValue(s), nil
	case skstencil.TypeChoice:
		return ChoiceValue(s), nil
	case skstencil.TypeURL:
		return URLValue(s), nil
	default:
		return nil, fmt.Errorf("unknown property type %q", t)
	}
}

// ParsePropertyJSON parses a JSON property value of type t. Scalars of the
// wrong JSON type are accepted through their string form.
func ParsePropertyJSON(t skstencil.PropertyType, raw json.RawMessage) (PropertyValue, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return zeroValue(t)
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return propertyFromAny(t, v)
}

func propertyFromAny(t skstencil.PropertyType, v interface{}) (PropertyValue, error) {
	switch vv := v.(type) {
	case nil:
		return zeroValue(t)
	case bool:
		if t == skstencil.TypeBoolean {
			return BoolValue(vv), nil
		}
		return ParsePropertyString(t, strconv.FormatBool(vv))
	case float64:
		switch t {
		case skstencil.TypeInteger:
			return IntValue(int64(vv)), nil
		case skstencil.TypeFloat:
			return FloatValue(vv), nil
		}
		return ParsePropertyString(t, strconv.FormatFloat(vv, 'f', -1, 64))
	case string:
		return ParsePropertyString(t, vv)
	default:
		return nil, fmt.Errorf("property of type %s cannot hold %T", t, v)
	}
}

func zeroValue(t skstencil.PropertyType) (PropertyValue, error) {
	switch t {
	case skstencil.TypeBoolean:
		return BoolValue(false), nil
	case skstencil.TypeInteger:
		return IntValue(0), nil
	case skstencil.TypeFloat:
		return FloatValue(0), nil
	}
	return ParsePropertyString(t, "")
}

// propertyJSON is the JSON form of v used in ShapeJSON.
func propertyJSON(v PropertyValue) interface{} {
	switch vv := v.(type) {
	case BoolValue:
		return bool(vv)
	case IntValue:
		return int64(vv)
	case FloatValue:
		return float64(vv)
	default:
		return v.String()
	}
}

// RenderTarget is what a renderer writes a property value into.
type RenderTarget struct {
	Shape Shape
	Def   *skstencil.Property
	// View is the shape's own view group.
	View *svgdom.Element
	// Defs holds the shape's instance gradients and markers.
	Defs *svgdom.Element
}

// Element finds a view element by its template id.
func (rt *RenderTarget) Element(ref string) (*svgdom.Element, error) {
	id := instanceID(rt.Shape.ID(), ref)
	if e := rt.View.FindByID(id); e != nil {
		return e, nil
	}
	if rt.Defs != nil {
		if e := rt.Defs.FindByID(id); e != nil {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrMissingElement, ref)
}

// Renderer writes a property value into a shape's view.
type Renderer func(ctx context.Context, rt *RenderTarget, v PropertyValue) error

// Renderers maps property types to their renderer.
type Renderers map[skstencil.PropertyType]Renderer

func DefaultRenderers() Renderers {
	return Renderers{
		skstencil.TypeString:     renderText,
		skstencil.TypeText:       renderText,
		skstencil.TypeExpression: renderText,
		skstencil.TypeInteger:    renderText,
		skstencil.TypeFloat:      renderText,
		skstencil.TypeColor:      renderColor,
		skstencil.TypeBoolean:    renderBoolean,
		skstencil.TypeChoice:     renderChoice,
		skstencil.TypeURL:        renderURL,
	}
}

func renderText(ctx context.Context, rt *RenderTarget, v PropertyValue) error {
	for _, ref := range rt.Def.RefToView {
		if l := rt.Shape.Label(ref); l != nil {
			l.SetText(v.String())
			continue
		}
		if _, err := rt.Element(ref); err != nil {
			return err
		}
	}
	return nil
}

func renderColor(ctx context.Context, rt *RenderTarget, v PropertyValue) error {
	c, err := color.Normalize(v.String())
	if err != nil {
		return err
	}
	for _, ref := range rt.Def.RefToView {
		if l := rt.Shape.Label(ref); l != nil {
			l.setColor(c)
			continue
		}
		e, err := rt.Element(ref)
		if err != nil {
			return err
		}
		if rt.Def.Fill {
			if grad := rt.gradient(e.Presentation("fill")); grad != nil {
				if err := recolorGradient(grad, c); err != nil {
					return err
				}
			} else {
				e.SetAttr("fill", c)
			}
		}
		if rt.Def.Stroke {
			e.SetAttr("stroke", c)
		}
	}
	return nil
}

// gradient resolves a fill of the form url(#id) to the gradient element.
func (rt *RenderTarget) gradient(fill string) *svgdom.Element {
	if rt.Defs == nil || !strings.HasPrefix(fill, "url(#") || !strings.HasSuffix(fill, ")") {
		return nil
	}
	e := rt.Defs.FindByID(strings.TrimSuffix(strings.TrimPrefix(fill, "url(#"), ")"))
	if e == nil {
		return nil
	}
	switch e.Local() {
	case "linearGradient", "radialGradient":
		return e
	}
	return nil
}

func recolorGradient(grad *svgdom.Element, base string) error {
	stops := grad.FindAll(svgdom.NamespaceSVG, "stop")
	if len(stops) == 0 {
		return nil
	}
	colors, err := color.GradientStops(base, len(stops))
	if err != nil {
		return err
	}
	for i, s := range stops {
		s.RemoveAttr("style")
		s.SetAttr("stop-color", colors[i])
	}
	return nil
}

func setVisible(e *svgdom.Element, visible bool) {
	if visible {
		e.RemoveAttr("display")
	} else {
		e.SetAttr("display", "none")
	}
}

func renderBoolean(ctx context.Context, rt *RenderTarget, v PropertyValue) error {
	b, ok := v.(BoolValue)
	if !ok {
		return fmt.Errorf("expected a boolean, got %s", v.Kind())
	}
	visible := bool(b) != rt.Def.Inverse
	for _, ref := range rt.Def.RefToView {
		if l := rt.Shape.Label(ref); l != nil {
			if visible {
				l.Show()
			} else {
				l.Hide()
			}
			continue
		}
		e, err := rt.Element(ref)
		if err != nil {
			return err
		}
		setVisible(e, visible)
	}
	return nil
}

func renderChoice(ctx context.Context, rt *RenderTarget, v PropertyValue) error {
	known := false
	for _, item := range rt.Def.Items {
		if item.Value == v.String() {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("%q is not one of the choices", v.String())
	}
	for _, item := range rt.Def.Items {
		if item.RefToView == "" {
			continue
		}
		e, err := rt.Element(item.RefToView)
		if err != nil {
			return err
		}
		setVisible(e, item.Value == v.String())
	}
	return nil
}

func renderURL(ctx context.Context, rt *RenderTarget, v PropertyValue) error {
	for _, ref := range rt.Def.RefToView {
		e, err := rt.Element(ref)
		if err != nil {
			return err
		}
		if e.Local() != "image" {
			continue
		}
		e.SetAttrNS(svgdom.NamespaceXLink, "href", v.String())
		setVisible(e, v.String() != "")
	}
	return nil
}
