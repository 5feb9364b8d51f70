// Package svgdom is a small retained SVG element tree: parse, query, mutate,
// clone and serialize. Documents are read and written with etree. Element
// and attribute names are held by namespace URI, so subtrees keep their
// namespaces when they move between documents.
package svgdom

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/beevik/etree"
)

const (
	NamespaceSVG   = "http://www.w3.org/2000/svg"
	NamespaceOryx  = "http://www.b3mn.org/oryx"
	NamespaceXLink = "http://www.w3.org/1999/xlink"
	NamespaceXML   = "http://www.w3.org/XML/1998/namespace"
)

var knownPrefixes = map[string]string{
	NamespaceOryx:  "oryx",
	NamespaceXLink: "xlink",
	NamespaceXML:   "xml",
}

// Name is a namespace URI and local name.
type Name struct {
	Space string
	Local string
}

type Attr struct {
	Name  Name
	Value string
}

type Element struct {
	Name     Name
	Attrs    []Attr
	Children []*Element
	// Text is the character data directly inside the element.
	Text string

	parent *Element
}

// New creates an element in the SVG namespace.
func New(local string) *Element {
	return &Element{Name: Name{Space: NamespaceSVG, Local: local}}
}

func Parse(r io.Reader) (*Element, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, err
	}
	var roots []*etree.Element
	for _, t := range doc.Child {
		if el, ok := t.(*etree.Element); ok {
			roots = append(roots, el)
		}
	}
	switch len(roots) {
	case 0:
		return nil, errors.New("no root element")
	case 1:
	default:
		return nil, errors.New("multiple root elements")
	}
	root, err := fromETree(roots[0], scope{"xml": NamespaceXML})
	if err != nil {
		return nil, err
	}
	root.Walk(func(e *Element) bool {
		if strings.TrimSpace(e.Text) == "" {
			e.Text = ""
		}
		return true
	})
	return root, nil
}

// scope maps prefixes to namespace URIs. The empty prefix is the default
// namespace.
type scope map[string]string

func (s scope) with(el *etree.Element) scope {
	var next scope
	for _, a := range el.Attr {
		var prefix string
		switch {
		case a.Space == "xmlns":
			prefix = a.Key
		case a.Space == "" && a.Key == "xmlns":
		default:
			continue
		}
		if next == nil {
			next = make(scope, len(s)+1)
			for k, v := range s {
				next[k] = v
			}
		}
		next[prefix] = a.Value
	}
	if next == nil {
		return s
	}
	return next
}

// resolve looks prefix up, falling back to the well known prefixes that
// stencil views use without declaring.
func (s scope) resolve(prefix string) (string, bool) {
	if uri, ok := s[prefix]; ok {
		return uri, true
	}
	if prefix == "" {
		return "", true
	}
	for uri, p := range knownPrefixes {
		if p == prefix {
			return uri, true
		}
	}
	return "", false
}

func fromETree(el *etree.Element, parent scope) (*Element, error) {
	ns := parent.with(el)
	space, ok := ns.resolve(el.Space)
	if !ok {
		return nil, fmt.Errorf("undeclared namespace prefix %q on <%s>", el.Space, el.FullTag())
	}
	e := &Element{Name: Name{Space: space, Local: el.Tag}}
	for _, a := range el.Attr {
		if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
			continue
		}
		var aspace string
		if a.Space != "" {
			if aspace, ok = ns.resolve(a.Space); !ok {
				return nil, fmt.Errorf("undeclared namespace prefix %q on attribute %s", a.Space, a.FullKey())
			}
		}
		e.Attrs = append(e.Attrs, Attr{Name: Name{Space: aspace, Local: a.Key}, Value: a.Value})
	}
	for _, t := range el.Child {
		switch t := t.(type) {
		case *etree.CharData:
			e.Text += t.Data
		case *etree.Element:
			c, err := fromETree(t, ns)
			if err != nil {
				return nil, err
			}
			e.AppendChild(c)
		}
	}
	return e, nil
}

func ParseString(s string) (*Element, error) {
	return Parse(strings.NewReader(s))
}

func (e *Element) Parent() *Element {
	return e.parent
}

func (e *Element) Local() string {
	return e.Name.Local
}

func (e *Element) ID() string {
	return e.Attr("id")
}

// Attr returns the value of the attribute local without a namespace.
func (e *Element) Attr(local string) string {
	v, _ := e.AttrNS("", local)
	return v
}

func (e *Element) AttrNS(space, local string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// OryxAttr is AttrNS in the oryx namespace.
func (e *Element) OryxAttr(local string) (string, bool) {
	return e.AttrNS(NamespaceOryx, local)
}

func (e *Element) SetAttr(local, value string) {
	e.SetAttrNS("", local, value)
}

func (e *Element) SetAttrNS(space, local, value string) {
	for i, a := range e.Attrs {
		if a.Name.Space == space && a.Name.Local == local {
			e.Attrs[i].Value = value
			return
		}
	}
	e.Attrs = append(e.Attrs, Attr{Name: Name{Space: space, Local: local}, Value: value})
}

func (e *Element) RemoveAttr(local string) {
	e.RemoveAttrNS("", local)
}

func (e *Element) RemoveAttrNS(space, local string) {
	for i, a := range e.Attrs {
		if a.Name.Space == space && a.Name.Local == local {
			e.Attrs = append(e.Attrs[:i:i], e.Attrs[i+1:]...)
			return
		}
	}
}

func (e *Element) AppendChild(c *Element) {
	c.detach()
	c.parent = e
	e.Children = append(e.Children, c)
}

// InsertChild inserts c at index i, clamped to the valid range.
func (e *Element) InsertChild(i int, c *Element) {
	c.detach()
	if i < 0 || i > len(e.Children) {
		i = len(e.Children)
	}
	c.parent = e
	e.Children = append(e.Children, nil)
	copy(e.Children[i+1:], e.Children[i:])
	e.Children[i] = c
}

func (e *Element) RemoveChild(c *Element) bool {
	for i, cc := range e.Children {
		if cc == c {
			e.Children = append(e.Children[:i:i], e.Children[i+1:]...)
			c.parent = nil
			return true
		}
	}
	return false
}

func (e *Element) RemoveChildren() {
	for _, c := range e.Children {
		c.parent = nil
	}
	e.Children = nil
}

func (e *Element) detach() {
	if e.parent != nil {
		e.parent.RemoveChild(e)
	}
}

// Clone deep copies e. The copy has no parent.
func (e *Element) Clone() *Element {
	c := &Element{
		Name:  e.Name,
		Attrs: append([]Attr(nil), e.Attrs...),
		Text:  e.Text,
	}
	for _, child := range e.Children {
		cc := child.Clone()
		cc.parent = c
		c.Children = append(c.Children, cc)
	}
	return c
}

// Walk visits e and its descendants depth first. Returning false from fn
// skips the children of that element.
func (e *Element) Walk(fn func(*Element) bool) {
	if !fn(e) {
		return
	}
	for _, c := range append([]*Element(nil), e.Children...) {
		c.Walk(fn)
	}
}

func (e *Element) FindByID(id string) *Element {
	var found *Element
	e.Walk(func(el *Element) bool {
		if found != nil {
			return false
		}
		if el.ID() == id {
			found = el
			return false
		}
		return true
	})
	return found
}

// FindAll returns every descendant (including e) with the given local name
// in the given namespace.
func (e *Element) FindAll(space, local string) []*Element {
	var out []*Element
	e.Walk(func(el *Element) bool {
		if el.Name.Local == local && el.Name.Space == space {
			out = append(out, el)
		}
		return true
	})
	return out
}

// Style returns the value of a property in the style attribute.
func (e *Element) Style(prop string) string {
	for _, decl := range strings.Split(e.Attr("style"), ";") {
		k, v, ok := strings.Cut(decl, ":")
		if ok && strings.TrimSpace(k) == prop {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Presentation returns prop from the style attribute, falling back to the
// presentation attribute of the same name.
func (e *Element) Presentation(prop string) string {
	if v := e.Style(prop); v != "" {
		return v
	}
	return e.Attr(prop)
}

// IsHidden reports whether e is not rendered.
func (e *Element) IsHidden() bool {
	return e.Presentation("display") == "none" || e.Presentation("visibility") == "hidden"
}

func (e *Element) Encode(w io.Writer) error {
	return e.EncodeWith(w, EncodeOptions{})
}

type EncodeOptions struct {
	// Fragment omits the namespace declarations on e. The caller declares
	// them in the enclosing document.
	Fragment bool
	// ASCII writes non-ASCII text as numeric character references.
	ASCII bool
}

func (e *Element) EncodeWith(w io.Writer, opts EncodeOptions) error {
	enc := &encoder{prefixes: make(map[string]string)}
	enc.collect(e)
	root := etree.NewElement(qualified(enc.prefix(e.Name.Space), e.Name.Local))
	if !opts.Fragment {
		root.CreateAttr("xmlns", NamespaceSVG)
		spaces := make([]string, 0, len(enc.prefixes))
		for space := range enc.prefixes {
			if space != NamespaceXML {
				spaces = append(spaces, space)
			}
		}
		sort.Strings(spaces)
		for _, space := range spaces {
			root.CreateAttr("xmlns:"+enc.prefixes[space], space)
		}
	}
	enc.fill(root, e)

	doc := etree.NewDocument()
	doc.WriteSettings.CanonicalText = true
	doc.SetRoot(root)
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return err
	}
	out := buf.Bytes()
	if opts.ASCII {
		out = asciiRefs(out)
	}
	_, err := w.Write(out)
	return err
}

// asciiRefs replaces every non-ASCII rune with a numeric character
// reference. Names are ASCII, so only character data and attribute values
// change.
func asciiRefs(b []byte) []byte {
	var out bytes.Buffer
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r < utf8.RuneSelf {
			out.WriteByte(b[0])
		} else {
			fmt.Fprintf(&out, "&#%d;", r)
		}
		b = b[size:]
	}
	return out.Bytes()
}

func (e *Element) String() string {
	var b bytes.Buffer
	_ = e.Encode(&b)
	return b.String()
}

type encoder struct {
	prefixes map[string]string
	next     int
}

func (enc *encoder) collect(e *Element) {
	e.Walk(func(el *Element) bool {
		enc.prefix(el.Name.Space)
		for _, a := range el.Attrs {
			enc.prefix(a.Name.Space)
		}
		return true
	})
}

func (enc *encoder) prefix(space string) string {
	if space == "" || space == NamespaceSVG {
		return ""
	}
	if p, ok := enc.prefixes[space]; ok {
		return p
	}
	p, ok := knownPrefixes[space]
	if !ok {
		enc.next++
		p = fmt.Sprintf("ns%d", enc.next)
	}
	enc.prefixes[space] = p
	return p
}

func qualified(prefix, local string) string {
	if prefix == "" {
		return local
	}
	return prefix + ":" + local
}

func (enc *encoder) fill(el *etree.Element, e *Element) {
	for _, a := range e.Attrs {
		el.CreateAttr(qualified(enc.prefix(a.Name.Space), a.Name.Local), a.Value)
	}
	if e.Text != "" {
		el.SetText(e.Text)
	}
	for _, c := range e.Children {
		child := el.CreateElement(qualified(enc.prefix(c.Name.Space), c.Name.Local))
		enc.fill(child, c)
	}
}
