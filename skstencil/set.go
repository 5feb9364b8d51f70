package skstencil

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"oss.terrastruct.com/util-go/xdefer"

	"github.com/stencilkit/stencilkit/lib/svgdom"
)

//go:embed schema.json
var schemaJSON []byte

// Set is a loaded stencil set.
type Set struct {
	Namespace   string     `json:"namespace"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Stencils    []*Stencil `json:"stencils"`

	byID map[string]*Stencil
}

// SchemaError lists every violation of the stencil set schema.
type SchemaError struct {
	Errors []string
}

func (e *SchemaError) Error() string {
	return "stencil set does not conform to schema: " + strings.Join(e.Errors, "; ")
}

// Validate checks raw stencil set JSON against the embedded schema.
func Validate(data []byte) error {
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}
	se := &SchemaError{}
	for _, e := range result.Errors() {
		se.Errors = append(se.Errors, e.String())
	}
	return se
}

// LoadSet reads the stencil set at name from fsys. View paths are resolved
// relative to the directory of name.
func LoadSet(fsys fs.FS, name string) (_ *Set, err error) {
	defer xdefer.Errorf(&err, "failed to load stencil set %q", name)

	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	return ParseSet(data, fsys, path.Dir(name))
}

// ParseSet parses stencil set JSON and the views it references.
func ParseSet(data []byte, fsys fs.FS, dir string) (*Set, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	s := &Set{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	s.byID = make(map[string]*Stencil, len(s.Stencils))

	var errs []error
	for _, st := range s.Stencils {
		st.namespace = s.Namespace
		if _, ok := s.byID[st.ID]; ok {
			errs = append(errs, fmt.Errorf("duplicate stencil id %q", st.ID))
			continue
		}
		s.byID[st.ID] = st
		if err := st.loadView(fsys, dir); err != nil {
			errs = append(errs, fmt.Errorf("stencil %q: %w", st.ID, err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return s, nil
}

func (st *Stencil) loadView(fsys fs.FS, dir string) error {
	var root *svgdom.Element
	var err error
	if strings.HasPrefix(strings.TrimSpace(st.View), "<") {
		root, err = svgdom.ParseString(st.View)
	} else {
		var f fs.File
		f, err = fsys.Open(path.Join(dir, st.View))
		if err != nil {
			return err
		}
		defer f.Close()
		root, err = svgdom.Parse(f)
	}
	if err != nil {
		return fmt.Errorf("failed to parse view: %w", err)
	}
	st.template, err = ParseTemplate(root, st.Type)
	return err
}

// Stencil looks up a stencil by its id or its namespace qualified id.
func (s *Set) Stencil(id string) (*Stencil, bool) {
	st, ok := s.byID[strings.TrimPrefix(id, s.Namespace)]
	return st, ok
}

// Nodes returns the node stencils in declaration order.
func (s *Set) Nodes() []*Stencil {
	return s.filter(KindNode)
}

func (s *Set) Edges() []*Stencil {
	return s.filter(KindEdge)
}

func (s *Set) filter(k Kind) []*Stencil {
	var out []*Stencil
	for _, st := range s.Stencils {
		if st.Type == k {
			out = append(out, st)
		}
	}
	return out
}
