package skstencil_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	tassert "github.com/stretchr/testify/assert"

	"oss.terrastruct.com/util-go/assert"

	"github.com/stencilkit/stencilkit/lib/label"
	"github.com/stencilkit/stencilkit/lib/svgdom"
	"github.com/stencilkit/stencilkit/skstencil"
)

func loadBasic(t *testing.T) *skstencil.Set {
	t.Helper()
	set, err := skstencil.LoadSet(os.DirFS(filepath.Join("..", "testdata", "stencilset")), "basic.json")
	assert.Success(t, err)
	return set
}

func TestLoadSet(t *testing.T) {
	t.Parallel()

	set := loadBasic(t)
	assert.String(t, "Basic", set.Title)
	assert.Equal(t, 4, len(set.Nodes()))
	assert.Equal(t, 1, len(set.Edges()))

	task, ok := set.Stencil("http://stencilkit.dev/stencilset/basic#Task")
	assert.Equal(t, true, ok)
	assert.String(t, "http://stencilkit.dev/stencilset/basic#Task", task.FullID())

	tmpl := task.Template()
	assert.Equal(t, 0, len(tmpl.Warnings))
	assert.Equal(t, 100.0, tmpl.Size.Width)
	assert.Equal(t, 80.0, tmpl.Size.Height)
	assert.Equal(t, 50.0, tmpl.MinimumSize.Width)
	assert.Equal(t, 300.0, tmpl.MaximumSize.Height)
	assert.Equal(t, 5, len(tmpl.Magnets))
	assert.Equal(t, true, tmpl.Magnets[4].Default)
	assert.Equal(t, 1, len(tmpl.Defs.Children))

	bg := tmpl.Primitives[0]
	assert.String(t, "bg_frame", bg.ID)
	assert.Equal(t, true, bg.ResizeH && bg.ResizeV)

	name, ok := tmpl.TextDef("text_name")
	assert.Equal(t, true, ok)
	assert.Equal(t, label.Center, name.Align)
	assert.Equal(t, label.Middle, name.Valign)
	assert.String(t, "bg_frame", name.FitToElem)

	p, ok := task.Property("NAME")
	assert.Equal(t, true, ok)
	tassert.Equal(t, []string{"text_name"}, []string(p.RefToView))
	assert.Equal(t, true, p.WrapLines)
}

func TestEdgeTemplate(t *testing.T) {
	t.Parallel()

	set := loadBasic(t)
	flow, ok := set.Stencil("SequenceFlow")
	assert.Equal(t, true, ok)
	assert.Equal(t, true, flow.IsEdge())

	tmpl := flow.Template()
	assert.Equal(t, 0, len(tmpl.Primitives))
	assert.Equal(t, 0, len(tmpl.Magnets))
	assert.Equal(t, 2, len(tmpl.Texts))
	assert.Equal(t, label.MidTop, tmpl.Texts[0].EdgePosition)
	assert.Equal(t, label.StartBottom, tmpl.Texts[1].EdgePosition)
}

func TestParseTemplateDefaults(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		svg      string
		warnings int
		check    func(t *testing.T, tmpl *skstencil.Template)
	}{
		{
			name: "no_constraints",
			svg:  `<svg xmlns="http://www.w3.org/2000/svg"><rect x="0" y="0" width="30" height="20"/></svg>`,
			check: func(t *testing.T, tmpl *skstencil.Template) {
				tassert.Nil(t, tmpl.MinimumSize)
				tassert.Nil(t, tmpl.MaximumSize)
				assert.Equal(t, 30.0, tmpl.Size.Width)
				assert.Equal(t, 1, len(tmpl.Magnets))
				assert.Equal(t, 15.0, tmpl.Magnets[0].Center.X)
			},
		},
		{
			name:     "malformed_minimum_size",
			svg:      `<svg xmlns="http://www.w3.org/2000/svg" xmlns:oryx="http://www.b3mn.org/oryx"><g oryx:minimumSize="wide"><rect width="10" height="10"/></g></svg>`,
			warnings: 1,
			check: func(t *testing.T, tmpl *skstencil.Template) {
				tassert.Nil(t, tmpl.MinimumSize)
			},
		},
		{
			name:     "bad_path",
			svg:      `<svg xmlns="http://www.w3.org/2000/svg"><path d="10 10"/><circle cx="20" cy="20" r="5"/></svg>`,
			warnings: 1,
			check: func(t *testing.T, tmpl *skstencil.Template) {
				assert.Equal(t, 2, len(tmpl.Primitives))
				assert.Equal(t, 25.0, tmpl.Size.Height)
			},
		},
		{
			name: "polygon",
			svg:  `<svg xmlns="http://www.w3.org/2000/svg"><polygon points="0,20 20,0 40,20 20,40"/></svg>`,
			check: func(t *testing.T, tmpl *skstencil.Template) {
				assert.Equal(t, 4, len(tmpl.Primitives[0].Points))
				assert.Equal(t, 40.0, tmpl.Size.Width)
			},
		},
		{
			name:     "text_without_id",
			svg:      `<svg xmlns="http://www.w3.org/2000/svg"><rect width="10" height="10"/><text x="1" y="2" text-anchor="end">hi</text></svg>`,
			warnings: 1,
			check: func(t *testing.T, tmpl *skstencil.Template) {
				assert.String(t, "text0", tmpl.Texts[0].ID)
				assert.Equal(t, label.Right, tmpl.Texts[0].Align)
				assert.Equal(t, label.Bottom, tmpl.Texts[0].Valign)
				assert.String(t, "hi", tmpl.Texts[0].Text)
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			root, err := svgdom.ParseString(tc.svg)
			assert.Success(t, err)
			tmpl, err := skstencil.ParseTemplate(root, skstencil.KindNode)
			assert.Success(t, err)
			assert.Equal(t, tc.warnings, len(tmpl.Warnings))
			tc.check(t, tmpl)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	err := skstencil.Validate([]byte(`{"namespace": "x#", "stencils": [{"type": "group", "id": "A", "view": "a.svg"}]}`))
	var se *skstencil.SchemaError
	assert.Equal(t, true, errors.As(err, &se))
	tassert.NotEmpty(t, se.Errors)

	err = skstencil.Validate([]byte(`{"namespace": "x#", "stencils": []}`))
	assert.Success(t, err)
}

func TestParseSetInlineView(t *testing.T) {
	t.Parallel()

	data := []byte(`{"namespace": "x#", "stencils": [
		{"type": "node", "id": "A", "view": "<svg xmlns=\"http://www.w3.org/2000/svg\"><rect width=\"5\" height=\"6\"/></svg>"},
		{"type": "node", "id": "A", "view": "<svg/>"}
	]}`)
	_, err := skstencil.ParseSet(data, os.DirFS("."), ".")
	tassert.ErrorContains(t, err, `duplicate stencil id "A"`)
}
