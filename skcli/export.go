package skcli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"cdr.dev/slog"

	"oss.terrastruct.com/util-go/xdefer"
	"oss.terrastruct.com/util-go/xmain"

	"github.com/stencilkit/stencilkit/lib/log"
	"github.com/stencilkit/stencilkit/lib/png"
	"github.com/stencilkit/stencilkit/lib/textmeasure"
	"github.com/stencilkit/stencilkit/skconfig"
	"github.com/stencilkit/stencilkit/skgraph"
	"github.com/stencilkit/stencilkit/skrenderers/skpdf"
	"github.com/stencilkit/stencilkit/skrenderers/sksvg"
	"github.com/stencilkit/stencilkit/skstencil"
)

func loadSet(path string) (*skstencil.Set, error) {
	return skstencil.LoadSet(os.DirFS(filepath.Dir(path)), filepath.Base(path))
}

// loadCanvas lays out the document at inputPath and reports its
// diagnostics.
func loadCanvas(ctx context.Context, ms *xmain.State, cfg *skconfig.Config, setPath, inputPath string, ruler *textmeasure.Ruler) (*skgraph.Canvas, error) {
	set, err := loadSet(setPath)
	if err != nil {
		return nil, err
	}
	input, err := ms.ReadPath(inputPath)
	if err != nil {
		return nil, err
	}
	c := skgraph.NewCanvas(cfg, set, skgraph.WithMeasurer(ruler))
	if err := c.LoadJSON(ctx, input); err != nil {
		return nil, err
	}
	diags := c.Diagnostics()
	if !diags.Empty() {
		for _, d := range diags.Errors {
			ms.Log.Warn.Printf("%v", d)
		}
		log.Debug(ctx, "layout diagnostics", slog.F("count", len(diags.Errors)))
	}
	return c, nil
}

func export(ctx context.Context, ms *xmain.State, opts *exportOpts) (err error) {
	defer xdefer.Errorf(&err, "failed to export %s", ms.HumanPath(opts.inputPath))

	cfg, err := loadConfig(ms, opts.configPath)
	if err != nil {
		return err
	}
	ruler, err := textmeasure.NewRuler()
	if err != nil {
		return err
	}
	c, err := loadCanvas(ctx, ms, cfg, opts.setPath, opts.inputPath, ruler)
	if err != nil {
		return err
	}
	if opts.strict && !c.Diagnostics().Empty() {
		return c.Diagnostics()
	}

	out, err := render(ctx, c, ruler, opts)
	if err != nil {
		return err
	}
	if opts.outputPath == "-" {
		_, err = ms.Stdout.Write(out)
		return err
	}
	if err := ms.WritePath(opts.outputPath, out); err != nil {
		return err
	}
	ms.Log.Success.Printf("successfully exported %s to %s", ms.HumanPath(opts.inputPath), ms.HumanPath(opts.outputPath))
	return nil
}

func render(ctx context.Context, c *skgraph.Canvas, ruler *textmeasure.Ruler, opts *exportOpts) ([]byte, error) {
	switch opts.format {
	case formatJSON:
		return json.MarshalIndent(c.ToJSON(), "", "  ")
	case formatPDF:
		title := opts.render.Title
		if title == "" {
			title = c.ID()
		}
		return skpdf.Render(ctx, ruler, []skpdf.Page{{
			Title:  []string{title},
			Canvas: c,
		}}, opts.render)
	}

	svg, err := sksvg.Render(ctx, c, opts.render)
	if err != nil {
		return nil, err
	}
	if opts.format == formatSVG {
		return svg, nil
	}
	scale := c.Config().Export.PNGScale
	if opts.scale != nil {
		scale = *opts.scale
	}
	return png.FromSVG(ctx, svg, scale, ruler)
}
