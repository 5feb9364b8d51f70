package skcli

import (
	"context"
	"fmt"

	"oss.terrastruct.com/util-go/xdefer"
	"oss.terrastruct.com/util-go/xmain"

	"github.com/stencilkit/stencilkit/lib/textmeasure"
)

// validateCmd checks a stencil set and, when given, lays out a document
// against it. Layout diagnostics fail validation.
func validateCmd(ctx context.Context, ms *xmain.State) (err error) {
	defer xdefer.Errorf(&err, "failed to validate")

	args := ms.Opts.Flags.Args()[1:]
	if len(args) == 0 || len(args) > 2 {
		return xmain.UsageErrorf("validate must be passed a stencil set and optionally a document")
	}
	setPath := ms.AbsPath(args[0])
	set, err := loadSet(setPath)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		ms.Log.Success.Printf("%s is valid: %d node and %d edge stencils", ms.HumanPath(setPath), len(set.Nodes()), len(set.Edges()))
		return nil
	}

	inputPath := args[1]
	if inputPath != "-" {
		inputPath = ms.AbsPath(inputPath)
	}
	cfg, err := loadConfig(ms, ms.Env.Getenv("STENCILKIT_CONFIG"))
	if err != nil {
		return err
	}
	ruler, err := textmeasure.NewRuler()
	if err != nil {
		return err
	}
	c, err := loadCanvas(ctx, ms, cfg, setPath, inputPath, ruler)
	if err != nil {
		return err
	}
	if diags := c.Diagnostics(); !diags.Empty() {
		return fmt.Errorf("%d layout diagnostics", len(diags.Errors))
	}
	ms.Log.Success.Printf("%s is valid: %d shapes", ms.HumanPath(inputPath), len(c.Shapes()))
	return nil
}

// stencilsCmd lists the stencils of a set.
func stencilsCmd(ctx context.Context, ms *xmain.State) (err error) {
	defer xdefer.Errorf(&err, "failed to list stencils")

	args := ms.Opts.Flags.Args()[1:]
	if len(args) != 1 {
		return xmain.UsageErrorf("stencils must be passed a stencil set")
	}
	set, err := loadSet(ms.AbsPath(args[0]))
	if err != nil {
		return err
	}
	for _, st := range set.Nodes() {
		fmt.Fprintf(ms.Stdout, "node\t%s\t%s\n", st.ID, st.Title)
	}
	for _, st := range set.Edges() {
		fmt.Fprintf(ms.Stdout, "edge\t%s\t%s\n", st.ID, st.Title)
	}
	return nil
}
