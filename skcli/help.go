package skcli

import (
	"fmt"
	"path/filepath"

	"oss.terrastruct.com/util-go/xmain"

	"github.com/stencilkit/stencilkit/lib/version"
)

func help(ms *xmain.State) {
	fmt.Fprintf(ms.Stdout, `%[1]s %[2]s
Usage:
  %[1]s [--watch=false] [--config=layout.yaml] stencilset.json document.json [out.svg | out.png | out.pdf | out.json]
  %[1]s validate stencilset.json [document.json]
  %[1]s stencils stencilset.json
  %[1]s version

%[1]s lays out document.json against the stencils of stencilset.json and exports
the canvas. It defaults to document.svg if an output path is not provided.

Use - to read the document from stdin or write to stdout.

Flags:
%[3]s

Subcommands:
  %[1]s validate stencilset.json [document.json] - Validates a stencil set and a document
  %[1]s stencils stencilset.json - Lists the stencils of a set
  %[1]s version - Prints the version
`, filepath.Base(ms.Name), version.Version, ms.Opts.Defaults())
}
