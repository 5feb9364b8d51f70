// Package skcli implements the stencilkit command: it lays out a canvas
// document against a stencil set and exports it.
package skcli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"cdr.dev/slog"
	"github.com/spf13/pflag"

	"oss.terrastruct.com/util-go/go2"
	"oss.terrastruct.com/util-go/xmain"

	"github.com/stencilkit/stencilkit/lib/log"
	"github.com/stencilkit/stencilkit/lib/version"
	"github.com/stencilkit/stencilkit/skconfig"
	"github.com/stencilkit/stencilkit/skrenderers/sksvg"
)

type exportOpts struct {
	setPath    string
	inputPath  string
	outputPath string
	format     format
	configPath string

	render *sksvg.RenderOpts
	scale  *float64
	strict bool
}

func Run(ctx context.Context, ms *xmain.State) (err error) {
	ctx = log.WithDefault(ctx)
	watchFlag, err := ms.Opts.Bool("STENCILKIT_WATCH", "watch", "w", false, "watch the stencil set and document for changes and export again on every change.")
	if err != nil {
		return err
	}
	debugFlag, err := ms.Opts.Bool("DEBUG", "debug", "d", false, "print debug logs.")
	if err != nil {
		ms.Log.Warn.Printf("Invalid DEBUG flag value ignored")
		debugFlag = go2.Pointer(false)
	}
	configFlag := ms.Opts.String("STENCILKIT_CONFIG", "config", "c", "", "path to a .yaml or .toml layout configuration.")
	padFlag, err := ms.Opts.Int64("", "pad", "", 10, "pixels padded around the exported content. Defaults to the configured export padding.")
	if err != nil {
		return err
	}
	scaleFlag, err := ms.Opts.Float64("", "scale", "", 1, "PNG scale factor. Defaults to the configured PNG scale.")
	if err != nil {
		return err
	}
	escapeFlag, err := ms.Opts.Bool("STENCILKIT_ESCAPE_TEXT", "escape-text", "", false, "write non-ASCII SVG text as character references.")
	if err != nil {
		return err
	}
	titleFlag := ms.Opts.String("", "title", "", "", "title of SVG exports and the PDF page header. Defaults to the document name.")
	strictFlag, err := ms.Opts.Bool("STENCILKIT_STRICT", "strict", "", false, "fail when the layout reports diagnostics.")
	if err != nil {
		return err
	}
	logFileFlag := ms.Opts.String("STENCILKIT_LOG_FILE", "log-file", "", "", "also append logs to this file, rotated at 10 MB.")
	timeoutFlag, err := ms.Opts.Int64("STENCILKIT_TIMEOUT", "timeout", "", 120, "the maximum number of seconds an export may take.")
	if err != nil {
		return err
	}
	versionFlag, err := ms.Opts.Bool("", "version", "v", false, "get the version")
	if err != nil {
		return err
	}

	err = ms.Opts.Flags.Parse(ms.Opts.Args)
	if !errors.Is(err, pflag.ErrHelp) && err != nil {
		return xmain.UsageErrorf("failed to parse flags: %v", err)
	}
	if errors.Is(err, pflag.ErrHelp) {
		help(ms)
		return nil
	}

	if *debugFlag {
		ms.Env.Setenv("DEBUG", "1")
	}
	ctx = log.Stderr(ctx, ms.Stderr, *logFileFlag, 10)
	defer log.Sync(ctx)
	if *debugFlag {
		ctx = log.Leveled(ctx, slog.LevelDebug)
	}

	if len(ms.Opts.Flags.Args()) > 0 {
		switch ms.Opts.Flags.Arg(0) {
		case "validate":
			return validateCmd(ctx, ms)
		case "stencils":
			return stencilsCmd(ctx, ms)
		case "version":
			if len(ms.Opts.Flags.Args()) > 1 {
				return xmain.UsageErrorf("version subcommand accepts no arguments")
			}
			fmt.Fprintln(ms.Stdout, version.Version)
			return nil
		}
	}

	args := ms.Opts.Flags.Args()
	if len(args) == 0 {
		if *versionFlag {
			fmt.Fprintln(ms.Stdout, version.Version)
			return nil
		}
		help(ms)
		return nil
	}
	if len(args) == 1 {
		return xmain.UsageErrorf("missing document: pass a stencil set and a document")
	}
	if len(args) > 3 {
		return xmain.UsageErrorf("too many arguments passed")
	}

	opts := &exportOpts{
		setPath:    ms.AbsPath(args[0]),
		inputPath:  args[1],
		configPath: *configFlag,
		render: &sksvg.RenderOpts{
			EscapeText: escapeFlag,
			Title:      *titleFlag,
		},
		strict: *strictFlag,
	}
	if len(args) == 3 {
		opts.outputPath = args[2]
	} else if opts.inputPath == "-" {
		opts.outputPath = "-"
	} else {
		opts.outputPath = renameExt(opts.inputPath, ".svg")
	}
	if opts.inputPath != "-" {
		opts.inputPath = ms.AbsPath(opts.inputPath)
	}
	if opts.outputPath != "-" {
		opts.outputPath = ms.AbsPath(opts.outputPath)
	}
	opts.format, err = outputFormat(opts.outputPath)
	if err != nil {
		return xmain.UsageErrorf("%v", err)
	}
	if opts.configPath != "" {
		opts.configPath = ms.AbsPath(opts.configPath)
	}
	if opts.render.Title == "" && opts.inputPath != "-" {
		opts.render.Title = strings.TrimSuffix(filepath.Base(opts.inputPath), filepath.Ext(opts.inputPath))
	}

	// Flags left at their defaults defer to the configuration.
	ms.Opts.Flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "pad":
			opts.render.Pad = padFlag
		case "scale":
			opts.scale = scaleFlag
		}
	})
	if opts.scale != nil && *opts.scale <= 0 {
		return xmain.UsageErrorf("--scale must be positive, got %v", *opts.scale)
	}

	if *watchFlag {
		if opts.inputPath == "-" || opts.outputPath == "-" {
			return xmain.UsageErrorf("--watch cannot be used with stdin or stdout")
		}
		return watch(ctx, ms, opts)
	}

	ctx, cancel := log.WithTimeout(ctx, time.Duration(*timeoutFlag)*time.Second)
	defer cancel()
	return export(ctx, ms, opts)
}

func loadConfig(ms *xmain.State, path string) (*skconfig.Config, error) {
	cfg := skconfig.Default()
	if path != "" {
		var err error
		cfg, err = skconfig.Load(path)
		if err != nil {
			return nil, xmain.UsageErrorf("failed to load config: %v", err)
		}
	}
	if err := cfg.ApplyEnv(ms.Env.Getenv); err != nil {
		return nil, xmain.UsageErrorf("invalid environment: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, xmain.UsageErrorf("invalid config: %v", err)
	}
	return cfg, nil
}

type format string

const (
	formatSVG  format = "svg"
	formatPNG  format = "png"
	formatPDF  format = "pdf"
	formatJSON format = "json"
)

func outputFormat(outputPath string) (format, error) {
	if outputPath == "-" {
		return formatSVG, nil
	}
	switch ext := strings.ToLower(filepath.Ext(outputPath)); ext {
	case ".svg", "":
		return formatSVG, nil
	case ".png":
		return formatPNG, nil
	case ".pdf":
		return formatPDF, nil
	case ".json":
		return formatJSON, nil
	default:
		return "", fmt.Errorf("unsupported output format %q: use .svg, .png, .pdf or .json", ext)
	}
}

func renameExt(fp string, newExt string) string {
	ext := filepath.Ext(fp)
	if ext == "" {
		return fp + newExt
	}
	return strings.TrimSuffix(fp, ext) + newExt
}
