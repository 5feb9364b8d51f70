// Package skconfig holds the explicit layout configuration threaded through
// canvas, shape and label constructors.
package skconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type CanvasConfig struct {
	Width  float64 `yaml:"width" toml:"width" json:"width"`
	Height float64 `yaml:"height" toml:"height" json:"height"`
	// Grid snaps interactive moves. 0 disables snapping.
	Grid float64 `yaml:"grid" toml:"grid" json:"grid"`
}

type LabelConfig struct {
	FontSize   float64 `yaml:"font_size" toml:"font_size" json:"fontSize"`
	FontFamily string  `yaml:"font_family" toml:"font_family" json:"fontFamily"`
	// EdgeDistance is how far top and bottom edge labels sit from the edge.
	EdgeDistance float64 `yaml:"edge_distance" toml:"edge_distance" json:"edgeDistance"`
	// EdgeStartOffset is how far start and end edge labels sit from the
	// endpoints, measured along the edge.
	EdgeStartOffset float64 `yaml:"edge_start_offset" toml:"edge_start_offset" json:"edgeStartOffset"`
	// FitPadding is added below the lowest label by fitToLabels.
	FitPadding float64 `yaml:"fit_padding" toml:"fit_padding" json:"fitPadding"`
}

type DockerConfig struct {
	Radius float64 `yaml:"radius" toml:"radius" json:"radius"`
}

type LayoutConfig struct {
	// MaxSettlePasses bounds how often Canvas.Update re-traverses while
	// deferred label work keeps changing shapes.
	MaxSettlePasses int `yaml:"max_settle_passes" toml:"max_settle_passes" json:"maxSettlePasses"`
	// HitTolerance widens line hit tests.
	HitTolerance float64 `yaml:"hit_tolerance" toml:"hit_tolerance" json:"hitTolerance"`
}

type ExportConfig struct {
	Padding  float64 `yaml:"padding" toml:"padding" json:"padding"`
	PNGScale float64 `yaml:"png_scale" toml:"png_scale" json:"pngScale"`
}

type Config struct {
	Canvas CanvasConfig `yaml:"canvas" toml:"canvas" json:"canvas"`
	Label  LabelConfig  `yaml:"label" toml:"label" json:"label"`
	Docker DockerConfig `yaml:"docker" toml:"docker" json:"docker"`
	Layout LayoutConfig `yaml:"layout" toml:"layout" json:"layout"`
	Export ExportConfig `yaml:"export" toml:"export" json:"export"`
}

func Default() *Config {
	return &Config{
		Canvas: CanvasConfig{Width: 1485, Height: 1050},
		Label: LabelConfig{
			FontSize:        12,
			FontFamily:      "Verdana, sans-serif",
			EdgeDistance:    3,
			EdgeStartOffset: 10,
		},
		Docker: DockerConfig{Radius: 3},
		Layout: LayoutConfig{MaxSettlePasses: 8, HitTolerance: 2},
		Export: ExportConfig{Padding: 10, PNGScale: 1},
	}
}

// Env var names used as overrides.
const (
	EnvFontSize        = "STENCILKIT_FONT_SIZE"
	EnvMaxSettlePasses = "STENCILKIT_MAX_SETTLE_PASSES"
	EnvExportPadding   = "STENCILKIT_PAD"
)

// Load reads a YAML or TOML file over the defaults. The format is chosen by
// extension.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config format %q, expected .yaml or .toml", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from the environment. getenv is usually
// os.Getenv or xmain's Env.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvFontSize); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvFontSize, err)
		}
		c.Label.FontSize = f
	}
	if v := getenv(EnvMaxSettlePasses); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxSettlePasses, err)
		}
		c.Layout.MaxSettlePasses = i
	}
	if v := getenv(EnvExportPadding); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvExportPadding, err)
		}
		c.Export.Padding = f
	}
	return c.Validate()
}

func (c *Config) Validate() error {
	var errs []error
	if c.Label.FontSize <= 0 {
		errs = append(errs, errors.New("label.font_size must be positive"))
	}
	if c.Layout.MaxSettlePasses < 1 {
		errs = append(errs, errors.New("layout.max_settle_passes must be at least 1"))
	}
	if c.Export.Padding < 0 {
		errs = append(errs, errors.New("export.padding must not be negative"))
	}
	if c.Export.PNGScale <= 0 {
		errs = append(errs, errors.New("export.png_scale must be positive"))
	}
	return errors.Join(errs...)
}
