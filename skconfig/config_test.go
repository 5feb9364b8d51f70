package skconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name     string
		file     string
		content  string
		fontSize float64
		passes   int
		err      string
	}{
		{
			name:     "yaml",
			file:     "stencilkit.yaml",
			content:  "label:\n  font_size: 14\nlayout:\n  max_settle_passes: 3\n",
			fontSize: 14,
			passes:   3,
		},
		{
			name:     "toml",
			file:     "stencilkit.toml",
			content:  "[label]\nfont_size = 9\n",
			fontSize: 9,
			passes:   8,
		},
		{
			name:    "invalid",
			file:    "bad.yaml",
			content: "label:\n  font_size: -1\n",
			err:     "label.font_size must be positive",
		},
		{
			name: "unknown_ext",
			file: "conf.ini",
			err:  `unsupported config format ".ini"`,
		},
	}
	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), tc.file)
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o600))

			cfg, err := Load(path)
			if tc.err != "" {
				assert.ErrorContains(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.fontSize, cfg.Label.FontSize)
			assert.Equal(t, tc.passes, cfg.Layout.MaxSettlePasses)
			// untouched sections keep defaults
			assert.Equal(t, Default().Export, cfg.Export)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{EnvFontSize: "16", EnvExportPadding: "0"}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, 16., cfg.Label.FontSize)
	assert.Equal(t, 0., cfg.Export.Padding)

	env[EnvMaxSettlePasses] = "many"
	assert.Error(t, Default().ApplyEnv(func(k string) string { return env[k] }))
}
