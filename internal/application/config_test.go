package application

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnalyzerConfig_Valid(t *testing.T) {
	data := []byte(`
version: "1.2.0"
metadata:
  name: tuned
  description: tightened differentiation thresholds
  tags: [production]
units:
  - type: comparative_scorer
    parameters:
      spread_threshold: 0.5
  - type: speed_quality
    parameters:
      slow_time: 4s
`)

	config, err := ParseAnalyzerConfig(data)
	require.NoError(t, err)

	assert.Equal(t, "1.2.0", config.Version)
	assert.Equal(t, "tuned", config.Metadata.Name)
	require.Len(t, config.Units, 2)

	params, ok := config.ParametersFor(UnitTypeComparativeScorer)
	require.True(t, ok)
	assert.False(t, params.IsZero())

	_, ok = config.ParametersFor(UnitTypeRanking)
	assert.False(t, ok, "unconfigured unit type has no parameters")
}

func TestParseAnalyzerConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		errText string
	}{
		{
			name:    "unknown top-level field",
			yaml:    "version: \"1.0.0\"\npipeline: custom\n",
			errText: "failed to decode configuration",
		},
		{
			name:    "missing version",
			yaml:    "metadata:\n  name: test\n",
			errText: "configuration validation failed",
		},
		{
			name:    "invalid semver",
			yaml:    "version: \"not-a-version\"\n",
			errText: "configuration validation failed",
		},
		{
			name:    "unknown unit type",
			yaml:    "version: \"1.0.0\"\nunits:\n  - type: mystery_unit\n",
			errText: "configuration validation failed",
		},
		{
			name:    "uppercase unit type",
			yaml:    "version: \"1.0.0\"\nunits:\n  - type: Ranking\n",
			errText: "configuration validation failed",
		},
		{
			name:    "duplicate unit type",
			yaml:    "version: \"1.0.0\"\nunits:\n  - type: ranking\n  - type: ranking\n",
			errText: "configured more than once",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAnalyzerConfig([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.errText)
		})
	}
}

func TestLoadAnalyzerConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "analyzer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"1.0.0\"\n"), 0o600))

	config, err := LoadAnalyzerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", config.Version)

	_, err = LoadAnalyzerConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read configuration file")
}

func TestDefaultAnalyzerConfig(t *testing.T) {
	config := DefaultAnalyzerConfig()
	assert.Equal(t, "1.0.0", config.Version)
	assert.Empty(t, config.Units)
	require.NoError(t, validate.Struct(config))
}
