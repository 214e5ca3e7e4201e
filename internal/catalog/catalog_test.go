package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ValidEntries(t *testing.T) {
	catalog, err := New([]Entry{
		{Model: "openai/gpt-4o", Strengths: []string{"reasoning"}, Speed: SpeedMedium, Cost: CostHigh},
		{Model: "google/gemini-2.0-flash", Strengths: []string{"factual"}, Speed: SpeedFast, Cost: CostLow},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"openai/gpt-4o", "google/gemini-2.0-flash"}, catalog.Models())

	entry, ok := catalog.Lookup("openai/gpt-4o")
	require.True(t, ok)
	assert.Equal(t, SpeedMedium, entry.Speed)

	_, ok = catalog.Lookup("unknown/model")
	assert.False(t, ok)
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		errMsg  string
	}{
		{
			name:    "empty catalog",
			entries: nil,
			errMsg:  "at least one entry",
		},
		{
			name: "missing model",
			entries: []Entry{
				{Strengths: []string{"code"}, Speed: SpeedFast, Cost: CostLow},
			},
			errMsg: "entry 0",
		},
		{
			name: "no strengths",
			entries: []Entry{
				{Model: "openai/gpt-4o", Speed: SpeedFast, Cost: CostLow},
			},
			errMsg: "entry 0",
		},
		{
			name: "invalid speed tier",
			entries: []Entry{
				{Model: "openai/gpt-4o", Strengths: []string{"code"}, Speed: "warp", Cost: CostLow},
			},
			errMsg: "entry 0",
		},
		{
			name: "duplicate model",
			entries: []Entry{
				{Model: "openai/gpt-4o", Strengths: []string{"code"}, Speed: SpeedFast, Cost: CostLow},
				{Model: "openai/gpt-4o", Strengths: []string{"factual"}, Speed: SpeedFast, Cost: CostLow},
			},
			errMsg: "duplicate catalog entry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.entries)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParse_YAML(t *testing.T) {
	data := []byte(`
models:
  - model: openai/gpt-4o
    strengths: [reasoning, code]
    speed: medium
    cost: high
    description: general purpose
  - model: google/gemini-2.0-flash
    strengths: [factual]
    speed: fast
    cost: low
`)
	catalog, err := Parse(data)
	require.NoError(t, err)

	entry, ok := catalog.Lookup("openai/gpt-4o")
	require.True(t, ok)
	assert.Equal(t, []string{"reasoning", "code"}, entry.Strengths)
	assert.Equal(t, CostHigh, entry.Cost)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	data := []byte(`
models:
  - model: openai/gpt-4o
    strengths: [reasoning]
    speed: medium
    cost: high
    pricing: 0.01
`)
	_, err := Parse(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode catalog")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
models:
  - model: anthropic/claude-3-5-sonnet-20241022
    strengths: [creative]
    speed: medium
    cost: medium
`), 0o644))

	catalog, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"anthropic/claude-3-5-sonnet-20241022"}, catalog.Models())

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read catalog file")
}

func TestWithStrength(t *testing.T) {
	catalog := Default()

	code := catalog.WithStrength("code")
	require.NotEmpty(t, code)
	for _, entry := range code {
		assert.Contains(t, entry.Strengths, "code")
	}

	assert.Empty(t, catalog.WithStrength("nonexistent"))
}

func TestDefault_Valid(t *testing.T) {
	catalog := Default()
	require.NotNil(t, catalog)
	assert.GreaterOrEqual(t, len(catalog.Entries()), 3)
}
