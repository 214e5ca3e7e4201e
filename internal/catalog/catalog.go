// Package catalog maintains a table of model capabilities and selects
// which models should answer a query. Selection asks the scoring oracle
// to match the query against capability profiles and falls back to a
// keyword heuristic when the oracle is unavailable.
package catalog

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// SpeedTier buckets models by expected response latency.
type SpeedTier string

const (
	// SpeedFast marks models answering in roughly a second.
	SpeedFast SpeedTier = "fast"
	// SpeedMedium marks models with moderate latency.
	SpeedMedium SpeedTier = "medium"
	// SpeedSlow marks the heavyweight models.
	SpeedSlow SpeedTier = "slow"
)

// CostTier buckets models by price per token.
type CostTier string

const (
	// CostLow marks the cheapest models.
	CostLow CostTier = "low"
	// CostMedium marks mid-priced models.
	CostMedium CostTier = "medium"
	// CostHigh marks premium models.
	CostHigh CostTier = "high"
)

// Entry describes one model's capability profile.
type Entry struct {
	// Model is the provider-qualified model identifier, e.g.
	// "openai/gpt-4o".
	Model string `yaml:"model" json:"model" validate:"required"`

	// Strengths tags the query categories the model handles well, e.g.
	// "code", "reasoning", "creative", "factual".
	Strengths []string `yaml:"strengths" json:"strengths" validate:"min=1,dive,min=1"`

	// Speed buckets the model's expected latency.
	Speed SpeedTier `yaml:"speed" json:"speed" validate:"required,oneof=fast medium slow"`

	// Cost buckets the model's price per token.
	Cost CostTier `yaml:"cost" json:"cost" validate:"required,oneof=low medium high"`

	// Description is a one-line summary shown to the oracle during
	// selection.
	Description string `yaml:"description" json:"description" validate:"max=500"`
}

// Catalog is an immutable set of capability entries.
type Catalog struct {
	entries []Entry
	byModel map[string]Entry
}

var validate = validator.New()

// New builds a catalog from entries, rejecting duplicates and invalid
// profiles.
func New(entries []Entry) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog requires at least one entry")
	}

	byModel := make(map[string]Entry, len(entries))
	for i, entry := range entries {
		if err := validate.Struct(entry); err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i, entry.Model, err)
		}
		if _, dup := byModel[entry.Model]; dup {
			return nil, fmt.Errorf("duplicate catalog entry for model %s", entry.Model)
		}
		byModel[entry.Model] = entry
	}

	return &Catalog{
		entries: append([]Entry(nil), entries...),
		byModel: byModel,
	}, nil
}

// catalogFile is the YAML document shape for a persisted catalog.
type catalogFile struct {
	Models []Entry `yaml:"models"`
}

// Parse decodes a YAML catalog document. Unknown fields are rejected.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return New(file.Models)
}

// Load reads and parses a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	return Parse(data)
}

// Entries returns a copy of every entry in registration order.
func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Lookup returns the entry for a model, if present.
func (c *Catalog) Lookup(model string) (Entry, bool) {
	entry, ok := c.byModel[model]
	return entry, ok
}

// Models returns the model identifiers in registration order.
func (c *Catalog) Models() []string {
	models := make([]string, len(c.entries))
	for i, entry := range c.entries {
		models[i] = entry.Model
	}
	return models
}

// WithStrength returns the entries tagged with the given strength.
func (c *Catalog) WithStrength(strength string) []Entry {
	var matched []Entry
	for _, entry := range c.entries {
		for _, s := range entry.Strengths {
			if s == strength {
				matched = append(matched, entry)
				break
			}
		}
	}
	return matched
}

// Default returns the built-in capability table covering the three
// supported providers.
func Default() *Catalog {
	catalog, err := New([]Entry{
		{
			Model:       "openai/gpt-4o",
			Strengths:   []string{"reasoning", "code", "factual"},
			Speed:       SpeedMedium,
			Cost:        CostHigh,
			Description: "strong general reasoning and code generation",
		},
		{
			Model:       "openai/gpt-4o-mini",
			Strengths:   []string{"factual", "summarization"},
			Speed:       SpeedFast,
			Cost:        CostLow,
			Description: "fast and cheap for factual lookups and summaries",
		},
		{
			Model:       "anthropic/claude-3-5-sonnet-20241022",
			Strengths:   []string{"reasoning", "creative", "code"},
			Speed:       SpeedMedium,
			Cost:        CostMedium,
			Description: "balanced writing quality and analytical depth",
		},
		{
			Model:       "google/gemini-2.0-flash",
			Strengths:   []string{"factual", "summarization", "multilingual"},
			Speed:       SpeedFast,
			Cost:        CostLow,
			Description: "low latency with broad language coverage",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("invalid built-in catalog: %v", err))
	}
	return catalog
}
