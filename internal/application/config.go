// Package application wires the analysis units into the fixed evaluation
// topology and exposes the Analyzer, the single entry point for scoring a
// batch of candidate answers and their fused synthesis.
package application

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Unit type identifiers accepted in configuration.
const (
	UnitTypeBasicMetrics         = "basic_metrics"
	UnitTypeComparativeScorer    = "comparative_scorer"
	UnitTypeDimensionalEvaluator = "dimensional_evaluator"
	UnitTypeContentAnalyzer      = "content_analyzer"
	UnitTypeConsistencyValidator = "consistency_validator"
	UnitTypeRanking              = "ranking"
	UnitTypeFusionEffectiveness  = "fusion_effectiveness"
	UnitTypeSpeedQuality         = "speed_quality"
)

// validate is the package-level validator instance with the custom
// configuration validators registered.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := RegisterConfigValidators(v); err != nil {
		panic(fmt.Sprintf("failed to register config validators: %v", err))
	}
	return v
}

// AnalyzerConfig is the top-level configuration for an analysis run.
// It tunes the individual units; the execution topology itself is fixed
// and not configurable.
type AnalyzerConfig struct {
	// Version specifies the configuration schema version using semantic
	// versioning to ensure compatibility across updates.
	Version string `yaml:"version" validate:"required,semver"`

	// Metadata contains descriptive information about this configuration
	// for organization and discovery.
	Metadata Metadata `yaml:"metadata"`

	// Units carries per-unit parameter overrides. Units without an entry
	// run with their defaults; listing a unit type twice is an error.
	Units []UnitConfig `yaml:"units" validate:"dive"`
}

// Metadata provides descriptive information about an analyzer
// configuration.
type Metadata struct {
	// Name is the human-readable identifier for this configuration.
	Name string `yaml:"name" validate:"max=255"`

	// Description explains the configuration's intent.
	Description string `yaml:"description" validate:"max=1000"`

	// Tags are categorical labels for filtering and grouping.
	Tags []string `yaml:"tags" validate:"max=20,dive,min=1,max=50"`

	// Labels are arbitrary key-value pairs for external integration.
	Labels map[string]string `yaml:"labels" validate:"max=50"`
}

// UnitConfig overrides the parameters of one analysis unit.
type UnitConfig struct {
	// Type names the unit the parameters apply to.
	Type string `yaml:"type" validate:"required,unitname,oneof=basic_metrics comparative_scorer dimensional_evaluator content_analyzer consistency_validator ranking fusion_effectiveness speed_quality"`

	// Parameters contains type-specific configuration as flexible YAML,
	// validated strictly against the unit's own schema.
	Parameters yaml.Node `yaml:"parameters"`
}

// DefaultAnalyzerConfig returns an AnalyzerConfig that runs every unit
// with its defaults.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		Version: "1.0.0",
		Metadata: Metadata{
			Name: "default",
		},
	}
}

// ParseAnalyzerConfig decodes and validates YAML configuration bytes.
// Unknown fields are rejected.
func ParseAnalyzerConfig(data []byte) (*AnalyzerConfig, error) {
	var config AnalyzerConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	seen := make(map[string]struct{}, len(config.Units))
	for _, u := range config.Units {
		if _, dup := seen[u.Type]; dup {
			return nil, fmt.Errorf("unit type %s configured more than once", u.Type)
		}
		seen[u.Type] = struct{}{}
	}

	return &config, nil
}

// LoadAnalyzerConfig reads and parses a configuration file.
func LoadAnalyzerConfig(path string) (*AnalyzerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}
	return ParseAnalyzerConfig(data)
}

// ParametersFor returns the parameter node for a unit type, if present.
func (c *AnalyzerConfig) ParametersFor(unitType string) (yaml.Node, bool) {
	for _, u := range c.Units {
		if u.Type == unitType {
			return u.Parameters, true
		}
	}
	return yaml.Node{}, false
}
