package application

import (
	"fmt"

	"github.com/arbiterlabs/fuseval/infrastructure/analyzers"
	"github.com/arbiterlabs/fuseval/internal/ports"
)

// The From-config constructors build each analysis unit with its default
// configuration and apply any parameter override from the configuration.
// Overrides go through the unit's own strict YAML schema, so typos and
// out-of-range values are rejected at construction time.

// NewBasicMetricsFromConfig builds the basic metrics unit.
func NewBasicMetricsFromConfig(cfg *AnalyzerConfig) (*analyzers.BasicMetricsUnit, error) {
	unit, err := analyzers.NewBasicMetricsUnit(UnitTypeBasicMetrics, analyzers.DefaultBasicMetricsConfig())
	if err != nil {
		return nil, err
	}
	if params, ok := cfg.ParametersFor(UnitTypeBasicMetrics); ok {
		if unit, err = unit.UnmarshalParameters(params); err != nil {
			return nil, fmt.Errorf("%s parameters: %w", UnitTypeBasicMetrics, err)
		}
	}
	return unit, nil
}

// NewComparativeScorerFromConfig builds the comparative scoring unit.
func NewComparativeScorerFromConfig(oracle ports.ScoringOracle, cfg *AnalyzerConfig) (*analyzers.ComparativeScorerUnit, error) {
	unit, err := analyzers.NewComparativeScorerUnit(UnitTypeComparativeScorer, oracle, analyzers.DefaultComparativeScorerConfig())
	if err != nil {
		return nil, err
	}
	if params, ok := cfg.ParametersFor(UnitTypeComparativeScorer); ok {
		if unit, err = unit.UnmarshalParameters(params); err != nil {
			return nil, fmt.Errorf("%s parameters: %w", UnitTypeComparativeScorer, err)
		}
	}
	return unit, nil
}

// NewDimensionalEvaluatorFromConfig builds the dimensional evaluation unit.
func NewDimensionalEvaluatorFromConfig(oracle ports.ScoringOracle, cfg *AnalyzerConfig) (*analyzers.DimensionalEvaluatorUnit, error) {
	unit, err := analyzers.NewDimensionalEvaluatorUnit(UnitTypeDimensionalEvaluator, oracle, analyzers.DefaultDimensionalEvaluatorConfig())
	if err != nil {
		return nil, err
	}
	if params, ok := cfg.ParametersFor(UnitTypeDimensionalEvaluator); ok {
		if unit, err = unit.UnmarshalParameters(params); err != nil {
			return nil, fmt.Errorf("%s parameters: %w", UnitTypeDimensionalEvaluator, err)
		}
	}
	return unit, nil
}

// NewContentAnalyzerFromConfig builds the content differentiation unit.
func NewContentAnalyzerFromConfig(oracle ports.ScoringOracle, cfg *AnalyzerConfig) (*analyzers.ContentAnalyzerUnit, error) {
	unit, err := analyzers.NewContentAnalyzerUnit(UnitTypeContentAnalyzer, oracle, analyzers.DefaultContentAnalyzerConfig())
	if err != nil {
		return nil, err
	}
	if params, ok := cfg.ParametersFor(UnitTypeContentAnalyzer); ok {
		if unit, err = unit.UnmarshalParameters(params); err != nil {
			return nil, fmt.Errorf("%s parameters: %w", UnitTypeContentAnalyzer, err)
		}
	}
	return unit, nil
}

// NewConsistencyValidatorFromConfig builds the consistency validation unit.
func NewConsistencyValidatorFromConfig(cfg *AnalyzerConfig) (*analyzers.ConsistencyValidatorUnit, error) {
	unit, err := analyzers.NewConsistencyValidatorUnit(UnitTypeConsistencyValidator, analyzers.DefaultConsistencyValidatorConfig())
	if err != nil {
		return nil, err
	}
	if params, ok := cfg.ParametersFor(UnitTypeConsistencyValidator); ok {
		if unit, err = unit.UnmarshalParameters(params); err != nil {
			return nil, fmt.Errorf("%s parameters: %w", UnitTypeConsistencyValidator, err)
		}
	}
	return unit, nil
}

// NewFusionEffectivenessFromConfig builds the fusion value unit.
func NewFusionEffectivenessFromConfig(cfg *AnalyzerConfig) (*analyzers.FusionEffectivenessUnit, error) {
	unit, err := analyzers.NewFusionEffectivenessUnit(UnitTypeFusionEffectiveness, analyzers.DefaultFusionEffectivenessConfig())
	if err != nil {
		return nil, err
	}
	if params, ok := cfg.ParametersFor(UnitTypeFusionEffectiveness); ok {
		if unit, err = unit.UnmarshalParameters(params); err != nil {
			return nil, fmt.Errorf("%s parameters: %w", UnitTypeFusionEffectiveness, err)
		}
	}
	return unit, nil
}

// NewSpeedQualityFromConfig builds the speed versus quality unit.
func NewSpeedQualityFromConfig(cfg *AnalyzerConfig) (*analyzers.SpeedQualityUnit, error) {
	unit, err := analyzers.NewSpeedQualityUnit(UnitTypeSpeedQuality, analyzers.DefaultSpeedQualityConfig())
	if err != nil {
		return nil, err
	}
	if params, ok := cfg.ParametersFor(UnitTypeSpeedQuality); ok {
		if unit, err = unit.UnmarshalParameters(params); err != nil {
			return nil, fmt.Errorf("%s parameters: %w", UnitTypeSpeedQuality, err)
		}
	}
	return unit, nil
}
