package analyzers

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/arbiterlabs/fuseval/internal/domain"
	"github.com/arbiterlabs/fuseval/internal/ports"
)

var _ ports.Unit = (*FusionEffectivenessUnit)(nil)

// FusionEffectivenessUnit measures whether fusing the candidates was worth
// it. The 0-100 value score combines four components: quality lead over
// the candidate average (40), novel integration additions (30), holding
// up against the best single candidate (15), and per-dimension
// comprehensiveness gains (15).
//
// The unit is deterministic, stateless, and thread-safe.
type FusionEffectivenessUnit struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config FusionEffectivenessConfig
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// FusionEffectivenessConfig defines the scoring bands for the fusion
// value components. All fields are validated during unit creation and
// parameter unmarshaling.
type FusionEffectivenessConfig struct {
	// Quality component bands: the vs-average deltas earning 40, 30, and
	// 20 points respectively. Anything below the lowest band earns 10.
	QualityHighDelta float64 `yaml:"quality_high_delta" json:"quality_high_delta" validate:"min=0,max=10"`
	QualityMidDelta  float64 `yaml:"quality_mid_delta" json:"quality_mid_delta" validate:"min=0,max=10"`
	QualityLowDelta  float64 `yaml:"quality_low_delta" json:"quality_low_delta" validate:"min=0,max=10"`

	// ConsistencyPenaltyDelta is the vs-max deficit below which the
	// consistency component drops to zero. A merely negative vs-max
	// earns partial credit.
	ConsistencyPenaltyDelta float64 `yaml:"consistency_penalty_delta" json:"consistency_penalty_delta" validate:"max=0"`

	// PerDimensionPoints is awarded for each dimension where the fused
	// answer beats the candidate average.
	PerDimensionPoints float64 `yaml:"per_dimension_points" json:"per_dimension_points" validate:"min=0,max=15"`
}

// DefaultFusionEffectivenessConfig returns a FusionEffectivenessConfig
// with sensible defaults.
func DefaultFusionEffectivenessConfig() FusionEffectivenessConfig {
	return FusionEffectivenessConfig{
		QualityHighDelta:        1.0,
		QualityMidDelta:         0.5,
		QualityLowDelta:         0.2,
		ConsistencyPenaltyDelta: -0.5,
		PerDimensionPoints:      3.75,
	}
}

// NewFusionEffectivenessUnit creates a new FusionEffectivenessUnit with
// the specified configuration. Returns an error if configuration
// validation fails.
func NewFusionEffectivenessUnit(name string, config FusionEffectivenessConfig) (*FusionEffectivenessUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &FusionEffectivenessUnit{
		name:   name,
		config: config,
		tracer: otel.Tracer("fusion-effectiveness-unit"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (feu *FusionEffectivenessUnit) Name() string { return feu.name }

// Execute builds the fusion report from quality metrics and content
// analysis in state. Without a fused answer the unit is a no-op.
func (feu *FusionEffectivenessUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := feu.tracer.Start(ctx, "FusionEffectivenessUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "fusion_effectiveness"),
			attribute.String("unit.id", feu.name),
		),
	)
	defer span.End()

	start := time.Now()

	fused, ok := domain.Get(state, domain.KeyFused)
	if !ok || fused == nil {
		span.SetAttributes(attribute.Bool("fusion.skipped", true))
		return state, nil
	}

	candidates, ok := domain.Get(state, domain.KeyCandidates)
	if !ok || len(candidates) == 0 {
		span.RecordError(ErrMissingCandidates)
		return state, fmt.Errorf("unit %s: %w", feu.name, ErrMissingCandidates)
	}

	metrics, ok := domain.Get(state, domain.KeyQualityMetrics)
	if !ok {
		span.RecordError(ErrMissingScores)
		return state, fmt.Errorf("unit %s: quality metrics must run first: %w", feu.name, ErrMissingScores)
	}

	fusedMetrics, ok := metrics[fused.ID]
	if !ok {
		return state, fmt.Errorf("unit %s: no quality metrics for fused answer %s", feu.name, fused.ID)
	}

	// Candidate aggregates.
	var sum, max float64
	dimSums := make(map[string]float64, 4)
	counted := 0
	for _, c := range candidates {
		m, ok := metrics[c.ID]
		if !ok {
			continue
		}
		sum += m.Overall
		if m.Overall > max {
			max = m.Overall
		}
		for dim, score := range m.Dimensions.Map() {
			dimSums[dim] += score
		}
		counted++
	}
	if counted == 0 {
		return state, fmt.Errorf("unit %s: no scored candidates to compare against", feu.name)
	}
	avg := sum / float64(counted)

	report := &domain.FusionReport{
		VsAverage:      fusedMetrics.Overall - avg,
		VsMax:          fusedMetrics.Overall - max,
		DimensionGains: make(map[string]float64, 4),
	}

	fusedDims := fusedMetrics.Dimensions.Map()
	positiveDims := 0
	for dim, fusedScore := range fusedDims {
		gain := fusedScore - dimSums[dim]/float64(counted)
		report.DimensionGains[dim] = gain
		if gain > 0 {
			positiveDims++
		}
	}

	additions := countAdditions(fused.Content, candidates)
	report.IntegrationAdditions = additions

	report.Breakdown = domain.FusionScoreBreakdown{
		Quality:           feu.qualityPoints(report.VsAverage),
		Integration:       integrationPoints(additions),
		Consistency:       feu.consistencyPoints(report.VsMax),
		Comprehensiveness: feu.config.PerDimensionPoints * float64(positiveDims),
	}
	report.ValueScore = report.Breakdown.Quality +
		report.Breakdown.Integration +
		report.Breakdown.Consistency +
		report.Breakdown.Comprehensiveness

	report.Significance = feu.significance(report.VsAverage)
	report.Level = fusionLevel(report.ValueScore)
	report.Recommendations = fusionRecommendations(report.DimensionGains)
	report.Summary = fusionSummary(report)

	span.SetAttributes(
		attribute.Float64("fusion.value_score", report.ValueScore),
		attribute.String("fusion.level", report.Level),
		attribute.Int64("fusion.latency_ms", time.Since(start).Milliseconds()),
		attribute.Bool("no_oracle_cost", true),
	)

	return domain.With(state, domain.KeyFusionReport, report), nil
}

// countAdditions counts fused sentences carrying at least one token no
// candidate mentions. This approximates how much genuinely new material
// the fusion step contributed.
func countAdditions(fusedContent string, candidates []domain.Candidate) int {
	candidateTokens := make(map[string]struct{})
	for _, c := range candidates {
		for tok := range tokenSet(c.Content) {
			candidateTokens[tok] = struct{}{}
		}
	}

	additions := 0
	for _, sentence := range splitSentences(fusedContent) {
		for tok := range tokenSet(sentence) {
			if _, known := candidateTokens[tok]; !known {
				additions++
				break
			}
		}
	}
	return additions
}

// qualityPoints maps the vs-average delta onto the 40-point quality band.
// A fused answer at or below the candidate average earns nothing.
func (feu *FusionEffectivenessUnit) qualityPoints(vsAvg float64) float64 {
	switch {
	case vsAvg > feu.config.QualityHighDelta:
		return 40
	case vsAvg > feu.config.QualityMidDelta:
		return 30
	case vsAvg > feu.config.QualityLowDelta:
		return 20
	case vsAvg > 0:
		return 10
	default:
		return 0
	}
}

// integrationPoints maps novel additions onto the 30-point band.
func integrationPoints(additions int) float64 {
	switch {
	case additions >= 3:
		return 30
	case additions >= 2:
		return 20
	case additions >= 1:
		return 10
	default:
		return 0
	}
}

// consistencyPoints awards full credit unless the fused answer trails the
// best candidate.
func (feu *FusionEffectivenessUnit) consistencyPoints(vsMax float64) float64 {
	switch {
	case vsMax >= 0:
		return 15
	case vsMax >= feu.config.ConsistencyPenaltyDelta:
		return 10
	default:
		return 0
	}
}

// fusionRecommendations suggests a fix for every dimension where the
// fused answer lost ground against the candidate average.
func fusionRecommendations(gains map[string]float64) []string {
	var recs []string
	for _, dim := range sortedDimensions(gains) {
		if gains[dim] < 0 {
			recs = append(recs, fmt.Sprintf(
				"fusion lost %.1f on %s; re-check which source answers feed that dimension",
				-gains[dim], dim))
		}
	}
	return recs
}

// fusionSummary states the outcome in one sentence, citing the most
// improved dimension when one exists.
func fusionSummary(report *domain.FusionReport) string {
	bestDim, bestGain := "", 0.0
	for _, dim := range sortedDimensions(report.DimensionGains) {
		if g := report.DimensionGains[dim]; g > bestGain {
			bestDim, bestGain = dim, g
		}
	}
	if bestDim == "" {
		return fmt.Sprintf("fusion value is %s (%.0f/100); no dimension improved over the candidate average",
			report.Level, report.ValueScore)
	}
	return fmt.Sprintf("fusion value is %s (%.0f/100), improving most on %s (+%.1f)",
		report.Level, report.ValueScore, bestDim, bestGain)
}

// sortedDimensions returns the gain map's keys in stable order.
func sortedDimensions(gains map[string]float64) []string {
	dims := make([]string, 0, len(gains))
	for dim := range gains {
		dims = append(dims, dim)
	}
	sort.Strings(dims)
	return dims
}

// significance tiers the vs-average delta.
func (feu *FusionEffectivenessUnit) significance(vsAvg float64) string {
	switch {
	case vsAvg > 1.0:
		return domain.SignificanceHighlySignificant
	case vsAvg > 0.5:
		return domain.SignificanceSignificant
	case vsAvg > 0.2:
		return domain.SignificanceModerate
	case vsAvg > -0.2:
		return domain.SignificanceComparable
	case vsAvg > -0.5:
		return domain.SignificanceSlightlyBelow
	default:
		return domain.SignificanceBelow
	}
}

// fusionLevel buckets the value score.
func fusionLevel(score float64) string {
	switch {
	case score >= 80:
		return domain.FusionLevelExceptional
	case score >= 60:
		return domain.FusionLevelHigh
	case score >= 40:
		return domain.FusionLevelModerate
	case score >= 20:
		return domain.FusionLevelLow
	default:
		return domain.FusionLevelMinimal
	}
}

// Validate checks if the unit is properly configured and ready for execution.
func (feu *FusionEffectivenessUnit) Validate() error {
	if err := validate.Struct(feu.config); err != nil {
		return fmt.Errorf("unit %s: configuration validation failed: %w", feu.name, err)
	}
	return nil
}

// UnmarshalParameters deserializes YAML configuration parameters and
// returns a new FusionEffectivenessUnit instance to maintain
// thread-safety.
func (feu *FusionEffectivenessUnit) UnmarshalParameters(params yaml.Node) (*FusionEffectivenessUnit, error) {
	config := DefaultFusionEffectivenessConfig()

	if err := decodeStrictParams(&params, &config); err != nil {
		return nil, err
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("parameter validation failed: %w", err)
	}

	return &FusionEffectivenessUnit{
		name:   feu.name,
		config: config,
		tracer: feu.tracer,
	}, nil
}
