package analyzers

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/arbiterlabs/fuseval/internal/domain"
	"github.com/arbiterlabs/fuseval/internal/ports"
)

var _ ports.Unit = (*ConsistencyValidatorUnit)(nil)

// dimensionKeywords map narrative phrasing to the dimension it implies,
// covering both the Chinese vocabulary of the original prompts and
// English equivalents.
var dimensionKeywords = map[string][]string{
	domain.DimensionAccuracy:     {"准确", "accurate", "accuracy", "correct", "precise"},
	domain.DimensionCompleteness: {"完整", "complete", "comprehensive", "thorough", "coverage"},
	domain.DimensionClarity:      {"清晰", "clear", "clarity", "readable", "well-organized"},
	domain.DimensionRelevance:    {"相关", "relevant", "relevance", "on-topic", "targeted"},
}

// ConsistencyValidatorUnit cross-checks every signal produced upstream:
// overall scores against dimension averages, score spread across the
// field, the fused answer against the candidates, and the narrative
// profiles against the numbers they should reflect. Critical issues may
// carry corrections, which the unit applies to the quality metrics in
// state.
//
// The unit is deterministic, stateless, and thread-safe.
type ConsistencyValidatorUnit struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config ConsistencyValidatorConfig
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// ConsistencyValidatorConfig defines the thresholds for every consistency
// check. All fields are validated during unit creation and parameter
// unmarshaling.
type ConsistencyValidatorConfig struct {
	// DivergenceThreshold flags answers whose overall score strays from
	// their dimension average by more than this.
	DivergenceThreshold float64 `yaml:"divergence_threshold" json:"divergence_threshold" validate:"min=0,max=10"`

	// ExtremeHigh and ExtremeLow flag implausible dimension scores.
	ExtremeHigh float64 `yaml:"extreme_high" json:"extreme_high" validate:"min=0,max=10"`
	ExtremeLow  float64 `yaml:"extreme_low" json:"extreme_low" validate:"min=0,max=10"`

	// HomogeneityMaxDistinct flags the batch when more than two answers
	// share this few distinct overall scores.
	HomogeneityMaxDistinct int `yaml:"homogeneity_max_distinct" json:"homogeneity_max_distinct" validate:"min=1,max=10"`

	// FusionUnderperformMargin flags the fused answer scoring this far
	// below the candidate average.
	FusionUnderperformMargin float64 `yaml:"fusion_underperform_margin" json:"fusion_underperform_margin" validate:"min=0,max=10"`

	// FusionOverperformMargin flags the fused answer scoring this far
	// above the best candidate.
	FusionOverperformMargin float64 `yaml:"fusion_overperform_margin" json:"fusion_overperform_margin" validate:"min=0,max=10"`

	// StrengthSimilarityThreshold is the narrative similarity above which
	// two strength lists are considered duplicated.
	StrengthSimilarityThreshold float64 `yaml:"strength_similarity_threshold" json:"strength_similarity_threshold" validate:"min=0,max=1"`

	// StrengthPairShare is the fraction of similar pairs that flags the
	// whole profile set as homogeneous.
	StrengthPairShare float64 `yaml:"strength_pair_share" json:"strength_pair_share" validate:"min=0,max=1"`

	// StrengthDimensionMin flags strengths praising a dimension scored
	// below this value.
	StrengthDimensionMin float64 `yaml:"strength_dimension_min" json:"strength_dimension_min" validate:"min=0,max=10"`

	// Uniqueness/score mismatch bounds.
	UniquenessHigh float64 `yaml:"uniqueness_high" json:"uniqueness_high" validate:"min=0,max=1"`
	UniquenessLow  float64 `yaml:"uniqueness_low" json:"uniqueness_low" validate:"min=0,max=1"`
	LowOverall     float64 `yaml:"low_overall" json:"low_overall" validate:"min=0,max=10"`
	HighOverall    float64 `yaml:"high_overall" json:"high_overall" validate:"min=0,max=10"`
}

// DefaultConsistencyValidatorConfig returns a ConsistencyValidatorConfig
// with sensible defaults.
func DefaultConsistencyValidatorConfig() ConsistencyValidatorConfig {
	return ConsistencyValidatorConfig{
		DivergenceThreshold:         1.5,
		ExtremeHigh:                 9.5,
		ExtremeLow:                  1.0,
		HomogeneityMaxDistinct:      2,
		FusionUnderperformMargin:    1.0,
		FusionOverperformMargin:     1.0,
		StrengthSimilarityThreshold: 0.7,
		StrengthPairShare:           0.7,
		StrengthDimensionMin:        7.0,
		UniquenessHigh:              0.4,
		UniquenessLow:               0.1,
		LowOverall:                  6.0,
		HighOverall:                 8.5,
	}
}

// NewConsistencyValidatorUnit creates a new ConsistencyValidatorUnit with
// the specified configuration. Returns an error if configuration
// validation fails.
func NewConsistencyValidatorUnit(name string, config ConsistencyValidatorConfig) (*ConsistencyValidatorUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &ConsistencyValidatorUnit{
		name:   name,
		config: config,
		tracer: otel.Tracer("consistency-validator-unit"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (cvu *ConsistencyValidatorUnit) Name() string { return cvu.name }

// Execute runs every consistency check, applies corrections to the
// quality metrics, and stores the report in state.
func (cvu *ConsistencyValidatorUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := cvu.tracer.Start(ctx, "ConsistencyValidatorUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "consistency_validator"),
			attribute.String("unit.id", cvu.name),
		),
	)
	defer span.End()

	start := time.Now()

	candidates, ok := domain.Get(state, domain.KeyCandidates)
	if !ok || len(candidates) == 0 {
		span.RecordError(ErrMissingCandidates)
		return state, fmt.Errorf("unit %s: %w", cvu.name, ErrMissingCandidates)
	}

	metrics, ok := domain.Get(state, domain.KeyQualityMetrics)
	if !ok {
		span.RecordError(ErrMissingScores)
		return state, fmt.Errorf("unit %s: quality metrics must run first: %w", cvu.name, ErrMissingScores)
	}

	report := &domain.ConsistencyReport{}

	// Per-answer checks: overall/dimension divergence and extreme
	// dimension values. The fused answer is checked like any other.
	ids := make([]string, 0, len(metrics))
	for id := range metrics {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		m := metrics[id]
		dimAvg := m.Dimensions.Average()

		if math.Abs(m.Overall-dimAvg) > cvu.config.DivergenceThreshold {
			// Replacing the overall with the dimension mean zeroes the
			// divergence, so a second validation pass finds nothing.
			corrected := dimAvg
			report.Issues = append(report.Issues, domain.ConsistencyIssue{
				Severity:    domain.SeverityCritical,
				Category:    domain.IssueOverallDimensionDivergence,
				CandidateID: id,
				Message: fmt.Sprintf("overall %.1f diverges from dimension average %.1f by more than %.1f",
					m.Overall, dimAvg, cvu.config.DivergenceThreshold),
			})
			report.Corrections = append(report.Corrections, domain.ScoreCorrection{
				CandidateID: id,
				Original:    m.Overall,
				Corrected:   corrected,
				Reason:      "overall replaced with dimension average",
			})
			m.Overall = corrected
			metrics[id] = m
		}

		for dim, score := range m.Dimensions.Map() {
			if score > cvu.config.ExtremeHigh || score < cvu.config.ExtremeLow {
				report.Issues = append(report.Issues, domain.ConsistencyIssue{
					Severity:    domain.SeverityWarning,
					Category:    domain.IssueExtremeDimension,
					CandidateID: id,
					Message:     fmt.Sprintf("%s score %.1f is implausibly extreme", dim, score),
				})
			}
		}
	}

	cvu.checkHomogeneity(report, candidates, metrics)
	cvu.checkFusion(state, report, candidates, metrics)

	if analysis, ok := domain.Get(state, domain.KeyContentAnalysis); ok && analysis != nil {
		cvu.checkNarratives(report, candidates, metrics, analysis)
		cvu.checkUniqueness(report, candidates, metrics, analysis)
	}

	// Critical issues first, stable within severity.
	sort.SliceStable(report.Issues, func(i, j int) bool {
		return report.Issues[i].Severity == domain.SeverityCritical &&
			report.Issues[j].Severity != domain.SeverityCritical
	})

	report.IsConsistent = true
	for _, issue := range report.Issues {
		if issue.Severity == domain.SeverityCritical {
			report.IsConsistent = false
			break
		}
	}

	span.SetAttributes(
		attribute.Int("consistency.issues", len(report.Issues)),
		attribute.Int("consistency.corrections", len(report.Corrections)),
		attribute.Bool("consistency.consistent", report.IsConsistent),
		attribute.Int64("consistency.latency_ms", time.Since(start).Milliseconds()),
	)

	state = domain.With(state, domain.KeyQualityMetrics, metrics)
	return domain.With(state, domain.KeyConsistency, report), nil
}

// checkHomogeneity flags suspiciously clustered candidate scores.
func (cvu *ConsistencyValidatorUnit) checkHomogeneity(report *domain.ConsistencyReport, candidates []domain.Candidate, metrics map[string]domain.QualityMetrics) {
	if len(candidates) <= 2 {
		return
	}

	distinct := make(map[float64]struct{}, len(candidates))
	for _, c := range candidates {
		if m, ok := metrics[c.ID]; ok {
			distinct[math.Round(m.Overall*10)/10] = struct{}{}
		}
	}

	if len(distinct) <= cvu.config.HomogeneityMaxDistinct {
		report.Issues = append(report.Issues, domain.ConsistencyIssue{
			Severity: domain.SeverityCritical,
			Category: domain.IssueHomogeneousScores,
			Message: fmt.Sprintf("%d candidates share only %d distinct overall scores",
				len(candidates), len(distinct)),
		})
	}
}

// checkFusion compares the fused answer against the candidate field.
func (cvu *ConsistencyValidatorUnit) checkFusion(state domain.State, report *domain.ConsistencyReport, candidates []domain.Candidate, metrics map[string]domain.QualityMetrics) {
	fused, ok := domain.Get(state, domain.KeyFused)
	if !ok || fused == nil {
		return
	}
	fusedMetrics, ok := metrics[fused.ID]
	if !ok {
		return
	}

	var sum, max float64
	counted := 0
	for _, c := range candidates {
		if m, ok := metrics[c.ID]; ok {
			sum += m.Overall
			if m.Overall > max {
				max = m.Overall
			}
			counted++
		}
	}
	if counted == 0 {
		return
	}
	avg := sum / float64(counted)

	if fusedMetrics.Overall < avg-cvu.config.FusionUnderperformMargin {
		report.Issues = append(report.Issues, domain.ConsistencyIssue{
			Severity:    domain.SeverityCritical,
			Category:    domain.IssueFusionUnderperformance,
			CandidateID: fused.ID,
			Message: fmt.Sprintf("fused answer %.1f scores well below the candidate average %.1f",
				fusedMetrics.Overall, avg),
		})
	}
	if fusedMetrics.Overall > max+cvu.config.FusionOverperformMargin {
		report.Issues = append(report.Issues, domain.ConsistencyIssue{
			Severity:    domain.SeverityWarning,
			Category:    domain.IssueFusionOverperformance,
			CandidateID: fused.ID,
			Message: fmt.Sprintf("fused answer %.1f scores implausibly above the best candidate %.1f",
				fusedMetrics.Overall, max),
		})
	}
}

// checkNarratives validates the oracle's narrative profiles against each
// other and against the dimension scores.
func (cvu *ConsistencyValidatorUnit) checkNarratives(report *domain.ConsistencyReport, candidates []domain.Candidate, metrics map[string]domain.QualityMetrics, analysis *domain.ContentAnalysis) {
	if len(analysis.Profiles) == 0 {
		return
	}

	// Duplicated advantage narratives across candidates defeat the point
	// of differentiation.
	type profiled struct {
		id        string
		strengths string
	}
	var ps []profiled
	for _, c := range candidates {
		if p, ok := analysis.Profiles[c.ID]; ok && p.ComparativeAdvantage != "" {
			ps = append(ps, profiled{id: c.ID, strengths: p.ComparativeAdvantage})
		}
	}

	if len(ps) >= 2 {
		similarPairs, totalPairs := 0, 0
		for i := 0; i < len(ps); i++ {
			for j := i + 1; j < len(ps); j++ {
				totalPairs++
				if narrativeSimilarity(ps[i].strengths, ps[j].strengths) > cvu.config.StrengthSimilarityThreshold {
					similarPairs++
				}
			}
		}
		if float64(similarPairs)/float64(totalPairs) > cvu.config.StrengthPairShare {
			report.Issues = append(report.Issues, domain.ConsistencyIssue{
				Severity: domain.SeverityCritical,
				Category: domain.IssueHomogeneousStrengths,
				Message: fmt.Sprintf("%d of %d advantage pairs are near-duplicates",
					similarPairs, totalPairs),
			})
		}
	}

	// An advantage praising a dimension the numbers reject is a
	// contradiction.
	for _, c := range candidates {
		p, ok := analysis.Profiles[c.ID]
		if !ok || p.ComparativeAdvantage == "" {
			continue
		}
		m, ok := metrics[c.ID]
		if !ok {
			continue
		}
		dims := m.Dimensions.Map()

		folded := foldCaser.String(p.ComparativeAdvantage)
		for dim, keywords := range dimensionKeywords {
			if dims[dim] >= cvu.config.StrengthDimensionMin {
				continue
			}
			for _, kw := range keywords {
				if strings.Contains(folded, kw) {
					report.Issues = append(report.Issues, domain.ConsistencyIssue{
						Severity:    domain.SeverityWarning,
						Category:    domain.IssueStrengthScoreMismatch,
						CandidateID: c.ID,
						Message: fmt.Sprintf("advantage %q praises %s but the dimension scored %.1f",
							p.ComparativeAdvantage, dim, dims[dim]),
					})
					break
				}
			}
		}
	}
}

// checkUniqueness validates uniqueness ratios against overall scores.
func (cvu *ConsistencyValidatorUnit) checkUniqueness(report *domain.ConsistencyReport, candidates []domain.Candidate, metrics map[string]domain.QualityMetrics, analysis *domain.ContentAnalysis) {
	for _, c := range candidates {
		uniq, ok := analysis.Uniqueness[c.ID]
		if !ok {
			continue
		}
		m, ok := metrics[c.ID]
		if !ok {
			continue
		}

		if uniq > cvu.config.UniquenessHigh && m.Overall < cvu.config.LowOverall {
			report.Issues = append(report.Issues, domain.ConsistencyIssue{
				Severity:    domain.SeverityWarning,
				Category:    domain.IssueUniquenessScoreMismatch,
				CandidateID: c.ID,
				Message: fmt.Sprintf("highly unique content (%.2f) scored only %.1f overall",
					uniq, m.Overall),
			})
		}
		if uniq < cvu.config.UniquenessLow && m.Overall > cvu.config.HighOverall {
			report.Issues = append(report.Issues, domain.ConsistencyIssue{
				Severity:    domain.SeverityWarning,
				Category:    domain.IssueUniquenessScoreMismatch,
				CandidateID: c.ID,
				Message: fmt.Sprintf("largely redundant content (%.2f) scored %.1f overall",
					uniq, m.Overall),
			})
		}
	}
}

// narrativeSimilarity combines token overlap with normalized edit
// similarity so both reordered and lightly paraphrased duplicates are
// caught.
func narrativeSimilarity(a, b string) float64 {
	overlap := jaccard(tokenSet(a), tokenSet(b))

	fa, fb := foldCaser.String(a), foldCaser.String(b)
	maxLen := utf8.RuneCountInString(fa)
	if n := utf8.RuneCountInString(fb); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1.0
	}
	edit := 1.0 - float64(levenshtein.ComputeDistance(fa, fb))/float64(maxLen)
	if edit < 0 {
		edit = 0
	}

	if edit > overlap {
		return edit
	}
	return overlap
}

// Validate checks if the unit is properly configured and ready for execution.
func (cvu *ConsistencyValidatorUnit) Validate() error {
	if err := validate.Struct(cvu.config); err != nil {
		return fmt.Errorf("unit %s: configuration validation failed: %w", cvu.name, err)
	}
	if cvu.config.ExtremeLow >= cvu.config.ExtremeHigh {
		return fmt.Errorf("unit %s: extreme_low must be below extreme_high", cvu.name)
	}
	return nil
}

// UnmarshalParameters deserializes YAML configuration parameters and
// returns a new ConsistencyValidatorUnit instance to maintain
// thread-safety.
func (cvu *ConsistencyValidatorUnit) UnmarshalParameters(params yaml.Node) (*ConsistencyValidatorUnit, error) {
	config := DefaultConsistencyValidatorConfig()

	if err := decodeStrictParams(&params, &config); err != nil {
		return nil, err
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("parameter validation failed: %w", err)
	}

	return &ConsistencyValidatorUnit{
		name:   cvu.name,
		config: config,
		tracer: cvu.tracer,
	}, nil
}
