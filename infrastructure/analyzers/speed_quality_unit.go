package analyzers

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/arbiterlabs/fuseval/internal/domain"
	"github.com/arbiterlabs/fuseval/internal/ports"
)

var _ ports.Unit = (*SpeedQualityUnit)(nil)

// SpeedQualityUnit relates each candidate's response time to its quality:
// efficiency ratios, fast/quality/balanced categories, and a rank
// similarity score between the fastest-first and best-first orderings.
// The fused answer is excluded since it has no generation time.
//
// The unit is deterministic, stateless, and thread-safe.
type SpeedQualityUnit struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config SpeedQualityConfig
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// SpeedQualityConfig defines the thresholds for tradeoff classification.
// All fields are validated during unit creation and parameter
// unmarshaling.
type SpeedQualityConfig struct {
	// FastFactor: a candidate is fast when its time is below this
	// fraction of the average.
	FastFactor float64 `yaml:"fast_factor" json:"fast_factor" validate:"gt=0,max=1"`

	// QualityFactor: a candidate is high quality when its score exceeds
	// this multiple of the average.
	QualityFactor float64 `yaml:"quality_factor" json:"quality_factor" validate:"min=1,max=5"`

	// PositiveCorrelation and NegativeCorrelation bound the rank
	// similarity buckets.
	PositiveCorrelation float64 `yaml:"positive_correlation" json:"positive_correlation" validate:"min=0,max=1"`
	NegativeCorrelation float64 `yaml:"negative_correlation" json:"negative_correlation" validate:"min=0,max=1"`

	// SlowTime and VerySlowTime (seconds) gate tradeoff recommendations.
	SlowTime     float64 `yaml:"slow_time" json:"slow_time" validate:"min=0"`
	VerySlowTime float64 `yaml:"very_slow_time" json:"very_slow_time" validate:"min=0"`

	// QualityLead and StrongQualityLead gate how much extra quality
	// justifies the extra wait.
	QualityLead       float64 `yaml:"quality_lead" json:"quality_lead" validate:"min=0,max=10"`
	StrongQualityLead float64 `yaml:"strong_quality_lead" json:"strong_quality_lead" validate:"min=0,max=10"`
}

// DefaultSpeedQualityConfig returns a SpeedQualityConfig with sensible
// defaults.
func DefaultSpeedQualityConfig() SpeedQualityConfig {
	return SpeedQualityConfig{
		FastFactor:          0.8,
		QualityFactor:       1.1,
		PositiveCorrelation: 0.6,
		NegativeCorrelation: 0.4,
		SlowTime:            3.0,
		VerySlowTime:        5.0,
		QualityLead:         1.0,
		StrongQualityLead:   2.0,
	}
}

// NewSpeedQualityUnit creates a new SpeedQualityUnit with the specified
// configuration. Returns an error if configuration validation fails.
func NewSpeedQualityUnit(name string, config SpeedQualityConfig) (*SpeedQualityUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &SpeedQualityUnit{
		name:   name,
		config: config,
		tracer: otel.Tracer("speed-quality-unit"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (squ *SpeedQualityUnit) Name() string { return squ.name }

// Execute builds the speed/quality report from the candidates and their
// quality metrics in state.
func (squ *SpeedQualityUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := squ.tracer.Start(ctx, "SpeedQualityUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "speed_quality"),
			attribute.String("unit.id", squ.name),
		),
	)
	defer span.End()

	start := time.Now()

	candidates, ok := domain.Get(state, domain.KeyCandidates)
	if !ok || len(candidates) == 0 {
		span.RecordError(ErrMissingCandidates)
		return state, fmt.Errorf("unit %s: %w", squ.name, ErrMissingCandidates)
	}

	metrics, ok := domain.Get(state, domain.KeyQualityMetrics)
	if !ok {
		span.RecordError(ErrMissingScores)
		return state, fmt.Errorf("unit %s: quality metrics must run first: %w", squ.name, ErrMissingScores)
	}

	var (
		timeSum, qualitySum float64
		counted             int
	)
	for _, c := range candidates {
		if m, ok := metrics[c.ID]; ok {
			timeSum += c.ResponseTime
			qualitySum += m.Overall
			counted++
		}
	}
	if counted == 0 {
		return state, fmt.Errorf("unit %s: no scored candidates", squ.name)
	}
	avgTime := timeSum / float64(counted)
	avgQuality := qualitySum / float64(counted)

	entries := make([]domain.SpeedQualityEntry, 0, counted)
	for _, c := range candidates {
		m, ok := metrics[c.ID]
		if !ok {
			continue
		}

		entry := domain.SpeedQualityEntry{
			CandidateID:  c.ID,
			Model:        c.Model,
			ResponseTime: c.ResponseTime,
			Quality:      m.Overall,
		}
		if c.ResponseTime > 0 {
			entry.Efficiency = m.Overall / c.ResponseTime
		}
		entry.Category = squ.categorize(c.ResponseTime, m.Overall, avgTime, avgQuality)
		entries = append(entries, entry)
	}

	report := &domain.SpeedQualityReport{
		Entries:        entries,
		RankSimilarity: rankSimilarity(entries),
	}
	report.Fastest = selectEntry(entries, func(a, b domain.SpeedQualityEntry) bool {
		return a.ResponseTime < b.ResponseTime
	})
	report.HighestQuality = selectEntry(entries, func(a, b domain.SpeedQualityEntry) bool {
		return a.Quality > b.Quality
	})
	report.MostEfficient = selectEntry(entries, func(a, b domain.SpeedQualityEntry) bool {
		return a.Efficiency > b.Efficiency
	})
	for _, e := range entries {
		switch e.Category {
		case domain.CategoryFast:
			report.Categories.Fast = append(report.Categories.Fast, e.CandidateID)
		case domain.CategoryQuality:
			report.Categories.Quality = append(report.Categories.Quality, e.CandidateID)
		default:
			report.Categories.Balanced = append(report.Categories.Balanced, e.CandidateID)
		}
	}
	report.Correlation = squ.correlation(report.RankSimilarity)
	report.Assessment = squ.assess(report.Correlation)
	report.Recommendation = squ.recommend(entries, avgQuality)

	span.SetAttributes(
		attribute.Float64("tradeoff.rank_similarity", report.RankSimilarity),
		attribute.String("tradeoff.correlation", report.Correlation),
		attribute.Int64("tradeoff.latency_ms", time.Since(start).Milliseconds()),
		attribute.Bool("no_oracle_cost", true),
	)

	return domain.With(state, domain.KeySpeedQuality, report), nil
}

// selectEntry returns the winning entry under the given ordering as a
// selection, or nil for an empty field. Ties keep the earlier entry.
func selectEntry(entries []domain.SpeedQualityEntry, better func(a, b domain.SpeedQualityEntry) bool) *domain.SpeedQualitySelection {
	if len(entries) == 0 {
		return nil
	}
	best := entries[0]
	for _, e := range entries[1:] {
		if better(e, best) {
			best = e
		}
	}
	return &domain.SpeedQualitySelection{
		CandidateID:     best.CandidateID,
		ResponseTime:    best.ResponseTime,
		QualityScore:    best.Quality,
		EfficiencyScore: best.Efficiency,
	}
}

// categorize buckets one candidate. A candidate that is both fast and
// high quality fits neither specialist label and lands in balanced.
func (squ *SpeedQualityUnit) categorize(responseTime, quality, avgTime, avgQuality float64) string {
	fast := avgTime > 0 && responseTime < squ.config.FastFactor*avgTime
	highQuality := quality > squ.config.QualityFactor*avgQuality

	switch {
	case fast && !highQuality:
		return domain.CategoryFast
	case highQuality && !fast:
		return domain.CategoryQuality
	default:
		return domain.CategoryBalanced
	}
}

// rankSimilarity measures agreement between the fastest-first and
// best-first orderings. 1 means identical orderings, 0 means reversed.
func rankSimilarity(entries []domain.SpeedQualityEntry) float64 {
	n := len(entries)
	if n < 2 {
		return 1.0
	}

	timeRank := rankBy(entries, func(a, b domain.SpeedQualityEntry) bool {
		return a.ResponseTime < b.ResponseTime
	})
	qualityRank := rankBy(entries, func(a, b domain.SpeedQualityEntry) bool {
		return a.Quality > b.Quality
	})

	var distance float64
	for id, tr := range timeRank {
		distance += math.Abs(float64(tr - qualityRank[id]))
	}

	// n*(n-1) is the maximum total rank displacement.
	return 1.0 - distance/float64(n*(n-1))
}

// rankBy returns each entry's position under the given ordering.
func rankBy(entries []domain.SpeedQualityEntry, less func(a, b domain.SpeedQualityEntry) bool) map[string]int {
	sorted := make([]domain.SpeedQualityEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })

	ranks := make(map[string]int, len(sorted))
	for i, e := range sorted {
		ranks[e.CandidateID] = i
	}
	return ranks
}

// correlation buckets the rank similarity.
func (squ *SpeedQualityUnit) correlation(similarity float64) string {
	switch {
	case similarity > squ.config.PositiveCorrelation:
		return domain.CorrelationPositive
	case similarity < squ.config.NegativeCorrelation:
		return domain.CorrelationNegative
	default:
		return domain.CorrelationWeak
	}
}

// assess summarizes the correlation in prose.
func (squ *SpeedQualityUnit) assess(correlation string) string {
	switch correlation {
	case domain.CorrelationPositive:
		return "faster models also produced the better answers; speed costs little here"
	case domain.CorrelationNegative:
		return "quality and speed pull in opposite directions; choosing one sacrifices the other"
	default:
		return "no strong relationship between response time and answer quality"
	}
}

// recommend suggests a selection strategy when the tradeoff is extreme.
func (squ *SpeedQualityUnit) recommend(entries []domain.SpeedQualityEntry, avgQuality float64) string {
	var slowest *domain.SpeedQualityEntry
	for i := range entries {
		if slowest == nil || entries[i].ResponseTime > slowest.ResponseTime {
			slowest = &entries[i]
		}
	}
	if slowest == nil {
		return ""
	}

	lead := slowest.Quality - avgQuality
	switch {
	case slowest.ResponseTime > squ.config.VerySlowTime && lead < squ.config.StrongQualityLead:
		return fmt.Sprintf("%s takes %.1fs without a decisive quality lead; prefer a faster model for interactive use",
			slowest.Model, slowest.ResponseTime)
	case slowest.ResponseTime > squ.config.SlowTime && lead < squ.config.QualityLead:
		return fmt.Sprintf("%s is slow (%.1fs) for marginal quality gain; consider dropping it from the ensemble",
			slowest.Model, slowest.ResponseTime)
	default:
		return ""
	}
}

// Validate checks if the unit is properly configured and ready for execution.
func (squ *SpeedQualityUnit) Validate() error {
	if err := validate.Struct(squ.config); err != nil {
		return fmt.Errorf("unit %s: configuration validation failed: %w", squ.name, err)
	}
	if squ.config.NegativeCorrelation > squ.config.PositiveCorrelation {
		return fmt.Errorf("unit %s: negative_correlation must not exceed positive_correlation", squ.name)
	}
	if squ.config.SlowTime > squ.config.VerySlowTime {
		return fmt.Errorf("unit %s: slow_time must not exceed very_slow_time", squ.name)
	}
	return nil
}

// UnmarshalParameters deserializes YAML configuration parameters and
// returns a new SpeedQualityUnit instance to maintain thread-safety.
func (squ *SpeedQualityUnit) UnmarshalParameters(params yaml.Node) (*SpeedQualityUnit, error) {
	config := DefaultSpeedQualityConfig()

	if err := decodeStrictParams(&params, &config); err != nil {
		return nil, err
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("parameter validation failed: %w", err)
	}

	return &SpeedQualityUnit{
		name:   squ.name,
		config: config,
		tracer: squ.tracer,
	}, nil
}
