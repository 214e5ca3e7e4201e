package analyzers

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/arbiterlabs/fuseval/internal/domain"
	"github.com/arbiterlabs/fuseval/internal/ports"
)

var _ ports.Unit = (*DimensionalEvaluatorUnit)(nil)

// Configuration defaults for DimensionalEvaluatorUnit.
const (
	// DefaultDimensionScore is used when a dimension cannot be parsed
	// from the oracle response.
	DefaultDimensionScore = 5.0

	// DefaultAnchorTolerance bounds how far a dimension may drift from
	// the comparative overall score.
	DefaultAnchorTolerance = 1.0

	// DefaultAnchorWeight and DefaultDimensionWeight blend the comparative
	// overall with the dimension average into the final overall score.
	DefaultAnchorWeight    = 0.7
	DefaultDimensionWeight = 0.3

	// DefaultEvaluatorConcurrency bounds simultaneous oracle calls.
	DefaultEvaluatorConcurrency = 4
)

// dimensionPatterns match labeled dimension scores in oracle responses,
// accepting both the Chinese labels the original prompts used and their
// English equivalents.
var dimensionPatterns = map[string]*regexp.Regexp{
	domain.DimensionCompleteness: regexp.MustCompile(`(?i)(?:完整性评分|completeness)\D{0,10}(\d+\.?\d*)`),
	domain.DimensionAccuracy:     regexp.MustCompile(`(?i)(?:准确性评分|accuracy)\D{0,10}(\d+\.?\d*)`),
	domain.DimensionClarity:      regexp.MustCompile(`(?i)(?:清晰度评分|clarity)\D{0,10}(\d+\.?\d*)`),
	domain.DimensionRelevance:    regexp.MustCompile(`(?i)(?:相关性评分|relevance)\D{0,10}(\d+\.?\d*)`),
}

// DimensionalEvaluatorUnit asks the oracle for per-dimension scores of
// each answer, then anchors every dimension to the answer's comparative
// overall so a single noisy dimensional read cannot contradict the
// cross-answer ordering. The final overall blends the anchor with the
// dimension average.
//
// Answers are evaluated concurrently with bounded parallelism. A failed
// oracle call degrades that answer to neutral scores without failing the
// batch.
type DimensionalEvaluatorUnit struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config DimensionalEvaluatorConfig
	// oracle provides the per-answer judgment calls.
	oracle ports.ScoringOracle
}

// DimensionalEvaluatorConfig defines the configuration parameters for the
// DimensionalEvaluatorUnit. All fields are validated during unit creation
// and parameter unmarshaling.
type DimensionalEvaluatorConfig struct {
	// Temperature controls randomness in oracle scoring (0.0-1.0).
	Temperature float64 `yaml:"temperature" json:"temperature" validate:"min=0.0,max=1.0"`

	// MaxTokens limits the oracle response length per answer.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens" validate:"required,min=50,max=2000"`

	// AnchorTolerance bounds how far each dimension may deviate from the
	// comparative overall score.
	AnchorTolerance float64 `yaml:"anchor_tolerance" json:"anchor_tolerance" validate:"min=0,max=10"`

	// AnchorWeight is the comparative overall's share of the final score.
	AnchorWeight float64 `yaml:"anchor_weight" json:"anchor_weight" validate:"min=0,max=1"`

	// DimensionWeight is the dimension average's share of the final score.
	// AnchorWeight and DimensionWeight should sum to 1.
	DimensionWeight float64 `yaml:"dimension_weight" json:"dimension_weight" validate:"min=0,max=1"`

	// MaxConcurrency limits simultaneous oracle calls.
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency" validate:"min=1,max=20"`
}

// DefaultDimensionalEvaluatorConfig returns a DimensionalEvaluatorConfig
// with sensible defaults.
func DefaultDimensionalEvaluatorConfig() DimensionalEvaluatorConfig {
	return DimensionalEvaluatorConfig{
		Temperature:     0.0,
		MaxTokens:       512,
		AnchorTolerance: DefaultAnchorTolerance,
		AnchorWeight:    DefaultAnchorWeight,
		DimensionWeight: DefaultDimensionWeight,
		MaxConcurrency:  DefaultEvaluatorConcurrency,
	}
}

// NewDimensionalEvaluatorUnit creates a new DimensionalEvaluatorUnit with
// the specified configuration and oracle. Returns an error if configuration
// validation fails or the oracle is missing.
func NewDimensionalEvaluatorUnit(name string, oracle ports.ScoringOracle, config DimensionalEvaluatorConfig) (*DimensionalEvaluatorUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if oracle == nil {
		return nil, ErrNilOracle
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &DimensionalEvaluatorUnit{
		name:   name,
		config: config,
		oracle: oracle,
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (deu *DimensionalEvaluatorUnit) Name() string { return deu.name }

// Execute evaluates every answer's dimensions against the comparative
// scores already in state and stores QualityMetrics keyed by answer ID.
func (deu *DimensionalEvaluatorUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	query, ok := domain.Get(state, domain.KeyQuery)
	if !ok {
		return state, fmt.Errorf("unit %s: query not found in state", deu.name)
	}

	candidates, ok := domain.Get(state, domain.KeyCandidates)
	if !ok || len(candidates) == 0 {
		return state, fmt.Errorf("unit %s: %w", deu.name, ErrMissingCandidates)
	}

	anchors, ok := domain.Get(state, domain.KeyComparativeScores)
	if !ok {
		return state, fmt.Errorf("unit %s: comparative scores must run first: %w", deu.name, ErrMissingScores)
	}

	answers := make([]domain.Candidate, 0, len(candidates)+1)
	answers = append(answers, candidates...)
	if fused, ok := domain.Get(state, domain.KeyFused); ok && fused != nil {
		answers = append(answers, *fused)
	}

	metrics := make(map[string]domain.QualityMetrics, len(answers))
	var (
		mu        sync.Mutex
		calls     int64
		fallbacks int64
	)

	g, gctx := errgroup.WithContext(ctx)
	maxConcurrency := deu.config.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultEvaluatorConcurrency
	}
	g.SetLimit(maxConcurrency)

	for _, answer := range answers {
		anchor, hasAnchor := anchors[answer.ID]
		if !hasAnchor {
			anchor = DefaultComparativeScore
		}

		g.Go(func() error {
			m, fellBack := deu.evaluateOne(gctx, query, answer, anchor)

			mu.Lock()
			metrics[answer.ID] = m
			calls++
			if fellBack {
				fallbacks++
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return state, err
	}
	if ctx.Err() != nil {
		return state, ctx.Err()
	}

	state = state.UpdateOracleUsage(calls, fallbacks)
	return domain.With(state, domain.KeyQualityMetrics, metrics), nil
}

// evaluateOne scores a single answer. The returned bool reports whether
// the oracle failed and neutral defaults were used instead.
func (deu *DimensionalEvaluatorUnit) evaluateOne(ctx context.Context, query string, answer domain.Candidate, anchor float64) (domain.QualityMetrics, bool) {
	prompt := deu.buildPrompt(query, answer, anchor)
	options := map[string]any{
		"temperature": deu.config.Temperature,
		"max_tokens":  deu.config.MaxTokens,
	}

	response, err := deu.oracle.Complete(ctx, prompt, options)
	if err != nil {
		// Neutral scores keep the batch alive when one call fails.
		return domain.QualityMetrics{
			Overall: DefaultDimensionScore,
			Dimensions: domain.DimensionScores{
				Accuracy:     DefaultDimensionScore,
				Completeness: DefaultDimensionScore,
				Clarity:      DefaultDimensionScore,
				Relevance:    DefaultDimensionScore,
			},
		}, true
	}

	raw := parseDimensions(response)
	dims := domain.DimensionScores{
		Accuracy:     deu.anchorDimension(raw[domain.DimensionAccuracy], anchor),
		Completeness: deu.anchorDimension(raw[domain.DimensionCompleteness], anchor),
		Clarity:      deu.anchorDimension(raw[domain.DimensionClarity], anchor),
		Relevance:    deu.anchorDimension(raw[domain.DimensionRelevance], anchor),
	}

	overall := clamp(anchor*deu.config.AnchorWeight+dims.Average()*deu.config.DimensionWeight, 0, 10)
	return domain.QualityMetrics{Overall: overall, Dimensions: dims}, false
}

// buildPrompt asks for one labeled score per dimension, grounding the
// judge with the severity rubric and the answer's comparative anchor.
func (deu *DimensionalEvaluatorUnit) buildPrompt(query string, answer domain.Candidate, anchor float64) string {
	return fmt.Sprintf(
		"Evaluate the following answer on four dimensions, each 0-10.\n\n"+
			"Question: %s\n\nAnswer (%s):\n%s\n\n"+
			"Scoring rubric:\n"+
			"0-2.9 完全不可接受 (unacceptable)\n"+
			"3-4.9 较差 (poor)\n"+
			"5-6.4 及格 (adequate)\n"+
			"6.5-7.9 良好 (good)\n"+
			"8-8.9 优秀 (excellent)\n"+
			"9-10 卓越 (exceptional)\n\n"+
			"This answer scored %.1f/10 in cross-answer comparison; use that as context.\n"+
			"要求: 每个维度给出具体依据, 禁止四个维度同分, 禁止模糊评价.\n\n"+
			"Respond with exactly these four lines:\n"+
			"完整性评分: <0-10>\n准确性评分: <0-10>\n清晰度评分: <0-10>\n相关性评分: <0-10>",
		query, answer.Model, answer.Content, anchor)
}

// parseDimensions extracts the labeled dimension scores from the oracle
// response, defaulting unparsed dimensions and clamping to 0-10.
func parseDimensions(response string) map[string]float64 {
	scores := make(map[string]float64, len(dimensionPatterns))
	for dim, pattern := range dimensionPatterns {
		scores[dim] = DefaultDimensionScore
		if m := pattern.FindStringSubmatch(response); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				scores[dim] = clamp(v, 0, 10)
			}
		}
	}
	return scores
}

// anchorDimension clamps a dimension score to the comparative anchor's
// tolerance band, then to the 0-10 scale.
func (deu *DimensionalEvaluatorUnit) anchorDimension(score, anchor float64) float64 {
	anchored := clamp(score, anchor-deu.config.AnchorTolerance, anchor+deu.config.AnchorTolerance)
	return clamp(anchored, 0, 10)
}

// Validate checks if the unit is properly configured and ready for execution.
func (deu *DimensionalEvaluatorUnit) Validate() error {
	if deu.oracle == nil {
		return fmt.Errorf("unit %s: %w", deu.name, ErrNilOracle)
	}
	if err := validate.Struct(deu.config); err != nil {
		return fmt.Errorf("unit %s: configuration validation failed: %w", deu.name, err)
	}
	if sum := deu.config.AnchorWeight + deu.config.DimensionWeight; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("unit %s: anchor and dimension weights must sum to 1, got %.3f", deu.name, sum)
	}
	return nil
}

// UnmarshalParameters deserializes YAML configuration parameters and
// returns a new DimensionalEvaluatorUnit instance to maintain
// thread-safety.
func (deu *DimensionalEvaluatorUnit) UnmarshalParameters(params yaml.Node) (*DimensionalEvaluatorUnit, error) {
	config := DefaultDimensionalEvaluatorConfig()

	if err := decodeStrictParams(&params, &config); err != nil {
		return nil, err
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("parameter validation failed: %w", err)
	}

	return &DimensionalEvaluatorUnit{
		name:   deu.name,
		config: config,
		oracle: deu.oracle,
	}, nil
}
