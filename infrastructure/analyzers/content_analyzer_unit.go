package analyzers

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/arbiterlabs/fuseval/internal/domain"
	"github.com/arbiterlabs/fuseval/internal/ports"
)

var _ ports.Unit = (*ContentAnalyzerUnit)(nil)

// Structure detection patterns.
var (
	listItemPattern = regexp.MustCompile(`(?m)^\s*(?:[-*+•]|\d+[.、)])\s+`)
	headerPattern   = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	codeFenceOpen   = "```"
)

// ContentAnalyzerUnit measures how the answers differ from each other: a
// pairwise token-overlap similarity matrix over candidates and the fused
// answer, per-answer uniqueness ratios, structure pattern detection, and
// oracle-backed narrative profiles. Everything except the profiles is
// deterministic; when the oracle is unavailable the profiles are simply
// empty.
//
// The unit is stateless and thread-safe for concurrent execution.
type ContentAnalyzerUnit struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config ContentAnalyzerConfig
	// oracle provides the narrative profiling call.
	oracle ports.ScoringOracle
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// ContentAnalyzerConfig defines the configuration parameters for the
// ContentAnalyzerUnit. All fields are validated during unit creation and
// parameter unmarshaling.
type ContentAnalyzerConfig struct {
	// Temperature controls randomness in the profiling call (0.0-1.0).
	Temperature float64 `yaml:"temperature" json:"temperature" validate:"min=0.0,max=1.0"`

	// MaxTokens limits the profiling response length.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens" validate:"required,min=100,max=4000"`

	// ProfileItems caps how many unique contributions and best-use
	// scenarios are requested per candidate.
	ProfileItems int `yaml:"profile_items" json:"profile_items" validate:"min=1,max=10"`
}

// DefaultContentAnalyzerConfig returns a ContentAnalyzerConfig with
// sensible defaults.
func DefaultContentAnalyzerConfig() ContentAnalyzerConfig {
	return ContentAnalyzerConfig{
		Temperature:  0.0,
		MaxTokens:    1500,
		ProfileItems: 3,
	}
}

// NewContentAnalyzerUnit creates a new ContentAnalyzerUnit with the
// specified configuration and oracle. Returns an error if configuration
// validation fails or the oracle is missing.
func NewContentAnalyzerUnit(name string, oracle ports.ScoringOracle, config ContentAnalyzerConfig) (*ContentAnalyzerUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if oracle == nil {
		return nil, ErrNilOracle
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &ContentAnalyzerUnit{
		name:   name,
		config: config,
		oracle: oracle,
		tracer: otel.Tracer("content-analyzer-unit"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (cau *ContentAnalyzerUnit) Name() string { return cau.name }

// Execute computes the content differentiation analysis and stores it in
// state. The similarity matrix, uniqueness ratios, and structure
// patterns all cover the fused answer alongside the candidates; the
// fused answer's uniqueness is measured against the union of every
// candidate.
func (cau *ContentAnalyzerUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	ctx, span := cau.tracer.Start(ctx, "ContentAnalyzerUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "content_analyzer"),
			attribute.String("unit.id", cau.name),
		),
	)
	defer span.End()

	start := time.Now()

	query, ok := domain.Get(state, domain.KeyQuery)
	if !ok {
		err := fmt.Errorf("unit %s: query not found in state", cau.name)
		span.RecordError(err)
		return state, err
	}

	candidates, ok := domain.Get(state, domain.KeyCandidates)
	if !ok || len(candidates) == 0 {
		span.RecordError(ErrMissingCandidates)
		return state, fmt.Errorf("unit %s: %w", cau.name, ErrMissingCandidates)
	}

	analysis := &domain.ContentAnalysis{
		Similarity: make(map[string]map[string]float64, len(candidates)),
		Uniqueness: make(map[string]float64, len(candidates)),
		Structures: make(map[string]domain.StructurePatterns, len(candidates)+1),
		Profiles:   make(map[string]domain.NarrativeProfile, len(candidates)),
	}

	answers := make([]domain.Candidate, 0, len(candidates)+1)
	answers = append(answers, candidates...)
	if fused, ok := domain.Get(state, domain.KeyFused); ok && fused != nil {
		answers = append(answers, *fused)
	}

	sets := make(map[string]map[string]struct{}, len(answers))
	for _, a := range answers {
		sets[a.ID] = tokenSet(a.Content)
		analysis.Structures[a.ID] = detectStructure(a.Content)
	}

	// Pairwise similarity is symmetric; self-similarity is 1. The mean
	// over distinct pairs summarizes how interchangeable the answers are.
	var pairSum float64
	pairs := 0
	for i, a := range answers {
		row := make(map[string]float64, len(answers))
		for j, b := range answers {
			if a.ID == b.ID {
				row[b.ID] = 1.0
				continue
			}
			sim := jaccard(sets[a.ID], sets[b.ID])
			row[b.ID] = sim
			if j > i {
				pairSum += sim
				pairs++
			}
		}
		analysis.Similarity[a.ID] = row
	}
	if pairs > 0 {
		analysis.AverageSimilarity = pairSum / float64(pairs)
	}

	// Uniqueness: the share of an answer's tokens no candidate uses. A
	// candidate is compared against the other candidates; the fused
	// answer is compared against the union of all of them.
	for _, a := range answers {
		own := sets[a.ID]
		if len(own) == 0 {
			analysis.Uniqueness[a.ID] = 0
			continue
		}
		unique := 0
		for tok := range own {
			shared := false
			for _, other := range candidates {
				if other.ID == a.ID {
					continue
				}
				if _, ok := sets[other.ID][tok]; ok {
					shared = true
					break
				}
			}
			if !shared {
				unique++
			}
		}
		analysis.Uniqueness[a.ID] = float64(unique) / float64(len(own))
	}

	var fallbacks int64
	profiles, err := cau.profileCandidates(ctx, query, candidates)
	if err != nil {
		if ctx.Err() != nil {
			span.RecordError(ctx.Err())
			return state, ctx.Err()
		}
		// Profiles are advisory; the deterministic analysis stands alone.
		fallbacks = 1
		span.SetAttributes(attribute.Bool("profiles.fallback", true))
	} else {
		analysis.Profiles = profiles
	}

	span.SetAttributes(
		attribute.Int("analysis.candidates", len(candidates)),
		attribute.Int64("analysis.latency_ms", time.Since(start).Milliseconds()),
	)

	state = state.UpdateOracleUsage(1, fallbacks)
	return domain.With(state, domain.KeyContentAnalysis, analysis), nil
}

// profileResponse is the JSON shape requested from the oracle.
type profileResponse struct {
	Profiles map[string]domain.NarrativeProfile `json:"profiles"`
}

// profileCandidates asks the oracle for per-candidate narrative profiles
// in a single call.
func (cau *ContentAnalyzerUnit) profileCandidates(ctx context.Context, query string, candidates []domain.Candidate) (map[string]domain.NarrativeProfile, error) {
	var b strings.Builder
	b.WriteString("Profile each answer to the question below. For every answer describe ")
	b.WriteString("its content style, approach depth, comparative advantage, comparative ")
	fmt.Fprintf(&b, "weakness, and signature characteristics, plus up to %d unique contributions and %d best use scenarios. ",
		cau.config.ProfileItems, cau.config.ProfileItems)
	b.WriteString("Unique contributions must be content no other answer covers; never reuse a description across answers.\n\n")
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\n")

	for _, c := range candidates {
		fmt.Fprintf(&b, "Answer %s (%s):\n%s\n\n", c.ID, c.Model, c.Content)
	}

	b.WriteString("Respond with valid JSON in exactly this format:\n")
	b.WriteString(`{"profiles": {"<answer id>": {` +
		`"content_style": "...", "approach_depth": "...", ` +
		`"unique_contributions": ["..."], "comparative_advantage": "...", ` +
		`"comparative_weakness": "...", "best_use_scenarios": ["..."], ` +
		`"signature_characteristics": "..."}}}`)

	options := map[string]any{
		"temperature": cau.config.Temperature,
		"max_tokens":  cau.config.MaxTokens,
	}

	response, err := cau.oracle.Complete(ctx, b.String(), options)
	if err != nil {
		return nil, fmt.Errorf("profiling call failed: %w", err)
	}

	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return nil, fmt.Errorf("no valid JSON found in profiling response (%d chars): %w",
			len(response), ports.ErrInvalidResponse)
	}

	var parsed profileResponse
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse profiling response: %w", err)
	}

	// Keep only profiles for known candidates.
	known := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		known[c.ID] = struct{}{}
	}
	profiles := make(map[string]domain.NarrativeProfile, len(candidates))
	for id, p := range parsed.Profiles {
		if _, ok := known[id]; ok {
			profiles[id] = p
		}
	}
	return profiles, nil
}

// detectStructure counts formatting features in one answer.
func detectStructure(content string) domain.StructurePatterns {
	p := domain.StructurePatterns{
		ListItems:  len(listItemPattern.FindAllString(content, -1)),
		Headers:    len(headerPattern.FindAllString(content, -1)),
		CodeFences: strings.Count(content, codeFenceOpen) / 2,
	}

	totalLen := 0
	for _, block := range strings.Split(content, "\n\n") {
		if trimmed := strings.TrimSpace(block); trimmed != "" {
			p.Paragraphs++
			totalLen += len([]rune(trimmed))
		}
	}
	if p.Paragraphs > 0 {
		p.AvgParagraphLength = float64(totalLen) / float64(p.Paragraphs)
	}

	// Code fences alone do not count as structured formatting.
	p.HasStructuredFormat = p.ListItems > 0 || p.Headers > 0
	return p
}

// Validate checks if the unit is properly configured and ready for execution.
func (cau *ContentAnalyzerUnit) Validate() error {
	if cau.oracle == nil {
		return fmt.Errorf("unit %s: %w", cau.name, ErrNilOracle)
	}
	if err := validate.Struct(cau.config); err != nil {
		return fmt.Errorf("unit %s: configuration validation failed: %w", cau.name, err)
	}
	return nil
}

// UnmarshalParameters deserializes YAML configuration parameters and
// returns a new ContentAnalyzerUnit instance to maintain thread-safety.
func (cau *ContentAnalyzerUnit) UnmarshalParameters(params yaml.Node) (*ContentAnalyzerUnit, error) {
	config := DefaultContentAnalyzerConfig()

	if err := decodeStrictParams(&params, &config); err != nil {
		return nil, err
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("parameter validation failed: %w", err)
	}

	return &ContentAnalyzerUnit{
		name:   cau.name,
		config: config,
		oracle: cau.oracle,
		tracer: cau.tracer,
	}, nil
}
