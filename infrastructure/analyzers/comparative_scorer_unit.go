package analyzers

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/arbiterlabs/fuseval/internal/domain"
	"github.com/arbiterlabs/fuseval/internal/ports"
)

var _ ports.Unit = (*ComparativeScorerUnit)(nil)

// Configuration defaults for ComparativeScorerUnit.
const (
	// DefaultComparativeScore is assigned when the oracle response carries
	// no parseable score for an answer.
	DefaultComparativeScore = 7.0

	// DefaultSpreadThreshold triggers forced differentiation when the
	// max-min score spread falls below it.
	DefaultSpreadThreshold = 1.0

	// DefaultRedistributionBase is the score assigned to the best answer
	// during forced differentiation.
	DefaultRedistributionBase = 8.5

	// DefaultRedistributionStep separates consecutive answers during
	// forced differentiation.
	DefaultRedistributionStep = 0.8
)

// scoreLinePattern extracts "N分" style scores from the oracle response.
var scoreLinePattern = regexp.MustCompile(`(\d+\.?\d*)分`)

// ComparativeScorerUnit asks the oracle to score all answers in a single
// prompt so every score is assigned relative to the rest of the field.
// When the oracle response is missing or clusters all answers within the
// spread threshold, scores are redistributed on a fixed descending ladder
// to preserve the oracle's ordering while guaranteeing separation.
//
// The unit is stateless and thread-safe for concurrent execution.
type ComparativeScorerUnit struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config ComparativeScorerConfig
	// oracle provides the cross-answer judgment call.
	oracle ports.ScoringOracle
}

// ComparativeScorerConfig defines the configuration parameters for the
// ComparativeScorerUnit. All fields are validated during unit creation
// and parameter unmarshaling.
type ComparativeScorerConfig struct {
	// Temperature controls randomness in oracle scoring (0.0-1.0).
	// Lower values produce more consistent scoring.
	Temperature float64 `yaml:"temperature" json:"temperature" validate:"min=0.0,max=1.0"`

	// MaxTokens limits the oracle response length.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens" validate:"required,min=50,max=4000"`

	// DefaultScore is assigned to answers the oracle response does not
	// cover, and to every answer when the oracle is unavailable.
	DefaultScore float64 `yaml:"default_score" json:"default_score" validate:"min=0,max=10"`

	// SpreadThreshold triggers forced differentiation when the difference
	// between the highest and lowest score falls below it.
	SpreadThreshold float64 `yaml:"spread_threshold" json:"spread_threshold" validate:"min=0,max=10"`

	// RedistributionBase is the score given to the top answer when scores
	// are redistributed.
	RedistributionBase float64 `yaml:"redistribution_base" json:"redistribution_base" validate:"min=0,max=10"`

	// RedistributionStep is subtracted per position when scores are
	// redistributed.
	RedistributionStep float64 `yaml:"redistribution_step" json:"redistribution_step" validate:"min=0,max=10"`
}

// DefaultComparativeScorerConfig returns a ComparativeScorerConfig with
// sensible defaults.
func DefaultComparativeScorerConfig() ComparativeScorerConfig {
	return ComparativeScorerConfig{
		Temperature:        0.0,
		MaxTokens:          1024,
		DefaultScore:       DefaultComparativeScore,
		SpreadThreshold:    DefaultSpreadThreshold,
		RedistributionBase: DefaultRedistributionBase,
		RedistributionStep: DefaultRedistributionStep,
	}
}

// NewComparativeScorerUnit creates a new ComparativeScorerUnit with the
// specified configuration and oracle. Returns an error if configuration
// validation fails or the oracle is missing.
func NewComparativeScorerUnit(name string, oracle ports.ScoringOracle, config ComparativeScorerConfig) (*ComparativeScorerUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if oracle == nil {
		return nil, ErrNilOracle
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &ComparativeScorerUnit{
		name:   name,
		config: config,
		oracle: oracle,
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (csu *ComparativeScorerUnit) Name() string { return csu.name }

// Execute scores all answers, candidates and fused alike, with a single
// oracle call and stores the result keyed by answer ID. Oracle failure
// degrades to a uniform default for every answer; the uniform fallback
// deliberately skips forced differentiation, since fabricating an
// ordering the oracle never produced would be noise.
func (csu *ComparativeScorerUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	query, ok := domain.Get(state, domain.KeyQuery)
	if !ok {
		return state, fmt.Errorf("unit %s: query not found in state", csu.name)
	}

	candidates, ok := domain.Get(state, domain.KeyCandidates)
	if !ok || len(candidates) == 0 {
		return state, fmt.Errorf("unit %s: %w", csu.name, ErrMissingCandidates)
	}

	answers := make([]domain.Candidate, 0, len(candidates)+1)
	answers = append(answers, candidates...)
	if fused, ok := domain.Get(state, domain.KeyFused); ok && fused != nil {
		answers = append(answers, *fused)
	}

	prompt := csu.buildPrompt(query, answers)
	options := map[string]any{
		"temperature": csu.config.Temperature,
		"max_tokens":  csu.config.MaxTokens,
	}

	var fallbacks int64
	scores := make([]float64, len(answers))

	response, err := csu.oracle.Complete(ctx, prompt, options)
	if err != nil {
		// Propagate cancellation; absorb everything else with defaults.
		if ctx.Err() != nil {
			return state, ctx.Err()
		}
		for i := range scores {
			scores[i] = csu.config.DefaultScore
		}
		fallbacks = 1
	} else {
		scores = csu.parseScores(response, answers)
		scores = csu.forceDifferentiation(scores)
	}

	result := make(map[string]float64, len(answers))
	for i, a := range answers {
		result[a.ID] = scores[i]
	}

	state = state.UpdateOracleUsage(1, fallbacks)
	return domain.With(state, domain.KeyComparativeScores, result), nil
}

// promptExcerptLimit caps how many characters of each answer the
// comparative prompt carries.
const promptExcerptLimit = 500

// buildPrompt lays out every answer under a labeled heading and asks for
// one scored line per answer in the "N分" format the parser expects.
// Answer bodies are truncated so one verbose answer cannot crowd the
// rest out of the context window.
func (csu *ComparativeScorerUnit) buildPrompt(query string, answers []domain.Candidate) string {
	var b strings.Builder
	b.WriteString("You are comparing answers to the same question. ")
	b.WriteString("Score each answer from 0 to 10, rewarding real differences in quality.\n\n")
	b.WriteString("Scoring rubric:\n" +
		"0-2.9 完全不可接受 (unacceptable)\n" +
		"3-4.9 较差 (poor)\n" +
		"5-6.4 及格 (adequate)\n" +
		"6.5-7.9 良好 (good)\n" +
		"8-8.9 优秀 (excellent)\n" +
		"9-10 卓越 (exceptional)\n\n")
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\n")

	for i, a := range answers {
		fmt.Fprintf(&b, "答案%d(%s) [%s]:\n%s\n\n", i+1, a.ID, a.Model, truncateRunes(a.Content, promptExcerptLimit))
	}

	b.WriteString("Place the answers into top, middle, and low tiers, and keep the best ")
	b.WriteString("and worst scores at least 1.5 points apart. 禁止所有答案同分.\n\n")
	b.WriteString("Respond with one line per answer using the format:\n")
	for i, a := range answers {
		fmt.Fprintf(&b, "答案%d(%s): <score>分 - <短评>\n", i+1, a.ID)
	}
	return b.String()
}

// parseScores extracts one score per answer from the oracle response.
// A line is attributed to an answer by its parenthesized ID or its 答案N
// label; lines naming no answer are ignored, and answers with no
// matching line receive the default score. Parsed values are clamped to
// 0-10.
func (csu *ComparativeScorerUnit) parseScores(response string, answers []domain.Candidate) []float64 {
	scores := make([]float64, len(answers))
	for i := range scores {
		scores[i] = csu.config.DefaultScore
	}

	assigned := make([]bool, len(answers))
	for _, line := range strings.Split(response, "\n") {
		m := scoreLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		for i, a := range answers {
			if assigned[i] || !lineNamesAnswer(line, i, a.ID) {
				continue
			}
			scores[i] = clamp(v, 0, 10)
			assigned[i] = true
			break
		}
	}
	return scores
}

// lineNamesAnswer reports whether a response line refers to the answer
// at the given index, either by its parenthesized ID or its 答案N label.
// The label match requires a non-digit boundary so 答案1 cannot claim
// 答案10's line.
func lineNamesAnswer(line string, index int, id string) bool {
	if id != "" && strings.Contains(line, "("+id+")") {
		return true
	}
	label := fmt.Sprintf("答案%d", index+1)
	pos := strings.Index(line, label)
	if pos < 0 {
		return false
	}
	rest := line[pos+len(label):]
	return rest == "" || rest[0] < '0' || rest[0] > '9'
}

// forceDifferentiation redistributes clustered scores on a descending
// ladder. The oracle's ordering is preserved (stable sort keeps input
// order for ties) while consecutive answers are separated by the
// configured step.
func (csu *ComparativeScorerUnit) forceDifferentiation(scores []float64) []float64 {
	if len(scores) < 2 {
		return scores
	}

	minScore, maxScore := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore-minScore >= csu.config.SpreadThreshold {
		return scores
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	redistributed := make([]float64, len(scores))
	for pos, idx := range order {
		redistributed[idx] = clamp(csu.config.RedistributionBase-float64(pos)*csu.config.RedistributionStep, 0, 10)
	}
	return redistributed
}

// Validate checks if the unit is properly configured and ready for execution.
func (csu *ComparativeScorerUnit) Validate() error {
	if csu.oracle == nil {
		return fmt.Errorf("unit %s: %w", csu.name, ErrNilOracle)
	}
	if err := validate.Struct(csu.config); err != nil {
		return fmt.Errorf("unit %s: configuration validation failed: %w", csu.name, err)
	}
	if csu.oracle.GetModel() == "" {
		return fmt.Errorf("unit %s: oracle model is not configured", csu.name)
	}
	return nil
}

// UnmarshalParameters deserializes YAML configuration parameters and
// returns a new ComparativeScorerUnit instance to maintain thread-safety.
func (csu *ComparativeScorerUnit) UnmarshalParameters(params yaml.Node) (*ComparativeScorerUnit, error) {
	config := DefaultComparativeScorerConfig()

	if err := decodeStrictParams(&params, &config); err != nil {
		return nil, err
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("parameter validation failed: %w", err)
	}

	return &ComparativeScorerUnit{
		name:   csu.name,
		config: config,
		oracle: csu.oracle,
	}, nil
}
