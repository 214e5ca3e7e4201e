package analyzers

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/arbiterlabs/fuseval/internal/domain"
	"github.com/arbiterlabs/fuseval/internal/ports"
)

var _ ports.Unit = (*BasicMetricsUnit)(nil)

// BasicMetricsUnit computes deterministic surface metrics for every answer:
// character length, token count, sentence count, readability, and
// information density. It requires no oracle, making it the cheapest unit
// in the pipeline.
//
// The unit is stateless and thread-safe for concurrent execution.
type BasicMetricsUnit struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config BasicMetricsConfig
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// BasicMetricsConfig defines the configuration parameters for the
// BasicMetricsUnit. All fields are validated during unit creation and
// parameter unmarshaling.
type BasicMetricsConfig struct {
	// TargetSentenceWords is the sentence length, in tokens, considered
	// most readable. Longer average sentences are penalized.
	TargetSentenceWords float64 `yaml:"target_sentence_words" json:"target_sentence_words" validate:"min=1,max=100"`

	// LengthPenalty is the readability deduction per token of average
	// sentence length beyond the target.
	LengthPenalty float64 `yaml:"length_penalty" json:"length_penalty" validate:"min=0,max=10"`

	// DensityScale converts the unique-token ratio into the 0-10 info
	// density score.
	DensityScale float64 `yaml:"density_scale" json:"density_scale" validate:"min=1,max=100"`
}

// DefaultBasicMetricsConfig returns a BasicMetricsConfig with sensible defaults.
func DefaultBasicMetricsConfig() BasicMetricsConfig {
	return BasicMetricsConfig{
		TargetSentenceWords: 15,
		LengthPenalty:       0.2,
		DensityScale:        20,
	}
}

// NewBasicMetricsUnit creates a new BasicMetricsUnit with the specified
// configuration. Returns an error if configuration validation fails.
func NewBasicMetricsUnit(name string, config BasicMetricsConfig) (*BasicMetricsUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &BasicMetricsUnit{
		name:   name,
		config: config,
		tracer: otel.Tracer("basic-metrics-unit"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (bmu *BasicMetricsUnit) Name() string { return bmu.name }

// Execute computes BasicMetrics for every candidate and the fused answer,
// storing the result keyed by candidate ID.
func (bmu *BasicMetricsUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := bmu.tracer.Start(ctx, "BasicMetricsUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "basic_metrics"),
			attribute.String("unit.id", bmu.name),
		),
	)
	defer span.End()

	start := time.Now()

	candidates, ok := domain.Get(state, domain.KeyCandidates)
	if !ok {
		span.RecordError(ErrMissingCandidates)
		return state, ErrMissingCandidates
	}
	if len(candidates) > MaxCandidates {
		err := fmt.Errorf("too many candidates: %d exceeds limit of %d", len(candidates), MaxCandidates)
		span.RecordError(err)
		return state, err
	}

	metrics := make(map[string]domain.BasicMetrics, len(candidates)+1)
	for _, c := range candidates {
		if len(c.Content) > MaxContentLength {
			err := fmt.Errorf("candidate %s too long: %d bytes exceeds limit of %d",
				c.ID, len(c.Content), MaxContentLength)
			span.RecordError(err)
			return state, err
		}
		metrics[c.ID] = bmu.measure(c.Content)
	}

	if fused, ok := domain.Get(state, domain.KeyFused); ok && fused != nil {
		metrics[fused.ID] = bmu.measure(fused.Content)
	}

	span.SetAttributes(
		attribute.Int("metrics.answers_count", len(metrics)),
		attribute.Int64("metrics.latency_ms", time.Since(start).Milliseconds()),
		attribute.Bool("no_oracle_cost", true),
	)

	return domain.With(state, domain.KeyBasicMetrics, metrics), nil
}

// measure computes the surface metrics for one answer.
func (bmu *BasicMetricsUnit) measure(content string) domain.BasicMetrics {
	tokens := tokenize(content)
	sentences := splitSentences(content)

	m := domain.BasicMetrics{
		Length:        len([]rune(content)),
		WordCount:     len(tokens),
		SentenceCount: len(sentences),
	}

	// Readability penalizes average sentence length beyond the target.
	if len(sentences) > 0 {
		avgWords := float64(len(tokens)) / float64(len(sentences))
		m.Readability = clamp(10-(avgWords-bmu.config.TargetSentenceWords)*bmu.config.LengthPenalty, 0, 10)
	}

	// Information density rewards lexical variety.
	if len(tokens) > 0 {
		unique := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			unique[tok] = struct{}{}
		}
		ratio := float64(len(unique)) / float64(len(tokens))
		m.InfoDensity = clamp(ratio*bmu.config.DensityScale, 0, 10)
	}

	return m
}

// Validate checks if the unit is properly configured and ready for execution.
func (bmu *BasicMetricsUnit) Validate() error {
	if err := validate.Struct(bmu.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters deserializes YAML configuration parameters and returns
// a new BasicMetricsUnit instance to maintain thread-safety.
func (bmu *BasicMetricsUnit) UnmarshalParameters(params yaml.Node) (*BasicMetricsUnit, error) {
	config := DefaultBasicMetricsConfig()

	if err := decodeStrictParams(&params, &config); err != nil {
		return nil, err
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("parameter validation failed: %w", err)
	}

	return &BasicMetricsUnit{
		name:   bmu.name,
		config: config,
		tracer: bmu.tracer,
	}, nil
}
