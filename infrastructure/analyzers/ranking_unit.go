package analyzers

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/arbiterlabs/fuseval/internal/domain"
	"github.com/arbiterlabs/fuseval/internal/ports"
)

var _ ports.Unit = (*RankingUnit)(nil)

// RankingUnit orders the answers by corrected overall score, breaking
// ties on accuracy, and assigns competition ranks: tied scores share a
// rank and the next distinct score takes its positional index plus one.
// The fused answer competes in the same ranking and its row carries the
// IsFusion marker.
//
// The unit is deterministic, stateless, and thread-safe.
type RankingUnit struct {
	// name is the unique identifier for this unit instance.
	name string
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// NewRankingUnit creates a new RankingUnit.
func NewRankingUnit(name string) (*RankingUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	return &RankingUnit{
		name:   name,
		tracer: otel.Tracer("ranking-unit"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (ru *RankingUnit) Name() string { return ru.name }

// Execute builds the ranking from the quality metrics in state.
func (ru *RankingUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := ru.tracer.Start(ctx, "RankingUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "ranking"),
			attribute.String("unit.id", ru.name),
		),
	)
	defer span.End()

	start := time.Now()

	candidates, ok := domain.Get(state, domain.KeyCandidates)
	if !ok || len(candidates) == 0 {
		span.RecordError(ErrMissingCandidates)
		return state, fmt.Errorf("unit %s: %w", ru.name, ErrMissingCandidates)
	}

	metrics, ok := domain.Get(state, domain.KeyQualityMetrics)
	if !ok {
		span.RecordError(ErrMissingScores)
		return state, fmt.Errorf("unit %s: quality metrics must run first: %w", ru.name, ErrMissingScores)
	}

	basics, _ := domain.Get(state, domain.KeyBasicMetrics)

	answers := make([]domain.Candidate, 0, len(candidates)+1)
	answers = append(answers, candidates...)
	fusedID := ""
	if fused, ok := domain.Get(state, domain.KeyFused); ok && fused != nil {
		answers = append(answers, *fused)
		fusedID = fused.ID
	}

	entries := make([]domain.RankingEntry, 0, len(answers))
	for _, a := range answers {
		m, ok := metrics[a.ID]
		if !ok {
			return state, fmt.Errorf("unit %s: no quality metrics for answer %s", ru.name, a.ID)
		}
		charCount := len([]rune(a.Content))
		if b, ok := basics[a.ID]; ok {
			charCount = b.Length
		}
		entries = append(entries, domain.RankingEntry{
			CandidateID: a.ID,
			Model:       a.Model,
			Overall:     m.Overall,
			Dimensions:  m.Dimensions,
			CharCount:   charCount,
			IsFusion:    a.ID == fusedID,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Overall != entries[j].Overall {
			return entries[i].Overall > entries[j].Overall
		}
		return entries[i].Dimensions.Accuracy > entries[j].Dimensions.Accuracy
	})

	// Competition ranking: 1, 1, 3 rather than 1, 1, 2.
	for i := range entries {
		if i > 0 && entries[i].Overall == entries[i-1].Overall {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}

	span.SetAttributes(
		attribute.Int("ranking.entries", len(entries)),
		attribute.Int64("ranking.latency_ms", time.Since(start).Milliseconds()),
		attribute.Bool("no_oracle_cost", true),
	)

	return domain.With(state, domain.KeyRanking, entries), nil
}

// Validate checks if the unit is properly configured and ready for execution.
func (ru *RankingUnit) Validate() error {
	if ru.name == "" {
		return ErrEmptyUnitName
	}
	return nil
}
