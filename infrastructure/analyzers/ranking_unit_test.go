package analyzers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiterlabs/fuseval/internal/domain"
)

func TestNewRankingUnit(t *testing.T) {
	unit, err := NewRankingUnit("ranking")
	require.NoError(t, err)
	assert.Equal(t, "ranking", unit.Name())
	assert.NoError(t, unit.Validate())

	_, err = NewRankingUnit("")
	assert.ErrorIs(t, err, ErrEmptyUnitName)
}

func TestRankingUnit_Execute(t *testing.T) {
	unit, err := NewRankingUnit("ranking")
	require.NoError(t, err)

	candidates := []domain.Candidate{
		{ID: "c1", Model: "alpha", Content: "a", Succeeded: true},
		{ID: "c2", Model: "beta", Content: "b", Succeeded: true},
		{ID: "c3", Model: "gamma", Content: "c", Succeeded: true},
	}
	fused := &domain.Candidate{ID: "fused", Model: "fusion", Content: "f"}

	state := newAnalysisState("q", candidates, fused)
	state = domain.With(state, domain.KeyQualityMetrics, map[string]domain.QualityMetrics{
		"c1":    {Overall: 7.0, Dimensions: domain.DimensionScores{Accuracy: 7.5, Completeness: 7, Clarity: 7, Relevance: 7}},
		"c2":    {Overall: 8.5, Dimensions: domain.DimensionScores{Accuracy: 8, Completeness: 8, Clarity: 8, Relevance: 8}},
		"c3":    {Overall: 8.5, Dimensions: domain.DimensionScores{Accuracy: 9, Completeness: 8, Clarity: 8, Relevance: 8}},
		"fused": {Overall: 9.0, Dimensions: domain.DimensionScores{Accuracy: 9, Completeness: 9, Clarity: 9, Relevance: 9}},
	})

	result, err := unit.Execute(context.Background(), state)
	require.NoError(t, err)

	ranking, ok := domain.Get(result, domain.KeyRanking)
	require.True(t, ok)
	require.Len(t, ranking, 4, "the fused answer competes with its sources")

	// The fused answer leads; c3 beats c2 on the accuracy tiebreak and
	// both share rank 2, so c1 takes rank 4.
	assert.Equal(t, "fused", ranking[0].CandidateID)
	assert.Equal(t, 1, ranking[0].Rank)
	assert.True(t, ranking[0].IsFusion)
	assert.Equal(t, "c3", ranking[1].CandidateID)
	assert.Equal(t, 2, ranking[1].Rank)
	assert.Equal(t, "c2", ranking[2].CandidateID)
	assert.Equal(t, 2, ranking[2].Rank)
	assert.Equal(t, "c1", ranking[3].CandidateID)
	assert.Equal(t, 4, ranking[3].Rank)
	assert.False(t, ranking[3].IsFusion)

	for _, entry := range ranking {
		assert.Equal(t, 1, entry.CharCount, "one-character answers")
	}
}

func TestRankingUnit_Execute_FusedBetweenCandidates(t *testing.T) {
	unit, err := NewRankingUnit("ranking")
	require.NoError(t, err)

	candidates := []domain.Candidate{
		{ID: "c1", Model: "alpha", Content: "first answer", Succeeded: true},
		{ID: "c2", Model: "beta", Content: "second answer", Succeeded: true},
	}
	fused := &domain.Candidate{ID: "fused", Model: "fusion", Content: "merged answer"}

	state := newAnalysisState("q", candidates, fused)
	state = domain.With(state, domain.KeyQualityMetrics, map[string]domain.QualityMetrics{
		"c1":    uniformMetrics(9.0),
		"c2":    uniformMetrics(7.0),
		"fused": uniformMetrics(8.0),
	})

	result, err := unit.Execute(context.Background(), state)
	require.NoError(t, err)

	ranking, ok := domain.Get(result, domain.KeyRanking)
	require.True(t, ok)
	require.Len(t, ranking, 3)

	assert.Equal(t, []string{"c1", "fused", "c2"},
		[]string{ranking[0].CandidateID, ranking[1].CandidateID, ranking[2].CandidateID})
	assert.Equal(t, []int{1, 2, 3}, []int{ranking[0].Rank, ranking[1].Rank, ranking[2].Rank})
	assert.True(t, ranking[1].IsFusion)
}

func TestRankingUnit_Execute_MissingMetrics(t *testing.T) {
	unit, err := NewRankingUnit("ranking")
	require.NoError(t, err)

	candidates := []domain.Candidate{
		{ID: "c1", Model: "alpha", Content: "a", Succeeded: true},
		{ID: "c2", Model: "beta", Content: "b", Succeeded: true},
	}
	state := newAnalysisState("q", candidates, nil)
	state = domain.With(state, domain.KeyQualityMetrics, map[string]domain.QualityMetrics{
		"c1": uniformMetrics(8.0),
	})

	_, err = unit.Execute(context.Background(), state)
	assert.ErrorContains(t, err, "no quality metrics for answer c2")
}

func TestRankingUnit_Execute_NoMetricsAtAll(t *testing.T) {
	unit, err := NewRankingUnit("ranking")
	require.NoError(t, err)

	candidates := []domain.Candidate{{ID: "c1", Model: "alpha", Content: "a", Succeeded: true}}
	_, err = unit.Execute(context.Background(), newAnalysisState("q", candidates, nil))
	assert.ErrorIs(t, err, ErrMissingScores)
}
