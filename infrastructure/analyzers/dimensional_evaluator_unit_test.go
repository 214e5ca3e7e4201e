package analyzers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiterlabs/fuseval/internal/domain"
	"github.com/arbiterlabs/fuseval/internal/testutils"
)

func TestNewDimensionalEvaluatorUnit(t *testing.T) {
	oracle := testutils.NewMockOracle("mock-judge")

	unit, err := NewDimensionalEvaluatorUnit("dimensional_evaluator", oracle, DefaultDimensionalEvaluatorConfig())
	require.NoError(t, err)
	assert.NoError(t, unit.Validate())

	_, err = NewDimensionalEvaluatorUnit("", oracle, DefaultDimensionalEvaluatorConfig())
	assert.ErrorIs(t, err, ErrEmptyUnitName)

	_, err = NewDimensionalEvaluatorUnit("dimensional_evaluator", nil, DefaultDimensionalEvaluatorConfig())
	assert.ErrorIs(t, err, ErrNilOracle)
}

func TestDimensionalEvaluatorUnit_Validate_WeightSum(t *testing.T) {
	config := DefaultDimensionalEvaluatorConfig()
	config.AnchorWeight = 0.6

	unit, err := NewDimensionalEvaluatorUnit("dimensional_evaluator", testutils.NewMockOracle("m"), config)
	require.NoError(t, err)
	assert.Error(t, unit.Validate(), "weights that do not sum to 1 fail validation")
}

func TestDimensionalEvaluatorUnit_Execute_Anchoring(t *testing.T) {
	oracle := testutils.NewMockOracle("mock-judge")
	oracle.AddResponse(testutils.MockResponse{
		Pattern:  "four dimensions",
		Response: "完整性评分: 6\n准确性评分: 9\n清晰度评分: 8\n相关性评分: 7.5\n",
	})

	unit, err := NewDimensionalEvaluatorUnit("dimensional_evaluator", oracle, DefaultDimensionalEvaluatorConfig())
	require.NoError(t, err)

	candidates := []domain.Candidate{{ID: "c1", Model: "alpha", Content: "answer", Succeeded: true}}
	state := newAnalysisState("q", candidates, nil)
	state = domain.With(state, domain.KeyComparativeScores, map[string]float64{"c1": 8.0})

	result, err := unit.Execute(context.Background(), state)
	require.NoError(t, err)

	metrics, ok := domain.Get(result, domain.KeyQualityMetrics)
	require.True(t, ok)
	m := metrics["c1"]

	// Anchor 8.0 with tolerance 1.0 bounds every dimension to [7, 9].
	assert.Equal(t, 7.0, m.Dimensions.Completeness, "6 pulled up to the anchor floor")
	assert.Equal(t, 9.0, m.Dimensions.Accuracy)
	assert.Equal(t, 8.0, m.Dimensions.Clarity)
	assert.Equal(t, 7.5, m.Dimensions.Relevance)

	// Overall blends the anchor with the anchored dimension average:
	// 8.0*0.7 + 7.875*0.3 = 7.9625.
	assert.InDelta(t, 7.9625, m.Overall, 1e-9)
}

func TestDimensionalEvaluatorUnit_Execute_OracleFailure(t *testing.T) {
	oracle := testutils.NewMockOracle("mock-judge")
	oracle.FailWith(errors.New("judge offline"))

	unit, err := NewDimensionalEvaluatorUnit("dimensional_evaluator", oracle, DefaultDimensionalEvaluatorConfig())
	require.NoError(t, err)

	candidates := []domain.Candidate{
		{ID: "c1", Model: "alpha", Content: "answer one", Succeeded: true},
		{ID: "c2", Model: "beta", Content: "answer two", Succeeded: true},
	}
	state := newAnalysisState("q", candidates, nil)
	state = domain.With(state, domain.KeyComparativeScores, map[string]float64{"c1": 8.0, "c2": 6.0})

	result, err := unit.Execute(context.Background(), state)
	require.NoError(t, err, "per-answer failures degrade to neutral scores")

	metrics, ok := domain.Get(result, domain.KeyQualityMetrics)
	require.True(t, ok)
	for id, m := range metrics {
		assert.Equal(t, 5.0, m.Overall, "answer %s should be neutral", id)
		assert.Equal(t, 5.0, m.Dimensions.Accuracy)
		assert.Equal(t, 5.0, m.Dimensions.Completeness)
	}

	usage := result.GetOracleUsage()
	assert.Equal(t, int64(2), usage.Calls)
	assert.Equal(t, int64(2), usage.Fallbacks)
}

func TestDimensionalEvaluatorUnit_Execute_IncludesFused(t *testing.T) {
	oracle := testutils.NewMockOracle("mock-judge")

	unit, err := NewDimensionalEvaluatorUnit("dimensional_evaluator", oracle, DefaultDimensionalEvaluatorConfig())
	require.NoError(t, err)

	candidates := []domain.Candidate{{ID: "c1", Model: "alpha", Content: "answer", Succeeded: true}}
	fused := &domain.Candidate{ID: "fused", Model: "fusion", Content: "fused answer"}
	state := newAnalysisState("q", candidates, fused)
	state = domain.With(state, domain.KeyComparativeScores, map[string]float64{"c1": 7.0, "fused": 8.5})

	result, err := unit.Execute(context.Background(), state)
	require.NoError(t, err)

	metrics, ok := domain.Get(result, domain.KeyQualityMetrics)
	require.True(t, ok)
	require.Len(t, metrics, 2)
	assert.Contains(t, metrics, "fused")
}

func TestDimensionalEvaluatorUnit_PromptRubricAndAnchor(t *testing.T) {
	oracle := testutils.NewMockOracle("mock-judge")

	unit, err := NewDimensionalEvaluatorUnit("dimensional_evaluator", oracle, DefaultDimensionalEvaluatorConfig())
	require.NoError(t, err)

	candidates := []domain.Candidate{{ID: "c1", Model: "alpha", Content: "answer", Succeeded: true}}
	state := newAnalysisState("q", candidates, nil)
	state = domain.With(state, domain.KeyComparativeScores, map[string]float64{"c1": 8.0})

	_, err = unit.Execute(context.Background(), state)
	require.NoError(t, err)

	calls := oracle.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "9-10 卓越", "prompt carries the severity rubric")
	assert.Contains(t, calls[0], "scored 8.0/10 in cross-answer comparison", "prompt carries the comparative anchor")
	assert.Contains(t, calls[0], "禁止四个维度同分", "prompt forbids uniform dimension scores")
	assert.Contains(t, calls[0], "相关性评分")
}

func TestDimensionalEvaluatorUnit_Execute_MissingScores(t *testing.T) {
	unit, err := NewDimensionalEvaluatorUnit("dimensional_evaluator", testutils.NewMockOracle("m"), DefaultDimensionalEvaluatorConfig())
	require.NoError(t, err)

	candidates := []domain.Candidate{{ID: "c1", Model: "alpha", Content: "answer", Succeeded: true}}
	_, err = unit.Execute(context.Background(), newAnalysisState("q", candidates, nil))
	assert.ErrorIs(t, err, ErrMissingScores)
}

func TestParseDimensions(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     map[string]float64
	}{
		{
			name:     "chinese labels",
			response: "完整性评分: 8\n准确性评分: 7.5\n清晰度评分: 9\n相关性评分: 6",
			want: map[string]float64{
				domain.DimensionCompleteness: 8,
				domain.DimensionAccuracy:     7.5,
				domain.DimensionClarity:      9,
				domain.DimensionRelevance: 6,
			},
		},
		{
			name:     "english labels",
			response: "Completeness: 8, Accuracy: 7, Clarity: 6, Relevance: 9",
			want: map[string]float64{
				domain.DimensionCompleteness: 8,
				domain.DimensionAccuracy:     7,
				domain.DimensionClarity:      6,
				domain.DimensionRelevance: 9,
			},
		},
		{
			name:     "missing labels default",
			response: "准确性评分: 9",
			want: map[string]float64{
				domain.DimensionCompleteness: 5,
				domain.DimensionAccuracy:     9,
				domain.DimensionClarity:      5,
				domain.DimensionRelevance: 5,
			},
		},
		{
			name:     "out of range clamped",
			response: "完整性评分: 12\n准确性评分: 7\n清晰度评分: 7\n相关性评分: 7",
			want: map[string]float64{
				domain.DimensionCompleteness: 10,
				domain.DimensionAccuracy:     7,
				domain.DimensionClarity:      7,
				domain.DimensionRelevance: 7,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDimensions(tt.response))
		})
	}
}
