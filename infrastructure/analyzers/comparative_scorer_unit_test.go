package analyzers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiterlabs/fuseval/internal/domain"
	"github.com/arbiterlabs/fuseval/internal/testutils"
)

func TestNewComparativeScorerUnit(t *testing.T) {
	oracle := testutils.NewMockOracle("mock-judge")

	tests := []struct {
		name        string
		unitName    string
		oracle      *testutils.MockOracle
		config      ComparativeScorerConfig
		expectError bool
	}{
		{
			name:     "valid defaults",
			unitName: "comparative_scorer",
			oracle:   oracle,
			config:   DefaultComparativeScorerConfig(),
		},
		{
			name:        "empty name",
			unitName:    "",
			oracle:      oracle,
			config:      DefaultComparativeScorerConfig(),
			expectError: true,
		},
		{
			name:        "missing max tokens",
			unitName:    "comparative_scorer",
			oracle:      oracle,
			config:      ComparativeScorerConfig{Temperature: 0.1},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit, err := NewComparativeScorerUnit(tt.unitName, tt.oracle, tt.config)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, unit.Validate())
		})
	}

	_, err := NewComparativeScorerUnit("comparative_scorer", nil, DefaultComparativeScorerConfig())
	assert.ErrorIs(t, err, ErrNilOracle)
}

func TestComparativeScorerUnit_Execute_WellSeparatedScores(t *testing.T) {
	oracle := testutils.NewMockOracle("mock-judge")
	oracle.AddResponse(testutils.MockResponse{
		Pattern:  "comparing answers",
		Response: "答案1: 9.0分\n答案2: 6.5分\n答案3: 7.8分\n答案4: 8.8分\n",
	})

	unit, err := NewComparativeScorerUnit("comparative_scorer", oracle, DefaultComparativeScorerConfig())
	require.NoError(t, err)

	candidates := []domain.Candidate{
		{ID: "c1", Model: "alpha", Content: "answer one", Succeeded: true},
		{ID: "c2", Model: "beta", Content: "answer two", Succeeded: true},
		{ID: "c3", Model: "gamma", Content: "answer three", Succeeded: true},
	}
	fused := &domain.Candidate{ID: "fused", Model: "fusion", Content: "fused answer"}

	result, err := unit.Execute(context.Background(), newAnalysisState("q", candidates, fused))
	require.NoError(t, err)

	scores, ok := domain.Get(result, domain.KeyComparativeScores)
	require.True(t, ok)
	require.Len(t, scores, 4, "fused answer scores alongside the candidates")

	// Spread 2.5 exceeds the threshold so the parsed scores survive as-is.
	assert.Equal(t, 9.0, scores["c1"])
	assert.Equal(t, 6.5, scores["c2"])
	assert.Equal(t, 7.8, scores["c3"])
	assert.Equal(t, 8.8, scores["fused"])

	usage := result.GetOracleUsage()
	assert.Equal(t, int64(1), usage.Calls)
	assert.Zero(t, usage.Fallbacks)
}

func TestComparativeScorerUnit_Execute_ForcedDifferentiation(t *testing.T) {
	oracle := testutils.NewMockOracle("mock-judge")
	oracle.AddResponse(testutils.MockResponse{
		Pattern:  "comparing answers",
		Response: "答案1: 7.2分\n答案2: 7.0分\n答案3: 7.1分\n",
	})

	unit, err := NewComparativeScorerUnit("comparative_scorer", oracle, DefaultComparativeScorerConfig())
	require.NoError(t, err)

	candidates := []domain.Candidate{
		{ID: "c1", Model: "alpha", Content: "answer one", Succeeded: true},
		{ID: "c2", Model: "beta", Content: "answer two", Succeeded: true},
		{ID: "c3", Model: "gamma", Content: "answer three", Succeeded: true},
	}

	result, err := unit.Execute(context.Background(), newAnalysisState("q", candidates, nil))
	require.NoError(t, err)

	scores, ok := domain.Get(result, domain.KeyComparativeScores)
	require.True(t, ok)

	// Spread 0.2 is below the threshold: the ladder replaces the clustered
	// values while keeping the oracle's ordering (c1 > c3 > c2).
	assert.Equal(t, 8.5, scores["c1"])
	assert.InDelta(t, 7.7, scores["c3"], 1e-9)
	assert.InDelta(t, 6.9, scores["c2"], 1e-9)
}

func TestComparativeScorerUnit_Execute_OracleFailure(t *testing.T) {
	oracle := testutils.NewMockOracle("mock-judge")
	oracle.FailWith(errors.New("judge offline"))

	unit, err := NewComparativeScorerUnit("comparative_scorer", oracle, DefaultComparativeScorerConfig())
	require.NoError(t, err)

	candidates := []domain.Candidate{
		{ID: "c1", Model: "alpha", Content: "answer one", Succeeded: true},
		{ID: "c2", Model: "beta", Content: "answer two", Succeeded: true},
		{ID: "c3", Model: "gamma", Content: "answer three", Succeeded: true},
	}

	result, err := unit.Execute(context.Background(), newAnalysisState("q", candidates, nil))
	require.NoError(t, err, "oracle failure degrades to defaults instead of failing the run")

	scores, ok := domain.Get(result, domain.KeyComparativeScores)
	require.True(t, ok)

	// Every answer gets the uniform default; no ordering is fabricated
	// from a judgment the oracle never made.
	assert.Equal(t, 7.0, scores["c1"])
	assert.Equal(t, 7.0, scores["c2"])
	assert.Equal(t, 7.0, scores["c3"])

	usage := result.GetOracleUsage()
	assert.Equal(t, int64(1), usage.Calls)
	assert.Equal(t, int64(1), usage.Fallbacks)
}

func TestComparativeScorerUnit_Execute_ContextCancelled(t *testing.T) {
	oracle := testutils.NewMockOracle("mock-judge")
	unit, err := NewComparativeScorerUnit("comparative_scorer", oracle, DefaultComparativeScorerConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	candidates := []domain.Candidate{{ID: "c1", Model: "alpha", Content: "answer", Succeeded: true}}
	_, err = unit.Execute(ctx, newAnalysisState("q", candidates, nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComparativeScorerUnit_parseScores(t *testing.T) {
	unit, err := NewComparativeScorerUnit("comparative_scorer", testutils.NewMockOracle("m"), DefaultComparativeScorerConfig())
	require.NoError(t, err)

	answers := func(ids ...string) []domain.Candidate {
		out := make([]domain.Candidate, len(ids))
		for i, id := range ids {
			out[i] = domain.Candidate{ID: id}
		}
		return out
	}

	tests := []struct {
		name     string
		response string
		answers  []domain.Candidate
		want     []float64
	}{
		{
			name:     "labeled lines",
			response: "答案1: 8分\n答案2: 6.5分",
			answers:  answers("c1", "c2"),
			want:     []float64{8, 6.5},
		},
		{
			name:     "id keyed lines out of order",
			response: "答案2(c2): 6分 - 一般\n答案1(c1): 9分 - 最佳",
			answers:  answers("c1", "c2"),
			want:     []float64{9, 6},
		},
		{
			name:     "missing answer defaults",
			response: "答案1: 9分",
			answers:  answers("c1", "c2", "c3"),
			want:     []float64{9, 7, 7},
		},
		{
			name:     "out of range clamped",
			response: "答案1: 15分\n答案2: 3分",
			answers:  answers("c1", "c2"),
			want:     []float64{10, 3},
		},
		{
			name:     "no scores at all",
			response: "all answers look equally good to me",
			answers:  answers("c1", "c2"),
			want:     []float64{7, 7},
		},
		{
			name:     "trailing commentary stays unattributed",
			response: "答案1(c1): 8分 - 结构完整\n答案2(c2): 6分 - 略浅\n总结: 两者相差2分",
			answers:  answers("c1", "c2"),
			want:     []float64{8, 6},
		},
		{
			name:     "skipped answer keeps the rest aligned",
			response: "答案1(c1): 8分\n答案3(c3): 6分",
			answers:  answers("c1", "c2", "c3"),
			want:     []float64{8, 7, 6},
		},
		{
			name:     "label digits do not bleed across answers",
			response: "答案10: 9分",
			answers:  answers("c1", "c2"),
			want:     []float64{7, 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := unit.parseScores(tt.response, tt.answers)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComparativeScorerUnit_PromptTruncatesAnswers(t *testing.T) {
	oracle := testutils.NewMockOracle("mock-judge")
	unit, err := NewComparativeScorerUnit("comparative_scorer", oracle, DefaultComparativeScorerConfig())
	require.NoError(t, err)

	candidates := []domain.Candidate{
		{ID: "c1", Model: "alpha", Content: strings.Repeat("a", 590) + "ENDMARKER", Succeeded: true},
		{ID: "c2", Model: "beta", Content: "short answer", Succeeded: true},
	}

	_, err = unit.Execute(context.Background(), newAnalysisState("q", candidates, nil))
	require.NoError(t, err)

	calls := oracle.Calls()
	require.Len(t, calls, 1)
	assert.NotContains(t, calls[0], "ENDMARKER", "long answers are cut before the prompt")
	assert.Contains(t, calls[0], strings.Repeat("a", 500)+"...")
	assert.Contains(t, calls[0], "short answer")
	assert.Contains(t, calls[0], "at least 1.5 points apart", "prompt demands a usable spread")
	assert.Contains(t, calls[0], "9-10 卓越", "prompt carries the scoring rubric")
}

func TestComparativeScorerUnit_UnmarshalParameters(t *testing.T) {
	unit, err := NewComparativeScorerUnit("comparative_scorer", testutils.NewMockOracle("m"), DefaultComparativeScorerConfig())
	require.NoError(t, err)

	params := yamlNode(t, `
max_tokens: 512
spread_threshold: 0.5
`)
	updated, err := unit.UnmarshalParameters(params)
	require.NoError(t, err)
	assert.Equal(t, 512, updated.config.MaxTokens)
	assert.Equal(t, 0.5, updated.config.SpreadThreshold)
	assert.Equal(t, DefaultComparativeScore, updated.config.DefaultScore, "unset fields keep defaults")

	_, err = unit.UnmarshalParameters(yamlNode(t, `unknown_field: true`))
	assert.Error(t, err, "strict decoding rejects unknown fields")
}
