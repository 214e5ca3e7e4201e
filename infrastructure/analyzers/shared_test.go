package analyzers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// yamlNode parses a YAML document into the node form units accept as
// override parameters.
func yamlNode(t *testing.T, doc string) yaml.Node {
	t.Helper()
	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(doc), &node))
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		return *node.Content[0]
	}
	return node
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "latin words case folded",
			content: "Go is Simple. GO is fast!",
			want:    []string{"go", "is", "simple", "go", "is", "fast"},
		},
		{
			name:    "han runs kept whole",
			content: "并发编程 is hard",
			want:    []string{"并发编程", "is", "hard"},
		},
		{
			name:    "punctuation only",
			content: "!!! ... ???",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenize(tt.content))
		})
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{name: "latin terminators", content: "First. Second! Third?", want: 3},
		{name: "cjk terminators", content: "第一句。第二句！", want: 2},
		{name: "trailing fragment", content: "One. Two", want: 2},
		{name: "empty", content: "", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, splitSentences(tt.content), tt.want)
		})
	}
}

func TestJaccard(t *testing.T) {
	a := tokenSet("the quick brown fox")
	b := tokenSet("the quick red fox")

	assert.InDelta(t, 3.0/5.0, jaccard(a, b), 1e-9)
	assert.Equal(t, 1.0, jaccard(a, a))
	assert.Equal(t, 0.0, jaccard(a, tokenSet("completely different words")))
	assert.Equal(t, 1.0, jaccard(nil, nil), "two empty texts count as identical")
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{
			name:     "fenced json block",
			response: "Here you go:\n```json\n{\"a\": 1}\n```\ndone",
			want:     `{"a": 1}`,
		},
		{
			name:     "bare braces with noise",
			response: `The result is {"a": {"b": 2}} as requested.`,
			want:     `{"a": {"b": 2}}`,
		},
		{
			name:     "braces inside strings",
			response: `{"text": "look: } escaped \" brace"}`,
			want:     `{"text": "look: } escaped \" brace"}`,
		},
		{
			name:     "no json",
			response: "plain prose only",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.response))
		})
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 5.0, clamp(5, 0, 10))
	assert.Equal(t, 0.0, clamp(-3, 0, 10))
	assert.Equal(t, 10.0, clamp(42, 0, 10))
}
