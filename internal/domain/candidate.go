package domain

// Candidate represents one model's answer to the query under analysis.
type Candidate struct {
	// ID uniquely identifies this candidate within an analysis run.
	ID string `json:"id"`

	// Model names the upstream model that produced the answer.
	Model string `json:"model"`

	// Content contains the answer text.
	Content string `json:"content"`

	// ResponseTime is the wall-clock generation time in seconds.
	// It is zero for the fused answer, which is synthesized rather
	// than generated.
	ResponseTime float64 `json:"response_time"`

	// Succeeded reports whether the upstream call produced an answer.
	// Failed candidates are excluded from scoring.
	Succeeded bool `json:"succeeded"`
}

// BasicMetrics holds surface-level text measurements for one answer.
// All derived scores are on a 0-10 scale.
type BasicMetrics struct {
	// Length is the answer length in characters.
	Length int `json:"length"`

	// WordCount is the number of tokens in the answer.
	WordCount int `json:"word_count"`

	// SentenceCount is the number of sentences detected.
	SentenceCount int `json:"sentence_count"`

	// Readability scores sentence-length comfort, 0-10.
	Readability float64 `json:"readability"`

	// InfoDensity scores lexical variety, 0-10.
	InfoDensity float64 `json:"info_density"`
}

// DimensionScores holds the four judged quality dimensions, each 0-10.
type DimensionScores struct {
	Accuracy     float64 `json:"accuracy"`
	Completeness float64 `json:"completeness"`
	Clarity      float64 `json:"clarity"`
	Relevance    float64 `json:"relevance"`
}

// Dimension names used in maps, issue messages, and oracle prompts.
const (
	DimensionAccuracy     = "accuracy"
	DimensionCompleteness = "completeness"
	DimensionClarity      = "clarity"
	DimensionRelevance    = "relevance"
)

// Average returns the arithmetic mean of the four dimensions.
func (d DimensionScores) Average() float64 {
	return (d.Accuracy + d.Completeness + d.Clarity + d.Relevance) / 4
}

// Map returns the dimensions keyed by name.
// The result is a fresh map safe for the caller to modify.
func (d DimensionScores) Map() map[string]float64 {
	return map[string]float64{
		DimensionAccuracy:     d.Accuracy,
		DimensionCompleteness: d.Completeness,
		DimensionClarity:      d.Clarity,
		DimensionRelevance:    d.Relevance,
	}
}

// QualityMetrics aggregates everything measured about one candidate.
type QualityMetrics struct {
	// Overall is the calibrated 0-10 quality score.
	Overall float64 `json:"overall"`

	// Dimensions holds the anchored per-dimension scores.
	Dimensions DimensionScores `json:"dimensions"`

	// Basic holds the deterministic text metrics.
	Basic BasicMetrics `json:"basic"`
}
