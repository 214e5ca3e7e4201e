package domain

import (
	"time"
)

// StructurePatterns describes the formatting features detected in an answer.
type StructurePatterns struct {
	// ListItems counts bulleted or numbered list lines.
	ListItems int `json:"list_items"`

	// Headers counts markdown heading lines.
	Headers int `json:"headers"`

	// CodeFences counts fenced code blocks.
	CodeFences int `json:"code_fences"`

	// Paragraphs counts blank-line separated text blocks.
	Paragraphs int `json:"paragraphs"`

	// AvgParagraphLength is the mean character length of the paragraphs.
	AvgParagraphLength float64 `json:"avg_paragraph_length"`

	// HasStructuredFormat reports whether the answer uses explicit
	// structure (lists or headers).
	HasStructuredFormat bool `json:"has_structured_format"`
}

// NarrativeProfile captures the oracle's qualitative read on one candidate.
type NarrativeProfile struct {
	// ContentStyle characterizes the writing style in a phrase.
	ContentStyle string `json:"content_style"`

	// ApproachDepth characterizes how deeply the answer treats the topic.
	ApproachDepth string `json:"approach_depth"`

	// UniqueContributions lists content found in this answer and no other.
	UniqueContributions []string `json:"unique_contributions"`

	// ComparativeAdvantage states where this answer beats the others.
	ComparativeAdvantage string `json:"comparative_advantage"`

	// ComparativeWeakness states where this answer trails the others.
	ComparativeWeakness string `json:"comparative_weakness"`

	// BestUseScenarios lists situations where this answer is the best pick.
	BestUseScenarios []string `json:"best_use_scenarios"`

	// SignatureCharacteristics names the traits that identify this answer.
	SignatureCharacteristics string `json:"signature_characteristics"`
}

// ContentAnalysis describes how the answers, fused included, differ from
// each other. All maps are keyed by answer ID.
type ContentAnalysis struct {
	// Similarity is the pairwise token-overlap matrix over candidates and
	// the fused answer, values 0-1. Similarity[a][b] equals Similarity[b][a].
	Similarity map[string]map[string]float64 `json:"similarity"`

	// AverageSimilarity is the mean over the distinct Similarity pairs.
	AverageSimilarity float64 `json:"average_similarity"`

	// Uniqueness is the share of each answer's tokens appearing in no
	// other candidate, values 0-1. The fused answer's uniqueness is
	// measured against the union of all candidates.
	Uniqueness map[string]float64 `json:"uniqueness"`

	// Structures holds the detected formatting features per candidate.
	Structures map[string]StructurePatterns `json:"structures"`

	// Profiles holds the oracle-backed narrative profiles per candidate.
	// Empty when the oracle was unavailable.
	Profiles map[string]NarrativeProfile `json:"profiles"`
}

// Severity classifies how seriously a consistency issue undermines the
// analysis.
type Severity string

const (
	// SeverityCritical marks issues that invalidate scores until corrected.
	SeverityCritical Severity = "critical"

	// SeverityWarning marks issues worth surfacing that do not require
	// correction.
	SeverityWarning Severity = "warning"
)

// Consistency issue categories.
const (
	IssueOverallDimensionDivergence = "overall_dimension_divergence"
	IssueExtremeDimension           = "extreme_dimension"
	IssueHomogeneousScores          = "homogeneous_scores"
	IssueFusionUnderperformance     = "fusion_underperformance"
	IssueFusionOverperformance      = "fusion_overperformance"
	IssueHomogeneousStrengths       = "homogeneous_strengths"
	IssueStrengthScoreMismatch      = "strength_score_mismatch"
	IssueUniquenessScoreMismatch    = "uniqueness_score_mismatch"
)

// ConsistencyIssue is one cross-signal contradiction found by validation.
type ConsistencyIssue struct {
	// Severity is critical or warning.
	Severity Severity `json:"severity"`

	// Category is one of the Issue* constants.
	Category string `json:"category"`

	// CandidateID names the affected candidate, empty for batch-level
	// issues such as homogeneous scoring.
	CandidateID string `json:"candidate_id,omitempty"`

	// Message is a human-readable description of the contradiction.
	Message string `json:"message"`
}

// ScoreCorrection records an adjustment validation applied to a score.
type ScoreCorrection struct {
	// CandidateID names the corrected candidate.
	CandidateID string `json:"candidate_id"`

	// Original is the score before correction.
	Original float64 `json:"original"`

	// Corrected is the score after correction.
	Corrected float64 `json:"corrected"`

	// Reason explains why the correction was applied.
	Reason string `json:"reason"`
}

// ConsistencyReport is the outcome of cross-signal validation.
type ConsistencyReport struct {
	// Issues lists every contradiction found, worst first.
	Issues []ConsistencyIssue `json:"issues"`

	// Corrections lists the score adjustments that were applied.
	Corrections []ScoreCorrection `json:"corrections,omitempty"`

	// IsConsistent is true when no critical issue was found.
	IsConsistent bool `json:"is_consistent"`
}

// RankingEntry is one row of the final ranking. The fused answer is
// ranked alongside the candidates and marked with IsFusion.
type RankingEntry struct {
	// CandidateID identifies the ranked answer.
	CandidateID string `json:"candidate_id"`

	// Model names the upstream model for display.
	Model string `json:"model"`

	// Rank is the competition rank (ties share a rank, the next distinct
	// score takes its positional index plus one).
	Rank int `json:"rank"`

	// Overall is the calibrated quality score used for ordering.
	Overall float64 `json:"overall"`

	// Dimensions holds the per-dimension scores for the entry.
	Dimensions DimensionScores `json:"dimensions"`

	// CharCount is the answer length in characters.
	CharCount int `json:"char_count"`

	// IsFusion marks the fused answer's row.
	IsFusion bool `json:"is_fusion"`
}

// FusionScoreBreakdown itemizes the fusion value score components.
type FusionScoreBreakdown struct {
	// Quality rewards the fused answer's lead over the candidate average,
	// up to 40 points.
	Quality float64 `json:"quality"`

	// Integration rewards novel additions beyond any single candidate,
	// up to 30 points.
	Integration float64 `json:"integration"`

	// Consistency rewards the fused answer holding up against the best
	// candidate, up to 15 points.
	Consistency float64 `json:"consistency"`

	// Comprehensiveness rewards per-dimension gains over the candidate
	// average, up to 15 points.
	Comprehensiveness float64 `json:"comprehensiveness"`
}

// Fusion value levels ordered from best to worst.
const (
	FusionLevelExceptional = "exceptional"
	FusionLevelHigh        = "high"
	FusionLevelModerate    = "moderate"
	FusionLevelLow         = "low"
	FusionLevelMinimal     = "minimal"
)

// Fusion significance tiers ordered from best to worst.
const (
	SignificanceHighlySignificant = "highly_significant"
	SignificanceSignificant       = "significant"
	SignificanceModerate          = "moderate"
	SignificanceComparable        = "comparable"
	SignificanceSlightlyBelow     = "slightly_below"
	SignificanceBelow             = "below"
)

// FusionReport measures whether fusing the candidates added value.
type FusionReport struct {
	// ValueScore is the 0-100 composite fusion value.
	ValueScore float64 `json:"value_score"`

	// Level buckets ValueScore into one of the FusionLevel* constants.
	Level string `json:"level"`

	// Significance tiers VsAverage into a Significance* constant.
	Significance string `json:"significance"`

	// VsAverage is the fused overall minus the candidate average.
	VsAverage float64 `json:"vs_average"`

	// VsMax is the fused overall minus the best candidate overall.
	VsMax float64 `json:"vs_max"`

	// DimensionGains holds the fused-minus-average delta per dimension.
	DimensionGains map[string]float64 `json:"dimension_gains"`

	// IntegrationAdditions counts structural elements the fused answer
	// carries beyond the richest candidate.
	IntegrationAdditions int `json:"integration_additions"`

	// Breakdown itemizes how ValueScore was earned.
	Breakdown FusionScoreBreakdown `json:"breakdown"`

	// Recommendations suggests fixes for dimensions where the fused
	// answer lost ground, empty when nothing regressed.
	Recommendations []string `json:"recommendations,omitempty"`

	// Summary states the fusion outcome in one sentence, citing the most
	// improved dimension when there is one.
	Summary string `json:"summary"`
}

// Speed/quality categories.
const (
	CategoryFast     = "fast"
	CategoryQuality  = "quality"
	CategoryBalanced = "balanced"
)

// Rank correlation labels between the speed and quality orderings.
const (
	CorrelationPositive = "positive"
	CorrelationWeak     = "weak"
	CorrelationNegative = "negative"
)

// SpeedQualityEntry describes one candidate's position in the speed
// versus quality tradeoff.
type SpeedQualityEntry struct {
	// CandidateID identifies the candidate.
	CandidateID string `json:"candidate_id"`

	// Model names the upstream model for display.
	Model string `json:"model"`

	// ResponseTime is the generation time in seconds.
	ResponseTime float64 `json:"response_time"`

	// Quality is the calibrated overall score.
	Quality float64 `json:"quality"`

	// Efficiency is quality divided by response time, zero when the
	// response time is unknown.
	Efficiency float64 `json:"efficiency"`

	// Category is fast, quality, or balanced.
	Category string `json:"category"`
}

// SpeedQualitySelection singles out one candidate for a tradeoff axis.
type SpeedQualitySelection struct {
	// CandidateID identifies the selected candidate.
	CandidateID string `json:"candidate_id"`

	// ResponseTime is the candidate's generation time in seconds.
	ResponseTime float64 `json:"response_time"`

	// QualityScore is the candidate's calibrated overall score.
	QualityScore float64 `json:"quality_score"`

	// EfficiencyScore is quality divided by response time.
	EfficiencyScore float64 `json:"efficiency_score"`
}

// SpeedQualityCategories groups candidate IDs by tradeoff category.
type SpeedQualityCategories struct {
	// Fast lists candidates that answered quickly at modest quality.
	Fast []string `json:"fast"`

	// Quality lists candidates that answered well but slowly.
	Quality []string `json:"quality"`

	// Balanced lists candidates without a pronounced tradeoff.
	Balanced []string `json:"balanced"`
}

// SpeedQualityReport relates response times to quality outcomes.
type SpeedQualityReport struct {
	// Entries holds the per-candidate tradeoff rows.
	Entries []SpeedQualityEntry `json:"entries"`

	// Fastest is the candidate with the lowest response time.
	Fastest *SpeedQualitySelection `json:"fastest,omitempty"`

	// HighestQuality is the candidate with the best overall score.
	HighestQuality *SpeedQualitySelection `json:"highest_quality,omitempty"`

	// MostEfficient is the candidate with the best quality per second.
	MostEfficient *SpeedQualitySelection `json:"most_efficient,omitempty"`

	// Categories groups candidate IDs by tradeoff category.
	Categories SpeedQualityCategories `json:"categories"`

	// RankSimilarity measures agreement between the fastest-first and
	// best-first orderings, 0-1.
	RankSimilarity float64 `json:"rank_similarity"`

	// Correlation buckets RankSimilarity into positive, weak, or negative.
	Correlation string `json:"correlation"`

	// Assessment summarizes the tradeoff in prose.
	Assessment string `json:"assessment"`

	// Recommendation suggests a selection strategy when the tradeoff is
	// extreme, empty otherwise.
	Recommendation string `json:"recommendation,omitempty"`
}

// AnalysisStats counts the oracle traffic and interventions behind a report.
type AnalysisStats struct {
	// OracleCalls is the number of scoring oracle invocations made.
	OracleCalls int64 `json:"oracle_calls"`

	// Fallbacks is the number of oracle failures absorbed by defaults.
	Fallbacks int64 `json:"fallbacks"`

	// Corrections is the number of score corrections validation applied.
	Corrections int `json:"corrections"`
}

// EvaluationReport is the complete outcome of one analysis run.
type EvaluationReport struct {
	// AnalysisID uniquely identifies this run (a UUID).
	AnalysisID string `json:"analysis_id"`

	// Query is the question the candidates answered.
	Query string `json:"query"`

	// Metrics holds the per-candidate quality metrics keyed by candidate
	// ID, including the fused answer.
	Metrics map[string]QualityMetrics `json:"metrics"`

	// Content holds the content differentiation analysis.
	Content *ContentAnalysis `json:"content,omitempty"`

	// Consistency holds the cross-signal validation outcome.
	Consistency *ConsistencyReport `json:"consistency,omitempty"`

	// Ranking orders the candidates best first.
	Ranking []RankingEntry `json:"ranking"`

	// Fusion measures the value added by the fused answer.
	Fusion *FusionReport `json:"fusion,omitempty"`

	// SpeedQuality relates response times to quality outcomes.
	SpeedQuality *SpeedQualityReport `json:"speed_quality,omitempty"`

	// Stats counts the oracle traffic behind this report.
	Stats AnalysisStats `json:"stats"`

	// Timestamp records when the report was produced.
	Timestamp time.Time `json:"timestamp"`
}
