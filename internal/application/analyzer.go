package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arbiterlabs/fuseval/infrastructure/analyzers"
	"github.com/arbiterlabs/fuseval/internal/domain"
	"github.com/arbiterlabs/fuseval/internal/ports"
)

// AnalysisRequest carries one batch of answers to evaluate.
type AnalysisRequest struct {
	// Query is the question every candidate answered.
	Query string

	// Candidates are the answers under analysis. Failed candidates are
	// skipped; at least one successful candidate is required.
	Candidates []domain.Candidate

	// Fused is the answer synthesized from the candidates, optional.
	Fused *domain.Candidate
}

// Analyzer runs the full evaluation over a batch of candidate answers:
// deterministic text measurement and content differentiation in parallel
// with the two-stage oracle scoring pass, followed by consistency
// validation, ranking, and the fusion and speed/quality value analyses.
type Analyzer struct {
	// root is the composed execution topology.
	root *Pipeline
}

// NewAnalyzer builds the fixed analysis topology with every unit
// configured from cfg. Units without a configuration entry run with
// their defaults.
func NewAnalyzer(oracle ports.ScoringOracle, cfg AnalyzerConfig) (*Analyzer, error) {
	if oracle == nil {
		return nil, analyzers.ErrNilOracle
	}

	basic, err := NewBasicMetricsFromConfig(&cfg)
	if err != nil {
		return nil, err
	}
	content, err := NewContentAnalyzerFromConfig(oracle, &cfg)
	if err != nil {
		return nil, err
	}
	comparative, err := NewComparativeScorerFromConfig(oracle, &cfg)
	if err != nil {
		return nil, err
	}
	dimensional, err := NewDimensionalEvaluatorFromConfig(oracle, &cfg)
	if err != nil {
		return nil, err
	}
	consistency, err := NewConsistencyValidatorFromConfig(&cfg)
	if err != nil {
		return nil, err
	}
	ranking, err := analyzers.NewRankingUnit(UnitTypeRanking)
	if err != nil {
		return nil, err
	}
	fusion, err := NewFusionEffectivenessFromConfig(&cfg)
	if err != nil {
		return nil, err
	}
	speed, err := NewSpeedQualityFromConfig(&cfg)
	if err != nil {
		return nil, err
	}

	// Comparative scoring must precede dimensional evaluation; everything
	// else in the first stage is independent.
	scoring := NewPipeline("scoring")
	for _, u := range []ports.Unit{comparative, dimensional} {
		if err := scoring.Add(u); err != nil {
			return nil, err
		}
	}

	extraction := NewLayer("signal_extraction")
	for _, u := range []ports.Unit{basic, content, scoring} {
		if err := extraction.Add(u); err != nil {
			return nil, err
		}
	}

	value := NewLayer("value_analysis")
	for _, u := range []ports.Unit{fusion, speed} {
		if err := value.Add(u); err != nil {
			return nil, err
		}
	}

	root := NewPipeline("analysis")
	for _, u := range []ports.Unit{extraction, consistency, ranking, value} {
		if err := root.Add(u); err != nil {
			return nil, err
		}
	}

	analyzer := &Analyzer{root: root}
	if err := analyzer.root.Validate(); err != nil {
		return nil, err
	}
	return analyzer, nil
}

// Analyze evaluates one batch of answers and returns the complete report.
// Failed candidates are dropped before analysis; oracle failures inside
// the run degrade to documented defaults rather than failing the batch.
// Context cancellation aborts the run without a partial report.
func (a *Analyzer) Analyze(ctx context.Context, req AnalysisRequest) (*domain.EvaluationReport, error) {
	candidates, err := validateRequest(req)
	if err != nil {
		return nil, err
	}

	analysisID := uuid.NewString()

	state := domain.With(domain.NewState(), domain.KeyQuery, req.Query)
	state = domain.With(state, domain.KeyCandidates, candidates)
	if req.Fused != nil {
		state = domain.With(state, domain.KeyFused, req.Fused)
	}
	state = state.WithExecutionContext(domain.ExecutionContext{AnalysisID: analysisID})

	final, err := a.root.Execute(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("analysis %s: %w", analysisID, err)
	}

	return assembleReport(analysisID, req.Query, final), nil
}

// validateRequest checks the request and returns the successful
// candidates that will be analyzed.
func validateRequest(req AnalysisRequest) ([]domain.Candidate, error) {
	if req.Query == "" {
		return nil, domain.ErrEmptyQuery
	}
	if len(req.Candidates) == 0 {
		return nil, domain.ErrNoCandidates
	}
	if len(req.Candidates) > analyzers.MaxCandidates {
		return nil, fmt.Errorf("%d candidates exceeds the limit of %d", len(req.Candidates), analyzers.MaxCandidates)
	}

	candidates := make([]domain.Candidate, 0, len(req.Candidates))
	seen := make(map[string]struct{}, len(req.Candidates)+1)
	for _, c := range req.Candidates {
		if c.ID == "" {
			return nil, fmt.Errorf("candidate from model %s has no ID", c.Model)
		}
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("duplicate candidate ID %s", c.ID)
		}
		seen[c.ID] = struct{}{}

		if len(c.Content) > analyzers.MaxContentLength {
			return nil, fmt.Errorf("candidate %s content exceeds %d bytes", c.ID, analyzers.MaxContentLength)
		}
		if !c.Succeeded {
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return nil, domain.ErrNoCandidates
	}

	if req.Fused != nil {
		if req.Fused.ID == "" {
			return nil, fmt.Errorf("fused answer has no ID")
		}
		if _, dup := seen[req.Fused.ID]; dup {
			return nil, fmt.Errorf("fused answer ID %s collides with a candidate", req.Fused.ID)
		}
		if len(req.Fused.Content) > analyzers.MaxContentLength {
			return nil, fmt.Errorf("fused answer content exceeds %d bytes", analyzers.MaxContentLength)
		}
	}

	return candidates, nil
}

// assembleReport collects every analysis artifact from the final state
// into one report, folding the basic text metrics into the per-answer
// quality metrics.
func assembleReport(analysisID, query string, state domain.State) *domain.EvaluationReport {
	report := &domain.EvaluationReport{
		AnalysisID: analysisID,
		Query:      query,
		Timestamp:  time.Now().UTC(),
	}

	metrics, ok := domain.Get(state, domain.KeyQualityMetrics)
	if !ok {
		metrics = make(map[string]domain.QualityMetrics)
	}
	if basics, ok := domain.Get(state, domain.KeyBasicMetrics); ok {
		for id, b := range basics {
			m := metrics[id]
			m.Basic = b
			metrics[id] = m
		}
	}
	report.Metrics = metrics

	if content, ok := domain.Get(state, domain.KeyContentAnalysis); ok {
		report.Content = content
	}
	if consistency, ok := domain.Get(state, domain.KeyConsistency); ok {
		report.Consistency = consistency
		report.Stats.Corrections = len(consistency.Corrections)
	}
	if ranking, ok := domain.Get(state, domain.KeyRanking); ok {
		report.Ranking = ranking
	}
	if fusion, ok := domain.Get(state, domain.KeyFusionReport); ok {
		report.Fusion = fusion
	}
	if speed, ok := domain.Get(state, domain.KeySpeedQuality); ok {
		report.SpeedQuality = speed
	}

	usage := state.GetOracleUsage()
	report.Stats.OracleCalls = usage.Calls
	report.Stats.Fallbacks = usage.Fallbacks

	return report
}
