package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arbiterlabs/fuseval/internal/ports"
)

// Selector picks which catalog models should answer a query. It asks
// the oracle to match query intent against capability profiles and
// degrades to a keyword heuristic when the oracle call fails.
type Selector struct {
	catalog *Catalog
	oracle  ports.ScoringOracle
	maxPick int
}

// DefaultMaxSelection caps how many models a selection returns.
const DefaultMaxSelection = 3

// NewSelector builds a selector over the catalog. The oracle may be
// nil, in which case selection is purely heuristic.
func NewSelector(catalog *Catalog, oracle ports.ScoringOracle) (*Selector, error) {
	if catalog == nil {
		return nil, fmt.Errorf("selector requires a catalog")
	}
	return &Selector{
		catalog: catalog,
		oracle:  oracle,
		maxPick: DefaultMaxSelection,
	}, nil
}

// Selection reports the chosen models and how the choice was made.
type Selection struct {
	// Models holds the chosen model identifiers in preference order.
	Models []string

	// Heuristic is true when the oracle was skipped or failed and
	// keyword matching produced the result.
	Heuristic bool

	// Category is the query category the heuristic inferred. Empty for
	// oracle-driven selections.
	Category string
}

// Select chooses up to DefaultMaxSelection models for the query.
func (s *Selector) Select(ctx context.Context, query string) (Selection, error) {
	if strings.TrimSpace(query) == "" {
		return Selection{}, fmt.Errorf("query must not be empty")
	}

	if s.oracle != nil {
		models, err := s.selectWithOracle(ctx, query)
		if err == nil {
			return Selection{Models: models}, nil
		}
		if ctx.Err() != nil {
			return Selection{}, ctx.Err()
		}
	}

	models, category := s.selectHeuristic(query)
	return Selection{Models: models, Heuristic: true, Category: category}, nil
}

// selectionResponse is the JSON shape the oracle is asked to produce.
type selectionResponse struct {
	Models []string `json:"models"`
}

func (s *Selector) selectWithOracle(ctx context.Context, query string) ([]string, error) {
	prompt := s.buildPrompt(query)
	raw, err := s.oracle.Complete(ctx, prompt, map[string]any{
		"temperature": 0.0,
		"max_tokens":  200,
	})
	if err != nil {
		return nil, fmt.Errorf("selection request failed: %w", err)
	}

	var resp selectionResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse selection response: %w", err)
	}

	var models []string
	for _, model := range resp.Models {
		if _, ok := s.catalog.Lookup(model); !ok {
			continue
		}
		if containsString(models, model) {
			continue
		}
		models = append(models, model)
		if len(models) == s.maxPick {
			break
		}
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("selection response named no known models")
	}
	return models, nil
}

func (s *Selector) buildPrompt(query string) string {
	var sb strings.Builder
	sb.WriteString("Select up to ")
	fmt.Fprintf(&sb, "%d", s.maxPick)
	sb.WriteString(" models best suited to answer the query below.\n\n")
	sb.WriteString("Available models:\n")
	for _, entry := range s.catalog.entries {
		fmt.Fprintf(&sb, "- %s: strengths=%s speed=%s cost=%s",
			entry.Model, strings.Join(entry.Strengths, ","), entry.Speed, entry.Cost)
		if entry.Description != "" {
			fmt.Fprintf(&sb, " (%s)", entry.Description)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nQuery: ")
	sb.WriteString(query)
	sb.WriteString("\n\nRespond with JSON only: {\"models\": [\"...\"]}")
	return sb.String()
}

// categoryKeywords drives the heuristic fallback. Order matters: the
// first category with a keyword hit wins.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"code", []string{"code", "function", "bug", "compile", "goroutine", "implement", "debug", "api"}},
	{"reasoning", []string{"why", "explain", "compare", "tradeoff", "analyze", "prove", "design"}},
	{"creative", []string{"write", "story", "poem", "draft", "creative", "brainstorm"}},
	{"summarization", []string{"summarize", "summary", "tldr", "condense", "shorten"}},
	{"factual", []string{"what is", "who", "when", "where", "define", "list"}},
}

func (s *Selector) selectHeuristic(query string) ([]string, string) {
	lowered := strings.ToLower(query)

	category := "factual"
	for _, candidate := range categoryKeywords {
		if containsAny(lowered, candidate.keywords) {
			category = candidate.category
			break
		}
	}

	var models []string
	for _, entry := range s.catalog.WithStrength(category) {
		models = append(models, entry.Model)
		if len(models) == s.maxPick {
			break
		}
	}
	if len(models) == 0 {
		for _, entry := range s.catalog.entries {
			models = append(models, entry.Model)
			if len(models) == s.maxPick {
				break
			}
		}
	}
	return models, category
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

// extractJSON strips markdown fences and surrounding prose so that a
// chatty oracle response still parses.
func extractJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return trimmed[start : end+1]
		}
	}
	return trimmed
}
