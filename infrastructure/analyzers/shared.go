// Package analyzers provides the analysis units that implement the
// ports.Unit interface for the fuseval evaluation engine. Deterministic
// units (basic metrics, content differentiation, consistency validation,
// ranking, fusion effectiveness, speed/quality) compute directly from
// state; judgment units (comparative scoring, dimensional evaluation,
// narrative profiling) delegate to a scoring oracle and fall back to
// documented defaults when the oracle fails.
package analyzers

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

// Input limits shared across units.
const (
	// MaxCandidates bounds the number of answers a single analysis accepts.
	MaxCandidates = 50

	// MaxContentLength bounds a single answer's size in bytes.
	MaxContentLength = 1 << 20
)

// Common errors returned by analysis units.
var (
	// ErrEmptyUnitName is returned when attempting to create a unit with an empty name.
	ErrEmptyUnitName = errors.New("unit name cannot be empty")

	// ErrNilOracle is returned when a judgment unit is created without an oracle.
	ErrNilOracle = errors.New("scoring oracle cannot be nil")

	// ErrMissingCandidates is returned when required candidates are absent from state.
	ErrMissingCandidates = errors.New("candidates not found in state")

	// ErrMissingScores is returned when a unit requires scores a prior
	// stage has not produced.
	ErrMissingScores = errors.New("required scores not found in state")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()

// foldCaser is a package-level Unicode case folder for performance.
// This avoids creating a new caser for each tokenization.
var foldCaser = cases.Fold()

// tokenPattern matches word tokens including CJK ideographs, which do not
// separate with whitespace.
var tokenPattern = regexp.MustCompile(`[\w\p{Han}]+`)

// sentencePattern splits text on terminal punctuation in both Latin and
// CJK forms.
var sentencePattern = regexp.MustCompile(`[.!?。！？]+`)

// tokenize splits text into case-folded tokens.
func tokenize(text string) []string {
	return tokenPattern.FindAllString(foldCaser.String(text), -1)
}

// tokenSet returns the distinct case-folded tokens of text.
func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokenize(text) {
		set[tok] = struct{}{}
	}
	return set
}

// splitSentences breaks text into non-empty sentences.
func splitSentences(text string) []string {
	parts := sentencePattern.Split(text, -1)
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// jaccard computes token-set overlap between two texts, 0-1.
// Two empty texts are considered identical.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// truncateRunes shortens s to at most n characters, marking the cut.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// clamp bounds v to the [lo, hi] interval.
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// extractJSON attempts to extract JSON from an oracle response that might
// contain additional text before or after the JSON object.
// It handles various response formats including markdown code blocks and
// text surrounding the JSON object.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	// First, try to extract from markdown code blocks.
	if strings.Contains(response, "```json") {
		start := strings.Index(response, "```json")
		if start != -1 {
			start += 7
			end := strings.Index(response[start:], "```")
			if end != -1 {
				return strings.TrimSpace(response[start : start+end])
			}
		}
	}

	// Also check for generic code blocks.
	if strings.Contains(response, "```") {
		start := strings.Index(response, "```")
		if start != -1 {
			start += 3
			// Skip any language identifier.
			newlineIdx := strings.Index(response[start:], "\n")
			if newlineIdx != -1 {
				start += newlineIdx + 1
			}
			end := strings.Index(response[start:], "```")
			if end != -1 {
				candidate := strings.TrimSpace(response[start : start+end])
				if strings.HasPrefix(candidate, "{") {
					return candidate
				}
			}
		}
	}

	// Look for JSON object boundaries.
	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	// Find the matching closing brace, handling nested objects and strings.
	braceCount := 0
	inString := false
	escapeNext := false

	for i := start; i < len(response); i++ {
		char := response[i]

		if escapeNext {
			escapeNext = false
			continue
		}

		if char == '\\' {
			escapeNext = true
			continue
		}

		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			switch char {
			case '{':
				braceCount++
			case '}':
				braceCount--
				if braceCount == 0 {
					return response[start : i+1]
				}
			}
		}
	}

	return ""
}

// decodeStrictParams is shared by every UnmarshalParameters implementation.
// It round-trips the node through a strict decoder so unknown fields are
// rejected instead of silently ignored.
func decodeStrictParams(params *yaml.Node, out any) error {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	if err := encoder.Encode(params); err != nil {
		return fmt.Errorf("failed to encode YAML node: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to close YAML encoder: %w", err)
	}

	decoder := yaml.NewDecoder(&buf)
	decoder.KnownFields(true)

	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("failed to decode parameters (check for typos): %w", err)
	}
	return nil
}
