// Package domain contains pure, dependency-free domain models and types
// for the fusion evaluation engine.
package domain

import (
	"fmt"
	"maps"
	"reflect"
	"time"
)

// Key represents a type-safe generic key for accessing values in State.
// The type parameter T ensures compile-time type safety when getting and
// setting values, eliminating the need for runtime type assertions.
type Key[T any] struct{ name string }

// NewKey creates a new Key with the specified name and type.
// This function is provided for creating keys outside of the domain package.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the underlying state key name, for use with the raw
// accessors.
func (k Key[T]) Name() string { return k.name }

// Predefined state keys used throughout the analysis pipeline.
// Each key is strongly typed to ensure type safety at compile time.
var (
	// KeyQuery stores the user query the candidates answered.
	KeyQuery = Key[string]{"query"}

	// KeyCandidates stores the candidate answers under analysis.
	KeyCandidates = Key[[]Candidate]{"candidates"}

	// KeyFused stores the fused answer synthesized from the candidates.
	KeyFused = Key[*Candidate]{"fused"}

	// KeyBasicMetrics stores surface-level text metrics keyed by candidate ID.
	KeyBasicMetrics = Key[map[string]BasicMetrics]{"basic_metrics"}

	// KeyComparativeScores stores the cross-candidate overall scores keyed
	// by candidate ID, produced by the comparative scoring pass.
	KeyComparativeScores = Key[map[string]float64]{"comparative_scores"}

	// KeyQualityMetrics stores the full per-candidate quality metrics keyed
	// by candidate ID, produced by the dimensional evaluation pass.
	KeyQualityMetrics = Key[map[string]QualityMetrics]{"quality_metrics"}

	// KeyContentAnalysis stores the content differentiation analysis.
	KeyContentAnalysis = Key[*ContentAnalysis]{"content_analysis"}

	// KeyConsistency stores the cross-signal consistency report.
	KeyConsistency = Key[*ConsistencyReport]{"consistency"}

	// KeyRanking stores the final candidate ranking.
	KeyRanking = Key[[]RankingEntry]{"ranking"}

	// KeyFusionReport stores the fusion effectiveness report.
	KeyFusionReport = Key[*FusionReport]{"fusion_report"}

	// KeySpeedQuality stores the speed versus quality tradeoff report.
	KeySpeedQuality = Key[*SpeedQualityReport]{"speed_quality"}

	// Execution context keys tracking metadata across pipeline stages.

	// KeyAnalysisID stores a unique identifier for this analysis run,
	// useful for tracing and correlation.
	KeyAnalysisID = Key[string]{"execution.analysis_id"}

	// KeyOracleCalls tracks cumulative scoring oracle calls made across
	// the whole analysis.
	KeyOracleCalls = Key[int64]{"execution.oracle_calls"}

	// KeyFallbacks tracks how many oracle failures were absorbed by
	// documented default behavior instead of failing the analysis.
	KeyFallbacks = Key[int64]{"execution.fallbacks"}
)

// deepCopyValue creates a deep copy of a value to ensure true immutability.
// It handles slices, maps, and other reference types that would otherwise
// allow external modification of State data.
func deepCopyValue(value any) any {
	if value == nil {
		return nil
	}

	// time.Time is immutable and can be returned directly.
	if val, ok := value.(time.Time); ok {
		return val
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice:
		newSlice := reflect.MakeSlice(v.Type(), v.Len(), v.Cap())
		for i := 0; i < v.Len(); i++ {
			newSlice.Index(i).Set(reflect.ValueOf(deepCopyValue(v.Index(i).Interface())))
		}
		return newSlice.Interface()

	case reflect.Map:
		newMap := reflect.MakeMap(v.Type())
		for _, key := range v.MapKeys() {
			copiedKey := deepCopyValue(key.Interface())
			copiedValue := deepCopyValue(v.MapIndex(key).Interface())
			newMap.SetMapIndex(reflect.ValueOf(copiedKey), reflect.ValueOf(copiedValue))
		}
		return newMap.Interface()

	case reflect.Ptr:
		if v.IsNil() {
			return v.Interface()
		}
		newPtr := reflect.New(v.Elem().Type())
		newPtr.Elem().Set(reflect.ValueOf(deepCopyValue(v.Elem().Interface())))
		return newPtr.Interface()

	case reflect.Struct:
		// This performs a shallow copy for unexported fields but deep copies
		// exported fields.
		newStruct := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			if newStruct.Field(i).CanSet() {
				newStruct.Field(i).Set(reflect.ValueOf(deepCopyValue(v.Field(i).Interface())))
			}
		}
		return newStruct.Interface()

	default:
		// Primitive types are returned as-is since they are copied by value.
		return value
	}
}

// State represents an immutable collection of analysis data that flows
// through the pipeline. It uses copy-on-write semantics to ensure
// thread-safety and prevent unintended mutations. State is the primary
// data structure for passing information between Units.
type State struct {
	// data holds the key-value pairs that make up the state.
	// It is unexported to maintain immutability guarantees.
	data map[string]any
}

// NewState creates a new empty State.
// The returned State is ready to use and can be safely shared across
// goroutines.
func NewState() State {
	return State{
		data: make(map[string]any),
	}
}

// Get retrieves a value from the State with compile-time type safety.
// It returns the value and a boolean indicating whether the key exists
// and contains a value of the correct type. The returned value is a deep
// copy to maintain immutability.
//
// Example:
//
//	query, ok := Get(state, KeyQuery)
//	if !ok {
//	    // handle missing value
//	}
//	// query is typed as string, no type assertion needed
func Get[T any](s State, key Key[T]) (T, bool) {
	var zero T
	value, exists := s.data[key.name]
	if !exists {
		return zero, false
	}

	copied := deepCopyValue(value)
	val, ok := copied.(T)
	return val, ok
}

// GetRaw is a method version of Get that uses a string key.
// For type safety, use the generic Get function instead.
func (s State) GetRaw(keyName string) (any, bool) {
	value, exists := s.data[keyName]
	if !exists {
		return nil, false
	}
	return deepCopyValue(value), true
}

// With creates a new State with the specified key-value pair added or
// updated. It implements copy-on-write semantics, returning a new State
// instance while leaving the original unchanged. This function is the
// primary way to add or update data in a State.
//
// Example:
//
//	newState := With(state, KeyQuery, "How do goroutines differ from threads?")
func With[T any](s State, key Key[T], value T) State {
	newData := maps.Clone(s.data)
	newData[key.name] = deepCopyValue(value)
	return State{data: newData}
}

// WithRaw is a method version of With that uses a string key and allows
// chaining. For type safety, use the generic With function instead.
func (s State) WithRaw(keyName string, value any) State {
	newData := maps.Clone(s.data)
	newData[keyName] = deepCopyValue(value)
	return State{data: newData}
}

// WithMultiple creates a new State with multiple key-value pairs added
// or updated. It is more efficient than chaining multiple With calls as
// it performs a single clone operation. The updates map uses string keys
// for flexibility when updating multiple values at once.
func (s State) WithMultiple(updates map[string]any) State {
	newData := maps.Clone(s.data)
	for k, v := range updates {
		newData[k] = deepCopyValue(v)
	}
	return State{data: newData}
}

// Keys returns all keys present in the State.
// The returned slice can be used to iterate over all stored values and
// is safe to modify without affecting the original State.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// String returns a string representation of the State for debugging purposes.
func (s State) String() string {
	return fmt.Sprintf("State%v", s.data)
}

// ExecutionContext contains metadata about the current analysis run that
// flows through the State across pipeline stages. It provides consistent
// access to execution metadata for middleware and observability.
type ExecutionContext struct {
	// AnalysisID is a unique identifier for this analysis run.
	AnalysisID string
}

// WithExecutionContext creates a new State with execution context metadata
// included, enabling proper tracking and observability. This method should
// be called before the first pipeline stage runs.
func (s State) WithExecutionContext(ctx ExecutionContext) State {
	updates := map[string]any{
		KeyAnalysisID.name:  ctx.AnalysisID,
		KeyOracleCalls.name: int64(0),
		KeyFallbacks.name:   int64(0),
	}
	return s.WithMultiple(updates)
}

// GetExecutionContext extracts execution context metadata from the State.
// It returns the execution context and a boolean indicating whether the
// required context fields are present and valid.
func (s State) GetExecutionContext() (ExecutionContext, bool) {
	analysisID, ok := Get(s, KeyAnalysisID)
	if !ok {
		return ExecutionContext{}, false
	}
	return ExecutionContext{AnalysisID: analysisID}, true
}

// OracleUsage tracks scoring oracle consumption during an analysis run.
type OracleUsage struct {
	// Calls is the cumulative number of oracle invocations.
	Calls int64

	// Fallbacks is the number of oracle failures absorbed by defaults.
	Fallbacks int64
}

// UpdateOracleUsage creates a new State with updated oracle consumption
// counters. It increments the existing values rather than replacing them.
func (s State) UpdateOracleUsage(calls, fallbacks int64) State {
	currentCalls, _ := Get(s, KeyOracleCalls)
	currentFallbacks, _ := Get(s, KeyFallbacks)

	updates := map[string]any{
		KeyOracleCalls.name: currentCalls + calls,
		KeyFallbacks.name:   currentFallbacks + fallbacks,
	}
	return s.WithMultiple(updates)
}

// GetOracleUsage retrieves the current oracle consumption from the State.
func (s State) GetOracleUsage() OracleUsage {
	calls, _ := Get(s, KeyOracleCalls)
	fallbacks, _ := Get(s, KeyFallbacks)

	return OracleUsage{
		Calls:     calls,
		Fallbacks: fallbacks,
	}
}
