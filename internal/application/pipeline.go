package application

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"sync"

	"github.com/arbiterlabs/fuseval/internal/domain"
	"github.com/arbiterlabs/fuseval/internal/ports"
)

// Pipeline is a sequential execution container that processes units in
// strict order, where each unit's output state becomes the input for the
// next unit in the sequence.
// Use Pipeline when units have data dependencies that must be respected,
// such as dimensional evaluation needing comparative scores.
type Pipeline struct {
	// name is the unique identifier for this pipeline within the
	// analysis topology.
	name string
	// units contains the ordered list of components that will execute
	// sequentially, with state flowing from one to the next.
	units []ports.Unit
	// nameSet tracks unit names for O(1) duplicate detection.
	nameSet map[string]struct{}
	// mu provides thread-safe access to the units slice during
	// concurrent read and write operations.
	mu sync.RWMutex
}

var _ ports.Unit = (*Pipeline)(nil)

// NewPipeline creates a new sequential execution pipeline with the
// specified name, ready to accept units. Units execute in the order they
// were added.
func NewPipeline(name string) *Pipeline {
	return &Pipeline{
		name:    name,
		units:   make([]ports.Unit, 0),
		nameSet: make(map[string]struct{}),
	}
}

// Name returns the unique identifier for this pipeline.
func (p *Pipeline) Name() string { return p.name }

// Add appends a unit to the end of this pipeline's execution sequence.
// Add returns an error if the unit is nil or a unit with the same name
// already exists in the pipeline. Add is safe for concurrent use with
// Execute.
func (p *Pipeline) Add(unit ports.Unit) error {
	if unit == nil {
		return fmt.Errorf("cannot add nil unit to pipeline %s", p.name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	name := unit.Name()
	if _, exists := p.nameSet[name]; exists {
		return fmt.Errorf("unit %s already exists in pipeline %s", name, p.name)
	}

	p.units = append(p.units, unit)
	p.nameSet[name] = struct{}{}
	return nil
}

// Execute processes all units sequentially, passing the output state from
// each unit as input to the next. Execute respects context cancellation
// and returns immediately if the context is cancelled between unit runs.
func (p *Pipeline) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	p.mu.RLock()
	units := make([]ports.Unit, len(p.units))
	copy(units, p.units)
	p.mu.RUnlock()

	current := state
	for _, unit := range units {
		select {
		case <-ctx.Done():
			return current, ctx.Err()
		default:
			next, err := unit.Execute(ctx, current)
			if err != nil {
				return current, fmt.Errorf("pipeline %s: execution failed at %s: %w", p.name, unit.Name(), err)
			}
			current = next
		}
	}
	return current, nil
}

// Validate checks every unit in the pipeline.
func (p *Pipeline) Validate() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, unit := range p.units {
		if err := unit.Validate(); err != nil {
			return fmt.Errorf("pipeline %s: %w", p.name, err)
		}
	}
	return nil
}

// Layer is a parallel execution container that runs independent units
// concurrently against the same input state, then merges the keys each
// branch produced back into a single state.
// Use Layer for units without data dependencies between them.
type Layer struct {
	// name is the unique identifier for this layer within the analysis
	// topology.
	name string
	// units contains the components that will execute concurrently, all
	// receiving the same input state.
	units []ports.Unit
	// nameSet tracks unit names for O(1) duplicate detection.
	nameSet map[string]struct{}
	// concurrencyLimit controls the maximum number of concurrent
	// executions. Defaults to runtime.NumCPU() * 2 if not set.
	concurrencyLimit int
	// mu provides thread-safe access to the units slice during
	// concurrent read and write operations.
	mu sync.RWMutex
}

var _ ports.Unit = (*Layer)(nil)

// NewLayer creates a new parallel execution layer with the specified
// name, ready to accept units that will run concurrently.
func NewLayer(name string) *Layer {
	return &Layer{
		name:             name,
		units:            make([]ports.Unit, 0),
		nameSet:          make(map[string]struct{}),
		concurrencyLimit: runtime.NumCPU() * 2,
	}
}

// Name returns the unique identifier for this layer.
func (l *Layer) Name() string { return l.name }

// Add includes a unit in this layer's parallel execution group.
// Add returns an error if the unit is nil or a unit with the same name
// already exists in the layer. Add is safe for concurrent use with
// Execute.
func (l *Layer) Add(unit ports.Unit) error {
	if unit == nil {
		return fmt.Errorf("cannot add nil unit to layer %s", l.name)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	name := unit.Name()
	if _, exists := l.nameSet[name]; exists {
		return fmt.Errorf("unit %s already exists in layer %s", name, l.name)
	}

	l.units = append(l.units, unit)
	l.nameSet[name] = struct{}{}
	return nil
}

// SetConcurrencyLimit configures the maximum number of units that can
// run concurrently within this layer. Zero or negative restores the
// default. SetConcurrencyLimit is safe for concurrent use.
func (l *Layer) SetConcurrencyLimit(limit int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.concurrencyLimit = limit
}

// Execute runs all units concurrently, each receiving the same input
// state, and merges the branch results additively: every key a branch
// added or changed lands in the merged state, and the oracle usage
// counters accumulate across branches instead of last-write-winning.
// Execute returns an aggregated error if any unit fails.
func (l *Layer) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	l.mu.RLock()
	units := make([]ports.Unit, len(l.units))
	copy(units, l.units)
	limit := l.concurrencyLimit
	if limit <= 0 {
		limit = runtime.NumCPU() * 2
	}
	l.mu.RUnlock()

	if len(units) == 0 {
		return state, nil
	}

	type result struct {
		state domain.State
		err   error
		name  string
	}

	results := make(chan result, len(units))
	semaphore := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for _, unit := range units {
		wg.Add(1)
		go func(u ports.Unit) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				return
			}

			next, err := u.Execute(ctx, state)

			select {
			case results <- result{state: next, err: err, name: u.Name()}:
			case <-ctx.Done():
			}
		}(unit)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var errs []error
	branches := make([]domain.State, 0, len(units))
	remaining := len(units)

	for remaining > 0 {
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case res, ok := <-results:
			if !ok {
				remaining = 0
				break
			}
			remaining--
			if res.err != nil {
				errs = append(errs, fmt.Errorf("unit %s: %w", res.name, res.err))
			} else {
				branches = append(branches, res.state)
			}
		}
	}

	if len(errs) > 0 {
		return state, fmt.Errorf("layer %s failed with %d errors: %w", l.name, len(errs), errors.Join(errs...))
	}

	return mergeBranches(state, branches), nil
}

// Validate checks every unit in the layer.
func (l *Layer) Validate() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, unit := range l.units {
		if err := unit.Validate(); err != nil {
			return fmt.Errorf("layer %s: %w", l.name, err)
		}
	}
	return nil
}

// mergeBranches folds parallel branch states back into the base state.
// Branch units write disjoint analysis keys, so a key a branch added or
// changed relative to the base simply lands in the merged state. The
// oracle usage counters are the exception: each branch increments them
// independently from the same base, so the merge sums the per-branch
// deltas to keep the totals accurate.
func mergeBranches(base domain.State, branches []domain.State) domain.State {
	if len(branches) == 0 {
		return base
	}

	counterKeys := map[string]struct{}{
		domain.KeyOracleCalls.Name(): {},
		domain.KeyFallbacks.Name():   {},
	}

	merged := base
	baseUsage := base.GetOracleUsage()
	var extraCalls, extraFallbacks int64

	for _, branch := range branches {
		usage := branch.GetOracleUsage()
		extraCalls += usage.Calls - baseUsage.Calls
		extraFallbacks += usage.Fallbacks - baseUsage.Fallbacks

		for _, key := range branch.Keys() {
			if _, isCounter := counterKeys[key]; isCounter {
				continue
			}
			value, _ := branch.GetRaw(key)
			if baseValue, ok := base.GetRaw(key); ok && reflect.DeepEqual(baseValue, value) {
				continue
			}
			merged = merged.WithRaw(key, value)
		}
	}

	return merged.UpdateOracleUsage(extraCalls, extraFallbacks)
}
