package agent

import (
	"context"
	"fmt"

	"github.com/aristath/groverq/internal/quantum"
)

// Selector samples actions by measuring a state's amplitude program once.
type Selector struct {
	backend      Backend
	store        *WavefunctionStore
	actions      int
	policy       OutOfRangePolicy
	maxResamples int

	measurements int
	resamples    int
}

// NewSelector creates a selector over store using backend for measurements.
func NewSelector(backend Backend, store *WavefunctionStore, actions int, policy OutOfRangePolicy, maxResamples int) *Selector {
	return &Selector{
		backend:      backend,
		store:        store,
		actions:      actions,
		policy:       policy,
		maxResamples: maxResamples,
	}
}

// Select measures state s's program with a single shot and returns the
// decoded action. Out-of-range outcomes are resampled or rejected according
// to the policy. Errors are *BackendError or *InvalidActionError with State
// set; the caller fills in the episode and step.
func (sel *Selector) Select(ctx context.Context, s int) (int, error) {
	circuit := sel.store.Circuit(s)

	retries := 0
	if sel.policy == ResamplePolicy {
		retries = sel.maxResamples
	}

	var outcome int
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			sel.resamples++
		}

		var err error
		outcome, err = sel.measure(ctx, circuit)
		if err != nil {
			return 0, &BackendError{State: s, Err: err}
		}
		if outcome < sel.actions {
			return outcome, nil
		}
	}
	return 0, &InvalidActionError{State: s, Outcome: outcome, Actions: sel.actions}
}

// Measurements returns the number of backend requests issued.
func (sel *Selector) Measurements() int {
	return sel.measurements
}

// Resamples returns how many requests were repeats after an out-of-range outcome.
func (sel *Selector) Resamples() int {
	return sel.resamples
}

func (sel *Selector) measure(ctx context.Context, circuit *quantum.Circuit) (int, error) {
	sel.measurements++
	counts, err := sel.backend.Execute(ctx, circuit, 1)
	if err != nil {
		return 0, err
	}
	if len(counts) != 1 {
		return 0, fmt.Errorf("expected a single outcome, got %d distinct outcomes", len(counts))
	}
	for bits, n := range counts {
		if n != 1 {
			return 0, fmt.Errorf("expected one observation of %q, got %d", bits, n)
		}
		return quantum.ParseBitString(bits, circuit.Width())
	}
	return 0, fmt.Errorf("empty counts")
}
