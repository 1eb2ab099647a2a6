package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/aristath/groverq/internal/agent"
	"github.com/aristath/groverq/internal/quantum"
)

type transitionKey struct {
	state  int
	action int
}

// ScriptedEnvironment is a deterministic environment driven by an explicit
// transition table. Unscripted (state, action) pairs leave the state unchanged
// with zero reward.
type ScriptedEnvironment struct {
	mu          sync.Mutex
	states      int
	actions     int
	start       int
	current     int
	transitions map[transitionKey]agent.StepResult
	resetErr    error
	stepErr     error

	Resets int
	Steps  int
	Taken  []int
}

// NewScriptedEnvironment creates an environment that resets to start.
func NewScriptedEnvironment(states, actions, start int) *ScriptedEnvironment {
	return &ScriptedEnvironment{
		states:      states,
		actions:     actions,
		start:       start,
		current:     start,
		transitions: make(map[transitionKey]agent.StepResult),
	}
}

// On scripts the result of taking action in state.
func (e *ScriptedEnvironment) On(state, action, next int, reward float64, done bool) *ScriptedEnvironment {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transitions[transitionKey{state, action}] = agent.StepResult{NextState: next, Reward: reward, Done: done}
	return e
}

// SetResetError makes Reset fail.
func (e *ScriptedEnvironment) SetResetError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetErr = err
}

// SetStepError makes Step fail.
func (e *ScriptedEnvironment) SetStepError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stepErr = err
}

// States returns the state count.
func (e *ScriptedEnvironment) States() int { return e.states }

// Actions returns the action count.
func (e *ScriptedEnvironment) Actions() int { return e.actions }

// Reset returns to the start state.
func (e *ScriptedEnvironment) Reset() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.resetErr != nil {
		return 0, e.resetErr
	}
	e.Resets++
	e.current = e.start
	return e.current, nil
}

// Step applies the scripted transition for the current state.
func (e *ScriptedEnvironment) Step(action int) (agent.StepResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stepErr != nil {
		return agent.StepResult{}, e.stepErr
	}
	e.Steps++
	e.Taken = append(e.Taken, action)

	result, ok := e.transitions[transitionKey{e.current, action}]
	if !ok {
		result = agent.StepResult{NextState: e.current}
	}
	e.current = result.NextState
	return result, nil
}

// FixedBackend returns the same single outcome for every request.
type FixedBackend struct {
	mu      sync.Mutex
	outcome string
	Calls   int
	Shots   []int
}

// NewFixedBackend creates a backend that always measures outcome.
func NewFixedBackend(outcome string) *FixedBackend {
	return &FixedBackend{outcome: outcome}
}

// Execute returns {outcome: shots}.
func (b *FixedBackend) Execute(ctx context.Context, circuit *quantum.Circuit, shots int) (quantum.Counts, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls++
	b.Shots = append(b.Shots, shots)
	return quantum.Counts{b.outcome: shots}, nil
}

// SequenceBackend returns outcomes in order, repeating the last one when the
// sequence is exhausted.
type SequenceBackend struct {
	mu       sync.Mutex
	outcomes []string
	Calls    int
}

// NewSequenceBackend creates a backend replaying outcomes.
func NewSequenceBackend(outcomes ...string) *SequenceBackend {
	return &SequenceBackend{outcomes: outcomes}
}

// Execute returns the next outcome in the sequence.
func (b *SequenceBackend) Execute(ctx context.Context, circuit *quantum.Circuit, shots int) (quantum.Counts, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.outcomes) == 0 {
		return nil, fmt.Errorf("no outcomes scripted")
	}
	idx := b.Calls
	if idx >= len(b.outcomes) {
		idx = len(b.outcomes) - 1
	}
	b.Calls++
	return quantum.Counts{b.outcomes[idx]: shots}, nil
}

// FailingBackend fails every request with err.
type FailingBackend struct {
	err   error
	Calls int
}

// NewFailingBackend creates a backend that always returns err.
func NewFailingBackend(err error) *FailingBackend {
	return &FailingBackend{err: err}
}

// Execute returns the configured error.
func (b *FailingBackend) Execute(ctx context.Context, circuit *quantum.Circuit, shots int) (quantum.Counts, error) {
	b.Calls++
	return nil, b.err
}

// CountsBackend returns a fixed counts map, used to exercise malformed responses.
type CountsBackend struct {
	counts quantum.Counts
}

// NewCountsBackend creates a backend returning counts verbatim.
func NewCountsBackend(counts quantum.Counts) *CountsBackend {
	return &CountsBackend{counts: counts}
}

// Execute returns the configured counts.
func (b *CountsBackend) Execute(ctx context.Context, circuit *quantum.Circuit, shots int) (quantum.Counts, error) {
	return b.counts, nil
}
