// Package agent implements the hybrid Grover Q-learning agent.
//
// A classical Q-table supplies value estimates. After every step the shaped
// reward plus the best next-state value is converted into a number of Grover
// iterations, which are appended to the amplitude program of the state just
// left, amplifying the chosen action. Actions are sampled by measuring the
// current state's program once.
//
// An Agent is single-threaded: one episode and one step at a time, with the
// backend measurement as the only blocking call.
package agent

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/groverq/internal/quantum"
)

// StepResult is the outcome of one environment transition.
type StepResult struct {
	NextState int
	Reward    float64
	Done      bool
}

// Environment is the finite, integer-indexed MDP the agent trains on.
type Environment interface {
	States() int
	Actions() int
	Reset() (int, error)
	Step(action int) (StepResult, error)
}

// Backend executes amplitude programs. The agent only requests single shots.
type Backend interface {
	Execute(ctx context.Context, circuit *quantum.Circuit, shots int) (quantum.Counts, error)
}

// ProgressFunc receives every finished episode.
type ProgressFunc func(EpisodeResult)

// Option customises an Agent.
type Option func(*Agent)

// WithLogger sets the agent's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(a *Agent) {
		a.log = log.With().Str("component", "agent").Logger()
	}
}

// WithProgress registers a callback invoked after each episode.
func WithProgress(fn ProgressFunc) Option {
	return func(a *Agent) {
		a.progress = fn
	}
}

// Agent holds all learning state for one training run: the Q-table, the
// per-state amplitude programs, the operator bank and the length scheduler,
// together with the injected environment and backend.
type Agent struct {
	env     Environment
	hp      Hyperparameters
	states  int
	actions int
	width   int

	qtable    *QTable
	operators *OperatorBank
	store     *WavefunctionStore
	scheduler *LengthScheduler
	selector  *Selector

	log      zerolog.Logger
	progress ProgressFunc
}

// New builds an agent for env, measuring through backend.
func New(env Environment, backend Backend, hp Hyperparameters, opts ...Option) (*Agent, error) {
	if env == nil {
		return nil, &ConfigurationError{Field: "environment", Reason: "must not be nil"}
	}
	if backend == nil {
		return nil, &ConfigurationError{Field: "backend", Reason: "must not be nil"}
	}

	states, actions := env.States(), env.Actions()
	if states <= 0 {
		return nil, &ConfigurationError{Field: "states", Reason: "must be positive"}
	}
	if actions <= 0 {
		return nil, &ConfigurationError{Field: "actions", Reason: "must be positive"}
	}
	width := quantum.RegisterWidth(actions)
	if width == 0 && actions > 1 {
		return nil, &ConfigurationError{Field: "width", Reason: "zero-qubit register cannot encode multiple actions"}
	}
	if err := hp.Validate(); err != nil {
		return nil, err
	}

	operators, err := NewOperatorBank(actions, width)
	if err != nil {
		return nil, err
	}
	store, err := NewWavefunctionStore(states, width)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		env:       env,
		hp:        hp,
		states:    states,
		actions:   actions,
		width:     width,
		qtable:    NewQTable(states, actions),
		operators: operators,
		store:     store,
		scheduler: NewLengthScheduler(states, actions, quantum.MaxIterations(width)),
		selector:  NewSelector(backend, store, actions, hp.OutOfRange, hp.MaxResamples),
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// States returns S.
func (a *Agent) States() int { return a.states }

// Actions returns A.
func (a *Agent) Actions() int { return a.actions }

// Width returns the register width n.
func (a *Agent) Width() int { return a.width }

// MaxIterations returns M.
func (a *Agent) MaxIterations() int { return a.scheduler.MaxIterations() }

// Hyperparameters returns the run configuration.
func (a *Agent) Hyperparameters() Hyperparameters { return a.hp }

// QTable returns the value table.
func (a *Agent) QTable() *QTable { return a.qtable }

// Operators returns the operator bank.
func (a *Agent) Operators() *OperatorBank { return a.operators }

// Wavefunctions returns the per-state program store.
func (a *Agent) Wavefunctions() *WavefunctionStore { return a.store }

// Scheduler returns the length scheduler.
func (a *Agent) Scheduler() *LengthScheduler { return a.scheduler }

// Selector returns the action selector.
func (a *Agent) Selector() *Selector { return a.selector }

// GreedyPolicy returns argmax Q for every state.
func (a *Agent) GreedyPolicy() []int {
	policy := make([]int, a.states)
	for s := range policy {
		policy[s] = a.qtable.Greedy(s)
	}
	return policy
}
