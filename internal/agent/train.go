package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Reward shaping constants.
const (
	NoOpPenalty = 10.0
	GoalBonus   = 99.0
	StepPenalty = 1.0
)

// EpisodeResult summarises one finished episode.
type EpisodeResult struct {
	Episode     int     `json:"episode" msgpack:"episode"`
	Steps       int     `json:"steps" msgpack:"steps"` // optimal steps when the goal was reached, MaxSteps otherwise
	GoalReached bool    `json:"goal_reached" msgpack:"goal_reached"`
	Trajectory  []int   `json:"trajectory" msgpack:"trajectory"`
	Return      float64 `json:"return" msgpack:"return"` // sum of shaped rewards
	MaxQDelta   float64 `json:"max_q_delta" msgpack:"max_q_delta"`
	Iterations  int     `json:"iterations" msgpack:"iterations"` // Grover iterations appended
	Transitions int     `json:"transitions" msgpack:"transitions"`
}

// History collects per-episode results as parallel sequences.
type History struct {
	Steps        []int     `json:"steps" msgpack:"steps"`
	GoalReached  []bool    `json:"goal_reached" msgpack:"goal_reached"`
	Trajectories [][]int   `json:"trajectories" msgpack:"trajectories"`
	Returns      []float64 `json:"returns" msgpack:"returns"`
	MaxQDeltas   []float64 `json:"max_q_deltas" msgpack:"max_q_deltas"`
	Iterations   []int     `json:"iterations" msgpack:"iterations"`
}

func newHistory(capacity int) *History {
	return &History{
		Steps:        make([]int, 0, capacity),
		GoalReached:  make([]bool, 0, capacity),
		Trajectories: make([][]int, 0, capacity),
		Returns:      make([]float64, 0, capacity),
		MaxQDeltas:   make([]float64, 0, capacity),
		Iterations:   make([]int, 0, capacity),
	}
}

func (h *History) record(r EpisodeResult) {
	h.Steps = append(h.Steps, r.Steps)
	h.GoalReached = append(h.GoalReached, r.GoalReached)
	h.Trajectories = append(h.Trajectories, r.Trajectory)
	h.Returns = append(h.Returns, r.Return)
	h.MaxQDeltas = append(h.MaxQDeltas, r.MaxQDelta)
	h.Iterations = append(h.Iterations, r.Iterations)
}

// Len returns the number of recorded episodes.
func (h *History) Len() int {
	return len(h.Steps)
}

// Goals returns how many episodes reached the goal.
func (h *History) Goals() int {
	n := 0
	for _, g := range h.GoalReached {
		if g {
			n++
		}
	}
	return n
}

// Converged reports whether the last episode changed no Q-value by eps or more.
func (h *History) Converged(eps float64) bool {
	if len(h.MaxQDeltas) == 0 {
		return false
	}
	return h.MaxQDeltas[len(h.MaxQDeltas)-1] < eps
}

// Shape applies the fixed reward-shaping rules to one transition and returns
// the shaped reward, the possibly forced done flag and whether the goal state
// S−1 was entered.
func Shape(state, next, goal int, reward float64, done bool) (float64, bool, bool) {
	switch {
	case next == state:
		return reward - NoOpPenalty, true, false
	case next == goal:
		return reward + GoalBonus, done, true
	case !done:
		return reward - StepPenalty, done, false
	default:
		return reward, done, false
	}
}

// Train runs MaxEpochs episodes and returns their history. Learning state is
// carried across episodes and across calls; only the episode-local state is
// reset. The first backend, environment or invalid-action error aborts the run.
func (a *Agent) Train(ctx context.Context) (*History, error) {
	history := newHistory(a.hp.MaxEpochs)

	for episode := 0; episode < a.hp.MaxEpochs; episode++ {
		result, err := a.runEpisode(ctx, episode)
		if err != nil {
			return history, err
		}
		history.record(result)

		if a.progress != nil {
			a.progress(result)
		}
		if a.hp.ProgressEvery > 0 && (episode+1)%a.hp.ProgressEvery == 0 {
			a.log.Info().
				Int("episode", episode+1).
				Int("max_epochs", a.hp.MaxEpochs).
				Int("goals", history.Goals()).
				Int("saturated_pairs", a.scheduler.SaturatedCount()).
				Bool("converged", history.Converged(a.hp.Eps)).
				Msg("Training progress")
		}
	}

	return history, nil
}

func (a *Agent) runEpisode(ctx context.Context, episode int) (EpisodeResult, error) {
	result := EpisodeResult{Episode: episode, Trajectory: make([]int, 0, a.hp.MaxSteps)}
	goal := a.states - 1
	optimalSteps := 0

	state, err := a.env.Reset()
	if err != nil {
		return result, &EnvironmentError{Episode: episode, Step: 0, Action: -1, Err: err}
	}
	if err := a.checkState(state); err != nil {
		return result, &EnvironmentError{Episode: episode, Step: 0, Action: -1, Err: err}
	}

	for step := 0; step < a.hp.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("training cancelled at episode %d step %d: %w", episode, step, err)
		}

		action, err := a.selector.Select(ctx, state)
		if err != nil {
			return result, withPosition(err, episode, step)
		}

		transition, err := a.env.Step(action)
		if err != nil {
			return result, &EnvironmentError{Episode: episode, Step: step, Action: action, Err: err}
		}
		next := transition.NextState
		if err := a.checkState(next); err != nil {
			return result, &EnvironmentError{Episode: episode, Step: step, Action: action, Err: err}
		}

		reward, done, reachedGoal := Shape(state, next, goal, transition.Reward, transition.Done)
		if reachedGoal {
			optimalSteps = step + 1
			result.GoalReached = true
		}

		delta := a.qtable.Update(state, action, reward, next, a.hp.Alpha, a.hp.Gamma)
		result.MaxQDelta = math.Max(result.MaxQDelta, delta)

		raw := a.scheduler.Length(a.hp.K, reward, a.qtable.MaxValue(next))
		applied := a.scheduler.Step(state, action, raw)
		if err := a.store.Append(state, a.operators.Operator(action), applied); err != nil {
			return result, err
		}

		result.Trajectory = append(result.Trajectory, next)
		result.Return += reward
		result.Iterations += applied
		result.Transitions++

		a.log.Debug().
			Int("episode", episode).
			Int("step", step).
			Int("state", state).
			Int("action", action).
			Int("next_state", next).
			Float64("reward", reward).
			Int("grover_length", applied).
			Bool("done", done).
			Msg("Step")

		if done {
			break
		}
		state = next
	}

	result.Steps = a.hp.MaxSteps
	if result.GoalReached {
		result.Steps = optimalSteps
	}
	return result, nil
}

func (a *Agent) checkState(s int) error {
	if s < 0 || s >= a.states {
		return fmt.Errorf("state %d outside [0, %d)", s, a.states)
	}
	return nil
}

// withPosition fills the episode and step into selector errors.
func withPosition(err error, episode, step int) error {
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		backendErr.Episode, backendErr.Step = episode, step
		return backendErr
	}
	var invalidErr *InvalidActionError
	if errors.As(err, &invalidErr) {
		invalidErr.Episode, invalidErr.Step = episode, step
		return invalidErr
	}
	return err
}
