// Package runs stores, schedules and executes training runs.
package runs

import (
	"time"

	"github.com/aristath/groverq/internal/agent"
	"github.com/aristath/groverq/internal/analytics"
	"github.com/aristath/groverq/internal/environment"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Trigger records what started a run.
type Trigger string

const (
	TriggerAPI      Trigger = "api"
	TriggerSchedule Trigger = "schedule"
	TriggerStartup  Trigger = "startup"
)

// Request is everything needed to reproduce a run.
type Request struct {
	Hyperparameters agent.Hyperparameters `json:"hyperparameters" msgpack:"hyperparameters"`
	Environment     environment.Spec      `json:"environment" msgpack:"environment"`
	Seed            uint64                `json:"seed" msgpack:"seed"`
	Trigger         Trigger               `json:"trigger" msgpack:"trigger"`
}

// Validate checks the hyperparameters and environment.
func (r Request) Validate() error {
	if err := r.Hyperparameters.Validate(); err != nil {
		return err
	}
	return r.Environment.Validate()
}

// Summary is the stored outcome of a completed run.
type Summary struct {
	analytics.Summary

	States         int   `json:"states"`
	Actions        int   `json:"actions"`
	Width          int   `json:"width"`
	MaxIterations  int   `json:"max_iterations"`
	SaturatedPairs int   `json:"saturated_pairs"`
	Measurements   int   `json:"measurements"`
	Resamples      int   `json:"resamples"`
	GreedyPolicy   []int `json:"greedy_policy"`
}

// Run is one training run and its lifecycle timestamps.
type Run struct {
	ID         string     `json:"id"`
	Status     Status     `json:"status"`
	Request    Request    `json:"request"`
	Summary    *Summary   `json:"summary,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Artifacts is the learned state captured when a run completes.
type Artifacts struct {
	QTable    [][]float64 `json:"qtable" msgpack:"qtable"`
	Lengths   [][]int     `json:"lengths" msgpack:"lengths"`
	Saturated [][]bool    `json:"saturated" msgpack:"saturated"`
	Depths    []int       `json:"depths" msgpack:"depths"` // Grover iterations per state program
}

// CaptureArtifacts snapshots the learned state of a trained agent.
func CaptureArtifacts(a *agent.Agent) *Artifacts {
	states, actions := a.States(), a.Actions()
	art := &Artifacts{
		QTable:    a.QTable().Snapshot(),
		Lengths:   make([][]int, states),
		Saturated: make([][]bool, states),
		Depths:    make([]int, states),
	}
	sched := a.Scheduler()
	for s := 0; s < states; s++ {
		art.Lengths[s] = make([]int, actions)
		art.Saturated[s] = make([]bool, actions)
		for act := 0; act < actions; act++ {
			art.Lengths[s][act] = sched.LastLength(s, act)
			art.Saturated[s][act] = sched.Saturated(s, act)
		}
		art.Depths[s] = a.Wavefunctions().Circuit(s).Depth()
	}
	return art
}
