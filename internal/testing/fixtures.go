package testing

import (
	"github.com/aristath/groverq/internal/agent"
	"github.com/aristath/groverq/internal/analytics"
	"github.com/aristath/groverq/internal/environment"
	"github.com/aristath/groverq/internal/runs"
)

// NewChainRequest returns a small, fast run request on a chain environment.
func NewChainRequest(length, epochs int) runs.Request {
	hp := agent.DefaultHyperparameters()
	hp.MaxEpochs = epochs
	hp.MaxSteps = 10
	hp.ProgressEvery = 0
	return runs.Request{
		Hyperparameters: hp,
		Environment: environment.Spec{
			Kind:        environment.KindChain,
			ChainLength: length,
		},
		Seed:    7,
		Trigger: runs.TriggerAPI,
	}
}

// NewHistoryFixture returns a three-episode history: a miss followed by two
// goals of decreasing length.
func NewHistoryFixture() *agent.History {
	return &agent.History{
		Steps:        []int{10, 3, 2},
		GoalReached:  []bool{false, true, true},
		Trajectories: [][]int{{0, 0, 0}, {1, 1, 2}, {1, 2}},
		Returns:      []float64{-100, 95, 98},
		MaxQDeltas:   []float64{1.5, 9.9, 0.005},
		Iterations:   []int{0, 0, 0},
	}
}

// NewArtifactsFixture returns learned state for a 3-state, 2-action problem.
func NewArtifactsFixture() *runs.Artifacts {
	return &runs.Artifacts{
		QTable:    [][]float64{{-1, 4.5}, {-0.5, 9.9}, {0, 0}},
		Lengths:   [][]int{{0, 0}, {0, 0}, {0, 0}},
		Saturated: [][]bool{{false, true}, {false, true}, {false, false}},
		Depths:    []int{0, 0, 0},
	}
}

// NewSummaryFixture summarises NewHistoryFixture the way the run service does.
func NewSummaryFixture() *runs.Summary {
	return &runs.Summary{
		Summary:        analytics.Summarize(NewHistoryFixture(), analytics.DefaultWindow, 0.01),
		States:         3,
		Actions:        2,
		Width:          1,
		MaxIterations:  0,
		SaturatedPairs: 2,
		Measurements:   15,
		GreedyPolicy:   []int{1, 1, 0},
	}
}
