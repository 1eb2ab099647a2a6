package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/groverq/internal/agent"
)

func TestMovingAverage(t *testing.T) {
	assert.InDeltaSlice(t, []float64{1.5, 2.5, 3.5}, MovingAverage([]float64{1, 2, 3, 4}, 2), 1e-12)
	assert.Empty(t, MovingAverage([]float64{1}, 3))
	assert.Empty(t, MovingAverage([]float64{1, 2}, 0))
}

func TestLatestSMA(t *testing.T) {
	v := LatestSMA([]float64{2, 4, 6, 8}, 3)
	require.NotNil(t, v)
	assert.InDelta(t, 6.0, *v, 1e-12)

	assert.Nil(t, LatestSMA([]float64{1, 2}, 3))
}

func TestLatestEMA(t *testing.T) {
	v := LatestEMA([]float64{1, 2, 3, 4}, 2)
	require.NotNil(t, v)
	assert.InDelta(t, 3.5, *v, 1e-9)

	// Short input falls back to the mean.
	v = LatestEMA([]float64{1, 2}, 5)
	require.NotNil(t, v)
	assert.InDelta(t, 1.5, *v, 1e-12)

	assert.Nil(t, LatestEMA(nil, 5))
}

func TestSummarize(t *testing.T) {
	h := &agent.History{
		Steps:        []int{100, 100, 6, 6},
		GoalReached:  []bool{false, false, true, true},
		Trajectories: [][]int{{1}, {1}, {1, 2}, {1, 2}},
		Returns:      []float64{-10, -12, 94, 94},
		MaxQDeltas:   []float64{1, 0.5, 9.4, 0.001},
		Iterations:   []int{1, 0, 2, 0},
	}

	s := Summarize(h, 2, 0.01)

	assert.Equal(t, 4, s.Episodes)
	assert.Equal(t, 2, s.Goals)
	assert.Equal(t, 0.5, s.SuccessRate)
	assert.Equal(t, 2, s.FirstGoalEpisode)
	assert.Equal(t, 53.0, s.MeanSteps)
	assert.Equal(t, 41.5, s.MeanReturn)
	assert.Equal(t, 3, s.TotalIterations)
	assert.True(t, s.Converged)
	assert.Equal(t, 0.001, s.FinalMaxQDelta)

	require.NotNil(t, s.StepsSMA)
	assert.InDelta(t, 6.0, *s.StepsSMA, 1e-12)
	require.NotNil(t, s.ReturnsSMA)
	assert.InDelta(t, 94.0, *s.ReturnsSMA, 1e-12)
	assert.InDeltaSlice(t, []float64{0, 0.5, 1}, s.SuccessCurve, 1e-12)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(&agent.History{}, DefaultWindow, 0.01)

	assert.Equal(t, 0, s.Episodes)
	assert.Equal(t, -1, s.FirstGoalEpisode)
	assert.False(t, s.Converged)
	assert.NotNil(t, s.SuccessCurve)

	s = Summarize(nil, DefaultWindow, 0.01)
	assert.Equal(t, 0, s.Episodes)
}
