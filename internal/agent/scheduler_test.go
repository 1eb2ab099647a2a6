package agent

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestLengthScheduler_Length(t *testing.T) {
	l := NewLengthScheduler(1, 1, 3)

	testCases := []struct {
		name    string
		k       float64
		reward  float64
		maxNext float64
		want    int
	}{
		{"truncates toward zero", 1, 1.9, 0, 1},
		{"scales by k", 0.5, 4, 0, 2},
		{"adds next value", 1, 1, 1.5, 2},
		{"clamps at max", 10, 5, 0, 3},
		{"negative clamps to zero", 1, -11, 0, 0},
		{"small negative truncates to zero", 1, -0.5, 0, 0},
		{"nan is zero", math.NaN(), 1, 0, 0},
		{"infinity is max", 1, math.Inf(1), 0, 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, l.Length(tc.k, tc.reward, tc.maxNext))
		})
	}
}

func TestLengthScheduler_StepSaturates(t *testing.T) {
	l := NewLengthScheduler(2, 2, 2)

	assert.Equal(t, 1, l.Step(0, 1, 1))
	assert.False(t, l.Saturated(0, 1))
	assert.Equal(t, 1, l.LastLength(0, 1))

	assert.Equal(t, 2, l.Step(0, 1, 5))
	assert.True(t, l.Saturated(0, 1))
	assert.Equal(t, 2, l.LastLength(0, 1))

	// Frozen from now on, regardless of the requested length.
	assert.Equal(t, 0, l.Step(0, 1, 1))
	assert.Equal(t, 0, l.Step(0, 1, 2))
	assert.True(t, l.Saturated(0, 1))
	assert.Equal(t, 0, l.LastLength(0, 1))

	assert.False(t, l.Saturated(1, 1))
	assert.Equal(t, 1, l.SaturatedCount())
}

func TestLengthScheduler_ZeroMaxSaturatesOnFirstVisit(t *testing.T) {
	l := NewLengthScheduler(1, 2, 0)

	assert.Equal(t, 0, l.Step(0, 0, 0))
	assert.True(t, l.Saturated(0, 0))
}

func TestLengthScheduler_Properties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		states := rapid.IntRange(1, 4).Draw(rt, "states")
		actions := rapid.IntRange(1, 4).Draw(rt, "actions")
		maxIter := rapid.IntRange(0, 6).Draw(rt, "max")
		l := NewLengthScheduler(states, actions, maxIter)

		seen := make(map[[2]int]bool)
		steps := rapid.IntRange(1, 100).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			s := rapid.IntRange(0, states-1).Draw(rt, "s")
			a := rapid.IntRange(0, actions-1).Draw(rt, "a")
			reward := rapid.Float64Range(-20, 120).Draw(rt, "reward")
			maxNext := rapid.Float64Range(-50, 50).Draw(rt, "maxNext")
			k := rapid.Float64Range(0, 2).Draw(rt, "k")

			wasSaturated := l.Saturated(s, a)
			raw := l.Length(k, reward, maxNext)
			require.GreaterOrEqual(rt, raw, 0)
			require.LessOrEqual(rt, raw, maxIter)

			applied := l.Step(s, a, raw)
			if wasSaturated {
				require.Equal(rt, 0, applied)
			}

			key := [2]int{s, a}
			if seen[key] {
				require.True(rt, l.Saturated(s, a), "saturation must never reset")
			}
			if l.Saturated(s, a) {
				seen[key] = true
			}

			for ss := 0; ss < states; ss++ {
				for aa := 0; aa < actions; aa++ {
					require.LessOrEqual(rt, l.LastLength(ss, aa), maxIter)
				}
			}
		}
	})
}
