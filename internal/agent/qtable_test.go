package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestQTable_Update(t *testing.T) {
	q := NewQTable(3, 2)
	q.values.Set(1, 0, 2.0)
	q.values.Set(1, 1, 4.0)

	delta := q.Update(0, 1, 1.0, 1, 0.5, 0.9)

	// 0 + 0.5·(1 + 0.9·4 − 0) = 2.3
	assert.InDelta(t, 2.3, q.Value(0, 1), 1e-12)
	assert.InDelta(t, 2.3, delta, 1e-12)
	assert.Equal(t, 0.0, q.Value(0, 0))
}

func TestQTable_UpdateSelfTransitionUsesCurrentRow(t *testing.T) {
	q := NewQTable(1, 2)
	q.values.Set(0, 0, -3.0)

	q.Update(0, 0, -10, 0, 0.1, 0.99)

	// max over row 0 is 0 (action 1): -3 + 0.1·(-10 + 0 + 3)
	assert.InDelta(t, -3.7, q.Value(0, 0), 1e-12)
}

func TestQTable_NegativeValuesAllowed(t *testing.T) {
	q := NewQTable(2, 2)
	for i := 0; i < 50; i++ {
		q.Update(0, 0, -10, 1, 0.5, 0.9)
	}
	assert.Less(t, q.Value(0, 0), -9.0)
}

func TestQTable_ZeroAlphaIsInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		states := rapid.IntRange(1, 6).Draw(rt, "states")
		actions := rapid.IntRange(1, 6).Draw(rt, "actions")
		q := NewQTable(states, actions)

		for s := 0; s < states; s++ {
			for a := 0; a < actions; a++ {
				q.values.Set(s, a, rapid.Float64Range(-100, 100).Draw(rt, "value"))
			}
		}
		before := q.Snapshot()

		updates := rapid.IntRange(0, 50).Draw(rt, "updates")
		for i := 0; i < updates; i++ {
			s := rapid.IntRange(0, states-1).Draw(rt, "s")
			a := rapid.IntRange(0, actions-1).Draw(rt, "a")
			next := rapid.IntRange(0, states-1).Draw(rt, "next")
			reward := rapid.Float64Range(-1000, 1000).Draw(rt, "reward")
			gamma := rapid.Float64Range(0, 1).Draw(rt, "gamma")

			assert.Equal(rt, 0.0, q.Update(s, a, reward, next, 0, gamma))
		}

		assert.Equal(rt, before, q.Snapshot())
	})
}

func TestQTable_GreedyAndMax(t *testing.T) {
	q := NewQTable(2, 3)
	require.NoError(t, q.Restore([][]float64{{1, 5, 5}, {-2, -1, -3}}))

	assert.Equal(t, 1, q.Greedy(0))
	assert.Equal(t, 5.0, q.MaxValue(0))
	assert.Equal(t, 1, q.Greedy(1))
	assert.Equal(t, -1.0, q.MaxValue(1))
	assert.Equal(t, []float64{-2, -1, -3}, q.Row(1))
}

func TestQTable_RestoreShapeMismatch(t *testing.T) {
	q := NewQTable(2, 2)
	assert.Error(t, q.Restore([][]float64{{1, 2}}))
	assert.Error(t, q.Restore([][]float64{{1, 2}, {3}}))
}
