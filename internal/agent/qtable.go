package agent

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// QTable holds the classical action-value estimates, one row per state.
type QTable struct {
	values *mat.Dense
}

// NewQTable creates a states×actions table of zeros.
func NewQTable(states, actions int) *QTable {
	return &QTable{values: mat.NewDense(states, actions, nil)}
}

// Dims returns the table shape.
func (q *QTable) Dims() (states, actions int) {
	return q.values.Dims()
}

// Value returns Q(s, a).
func (q *QTable) Value(s, a int) float64 {
	return q.values.At(s, a)
}

// Row returns a copy of Q(s, ·).
func (q *QTable) Row(s int) []float64 {
	return mat.Row(nil, s, q.values)
}

// MaxValue returns max over a of Q(s, a).
func (q *QTable) MaxValue(s int) float64 {
	return floats.Max(q.values.RawRowView(s))
}

// Greedy returns argmax over a of Q(s, a); ties resolve to the lowest action.
func (q *QTable) Greedy(s int) int {
	return floats.MaxIdx(q.values.RawRowView(s))
}

// Update applies the Bellman update
//
//	Q(s,a) ← Q(s,a) + alpha·(reward + gamma·max Q(next,·) − Q(s,a))
//
// and returns the absolute change of the cell.
func (q *QTable) Update(s, a int, reward float64, next int, alpha, gamma float64) float64 {
	current := q.values.At(s, a)
	target := reward + gamma*q.MaxValue(next)
	updated := current + alpha*(target-current)
	q.values.Set(s, a, updated)
	return math.Abs(updated - current)
}

// Snapshot returns the table as nested slices.
func (q *QTable) Snapshot() [][]float64 {
	states, _ := q.values.Dims()
	out := make([][]float64, states)
	for s := 0; s < states; s++ {
		out[s] = q.Row(s)
	}
	return out
}

// Restore overwrites the table from nested slices of the same shape.
func (q *QTable) Restore(rows [][]float64) error {
	states, actions := q.values.Dims()
	if len(rows) != states {
		return fmt.Errorf("snapshot has %d rows, table has %d", len(rows), states)
	}
	for s, row := range rows {
		if len(row) != actions {
			return fmt.Errorf("snapshot row %d has %d columns, table has %d", s, len(row), actions)
		}
		q.values.SetRow(s, row)
	}
	return nil
}
