package agent

import (
	"math"
)

// LengthScheduler turns reward and value signal into a Grover iteration count
// and tracks, per (state, action), the last count applied and whether the pair
// has reached the optimal count M and is frozen.
type LengthScheduler struct {
	max       int
	actions   int
	lengths   []int
	saturated []bool
}

// NewLengthScheduler creates a scheduler bounded by maxIterations.
func NewLengthScheduler(states, actions, maxIterations int) *LengthScheduler {
	return &LengthScheduler{
		max:       maxIterations,
		actions:   actions,
		lengths:   make([]int, states*actions),
		saturated: make([]bool, states*actions),
	}
}

// MaxIterations returns M.
func (l *LengthScheduler) MaxIterations() int {
	return l.max
}

// Length returns int(k·(reward + maxNext)) clamped to [0, M].
func (l *LengthScheduler) Length(k, reward, maxNext float64) int {
	raw := k * (reward + maxNext)
	if math.IsNaN(raw) || raw <= 0 {
		return 0
	}
	if raw >= float64(l.max) {
		return l.max
	}
	return int(raw)
}

// Step returns the iteration count to apply for (s, a). A saturated pair
// always gets 0. Otherwise the count is min(raw, M), and reaching M
// saturates the pair for the rest of training.
func (l *LengthScheduler) Step(s, a, raw int) int {
	i := l.index(s, a)
	if l.saturated[i] {
		l.lengths[i] = 0
		return 0
	}

	applied := raw
	if applied > l.max {
		applied = l.max
	}
	if applied < 0 {
		applied = 0
	}
	l.lengths[i] = applied
	if applied == l.max {
		l.saturated[i] = true
	}
	return applied
}

// LastLength returns the count applied on the most recent visit of (s, a).
func (l *LengthScheduler) LastLength(s, a int) int {
	return l.lengths[l.index(s, a)]
}

// Saturated reports whether (s, a) is frozen.
func (l *LengthScheduler) Saturated(s, a int) bool {
	return l.saturated[l.index(s, a)]
}

// SaturatedCount returns how many pairs are frozen.
func (l *LengthScheduler) SaturatedCount() int {
	n := 0
	for _, sat := range l.saturated {
		if sat {
			n++
		}
	}
	return n
}

func (l *LengthScheduler) index(s, a int) int {
	return s*l.actions + a
}
