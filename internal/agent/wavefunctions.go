package agent

import (
	"fmt"

	"github.com/aristath/groverq/internal/quantum"
)

// WavefunctionStore owns one amplitude program per state. Programs start as
// the uniform superposition and only ever grow by appended operators.
type WavefunctionStore struct {
	circuits []*quantum.Circuit
}

// NewWavefunctionStore initialises a uniform circuit for every state.
func NewWavefunctionStore(states, width int) (*WavefunctionStore, error) {
	circuits := make([]*quantum.Circuit, states)
	for s := range circuits {
		c, err := quantum.NewUniformCircuit(width)
		if err != nil {
			return nil, fmt.Errorf("failed to initialise wavefunction for state %d: %w", s, err)
		}
		circuits[s] = c
	}
	return &WavefunctionStore{circuits: circuits}, nil
}

// Circuit returns the program for state s.
func (w *WavefunctionStore) Circuit(s int) *quantum.Circuit {
	return w.circuits[s]
}

// Append composes op onto state s's program count times.
func (w *WavefunctionStore) Append(s int, op *quantum.GroverOperator, count int) error {
	if err := w.circuits[s].Append(op, count); err != nil {
		return fmt.Errorf("failed to append to wavefunction of state %d: %w", s, err)
	}
	return nil
}

// Len returns the number of states.
func (w *WavefunctionStore) Len() int {
	return len(w.circuits)
}
