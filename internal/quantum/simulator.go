package quantum

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"
)

// Simulator is an in-process statevector backend. Each shot samples a basis
// state with probability equal to its squared amplitude.
type Simulator struct {
	mu  sync.Mutex
	src rand.Source
}

// NewSimulator creates a simulator with a deterministic random source.
func NewSimulator(seed uint64) *Simulator {
	return &Simulator{src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}
}

// Execute samples shots measurements of the circuit's register.
func (s *Simulator) Execute(ctx context.Context, circuit *Circuit, shots int) (Counts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if circuit == nil {
		return nil, fmt.Errorf("nil circuit")
	}
	if shots < 1 {
		return nil, fmt.Errorf("shots must be positive, got %d", shots)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dist := distuv.NewCategorical(circuit.Probabilities(), s.src)
	counts := make(Counts)
	for i := 0; i < shots; i++ {
		idx := int(dist.Rand())
		counts[BitString(idx, circuit.Width())]++
	}
	return counts, nil
}
