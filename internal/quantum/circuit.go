package quantum

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Instruction is one appended block of Grover iterations.
type Instruction struct {
	Operator *GroverOperator
	Repeat   int
}

// Circuit is an amplitude program over a fixed register: a uniform
// superposition followed by the instructions appended so far. The statevector
// is evolved eagerly on every Append, so executing a circuit never replays its
// history.
//
// A Circuit is not safe for concurrent mutation.
type Circuit struct {
	width        int
	state        *mat.VecDense
	scratch      *mat.VecDense
	instructions []Instruction
	depth        int
}

// NewUniformCircuit prepares the equal superposition over all 2^width basis
// states (a Hadamard on every qubit of |0...0>).
func NewUniformCircuit(width int) (*Circuit, error) {
	if width < 0 {
		return nil, fmt.Errorf("register width must be non-negative, got %d", width)
	}
	dim := Dimension(width)
	amp := 1 / math.Sqrt(float64(dim))
	data := make([]float64, dim)
	for i := range data {
		data[i] = amp
	}
	return &Circuit{
		width:   width,
		state:   mat.NewVecDense(dim, data),
		scratch: mat.NewVecDense(dim, nil),
	}, nil
}

// Append composes op onto the circuit count times. A zero count is a no-op.
// Appends cannot be undone.
func (c *Circuit) Append(op *GroverOperator, count int) error {
	if op == nil {
		return fmt.Errorf("nil operator")
	}
	if op.width != c.width {
		return fmt.Errorf("operator width %d does not match circuit width %d", op.width, c.width)
	}
	if count < 0 {
		return fmt.Errorf("repeat count must be non-negative, got %d", count)
	}
	if count == 0 {
		return nil
	}

	op.applyInPlace(c.state, c.scratch, count)
	c.instructions = append(c.instructions, Instruction{Operator: op, Repeat: count})
	c.depth += count
	return nil
}

// Width returns the register width.
func (c *Circuit) Width() int {
	return c.width
}

// Depth returns the total number of Grover iterations appended.
func (c *Circuit) Depth() int {
	return c.depth
}

// Instructions returns a copy of the appended instruction list.
func (c *Circuit) Instructions() []Instruction {
	out := make([]Instruction, len(c.instructions))
	copy(out, c.instructions)
	return out
}

// Amplitudes returns a copy of the current statevector.
func (c *Circuit) Amplitudes() []float64 {
	return mat.Col(nil, 0, c.state)
}

// Probabilities returns the measurement distribution over basis states.
func (c *Circuit) Probabilities() []float64 {
	amps := c.Amplitudes()
	for i, a := range amps {
		amps[i] = a * a
	}
	return amps
}

// TotalProbability returns the summed probability mass, 1 up to rounding.
func (c *Circuit) TotalProbability() float64 {
	return floats.Sum(c.Probabilities())
}
