package agent

import (
	"fmt"

	"github.com/aristath/groverq/internal/quantum"
)

// OperatorBank holds one Grover operator per action, built once.
type OperatorBank struct {
	width     int
	operators []*quantum.GroverOperator
}

// NewOperatorBank builds the operator amplifying the basis state of every
// action in [0, actions).
func NewOperatorBank(actions, width int) (*OperatorBank, error) {
	if actions > quantum.Dimension(width) {
		return nil, &DimensionError{Actions: actions, Width: width}
	}

	ops := make([]*quantum.GroverOperator, actions)
	for a := 0; a < actions; a++ {
		op, err := quantum.NewGroverOperator(a, width)
		if err != nil {
			return nil, fmt.Errorf("failed to build operator for action %d: %w", a, err)
		}
		ops[a] = op
	}
	return &OperatorBank{width: width, operators: ops}, nil
}

// Operator returns the operator for action a.
func (b *OperatorBank) Operator(a int) *quantum.GroverOperator {
	return b.operators[a]
}

// Len returns the number of actions covered.
func (b *OperatorBank) Len() int {
	return len(b.operators)
}
