package quantum

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// GroverOperator is one amplitude-amplification iteration G = D·O targeting a
// single basis state. O flips the sign of the target amplitude and D reflects
// every amplitude about the uniform superposition. The matrix is built once and
// never mutated; operators are safe to share between circuits.
type GroverOperator struct {
	target int
	width  int
	matrix *mat.Dense
}

// NewGroverOperator builds the Grover iteration amplifying the basis state
// whose binary encoding (width bits) equals target.
func NewGroverOperator(target, width int) (*GroverOperator, error) {
	if width < 0 {
		return nil, fmt.Errorf("register width must be non-negative, got %d", width)
	}
	dim := Dimension(width)
	if target < 0 || target >= dim {
		return nil, fmt.Errorf("target %d outside register of %d basis states", target, dim)
	}

	// Oracle: I - 2|t><t|
	oracle := mat.NewDiagDense(dim, nil)
	for i := 0; i < dim; i++ {
		oracle.SetDiag(i, 1)
	}
	oracle.SetDiag(target, -1)

	// Diffusion: 2|s><s| - I, with <i|s> = 1/sqrt(dim) for every i.
	diffusion := mat.NewDense(dim, dim, nil)
	off := 2 / float64(dim)
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			v := off
			if i == j {
				v -= 1
			}
			diffusion.Set(i, j, v)
		}
	}

	g := mat.NewDense(dim, dim, nil)
	g.Mul(diffusion, oracle)

	return &GroverOperator{target: target, width: width, matrix: g}, nil
}

// Target returns the basis-state index this operator amplifies.
func (g *GroverOperator) Target() int {
	return g.target
}

// Width returns the register width the operator acts on.
func (g *GroverOperator) Width() int {
	return g.width
}

// Matrix returns a copy of the operator's matrix.
func (g *GroverOperator) Matrix() *mat.Dense {
	return mat.DenseCopyOf(g.matrix)
}

// applyInPlace replaces state with G^count·state. scratch must be a distinct
// vector of the operator's dimension.
func (g *GroverOperator) applyInPlace(state, scratch *mat.VecDense, count int) {
	for i := 0; i < count; i++ {
		scratch.MulVec(g.matrix, state)
		state.CopyVec(scratch)
	}
}
