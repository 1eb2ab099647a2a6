// Package quantum provides the amplitude-domain pieces used by the agent:
// register sizing, Grover operators, uniform-superposition circuits and a
// statevector simulator backend that samples measurement outcomes.
//
// Amplitudes are kept real. Uniform preparation, the phase oracle and the
// diffusion operator are all real orthogonal transforms, so no complex phase
// ever appears in the programs the agent builds.
package quantum

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// floorTolerance absorbs rounding in MaxIterations so that values which are
// integers in exact arithmetic (n = 2 gives exactly 1) are not floored down.
const floorTolerance = 1e-9

// RegisterWidth returns n = ceil(log2(actions)), the number of qubits needed
// to encode every action index. One action needs zero qubits.
func RegisterWidth(actions int) int {
	if actions <= 1 {
		return 0
	}
	return bits.Len(uint(actions - 1))
}

// Dimension returns 2^width, the number of basis states of a register.
func Dimension(width int) int {
	return 1 << uint(width)
}

// MaxIterations returns the amplification-optimal Grover iteration count for a
// single marked state in a register of the given width:
//
//	M = floor( π / (4·arcsin(1/√(2^n))) − 0.5 )
func MaxIterations(width int) int {
	theta := math.Asin(1 / math.Sqrt(float64(Dimension(width))))
	m := math.Floor(math.Pi/(4*theta) - 0.5 + floorTolerance)
	if m < 0 {
		return 0
	}
	return int(m)
}

// BitString encodes a basis-state index as a width-bit string, most
// significant bit first (the usual counts-key convention).
func BitString(index, width int) string {
	if width == 0 {
		return ""
	}
	s := strconv.FormatUint(uint64(index), 2)
	if len(s) < width {
		s = strings.Repeat("0", width-len(s)) + s
	}
	return s
}

// ParseBitString decodes a width-bit outcome string into a basis-state index.
func ParseBitString(s string, width int) (int, error) {
	if len(s) != width {
		return 0, fmt.Errorf("outcome %q has %d bits, register has %d", s, len(s), width)
	}
	if width == 0 {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 2, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to decode outcome %q: %w", s, err)
	}
	return int(v), nil
}
