package quantum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterWidth(t *testing.T) {
	testCases := []struct {
		actions int
		width   int
	}{
		{1, 0},
		{2, 1},
		{3, 2},
		{4, 2},
		{5, 3},
		{8, 3},
		{9, 4},
		{16, 4},
		{17, 5},
	}

	for _, tc := range testCases {
		width := RegisterWidth(tc.actions)
		assert.Equal(t, tc.width, width, "actions=%d", tc.actions)
		assert.GreaterOrEqual(t, Dimension(width), tc.actions)
	}
}

func TestMaxIterations_KnownValues(t *testing.T) {
	assert.Equal(t, 0, MaxIterations(0))
	assert.Equal(t, 0, MaxIterations(1))
	assert.Equal(t, 1, MaxIterations(2))
	assert.Equal(t, 1, MaxIterations(3))
	assert.Equal(t, 2, MaxIterations(4))
	assert.Equal(t, 12, MaxIterations(8))
}

func TestMaxIterations_NonDecreasing(t *testing.T) {
	prev := MaxIterations(0)
	for n := 1; n <= 20; n++ {
		m := MaxIterations(n)
		assert.GreaterOrEqual(t, m, prev, "n=%d", n)
		prev = m
	}
}

func TestBitStringRoundTrip(t *testing.T) {
	assert.Equal(t, "", BitString(0, 0))
	assert.Equal(t, "01", BitString(1, 2))
	assert.Equal(t, "110", BitString(6, 3))

	for width := 0; width <= 5; width++ {
		for idx := 0; idx < Dimension(width); idx++ {
			got, err := ParseBitString(BitString(idx, width), width)
			require.NoError(t, err)
			assert.Equal(t, idx, got)
		}
	}
}

func TestParseBitString_Errors(t *testing.T) {
	_, err := ParseBitString("1", 2)
	assert.Error(t, err)

	_, err = ParseBitString("1x", 2)
	assert.Error(t, err)
}
