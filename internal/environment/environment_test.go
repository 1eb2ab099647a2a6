package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrozenLake_Dimensions(t *testing.T) {
	small, err := NewFrozenLake("4x4")
	require.NoError(t, err)
	assert.Equal(t, 16, small.States())
	assert.Equal(t, 4, small.Actions())

	large, err := NewFrozenLake("8x8")
	require.NoError(t, err)
	assert.Equal(t, 64, large.States())
	assert.Equal(t, byte('G'), large.Tile(63))
}

func TestFrozenLake_Walk(t *testing.T) {
	lake, err := NewFrozenLake("4x4")
	require.NoError(t, err)

	start, err := lake.Reset()
	require.NoError(t, err)
	assert.Equal(t, 0, start)

	// Off the grid stays put.
	res, err := lake.Step(Up)
	require.NoError(t, err)
	assert.Equal(t, 0, res.NextState)
	assert.False(t, res.Done)

	// 0 → 4 → 8 → 9 → 13 → 14 → 15
	path := []struct {
		action int
		next   int
	}{{Down, 4}, {Down, 8}, {Right, 9}, {Down, 13}, {Right, 14}}
	for _, p := range path {
		res, err = lake.Step(p.action)
		require.NoError(t, err)
		assert.Equal(t, p.next, res.NextState)
		assert.False(t, res.Done)
		assert.Zero(t, res.Reward)
	}

	res, err = lake.Step(Right)
	require.NoError(t, err)
	assert.Equal(t, 15, res.NextState)
	assert.True(t, res.Done)
	assert.Equal(t, 1.0, res.Reward)

	_, err = lake.Step(Left)
	assert.ErrorIs(t, err, ErrEpisodeFinished)

	_, err = lake.Reset()
	require.NoError(t, err)
	_, err = lake.Step(Left)
	assert.NoError(t, err)
}

func TestFrozenLake_Hole(t *testing.T) {
	lake, err := NewFrozenLake("4x4")
	require.NoError(t, err)
	_, _ = lake.Reset()

	_, err = lake.Step(Right)
	require.NoError(t, err)
	res, err := lake.Step(Down)
	require.NoError(t, err)

	assert.Equal(t, 5, res.NextState)
	assert.True(t, res.Done)
	assert.Zero(t, res.Reward)
}

func TestFrozenLake_InvalidMaps(t *testing.T) {
	testCases := []struct {
		name   string
		layout string
	}{
		{"unknown name", "16x16"},
		{"ragged rows", "SF/F"},
		{"no start", "FF/FG"},
		{"two starts", "SS/FG"},
		{"goal not last", "SG/FF"},
		{"no goal", "SF/FF"},
		{"unknown tile", "SX/FG"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewFrozenLake(tc.layout)
			assert.Error(t, err)
		})
	}

	lake, err := NewFrozenLake("SF/HG")
	require.NoError(t, err)
	assert.Equal(t, 4, lake.States())
}

func TestFrozenLake_InvalidAction(t *testing.T) {
	lake, err := NewFrozenLake("4x4")
	require.NoError(t, err)

	_, err = lake.Step(4)
	assert.Error(t, err)
	_, err = lake.Step(-1)
	assert.Error(t, err)
}

func TestChain(t *testing.T) {
	chain, err := NewChain(3)
	require.NoError(t, err)
	assert.Equal(t, 3, chain.States())
	assert.Equal(t, 2, chain.Actions())

	_, _ = chain.Reset()

	res, err := chain.Step(Back)
	require.NoError(t, err)
	assert.Equal(t, 0, res.NextState)

	res, err = chain.Step(Forward)
	require.NoError(t, err)
	assert.Equal(t, 1, res.NextState)
	assert.False(t, res.Done)

	res, err = chain.Step(Forward)
	require.NoError(t, err)
	assert.Equal(t, 2, res.NextState)
	assert.True(t, res.Done)
	assert.Equal(t, 1.0, res.Reward)

	_, err = chain.Step(Forward)
	assert.ErrorIs(t, err, ErrEpisodeFinished)

	_, err = NewChain(1)
	assert.Error(t, err)
}

func TestChain_ResetAfterFinish(t *testing.T) {
	chain, err := NewChain(2)
	require.NoError(t, err)

	res, err := chain.Step(Forward)
	require.NoError(t, err)
	require.True(t, res.Done)

	state, err := chain.Reset()
	require.NoError(t, err)
	assert.Equal(t, 0, state)

	res, err = chain.Step(Forward)
	require.NoError(t, err)
	assert.Equal(t, 1, res.NextState)
	assert.True(t, res.Done)
}

func TestNew(t *testing.T) {
	env, err := New(DefaultSpec())
	require.NoError(t, err)
	assert.Equal(t, 16, env.States())

	env, err = New(Spec{Kind: KindChain, ChainLength: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, env.States())

	assert.Error(t, Spec{Kind: "cartpole"}.Validate())
	assert.Error(t, Spec{Kind: KindChain, ChainLength: 0}.Validate())
}
