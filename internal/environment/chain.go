package environment

import (
	"fmt"

	"github.com/aristath/groverq/internal/agent"
)

// Chain actions.
const (
	Back    = 0
	Forward = 1
)

// Chain is a corridor of length states. The walk starts at 0 and ends with
// reward 1 when it reaches the last state. Stepping back from 0 stays at 0.
type Chain struct {
	length   int
	position int
	done     bool
}

// NewChain builds a chain with at least two states.
func NewChain(length int) (*Chain, error) {
	if length < 2 {
		return nil, fmt.Errorf("chain length must be at least 2, got %d", length)
	}
	return &Chain{length: length}, nil
}

// States returns the chain length.
func (c *Chain) States() int { return c.length }

// Actions returns 2 (back, forward).
func (c *Chain) Actions() int { return 2 }

// Reset moves back to state 0.
func (c *Chain) Reset() (int, error) {
	c.position = 0
	c.done = false
	return 0, nil
}

// Step moves one state back or forward.
func (c *Chain) Step(action int) (agent.StepResult, error) {
	if err := checkAction(action, c.Actions()); err != nil {
		return agent.StepResult{}, err
	}
	if c.done {
		return agent.StepResult{}, ErrEpisodeFinished
	}

	if action == Forward {
		c.position++
	} else if c.position > 0 {
		c.position--
	}

	result := agent.StepResult{NextState: c.position}
	if c.position == c.length-1 {
		result.Reward = 1
		result.Done = true
	}
	c.done = result.Done
	return result, nil
}
