// Package environment provides small deterministic MDPs for training the
// agent without an external simulator.
package environment

import (
	"errors"
	"fmt"

	"github.com/aristath/groverq/internal/agent"
)

// Kind names an environment implementation.
type Kind string

const (
	KindFrozenLake Kind = "frozenlake"
	KindChain      Kind = "chain"
)

// ErrEpisodeFinished is returned by Step after a terminal transition until
// Reset is called.
var ErrEpisodeFinished = errors.New("episode finished, reset required")

// Spec selects and parameterises an environment.
type Spec struct {
	Kind        Kind   `json:"kind" msgpack:"kind"`
	Map         string `json:"map,omitempty" msgpack:"map,omitempty"`
	ChainLength int    `json:"chain_length,omitempty" msgpack:"chain_length,omitempty"`
}

// DefaultSpec is the 4x4 frozen lake.
func DefaultSpec() Spec {
	return Spec{Kind: KindFrozenLake, Map: "4x4", ChainLength: 5}
}

// Validate checks that New would accept s.
func (s Spec) Validate() error {
	_, err := New(s)
	return err
}

// New builds the environment described by spec.
func New(spec Spec) (agent.Environment, error) {
	switch spec.Kind {
	case KindFrozenLake:
		return NewFrozenLake(spec.Map)
	case KindChain:
		return NewChain(spec.ChainLength)
	default:
		return nil, fmt.Errorf("unknown environment kind %q", spec.Kind)
	}
}

func checkAction(action, actions int) error {
	if action < 0 || action >= actions {
		return fmt.Errorf("action %d outside [0, %d)", action, actions)
	}
	return nil
}
