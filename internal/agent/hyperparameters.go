package agent

import (
	"fmt"
	"math"
)

// OutOfRangePolicy decides what happens when a measurement lands on a basis
// state that encodes no action (possible whenever the action count is not a
// power of two).
type OutOfRangePolicy string

const (
	// ResamplePolicy discards the outcome and measures again, up to
	// Hyperparameters.MaxResamples extra single-shot requests.
	ResamplePolicy OutOfRangePolicy = "resample"
	// RejectPolicy fails the step with an InvalidActionError.
	RejectPolicy OutOfRangePolicy = "reject"
)

// ParseOutOfRangePolicy converts a config string into a policy.
func ParseOutOfRangePolicy(s string) (OutOfRangePolicy, error) {
	switch OutOfRangePolicy(s) {
	case ResamplePolicy:
		return ResamplePolicy, nil
	case RejectPolicy:
		return RejectPolicy, nil
	default:
		return "", fmt.Errorf("unknown out-of-range policy %q", s)
	}
}

// Hyperparameters configure a training run.
type Hyperparameters struct {
	K         float64 `json:"k" msgpack:"k"`         // amplification-depth prefactor
	Alpha     float64 `json:"alpha" msgpack:"alpha"` // learning rate
	Gamma     float64 `json:"gamma" msgpack:"gamma"` // discount
	Eps       float64 `json:"eps" msgpack:"eps"`     // convergence tolerance on max |ΔQ| per episode
	MaxEpochs int     `json:"max_epochs" msgpack:"max_epochs"`
	MaxSteps  int     `json:"max_steps" msgpack:"max_steps"`

	OutOfRange    OutOfRangePolicy `json:"out_of_range" msgpack:"out_of_range"`
	MaxResamples  int              `json:"max_resamples" msgpack:"max_resamples"`
	ProgressEvery int              `json:"progress_every" msgpack:"progress_every"`
}

// DefaultHyperparameters returns the values used when nothing is configured.
func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		K:             1.0,
		Alpha:         0.1,
		Gamma:         0.99,
		Eps:           0.01,
		MaxEpochs:     100,
		MaxSteps:      100,
		OutOfRange:    ResamplePolicy,
		MaxResamples:  16,
		ProgressEvery: 10,
	}
}

// Validate rejects only values the training loop cannot run with. Unusual
// learning rates or discounts are accepted.
func (h Hyperparameters) Validate() error {
	finite := []struct {
		name  string
		value float64
	}{{"k", h.K}, {"alpha", h.Alpha}, {"gamma", h.Gamma}, {"eps", h.Eps}}
	for _, f := range finite {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return &ConfigurationError{Field: f.name, Reason: "must be finite"}
		}
	}
	if h.MaxEpochs <= 0 {
		return &ConfigurationError{Field: "max_epochs", Reason: fmt.Sprintf("must be positive, got %d", h.MaxEpochs)}
	}
	if h.MaxSteps <= 0 {
		return &ConfigurationError{Field: "max_steps", Reason: fmt.Sprintf("must be positive, got %d", h.MaxSteps)}
	}
	if _, err := ParseOutOfRangePolicy(string(h.OutOfRange)); err != nil {
		return &ConfigurationError{Field: "out_of_range", Reason: err.Error()}
	}
	if h.MaxResamples < 0 {
		return &ConfigurationError{Field: "max_resamples", Reason: "must be non-negative"}
	}
	return nil
}
