package agent

import (
	"fmt"
)

// ConfigurationError reports invalid agent dimensions, hyperparameters or
// collaborators.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// DimensionError reports an action space too large for the register.
type DimensionError struct {
	Actions int
	Width   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%d actions do not fit a %d-qubit register", e.Actions, e.Width)
}

// BackendError reports a failed or undecodable measurement. It aborts training.
type BackendError struct {
	Episode int
	Step    int
	State   int
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend failure at episode %d step %d state %d: %v", e.Episode, e.Step, e.State, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// InvalidActionError reports a measured basis state outside [0, Actions).
type InvalidActionError struct {
	Episode int
	Step    int
	State   int
	Outcome int
	Actions int
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("measured outcome %d outside action range [0, %d) at episode %d step %d state %d",
		e.Outcome, e.Actions, e.Episode, e.Step, e.State)
}

// EnvironmentError reports a failed Reset or Step call.
type EnvironmentError struct {
	Episode int
	Step    int
	Action  int
	Err     error
}

func (e *EnvironmentError) Error() string {
	if e.Action < 0 {
		return fmt.Sprintf("environment reset failed at episode %d: %v", e.Episode, e.Err)
	}
	return fmt.Sprintf("environment step failed at episode %d step %d action %d: %v", e.Episode, e.Step, e.Action, e.Err)
}

func (e *EnvironmentError) Unwrap() error {
	return e.Err
}
