package quantum

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Counts maps measured bit strings to how often they were observed.
type Counts map[string]int

// Shots returns the total number of observations.
func (c Counts) Shots() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Backend executes amplitude programs and returns measurement counts.
type Backend interface {
	Execute(ctx context.Context, circuit *Circuit, shots int) (Counts, error)
}

// TransientError marks a backend failure that may succeed when retried.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient backend failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient reports that the failure is retryable.
func (e *TransientError) Transient() bool {
	return true
}

// IsTransient reports whether err (or anything it wraps) is marked retryable.
func IsTransient(err error) bool {
	var t interface{ Transient() bool }
	return errors.As(err, &t) && t.Transient()
}

// RetryingBackend retries transient failures of an inner backend a bounded
// number of times. Attempts run one after another, so at most one request is
// in flight at any time.
type RetryingBackend struct {
	inner    Backend
	attempts int
	backoff  time.Duration
	log      zerolog.Logger
}

// NewRetryingBackend wraps inner. attempts is the total number of tries and is
// raised to 1 when smaller.
func NewRetryingBackend(inner Backend, attempts int, backoff time.Duration, log zerolog.Logger) *RetryingBackend {
	if attempts < 1 {
		attempts = 1
	}
	return &RetryingBackend{
		inner:    inner,
		attempts: attempts,
		backoff:  backoff,
		log:      log.With().Str("component", "retrying_backend").Logger(),
	}
}

// Execute runs the circuit, retrying transient failures.
func (b *RetryingBackend) Execute(ctx context.Context, circuit *Circuit, shots int) (Counts, error) {
	var lastErr error
	for attempt := 1; attempt <= b.attempts; attempt++ {
		counts, err := b.inner.Execute(ctx, circuit, shots)
		if err == nil {
			return counts, nil
		}
		lastErr = err
		if !IsTransient(err) || attempt == b.attempts {
			break
		}

		b.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", b.attempts).
			Msg("Backend execution failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.backoff):
		}
	}
	return nil, lastErr
}
