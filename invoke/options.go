package invoke

import (
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cschleiden/orderflow/failure"
)

// RetryPolicy controls how often and how fast a failed invocation is attempted again.
type RetryPolicy struct {
	// InitialInterval is the delay before the first retry. Defaults to one second.
	InitialInterval time.Duration

	// BackoffCoefficient multiplies the delay after every retry. Defaults to 2.
	BackoffCoefficient float64

	// MaximumInterval caps the delay between two attempts. Defaults to 100x InitialInterval.
	MaximumInterval time.Duration

	// MaximumAttempts is the total number of attempts including the first one. Zero means unlimited.
	MaximumAttempts int

	// NonRetryableErrorTypes lists error types that are never retried, in addition to errors the
	// activity marked as non-retryable itself.
	NonRetryableErrorTypes []string
}

// NoRetries allows exactly one attempt.
var NoRetries = RetryPolicy{MaximumAttempts: 1}

type Options struct {
	// StartToCloseTimeout bounds a single attempt. Zero disables the per-attempt timeout.
	StartToCloseTimeout time.Duration

	RetryPolicy RetryPolicy
}

type ChildOptions struct {
	// WorkflowID is the instance id of the child. Retries of the child use derived ids.
	WorkflowID string

	// ExecutionTimeout bounds every attempt of the child workflow. Zero disables it.
	ExecutionTimeout time.Duration

	RetryPolicy RetryPolicy
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.InitialInterval <= 0 {
		p.InitialInterval = time.Second
	}

	if p.BackoffCoefficient < 1 {
		p.BackoffCoefficient = 2
	}

	if p.MaximumInterval <= 0 {
		p.MaximumInterval = 100 * p.InitialInterval
	}

	return p
}

// Exhausted reports whether no attempt is left after the given (1-based) attempt.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return p.MaximumAttempts > 0 && attempt >= p.MaximumAttempts
}

// Retryable reports whether the policy allows retrying the given failure.
func (p RetryPolicy) Retryable(f *failure.Failure) bool {
	switch f.Kind {
	case failure.Transient, failure.Timeout:
		return !slices.Contains(p.NonRetryableErrorTypes, f.Type)
	default:
		return false
	}
}

// Backoff returns the schedule of delays between attempts. The schedule has no jitter, a workflow
// replaying it has to observe the same delays.
func (p RetryPolicy) Backoff() backoff.BackOff {
	p = p.withDefaults()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.Multiplier = p.BackoffCoefficient
	b.MaxInterval = p.MaximumInterval
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	return b
}

// Delays returns the delays the policy waits before each retry, for at most n retries.
func (p RetryPolicy) Delays(n int) []time.Duration {
	b := p.Backoff()

	delays := make([]time.Duration, 0, n)
	for i := 0; i < n; i++ {
		delays = append(delays, b.NextBackOff())
	}

	return delays
}
