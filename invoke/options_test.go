package invoke

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/cschleiden/orderflow/failure"
)

func Test_RetryPolicy_Delays(t *testing.T) {
	p := RetryPolicy{
		InitialInterval:    2 * time.Second,
		BackoffCoefficient: 2,
		MaximumInterval:    10 * time.Second,
	}

	require.Equal(t, []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}, p.Delays(5))
}

func Test_RetryPolicy_Defaults(t *testing.T) {
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, RetryPolicy{}.Delays(3))
}

func Test_RetryPolicy_Retryable(t *testing.T) {
	p := RetryPolicy{NonRetryableErrorTypes: []string{failure.ValidationErrorType}}

	require.True(t, p.Retryable(&failure.Failure{Kind: failure.Transient}))
	require.True(t, p.Retryable(&failure.Failure{Kind: failure.Timeout}))
	require.False(t, p.Retryable(&failure.Failure{Kind: failure.Transient, Type: failure.ValidationErrorType}))
	require.False(t, p.Retryable(&failure.Failure{Kind: failure.NonRetryable}))
	require.False(t, p.Retryable(&failure.Failure{Kind: failure.Canceled}))
}

func Test_RetryPolicy_Exhausted(t *testing.T) {
	require.False(t, RetryPolicy{}.Exhausted(100))
	require.True(t, NoRetries.Exhausted(1))
	require.False(t, RetryPolicy{MaximumAttempts: 3}.Exhausted(2))
	require.True(t, RetryPolicy{MaximumAttempts: 3}.Exhausted(3))
}

func Test_RetryPolicy_DelaysAreBoundedAndNonDecreasing(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("delays grow up to the maximum interval", prop.ForAll(
		func(initialMs int64, coefficient float64, maxFactor int64) bool {
			p := RetryPolicy{
				InitialInterval:    time.Duration(initialMs) * time.Millisecond,
				BackoffCoefficient: coefficient,
				MaximumInterval:    time.Duration(initialMs*maxFactor) * time.Millisecond,
			}

			delays := p.Delays(10)
			if delays[0] != p.InitialInterval {
				return false
			}

			for i, d := range delays {
				if d > p.MaximumInterval {
					return false
				}

				if i > 0 && d < delays[i-1] {
					return false
				}
			}

			return true
		},
		gen.Int64Range(1, 10_000),
		gen.Float64Range(1, 5),
		gen.Int64Range(1, 100),
	))

	properties.TestingRun(t)
}
