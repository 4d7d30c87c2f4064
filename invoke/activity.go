// Package invoke runs activities and child workflows from workflow code with explicit timeouts and
// retry policies. Retries happen inside the calling workflow using durable timers, so only the
// final outcome of an invocation is visible to orchestration code.
package invoke

import (
	"fmt"
	"time"

	"github.com/cschleiden/go-workflows/workflow"
	"github.com/cschleiden/orderflow/failure"
	"github.com/cschleiden/orderflow/log"
)

// single disables engine level retries, attempts are driven by RetryPolicy.
var single = workflow.ActivityOptions{
	RetryOptions: workflow.RetryOptions{MaxAttempts: 1},
}

// Activity executes activity until it succeeds, fails non-retryably, or the retry policy is
// exhausted. Failures are returned as *failure.Failure attributed to step.
func Activity[T any](ctx workflow.Context, step string, opts Options, activity any, args ...any) (T, error) {
	var zero T

	logger := workflow.Logger(ctx)
	policy := opts.RetryPolicy
	b := policy.Backoff()

	for attempt := 1; ; attempt++ {
		r, err := activityAttempt[T](ctx, step, opts.StartToCloseTimeout, activity, args...)
		if err == nil {
			return r, nil
		}

		f := failure.Classify(step, err)
		f.Attempts = attempt

		if !policy.Retryable(f) || policy.Exhausted(attempt) {
			return zero, f
		}

		delay := b.NextBackOff()
		logger.Warn("Activity attempt failed, retrying",
			log.StepKey, step,
			log.AttemptKey, attempt,
			log.FailureKindKey, f.Kind.String(),
			log.DelayKey, delay,
			"error", f.Message)

		if err := workflow.Sleep(ctx, delay); err != nil {
			c := failure.Classify(step, err)
			c.Attempts = attempt
			return zero, c
		}
	}
}

func activityAttempt[T any](ctx workflow.Context, step string, timeout time.Duration, activity any, args ...any) (T, error) {
	f := workflow.ExecuteActivity[T](ctx, single, activity, args...)
	if timeout <= 0 {
		return f.Get(ctx)
	}

	return getWithTimeout(ctx, step, timeout, f)
}

// getWithTimeout waits for f or a durable timer, whichever completes first. When ctx is canceled
// while f is already scheduled, f is still awaited: scheduled work is not interrupted and its
// outcome has to be known to compensate it.
func getWithTimeout[T any](ctx workflow.Context, step string, timeout time.Duration, f workflow.Future[T]) (T, error) {
	tctx, cancelTimer := workflow.WithCancel(ctx)
	defer cancelTimer()

	timer := workflow.ScheduleTimer(tctx, timeout)

	var r T
	var err error
	timedOut := false
	canceled := false

	workflow.Select(ctx,
		workflow.Await(f, func(ctx workflow.Context, f workflow.Future[T]) {
			r, err = f.Get(ctx)
		}),
		workflow.Await(timer, func(ctx workflow.Context, t workflow.Future[struct{}]) {
			if _, terr := t.Get(ctx); terr != nil {
				// Timer canceled together with the workflow
				canceled = true
				return
			}

			timedOut = true
		}),
	)

	if canceled {
		return getWithTimeout(workflow.NewDisconnectedContext(ctx), step, timeout, f)
	}

	if timedOut {
		var zero T
		return zero, failure.New(failure.Timeout, step, fmt.Sprintf("no result within %v", timeout))
	}

	return r, err
}

// Sleep pauses the workflow for d. Cancellation is returned as a Canceled failure.
func Sleep(ctx workflow.Context, d time.Duration) error {
	if err := workflow.Sleep(ctx, d); err != nil {
		return failure.Classify("sleep", err)
	}

	return nil
}
