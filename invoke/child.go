package invoke

import (
	"fmt"
	"time"

	"github.com/cschleiden/go-workflows/workflow"
	"github.com/cschleiden/orderflow/failure"
	"github.com/cschleiden/orderflow/log"
)

// Child runs wf as a sub-workflow. The child's execution timeout and retry policy are independent
// of the policies the child applies to its own activities, and of the parent.
func Child[T any](ctx workflow.Context, step string, opts ChildOptions, wf any, args ...any) (T, error) {
	var zero T

	logger := workflow.Logger(ctx)
	policy := opts.RetryPolicy
	b := policy.Backoff()

	for attempt := 1; ; attempt++ {
		r, err := childAttempt[T](ctx, step, attemptID(opts.WorkflowID, attempt), opts.ExecutionTimeout, wf, args...)
		if err == nil {
			return r, nil
		}

		f := failure.Classify(step, err)
		f.Attempts = attempt

		if !policy.Retryable(f) || policy.Exhausted(attempt) {
			return zero, f
		}

		delay := b.NextBackOff()
		logger.Warn("Child workflow attempt failed, retrying",
			log.StepKey, step,
			log.WorkflowIDKey, opts.WorkflowID,
			log.AttemptKey, attempt,
			log.FailureKindKey, f.Kind.String(),
			log.DelayKey, delay)

		if err := workflow.Sleep(ctx, delay); err != nil {
			c := failure.Classify(step, err)
			c.Attempts = attempt
			return zero, c
		}
	}
}

// attemptID derives a unique instance id for every attempt, an instance id can only be used once.
func attemptID(workflowID string, attempt int) string {
	if workflowID == "" || attempt == 1 {
		return workflowID
	}

	return fmt.Sprintf("%s-attempt-%d", workflowID, attempt)
}

func childAttempt[T any](ctx workflow.Context, step, instanceID string, timeout time.Duration, wf any, args ...any) (T, error) {
	cctx, cancelChild := workflow.WithCancel(ctx)

	f := workflow.CreateSubWorkflowInstance[T](cctx, workflow.SubWorkflowOptions{
		InstanceID:   instanceID,
		RetryOptions: workflow.RetryOptions{MaxAttempts: 1},
	}, wf, args...)

	if timeout <= 0 {
		return f.Get(ctx)
	}

	r, err := getWithTimeout(ctx, step, timeout, f)
	if failure.Is(err, failure.Timeout) {
		// Cancel the child that overran its execution timeout and let it wind down, so the caller
		// compensates only after the child stopped changing state.
		cancelChild()

		if _, cerr := getWithTimeout(workflow.NewDisconnectedContext(ctx), step, timeout, f); cerr != nil {
			workflow.Logger(ctx).Warn("Timed out child workflow ended", log.StepKey, step, log.WorkflowIDKey, instanceID, "error", cerr)
		}
	}

	return r, err
}
