package invoke

import (
	"fmt"
	"time"

	"github.com/cschleiden/go-workflows/workflow"
	"github.com/cschleiden/orderflow/failure"
)

// WithExecutionTimeout runs body under a context that is canceled once timeout elapses. A body
// that was canceled by the timeout fails with a Timeout failure. The timeout covers one run, a
// continue-as-new starts a fresh one.
func WithExecutionTimeout[T any](ctx workflow.Context, timeout time.Duration, body func(ctx workflow.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return body(ctx)
	}

	bctx, cancelBody := workflow.WithCancel(ctx)
	tctx, cancelTimer := workflow.WithCancel(ctx)
	timer := workflow.ScheduleTimer(tctx, timeout)

	timedOut := false
	workflow.Go(ctx, func(ctx workflow.Context) {
		if _, err := timer.Get(ctx); err == nil {
			timedOut = true
			cancelBody()
		}
	})

	r, err := body(bctx)
	cancelTimer()

	if timedOut && failure.Is(err, failure.Canceled) {
		var zero T
		return zero, &failure.Failure{
			Kind:    failure.Timeout,
			Step:    "execution",
			Message: fmt.Sprintf("workflow exceeded its execution timeout of %v", timeout),
			Cause:   err,
		}
	}

	return r, err
}
