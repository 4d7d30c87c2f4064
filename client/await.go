package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	wfclient "github.com/cschleiden/go-workflows/client"
	"github.com/cschleiden/go-workflows/workflow"

	"github.com/cschleiden/orderflow/failure"
	"github.com/cschleiden/orderflow/query"
)

var errStillRunning = errors.New("workflow still running")

// AwaitResult waits up to timeout for workflowID to close and returns the result of its last run.
// A failed workflow returns its failure as *failure.Failure.
func AwaitResult[T any](ctx context.Context, c *Client, workflowID string, timeout time.Duration) (T, error) {
	var zero T

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = timeout
	b.Clock = c.clock

	var d *query.Description
	err := backoff.Retry(func() error {
		var err error
		d, err = c.Describe(ctx, workflowID)
		if err != nil {
			return backoff.Permanent(err)
		}

		if !d.Status.Closed() {
			return errStillRunning
		}

		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		if errors.Is(err, errStillRunning) {
			return zero, fmt.Errorf("waiting for %s: %w", workflowID, context.DeadlineExceeded)
		}

		return zero, err
	}

	current := &workflow.Instance{InstanceID: workflowID, ExecutionID: d.RunID}
	r, err := wfclient.GetWorkflowResult[T](ctx, c.wf, current, 0)
	if err != nil {
		if errors.Is(err, wfclient.ErrWorkflowCanceled) {
			return zero, failure.New(failure.Canceled, workflowID, err.Error())
		}

		return zero, failure.Classify(workflowID, err)
	}

	return r, nil
}
