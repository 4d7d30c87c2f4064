package client

import (
	"context"

	"github.com/cschleiden/orderflow/log"
	"github.com/cschleiden/orderflow/query"
	"github.com/cschleiden/orderflow/workflows/polling"
)

// PollingStatus combines the progress of a polling workflow with the status of its current run.
type PollingStatus struct {
	polling.Progress

	Status query.Status `json:"status"`
	Runs   int          `json:"runs"`
}

// StartPolling starts polling targetID, counting iterations from iterationCount. Zero settings
// select polling.DefaultSettings; otherwise a zero StopEvery disables the stop condition.
func (c *Client) StartPolling(ctx context.Context, targetID string, iterationCount int, settings polling.Settings) (string, error) {
	workflowID := polling.WorkflowID(targetID)

	if _, err := c.start(ctx, workflowID, polling.StartPolling, polling.Start(targetID, iterationCount, settings)); err != nil {
		return "", err
	}

	c.logger.Info("Polling started", log.TargetIDKey, targetID, log.IterationKey, iterationCount)

	return workflowID, nil
}

func (c *Client) GetPollingStatus(ctx context.Context, targetID string) (*PollingStatus, error) {
	workflowID := polling.WorkflowID(targetID)

	d, err := c.Describe(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	s := &PollingStatus{Status: d.Status, Runs: d.Runs}
	if err := c.query(ctx, workflowID, polling.QueryIterationCount, &s.Progress); err != nil {
		return nil, err
	}

	return s, nil
}

// StopPolling hard-stops the polling workflow of targetID.
func (c *Client) StopPolling(ctx context.Context, targetID string) error {
	return c.Terminate(ctx, polling.WorkflowID(targetID))
}
