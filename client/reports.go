package client

import (
	"context"
	"errors"

	"github.com/cschleiden/orderflow/log"
	"github.com/cschleiden/orderflow/query"
	"github.com/cschleiden/orderflow/workflows/report"
)

// StartReportCron schedules the daily report. An empty schedule selects report.DefaultSchedule.
func (c *Client) StartReportCron(ctx context.Context, schedule string) error {
	state := report.NewCronState(schedule)

	if _, err := report.Next(state.Schedule, c.now()); err != nil {
		return err
	}

	if _, err := c.start(ctx, report.WorkflowID, report.GenerateDailyReport, state); err != nil {
		return err
	}

	c.logger.Info("Report cron started", log.ScheduleKey, state.Schedule)

	return nil
}

func (c *Client) StopReportCron(ctx context.Context) error {
	return c.Terminate(ctx, report.WorkflowID)
}

// GetReportStatus returns the last completion result of the report cron.
func (c *Client) GetReportStatus(ctx context.Context) (*report.LastRun, error) {
	var r report.LastRun
	if err := c.query(ctx, report.WorkflowID, report.QueryLastResult, &r); err != nil {
		if errors.Is(err, query.ErrNoCheckpoint) {
			return &report.LastRun{}, nil
		}

		return nil, err
	}

	return &r, nil
}
