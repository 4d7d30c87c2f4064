// Package report runs the daily order report on a cron schedule. Every scheduled run is its own
// execution of the same workflow instance, so two runs never overlap, and the result of the last
// successful run is handed to the next one.
package report

import (
	"fmt"
	"time"

	"github.com/cschleiden/go-workflows/workflow"
	"github.com/robfig/cron"

	"github.com/cschleiden/orderflow/activities"
	"github.com/cschleiden/orderflow/failure"
	"github.com/cschleiden/orderflow/invoke"
	"github.com/cschleiden/orderflow/log"
	"github.com/cschleiden/orderflow/query"
)

const (
	WorkflowID = "daily-order-report"

	QueryLastResult = "getLastResult"

	DefaultSchedule = "0 9 * * *"

	// RunTimeout bounds the work of a single scheduled run, not the wait for its tick.
	RunTimeout = 10 * time.Minute

	StateVersion = 1
)

// CronState is carried from one scheduled run to the next.
type CronState struct {
	Version  int    `json:"version"`
	Schedule string `json:"schedule"`

	// LastCompletionResult is the summary returned by the last successful run.
	LastCompletionResult string `json:"lastCompletionResult,omitempty"`

	// Runs counts completed ticks, successful or not.
	Runs int `json:"runs"`

	// MaxRuns ends the schedule after that many ticks. Zero runs until stopped.
	MaxRuns int `json:"maxRuns,omitempty"`
}

func NewCronState(schedule string) CronState {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	return CronState{Version: StateVersion, Schedule: schedule}
}

// LastRun answers the getLastResult query.
type LastRun struct {
	Schedule             string    `json:"schedule"`
	Runs                 int       `json:"runs"`
	LastCompletionResult string    `json:"lastCompletionResult,omitempty"`
	LastError            string    `json:"lastError,omitempty"`
	NextRunAt            time.Time `json:"nextRunAt"`
}

// Reports have to be cheap to redo, a failed run waits for the next tick instead of retrying.
var reportOptions = invoke.Options{
	StartToCloseTimeout: 5 * time.Minute,
	RetryPolicy:         invoke.NoRetries,
}

var a *activities.Activities

// Next returns the first tick of schedule after t.
func Next(schedule string, t time.Time) (time.Time, error) {
	s, err := cron.ParseStandard(schedule)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing schedule %q: %w", schedule, err)
	}

	next := s.Next(t)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("schedule %q never fires", schedule)
	}

	return next, nil
}

func GenerateDailyReport(ctx workflow.Context, state CronState) (string, error) {
	if state.Schedule == "" {
		state.Schedule = DefaultSchedule
	}

	logger := workflow.Logger(ctx).With(log.ScheduleKey, state.Schedule)

	tick, err := Next(state.Schedule, workflow.Now(ctx))
	if err != nil {
		return "", failure.Export(failure.New(failure.NonRetryable, "schedule", err.Error()))
	}

	checkpoint(ctx, state, "", tick)

	if err := invoke.Sleep(ctx, tick.Sub(workflow.Now(ctx))); err != nil {
		logger.Info("Report schedule stopped")
		return state.LastCompletionResult, failure.Export(err)
	}

	// The report covers the day before the tick
	date := tick.UTC().AddDate(0, 0, -1).Format(activities.DateLayout)
	logger = logger.With(log.ReportDateKey, date)

	summary, err := invoke.WithExecutionTimeout(ctx, RunTimeout, func(ctx workflow.Context) (string, error) {
		return invoke.Activity[string](ctx, "generate-report", reportOptions, a.GenerateOrderReport,
			activities.ReportRequest{Date: date, Previous: state.LastCompletionResult})
	})

	next := state
	next.Version = StateVersion
	next.Runs++

	lastError := ""
	if err != nil {
		if failure.Is(err, failure.Canceled) {
			return state.LastCompletionResult, failure.Export(err)
		}

		logger.Error("Report run failed, waiting for next tick", "error", err)
		lastError = err.Error()
	} else {
		logger.Info("Report generated", "summary", summary)
		next.LastCompletionResult = summary
	}

	following, err := Next(next.Schedule, workflow.Now(ctx))
	if err == nil {
		checkpoint(ctx, next, lastError, following)
	}

	if next.MaxRuns > 0 && next.Runs >= next.MaxRuns {
		logger.Info("Report schedule finished", "runs", next.Runs)
		return next.LastCompletionResult, nil
	}

	return next.LastCompletionResult, workflow.ContinueAsNew(ctx, next)
}

func checkpoint(ctx workflow.Context, state CronState, lastError string, next time.Time) {
	if err := query.Checkpoint(ctx, QueryLastResult, LastRun{
		Schedule:             state.Schedule,
		Runs:                 state.Runs,
		LastCompletionResult: state.LastCompletionResult,
		LastError:            lastError,
		NextRunAt:            next,
	}); err != nil {
		workflow.Logger(ctx).Error("Could not record report state", "error", err)
	}
}
