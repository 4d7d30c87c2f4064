// Package polling implements a workflow that polls a target for as long as needed. The history of
// a run is bounded: after a fixed number of iterations the run continues as new, carrying its
// state forward in an explicit Continuation.
package polling

import (
	"fmt"
	"time"

	"github.com/cschleiden/go-workflows/workflow"

	"github.com/cschleiden/orderflow/activities"
	"github.com/cschleiden/orderflow/failure"
	"github.com/cschleiden/orderflow/invoke"
	"github.com/cschleiden/orderflow/log"
	"github.com/cschleiden/orderflow/query"
)

const (
	QueryIterationCount = "getIterationCount"

	// ContinuationVersion is the version of the Continuation record written by this code.
	ContinuationVersion = 1

	// DefaultExecutionTimeout is the smallest execution timeout of a run. Runs whose iterations
	// take longer get a timeout derived from their settings.
	DefaultExecutionTimeout = time.Hour
)

func WorkflowID(targetID string) string {
	return "polling-" + targetID
}

type Settings struct {
	// Interval is the pause between two iterations.
	Interval time.Duration `json:"interval"`

	// ResetThreshold is the number of iterations after which a run continues as new.
	ResetThreshold int `json:"resetThreshold"`

	// MaxIterations stops polling after this many iterations in total.
	MaxIterations int `json:"maxIterations"`

	// StopEvery stops polling once the total iteration count is a multiple of it. Zero disables
	// the stop condition.
	StopEvery int `json:"stopEvery"`
}

// runTimeout bounds one run: every iteration may wait out its interval and all poll attempts.
func (s Settings) runTimeout() time.Duration {
	iteration := s.Interval + time.Duration(pollOptions.RetryPolicy.MaximumAttempts)*pollOptions.StartToCloseTimeout
	return max(DefaultExecutionTimeout, 2*time.Duration(s.ResetThreshold)*iteration)
}

func DefaultSettings() Settings {
	return Settings{
		Interval:       5 * time.Second,
		ResetThreshold: 10,
		MaxIterations:  50,
		StopEvery:      25,
	}
}

// Continuation is the complete state handed from one run to the next.
type Continuation struct {
	Version  int    `json:"version"`
	TargetID string `json:"targetId"`

	// IterationCount is the number of iterations completed over all runs.
	IterationCount int `json:"iterationCount"`

	// Continuations is the number of continue-as-new transitions so far.
	Continuations int `json:"continuations"`

	// FirstRunID is the execution id of the first run.
	FirstRunID string `json:"firstRunId,omitempty"`

	Settings Settings `json:"settings"`
}

// Start returns the continuation for the first run of a polling workflow. Zero settings select
// DefaultSettings.
func Start(targetID string, iterationCount int, settings Settings) Continuation {
	return Continuation{
		Version:        ContinuationVersion,
		TargetID:       targetID,
		IterationCount: iterationCount,
		Settings:       settings,
	}
}

// Progress is the answer to the getIterationCount query.
type Progress struct {
	TargetID       string `json:"targetId"`
	IterationCount int    `json:"iterationCount"`
	RunIterations  int    `json:"runIterations"`
	Continuations  int    `json:"continuations"`
	RunID          string `json:"runId"`
}

type Result struct {
	WorkflowID     string `json:"workflowId"`
	FirstRunID     string `json:"firstRunId"`
	RunID          string `json:"runId"`
	IterationCount int    `json:"iterationCount"`
	Continuations  int    `json:"continuations"`
	Message        string `json:"message"`
}

var pollOptions = invoke.Options{
	StartToCloseTimeout: 10 * time.Second,
	RetryPolicy:         invoke.RetryPolicy{MaximumAttempts: 2},
}

var a *activities.Activities

func StartPolling(ctx workflow.Context, c Continuation) (Result, error) {
	if c.Version > ContinuationVersion {
		return Result{}, failure.Export(failure.New(failure.NonRetryable, "start-polling",
			fmt.Sprintf("continuation version %d is newer than supported version %d", c.Version, ContinuationVersion)))
	}

	c = upgrade(c)

	r, err := invoke.WithExecutionTimeout(ctx, c.Settings.runTimeout(), func(ctx workflow.Context) (Result, error) {
		return poll(ctx, c)
	})

	return r, failure.Export(err)
}

func poll(ctx workflow.Context, c Continuation) (Result, error) {
	instance := workflow.WorkflowInstance(ctx)
	if c.FirstRunID == "" {
		c.FirstRunID = instance.ExecutionID
	}

	logger := workflow.Logger(ctx).With(
		log.TargetIDKey, c.TargetID,
		log.ContinuationsKey, c.Continuations)

	result := func(message string) Result {
		return Result{
			WorkflowID:     instance.InstanceID,
			FirstRunID:     c.FirstRunID,
			RunID:          instance.ExecutionID,
			IterationCount: c.IterationCount,
			Continuations:  c.Continuations,
			Message:        message,
		}
	}

	s := c.Settings
	runIterations := 0

	for c.IterationCount < s.MaxIterations {
		c.IterationCount++
		runIterations++

		if err := query.Checkpoint(ctx, QueryIterationCount, Progress{
			TargetID:       c.TargetID,
			IterationCount: c.IterationCount,
			RunIterations:  runIterations,
			Continuations:  c.Continuations,
			RunID:          instance.ExecutionID,
		}); err != nil {
			logger.Error("Could not record polling progress", "error", err)
		}

		if _, err := invoke.Activity[any](ctx, "poll", pollOptions, a.Poll, c.TargetID, c.IterationCount); err != nil {
			if failure.Is(err, failure.Canceled) {
				return Result{}, err
			}

			logger.Warn("Poll failed", log.IterationKey, c.IterationCount, "error", err)
		}

		if s.StopEvery > 0 && c.IterationCount%s.StopEvery == 0 {
			logger.Info("Polling completed", log.IterationKey, c.IterationCount)
			return result(fmt.Sprintf("Polling completed after %d iterations for %s", c.IterationCount, c.TargetID)), nil
		}

		if c.IterationCount >= s.MaxIterations {
			break
		}

		if runIterations >= s.ResetThreshold {
			logger.Info("Continuing as new", log.IterationKey, c.IterationCount)

			c.Continuations++
			return result(""), workflow.ContinueAsNew(ctx, c)
		}

		if err := invoke.Sleep(ctx, s.Interval); err != nil {
			return Result{}, err
		}
	}

	logger.Info("Polling stopped at maximum iterations", log.IterationKey, c.IterationCount)
	return result(fmt.Sprintf("Polling stopped after reaching max iterations: %d", s.MaxIterations)), nil
}

// upgrade fills settings missing from continuations written by older versions. Zero settings
// are replaced by DefaultSettings, a zero StopEvery next to other settings disables the stop
// condition.
func upgrade(c Continuation) Continuation {
	d := DefaultSettings()

	if c.Settings == (Settings{}) {
		c.Settings = d
	}

	if c.Settings.Interval <= 0 {
		c.Settings.Interval = d.Interval
	}

	if c.Settings.ResetThreshold <= 0 {
		c.Settings.ResetThreshold = d.ResetThreshold
	}

	if c.Settings.MaxIterations <= 0 {
		c.Settings.MaxIterations = d.MaxIterations
	}

	c.Version = ContinuationVersion
	return c
}
