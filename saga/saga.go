// Package saga keeps the compensating actions of a workflow that commits several independent
// steps, and undoes the committed steps in reverse order when a later step fails.
package saga

import (
	"errors"

	"github.com/cschleiden/go-workflows/workflow"

	"github.com/cschleiden/orderflow/failure"
	"github.com/cschleiden/orderflow/log"
)

type compensation struct {
	step string
	undo func(ctx workflow.Context) error
}

// Saga is used from a single workflow and is reconstructed on replay like any other workflow
// state.
type Saga struct {
	compensations []compensation
}

// AddCompensation registers undo for a step that committed.
func (s *Saga) AddCompensation(step string, undo func(ctx workflow.Context) error) {
	s.compensations = append(s.compensations, compensation{step: step, undo: undo})
}

// Steps returns the steps that have a pending compensation, in the order they were added.
func (s *Saga) Steps() []string {
	steps := make([]string, 0, len(s.compensations))
	for _, c := range s.compensations {
		steps = append(steps, c.step)
	}

	return steps
}

// Compensate runs all registered compensations, the most recent first. Compensations run even if
// ctx was canceled. Every compensation is attempted; their failures are joined.
func (s *Saga) Compensate(ctx workflow.Context) ([]string, error) {
	logger := workflow.Logger(ctx)
	dctx := workflow.NewDisconnectedContext(ctx)

	dctx, span := workflow.Tracer(dctx).Start(dctx, "Compensate")
	defer span.End()

	var done []string
	var errs []error
	for i := len(s.compensations) - 1; i >= 0; i-- {
		c := s.compensations[i]

		if err := c.undo(dctx); err != nil {
			f := failure.Classify(c.step, err)
			logger.Error("Compensation failed", log.StepKey, c.step, "error", f)
			errs = append(errs, f)
			continue
		}

		logger.Info("Compensated step", log.StepKey, c.step)
		done = append(done, c.step)
	}

	s.compensations = nil

	return done, errors.Join(errs...)
}
