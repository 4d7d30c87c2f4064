package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cschleiden/go-workflows/backend/converter"
	"github.com/cschleiden/go-workflows/backend/history"
	"github.com/cschleiden/go-workflows/workflow"
	"github.com/cschleiden/orderflow/failure"
)

var ErrNoCheckpoint = errors.New("no checkpoint recorded for query")

// maxRuns guards against following a corrupt continuation chain forever.
const maxRuns = 100_000

// HistoryReader is the part of a backend needed to read workflow state.
type HistoryReader interface {
	GetWorkflowInstanceHistory(ctx context.Context, instance *workflow.Instance, lastSequenceID *int64) ([]*history.Event, error)
}

type Reader struct {
	b    HistoryReader
	conv converter.Converter
}

// NewReader returns a reader decoding payloads with conv, which has to match the converter the
// backend was configured with. A nil conv selects the engine's default converter.
func NewReader(b HistoryReader, conv converter.Converter) *Reader {
	if conv == nil {
		conv = converter.DefaultConverter
	}

	return &Reader{b: b, conv: conv}
}

type run struct {
	instance *workflow.Instance
	events   []*history.Event
	runs     int
}

// latest follows continue-as-new transitions from the given run to the current run.
func (r *Reader) latest(ctx context.Context, instance *workflow.Instance) (*run, error) {
	cur := instance
	for n := 1; n <= maxRuns; n++ {
		events, err := r.b.GetWorkflowInstanceHistory(ctx, cur, nil)
		if err != nil {
			return nil, fmt.Errorf("reading history of %s/%s: %w", cur.InstanceID, cur.ExecutionID, err)
		}

		next := continuedExecution(events)
		if next == "" {
			return &run{instance: cur, events: events, runs: n}, nil
		}

		cur = &workflow.Instance{InstanceID: cur.InstanceID, ExecutionID: next}
	}

	return nil, fmt.Errorf("instance %s continued more than %d times", instance.InstanceID, maxRuns)
}

func continuedExecution(events []*history.Event) string {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == history.EventType_WorkflowExecutionContinuedAsNew {
			a := events[i].Attributes.(*history.ExecutionContinuedAsNewAttributes)
			return a.ContinuedExecutionID
		}
	}

	return ""
}

// Query decodes the latest value the current run of instance recorded for name into v.
func (r *Reader) Query(ctx context.Context, instance *workflow.Instance, name string, v any) error {
	cur, err := r.latest(ctx, instance)
	if err != nil {
		return err
	}

	for i := len(cur.events) - 1; i >= 0; i-- {
		e := cur.events[i]
		if e.Type != history.EventType_SideEffectResult {
			continue
		}

		a := e.Attributes.(*history.SideEffectResultAttributes)

		var rec Record
		if err := r.conv.From(a.Result, &rec); err != nil {
			// Side effect not recorded by Checkpoint
			continue
		}

		if rec.Query != name {
			continue
		}

		if err := json.Unmarshal(rec.Value, v); err != nil {
			return fmt.Errorf("decoding %s checkpoint: %w", name, err)
		}

		return nil
	}

	return fmt.Errorf("%w %q of %s", ErrNoCheckpoint, name, instance.InstanceID)
}

// Describe reports the status of the current run of instance.
func (r *Reader) Describe(ctx context.Context, instance *workflow.Instance) (*Description, error) {
	cur, err := r.latest(ctx, instance)
	if err != nil {
		return nil, err
	}

	d := &Description{
		WorkflowID: cur.instance.InstanceID,
		RunID:      cur.instance.ExecutionID,
		Runs:       cur.runs,
		Status:     StatusRunning,
	}

	canceled := false
	for _, e := range cur.events {
		switch e.Type {
		case history.EventType_WorkflowExecutionStarted:
			d.StartedAt = e.Timestamp

		case history.EventType_WorkflowExecutionCanceled:
			canceled = true

		case history.EventType_WorkflowExecutionTerminated:
			closed := e.Timestamp
			d.ClosedAt = &closed
			d.Status = StatusTerminated

		case history.EventType_WorkflowExecutionFinished:
			closed := e.Timestamp
			d.ClosedAt = &closed

			a := e.Attributes.(*history.ExecutionCompletedAttributes)
			d.Status = finishedStatus(a.Error, canceled)
			if a.Error != nil {
				d.Failure = failure.Chain(a.Error)
			}
		}
	}

	return d, nil
}

func finishedStatus(werr *workflow.Error, canceled bool) Status {
	switch {
	case werr == nil:
		return StatusCompleted
	case canceled:
		// Canceled by a caller, the workflow's hard stop
		return StatusTerminated
	}

	if failure.KindOf(werr) == failure.Timeout {
		return StatusTimedOut
	}

	return StatusFailed
}
