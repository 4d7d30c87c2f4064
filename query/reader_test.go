package query

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cschleiden/go-workflows/backend/converter"
	"github.com/cschleiden/go-workflows/backend/history"
	"github.com/cschleiden/go-workflows/workflow"
	"github.com/stretchr/testify/require"

	"github.com/cschleiden/orderflow/failure"
)

type fakeHistory map[string][]*history.Event

func (f fakeHistory) GetWorkflowInstanceHistory(_ context.Context, instance *workflow.Instance, _ *int64) ([]*history.Event, error) {
	return f[instance.ExecutionID], nil
}

var start = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func event(t *testing.T, typ history.EventType, attrs any) *history.Event {
	t.Helper()

	return &history.Event{
		Type:       typ,
		Timestamp:  start,
		Attributes: attrs,
	}
}

func started(t *testing.T) *history.Event {
	return event(t, history.EventType_WorkflowExecutionStarted, &history.ExecutionStartedAttributes{})
}

func checkpoint(t *testing.T, name string, v any) *history.Event {
	t.Helper()

	raw, err := json.Marshal(v)
	require.NoError(t, err)

	p, err := converter.DefaultConverter.To(Record{Query: name, Value: raw})
	require.NoError(t, err)

	return event(t, history.EventType_SideEffectResult, &history.SideEffectResultAttributes{Result: p})
}

func finished(t *testing.T, err error) *history.Event {
	t.Helper()

	a := &history.ExecutionCompletedAttributes{}
	if err != nil {
		var werr *workflow.Error
		require.ErrorAs(t, err, &werr)
		a.Error = werr
	}

	return event(t, history.EventType_WorkflowExecutionFinished, a)
}

func continued(t *testing.T, next string) *history.Event {
	return event(t, history.EventType_WorkflowExecutionContinuedAsNew, &history.ExecutionContinuedAsNewAttributes{ContinuedExecutionID: next})
}

type progress struct {
	Count int `json:"count"`
}

func instance(executionID string) *workflow.Instance {
	return &workflow.Instance{InstanceID: "polling-1", ExecutionID: executionID}
}

func Test_Query_LatestCheckpointWins(t *testing.T) {
	r := NewReader(fakeHistory{
		"run-1": {
			started(t),
			checkpoint(t, "getCount", progress{Count: 1}),
			checkpoint(t, "other", progress{Count: 99}),
			checkpoint(t, "getCount", progress{Count: 2}),
		},
	}, nil)

	var p progress
	require.NoError(t, r.Query(context.Background(), instance("run-1"), "getCount", &p))
	require.Equal(t, 2, p.Count)
}

func Test_Query_FollowsContinuations(t *testing.T) {
	r := NewReader(fakeHistory{
		"run-1": {started(t), checkpoint(t, "getCount", progress{Count: 10}), continued(t, "run-2")},
		"run-2": {started(t), checkpoint(t, "getCount", progress{Count: 20}), continued(t, "run-3")},
		"run-3": {started(t), checkpoint(t, "getCount", progress{Count: 23})},
	}, nil)

	var p progress
	require.NoError(t, r.Query(context.Background(), instance("run-1"), "getCount", &p))
	require.Equal(t, 23, p.Count)

	d, err := r.Describe(context.Background(), instance("run-1"))
	require.NoError(t, err)
	require.Equal(t, "run-3", d.RunID)
	require.Equal(t, 3, d.Runs)
	require.Equal(t, StatusRunning, d.Status)
}

func Test_Query_NoCheckpoint(t *testing.T) {
	r := NewReader(fakeHistory{"run-1": {started(t)}}, nil)

	var p progress
	err := r.Query(context.Background(), instance("run-1"), "getCount", &p)
	require.ErrorIs(t, err, ErrNoCheckpoint)
}

func Test_Query_SkipsForeignSideEffects(t *testing.T) {
	p, err := converter.DefaultConverter.To(42)
	require.NoError(t, err)

	r := NewReader(fakeHistory{
		"run-1": {
			started(t),
			checkpoint(t, "getCount", progress{Count: 5}),
			event(t, history.EventType_SideEffectResult, &history.SideEffectResultAttributes{Result: p}),
		},
	}, nil)

	var got progress
	require.NoError(t, r.Query(context.Background(), instance("run-1"), "getCount", &got))
	require.Equal(t, 5, got.Count)
}

func Test_Describe(t *testing.T) {
	tests := []struct {
		name        string
		events      []*history.Event
		wantStatus  Status
		wantFailure bool
	}{
		{
			name:       "running",
			events:     []*history.Event{started(t)},
			wantStatus: StatusRunning,
		},
		{
			name:       "completed",
			events:     []*history.Event{started(t), finished(t, nil)},
			wantStatus: StatusCompleted,
		},
		{
			name: "failed",
			events: []*history.Event{started(t), finished(t, failure.Export(&failure.Failure{
				Kind: failure.NonRetryable, Step: "validate-order", Type: failure.ValidationErrorType, Message: "Invalid amount: 0",
			}))},
			wantStatus:  StatusFailed,
			wantFailure: true,
		},
		{
			name: "timed out",
			events: []*history.Event{started(t), finished(t, failure.Export(&failure.Failure{
				Kind: failure.Timeout, Step: "execution", Message: "workflow exceeded its execution timeout of 1m0s",
			}))},
			wantStatus:  StatusTimedOut,
			wantFailure: true,
		},
		{
			name: "canceled",
			events: []*history.Event{
				started(t),
				event(t, history.EventType_WorkflowExecutionCanceled, &history.ExecutionCanceledAttributes{}),
				finished(t, failure.Export(failure.New(failure.Canceled, "await-approval", "canceled"))),
			},
			wantStatus:  StatusTerminated,
			wantFailure: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(fakeHistory{"run-1": tt.events}, nil)

			d, err := r.Describe(context.Background(), instance("run-1"))
			require.NoError(t, err)
			require.Equal(t, tt.wantStatus, d.Status)
			require.Equal(t, start, d.StartedAt)
			require.Equal(t, tt.wantStatus.Closed(), d.ClosedAt != nil)
			require.Equal(t, tt.wantFailure, len(d.Failure) > 0)
		})
	}
}
