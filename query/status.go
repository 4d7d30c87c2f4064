package query

import (
	"time"

	"github.com/cschleiden/orderflow/failure"
)

type Status string

const (
	StatusRunning    Status = "RUNNING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusTimedOut   Status = "TIMED_OUT"
	StatusTerminated Status = "TERMINATED"
)

func (s Status) Closed() bool {
	return s != StatusRunning
}

// Description summarizes the current run of a workflow instance.
type Description struct {
	WorkflowID string `json:"workflowId"`
	RunID      string `json:"runId"`

	// Runs is the number of runs of the instance, more than one after continue-as-new.
	Runs int `json:"runs"`

	Status Status `json:"status"`

	StartedAt time.Time  `json:"startedAt"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`

	// Failure is the chain of failures of a failed run, outermost first.
	Failure []failure.Link `json:"failure,omitempty"`
}
