// Package query exposes workflow state to callers without involving the workflow. Workflows
// record checkpoints of their state in history; a Reader decodes the latest checkpoint of the
// current run of an instance. Reading never blocks on, signals, or executes the workflow.
package query

import (
	"encoding/json"
	"fmt"

	"github.com/cschleiden/go-workflows/workflow"
)

// Record is the history payload of a checkpoint.
type Record struct {
	Query string          `json:"query"`
	Value json.RawMessage `json:"value"`
}

// Checkpoint records v as the current answer to the query name. It can be called on a canceled
// context so final states are recorded while a workflow winds down.
func Checkpoint(ctx workflow.Context, name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s checkpoint: %w", name, err)
	}

	dctx := workflow.NewDisconnectedContext(ctx)
	if _, err := workflow.SideEffect(dctx, func(workflow.Context) Record {
		return Record{Query: name, Value: raw}
	}).Get(dctx); err != nil {
		return fmt.Errorf("recording %s checkpoint: %w", name, err)
	}

	return nil
}
