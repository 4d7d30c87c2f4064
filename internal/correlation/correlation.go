// Package correlation carries a correlation id from the caller starting a workflow into the
// workflow, its sub-workflows and its activities.
package correlation

import (
	"context"

	"github.com/cschleiden/go-workflows/workflow"
	"github.com/google/uuid"
)

const metadataKey = "orderflow-correlation-id"

type key int

var idKey key

func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey, id)
}

// ID returns the correlation id of ctx or an empty string.
func ID(ctx context.Context) string {
	id, _ := ctx.Value(idKey).(string)
	return id
}

// Ensure returns ctx with a correlation id, generating one if ctx does not carry one yet.
func Ensure(ctx context.Context) context.Context {
	if ID(ctx) != "" {
		return ctx
	}

	return WithID(ctx, uuid.NewString())
}

func withWorkflowID(ctx workflow.Context, id string) workflow.Context {
	return workflow.WithValue(ctx, idKey, id)
}

// WorkflowID returns the correlation id of a workflow context or an empty string.
func WorkflowID(ctx workflow.Context) string {
	id, _ := ctx.Value(idKey).(string)
	return id
}

type Propagator struct{}

var _ workflow.ContextPropagator = (*Propagator)(nil)

func (*Propagator) Inject(ctx context.Context, metadata *workflow.Metadata) error {
	if id := ID(ctx); id != "" {
		metadata.Set(metadataKey, id)
	}

	return nil
}

func (*Propagator) Extract(ctx context.Context, metadata *workflow.Metadata) (context.Context, error) {
	if id := metadata.Get(metadataKey); id != "" {
		return WithID(ctx, id), nil
	}

	return ctx, nil
}

func (*Propagator) InjectFromWorkflow(ctx workflow.Context, metadata *workflow.Metadata) error {
	if id := WorkflowID(ctx); id != "" {
		metadata.Set(metadataKey, id)
	}

	return nil
}

func (*Propagator) ExtractToWorkflow(ctx workflow.Context, metadata *workflow.Metadata) (workflow.Context, error) {
	if id := metadata.Get(metadataKey); id != "" {
		return withWorkflowID(ctx, id), nil
	}

	return ctx, nil
}
