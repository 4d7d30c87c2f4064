// Package client exposes the caller-facing operations of the order system: starting, signaling,
// querying and stopping the order, approval, polling and report workflows.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cschleiden/go-workflows/backend"
	"github.com/cschleiden/go-workflows/backend/converter"
	wfclient "github.com/cschleiden/go-workflows/client"
	"github.com/cschleiden/go-workflows/workflow"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cschleiden/orderflow/internal/correlation"
	"github.com/cschleiden/orderflow/internal/tracing"
	"github.com/cschleiden/orderflow/log"
	"github.com/cschleiden/orderflow/query"
	"github.com/cschleiden/orderflow/store"
)

var (
	ErrAlreadyRunning = errors.New("workflow already running")
	ErrNotFound       = errors.New("workflow not found")
)

type Client struct {
	wf     *wfclient.Client
	runs   store.Runs
	reader *query.Reader
	logger *slog.Logger
	clock  clock.Clock
	tracer trace.Tracer
}

type Option func(*options)

type options struct {
	converter      converter.Converter
	logger         *slog.Logger
	clock          clock.Clock
	tracerProvider trace.TracerProvider
}

// WithConverter sets the converter used to decode query results. It has to match the converter
// of the backend.
func WithConverter(c converter.Converter) Option {
	return func(o *options) {
		o.converter = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithTracerProvider sets the provider of caller-side spans. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

func New(b backend.Backend, runs store.Runs, opts ...Option) *Client {
	o := &options{logger: slog.Default(), clock: clock.New(), tracerProvider: otel.GetTracerProvider()}
	for _, opt := range opts {
		opt(o)
	}

	return &Client{
		wf:     wfclient.New(b),
		runs:   runs,
		reader: query.NewReader(b, o.converter),
		logger: o.logger,
		clock:  o.clock,
		tracer: o.tracerProvider.Tracer("orderflow/client"),
	}
}

func (c *Client) now() time.Time {
	return c.clock.Now()
}

// NewOrderID returns a new order id of the form ORD-XXXXXXXX.
func NewOrderID() string {
	return "ORD-" + strings.ToUpper(uuid.NewString()[:8])
}

// start creates a workflow instance under workflowID and records its first run.
func (c *Client) start(ctx context.Context, workflowID string, wf workflow.Workflow, args ...any) (*workflow.Instance, error) {
	ctx = correlation.Ensure(ctx)

	ctx, span := c.tracer.Start(ctx, "StartWorkflow", trace.WithAttributes(
		attribute.String(tracing.Operation, "start"),
		attribute.String(tracing.WorkflowID, workflowID),
	))
	defer span.End()

	instance, err := c.createInstance(ctx, workflowID, wf, args...)
	if err != nil {
		return nil, tracing.WithSpanError(span, err)
	}

	span.SetAttributes(attribute.String(tracing.ExecutionID, instance.ExecutionID))

	return instance, nil
}

func (c *Client) createInstance(ctx context.Context, workflowID string, wf workflow.Workflow, args ...any) (*workflow.Instance, error) {
	instance, err := c.wf.CreateWorkflowInstance(ctx, wfclient.WorkflowInstanceOptions{
		InstanceID: workflowID,
	}, wf, args...)
	if err != nil {
		if errors.Is(err, backend.ErrInstanceAlreadyExists) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, workflowID)
		}

		return nil, fmt.Errorf("starting %s: %w", workflowID, err)
	}

	if err := c.runs.RecordRun(ctx, workflowID, instance.ExecutionID); err != nil {
		return nil, fmt.Errorf("recording run of %s: %w", workflowID, err)
	}

	c.logger.Debug("Started workflow",
		log.WorkflowIDKey, workflowID,
		log.ExecutionIDKey, instance.ExecutionID,
		log.CorrelationIDKey, correlation.ID(ctx))

	return instance, nil
}

// instance returns the first run of workflowID.
func (c *Client) instance(ctx context.Context, workflowID string) (*workflow.Instance, error) {
	executionID, err := c.runs.Run(ctx, workflowID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, workflowID)
		}

		return nil, err
	}

	return &workflow.Instance{InstanceID: workflowID, ExecutionID: executionID}, nil
}

func (c *Client) signal(ctx context.Context, workflowID, name string, arg any) error {
	ctx, span := c.tracer.Start(ctx, "SignalWorkflow", trace.WithAttributes(
		attribute.String(tracing.WorkflowID, workflowID),
		attribute.String(tracing.SignalName, name),
	))
	defer span.End()

	return tracing.WithSpanError(span, c.sendSignal(ctx, workflowID, name, arg))
}

func (c *Client) sendSignal(ctx context.Context, workflowID, name string, arg any) error {
	if _, err := c.instance(ctx, workflowID); err != nil {
		return err
	}

	if err := c.wf.SignalWorkflow(ctx, workflowID, name, arg); err != nil {
		if errors.Is(err, backend.ErrInstanceNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, workflowID)
		}

		return fmt.Errorf("signaling %s with %s: %w", workflowID, name, err)
	}

	c.logger.Debug("Signaled workflow", log.WorkflowIDKey, workflowID, log.SignalNameKey, name)

	return nil
}

func (c *Client) query(ctx context.Context, workflowID, name string, v any) error {
	ctx, span := c.tracer.Start(ctx, "QueryWorkflow", trace.WithAttributes(
		attribute.String(tracing.WorkflowID, workflowID),
		attribute.String(tracing.QueryName, name),
	))
	defer span.End()

	instance, err := c.instance(ctx, workflowID)
	if err != nil {
		return tracing.WithSpanError(span, err)
	}

	if err := c.reader.Query(ctx, instance, name, v); err != nil {
		return tracing.WithSpanError(span, fmt.Errorf("querying %s of %s: %w", name, workflowID, err))
	}

	c.logger.Debug("Queried workflow", log.WorkflowIDKey, workflowID, log.QueryNameKey, name)

	return nil
}

// Describe returns the status of the current run of workflowID.
func (c *Client) Describe(ctx context.Context, workflowID string) (*query.Description, error) {
	instance, err := c.instance(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	return c.reader.Describe(ctx, instance)
}

// Terminate stops the current run of workflowID. Workflows observe the stop at their next
// suspension point and finish as TERMINATED.
func (c *Client) Terminate(ctx context.Context, workflowID string) error {
	d, err := c.Describe(ctx, workflowID)
	if err != nil {
		return err
	}

	if d.Status.Closed() {
		return nil
	}

	current := &workflow.Instance{InstanceID: workflowID, ExecutionID: d.RunID}
	if err := c.wf.CancelWorkflowInstance(ctx, current); err != nil {
		return fmt.Errorf("terminating %s: %w", workflowID, err)
	}

	c.logger.Info("Terminated workflow", log.WorkflowIDKey, workflowID, log.ExecutionIDKey, d.RunID)

	return nil
}
