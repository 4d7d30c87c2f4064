// Package approval implements the approval workflow, which suspends an order until a person
// approves or rejects it, or the approval window closes.
package approval

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
	SignalApprove = "approve"
	SignalReject  = "reject"

	QueryApprovalStatus = "getApprovalStatus"

	DefaultTimeout          = 24 * time.Hour
	DefaultExecutionTimeout = 25 * time.Hour
)

func WorkflowID(orderID string) string {
	return "approval-" + orderID
}

type Input struct {
	OrderID    string `json:"orderId"`
	CustomerID string `json:"customerId"`
	Amount     int64  `json:"amount"`

	// Timeout is the approval window. Defaults to DefaultTimeout.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Status is the answer to the getApprovalStatus query.
type Status struct {
	OrderID   string     `json:"orderId"`
	State     State      `json:"state"`
	Note      string     `json:"note,omitempty"`
	DecidedAt *time.Time `json:"decidedAt,omitempty"`

	// IgnoredSignals counts decisions received after the gate closed.
	IgnoredSignals int `json:"ignoredSignals,omitempty"`
}

type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

var notifyOptions = invoke.Options{
	StartToCloseTimeout: 10 * time.Second,
	RetryPolicy:         invoke.RetryPolicy{MaximumAttempts: 2},
}

var a *activities.Activities

func RequestApproval(ctx workflow.Context, in Input) (Result, error) {
	r, err := invoke.WithExecutionTimeout(ctx, DefaultExecutionTimeout, func(ctx workflow.Context) (Result, error) {
		return requestApproval(ctx, in)
	})

	return r, failure.Export(err)
}

func requestApproval(ctx workflow.Context, in Input) (Result, error) {
	logger := workflow.Logger(ctx).With(log.OrderIDKey, in.OrderID)

	timeout := in.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	g := NewGate()
	checkpoint(ctx, in, g)

	approve := workflow.NewSignalChannel[string](ctx, SignalApprove)
	reject := workflow.NewSignalChannel[string](ctx, SignalReject)

	notify(ctx, activities.Notification{
		Key:       "approval-requested:" + in.OrderID,
		Recipient: in.CustomerID,
		Message:   fmt.Sprintf("Order %s for amount %d requires your approval.", in.OrderID, in.Amount),
	})

	tctx, cancelTimer := workflow.WithCancel(ctx)
	defer cancelTimer()

	timer := workflow.ScheduleTimer(tctx, timeout)

	_, span := workflow.Tracer(ctx).Start(ctx, "Wait-for-decision")

	var canceled error
	for !g.State().Terminal() && canceled == nil {
		workflow.Select(ctx,
			workflow.Receive(approve, func(ctx workflow.Context, note string, ok bool) {
				if ok {
					g.Approve(note, workflow.Now(ctx))
				}
			}),
			workflow.Receive(reject, func(ctx workflow.Context, reason string, ok bool) {
				if ok {
					g.Reject(reason, workflow.Now(ctx))
				}
			}),
			workflow.Await(timer, func(ctx workflow.Context, f workflow.Future[struct{}]) {
				if _, err := f.Get(ctx); err != nil {
					canceled = err
					return
				}

				g.Expire(workflow.Now(ctx))
			}),
		)

		checkpoint(ctx, in, g)
	}

	span.End()

	if canceled != nil {
		return Result{}, failure.Classify("await-approval", canceled)
	}

	// Decisions that arrived together with the winning one are ignored
	if ignoreBuffered(ctx, g, approve, reject) {
		checkpoint(ctx, in, g)
	}

	logger.Info("Approval decided", log.ApprovalStateKey, g.State())

	r := Result{Status: status(in, g)}
	switch g.State() {
	case StateApproved:
		r.Message = fmt.Sprintf("Order %s approved: %s", in.OrderID, g.Note())

	case StateRejected:
		r.Message = fmt.Sprintf("Order %s rejected: %s", in.OrderID, g.Note())

	case StateAutoRejected:
		r.Message = fmt.Sprintf("Order %s rejected: approval timeout after %v", in.OrderID, timeout)

		notify(ctx, activities.Notification{
			Key:       "approval-expired:" + in.OrderID,
			Recipient: in.CustomerID,
			Message:   fmt.Sprintf("Approval for order %s timed out, the order was rejected.", in.OrderID),
		})
	}

	return r, nil
}

func ignoreBuffered(ctx workflow.Context, g *Gate, approve, reject workflow.Channel[string]) bool {
	drained := false

	for {
		received := false

		workflow.Select(ctx,
			workflow.Receive(approve, func(ctx workflow.Context, note string, ok bool) {
				received = ok
				if ok {
					g.Approve(note, workflow.Now(ctx))
				}
			}),
			workflow.Receive(reject, func(ctx workflow.Context, reason string, ok bool) {
				received = ok
				if ok {
					g.Reject(reason, workflow.Now(ctx))
				}
			}),
			workflow.Default(func(ctx workflow.Context) {}),
		)

		if !received {
			return drained
		}

		drained = true
	}
}

// notify sends a notification, failures do not change the approval outcome.
func notify(ctx workflow.Context, n activities.Notification) {
	if _, err := invoke.Activity[any](ctx, "send-notification", notifyOptions, a.SendNotification, n); err != nil {
		workflow.Logger(ctx).Warn("Could not send approval notification", "key", n.Key, "error", err)
	}
}

func status(in Input, g *Gate) Status {
	s := Status{
		OrderID:        in.OrderID,
		State:          g.State(),
		Note:           g.Note(),
		IgnoredSignals: g.Ignored(),
	}

	if s.State.Terminal() {
		at := g.DecidedAt()
		s.DecidedAt = &at
	}

	return s
}

func checkpoint(ctx workflow.Context, in Input, g *Gate) {
	if err := query.Checkpoint(ctx, QueryApprovalStatus, status(in, g)); err != nil {
		workflow.Logger(ctx).Error("Could not record approval status", "error", err)
	}
}
