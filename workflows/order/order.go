// Package order implements the order saga: validate, pay, reserve stock, notify. Steps run
// strictly one after another. When a step fails after payment or reservation committed, the
// committed steps are compensated in reverse order before the failure is returned.
package order

import (
	"fmt"
	"time"

	"github.com/cschleiden/go-workflows/workflow"
	"github.com/qmuntal/stateless"

	"github.com/cschleiden/orderflow/activities"
	"github.com/cschleiden/orderflow/failure"
	"github.com/cschleiden/orderflow/invoke"
	"github.com/cschleiden/orderflow/log"
	"github.com/cschleiden/orderflow/query"
	"github.com/cschleiden/orderflow/saga"
	"github.com/cschleiden/orderflow/workflows/inventory"
	"github.com/cschleiden/orderflow/workflows/payment"
)

const (
	SignalCancel                = "cancelOrder"
	SignalUpdateShippingAddress = "updateShippingAddress"

	QueryStatus = "getStatus"

	DefaultSKU = "default"
)

func WorkflowID(orderID string) string {
	return "order-workflow-" + orderID
}

type Input struct {
	OrderID         string `json:"orderId"`
	CustomerID      string `json:"customerId"`
	Amount          int64  `json:"amount"`
	SKU             string `json:"sku,omitempty"`
	Quantity        int    `json:"quantity"`
	ShippingAddress string `json:"shippingAddress,omitempty"`

	Options Options `json:"options"`
}

type Options struct {
	// ExecutionTimeout bounds the saga. Defaults to ten minutes.
	ExecutionTimeout time.Duration `json:"executionTimeout,omitempty"`

	// ShipReminderDelay enables a ship-day reminder sent this long after a completed order.
	// The reminder is not covered by ExecutionTimeout.
	ShipReminderDelay time.Duration `json:"shipReminderDelay,omitempty"`
}

// Status is the answer to the getStatus query.
type Status struct {
	OrderID           string   `json:"orderId"`
	State             State    `json:"state"`
	ShippingAddress   string   `json:"shippingAddress,omitempty"`
	AuthorizationID   string   `json:"authorizationId,omitempty"`
	CancelReason      string   `json:"cancelReason,omitempty"`
	Failure           string   `json:"failure,omitempty"`
	NotificationError string   `json:"notificationError,omitempty"`
	Compensated       []string `json:"compensated,omitempty"`
}

var (
	activityOptions = invoke.Options{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: invoke.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2,
			MaximumInterval:        10 * time.Second,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{failure.ValidationErrorType},
		},
	}

	compensationOptions = invoke.Options{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: invoke.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    10,
		},
	}

	childRetryPolicy = invoke.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2,
		MaximumAttempts:    2,
	}

	childExecutionTimeout = 5 * time.Minute

	defaultExecutionTimeout = 10 * time.Minute
)

var a *activities.Activities

type order struct {
	in     Input
	sm     *stateless.StateMachine
	status Status
	saga   saga.Saga

	cancel  workflow.Channel[string]
	address workflow.Channel[string]
}

func ProcessOrder(ctx workflow.Context, in Input) (string, error) {
	if in.SKU == "" {
		in.SKU = DefaultSKU
	}

	o := &order{
		in:      in,
		sm:      newStateMachine(),
		status:  Status{OrderID: in.OrderID, State: StatePending, ShippingAddress: in.ShippingAddress},
		cancel:  workflow.NewSignalChannel[string](ctx, SignalCancel),
		address: workflow.NewSignalChannel[string](ctx, SignalUpdateShippingAddress),
	}

	o.checkpoint(ctx)

	timeout := in.Options.ExecutionTimeout
	if timeout == 0 {
		timeout = defaultExecutionTimeout
	}

	result, err := invoke.WithExecutionTimeout(ctx, timeout, o.run)
	if err != nil {
		if failure.Is(err, failure.Timeout) {
			o.status.Failure = err.Error()
			if current(o.sm).Terminal() {
				o.checkpoint(ctx)
			} else {
				o.fire(ctx, triggerFail)
			}
		}

		return "", failure.Export(err)
	}

	if d := in.Options.ShipReminderDelay; d > 0 && current(o.sm) == StateCompleted {
		o.remind(ctx, d)
	}

	return result, nil
}

func (o *order) run(ctx workflow.Context) (string, error) {
	logger := workflow.Logger(ctx).With(log.OrderIDKey, o.in.OrderID)
	logger.Info("Processing order", log.CustomerIDKey, o.in.CustomerID, log.AmountKey, o.in.Amount)

	// 1. Validation and availability. Payment is never captured for an order that cannot be
	// fulfilled from current stock.
	o.fire(ctx, triggerValidate)

	if _, err := invoke.Activity[any](ctx, "validate-order", activityOptions, a.ValidateOrder, activities.Order{
		OrderID:    o.in.OrderID,
		CustomerID: o.in.CustomerID,
		Amount:     o.in.Amount,
		SKU:        o.in.SKU,
		Quantity:   o.in.Quantity,
	}); err != nil {
		return o.abort(ctx, err)
	}

	stock := activities.StockRequest{OrderID: o.in.OrderID, SKU: o.in.SKU, Quantity: o.in.Quantity}
	available, err := invoke.Activity[bool](ctx, "check-availability", activityOptions, a.CheckInventory, stock)
	if err != nil {
		return o.abort(ctx, err)
	}

	if !available {
		return o.abort(ctx, inventory.InsufficientStock("check-availability", o.in.OrderID))
	}

	if reason, ok := o.cancelRequested(ctx); ok {
		return o.cancelOrder(ctx, reason)
	}

	// 2. Payment
	o.fire(ctx, triggerPay)

	pr, err := invoke.Child[payment.Result](ctx, "process-payment", invoke.ChildOptions{
		WorkflowID:       "payment-" + o.in.OrderID,
		ExecutionTimeout: childExecutionTimeout,
		RetryPolicy:      childRetryPolicy,
	}, payment.ProcessPayment, payment.Input{
		OrderID:    o.in.OrderID,
		CustomerID: o.in.CustomerID,
		Amount:     o.in.Amount,
	})
	if err != nil {
		return o.abort(ctx, err)
	}

	o.status.AuthorizationID = pr.AuthorizationID
	o.saga.AddCompensation("refund-payment", func(ctx workflow.Context) error {
		_, err := invoke.Activity[any](ctx, "refund-payment", compensationOptions, a.RefundPayment, pr.AuthorizationID, o.in.Amount)
		return err
	})

	logger.Info("Payment completed", log.AuthorizationIDKey, pr.AuthorizationID)

	if reason, ok := o.cancelRequested(ctx); ok {
		return o.cancelOrder(ctx, reason)
	}

	// 3. Inventory. The release is registered up front: a child that timed out or was canceled
	// may have reserved stock, releasing an order without reservation is a no-op.
	o.fire(ctx, triggerReserve)

	o.saga.AddCompensation("release-inventory", func(ctx workflow.Context) error {
		_, err := invoke.Activity[any](ctx, "release-inventory", compensationOptions, a.ReleaseInventory, o.in.OrderID)
		return err
	})

	ir, err := invoke.Child[string](ctx, "reserve-inventory", invoke.ChildOptions{
		WorkflowID:       "inventory-" + o.in.OrderID,
		ExecutionTimeout: childExecutionTimeout,
		RetryPolicy:      childRetryPolicy,
	}, inventory.ReserveInventory, inventory.Input{
		OrderID:  o.in.OrderID,
		SKU:      o.in.SKU,
		Quantity: o.in.Quantity,
	})
	if err != nil {
		return o.abort(ctx, err)
	}

	logger.Info("Inventory completed", "result", ir)

	if reason, ok := o.cancelRequested(ctx); ok {
		return o.cancelOrder(ctx, reason)
	}

	// 4. Notification, best effort
	o.fire(ctx, triggerNotify)
	o.drainSignals(ctx)

	message := fmt.Sprintf("Order %s confirmed!", o.in.OrderID)
	if o.status.ShippingAddress != "" {
		message += " Shipping to: " + o.status.ShippingAddress
	}

	result := fmt.Sprintf("Order %s processed successfully", o.in.OrderID)

	if _, err := invoke.Activity[any](ctx, "send-notification", activityOptions, a.SendNotification, activities.Notification{
		Key:       "order-confirmed:" + o.in.OrderID,
		Recipient: o.in.CustomerID,
		Message:   message,
	}); err != nil {
		if failure.Is(err, failure.Canceled) {
			return o.abort(ctx, err)
		}

		// Payment and reservation stand, the failure is reported with the result
		logger.Error("Order confirmation could not be sent", "error", err)
		o.status.NotificationError = err.Error()
		result += " (notification failed: " + err.Error() + ")"
	}

	o.fire(ctx, triggerComplete)
	logger.Info("Order completed")

	return result, nil
}

// abort compensates committed steps and fails the order with the step's failure.
func (o *order) abort(ctx workflow.Context, err error) (string, error) {
	f := failure.Classify("", err)

	if len(o.saga.Steps()) > 0 {
		o.fire(ctx, triggerCompensate)

		done, cerr := o.saga.Compensate(ctx)
		o.status.Compensated = done
		if cerr != nil {
			err = fmt.Errorf("%w; compensation failed: %w", f, cerr)
		}
	}

	o.status.Failure = err.Error()
	o.fire(ctx, triggerFail)

	return "", err
}

func (o *order) cancelOrder(ctx workflow.Context, reason string) (string, error) {
	logger := workflow.Logger(ctx).With(log.OrderIDKey, o.in.OrderID)
	logger.Info("Cancelling order", "reason", reason)

	o.status.CancelReason = reason

	if len(o.saga.Steps()) > 0 {
		o.fire(ctx, triggerCompensate)

		done, err := o.saga.Compensate(ctx)
		o.status.Compensated = done
		if err != nil {
			o.status.Failure = err.Error()
			o.fire(ctx, triggerFail)
			return "", fmt.Errorf("cancelling order %s: %w", o.in.OrderID, err)
		}
	}

	o.fire(ctx, triggerCancel)

	return fmt.Sprintf("Order %s cancelled: %s", o.in.OrderID, reason), nil
}

// cancelRequested applies pending signals and reports whether cancellation was requested.
func (o *order) cancelRequested(ctx workflow.Context) (string, bool) {
	o.drainSignals(ctx)

	return o.status.CancelReason, o.status.CancelReason != ""
}

// drainSignals applies all signals received so far without blocking.
func (o *order) drainSignals(ctx workflow.Context) {
	for {
		received := false

		workflow.Select(ctx,
			workflow.Receive(o.cancel, func(ctx workflow.Context, reason string, ok bool) {
				received = ok
				if ok && o.status.CancelReason == "" {
					if reason == "" {
						reason = "cancelled by request"
					}
					o.status.CancelReason = reason
				}
			}),
			workflow.Receive(o.address, func(ctx workflow.Context, address string, ok bool) {
				received = ok
				if ok {
					o.status.ShippingAddress = address
				}
			}),
			workflow.Default(func(ctx workflow.Context) {}),
		)

		if !received {
			break
		}

		o.checkpoint(ctx)
	}
}

func (o *order) fire(ctx workflow.Context, t trigger) {
	if err := o.sm.Fire(t); err != nil {
		workflow.Logger(ctx).Error("Invalid order transition", log.OrderStateKey, current(o.sm), "trigger", t, "error", err)
		return
	}

	o.status.State = current(o.sm)
	o.checkpoint(ctx)
}

func (o *order) checkpoint(ctx workflow.Context) {
	if err := query.Checkpoint(ctx, QueryStatus, o.status); err != nil {
		workflow.Logger(ctx).Error("Could not record order status", "error", err)
	}
}

// remind sends the ship-day notification after d.
func (o *order) remind(ctx workflow.Context, d time.Duration) {
	if err := invoke.Sleep(ctx, d); err != nil {
		return
	}

	if _, err := invoke.Activity[any](ctx, "ship-reminder", activityOptions, a.SendNotification, activities.Notification{
		Key:       "order-ships:" + o.in.OrderID,
		Recipient: o.in.CustomerID,
		Message:   fmt.Sprintf("Your order %s ships today!", o.in.OrderID),
	}); err != nil {
		workflow.Logger(ctx).Warn("Ship reminder could not be sent", log.OrderIDKey, o.in.OrderID, "error", err)
	}
}
