// Package payment implements the payment child workflow: authorize, then capture. A capture that
// fails after a successful authorization voids the authorization before the failure is returned.
package payment

import (
	"errors"
	"time"

	"github.com/cschleiden/go-workflows/workflow"

	"github.com/cschleiden/orderflow/activities"
	"github.com/cschleiden/orderflow/failure"
	"github.com/cschleiden/orderflow/invoke"
	"github.com/cschleiden/orderflow/log"
)

type Input struct {
	OrderID    string `json:"orderId"`
	CustomerID string `json:"customerId"`
	Amount     int64  `json:"amount"`
}

type Result struct {
	AuthorizationID string `json:"authorizationId"`
	Status          string `json:"status"`
}

// Payment provider calls are retried more often than other activities.
var paymentOptions = invoke.Options{
	StartToCloseTimeout: 30 * time.Second,
	RetryPolicy: invoke.RetryPolicy{
		InitialInterval:        2 * time.Second,
		BackoffCoefficient:     2,
		MaximumInterval:        20 * time.Second,
		MaximumAttempts:        5,
		NonRetryableErrorTypes: []string{failure.PaymentDeclinedErrorType},
	},
}

var a *activities.Activities

func ProcessPayment(ctx workflow.Context, in Input) (Result, error) {
	logger := workflow.Logger(ctx).With(log.OrderIDKey, in.OrderID)

	authID, err := invoke.Activity[string](ctx, "authorize-payment", paymentOptions, a.AuthorizePayment, activities.PaymentRequest{
		OrderID:    in.OrderID,
		CustomerID: in.CustomerID,
		Amount:     in.Amount,
	})
	if err != nil {
		return Result{}, failure.Export(err)
	}

	logger = logger.With(log.AuthorizationIDKey, authID)

	if _, err := invoke.Activity[any](ctx, "capture-payment", paymentOptions, a.CapturePayment, authID, in.Amount); err != nil {
		logger.Warn("Capture failed, voiding authorization", "error", err)

		// The void also runs when the payment was canceled or timed out
		vctx := workflow.NewDisconnectedContext(ctx)
		if _, verr := invoke.Activity[any](vctx, "void-authorization", compensationOptions, a.RefundPayment, authID, in.Amount); verr != nil {
			logger.Error("Could not void authorization", "error", verr)
			return Result{}, failure.Export(errors.Join(err, verr))
		}

		return Result{}, failure.Export(err)
	}

	logger.Info("Payment processed")

	return Result{
		AuthorizationID: authID,
		Status:          "Payment successful: " + authID,
	}, nil
}

// compensationOptions retry longer, money must not stay on hold.
var compensationOptions = invoke.Options{
	StartToCloseTimeout: 30 * time.Second,
	RetryPolicy: invoke.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2,
		MaximumInterval:    30 * time.Second,
		MaximumAttempts:    10,
	},
}
