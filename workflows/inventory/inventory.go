// Package inventory implements the inventory child workflow: check stock, then reserve it.
package inventory

import (
	"fmt"
	"time"

	"github.com/cschleiden/go-workflows/workflow"

	"github.com/cschleiden/orderflow/activities"
	"github.com/cschleiden/orderflow/failure"
	"github.com/cschleiden/orderflow/invoke"
	"github.com/cschleiden/orderflow/log"
)

type Input struct {
	OrderID  string `json:"orderId"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

var inventoryOptions = invoke.Options{
	StartToCloseTimeout: 20 * time.Second,
	RetryPolicy: invoke.RetryPolicy{
		InitialInterval:        time.Second,
		BackoffCoefficient:     2,
		MaximumAttempts:        3,
		NonRetryableErrorTypes: []string{failure.InsufficientStockErrorType},
	},
}

var a *activities.Activities

// InsufficientStock is the failure returned when the order cannot be fulfilled from stock.
func InsufficientStock(step, orderID string) *failure.Failure {
	return &failure.Failure{
		Kind:    failure.NonRetryable,
		Step:    step,
		Type:    failure.InsufficientStockErrorType,
		Message: "Insufficient inventory for orderId=" + orderID,
	}
}

func ReserveInventory(ctx workflow.Context, in Input) (string, error) {
	logger := workflow.Logger(ctx).With(log.OrderIDKey, in.OrderID)

	req := activities.StockRequest{OrderID: in.OrderID, SKU: in.SKU, Quantity: in.Quantity}

	available, err := invoke.Activity[bool](ctx, "check-inventory", inventoryOptions, a.CheckInventory, req)
	if err != nil {
		return "", failure.Export(err)
	}

	if !available {
		logger.Warn("Insufficient inventory", log.QuantityKey, in.Quantity)
		return "", failure.Export(InsufficientStock("check-inventory", in.OrderID))
	}

	reserved, err := invoke.Activity[int](ctx, "reserve-inventory", inventoryOptions, a.ReserveStock, req)
	if err != nil {
		return "", failure.Export(err)
	}

	return fmt.Sprintf("Inventory reserved: %d items", reserved), nil
}
