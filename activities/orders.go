package activities

import (
	"context"
	"fmt"
	"strings"

	"github.com/cschleiden/go-workflows/activity"

	"github.com/cschleiden/orderflow/failure"
	"github.com/cschleiden/orderflow/log"
)

// ValidateOrder rejects orders that can never succeed. Rejections are not retried.
func (a *Activities) ValidateOrder(ctx context.Context, o Order) error {
	logger := activity.Logger(ctx)

	var verr *failure.ValidationError
	switch {
	case strings.TrimSpace(o.OrderID) == "":
		verr = failure.NewValidationError("orderId", "Missing order id")
	case strings.TrimSpace(o.CustomerID) == "":
		verr = failure.NewValidationError("customerId", "Missing customer id")
	case o.Amount <= 0:
		verr = failure.NewValidationError("amount", fmt.Sprintf("Invalid amount: %d", o.Amount))
	case o.Quantity <= 0:
		verr = failure.NewValidationError("quantity", fmt.Sprintf("Invalid quantity: %d", o.Quantity))
	}

	if verr != nil {
		logger.Warn("Order rejected", log.OrderIDKey, o.OrderID, "reason", verr.Reason)
		return failure.NonRetryable(verr)
	}

	logger.Info("Order validated", log.OrderIDKey, o.OrderID, log.AmountKey, o.Amount)
	return nil
}
