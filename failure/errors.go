package failure

import (
	"fmt"

	"github.com/cschleiden/go-workflows/workflow"
	goerrors "github.com/go-errors/errors"
)

// Activity-side business errors. The engine records the type name of an activity error, so each
// rejection has its own type.

type ValidationError struct {
	Field  string
	Reason string

	stack []byte
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, stack: goerrors.Wrap(reason, 1).Stack()}
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Stack() string {
	return string(e.stack)
}

type InsufficientStockError struct {
	OrderID   string
	Requested int
	Available int

	stack []byte
}

func NewInsufficientStockError(orderID string, requested, available int) *InsufficientStockError {
	e := &InsufficientStockError{OrderID: orderID, Requested: requested, Available: available}
	e.stack = goerrors.Wrap(e.Error(), 1).Stack()
	return e
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient inventory for orderId=%s: requested %d, available %d", e.OrderID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Stack() string {
	return string(e.stack)
}

type PaymentDeclinedError struct {
	CustomerID string
	Reason     string

	stack []byte
}

func NewPaymentDeclinedError(customerID, reason string) *PaymentDeclinedError {
	return &PaymentDeclinedError{CustomerID: customerID, Reason: reason, stack: goerrors.Wrap(reason, 1).Stack()}
}

func (e *PaymentDeclinedError) Error() string {
	return fmt.Sprintf("payment declined for customer %s: %s", e.CustomerID, e.Reason)
}

func (e *PaymentDeclinedError) Stack() string {
	return string(e.stack)
}

const (
	ValidationErrorType        = "ValidationError"
	InsufficientStockErrorType = "InsufficientStockError"
	PaymentDeclinedErrorType   = "PaymentDeclinedError"
)

// NonRetryable marks an activity error as a business rejection. The engine persists the mark and
// invocations surface it immediately without further attempts.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}

	return workflow.NewPermanentError(err)
}
