package activities

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cschleiden/go-workflows/activity"
	"github.com/google/uuid"

	"github.com/cschleiden/orderflow/failure"
	"github.com/cschleiden/orderflow/log"
	"github.com/cschleiden/orderflow/store"
)

// NewAuthorizationID returns an id in the AUTH-XXXXXXXX format.
func NewAuthorizationID() string {
	return "AUTH-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// AuthorizePayment places a hold of the order amount on the customer's account. An order is
// authorized at most once, retries return the existing authorization.
func (a *Activities) AuthorizePayment(ctx context.Context, req PaymentRequest) (string, error) {
	logger := activity.Logger(ctx)

	if a.paymentLimit > 0 && req.Amount > a.paymentLimit {
		return "", failure.NonRetryable(
			failure.NewPaymentDeclinedError(req.CustomerID, fmt.Sprintf("amount %d exceeds limit %d", req.Amount, a.paymentLimit)))
	}

	p, created, err := a.store.CreatePayment(ctx, &store.Payment{
		AuthorizationID: NewAuthorizationID(),
		OrderID:         req.OrderID,
		CustomerID:      req.CustomerID,
		Amount:          req.Amount,
		State:           store.PaymentAuthorized,
		AuthorizedAt:    a.clock.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("authorizing payment for order %s: %w", req.OrderID, err)
	}

	if p.Amount != req.Amount || p.CustomerID != req.CustomerID {
		return "", failure.NonRetryable(
			failure.NewPaymentDeclinedError(req.CustomerID, fmt.Sprintf("order %s was already authorized with different terms", req.OrderID)))
	}

	logger.Info("Payment authorized",
		log.OrderIDKey, req.OrderID,
		log.AuthorizationIDKey, p.AuthorizationID,
		log.AmountKey, req.Amount,
		"created", created)

	return p.AuthorizationID, nil
}

// CapturePayment settles an authorization. Capturing a captured payment is a no-op.
func (a *Activities) CapturePayment(ctx context.Context, authorizationID string, amount int64) error {
	p, err := a.store.UpdatePayment(ctx, authorizationID, func(p *store.Payment) error {
		switch p.State {
		case store.PaymentCaptured:
			return errAlreadyApplied
		case store.PaymentAuthorized:
		default:
			return fmt.Errorf("capturing %s payment %s: %w", p.State, authorizationID, store.ErrInvalidTransition)
		}

		if amount != p.Amount {
			return fmt.Errorf("capturing %d of %s authorized for %d: %w", amount, authorizationID, p.Amount, store.ErrInvalidTransition)
		}

		now := a.clock.Now()
		p.State = store.PaymentCaptured
		p.CapturedAt = &now
		return nil
	})

	switch {
	case errors.Is(err, errAlreadyApplied):
		return nil
	case errors.Is(err, store.ErrInvalidTransition), errors.Is(err, store.ErrNotFound):
		return failure.NonRetryable(err)
	case err != nil:
		return err
	}

	activity.Logger(ctx).Info("Payment captured", log.AuthorizationIDKey, authorizationID, log.AmountKey, p.Amount)
	return nil
}

// RefundPayment gives the money of an authorization back: a captured payment is refunded, an
// authorized one is voided. Refunding twice is a no-op.
func (a *Activities) RefundPayment(ctx context.Context, authorizationID string, amount int64) error {
	p, err := a.store.UpdatePayment(ctx, authorizationID, func(p *store.Payment) error {
		now := a.clock.Now()

		switch p.State {
		case store.PaymentRefunded, store.PaymentVoided:
			return errAlreadyApplied
		case store.PaymentCaptured:
			p.State = store.PaymentRefunded
		case store.PaymentAuthorized:
			p.State = store.PaymentVoided
		}

		p.ClosedAt = &now
		return nil
	})

	switch {
	case errors.Is(err, errAlreadyApplied):
		return nil
	case errors.Is(err, store.ErrNotFound):
		return failure.NonRetryable(err)
	case err != nil:
		return err
	}

	if amount != p.Amount {
		activity.Logger(ctx).Warn("Refund amount differs from authorization, refunded the authorized amount",
			log.AuthorizationIDKey, authorizationID, log.AmountKey, amount, "authorized", p.Amount)
	}

	activity.Logger(ctx).Info("Payment refunded", log.AuthorizationIDKey, authorizationID, "state", p.State)
	return nil
}

var errAlreadyApplied = errors.New("already applied")
