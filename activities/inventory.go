package activities

import (
	"context"
	"errors"
	"fmt"

	"github.com/cschleiden/go-workflows/activity"

	"github.com/cschleiden/orderflow/failure"
	"github.com/cschleiden/orderflow/log"
	"github.com/cschleiden/orderflow/store"
)

// CheckInventory reports whether the requested quantity is currently in stock.
func (a *Activities) CheckInventory(ctx context.Context, req StockRequest) (bool, error) {
	avail, err := a.store.Available(ctx, req.SKU)
	if err != nil {
		return false, fmt.Errorf("checking stock of %s: %w", req.SKU, err)
	}

	activity.Logger(ctx).Info("Inventory checked",
		log.OrderIDKey, req.OrderID,
		log.QuantityKey, req.Quantity,
		"sku", req.SKU,
		"available", avail)

	return avail >= req.Quantity, nil
}

// ReserveStock takes the requested quantity out of stock for the order. Reserving again for the
// same order returns the existing reservation.
func (a *Activities) ReserveStock(ctx context.Context, req StockRequest) (int, error) {
	r, err := a.store.Reserve(ctx, req.OrderID, req.SKU, req.Quantity)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			avail, _ := a.store.Available(ctx, req.SKU)
			return 0, failure.NonRetryable(failure.NewInsufficientStockError(req.OrderID, req.Quantity, avail))
		}

		return 0, fmt.Errorf("reserving stock for %s: %w", req.OrderID, err)
	}

	activity.Logger(ctx).Info("Inventory reserved", log.OrderIDKey, req.OrderID, log.QuantityKey, r.Quantity)
	return r.Quantity, nil
}

// ReleaseInventory returns the stock reserved for an order. Orders without reservation have
// nothing to release.
func (a *Activities) ReleaseInventory(ctx context.Context, orderID string) error {
	r, err := a.store.Release(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}

		return fmt.Errorf("releasing stock of %s: %w", orderID, err)
	}

	activity.Logger(ctx).Info("Inventory released", log.OrderIDKey, orderID, log.QuantityKey, r.Quantity)
	return nil
}
