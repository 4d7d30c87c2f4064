package client

import (
	"context"

	"github.com/cschleiden/orderflow/log"
	"github.com/cschleiden/orderflow/workflows/order"
)

// OrderRequest holds the business parameters of a new order.
type OrderRequest struct {
	// OrderID is generated when empty.
	OrderID         string
	CustomerID      string
	Amount          int64
	SKU             string
	Quantity        int
	ShippingAddress string

	Options order.Options
}

// StartOrder starts the order saga and returns the order id.
func (c *Client) StartOrder(ctx context.Context, req OrderRequest) (string, error) {
	orderID := req.OrderID
	if orderID == "" {
		orderID = NewOrderID()
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}

	_, err := c.start(ctx, order.WorkflowID(orderID), order.ProcessOrder, order.Input{
		OrderID:         orderID,
		CustomerID:      req.CustomerID,
		Amount:          req.Amount,
		SKU:             req.SKU,
		Quantity:        quantity,
		ShippingAddress: req.ShippingAddress,
		Options:         req.Options,
	})
	if err != nil {
		return "", err
	}

	c.logger.Info("Order started", log.OrderIDKey, orderID, log.CustomerIDKey, req.CustomerID, log.AmountKey, req.Amount)

	return orderID, nil
}

func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (*order.Status, error) {
	var s order.Status
	if err := c.query(ctx, order.WorkflowID(orderID), order.QueryStatus, &s); err != nil {
		return nil, err
	}

	return &s, nil
}

// CancelOrder asks a running order to stop. Steps that already committed are compensated.
func (c *Client) CancelOrder(ctx context.Context, orderID, reason string) error {
	return c.signal(ctx, order.WorkflowID(orderID), order.SignalCancel, reason)
}

func (c *Client) UpdateShippingAddress(ctx context.Context, orderID, address string) error {
	return c.signal(ctx, order.WorkflowID(orderID), order.SignalUpdateShippingAddress, address)
}
