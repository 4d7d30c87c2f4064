package client

import (
	"context"

	"github.com/cschleiden/orderflow/workflows/approval"
)

// StartApproval starts the approval workflow for an order and returns its workflow id.
func (c *Client) StartApproval(ctx context.Context, in approval.Input) (string, error) {
	workflowID := approval.WorkflowID(in.OrderID)

	if _, err := c.start(ctx, workflowID, approval.RequestApproval, in); err != nil {
		return "", err
	}

	return workflowID, nil
}

// Approve decides a pending approval. Decisions after the first one are ignored.
func (c *Client) Approve(ctx context.Context, orderID, note string) error {
	return c.signal(ctx, approval.WorkflowID(orderID), approval.SignalApprove, note)
}

// Reject decides a pending approval. Decisions after the first one are ignored.
func (c *Client) Reject(ctx context.Context, orderID, reason string) error {
	return c.signal(ctx, approval.WorkflowID(orderID), approval.SignalReject, reason)
}

func (c *Client) GetApprovalStatus(ctx context.Context, orderID string) (*approval.Status, error) {
	var s approval.Status
	if err := c.query(ctx, approval.WorkflowID(orderID), approval.QueryApprovalStatus, &s); err != nil {
		return nil, err
	}

	return &s, nil
}
