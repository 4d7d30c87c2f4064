package activities

import (
	"context"
	"fmt"

	"github.com/cschleiden/go-workflows/activity"
	"github.com/jellydator/ttlcache/v3"

	"github.com/cschleiden/orderflow/internal/correlation"
	"github.com/cschleiden/orderflow/log"
	"github.com/cschleiden/orderflow/store"
)

// SendNotification delivers a message to a recipient once per notification key.
func (a *Activities) SendNotification(ctx context.Context, n Notification) error {
	logger := activity.Logger(ctx).With(log.CorrelationIDKey, correlation.ID(ctx))

	if a.sent.Has(n.Key) {
		logger.Debug("Notification already sent", "key", n.Key)
		return nil
	}

	stored, err := a.store.AppendNotification(ctx, &store.Notification{
		Key:       n.Key,
		Recipient: n.Recipient,
		Message:   n.Message,
		SentAt:    a.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("sending notification %s: %w", n.Key, err)
	}

	a.sent.Set(n.Key, struct{}{}, ttlcache.DefaultTTL)

	if stored {
		logger.Info("Notification sent", "recipient", n.Recipient, "message", n.Message)
	}

	return nil
}

// Poll reports a polling iteration for a target to the system recipient.
func (a *Activities) Poll(ctx context.Context, targetID string, iteration int) error {
	activity.Logger(ctx).Info("Polling target", log.TargetIDKey, targetID, log.IterationKey, iteration)

	return a.SendNotification(ctx, Notification{
		Key:       fmt.Sprintf("poll:%s:%d", targetID, iteration),
		Recipient: SystemRecipient,
		Message:   fmt.Sprintf("Poll #%d for %s", iteration, targetID),
	})
}

// SystemRecipient receives operational notifications.
const SystemRecipient = "system"
