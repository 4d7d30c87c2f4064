package activities

import (
	"context"
	"errors"
	"fmt"

	"github.com/cschleiden/go-workflows/activity"

	"github.com/cschleiden/orderflow/log"
	"github.com/cschleiden/orderflow/store"
)

// DateLayout is the format of report dates.
const DateLayout = "2006-01-02"

// GenerateOrderReport summarizes the payments captured on the report date. A report is
// generated once per date, later calls return the stored summary.
func (a *Activities) GenerateOrderReport(ctx context.Context, req ReportRequest) (string, error) {
	logger := activity.Logger(ctx)

	existing, err := a.store.GetReport(ctx, req.Date)
	if err == nil {
		return existing.Summary, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	payments, err := a.store.ListPayments(ctx)
	if err != nil {
		return "", fmt.Errorf("listing payments: %w", err)
	}

	r := &store.Report{Date: req.Date, GeneratedAt: a.clock.Now()}
	for _, p := range payments {
		if p.State != store.PaymentCaptured || p.CapturedAt == nil {
			continue
		}

		if p.CapturedAt.UTC().Format(DateLayout) != req.Date {
			continue
		}

		r.Orders++
		r.Revenue += p.Amount
	}

	r.Summary = fmt.Sprintf("Report[%s]: orders=%d, revenue=%d", req.Date, r.Orders, r.Revenue)

	if err := a.store.SaveReport(ctx, r); err != nil {
		return "", fmt.Errorf("saving report %s: %w", req.Date, err)
	}

	logger.Info("Report generated", log.ReportDateKey, req.Date, "summary", r.Summary, "previous", req.Previous)
	return r.Summary, nil
}
