// Package worker hosts the order system's workflows and activities on a go-workflows worker.
package worker

import (
	"context"
	"fmt"

	"github.com/cschleiden/go-workflows/backend"
	"github.com/cschleiden/go-workflows/worker"
	"github.com/cschleiden/go-workflows/workflow"

	"github.com/cschleiden/orderflow/activities"
	"github.com/cschleiden/orderflow/workflows/approval"
	"github.com/cschleiden/orderflow/workflows/inventory"
	"github.com/cschleiden/orderflow/workflows/order"
	"github.com/cschleiden/orderflow/workflows/payment"
	"github.com/cschleiden/orderflow/workflows/polling"
	"github.com/cschleiden/orderflow/workflows/report"
)

type Options struct {
	WorkflowPollers          int
	ActivityPollers          int
	MaxParallelActivityTasks int
}

// Workflows lists every workflow the worker runs.
var Workflows = []workflow.Workflow{
	order.ProcessOrder,
	payment.ProcessPayment,
	inventory.ReserveInventory,
	approval.RequestApproval,
	polling.StartPolling,
	report.GenerateDailyReport,
}

// Register registers all workflows and the activities backed by a.
func Register(w *worker.Worker, a *activities.Activities) error {
	for _, wf := range Workflows {
		if err := w.RegisterWorkflow(wf); err != nil {
			return fmt.Errorf("registering workflow: %w", err)
		}
	}

	if err := w.RegisterActivity(a); err != nil {
		return fmt.Errorf("registering activities: %w", err)
	}

	return nil
}

// Start creates a worker on b, registers everything and starts polling. The worker stops when
// ctx is canceled, WaitForCompletion returns once in-flight tasks finished.
func Start(ctx context.Context, b backend.Backend, a *activities.Activities, o Options) (*worker.Worker, error) {
	opts := worker.DefaultOptions
	if o.WorkflowPollers > 0 {
		opts.WorkflowPollers = o.WorkflowPollers
	}
	if o.ActivityPollers > 0 {
		opts.ActivityPollers = o.ActivityPollers
	}
	if o.MaxParallelActivityTasks > 0 {
		opts.MaxParallelActivityTasks = o.MaxParallelActivityTasks
	}

	w := worker.New(b, &opts)

	if err := Register(w, a); err != nil {
		return nil, err
	}

	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting worker: %w", err)
	}

	return w, nil
}
