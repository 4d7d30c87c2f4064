// Command orderctl starts, signals and inspects order system workflows.
//
// Commands share the worker's configuration. Workflow lookups go through the run registry kept
// in the activity store, so a separate worker process needs a shared store such as redis.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/cschleiden/go-workflows/backend"

	"github.com/cschleiden/orderflow/activities"
	"github.com/cschleiden/orderflow/client"
	"github.com/cschleiden/orderflow/config"
	"github.com/cschleiden/orderflow/internal/engine"
	"github.com/cschleiden/orderflow/internal/logging"
	"github.com/cschleiden/orderflow/internal/tracing"
	"github.com/cschleiden/orderflow/store"
	"github.com/cschleiden/orderflow/worker"
	"github.com/cschleiden/orderflow/workflows/approval"
	"github.com/cschleiden/orderflow/workflows/order"
	"github.com/cschleiden/orderflow/workflows/polling"
)

type env struct {
	cfg    *config.Config
	logger *slog.Logger
	b      backend.Backend
	s      store.Store
	c      *client.Client
}

type command struct {
	usage string
	run   func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"start-order":       {"-customer C -amount N [-sku S] [-quantity N] [-address A] [-id ORD-...]", startOrder},
	"order-status":      {"ORDER_ID", orderStatus},
	"cancel-order":      {"ORDER_ID [REASON]", cancelOrder},
	"update-address":    {"ORDER_ID ADDRESS", updateAddress},
	"start-approval":    {"-order ORDER_ID -customer C -amount N [-timeout 24h]", startApproval},
	"approve":           {"ORDER_ID [NOTE]", approve},
	"reject":            {"ORDER_ID [REASON]", reject},
	"approval-status":   {"ORDER_ID", approvalStatus},
	"start-polling":     {"-target T [-from N] [-interval 5s]", startPolling},
	"polling-status":    {"TARGET_ID", pollingStatus},
	"stop-polling":      {"TARGET_ID", stopPolling},
	"start-report-cron": {"[SCHEDULE]", startReportCron},
	"stop-report-cron":  {"", stopReportCron},
	"report-status":     {"", reportStatus},
	"describe":          {"WORKFLOW_ID", describe},
	"demo":              {"[-amount N] [-quantity N]", demo},
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := execute(ctx, *configPath, cmd, flag.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: orderctl [-config FILE] COMMAND [ARGS]\n\ncommands:\n")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-18s %s\n", name, commands[name].usage)
	}
}

func execute(ctx context.Context, configPath string, cmd command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	tp, shutdownTracing, err := tracing.Setup(ctx, tracing.Options{
		Service:  cfg.Service + "-ctl",
		Exporter: cfg.Tracing.Exporter,
		Endpoint: cfg.Tracing.Endpoint,
		Insecure: cfg.Tracing.Insecure,
	})
	if err != nil {
		return err
	}
	defer shutdownTracing(context.WithoutCancel(ctx))

	b, err := engine.OpenBackend(cfg.Backend, engine.Options{Logger: logger, TracerProvider: tp})
	if err != nil {
		return err
	}
	defer b.Close()

	s, err := engine.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	e := &env{
		cfg:    cfg,
		logger: logger,
		b:      b,
		s:      s,
		c:      client.New(b, s, client.WithLogger(logger), client.WithTracerProvider(tp)),
	}

	return cmd.run(ctx, e, args)
}

func output(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func arg(args []string, i int, name string) (string, error) {
	if len(args) <= i {
		return "", fmt.Errorf("missing %s", name)
	}

	return args[i], nil
}

func optional(args []string, i int) string {
	if len(args) <= i {
		return ""
	}

	return args[i]
}

func startOrder(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("start-order", flag.ContinueOnError)
	id := fs.String("id", "", "order id, generated when empty")
	customer := fs.String("customer", "", "customer id")
	amount := fs.Int64("amount", 0, "order amount")
	sku := fs.String("sku", order.DefaultSKU, "stock keeping unit")
	quantity := fs.Int("quantity", 1, "quantity")
	address := fs.String("address", "", "shipping address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	orderID, err := e.c.StartOrder(ctx, client.OrderRequest{
		OrderID:         *id,
		CustomerID:      *customer,
		Amount:          *amount,
		SKU:             *sku,
		Quantity:        *quantity,
		ShippingAddress: *address,
	})
	if err != nil {
		return err
	}

	return output(map[string]string{"orderId": orderID, "workflowId": order.WorkflowID(orderID)})
}

func orderStatus(ctx context.Context, e *env, args []string) error {
	orderID, err := arg(args, 0, "order id")
	if err != nil {
		return err
	}

	s, err := e.c.GetOrderStatus(ctx, orderID)
	if err != nil {
		return err
	}

	return output(s)
}

func cancelOrder(ctx context.Context, e *env, args []string) error {
	orderID, err := arg(args, 0, "order id")
	if err != nil {
		return err
	}

	return e.c.CancelOrder(ctx, orderID, optional(args, 1))
}

func updateAddress(ctx context.Context, e *env, args []string) error {
	orderID, err := arg(args, 0, "order id")
	if err != nil {
		return err
	}

	address, err := arg(args, 1, "address")
	if err != nil {
		return err
	}

	return e.c.UpdateShippingAddress(ctx, orderID, address)
}

func startApproval(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("start-approval", flag.ContinueOnError)
	orderID := fs.String("order", "", "order id")
	customer := fs.String("customer", "", "customer id")
	amount := fs.Int64("amount", 0, "order amount")
	timeout := fs.Duration("timeout", approval.DefaultTimeout, "approval timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	workflowID, err := e.c.StartApproval(ctx, approval.Input{
		OrderID:    *orderID,
		CustomerID: *customer,
		Amount:     *amount,
		Timeout:    *timeout,
	})
	if err != nil {
		return err
	}

	return output(map[string]string{"workflowId": workflowID})
}

func approve(ctx context.Context, e *env, args []string) error {
	orderID, err := arg(args, 0, "order id")
	if err != nil {
		return err
	}

	return e.c.Approve(ctx, orderID, optional(args, 1))
}

func reject(ctx context.Context, e *env, args []string) error {
	orderID, err := arg(args, 0, "order id")
	if err != nil {
		return err
	}

	return e.c.Reject(ctx, orderID, optional(args, 1))
}

func approvalStatus(ctx context.Context, e *env, args []string) error {
	orderID, err := arg(args, 0, "order id")
	if err != nil {
		return err
	}

	s, err := e.c.GetApprovalStatus(ctx, orderID)
	if err != nil {
		return err
	}

	return output(s)
}

func startPolling(ctx context.Context, e *env, args []string) error {
	settings := polling.DefaultSettings()

	fs := flag.NewFlagSet("start-polling", flag.ContinueOnError)
	target := fs.String("target", "", "target id")
	from := fs.Int("from", 0, "iteration count to start from")
	fs.DurationVar(&settings.Interval, "interval", settings.Interval, "pause between iterations")
	fs.IntVar(&settings.MaxIterations, "max", settings.MaxIterations, "maximum total iterations")
	if err := fs.Parse(args); err != nil {
		return err
	}

	workflowID, err := e.c.StartPolling(ctx, *target, *from, settings)
	if err != nil {
		return err
	}

	return output(map[string]string{"workflowId": workflowID})
}

func pollingStatus(ctx context.Context, e *env, args []string) error {
	target, err := arg(args, 0, "target id")
	if err != nil {
		return err
	}

	s, err := e.c.GetPollingStatus(ctx, target)
	if err != nil {
		return err
	}

	return output(s)
}

func stopPolling(ctx context.Context, e *env, args []string) error {
	target, err := arg(args, 0, "target id")
	if err != nil {
		return err
	}

	return e.c.StopPolling(ctx, target)
}

func startReportCron(ctx context.Context, e *env, args []string) error {
	return e.c.StartReportCron(ctx, optional(args, 0))
}

func stopReportCron(ctx context.Context, e *env, _ []string) error {
	return e.c.StopReportCron(ctx)
}

func reportStatus(ctx context.Context, e *env, _ []string) error {
	r, err := e.c.GetReportStatus(ctx)
	if err != nil {
		return err
	}

	return output(r)
}

func describe(ctx context.Context, e *env, args []string) error {
	workflowID, err := arg(args, 0, "workflow id")
	if err != nil {
		return err
	}

	d, err := e.c.Describe(ctx, workflowID)
	if err != nil {
		return err
	}

	return output(d)
}

// demo runs an order end to end against an embedded worker.
func demo(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	amount := fs.Int64("amount", 4200, "order amount")
	quantity := fs.Int("quantity", 1, "quantity")
	if err := fs.Parse(args); err != nil {
		return err
	}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := worker.Start(wctx, e.b, activities.New(e.s, activities.WithPaymentLimit(e.cfg.Store.PaymentLimit)), worker.Options{})
	if err != nil {
		return err
	}

	orderID, err := e.c.StartOrder(ctx, client.OrderRequest{
		CustomerID:      "demo-customer",
		Amount:          *amount,
		Quantity:        *quantity,
		ShippingAddress: "1 Demo Street",
	})
	if err != nil {
		return err
	}

	result, werr := client.AwaitResult[string](ctx, e.c, order.WorkflowID(orderID), time.Minute)

	status, err := e.c.GetOrderStatus(ctx, orderID)
	if err != nil {
		return err
	}

	d, err := e.c.Describe(ctx, order.WorkflowID(orderID))
	if err != nil {
		return err
	}

	out := map[string]any{"result": result, "status": status, "execution": d}
	if werr != nil {
		out["error"] = werr.Error()
	}

	cancel()
	if err := w.WaitForCompletion(); err != nil {
		e.logger.Warn("Stopping embedded worker failed", "error", err)
	}

	return output(out)
}
