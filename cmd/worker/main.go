// Command worker runs the order system's workflows and activities.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cschleiden/go-workflows/diag"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/cschleiden/orderflow/activities"
	"github.com/cschleiden/orderflow/config"
	"github.com/cschleiden/orderflow/internal/engine"
	"github.com/cschleiden/orderflow/internal/logging"
	"github.com/cschleiden/orderflow/internal/tracing"
	"github.com/cschleiden/orderflow/worker"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		logger.Warn("Could not set GOMAXPROCS", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, shutdownTracing, err := tracing.Setup(ctx, tracing.Options{
		Service:  cfg.Service,
		Version:  version,
		Exporter: cfg.Tracing.Exporter,
		Endpoint: cfg.Tracing.Endpoint,
		Insecure: cfg.Tracing.Insecure,
	})
	if err != nil {
		return err
	}

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

	a := activities.New(s,
		activities.WithPaymentLimit(cfg.Store.PaymentLimit),
		activities.WithNotificationCacheTTL(cfg.Store.NotificationTTL))

	w, err := worker.Start(ctx, b, a, worker.Options{
		WorkflowPollers:          cfg.Worker.WorkflowPollers,
		ActivityPollers:          cfg.Worker.ActivityPollers,
		MaxParallelActivityTasks: cfg.Worker.MaxParallelActivityTasks,
	})
	if err != nil {
		return err
	}

	logger.Info("Worker started", "backend", cfg.Backend.Kind, "store", cfg.Store.Kind, "version", version)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		return w.WaitForCompletion()
	})

	if db, ok := b.(diag.Backend); ok && cfg.Diag.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Diag.Addr,
			Handler:           http.StripPrefix("/diag", diag.NewServeMux(db)),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			logger.Info("Serving diagnostics", "addr", cfg.Diag.Addr+"/diag/")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()

			sctx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	err = g.Wait()

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer cancel()

	if terr := shutdownTracing(sctx); terr != nil {
		logger.Warn("Flushing traces failed", "error", terr)
	}

	logger.Info("Worker stopped")

	return err
}
