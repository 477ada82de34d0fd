package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/certificate-harvester/internal/bootstrap"
	"github.com/kirillkom/certificate-harvester/internal/config"
	"github.com/kirillkom/certificate-harvester/internal/core/domain"
	"github.com/kirillkom/certificate-harvester/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.NewLogger(os.Stderr, "worker", cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewHarvester(ctx, cfg, logger, bootstrap.HarvesterOptions{
		Service:      "worker",
		ConnectQueue: true,
	})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           app.Metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("worker metrics listening on :%s", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("worker metrics server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	// A login failure stops the worker: every later address would fail the same way.
	workerCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	log.Printf("worker subscribed to %s", cfg.NATSSubject)
	err = app.Queue.SubscribeAddressRequested(workerCtx, func(handlerCtx context.Context, address string) error {
		summary, err := app.Harvester.Run(handlerCtx, []string{address})
		if err != nil {
			if domain.IsKind(err, domain.ErrAuth) {
				cancel(err)
			}
			return err
		}
		logger.Info("address_request_done", "address", address, "run_id", summary.RunID, "by_status", summary.ByStatus)
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
	if cause := context.Cause(workerCtx); domain.IsKind(cause, domain.ErrAuth) {
		app.Close()
		log.Fatalf("worker stopped, portal login failed: %v", cause)
	}
}
