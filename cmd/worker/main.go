package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kirillkom/calibration-tracker/internal/bootstrap"
	"github.com/kirillkom/calibration-tracker/internal/config"
	"github.com/kirillkom/calibration-tracker/internal/core/domain"
	"github.com/kirillkom/calibration-tracker/internal/core/ports"
	"github.com/kirillkom/calibration-tracker/internal/observability/logging"
	"github.com/kirillkom/calibration-tracker/internal/observability/metrics"
)

const service = "worker"

// sweeper serializes status sweeps triggered by events and by the ticker.
type sweeper struct {
	mu      sync.Mutex
	status  ports.StatusSweeper
	metrics *metrics.WorkerMetrics
	logger  *slog.Logger
}

func (s *sweeper) run(ctx context.Context, trigger string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	s.metrics.StartSweep()
	changed, err := s.status.RefreshAll(sweepCtx)
	s.metrics.FinishSweep(service, trigger, changed, time.Since(start), err)
	if err != nil {
		s.logger.Error("status_sweep_failed", "trigger", trigger, "error", err)
		return err
	}
	s.logger.Info("status_sweep_done", "trigger", trigger, "changed", changed)
	return nil
}

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(service)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:    service,
		Logger:     logger,
		Registerer: workerMetrics.Registry(),
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	sw := &sweeper{status: app.Status, metrics: workerMetrics, logger: logger}
	_ = sw.run(ctx, "startup")

	interval := time.Duration(cfg.StatusSweepIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = sw.run(ctx, "ticker")
			}
		}
	}()

	if app.Queue == nil {
		logger.Warn("worker_queue_disabled", "reason", "NATS_URL is empty")
		<-ctx.Done()
		return
	}

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeBatchCommitted(ctx, func(handlerCtx context.Context, event domain.BatchEvent) error {
		workerMetrics.ObserveEventLag(service, time.Since(event.CompletedAt))
		logger.Info("batch_event_received", "batch_id", event.BatchID, "kind", event.Kind, "tools", len(event.ToolIDs))
		return sw.run(handlerCtx, "event")
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
	}
}
