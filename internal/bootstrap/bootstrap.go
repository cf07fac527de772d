package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/calibration-tracker/internal/config"
	"github.com/kirillkom/calibration-tracker/internal/core/parsing"
	"github.com/kirillkom/calibration-tracker/internal/core/ports"
	"github.com/kirillkom/calibration-tracker/internal/core/usecase"
	"github.com/kirillkom/calibration-tracker/internal/infrastructure/cache"
	"github.com/kirillkom/calibration-tracker/internal/infrastructure/document/pdf"
	"github.com/kirillkom/calibration-tracker/internal/infrastructure/document/plaintext"
	"github.com/kirillkom/calibration-tracker/internal/infrastructure/queue/nats"
	"github.com/kirillkom/calibration-tracker/internal/infrastructure/repository/sqlstore"
	"github.com/kirillkom/calibration-tracker/internal/infrastructure/resilience"
	"github.com/kirillkom/calibration-tracker/internal/infrastructure/rules"
	"github.com/kirillkom/calibration-tracker/internal/infrastructure/spreadsheet"
	"github.com/kirillkom/calibration-tracker/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/calibration-tracker/internal/observability/metrics"
)

// Options tune how a process wires the shared application graph.
type Options struct {
	Service    string
	Logger     *slog.Logger
	Registerer prometheus.Registerer
	// SkipQueue leaves events unpublished. The importer CLI sets it.
	SkipQueue bool
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Store   *sqlstore.Store
	Queue   *nats.Queue
	Metrics *metrics.ImportMetrics

	Certificates *usecase.BatchImportUseCase
	Legacy       *usecase.LegacyImportUseCase
	Linker       *usecase.ManualLinkUseCase
	Tools        *usecase.ToolService
	Status       *usecase.StatusRefresher

	Reporter spreadsheet.Reporter
	Batches  *cache.BatchResults

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	service := opts.Service
	if service == "" {
		service = "api"
	}

	dialect, err := sqlstore.ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, fmt.Errorf("parse db driver: %w", err)
	}
	if dialect == sqlstore.DialectSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	importMetrics := metrics.NewImportMetrics(service, opts.Registerer)
	startup := resilience.NewExecutor(resilience.StartupPolicy(), logger)

	var store *sqlstore.Store
	err = startup.Execute(ctx, "store.open", func(context.Context) error {
		s, err := sqlstore.Open(dialect, cfg.DatabaseDSN())
		if err != nil {
			return err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			_ = s.Close()
			return err
		}
		store = s
		return nil
	}, resilience.RetryAll)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	blobs, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init blob storage: %w", err)
	}

	ruleSet, err := rules.Load(cfg.CertRulesPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load certificate rules: %w", err)
	}

	var (
		queue     *nats.Queue
		publisher ports.EventPublisher
	)
	if !opts.SkipQueue && cfg.NATSURL != "" {
		executor := resilience.NewExecutor(resilience.DefaultPolicy(), logger).
			WithStateObserver(importMetrics.ObserveBreakerState)
		queue, err = nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			Name:               "calibration-tracker-" + service,
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		publisher = queue
	}

	now := time.Now
	ids := usecase.UUIDGenerator{}
	pipeline := parsing.NewPipeline(ruleSet, parsing.DefaultStrategies()...)
	engine := usecase.NewReconciliationEngine(ids, now, cfg.DueSoonDays)
	synth := usecase.NewToolSynthesizer(ids, now)
	pending := cache.NewPendingCertificates(cfg.PendingCacheSize, time.Duration(cfg.PendingCacheTTLMinutes)*time.Minute)

	documents := map[string]ports.PageTextExtractor{
		"pdf": pdf.NewExtractor(),
		"txt": plaintext.NewExtractor(),
	}
	tables := map[string]ports.TableReader{
		"csv":  spreadsheet.CSVReader{},
		"xlsx": spreadsheet.XLSXReader{},
	}

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Queue:   queue,
		Metrics: importMetrics,

		Certificates: usecase.NewBatchImportUseCase(
			store, blobs, pipeline, usecase.NewIdentifierMatcher(), engine, synth,
			publisher, importMetrics, pending, ids,
			usecase.BatchSettings{AllowedExtensions: cfg.AllowedExtensions, Documents: documents},
			logger,
		),
		Legacy: usecase.NewLegacyImportUseCase(store, tables, ids, publisher, importMetrics, now, cfg.DueSoonDays, logger),
		Linker: usecase.NewManualLinkUseCase(store, blobs, pipeline, engine, synth, pending, documents, logger),
		Tools:  usecase.NewToolService(store, ids, now, cfg.DueSoonDays, logger),
		Status: usecase.NewStatusRefresher(store, now, cfg.DueSoonDays, logger),

		Reporter: spreadsheet.Reporter{},
		Batches:  cache.NewBatchResults(0, time.Duration(cfg.PendingCacheTTLMinutes)*time.Minute),

		closeFn: func() {
			if queue != nil {
				queue.Close()
			}
			_ = store.Close()
		},
	}

	logger.Info("bootstrap_ready",
		"db_driver", string(dialect),
		"queue_enabled", queue != nil,
		"rules_path", cfg.CertRulesPath,
		"allowed_extensions", cfg.AllowedExtensions,
	)
	return app, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
