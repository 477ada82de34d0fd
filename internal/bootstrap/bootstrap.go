package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/certificate-harvester/internal/config"
	"github.com/kirillkom/certificate-harvester/internal/core/domain"
	"github.com/kirillkom/certificate-harvester/internal/core/ports"
	"github.com/kirillkom/certificate-harvester/internal/core/usecase"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/browser/playwright"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/capture"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/extractor/certificate"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/inspect/pdfinfo"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/ledger/jsonfile"
	ledgerredis "github.com/kirillkom/certificate-harvester/internal/infrastructure/ledger/redis"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/locator"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/pacing"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/queue/nats"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/resilience"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/session"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/sink/jsonl"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/sink/multi"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/sink/xlsx"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/upload/httpdoc"
	"github.com/kirillkom/certificate-harvester/internal/observability/metrics"
)

// HarvesterApp is the wiring of a browser-driving process: cmd/harvester
// and cmd/worker.
type HarvesterApp struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.HarvestMetrics

	Harvester ports.Harvester
	// Queue is set when the process talks to NATS.
	Queue *nats.Queue

	res *resources
}

// APIApp is the wiring of cmd/api. It never launches a browser.
type APIApp struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.HTTPServerMetrics

	Ledger   ports.LedgerReader
	Enqueuer ports.AddressEnqueuer

	res *resources
}

// HarvesterOptions select the optional parts of a harvester process.
type HarvesterOptions struct {
	Service string
	// ConnectQueue connects to NATS even when no result subject is set.
	ConnectQueue bool
}

// resources closes everything that was opened, in reverse order.
type resources struct {
	closers []func()
	db      *sql.DB
	queue   *nats.Queue
}

func (r *resources) onClose(fn func()) {
	r.closers = append(r.closers, fn)
}

func (r *resources) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

func (r *resources) postgres(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	r.onClose(func() { _ = db.Close() })
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	r.db = db
	return db, nil
}

func (r *resources) natsQueue(cfg config.Config, logger *slog.Logger) (*nats.Queue, error) {
	if r.queue != nil {
		return r.queue, nil
	}
	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResultSubject:      cfg.NATSResultSubject,
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig(), logger),
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	r.onClose(queue.Close)
	r.queue = queue
	return queue, nil
}

func (r *resources) ledger(ctx context.Context, cfg config.Config, logger *slog.Logger) (ports.ProcessingLedger, error) {
	switch cfg.LedgerBackend {
	case "", "jsonfile":
		l, err := jsonfile.Open(cfg.LedgerPath)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		logger.Info("ledger_opened", "backend", "jsonfile", "path", cfg.LedgerPath, "entries", l.Len())
		return l, nil
	case "redis":
		client, err := ledgerredis.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		r.onClose(func() { _ = client.Close() })
		logger.Info("ledger_opened", "backend", "redis", "addr", cfg.RedisAddr, "prefix", cfg.RedisPrefix)
		return ledgerredis.New(client, cfg.RedisPrefix), nil
	case "postgres":
		db, err := r.postgres(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		logger.Info("ledger_opened", "backend", "postgres")
		return postgres.NewLedgerRepository(db), nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "open ledger", fmt.Errorf("unknown LEDGER_BACKEND %q", cfg.LedgerBackend))
	}
}

func (r *resources) sinks(ctx context.Context, cfg config.Config, logger *slog.Logger) (*multi.Sink, error) {
	fanout := multi.New(logger)
	r.onClose(func() {
		if err := fanout.Close(); err != nil {
			logger.Warn("sink_close_failed", "error", err)
		}
	})

	lines, err := jsonl.Open(cfg.ResultsPath)
	if err != nil {
		return nil, fmt.Errorf("open results file: %w", err)
	}
	fanout.Add("jsonl", lines, true)

	if cfg.XLSXPath != "" {
		sheet, err := xlsx.New(cfg.XLSXPath, 0)
		if err != nil {
			return nil, fmt.Errorf("open xlsx export: %w", err)
		}
		fanout.Add("xlsx", sheet, false)
	}
	if cfg.ResultsPostgres {
		db, err := r.postgres(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open results table: %w", err)
		}
		fanout.Add("postgres", postgres.NewResultRepository(db), false)
	}
	if r.queue != nil && cfg.NATSResultSubject != "" {
		fanout.Add("nats", r.queue, false)
	}
	return fanout, nil
}

// NewHarvester launches the browser and wires the full pipeline.
func NewHarvester(ctx context.Context, cfg config.Config, logger *slog.Logger, opts HarvesterOptions) (app *HarvesterApp, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	service := opts.Service
	if service == "" {
		service = "harvester"
	}
	res := &resources{}
	defer func() {
		if err != nil {
			res.close()
		}
	}()

	loginSelectors, searchSelectors, err := loadSelectors(cfg.SelectorsFile)
	if err != nil {
		return nil, err
	}

	harvestMetrics := metrics.NewHarvestMetrics(service)

	if opts.ConnectQueue || cfg.NATSResultSubject != "" {
		if _, err := res.natsQueue(cfg, logger); err != nil {
			return nil, err
		}
	}
	ledger, err := res.ledger(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	sink, err := res.sinks(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	store, err := localfs.New(cfg.ArtifactDir)
	if err != nil {
		return nil, fmt.Errorf("init artifact store: %w", err)
	}

	browser, err := playwright.Launch(playwright.Config{
		Headless:      cfg.BrowserHeadless,
		InstallDriver: cfg.BrowserInstall,
		SlowMo:        cfg.BrowserSlowMo,
		UserAgent:     cfg.BrowserUserAgent,
		ActionTimeout: cfg.StepTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	res.onClose(func() {
		if err := browser.Close(); err != nil {
			logger.Warn("browser_close_failed", "error", err)
		}
	})
	page := browser.Page()

	pacer := pacing.New(
		time.Duration(cfg.PolitenessBaseMS)*time.Millisecond,
		time.Duration(cfg.PolitenessJitterMS)*time.Millisecond,
		time.Duration(cfg.PolitenessMinIntervalMS)*time.Millisecond,
	)
	keystrokes := pacing.New(
		time.Duration(cfg.KeystrokeDelayMS)*time.Millisecond,
		time.Duration(cfg.KeystrokeJitterMS)*time.Millisecond,
		0,
	)

	locatorCfg := locator.Config{
		SearchURL:      cfg.PortalSearchURL,
		Selectors:      searchSelectors,
		StepTimeout:    cfg.StepTimeout,
		ResultsTimeout: cfg.ResultsTimeout,
	}
	captureCfg := capture.DefaultConfig()
	captureCfg.DownloadTimeout = cfg.DownloadTimeout
	captureCfg.Windows = capture.Windows{
		Primary:   cfg.CapturePrimaryWindow,
		Secondary: cfg.CaptureSecondaryWindow,
		Poll:      cfg.CapturePollInterval,
	}

	deps := usecase.HarvestDeps{
		Session: session.NewManager(page, session.Config{
			LoginURL:     cfg.PortalLoginURL,
			Selectors:    loginSelectors,
			FieldTimeout: cfg.LoginFieldTimeout,
			RaceTimeout:  cfg.LoginRaceTimeout,
		}, pacer, logger, harvestMetrics),
		Locator:   locator.NewLocator(page, locatorCfg, pacer, keystrokes, logger, harvestMetrics),
		Detail:    locator.NewDetailNavigator(page, locatorCfg, pacer, logger, harvestMetrics),
		Extractor: certificate.NewExtractor(logger, harvestMetrics),
		Capture:   capture.NewCapturer(page, captureCfg, logger, harvestMetrics),
		Ledger:    ledger,
		Sink:      sink,
		Store:     store,
		Inspector: pdfinfo.New(),
		Pacer:     pacer,
		Observer:  harvestMetrics,
	}
	if cfg.DiagnosticsDir != "" {
		deps.Diagnostics = playwright.NewDiagnostics(cfg.DiagnosticsDir, page, logger)
	}
	uploader := httpdoc.New(httpdoc.Config{
		BaseURL:  cfg.UploadURL,
		Token:    cfg.UploadToken,
		FolderID: cfg.UploadFolderID,
	}, resilience.NewExecutor(resilience.DefaultConfig(), logger))
	if uploader.Enabled() {
		deps.Uploader = uploader
	}

	harvester := usecase.NewHarvestUseCase(deps, usecase.HarvestOptions{
		Credentials: domain.Credentials{Username: cfg.PortalUsername, Password: cfg.PortalPassword},
		MaxItems:    cfg.MaxItems,
		ItemTimeout: cfg.ItemTimeout,
	}, logger)

	return &HarvesterApp{
		Config:    cfg,
		Logger:    logger,
		Metrics:   harvestMetrics,
		Harvester: harvester,
		Queue:     res.queue,
		res:       res,
	}, nil
}

// NewAPI wires the read and enqueue surfaces over the ledger and NATS.
func NewAPI(ctx context.Context, cfg config.Config, logger *slog.Logger) (app *APIApp, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	res := &resources{}
	defer func() {
		if err != nil {
			res.close()
		}
	}()

	ledger, err := res.ledger(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	queue, err := res.natsQueue(cfg, logger)
	if err != nil {
		return nil, err
	}

	return &APIApp{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics.NewHTTPServerMetrics("api"),
		Ledger:   usecase.NewLedgerQueryUseCase(ledger),
		Enqueuer: usecase.NewEnqueueUseCase(queue, 0),
		res:      res,
	}, nil
}

func (a *HarvesterApp) Close() {
	if a.res != nil {
		a.res.close()
	}
}

func (a *APIApp) Close() {
	if a.res != nil {
		a.res.close()
	}
}
