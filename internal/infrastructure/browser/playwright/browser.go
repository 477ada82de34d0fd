package playwright

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	pw "github.com/playwright-community/playwright-go"
)

type Config struct {
	Headless bool
	// InstallDriver downloads the driver and Chromium before launch.
	InstallDriver  bool
	SlowMo         time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	// ActionTimeout is the default for page actions without a ctx deadline.
	ActionTimeout time.Duration
}

// Browser owns the playwright driver, one browser, one context and one page.
type Browser struct {
	runtime *pw.Playwright
	browser pw.Browser
	context pw.BrowserContext
	page    *Page
	logger  *slog.Logger
}

func Launch(cfg Config, logger *slog.Logger) (*Browser, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 15 * time.Second
	}
	if cfg.ViewportWidth <= 0 || cfg.ViewportHeight <= 0 {
		cfg.ViewportWidth, cfg.ViewportHeight = 1366, 900
	}

	runOpts := &pw.RunOptions{Browsers: []string{"chromium"}, Verbose: false}
	if cfg.InstallDriver {
		if err := pw.Install(runOpts); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}
	runtime, err := pw.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	launchOpts := pw.BrowserTypeLaunchOptions{Headless: pw.Bool(cfg.Headless)}
	if cfg.SlowMo > 0 {
		launchOpts.SlowMo = pw.Float(float64(cfg.SlowMo.Milliseconds()))
	}
	browser, err := runtime.Chromium.Launch(launchOpts)
	if err != nil {
		_ = runtime.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	ctxOpts := pw.BrowserNewContextOptions{
		AcceptDownloads: pw.Bool(true),
		Viewport:        &pw.Size{Width: cfg.ViewportWidth, Height: cfg.ViewportHeight},
	}
	if cfg.UserAgent != "" {
		ctxOpts.UserAgent = pw.String(cfg.UserAgent)
	}
	bctx, err := browser.NewContext(ctxOpts)
	if err != nil {
		_ = browser.Close()
		_ = runtime.Stop()
		return nil, fmt.Errorf("new browser context: %w", err)
	}
	bctx.SetDefaultTimeout(float64(cfg.ActionTimeout.Milliseconds()))

	raw, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		_ = runtime.Stop()
		return nil, fmt.Errorf("new page: %w", err)
	}

	logger.Info("browser_launched", "headless", cfg.Headless, "version", browser.Version())
	return &Browser{
		runtime: runtime,
		browser: browser,
		context: bctx,
		page:    newPage(raw, bctx, cfg.ActionTimeout, logger),
		logger:  logger,
	}, nil
}

func (b *Browser) Page() *Page {
	return b.page
}

func (b *Browser) Close() error {
	var errs []error
	if err := b.context.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close context: %w", err))
	}
	if err := b.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}
	if err := b.runtime.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop playwright: %w", err))
	}
	return errors.Join(errs...)
}
