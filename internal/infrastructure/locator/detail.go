package locator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
	"github.com/kirillkom/certificate-harvester/internal/core/ports"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/extractor/htmlview"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/strategy"
)

// DetailNavigator finishes the navigation from a chosen search result to the
// certificate detail view and fires the document action there.
type DetailNavigator struct {
	actions
	selectors Selectors
	// downloadWait bounds the search for the document action. It is shorter
	// than a step timeout since records without a certificate have none.
	downloadWait time.Duration
}

func NewDetailNavigator(page ports.BrowserPage, cfg Config, pacer ports.Pacer, logger *slog.Logger, recorder strategy.Recorder) *DetailNavigator {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = strategy.NopRecorder{}
	}
	cfg = cfg.withDefaults()
	return &DetailNavigator{
		actions: actions{
			page:        page,
			pacer:       pacer,
			logger:      logger,
			recorder:    recorder,
			component:   "detail_navigator",
			stepTimeout: cfg.StepTimeout,
		},
		selectors:    cfg.Selectors,
		downloadWait: min(cfg.StepTimeout, 5*time.Second),
	}
}

func (n *DetailNavigator) OpenDetail(ctx context.Context, handle *domain.RecordHandle) (ports.RenderedView, error) {
	if err := n.clickSteps(ctx, "detail", n.selectors.DetailSteps); err != nil {
		return nil, err
	}
	if len(n.selectors.DetailReady) > 0 {
		if err := n.page.WaitVisible(ctx, joinSelectors(n.selectors.DetailReady), n.stepTimeout); err != nil {
			return nil, domain.WrapError(domain.ErrNavigation, "wait for detail view", err)
		}
	}

	content, err := n.page.Content(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTransport, "read detail view", err)
	}
	view, err := htmlview.Parse(content)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTransport, "parse detail view", err)
	}
	if handle != nil {
		n.logger.Info("detail_opened", "address", handle.Query.Raw, "url", n.page.URL())
	}
	return view, nil
}

// TriggerDownload clicks the first available document action. A record with
// no document action yields domain.ErrNoDocument.
func (n *DetailNavigator) TriggerDownload(ctx context.Context) error {
	if len(n.selectors.Download) == 0 {
		return domain.WrapError(domain.ErrNoDocument, "trigger download", errors.New("no download selectors configured"))
	}
	wait := n.actions
	wait.stepTimeout = n.downloadWait
	el, err := wait.find(ctx, "download", n.selectors.Download)
	if err != nil {
		if ctx.Err() != nil {
			return domain.WrapError(domain.ErrTransport, "trigger download", err)
		}
		return domain.WrapError(domain.ErrNoDocument, "trigger download", err)
	}
	if err := el.Click(ctx); err != nil {
		return domain.WrapError(domain.ErrNavigation, "trigger download", err)
	}
	return nil
}
