package locator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
	"github.com/kirillkom/certificate-harvester/internal/core/ports"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/strategy"
)

// actions holds the page helpers shared by the locator and the detail navigator.
type actions struct {
	page        ports.BrowserPage
	pacer       ports.Pacer
	logger      *slog.Logger
	recorder    strategy.Recorder
	component   string
	stepTimeout time.Duration
}

func (a actions) pause(ctx context.Context) error {
	if a.pacer == nil {
		return nil
	}
	return a.pacer.Pause(ctx)
}

// selectorChain turns a selector list into a strategy chain over visible elements.
func (a actions) selectorChain(selectors []string) []strategy.Strategy[ports.PageElement] {
	chain := make([]strategy.Strategy[ports.PageElement], 0, len(selectors))
	for _, sel := range selectors {
		chain = append(chain, strategy.Named(sel, func(ctx context.Context) (ports.PageElement, bool) {
			return a.page.Find(ctx, sel)
		}))
	}
	return chain
}

// find waits for any of selectors and returns the first visible one in order.
func (a actions) find(ctx context.Context, name string, selectors []string) (ports.PageElement, error) {
	if len(selectors) == 0 {
		return nil, fmt.Errorf("%s: no selectors configured", name)
	}
	if err := a.page.WaitVisible(ctx, joinSelectors(selectors), a.stepTimeout); err != nil {
		return nil, fmt.Errorf("%s: wait for element: %w", name, err)
	}
	chain := a.selectorChain(selectors)
	res, ok := strategy.First(ctx, chain)
	if !ok {
		return nil, fmt.Errorf("%s: none of %v is visible", name, strategy.Names(chain))
	}
	a.recorder.RecordStrategy(a.component, name+":"+res.Strategy)
	a.logger.Debug("strategy_matched", "step", name, "selector", res.Strategy, "tried", res.Tried)
	return res.Value, nil
}

// clickSteps performs named steps in order. A missing step fails with
// domain.ErrNavigation.
func (a actions) clickSteps(ctx context.Context, kind string, steps [][]string) error {
	for i, step := range steps {
		name := fmt.Sprintf("%s_step_%d", kind, i+1)
		el, err := a.find(ctx, name, step)
		if err != nil {
			return domain.WrapError(domain.ErrNavigation, name, err)
		}
		if err := el.Click(ctx); err != nil {
			return domain.WrapError(domain.ErrNavigation, name, fmt.Errorf("click: %w", err))
		}
		if err := a.pause(ctx); err != nil {
			return domain.WrapError(domain.ErrTransport, name, err)
		}
	}
	return nil
}

func (a actions) anyVisible(ctx context.Context, selectors []string) bool {
	if len(selectors) == 0 {
		return false
	}
	_, ok := a.page.Find(ctx, joinSelectors(selectors))
	return ok
}

func joinSelectors(selectors []string) string {
	return strings.Join(selectors, ", ")
}
