package locator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
	"github.com/kirillkom/certificate-harvester/internal/core/ports"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/strategy"
)

type Config struct {
	SearchURL string
	Selectors Selectors
	// StepTimeout bounds every wait for a wizard step, input or detail control.
	StepTimeout time.Duration
	// ResultsTimeout bounds the wait for candidates after typing.
	ResultsTimeout time.Duration
	PollInterval   time.Duration
}

func (c Config) withDefaults() Config {
	if c.StepTimeout <= 0 {
		c.StepTimeout = 15 * time.Second
	}
	if c.ResultsTimeout <= 0 {
		c.ResultsTimeout = 10 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	return c
}

type Locator struct {
	actions
	cfg        Config
	keystrokes ports.Pacer
}

// NewLocator builds a RecordLocator over page. pacer spaces out network
// sensitive steps, keystrokes spaces out typed characters; both may be nil.
func NewLocator(page ports.BrowserPage, cfg Config, pacer, keystrokes ports.Pacer, logger *slog.Logger, recorder strategy.Recorder) *Locator {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = strategy.NopRecorder{}
	}
	cfg = cfg.withDefaults()
	return &Locator{
		actions: actions{
			page:        page,
			pacer:       pacer,
			logger:      logger,
			recorder:    recorder,
			component:   "record_locator",
			stepTimeout: cfg.StepTimeout,
		},
		cfg:        cfg,
		keystrokes: keystrokes,
	}
}

func (l *Locator) Locate(ctx context.Context, query domain.AddressQuery) (*domain.RecordHandle, error) {
	if strings.TrimSpace(query.Raw) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "locate record", errors.New("empty address"))
	}
	if l.cfg.SearchURL != "" {
		if err := l.page.Goto(ctx, l.cfg.SearchURL); err != nil {
			return nil, domain.WrapError(domain.ErrNavigation, "open search page", err)
		}
	}
	if err := l.clickSteps(ctx, "wizard", l.cfg.Selectors.WizardSteps); err != nil {
		return nil, err
	}

	input, inputStrategy, err := l.findInput(ctx)
	if err != nil {
		return nil, err
	}
	if err := l.typeQuery(ctx, input, query.Raw); err != nil {
		return nil, err
	}
	if err := l.pause(ctx); err != nil {
		return nil, domain.WrapError(domain.ErrTransport, "wait for filtering", err)
	}

	elements, texts, empty, err := l.waitCandidates(ctx)
	if err != nil {
		return nil, err
	}
	if empty {
		return nil, domain.WrapError(domain.ErrNotFound, "search results", fmt.Errorf("no results for %q", query.Raw))
	}

	selection := domain.SelectCandidate(domain.TokenizeQuery(query.Raw), texts)
	handle := &domain.RecordHandle{
		Query:         query,
		Candidate:     selection.Text,
		Policy:        selection.Policy,
		InputStrategy: inputStrategy,
	}

	if selection.Policy == domain.PolicyKeyboardConfirm {
		if err := l.keyboardConfirm(ctx); err != nil {
			return nil, err
		}
	} else if err := elements[selection.Index].Click(ctx); err != nil {
		return nil, domain.WrapError(domain.ErrNavigation, "open search result", err)
	}

	l.recorder.RecordStrategy(l.component, "selection:"+string(selection.Policy))
	l.logger.Info("record_located",
		"address", query.Raw,
		"policy", selection.Policy,
		"candidate", selection.Text,
		"candidates", len(texts),
		"input_strategy", inputStrategy,
	)
	return handle, nil
}

type inputGroup struct {
	name      string
	selectors []string
}

func (l *Locator) inputGroups() []inputGroup {
	s := l.cfg.Selectors
	return []inputGroup{
		{name: "placeholder", selectors: s.PlaceholderInputs},
		{name: "role", selectors: s.RoleInputs},
		{name: "structural", selectors: s.StructuralInputs},
		{name: "generic", selectors: s.GenericInputs},
	}
}

// findInput runs the input strategies in order. A search surface that cannot
// be found is a navigation failure, not an empty result.
func (l *Locator) findInput(ctx context.Context) (ports.PageElement, string, error) {
	groups := l.inputGroups()
	var all []string
	chain := make([]strategy.Strategy[ports.PageElement], 0, len(groups))
	for _, g := range groups {
		if len(g.selectors) == 0 {
			continue
		}
		all = append(all, g.selectors...)
		chain = append(chain, strategy.Named(g.name, func(ctx context.Context) (ports.PageElement, bool) {
			res, ok := strategy.First(ctx, l.selectorChain(g.selectors))
			return res.Value, ok
		}))
	}
	if len(all) == 0 {
		return nil, "", domain.WrapError(domain.ErrNavigation, "locate search input", errors.New("no input selectors configured"))
	}
	if err := l.page.WaitVisible(ctx, joinSelectors(all), l.stepTimeout); err != nil {
		return nil, "", domain.WrapError(domain.ErrNavigation, "locate search input", err)
	}

	res, ok := strategy.First(ctx, chain)
	if !ok {
		return nil, "", domain.WrapError(domain.ErrNavigation, "locate search input",
			fmt.Errorf("no usable input after strategies %v", strategy.Names(chain)))
	}
	l.recorder.RecordStrategy(l.component, "input:"+res.Strategy)
	return res.Value, res.Strategy, nil
}

// typeQuery enters text one character at a time so that the portal's live
// filter fires on every keystroke.
func (l *Locator) typeQuery(ctx context.Context, input ports.PageElement, text string) error {
	if err := input.Click(ctx); err != nil {
		return domain.WrapError(domain.ErrNavigation, "focus search input", err)
	}
	if err := input.Fill(ctx, ""); err != nil {
		return domain.WrapError(domain.ErrTransport, "clear search input", err)
	}
	for _, r := range text {
		if err := l.page.Type(ctx, string(r)); err != nil {
			return domain.WrapError(domain.ErrTransport, "type query", err)
		}
		if l.keystrokes != nil {
			if err := l.keystrokes.Pause(ctx); err != nil {
				return domain.WrapError(domain.ErrTransport, "type query", err)
			}
		}
	}
	return nil
}

// waitCandidates polls until candidates are enumerable, an empty state is
// shown or the results timeout elapses. A timeout is not an error: the caller
// falls back to keyboard confirmation.
func (l *Locator) waitCandidates(ctx context.Context) ([]ports.PageElement, []string, bool, error) {
	deadline := time.Now().Add(l.cfg.ResultsTimeout)
	for {
		// Candidates win over an empty-state marker left over from an
		// earlier keystroke.
		if elements, texts := l.enumerate(ctx); len(elements) > 0 {
			return elements, texts, false, nil
		}
		if l.anyVisible(ctx, l.cfg.Selectors.EmptyState) {
			return nil, nil, true, nil
		}
		if !time.Now().Before(deadline) {
			l.logger.Warn("candidates_not_enumerable", "timeout", l.cfg.ResultsTimeout)
			return nil, nil, false, nil
		}

		timer := time.NewTimer(l.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, nil, false, domain.WrapError(domain.ErrTransport, "wait for search results", ctx.Err())
		case <-timer.C:
		}
	}
}

// enumerate returns the candidates of the first option selector that yields
// any, with their visible text.
func (l *Locator) enumerate(ctx context.Context) ([]ports.PageElement, []string) {
	for _, sel := range l.cfg.Selectors.Candidates {
		found, err := l.page.FindAll(ctx, sel)
		if err != nil || len(found) == 0 {
			continue
		}
		elements := make([]ports.PageElement, 0, len(found))
		texts := make([]string, 0, len(found))
		for _, el := range found {
			text, err := el.Text(ctx)
			text = strings.TrimSpace(text)
			if err != nil || text == "" {
				continue
			}
			elements = append(elements, el)
			texts = append(texts, text)
		}
		if len(elements) > 0 {
			l.recorder.RecordStrategy(l.component, "candidates:"+sel)
			return elements, texts
		}
	}
	return nil, nil
}

func (l *Locator) keyboardConfirm(ctx context.Context) error {
	for _, key := range []string{"ArrowDown", "Enter"} {
		if err := l.page.Press(ctx, key); err != nil {
			return domain.WrapError(domain.ErrTransport, "keyboard confirm", err)
		}
	}
	if err := l.pause(ctx); err != nil {
		return domain.WrapError(domain.ErrTransport, "keyboard confirm", err)
	}
	if l.anyVisible(ctx, l.cfg.Selectors.EmptyState) {
		return domain.WrapError(domain.ErrNotFound, "keyboard confirm", errors.New("portal shows no results"))
	}
	return nil
}
