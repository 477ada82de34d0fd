package locator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
	"github.com/kirillkom/certificate-harvester/internal/core/ports"
)

type fakePage struct {
	mu      sync.Mutex
	visible map[string]bool
	lists   map[string][]string
	onClick map[string]func(*fakePage)
	onType  func(p *fakePage, typed string)
	onPress func(p *fakePage, key string)
	typed   strings.Builder
	pressed []string
	clicked []string
	content string
}

func newFakePage(visible ...string) *fakePage {
	p := &fakePage{
		visible: make(map[string]bool),
		lists:   make(map[string][]string),
		onClick: make(map[string]func(*fakePage)),
	}
	for _, sel := range visible {
		p.visible[sel] = true
	}
	return p
}

func (p *fakePage) show(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible[selector] = true
}

func (p *fakePage) firstVisible(selector string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range strings.Split(selector, ", ") {
		if p.visible[s] {
			return s, true
		}
	}
	return "", false
}

func (p *fakePage) Goto(context.Context, string) error { return nil }

func (p *fakePage) Find(_ context.Context, selector string) (ports.PageElement, bool) {
	sel, ok := p.firstVisible(selector)
	if !ok {
		return nil, false
	}
	return &fakeElement{page: p, id: sel}, true
}

func (p *fakePage) FindAll(_ context.Context, selector string) ([]ports.PageElement, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []ports.PageElement
	for i, text := range p.lists[selector] {
		out = append(out, &fakeElement{page: p, id: fmt.Sprintf("%s#%d", selector, i), text: text})
	}
	return out, nil
}

func (p *fakePage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if _, ok := p.firstVisible(selector); ok {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("timeout waiting for " + selector)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (p *fakePage) WaitHidden(context.Context, string, time.Duration) error { return nil }

func (p *fakePage) Type(_ context.Context, text string) error {
	p.typed.WriteString(text)
	if p.onType != nil {
		p.onType(p, p.typed.String())
	}
	return nil
}

func (p *fakePage) Press(_ context.Context, key string) error {
	p.pressed = append(p.pressed, key)
	if p.onPress != nil {
		p.onPress(p, key)
	}
	return nil
}

func (p *fakePage) Content(context.Context) (string, error) { return p.content, nil }
func (p *fakePage) URL() string                             { return "https://portal.example/records/1" }

type fakeElement struct {
	page *fakePage
	id   string
	text string
}

func (e *fakeElement) Click(context.Context) error {
	e.page.clicked = append(e.page.clicked, e.id)
	if fn := e.page.onClick[e.id]; fn != nil {
		fn(e.page)
	}
	return nil
}

func (e *fakeElement) Fill(context.Context, string) error   { return nil }
func (e *fakeElement) Focus(context.Context) error          { return nil }
func (e *fakeElement) Text(context.Context) (string, error) { return e.text, nil }

type countingPacer struct {
	calls int
}

func (p *countingPacer) Pause(context.Context) error {
	p.calls++
	return nil
}

func testConfig() Config {
	return Config{
		Selectors: Selectors{
			PlaceholderInputs: []string{"#addr"},
			RoleInputs:        []string{"#role"},
			StructuralInputs:  []string{"form input"},
			GenericInputs:     []string{"input"},
			Candidates:        []string{"li.option", "tr.row"},
			EmptyState:        []string{"#empty"},
			DetailReady:       []string{"#detail"},
			Download:          []string{"#download", "a.pdf"},
		},
		StepTimeout:    30 * time.Millisecond,
		ResultsTimeout: 30 * time.Millisecond,
		PollInterval:   2 * time.Millisecond,
	}
}

func listOnQuery(query string, selector string, texts ...string) func(*fakePage, string) {
	return func(p *fakePage, typed string) {
		if typed == query {
			p.mu.Lock()
			p.lists[selector] = texts
			p.mu.Unlock()
		}
	}
}

func TestLocateSelectsTokenMatchCandidate(t *testing.T) {
	page := newFakePage("form input")
	page.onType = listOnQuery("513 MALAGA DRIVE", "li.option",
		"511 Malaga Drive, Mobile, AL",
		"513 MALAGA DRIVE, Mobile, AL 36695",
		"513 Other Street",
	)
	keystrokes := &countingPacer{}

	handle, err := NewLocator(page, testConfig(), nil, keystrokes, nil, nil).
		Locate(context.Background(), domain.NewAddressQuery("513 MALAGA DRIVE"))
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if handle.Policy != domain.PolicyTokenMatch || handle.InputStrategy != "structural" {
		t.Fatalf("unexpected handle %+v", handle)
	}
	if got := page.clicked[len(page.clicked)-1]; got != "li.option#1" {
		t.Fatalf("expected second candidate to be opened, clicked %v", page.clicked)
	}
	if page.typed.String() != "513 MALAGA DRIVE" || keystrokes.calls != len("513 MALAGA DRIVE") {
		t.Fatalf("expected per-character typing, typed %q with %d pauses", page.typed.String(), keystrokes.calls)
	}
}

func TestLocateFallsBackToFirstFilteredCandidate(t *testing.T) {
	page := newFakePage("#addr")
	page.onType = listOnQuery("520 Novatan Rd S, Mobile, AL 36608", "tr.row", "NOVATAN ROAD SOUTH 520", "Other")

	handle, err := NewLocator(page, testConfig(), nil, nil, nil, nil).
		Locate(context.Background(), domain.NewAddressQuery("520 Novatan Rd S, Mobile, AL 36608"))
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if handle.Policy != domain.PolicyFirstFiltered || handle.InputStrategy != "placeholder" {
		t.Fatalf("unexpected handle %+v", handle)
	}
	if got := page.clicked[len(page.clicked)-1]; got != "tr.row#0" {
		t.Fatalf("expected first candidate, clicked %v", page.clicked)
	}
}

func TestLocateUsesKeyboardConfirmWithoutCandidates(t *testing.T) {
	page := newFakePage("input")

	handle, err := NewLocator(page, testConfig(), nil, nil, nil, nil).
		Locate(context.Background(), domain.NewAddressQuery("513 MALAGA DRIVE"))
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if handle.Policy != domain.PolicyKeyboardConfirm || handle.InputStrategy != "generic" {
		t.Fatalf("unexpected handle %+v", handle)
	}
	if strings.Join(page.pressed, ",") != "ArrowDown,Enter" {
		t.Fatalf("expected ArrowDown+Enter, got %v", page.pressed)
	}
}

func TestLocateReportsEmptyStateAsNotFound(t *testing.T) {
	page := newFakePage("#addr")
	page.onType = func(p *fakePage, typed string) {
		if typed == "INVALID ADDRESS" {
			p.show("#empty")
		}
	}

	_, err := NewLocator(page, testConfig(), nil, nil, nil, nil).
		Locate(context.Background(), domain.NewAddressQuery("INVALID ADDRESS"))
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLocatePrefersCandidatesOverEmptyState(t *testing.T) {
	page := newFakePage("#addr", "#empty")
	page.onType = listOnQuery("513 MALAGA DRIVE", "li.option", "513 MALAGA DRIVE, Mobile, AL 36695")

	handle, err := NewLocator(page, testConfig(), nil, nil, nil, nil).
		Locate(context.Background(), domain.NewAddressQuery("513 MALAGA DRIVE"))
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if handle.Policy != domain.PolicyTokenMatch {
		t.Fatalf("unexpected handle %+v", handle)
	}
}

func TestDefaultEmptyStateSelectorsAreExact(t *testing.T) {
	for _, sel := range DefaultSelectors().EmptyState {
		if strings.HasPrefix(sel, ":text(") {
			t.Fatalf("substring text selector %q would match result counts like 10 results", sel)
		}
	}
}

func TestLocateKeyboardConfirmIntoEmptyStateIsNotFound(t *testing.T) {
	page := newFakePage("#addr")
	page.onPress = func(p *fakePage, key string) {
		if key == "Enter" {
			p.show("#empty")
		}
	}

	_, err := NewLocator(page, testConfig(), nil, nil, nil, nil).
		Locate(context.Background(), domain.NewAddressQuery("INVALID ADDRESS"))
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLocateWithoutSearchSurfaceIsNavigationError(t *testing.T) {
	page := newFakePage()

	_, err := NewLocator(page, testConfig(), nil, nil, nil, nil).
		Locate(context.Background(), domain.NewAddressQuery("513 MALAGA DRIVE"))
	if !domain.IsKind(err, domain.ErrNavigation) {
		t.Fatalf("expected navigation error, got %v", err)
	}
}

func TestLocateRunsWizardStepsInOrder(t *testing.T) {
	cfg := testConfig()
	cfg.Selectors.WizardSteps = [][]string{{"#start"}, {"#tab-missing", "#tab"}}

	page := newFakePage("#start")
	page.onClick["#start"] = func(p *fakePage) { p.show("#tab") }
	page.onClick["#tab"] = func(p *fakePage) { p.show("#addr") }

	if _, err := NewLocator(page, cfg, nil, nil, nil, nil).Locate(context.Background(), domain.NewAddressQuery("1 Main St")); err != nil {
		t.Fatalf("locate: %v", err)
	}
	if len(page.clicked) < 2 || page.clicked[0] != "#start" || page.clicked[1] != "#tab" {
		t.Fatalf("unexpected wizard clicks %v", page.clicked)
	}
}

func TestLocateMissingWizardStepIsNavigationError(t *testing.T) {
	cfg := testConfig()
	cfg.Selectors.WizardSteps = [][]string{{"#start"}, {"#never"}}

	page := newFakePage("#start", "#addr")
	_, err := NewLocator(page, cfg, nil, nil, nil, nil).Locate(context.Background(), domain.NewAddressQuery("1 Main St"))
	if !domain.IsKind(err, domain.ErrNavigation) {
		t.Fatalf("expected navigation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "wizard_step_2") {
		t.Fatalf("expected failing step in error, got %v", err)
	}
}
