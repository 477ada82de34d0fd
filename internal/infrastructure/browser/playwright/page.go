package playwright

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	pw "github.com/playwright-community/playwright-go"

	"github.com/kirillkom/certificate-harvester/internal/core/ports"
)

// Page adapts a playwright page to ports.BrowserPage and ports.CaptureSurface.
type Page struct {
	raw           pw.Page
	context       pw.BrowserContext
	actionTimeout time.Duration
	logger        *slog.Logger

	downloads listener[ports.DownloadHandle]
	popups    listener[ports.PopupHandle]
	responses listener[ports.ResponseHandle]

	mu            sync.Mutex
	popupHandlers map[pw.Page]*popupHandle
}

func newPage(raw pw.Page, bctx pw.BrowserContext, actionTimeout time.Duration, logger *slog.Logger) *Page {
	p := &Page{
		raw:           raw,
		context:       bctx,
		actionTimeout: actionTimeout,
		logger:        logger,
		popupHandlers: make(map[pw.Page]*popupHandle),
	}

	raw.OnDownload(func(d pw.Download) {
		p.downloads.deliver(downloadHandle{raw: d})
	})
	raw.OnPopup(func(popup pw.Page) {
		h := newPopupHandle(popup, p)
		p.mu.Lock()
		p.popupHandlers[popup] = h
		p.mu.Unlock()
		if !p.popups.deliver(h) {
			p.logger.Debug("popup_ignored", "url", popup.URL())
		}
	})
	// Responses are observed on the context and routed by owning page. A
	// popup's responses are kept from the moment its handle is registered,
	// so the document can arrive before NextResponse is called.
	bctx.OnResponse(func(r pw.Response) {
		handle := responseHandle{raw: r}
		owner := pageOf(r)
		if owner == nil || owner == raw {
			p.responses.deliver(handle)
			return
		}
		p.mu.Lock()
		h := p.popupHandlers[owner]
		p.mu.Unlock()
		if h != nil {
			h.responses.deliver(handle)
		}
	})
	return p
}

func pageOf(r pw.Response) pw.Page {
	frame := r.Frame()
	if frame == nil {
		return nil
	}
	return frame.Page()
}

// timeoutMS bounds fallback by the ctx deadline, in playwright milliseconds.
func timeoutMS(ctx context.Context, fallback time.Duration) *float64 {
	d := fallback
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < d {
			d = left
		}
	}
	if d <= 0 {
		d = time.Millisecond
	}
	return pw.Float(float64(d.Milliseconds()))
}

func (p *Page) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.raw.Goto(url, pw.PageGotoOptions{
		WaitUntil: pw.WaitUntilStateDomcontentloaded,
		Timeout:   timeoutMS(ctx, 2*p.actionTimeout),
	})
	if err != nil {
		return fmt.Errorf("goto %s: %w", url, err)
	}
	return nil
}

func (p *Page) Find(ctx context.Context, selector string) (ports.PageElement, bool) {
	if ctx.Err() != nil {
		return nil, false
	}
	loc := p.raw.Locator(selector)
	count, err := loc.Count()
	if err != nil {
		return nil, false
	}
	for i := 0; i < count; i++ {
		el := loc.Nth(i)
		if visible, err := el.IsVisible(); err != nil || !visible {
			continue
		}
		if enabled, err := el.IsEnabled(); err != nil || !enabled {
			continue
		}
		return &element{loc: el, timeout: p.actionTimeout}, true
	}
	return nil, false
}

func (p *Page) FindAll(ctx context.Context, selector string) ([]ports.PageElement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, err := p.raw.Locator(selector).All()
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", selector, err)
	}
	out := make([]ports.PageElement, 0, len(all))
	for _, loc := range all {
		if visible, err := loc.IsVisible(); err != nil || !visible {
			continue
		}
		out = append(out, &element{loc: loc, timeout: p.actionTimeout})
	}
	return out, nil
}

func (p *Page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return p.waitFor(ctx, selector, timeout, pw.WaitForSelectorStateVisible)
}

func (p *Page) WaitHidden(ctx context.Context, selector string, timeout time.Duration) error {
	return p.waitFor(ctx, selector, timeout, pw.WaitForSelectorStateHidden)
}

func (p *Page) waitFor(ctx context.Context, selector string, timeout time.Duration, state *pw.WaitForSelectorState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := p.raw.Locator(selector).First().WaitFor(pw.LocatorWaitForOptions{
		State:   state,
		Timeout: timeoutMS(ctx, timeout),
	})
	if err != nil {
		return fmt.Errorf("wait %s for %s: %w", *state, selector, err)
	}
	return nil
}

func (p *Page) Type(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.raw.Keyboard().Type(text)
}

func (p *Page) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.raw.Keyboard().Press(key)
}

func (p *Page) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.raw.Content()
}

func (p *Page) URL() string {
	return p.raw.URL()
}

func (p *Page) OnDownload() (<-chan ports.DownloadHandle, func()) {
	return p.downloads.arm(nil)
}

func (p *Page) OnPopup() (<-chan ports.PopupHandle, func()) {
	return p.popups.arm(nil)
}

func (p *Page) OnResponse(match func(ports.ResponseHandle) bool) (<-chan ports.ResponseHandle, func()) {
	return p.responses.arm(match)
}

func (p *Page) forgetPopup(raw pw.Page) {
	p.mu.Lock()
	delete(p.popupHandlers, raw)
	p.mu.Unlock()
}

type element struct {
	loc     pw.Locator
	timeout time.Duration
}

func (e *element) Click(ctx context.Context) error {
	return e.loc.Click(pw.LocatorClickOptions{Timeout: timeoutMS(ctx, e.timeout)})
}

func (e *element) Fill(ctx context.Context, value string) error {
	return e.loc.Fill(value, pw.LocatorFillOptions{Timeout: timeoutMS(ctx, e.timeout)})
}

func (e *element) Focus(ctx context.Context) error {
	return e.loc.Focus(pw.LocatorFocusOptions{Timeout: timeoutMS(ctx, e.timeout)})
}

func (e *element) Text(ctx context.Context) (string, error) {
	text, err := e.loc.InnerText(pw.LocatorInnerTextOptions{Timeout: timeoutMS(ctx, e.timeout)})
	return strings.TrimSpace(text), err
}
