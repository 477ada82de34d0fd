package playwright

import (
	"context"
	"fmt"
	"strings"
	"time"

	pw "github.com/playwright-community/playwright-go"

	"github.com/kirillkom/certificate-harvester/internal/core/ports"
)

type downloadHandle struct {
	raw pw.Download
}

func (d downloadHandle) Path() (string, error) {
	return d.raw.Path()
}

func (d downloadHandle) Cancel() error {
	return d.raw.Cancel()
}

func (d downloadHandle) SuggestedFilename() string {
	return d.raw.SuggestedFilename()
}

type responseHandle struct {
	raw pw.Response
}

func (r responseHandle) URL() string {
	return r.raw.URL()
}

// Header reads the headers delivered with the event, without a driver
// round trip, so it is safe inside event handlers.
func (r responseHandle) Header(name string) string {
	return r.raw.Headers()[strings.ToLower(name)]
}

func (r responseHandle) Body() ([]byte, error) {
	return r.raw.Body()
}

// popupBacklog is how many responses a popup keeps for a later NextResponse.
const popupBacklog = 16

type popupHandle struct {
	raw       pw.Page
	owner     *Page
	responses *listener[ports.ResponseHandle]
}

func newPopupHandle(raw pw.Page, owner *Page) *popupHandle {
	return &popupHandle{raw: raw, owner: owner, responses: newBacklogListener[ports.ResponseHandle](popupBacklog)}
}

func (h *popupHandle) URL() string {
	return h.raw.URL()
}

func (h *popupHandle) NextResponse(ctx context.Context, match func(ports.ResponseHandle) bool, timeout time.Duration) (ports.ResponseHandle, error) {
	ch, stop := h.responses.arm(match)
	defer stop()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case resp := <-ch:
		return resp, nil
	case <-timer.C:
		return nil, fmt.Errorf("no matching popup response within %s", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *popupHandle) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := h.raw.Context().Request().Get(url, pw.APIRequestContextGetOptions{
		Timeout: timeoutMS(ctx, h.owner.actionTimeout),
	})
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() {
		_ = resp.Dispose()
	}()
	if !resp.Ok() {
		return nil, "", fmt.Errorf("fetch %s: status %d", url, resp.Status())
	}
	body, err := resp.Body()
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", url, err)
	}
	return body, resp.Headers()["content-type"], nil
}

func (h *popupHandle) Close() error {
	h.owner.forgetPopup(h.raw)
	return h.raw.Close()
}

var (
	_ ports.BrowserPage    = (*Page)(nil)
	_ ports.CaptureSurface = (*Page)(nil)
	_ ports.PopupHandle    = (*popupHandle)(nil)
)
