package ports

import (
	"context"
	"time"
)

// BrowserPage is the subset of page behaviour the session, locator and
// detail navigator drive. Timeouts are taken from ctx unless stated.
type BrowserPage interface {
	Goto(ctx context.Context, url string) error
	// Find returns the first visible and enabled element matching selector.
	Find(ctx context.Context, selector string) (PageElement, bool)
	// FindAll returns every visible element matching selector.
	FindAll(ctx context.Context, selector string) ([]PageElement, error)
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	WaitHidden(ctx context.Context, selector string, timeout time.Duration) error
	// Type sends text to the focused element as keyboard input.
	Type(ctx context.Context, text string) error
	Press(ctx context.Context, key string) error
	Content(ctx context.Context) (string, error)
	URL() string
}

type PageElement interface {
	Click(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	Focus(ctx context.Context) error
	Text(ctx context.Context) (string, error)
}

// CaptureSurface arms delivery-channel listeners. Each returned stop func
// disarms its listener and must be called once.
type CaptureSurface interface {
	OnDownload() (<-chan DownloadHandle, func())
	OnPopup() (<-chan PopupHandle, func())
	OnResponse(match func(ResponseHandle) bool) (<-chan ResponseHandle, func())
}

type DownloadHandle interface {
	// Path blocks until the download finished and returns the local file.
	Path() (string, error)
	SuggestedFilename() string
	// Cancel aborts a transfer that is still running.
	Cancel() error
}

type ResponseHandle interface {
	URL() string
	Header(name string) string
	Body() ([]byte, error)
}

type PopupHandle interface {
	URL() string
	// NextResponse waits for a response on the popup accepted by match.
	NextResponse(ctx context.Context, match func(ResponseHandle) bool, timeout time.Duration) (ResponseHandle, error)
	// Fetch requests url with the popup's session and returns body and content type.
	Fetch(ctx context.Context, url string) ([]byte, string, error)
	Close() error
}
