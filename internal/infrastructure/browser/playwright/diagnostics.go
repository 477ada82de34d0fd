package playwright

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	pw "github.com/playwright-community/playwright-go"
)

// Diagnostics dumps a screenshot and the page HTML for failed items.
// With an empty directory every capture is a no-op.
type Diagnostics struct {
	dir    string
	page   *Page
	logger *slog.Logger
	now    func() time.Time
}

func NewDiagnostics(dir string, page *Page, logger *slog.Logger) *Diagnostics {
	if logger == nil {
		logger = slog.Default()
	}
	return &Diagnostics{dir: dir, page: page, logger: logger, now: time.Now}
}

func (d *Diagnostics) Capture(ctx context.Context, label string) {
	if d == nil || d.dir == "" || d.page == nil {
		return
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		d.logger.Warn("diagnostics_failed", "label", label, "error", err)
		return
	}
	base := filepath.Join(d.dir, diagnosticName(label, d.now()))

	if _, err := d.page.raw.Screenshot(pw.PageScreenshotOptions{
		Path:     pw.String(base + ".png"),
		FullPage: pw.Bool(true),
		Timeout:  timeoutMS(ctx, 10*time.Second),
	}); err != nil {
		d.logger.Warn("diagnostics_screenshot_failed", "label", label, "error", err)
	}

	html, err := d.page.raw.Content()
	if err != nil {
		d.logger.Warn("diagnostics_html_failed", "label", label, "error", err)
		return
	}
	if err := os.WriteFile(base+".html", []byte(html), 0o644); err != nil {
		d.logger.Warn("diagnostics_html_failed", "label", label, "error", err)
		return
	}
	d.logger.Info("diagnostics_saved", "label", label, "path", base)
}

func diagnosticName(label string, at time.Time) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, strings.TrimSpace(label))
	if clean == "" {
		clean = "page"
	}
	if len(clean) > 80 {
		clean = clean[:80]
	}
	return fmt.Sprintf("%s_%s", at.UTC().Format("20060102T150405.000Z"), clean)
}
