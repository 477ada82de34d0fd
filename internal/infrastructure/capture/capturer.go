package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
	"github.com/kirillkom/certificate-harvester/internal/core/ports"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/strategy"
)

const component = "artifact_capture"

type Config struct {
	DownloadTimeout      time.Duration
	PopupTimeout         time.Duration
	ResponseTimeout      time.Duration
	PopupResponseTimeout time.Duration
	Windows              Windows
	// ContentTypes are the media types accepted as the document.
	ContentTypes []string
	// URLHints mark a popup URL as pointing straight at the document.
	URLHints []string
}

func DefaultConfig() Config {
	return Config{
		DownloadTimeout:      30 * time.Second,
		PopupTimeout:         30 * time.Second,
		ResponseTimeout:      30 * time.Second,
		PopupResponseTimeout: 10 * time.Second,
		Windows: Windows{
			Primary:   20 * time.Second,
			Secondary: 10 * time.Second,
			Poll:      500 * time.Millisecond,
		},
		ContentTypes: []string{"application/pdf"},
		URLHints:     []string{".pdf", "format=pdf", "/pdf"},
	}
}

type Capturer struct {
	surface  ports.CaptureSurface
	cfg      Config
	logger   *slog.Logger
	recorder strategy.Recorder
}

func NewCapturer(surface ports.CaptureSurface, cfg Config, logger *slog.Logger, recorder strategy.Recorder) *Capturer {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = strategy.NopRecorder{}
	}
	defaults := DefaultConfig()
	if len(cfg.ContentTypes) == 0 {
		cfg.ContentTypes = defaults.ContentTypes
	}
	if cfg.Windows.Primary <= 0 {
		cfg.Windows = defaults.Windows
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = defaults.DownloadTimeout
	}
	return &Capturer{surface: surface, cfg: cfg, logger: logger, recorder: recorder}
}

// Capture arms the listeners, fires trigger and returns the first non-empty
// document. An empty Artifact with a nil error means no channel produced
// bytes; Channel tells whether any channel fired at all.
func (c *Capturer) Capture(ctx context.Context, trigger func(context.Context) error) (domain.Artifact, error) {
	downloads, stopDownloads := c.surface.OnDownload()
	defer stopDownloads()
	popups, stopPopups := c.surface.OnPopup()
	defer stopPopups()
	responses, stopResponses := c.surface.OnResponse(c.isDocumentResponse)
	defer stopResponses()

	if err := trigger(ctx); err != nil {
		if errors.Is(err, domain.ErrNoDocument) {
			c.logger.Info("capture_no_document_action")
			return domain.Artifact{}, nil
		}
		return domain.Artifact{}, fmt.Errorf("trigger download: %w", err)
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	race := NewRace(raceCtx, c.cfg.Windows,
		Watch(domain.ChannelDownload, downloads, c.cfg.DownloadTimeout, func(d ports.DownloadHandle) Signal {
			return Signal{Download: d}
		}),
		Watch(domain.ChannelPopup, popups, c.cfg.PopupTimeout, func(p ports.PopupHandle) Signal {
			return Signal{Popup: p}
		}),
		Watch(domain.ChannelResponse, responses, c.cfg.ResponseTimeout, func(r ports.ResponseHandle) Signal {
			return Signal{Response: r}
		}),
	)

	fired := domain.ChannelNone
	for {
		sig, ok := race.Next(ctx)
		if !ok {
			break
		}
		fired = sig.Kind
		c.logger.Info("capture_signal", "channel", sig.Kind)

		artifact, err := c.extract(ctx, sig)
		if domain.IsKind(err, domain.ErrTransport) {
			return domain.Artifact{Channel: sig.Kind}, err
		}
		if err != nil {
			c.logger.Warn("capture_extract_failed", "channel", sig.Kind, "error", err)
			continue
		}
		if artifact.Empty() {
			c.logger.Warn("capture_empty_signal", "channel", sig.Kind)
			continue
		}
		c.recorder.RecordStrategy(component, string(sig.Kind))
		return artifact, nil
	}

	if err := ctx.Err(); err != nil {
		return domain.Artifact{Channel: fired}, domain.WrapError(domain.ErrTransport, "capture artifact", err)
	}
	c.logger.Info("capture_no_artifact", "channel", fired, "polls", race.Polls())
	return domain.Artifact{Channel: fired}, nil
}

func (c *Capturer) extract(ctx context.Context, sig Signal) (domain.Artifact, error) {
	switch sig.Kind {
	case domain.ChannelDownload:
		return c.fromDownload(ctx, sig.Download)
	case domain.ChannelResponse:
		return c.fromResponse(sig.Kind, sig.Response)
	case domain.ChannelPopup:
		return c.fromPopup(ctx, sig.Popup)
	default:
		return domain.Artifact{}, fmt.Errorf("unknown capture channel %q", sig.Kind)
	}
}

func (c *Capturer) fromDownload(ctx context.Context, d ports.DownloadHandle) (domain.Artifact, error) {
	if d == nil {
		return domain.Artifact{}, fmt.Errorf("download signal without handle")
	}
	p, err := c.awaitDownload(ctx, d)
	if err != nil {
		return domain.Artifact{}, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("read download: %w", err)
	}
	name := d.SuggestedFilename()
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	return domain.NewArtifact(domain.ChannelDownload, data, sniff(contentType, data), name), nil
}

// awaitDownload bounds DownloadHandle.Path, which blocks until the browser
// finished the transfer. A download still running at the deadline is
// cancelled.
func (c *Capturer) awaitDownload(ctx context.Context, d ports.DownloadHandle) (string, error) {
	type result struct {
		path string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		p, err := d.Path()
		done <- result{path: p, err: err}
	}()

	timer := time.NewTimer(c.cfg.DownloadTimeout)
	defer timer.Stop()

	var cause error
	select {
	case res := <-done:
		if res.err != nil {
			return "", fmt.Errorf("wait download: %w", res.err)
		}
		return res.path, nil
	case <-timer.C:
		cause = fmt.Errorf("download not finished within %s", c.cfg.DownloadTimeout)
	case <-ctx.Done():
		cause = ctx.Err()
	}
	if err := d.Cancel(); err != nil {
		c.logger.Debug("download_cancel_failed", "error", err)
	}
	return "", domain.WrapError(domain.ErrTransport, "wait download", cause)
}

func (c *Capturer) fromResponse(kind domain.CaptureChannel, r ports.ResponseHandle) (domain.Artifact, error) {
	if r == nil {
		return domain.Artifact{}, fmt.Errorf("response signal without handle")
	}
	data, err := r.Body()
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("read response body: %w", err)
	}
	name := fileNameFrom(r.Header("Content-Disposition"), r.URL())
	return domain.NewArtifact(kind, data, sniff(r.Header("Content-Type"), data), name), nil
}

// fromPopup inspects a new window: first for a document response of its
// own, then for a direct fetch when the window URL is the document.
func (c *Capturer) fromPopup(ctx context.Context, p ports.PopupHandle) (domain.Artifact, error) {
	if p == nil {
		return domain.Artifact{}, fmt.Errorf("popup signal without handle")
	}
	defer func() {
		if err := p.Close(); err != nil {
			c.logger.Debug("popup_close_failed", "error", err)
		}
	}()

	resp, err := p.NextResponse(ctx, c.isDocumentResponse, c.cfg.PopupResponseTimeout)
	if err == nil && resp != nil {
		artifact, err := c.fromResponse(domain.ChannelPopup, resp)
		if err == nil && !artifact.Empty() {
			return artifact, nil
		}
	}

	target := p.URL()
	if !c.looksLikeDocument(target) {
		return domain.Artifact{Channel: domain.ChannelPopup}, nil
	}
	data, contentType, err := p.Fetch(ctx, target)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("fetch popup document: %w", err)
	}
	return domain.NewArtifact(domain.ChannelPopup, data, sniff(contentType, data), fileNameFrom("", target)), nil
}

func (c *Capturer) isDocumentResponse(r ports.ResponseHandle) bool {
	mediaType := mediaTypeOf(r.Header("Content-Type"))
	for _, ct := range c.cfg.ContentTypes {
		if mediaType == strings.ToLower(ct) {
			return true
		}
	}
	if mediaType == "application/octet-stream" {
		return c.looksLikeDocument(fileNameFrom(r.Header("Content-Disposition"), ""))
	}
	return false
}

func (c *Capturer) looksLikeDocument(target string) bool {
	lower := strings.ToLower(target)
	if lower == "" || lower == "about:blank" {
		return false
	}
	for _, hint := range c.cfg.URLHints {
		if strings.Contains(lower, strings.ToLower(hint)) {
			return true
		}
	}
	return false
}

func mediaTypeOf(header string) string {
	if header == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(header, ";")[0]))
	}
	return mediaType
}

func sniff(declared string, data []byte) string {
	if mediaType := mediaTypeOf(declared); mediaType != "" && mediaType != "application/octet-stream" {
		return mediaType
	}
	if len(data) == 0 {
		return mediaTypeOf(declared)
	}
	return mediaTypeOf(http.DetectContentType(data))
}

// fileNameFrom prefers the Content-Disposition filename and falls back to the
// last URL path segment when it carries an extension.
func fileNameFrom(disposition, rawURL string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
			return path.Base(params["filename"])
		}
	}
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if path.Ext(base) == "" {
		return ""
	}
	return base
}
