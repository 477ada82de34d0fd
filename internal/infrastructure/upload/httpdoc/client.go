package httpdoc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/resilience"
)

type Config struct {
	// BaseURL of the host; empty disables mirroring.
	BaseURL  string
	Token    string
	FolderID string
	Timeout  time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.cfg.BaseURL != ""
}

type uploadResponse struct {
	ID      string `json:"id"`
	Link    string `json:"link"`
	WebLink string `json:"webViewLink"`
}

// Upload returns nil, nil when no host is configured.
func (c *Client) Upload(ctx context.Context, data []byte, name, contentType string) (*domain.UploadRef, error) {
	if !c.Enabled() {
		return nil, nil
	}
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("empty document %q", name))
	}

	ref, err := resilience.Do(ctx, c.executor, "upload.document", func(ctx context.Context) (*domain.UploadRef, error) {
		return c.upload(ctx, data, name, contentType)
	}, resilience.ClassifyHTTP)
	if err != nil {
		return nil, resilience.WrapTemporary("upload document", err, resilience.ClassifyHTTP)
	}
	return ref, nil
}

func (c *Client) upload(ctx context.Context, data []byte, name, contentType string) (*domain.UploadRef, error) {
	body, formType, err := encodeForm(data, name, contentType, c.cfg.FolderID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/documents", body)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", formType)
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &resilience.HTTPStatusError{
			Operation:  "upload",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		}
	}

	var out uploadResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("upload response without id")
	}
	link := out.Link
	if link == "" {
		link = out.WebLink
	}
	return &domain.UploadRef{ID: out.ID, Link: link}, nil
}

func encodeForm(data []byte, name, contentType, folderID string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if folderID != "" {
		if err := w.WriteField("folder_id", folderID); err != nil {
			return nil, "", fmt.Errorf("write folder field: %w", err)
		}
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
