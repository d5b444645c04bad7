// Package shutterstock implements the stock marketplace port against the
// Shutterstock contributor API: raw-body uploads, content-editor metadata
// patches, batch review submission, and per-media status checks.
package shutterstock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mkorchagin/photostock/internal/core/domain"
	"github.com/mkorchagin/photostock/internal/infrastructure/resilience"
)

var uploadContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
}

// Client implements ports.StockClient. Authentication is a contributor
// session cookie; transient API failures go through the resilience
// executor.
type Client struct {
	baseURL       string
	sessionCookie string
	httpClient    *http.Client
	exec          *resilience.Executor
}

func New(baseURL, sessionCookie string, exec *resilience.Executor) *Client {
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		sessionCookie: sessionCookie,
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		exec:          exec,
	}
}

// Upload posts the raw file body and returns the marketplace media ID.
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "shutterstock.Upload", err)
	}

	contentType, ok := uploadContentTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		contentType = "image/jpeg"
	}

	var result struct {
		ID string `json:"id"`
	}
	err = c.execute(ctx, "stock_upload", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("create upload request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)
		c.authenticate(req)
		return c.do(req, &result)
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", filepath.Base(path), err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("upload %s: response carried no media id", filepath.Base(path))
	}

	slog.Info("stock_uploaded", "path", filepath.Base(path), "media_id", result.ID)
	return result.ID, nil
}

func (c *Client) SetMetadata(ctx context.Context, mediaID string, meta domain.StockMetadata) error {
	payload := map[string]any{"id": mediaID}
	if meta.Description != "" {
		payload["description"] = meta.Description
	}
	if len(meta.Keywords) > 0 {
		payload["keywords"] = meta.Keywords
	}
	if len(meta.Categories) > 0 {
		payload["categories"] = meta.Categories
	}
	if meta.Editorial {
		payload["editorial"] = true
	}

	err := c.execute(ctx, "stock_set_metadata", func(ctx context.Context) error {
		return c.sendJSON(ctx, http.MethodPatch, "/api/content_editor", payload, nil)
	})
	if err != nil {
		return fmt.Errorf("set metadata for %s: %w", mediaID, err)
	}
	return nil
}

func (c *Client) Submit(ctx context.Context, mediaIDs []string) error {
	if len(mediaIDs) == 0 {
		return nil
	}

	err := c.execute(ctx, "stock_submit", func(ctx context.Context) error {
		return c.sendJSON(ctx, http.MethodPost, "/api/content_editor/submit", map[string]any{"ids": mediaIDs}, nil)
	})
	if err != nil {
		return fmt.Errorf("submit %d media for review: %w", len(mediaIDs), err)
	}

	slog.Info("stock_submitted", "count", len(mediaIDs))
	return nil
}

// Status maps marketplace review states onto the domain vocabulary.
// Anything that is neither approved nor rejected counts as still
// submitted.
func (c *Client) Status(ctx context.Context, mediaID string) (domain.SubmissionStatus, string, error) {
	var result struct {
		Status string `json:"status"`
		Reason string `json:"rejection_reason"`
	}
	err := c.execute(ctx, "stock_status", func(ctx context.Context) error {
		return c.sendJSON(ctx, http.MethodGet, "/api/content_editor/photo/"+mediaID, nil, &result)
	})
	if err != nil {
		return "", "", fmt.Errorf("check status of %s: %w", mediaID, err)
	}

	switch strings.ToLower(result.Status) {
	case "approved":
		return domain.SubmissionApproved, "", nil
	case "rejected":
		return domain.SubmissionRejected, result.Reason, nil
	default:
		return domain.SubmissionSubmitted, "", nil
	}
}

func (c *Client) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	if c.exec == nil {
		return call(ctx)
	}
	return c.exec.Execute(ctx, operation, call, resilience.TemporaryClassifier)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authenticate(req)
	return c.do(req, out)
}

func (c *Client) authenticate(req *http.Request) {
	req.Header.Set("Cookie", "session="+c.sessionCookie)
	req.Header.Set("Accept", "application/json")
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "shutterstock.request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return domain.WrapError(domain.ErrUnauthorized, "shutterstock.request",
			fmt.Errorf("session cookie expired or invalid"))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return domain.WrapError(domain.ErrTemporary, "shutterstock.request",
			fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(body))))
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
