// Package openaivision generates stock-photo keywords by sending images to
// an OpenAI-compatible vision chat endpoint.
package openaivision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mkorchagin/photostock/internal/core/domain"
	"github.com/mkorchagin/photostock/internal/infrastructure/resilience"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultMaxTags = 30

	systemPrompt = "You are a professional stock-photo keywording assistant. " +
		"Provide accurate, searchable keywords that describe the image " +
		"content, composition, mood, colors, and potential commercial uses."
)

// Client implements ports.TagGenerator. Calls are rate limited and run
// through the resilience executor, so transient API failures retry with
// backoff before surfacing to the pipeline.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxTags    int
	detail     string
	httpClient *http.Client
	limiter    *rate.Limiter
	exec       *resilience.Executor
}

type Option func(*Client)

func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

func WithMaxTags(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTags = n
		}
	}
}

func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

func New(baseURL, apiKey string, exec *resilience.Executor, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      defaultModel,
		maxTags:    defaultMaxTags,
		detail:     "high",
		httpClient: &http.Client{Timeout: 120 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(2), 1),
		exec:       exec,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate asks the vision model for a comma-separated keyword list and
// normalizes it: lowercase, trimmed, deduplicated, capped at the tag limit.
func (c *Client) Generate(ctx context.Context, path string) ([]string, error) {
	payload, err := c.buildRequest(path)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("tagging rate wait: %w", err)
	}

	var raw string
	call := func(ctx context.Context) error {
		var callErr error
		raw, callErr = c.complete(ctx, payload)
		return callErr
	}
	if c.exec != nil {
		err = c.exec.Execute(ctx, "tag_generate", call, resilience.TemporaryClassifier)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	tags := normalizeTags(raw, c.maxTags)
	slog.Debug("tags_generated", "path", filepath.Base(path), "count", len(tags))
	return tags, nil
}

func (c *Client) buildRequest(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "openaivision.Generate", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)

	userText := fmt.Sprintf(
		"Return a comma-separated list of up to %d concise, lowercase keywords. "+
			"Include: subject matter, actions, setting, time of day, weather, colors, "+
			"mood, composition style, and potential commercial applications. "+
			"Be specific and avoid generic terms.", c.maxTags)

	body := map[string]any{
		"model":       c.model,
		"max_tokens":  150,
		"temperature": 0.2,
		"messages": []any{
			map[string]any{
				"role":    "system",
				"content": systemPrompt,
			},
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "text", "text": userText},
					map[string]any{
						"type":      "image_url",
						"image_url": map[string]any{"url": dataURL, "detail": c.detail},
					},
				},
			},
		},
	}
	return json.Marshal(body)
}

func (c *Client) complete(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.WrapError(domain.ErrTemporary, "openaivision.complete", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", httpStatusError(resp)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// httpStatusError tags 429 and 5xx as temporary so the executor retries
// them; 4xx responses fail fast.
func httpStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	base := fmt.Errorf("completion status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return domain.WrapError(domain.ErrTemporary, "openaivision.complete", base)
	}
	return base
}

func normalizeTags(raw string, limit int) []string {
	seen := make(map[string]struct{})
	tags := make([]string, 0, limit)
	for _, part := range strings.Split(raw, ",") {
		tag := strings.ToLower(strings.TrimSpace(part))
		tag = strings.Trim(tag, ".\"'")
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
		if len(tags) == limit {
			break
		}
	}
	return tags
}
