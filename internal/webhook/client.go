// Package webhook is the HTTP client for the workflow backend. Every call is
// a JSON POST; responses are loosely shaped and decoded leniently.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Endpoints are the absolute URLs of the non-strategy webhooks.
type Endpoints struct {
	CreateNotebook  string
	ListNotebooks   string
	NotebookDetails string
	DeleteNotebook  string
	NotebookStatus  string
	Ingest          string
	SaveMessage     string
	PullHistory     string
	ClearHistory    string
	PushSettings    string
	PullSettings    string
}

// Config configures the webhook client.
type Config struct {
	Endpoints  Endpoints
	Timeout    time.Duration
	MaxRetries int
	Headers    map[string]string
}

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("webhook %s: HTTP %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("webhook %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// ErrNoEndpoint is returned when a webhook URL is not configured.
var ErrNoEndpoint = errors.New("webhook endpoint not configured")

const maxErrorBody = 512

// Client talks to the workflow backend.
type Client struct {
	endpoints  Endpoints
	headers    map[string]string
	client     *http.Client
	maxRetries int
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new webhook client using the provided configuration.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	t := cfg.Timeout
	if t == 0 {
		t = 120 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoints:  cfg.Endpoints,
		headers:    cfg.Headers,
		client:     &http.Client{Timeout: t},
		maxRetries: cfg.MaxRetries,
		logger:     logger.Named("webhook"),
		sleep:      sleepContext,
	}
}

// post sends body as JSON once and returns the response payload. It is used
// for calls that change backend state or run the agent.
func (c *Client) post(ctx context.Context, endpoint string, body any) ([]byte, error) {
	return c.send(ctx, endpoint, body, 0)
}

// fetch is post for idempotent reads. Transport errors, 429 and 5xx are
// retried with exponential backoff.
func (c *Client) fetch(ctx context.Context, endpoint string, body any) ([]byte, error) {
	return c.send(ctx, endpoint, body, c.maxRetries)
}

func (c *Client) send(ctx context.Context, endpoint string, body any, maxRetries int) ([]byte, error) {
	if endpoint == "" {
		return nil, ErrNoEndpoint
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request for %s: %w", endpoint, err)
	}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.backoff(attempt-1, lastErr)); err != nil {
				return nil, err
			}
		}
		payload, retry, err := c.do(ctx, endpoint, data)
		if err == nil {
			return payload, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
		if attempt < maxRetries {
			c.logger.Warn("webhook attempt failed", zap.String("endpoint", endpoint), zap.Int("attempt", attempt), zap.Error(err))
		}
	}
	c.logger.Error("webhook failed", zap.String("endpoint", endpoint), zap.Error(lastErr))
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, endpoint string, data []byte) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("build request for %s: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("webhook %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	c.logger.Debug("webhook call",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
		zap.Int("bytes", len(payload)))
	if err != nil {
		return nil, true, fmt.Errorf("read %s: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		herr := &HTTPError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: truncate(strings.TrimSpace(string(payload)), maxErrorBody)}
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		if ra := resp.Header.Get("Retry-After"); retry && ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				return nil, true, retryAfter{HTTPError: herr, wait: time.Duration(secs) * time.Second}
			}
		}
		return nil, retry, herr
	}
	return payload, false, nil
}

// retryAfter carries a server-provided delay alongside the HTTP error.
type retryAfter struct {
	*HTTPError
	wait time.Duration
}

func (r retryAfter) Unwrap() error { return r.HTTPError }

func (c *Client) backoff(attempt int, lastErr error) time.Duration {
	var ra retryAfter
	if errors.As(lastErr, &ra) && ra.wait > 0 {
		return ra.wait
	}
	return retryDelay(attempt)
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
