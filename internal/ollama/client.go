// Package ollama is a thin HTTP client for the local model-serving daemon.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"scantab/internal/common"
)

// Client talks to an Ollama-compatible endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     logger,
	}
}

// postJSON sends a JSON request and returns the raw response body.
// Non-2xx statuses are returned as errors together with the body.
func (c *Client) postJSON(ctx context.Context, path string, body any) ([]byte, error) {
	reqID := common.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.New().String()
	}
	start := time.Now()
	url := c.baseURL + path

	bs, err := json.Marshal(body)
	if err != nil {
		c.log.Error("ollama.http.encode_error", "req_id", reqID, "error", err)
		return nil, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		c.log.Error("ollama.http.build_request_error", "req_id", reqID, "error", err)
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	attrs := []any{"req_id", reqID, "url", url, "content_length", len(bs)}
	if src := common.SourceFromContext(ctx); src != "" {
		attrs = append(attrs, "source", src)
	}
	c.log.Info("ollama.http.request", attrs...)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("ollama.http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.log.Warn("ollama.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)

	c.log.Info("ollama.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		msg := fmt.Sprintf("%s: non-2xx status %d: %s", path, resp.StatusCode, truncate(string(raw), 200))
		return raw, common.NewAppError("OLLAMA_HTTP", msg, nil)
	}
	return raw, nil
}

// Health probes the daemon's tags endpoint to confirm it is reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable at %s (%v): %w", c.baseURL, err, common.ErrUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("ollama /api/tags: status %d: %w", resp.StatusCode, common.ErrUnavailable)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
