package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const formatSystemPrompt = "You are a precise data formatting assistant. Return only the formatted text, nothing else."

const formatUserPrompt = `You are a data formatting assistant for a historical economic research RAG (Retrieval-Augmented Generation) system.

Your task: Convert the raw firm data below into well-structured, readable text optimized for semantic search and retrieval.

REQUIREMENTS:
1. Use clear section headers (COMPANY INFO, LEADERSHIP, FINANCIALS, etc.)
2. Write in complete sentences where appropriate
3. List names clearly without excessive parenthetical notes
4. Highlight key facts: founding year, location, industry, leaders
5. Remove parsing artifacts and clean up formatting
6. Make it easy for someone to quickly scan and find information
7. Keep all factual information - do not invent or omit data
8. Use consistent date formats
9. Group related information together

OUTPUT ONLY THE FORMATTED TEXT. DO NOT include explanations, metadata, or commentary.

RAW FIRM DATA:
%s

FORMATTED TEXT:`

// FormatRecord rewrites one raw record into retrieval-friendly prose.
func (c *Client) FormatRecord(ctx context.Context, record string) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("openai.format.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"record_len", len(record),
	)

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"max_tokens":  c.cfg.MaxTokens,
		"messages": []map[string]any{
			{"role": "system", "content": formatSystemPrompt},
			{"role": "user", "content": fmt.Sprintf(formatUserPrompt, record)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, rid, endpoint, body)
	if err != nil {
		c.log.Error("openai.format.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("openai.format.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("openai.format.no_choices", "req_id", rid, "raw", string(raw))
		return "", fmt.Errorf("no choices in chat response")
	}

	out := strings.TrimSpace(cc.Choices[0].Message.Content)
	c.log.Info("openai.format.done",
		"req_id", rid,
		"formatted_len", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (c *Client) post(ctx context.Context, rid, url string, body any) ([]byte, error) {
	bs, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.log.Warn("openai.http.response_body_close_error", "req_id", rid, "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return raw, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, nil
}
