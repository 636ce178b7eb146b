package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
)

// GenerateRequest is the non-streaming /api/generate payload.
type GenerateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images,omitempty"` // base64-encoded
	Stream bool     `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate sends a prompt (optionally with attached images) and returns the
// model's full free-text response.
func (c *Client) Generate(ctx context.Context, model, prompt string, images []string) (string, error) {
	raw, err := c.postJSON(ctx, "/api/generate", GenerateRequest{
		Model:  model,
		Prompt: prompt,
		Images: images,
		Stream: false,
	})
	if err != nil {
		return "", err
	}
	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	return gr.Response, nil
}

// GenerateWithImageFile reads imagePath, base64-encodes it, and runs Generate.
func (c *Client) GenerateWithImageFile(ctx context.Context, model, prompt, imagePath string) (string, error) {
	b, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	return c.Generate(ctx, model, prompt, []string{base64.StdEncoding.EncodeToString(b)})
}

type embeddingsRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingsResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, model, text string) ([]float32, error) {
	raw, err := c.postJSON(ctx, "/api/embeddings", embeddingsRequest{Model: model, Prompt: text})
	if err != nil {
		return nil, err
	}
	var er embeddingsResponse
	if err := json.Unmarshal(raw, &er); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}
	if len(er.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding for model %s", model)
	}
	return er.Embedding, nil
}

// EmbedBatch embeds each text in order. The daemon's embeddings endpoint is
// single-prompt, so this loops; if you send 3 texts you get 3 vectors.
func (c *Client) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i, t := range texts {
		v, err := c.Embed(ctx, model, t)
		if err != nil {
			return nil, fmt.Errorf("embed text %d/%d: %w", i+1, len(texts), err)
		}
		out = append(out, v)
	}
	return out, nil
}
