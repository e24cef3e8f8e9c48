package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HuggingFaceEmbedder calls a hosted Hugging Face feature-extraction
// endpoint.
type HuggingFaceEmbedder struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	retry   retryPolicy
}

// NewHuggingFaceEmbedder creates the embedder.
func NewHuggingFaceEmbedder(logger *slog.Logger, baseURL, apiKey, model string, maxRetries int, backoff time.Duration) *HuggingFaceEmbedder {
	return &HuggingFaceEmbedder{
		client:  &http.Client{Timeout: 60 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		retry:   newRetryPolicy(logger, maxRetries, backoff),
	}
}

// Embed returns one vector per input text, in order. Exhausted retries yield
// an empty result, not an error.
func (e *HuggingFaceEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return e.retry.run(ctx, "huggingface", func() ([][]float32, error) {
		return e.embedOnce(ctx, texts)
	})
}

func (e *HuggingFaceEmbedder) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(map[string]any{
		"inputs":  texts,
		"options": map[string]any{"wait_for_model": true},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal feature-extraction payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s", e.baseURL, e.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create feature-extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call feature-extraction API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("feature-extraction API returned status %d: %s", resp.StatusCode, string(body))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decode feature-extraction response: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("feature-extraction API returned %d vectors for %d inputs", len(vectors), len(texts))
	}
	return vectors, nil
}
