package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/policyradar/policyradar/internal/core/domain"
)

const requestTimeout = 120 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

// postJSON sends a JSON payload and decodes the JSON response into out,
// classifying non-2xx statuses into the domain error taxonomy.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload any, out any, provider string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classifyStatus(provider, resp.StatusCode, raw, resp.Header)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", provider, err)
	}
	return nil
}

// classifyStatus maps an upstream HTTP failure onto the typed error the
// orchestration layer distinguishes: rate limit, validation, or generic API
// failure.
func classifyStatus(provider string, status int, body []byte, header http.Header) error {
	msg := fmt.Sprintf("%s API error: %s", provider, compactBody(body))
	switch {
	case status == http.StatusTooManyRequests:
		return &domain.RateLimitError{Message: msg, RetryAfter: parseRetryAfter(header.Get("Retry-After"))}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return &domain.ValidationError{Message: msg}
	default:
		return &domain.APIError{Message: msg, StatusCode: status}
	}
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func compactBody(body []byte) string {
	s := strings.Join(strings.Fields(string(body)), " ")
	if len(s) > 500 {
		s = s[:500] + "..."
	}
	if s == "" {
		s = "(empty body)"
	}
	return s
}

// parseArgs decodes a model-supplied JSON argument string. Bad JSON becomes
// an empty map so the executor's schema validation reports it.
func parseArgs(raw string) map[string]any {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{}
	}
	return args
}

// schemaJSON renders a tool parameter schema as the plain JSON-schema map
// OpenAI-style APIs expect.
func schemaJSON(schema *openapi3.Schema) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	raw, err := schema.MarshalJSON()
	if err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	if _, ok := out["properties"]; !ok {
		out["properties"] = map[string]any{}
	}
	return out
}

// encodeOutput renders a tool output payload as the JSON string fed back to
// the model.
func encodeOutput(result map[string]any) string {
	raw, err := json.Marshal(result)
	if err != nil {
		return `{"error":"failed to encode tool output"}`
	}
	return string(raw)
}
