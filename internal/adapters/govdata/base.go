package govdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/policyradar/policyradar/internal/core/domain"
)

// Client is the shared HTTP layer for every government data adapter: JSON
// requests with retry/backoff on transient failures and a TTL cache for GET
// responses. A 429 that survives retries surfaces as domain.RateLimitError.
type Client struct {
	http       *http.Client
	logger     *slog.Logger
	cache      *ttlCache
	maxRetries int
	backoff    time.Duration
}

// NewClient creates the shared client.
func NewClient(logger *slog.Logger, cacheTTL time.Duration, maxRetries int, backoff time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if backoff <= 0 {
		backoff = time.Second
	}
	return &Client{
		http:       &http.Client{Timeout: 45 * time.Second},
		logger:     logger,
		cache:      newTTLCache(cacheTTL),
		maxRetries: maxRetries,
		backoff:    backoff,
	}
}

// GetJSON fetches a URL and decodes the JSON body into out. Responses are
// cached for the configured TTL.
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	if body, ok := c.cache.get(url); ok {
		return json.Unmarshal(body, out)
	}
	body, err := c.do(ctx, http.MethodGet, url, headers, nil)
	if err != nil {
		return err
	}
	c.cache.put(url, body)
	return json.Unmarshal(body, out)
}

// PostJSON sends a JSON payload and decodes the JSON response into out.
// POST responses are not cached.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, payload, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, url, headers, raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (c *Client) do(ctx context.Context, method, url string, headers map[string]string, payload []byte) ([]byte, error) {
	var lastErr error
	delay := c.backoff
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay *= 2
		}

		body, retryable, err := c.once(ctx, method, url, headers, payload)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			return nil, err
		}
		c.logger.Warn("data provider request failed; retrying",
			"url", url, "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

func (c *Client) once(ctx context.Context, method, url string, headers map[string]string, payload []byte) ([]byte, bool, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("call provider: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 20_000_000))
	if err != nil {
		return nil, true, fmt.Errorf("read provider response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, &domain.RateLimitError{
			Message:    "provider rate limit exceeded",
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode >= 500:
		return nil, true, &domain.APIError{
			Message:    fmt.Sprintf("provider error: %s", trimBody(body)),
			StatusCode: resp.StatusCode,
		}
	default:
		return nil, false, &domain.APIError{
			Message:    fmt.Sprintf("provider error: %s", trimBody(body)),
			StatusCode: resp.StatusCode,
		}
	}
}

func retryAfter(value string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func trimBody(body []byte) string {
	s := strings.Join(strings.Fields(string(body)), " ")
	if len(s) > 300 {
		s = s[:300] + "..."
	}
	return s
}

type cacheEntry struct {
	body    []byte
	expires time.Time
}

// ttlCache is a small time-bounded response cache. Zero TTL disables it.
type ttlCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

func newTTLCache(ttl time.Duration) *ttlCache {
	return &ttlCache{ttl: ttl, entries: make(map[string]cacheEntry)}
}

func (c *ttlCache) get(key string) ([]byte, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.body, true
}

// ttlCacheMaxEntries bounds the cache across distinct URLs.
const ttlCacheMaxEntries = 256

func (c *ttlCache) put(key string, body []byte) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= ttlCacheMaxEntries {
		now := time.Now()
		for k, e := range c.entries {
			if now.After(e.expires) {
				delete(c.entries, k)
			}
		}
		// Still full of live entries: drop arbitrary ones to stay bounded.
		for k := range c.entries {
			if len(c.entries) < ttlCacheMaxEntries {
				break
			}
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{body: body, expires: time.Now().Add(c.ttl)}
}

// Helpers shared by the provider adapters.

func clampPageSize(n, max int) int {
	if n <= 0 {
		return 10
	}
	if n > max {
		return max
	}
	return n
}

func lookbackDate(days int) time.Time {
	if days <= 0 {
		days = 30
	}
	return time.Now().UTC().AddDate(0, 0, -days)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
