package govdata

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policyradar/policyradar/internal/core/domain"
)

func testClient(cacheTTL time.Duration) *Client {
	return NewClient(slog.Default(), cacheTTL, 2, time.Millisecond)
}

func TestGetJSONRetriesTransientFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	err := testClient(0).GetJSON(context.Background(), srv.URL, nil, &out)

	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), hits.Load())
}

func TestGetJSONRateLimitSurvivesRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var out map[string]any
	err := testClient(0).GetJSON(context.Background(), srv.URL, nil, &out)

	var rle *domain.RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 7*time.Second, rle.RetryAfter)
}

func TestGetJSONClientErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no such endpoint"}`))
	}))
	defer srv.Close()

	var out map[string]any
	err := testClient(0).GetJSON(context.Background(), srv.URL, nil, &out)

	var aerr *domain.APIError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, http.StatusNotFound, aerr.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestGetJSONUsesCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"n":1}`))
	}))
	defer srv.Close()

	client := testClient(time.Minute)
	var out map[string]any
	require.NoError(t, client.GetJSON(context.Background(), srv.URL, nil, &out))
	require.NoError(t, client.GetJSON(context.Background(), srv.URL, nil, &out))

	assert.Equal(t, int32(1), hits.Load())
}

func TestPostJSONSendsHeadersAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		_, _ = w.Write([]byte(`{"accepted":true}`))
	}))
	defer srv.Close()

	var out map[string]any
	err := testClient(0).PostJSON(context.Background(), srv.URL,
		map[string]string{"X-Api-Key": "secret"}, map[string]any{"q": "x"}, &out)

	require.NoError(t, err)
	assert.Equal(t, true, out["accepted"])
}

func TestTTLCacheBoundsEntryCount(t *testing.T) {
	c := newTTLCache(time.Hour)
	for i := 0; i < ttlCacheMaxEntries+50; i++ {
		c.put(fmt.Sprintf("https://example.gov/page/%d", i), []byte("body"))
	}

	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()
	assert.LessOrEqual(t, n, ttlCacheMaxEntries)
}

func TestTTLCacheSweepsExpiredWhenFull(t *testing.T) {
	c := newTTLCache(time.Millisecond)
	for i := 0; i < ttlCacheMaxEntries; i++ {
		c.put(fmt.Sprintf("https://example.gov/old/%d", i), []byte("body"))
	}
	time.Sleep(5 * time.Millisecond)

	c.put("https://example.gov/fresh", []byte("body"))

	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()
	assert.Equal(t, 1, n, "expired entries are swept once the cache fills")
}

func TestClampPageSize(t *testing.T) {
	assert.Equal(t, 10, clampPageSize(0, 25))
	assert.Equal(t, 25, clampPageSize(100, 25))
	assert.Equal(t, 5, clampPageSize(5, 25))
}

func TestLookbackDate(t *testing.T) {
	d := lookbackDate(7)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, -7), d, time.Minute)
	// Zero falls back to the default window.
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, -30), lookbackDate(0), time.Minute)
}
