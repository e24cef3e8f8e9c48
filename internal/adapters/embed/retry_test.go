package embed

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicySucceedsAfterTransientFailures(t *testing.T) {
	policy := newRetryPolicy(slog.Default(), 3, time.Millisecond)
	attempts := 0

	vectors, err := policy.run(context.Background(), "test", func() ([][]float32, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("transient")
		}
		return [][]float32{{1, 2}}, nil
	})

	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, 3, attempts)
}

func TestRetryPolicyExhaustionIsEmptyNotError(t *testing.T) {
	policy := newRetryPolicy(slog.Default(), 2, time.Millisecond)
	attempts := 0

	vectors, err := policy.run(context.Background(), "test", func() ([][]float32, error) {
		attempts++
		return nil, errors.New("always fails")
	})

	assert.NoError(t, err)
	assert.Nil(t, vectors)
	assert.Equal(t, 3, attempts, "maxRetries plus the initial attempt")
}

func TestRetryPolicyHonorsContextCancellation(t *testing.T) {
	policy := newRetryPolicy(slog.Default(), 5, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := policy.run(ctx, "test", func() ([][]float32, error) {
		cancel()
		return nil, errors.New("fails")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenAIEmbedderOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		// Vectors returned out of order must land at their declared index.
		_, _ = w.Write([]byte(`{"data":[
			{"index":1,"embedding":[2,2]},
			{"index":0,"embedding":[1,1]}
		]}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(slog.Default(), srv.URL, "sk-test", "text-embedding-3-small", 1, time.Millisecond)
	vectors, err := e.Embed(context.Background(), []string{"a", "b"})

	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 1}, vectors[0])
	assert.Equal(t, []float32{2, 2}, vectors[1])
}

func TestOpenAIEmbedderDegradesOnPersistentFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(slog.Default(), srv.URL, "sk-test", "text-embedding-3-small", 2, time.Millisecond)
	vectors, err := e.Embed(context.Background(), []string{"a"})

	assert.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Equal(t, int32(3), hits.Load())
}

func TestOpenAIEmbedderEmptyInput(t *testing.T) {
	e := NewOpenAIEmbedder(slog.Default(), "http://unused", "sk", "m", 1, time.Millisecond)
	vectors, err := e.Embed(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, vectors)
}
