package duckdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policyradar/policyradar/internal/core/domain"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testChunk(id, sessionID, docKey string, index int, text string, embedding []float32) domain.MemoryChunk {
	return domain.MemoryChunk{
		ID:         id,
		SessionID:  sessionID,
		DocKey:     docKey,
		ChunkIndex: index,
		Text:       text,
		DocHash:    "hash-" + docKey,
		Embedding:  embedding,
	}
}

func TestValidNamespace(t *testing.T) {
	require.NoError(t, validNamespace("mem_openai_text_embedding_3_small"))
	require.NoError(t, validNamespace("mem_local_model"))

	for _, bad := range []string{
		"",
		"Mem_Upper",
		"mem-dash",
		"mem.dot",
		`mem"; DROP TABLE sessions; --`,
		"mem space",
	} {
		assert.Error(t, validNamespace(bad), bad)
	}
}

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[]", vectorLiteral(nil))
	assert.Equal(t, "[1,0.5,-2]", vectorLiteral([]float32{1, 0.5, -2}))
	assert.Equal(t, "[0.25]", vectorLiteral([]float32{0.25}))
}

func TestStoreReplaceChunksDimensionMismatch(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureNamespace(ctx, "mem_test_model", 3))

	chunks := []domain.MemoryChunk{
		testChunk("c1", "s1", "doc-1", 0, "first chunk", []float32{1, 0}),
	}
	err := s.ReplaceChunks(ctx, "mem_test_model", chunks)
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)

	// No rows must land on a mismatch.
	matches, err := s.Query(ctx, "mem_test_model", "s1", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)

	// Rebuilding for the new dimension makes the same insert succeed.
	require.NoError(t, s.RecreateNamespace(ctx, "mem_test_model", 2))
	require.NoError(t, s.ReplaceChunks(ctx, "mem_test_model", chunks))

	matches, err = s.Query(ctx, "mem_test_model", "s1", []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "first chunk", matches[0].Text)
	assert.Equal(t, "doc-1", matches[0].DocKey)
}

func TestStoreReplaceChunksSwapsDocumentVersion(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureNamespace(ctx, "mem_test_model", 2))

	require.NoError(t, s.ReplaceChunks(ctx, "mem_test_model", []domain.MemoryChunk{
		testChunk("c1", "s1", "doc-1", 0, "old text", []float32{1, 0}),
		testChunk("c2", "s1", "doc-1", 1, "old tail", []float32{0, 1}),
	}))
	require.NoError(t, s.ReplaceChunks(ctx, "mem_test_model", []domain.MemoryChunk{
		testChunk("c3", "s1", "doc-1", 0, "new text", []float32{1, 0}),
	}))

	matches, err := s.Query(ctx, "mem_test_model", "s1", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "new text", matches[0].Text)
}

func TestStoreHasChunkSet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureNamespace(ctx, "mem_test_model", 2))

	known, err := s.HasChunkSet(ctx, "mem_test_model", "s1", "doc-1", "hash-doc-1")
	require.NoError(t, err)
	assert.False(t, known)

	require.NoError(t, s.ReplaceChunks(ctx, "mem_test_model", []domain.MemoryChunk{
		testChunk("c1", "s1", "doc-1", 0, "text", []float32{1, 0}),
	}))

	known, err = s.HasChunkSet(ctx, "mem_test_model", "s1", "doc-1", "hash-doc-1")
	require.NoError(t, err)
	assert.True(t, known)

	// A different hash means a new document version.
	known, err = s.HasChunkSet(ctx, "mem_test_model", "s1", "doc-1", "other-hash")
	require.NoError(t, err)
	assert.False(t, known)
}

func TestStoreDeleteSessionSpansNamespaces(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureNamespace(ctx, "mem_model_a", 2))
	require.NoError(t, s.EnsureNamespace(ctx, "mem_model_b", 2))

	require.NoError(t, s.ReplaceChunks(ctx, "mem_model_a", []domain.MemoryChunk{
		testChunk("a1", "s1", "doc-1", 0, "a text", []float32{1, 0}),
	}))
	require.NoError(t, s.ReplaceChunks(ctx, "mem_model_b", []domain.MemoryChunk{
		testChunk("b1", "s1", "doc-2", 0, "b text", []float32{0, 1}),
	}))
	require.NoError(t, s.ReplaceChunks(ctx, "mem_model_a", []domain.MemoryChunk{
		testChunk("a2", "s2", "doc-3", 0, "kept", []float32{1, 1}),
	}))

	require.NoError(t, s.DeleteSession(ctx, "s1"))

	matches, err := s.Query(ctx, "mem_model_a", "s1", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = s.Query(ctx, "mem_model_b", "s1", []float32{0, 1}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)

	// Other sessions survive the purge.
	matches, err = s.Query(ctx, "mem_model_a", "s2", []float32{1, 1}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "kept", matches[0].Text)
}
