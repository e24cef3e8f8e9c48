package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/policyradar/policyradar/internal/core/domain"
	"github.com/policyradar/policyradar/internal/core/ports"
)

// EmbedderFactory builds an embedder for a config. Called once per distinct
// namespace; results are cached.
type EmbedderFactory func(cfg domain.EmbeddingConfig) (ports.Embedder, error)

// MemoryOptions tune chunking and retrieval.
type MemoryOptions struct {
	ChunkSize    int
	ChunkOverlap int
	MaxChunks    int
	TopK         int
}

// DefaultMemoryOptions mirrors the production chunking parameters.
func DefaultMemoryOptions() MemoryOptions {
	return MemoryOptions{ChunkSize: 1200, ChunkOverlap: 200, MaxChunks: 500, TopK: 5}
}

// Memory is the retrieval subsystem: it chunks and embeds ingested documents
// into a session-scoped vector index and answers similarity queries. Vectors
// from different (provider, model) configs never share a namespace.
type Memory struct {
	logger  *slog.Logger
	store   ports.VectorStore
	factory EmbedderFactory
	opts    MemoryOptions
	cfg     domain.EmbeddingConfig

	mu        sync.Mutex
	embedders map[string]ports.Embedder
}

// NewMemory wires the memory service with its default embedding config.
func NewMemory(logger *slog.Logger, store ports.VectorStore, factory EmbedderFactory, cfg domain.EmbeddingConfig, opts MemoryOptions) *Memory {
	if opts.ChunkSize <= 0 {
		opts = DefaultMemoryOptions()
	}
	if opts.ChunkOverlap > opts.ChunkSize/2 {
		opts.ChunkOverlap = opts.ChunkSize / 2
	}
	return &Memory{
		logger:    logger,
		store:     store,
		factory:   factory,
		opts:      opts,
		cfg:       cfg,
		embedders: make(map[string]ports.Embedder),
	}
}

// Ingest indexes a document for a session. Re-ingesting unchanged content is
// a no-op; changed content replaces the prior chunk set for the same doc key.
// Embedding failure degrades to not indexing, never to an error.
func (m *Memory) Ingest(ctx context.Context, sessionID, docKey, text string, metadata map[string]string) error {
	normalized := normalizeWhitespace(text)
	if normalized == "" {
		return nil
	}
	hash := contentHash(normalized)
	namespace := m.cfg.Namespace()

	exists, err := m.store.HasChunkSet(ctx, namespace, sessionID, docKey, hash)
	if err != nil {
		return err
	}
	if exists {
		m.logger.Debug("document already indexed", "session_id", sessionID, "doc_key", docKey)
		return nil
	}

	texts := chunkText(normalized, m.opts.ChunkSize, m.opts.ChunkOverlap)
	if len(texts) > m.opts.MaxChunks {
		m.logger.Warn("chunk cap reached; dropping remainder",
			"doc_key", docKey, "chunks", len(texts), "max", m.opts.MaxChunks)
		texts = texts[:m.opts.MaxChunks]
	}

	embedder, err := m.embedder()
	if err != nil {
		return err
	}
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) == 0 {
		m.logger.Warn("embedding unavailable; document not indexed", "doc_key", docKey)
		return nil
	}
	if len(vectors) != len(texts) {
		m.logger.Warn("embedding count mismatch; document not indexed",
			"doc_key", docKey, "chunks", len(texts), "vectors", len(vectors))
		return nil
	}

	dim := len(vectors[0])
	if err := m.store.EnsureNamespace(ctx, namespace, dim); err != nil {
		return err
	}

	chunks := make([]domain.MemoryChunk, len(texts))
	for i, t := range texts {
		chunks[i] = domain.MemoryChunk{
			ID:         uuid.NewString(),
			SessionID:  sessionID,
			DocKey:     docKey,
			ChunkIndex: i,
			Text:       t,
			DocHash:    hash,
			Embedding:  vectors[i],
			Metadata:   metadata,
		}
	}

	err = m.store.ReplaceChunks(ctx, namespace, chunks)
	if errors.Is(err, domain.ErrDimensionMismatch) {
		// Config changed under the same namespace name. Rebuild that one
		// namespace for the new dimension and retry once.
		m.logger.Warn("dimension mismatch; recreating namespace", "namespace", namespace, "dim", dim)
		if err := m.store.RecreateNamespace(ctx, namespace, dim); err != nil {
			return err
		}
		err = m.store.ReplaceChunks(ctx, namespace, chunks)
	}
	if err != nil {
		return err
	}

	m.logger.Info("document indexed",
		"session_id", sessionID, "doc_key", docKey, "chunks", len(chunks), "namespace", namespace)
	return nil
}

// Search returns the session's closest chunks for a query, ranked by
// similarity. Embedding failure yields an empty result, not an error.
func (m *Memory) Search(ctx context.Context, sessionID, query string, topK int) ([]domain.MemoryMatch, error) {
	if topK <= 0 {
		topK = m.opts.TopK
	}
	embedder, err := m.embedder()
	if err != nil {
		return nil, err
	}
	vectors, err := embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		m.logger.Warn("embedding unavailable; memory search returns nothing", "session_id", sessionID)
		return nil, nil
	}
	return m.store.Query(ctx, m.cfg.Namespace(), sessionID, vectors[0], topK)
}

// DeleteSession purges every chunk the session ever indexed, across all
// namespaces. Safe for sessions that never indexed anything.
func (m *Memory) DeleteSession(ctx context.Context, sessionID string) error {
	return m.store.DeleteSession(ctx, sessionID)
}

// embedder returns the cached embedder for the current config, building it
// on first use. The lock covers the map only, never the network.
func (m *Memory) embedder() (ports.Embedder, error) {
	key := m.cfg.Namespace()
	m.mu.Lock()
	if e, ok := m.embedders[key]; ok {
		m.mu.Unlock()
		return e, nil
	}
	m.mu.Unlock()

	e, err := m.factory(m.cfg)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.embedders[key]; ok {
		return cached, nil
	}
	m.embedders[key] = e
	return e, nil
}

// normalizeWhitespace collapses runs of whitespace to single spaces.
func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// chunkText splits text into fixed-size overlapping windows. The stride is
// size minus overlap, so chunk i starts at i*(size-overlap).
func chunkText(text string, size, overlap int) []string {
	if size <= 0 {
		return []string{text}
	}
	if overlap >= size {
		overlap = size / 2
	}
	stride := size - overlap
	var out []string
	for start := 0; start < len(text); start += stride {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		out = append(out, text[start:end])
		if end == len(text) {
			break
		}
	}
	return out
}
