package domain

import (
	"regexp"
	"strings"
)

// EmbeddingConfig selects the embedding provider and model for retrieval
// memory. The pair (Provider, Model) determines the vector-index namespace;
// vectors produced under different configs never share a namespace.
type EmbeddingConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
}

var namespaceCleaner = regexp.MustCompile(`[^a-z0-9]+`)

// Namespace returns the isolated index partition name for this config.
func (c EmbeddingConfig) Namespace() string {
	raw := strings.ToLower(c.Provider + "_" + c.Model)
	return "mem_" + strings.Trim(namespaceCleaner.ReplaceAllString(raw, "_"), "_")
}

// MemoryChunk is one embedded slice of an ingested document.
type MemoryChunk struct {
	ID         string
	SessionID  string
	DocKey     string
	ChunkIndex int
	Text       string
	DocHash    string
	Embedding  []float32
	Metadata   map[string]string
}

// MemoryMatch is one similarity-search hit. Score is normalized to 1 - cosine
// distance, so higher is closer.
type MemoryMatch struct {
	Text     string            `json:"text"`
	Score    float64           `json:"score"`
	DocKey   string            `json:"doc_key"`
	Index    int               `json:"chunk_index"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
