package ports

import (
	"context"
	"time"

	"github.com/policyradar/policyradar/internal/core/domain"
)

// ToolOutput is one executed tool call's sanitized payload, handed back to a
// conversation backend as the next model input.
type ToolOutput struct {
	CallID string
	Name   string
	Result map[string]any
	Images []domain.ToolImage
}

// ConversationBackend is the orchestration contract every model vendor
// adapter implements. The orchestrator's state machine is written once
// against this interface; one implementation exists per backend (native
// multi-turn function calling, OpenAI-compatible chat completions, Gemini).
//
// Start issues the first request; Respond feeds tool outputs back for the
// next turn. After either, Calls returns the tool calls the model requested
// (empty means the turn produced a final answer) and Text the answer text.
// Handle is the opaque conversation handle used to resume follow-up turns.
type ConversationBackend interface {
	Start(ctx context.Context, instructions, userMessage string, tools []domain.ToolSpec) error
	Respond(ctx context.Context, outputs []ToolOutput) error
	Calls() []domain.ToolCall
	Text() string
	Handle() string
	Model() string

	// Complete performs one plain, non-streamed text generation outside the
	// tool-calling conversation (used by the source router).
	Complete(ctx context.Context, prompt string) (string, error)
}

// Embedder turns texts into vectors. Implementations retry transient
// failures with backoff and return an empty result, not an error, once
// retries are exhausted.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is the namespaced vector index behind retrieval memory. A
// namespace holds vectors of exactly one dimension; ReplaceChunks reports
// domain-level dimension conflicts via ErrDimensionMismatch so the memory
// layer can recreate the namespace and retry.
type VectorStore interface {
	EnsureNamespace(ctx context.Context, namespace string, dim int) error
	RecreateNamespace(ctx context.Context, namespace string, dim int) error
	HasChunkSet(ctx context.Context, namespace, sessionID, docKey, docHash string) (bool, error)
	ReplaceChunks(ctx context.Context, namespace string, chunks []domain.MemoryChunk) error
	Query(ctx context.Context, namespace, sessionID string, embedding []float32, topK int) ([]domain.MemoryMatch, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// ContentFetcher pulls readable text out of a URL. Implementations enforce
// their own network-safety policy (domain allowlist, private-address
// blocking) before any content is returned; the core does not re-validate.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string, maxLength int) (FetchResult, error)
}

// FetchResult is the fetcher's normalized payload. Error carries a
// user-visible failure string when the fetch was refused or failed.
type FetchResult struct {
	Text   string
	Title  string
	Images []domain.ToolImage
	Error  string
}

// Session is one persisted chat session.
type Session struct {
	ID          string
	Title       string
	CreatedAt   time.Time
	LastHandle  string
	LastMessage string
	UpdatedAt   time.Time
}

// Message is one persisted chat message.
type Message struct {
	ID        int64
	SessionID string
	Role      string
	Content   string
	Sources   []domain.SourceRecord
	CreatedAt time.Time
}

// SessionStore persists chat sessions, keyed by an opaque caller-supplied id.
type SessionStore interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	List(ctx context.Context) ([]Session, error)
	Update(ctx context.Context, s Session) error
	Delete(ctx context.Context, id string) error
}

// MessageStore persists the messages of a session.
type MessageStore interface {
	Append(ctx context.Context, m Message) (int64, error)
	List(ctx context.Context, sessionID string) ([]Message, error)
	UpdateContent(ctx context.Context, sessionID string, messageID int64, content string) error
}
