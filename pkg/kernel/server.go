package kernel

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/policyradar/policyradar/internal/config"
	"github.com/policyradar/policyradar/internal/core/ports"
	"github.com/policyradar/policyradar/internal/core/services"
)

// Server is the HTTP surface of the kernel: chat (blocking and SSE),
// cancellation, session persistence, and a config probe.
type Server struct {
	logger       *slog.Logger
	settings     *config.Settings
	orchestrator *services.Orchestrator
	cancels      *services.CancellationRegistry
	memory       *services.Memory
	sessions     ports.SessionStore
	messages     ports.MessageStore
}

// NewServer wires the HTTP layer.
func NewServer(
	logger *slog.Logger,
	settings *config.Settings,
	orchestrator *services.Orchestrator,
	cancels *services.CancellationRegistry,
	memory *services.Memory,
	sessions ports.SessionStore,
	messages ports.MessageStore,
) *Server {
	return &Server{
		logger:       logger,
		settings:     settings,
		orchestrator: orchestrator,
		cancels:      cancels,
		memory:       memory,
		sessions:     sessions,
		messages:     messages,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/chat", s.handleChat)
	mux.HandleFunc("POST /v1/chat/stream", s.handleChatStream)
	mux.HandleFunc("POST /v1/chat/{request_id}/cancel", s.handleCancel)

	mux.HandleFunc("GET /v1/sessions", s.handleListSessions)
	mux.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /v1/sessions/{id}/messages", s.handleListMessages)

	mux.HandleFunc("GET /v1/config", s.handleConfig)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return mux
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"default_provider":   s.settings.DefaultAPIMode,
		"providers": map[string]bool{
			"openai": s.settings.OpenAIAPIKey != "",
			"gemini": s.settings.GoogleAPIKey != "",
		},
		"sources":            s.settings.ConfiguredSources(),
		"embedding_provider": s.settings.EmbeddingProvider,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
