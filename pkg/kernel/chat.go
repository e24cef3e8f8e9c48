package kernel

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/policyradar/policyradar/internal/core/domain"
	"github.com/policyradar/policyradar/internal/core/ports"
)

// handleChat runs one blocking turn and returns the full result.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	result, err := s.orchestrator.Run(r.Context(), req, nil)
	if err != nil {
		s.writeChatError(w, err)
		return
	}

	s.persistTurn(r, req, result)
	writeJSON(w, http.StatusOK, map[string]any{
		"request_id": req.RequestID,
		"result":     result,
	})
}

// handleChatStream runs one turn and streams step, assistant_delta, and
// done/error events over SSE. Cancellation ends the stream silently.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	emit := func(evt domain.StreamEvent) {
		payload, err := json.Marshal(evt)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Kind, payload)
		flusher.Flush()
	}

	result, err := s.orchestrator.Run(r.Context(), req, emit)
	if err != nil {
		// Cancellation terminates the stream without a terminal event; other
		// failures were already emitted as an error event by the orchestrator.
		if !errors.Is(err, domain.ErrCancelled) {
			s.logger.Error("streamed turn failed", "request_id", req.RequestID, "error", err)
		}
		return
	}
	s.persistTurn(r, req, result)
}

// handleCancel flags an in-flight request for cooperative cancellation. A
// cancel for an unknown id is accepted and honored if the id registers later.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("request_id")
	if requestID == "" {
		writeError(w, http.StatusBadRequest, "missing request id")
		return
	}
	s.cancels.Cancel(requestID)
	writeJSON(w, http.StatusAccepted, map[string]any{"cancelled": true, "request_id": requestID})
}

func (s *Server) decodeChatRequest(w http.ResponseWriter, r *http.Request) (domain.ChatRequest, bool) {
	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return req, false
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	return req, true
}

func (s *Server) writeChatError(w http.ResponseWriter, err error) {
	var rateLimit *domain.RateLimitError
	var validation *domain.ValidationError
	var apiErr *domain.APIError
	switch {
	case errors.Is(err, domain.ErrCancelled):
		writeJSON(w, http.StatusOK, map[string]any{"cancelled": true})
	case errors.As(err, &rateLimit):
		if rateLimit.RetryAfter > 0 {
			w.Header().Set("Retry-After", fmt.Sprint(int(rateLimit.RetryAfter.Seconds())))
		}
		writeError(w, http.StatusTooManyRequests, rateLimit.Message)
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Message)
	case errors.As(err, &apiErr):
		writeError(w, http.StatusBadGateway, apiErr.Message)
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// persistTurn stores the user and assistant messages and rolls the session's
// resume handle forward. Persistence failures are logged, never surfaced.
func (s *Server) persistTurn(r *http.Request, req domain.ChatRequest, result *domain.ChatResult) {
	ctx := r.Context()

	sess, err := s.sessions.Get(ctx, req.SessionID)
	if err != nil {
		title := req.Message
		if len(title) > 80 {
			title = title[:80] + "..."
		}
		sess = ports.Session{
			ID:        req.SessionID,
			Title:     title,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.sessions.Create(ctx, sess); err != nil {
			s.logger.Warn("failed to create session", "session_id", req.SessionID, "error", err)
			return
		}
	}

	if _, err := s.messages.Append(ctx, ports.Message{
		SessionID: req.SessionID,
		Role:      "user",
		Content:   req.Message,
	}); err != nil {
		s.logger.Warn("failed to persist user message", "session_id", req.SessionID, "error", err)
	}
	if _, err := s.messages.Append(ctx, ports.Message{
		SessionID: req.SessionID,
		Role:      "assistant",
		Content:   result.AnswerText,
		Sources:   result.Sources,
	}); err != nil {
		s.logger.Warn("failed to persist assistant message", "session_id", req.SessionID, "error", err)
	}

	sess.LastHandle = result.Handle
	sess.LastMessage = req.Message
	if err := s.sessions.Update(ctx, sess); err != nil {
		s.logger.Warn("failed to update session", "session_id", req.SessionID, "error", err)
	}
}
