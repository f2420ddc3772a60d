package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"juris-ai/internal/contextutil"
	"juris-ai/internal/llm"
	"juris-ai/internal/rag"
)

// Engine is the part of the answering pipeline the chat handler needs.
type Engine interface {
	Ask(ctx context.Context, req rag.AskRequest) (rag.AskResponse, error)
	Stream(ctx context.Context, req rag.AskRequest) <-chan rag.Event
}

// ChatHandler handles HTTP requests for grounded chat.
type ChatHandler struct {
	engine     Engine
	adminToken string
}

// NewChatHandler creates a new ChatHandler. adminToken may be empty,
// which disables debug output entirely.
func NewChatHandler(engine Engine, adminToken string) *ChatHandler {
	return &ChatHandler{
		engine:     engine,
		adminToken: adminToken,
	}
}

// ChatMessage is one prior turn of the conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents the HTTP request payload for chat.
type ChatRequest struct {
	Question   string        `json:"question"`
	SessionID  string        `json:"session_id,omitempty"`
	DocumentID string        `json:"document_id,omitempty"`
	History    []ChatMessage `json:"history,omitempty"`
	Debug      bool          `json:"debug,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StreamEvent is the SSE wire form of one rag.Event.
type StreamEvent struct {
	Type       string            `json:"type"`
	Text       string            `json:"text,omitempty"`
	Sources    []rag.SourceGroup `json:"sources,omitempty"`
	AllSources []rag.Source      `json:"all_sources,omitempty"`
	Result     *rag.AskResponse  `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// ServeHTTP handles HTTP requests for chat.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		logger.WarnContext(ctx, "empty question in request")
		writeError(w, http.StatusBadRequest, "Question is required")
		return
	}

	ragReq := h.toRAGRequest(r, req)

	if r.URL.Query().Get("stream") == "true" {
		h.handleStream(w, r, ragReq)
		return
	}

	resp, err := h.engine.Ask(ctx, ragReq)
	if err != nil {
		h.handleEngineError(w, ctx, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// toRAGRequest converts the HTTP payload, honoring debug only for
// callers presenting the admin token.
func (h *ChatHandler) toRAGRequest(r *http.Request, req ChatRequest) rag.AskRequest {
	history := make([]llm.Message, 0, len(req.History))
	for _, m := range req.History {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != "user" && role != "assistant" {
			continue
		}
		history = append(history, llm.Message{Role: role, Content: m.Content})
	}

	return rag.AskRequest{
		Question:   req.Question,
		SessionID:  req.SessionID,
		DocumentID: req.DocumentID,
		History:    history,
		Debug:      req.Debug && h.isAdmin(r),
	}
}

func (h *ChatHandler) isAdmin(r *http.Request) bool {
	if h.adminToken == "" {
		return false
	}
	token := r.Header.Get("X-Admin-Token")
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) == 1
}

// handleStream drains the engine's event channel into Server-Sent
// Events, one JSON object per event, terminated by [DONE].
func (h *ChatHandler) handleStream(w http.ResponseWriter, r *http.Request, req rag.AskRequest) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.ErrorContext(ctx, "streaming not supported by response writer")
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for event := range h.engine.Stream(ctx, req) {
		wire := StreamEvent{
			Type:       string(event.Type),
			Text:       event.Text,
			Sources:    event.Sources,
			AllSources: event.AllSources,
			Result:     event.Result,
		}
		if event.Err != nil {
			wire.Error = event.Err.Error()
		}

		payload, err := json.Marshal(wire)
		if err != nil {
			logger.ErrorContext(ctx, "failed to marshal stream event", "error", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			logger.WarnContext(ctx, "client disconnected during stream", "error", err)
			return
		}
		flusher.Flush()
	}

	_, _ = fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// handleEngineError maps pipeline errors to HTTP status codes.
func (h *ChatHandler) handleEngineError(w http.ResponseWriter, ctx context.Context, err error) {
	logger := contextutil.LoggerFromContext(ctx)
	logger.ErrorContext(ctx, "engine error", "error", err)

	if errors.Is(err, rag.ErrProviderUnavailable) {
		writeError(w, http.StatusBadGateway, "Answer provider unavailable")
		return
	}

	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "qdrant") || strings.Contains(errMsg, "vector") {
		writeError(w, http.StatusServiceUnavailable, "Vector store unavailable")
		return
	}

	writeError(w, http.StatusInternalServerError, "Failed to process question")
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}
