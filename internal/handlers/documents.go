package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"juris-ai/internal/contextutil"
	"juris-ai/internal/indexer"
	"juris-ai/internal/storage"
)

// maxDocumentBytes bounds the ingest payload. Legal codes run to a few
// hundred KB of text; anything past this is a client mistake.
const maxDocumentBytes = 8 << 20

// DocumentsHandler handles document ingestion and lifecycle.
type DocumentsHandler struct {
	pipeline       *indexer.Pipeline
	documents      storage.DocumentStore
	embeddingModel string
}

// NewDocumentsHandler creates a new DocumentsHandler.
func NewDocumentsHandler(pipeline *indexer.Pipeline, documents storage.DocumentStore, embeddingModel string) *DocumentsHandler {
	return &DocumentsHandler{
		pipeline:       pipeline,
		documents:      documents,
		embeddingModel: embeddingModel,
	}
}

// IngestRequest represents the HTTP request payload for ingestion.
// Content is pre-extracted text; format is "text" (default) or
// "markdown".
type IngestRequest struct {
	ID        string `json:"id,omitempty"`
	Title     string `json:"title"`
	LawNumber string `json:"law_number,omitempty"`
	LawDate   string `json:"law_date,omitempty"`
	Format    string `json:"format,omitempty"`
	Content   string `json:"content"`
}

// IngestResponse represents the HTTP response payload for ingestion.
type IngestResponse struct {
	Document storage.DocumentRecord `json:"document"`
	Chunks   int                    `json:"chunks"`
}

// ListResponse represents the document list payload.
type ListResponse struct {
	Documents []storage.DocumentRecord `json:"documents"`
	Count     int                      `json:"count"`
}

// Ingest handles POST /api/documents.
func (h *DocumentsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes)

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid ingest body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "Title is required")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "Content is required")
		return
	}
	switch req.Format {
	case "", indexer.FormatText, indexer.FormatMarkdown:
	default:
		writeError(w, http.StatusBadRequest, "Format must be \"text\" or \"markdown\"")
		return
	}

	record, chunks, err := h.pipeline.IndexDocument(ctx, indexer.Document{
		ID:        req.ID,
		Title:     req.Title,
		LawNumber: req.LawNumber,
		LawDate:   req.LawDate,
		Format:    req.Format,
		Content:   req.Content,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to index document", "title", req.Title, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to index document")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(IngestResponse{Document: *record, Chunks: chunks}); err != nil {
		logger.ErrorContext(ctx, "failed to encode ingest response", "error", err)
	}
}

// List handles GET /api/documents.
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	docs, err := h.documents.ListAll(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list documents", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ListResponse{Documents: docs, Count: len(docs)}); err != nil {
		logger.ErrorContext(ctx, "failed to encode list response", "error", err)
	}
}

// Delete handles DELETE /api/documents/{id}.
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	documentID := chi.URLParam(r, "id")
	if documentID == "" {
		writeError(w, http.StatusBadRequest, "Document ID is required")
		return
	}

	if err := h.pipeline.DeleteDocument(ctx, documentID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Document not found")
			return
		}
		logger.ErrorContext(ctx, "failed to delete document", "document_id", documentID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete document")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /api/documents/stats.
func (h *DocumentsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	stats, err := h.pipeline.CoverageStats(ctx, h.embeddingModel)
	if err != nil {
		logger.ErrorContext(ctx, "failed to compute index stats", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to compute index stats")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		logger.ErrorContext(ctx, "failed to encode stats response", "error", err)
	}
}
