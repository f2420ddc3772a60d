package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"juris-ai/internal/contextutil"
	"juris-ai/internal/storage"
	"juris-ai/internal/vectorstore"
)

// Document formats accepted by the pipeline.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

// Embedder turns chunk texts into vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Document is one ingest request: pre-extracted content plus citation
// metadata. ID is optional; a document ingested under an existing ID
// is re-indexed in place.
type Document struct {
	ID        string
	Title     string
	LawNumber string
	LawDate   string
	Format    string
	Content   string
}

// Pipeline indexes legal documents into SQLite and Qdrant: chunk,
// embed in batches, store chunk rows, upsert vector points with the
// citation payload.
type Pipeline struct {
	documents  storage.DocumentStore
	chunks     storage.ChunkStore
	embedder   Embedder
	vectors    vectorstore.VectorStore
	collection string
	chunker    *LegalChunker
}

// NewPipeline creates a Pipeline.
func NewPipeline(
	documents storage.DocumentStore,
	chunks storage.ChunkStore,
	embedder Embedder,
	vectors vectorstore.VectorStore,
	collection string,
) (*Pipeline, error) {
	chunker, err := NewLegalChunker()
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		documents:  documents,
		chunks:     chunks,
		embedder:   embedder,
		vectors:    vectors,
		collection: collection,
		chunker:    chunker,
	}, nil
}

// IndexDocument chunks, embeds, and stores one document. Returns the
// stored record and the chunk count.
func (p *Pipeline) IndexDocument(ctx context.Context, doc Document) (*storage.DocumentRecord, int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(doc.Content) == "" {
		return nil, 0, errors.New("document content is empty")
	}
	if strings.TrimSpace(doc.Title) == "" {
		return nil, 0, errors.New("document title is required")
	}

	var chunks []Chunk
	var err error
	switch doc.Format {
	case FormatMarkdown:
		chunks, err = p.chunker.ChunkMarkdown([]byte(doc.Content))
		if err != nil {
			return nil, 0, fmt.Errorf("failed to chunk markdown: %w", err)
		}
	case FormatText, "":
		chunks = p.chunker.ChunkText(doc.Content)
	default:
		return nil, 0, fmt.Errorf("unsupported document format %q", doc.Format)
	}
	if len(chunks) == 0 {
		return nil, 0, errors.New("document produced no chunks")
	}

	documentID := doc.ID
	if documentID == "" {
		documentID = uuid.New().String()
	}

	// Re-index: drop the previous chunks before writing new ones.
	existing, err := p.documents.GetByID(ctx, documentID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, 0, fmt.Errorf("failed to check existing document: %w", err)
	}
	if existing != nil {
		if err := p.removeChunks(ctx, documentID); err != nil {
			return nil, 0, err
		}
		if err := p.documents.Delete(ctx, documentID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, 0, fmt.Errorf("failed to replace document: %w", err)
		}
	}

	record := storage.DocumentRecord{
		ID:        documentID,
		Title:     doc.Title,
		LawNumber: doc.LawNumber,
		LawDate:   doc.LawDate,
	}
	if err := p.documents.Insert(ctx, record); err != nil {
		return nil, 0, fmt.Errorf("failed to insert document: %w", err)
	}

	embeddings, err := p.embedChunks(ctx, chunks)
	if err != nil {
		return nil, 0, err
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, chunk := range chunks {
		chunkID := uuid.New().String()

		if err := p.chunks.Insert(ctx, storage.ChunkRecord{
			ID:         chunkID,
			DocumentID: documentID,
			Position:   chunk.Position,
			Article:    chunk.Article,
			Pages:      chunk.Pages,
			Content:    chunk.Text,
			CharCount:  utf8.RuneCountInString(chunk.Text),
		}); err != nil {
			return nil, 0, fmt.Errorf("failed to insert chunk %d: %w", chunk.Position, err)
		}

		points[i] = vectorstore.Point{
			ID:  chunkID,
			Vec: embeddings[i],
			Meta: map[string]any{
				"document_id": documentID,
				"position":    chunk.Position,
				"article":     chunk.Article,
				"pages":       chunk.Pages,
				"title":       doc.Title,
				"law_number":  doc.LawNumber,
				"law_date":    doc.LawDate,
				"text":        chunk.Text,
			},
		}
	}

	if err := p.vectors.Upsert(ctx, p.collection, points); err != nil {
		return nil, 0, fmt.Errorf("failed to upsert vectors: %w", err)
	}

	logger.InfoContext(ctx, "indexed document",
		"document_id", documentID, "title", doc.Title, "chunks", len(chunks))
	return &record, len(chunks), nil
}

// embedChunks embeds every chunk text. The embeddings client batches
// internally, one call covers the whole document.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []Chunk) ([][]float32, error) {
	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, chunk.Text)
	}
	embeddings, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(embeddings))
	}
	return embeddings, nil
}

// DeleteDocument removes a document, its chunks, and its vectors.
func (p *Pipeline) DeleteDocument(ctx context.Context, documentID string) error {
	logger := contextutil.LoggerFromContext(ctx)

	if _, err := p.documents.GetByID(ctx, documentID); err != nil {
		return err
	}
	if err := p.removeChunks(ctx, documentID); err != nil {
		return err
	}
	if err := p.documents.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	logger.InfoContext(ctx, "deleted document", "document_id", documentID)
	return nil
}

func (p *Pipeline) removeChunks(ctx context.Context, documentID string) error {
	logger := contextutil.LoggerFromContext(ctx)

	chunkIDs, err := p.chunks.ListIDsByDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to list chunk IDs: %w", err)
	}
	if len(chunkIDs) > 0 {
		// Stale points are overwritten on the next upsert anyway.
		if err := p.vectors.Delete(ctx, p.collection, chunkIDs); err != nil {
			logger.WarnContext(ctx, "failed to delete vectors", "count", len(chunkIDs), "error", err)
		}
	}
	if err := p.chunks.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}
