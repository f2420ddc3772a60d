package storage

import "time"

// DocumentRecord is an ingested legal document's metadata.
type DocumentRecord struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	LawNumber string    `json:"law_number"`
	LawDate   string    `json:"law_date"`
	CreatedAt time.Time `json:"created_at"`
}

// ChunkRecord is one retrievable slice of a document's text. Chunks
// are immutable once written and deleted with their parent document.
type ChunkRecord struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Position   int    `json:"position"`
	Article    string `json:"article"`
	Pages      string `json:"pages"`
	Content    string `json:"content"`
	CharCount  int    `json:"char_count"`
}

// KeywordHit is a keyword-search result: a chunk joined with its
// parent document's citation metadata.
type KeywordHit struct {
	ChunkRecord
	Title     string `json:"title"`
	LawNumber string `json:"law_number"`
	LawDate   string `json:"law_date"`
}
