package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chunk_store.go -package=mocks juris-ai/internal/storage ChunkStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"juris-ai/internal/albanian"
)

// ChunkStore defines persistence operations for document chunks.
type ChunkStore interface {
	Insert(ctx context.Context, chunk ChunkRecord) error
	GetByID(ctx context.Context, id string) (*ChunkRecord, error)
	GetByPositionRange(ctx context.Context, documentID string, from, to int) ([]ChunkRecord, error)
	KeywordSearch(ctx context.Context, query, documentID string, limit int) ([]KeywordHit, error)
	ListIDsByDocument(ctx context.Context, documentID string) ([]string, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

// ChunkRepo implements ChunkStore backed by SQLite with an FTS5
// keyword index over diacritic-folded chunk text.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// Insert stores a chunk. The folded copy of the content feeds the
// FTS index via trigger.
func (r *ChunkRepo) Insert(ctx context.Context, chunk ChunkRecord) error {
	if chunk.CharCount == 0 {
		chunk.CharCount = len(chunk.Content)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chunks (id, document_id, position, article, pages, content, content_folded, char_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		chunk.ID, chunk.DocumentID, chunk.Position, chunk.Article, chunk.Pages,
		chunk.Content, albanian.NormalizeQuery(chunk.Content), chunk.CharCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	return nil
}

const chunkColumns = `id, document_id, position, article, pages, content, char_count`

// GetByID returns the chunk with the given id, or ErrNotFound.
func (r *ChunkRepo) GetByID(ctx context.Context, id string) (*ChunkRecord, error) {
	var c ChunkRecord
	err := r.db.QueryRowContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE id = ?`, id,
	).Scan(&c.ID, &c.DocumentID, &c.Position, &c.Article, &c.Pages, &c.Content, &c.CharCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}
	return &c, nil
}

// GetByPositionRange returns the document's chunks with position in
// [from, to], ordered by position. Used by the context stitcher to
// pull neighbor chunks.
func (r *ChunkRepo) GetByPositionRange(ctx context.Context, documentID string, from, to int) ([]ChunkRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks
		 WHERE document_id = ? AND position BETWEEN ? AND ?
		 ORDER BY position`,
		documentID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk range: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var chunks []ChunkRecord
	for rows.Next() {
		var c ChunkRecord
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Position, &c.Article, &c.Pages, &c.Content, &c.CharCount); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// KeywordSearch runs an FTS5 match over folded chunk text, best
// matches first, optionally restricted to one document. A query with
// no usable keywords returns no hits.
func (r *ChunkRepo) KeywordSearch(ctx context.Context, query, documentID string, limit int) ([]KeywordHit, error) {
	match := BuildFTSQuery(query)
	if match == "" {
		return nil, nil
	}

	sqlQuery := `SELECT c.id, c.document_id, c.position, c.article, c.pages, c.content, c.char_count,
	                    d.title, d.law_number, d.law_date
	             FROM chunks_fts f
	             JOIN chunks c ON c.rowid = f.rowid
	             JOIN documents d ON d.id = c.document_id
	             WHERE f.chunks_fts MATCH ?`
	args := []any{match}
	if documentID != "" {
		sqlQuery += ` AND c.document_id = ?`
		args = append(args, documentID)
	}
	sqlQuery += ` ORDER BY f.rank LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var hits []KeywordHit
	for rows.Next() {
		var h KeywordHit
		if err := rows.Scan(&h.ID, &h.DocumentID, &h.Position, &h.Article, &h.Pages, &h.Content, &h.CharCount,
			&h.Title, &h.LawNumber, &h.LawDate); err != nil {
			return nil, fmt.Errorf("failed to scan keyword hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// ListIDsByDocument returns the ids of a document's chunks in
// position order, for mirroring deletes into the vector index.
func (r *ChunkRepo) ListIDsByDocument(ctx context.Context, documentID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM chunks WHERE document_id = ? ORDER BY position`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunk ids: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Contents returns every chunk's text. Used for index statistics,
// not part of ChunkStore.
func (r *ChunkRepo) Contents(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT content FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk contents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var contents []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("failed to scan chunk content: %w", err)
		}
		contents = append(contents, content)
	}
	return contents, rows.Err()
}

// DeleteByDocument removes all chunks belonging to a document.
func (r *ChunkRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// BuildFTSQuery turns a user query into an FTS5 match expression.
// Keywords are folded, stopwords dropped, known legal-term families
// expanded to all inflections, and longer words prefix-matched. Terms
// are OR-joined so any keyword hit surfaces a chunk; ranking decides
// order.
func BuildFTSQuery(query string) string {
	var terms []string
	seen := make(map[string]struct{})

	for _, kw := range albanian.Keywords(albanian.NormalizeQuery(query)) {
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}

		if family := stemFamily(kw); family != nil {
			quoted := make([]string, len(family))
			for i, f := range family {
				quoted[i] = `"` + f + `"`
			}
			terms = append(terms, "("+strings.Join(quoted, " OR ")+")")
		} else if len(kw) >= 4 {
			terms = append(terms, `"`+kw+`"*`)
		} else {
			terms = append(terms, `"`+kw+`"`)
		}
	}

	return strings.Join(terms, " OR ")
}

// Inflection families for high-frequency Albanian legal stems. FTS5
// has no Albanian stemmer, so family expansion stands in for one.
var stemFamilies = [][]string{
	{"arsim", "arsimi", "arsimin", "arsimit", "arsimim", "arsimimi", "arsimor", "arsimore"},
	{"pun", "pune", "punen", "punes", "punesim", "punesimi", "punesimin", "punetor", "punetore", "punedhenes"},
	{"shtet", "shteti", "shtetin", "shtetit", "shteterore", "shtetas", "shtetasi"},
	{"gjykat", "gjykata", "gjykate", "gjykaten", "gjykates", "gjyqesor", "gjyqesore", "gjyqtar", "gjyqtare"},
	{"kushtetut", "kushtetuta", "kushtetuten", "kushtetutes", "kushtetuese"},
	{"ligj", "ligji", "ligjin", "ligjit", "ligjor", "ligjore", "ligjet", "ligjeve"},
	{"drejt", "drejte", "drejta", "drejten", "drejtes", "drejtesi", "drejtesise"},
	{"pronesi", "pronesise", "pronesine", "prone", "pronen", "pronar", "pronare"},
	{"tatim", "tatimi", "tatimin", "tatimit", "tatimor", "tatimore", "tatimet"},
	{"familj", "familja", "familje", "familjen", "familjes", "familjar", "familjare"},
	{"shendet", "shendeti", "shendetin", "shendetit", "shendetesor", "shendetesore"},
	{"siguri", "sigurine", "sigurise", "siguria", "sigurim", "sigurimi", "sigurimet"},
	{"zgjedh", "zgjedhje", "zgjedhjen", "zgjedhjes", "zgjedhjeve", "zgjedhur"},
	{"liri", "lirine", "lirise", "liria", "lirite"},
	{"detyr", "detyra", "detyren", "detyres", "detyrim", "detyrimi", "detyrimeve"},
	{"pushim", "pushimi", "pushimin", "pushimit", "pushimet", "pushimeve"},
}

var wordToFamily = func() map[string]int {
	m := make(map[string]int)
	for i, family := range stemFamilies {
		for _, w := range family {
			m[w] = i
		}
	}
	return m
}()

func stemFamily(word string) []string {
	if i, ok := wordToFamily[word]; ok {
		return stemFamilies[i]
	}
	return nil
}
