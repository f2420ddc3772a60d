package rag

import (
	"strconv"

	"juris-ai/internal/llm"
)

// Chunk is one retrievable slice of a legal document together with
// its citation metadata.
type Chunk struct {
	ID         string
	DocumentID string
	Position   int
	Article    string
	Pages      string
	Title      string
	LawNumber  string
	LawDate    string
	Text       string
}

// Key identifies a chunk across retrieval paths. Vector and keyword
// results for the same chunk must collapse to one candidate.
func (c Chunk) Key() string {
	return c.DocumentID + "_" + strconv.Itoa(c.Position)
}

// Candidate is a chunk as returned by one variant's hybrid search,
// with its per-variant scoring state. Rank fields are 1-based; zero
// means the chunk was not found by that retrieval path.
type Candidate struct {
	Chunk       Chunk
	Similarity  float32
	VectorRank  int
	KeywordRank int
	RRFScore    float64
	Boost       float64
	Score       float64
	Sources     []string
}

// RankedChunk is a chunk merged across all query variants with its
// final composite score. Passage and MergedPositions are filled by
// the context stitcher.
type RankedChunk struct {
	Chunk           Chunk
	Similarity      float32
	QueryHits       int
	FoundBy         []int
	BaseScore       float64
	MultiQueryBoost float64
	Score           float64
	Sources         []string
	Passage         string
	MergedPositions []int
}

// Source is a per-chunk citation anchor.
type Source struct {
	Title      string  `json:"title"`
	DocumentID string  `json:"document_id"`
	Article    string  `json:"article"`
	Pages      string  `json:"pages"`
	LawNumber  string  `json:"law_number"`
	LawDate    string  `json:"law_date"`
	Position   int     `json:"chunk_index"`
	Similarity float64 `json:"similarity"`
}

// SourceGroup is a display citation: all of one document's cited
// chunks merged into a single entry.
type SourceGroup struct {
	Title      string   `json:"title"`
	DocumentID string   `json:"document_id"`
	LawNumber  string   `json:"law_number"`
	LawDate    string   `json:"law_date"`
	Articles   []string `json:"articles"`
	Pages      []string `json:"pages_list"`
	ChunkCount int      `json:"chunk_count"`
	Similarity float64  `json:"similarity"`
}

// AskRequest is one chat turn.
type AskRequest struct {
	Question   string
	SessionID  string
	DocumentID string
	History    []llm.Message
	Debug      bool
}

// Metrics carries per-phase timings and retrieval counters for one turn.
type Metrics struct {
	ExpandTimeMs     int64   `json:"expand_time_ms"`
	SearchTimeMs     int64   `json:"search_time_ms"`
	StitchTimeMs     int64   `json:"stitch_time_ms"`
	GenerationTimeMs int64   `json:"generation_time_ms"`
	CoverageCheckMs  int64   `json:"coverage_check_ms"`
	ChunksUsed       int     `json:"chunks_used"`
	ChunksRetrieved  int     `json:"chunks_retrieved"`
	QueriesUsed      int     `json:"queries_used"`
	TopSimilarity    float64 `json:"top_similarity"`
	CoveragePasses   int     `json:"coverage_passes"`
}

// AskResponse is the full outcome of one turn. ContextFound is false
// for the insufficient-evidence outcome, which is a normal response
// rather than an error.
type AskResponse struct {
	Answer       string        `json:"answer"`
	Sources      []SourceGroup `json:"sources"`
	AllSources   []Source      `json:"all_sources"`
	SessionID    string        `json:"session_id,omitempty"`
	ContextFound bool          `json:"context_found"`
	Degraded     bool          `json:"degraded,omitempty"`
	Metrics
	Debug *DebugInfo `json:"debug,omitempty"`
}

// DebugInfo exposes pipeline internals to authorized callers.
type DebugInfo struct {
	QueryVariants  []string       `json:"query_variants"`
	PerQuery       []QueryStats   `json:"per_query"`
	FinalRanking   []RankingEntry `json:"final_ranking"`
	CoveragePasses []CoveragePass `json:"coverage_passes,omitempty"`
}

// QueryStats records one variant's retrieval outcome.
type QueryStats struct {
	Query  string `json:"query"`
	Chunks int    `json:"chunks"`
	Error  string `json:"error,omitempty"`
}

// RankingEntry is one row of the final ranking debug table.
type RankingEntry struct {
	FinalScore      float64  `json:"final_score"`
	Similarity      float64  `json:"similarity"`
	QueryHits       int      `json:"query_hits"`
	MultiQueryBoost float64  `json:"multi_query_boost"`
	Article         string   `json:"article"`
	Sources         []string `json:"sources"`
	TextPreview     string   `json:"text_preview"`
}

// CoveragePass records the outcome of one coverage self-check pass.
type CoveragePass struct {
	Pass        int    `json:"pass"`
	Status      string `json:"status"`
	CoveragePct int    `json:"coverage_pct"`
	ExtraChunks int    `json:"extra_chunks"`
	TimeMs      int64  `json:"time_ms"`
}
