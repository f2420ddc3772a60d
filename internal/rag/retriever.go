package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"juris-ai/internal/albanian"
	"juris-ai/internal/contextutil"
	"juris-ai/internal/storage"
	"juris-ai/internal/vectorstore"
)

// rrfK is the Reciprocal Rank Fusion constant.
const rrfK = 60

// Post-fusion boosts. Exact keyword overlap nudges, an article-number
// match is a strong signal, and article-bearing chunks edge out
// preamble chunks.
const (
	keywordMatchBoostMax = 0.005
	articleMatchBoost    = 0.02
	articlePresenceBoost = 0.001
)

// RetrieverConfig tunes the hybrid retriever.
type RetrieverConfig struct {
	Collection    string
	FetchK        int
	VectorWeight  float64
	KeywordWeight float64
}

// HybridRetriever runs dense vector search and sparse keyword search
// for one query variant and fuses the two candidate sets with RRF.
type HybridRetriever struct {
	embedder Embedder
	vectors  vectorstore.VectorStore
	chunks   storage.ChunkStore
	cfg      RetrieverConfig
}

// NewHybridRetriever creates a HybridRetriever.
func NewHybridRetriever(embedder Embedder, vectors vectorstore.VectorStore, chunks storage.ChunkStore, cfg RetrieverConfig) *HybridRetriever {
	if cfg.FetchK <= 0 {
		cfg.FetchK = 50
	}
	if cfg.VectorWeight == 0 {
		cfg.VectorWeight = 1.0
	}
	if cfg.KeywordWeight == 0 {
		cfg.KeywordWeight = 0.8
	}
	return &HybridRetriever{embedder: embedder, vectors: vectors, chunks: chunks, cfg: cfg}
}

// Search retrieves the top-k fused candidates for one query variant,
// optionally restricted to one document. Failure of one retrieval
// path degrades the variant to the other path; only both paths
// failing is an error.
func (r *HybridRetriever) Search(ctx context.Context, query, documentID string, k int) ([]Candidate, error) {
	logger := contextutil.LoggerFromContext(ctx)
	if k <= 0 {
		k = r.cfg.FetchK
	}

	vectorResults, vectorErr := r.vectorSearch(ctx, query, documentID, k)
	if vectorErr != nil {
		logger.WarnContext(ctx, "vector search failed, keyword-only for this variant",
			"query", preview(query), "error", vectorErr)
	}

	keywordHits, keywordErr := r.chunks.KeywordSearch(ctx, query, documentID, k)
	if keywordErr != nil {
		logger.WarnContext(ctx, "keyword search failed, vector-only for this variant",
			"query", preview(query), "error", keywordErr)
	}

	if vectorErr != nil && keywordErr != nil {
		return nil, fmt.Errorf("both retrieval paths failed: %w", keywordErr)
	}

	candidates := fuseCandidates(query, vectorResults, keywordHits, r.cfg.VectorWeight, r.cfg.KeywordWeight)

	sortCandidates(candidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// SearchAll runs Search concurrently for every variant. One variant's
// failure is recorded in its QueryStats, not propagated; the caller
// gets whatever the other variants found.
func (r *HybridRetriever) SearchAll(ctx context.Context, variants []string, documentID string, k int) ([][]Candidate, []QueryStats) {
	perVariant := make([][]Candidate, len(variants))
	stats := make([]QueryStats, len(variants))

	g, gctx := errgroup.WithContext(ctx)
	for i, variant := range variants {
		g.Go(func() error {
			candidates, err := r.Search(gctx, variant, documentID, k)
			stats[i] = QueryStats{Query: preview(variant), Chunks: len(candidates)}
			if err != nil {
				stats[i].Error = err.Error()
				return nil
			}
			perVariant[i] = candidates
			return nil
		})
	}
	_ = g.Wait()

	return perVariant, stats
}

func (r *HybridRetriever) vectorSearch(ctx context.Context, query, documentID string, k int) ([]vectorstore.SearchResult, error) {
	vecs, err := r.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var filters map[string]any
	if documentID != "" {
		filters = map[string]any{"document_id": documentID}
	}

	return r.vectors.Search(ctx, r.cfg.Collection, vecs[0], k, filters)
}

// fuseCandidates merges the two ranked result lists with weighted RRF
// and applies the post-fusion boosts.
func fuseCandidates(query string, vectorResults []vectorstore.SearchResult, keywordHits []storage.KeywordHit, vectorWeight, keywordWeight float64) []Candidate {
	byKey := make(map[string]*Candidate)
	var order []string

	for rank, res := range vectorResults {
		chunk := chunkFromMeta(res.PointID, res.Meta)
		key := chunk.Key()
		if existing, ok := byKey[key]; ok {
			if res.Score > existing.Similarity {
				existing.Similarity = res.Score
			}
			continue
		}
		byKey[key] = &Candidate{
			Chunk:      chunk,
			Similarity: res.Score,
			VectorRank: rank + 1,
			Sources:    []string{"vector"},
		}
		order = append(order, key)
	}

	for rank, hit := range keywordHits {
		chunk := Chunk{
			ID:         hit.ID,
			DocumentID: hit.DocumentID,
			Position:   hit.Position,
			Article:    hit.Article,
			Pages:      hit.Pages,
			Title:      hit.Title,
			LawNumber:  hit.LawNumber,
			LawDate:    hit.LawDate,
			Text:       hit.Content,
		}
		key := chunk.Key()
		if existing, ok := byKey[key]; ok {
			if existing.KeywordRank == 0 {
				existing.KeywordRank = rank + 1
				existing.Sources = append(existing.Sources, "keyword")
			}
			continue
		}
		byKey[key] = &Candidate{
			Chunk:       chunk,
			KeywordRank: rank + 1,
			Sources:     []string{"keyword"},
		}
		order = append(order, key)
	}

	queryKeywords := albanian.Keywords(query)
	queryArticles := albanian.ExtractArticleNumbers(query)

	candidates := make([]Candidate, 0, len(order))
	for _, key := range order {
		cand := byKey[key]

		score := 0.0
		if cand.VectorRank > 0 {
			score += vectorWeight / float64(rrfK+cand.VectorRank)
		}
		if cand.KeywordRank > 0 {
			score += keywordWeight / float64(rrfK+cand.KeywordRank)
		}
		cand.RRFScore = score
		cand.Boost = computeBoost(cand.Chunk, queryKeywords, queryArticles)
		cand.Score = cand.RRFScore + cand.Boost

		candidates = append(candidates, *cand)
	}
	return candidates
}

func computeBoost(chunk Chunk, queryKeywords []string, queryArticles map[string]struct{}) float64 {
	boost := 0.0
	textLower := strings.ToLower(chunk.Text)

	if len(queryKeywords) > 0 {
		matches := 0
		for _, kw := range queryKeywords {
			if strings.Contains(textLower, kw) {
				matches++
			}
		}
		boost += float64(matches) / float64(len(queryKeywords)) * keywordMatchBoostMax
	}

	if len(queryArticles) > 0 && chunk.Article != "" {
		for _, num := range digitRuns(chunk.Article) {
			if _, ok := queryArticles[num]; ok {
				boost += articleMatchBoost
				break
			}
		}
	}

	if len(albanian.ExtractArticleNumbers(chunk.Text)) > 0 {
		boost += articlePresenceBoost
	}

	return boost
}

// digitRuns returns the maximal digit sequences in s, so an article
// label of either "57" or "Neni 57" yields "57".
func digitRuns(s string) []string {
	var runs []string
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			runs = append(runs, s[start:i])
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, s[start:])
	}
	return runs
}

// sortCandidates orders by fused score, then similarity, then
// document position for determinism.
func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidateLess(candidates[j], candidates[i])
	})
}

func candidateLess(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if a.Similarity != b.Similarity {
		return a.Similarity < b.Similarity
	}
	if a.Chunk.DocumentID != b.Chunk.DocumentID {
		return a.Chunk.DocumentID > b.Chunk.DocumentID
	}
	return a.Chunk.Position > b.Chunk.Position
}

// chunkFromMeta rebuilds a Chunk from a vector point's payload.
func chunkFromMeta(pointID string, meta map[string]any) Chunk {
	return Chunk{
		ID:         pointID,
		DocumentID: metaString(meta, "document_id"),
		Position:   metaInt(meta, "position"),
		Article:    metaString(meta, "article"),
		Pages:      metaString(meta, "pages"),
		Title:      metaString(meta, "title"),
		LawNumber:  metaString(meta, "law_number"),
		LawDate:    metaString(meta, "law_date"),
		Text:       metaString(meta, "text"),
	}
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

func metaInt(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func preview(s string) string {
	return truncateRunes(s, 80)
}

// truncateRunes cuts s to at most max bytes without splitting a rune,
// so diacritics like ë and ç survive truncation intact.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
