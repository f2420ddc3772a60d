package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"

	"github.com/pkoukk/tiktoken-go"

	"juris-ai/internal/contextutil"
	"juris-ai/internal/storage"
)

// ChunkerVersion identifies the chunking logic. Bump on changes that
// require a re-index.
const ChunkerVersion = "v1.0"

// statsEncoding is the tiktoken encoding used for token counting.
const statsEncoding = "cl100k_base"

// CoverageStats describes the current state of the index. The vector
// point count comes from Qdrant, so a drift between the SQLite chunks
// and the stored vectors is visible in one place.
type CoverageStats struct {
	DocumentCount    int             `json:"document_count"`
	ChunkCount       int             `json:"chunk_count"`
	VectorPointCount int             `json:"vector_point_count"`
	VectorStatus     string          `json:"vector_status"`
	TokenStats       ChunkTokenStats `json:"chunk_token_stats"`
	ChunkerVersion   string          `json:"chunker_version"`
	IndexVersion     string          `json:"index_version"`
}

// ChunkTokenStats summarizes per-chunk token counts.
type ChunkTokenStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// CoverageStats computes index statistics. Token counts use the real
// tiktoken encoding rather than a character estimate, so oversized
// chunks show up accurately.
func (p *Pipeline) CoverageStats(ctx context.Context, embeddingModel string) (*CoverageStats, error) {
	logger := contextutil.LoggerFromContext(ctx)

	chunkRepo, ok := p.chunks.(*storage.ChunkRepo)
	if !ok {
		return nil, fmt.Errorf("chunk store %T cannot serve index statistics", p.chunks)
	}

	docCount, err := p.documents.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	contents, err := chunkRepo.Contents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunk contents: %w", err)
	}

	stats := &CoverageStats{
		DocumentCount:  docCount,
		ChunkCount:     len(contents),
		VectorStatus:   "unavailable",
		ChunkerVersion: ChunkerVersion,
		IndexVersion:   indexVersion(embeddingModel),
	}

	// Qdrant being down should not hide the SQLite side of the index.
	if info, err := p.vectors.GetCollectionInfo(ctx, p.collection); err != nil {
		logger.WarnContext(ctx, "failed to read collection info", "collection", p.collection, "error", err)
	} else {
		stats.VectorPointCount = info.PointsCount
		stats.VectorStatus = info.Status
		if info.PointsCount != len(contents) {
			logger.WarnContext(ctx, "chunk and vector counts disagree",
				"chunks", len(contents), "vector_points", info.PointsCount)
		}
	}

	if len(contents) > 0 {
		counts, err := tokenCounts(contents)
		if err != nil {
			return nil, err
		}
		stats.TokenStats = computeTokenStats(counts)
	}
	return stats, nil
}

func tokenCounts(contents []string) ([]int, error) {
	enc, err := tiktoken.GetEncoding(statsEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", statsEncoding, err)
	}
	counts := make([]int, len(contents))
	for i, content := range contents {
		counts[i] = len(enc.Encode(content, nil, nil))
	}
	return counts, nil
}

// indexVersion fingerprints the chunker and embedding configuration.
// A changed fingerprint means stored vectors and new queries no
// longer agree.
func indexVersion(embeddingModel string) string {
	input := fmt.Sprintf("%s|%s|min=%d|target=%d|max=%d",
		ChunkerVersion, embeddingModel, minChunkRunes, targetChunkRunes, maxChunkRunes)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}

func computeTokenStats(counts []int) ChunkTokenStats {
	if len(counts) == 0 {
		return ChunkTokenStats{}
	}

	sorted := make([]int, len(counts))
	copy(sorted, counts)
	sort.Ints(sorted)

	sum := 0
	for _, c := range sorted {
		sum += c
	}

	p95Index := int(math.Ceil(float64(len(sorted))*0.95)) - 1
	if p95Index < 0 {
		p95Index = 0
	}
	if p95Index >= len(sorted) {
		p95Index = len(sorted) - 1
	}

	return ChunkTokenStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(float64(sum)/float64(len(sorted))*100) / 100,
		P95:  sorted[p95Index],
	}
}
