package rag

import (
	"context"
	"strings"

	"juris-ai/internal/contextutil"
	"juris-ai/internal/storage"
)

// ContextStitcher turns ranked chunks into complete passages by
// merging in ±window neighbor chunks from the chunk store, then fits
// the passages into a character budget in rank order.
type ContextStitcher struct {
	chunks storage.ChunkStore
	window int
	budget int
}

// NewContextStitcher creates a ContextStitcher. window is the number
// of neighbor chunks pulled on each side; budget is the maximum total
// passage characters, 0 for unlimited.
func NewContextStitcher(chunks storage.ChunkStore, window, budget int) *ContextStitcher {
	return &ContextStitcher{chunks: chunks, window: window, budget: budget}
}

// Stitch fills each ranked chunk's Passage with its neighbor-merged
// text, then drops chunks that do not fit the budget. A chunk whose
// passage exceeds the remaining budget is dropped whole; smaller
// chunks later in the ranking are still considered. Neighbor lookup
// failure degrades that chunk to its own text.
func (s *ContextStitcher) Stitch(ctx context.Context, ranked []RankedChunk) []RankedChunk {
	logger := contextutil.LoggerFromContext(ctx)

	for i := range ranked {
		s.stitchOne(ctx, &ranked[i])
	}

	kept := FitBudget(ranked, s.budget)
	if len(kept) < len(ranked) {
		logger.InfoContext(ctx, "context budget trimmed chunks",
			"ranked", len(ranked), "kept", len(kept), "budget", s.budget)
	}
	return kept
}

func (s *ContextStitcher) stitchOne(ctx context.Context, rc *RankedChunk) {
	logger := contextutil.LoggerFromContext(ctx)

	rc.Passage = rc.Chunk.Text
	rc.MergedPositions = []int{rc.Chunk.Position}

	if s.window < 1 || rc.Chunk.DocumentID == "" {
		return
	}

	from := rc.Chunk.Position - s.window
	if from < 0 {
		from = 0
	}
	neighbors, err := s.chunks.GetByPositionRange(ctx, rc.Chunk.DocumentID, from, rc.Chunk.Position+s.window)
	if err != nil {
		logger.WarnContext(ctx, "neighbor lookup failed, using bare chunk",
			"document_id", rc.Chunk.DocumentID, "position", rc.Chunk.Position, "error", err)
		return
	}
	if len(neighbors) <= 1 {
		return
	}

	parts := make([]string, 0, len(neighbors))
	positions := make([]int, 0, len(neighbors))
	for _, n := range neighbors {
		parts = append(parts, n.Content)
		positions = append(positions, n.Position)
	}
	rc.Passage = strings.Join(parts, "\n\n")
	rc.MergedPositions = positions
}

// FitBudget selects chunks in rank order whose passages fit within
// the character budget, skipping oversized chunks and continuing with
// later ones. budget <= 0 keeps everything.
func FitBudget(ranked []RankedChunk, budget int) []RankedChunk {
	if budget <= 0 {
		return ranked
	}

	kept := make([]RankedChunk, 0, len(ranked))
	used := 0
	for _, rc := range ranked {
		size := len(rc.Passage)
		if size == 0 {
			size = len(rc.Chunk.Text)
		}
		if used+size > budget {
			continue
		}
		used += size
		kept = append(kept, rc)
	}
	return kept
}
