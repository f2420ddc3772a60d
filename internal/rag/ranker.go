package rag

import (
	"sort"
	"strings"
)

// MergeVariants deduplicates candidate sets across query variants into
// one descending-ranked sequence. A chunk found by M variants gets
// query-hit count M, keeps its maximum similarity and best base score,
// and earns a consensus boost scaled by the fraction of variants that
// agreed on it. Empty input yields an empty sequence.
func MergeVariants(perVariant [][]Candidate, boostWeight float64, maxChunks int) []RankedChunk {
	numVariants := len(perVariant)
	byKey := make(map[string]*RankedChunk)
	var order []string

	for variantIdx, candidates := range perVariant {
		seenThisVariant := make(map[string]struct{}, len(candidates))
		for _, cand := range candidates {
			key := cand.Chunk.Key()

			existing, ok := byKey[key]
			if !ok {
				rc := &RankedChunk{
					Chunk:      cand.Chunk,
					Similarity: cand.Similarity,
					QueryHits:  1,
					FoundBy:    []int{variantIdx},
					BaseScore:  cand.Score,
					Sources:    append([]string(nil), cand.Sources...),
				}
				byKey[key] = rc
				order = append(order, key)
				seenThisVariant[key] = struct{}{}
				continue
			}

			if _, dup := seenThisVariant[key]; !dup {
				seenThisVariant[key] = struct{}{}
				existing.QueryHits++
				existing.FoundBy = append(existing.FoundBy, variantIdx)
			}
			if cand.Similarity > existing.Similarity {
				existing.Similarity = cand.Similarity
			}
			if cand.Score > existing.BaseScore {
				existing.BaseScore = cand.Score
			}
			for _, src := range cand.Sources {
				if !containsString(existing.Sources, src) {
					existing.Sources = append(existing.Sources, src)
				}
			}
		}
	}

	denominator := numVariants - 1
	if denominator < 1 {
		denominator = 1
	}

	ranked := make([]RankedChunk, 0, len(order))
	for _, key := range order {
		rc := byKey[key]
		rc.MultiQueryBoost = boostWeight * float64(rc.QueryHits-1) / float64(denominator)
		rc.Score = rc.BaseScore + rc.MultiQueryBoost
		ranked = append(ranked, *rc)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.Chunk.DocumentID != b.Chunk.DocumentID {
			return a.Chunk.DocumentID < b.Chunk.DocumentID
		}
		return a.Chunk.Position < b.Chunk.Position
	})

	if maxChunks > 0 {
		ranked = applyArticleCohesion(ranked, maxChunks)
	}
	return ranked
}

// cohesionPoolFactor widens the selection pool so article siblings
// ranked just below the cutoff can still make the final set.
const cohesionPoolFactor = 3

// applyArticleCohesion selects the final maxChunks from the ranked
// sequence while keeping articles together. When an article appears in
// the top 3, every pool chunk from that article is pulled in first;
// remaining slots are filled by rank. The selection is re-sorted by
// score so the context stays in ranked order.
func applyArticleCohesion(ranked []RankedChunk, maxChunks int) []RankedChunk {
	if len(ranked) == 0 {
		return ranked
	}

	pool := ranked
	if limit := maxChunks * cohesionPoolFactor; len(pool) > limit {
		pool = pool[:limit]
	}

	topArticles := make(map[string]struct{})
	for i := 0; i < len(pool) && i < 3; i++ {
		if art := strings.TrimSpace(pool[i].Chunk.Article); art != "" {
			topArticles[art] = struct{}{}
		}
	}

	selected := make([]RankedChunk, 0, maxChunks)
	selectedKeys := make(map[string]struct{}, maxChunks)

	if len(topArticles) > 0 {
		for _, rc := range pool {
			if len(selected) >= maxChunks {
				break
			}
			art := strings.TrimSpace(rc.Chunk.Article)
			if _, ok := topArticles[art]; !ok {
				continue
			}
			key := rc.Chunk.Key()
			if _, dup := selectedKeys[key]; dup {
				continue
			}
			selected = append(selected, rc)
			selectedKeys[key] = struct{}{}
		}
	}

	for _, rc := range pool {
		if len(selected) >= maxChunks {
			break
		}
		key := rc.Chunk.Key()
		if _, dup := selectedKeys[key]; dup {
			continue
		}
		selected = append(selected, rc)
		selectedKeys[key] = struct{}{}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Score > selected[j].Score
	})
	return selected
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
