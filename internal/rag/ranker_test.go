package rag

import (
	"math"
	"testing"
)

func candidateFor(doc string, pos int, sim float32, score float64, sources ...string) Candidate {
	return Candidate{
		Chunk:      Chunk{DocumentID: doc, Position: pos, Text: "tekst"},
		Similarity: sim,
		Score:      score,
		Sources:    sources,
	}
}

func TestMergeVariantsEmpty(t *testing.T) {
	if got := MergeVariants(nil, 0.012, 12); len(got) != 0 {
		t.Fatalf("expected empty result, got %d chunks", len(got))
	}
	if got := MergeVariants([][]Candidate{nil, nil}, 0.012, 12); len(got) != 0 {
		t.Fatalf("expected empty result for empty variants, got %d chunks", len(got))
	}
}

func TestMergeVariantsConsensusBoost(t *testing.T) {
	perVariant := [][]Candidate{
		{candidateFor("doc1", 0, 0.70, 0.020, "vector")},
		{candidateFor("doc2", 3, 0.60, 0.030, "vector")},
		{candidateFor("doc1", 0, 0.85, 0.018, "vector", "keyword")},
	}

	ranked := MergeVariants(perVariant, 0.012, 12)
	if len(ranked) != 2 {
		t.Fatalf("expected 2 merged chunks, got %d", len(ranked))
	}

	var consensus *RankedChunk
	for i := range ranked {
		if ranked[i].Chunk.DocumentID == "doc1" {
			consensus = &ranked[i]
		}
	}
	if consensus == nil {
		t.Fatal("doc1 chunk missing from merged result")
	}

	if consensus.QueryHits != 2 {
		t.Errorf("QueryHits = %d, want 2", consensus.QueryHits)
	}
	if consensus.Similarity != 0.85 {
		t.Errorf("Similarity = %v, want max across variants 0.85", consensus.Similarity)
	}
	if consensus.BaseScore != 0.020 {
		t.Errorf("BaseScore = %v, want best per-variant score 0.020", consensus.BaseScore)
	}

	wantBoost := 0.012 * 1.0 / 2.0
	if math.Abs(consensus.MultiQueryBoost-wantBoost) > 1e-9 {
		t.Errorf("MultiQueryBoost = %v, want %v", consensus.MultiQueryBoost, wantBoost)
	}
	if math.Abs(consensus.Score-(0.020+wantBoost)) > 1e-9 {
		t.Errorf("Score = %v, want base plus boost", consensus.Score)
	}

	if len(consensus.Sources) != 2 {
		t.Errorf("Sources = %v, want union of vector and keyword", consensus.Sources)
	}

	// Consensus must outrank the single-hit chunk despite its lower
	// base score failing to: 0.020 + 0.006 < 0.030, so doc2 stays first.
	if ranked[0].Chunk.DocumentID != "doc2" {
		t.Errorf("expected doc2 first (score %v vs %v)", ranked[0].Score, ranked[1].Score)
	}
}

func TestMergeVariantsDuplicateWithinVariantCountsOnce(t *testing.T) {
	perVariant := [][]Candidate{
		{
			candidateFor("doc1", 0, 0.7, 0.02, "vector"),
			candidateFor("doc1", 0, 0.7, 0.02, "keyword"),
		},
		{candidateFor("doc1", 0, 0.7, 0.02, "vector")},
	}

	ranked := MergeVariants(perVariant, 0.012, 12)
	if len(ranked) != 1 {
		t.Fatalf("expected 1 merged chunk, got %d", len(ranked))
	}
	if ranked[0].QueryHits != 2 {
		t.Errorf("QueryHits = %d, want 2 (distinct variants only)", ranked[0].QueryHits)
	}
}

func TestMergeVariantsSingleVariantNoBoost(t *testing.T) {
	perVariant := [][]Candidate{
		{candidateFor("doc1", 0, 0.7, 0.02, "vector")},
	}
	ranked := MergeVariants(perVariant, 0.012, 12)
	if len(ranked) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(ranked))
	}
	if ranked[0].MultiQueryBoost != 0 {
		t.Errorf("single variant must not earn a consensus boost, got %v", ranked[0].MultiQueryBoost)
	}
}

func TestMergeVariantsDeterministicTieBreak(t *testing.T) {
	perVariant := [][]Candidate{
		{
			candidateFor("docB", 5, 0.5, 0.02, "vector"),
			candidateFor("docA", 9, 0.5, 0.02, "vector"),
			candidateFor("docA", 2, 0.5, 0.02, "vector"),
		},
	}
	ranked := MergeVariants(perVariant, 0.012, 12)
	if len(ranked) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(ranked))
	}
	wantOrder := []struct {
		doc string
		pos int
	}{{"docA", 2}, {"docA", 9}, {"docB", 5}}
	for i, want := range wantOrder {
		if ranked[i].Chunk.DocumentID != want.doc || ranked[i].Chunk.Position != want.pos {
			t.Errorf("position %d: got %s/%d, want %s/%d",
				i, ranked[i].Chunk.DocumentID, ranked[i].Chunk.Position, want.doc, want.pos)
		}
	}
}

func articleCandidate(doc string, pos int, article string, score float64) Candidate {
	return Candidate{
		Chunk:      Chunk{DocumentID: doc, Position: pos, Article: article, Text: "tekst"},
		Similarity: 0.5,
		Score:      score,
		Sources:    []string{"vector"},
	}
}

func TestMergeVariantsArticleCohesion(t *testing.T) {
	// Neni 12 dominates the top of the ranking, so its low-ranked
	// sibling must displace a better-scored chunk from another article.
	perVariant := [][]Candidate{{
		articleCandidate("doc1", 0, "Neni 12", 0.050),
		articleCandidate("doc1", 5, "Neni 30", 0.040),
		articleCandidate("doc1", 6, "Neni 31", 0.030),
		articleCandidate("doc1", 7, "Neni 32", 0.020),
		articleCandidate("doc1", 8, "Neni 33", 0.015),
		articleCandidate("doc1", 1, "Neni 12", 0.010),
	}}

	ranked := MergeVariants(perVariant, 0.012, 4)
	if len(ranked) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(ranked))
	}

	var sibling bool
	for _, rc := range ranked {
		if rc.Chunk.Position == 1 && rc.Chunk.Article == "Neni 12" {
			sibling = true
		}
		if rc.Chunk.Position == 7 {
			t.Errorf("lowest-ranked Neni 32 chunk should have been displaced by the article sibling")
		}
	}
	if !sibling {
		t.Error("lower-ranked chunk from the dominant article was not pulled into the selection")
	}

	if ranked[0].Chunk.Position != 0 {
		t.Errorf("selection must stay ordered by score, got position %d first", ranked[0].Chunk.Position)
	}
}

func TestMergeVariantsArticleCohesionPoolBound(t *testing.T) {
	// A sibling ranked outside 3x the final size stays out.
	candidates := []Candidate{articleCandidate("doc1", 0, "Neni 5", 0.100)}
	for i := 1; i <= 6; i++ {
		candidates = append(candidates, articleCandidate("doc1", 10+i, "Neni 9", 0.050-float64(i)*0.001))
	}
	candidates = append(candidates, articleCandidate("doc1", 1, "Neni 5", 0.001))

	ranked := MergeVariants([][]Candidate{candidates}, 0.012, 2)
	if len(ranked) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(ranked))
	}
	for _, rc := range ranked {
		if rc.Chunk.Position == 1 {
			t.Error("sibling outside the cohesion pool must not be selected")
		}
	}
}

func TestMergeVariantsCap(t *testing.T) {
	perVariant := [][]Candidate{{
		candidateFor("doc1", 0, 0.9, 0.03, "vector"),
		candidateFor("doc1", 1, 0.8, 0.02, "vector"),
		candidateFor("doc1", 2, 0.7, 0.01, "vector"),
	}}
	ranked := MergeVariants(perVariant, 0.012, 2)
	if len(ranked) != 2 {
		t.Fatalf("expected cap at 2 chunks, got %d", len(ranked))
	}
	if ranked[0].Chunk.Position != 0 || ranked[1].Chunk.Position != 1 {
		t.Errorf("cap must keep the best-ranked chunks")
	}
}
