package rag

// GateDecision is the confidence gate's verdict on a ranked set.
type GateDecision struct {
	Pass          bool
	TopSimilarity float32
	HasVector     bool
	HasKeyword    bool
}

// EvaluateConfidence decides whether the retrieved evidence justifies
// generating an answer. An empty ranked set blocks. When vector-backed
// results exist, the top similarity must reach minSimilarity (a score
// exactly at the threshold passes). A keyword-only result set bypasses
// the similarity check: FTS hits carry no comparable similarity score.
func EvaluateConfidence(ranked []RankedChunk, minSimilarity float32) GateDecision {
	decision := GateDecision{}
	if len(ranked) == 0 {
		return decision
	}

	for _, rc := range ranked {
		if rc.Similarity > decision.TopSimilarity {
			decision.TopSimilarity = rc.Similarity
		}
		for _, src := range rc.Sources {
			switch src {
			case "vector":
				decision.HasVector = true
			case "keyword":
				decision.HasKeyword = true
			}
		}
	}

	if decision.HasVector && decision.TopSimilarity < minSimilarity {
		return decision
	}

	decision.Pass = true
	return decision
}
