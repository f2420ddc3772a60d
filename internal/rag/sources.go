package rag

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// BuildContext renders the kept chunks as numbered context passages
// and collects a per-chunk citation for each. The offset shifts the
// passage numbering when augmenting an existing context.
func BuildContext(ranked []RankedChunk, offset int) ([]string, []Source) {
	parts := make([]string, 0, len(ranked))
	sources := make([]Source, 0, len(ranked))

	for i, rc := range ranked {
		title := rc.Chunk.Title
		if title == "" {
			title = "Dokument #" + rc.Chunk.DocumentID
		}

		text := rc.Passage
		if text == "" {
			text = rc.Chunk.Text
		}

		var merged string
		if len(rc.MergedPositions) > 1 {
			merged = fmt.Sprintf("  [pasazh i bashkuar: fragmentet %d-%d]\n",
				rc.MergedPositions[0], rc.MergedPositions[len(rc.MergedPositions)-1])
		}

		parts = append(parts, fmt.Sprintf(
			"--- KONTEKST %d ---\nDokument: %s\nFaqe: %s\nNeni: %s\n%sTekst:\n%s\n",
			offset+i+1, title, orNA(rc.Chunk.Pages), orNA(rc.Chunk.Article), merged, text,
		))

		sources = append(sources, Source{
			Title:      title,
			DocumentID: rc.Chunk.DocumentID,
			Article:    rc.Chunk.Article,
			Pages:      rc.Chunk.Pages,
			LawNumber:  rc.Chunk.LawNumber,
			LawDate:    rc.Chunk.LawDate,
			Position:   rc.Chunk.Position,
			Similarity: round4(float64(rc.Similarity)),
		})
	}

	return parts, sources
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func round4(f float64) float64 {
	return float64(int(f*10000+0.5)) / 10000
}

const (
	maxGroupArticles = 8
	maxGroupPages    = 10
)

// GroupSources merges per-chunk citations into one display entry per
// document: distinct articles and pages collected, best similarity
// kept. Groups are ordered best-first and capped at maxDisplay.
func GroupSources(all []Source, maxDisplay int) []SourceGroup {
	if len(all) == 0 {
		return nil
	}

	byDoc := make(map[string][]Source)
	order := make([]string, 0)
	for _, s := range all {
		if _, seen := byDoc[s.DocumentID]; !seen {
			order = append(order, s.DocumentID)
		}
		byDoc[s.DocumentID] = append(byDoc[s.DocumentID], s)
	}

	groups := make([]SourceGroup, 0, len(byDoc))
	for _, docID := range order {
		entries := byDoc[docID]
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Similarity > entries[j].Similarity
		})
		best := entries[0]

		var articles []string
		seenArticles := make(map[string]struct{})
		pagesSet := make(map[string]struct{})
		for _, e := range entries {
			if art := strings.TrimSpace(e.Article); art != "" {
				if _, dup := seenArticles[art]; !dup {
					seenArticles[art] = struct{}{}
					articles = append(articles, art)
				}
			}
			for _, p := range strings.Split(e.Pages, ",") {
				p = strings.TrimSpace(p)
				if p != "" && p != "0" {
					pagesSet[p] = struct{}{}
				}
			}
		}
		if len(articles) > maxGroupArticles {
			articles = articles[:maxGroupArticles]
		}

		pages := make([]string, 0, len(pagesSet))
		for p := range pagesSet {
			pages = append(pages, p)
		}
		sort.Slice(pages, func(i, j int) bool {
			pi, _ := strconv.Atoi(pages[i])
			pj, _ := strconv.Atoi(pages[j])
			return pi < pj
		})
		if len(pages) > maxGroupPages {
			pages = pages[:maxGroupPages]
		}

		groups = append(groups, SourceGroup{
			Title:      best.Title,
			DocumentID: best.DocumentID,
			LawNumber:  best.LawNumber,
			LawDate:    best.LawDate,
			Articles:   articles,
			Pages:      pages,
			ChunkCount: len(entries),
			Similarity: best.Similarity,
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Similarity > groups[j].Similarity
	})
	if maxDisplay > 0 && len(groups) > maxDisplay {
		groups = groups[:maxDisplay]
	}
	return groups
}
