package indexer

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func newTestChunker(t *testing.T) *LegalChunker {
	t.Helper()
	chunker, err := NewLegalChunker()
	if err != nil {
		t.Fatalf("NewLegalChunker() error = %v", err)
	}
	return chunker
}

func TestChunkTextArticleSections(t *testing.T) {
	chunker := newTestChunker(t)

	content := "KODI I PUNËS I REPUBLIKËS SË SHQIPËRISË\n\n" +
		"Neni 1\nKy kod rregullon marrëdhëniet e punës ndërmjet punëmarrësve dhe punëdhënësve.\n\n" +
		"Neni 2\nDispozitat e këtij kodi zbatohen për të gjitha kontratat e punës.\n"

	chunks := chunker.ChunkText(content)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks (preamble + 2 articles), got %d", len(chunks))
	}

	if chunks[0].Article != "" {
		t.Errorf("preamble article = %q, want empty", chunks[0].Article)
	}
	if !strings.Contains(chunks[0].Text, "KODI I PUNËS") {
		t.Errorf("preamble text wrong: %q", chunks[0].Text)
	}

	if chunks[1].Article != "Neni 1" {
		t.Errorf("chunk 1 article = %q, want Neni 1", chunks[1].Article)
	}
	if !strings.HasPrefix(chunks[1].Text, "Neni 1") {
		t.Errorf("article chunk must keep its heading: %q", chunks[1].Text)
	}
	if chunks[2].Article != "Neni 2" {
		t.Errorf("chunk 2 article = %q, want Neni 2", chunks[2].Article)
	}

	for i, ch := range chunks {
		if ch.Position != i {
			t.Errorf("chunk %d position = %d", i, ch.Position)
		}
	}
}

func TestChunkTextCompoundArticleLabels(t *testing.T) {
	chunker := newTestChunker(t)

	chunks := chunker.ChunkText("Neni 57/2\nPaga minimale caktohet me vendim të Këshillit të Ministrave.\n")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Article != "Neni 57/2" {
		t.Errorf("article = %q, want Neni 57/2", chunks[0].Article)
	}
}

func TestChunkTextPageTracking(t *testing.T) {
	chunker := newTestChunker(t)

	content := "Neni 1\nTeksti i nenit të parë në faqen e parë.\f\n" +
		"Neni 2\nTeksti i nenit të dytë në faqen e dytë.\n"

	chunks := chunker.ChunkText(content)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Pages != "1" {
		t.Errorf("chunk 0 pages = %q, want 1", chunks[0].Pages)
	}
	if chunks[1].Pages != "2" {
		t.Errorf("chunk 1 pages = %q, want 2", chunks[1].Pages)
	}
}

func TestChunkTextNoPageMarkers(t *testing.T) {
	chunker := newTestChunker(t)

	chunks := chunker.ChunkText("Neni 1\nTekst pa shënues faqesh fare.\n")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Pages != "" {
		t.Errorf("pages = %q, want empty without markers", chunks[0].Pages)
	}
}

func TestChunkTextEmpty(t *testing.T) {
	chunker := newTestChunker(t)
	if chunks := chunker.ChunkText("   \n  "); chunks != nil {
		t.Errorf("expected nil for blank content, got %d chunks", len(chunks))
	}
}

func TestChunkTextLongArticleSplits(t *testing.T) {
	chunker := newTestChunker(t)

	var b strings.Builder
	b.WriteString("Neni 1\n")
	for i := 0; i < 60; i++ {
		b.WriteString("Punëmarrësi gëzon të drejtën e pushimit vjetor të paguar sipas këtij kodi. ")
	}

	chunks := chunker.ChunkText(b.String())
	if len(chunks) < 2 {
		t.Fatalf("oversized article must split, got %d chunks", len(chunks))
	}
	for i, ch := range chunks {
		if ch.Article != "Neni 1" {
			t.Errorf("chunk %d article = %q, want Neni 1", i, ch.Article)
		}
		if runes := utf8.RuneCountInString(ch.Text); runes > maxChunkRunes {
			t.Errorf("chunk %d has %d runes, above maximum", i, runes)
		}
	}
}

func TestChunkMarkdownHeadingSections(t *testing.T) {
	chunker := newTestChunker(t)

	content := []byte("# Kodi i Punës\n\nHyrje e shkurtër e kodit.\n\n" +
		"## Neni 1\n\nKy kod rregullon marrëdhëniet e punës.\n\n" +
		"## Neni 2\n\nDispozitat zbatohen për të gjitha kontratat.\n")

	chunks, err := chunker.ChunkMarkdown(content)
	if err != nil {
		t.Fatalf("ChunkMarkdown() error = %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	if chunks[0].Article != "" || !strings.Contains(chunks[0].Text, "Hyrje") {
		t.Errorf("intro chunk wrong: %+v", chunks[0])
	}
	if chunks[1].Article != "Neni 1" {
		t.Errorf("chunk 1 article = %q", chunks[1].Article)
	}
	if !strings.Contains(chunks[1].Text, "rregullon marrëdhëniet") {
		t.Errorf("chunk 1 text = %q", chunks[1].Text)
	}
	if chunks[2].Article != "Neni 2" {
		t.Errorf("chunk 2 article = %q", chunks[2].Article)
	}
}

func TestChunkMarkdownEmpty(t *testing.T) {
	chunker := newTestChunker(t)
	chunks, err := chunker.ChunkMarkdown(nil)
	if err != nil {
		t.Fatalf("ChunkMarkdown() error = %v", err)
	}
	if chunks != nil {
		t.Errorf("expected nil chunks, got %d", len(chunks))
	}
}

func TestMergeTinySameArticle(t *testing.T) {
	chunks := []Chunk{
		{Position: 0, Article: "Neni 1", Text: strings.Repeat("a", 200)},
		{Position: 1, Article: "Neni 1", Text: "shkurt"},
		{Position: 2, Article: "Neni 2", Text: "tjetër i shkurtër"},
	}
	merged := reposition(mergeTiny(chunks))
	if len(merged) != 2 {
		t.Fatalf("expected 2 chunks after merge, got %d", len(merged))
	}
	if !strings.HasSuffix(merged[0].Text, "shkurt") {
		t.Errorf("tiny chunk must fold into its predecessor: %q", merged[0].Text)
	}
	if merged[1].Article != "Neni 2" {
		t.Errorf("cross-article chunks must not merge")
	}
	if merged[1].Position != 1 {
		t.Errorf("positions must be contiguous after merge, got %d", merged[1].Position)
	}
}
