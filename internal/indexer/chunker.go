package indexer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Chunk sizing in runes. Legal articles are usually short enough to
// stay whole; long ones split at sentence boundaries near the target.
const (
	minChunkRunes    = 120
	targetChunkRunes = 1000
	maxChunkRunes    = 1400
)

// articleHeadingRe matches a "Neni N" heading at the start of a line,
// including compound labels like "Neni 57/2" and "Neni 12a".
var articleHeadingRe = regexp.MustCompile(`(?m)^[ \t]*[Nn]eni[ \t]+(\d+[a-zA-Zë/]*)`)

// LegalChunker splits legal document text into retrievable chunks.
// Plain text is split on article boundaries with page tracking from
// form feed markers; markdown is split on heading sections via the
// goldmark AST. Oversized sections break at sentence boundaries.
type LegalChunker struct {
	parser    goldmark.Markdown
	tokenizer *sentences.DefaultSentenceTokenizer
}

// NewLegalChunker creates a LegalChunker.
func NewLegalChunker() (*LegalChunker, error) {
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load sentence tokenizer: %w", err)
	}
	return &LegalChunker{
		parser:    goldmark.New(goldmark.WithExtensions(extension.Table)),
		tokenizer: tokenizer,
	}, nil
}

// ChunkText splits pre-extracted plain text. Article headings start
// new sections and label every chunk they produce; text before the
// first article becomes an unlabeled preamble chunk. Form feed
// characters mark page boundaries.
func (c *LegalChunker) ChunkText(content string) []Chunk {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if strings.TrimSpace(content) == "" {
		return nil
	}

	breaks := pageBreaks(content)

	type section struct {
		article    string
		start, end int
	}
	var sections []section

	matches := articleHeadingRe.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		sections = []section{{start: 0, end: len(content)}}
	} else {
		if matches[0][0] > 0 {
			sections = append(sections, section{start: 0, end: matches[0][0]})
		}
		for i, m := range matches {
			end := len(content)
			if i+1 < len(matches) {
				end = matches[i+1][0]
			}
			sections = append(sections, section{
				article: "Neni " + content[m[2]:m[3]],
				start:   m[0],
				end:     end,
			})
		}
	}

	var chunks []Chunk
	for _, sec := range sections {
		raw := content[sec.start:sec.end]
		body := strings.TrimSpace(strings.ReplaceAll(raw, "\f", "\n"))
		if body == "" {
			continue
		}
		// Trailing whitespace must not drag a section onto the next page.
		pages := pageRange(breaks, sec.start, sec.start+len(strings.TrimRight(raw, " \t\n\f")))
		for _, piece := range c.splitLong(body) {
			chunks = append(chunks, Chunk{Article: sec.article, Pages: pages, Text: piece})
		}
	}

	return reposition(mergeTiny(chunks))
}

// mdSection accumulates one heading's content during the AST walk.
type mdSection struct {
	heading string
	article string
	text    strings.Builder
}

// ChunkMarkdown splits markdown content on heading sections. A
// heading matching the article pattern labels its section; other
// headings (chapters, parts) produce unlabeled sections.
func (c *LegalChunker) ChunkMarkdown(content []byte) ([]Chunk, error) {
	if len(content) == 0 {
		return nil, nil
	}

	doc := c.parser.Parser().Parse(text.NewReader(content))

	var sections []*mdSection
	current := &mdSection{}

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			if strings.TrimSpace(current.text.String()) != "" {
				sections = append(sections, current)
			}
			heading := nodeText(node, content)
			current = &mdSection{heading: heading}
			if m := articleHeadingRe.FindStringSubmatch(heading); m != nil {
				current.article = "Neni " + m[1]
			}
			return ast.WalkSkipChildren, nil

		case *ast.Text:
			current.text.Write(node.Segment.Value(content))
			if node.SoftLineBreak() || node.HardLineBreak() {
				current.text.WriteByte('\n')
			}

		case *ast.String:
			current.text.Write(node.Value)

		case *ast.Paragraph, *ast.List, *ast.ListItem:
			c.ensureNewline(current)

		case *ast.CodeBlock:
			c.ensureNewline(current)
			writeLines(current, node.Lines(), content)
			return ast.WalkSkipChildren, nil

		case *ast.FencedCodeBlock:
			c.ensureNewline(current)
			writeLines(current, node.Lines(), content)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk markdown: %w", err)
	}
	if strings.TrimSpace(current.text.String()) != "" {
		sections = append(sections, current)
	}

	var chunks []Chunk
	for _, sec := range sections {
		body := strings.TrimSpace(sec.text.String())
		if sec.heading != "" {
			body = sec.heading + "\n" + body
		}
		for _, piece := range c.splitLong(body) {
			chunks = append(chunks, Chunk{Article: sec.article, Text: piece})
		}
	}
	return reposition(mergeTiny(chunks)), nil
}

func writeLines(sec *mdSection, lines *text.Segments, content []byte) {
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sec.text.Write(seg.Value(content))
	}
}

func (c *LegalChunker) ensureNewline(sec *mdSection) {
	if s := sec.text.String(); s != "" && !strings.HasSuffix(s, "\n") {
		sec.text.WriteByte('\n')
	}
}

// nodeText flattens a node's inline content to plain text.
func nodeText(n ast.Node, content []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(content))
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

// splitLong breaks an oversized section at sentence boundaries,
// accumulating sentences up to the target size. A single sentence
// longer than the maximum is hard split.
func (c *LegalChunker) splitLong(body string) []string {
	if utf8.RuneCountInString(body) <= maxChunkRunes {
		return []string{body}
	}

	var pieces []string
	var b strings.Builder
	size := 0

	flush := func() {
		if piece := strings.TrimSpace(b.String()); piece != "" {
			pieces = append(pieces, piece)
		}
		b.Reset()
		size = 0
	}

	for _, sent := range c.tokenizer.Tokenize(body) {
		sentRunes := utf8.RuneCountInString(sent.Text)
		if size > 0 && size+sentRunes > targetChunkRunes {
			flush()
		}
		if sentRunes > maxChunkRunes {
			flush()
			pieces = append(pieces, hardSplit(strings.TrimSpace(sent.Text))...)
			continue
		}
		b.WriteString(sent.Text)
		size += sentRunes
	}
	flush()

	if len(pieces) == 0 {
		return hardSplit(body)
	}
	return pieces
}

// hardSplit cuts text at the target rune count without regard for
// boundaries. Last resort for degenerate input.
func hardSplit(body string) []string {
	runes := []rune(body)
	var pieces []string
	for start := 0; start < len(runes); start += targetChunkRunes {
		end := start + targetChunkRunes
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			pieces = append(pieces, piece)
		}
	}
	return pieces
}

// mergeTiny folds an undersized chunk into its predecessor when both
// belong to the same article and the merge stays within bounds.
func mergeTiny(chunks []Chunk) []Chunk {
	if len(chunks) < 2 {
		return chunks
	}
	out := chunks[:1]
	for _, ch := range chunks[1:] {
		prev := &out[len(out)-1]
		if utf8.RuneCountInString(ch.Text) < minChunkRunes &&
			ch.Article == prev.Article &&
			utf8.RuneCountInString(prev.Text)+utf8.RuneCountInString(ch.Text) <= maxChunkRunes {
			prev.Text += "\n\n" + ch.Text
			if ch.Pages != "" && ch.Pages != prev.Pages {
				prev.Pages = joinPages(prev.Pages, ch.Pages)
			}
			continue
		}
		out = append(out, ch)
	}
	return out
}

func reposition(chunks []Chunk) []Chunk {
	for i := range chunks {
		chunks[i].Position = i
	}
	return chunks
}

// pageBreaks returns the byte offsets of form feed markers.
func pageBreaks(content string) []int {
	var breaks []int
	for i := 0; i < len(content); i++ {
		if content[i] == '\f' {
			breaks = append(breaks, i)
		}
	}
	return breaks
}

// pageRange renders the page span for a byte range as a comma list.
// Documents without page markers yield "".
func pageRange(breaks []int, start, end int) string {
	if len(breaks) == 0 {
		return ""
	}
	first := sort.SearchInts(breaks, start) + 1
	last := sort.SearchInts(breaks, end) + 1

	pages := make([]string, 0, last-first+1)
	for p := first; p <= last; p++ {
		pages = append(pages, fmt.Sprintf("%d", p))
	}
	return strings.Join(pages, ",")
}

func joinPages(a, b string) string {
	seen := make(map[string]struct{})
	var pages []string
	for _, part := range strings.Split(a+","+b, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, dup := seen[part]; dup {
			continue
		}
		seen[part] = struct{}{}
		pages = append(pages, part)
	}
	return strings.Join(pages, ",")
}
