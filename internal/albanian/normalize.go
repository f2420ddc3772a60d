// Package albanian provides text normalization for Albanian-language
// search: diacritic folding, legal term root forms, and keyword
// extraction. It is shared by the query expander, the keyword search
// query builder, and the indexing pipeline.
package albanian

import (
	"regexp"
	"strings"
)

// Albanian uses two diacritical letters. Searches must be
// accent-insensitive, so both directions need handling.
var charFolding = strings.NewReplacer(
	"ë", "e", "Ë", "E",
	"ç", "c", "Ç", "C",
)

// Inflected legal terms mapped to a canonical root so that
// "nenit 57" and "neni 57" match the same chunks.
var legalRoots = map[string]string{
	"nene":        "neni",
	"nenin":       "neni",
	"nenit":       "neni",
	"neneve":      "neni",
	"ligji":       "ligj",
	"ligjin":      "ligj",
	"ligjit":      "ligj",
	"ligjeve":     "ligj",
	"kushtetuta":  "kushtetute",
	"kushtetutes": "kushtetute",
	"kushtetuese": "kushtetute",
	"kodi":        "kod",
	"kodit":       "kod",
	"kodeve":      "kod",
	"gjykata":     "gjykate",
	"gjykates":    "gjykate",
	"gjykatave":   "gjykate",
	"vendimi":     "vendim",
	"vendimit":    "vendim",
	"vendimeve":   "vendim",
	"kontrata":    "kontrate",
	"kontrates":   "kontrate",
	"kontratave":  "kontrate",
	"pronesia":    "pronesi",
	"pronesise":   "pronesi",
	"detyrimi":    "detyrim",
	"detyrimit":   "detyrim",
	"detyrimeve":  "detyrim",
	"drejta":      "drejte",
	"drejtes":     "drejte",
	"drejtave":    "drejte",
	"arsimi":      "arsim",
	"arsimin":     "arsim",
	"arsimit":     "arsim",
	"arsimor":     "arsim",
	"pushimi":     "pushim",
	"pushimit":    "pushim",
	"pushimeve":   "pushim",
}

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(
		"dhe ose per nga nje tek te ne me se ka si do jane eshte nuk qe i e " +
			"ky kjo keto ato por nese edhe mund duhet cfare cilat cili kane") {
		stopwords[w] = struct{}{}
	}
}

var (
	wordRe       = regexp.MustCompile(`\pL[\pL\pN]{1,}|\pN{2,}`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	articleRe    = regexp.MustCompile(`[Nn]eni\s+(\d+)`)
	lawRefRe     = regexp.MustCompile(`[Ll]igj(?:i|in|it)?\s+[Nn]r\.?\s*[\d/.]+`)
	codeRefRe    = regexp.MustCompile(`[Kk]od(?:i|it|in)?\s+\pL+`)
	dateRe       = regexp.MustCompile(`\d{1,2}[./]\d{1,2}[./]\d{2,4}`)
	numberRe     = regexp.MustCompile(`\b\d{2,}\b`)
)

// Fold strips Albanian diacritics (ë→e, ç→c) and collapses whitespace.
// Case is preserved so legal references like "Neni 57" remain intact.
func Fold(text string) string {
	if text == "" {
		return ""
	}
	folded := charFolding.Replace(text)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(folded, " "))
}

// NormalizeQuery folds diacritics and lowercases, the canonical form
// used for matching user queries against indexed text.
func NormalizeQuery(query string) string {
	return strings.ToLower(Fold(query))
}

// LegalRoot returns the canonical root of an inflected legal term,
// or "" if the word is not a known legal term.
func LegalRoot(word string) string {
	return legalRoots[NormalizeQuery(word)]
}

// NormalizeLegalQuery rewrites every word of the query to its legal
// root form when one exists, otherwise to its normalized form.
func NormalizeLegalQuery(query string) string {
	words := strings.Fields(query)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if root := LegalRoot(w); root != "" {
			out = append(out, root)
		} else {
			out = append(out, NormalizeQuery(w))
		}
	}
	return strings.Join(out, " ")
}

// ExpandDiacriticVariants returns spellings of a word with and without
// Albanian diacritics, e.g. "drejte" also yields "drejtë". The input
// word is always the first element.
func ExpandDiacriticVariants(word string) []string {
	if word == "" {
		return []string{word}
	}
	variants := []string{word}
	seen := map[string]struct{}{word: {}}

	add := func(v string) {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			variants = append(variants, v)
		}
	}

	add(charFolding.Replace(word))
	add(strings.ReplaceAll(word, "e", "ë"))
	add(strings.ReplaceAll(word, "c", "ç"))

	return variants
}

// Keywords extracts significant lowercase words of length >= 2,
// dropping Albanian stopwords. Used for exact-match boosting and
// keyword-only query variants.
func Keywords(text string) []string {
	words := wordRe.FindAllString(strings.ToLower(text), -1)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := stopwords[w]; !stop {
			out = append(out, w)
		}
	}
	return out
}

// IsStopword reports whether the lowercase word is an Albanian stopword.
func IsStopword(word string) bool {
	_, ok := stopwords[word]
	return ok
}

// ExtractArticleNumbers returns the set of article numbers referenced
// in the text, e.g. "Neni 57" yields {"57"}.
func ExtractArticleNumbers(text string) map[string]struct{} {
	nums := make(map[string]struct{})
	for _, m := range articleRe.FindAllStringSubmatch(text, -1) {
		nums[m[1]] = struct{}{}
	}
	return nums
}

// ExtractEntities pulls legal entities out of a question: article
// references, law numbers, code names, dates, and standalone numbers.
// The result is deduplicated but order-preserving.
func ExtractEntities(text string) []string {
	var found []string
	found = append(found, articleRe.FindAllString(text, -1)...)
	found = append(found, lawRefRe.FindAllString(text, -1)...)
	found = append(found, codeRefRe.FindAllString(text, -1)...)
	found = append(found, dateRe.FindAllString(text, -1)...)
	found = append(found, numberRe.FindAllString(text, -1)...)

	seen := make(map[string]struct{}, len(found))
	out := make([]string, 0, len(found))
	for _, e := range found {
		if _, ok := seen[e]; !ok {
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}
