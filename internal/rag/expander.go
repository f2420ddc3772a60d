package rag

import (
	"context"
	"encoding/json"
	"strings"

	"juris-ai/internal/albanian"
	"juris-ai/internal/contextutil"
	"juris-ai/internal/llm"
)

// QueryExpander generates intent-preserving search variants for one
// user question: deterministic normalizations first, then
// domain-taxonomy terms, then LLM reformulations, then diacritical
// spellings. The original question is always variant 0 and expansion
// never fails the turn.
type QueryExpander struct {
	llm         LLMClient
	maxVariants int
}

// NewQueryExpander creates a QueryExpander. maxVariants caps the
// variant list; values below 1 fall back to 12.
func NewQueryExpander(client LLMClient, maxVariants int) *QueryExpander {
	if maxVariants < 1 {
		maxVariants = 12
	}
	return &QueryExpander{llm: client, maxVariants: maxVariants}
}

// Expand returns the deduplicated, capped variant list for a question.
func (x *QueryExpander) Expand(ctx context.Context, question string) []string {
	logger := contextutil.LoggerFromContext(ctx)

	question = strings.TrimSpace(question)
	if question == "" {
		return []string{question}
	}

	variants := []string{question}

	// Deterministic normalizations.
	norm := albanian.NormalizeQuery(question)
	if norm != strings.ToLower(question) {
		variants = append(variants, norm)
	}
	legalNorm := albanian.NormalizeLegalQuery(question)
	if legalNorm != norm {
		variants = append(variants, legalNorm)
	}
	if entities := albanian.ExtractEntities(question); len(entities) > 0 {
		variants = append(variants, strings.Join(entities, " "))
	}
	keywords := albanian.Keywords(question)
	if len(keywords) >= 2 {
		variants = append(variants, strings.Join(keywords, " "))
	}

	// Domain taxonomy terms keep the whole corpus reachable.
	domains := detectDomains(question)
	if len(domains) > 0 {
		names := make([]string, 0, 2)
		for i, d := range domains {
			if i >= 2 {
				break
			}
			names = append(names, d.id)
			variants = append(variants, d.searchTerms...)
		}
		logger.InfoContext(ctx, "legal domains detected", "domains", names)
	}

	// LLM reformulations; provider failure degrades to deterministic
	// variants only.
	llmVariants, err := x.llmVariants(ctx, question, domainHint(domains))
	if err != nil {
		logger.WarnContext(ctx, "llm query expansion failed, deterministic variants only", "error", err)
		variants = append(variants, fallbackVariants(question, domains)...)
	} else {
		variants = append(variants, llmVariants...)
	}

	// Diacritical spellings of the top keywords.
	variants = append(variants, diacriticVariants(question, keywords, variants)...)

	unique := dedupeVariants(variants, x.maxVariants)
	logger.InfoContext(ctx, "query expanded", "variants", len(unique))
	return unique
}

func (x *QueryExpander) llmVariants(ctx context.Context, question, hint string) ([]string, error) {
	raw, err := x.llm.Chat(ctx, []llm.Message{
		{Role: "system", Content: "Gjenero variante kërkimi në format JSON."},
		{Role: "user", Content: BuildExpansionPrompt(question, hint)},
	}, llm.ChatParams{
		Temperature:  0.4,
		MaxTokens:    1000,
		ResponseJSON: true,
	})
	if err != nil {
		return nil, err
	}
	return parseVariantList(raw), nil
}

// parseVariantList tolerantly extracts a string list from the model's
// JSON reply: a bare array, or an object keyed by variants, queries,
// results, or data, or whose first value is a list.
func parseVariantList(raw string) []string {
	raw = strings.TrimSpace(raw)

	var asList []any
	if err := json.Unmarshal([]byte(raw), &asList); err != nil {
		var asObject map[string]any
		if err := json.Unmarshal([]byte(raw), &asObject); err != nil {
			return nil
		}
		for _, key := range []string{"variants", "queries", "results", "data"} {
			if list, ok := asObject[key].([]any); ok {
				asList = list
				break
			}
		}
		if asList == nil {
			for _, v := range asObject {
				if list, ok := v.([]any); ok {
					asList = list
					break
				}
			}
		}
	}

	var out []string
	for _, item := range asList {
		if s, ok := item.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// fallbackVariants adds deterministic variants when the LLM is down.
func fallbackVariants(question string, domains []legalDomain) []string {
	var variants []string

	clean := strings.TrimSpace(strings.TrimRight(question, "?!."))
	if clean != question {
		variants = append(variants, clean)
	}

	words := albanian.Keywords(question)
	if len(words) >= 3 {
		n := len(words)
		if n > 5 {
			n = 5
		}
		variants = append(variants, strings.Join(words[:n], " "))
	}

	for i, d := range domains {
		if i >= 2 {
			break
		}
		n := len(d.searchTerms)
		if n > 2 {
			n = 2
		}
		variants = append(variants, d.searchTerms[:n]...)
	}
	return variants
}

// diacriticVariants rewrites the question with alternate diacritical
// spellings of its leading keywords, one new variant per keyword.
func diacriticVariants(question string, keywords, existing []string) []string {
	lowerExisting := make(map[string]struct{}, len(existing))
	for _, v := range existing {
		lowerExisting[strings.ToLower(v)] = struct{}{}
	}

	lowerQuestion := strings.ToLower(question)
	var out []string
	for i, kw := range keywords {
		if i >= 4 {
			break
		}
		for _, dv := range albanian.ExpandDiacriticVariants(kw) {
			if dv == kw {
				continue
			}
			rewritten := strings.ReplaceAll(lowerQuestion, kw, dv)
			if _, dup := lowerExisting[strings.ToLower(rewritten)]; !dup {
				lowerExisting[strings.ToLower(rewritten)] = struct{}{}
				out = append(out, rewritten)
				break
			}
		}
	}
	return out
}

func dedupeVariants(variants []string, limit int) []string {
	seen := make(map[string]struct{}, len(variants))
	unique := make([]string, 0, len(variants))
	for _, v := range variants {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, v)
		if len(unique) == limit {
			break
		}
	}
	return unique
}
