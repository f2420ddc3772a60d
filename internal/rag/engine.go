package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"juris-ai/internal/contextutil"
	"juris-ai/internal/llm"
)

// Config tunes the full pipeline for one Engine.
type Config struct {
	// MaxVariants caps query expansion output.
	MaxVariants int
	// MaxChunks bounds the ranked set fed to the stitcher.
	MaxChunks int
	// MultiQueryBoost weights the cross-variant consensus boost.
	MultiQueryBoost float64
	// MinSimilarity is the confidence gate threshold.
	MinSimilarity float32
	// CoverageMaxPasses bounds the coverage self-check loop.
	CoverageMaxPasses int
	// CoverageExtraK is the per-gap-query retrieval size.
	CoverageExtraK int
	// AnswerMaxTokens and Temperature shape answer generation.
	AnswerMaxTokens int
	Temperature     float32
	// MaxSourceGroups caps the grouped citation display.
	MaxSourceGroups int
}

// DefaultConfig returns the tuning the service ships with. The
// similarity threshold and boost weights are empirical, exposed
// through configuration rather than fixed.
func DefaultConfig() Config {
	return Config{
		MaxVariants:       12,
		MaxChunks:         12,
		MultiQueryBoost:   0.012,
		MinSimilarity:     0.25,
		CoverageMaxPasses: 2,
		CoverageExtraK:    4,
		AnswerMaxTokens:   3000,
		Temperature:       0.05,
		MaxSourceGroups:   5,
	}
}

// maxGapQueries bounds per-pass gap retrieval fan-out.
const maxGapQueries = 4

// Engine runs the full retrieval-and-answer pipeline for one chat
// turn: expand, retrieve, rank, gate, stitch, generate, coverage
// self-check. Engines are stateless across requests and safe for
// concurrent use.
type Engine struct {
	expander  *QueryExpander
	retriever *HybridRetriever
	stitcher  *ContextStitcher
	judge     CoverageJudge
	llm       LLMClient
	cfg       Config
}

// NewEngine creates an Engine.
func NewEngine(expander *QueryExpander, retriever *HybridRetriever, stitcher *ContextStitcher, judge CoverageJudge, client LLMClient, cfg Config) *Engine {
	return &Engine{
		expander:  expander,
		retriever: retriever,
		stitcher:  stitcher,
		judge:     judge,
		llm:       client,
		cfg:       cfg,
	}
}

// turnState carries one request's pipeline intermediates.
type turnState struct {
	variants     []string
	stats        []QueryStats
	ranked       []RankedChunk
	gate         GateDecision
	candidates   int
	contextParts []string
	allSources   []Source
	existingKeys map[string]struct{}
	expandMs     int64
	searchMs     int64
	stitchMs     int64
}

func (s *turnState) metrics() Metrics {
	return Metrics{
		ExpandTimeMs:    s.expandMs,
		SearchTimeMs:    s.searchMs,
		StitchTimeMs:    s.stitchMs,
		ChunksUsed:      len(s.ranked),
		ChunksRetrieved: s.candidates,
		QueriesUsed:     len(s.variants),
		TopSimilarity:   round4(float64(s.gate.TopSimilarity)),
	}
}

func (s *turnState) debug() *DebugInfo {
	return &DebugInfo{
		QueryVariants: s.variants,
		PerQuery:      s.stats,
		FinalRanking:  rankingEntries(s.ranked),
	}
}

func rankingEntries(ranked []RankedChunk) []RankingEntry {
	entries := make([]RankingEntry, 0, len(ranked))
	for _, rc := range ranked {
		entries = append(entries, RankingEntry{
			FinalScore:      rc.Score,
			Similarity:      round4(float64(rc.Similarity)),
			QueryHits:       rc.QueryHits,
			MultiQueryBoost: rc.MultiQueryBoost,
			Article:         rc.Chunk.Article,
			Sources:         rc.Sources,
			TextPreview:     preview(rc.Chunk.Text),
		})
	}
	return entries
}

// retrievalK widens the per-variant fetch size as expansion produces
// more variants, so the ranker keeps enough cross-variant signal.
func (e *Engine) retrievalK(numVariants int) int {
	k := e.retriever.cfg.FetchK + 4*numVariants
	if limit := 3 * e.retriever.cfg.FetchK; k > limit {
		k = limit
	}
	return k
}

// prepare runs expansion, retrieval, ranking, the confidence gate,
// and stitching. A non-nil AskResponse is a blocked outcome (no
// evidence or low confidence) ready to return to the caller.
func (e *Engine) prepare(ctx context.Context, req AskRequest) (*turnState, *AskResponse) {
	logger := contextutil.LoggerFromContext(ctx)
	state := &turnState{}

	start := time.Now()
	state.variants = e.expander.Expand(ctx, req.Question)
	state.expandMs = time.Since(start).Milliseconds()

	start = time.Now()
	perVariant, stats := e.retriever.SearchAll(ctx, state.variants, req.DocumentID, e.retrievalK(len(state.variants)))
	state.stats = stats
	for _, candidates := range perVariant {
		state.candidates += len(candidates)
	}

	ranked := MergeVariants(perVariant, e.cfg.MultiQueryBoost, e.cfg.MaxChunks)
	state.searchMs = time.Since(start).Milliseconds()

	state.gate = EvaluateConfidence(ranked, e.cfg.MinSimilarity)
	if !state.gate.Pass {
		answer := NoContextResponse
		if len(ranked) > 0 {
			// Evidence existed but similarity fell short.
			answer = NoContextResponse + "\n\n" + SuggestRephrase
			logger.InfoContext(ctx, "confidence gate blocked",
				"top_similarity", state.gate.TopSimilarity, "threshold", e.cfg.MinSimilarity)
		} else {
			logger.InfoContext(ctx, "no chunks retrieved", "question", preview(req.Question))
		}

		resp := &AskResponse{
			Answer:       answer,
			SessionID:    req.SessionID,
			ContextFound: false,
			Metrics:      state.metrics(),
		}
		if req.Debug {
			resp.Debug = state.debug()
		}
		return state, resp
	}

	start = time.Now()
	state.ranked = e.stitcher.Stitch(ctx, ranked)
	state.stitchMs = time.Since(start).Milliseconds()

	state.contextParts, state.allSources = BuildContext(state.ranked, 0)
	state.existingKeys = make(map[string]struct{}, len(state.ranked))
	for _, rc := range state.ranked {
		state.existingKeys[rc.Chunk.Key()] = struct{}{}
	}

	return state, nil
}

// Ask runs one non-streaming turn.
func (e *Engine) Ask(ctx context.Context, req AskRequest) (AskResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	state, blocked := e.prepare(ctx, req)
	if blocked != nil {
		return *blocked, nil
	}

	messages := BuildAnswerMessages(strings.Join(state.contextParts, "\n\n"), req.Question, req.History)

	genStart := time.Now()
	answer, err := e.llm.Chat(ctx, messages, e.answerParams())
	if err != nil {
		logger.ErrorContext(ctx, "answer generation failed", "error", err)
		return AskResponse{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	genMs := time.Since(genStart).Milliseconds()

	cov := e.runCoverage(ctx, req, state, answer, nil)

	resp := AskResponse{
		Answer:       cov.answer,
		Sources:      GroupSources(state.allSources, e.cfg.MaxSourceGroups),
		AllSources:   state.allSources,
		SessionID:    req.SessionID,
		ContextFound: true,
		Degraded:     cov.degraded,
		Metrics:      state.metrics(),
	}
	resp.GenerationTimeMs = genMs + cov.genMs
	resp.CoverageCheckMs = cov.elapsedMs
	resp.CoveragePasses = len(cov.passes)
	resp.ChunksUsed = len(state.ranked)

	if req.Debug {
		resp.Debug = state.debug()
		resp.Debug.CoveragePasses = cov.passes
	}

	logger.InfoContext(ctx, "turn complete",
		"answer_chars", len(resp.Answer),
		"chunks_used", resp.ChunksUsed,
		"queries_used", resp.QueriesUsed,
		"coverage_passes", resp.CoveragePasses,
	)
	return resp, nil
}

// Stream runs one turn, producing typed events on the returned
// channel: status updates, answer fragments, one sources event, then
// a terminal done event. The channel closes after the done event.
// Cancelling ctx stops generation promptly.
func (e *Engine) Stream(ctx context.Context, req AskRequest) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)
		logger := contextutil.LoggerFromContext(ctx)

		emit := func(ev Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit(Event{Type: EventStatus, Text: "Duke analizuar pyetjen..."}) {
			return
		}

		state, blocked := e.prepare(ctx, req)
		if blocked != nil {
			emit(Event{Type: EventChunk, Text: blocked.Answer})
			emit(Event{Type: EventDone, Result: blocked})
			return
		}

		emit(Event{Type: EventStatus, Text: fmt.Sprintf(
			"U gjetën %d fragmente nga %d kandidatë. Duke gjeneruar përgjigjen...",
			len(state.ranked), state.candidates)})

		messages := BuildAnswerMessages(strings.Join(state.contextParts, "\n\n"), req.Question, req.History)

		var answer strings.Builder
		genStart := time.Now()
		err := e.llm.StreamChat(ctx, messages, e.answerParams(), func(chunk string) error {
			answer.WriteString(chunk)
			if !emit(Event{Type: EventChunk, Text: chunk}) {
				return ctx.Err()
			}
			return nil
		})
		genMs := time.Since(genStart).Milliseconds()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.ErrorContext(ctx, "streaming generation failed", "error", err)
			emit(Event{Type: EventDone, Err: fmt.Errorf("%w: %v", ErrProviderUnavailable, err)})
			return
		}

		cov := e.runCoverage(ctx, req, state, answer.String(), emit)

		resp := &AskResponse{
			Answer:       cov.answer,
			Sources:      GroupSources(state.allSources, e.cfg.MaxSourceGroups),
			AllSources:   state.allSources,
			SessionID:    req.SessionID,
			ContextFound: true,
			Degraded:     cov.degraded,
			Metrics:      state.metrics(),
		}
		resp.GenerationTimeMs = genMs + cov.genMs
		resp.CoverageCheckMs = cov.elapsedMs
		resp.CoveragePasses = len(cov.passes)
		resp.ChunksUsed = len(state.ranked)
		if req.Debug {
			resp.Debug = state.debug()
			resp.Debug.CoveragePasses = cov.passes
		}

		emit(Event{Type: EventSources, Sources: resp.Sources, AllSources: resp.AllSources})
		emit(Event{Type: EventDone, Result: resp})
	}()

	return events
}

func (e *Engine) answerParams() llm.ChatParams {
	return llm.ChatParams{
		MaxTokens:   e.cfg.AnswerMaxTokens,
		Temperature: e.cfg.Temperature,
	}
}

// coverageOutcome is the coverage loop's result.
type coverageOutcome struct {
	answer    string
	passes    []CoveragePass
	elapsedMs int64
	genMs     int64
	degraded  bool
}

// runCoverage loops the coverage self-check up to CoverageMaxPasses.
// Each pass with gaps runs targeted gap-query retrieval; new evidence
// augments the context and regenerates the answer. A refusal answer
// skips the loop. Judge or provider failure returns the best answer
// so far marked degraded. When emit is non-nil (streaming), a
// regenerated answer is streamed under an update header.
func (e *Engine) runCoverage(ctx context.Context, req AskRequest, state *turnState, answer string, emit func(Event) bool) coverageOutcome {
	logger := contextutil.LoggerFromContext(ctx)
	out := coverageOutcome{answer: answer}

	if e.judge == nil || e.cfg.CoverageMaxPasses < 1 || IsRefusal(answer) {
		return out
	}

	for pass := 1; pass <= e.cfg.CoverageMaxPasses; pass++ {
		passStart := time.Now()

		report, err := e.judge.Check(ctx, req.Question, out.answer)
		if err != nil {
			logger.WarnContext(ctx, "coverage judge failed, keeping current answer", "pass", pass, "error", err)
			out.degraded = true
			out.elapsedMs += time.Since(passStart).Milliseconds()
			return out
		}

		record := CoveragePass{Pass: pass, Status: report.Status, CoveragePct: report.CoveragePct}

		if report.Complete() {
			record.TimeMs = time.Since(passStart).Milliseconds()
			out.elapsedMs += record.TimeMs
			out.passes = append(out.passes, record)
			logger.InfoContext(ctx, "coverage complete", "pass", pass, "coverage_pct", report.CoveragePct)
			return out
		}

		extra := e.gapRetrieve(ctx, req.DocumentID, report.GapQueries, state.existingKeys)
		record.ExtraChunks = len(extra)

		if len(extra) == 0 {
			record.TimeMs = time.Since(passStart).Milliseconds()
			out.elapsedMs += record.TimeMs
			out.passes = append(out.passes, record)
			out.degraded = true
			logger.InfoContext(ctx, "coverage gaps but no new evidence", "pass", pass, "coverage_pct", report.CoveragePct)
			return out
		}

		extra = e.stitcher.Stitch(ctx, extra)
		extraParts, extraSources := BuildContext(extra, len(state.contextParts))
		state.contextParts = append(state.contextParts, extraParts...)
		state.allSources = append(state.allSources, extraSources...)

		messages := BuildAnswerMessages(strings.Join(state.contextParts, "\n\n"), req.Question, req.History)

		genStart := time.Now()
		newAnswer, err := e.regenerate(ctx, messages, emit)
		out.genMs += time.Since(genStart).Milliseconds()
		if err != nil {
			logger.WarnContext(ctx, "coverage regeneration failed, keeping current answer", "pass", pass, "error", err)
			out.degraded = true
			record.TimeMs = time.Since(passStart).Milliseconds()
			out.elapsedMs += record.TimeMs
			out.passes = append(out.passes, record)
			return out
		}
		out.answer = newAnswer

		record.TimeMs = time.Since(passStart).Milliseconds()
		out.elapsedMs += record.TimeMs
		out.passes = append(out.passes, record)
		logger.InfoContext(ctx, "coverage pass regenerated",
			"pass", pass, "coverage_pct", report.CoveragePct, "extra_chunks", record.ExtraChunks)
	}

	// Pass budget exhausted without a COMPLETE verdict.
	out.degraded = true
	return out
}

// supplementHeader precedes a regenerated answer in streaming mode.
const supplementHeader = "\n\n---\n**Përgjigje e përditësuar (pas verifikimit):**\n"

func (e *Engine) regenerate(ctx context.Context, messages []llm.Message, emit func(Event) bool) (string, error) {
	if emit == nil {
		return e.llm.Chat(ctx, messages, e.answerParams())
	}

	if !emit(Event{Type: EventChunk, Text: supplementHeader}) {
		return "", ctx.Err()
	}
	var regenerated strings.Builder
	err := e.llm.StreamChat(ctx, messages, e.answerParams(), func(chunk string) error {
		regenerated.WriteString(chunk)
		if !emit(Event{Type: EventChunk, Text: chunk}) {
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return regenerated.String(), nil
}

// gapRetrieve runs targeted hybrid retrieval for the judge's gap
// queries, deduplicating against chunks already in the context.
func (e *Engine) gapRetrieve(ctx context.Context, documentID string, gapQueries []string, existingKeys map[string]struct{}) []RankedChunk {
	logger := contextutil.LoggerFromContext(ctx)

	if len(gapQueries) > maxGapQueries {
		gapQueries = gapQueries[:maxGapQueries]
	}

	var extra []RankedChunk
	for _, gq := range gapQueries {
		candidates, err := e.retriever.Search(ctx, gq, documentID, e.cfg.CoverageExtraK)
		if err != nil {
			logger.WarnContext(ctx, "gap retrieval failed", "query", preview(gq), "error", err)
			continue
		}
		for _, cand := range candidates {
			key := cand.Chunk.Key()
			if _, seen := existingKeys[key]; seen {
				continue
			}
			existingKeys[key] = struct{}{}
			extra = append(extra, RankedChunk{
				Chunk:      cand.Chunk,
				Similarity: cand.Similarity,
				QueryHits:  1,
				BaseScore:  cand.Score,
				Score:      cand.Score,
				Sources:    cand.Sources,
			})
		}
	}
	return extra
}
