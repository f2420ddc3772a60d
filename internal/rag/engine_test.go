package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"juris-ai/internal/llm"
	"juris-ai/internal/storage"
	"juris-ai/internal/vectorstore"
)

func newTestEngine(vectors vectorstore.VectorStore, chunks storage.ChunkStore, answerLLM LLMClient, judge CoverageJudge) *Engine {
	expander := NewQueryExpander(&fakeLLM{
		chatFn: func(context.Context, []llm.Message, llm.ChatParams) (string, error) {
			return "", errors.New("expansion offline")
		},
	}, 4)
	retriever := NewHybridRetriever(&fakeEmbedder{vec: []float32{0.1}}, vectors, chunks,
		RetrieverConfig{Collection: "legal_chunks"})
	stitcher := NewContextStitcher(chunks, 0, 0)
	return NewEngine(expander, retriever, stitcher, judge, answerLLM, DefaultConfig())
}

func askQuestion() AskRequest {
	return AskRequest{Question: "Sa ditë pushimi vjetor më takojnë?", SessionID: "s1"}
}

func TestAskNoEvidence(t *testing.T) {
	engine := newTestEngine(&fakeVectorStore{}, &fakeChunkStore{}, &fakeLLM{}, &fakeJudge{})

	resp, err := engine.Ask(context.Background(), askQuestion())
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if resp.ContextFound {
		t.Error("ContextFound must be false with no evidence")
	}
	if resp.Answer != NoContextResponse {
		t.Errorf("Answer = %q, want the no-context response", resp.Answer)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("blocked turn must cite nothing, got %v", resp.Sources)
	}
}

func TestAskLowConfidence(t *testing.T) {
	vectors := &fakeVectorStore{results: []vectorstore.SearchResult{vecResult("doc1", 0, 0.10)}}
	engine := newTestEngine(vectors, &fakeChunkStore{}, &fakeLLM{}, &fakeJudge{})

	resp, err := engine.Ask(context.Background(), askQuestion())
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if resp.ContextFound {
		t.Error("low-similarity evidence must block")
	}
	if !strings.Contains(resp.Answer, SuggestRephrase) {
		t.Errorf("blocked-with-evidence answer should suggest rephrasing, got %q", resp.Answer)
	}
}

func TestAskGeneratesAnswer(t *testing.T) {
	vectors := &fakeVectorStore{results: []vectorstore.SearchResult{vecResult("doc1", 0, 0.9)}}
	answerLLM := &fakeLLM{
		chatFn: func(_ context.Context, messages []llm.Message, _ llm.ChatParams) (string, error) {
			if messages[0].Content != SystemPrompt {
				t.Error("generation must lead with the system prompt")
			}
			return "**Përgjigja:** Pushimi vjetor zgjat katër javë.", nil
		},
	}

	engine := newTestEngine(vectors, &fakeChunkStore{}, answerLLM, &fakeJudge{})
	resp, err := engine.Ask(context.Background(), askQuestion())
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !resp.ContextFound {
		t.Fatal("ContextFound must be true")
	}
	if !strings.Contains(resp.Answer, "katër javë") {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].DocumentID != "doc1" {
		t.Errorf("Sources = %+v, want one doc1 group", resp.Sources)
	}
	if resp.Degraded {
		t.Error("clean turn must not be degraded")
	}
	if resp.CoveragePasses != 1 {
		t.Errorf("CoveragePasses = %d, want 1", resp.CoveragePasses)
	}
	if resp.SessionID != "s1" {
		t.Errorf("SessionID = %q", resp.SessionID)
	}
}

func TestAskProviderFailure(t *testing.T) {
	vectors := &fakeVectorStore{results: []vectorstore.SearchResult{vecResult("doc1", 0, 0.9)}}
	answerLLM := &fakeLLM{
		chatFn: func(context.Context, []llm.Message, llm.ChatParams) (string, error) {
			return "", errors.New("upstream 502")
		},
	}

	engine := newTestEngine(vectors, &fakeChunkStore{}, answerLLM, &fakeJudge{})
	_, err := engine.Ask(context.Background(), askQuestion())
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("error = %v, want ErrProviderUnavailable", err)
	}
}

func TestAskRefusalSkipsCoverage(t *testing.T) {
	vectors := &fakeVectorStore{results: []vectorstore.SearchResult{vecResult("doc1", 0, 0.9)}}
	answerLLM := &fakeLLM{
		chatFn: func(context.Context, []llm.Message, llm.ChatParams) (string, error) {
			return NoContextResponse, nil
		},
	}
	judge := &fakeJudge{
		checkFn: func(context.Context, string, string) (CoverageReport, error) {
			t.Error("coverage judge must not run on a refusal")
			return CoverageReport{}, nil
		},
	}

	engine := newTestEngine(vectors, &fakeChunkStore{}, answerLLM, judge)
	resp, err := engine.Ask(context.Background(), askQuestion())
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if resp.CoveragePasses != 0 {
		t.Errorf("CoveragePasses = %d, want 0", resp.CoveragePasses)
	}
}

// gapChunkStore serves a keyword hit only for the coverage gap query.
type gapChunkStore struct {
	fakeChunkStore
	gapQuery string
	gapHit   storage.KeywordHit
}

func (g *gapChunkStore) KeywordSearch(_ context.Context, query, _ string, _ int) ([]storage.KeywordHit, error) {
	if strings.Contains(query, g.gapQuery) {
		return []storage.KeywordHit{g.gapHit}, nil
	}
	return nil, nil
}

func TestAskCoverageLoopAddsEvidence(t *testing.T) {
	vectors := &fakeVectorStore{results: []vectorstore.SearchResult{vecResult("doc1", 0, 0.9)}}
	chunks := &gapChunkStore{
		gapQuery: "afati i ankimit",
		gapHit: storage.KeywordHit{
			ChunkRecord: storage.ChunkRecord{
				DocumentID: "doc2", Position: 7, Content: "Afati i ankimit është 15 ditë.",
			},
			Title: "Kodi i Procedurave",
		},
	}

	generations := 0
	answerLLM := &fakeLLM{
		chatFn: func(context.Context, []llm.Message, llm.ChatParams) (string, error) {
			generations++
			if generations == 1 {
				return "Përgjigja e parë pa afatin e ankimit.", nil
			}
			return "Përgjigja e plotësuar me afatin 15 ditë.", nil
		},
	}

	checks := 0
	judge := &fakeJudge{
		checkFn: func(context.Context, string, string) (CoverageReport, error) {
			checks++
			if checks == 1 {
				return CoverageReport{
					Status:      CoverageGaps,
					CoveragePct: 60,
					GapQueries:  []string{"afati i ankimit"},
				}, nil
			}
			return CoverageReport{Status: CoverageComplete, CoveragePct: 100}, nil
		},
	}

	engine := newTestEngine(vectors, chunks, answerLLM, judge)
	req := askQuestion()
	req.Debug = true

	resp, err := engine.Ask(context.Background(), req)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !strings.Contains(resp.Answer, "plotësuar") {
		t.Errorf("Answer = %q, want the regenerated answer", resp.Answer)
	}
	if resp.CoveragePasses != 2 {
		t.Errorf("CoveragePasses = %d, want 2", resp.CoveragePasses)
	}
	if resp.Degraded {
		t.Error("successful coverage loop must not be degraded")
	}

	var foundGapSource bool
	for _, s := range resp.AllSources {
		if s.DocumentID == "doc2" {
			foundGapSource = true
		}
	}
	if !foundGapSource {
		t.Errorf("gap evidence missing from AllSources: %+v", resp.AllSources)
	}

	if resp.Debug == nil || len(resp.Debug.CoveragePasses) != 2 {
		t.Fatalf("Debug.CoveragePasses missing: %+v", resp.Debug)
	}
	if resp.Debug.CoveragePasses[0].ExtraChunks != 1 {
		t.Errorf("pass 1 ExtraChunks = %d, want 1", resp.Debug.CoveragePasses[0].ExtraChunks)
	}
}

// endlessGapStore serves a fresh keyword hit for every gap query, so
// each coverage pass finds new evidence.
type endlessGapStore struct {
	fakeChunkStore
	gapQuery string
	calls    int
}

func (g *endlessGapStore) KeywordSearch(_ context.Context, query, _ string, _ int) ([]storage.KeywordHit, error) {
	if !strings.Contains(query, g.gapQuery) {
		return nil, nil
	}
	g.calls++
	return []storage.KeywordHit{{
		ChunkRecord: storage.ChunkRecord{
			DocumentID: "doc2", Position: g.calls, Content: "Fragment shtesë për ankimin.",
		},
	}}, nil
}

func TestAskCoverageLoopStopsAtMaxPasses(t *testing.T) {
	vectors := &fakeVectorStore{results: []vectorstore.SearchResult{vecResult("doc1", 0, 0.9)}}
	chunks := &endlessGapStore{gapQuery: "afati i ankimit"}

	generations := 0
	answerLLM := &fakeLLM{
		chatFn: func(context.Context, []llm.Message, llm.ChatParams) (string, error) {
			generations++
			return "Përgjigja ende e pjesshme.", nil
		},
	}

	checks := 0
	judge := &fakeJudge{
		checkFn: func(context.Context, string, string) (CoverageReport, error) {
			checks++
			return CoverageReport{
				Status:      CoverageGaps,
				CoveragePct: 60,
				GapQueries:  []string{"afati i ankimit"},
			}, nil
		},
	}

	engine := newTestEngine(vectors, chunks, answerLLM, judge)
	resp, err := engine.Ask(context.Background(), askQuestion())
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	maxPasses := DefaultConfig().CoverageMaxPasses
	if checks != maxPasses {
		t.Errorf("judge ran %d times, want exactly %d", checks, maxPasses)
	}
	if resp.CoveragePasses != maxPasses {
		t.Errorf("CoveragePasses = %d, want %d", resp.CoveragePasses, maxPasses)
	}
	if generations != 1+maxPasses {
		t.Errorf("generations = %d, want initial answer plus one regeneration per pass", generations)
	}
	if !resp.Degraded {
		t.Error("exhausting the pass budget with gaps remaining must mark the response degraded")
	}
}

func TestAskJudgeFailureDegrades(t *testing.T) {
	vectors := &fakeVectorStore{results: []vectorstore.SearchResult{vecResult("doc1", 0, 0.9)}}
	answerLLM := &fakeLLM{
		chatFn: func(context.Context, []llm.Message, llm.ChatParams) (string, error) {
			return "Përgjigja e parë.", nil
		},
	}
	judge := &fakeJudge{
		checkFn: func(context.Context, string, string) (CoverageReport, error) {
			return CoverageReport{}, errors.New("judge timeout")
		},
	}

	engine := newTestEngine(vectors, &fakeChunkStore{}, answerLLM, judge)
	resp, err := engine.Ask(context.Background(), askQuestion())
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !resp.Degraded {
		t.Error("judge failure must mark the response degraded")
	}
	if resp.Answer != "Përgjigja e parë." {
		t.Errorf("Answer = %q, want the first-pass answer kept", resp.Answer)
	}
}

func TestStreamEventOrder(t *testing.T) {
	vectors := &fakeVectorStore{results: []vectorstore.SearchResult{vecResult("doc1", 0, 0.9)}}
	answerLLM := &fakeLLM{
		streamFn: func(_ context.Context, _ []llm.Message, _ llm.ChatParams, callback func(string) error) error {
			for _, part := range []string{"Pushimi vjetor ", "zgjat katër javë."} {
				if err := callback(part); err != nil {
					return err
				}
			}
			return nil
		},
	}

	engine := newTestEngine(vectors, &fakeChunkStore{}, answerLLM, &fakeJudge{})

	var events []Event
	for ev := range engine.Stream(context.Background(), askQuestion()) {
		events = append(events, ev)
	}
	if len(events) == 0 {
		t.Fatal("expected events")
	}

	if events[0].Type != EventStatus {
		t.Errorf("first event = %s, want status", events[0].Type)
	}

	last := events[len(events)-1]
	if last.Type != EventDone {
		t.Fatalf("last event = %s, want done", last.Type)
	}
	if last.Result == nil || !last.Result.ContextFound {
		t.Fatalf("done event missing result: %+v", last)
	}
	if last.Result.Answer != "Pushimi vjetor zgjat katër javë." {
		t.Errorf("Answer = %q", last.Result.Answer)
	}

	var sourcesEvents, chunksAfterSources int
	seenSources := false
	for _, ev := range events {
		switch ev.Type {
		case EventSources:
			sourcesEvents++
			seenSources = true
		case EventChunk:
			if seenSources {
				chunksAfterSources++
			}
		}
	}
	if sourcesEvents != 1 {
		t.Errorf("sources events = %d, want exactly 1", sourcesEvents)
	}
	if chunksAfterSources != 0 {
		t.Errorf("%d chunk events after sources", chunksAfterSources)
	}
}

func TestStreamBlocked(t *testing.T) {
	engine := newTestEngine(&fakeVectorStore{}, &fakeChunkStore{}, &fakeLLM{}, &fakeJudge{})

	var events []Event
	for ev := range engine.Stream(context.Background(), askQuestion()) {
		events = append(events, ev)
	}

	var sawRefusalChunk, sawSources bool
	for _, ev := range events {
		if ev.Type == EventChunk && ev.Text == NoContextResponse {
			sawRefusalChunk = true
		}
		if ev.Type == EventSources {
			sawSources = true
		}
	}
	if !sawRefusalChunk {
		t.Error("blocked stream must emit the refusal as a chunk")
	}
	if sawSources {
		t.Error("blocked stream must not emit sources")
	}

	last := events[len(events)-1]
	if last.Type != EventDone || last.Result == nil || last.Result.ContextFound {
		t.Errorf("terminal event wrong: %+v", last)
	}
}

func TestStreamProviderFailure(t *testing.T) {
	vectors := &fakeVectorStore{results: []vectorstore.SearchResult{vecResult("doc1", 0, 0.9)}}
	answerLLM := &fakeLLM{
		streamFn: func(context.Context, []llm.Message, llm.ChatParams, func(string) error) error {
			return errors.New("upstream 502")
		},
	}

	engine := newTestEngine(vectors, &fakeChunkStore{}, answerLLM, &fakeJudge{})

	var last Event
	for ev := range engine.Stream(context.Background(), askQuestion()) {
		last = ev
	}
	if last.Type != EventDone {
		t.Fatalf("last event = %s, want done", last.Type)
	}
	if !errors.Is(last.Err, ErrProviderUnavailable) {
		t.Errorf("done error = %v, want ErrProviderUnavailable", last.Err)
	}
}
