package rag

import (
	"context"

	"juris-ai/internal/llm"
	"juris-ai/internal/storage"
	"juris-ai/internal/vectorstore"
)

// fakeLLM is a func-backed LLMClient for tests.
type fakeLLM struct {
	chatFn   func(ctx context.Context, messages []llm.Message, params llm.ChatParams) (string, error)
	streamFn func(ctx context.Context, messages []llm.Message, params llm.ChatParams, callback func(string) error) error
}

func (f *fakeLLM) Chat(ctx context.Context, messages []llm.Message, params llm.ChatParams) (string, error) {
	if f.chatFn == nil {
		return "", nil
	}
	return f.chatFn(ctx, messages, params)
}

func (f *fakeLLM) StreamChat(ctx context.Context, messages []llm.Message, params llm.ChatParams, callback func(string) error) error {
	if f.streamFn == nil {
		return nil
	}
	return f.streamFn(ctx, messages, params, callback)
}

// fakeEmbedder returns the same vector for every text.
type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

// fakeVectorStore serves canned search results, optionally per query
// via searchFn.
type fakeVectorStore struct {
	results  []vectorstore.SearchResult
	err      error
	searchFn func(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]vectorstore.SearchResult, error)
}

func (f *fakeVectorStore) Upsert(context.Context, string, []vectorstore.Point) error { return nil }

func (f *fakeVectorStore) Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]vectorstore.SearchResult, error) {
	if f.searchFn != nil {
		return f.searchFn(ctx, collection, query, k, filters)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeVectorStore) Delete(context.Context, string, []string) error { return nil }

func (f *fakeVectorStore) CollectionExists(context.Context, string) (bool, error) { return true, nil }

func (f *fakeVectorStore) EnsureCollection(context.Context, string, int) error { return nil }

func (f *fakeVectorStore) GetCollectionInfo(context.Context, string) (*vectorstore.CollectionInfo, error) {
	return &vectorstore.CollectionInfo{Status: "green"}, nil
}

// fakeChunkStore serves canned keyword hits and neighbor ranges.
type fakeChunkStore struct {
	hits      []storage.KeywordHit
	searchErr error
	neighbors map[string][]storage.ChunkRecord
	rangeErr  error
	lastLimit int
}

func (f *fakeChunkStore) Insert(context.Context, storage.ChunkRecord) error { return nil }

func (f *fakeChunkStore) GetByID(context.Context, string) (*storage.ChunkRecord, error) {
	return nil, storage.ErrNotFound
}

func (f *fakeChunkStore) GetByPositionRange(_ context.Context, documentID string, from, to int) ([]storage.ChunkRecord, error) {
	if f.rangeErr != nil {
		return nil, f.rangeErr
	}
	var out []storage.ChunkRecord
	for _, rec := range f.neighbors[documentID] {
		if rec.Position >= from && rec.Position <= to {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeChunkStore) KeywordSearch(_ context.Context, _ string, _ string, limit int) ([]storage.KeywordHit, error) {
	f.lastLimit = limit
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func (f *fakeChunkStore) ListIDsByDocument(context.Context, string) ([]string, error) {
	return nil, nil
}

func (f *fakeChunkStore) DeleteByDocument(context.Context, string) error { return nil }

// fakeJudge is a func-backed CoverageJudge.
type fakeJudge struct {
	checkFn func(ctx context.Context, question, answer string) (CoverageReport, error)
}

func (f *fakeJudge) Check(ctx context.Context, question, answer string) (CoverageReport, error) {
	if f.checkFn == nil {
		return CoverageReport{Status: CoverageComplete, CoveragePct: 100}, nil
	}
	return f.checkFn(ctx, question, answer)
}
