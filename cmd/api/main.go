package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"juris-ai/internal/config"
	"juris-ai/internal/handlers"
	"juris-ai/internal/http"
	"juris-ai/internal/indexer"
	"juris-ai/internal/llm"
	"juris-ai/internal/rag"
	"juris-ai/internal/storage"
	"juris-ai/internal/vectorstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	documentRepo := storage.NewDocumentRepo(db)
	chunkRepo := storage.NewChunkRepo(db)

	ctx := context.Background()

	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}
	if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.QdrantVectorSize); err != nil {
		log.Fatalf("Failed to ensure Qdrant collection: %v", err)
	}
	slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize)

	// Fail fast on an embeddings/collection dimension mismatch.
	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize)
	if err := embedder.Validate(ctx); err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	slog.Info("Embedding client validated", "vector_size", cfg.QdrantVectorSize)

	pipeline, err := indexer.NewPipeline(documentRepo, chunkRepo, embedder, vectorStore, cfg.QdrantCollection)
	if err != nil {
		log.Fatalf("Failed to create indexing pipeline: %v", err)
	}

	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)

	engineCfg := rag.DefaultConfig()
	engineCfg.MaxVariants = cfg.MaxVariants
	engineCfg.MaxChunks = cfg.MaxChunks
	engineCfg.MinSimilarity = float32(cfg.MinSimilarity)
	engineCfg.MultiQueryBoost = cfg.MultiQueryBoost
	engineCfg.CoverageMaxPasses = cfg.CoverageMaxPasses
	engineCfg.CoverageExtraK = cfg.CoverageExtraK

	expander := rag.NewQueryExpander(llmClient, cfg.MaxVariants)
	retriever := rag.NewHybridRetriever(embedder, vectorStore, chunkRepo, rag.RetrieverConfig{
		Collection:    cfg.QdrantCollection,
		FetchK:        cfg.FetchK,
		VectorWeight:  cfg.VectorWeight,
		KeywordWeight: cfg.KeywordWeight,
	})
	stitcher := rag.NewContextStitcher(chunkRepo, cfg.StitchWindow, cfg.ContextCharBudget)
	judge := rag.NewLLMCoverageJudge(llmClient)

	engine := rag.NewEngine(expander, retriever, stitcher, judge, llmClient, engineCfg)
	slog.Info("Answer engine initialized",
		"min_similarity", cfg.MinSimilarity, "fetch_k", cfg.FetchK, "coverage_passes", cfg.CoverageMaxPasses)

	deps := &http.Deps{
		Chat:      handlers.NewChatHandler(engine, cfg.AdminToken),
		Documents: handlers.NewDocumentsHandler(pipeline, documentRepo, cfg.EmbeddingModelName),
		Health:    handlers.NewHealthHandler(vectorStore, db, cfg.QdrantCollection),
	}
	router := http.NewRouter(deps)

	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
