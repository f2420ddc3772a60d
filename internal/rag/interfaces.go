package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_collaborators.go -package=mocks juris-ai/internal/rag Embedder,LLMClient,CoverageJudge

import (
	"context"

	"juris-ai/internal/llm"
)

// Embedder turns texts into fixed-length vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// LLMClient is the chat completion provider used for query expansion,
// answer generation, and the coverage judge.
type LLMClient interface {
	Chat(ctx context.Context, messages []llm.Message, params llm.ChatParams) (string, error)
	StreamChat(ctx context.Context, messages []llm.Message, params llm.ChatParams, callback func(chunk string) error) error
}
