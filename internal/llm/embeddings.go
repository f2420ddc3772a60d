package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// embedBatchSize bounds texts per embeddings request. Legal documents
// chunk into hundreds of articles, well past what one request accepts.
const embedBatchSize = 16

// EmbeddingsClient is a client for an OpenAI-compatible embeddings
// endpoint. Every returned vector is validated against the configured
// vector size, so a model swap that changes dimensions surfaces as an
// error instead of corrupting the Qdrant collection.
type EmbeddingsClient struct {
	BaseURL    string
	APIKey     string
	Model      string
	VectorSize int
	client     *http.Client
}

// NewEmbeddingsClient creates an embeddings client that validates
// vectors against vectorSize.
func NewEmbeddingsClient(baseURL, apiKey, model string, vectorSize int) *EmbeddingsClient {
	return &EmbeddingsClient{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Model:      model,
		VectorSize: vectorSize,
		client:     http.DefaultClient,
	}
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingData struct {
	Embedding []float64 `json:"embedding"`
}

type embeddingsResponse struct {
	Data []embeddingData `json:"data"`
}

// Validate embeds a probe text and checks the returned dimension, so
// a misconfigured model or collection fails at startup rather than on
// the first indexed document.
func (c *EmbeddingsClient) Validate(ctx context.Context) error {
	vecs, err := c.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		return fmt.Errorf("embedding probe failed: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) != c.VectorSize {
		return fmt.Errorf("embedding probe returned size %d, expected %d", len(vecs[0]), c.VectorSize)
	}
	return nil
}

// EmbedTexts embeds the given texts, one float32 vector per input, in
// input order. Large inputs are split into fixed-size batches behind
// one call.
func (c *EmbeddingsClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		batch, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed texts %d-%d: %w", start, end-1, err)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (c *EmbeddingsClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	url := fmt.Sprintf("%s/v1/embeddings", c.BaseURL)

	body, err := json.Marshal(embeddingsRequest{Model: c.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var embeddingsResp embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingsResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(embeddingsResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embeddingsResp.Data))
	}

	result := make([][]float32, len(embeddingsResp.Data))
	for i, data := range embeddingsResp.Data {
		if len(data.Embedding) != c.VectorSize {
			return nil, fmt.Errorf("embedding %d has size %d, expected %d", i, len(data.Embedding), c.VectorSize)
		}

		vec := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vec[j] = float32(v)
		}
		result[i] = vec
	}

	return result, nil
}
