package embedding

import (
	"context"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"
)

// CompatibleEmbedder talks to any server exposing the OpenAI /embeddings route
// (vLLM, LM Studio, llama.cpp server, hosted gateways).
type CompatibleEmbedder struct {
	client    *goopenai.Client
	model     string
	dimension int
	batchSize int
}

func NewCompatibleEmbedder(apiKey, baseURL, model string, dimension, batchSize int) *CompatibleEmbedder {
	if apiKey == "" {
		apiKey = "not-needed"
	}
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if batchSize <= 0 {
		batchSize = 64
	}
	return &CompatibleEmbedder{
		client:    goopenai.NewClientWithConfig(cfg),
		model:     model,
		dimension: dimension,
		batchSize: batchSize,
	}
}

func (e *CompatibleEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
			Input: texts[i:end],
			Model: goopenai.EmbeddingModel(e.model),
		})
		if err != nil {
			return nil, fmt.Errorf("embeddings endpoint: %w", err)
		}
		batch := make([][]float32, end-i)
		for _, d := range resp.Data {
			if d.Index < len(batch) {
				batch[d.Index] = d.Embedding
			}
		}
		for j, v := range batch {
			if len(v) != e.dimension {
				return nil, fmt.Errorf("embeddings endpoint: vector %d has dimension %d, want %d", i+j, len(v), e.dimension)
			}
		}
		all = append(all, batch...)
	}
	return all, nil
}

func (e *CompatibleEmbedder) Dimension() int {
	return e.dimension
}

func (e *CompatibleEmbedder) ModelName() string {
	return e.model
}
