package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaEmbedder embeds through a local Ollama server.
type OllamaEmbedder struct {
	embedder  *embeddings.EmbedderImpl
	model     string
	dimension int
}

// NewOllamaEmbedder connects and embeds a sample string to learn the vector
// dimension, so an unreachable server fails here rather than on first use.
func NewOllamaEmbedder(ctx context.Context, baseURL, model string, batchSize int) (*OllamaEmbedder, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, ollama.WithServerURL(baseURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}

	embOpts := []embeddings.Option{}
	if batchSize > 0 {
		embOpts = append(embOpts, embeddings.WithBatchSize(batchSize))
	}
	embedder, err := embeddings.NewEmbedder(llm, embOpts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama embedder: %w", err)
	}

	sample, err := embedder.EmbedQuery(ctx, "dimension check")
	if err != nil {
		return nil, fmt.Errorf("ollama model %s unavailable: %w", model, err)
	}

	return &OllamaEmbedder{
		embedder:  embedder,
		model:     model,
		dimension: len(sample),
	}, nil
}

func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: %w", err)
	}
	return vectors, nil
}

func (e *OllamaEmbedder) Dimension() int {
	return e.dimension
}

func (e *OllamaEmbedder) ModelName() string {
	return e.model
}
