package embedding

import (
	"context"
	"fmt"
	"os"

	"docrag/config"
	"docrag/internal/domain"
	"docrag/internal/port"
)

// New builds the embedder selected by cfg.Embedding.
func New(ctx context.Context, cfg *config.Config) (port.Embedder, error) {
	ec := cfg.Embedding
	if config.IsCloud(ec.Provider, ec.BaseURL) && !cfg.Privacy.AllowCloudModels {
		return nil, fmt.Errorf("embedding provider %q: %w", ec.Provider, domain.ErrCloudModelsDisabled)
	}

	switch ec.Provider {
	case "hash", "":
		return NewHashEmbedder(ec.Dimension, ec.Model), nil
	case "openai":
		key := os.Getenv(ec.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("%w: %s is not set", domain.ErrMissingCredentials, ec.APIKeyEnv)
		}
		return NewOpenAIEmbedder(key, ec.Model, ec.Dimension, ec.BatchSize), nil
	case "compatible":
		if ec.BaseURL == "" {
			return nil, fmt.Errorf("embedding provider compatible requires base_url")
		}
		if ec.Dimension <= 0 {
			return nil, fmt.Errorf("embedding provider compatible requires dimension")
		}
		return NewCompatibleEmbedder(os.Getenv(ec.APIKeyEnv), ec.BaseURL, ec.Model, ec.Dimension, ec.BatchSize), nil
	case "ollama":
		return NewOllamaEmbedder(ctx, ec.BaseURL, ec.Model, ec.BatchSize)
	default:
		return nil, fmt.Errorf("%w: embedding provider %q", domain.ErrUnsupportedProvider, ec.Provider)
	}
}
