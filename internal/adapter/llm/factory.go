package llm

import (
	"fmt"
	"os"

	"docrag/config"
	"docrag/internal/domain"
	"docrag/internal/port"
)

// New builds the generator selected by cfg.Generation.
func New(cfg *config.Config) (port.Generator, error) {
	gc := cfg.Generation
	if config.IsCloud(gc.Provider, gc.BaseURL) && !cfg.Privacy.AllowCloudModels {
		return nil, fmt.Errorf("generation provider %q: %w", gc.Provider, domain.ErrCloudModelsDisabled)
	}

	var g port.Generator
	switch gc.Provider {
	case "openai":
		key := os.Getenv(gc.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("%w: %s is not set", domain.ErrMissingCredentials, gc.APIKeyEnv)
		}
		g = NewOpenAIGenerator(key, gc.Model)
	case "compatible":
		if gc.BaseURL == "" {
			return nil, fmt.Errorf("generation provider compatible requires base_url")
		}
		g = NewCompatibleGenerator(os.Getenv(gc.APIKeyEnv), gc.BaseURL, gc.Model)
	case "ollama":
		og, err := NewOllamaGenerator(gc.BaseURL, gc.Model)
		if err != nil {
			return nil, err
		}
		g = og
	case "echo":
		g = NewEchoGenerator()
	default:
		return nil, fmt.Errorf("%w: generation provider %q", domain.ErrUnsupportedProvider, gc.Provider)
	}
	return WithTimeout(g, gc.Timeout), nil
}

// Options returns the per-call generation settings from config.
func Options(cfg *config.Config) port.GenerateOptions {
	return port.GenerateOptions{
		MaxTokens:   cfg.Generation.MaxTokens,
		Temperature: cfg.Generation.Temperature,
	}
}
