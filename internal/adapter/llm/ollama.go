package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"docrag/internal/port"
)

// OllamaGenerator answers with a local Ollama model.
type OllamaGenerator struct {
	llm   *ollama.LLM
	model string
}

func NewOllamaGenerator(baseURL, model string) (*OllamaGenerator, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, ollama.WithServerURL(baseURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	return &OllamaGenerator{llm: llm, model: model}, nil
}

func callOptions(opts port.GenerateOptions) []llms.CallOption {
	callOpts := []llms.CallOption{llms.WithTemperature(opts.Temperature)}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	return callOpts
}

func (g *OllamaGenerator) Generate(ctx context.Context, prompt string, opts port.GenerateOptions) (string, error) {
	answer, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, callOptions(opts)...)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return answer, nil
}

func (g *OllamaGenerator) Stream(ctx context.Context, prompt string, opts port.GenerateOptions) (port.TokenStream, error) {
	return newChanStream(ctx, func(ctx context.Context, emit func(string) error) error {
		callOpts := append(callOptions(opts), llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			return emit(string(chunk))
		}))
		if _, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, callOpts...); err != nil {
			return fmt.Errorf("ollama generate: %w", err)
		}
		return nil
	}), nil
}

func (g *OllamaGenerator) ModelName() string {
	return g.model
}
