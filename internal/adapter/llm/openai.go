package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"
	"github.com/openai/openai-go/v3/shared"

	"docrag/internal/port"
)

const DefaultOpenAIModel = "gpt-3.5-turbo"

// OpenAIGenerator answers through the OpenAI chat completions API.
type OpenAIGenerator struct {
	client openai.Client
	model  string
}

func NewOpenAIGenerator(apiKey, model string) *OpenAIGenerator {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIGenerator{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (g *OpenAIGenerator) params(prompt string, opts port.GenerateOptions) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	return params
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string, opts port.GenerateOptions) (string, error) {
	completion, err := g.client.Chat.Completions.New(ctx, g.params(prompt, opts))
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("openai chat completion: no choices returned")
	}
	return completion.Choices[0].Message.Content, nil
}

func (g *OpenAIGenerator) Stream(ctx context.Context, prompt string, opts port.GenerateOptions) (port.TokenStream, error) {
	stream := g.client.Chat.Completions.NewStreaming(ctx, g.params(prompt, opts))
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("openai chat stream: %w", err)
	}
	return &openAIStream{stream: stream}, nil
}

func (g *OpenAIGenerator) ModelName() string {
	return g.model
}

type openAIStream struct {
	stream  *ssestream.Stream[openai.ChatCompletionChunk]
	current string
}

func (s *openAIStream) Next() bool {
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		s.current = chunk.Choices[0].Delta.Content
		return true
	}
	s.current = ""
	return false
}

func (s *openAIStream) Text() string { return s.current }

func (s *openAIStream) Err() error {
	if err := s.stream.Err(); err != nil {
		return fmt.Errorf("openai chat stream: %w", err)
	}
	return nil
}

func (s *openAIStream) Close() error { return s.stream.Close() }
