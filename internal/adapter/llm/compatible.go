package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	goopenai "github.com/sashabaranov/go-openai"

	"docrag/internal/port"
)

// CompatibleGenerator talks to any OpenAI-compatible chat endpoint.
type CompatibleGenerator struct {
	client *goopenai.Client
	model  string
}

func NewCompatibleGenerator(apiKey, baseURL, model string) *CompatibleGenerator {
	if apiKey == "" {
		apiKey = "not-needed"
	}
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &CompatibleGenerator{
		client: goopenai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (g *CompatibleGenerator) request(prompt string, opts port.GenerateOptions, stream bool) goopenai.ChatCompletionRequest {
	return goopenai.ChatCompletionRequest{
		Model: g.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   opts.MaxTokens,
		Temperature: float32(opts.Temperature),
		Stream:      stream,
	}
}

func (g *CompatibleGenerator) Generate(ctx context.Context, prompt string, opts port.GenerateOptions) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, g.request(prompt, opts, false))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *CompatibleGenerator) Stream(ctx context.Context, prompt string, opts port.GenerateOptions) (port.TokenStream, error) {
	stream, err := g.client.CreateChatCompletionStream(ctx, g.request(prompt, opts, true))
	if err != nil {
		return nil, fmt.Errorf("chat stream: %w", err)
	}
	return &compatibleStream{stream: stream}, nil
}

func (g *CompatibleGenerator) ModelName() string {
	return g.model
}

type compatibleStream struct {
	stream  *goopenai.ChatCompletionStream
	current string
	err     error
	done    bool
}

func (s *compatibleStream) Next() bool {
	for !s.done {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			break
		}
		if err != nil {
			s.err = fmt.Errorf("chat stream: %w", err)
			s.done = true
			break
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		s.current = resp.Choices[0].Delta.Content
		return true
	}
	s.current = ""
	return false
}

func (s *compatibleStream) Text() string { return s.current }
func (s *compatibleStream) Err() error   { return s.err }

func (s *compatibleStream) Close() error {
	return s.stream.Close()
}
