package llm

import (
	"context"
	"strings"

	"docrag/internal/port"
)

// EchoGenerator answers offline by returning the context passages of the
// prompt verbatim. Useful without a model server and in tests.
type EchoGenerator struct{}

func NewEchoGenerator() *EchoGenerator {
	return &EchoGenerator{}
}

func (g *EchoGenerator) Generate(ctx context.Context, prompt string, opts port.GenerateOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	answer := extractContext(prompt)
	if opts.MaxTokens > 0 {
		words := strings.Fields(answer)
		if len(words) > opts.MaxTokens {
			answer = strings.Join(words[:opts.MaxTokens], " ")
		}
	}
	return answer, nil
}

func (g *EchoGenerator) Stream(ctx context.Context, prompt string, opts port.GenerateOptions) (port.TokenStream, error) {
	answer, err := g.Generate(ctx, prompt, opts)
	if err != nil {
		return nil, err
	}
	return &sliceStream{fragments: strings.SplitAfter(answer, " ")}, nil
}

func (g *EchoGenerator) ModelName() string {
	return "echo"
}

func extractContext(prompt string) string {
	_, rest, ok := strings.Cut(prompt, "Context:\n")
	if !ok {
		return prompt
	}
	ctxText, _, _ := strings.Cut(rest, "\n\nQuestion:")
	return strings.TrimSpace(ctxText)
}
