package port

import "context"

// Generator turns a prompt into an answer.
type Generator interface {
	// Generate returns the complete answer.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Stream returns the answer incrementally. The stream is single-pass.
	Stream(ctx context.Context, prompt string, opts GenerateOptions) (TokenStream, error)

	// ModelName returns the name of the model.
	ModelName() string
}

type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
}

// TokenStream yields text fragments in generation order.
//
//	for s.Next() {
//		fmt.Print(s.Text())
//	}
//	if err := s.Err(); err != nil { ... }
type TokenStream interface {
	Next() bool
	Text() string
	Err() error
	Close() error
}
