package llm

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts model tokens with a tiktoken encoding.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// NewTokenCounter picks the encoding for model, falling back to cl100k_base
// for models tiktoken does not know (local models).
func NewTokenCounter(model string) (*TokenCounter, error) {
	if enc, err := tiktoken.EncodingForModel(model); err == nil {
		return &TokenCounter{encoding: enc, name: model}, nil
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
	}
	return &TokenCounter{encoding: enc, name: "cl100k_base"}, nil
}

func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.encoding == nil {
		return EstimateTokens(text)
	}
	return len(tc.encoding.Encode(text, nil, nil))
}

// Encoding names the encoding in use.
func (tc *TokenCounter) Encoding() string {
	return tc.name
}

// EstimateTokens is a rough word-based estimate used when no encoding loads.
func EstimateTokens(text string) int {
	return len(strings.Fields(text)) * 4 / 3
}
