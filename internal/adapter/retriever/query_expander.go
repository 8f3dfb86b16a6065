package retriever

import (
	"strings"

	"docrag/internal/port"
)

// TrimExpander only trims surrounding whitespace.
type TrimExpander struct{}

func NewTrimExpander() TrimExpander {
	return TrimExpander{}
}

func (TrimExpander) Expand(question string) string {
	return strings.TrimSpace(question)
}

// KeywordExpander reduces a question to its content terms before it is
// embedded. It falls back to the trimmed question when no term survives.
type KeywordExpander struct {
	tokenizer port.Tokenizer
}

func NewKeywordExpander(tokenizer port.Tokenizer) *KeywordExpander {
	return &KeywordExpander{tokenizer: tokenizer}
}

func (e *KeywordExpander) Expand(question string) string {
	question = strings.TrimSpace(question)
	terms := e.tokenizer.Tokenize(question)
	if len(terms) == 0 {
		return question
	}
	return strings.Join(terms, " ")
}
