package analyzer

import (
	"strings"
	"unicode"
)

// WordTokenizer splits on whitespace. Chunk sizes, overlaps and context budgets
// are all measured in these words, not model tokens.
type WordTokenizer struct{}

func NewWordTokenizer() WordTokenizer {
	return WordTokenizer{}
}

func (WordTokenizer) Tokenize(text string) []string {
	return strings.Fields(text)
}

func (WordTokenizer) CountTokens(text string) int {
	return len(strings.Fields(text))
}

// WordSet returns the distinct lowercased whitespace words of text.
func WordSet(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// TermTokenizer extracts lowercase letter/digit terms and drops stopwords.
type TermTokenizer struct {
	stopwords map[string]struct{}
	minLen    int
}

func NewTermTokenizer() *TermTokenizer {
	return &TermTokenizer{
		stopwords: defaultStopwords(),
		minLen:    2,
	}
}

func (t *TermTokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	terms := make([]string, 0, len(words))
	for _, word := range words {
		word = strings.ToLower(word)
		if len([]rune(word)) < t.minLen {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

func (t *TermTokenizer) CountTokens(text string) int {
	return len(t.Tokenize(text))
}

func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"do", "does", "did", "been", "being", "would", "could",
		"should", "which", "who", "what", "when", "where", "how",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
