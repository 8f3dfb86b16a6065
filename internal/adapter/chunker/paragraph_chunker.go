package chunker

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"docrag/internal/domain"
	"docrag/internal/port"
)

const (
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 50
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	paragraphRe  = regexp.MustCompile(`\n\n+|\.\s*\n`)
)

// ParagraphChunker packs paragraphs greedily into chunks of at most chunkSize
// words. Consecutive chunks share the last overlap words of their predecessor.
type ParagraphChunker struct {
	chunkSize int
	overlap   int
	tokenizer port.Tokenizer
}

func NewParagraphChunker(chunkSize, overlap int, tokenizer port.Tokenizer) *ParagraphChunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	return &ParagraphChunker{
		chunkSize: chunkSize,
		overlap:   overlap,
		tokenizer: tokenizer,
	}
}

func (c *ParagraphChunker) Chunk(text string, pageNumber int) []domain.Chunk {
	text = strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	if text == "" {
		return nil
	}
	return c.pack(splitParagraphs(text), pageNumber)
}

// pack accumulates paragraphs into chunks. Paragraphs must already be trimmed.
func (c *ParagraphChunker) pack(paragraphs []string, pageNumber int) []domain.Chunk {
	var (
		chunks        []domain.Chunk
		current       string
		currentTokens int
	)

	emit := func(text string, tokens int) {
		chunks = append(chunks, domain.Chunk{
			Text:       text,
			TokenCount: tokens,
			PageNumber: pageNumber,
			ChunkIndex: len(chunks),
		})
	}

	for _, para := range paragraphs {
		paraTokens := c.tokenizer.CountTokens(para)

		switch {
		case paraTokens > c.chunkSize:
			if current != "" {
				emit(current, currentTokens)
				current, currentTokens = "", 0
			}
			for _, window := range c.splitLarge(para) {
				emit(window, c.tokenizer.CountTokens(window))
			}

		case currentTokens+paraTokens > c.chunkSize:
			flushed := current
			if current != "" {
				emit(current, currentTokens)
			}
			current, currentTokens = para, paraTokens
			if seed := c.overlapSeed(flushed, c.chunkSize-paraTokens); seed != "" {
				current = seed + " " + para
				currentTokens = c.tokenizer.CountTokens(current)
			}

		default:
			if current != "" {
				current += " " + para
			} else {
				current = para
			}
			currentTokens += paraTokens
		}
	}

	if current != "" {
		emit(current, currentTokens)
	}
	return chunks
}

func (c *ParagraphChunker) ChunkDocument(pages []domain.Page) []domain.Chunk {
	var all []domain.Chunk
	for _, page := range pages {
		all = append(all, c.Chunk(page.Text, page.Number)...)
	}
	log.Debug().Int("pages", len(pages)).Int("chunks", len(all)).Msg("chunked document")
	return all
}

// splitLarge slides a window of chunkSize words forward by chunkSize-overlap.
func (c *ParagraphChunker) splitLarge(para string) []string {
	words := c.tokenizer.Tokenize(para)
	step := c.chunkSize - c.overlap
	if step <= 0 {
		step = c.chunkSize
	}

	var windows []string
	for i := 0; i < len(words); i += step {
		end := i + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		windows = append(windows, strings.Join(words[i:end], " "))
	}
	return windows
}

// overlapSeed returns the tail of the flushed chunk that opens the next one,
// capped so the seeded buffer never exceeds the chunk size.
func (c *ParagraphChunker) overlapSeed(flushed string, room int) string {
	n := c.overlap
	if room < n {
		n = room
	}
	if n <= 0 || flushed == "" {
		return ""
	}
	words := c.tokenizer.Tokenize(flushed)
	if len(words) <= n {
		return flushed
	}
	return strings.Join(words[len(words)-n:], " ")
}

func splitParagraphs(text string) []string {
	parts := paragraphRe.Split(text, -1)
	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}
