package port

import "docrag/internal/domain"

type Chunker interface {
	// Chunk splits one page of text. Chunk indices start at 0.
	Chunk(text string, pageNumber int) []domain.Chunk

	// ChunkDocument chunks every page in order.
	ChunkDocument(pages []domain.Page) []domain.Chunk
}
