package port

import (
	"context"

	"docrag/internal/domain"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns a slice of vectors, one per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorStore stores and searches embedding vectors keyed by surrogate id.
type VectorStore interface {
	// Upsert adds or replaces vectors in the store.
	Upsert(ctx context.Context, items []VectorItem) error

	// Search returns the k nearest vectors by ascending squared Euclidean distance.
	Search(ctx context.Context, query []float32, k int) ([]VectorResult, error)

	// DeleteWhere removes every vector whose metadata matches filter.
	DeleteWhere(ctx context.Context, filter domain.Filter) (int, error)

	// Count returns the number of vectors in the store.
	Count(ctx context.Context) (int, error)

	Dimension() int

	// Name identifies the backend in stats output.
	Name() string

	Close() error
}

// VectorItem represents a vector to be stored.
type VectorItem struct {
	SurrogateID int64
	Vector      []float32
	Metadata    domain.Metadata
}

// VectorResult represents a search hit.
type VectorResult struct {
	SurrogateID int64
	Distance    float64 // Squared L2 (lower is closer)
	Metadata    domain.Metadata
}
