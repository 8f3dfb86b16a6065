package port

import (
	"context"

	"docrag/internal/domain"
)

// Searcher finds indexed chunks close to a query.
type Searcher interface {
	// Search returns at most k hits ordered by ascending distance, restricted to filter.
	Search(ctx context.Context, query string, k int, filter domain.Filter) ([]domain.SearchResult, error)
}

// QueryExpander rewrites a question before it is embedded.
type QueryExpander interface {
	Expand(question string) string
}
