package port

import "docrag/internal/domain"

type Reranker interface {
	Rerank(question string, candidates []domain.SearchResult, k int) []domain.SearchResult
}
