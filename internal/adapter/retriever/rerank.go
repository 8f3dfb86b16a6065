package retriever

import (
	"sort"

	"docrag/internal/adapter/analyzer"
	"docrag/internal/domain"
)

// OverlapReranker orders candidates by the share of question words they
// contain. Words are lowercased and split on whitespace only, so "Go" and
// "go," are different words.
type OverlapReranker struct{}

func NewOverlapReranker() OverlapReranker {
	return OverlapReranker{}
}

// Overlap returns |q ∩ t| / |q| over distinct lowercased words, or 0 when
// the question has no words.
func Overlap(question, text string) float64 {
	q := analyzer.WordSet(question)
	if len(q) == 0 {
		return 0
	}
	t := analyzer.WordSet(text)
	shared := 0
	for w := range q {
		if _, ok := t[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(q))
}

// Rerank scores every candidate, sorts by descending overlap and then by
// ascending distance, and keeps the first k. Equal keys keep input order.
func (OverlapReranker) Rerank(question string, candidates []domain.SearchResult, k int) []domain.SearchResult {
	if len(candidates) == 0 || k <= 0 {
		return nil
	}

	ranked := make([]domain.SearchResult, len(candidates))
	copy(ranked, candidates)
	for i := range ranked {
		ranked[i].Relevance = Overlap(question, ranked[i].Text)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Relevance != ranked[j].Relevance {
			return ranked[i].Relevance > ranked[j].Relevance
		}
		return ranked[i].Distance < ranked[j].Distance
	})

	if k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked
}
