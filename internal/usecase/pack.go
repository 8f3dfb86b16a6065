package usecase

import (
	"fmt"
	"sort"
	"strings"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// PackUseCase assembles ranked chunks into a page-tagged context within a
// word budget.
type PackUseCase struct {
	tokenizer port.Tokenizer
}

func NewPackUseCase(tokenizer port.Tokenizer) *PackUseCase {
	return &PackUseCase{tokenizer: tokenizer}
}

// Pack walks results in rank order and stops at the first chunk whose words
// would push the total past budget; later, smaller chunks are not tried.
// The page tag is not counted against the budget.
func (u *PackUseCase) Pack(results []domain.SearchResult, budget int) domain.PackedContext {
	parts := make([]string, 0, len(results))
	pages := make(map[int]struct{})
	used := 0

	for _, r := range results {
		words := u.tokenizer.CountTokens(r.Text)
		if used+words > budget {
			break
		}
		page := r.Metadata.PageNumber
		parts = append(parts, fmt.Sprintf("[Page %d] %s", page, r.Text))
		pages[page] = struct{}{}
		used += words
	}

	citations := make([]int, 0, len(pages))
	for p := range pages {
		citations = append(citations, p)
	}
	sort.Ints(citations)

	return domain.PackedContext{
		Context:     strings.Join(parts, "\n\n"),
		Citations:   citations,
		UsedWords:   used,
		BudgetWords: budget,
		Included:    len(parts),
	}
}
