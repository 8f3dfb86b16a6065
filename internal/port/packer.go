package port

import "docrag/internal/domain"

// Packer defines the interface for assembling ranked chunks into a bounded context.
type Packer interface {
	// Pack includes chunks in rank order until the word budget would be exceeded.
	Pack(results []domain.SearchResult, budget int) domain.PackedContext
}
