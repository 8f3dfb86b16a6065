package usecase

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// SurrogateID maps a string id onto the non-negative int64 key space with
// 64-bit FNV-1a. The value is stable across processes and releases.
func SurrogateID(stringID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(stringID))
	return int64(h.Sum64() & math.MaxInt64)
}

// EmbeddingIndex embeds texts and keeps them in a VectorStore together with
// their metadata. Searches share a read lock; Add and DeleteByDocument are
// exclusive. Embedding runs outside the lock.
type EmbeddingIndex struct {
	mu       sync.RWMutex
	embedder port.Embedder
	store    port.VectorStore
}

func NewEmbeddingIndex(embedder port.Embedder, store port.VectorStore) (*EmbeddingIndex, error) {
	if embedder.Dimension() != store.Dimension() {
		return nil, fmt.Errorf("%w: embedder %s produces %d, index holds %d",
			domain.ErrDimensionMismatch, embedder.ModelName(), embedder.Dimension(), store.Dimension())
	}
	return &EmbeddingIndex{embedder: embedder, store: store}, nil
}

// Add embeds texts and stores them. metadatas must be nil or match texts in
// length; Text and StringID are filled in here. A nil ids slice gets a fresh
// UUID per text. It returns the string ids in input order.
func (x *EmbeddingIndex) Add(ctx context.Context, texts []string, metadatas []domain.Metadata, ids []string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if metadatas != nil && len(metadatas) != len(texts) {
		return nil, fmt.Errorf("got %d metadata entries for %d texts", len(metadatas), len(texts))
	}
	if ids == nil {
		ids = make([]string, len(texts))
		for i := range ids {
			ids[i] = uuid.NewString()
		}
	} else if len(ids) != len(texts) {
		return nil, fmt.Errorf("got %d ids for %d texts", len(ids), len(texts))
	}

	vectors, err := x.embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	items := make([]port.VectorItem, len(texts))
	for i, text := range texts {
		var meta domain.Metadata
		if metadatas != nil {
			meta = metadatas[i]
		}
		meta.Text = text
		meta.StringID = ids[i]
		items[i] = port.VectorItem{
			SurrogateID: SurrogateID(ids[i]),
			Vector:      vectors[i],
			Metadata:    meta,
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.store.Upsert(ctx, items); err != nil {
		return nil, fmt.Errorf("failed to store vectors: %w", err)
	}
	return ids, nil
}

func (x *EmbeddingIndex) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := x.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", domain.ErrEmbedding, len(vectors), len(texts))
	}
	for _, v := range vectors {
		if len(v) != x.store.Dimension() {
			return nil, fmt.Errorf("%w: vector has %d dimensions, index holds %d",
				domain.ErrDimensionMismatch, len(v), x.store.Dimension())
		}
	}
	return vectors, nil
}

// Search returns the nearest min(k, size) records to query, then drops hits
// whose metadata does not match filter. Survivors keep distance order, so a
// filtered search can return fewer than k results.
func (x *EmbeddingIndex) Search(ctx context.Context, query string, k int, filter domain.Filter) ([]domain.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	vectors, err := x.embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	x.mu.RLock()
	hits, err := x.store.Search(ctx, vectors[0], k)
	x.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(hits))
	filtered := 0
	for _, h := range hits {
		if !h.Metadata.Matches(filter) {
			filtered++
			continue
		}
		results = append(results, domain.SearchResult{
			ID:       h.Metadata.StringID,
			Distance: h.Distance,
			Metadata: h.Metadata,
			Text:     h.Metadata.Text,
		})
	}
	log.Debug().Int("k", k).Int("hits", len(hits)).Int("filtered", filtered).Msg("index search")
	return results, nil
}

// DeleteByDocument removes every record of documentID and returns how many
// were removed.
func (x *EmbeddingIndex) DeleteByDocument(ctx context.Context, documentID int64) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	n, err := x.store.DeleteWhere(ctx, domain.DocumentFilter(documentID))
	if err != nil {
		return 0, fmt.Errorf("failed to delete document %d from index: %w", documentID, err)
	}
	return n, nil
}

func (x *EmbeddingIndex) Stats(ctx context.Context) (domain.Stats, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n, err := x.store.Count(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.Stats{
		TotalVectors: n,
		Dimension:    x.store.Dimension(),
		Backend:      x.store.Name(),
	}, nil
}
