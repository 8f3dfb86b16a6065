package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/store"
	"docrag/internal/domain"
)

func TestSurrogateID(t *testing.T) {
	// FNV-1a 64 offset basis with the sign bit cleared.
	assert.Equal(t, int64(0x4bf29ce484222325), SurrogateID(""))
	assert.Equal(t, SurrogateID("abc"), SurrogateID("abc"))
	assert.NotEqual(t, SurrogateID("abc"), SurrogateID("abd"))
	for i := 0; i < 1000; i++ {
		assert.GreaterOrEqual(t, SurrogateID(fmt.Sprintf("id-%d", i)), int64(0))
	}
}

func TestEmbeddingIndex_EmptySearch(t *testing.T) {
	idx := newTestIndex(t)
	results, err := idx.Search(context.Background(), "anything", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEmbeddingIndex_AddAndSearch(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	ids, err := idx.Add(ctx,
		[]string{"alpha beta", "gamma delta", "alpha gamma"},
		[]domain.Metadata{{DocumentID: 1, PageNumber: 1}, {DocumentID: 1, PageNumber: 2}, {DocumentID: 2, PageNumber: 1}},
		nil,
	)
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.NotEqual(t, ids[0], ids[1])

	results, err := idx.Search(ctx, "alpha beta", 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ids[0], results[0].ID)
	assert.Equal(t, "alpha beta", results[0].Text)
	assert.Equal(t, "alpha beta", results[0].Metadata.Text)
	assert.InDelta(t, 0, results[0].Distance, 1e-6)

	results, err = idx.Search(ctx, "alpha", 10, nil)
	require.NoError(t, err)
	assert.Len(t, results, 3, "k is capped at the index size")
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}

	results, err = idx.Search(ctx, "alpha", 10, domain.DocumentFilter(2))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alpha gamma", results[0].Text)
}

func TestEmbeddingIndex_ExplicitIDsReplace(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	ids, err := idx.Add(ctx, []string{"first version"}, nil, []string{"chunk-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"chunk-1"}, ids)

	_, err = idx.Add(ctx, []string{"second version"}, nil, []string{"chunk-1"})
	require.NoError(t, err)

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalVectors)

	results, err := idx.Search(ctx, "version", 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "second version", results[0].Text)
}

func TestEmbeddingIndex_DeleteByDocument(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	_, err := idx.Add(ctx,
		[]string{"one a", "one b", "one c"},
		[]domain.Metadata{{DocumentID: 1}, {DocumentID: 1}, {DocumentID: 1}}, nil)
	require.NoError(t, err)
	_, err = idx.Add(ctx,
		[]string{"two a", "two b"},
		[]domain.Metadata{{DocumentID: 2}, {DocumentID: 2}}, nil)
	require.NoError(t, err)

	removed, err := idx.DeleteByDocument(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{TotalVectors: 2, Dimension: testDim, Backend: "flat"}, stats)

	results, err := idx.Search(ctx, "one", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, int64(2), r.Metadata.DocumentID)
	}

	results, err = idx.Search(ctx, "one", 10, domain.DocumentFilter(1))
	require.NoError(t, err)
	assert.Empty(t, results)

	removed, err = idx.DeleteByDocument(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestEmbeddingIndex_Errors(t *testing.T) {
	ctx := context.Background()

	vs, err := store.OpenFlatVectorStore(t.TempDir(), testDim)
	require.NoError(t, err)
	defer vs.Close()

	_, err = NewEmbeddingIndex(embedding.NewHashEmbedder(testDim/2, ""), vs)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	idx, err := NewEmbeddingIndex(failingEmbedder{}, vs)
	require.NoError(t, err)
	_, err = idx.Add(ctx, []string{"x"}, nil, nil)
	assert.ErrorIs(t, err, domain.ErrEmbedding)
	assert.ErrorIs(t, err, errBoom)
	_, err = idx.Search(ctx, "x", 3, nil)
	assert.ErrorIs(t, err, domain.ErrEmbedding)

	good := newTestIndex(t)
	_, err = good.Add(ctx, []string{"a", "b"}, []domain.Metadata{{}}, nil)
	assert.Error(t, err)
	_, err = good.Add(ctx, []string{"a", "b"}, nil, []string{"only-one"})
	assert.Error(t, err)
}

func TestEmbeddingIndex_ConcurrentAddSearchDelete(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(doc int64) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_, err := idx.Add(ctx, []string{fmt.Sprintf("doc %d text %d", doc, i)}, []domain.Metadata{{DocumentID: doc}}, nil)
				assert.NoError(t, err)
				_, err = idx.Search(ctx, "text", 5, nil)
				assert.NoError(t, err)
			}
		}(int64(w))
	}
	wg.Wait()

	_, err := idx.DeleteByDocument(ctx, 0)
	require.NoError(t, err)
	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, stats.TotalVectors)
}
