package usecase

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/adapter/analyzer"
	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/fs"
	"docrag/internal/adapter/memstore"
	"docrag/internal/adapter/store"
	"docrag/internal/domain"
	"docrag/internal/port"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestIndexer(t *testing.T, idx *EmbeddingIndex) (*IndexUseCase, *RetrieveUseCase, *memstore.MemoryStore) {
	t.Helper()
	docs := memstore.NewMemoryStore()
	engine := newTestEngine(t, idx, nil, nil, 5, 500)
	indexer := NewIndexUseCase(
		docs,
		fs.NewWalker(nil, nil, 0),
		fs.NewLoader(),
		chunker.NewParagraphChunker(50, 10, analyzer.NewWordTokenizer()),
		engine,
		2,
	)
	return indexer, engine, docs
}

func TestIndex_IngestsAndSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	policy := writeFile(t, dir, "policy.txt", "Refunds are accepted within thirty days.\n\nShipping is free above fifty dollars.")
	writeFile(t, dir, "notes.md", "# Returns\n\nItems must be unused and in the original box.")
	writeFile(t, dir, "logo.png", "\x89PNG")

	indexer, engine, docs := newTestIndexer(t, newTestIndex(t))

	var calls atomic.Int32
	result, err := indexer.Index(ctx, []string{dir}, func(processed, total int, currentFile string) {
		calls.Add(1)
		assert.Equal(t, 3, total)
		assert.LessOrEqual(t, processed, total)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.FilesIndexed)
	assert.Zero(t, result.FilesSkipped)
	require.Len(t, result.Errors, 1, "the png is reported and does not stop the others")
	assert.Contains(t, result.Errors[0], "logo.png")
	assert.EqualValues(t, 3, calls.Load())

	stored, err := docs.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	total := 0
	for _, d := range stored {
		assert.True(t, d.Processed)
		assert.Equal(t, 1, d.PageCount)
		chunks, err := docs.ListChunks(ctx, d.ID)
		require.NoError(t, err)
		require.NotEmpty(t, chunks)
		for _, c := range chunks {
			assert.Equal(t, d.ID, c.DocumentID)
			assert.NotEmpty(t, c.EmbeddingID)
		}
		total += len(chunks)
	}
	assert.Equal(t, result.ChunksCreated, total)

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, total, stats.TotalVectors)

	again, err := indexer.Index(ctx, []string{dir}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, again.FilesSkipped)
	assert.Zero(t, again.FilesIndexed)

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(policy, future, future))
	changed, err := indexer.Index(ctx, []string{dir}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, changed.FilesIndexed)
	assert.Equal(t, 1, changed.FilesSkipped)

	stored, err = docs.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2, "a modified file replaces its document")

	stats, err = engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, total, stats.TotalVectors)
}

func TestIngestFile_RollsBackOnIndexFailure(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "policy.txt", "Refunds are accepted within thirty days.")

	vs, err := store.OpenFlatVectorStore(t.TempDir(), testDim)
	require.NoError(t, err)
	t.Cleanup(func() { vs.Close() })
	idx, err := NewEmbeddingIndex(failingEmbedder{}, vs)
	require.NoError(t, err)

	indexer, _, docs := newTestIndexer(t, idx)

	res := indexer.IngestFile(ctx, port.FileInfo{Path: path})
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, domain.ErrEmbedding)

	stored, err := docs.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestRemoveDocument(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "policy.txt", "Refunds are accepted within thirty days.")

	indexer, engine, docs := newTestIndexer(t, newTestIndex(t))
	res := indexer.IngestFile(ctx, port.FileInfo{Path: path})
	require.NoError(t, res.Err)
	require.Equal(t, 1, res.Chunks)

	require.NoError(t, indexer.RemoveDocument(ctx, res.Document.ID))

	_, err := docs.GetDocument(ctx, res.Document.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalVectors)

	assert.ErrorIs(t, indexer.RemoveDocument(ctx, res.Document.ID), domain.ErrNotFound)
}

func TestReindex_DropsMissingFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	keep := writeFile(t, dir, "keep.txt", "Refunds are accepted within thirty days.")
	gone := writeFile(t, dir, "gone.txt", "Shipping is free above fifty dollars.")

	indexer, engine, docs := newTestIndexer(t, newTestIndex(t))
	_, err := indexer.Index(ctx, []string{dir}, nil)
	require.NoError(t, err)
	require.NoError(t, os.Remove(gone))

	stored, err := docs.ListDocuments(ctx)
	require.NoError(t, err)
	result, err := indexer.Reindex(ctx, stored, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesIndexed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "gone.txt")

	stored, err = docs.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, keep, stored[0].Path)

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalVectors)
}

func TestIngestQueue_BoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	ingest := func(ctx context.Context, f port.FileInfo) IngestResult {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return IngestResult{Path: f.Path, Chunks: 1}
	}

	var mu sync.Mutex
	done := map[string]bool{}
	q := NewIngestQueue(context.Background(), 2, ingest, func(r IngestResult) {
		mu.Lock()
		defer mu.Unlock()
		done[r.Path] = true
	})
	for i := 0; i < 10; i++ {
		q.Submit(port.FileInfo{Path: string(rune('a' + i))})
	}
	q.Wait()

	assert.Len(t, done, 10)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestIngestQueue_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var results []IngestResult
	var mu sync.Mutex
	q := NewIngestQueue(ctx, 1, func(ctx context.Context, f port.FileInfo) IngestResult {
		// the first job may still win the semaphore race
		return IngestResult{Path: f.Path, Err: ctx.Err()}
	}, func(r IngestResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})
	q.Submit(port.FileInfo{Path: "x"})
	q.Submit(port.FileInfo{Path: "y"})
	q.Wait()

	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}
