package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"docrag/internal/adapter/analyzer"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/llm"
	"docrag/internal/adapter/retriever"
	"docrag/internal/adapter/store"
	"docrag/internal/domain"
	"docrag/internal/port"
)

const testDim = 64

func newTestIndex(t *testing.T) *EmbeddingIndex {
	t.Helper()
	vs, err := store.OpenFlatVectorStore(t.TempDir(), testDim)
	require.NoError(t, err)
	t.Cleanup(func() { vs.Close() })

	idx, err := NewEmbeddingIndex(embedding.NewHashEmbedder(testDim, ""), vs)
	require.NoError(t, err)
	return idx
}

func newTestEngine(t *testing.T, idx *EmbeddingIndex, searcher port.Searcher, gen port.Generator, topK, budget int) *RetrieveUseCase {
	t.Helper()
	if gen == nil {
		gen = llm.NewEchoGenerator()
	}
	return NewRetrieveUseCase(
		idx,
		searcher,
		retriever.NewTrimExpander(),
		retriever.NewOverlapReranker(),
		NewPackUseCase(analyzer.NewWordTokenizer()),
		gen,
		RetrieveSettings{TopK: topK, MaxContextLength: budget},
	)
}

func chunk(doc int64, page, index int, text string) domain.Chunk {
	return domain.Chunk{
		Text:       text,
		TokenCount: len(analyzer.NewWordTokenizer().Tokenize(text)),
		PageNumber: page,
		ChunkIndex: index,
		DocumentID: doc,
	}
}

var errBoom = errors.New("boom")

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errBoom
}
func (failingEmbedder) Dimension() int    { return testDim }
func (failingEmbedder) ModelName() string { return "failing" }

type failingGenerator struct{}

func (failingGenerator) Generate(ctx context.Context, prompt string, opts port.GenerateOptions) (string, error) {
	return "", errBoom
}
func (failingGenerator) Stream(ctx context.Context, prompt string, opts port.GenerateOptions) (port.TokenStream, error) {
	return nil, errBoom
}
func (failingGenerator) ModelName() string { return "failing" }
