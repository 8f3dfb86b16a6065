package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/mo"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// QueryParams is one question for the retrieval engine.
type QueryParams struct {
	Question   string
	DocumentID mo.Option[int64]
	Stream     bool
}

// QueryResult carries either Answer or, for streamed queries that found
// context, Stream. The caller owns Stream and must Close it.
type QueryResult struct {
	Answer    string
	Stream    port.TokenStream
	Chunks    []domain.SearchResult
	Citations []int
	Context   string
}

// RetrieveSettings are the tunables of the retrieval engine.
type RetrieveSettings struct {
	TopK             int
	MaxContextLength int
	Generate         port.GenerateOptions
}

type invalidator interface {
	Invalidate()
}

// RetrieveUseCase answers questions from the embedding index: search, rerank,
// pack, prompt and generate.
type RetrieveUseCase struct {
	index     *EmbeddingIndex
	searcher  port.Searcher
	expander  port.QueryExpander
	reranker  port.Reranker
	packer    port.Packer
	generator port.Generator
	settings  RetrieveSettings
}

// NewRetrieveUseCase wires the engine. searcher is usually the index itself
// or a cache in front of it; if it has an Invalidate method, it is called
// after every index mutation.
func NewRetrieveUseCase(
	index *EmbeddingIndex,
	searcher port.Searcher,
	expander port.QueryExpander,
	reranker port.Reranker,
	packer port.Packer,
	generator port.Generator,
	settings RetrieveSettings,
) *RetrieveUseCase {
	if searcher == nil {
		searcher = index
	}
	return &RetrieveUseCase{
		index:     index,
		searcher:  searcher,
		expander:  expander,
		reranker:  reranker,
		packer:    packer,
		generator: generator,
		settings:  settings,
	}
}

// Retrieve returns the reranked top-k chunks for question. It searches for
// twice as many candidates as it keeps.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, question string, documentID mo.Option[int64]) ([]domain.SearchResult, error) {
	query := u.expander.Expand(question)

	var filter domain.Filter
	if id, ok := documentID.Get(); ok {
		filter = domain.DocumentFilter(id)
	}

	candidates, err := u.searcher.Search(ctx, query, 2*u.settings.TopK, filter)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return u.reranker.Rerank(question, candidates, u.settings.TopK), nil
}

// Prepare runs retrieval and context assembly and returns the prompt that
// Query would send to the model. ok is false when nothing was retrieved.
func (u *RetrieveUseCase) Prepare(ctx context.Context, params QueryParams) (prompt string, result *QueryResult, ok bool, err error) {
	chunks, err := u.Retrieve(ctx, params.Question, params.DocumentID)
	if err != nil {
		return "", nil, false, err
	}
	if len(chunks) == 0 {
		return "", &QueryResult{Answer: NoAnswer, Chunks: []domain.SearchResult{}, Citations: []int{}}, false, nil
	}

	packed := u.packer.Pack(chunks, u.settings.MaxContextLength)
	prompt, err = BuildAnswerPrompt(params.Question, packed.Context)
	if err != nil {
		return "", nil, false, err
	}
	return prompt, &QueryResult{
		Chunks:    chunks,
		Citations: packed.Citations,
		Context:   packed.Context,
	}, true, nil
}

// Query answers a question. Finding nothing is not an error: the result then
// holds NoAnswer and no stream, even when streaming was requested.
func (u *RetrieveUseCase) Query(ctx context.Context, params QueryParams) (*QueryResult, error) {
	start := time.Now()
	prompt, result, ok, err := u.Prepare(ctx, params)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Warn().Str("question", abbreviate(params.Question, 100)).Msg("no chunks found for query")
		return result, nil
	}

	log.Info().
		Int("chunks", len(result.Chunks)).
		Ints("citations", result.Citations).
		Int("context_words", len(strings.Fields(result.Context))).
		Msg("generating answer")

	if params.Stream {
		stream, err := u.generator.Stream(ctx, prompt, u.settings.Generate)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
		}
		result.Stream = stream
		return result, nil
	}

	answer, err := u.generator.Generate(ctx, prompt, u.settings.Generate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}
	result.Answer = answer
	log.Debug().Dur("elapsed", time.Since(start)).Msg("query answered")
	return result, nil
}

// AddDocumentToIndex indexes the chunks of one document and returns their
// embedding ids in chunk order.
func (u *RetrieveUseCase) AddDocumentToIndex(ctx context.Context, documentID int64, chunks []domain.Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	texts := make([]string, len(chunks))
	metas := make([]domain.Metadata, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
		metas[i] = domain.Metadata{
			DocumentID: documentID,
			PageNumber: c.PageNumber,
			ChunkIndex: c.ChunkIndex,
			TokenCount: c.TokenCount,
		}
	}

	log.Info().Int64("document_id", documentID).Int("chunks", len(chunks)).Msg("adding chunks to index")
	u.invalidate()
	defer u.invalidate()
	return u.index.Add(ctx, texts, metas, nil)
}

func (u *RetrieveUseCase) RemoveDocumentFromIndex(ctx context.Context, documentID int64) (int, error) {
	log.Info().Int64("document_id", documentID).Msg("removing document from index")
	u.invalidate()
	defer u.invalidate()
	return u.index.DeleteByDocument(ctx, documentID)
}

func (u *RetrieveUseCase) Stats(ctx context.Context) (domain.Stats, error) {
	return u.index.Stats(ctx)
}

// invalidate runs on both sides of a mutation: cached hits stop as soon as the
// mutation starts, and searches that overlapped it cannot repopulate the cache.
func (u *RetrieveUseCase) invalidate() {
	if inv, ok := u.searcher.(invalidator); ok {
		inv.Invalidate()
	}
}

func abbreviate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
