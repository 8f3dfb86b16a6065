package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"docrag/config"
	"docrag/internal/adapter/analyzer"
	"docrag/internal/adapter/cache"
	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/fs"
	"docrag/internal/adapter/llm"
	"docrag/internal/adapter/retriever"
	"docrag/internal/adapter/store"
	"docrag/internal/domain"
	"docrag/internal/port"
	"docrag/internal/usecase"
)

// app is everything a command needs, wired from configuration.
type app struct {
	cfg     *config.Config
	stores  *store.Stores
	engine  *usecase.RetrieveUseCase
	indexer *usecase.IndexUseCase
	convs   *usecase.ConversationUseCase
	exports *usecase.ExportUseCase
}

// openApp wires the stores and use cases. Commands that never generate pass
// withGenerator=false so a missing model server or key does not stop them.
func openApp(ctx context.Context, withGenerator bool) (*app, error) {
	cfg := GetConfig()
	dir := GetRootDir()

	embedder, err := embedding.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	stores, err := store.Open(ctx, cfg, dir, embedder.Dimension())
	if err != nil {
		if errors.Is(err, domain.ErrDimensionMismatch) {
			return nil, fmt.Errorf("%w (run 'docrag reindex --force' after changing the embedding model)", err)
		}
		return nil, fmt.Errorf("failed to open stores: %w", err)
	}

	index, err := usecase.NewEmbeddingIndex(embedder, stores.Vectors)
	if err != nil {
		stores.Close()
		return nil, err
	}

	var searcher port.Searcher = index
	if cfg.Retrieve.CacheSize > 0 {
		searcher = cache.NewCachedSearcher(index, cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL))
	}

	var generator port.Generator
	if withGenerator {
		generator, err = llm.New(cfg)
		if err != nil {
			stores.Close()
			return nil, fmt.Errorf("failed to create generator: %w", err)
		}
	}

	tokenizer := analyzer.NewWordTokenizer()
	engine := usecase.NewRetrieveUseCase(
		index,
		searcher,
		newExpander(cfg),
		retriever.NewOverlapReranker(),
		usecase.NewPackUseCase(tokenizer),
		generator,
		usecase.RetrieveSettings{
			TopK:             cfg.Retrieve.TopK,
			MaxContextLength: cfg.Retrieve.MaxContextLength,
			Generate:         llm.Options(cfg),
		},
	)

	indexer := usecase.NewIndexUseCase(
		stores.Documents,
		fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes, int64(cfg.Ingest.MaxFileSizeMB)<<20),
		fs.NewLoader(),
		chunker.NewParagraphChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap, tokenizer),
		engine,
		cfg.Ingest.Workers,
	)

	log.Debug().
		Str("embedder", embedder.ModelName()).
		Str("backend", stores.Vectors.Name()).
		Str("store", cfg.Store.Driver).
		Msg("runtime ready")

	return &app{
		cfg:     cfg,
		stores:  stores,
		engine:  engine,
		indexer: indexer,
		convs:   usecase.NewConversationUseCase(engine, stores.History),
		exports: usecase.NewExportUseCase(stores.History, stores.Documents),
	}, nil
}

func newExpander(cfg *config.Config) port.QueryExpander {
	if cfg.Retrieve.Expander == "keywords" {
		return retriever.NewKeywordExpander(analyzer.NewTermTokenizer())
	}
	return retriever.NewTrimExpander()
}

func (a *app) Close() error {
	return a.stores.Close()
}
