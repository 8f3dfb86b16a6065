package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"docrag/config"
	"docrag/internal/adapter/memstore"
	"docrag/internal/domain"
	"docrag/internal/port"
)

// Stores bundles the backends selected by configuration.
type Stores struct {
	Vectors   port.VectorStore
	Documents port.DocumentStore
	History   port.HistoryStore
	// Bolt is set when store.driver is bolt; it carries schema info.
	Bolt *BoltStore

	pg *bun.DB
}

// Open builds the document, history and vector stores for a project rooted at dir.
func Open(ctx context.Context, cfg *config.Config, dir string, dimension int) (*Stores, error) {
	s := &Stores{}

	needPG := cfg.Store.Driver == "postgres" || cfg.Index.Backend == "pgvector"
	if needPG {
		dsn := os.Getenv(cfg.Store.DSNEnv)
		if dsn == "" {
			return nil, fmt.Errorf("%w: %s is not set", domain.ErrMissingCredentials, cfg.Store.DSNEnv)
		}
		db, err := OpenPostgres(ctx, dsn, cfg.Store.Debug)
		if err != nil {
			return nil, err
		}
		s.pg = db
	}

	if err := s.openDocuments(ctx, cfg, dir); err != nil {
		s.Close()
		return nil, err
	}

	vs, err := NewVectorStore(ctx, cfg, dir, dimension, s.pg)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Vectors = vs
	return s, nil
}

func (s *Stores) openDocuments(ctx context.Context, cfg *config.Config, dir string) error {
	switch cfg.Store.Driver {
	case "bolt", "":
		if err := config.EnsureDataDir(dir); err != nil {
			return err
		}
		bs, err := NewBoltStore(config.ResolvePath(dir, cfg.Store.Path))
		if err != nil {
			return err
		}
		s.Bolt, s.Documents, s.History = bs, bs, bs
	case "postgres":
		ps, err := NewPostgresStore(ctx, s.pg)
		if err != nil {
			return err
		}
		s.Documents, s.History = ps, ps
	case "memory":
		ms := memstore.NewMemoryStore()
		s.Documents, s.History = ms, ms
	default:
		return fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
	return nil
}

// NewVectorStore opens the backend named by cfg.Index.Backend. db is only
// used by pgvector and may be nil otherwise.
func NewVectorStore(ctx context.Context, cfg *config.Config, dir string, dimension int, db *bun.DB) (port.VectorStore, error) {
	indexDir := config.ResolvePath(dir, cfg.Index.Dir)
	switch cfg.Index.Backend {
	case "flat", "":
		return OpenFlatVectorStore(indexDir, dimension)
	case "chromem":
		return OpenChromemVectorStore(indexDir, cfg.Index.Collection, dimension, cfg.Index.Compress)
	case "pgvector":
		if db == nil {
			return nil, errors.New("pgvector backend requires a postgres connection")
		}
		return OpenPgVectorStore(ctx, db, dimension)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedBackend, cfg.Index.Backend)
	}
}

func (s *Stores) Close() error {
	var errs []error
	if s.Vectors != nil {
		errs = append(errs, s.Vectors.Close())
	}
	if s.Documents != nil {
		errs = append(errs, s.Documents.Close())
	}
	if s.pg != nil {
		errs = append(errs, s.pg.Close())
	}
	err := errors.Join(errs...)
	if err != nil {
		log.Warn().Err(err).Msg("closing stores")
	}
	return err
}

// ResetIndex discards the vector index selected by cfg so the next Open
// starts empty, whatever dimension it was built with.
func ResetIndex(ctx context.Context, cfg *config.Config, dir string) error {
	switch cfg.Index.Backend {
	case "flat", "", "chromem":
		indexDir := config.ResolvePath(dir, cfg.Index.Dir)
		if err := os.RemoveAll(indexDir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", indexDir, err)
		}
		return nil
	case "pgvector":
		dsn := os.Getenv(cfg.Store.DSNEnv)
		if dsn == "" {
			return fmt.Errorf("%w: %s is not set", domain.ErrMissingCredentials, cfg.Store.DSNEnv)
		}
		db, err := OpenPostgres(ctx, dsn, cfg.Store.Debug)
		if err != nil {
			return err
		}
		defer db.Close()
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS docrag_embeddings"); err != nil {
			return fmt.Errorf("failed to drop embeddings table: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedBackend, cfg.Index.Backend)
	}
}
