package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"

	"docrag/internal/domain"
	"docrag/internal/port"
)

type embeddingRow struct {
	bun.BaseModel `bun:"table:docrag_embeddings,alias:e"`

	SurrogateID int64           `bun:"surrogate_id,pk"`
	StringID    string          `bun:"string_id,notnull"`
	DocumentID  int64           `bun:"document_id,notnull"`
	PageNumber  int             `bun:"page_number,notnull"`
	ChunkIndex  int             `bun:"chunk_index,notnull"`
	TokenCount  int             `bun:"token_count,notnull"`
	Text        string          `bun:"text,notnull"`
	Embedding   pgvector.Vector `bun:"embedding,type:vector"`

	Distance float64 `bun:"distance,scanonly"`
}

var pgFilterColumns = map[string]string{
	domain.FilterDocumentID: "document_id",
	domain.FilterPageNumber: "page_number",
	domain.FilterChunkIndex: "chunk_index",
	domain.FilterTokenCount: "token_count",
	domain.FilterStringID:   "string_id",
}

// PgVectorStore keeps vectors in Postgres with the pgvector extension and
// searches exactly with the <-> operator (no ANN index is created).
type PgVectorStore struct {
	db        *bun.DB
	dimension int
}

func OpenPgVectorStore(ctx context.Context, db *bun.DB, dimension int) (*PgVectorStore, error) {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return nil, fmt.Errorf("failed to enable pgvector: %w", err)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS docrag_embeddings (
		surrogate_id BIGINT PRIMARY KEY,
		string_id TEXT NOT NULL,
		document_id BIGINT NOT NULL,
		page_number INTEGER NOT NULL,
		chunk_index INTEGER NOT NULL,
		token_count INTEGER NOT NULL,
		text TEXT NOT NULL,
		embedding vector(%d) NOT NULL
	)`, dimension)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("failed to create embeddings table: %w", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS docrag_embeddings_document_id_idx ON docrag_embeddings (document_id)"); err != nil {
		return nil, fmt.Errorf("failed to create document index: %w", err)
	}

	var stored int
	err := db.NewRaw("SELECT atttypmod FROM pg_attribute WHERE attrelid = 'docrag_embeddings'::regclass AND attname = 'embedding'").
		Scan(ctx, &stored)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding dimension: %w", err)
	}
	if stored != dimension {
		return nil, fmt.Errorf("%w: table has %d, embedder produces %d", domain.ErrDimensionMismatch, stored, dimension)
	}

	return &PgVectorStore{db: db, dimension: dimension}, nil
}

func (s *PgVectorStore) Upsert(ctx context.Context, items []port.VectorItem) error {
	if len(items) == 0 {
		return nil
	}
	// one INSERT ... ON CONFLICT cannot touch a key twice; the last item wins
	rows := make([]embeddingRow, 0, len(items))
	pos := make(map[int64]int, len(items))
	for _, item := range items {
		if len(item.Vector) != s.dimension {
			return fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, s.dimension, len(item.Vector))
		}
		md := item.Metadata
		row := embeddingRow{
			SurrogateID: item.SurrogateID,
			StringID:    md.StringID,
			DocumentID:  md.DocumentID,
			PageNumber:  md.PageNumber,
			ChunkIndex:  md.ChunkIndex,
			TokenCount:  md.TokenCount,
			Text:        md.Text,
			Embedding:   pgvector.NewVector(item.Vector),
		}
		if i, ok := pos[item.SurrogateID]; ok {
			rows[i] = row
			continue
		}
		pos[item.SurrogateID] = len(rows)
		rows = append(rows, row)
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		ids := make([]int64, len(items))
		for i, item := range items {
			ids[i] = item.SurrogateID
		}
		var existing []embeddingRow
		err := tx.NewSelect().
			Model(&existing).
			Column("surrogate_id", "string_id").
			Where("surrogate_id IN (?)", bun.In(ids)).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("failed to read existing embeddings: %w", err)
		}
		owners := make(map[int64]string, len(existing))
		for _, r := range existing {
			owners[r.SurrogateID] = r.StringID
		}
		err = checkSurrogates(items, func(id int64) (string, bool) {
			owner, ok := owners[id]
			return owner, ok
		})
		if err != nil {
			return err
		}

		_, err = tx.NewInsert().
			Model(&rows).
			On("CONFLICT (surrogate_id) DO UPDATE").
			Set("string_id = EXCLUDED.string_id").
			Set("document_id = EXCLUDED.document_id").
			Set("page_number = EXCLUDED.page_number").
			Set("chunk_index = EXCLUDED.chunk_index").
			Set("token_count = EXCLUDED.token_count").
			Set("text = EXCLUDED.text").
			Set("embedding = EXCLUDED.embedding").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to upsert embeddings: %w", err)
		}
		return nil
	})
}

func (s *PgVectorStore) Search(ctx context.Context, query []float32, k int) ([]port.VectorResult, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", domain.ErrDimensionMismatch, len(query), s.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	vec := pgvector.NewVector(query)
	var rows []embeddingRow
	err := s.db.NewSelect().
		Model(&rows).
		ColumnExpr("e.*").
		ColumnExpr("(e.embedding <-> ?) ^ 2 AS distance", vec).
		OrderExpr("e.embedding <-> ?", vec).
		OrderExpr("e.surrogate_id").
		Limit(k).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search embeddings: %w", err)
	}

	results := make([]port.VectorResult, 0, len(rows))
	for _, r := range rows {
		results = append(results, port.VectorResult{
			SurrogateID: r.SurrogateID,
			Distance:    r.Distance,
			Metadata: domain.Metadata{
				DocumentID: r.DocumentID,
				PageNumber: r.PageNumber,
				ChunkIndex: r.ChunkIndex,
				TokenCount: r.TokenCount,
				Text:       r.Text,
				StringID:   r.StringID,
			},
		})
	}
	return results, nil
}

func (s *PgVectorStore) DeleteWhere(ctx context.Context, filter domain.Filter) (int, error) {
	q := s.db.NewDelete().Model((*embeddingRow)(nil))
	if len(filter) == 0 {
		q = q.Where("TRUE")
	}
	for key, value := range filter {
		col, ok := pgFilterColumns[key]
		if !ok {
			return 0, fmt.Errorf("unsupported filter key %q", key)
		}
		if col == "string_id" {
			q = q.Where("? = ?", bun.Ident(col), value)
			continue
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			// an integer column never equals a non-integer value
			return 0, nil
		}
		q = q.Where("? = ?", bun.Ident(col), n)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete embeddings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *PgVectorStore) Count(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*embeddingRow)(nil)).Count(ctx)
}

func (s *PgVectorStore) Dimension() int {
	return s.dimension
}

func (s *PgVectorStore) Name() string {
	return "pgvector"
}

// Close leaves the shared connection open; its owner closes it.
func (s *PgVectorStore) Close() error {
	return nil
}
