package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"docrag/internal/domain"
)

type documentRow struct {
	bun.BaseModel `bun:"table:docrag_documents,alias:d"`

	ID         int64     `bun:"id,pk,autoincrement"`
	Name       string    `bun:"name,notnull"`
	Path       string    `bun:"path,notnull"`
	PageCount  int       `bun:"page_count,notnull,default:0"`
	FileSize   int64     `bun:"file_size,notnull,default:0"`
	UploadedAt time.Time `bun:"uploaded_at,notnull,default:current_timestamp"`
	Processed  bool      `bun:"processed,notnull,default:false"`
	Tags       []string  `bun:"tags,array"`
}

type chunkRow struct {
	bun.BaseModel `bun:"table:docrag_chunks,alias:c"`

	ID          int64  `bun:"id,pk,autoincrement"`
	DocumentID  int64  `bun:"document_id,notnull"`
	Position    int    `bun:"position,notnull"`
	Text        string `bun:"text,notnull"`
	TokenCount  int    `bun:"token_count,notnull"`
	PageNumber  int    `bun:"page_number,notnull"`
	ChunkIndex  int    `bun:"chunk_index,notnull"`
	EmbeddingID string `bun:"embedding_id"`
}

type conversationRow struct {
	bun.BaseModel `bun:"table:docrag_conversations,alias:cv"`

	ID         int64     `bun:"id,pk,autoincrement"`
	Title      string    `bun:"title,notnull"`
	DocumentID *int64    `bun:"document_id"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

type turnRow struct {
	bun.BaseModel `bun:"table:docrag_turns,alias:t"`

	ID             int64                 `bun:"id,pk,autoincrement"`
	ConversationID int64                 `bun:"conversation_id,notnull"`
	Sender         string                `bun:"sender,notnull"`
	Text           string                `bun:"text,notnull"`
	Citations      []int                 `bun:"citations,type:jsonb"`
	Chunks         []domain.SearchResult `bun:"chunks,type:jsonb"`
	CreatedAt      time.Time             `bun:"created_at,notnull"`
}

// PostgresStore persists documents and conversations with bun.
type PostgresStore struct {
	db *bun.DB
}

func NewPostgresStore(ctx context.Context, db *bun.DB) (*PostgresStore, error) {
	models := []any{(*documentRow)(nil), (*chunkRow)(nil), (*conversationRow)(nil), (*turnRow)(nil)}
	for _, m := range models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS docrag_chunks_document_idx ON docrag_chunks (document_id, position)",
		"CREATE INDEX IF NOT EXISTS docrag_turns_conversation_idx ON docrag_turns (conversation_id, id)",
	}
	for _, ddl := range indexes {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return nil, fmt.Errorf("failed to create index: %w", err)
		}
	}
	return &PostgresStore{db: db}, nil
}

func notFound(err error, what string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", what, id, domain.ErrNotFound)
	}
	return fmt.Errorf("%s %d: %w", what, id, err)
}

func (s *PostgresStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	row := documentRow{
		Name:       doc.Name,
		Path:       doc.Path,
		PageCount:  doc.PageCount,
		FileSize:   doc.FileSize,
		UploadedAt: doc.UploadedAt,
		Processed:  doc.Processed,
		Tags:       doc.Tags,
	}
	if _, err := s.db.NewInsert().Model(&row).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	doc.ID = row.ID
	return nil
}

func (r documentRow) toDomain() domain.Document {
	return domain.Document{
		ID:         r.ID,
		Name:       r.Name,
		Path:       r.Path,
		PageCount:  r.PageCount,
		FileSize:   r.FileSize,
		UploadedAt: r.UploadedAt,
		Processed:  r.Processed,
		Tags:       r.Tags,
	}
}

func (s *PostgresStore) GetDocument(ctx context.Context, id int64) (domain.Document, error) {
	var row documentRow
	if err := s.db.NewSelect().Model(&row).Where("d.id = ?", id).Scan(ctx); err != nil {
		return domain.Document{}, notFound(err, "document", id)
	}
	return row.toDomain(), nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	var rows []documentRow
	if err := s.db.NewSelect().Model(&rows).Order("d.id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	docs := make([]domain.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.toDomain())
	}
	return docs, nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, id int64, pageCount int) error {
	res, err := s.db.NewUpdate().Model((*documentRow)(nil)).
		Set("processed = TRUE").
		Set("page_count = ?", pageCount).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update document %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) SaveChunks(ctx context.Context, docID int64, chunks []domain.ChunkRecord) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*chunkRow)(nil)).Where("document_id = ?", docID).Exec(ctx); err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		rows := make([]chunkRow, 0, len(chunks))
		for i, c := range chunks {
			rows = append(rows, chunkRow{
				DocumentID:  docID,
				Position:    i,
				Text:        c.Text,
				TokenCount:  c.TokenCount,
				PageNumber:  c.PageNumber,
				ChunkIndex:  c.ChunkIndex,
				EmbeddingID: c.EmbeddingID,
			})
		}
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
}

func (s *PostgresStore) ListChunks(ctx context.Context, docID int64) ([]domain.ChunkRecord, error) {
	var rows []chunkRow
	if err := s.db.NewSelect().Model(&rows).Where("c.document_id = ?", docID).Order("c.position").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	chunks := make([]domain.ChunkRecord, 0, len(rows))
	for _, r := range rows {
		chunks = append(chunks, domain.ChunkRecord{
			Chunk: domain.Chunk{
				Text:       r.Text,
				TokenCount: r.TokenCount,
				PageNumber: r.PageNumber,
				ChunkIndex: r.ChunkIndex,
				DocumentID: r.DocumentID,
			},
			EmbeddingID: r.EmbeddingID,
		})
	}
	return chunks, nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, id int64) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*chunkRow)(nil)).Where("document_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		res, err := tx.NewDelete().Model((*documentRow)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
		}
		return nil
	})
}

func (s *PostgresStore) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	now := time.Now().UTC()
	row := conversationRow{Title: conv.Title, DocumentID: conv.DocumentID, CreatedAt: now, UpdatedAt: now}
	if _, err := s.db.NewInsert().Model(&row).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	conv.ID, conv.CreatedAt, conv.UpdatedAt = row.ID, now, now
	return nil
}

func (r conversationRow) toDomain() domain.Conversation {
	return domain.Conversation{
		ID:         r.ID,
		Title:      r.Title,
		DocumentID: r.DocumentID,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func (s *PostgresStore) GetConversation(ctx context.Context, id int64) (domain.Conversation, error) {
	var row conversationRow
	if err := s.db.NewSelect().Model(&row).Where("cv.id = ?", id).Scan(ctx); err != nil {
		return domain.Conversation{}, notFound(err, "conversation", id)
	}
	return row.toDomain(), nil
}

func (s *PostgresStore) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	var rows []conversationRow
	if err := s.db.NewSelect().Model(&rows).Order("cv.id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	convs := make([]domain.Conversation, 0, len(rows))
	for _, r := range rows {
		convs = append(convs, r.toDomain())
	}
	return convs, nil
}

func (s *PostgresStore) AppendTurns(ctx context.Context, conversationID int64, turns ...domain.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now().UTC()
		res, err := tx.NewUpdate().Model((*conversationRow)(nil)).
			Set("updated_at = ?", now).
			Where("id = ?", conversationID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("conversation %d: %w", conversationID, domain.ErrNotFound)
		}

		rows := make([]turnRow, 0, len(turns))
		for _, t := range turns {
			if t.CreatedAt.IsZero() {
				t.CreatedAt = now
			}
			rows = append(rows, turnRow{
				ConversationID: conversationID,
				Sender:         t.Sender,
				Text:           t.Text,
				Citations:      t.Citations,
				Chunks:         t.Chunks,
				CreatedAt:      t.CreatedAt,
			})
		}
		_, err = tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
}

func (r turnRow) toDomain() domain.Turn {
	return domain.Turn{
		Sender:    r.Sender,
		Text:      r.Text,
		Citations: r.Citations,
		Chunks:    r.Chunks,
		CreatedAt: r.CreatedAt,
	}
}

func (s *PostgresStore) RecentTurns(ctx context.Context, conversationID int64, n int) ([]domain.Turn, error) {
	if n <= 0 {
		return nil, nil
	}
	var rows []turnRow
	err := s.db.NewSelect().Model(&rows).
		Where("t.conversation_id = ?", conversationID).
		Order("t.id DESC").
		Limit(n).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}
	turns := make([]domain.Turn, len(rows))
	for i, r := range rows {
		turns[len(rows)-1-i] = r.toDomain()
	}
	return turns, nil
}

func (s *PostgresStore) Turns(ctx context.Context, conversationID int64) ([]domain.Turn, error) {
	var rows []turnRow
	err := s.db.NewSelect().Model(&rows).
		Where("t.conversation_id = ?", conversationID).
		Order("t.id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}
	turns := make([]domain.Turn, 0, len(rows))
	for _, r := range rows {
		turns = append(turns, r.toDomain())
	}
	return turns, nil
}

// Close leaves the shared connection open; its owner closes it.
func (s *PostgresStore) Close() error {
	return nil
}
