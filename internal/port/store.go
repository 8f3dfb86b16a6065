package port

import (
	"context"

	"docrag/internal/domain"
)

// DocumentStore persists documents and their indexed chunks.
type DocumentStore interface {
	// CreateDocument assigns doc.ID.
	CreateDocument(ctx context.Context, doc *domain.Document) error
	GetDocument(ctx context.Context, id int64) (domain.Document, error)
	ListDocuments(ctx context.Context) ([]domain.Document, error)
	MarkProcessed(ctx context.Context, id int64, pageCount int) error
	SaveChunks(ctx context.Context, docID int64, chunks []domain.ChunkRecord) error
	ListChunks(ctx context.Context, docID int64) ([]domain.ChunkRecord, error)
	// DeleteDocument removes the document and its chunks.
	DeleteDocument(ctx context.Context, id int64) error
	Close() error
}

// HistoryStore persists conversations and their turns.
type HistoryStore interface {
	CreateConversation(ctx context.Context, conv *domain.Conversation) error
	GetConversation(ctx context.Context, id int64) (domain.Conversation, error)
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	// AppendTurns stores turns in order as one unit.
	AppendTurns(ctx context.Context, conversationID int64, turns ...domain.Turn) error
	// RecentTurns returns up to n of the latest turns, oldest first.
	RecentTurns(ctx context.Context, conversationID int64, n int) ([]domain.Turn, error)
	Turns(ctx context.Context, conversationID int64) ([]domain.Turn, error)
}
