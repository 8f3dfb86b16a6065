package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/config"
	"docrag/internal/domain"
)

func newTestBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "docrag.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBoltStore_DocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestBoltStore(t)

	doc := &domain.Document{Name: "report.pdf", Path: "/tmp/report.pdf", FileSize: 1024}
	require.NoError(t, s.CreateDocument(ctx, doc))
	assert.Equal(t, int64(1), doc.ID)
	assert.False(t, doc.UploadedAt.IsZero())

	second := &domain.Document{Name: "notes.md"}
	require.NoError(t, s.CreateDocument(ctx, second))
	assert.Equal(t, int64(2), second.ID)

	require.NoError(t, s.SaveChunks(ctx, doc.ID, []domain.ChunkRecord{
		{Chunk: domain.Chunk{Text: "a", PageNumber: 1, DocumentID: doc.ID}, EmbeddingID: "e1"},
		{Chunk: domain.Chunk{Text: "b", PageNumber: 2, DocumentID: doc.ID}, EmbeddingID: "e2"},
	}))
	require.NoError(t, s.MarkProcessed(ctx, doc.ID, 2))

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, got.Processed)
	assert.Equal(t, 2, got.PageCount)

	chunks, err := s.ListChunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "e2", chunks[1].EmbeddingID)

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	require.NoError(t, s.DeleteDocument(ctx, doc.ID))
	_, err = s.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	chunks, err = s.ListChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	assert.ErrorIs(t, s.DeleteDocument(ctx, doc.ID), domain.ErrNotFound)
}

func TestBoltStore_TurnsKeepOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestBoltStore(t)

	conv := &domain.Conversation{Title: "Q3 review"}
	require.NoError(t, s.CreateConversation(ctx, conv))

	for i, text := range []string{"q1", "a1", "q2", "a2", "q3", "a3"} {
		sender := domain.SenderUser
		if i%2 == 1 {
			sender = domain.SenderAssistant
		}
		require.NoError(t, s.AppendTurns(ctx, conv.ID, domain.Turn{Sender: sender, Text: text}))
	}

	recent, err := s.RecentTurns(ctx, conv.ID, 4)
	require.NoError(t, err)
	require.Len(t, recent, 4)
	assert.Equal(t, []string{"q2", "a2", "q3", "a3"}, []string{recent[0].Text, recent[1].Text, recent[2].Text, recent[3].Text})

	all, err := s.Turns(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, all, 6)

	none, err := s.RecentTurns(ctx, 999, 4)
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.ErrorIs(t, s.AppendTurns(ctx, 999, domain.Turn{Text: "x"}), domain.ErrNotFound)
}

func TestBoltStore_Migration(t *testing.T) {
	s := newTestBoltStore(t)
	cfg := config.DefaultConfig()

	res, err := s.CheckMigration(cfg)
	require.NoError(t, err)
	assert.True(t, res.NeedsMigration)

	require.NoError(t, s.Migrate(cfg))
	res, err = s.CheckMigration(cfg)
	require.NoError(t, err)
	assert.False(t, res.NeedsMigration)
	assert.False(t, res.NeedsRebuild)

	changed := config.DefaultConfig()
	changed.Chunking.ChunkSize = 256
	res, err = s.CheckMigration(changed)
	require.NoError(t, err)
	assert.True(t, res.NeedsRebuild)
}

func TestBoltStore_ClearKeepsConversations(t *testing.T) {
	ctx := context.Background()
	s := newTestBoltStore(t)

	require.NoError(t, s.CreateDocument(ctx, &domain.Document{Name: "a"}))
	conv := &domain.Conversation{Title: "t"}
	require.NoError(t, s.CreateConversation(ctx, conv))

	require.NoError(t, s.Clear())

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
	_, err = s.GetConversation(ctx, conv.ID)
	assert.NoError(t, err)
}
