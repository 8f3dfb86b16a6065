package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func TestMemoryStore_Documents(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	a := &domain.Document{Name: "a.pdf"}
	b := &domain.Document{Name: "b.pdf"}
	require.NoError(t, s.CreateDocument(ctx, a))
	require.NoError(t, s.CreateDocument(ctx, b))
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)

	require.NoError(t, s.SaveChunks(ctx, a.ID, []domain.ChunkRecord{{Chunk: domain.Chunk{Text: "one"}}}))
	require.NoError(t, s.MarkProcessed(ctx, a.ID, 3))

	got, err := s.GetDocument(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Processed)
	assert.Equal(t, 3, got.PageCount)

	require.NoError(t, s.DeleteDocument(ctx, a.ID))
	_, err = s.GetDocument(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	chunks, err := s.ListChunks(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "b.pdf", docs[0].Name)
}

func TestMemoryStore_RecentTurns(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	conv := &domain.Conversation{Title: "chat"}
	require.NoError(t, s.CreateConversation(ctx, conv))

	for _, text := range []string{"q1", "a1", "q2", "a2", "q3", "a3"} {
		require.NoError(t, s.AppendTurns(ctx, conv.ID, domain.Turn{Sender: domain.SenderUser, Text: text}))
	}

	recent, err := s.RecentTurns(ctx, conv.ID, 4)
	require.NoError(t, err)
	require.Len(t, recent, 4)
	assert.Equal(t, "q2", recent[0].Text)
	assert.Equal(t, "a3", recent[3].Text)

	err = s.AppendTurns(ctx, 99, domain.Turn{Text: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
