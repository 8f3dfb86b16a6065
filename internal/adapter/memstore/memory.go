package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"docrag/internal/domain"
)

// MemoryStore keeps documents and conversations in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	docs      map[int64]domain.Document
	docChunks map[int64][]domain.ChunkRecord
	convs     map[int64]domain.Conversation
	turns     map[int64][]domain.Turn
	nextDoc   int64
	nextConv  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:      make(map[int64]domain.Document),
		docChunks: make(map[int64][]domain.ChunkRecord),
		convs:     make(map[int64]domain.Conversation),
		turns:     make(map[int64][]domain.Turn),
	}
}

func (s *MemoryStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextDoc++
	doc.ID = s.nextDoc
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	s.docs[doc.ID] = *doc
	return nil
}

func (s *MemoryStore) GetDocument(ctx context.Context, id int64) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return domain.Document{}, fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	return doc, nil
}

func (s *MemoryStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *MemoryStore) MarkProcessed(ctx context.Context, id int64, pageCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	doc.Processed = true
	doc.PageCount = pageCount
	s.docs[id] = doc
	return nil
}

func (s *MemoryStore) SaveChunks(ctx context.Context, docID int64, chunks []domain.ChunkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[docID]; !ok {
		return fmt.Errorf("document %d: %w", docID, domain.ErrNotFound)
	}
	s.docChunks[docID] = append([]domain.ChunkRecord(nil), chunks...)
	return nil
}

func (s *MemoryStore) ListChunks(ctx context.Context, docID int64) ([]domain.ChunkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ChunkRecord(nil), s.docChunks[docID]...), nil
}

func (s *MemoryStore) DeleteDocument(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	delete(s.docs, id)
	delete(s.docChunks, id)
	return nil
}

func (s *MemoryStore) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextConv++
	now := time.Now().UTC()
	conv.ID, conv.CreatedAt, conv.UpdatedAt = s.nextConv, now, now
	s.convs[conv.ID] = *conv
	return nil
}

func (s *MemoryStore) GetConversation(ctx context.Context, id int64) (domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[id]
	if !ok {
		return domain.Conversation{}, fmt.Errorf("conversation %d: %w", id, domain.ErrNotFound)
	}
	return conv, nil
}

func (s *MemoryStore) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	convs := make([]domain.Conversation, 0, len(s.convs))
	for _, c := range s.convs {
		convs = append(convs, c)
	}
	sort.Slice(convs, func(i, j int) bool { return convs[i].ID < convs[j].ID })
	return convs, nil
}

func (s *MemoryStore) AppendTurns(ctx context.Context, conversationID int64, turns ...domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[conversationID]
	if !ok {
		return fmt.Errorf("conversation %d: %w", conversationID, domain.ErrNotFound)
	}
	now := time.Now().UTC()
	for _, t := range turns {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		s.turns[conversationID] = append(s.turns[conversationID], t)
	}
	conv.UpdatedAt = now
	s.convs[conversationID] = conv
	return nil
}

func (s *MemoryStore) RecentTurns(ctx context.Context, conversationID int64, n int) ([]domain.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 {
		return nil, nil
	}
	all := s.turns[conversationID]
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return append([]domain.Turn(nil), all...), nil
}

func (s *MemoryStore) Turns(ctx context.Context, conversationID int64) ([]domain.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Turn(nil), s.turns[conversationID]...), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
