package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/samber/mo"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// Querier is the part of the retrieval engine the conversation manager needs.
type Querier interface {
	Query(ctx context.Context, params QueryParams) (*QueryResult, error)
}

// ConversationUseCase answers follow-up questions using the last few turns
// of a stored conversation.
type ConversationUseCase struct {
	engine  Querier
	history port.HistoryStore

	mu    sync.Mutex
	locks map[int64]*conversationLock
}

// conversationLock is dropped from the map once no query holds or waits on it.
type conversationLock struct {
	sync.Mutex
	refs int
}

func NewConversationUseCase(engine Querier, history port.HistoryStore) *ConversationUseCase {
	return &ConversationUseCase{
		engine:  engine,
		history: history,
		locks:   make(map[int64]*conversationLock),
	}
}

func (u *ConversationUseCase) lock(conversationID int64) func() {
	u.mu.Lock()
	l, ok := u.locks[conversationID]
	if !ok {
		l = &conversationLock{}
		u.locks[conversationID] = l
	}
	l.refs++
	u.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		u.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(u.locks, conversationID)
		}
		u.mu.Unlock()
	}
}

// Start creates a conversation, optionally scoped to one document.
func (u *ConversationUseCase) Start(ctx context.Context, title string, documentID mo.Option[int64]) (domain.Conversation, error) {
	conv := domain.Conversation{Title: title}
	if id, ok := documentID.Get(); ok {
		conv.DocumentID = &id
	}
	if err := u.history.CreateConversation(ctx, &conv); err != nil {
		return domain.Conversation{}, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// QueryWithHistory answers question in the context of conversationID. With
// prior turns, the question sent to retrieval is a templated reformulation
// of the last 4 turns plus the question; no model call is made for it. The
// original question and the answer are then appended as two turns.
// Queries on one conversation run one at a time.
func (u *ConversationUseCase) QueryWithHistory(ctx context.Context, conversationID int64, question string, documentID mo.Option[int64]) (*QueryResult, error) {
	unlock := u.lock(conversationID)
	defer unlock()

	if _, err := u.history.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	turns, err := u.history.RecentTurns(ctx, conversationID, historyTurns)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	effective := question
	if len(turns) > 0 {
		effective, err = BuildReformulatedQuestion(question, turns)
		if err != nil {
			return nil, err
		}
	}

	result, err := u.engine.Query(ctx, QueryParams{Question: effective, DocumentID: documentID})
	if err != nil {
		return nil, err
	}

	err = u.history.AppendTurns(ctx, conversationID,
		domain.Turn{Sender: domain.SenderUser, Text: question},
		domain.Turn{
			Sender:    domain.SenderAssistant,
			Text:      result.Answer,
			Citations: result.Citations,
			Chunks:    result.Chunks,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record turns: %w", err)
	}

	log.Debug().Int64("conversation_id", conversationID).Int("history", len(turns)).Msg("conversation turn recorded")
	return result, nil
}

func (u *ConversationUseCase) Turns(ctx context.Context, conversationID int64) ([]domain.Turn, error) {
	return u.history.Turns(ctx, conversationID)
}

func (u *ConversationUseCase) List(ctx context.Context) ([]domain.Conversation, error) {
	return u.history.ListConversations(ctx)
}
