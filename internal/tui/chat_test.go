package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"docrag/internal/domain"
	"docrag/internal/usecase"
)

type stubAsker struct {
	asked []string
	err   error
}

func (s *stubAsker) Ask(ctx context.Context, question string) (*usecase.QueryResult, error) {
	s.asked = append(s.asked, question)
	if s.err != nil {
		return nil, s.err
	}
	return &usecase.QueryResult{
		Answer:    "Thirty days.",
		Citations: []int{2, 4},
		Chunks:    []domain.SearchResult{{}, {}},
	}, nil
}

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return next.(Model)
}

func submit(t *testing.T, m Model, text string) Model {
	t.Helper()
	m.input.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if cmd == nil {
		t.Fatal("expected a command after enter")
	}
	if !m.waiting {
		t.Fatal("expected the model to wait for an answer")
	}
	next, _ = m.Update(m.ask(strings.TrimSpace(text))())
	return next.(Model)
}

func TestChat_AnswerIsRendered(t *testing.T) {
	asker := &stubAsker{}
	m := sized(New(context.Background(), asker, "Chat", nil))

	m = submit(t, m, "  What is the refund window?  ")

	if len(asker.asked) != 1 || asker.asked[0] != "What is the refund window?" {
		t.Fatalf("unexpected questions: %q", asker.asked)
	}
	if m.waiting {
		t.Error("model still waiting after the answer arrived")
	}
	view := m.renderTranscript()
	for _, want := range []string{"USER", "What is the refund window?", "ASSISTANT", "Thirty days.", "Sources: Page 2, Page 4"} {
		if !strings.Contains(view, want) {
			t.Errorf("transcript missing %q:\n%s", want, view)
		}
	}
	if !strings.Contains(m.status, "2 chunks") {
		t.Errorf("unexpected status %q", m.status)
	}
}

func TestChat_ErrorShownInStatus(t *testing.T) {
	asker := &stubAsker{err: errors.New("model offline")}
	m := sized(New(context.Background(), asker, "Chat", nil))

	m = submit(t, m, "hello")

	if !strings.Contains(m.status, "model offline") {
		t.Errorf("expected error in status, got %q", m.status)
	}
	if len(m.history) != 1 {
		t.Errorf("expected only the question in history, got %d entries", len(m.history))
	}
}

func TestChat_EmptyInputIgnored(t *testing.T) {
	asker := &stubAsker{}
	m := sized(New(context.Background(), asker, "Chat", nil))

	m.input.SetValue("   ")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil || next.(Model).waiting {
		t.Error("blank input must not start a query")
	}
}

func TestChat_HistoryIsShown(t *testing.T) {
	m := sized(New(context.Background(), &stubAsker{}, "Chat", []domain.Turn{
		{Sender: domain.SenderUser, Text: "earlier question"},
		{Sender: domain.SenderAssistant, Text: "earlier answer", Citations: []int{1}},
	}))

	view := m.renderTranscript()
	if !strings.Contains(view, "earlier answer") || !strings.Contains(view, "Sources: Page 1") {
		t.Errorf("history not rendered:\n%s", view)
	}
}
