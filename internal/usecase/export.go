package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"docrag/internal/domain"
	"docrag/internal/port"
)

const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

var exportHTML = template.Must(template.New("export.html").Funcs(template.FuncMap{
	"title": titleCase,
}).ParseFS(promptTemplates, "templates/export.html"))

// ConversationExport is the document written by every export format.
type ConversationExport struct {
	ID           int64           `json:"id"`
	Title        string          `json:"title"`
	ExportedAt   time.Time       `json:"exported_at"`
	DocumentName string          `json:"document_name,omitempty"`
	Messages     []ExportMessage `json:"messages"`
}

type ExportMessage struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Citations []int     `json:"citations"`
	Timestamp time.Time `json:"timestamp"`
}

// ExportUseCase renders stored conversations.
type ExportUseCase struct {
	history port.HistoryStore
	docs    port.DocumentStore
	now     func() time.Time
}

func NewExportUseCase(history port.HistoryStore, docs port.DocumentStore) *ExportUseCase {
	return &ExportUseCase{history: history, docs: docs, now: time.Now}
}

// Build collects a conversation, its turns and, when it is scoped to a
// document that still exists, the document name.
func (u *ExportUseCase) Build(ctx context.Context, conversationID int64) (*ConversationExport, error) {
	conv, err := u.history.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	turns, err := u.history.Turns(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	exp := &ConversationExport{
		ID:         conv.ID,
		Title:      conv.Title,
		ExportedAt: u.now(),
		Messages:   make([]ExportMessage, 0, len(turns)),
	}
	if exp.Title == "" {
		exp.Title = "Conversation"
	}
	if conv.DocumentID != nil {
		if doc, err := u.docs.GetDocument(ctx, *conv.DocumentID); err == nil {
			exp.DocumentName = doc.Name
		}
	}
	for _, t := range turns {
		exp.Messages = append(exp.Messages, ExportMessage{
			Sender:    t.Sender,
			Text:      t.Text,
			Citations: t.Citations,
			Timestamp: t.CreatedAt,
		})
	}
	return exp, nil
}

func (u *ExportUseCase) Export(ctx context.Context, conversationID int64, format string, w io.Writer) error {
	exp, err := u.Build(ctx, conversationID)
	if err != nil {
		return err
	}
	return Render(exp, format, w)
}

// Render writes exp to w in format.
func Render(exp *ConversationExport, format string, w io.Writer) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(exp)
	case FormatMarkdown:
		_, err := io.WriteString(w, renderMarkdown(exp))
		return err
	case FormatHTML:
		return exportHTML.Execute(w, exp)
	default:
		return fmt.Errorf("%w: export format %q", domain.ErrUnsupportedFormat, format)
	}
}

func renderMarkdown(exp *ConversationExport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", exp.Title)
	fmt.Fprintf(&b, "**Exported:** %s\n\n", exp.ExportedAt.Format("2006-01-02 15:04:05"))
	if exp.DocumentName != "" {
		fmt.Fprintf(&b, "**Document:** %s\n\n", exp.DocumentName)
	}
	b.WriteString("---\n\n")

	for _, m := range exp.Messages {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", strings.ToUpper(m.Sender), m.Text)
		if len(m.Citations) > 0 {
			pages := make([]string, len(m.Citations))
			for i, c := range m.Citations {
				pages[i] = fmt.Sprintf("Page %d", c)
			}
			fmt.Fprintf(&b, "**Sources:** %s\n\n", strings.Join(pages, ", "))
		}
		fmt.Fprintf(&b, "*%s*\n\n---\n\n", m.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
