package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/adapter/memstore"
	"docrag/internal/domain"
)

func seedExport(t *testing.T) (*ExportUseCase, int64) {
	t.Helper()
	ctx := context.Background()
	ms := memstore.NewMemoryStore()

	doc := domain.Document{Name: "handbook.pdf", Path: "/docs/handbook.pdf"}
	require.NoError(t, ms.CreateDocument(ctx, &doc))

	conv := NewConversationUseCase(&recordingQuerier{}, ms)
	c, err := conv.Start(ctx, "Refund <questions>", mo.Some(doc.ID))
	require.NoError(t, err)
	require.NoError(t, ms.AppendTurns(ctx, c.ID,
		domain.Turn{Sender: domain.SenderUser, Text: "What is the <refund> window?"},
		domain.Turn{Sender: domain.SenderAssistant, Text: "Thirty days [Page 3].", Citations: []int{1, 3}},
	))

	exp := NewExportUseCase(ms, ms)
	exp.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return exp, c.ID
}

func TestExport_Markdown(t *testing.T) {
	exp, id := seedExport(t)

	var buf bytes.Buffer
	require.NoError(t, exp.Export(context.Background(), id, FormatMarkdown, &buf))
	out := buf.String()

	assert.Contains(t, out, "# Refund <questions>\n\n")
	assert.Contains(t, out, "**Exported:** 2024-05-01 12:00:00\n\n")
	assert.Contains(t, out, "**Document:** handbook.pdf\n\n")
	assert.Contains(t, out, "## USER\n\nWhat is the <refund> window?\n\n")
	assert.Contains(t, out, "## ASSISTANT\n\nThirty days [Page 3].\n\n**Sources:** Page 1, Page 3\n\n")
}

func TestExport_HTMLEscapes(t *testing.T) {
	exp, id := seedExport(t)

	var buf bytes.Buffer
	require.NoError(t, exp.Export(context.Background(), id, FormatHTML, &buf))
	out := buf.String()

	assert.Contains(t, out, "What is the &lt;refund&gt; window?")
	assert.NotContains(t, out, "<refund>")
	assert.Contains(t, out, "handbook.pdf")
}

func TestExport_JSON(t *testing.T) {
	exp, id := seedExport(t)

	var buf bytes.Buffer
	require.NoError(t, exp.Export(context.Background(), id, FormatJSON, &buf))

	var decoded ConversationExport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, id, decoded.ID)
	assert.Equal(t, "handbook.pdf", decoded.DocumentName)
	require.Len(t, decoded.Messages, 2)
	assert.Equal(t, []int{1, 3}, decoded.Messages[1].Citations)
}

func TestExport_Errors(t *testing.T) {
	exp, id := seedExport(t)

	err := exp.Export(context.Background(), id, "pdf", &bytes.Buffer{})
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	err = exp.Export(context.Background(), id+100, FormatJSON, &bytes.Buffer{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
