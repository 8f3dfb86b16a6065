package usecase

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"docrag/internal/domain"
)

//go:embed templates/*.txt templates/*.html
var promptTemplates embed.FS

var (
	answerTemplate      = mustTemplate("templates/answer.txt")
	reformulateTemplate = mustTemplate("templates/reformulate.txt")
)

// NoAnswer is returned when retrieval finds nothing to answer from.
const NoAnswer = "I couldn't find relevant information to answer your question."

const (
	historyTurns    = 4
	historyTextRune = 200
)

func mustTemplate(name string) *template.Template {
	content, err := promptTemplates.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("prompt template %s: %v", name, err))
	}
	return template.Must(template.New(name).Parse(string(content)))
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// BuildAnswerPrompt asks the model to answer question from context and cite
// pages as [Page N].
func BuildAnswerPrompt(question, context string) (string, error) {
	return render(answerTemplate, struct {
		Question string
		Context  string
	}{question, context})
}

// BuildReformulatedQuestion folds recent turns into the question. Each turn
// is rendered as "sender: text" with text cut to 200 characters.
func BuildReformulatedQuestion(question string, turns []domain.Turn) (string, error) {
	type line struct {
		Sender string
		Text   string
	}
	lines := make([]line, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, line{Sender: t.Sender, Text: truncateRunes(t.Text, historyTextRune)})
	}
	return render(reformulateTemplate, struct {
		Question string
		Turns    []line
	}{question, lines})
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
