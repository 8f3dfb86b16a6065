package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docrag/internal/domain"
	"docrag/internal/usecase"
)

// Asker answers one chat question, usually within a stored conversation.
type Asker interface {
	Ask(ctx context.Context, question string) (*usecase.QueryResult, error)
}

type entry struct {
	sender    string
	text      string
	citations []int
}

type answerMsg struct {
	question string
	result   *usecase.QueryResult
	err      error
}

// Model is the Bubble Tea model of the chat screen.
type Model struct {
	ctx      context.Context
	asker    Asker
	title    string
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	history  []entry
	status   string
	waiting  bool
	ready    bool
}

func New(ctx context.Context, asker Asker, title string, history []domain.Turn) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:      ctx,
		asker:    asker,
		title:    title,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Esc or Ctrl+C to quit.",
	}
	for _, t := range history {
		m.history = append(m.history, entry{sender: t.Sender, text: t.Text, citations: t.Citations})
	}
	return m
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(question string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.asker.Ask(m.ctx, question)
		return answerMsg{question: question, result: res, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 // header, input line, status
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.waiting {
				return m, nil
			}
			m.input.Reset()
			m.history = append(m.history, entry{sender: domain.SenderUser, text: q})
			m.waiting = true
			m.status = "Thinking..."
			m.refresh()
			return m, tea.Batch(m.ask(q), m.spinner.Tick)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.refresh()
			return m, nil
		}
		m.history = append(m.history, entry{
			sender:    domain.SenderAssistant,
			text:      msg.result.Answer,
			citations: msg.result.Citations,
		})
		m.status = fmt.Sprintf("%d chunks retrieved", len(msg.result.Chunks))
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render(m.title)
	status := statusStyle.Render(m.status)
	if m.waiting {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" +
		transcriptStyle.Render(m.viewport.View()) + "\n" +
		inputStyle.Render(m.input.View()) + "\n" +
		status
}

func (m Model) renderTranscript() string {
	if len(m.history) == 0 {
		return placeholderStyle.Render("No messages yet.")
	}
	width := max(10, m.viewport.Width-2)
	var b strings.Builder
	for i, e := range m.history {
		if i > 0 {
			b.WriteString("\n\n")
		}
		label := assistantStyle
		if e.sender == domain.SenderUser {
			label = userStyle
		}
		b.WriteString(label.Render(strings.ToUpper(e.sender)))
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(width).Render(e.text))
		if len(e.citations) > 0 {
			b.WriteString("\n")
			b.WriteString(sourcesStyle.Render(formatSources(e.citations)))
		}
	}
	return b.String()
}

func formatSources(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = fmt.Sprintf("Page %d", p)
	}
	return "Sources: " + strings.Join(parts, ", ")
}

var (
	headerStyle      = lipgloss.NewStyle().Bold(true)
	transcriptStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	sourcesStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	placeholderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
