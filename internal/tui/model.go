package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docq/internal/domain"
)

// QAPort is the TUI-facing subset of the question answering service.
type QAPort interface {
	Ask(ctx context.Context, question, sourceFilter string) (domain.Answer, error)
	Documents(ctx context.Context) ([]domain.SourceCount, error)
	Count(ctx context.Context) (int, error)
}

// Model is the Bubble Tea model for the interactive question session.
type Model struct {
	qa       QAPort
	input    textinput.Model
	viewport viewport.Model
	filter   string
	status   string
	ready    bool
}

// New creates a new TUI model instance. chunks is the indexed chunk
// count shown in the header line; filter optionally restricts the
// whole session to one source document.
func New(qa QAPort, chunks int, filter string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or type /docs, /filter <source>, /help"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		qa:       qa,
		input:    ti,
		viewport: vp,
		filter:   filter,
		status:   fmt.Sprintf("Index ready with %d chunks.", chunks),
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around answer and question boxes
		_, ah := answerBoxStyle.GetFrameSize()
		_, qh := questionBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + filter line
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-ah)
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			if line != "" {
				m = m.handleLine(line)
				m.input.SetValue("")
				return m, nil
			}
		case "up":
			m.viewport.LineUp(1)
			return m, nil
		case "down":
			m.viewport.LineDown(1)
			return m, nil
		case "pgup":
			m.viewport.HalfViewUp()
			return m, nil
		case "pgdown":
			m.viewport.HalfViewDown()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleLine dispatches slash commands; anything else is a question.
func (m Model) handleLine(line string) Model {
	switch {
	case line == "/help":
		m.viewport.SetContent(helpText)
		m.status = "Help"
	case line == "/docs" || line == "/documents":
		m = m.showDocuments()
	case line == "/filter":
		m.filter = ""
		m.status = "Filter cleared. Questions now search every document."
	case strings.HasPrefix(line, "/filter "):
		m.filter = strings.TrimSpace(strings.TrimPrefix(line, "/filter "))
		m.status = fmt.Sprintf("Questions restricted to %q.", m.filter)
	case strings.HasPrefix(line, "/"):
		m.status = fmt.Sprintf("Unknown command %q. Try /help.", line)
	default:
		m = m.ask(line)
	}
	return m
}

func (m Model) ask(question string) Model {
	answer, err := m.qa.Ask(context.Background(), question, m.filter)
	if err != nil {
		m.status = "Error: " + err.Error()
		return m
	}
	m.viewport.SetContent(renderAnswer(answer))
	m.viewport.GotoTop()
	if m.filter != "" {
		m.status = fmt.Sprintf("Answered (filter: %s)", m.filter)
	} else {
		m.status = "Answered"
	}
	return m
}

func (m Model) showDocuments() Model {
	docs, err := m.qa.Documents(context.Background())
	if err != nil {
		m.status = "Error: " + err.Error()
		return m
	}
	if len(docs) == 0 {
		m.viewport.SetContent("No documents indexed yet.")
		m.status = "Index is empty"
		return m
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Indexed documents") + "\n\n")
	total := 0
	for _, d := range docs {
		fmt.Fprintf(&b, "  %s  (%d chunks)\n", d.Source, d.Chunks)
		total += d.Chunks
	}
	fmt.Fprintf(&b, "\n%d documents, %d chunks", len(docs), total)
	m.viewport.SetContent(b.String())
	m.viewport.GotoTop()
	m.status = fmt.Sprintf("%d documents", len(docs))
	return m
}

// View renders the TUI layout and current answer.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("docq")
	filterLine := dimStyle.Render("filter: all documents")
	if m.filter != "" {
		filterLine = dimStyle.Render("filter: " + m.filter)
	}
	answer := answerBoxStyle.Render(m.viewport.View())
	input := questionBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + filterLine + "\n" + answer + "\n" + input + "\n" + status
}

func renderAnswer(a domain.Answer) string {
	var b strings.Builder
	b.WriteString(a.Text)
	if len(a.Citations) > 0 {
		b.WriteString("\n\n" + citationStyle.Render("Sources:") + "\n")
		for _, c := range a.Citations {
			b.WriteString("  " + citationStyle.Render("• "+c) + "\n")
		}
	}
	return b.String()
}

const helpText = `Type a question and press Enter to search the indexed documents.

Commands:
  /docs              list indexed documents with chunk counts
  /filter <source>   restrict questions to one document
  /filter            clear the document filter
  /help              this text

Ctrl+C or Ctrl+D quits. Up/Down scroll the answer.`

var (
	answerBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	titleStyle       = lipgloss.NewStyle().Bold(true)
	dimStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	citationStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
