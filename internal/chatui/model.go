// Package chatui is the terminal chat client of the chatbot API.
package chatui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"
)

// Backend is the UI-facing subset of the API client.
type Backend interface {
	Ingest(ctx context.Context, path string) (int, error)
	Chat(ctx context.Context, question string) (string, error)
}

type focus int

const (
	focusQuestion focus = iota
	focusPath
)

const sidebarWidth = 34

type answerMsg struct {
	answer string
	err    error
}

type ingestMsg struct {
	path   string
	chunks int
	err    error
}

// Model is the Bubble Tea model of the chat UI.
type Model struct {
	backend  Backend
	history  *History
	question textinput.Model
	path     textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	focus    focus
	busy     bool
	// ingestStatus is the last ingest result; ingestErr marks it as a failure.
	ingestStatus string
	ingestErr    bool
	// errBanner holds the raw body of the last failed chat request.
	errBanner string
	width     int
	height    int
}

func New(backend Backend, maxHistory int) Model {
	q := textinput.New()
	q.Prompt = "> "
	q.Placeholder = "Ask a question and press Enter"
	q.CharLimit = 0
	q.Focus()

	p := textinput.New()
	p.Prompt = "file: "
	p.Placeholder = "path/to/doc.pdf"
	p.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		backend:  backend,
		history:  NewHistory(maxHistory),
		question: q,
		path:     p,
		viewport: viewport.New(60, 15),
		spinner:  sp,
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

// History exposes the conversation, oldest first.
func (m Model) History() []Entry { return m.history.Entries() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = max(20, msg.Width-sidebarWidth-4)
		// title, question box, status line and borders
		m.viewport.Height = max(3, msg.Height-8)
		m.question.Width = m.viewport.Width - 4
		m.path.Width = sidebarWidth - 10
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case answerMsg:
		m.busy = false
		if msg.err != nil {
			log.Error().Err(msg.err).Msg("Chat request failed")
			m.errBanner = msg.err.Error()
		} else {
			m.history.Append(RoleAssistant, msg.answer)
		}
		m.refresh()
		return m, nil

	case ingestMsg:
		m.busy = false
		if msg.err != nil {
			log.Error().Err(msg.err).Str("path", msg.path).Msg("Ingest request failed")
			m.ingestStatus, m.ingestErr = msg.err.Error(), true
		} else {
			m.ingestStatus, m.ingestErr = fmt.Sprintf("Indexed %d chunks", msg.chunks), false
			m.path.Reset()
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		}
		// one request at a time
		if m.busy {
			return m, nil
		}
		switch msg.String() {
		case "tab":
			m.toggleFocus()
			return m, nil
		case "ctrl+r":
			m.history.Reset()
			m.errBanner = ""
			m.refresh()
			return m, nil
		case "enter":
			if m.focus == focusPath {
				return m.submitPath()
			}
			return m.submitQuestion()
		}
	}

	var cmd tea.Cmd
	if m.focus == focusPath {
		m.path, cmd = m.path.Update(msg)
	} else {
		m.question, cmd = m.question.Update(msg)
	}
	return m, cmd
}

func (m *Model) toggleFocus() {
	if m.focus == focusQuestion {
		m.focus = focusPath
		m.question.Blur()
		m.path.Focus()
		return
	}
	m.focus = focusQuestion
	m.path.Blur()
	m.question.Focus()
}

// submitQuestion shows the question right away; the answer is appended only
// when the request succeeds.
func (m Model) submitQuestion() (tea.Model, tea.Cmd) {
	q := strings.TrimSpace(m.question.Value())
	if q == "" {
		return m, nil
	}
	m.history.Append(RoleUser, q)
	m.question.Reset()
	m.errBanner = ""
	m.busy = true
	m.refresh()

	backend := m.backend
	ask := func() tea.Msg {
		answer, err := backend.Chat(context.Background(), q)
		return answerMsg{answer: answer, err: err}
	}
	return m, tea.Batch(m.spinner.Tick, ask)
}

func (m Model) submitPath() (tea.Model, tea.Cmd) {
	path := strings.TrimSpace(m.path.Value())
	if path == "" {
		return m, nil
	}
	m.busy = true
	m.ingestStatus, m.ingestErr = "Indexing "+path+"...", false

	backend := m.backend
	ingest := func() tea.Msg {
		n, err := backend.Ingest(context.Background(), path)
		return ingestMsg{path: path, chunks: n, err: err}
	}
	return m, tea.Batch(m.spinner.Tick, ingest)
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	entries := m.history.Entries()
	if len(entries) == 0 {
		return helpStyle.Render("No messages yet.")
	}
	width := max(10, m.viewport.Width-2)
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if e.Role == RoleUser {
			b.WriteString(userStyle.Render("You"))
		} else {
			b.WriteString(assistantStyle.Render("Assistant"))
		}
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(width).Render(e.Text))
	}
	return b.String()
}

func (m Model) View() string {
	title := titleStyle.Render("RAG Chatbot")

	ingest := ""
	if m.ingestStatus != "" {
		if m.ingestErr {
			ingest = errorStyle.Width(sidebarWidth - 4).Render(m.ingestStatus)
		} else {
			ingest = okStyle.Width(sidebarWidth - 4).Render(m.ingestStatus)
		}
	}
	sidebar := sidebarStyle.Width(sidebarWidth).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.NewStyle().Bold(true).Render("Ingest documents"),
			"",
			m.path.View(),
			helpStyle.Render("enter: Index file"),
			"",
			ingest,
		))

	main := []string{transcriptStyle.Render(m.viewport.View())}
	if m.errBanner != "" {
		main = append(main, errorStyle.Render(m.errBanner))
	}
	main = append(main, inputStyle.Render(m.question.View()))
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, lipgloss.JoinVertical(lipgloss.Left, main...))

	status := helpStyle.Render("enter: send • tab: switch field • ctrl+r: reset • esc: quit")
	if m.busy {
		status = m.spinner.View() + " Waiting for the backend..."
	}
	return title + "\n" + body + "\n" + status
}

var (
	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	sidebarStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	assistantStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	okStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)
