package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docqa/internal/domain"
	"docqa/internal/service"
	"docqa/internal/textutil"
)

// Turner answers one question given the conversation so far.
type Turner interface {
	Turn(ctx context.Context, conv domain.Conversation, utterance string) (domain.Conversation, string, error)
}

type entry struct {
	role     domain.Role
	text     string
	question string
	failed   bool
}

// turnMsg carries the result of an asynchronous Turn back to Update.
type turnMsg struct {
	question string
	conv     domain.Conversation
	reply    string
	err      error
}

// Model is the Bubble Tea model for the chat UI.
type Model struct {
	ctx        context.Context
	turner     Turner
	input      textinput.Model
	viewport   viewport.Model
	conv       domain.Conversation
	transcript []entry
	summary    string
	status     string
	busy       bool
	ready      bool
}

// New creates a chat model. summary is shown under the header.
func New(ctx context.Context, turner Turner, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the documents (exit to quit)"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{ctx: ctx, turner: turner, input: ti, viewport: vp, summary: summary, status: "Ready."}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+summary, status, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil
	case turnMsg:
		m.busy = false
		m.conv = msg.conv
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = "Ready."
		}
		m.transcript = append(m.transcript, entry{role: domain.RoleAssistant, text: msg.reply, question: msg.question, failed: msg.err != nil})
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			if service.IsExitCommand(q) {
				return m, tea.Quit
			}
			m.input.SetValue("")
			m.transcript = append(m.transcript, entry{role: domain.RoleUser, text: q})
			m.busy = true
			m.status = "Thinking..."
			m.refresh()
			return m, m.ask(q)
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(q string) tea.Cmd {
	ctx, turner, conv := m.ctx, m.turner, m.conv
	return func() tea.Msg {
		next, reply, err := turner.Turn(ctx, conv, q)
		return turnMsg{question: q, conv: next, reply: reply, err: err}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Document QA")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + transcript + "\n" + input + "\n" + status
}

// Transcript returns the rendered conversation without styling.
func (m Model) Transcript() string {
	var b strings.Builder
	for _, e := range m.transcript {
		fmt.Fprintf(&b, "%s: %s\n", e.role, e.text)
	}
	return b.String()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.render())
	m.viewport.GotoBottom()
}

func (m Model) render() string {
	if len(m.transcript) == 0 {
		return "No questions yet."
	}
	width := max(10, m.viewport.Width-2)
	parts := make([]string, 0, len(m.transcript))
	for _, e := range m.transcript {
		switch {
		case e.role == domain.RoleUser:
			parts = append(parts, userStyle.Render("You: ")+lipgloss.NewStyle().Width(width).Render(e.text))
		case e.failed:
			parts = append(parts, errorStyle.Width(width).Render(e.text))
		default:
			parts = append(parts, assistantStyle.Render("Assistant: ")+lipgloss.NewStyle().Width(width).Render(highlightBestSentence(e.text, e.question)))
		}
	}
	return strings.Join(parts, "\n\n")
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// highlightBestSentence emphasizes the sentence of text sharing the most
// words with query.
func highlightBestSentence(text, query string) string {
	sentences := textutil.Sentences(text)
	if len(sentences) < 2 {
		return text
	}
	qTokens := textutil.TokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx, bestScore := 0, -1.0
	for i, s := range sentences {
		if score := textutil.Ochiai(qTokens, s); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
	return strings.Join(sentences, " ")
}
