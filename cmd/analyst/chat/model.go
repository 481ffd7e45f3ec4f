// Package chat implements the interactive terminal interface: a transcript
// viewport, a live stage line fed by progress events and an input box.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"analyst/internal/agent"
	"analyst/internal/llm"
	"analyst/internal/progress"
)

const (
	headerHeight = 2
	inputHeight  = 5 // textarea plus border
	footerHeight = 2
)

// AskFunc answers one query. It is called off the UI goroutine.
type AskFunc func(ctx context.Context, query string) agent.Result

// Config wires the model to a session.
type Config struct {
	Ask       AskFunc
	Events    <-chan progress.Event // progress of the running query; may be nil
	SessionID string
	Dataset   string
	History   []llm.Turn // earlier turns of a resumed session
	Light     bool
}

// Message roles in the transcript.
const (
	roleUser      = "user"
	roleAssistant = "assistant"
	roleStep      = "step"
	roleFailed    = "failed"
)

type entry struct {
	role string
	text string
}

// Model is the bubbletea model.
type Model struct {
	cfg    Config
	styles Styles

	textarea textarea.Model
	spinner  spinner.Model
	viewport viewport.Model
	renderer *glamour.TermRenderer

	ctx    context.Context
	cancel context.CancelFunc

	entries []entry
	status  string
	busy    bool
	ready   bool
	width   int
}

// Msg types
type (
	progressMsg   progress.Event
	answerMsg     agent.Result
	eventsDoneMsg struct{}
)

// New creates the chat model.
func New(cfg Config) Model {
	styles := DefaultStyles()

	ta := textarea.New()
	ta.Placeholder = "Ask about the data... (Enter to send, Ctrl+C to exit)"
	ta.ShowLineNumbers = false
	ta.CharLimit = 4096
	ta.SetHeight(3)
	ta.SetWidth(80)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	vp := viewport.New(80, 20)

	ctx, cancel := context.WithCancel(context.Background())
	m := Model{
		cfg:      cfg,
		styles:   styles,
		textarea: ta,
		spinner:  sp,
		viewport: vp,
		renderer: newRenderer(cfg.Light, 76),
		ctx:      ctx,
		cancel:   cancel,
		entries:  historyEntries(cfg.History),
		width:    80,
	}
	m.viewport.SetContent(m.renderHistory())
	return m
}

func historyEntries(turns []llm.Turn) []entry {
	out := make([]entry, 0, 2*len(turns))
	for _, t := range turns {
		out = append(out, entry{role: roleUser, text: t.Query}, entry{role: roleAssistant, text: t.Answer})
	}
	return out
}

func newRenderer(light bool, width int) *glamour.TermRenderer {
	style := "dark"
	if light {
		style = "light"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

// Init starts the cursor blink and the event listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, waitForEvent(m.cfg.Events))
}

func waitForEvent(ch <-chan progress.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return eventsDoneMsg{}
		}
		return progressMsg(e)
	}
}

func (m Model) ask(query string) tea.Cmd {
	ctx, fn := m.ctx, m.cfg.Ask
	return func() tea.Msg {
		return answerMsg(fn(ctx, query))
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancel()
			return m, tea.Quit
		case tea.KeyEnter:
			query := strings.TrimSpace(m.textarea.Value())
			if query == "" || m.busy {
				return m, nil
			}
			if query == "/quit" || query == "/exit" {
				m.cancel()
				return m, tea.Quit
			}
			m.textarea.Reset()
			m.entries = append(m.entries, entry{role: roleUser, text: query})
			m.busy = true
			m.status = "Thinking..."
			m.refresh()
			return m, tea.Batch(m.ask(query), m.spinner.Tick)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		height := msg.Height - headerHeight - inputHeight - footerHeight
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.textarea.SetWidth(max(msg.Width-4, 1))
		m.renderer = newRenderer(m.cfg.Light, max(msg.Width-4, 20))
		m.refresh()
		return m, nil

	case progressMsg:
		e := progress.Event(msg)
		text := DescribeEvent(e)
		m.status = text
		if e.Status != progress.StatusRunning {
			role := roleStep
			if e.Status == progress.StatusFailed {
				role = roleFailed
			}
			m.entries = append(m.entries, entry{role: role, text: text})
			m.refresh()
		}
		return m, waitForEvent(m.cfg.Events)

	case eventsDoneMsg:
		return m, nil

	case answerMsg:
		m.busy = false
		m.status = ""
		m.entries = append(m.entries, entry{role: roleAssistant, text: msg.Answer})
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.busy {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	if key, ok := msg.(tea.KeyMsg); ok && (key.Type == tea.KeyPgUp || key.Type == tea.KeyPgDown) {
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)
	if _, ok := msg.(tea.KeyMsg); !ok {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m Model) renderHistory() string {
	var b strings.Builder
	for _, e := range m.entries {
		switch e.role {
		case roleUser:
			b.WriteString(m.styles.User.Render("> " + e.text))
			b.WriteString("\n")
		case roleStep:
			b.WriteString(m.styles.Step.Render("· " + e.text))
			b.WriteString("\n")
		case roleFailed:
			b.WriteString(m.styles.Failed.Render("✗ " + e.text))
			b.WriteString("\n")
		case roleAssistant:
			b.WriteString(m.renderMarkdown(e.text))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) renderMarkdown(text string) string {
	if m.renderer == nil {
		return text + "\n"
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}

// View renders the UI.
func (m Model) View() string {
	title := "analyst"
	if m.cfg.Dataset != "" {
		title += " · " + m.cfg.Dataset
	}
	header := m.styles.Header.Render(title)
	if m.cfg.SessionID != "" {
		header = lipgloss.JoinHorizontal(lipgloss.Top, header, m.styles.Help.Render("session "+m.cfg.SessionID))
	}

	status := " "
	if m.busy {
		status = fmt.Sprintf("%s %s", m.spinner.View(), m.styles.Status.Render(m.status))
	}

	help := m.styles.Help.Render("enter: send · pgup/pgdn: scroll · esc/ctrl+c: quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		status,
		m.styles.Input.Render(m.textarea.View()),
		help,
	)
}

// Busy reports whether a query is in flight.
func (m Model) Busy() bool { return m.busy }

// Transcript returns the plain transcript text, for tests and dumps.
func (m Model) Transcript() []string {
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.role + ": " + e.text
	}
	return out
}
