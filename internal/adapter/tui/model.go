package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"nutribot/internal/domain"
	"nutribot/internal/usecase/chat"
)

const (
	assistantName = "NutriBot"
	disclaimer    = "NutriBot can make mistakes. Please verify important nutritional information."
	placeholder   = "Ask me about nutrition, meal planning, or dietary advice..."
)

// Session is what the UI needs from the session controller.
type Session interface {
	Submit(ctx context.Context, text string) bool
	Like(id string) bool
	Dislike(id string) bool
	Messages() []domain.Message
	IsPending() bool
	ShowSuggestions() bool
}

// SessionChangedMsg asks the model to redraw from the session.
type SessionChangedMsg struct {
	Event domain.Event
}

type focus int

const (
	focusInput focus = iota
	focusTranscript
)

var (
	assistantHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10b981"))
	userHeaderStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3b82f6"))
	userContentStyle     = lipgloss.NewStyle().PaddingLeft(2)
	timeStyle            = lipgloss.NewStyle().Faint(true)
	selectedStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#f59e0b")).Bold(true)
	likedStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("#059669"))
	dislikedStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
	suggestionStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#047857"))
	footerStyle          = lipgloss.NewStyle().Faint(true)
	statusStyle          = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#6b7280"))
	inputBorderStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#a7f3d0"))
)

type Option func(*Model)

// WithClipboard replaces the system clipboard, mostly for tests.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		m.copy = write
	}
}

type Model struct {
	ctx     context.Context
	session Session

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	copy     func(string) error

	focus      focus
	selectedID string
	status     string
	rendered   map[string]string
	lastCount  int
	width      int
	height     int
	ready      bool
}

func New(ctx context.Context, session Session, opts ...Option) *Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "› "
	ti.CharLimit = 4000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = assistantHeaderStyle

	m := &Model{
		ctx:      ctx,
		session:  session,
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		copy:     clipboard.WriteAll,
		rendered: map[string]string{},
	}
	for _, o := range opts {
		o(m)
	}
	m.refresh()
	return m
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.renderer = newRenderer(msg.Width - 4)
		m.rendered = map[string]string{}
		m.ready = true
		m.layout()
		m.refresh()

	case SessionChangedMsg:
		m.refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		if m.session.IsPending() {
			m.refresh()
		}

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if msg.String() == "tab" {
			m.toggleFocus()
			m.refresh()
			return m, nil
		}
		if m.focus == focusInput {
			return m, m.updateInput(msg)
		}
		return m, m.updateTranscript(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) updateInput(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "enter" {
		if m.session.Submit(m.ctx, m.input.Value()) {
			m.input.Reset()
			m.status = ""
		}
		m.refresh()
		return nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) updateTranscript(msg tea.KeyMsg) tea.Cmd {
	switch key := msg.String(); key {
	case "esc":
		m.toggleFocus()
	case "up", "k":
		m.moveSelection(-1)
	case "down", "j":
		m.moveSelection(1)
	case "l":
		if m.selectedID != "" {
			m.session.Like(m.selectedID)
		}
	case "d":
		if m.selectedID != "" {
			m.session.Dislike(m.selectedID)
		}
	case "c":
		m.copySelected()
	case "1", "2", "3", "4":
		if m.session.ShowSuggestions() {
			idx, _ := strconv.Atoi(key)
			m.input.SetValue(chat.QuickSuggestions[idx-1])
			m.input.CursorEnd()
			m.toggleFocus()
		}
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
	m.refresh()
	return nil
}

func (m *Model) toggleFocus() {
	if m.focus == focusInput {
		m.focus = focusTranscript
		m.input.Blur()
		if m.selectedID == "" {
			m.selectLast()
		}
		return
	}
	m.focus = focusInput
	m.input.Focus()
}

func (m *Model) assistantIDs() []string {
	var ids []string
	for _, msg := range m.session.Messages() {
		if msg.IsAssistant() {
			ids = append(ids, msg.ID)
		}
	}
	return ids
}

func (m *Model) selectLast() {
	ids := m.assistantIDs()
	if len(ids) > 0 {
		m.selectedID = ids[len(ids)-1]
	}
}

func (m *Model) moveSelection(delta int) {
	ids := m.assistantIDs()
	if len(ids) == 0 {
		return
	}
	idx := len(ids) - 1
	for i, id := range ids {
		if id == m.selectedID {
			idx = i
			break
		}
	}
	idx += delta
	if idx < 0 {
		idx = 0
	}
	if idx >= len(ids) {
		idx = len(ids) - 1
	}
	m.selectedID = ids[idx]
}

func (m *Model) copySelected() {
	for _, msg := range m.session.Messages() {
		if msg.ID != m.selectedID {
			continue
		}
		if err := m.copy(msg.Content); err != nil {
			log.Warn().Err(err).Msg("failed to copy message")
			m.status = "could not copy to clipboard"
			return
		}
		m.status = "copied to clipboard"
		return
	}
}

func (m *Model) layout() {
	if !m.ready {
		return
	}
	chrome := lipgloss.Height(m.footerView()) + lipgloss.Height(m.inputView())
	h := m.height - chrome
	if h < 3 {
		h = 3
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
}

// refresh rebuilds the transcript from the session and follows new messages.
func (m *Model) refresh() {
	msgs := m.session.Messages()
	m.layout()
	m.viewport.SetContent(m.transcript(msgs))
	if len(msgs) != m.lastCount {
		m.lastCount = len(msgs)
		m.viewport.GotoBottom()
	}
}

func (m *Model) transcript(msgs []domain.Message) string {
	var b strings.Builder
	for _, msg := range msgs {
		b.WriteString(m.messageView(msg))
		b.WriteString("\n")
	}
	if m.session.IsPending() {
		b.WriteString(m.spinner.View() + " " + statusStyle.Render(assistantName+" is thinking..."))
		b.WriteString("\n")
	}
	if m.session.ShowSuggestions() {
		b.WriteString("\n" + statusStyle.Render("Quick suggestions") + "\n")
		for i, s := range chat.QuickSuggestions {
			b.WriteString(suggestionStyle.Render(fmt.Sprintf("  [%d] %s", i+1, s)) + "\n")
		}
	}
	return b.String()
}

func (m *Model) messageView(msg domain.Message) string {
	stamp := timeStyle.Render(msg.Timestamp.Format("15:04"))

	if !msg.IsAssistant() {
		return userHeaderStyle.Render("You") + " " + stamp + "\n" + userContentStyle.Render(msg.Content) + "\n"
	}

	header := assistantHeaderStyle.Render(assistantName) + " " + stamp
	if msg.Liked {
		header += " " + likedStyle.Render("▲ liked")
	}
	if msg.Disliked {
		header += " " + dislikedStyle.Render("▼ disliked")
	}
	if m.focus == focusTranscript && msg.ID == m.selectedID {
		header = selectedStyle.Render("▶ ") + header
	}
	return header + "\n" + m.renderMarkdown(msg) + "\n"
}

func (m *Model) renderMarkdown(msg domain.Message) string {
	if out, ok := m.rendered[msg.ID]; ok {
		return out
	}
	out := "  " + msg.Content
	if m.renderer != nil {
		r, err := m.renderer.Render(msg.Content)
		if err != nil {
			log.Debug().Err(err).Str("message_id", msg.ID).Msg("markdown render failed")
		} else {
			out = strings.TrimRight(r, "\n")
		}
	}
	m.rendered[msg.ID] = out
	return out
}

func (m *Model) inputView() string {
	return inputBorderStyle.Render(m.input.View())
}

func (m *Model) footerView() string {
	help := "enter send • tab transcript • ctrl+c quit"
	if m.focus == focusTranscript {
		help = "↑/↓ select • l like • d dislike • c copy • esc input"
		if m.session.ShowSuggestions() {
			help += " • 1-4 suggestion"
		}
	}
	lines := []string{footerStyle.Render(disclaimer), footerStyle.Render(help)}
	if m.status != "" {
		lines = append(lines, statusStyle.Render(m.status))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		m.inputView(),
		m.footerView(),
	)
}

func newRenderer(width int) *glamour.TermRenderer {
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		log.Warn().Err(err).Msg("markdown renderer unavailable, showing plain text")
		return nil
	}
	return r
}
