// Package ui provides the terminal chat interface using Bubble Tea.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sqlsage/sqlsage/internal/types"
)

const maxTableRows = 20

// Model is the Bubble Tea model for the SQL assistant chat.
type Model struct {
	// UI components
	textInput textinput.Model
	spinner   spinner.Model
	viewport  viewport.Model
	styles    Styles

	// State
	state    types.TurnState
	turns    []types.ConversationTurn
	width    int
	height   int
	ready    bool
	quitting bool
	err      error

	// Agent callback (injected)
	processQuestion func(question string) tea.Cmd

	// Conversation reset callback (injected, may be nil)
	onClear func()
}

// NewModel creates a new chat model.
func NewModel(processQuestion func(question string) tea.Cmd, onClear func()) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask about your data... (e.g., 'Who are the highest paid employees?')"
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 80

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(DefaultTheme().Primary)

	vp := viewport.New(0, 0)
	vp.KeyMap = viewport.DefaultKeyMap()

	return Model{
		textInput:       ti,
		spinner:         s,
		viewport:        vp,
		styles:          DefaultStyles(),
		state:           types.StateIdle,
		turns:           make([]types.ConversationTurn, 0),
		processQuestion: processQuestion,
		onClear:         onClear,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
	)
}

// headerHeight returns the number of terminal lines occupied by the banner.
func (m Model) headerHeight() int {
	banner := m.styles.BannerTitle.Render(Banner())
	return lipgloss.Height(banner) + 2 // +2 for the two "\n" after the banner
}

// footerHeight returns the number of terminal lines occupied by the input + help bar.
func (m Model) footerHeight() int {
	// 1 blank line + 1 prompt/input line + 1 newline + 1 help bar = 4
	return 4
}

// updateViewport rebuilds the viewport content and scrolls to the bottom.
func (m *Model) updateViewport() {
	var b strings.Builder

	for _, turn := range m.turns {
		b.WriteString(m.renderTurn(turn))
		b.WriteString("\n")
	}

	if m.state != types.StateIdle {
		b.WriteString(m.renderStatus())
		b.WriteString("\n")
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.state == types.StateIdle {
				m.quitting = true
				return m, tea.Quit
			}
			m.state = types.StateIdle
			return m, nil

		case tea.KeyEnter:
			if m.state != types.StateIdle {
				return m, nil
			}

			question := strings.TrimSpace(m.textInput.Value())
			if question == "" {
				return m, nil
			}

			if cmd, handled := m.handleCommand(question); handled {
				m.updateViewport()
				return m, cmd
			}

			m.turns = append(m.turns, types.ConversationTurn{
				Role:    "user",
				Content: question,
			})

			m.textInput.SetValue("")
			m.state = types.StateThinking
			m.updateViewport()

			if m.processQuestion != nil {
				cmds = append(cmds, m.processQuestion(question))
			}

			return m, tea.Batch(cmds...)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textInput.Width = msg.Width - 10

		vpWidth := msg.Width
		vpHeight := msg.Height - m.headerHeight() - m.footerHeight()
		if vpHeight < 1 {
			vpHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(vpWidth, vpHeight)
			m.viewport.KeyMap = viewport.DefaultKeyMap()
		} else {
			m.viewport.Width = vpWidth
			m.viewport.Height = vpHeight
		}

		m.ready = true
		m.updateViewport()

	case types.TurnEvent:
		newModel, cmd := m.handleTurnEvent(msg)
		nm := newModel.(Model)
		nm.updateViewport()
		return nm, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		// Refresh viewport to update spinner frame
		m.updateViewport()

	case errMsg:
		m.err = msg.err
		m.state = types.StateError
		m.updateViewport()
	}

	// Forward key events to the input only when idle
	if m.state == types.StateIdle {
		var tiCmd tea.Cmd
		m.textInput, tiCmd = m.textInput.Update(msg)
		cmds = append(cmds, tiCmd)
	}

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	return m, tea.Batch(cmds...)
}

// errMsg wraps errors.
type errMsg struct{ err error }

// handleCommand processes special commands. The second return reports
// whether the input was a command.
func (m *Model) handleCommand(input string) (tea.Cmd, bool) {
	switch strings.ToLower(input) {
	case "exit", "quit", "q":
		m.quitting = true
		return tea.Quit, true

	case "clear", "new":
		m.turns = make([]types.ConversationTurn, 0)
		m.textInput.SetValue("")
		if m.onClear != nil {
			m.onClear()
		}
		return nil, true

	case "help", "?":
		m.turns = append(m.turns, types.ConversationTurn{
			Role: "system",
			Content: `Available commands:
  help, ?     Show this help
  clear, new  Start a new conversation
  exit, quit  Exit

Example questions:
  "List all tables in the database"
  "Who are the ten highest paid current employees?"
  "How many people joined each department last year?"`,
		})
		m.textInput.SetValue("")
		return nil, true
	}

	return nil, false
}

// handleTurnEvent processes events from the agent pipeline.
func (m Model) handleTurnEvent(event types.TurnEvent) (tea.Model, tea.Cmd) {
	m.state = event.State

	switch event.State {
	case types.StateRetrieving, types.StateExecuting:
		// Spinner shows progress

	case types.StateResponding:
		if event.Turn != nil {
			m.turns = append(m.turns, *event.Turn)
		}
		m.state = types.StateIdle

	case types.StateError:
		m.err = event.Error
		errText := "An error occurred"
		if event.Error != nil {
			errText = event.Error.Error()
		}
		m.turns = append(m.turns, types.ConversationTurn{
			Role:    "system",
			Content: "Error: " + errText,
		})
		m.state = types.StateIdle
	}

	return m, m.spinner.Tick
}

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return m.styles.SystemMessage.Render("Goodbye!\n")
	}

	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder

	// Fixed header: banner
	b.WriteString(m.styles.BannerTitle.Render(Banner()))
	b.WriteString("\n\n")

	// Scrollable middle: viewport
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	// Fixed footer: input + help bar
	b.WriteString(m.styles.Prompt.Render("> "))
	if m.state == types.StateIdle {
		b.WriteString(m.textInput.View())
	} else {
		b.WriteString(m.styles.StatusText.Render("(thinking...)"))
	}
	b.WriteString("\n")
	b.WriteString(m.renderHelpBar())

	return m.styles.App.Render(b.String())
}

// renderTurn renders a single conversation turn.
func (m Model) renderTurn(turn types.ConversationTurn) string {
	switch turn.Role {
	case "user":
		return m.styles.UserMessage.Render("You: " + turn.Content)

	case "assistant":
		return m.renderAssistantTurn(turn)

	case "system":
		return m.styles.SystemMessage.Render(turn.Content)
	}
	return ""
}

// renderAssistantTurn renders the SQL, explanation, context and results
// of one assistant response.
func (m Model) renderAssistantTurn(turn types.ConversationTurn) string {
	var b strings.Builder

	if turn.SQLQuery != "" {
		b.WriteString(m.styles.SQLBox.Render(m.styles.SQLText.Render(turn.SQLQuery)))
		b.WriteString("\n")
	}

	if turn.Content != "" {
		b.WriteString(m.styles.AssistantMessage.Render(turn.Content))
		b.WriteString("\n")
	}

	if len(turn.Documents) > 0 {
		b.WriteString(m.renderDocuments(turn.Documents))
	}

	if turn.Result != nil {
		b.WriteString(m.renderResult(turn.Result))
	}

	if turn.Error != "" {
		b.WriteString(m.styles.ErrorMessage.Render("Error: " + turn.Error))
		b.WriteString("\n")
	}

	return b.String()
}

// renderDocuments renders a compact summary of the retrieved context.
func (m Model) renderDocuments(docs []types.Document) string {
	var b strings.Builder

	b.WriteString(m.styles.DocTitle.Render(fmt.Sprintf("Context (%d documents)", len(docs))))
	b.WriteString("\n")

	for _, doc := range docs {
		title := doc.Metadata.Type
		if doc.Metadata.TableName != "" {
			title += ": " + doc.Metadata.TableName
		}
		preview := doc.PageContent
		if doc.Metadata.SQL != "" {
			preview = doc.Metadata.SQL
		}
		preview = strings.ReplaceAll(preview, "\n", " ")
		if len(preview) > 100 {
			preview = preview[:100] + "..."
		}
		b.WriteString(m.styles.DocBody.Render(fmt.Sprintf("  %s | %s", title, preview)))
		b.WriteString("\n")
	}

	return m.styles.ContextBox.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}

// renderResult renders a query result as an aligned text table.
func (m Model) renderResult(result *types.ResultTable) string {
	if result.Empty() {
		return m.styles.SystemMessage.Render("(no rows)") + "\n"
	}

	rows := result.Rows
	truncated := false
	if len(rows) > maxTableRows {
		rows = rows[:maxTableRows]
		truncated = true
	}

	widths := make([]int, len(result.Columns))
	for i, col := range result.Columns {
		widths[i] = len(col)
	}
	cells := make([][]string, len(rows))
	for r, row := range rows {
		cells[r] = make([]string, len(result.Columns))
		for c := range result.Columns {
			var val string
			if c < len(row) {
				val = formatCell(row[c])
			}
			if len(val) > 40 {
				val = val[:40] + "..."
			}
			cells[r][c] = val
			if len(val) > widths[c] {
				widths[c] = len(val)
			}
		}
	}

	var b strings.Builder
	var header strings.Builder
	var rule strings.Builder
	for i, col := range result.Columns {
		header.WriteString(pad(col, widths[i]))
		rule.WriteString(strings.Repeat("-", widths[i]))
		if i < len(result.Columns)-1 {
			header.WriteString("  ")
			rule.WriteString("  ")
		}
	}
	b.WriteString(m.styles.TableHeader.Render("  " + header.String()))
	b.WriteString("\n")
	b.WriteString(m.styles.TableCell.Render("  " + rule.String()))
	b.WriteString("\n")

	for _, row := range cells {
		var line strings.Builder
		for i, val := range row {
			line.WriteString(pad(val, widths[i]))
			if i < len(row)-1 {
				line.WriteString("  ")
			}
		}
		b.WriteString(m.styles.TableCell.Render("  " + line.String()))
		b.WriteString("\n")
	}

	if truncated {
		b.WriteString(m.styles.SystemMessage.Render(
			fmt.Sprintf("... %d of %d rows shown", maxTableRows, len(result.Rows))))
		b.WriteString("\n")
	}

	return b.String()
}

func formatCell(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// renderStatus renders the current processing status.
func (m Model) renderStatus() string {
	return fmt.Sprintf("%s %s",
		m.spinner.View(),
		m.styles.StateLabel.Render(m.state.String()+"..."),
	)
}

// renderHelpBar renders the bottom help bar.
func (m Model) renderHelpBar() string {
	help := []string{
		m.styles.HelpKey.Render("enter") + m.styles.HelpValue.Render(" send"),
		m.styles.HelpKey.Render("ctrl+c") + m.styles.HelpValue.Render(" quit"),
		m.styles.HelpKey.Render("clear") + m.styles.HelpValue.Render(" new chat"),
		m.styles.HelpKey.Render("help") + m.styles.HelpValue.Render(" commands"),
	}
	return m.styles.HelpBar.Render(strings.Join(help, "  |  "))
}

// Run starts the interactive chat program.
func Run(processQuestion func(question string) tea.Cmd, onClear func()) error {
	p := tea.NewProgram(
		NewModel(processQuestion, onClear),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
