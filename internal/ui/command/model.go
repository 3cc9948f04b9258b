package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/subsidy-console/internal/theme"
)

// Command names understood by the palette.
const (
	Refresh = "refresh"
	ReadAll = "read-all"
	Clear   = "clear"
	Unread  = "unread"
	Role    = "role"
	Quit    = "quit"
)

// aliases maps accepted spellings to command names.
var aliases = map[string]string{
	"refresh":       Refresh,
	"sync":          Refresh,
	"read all":      ReadAll,
	"mark all read": ReadAll,
	"clear":         Clear,
	"clear all":     Clear,
	"unread":        Unread,
	"role":          Role,
	"quit":          Quit,
	"q":             Quit,
}

// Command is a parsed palette entry.
type Command struct {
	Name string
	Arg  string
}

// CommandMsg is emitted when the user executes a command.
type CommandMsg Command

// Parse resolves input to a Command. "role" takes the role name as its
// argument; every other command takes none.
func Parse(input string) (Command, bool) {
	fields := strings.Fields(strings.ToLower(input))
	if len(fields) == 0 {
		return Command{}, false
	}

	if fields[0] == "role" {
		if len(fields) != 2 {
			return Command{}, false
		}
		return Command{Name: Role, Arg: fields[1]}, true
	}

	name, ok := aliases[strings.Join(fields, " ")]
	if !ok {
		return Command{}, false
	}
	return Command{Name: name}, true
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	err    string
	width  int
	height int
}

// New creates a new command palette model. roles seeds the completion
// suggestions for the role command.
func New(roles []string, width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "refresh, read all, clear, role admin..."
	ti.Prompt = ": "
	ti.Focus()
	ti.Width = width - 6
	ti.ShowSuggestions = true

	suggestions := []string{"refresh", "read all", "clear", "unread", "quit"}
	for _, r := range roles {
		suggestions = append(suggestions, "role "+r)
	}
	ti.SetSuggestions(suggestions)

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "enter" {
		raw := strings.TrimSpace(m.input.Value())
		if raw == "" {
			return m, nil
		}
		cmd, ok := Parse(raw)
		if !ok {
			m.err = "unknown command: " + raw
			return m, nil
		}
		m.err = ""
		m.input.Reset()
		return m, func() tea.Msg {
			return CommandMsg(cmd)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Command Palette")
	lines := []string{title, m.input.View()}
	if m.err != "" {
		lines = append(lines, "", theme.WarningStyle.Render(m.err))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	m.err = ""
	return m.input.Focus()
}
