package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/subsidy-console/internal/keys"
	"github.com/nhle/subsidy-console/internal/theme"
)

// CommandNames lists the command palette entries shown in the help view.
var CommandNames = []string{
	"refresh", "read all", "clear", "unread", "role <name>", "quit",
}

// Model is the help overlay view.
type Model struct {
	keys     *keys.KeyMap
	help     help.Model
	syncNote string
	width    int
	height   int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Keyboard Shortcuts")
	commands := theme.HelpStyle.Render(
		"Commands (:): " + strings.Join(CommandNames, ", "),
	)

	m.help.Width = m.width - 4
	m.help.ShowAll = true
	helpText := m.help.View(m.keys)

	sections := []string{title, helpText, "", commands}
	if m.syncNote != "" {
		sections = append(sections, "", theme.HelpStyle.Render(m.syncNote))
	}
	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

// SetSyncNote sets the line describing the sync cadence.
func (m *Model) SetSyncNote(note string) {
	m.syncNote = note
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
