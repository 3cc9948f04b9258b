package detail

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/subsidy-console/internal/inbox"
	"github.com/nhle/subsidy-console/internal/keys"
	"github.com/nhle/subsidy-console/internal/model"
	"github.com/nhle/subsidy-console/internal/theme"
)

// BackMsg signals the parent to navigate back to the feed.
type BackMsg struct{}

// RemoveRequestMsg asks the parent to remove the displayed notification.
type RemoveRequestMsg struct {
	ID string
}

// Model is the notification detail view component.
type Model struct {
	notification *model.Notification
	viewport     viewport.Model
	keys         *keys.KeyMap
	width        int
	height       int
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg {
				return BackMsg{}
			}

		case key.Matches(msg, m.keys.Remove):
			if m.notification != nil {
				id := m.notification.ID
				return m, func() tea.Msg {
					return RemoveRequestMsg{ID: id}
				}
			}
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.notification == nil {
		emptyStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return emptyStyle.Render("No notification selected")
	}

	return m.viewport.View()
}

// CurrentID returns the id of the displayed notification, or "".
func (m Model) CurrentID() string {
	if m.notification == nil {
		return ""
	}
	return m.notification.ID
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.notification == nil {
		return ""
	}

	n := m.notification
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(n.Title))

	typeBadge := theme.TypeLabelStyle(string(n.Type)).Render(string(n.Type))
	priBadge := theme.PriorityStyle(string(n.Priority)).Render(string(n.Priority))
	state := "read"
	if n.Unread {
		state = "unread"
	}
	stateBadge := theme.UnreadMarkerStyle.Render(state)

	badgeLine := lipgloss.JoinHorizontal(
		lipgloss.Top, typeBadge, "  ", priBadge, "  ", stateBadge,
	)
	sections = append(sections, badgeLine)
	sections = append(sections, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	rows := [][2]string{
		{"Received", fmt.Sprintf(
			"%s (%s)",
			n.Timestamp.Local().Format("2006-01-02 15:04"),
			inbox.FormatRelativeTime(n.Timestamp),
		)},
		{"ID", n.ID},
	}
	if n.Type.IsAction() {
		rows = append(rows, [2]string{"Kind", "action (expires after a day)"})
	}
	rows = append(rows, payloadRows(n.Data)...)

	for _, r := range rows {
		sections = append(sections, fmt.Sprintf(
			"%s  %s",
			metaStyle.Render(fmt.Sprintf("%-14s", r[0]+":")),
			valStyle.Render(r[1]),
		))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 0)))
	sections = append(sections, "")
	sections = append(sections, separator)
	sections = append(sections, "")

	body := n.Message
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No message")
	}
	sections = append(sections, lipgloss.NewStyle().Width(max(m.width-4, 20)).Render(body))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// payloadRows lists the populated fields of a payload as label/value pairs.
func payloadRows(p model.Payload) [][2]string {
	var rows [][2]string
	add := func(label, value string) {
		if value != "" {
			rows = append(rows, [2]string{label, value})
		}
	}
	addTime := func(label string, t *time.Time) {
		if t != nil {
			add(label, t.Local().Format("2006-01-02 15:04"))
		}
	}

	switch d := p.(type) {
	case model.InterviewData:
		add("Beneficiary", d.BeneficiaryName)
		add("Coordinator", d.CoordinatorName)
		addTime("Scheduled", d.ScheduledAt)
		add("Location", d.Location)
		add("Interview", d.InterviewID)
	case model.BeneficiaryData:
		add("Beneficiary", d.BeneficiaryName)
		add("Beneficiary ID", d.BeneficiaryID)
		add("Coordinator", d.CoordinatorID)
		add("Changed", strings.Join(d.ChangedFields, ", "))
	case model.ProgramData:
		add("Program", d.ProgramName)
		add("Status", d.Status)
		add("Requested by", d.RequestedBy)
	case model.EnrollmentData:
		add("Beneficiary", d.BeneficiaryName)
		add("Program", d.ProgramName)
		add("Enrollment", d.EnrollmentID)
		add("Reason", d.Reason)
	case model.CoordinatorData:
		add("Coordinator", d.CoordinatorName)
		add("Email", d.Email)
		add("Region", d.Region)
	case model.SystemData:
		add("Version", d.Version)
		add("Details", d.Details)
	case model.GenericData:
		fields := make([]string, 0, len(d))
		for k := range d {
			fields = append(fields, k)
		}
		sort.Strings(fields)
		for _, k := range fields {
			add(k, fmt.Sprint(d[k]))
		}
	}
	return rows
}

// SetNotification updates the notification being displayed.
func (m *Model) SetNotification(n model.Notification) {
	m.notification = &n
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Clear drops the displayed notification.
func (m *Model) Clear() {
	m.notification = nil
	m.viewport.SetContent("")
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	if m.notification != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
