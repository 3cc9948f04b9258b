package feed

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/subsidy-console/internal/keys"
	"github.com/nhle/subsidy-console/internal/model"
	"github.com/nhle/subsidy-console/internal/theme"
)

// SelectedMsg is sent when the user opens a notification.
type SelectedMsg struct {
	Notification model.Notification
}

// MarkReadMsg asks the parent to mark a notification read.
type MarkReadMsg struct {
	ID string
}

// RemoveMsg asks the parent to remove a notification.
type RemoveMsg struct {
	ID string
}

// Model is the notification feed view.
type Model struct {
	list       list.Model
	keys       *keys.KeyMap
	all        []model.Notification
	unreadOnly bool
	width      int
	height     int
}

// New creates an empty feed view.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = "Notifications"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetStatusBarItemName("notification", "notifications")
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		keys:   k,
		width:  width,
		height: height,
	}
}

// SetNotifications replaces the rendered feed, keeping the cursor in range.
func (m *Model) SetNotifications(notifications []model.Notification) tea.Cmd {
	m.all = notifications
	return m.refresh()
}

// ToggleUnreadOnly switches between the whole feed and unread entries.
func (m *Model) ToggleUnreadOnly() tea.Cmd {
	m.unreadOnly = !m.unreadOnly
	return m.refresh()
}

// UnreadOnly reports whether the unread filter is active.
func (m Model) UnreadOnly() bool {
	return m.unreadOnly
}

func (m *Model) refresh() tea.Cmd {
	items := make([]list.Item, 0, len(m.all))
	for _, n := range m.all {
		if m.unreadOnly && !n.Unread {
			continue
		}
		items = append(items, Item{Notification: n})
	}
	if m.unreadOnly {
		m.list.Title = "Unread notifications"
	} else {
		m.list.Title = "Notifications"
	}
	return m.list.SetItems(items)
}

// Selected returns the notification under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the feed view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Select):
			n, ok := m.Selected()
			if !ok {
				return m, nil
			}
			return m, func() tea.Msg { return SelectedMsg{Notification: n} }

		case key.Matches(msg, m.keys.MarkRead):
			n, ok := m.Selected()
			if !ok || !n.Unread {
				return m, nil
			}
			return m, func() tea.Msg { return MarkReadMsg{ID: n.ID} }

		case key.Matches(msg, m.keys.Remove):
			n, ok := m.Selected()
			if !ok {
				return m, nil
			}
			return m, func() tea.Msg { return RemoveMsg{ID: n.ID} }

		case key.Matches(msg, m.keys.FilterUnread):
			return m, m.ToggleUnreadOnly()
		}
	}

	// Delegate to the list for navigation keys (up/down/pgup/pgdn)
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the feed.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}
	return m.list.View()
}

// renderEmptyState shows guidance text when the feed is empty.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.unreadOnly && len(m.all) > 0 {
		return style.Render("All caught up.\nPress u to show read notifications.")
	}
	return style.Render("No notifications yet.\n\nPress r to check the server.")
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}
