package feed

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/subsidy-console/internal/inbox"
	"github.com/nhle/subsidy-console/internal/model"
	"github.com/nhle/subsidy-console/internal/theme"
)

// Item wraps a model.Notification so it can be used in a bubbles/list.
type Item struct {
	Notification model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string {
	return i.Notification.Title + " " + i.Notification.Message
}

// Title returns the notification title for the list.
func (i Item) Title() string { return i.Notification.Title }

// Description returns a short summary line for the list.
func (i Item) Description() string {
	parts := []string{
		TypeLabel(i.Notification.Type),
		string(i.Notification.Priority),
		inbox.FormatRelativeTime(i.Notification.Timestamp),
	}
	return strings.Join(parts, " | ")
}

// TypeLabel turns a notification type into a short human label, e.g.
// "enrollment_approved" becomes "Enrollment approved".
func TypeLabel(t model.Type) string {
	s := strings.ReplaceAll(string(t), "_", " ")
	if s == "" {
		return "Notification"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ItemDelegate implements list.ItemDelegate for rendering notifications.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a notification as a headline and a message line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	n := it.Notification
	isSelected := index == m.Index()

	marker := " "
	if n.Unread {
		marker = theme.UnreadMarkerStyle.Render("●")
	}

	typeBadge := theme.TypeLabelStyle(string(n.Type)).Render(TypeLabel(n.Type))
	priBadge := theme.PriorityStyle(string(n.Priority)).Render(priorityLabel(n.Priority))
	timeStr := theme.TimestampStyle.Render(inbox.FormatRelativeTime(n.Timestamp))

	headline := fmt.Sprintf("%s %s %s %s  %s", marker, priBadge, typeBadge, n.Title, timeStr)
	body := "    " + truncate(n.Message, max(m.Width()-8, 10))

	if !n.Unread {
		headline = theme.DimmedStyle.Render(headline)
		body = theme.DimmedStyle.Render(body)
	}

	line := headline + "\n" + body
	if isSelected {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// priorityLabel returns a short label for the given priority.
func priorityLabel(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "HI"
	case model.PriorityMedium:
		return "MD"
	case model.PriorityLow:
		return "LO"
	default:
		return "--"
	}
}

// truncate shortens s to at most width runes.
func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}
