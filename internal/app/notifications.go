package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/subsidy-console/internal/model"
	appsync "github.com/nhle/subsidy-console/internal/sync"
)

// fetchResultMsg is sent after a manual refresh completes.
type fetchResultMsg struct {
	role string
	err  error
}

// addResultMsg reports whether a composed notification was kept or
// suppressed as a duplicate.
type addResultMsg struct {
	added bool
	title string
}

// Feed mutations persist synchronously, so they run as commands to keep
// storage I/O off the update loop. The resulting change reaches the UI
// through appsync.ChangedMsg.

func markRead(c *appsync.Context, id string) tea.Cmd {
	return func() tea.Msg {
		c.MarkAsRead(id)
		return nil
	}
}

func markAllRead(c *appsync.Context) tea.Cmd {
	return func() tea.Msg {
		c.MarkAllAsRead()
		return nil
	}
}

func removeNotification(c *appsync.Context, id string) tea.Cmd {
	return func() tea.Msg {
		c.RemoveNotification(id)
		return nil
	}
}

func clearAll(c *appsync.Context) tea.Cmd {
	return func() tea.Msg {
		c.ClearAll()
		return nil
	}
}

func addNotification(c *appsync.Context, in model.Input) tea.Cmd {
	return func() tea.Msg {
		n, added := c.AddNotification(in)
		return addResultMsg{added: added, title: n.Title}
	}
}

// refresh runs a reconciliation fetch for the active role.
func refresh(c *appsync.Context) tea.Cmd {
	role := c.Role()
	return func() tea.Msg {
		return fetchResultMsg{role: role, err: c.FetchNotifications(context.Background())}
	}
}
