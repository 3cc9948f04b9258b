package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/subsidy-console/internal/model"
	"github.com/nhle/subsidy-console/internal/source/console"
	appsync "github.com/nhle/subsidy-console/internal/sync"
)

// contextReadyMsg is sent when a role context has been (re)started.
type contextReadyMsg struct {
	ctx *appsync.Context
	err error
}

// switchRole starts the context for role, disposing the current one.
func (m *Model) switchRole(role string) tea.Cmd {
	mgr := m.manager
	return func() tea.Msg {
		c, err := mgr.SwitchRole(context.Background(), role)
		return contextReadyMsg{ctx: c, err: err}
	}
}

// reconnect points the active role at baseURL with its freshly stored
// token and refreshes it.
func (m *Model) reconnect(baseURL string) tea.Cmd {
	mgr := m.manager
	return func() tea.Msg {
		c, err := mgr.Reload(context.Background(), console.NewClient(baseURL))
		if err == nil && c != nil {
			err = c.FetchNotifications(context.Background())
		}
		return contextReadyMsg{ctx: c, err: err}
	}
}

// nextRole returns the role after current in model.Roles, wrapping
// around.
func nextRole(current string) string {
	for i, r := range model.Roles {
		if r == current {
			return model.Roles[(i+1)%len(model.Roles)]
		}
	}
	return model.Roles[0]
}

// knownRole reports whether role is one of model.Roles.
func knownRole(role string) bool {
	for _, r := range model.Roles {
		if r == role {
			return true
		}
	}
	return false
}
