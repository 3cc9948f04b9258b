package app

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/nhle/subsidy-console/internal/inbox"
	"github.com/nhle/subsidy-console/internal/keys"
	"github.com/nhle/subsidy-console/internal/model"
	"github.com/nhle/subsidy-console/internal/source"
	appsync "github.com/nhle/subsidy-console/internal/sync"
	"github.com/nhle/subsidy-console/internal/ui"
	"github.com/nhle/subsidy-console/internal/ui/command"
	"github.com/nhle/subsidy-console/internal/ui/compose"
	configview "github.com/nhle/subsidy-console/internal/ui/config"
	"github.com/nhle/subsidy-console/internal/ui/detail"
	"github.com/nhle/subsidy-console/internal/ui/feed"
	helpview "github.com/nhle/subsidy-console/internal/ui/help"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewFeed ViewState = iota
	ViewDetail
	ViewHelp
	ViewCommand
	ViewCompose
	ViewConfig
)

// Options wires the root model to the notification core.
type Options struct {
	Manager    *appsync.Manager
	Config     *model.AppConfig
	ConfigPath string
	Tokens     configview.TokenWriter
	Log        *logrus.Entry
}

// Model is the root Bubble Tea model that manages view routing, layout,
// and the active role's notification context.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	manager      *appsync.Manager
	watching     *appsync.Context
	cfg          *model.AppConfig
	log          *logrus.Entry

	feedView    feed.Model
	detail      detail.Model
	helpView    helpview.Model
	commandView command.Model
	composeView compose.Model
	configView  configview.Model

	ready         bool
	unreadCount   int
	statusMessage string
	authError     string
}

// New creates the root model. The manager should already hold an active
// role context.
func New(opts Options) Model {
	k := keys.DefaultKeyMap()
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	help := helpview.New(k, 80, 24)
	if opts.Config != nil {
		help.SetSyncNote(fmt.Sprintf(
			"The feed syncs every %s while this terminal has focus, and %s after you add a notification.",
			opts.Config.PollInterval(), opts.Config.ReconcileDelay(),
		))
	}

	return Model{
		currentView: ViewFeed,
		keys:        k,
		manager:     opts.Manager,
		watching:    activeOf(opts.Manager),
		cfg:         opts.Config,
		log:         log.WithField("component", "app"),
		feedView:    feed.New(k, 80, 24),
		detail:      detail.New(k, 80, 24),
		helpView:    help,
		commandView: command.New(model.Roles, 80, 24),
		composeView: compose.New(80, 24),
		configView:  configview.New(opts.Config, opts.ConfigPath, opts.Tokens, 80, 24),
	}
}

// active returns the current role context, or nil.
func (m Model) active() *appsync.Context {
	return activeOf(m.manager)
}

func activeOf(mgr *appsync.Manager) *appsync.Context {
	if mgr == nil {
		return nil
	}
	return mgr.Active()
}

// Init renders the restored feed and starts listening for changes. Each
// ChangedMsg re-arms the wait, so exactly one wait is outstanding per
// watched context.
func (m Model) Init() tea.Cmd {
	c := m.active()
	if c == nil {
		return nil
	}
	return func() tea.Msg { return appsync.ChangedMsg{Role: c.Role()} }
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.feedView.SetSize(contentWidth, contentHeight)
		m.detail.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		m.composeView.SetSize(contentWidth, contentHeight)
		m.configView.SetSize(contentWidth, contentHeight)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case tea.FocusMsg:
		if c := m.active(); c != nil {
			c.SetVisible(true)
		}
		return m, nil

	case tea.BlurMsg:
		if c := m.active(); c != nil {
			c.SetVisible(false)
		}
		return m, nil

	case appsync.ChangedMsg:
		c := m.active()
		if c == nil || c.Role() != msg.Role {
			// Stale signal from a disposed role.
			return m, nil
		}
		return m, tea.Batch(m.syncFeed(c), c.WaitForChange())

	case contextReadyMsg:
		if msg.ctx == nil {
			if msg.err != nil {
				m.statusMessage = msg.err.Error()
			}
			return m, nil
		}
		m.log.WithField("role", msg.ctx.Role()).Info("role context ready")
		m.detail.Clear()
		m.currentView = ViewFeed
		m.authError = ""
		m.statusMessage = ""
		if msg.err != nil {
			m.handleFetchError(msg.err)
		}
		if msg.ctx == m.watching {
			return m, m.syncFeed(msg.ctx)
		}
		m.watching = msg.ctx
		return m, tea.Batch(m.syncFeed(msg.ctx), msg.ctx.WaitForChange())

	case fetchResultMsg:
		if c := m.active(); c == nil || c.Role() != msg.role {
			return m, nil
		}
		if msg.err != nil {
			m.handleFetchError(msg.err)
		} else {
			m.authError = ""
			m.statusMessage = ""
		}
		return m, nil

	case addResultMsg:
		if !msg.added {
			m.statusMessage = fmt.Sprintf("%q suppressed as a duplicate", msg.title)
		}
		return m, nil

	case feed.SelectedMsg:
		m.previousView = m.currentView
		m.currentView = ViewDetail
		n := msg.Notification
		n.Unread = false
		m.detail.SetNotification(n)
		if msg.Notification.Unread {
			if c := m.active(); c != nil {
				return m, markRead(c, n.ID)
			}
		}
		return m, nil

	case feed.MarkReadMsg:
		if c := m.active(); c != nil {
			return m, markRead(c, msg.ID)
		}
		return m, nil

	case feed.RemoveMsg:
		if c := m.active(); c != nil {
			return m, removeNotification(c, msg.ID)
		}
		return m, nil

	case detail.RemoveRequestMsg:
		m.currentView = ViewFeed
		m.detail.Clear()
		if c := m.active(); c != nil {
			return m, removeNotification(c, msg.ID)
		}
		return m, nil

	case detail.BackMsg:
		m.currentView = ViewFeed
		return m, nil

	case compose.SubmitMsg:
		m.currentView = ViewFeed
		if c := m.active(); c != nil {
			return m, addNotification(c, msg.Input)
		}
		return m, nil

	case compose.CancelMsg:
		m.currentView = ViewFeed
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(command.Command(msg))

	case configview.ConfigDoneMsg:
		m.currentView = ViewFeed
		return m, nil

	case configview.SavedMsg:
		m.currentView = ViewFeed
		m.cfg.API.BaseURL = msg.BaseURL
		m.statusMessage = "reconnecting..."
		return m, m.reconnect(msg.BaseURL)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quit()
			return m, tea.Quit
		}
		if m.currentView == ViewFeed {
			if next, cmd, handled := m.handleFeedKeys(msg); handled {
				return next, cmd
			}
		}
		switch {
		case key.Matches(msg, m.keys.Help) && !m.capturesText():
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case key.Matches(msg, m.keys.Back) && m.currentView == ViewHelp:
			m.currentView = m.previousView
			return m, nil

		case key.Matches(msg, m.keys.Back) && m.currentView == ViewCommand:
			m.currentView = m.previousView
			return m, nil
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// capturesText reports whether the active view takes free-form input.
func (m Model) capturesText() bool {
	switch m.currentView {
	case ViewCommand, ViewCompose, ViewConfig:
		return true
	}
	return false
}

// handleFeedKeys handles the global shortcuts available from the feed.
func (m Model) handleFeedKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	c := m.active()

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quit()
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m, m.commandView.Focus(), true

	case key.Matches(msg, m.keys.Compose):
		m.previousView = m.currentView
		m.currentView = ViewCompose
		return m, m.composeView.Start(), true

	case key.Matches(msg, m.keys.Settings):
		if c == nil {
			return m, nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewConfig
		return m, m.configView.Start(c.Role()), true

	case key.Matches(msg, m.keys.SwitchRole):
		if c == nil {
			return m, m.switchRole(model.Roles[0]), true
		}
		return m, m.switchRole(nextRole(c.Role())), true
	}

	if c == nil {
		return m, nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Refresh):
		m.statusMessage = ""
		return m, refresh(c), true
	case key.Matches(msg, m.keys.MarkAllRead):
		return m, markAllRead(c), true
	case key.Matches(msg, m.keys.ClearAll):
		return m, clearAll(c), true
	}
	return m, nil, false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewFeed:
		m.feedView, cmd = m.feedView.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewCompose:
		m.composeView, cmd = m.composeView.Update(msg)
	case ViewConfig:
		m.configView, cmd = m.configView.Update(msg)
	}

	return m, cmd
}

// syncFeed copies the context's notifications into the feed view.
func (m *Model) syncFeed(c *appsync.Context) tea.Cmd {
	m.unreadCount = c.UnreadCount()
	return m.feedView.SetNotifications(c.Notifications())
}

// handleFetchError records a fetch failure for the status bar. Rejected
// credentials stay visible until the next successful fetch.
func (m *Model) handleFetchError(err error) {
	if errors.Is(err, appsync.ErrDisposed) {
		return
	}
	var authErr *source.AuthError
	if errors.As(err, &authErr) {
		m.authError = fmt.Sprintf("%s token rejected; press c to update it", authErr.Role)
		return
	}
	m.statusMessage = "sync failed: " + err.Error()
}

// quit disposes the active context before the program exits.
func (m Model) quit() {
	if m.manager != nil {
		m.manager.Close()
	}
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.headerTitle(), m.syncStatus(), m.offline())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

func (m Model) headerTitle() string {
	c := m.active()
	if c == nil {
		return "Subsidy Console"
	}
	title := "Subsidy Console · " + c.Role()
	if m.unreadCount > 0 {
		title = fmt.Sprintf("%s [%d unread]", title, m.unreadCount)
	}
	return title
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	if m.active() == nil && m.currentView == ViewFeed {
		return m.layout.RenderCentered("No role selected. Press s to pick one.")
	}

	switch m.currentView {
	case ViewFeed:
		return m.feedView.View()
	case ViewDetail:
		return m.detail.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewCompose:
		return m.composeView.View()
	case ViewConfig:
		return m.configView.View()
	default:
		return ""
	}
}

// syncStatus returns a short string describing the active role's sync
// state.
func (m Model) syncStatus() string {
	c := m.active()
	if c == nil {
		return "no role"
	}

	st := c.Status()
	switch {
	case st.State == appsync.StateFetching:
		return "syncing..."
	case st.State == appsync.StateRestoring:
		return "restoring..."
	case st.Error != nil && st.LastSync.IsZero():
		return "⚠ offline"
	case st.Error != nil:
		return "⚠ offline, synced " + inbox.FormatRelativeTime(st.LastSync)
	case st.LastSync.IsZero():
		return "not synced"
	default:
		return "synced " + inbox.FormatRelativeTime(st.LastSync)
	}
}

// offline reports whether the last fetch of the active role failed.
func (m Model) offline() bool {
	c := m.active()
	return c != nil && c.Status().Error != nil
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.currentView == ViewFeed {
		if m.authError != "" {
			return m.authError
		}
		if m.statusMessage != "" {
			return m.statusMessage
		}
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewDetail:
		return "esc back | d remove | j/k scroll"
	case ViewCompose:
		return "enter submit | esc cancel"
	case ViewConfig:
		return "enter test & save | esc back"
	default:
		if m.feedView.UnreadOnly() {
			return "showing unread only | u show all"
		}
		return "q quit | ? help | m read | M read all | n new | r refresh | s role"
	}
}

// executeCommand handles a parsed command from the command palette.
func (m *Model) executeCommand(cmd command.Command) tea.Cmd {
	c := m.active()

	switch cmd.Name {
	case command.Quit:
		m.quit()
		return tea.Quit
	case command.Role:
		if !knownRole(cmd.Arg) {
			m.statusMessage = fmt.Sprintf("unknown role %q", cmd.Arg)
			return nil
		}
		return m.switchRole(cmd.Arg)
	case command.Unread:
		return m.feedView.ToggleUnreadOnly()
	}

	if c == nil {
		return nil
	}

	switch cmd.Name {
	case command.Refresh:
		return refresh(c)
	case command.ReadAll:
		return markAllRead(c)
	case command.Clear:
		return clearAll(c)
	default:
		return nil
	}
}
