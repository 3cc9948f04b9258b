package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/subsidy-console/internal/model"
	"github.com/nhle/subsidy-console/internal/source"
	appsync "github.com/nhle/subsidy-console/internal/sync"
	"github.com/nhle/subsidy-console/internal/ui/command"
	"github.com/nhle/subsidy-console/internal/ui/feed"
	"github.com/nhle/subsidy-console/tests/testutil"
)

func feedFor(role string) []model.Notification {
	now := time.Now().UTC().Truncate(time.Second)
	return []model.Notification{
		{ID: role + "-2", Type: model.TypeInterviewRequest, Title: "Interview request",
			Message: "Visit requested", Priority: model.PriorityHigh, Unread: true, Timestamp: now},
		{ID: role + "-1", Type: model.TypeSystemUpdate, Title: "Maintenance",
			Message: "Portal offline tonight", Priority: model.PriorityLow, Unread: true,
			Timestamp: now.Add(-time.Hour)},
	}
}

func newTestApp(t *testing.T) (Model, *appsync.Manager) {
	t.Helper()

	bridge, _, _ := testutil.NewTestBridge(t)
	var calls atomic.Int32
	fetcher := source.FetcherFunc(func(_ context.Context, role, _ string) ([]model.Notification, error) {
		calls.Add(1)
		return feedFor(role), nil
	})
	tokens := func(role string) (string, error) { return "tok-" + role, nil }
	settings := appsync.Settings{
		PollInterval:    time.Hour,
		ReconcileDelay:  time.Hour,
		CleanupInterval: time.Hour,
		FetchTimeout:    time.Second,
	}
	mgr := appsync.NewManager(bridge, fetcher, settings, tokens, testutil.QuietLog())
	t.Cleanup(mgr.Close)

	c, err := mgr.SwitchRole(context.Background(), "admin")
	require.NoError(t, err)
	// Join the initial background fetch so it cannot land mid-test.
	require.Eventually(t, func() bool { return calls.Load() > 0 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, c.FetchNotifications(context.Background()))

	m := New(Options{
		Manager: mgr,
		Config:  model.DefaultAppConfig(),
		Log:     testutil.QuietLog(),
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model), mgr
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestChangedMsgRefreshesFeed(t *testing.T) {
	m, _ := newTestApp(t)

	initCmd := m.Init()
	require.NotNil(t, initCmd)
	msg := initCmd()
	assert.Equal(t, appsync.ChangedMsg{Role: "admin"}, msg)

	m, _ = update(t, m, msg)
	assert.Equal(t, 2, m.unreadCount)
	assert.Contains(t, m.headerTitle(), "admin [2 unread]")
	assert.Contains(t, m.View(), "Interview request")
}

func TestStaleChangedMsgIgnored(t *testing.T) {
	m, _ := newTestApp(t)

	m, cmd := update(t, m, appsync.ChangedMsg{Role: "coordinator"})
	assert.Nil(t, cmd)
	assert.Zero(t, m.unreadCount)
}

func TestOpeningNotificationMarksItRead(t *testing.T) {
	m, mgr := newTestApp(t)
	n := feedFor("admin")[0]

	m, cmd := update(t, m, feed.SelectedMsg{Notification: n})
	assert.Equal(t, ViewDetail, m.currentView)
	require.NotNil(t, cmd)
	cmd()

	assert.Equal(t, 1, mgr.Active().UnreadCount())
}

func TestRemoveFromDetailReturnsToFeed(t *testing.T) {
	m, mgr := newTestApp(t)
	n := feedFor("admin")[1]

	m, _ = update(t, m, feed.SelectedMsg{Notification: n})
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	require.NotNil(t, cmd)
	m, cmd = update(t, m, cmd())
	assert.Equal(t, ViewFeed, m.currentView)
	require.NotNil(t, cmd)
	cmd()

	assert.Len(t, mgr.Active().Notifications(), 1)
}

func TestFeedShortcuts(t *testing.T) {
	m, mgr := newTestApp(t)

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("M")})
	require.NotNil(t, cmd)
	cmd()
	assert.Zero(t, mgr.Active().UnreadCount())

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("D")})
	require.NotNil(t, cmd)
	cmd()
	assert.Empty(t, mgr.Active().Notifications())
}

func TestRoleSwitchCommand(t *testing.T) {
	m, mgr := newTestApp(t)
	admin := mgr.Active()

	m.executeCommand(command.Command{Name: command.Role, Arg: "auditor"})
	assert.Equal(t, `unknown role "auditor"`, m.statusMessage)

	cmd := m.executeCommand(command.Command{Name: command.Role, Arg: "coordinator"})
	require.NotNil(t, cmd)
	msg := cmd()

	m, _ = update(t, m, msg)
	assert.Equal(t, appsync.StateDisposed, admin.State())
	assert.Equal(t, "coordinator", mgr.Active().Role())
	assert.Same(t, mgr.Active(), m.watching)
	assert.Contains(t, m.headerTitle(), "coordinator")
}

func TestAuthErrorShownUntilNextSuccess(t *testing.T) {
	m, _ := newTestApp(t)

	m, _ = update(t, m, fetchResultMsg{
		role: "admin",
		err:  &source.AuthError{Role: "admin", Message: "expired"},
	})
	assert.Equal(t, "admin token rejected; press c to update it", m.keyHints())

	m, _ = update(t, m, fetchResultMsg{role: "admin"})
	assert.NotContains(t, m.keyHints(), "rejected")
}

func TestDuplicateAddReported(t *testing.T) {
	m, _ := newTestApp(t)

	m, _ = update(t, m, addResultMsg{added: false, title: "Maintenance"})
	assert.Equal(t, `"Maintenance" suppressed as a duplicate`, m.keyHints())
}

func TestNextRole(t *testing.T) {
	assert.Equal(t, "admin", nextRole("coordinator"))
	assert.Equal(t, "coordinator", nextRole("admin"))
	assert.Equal(t, model.Roles[0], nextRole("unknown"))
}
