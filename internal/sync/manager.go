package sync

import (
	"context"
	"fmt"
	gosync "sync"

	"github.com/sirupsen/logrus"

	"github.com/nhle/subsidy-console/internal/source"
	"github.com/nhle/subsidy-console/internal/store"
)

// TokenFunc returns the API token for role.
type TokenFunc func(role string) (string, error)

// Manager holds the single active role Context and replaces it when the
// signed-in role changes.
type Manager struct {
	bridge   *store.Bridge
	fetcher  source.Fetcher
	settings Settings
	tokens   TokenFunc
	log      *logrus.Entry

	mu     gosync.Mutex
	active *Context
}

// NewManager creates a Manager with no active role.
func NewManager(
	bridge *store.Bridge,
	fetcher source.Fetcher,
	settings Settings,
	tokens TokenFunc,
	log *logrus.Entry,
) *Manager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{
		bridge:   bridge,
		fetcher:  fetcher,
		settings: settings,
		tokens:   tokens,
		log:      log,
	}
}

// Active returns the current context, or nil before the first SwitchRole.
func (m *Manager) Active() *Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// SwitchRole disposes the active context and starts a fresh one for role.
// Switching to the role that is already active returns the existing
// context. On error the previous context stays active.
func (m *Manager) SwitchRole(ctx context.Context, role string) (*Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil && m.active.Role() == role {
		return m.active, nil
	}

	token, err := m.tokens(role)
	if err != nil {
		return nil, fmt.Errorf("loading token for %s: %w", role, err)
	}

	if m.active != nil {
		m.log.WithFields(logrus.Fields{
			"from": m.active.Role(),
			"to":   role,
		}).Info("switching role")
		m.active.Dispose()
		m.active = nil
	}

	next := NewContext(role, token, m.bridge, m.fetcher, m.settings, m.log)
	if err := next.Start(ctx); err != nil {
		next.Dispose()
		return nil, fmt.Errorf("starting %s context: %w", role, err)
	}
	m.active = next
	return next, nil
}

// Reload replaces the fetcher and restarts the active role with a fresh
// context so a changed endpoint or token takes effect. The restarted
// context restores from the session partition and does not fetch on its
// own; callers refresh it explicitly.
func (m *Manager) Reload(ctx context.Context, fetcher source.Fetcher) (*Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fetcher = fetcher
	if m.active == nil {
		return nil, nil
	}

	role := m.active.Role()
	token, err := m.tokens(role)
	if err != nil {
		return nil, fmt.Errorf("loading token for %s: %w", role, err)
	}

	m.active.Dispose()
	m.active = nil

	next := NewContext(role, token, m.bridge, m.fetcher, m.settings, m.log)
	if err := next.Start(ctx); err != nil {
		next.Dispose()
		return nil, fmt.Errorf("restarting %s context: %w", role, err)
	}
	m.active = next
	return next, nil
}

// Close disposes the active context.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		m.active.Dispose()
		m.active = nil
	}
}
