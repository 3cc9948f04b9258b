package sync

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/subsidy-console/internal/source"
)

// ChangedMsg is a tea.Msg sent when a role's feed or sync status has
// changed. Receivers read the current state from the Context.
type ChangedMsg struct {
	Role string
}

// loop runs periodic and triggered fetches until Dispose.
func (c *Context) loop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.settings.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if !c.isVisible() {
				continue
			}
			c.backgroundFetch()
		case <-c.triggerCh:
			c.backgroundFetch()
		}
	}
}

// backgroundFetch runs a fetch whose error has already been logged.
func (c *Context) backgroundFetch() {
	_ = c.FetchNotifications(c.baseCtx)
}

// trigger requests a fetch from the loop. Requests made while one is
// already queued are coalesced.
func (c *Context) trigger() {
	select {
	case c.triggerCh <- struct{}{}:
	default:
	}
}

// scheduleReconcile triggers a fetch after the reconcile delay.
func (c *Context) scheduleReconcile() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}
	id := c.nextTimer
	c.nextTimer++
	c.pending[id] = time.AfterFunc(c.settings.ReconcileDelay, func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		c.trigger()
	})
}

// FetchNotifications reconciles the feed with the server. On success the
// server list replaces the local one and is persisted. On failure the
// in-memory feed is kept as is, and an empty feed is seeded from the
// persisted snapshot; the error is logged and returned.
// Overlapping calls share a single request.
func (c *Context) FetchNotifications(ctx context.Context) error {
	if c.isDisposed() {
		return ErrDisposed
	}
	_, err, _ := c.flight.Do(c.role, func() (any, error) {
		return nil, c.fetch(ctx)
	})
	return err
}

func (c *Context) fetch(ctx context.Context) error {
	c.setState(StateFetching)
	defer c.setState(StateIdle)

	fetchCtx, cancel := context.WithTimeout(ctx, c.settings.FetchTimeout)
	defer cancel()

	list, err := c.fetcher.FetchNotifications(fetchCtx, c.role, c.token)
	if c.isDisposed() {
		return ErrDisposed
	}
	// Storage work must outlive an expired fetch deadline.
	storeCtx := context.WithoutCancel(ctx)

	if err != nil {
		log := c.log.WithError(err)
		if source.IsAuthError(err) {
			log.Warn("notification fetch rejected; keeping cached feed")
		} else {
			log.Warn("notification fetch failed; keeping cached feed")
		}
		// Memory is never older than storage, so storage only seeds an
		// empty feed.
		if c.inbox.Len() == 0 {
			if restored := c.bridge.Restore(storeCtx, c.role); len(restored) > 0 {
				c.inbox.ReplaceAll(restored)
			}
		}
		c.recordFetch(err)
		return fmt.Errorf("fetching notifications for %s: %w", c.role, err)
	}

	c.inbox.ReplaceAll(list)
	c.save(storeCtx)
	c.recordFetch(nil)
	c.log.WithField("count", len(list)).Debug("notifications reconciled")
	return nil
}

// recordFetch stores the outcome of a fetch for Status.
func (c *Context) recordFetch(err error) {
	c.mu.Lock()
	c.lastErr = err
	if err == nil {
		c.lastSync = time.Now()
	}
	c.mu.Unlock()
	c.signalChange()
}

// WaitForChange returns a tea.Cmd that blocks until the feed or sync
// status changes, then yields a ChangedMsg. Call it again after each
// ChangedMsg to keep listening. It yields nil once the context is
// disposed.
func (c *Context) WaitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-c.changeCh:
			return ChangedMsg{Role: c.role}
		case <-c.stopCh:
			return nil
		}
	}
}
