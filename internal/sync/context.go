package sync

import (
	"context"
	"errors"
	"regexp"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/nhle/subsidy-console/internal/inbox"
	"github.com/nhle/subsidy-console/internal/model"
	"github.com/nhle/subsidy-console/internal/source"
	"github.com/nhle/subsidy-console/internal/store"
)

// State is the lifecycle state of a role context.
type State int32

const (
	StateUninitialized State = iota
	StateRestoring
	StateIdle
	StateFetching
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRestoring:
		return "restoring"
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// ErrDisposed is returned by operations on a context after Dispose.
var ErrDisposed = errors.New("notification context disposed")

// Default cadence applied when Settings leaves a field zero.
const (
	DefaultPollInterval    = 2 * time.Minute
	DefaultReconcileDelay  = 2 * time.Second
	DefaultCleanupInterval = time.Hour
	DefaultFetchTimeout    = 30 * time.Second
	DefaultPartitionMaxAge = 30 * 24 * time.Hour
)

// Settings controls timing and retention for a Context.
type Settings struct {
	PollInterval    time.Duration
	ReconcileDelay  time.Duration
	CleanupInterval time.Duration
	FetchTimeout    time.Duration
	PartitionMaxAge time.Duration
	StalePatterns   []*regexp.Regexp
	Inbox           inbox.Options
}

// SettingsFromConfig builds Settings from the application config.
func SettingsFromConfig(cfg *model.AppConfig) (Settings, error) {
	patterns, err := cfg.CompiledStalePatterns()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		PollInterval:    cfg.PollInterval(),
		ReconcileDelay:  cfg.ReconcileDelay(),
		CleanupInterval: cfg.CleanupInterval(),
		FetchTimeout:    cfg.FetchTimeout(),
		PartitionMaxAge: cfg.PartitionMaxAge(),
		StalePatterns:   patterns,
		Inbox: inbox.Options{
			DedupWindow:  cfg.DedupWindow(),
			MaxAge:       cfg.MaxAge(),
			ActionMaxAge: cfg.ActionMaxAge(),
		},
	}, nil
}

func (s Settings) withDefaults() Settings {
	if s.PollInterval <= 0 {
		s.PollInterval = DefaultPollInterval
	}
	if s.ReconcileDelay <= 0 {
		s.ReconcileDelay = DefaultReconcileDelay
	}
	if s.CleanupInterval <= 0 {
		s.CleanupInterval = DefaultCleanupInterval
	}
	if s.FetchTimeout <= 0 {
		s.FetchTimeout = DefaultFetchTimeout
	}
	if s.PartitionMaxAge <= 0 {
		s.PartitionMaxAge = DefaultPartitionMaxAge
	}
	return s
}

// Status is a point-in-time view of a context's sync health.
type Status struct {
	Role     string
	State    State
	LastSync time.Time
	Error    error
}

// Context owns the notification feed for one role: the in-memory inbox,
// its persisted mirror and the reconciliation cadence against the
// server. A Context is started once and disposed once; switching roles
// means building a new one.
type Context struct {
	role     string
	token    string
	inbox    *inbox.Inbox
	bridge   *store.Bridge
	fetcher  source.Fetcher
	settings Settings
	log      *logrus.Entry

	state   atomic.Int32
	flight  singleflight.Group
	persist gosync.Mutex

	// baseCtx is cancelled by Dispose and bounds background fetches.
	baseCtx context.Context
	cancel  context.CancelFunc

	triggerCh chan struct{}
	changeCh  chan struct{}
	stopCh    chan struct{}
	wg        gosync.WaitGroup

	mu          gosync.Mutex
	started     bool
	disposed    bool
	visible     bool
	lastSync    time.Time
	lastErr     error
	pending     map[int]*time.Timer
	nextTimer   int
	scheduler   gocron.Scheduler
	unsubscribe func()
}

// NewContext creates an unstarted Context for role.
func NewContext(
	role string,
	token string,
	bridge *store.Bridge,
	fetcher source.Fetcher,
	settings Settings,
	log *logrus.Entry,
) *Context {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	baseCtx, cancel := context.WithCancel(context.Background())

	c := &Context{
		role:      role,
		token:     token,
		inbox:     inbox.New(settings.Inbox),
		bridge:    bridge,
		fetcher:   fetcher,
		settings:  settings.withDefaults(),
		log:       log.WithFields(logrus.Fields{"component": "sync", "role": role}),
		baseCtx:   baseCtx,
		cancel:    cancel,
		triggerCh: make(chan struct{}, 1),
		changeCh:  make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		visible:   true,
		pending:   make(map[int]*time.Timer),
	}
	c.unsubscribe = c.inbox.Subscribe(func([]model.Notification, int) {
		c.signalChange()
	})
	return c
}

// Role returns the role this context serves.
func (c *Context) Role() string {
	return c.role
}

// State returns the current lifecycle state.
func (c *Context) State() State {
	return State(c.state.Load())
}

// setState moves to s unless the context is already disposed.
func (c *Context) setState(s State) {
	for {
		cur := c.state.Load()
		if State(cur) == StateDisposed {
			return
		}
		if c.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

// Status returns the current state with the outcome of the last fetch.
func (c *Context) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Role:     c.role,
		State:    c.State(),
		LastSync: c.lastSync,
		Error:    c.lastErr,
	}
}

// Start restores the persisted feed, then begins periodic reconciliation.
// When the session partition already holds a feed the client is being
// reloaded and the initial fetch is skipped. Calling Start again is a
// no-op; starting a disposed context returns ErrDisposed.
func (c *Context) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	c.setState(StateRestoring)
	reload := c.restore(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	c.setState(StateIdle)

	if err := c.startCleanupJobLocked(); err != nil {
		c.log.WithError(err).Warn("scheduling cleanup job")
	}

	c.wg.Add(1)
	go c.loop()

	if reload {
		c.log.Debug("session snapshot found; skipping initial fetch")
	} else {
		c.trigger()
	}
	return nil
}

// restore seeds the inbox from storage and reports whether a session
// snapshot was present.
func (c *Context) restore(ctx context.Context) bool {
	c.bridge.PurgeIfStale(ctx, c.role, c.settings.StalePatterns)

	reload := c.bridge.HasSessionSnapshot(ctx, c.role)
	restored := c.bridge.Restore(ctx, c.role)
	c.inbox.ReplaceAll(restored)
	c.log.WithFields(logrus.Fields{
		"count":  len(restored),
		"reload": reload,
	}).Debug("restored notifications")

	if _, removed := c.inbox.Cleanup(); removed {
		c.save(ctx)
	}
	return reload
}

// SetVisible records whether the user can currently see the client. The
// periodic fetch only runs while visible, and regaining visibility
// triggers an immediate fetch.
func (c *Context) SetVisible(visible bool) {
	c.mu.Lock()
	was := c.visible
	c.visible = visible
	active := c.started && !c.disposed
	c.mu.Unlock()

	if visible && !was && active {
		c.trigger()
	}
}

func (c *Context) isVisible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}

func (c *Context) isDisposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// AddNotification adds a locally raised notification, persists it and
// schedules a reconciliation fetch after the reconcile delay. It reports
// false when the notification was suppressed as a duplicate.
func (c *Context) AddNotification(in model.Input) (model.Notification, bool) {
	if c.isDisposed() {
		return model.Notification{}, false
	}

	n, added := c.inbox.Add(in)
	if !added {
		c.log.WithField("type", in.Type).Debug("suppressed duplicate notification")
		return n, false
	}
	c.save(context.Background())
	c.scheduleReconcile()
	return n, true
}

// MarkAsRead marks id read. Unknown ids are ignored.
func (c *Context) MarkAsRead(id string) {
	if c.isDisposed() {
		return
	}
	if c.inbox.MarkRead(id) {
		c.save(context.Background())
	}
}

// MarkAllAsRead marks every notification read.
func (c *Context) MarkAllAsRead() {
	if c.isDisposed() {
		return
	}
	if c.inbox.MarkAllRead() {
		c.save(context.Background())
	}
}

// RemoveNotification deletes id. Unknown ids are ignored.
func (c *Context) RemoveNotification(id string) {
	if c.isDisposed() {
		return
	}
	if c.inbox.Remove(id) {
		c.save(context.Background())
	}
}

// ClearAll empties the feed.
func (c *Context) ClearAll() {
	if c.isDisposed() {
		return
	}
	if c.inbox.Clear() {
		c.save(context.Background())
	}
}

// Subscribe registers fn for every change of the feed and returns a
// function that removes it.
func (c *Context) Subscribe(fn inbox.Listener) func() {
	return c.inbox.Subscribe(fn)
}

// Notifications returns a copy of the feed, newest first.
func (c *Context) Notifications() []model.Notification {
	return c.inbox.Snapshot()
}

// UnreadCount returns the number of unread notifications.
func (c *Context) UnreadCount() int {
	return c.inbox.UnreadCount()
}

// save mirrors the current feed into storage. Writes are serialized so
// an older snapshot never overwrites a newer one.
func (c *Context) save(ctx context.Context) {
	c.persist.Lock()
	defer c.persist.Unlock()

	if err := c.bridge.Persist(ctx, c.role, c.inbox.Snapshot()); err != nil {
		c.log.WithError(err).Warn("persisting notifications")
	}
}

// RunCleanup drops expired notifications and purges durable partitions
// of other roles that have not been written within the partition max age.
func (c *Context) RunCleanup(ctx context.Context) {
	if c.isDisposed() {
		return
	}
	if kept, removed := c.inbox.Cleanup(); removed {
		c.log.WithField("remaining", len(kept)).Debug("expired notifications removed")
		c.save(ctx)
	}

	purged, err := c.bridge.PurgeExpiredPartitions(ctx, c.settings.PartitionMaxAge, c.role)
	if err != nil {
		c.log.WithError(err).Warn("purging expired partitions")
		return
	}
	if purged > 0 {
		c.log.WithField("purged", purged).Info("purged expired partitions")
	}
}

// startCleanupJobLocked must be called with mu held.
func (c *Context) startCleanupJobLocked() error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = s.NewJob(
		gocron.DurationJob(c.settings.CleanupInterval),
		gocron.NewTask(func() {
			c.RunCleanup(c.baseCtx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return err
	}
	s.Start()
	c.scheduler = s
	return nil
}

// Dispose stops the poll loop, pending reconciliation fetches and the
// cleanup job. It waits for the loop to exit and is safe to call more
// than once.
func (c *Context) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	c.setState(StateDisposed)

	for id, t := range c.pending {
		t.Stop()
		delete(c.pending, id)
	}
	scheduler := c.scheduler
	c.scheduler = nil
	c.mu.Unlock()

	c.cancel()
	close(c.stopCh)
	c.unsubscribe()

	if scheduler != nil {
		if err := scheduler.Shutdown(); err != nil {
			c.log.WithError(err).Warn("stopping cleanup job")
		}
	}
	c.wg.Wait()
	c.log.Debug("context disposed")
}

// signalChange wakes one WaitForChange command without blocking.
func (c *Context) signalChange() {
	select {
	case c.changeCh <- struct{}{}:
	default:
	}
}
