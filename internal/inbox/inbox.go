// Package inbox holds the in-memory notification feed for one role
// context. Every mutation recomputes the unread count from the resulting
// list and notifies subscribers.
package inbox

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/subsidy-console/internal/model"
)

// Default limits applied when Options leaves them zero.
const (
	DefaultDedupWindow  = 60 * time.Second
	DefaultMaxAge       = 7 * 24 * time.Hour
	DefaultActionMaxAge = 24 * time.Hour
)

// Listener receives the feed and unread count after every change. The
// slice is a copy owned by the listener.
type Listener func(notifications []model.Notification, unreadCount int)

// Options configures an Inbox. Zero values select the defaults.
type Options struct {
	// DedupWindow suppresses a second (type, message) pair created within
	// this interval of an existing one. Negative disables deduplication.
	DedupWindow time.Duration

	// MaxAge is the age after which any notification is expired.
	MaxAge time.Duration

	// ActionMaxAge is the age after which action notifications expire.
	ActionMaxAge time.Duration

	// Now returns the current time.
	Now func() time.Time

	// NewID returns a fresh notification id.
	NewID func() string
}

// Inbox is the canonical list of notifications for a role, newest first.
type Inbox struct {
	mu        sync.Mutex
	items     []model.Notification
	unread    int
	opts      Options
	listeners map[int]Listener
	nextSubID int
}

// New creates an empty Inbox.
func New(opts Options) *Inbox {
	if opts.DedupWindow == 0 {
		opts.DedupWindow = DefaultDedupWindow
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.ActionMaxAge <= 0 {
		opts.ActionMaxAge = DefaultActionMaxAge
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = newID
	}

	return &Inbox{
		opts:      opts,
		listeners: make(map[int]Listener),
	}
}

// newID returns a UUIDv7, which sorts by creation time and stays unique
// for ids minted within the same millisecond.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Add builds a notification from in and prepends it. It returns false
// without touching state when a notification with the same type and
// message already exists within the dedup window.
func (ib *Inbox) Add(in model.Input) (model.Notification, bool) {
	ib.mu.Lock()

	ts := ib.opts.Now()
	if in.Timestamp != nil {
		ts = *in.Timestamp
	}

	if ib.isDuplicate(in.Type, in.Message, ts) {
		ib.mu.Unlock()
		return model.Notification{}, false
	}

	n := model.Notification{
		ID:        ib.opts.NewID(),
		Type:      in.Type,
		Title:     in.Title,
		Message:   in.Message,
		Priority:  in.Priority.Normalize(),
		Unread:    true,
		Timestamp: ts,
		Data:      in.Data,
	}

	items := make([]model.Notification, 0, len(ib.items)+1)
	items = append(items, n)
	items = append(items, ib.items...)
	ib.items = items

	ib.commitLocked()
	return n, true
}

// isDuplicate must be called with mu held.
func (ib *Inbox) isDuplicate(t model.Type, message string, ts time.Time) bool {
	if ib.opts.DedupWindow < 0 {
		return false
	}
	for _, existing := range ib.items {
		if existing.Type != t || existing.Message != message {
			continue
		}
		delta := ts.Sub(existing.Timestamp)
		if delta < 0 {
			delta = -delta
		}
		if delta < ib.opts.DedupWindow {
			return true
		}
	}
	return false
}

// MarkRead marks the notification with id as read. It reports whether
// anything changed; unknown or already-read ids are no-ops.
func (ib *Inbox) MarkRead(id string) bool {
	ib.mu.Lock()

	for i := range ib.items {
		if ib.items[i].ID != id {
			continue
		}
		if !ib.items[i].Unread {
			break
		}
		ib.items[i].Unread = false
		ib.commitLocked()
		return true
	}

	ib.mu.Unlock()
	return false
}

// MarkAllRead marks every notification as read.
func (ib *Inbox) MarkAllRead() bool {
	ib.mu.Lock()

	changed := false
	for i := range ib.items {
		if ib.items[i].Unread {
			ib.items[i].Unread = false
			changed = true
		}
	}

	if !changed {
		ib.mu.Unlock()
		return false
	}
	ib.commitLocked()
	return true
}

// Remove deletes the notification with id. Unknown ids are no-ops.
func (ib *Inbox) Remove(id string) bool {
	ib.mu.Lock()

	for i := range ib.items {
		if ib.items[i].ID != id {
			continue
		}
		items := make([]model.Notification, 0, len(ib.items)-1)
		items = append(items, ib.items[:i]...)
		items = append(items, ib.items[i+1:]...)
		ib.items = items
		ib.commitLocked()
		return true
	}

	ib.mu.Unlock()
	return false
}

// Clear removes every notification.
func (ib *Inbox) Clear() bool {
	ib.mu.Lock()

	if len(ib.items) == 0 {
		ib.mu.Unlock()
		return false
	}
	ib.items = nil
	ib.commitLocked()
	return true
}

// ReplaceAll swaps the whole feed for list. Server snapshots go through
// here; no field-level merge with local state is attempted.
func (ib *Inbox) ReplaceAll(list []model.Notification) {
	items := make([]model.Notification, len(list))
	copy(items, list)
	for i := range items {
		items[i].Priority = items[i].Priority.Normalize()
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.After(items[j].Timestamp)
	})

	ib.mu.Lock()
	ib.items = items
	ib.commitLocked()
}

// Cleanup drops notifications older than MaxAge and action notifications
// older than ActionMaxAge. It returns the surviving list and whether
// anything was removed; state is only written back on removal.
func (ib *Inbox) Cleanup() ([]model.Notification, bool) {
	ib.mu.Lock()

	now := ib.opts.Now()
	kept := make([]model.Notification, 0, len(ib.items))
	for _, n := range ib.items {
		if ib.expired(n, now) {
			continue
		}
		kept = append(kept, n)
	}

	if len(kept) == len(ib.items) {
		ib.mu.Unlock()
		return kept, false
	}

	ib.items = kept
	out := ib.commitLocked()
	return out, true
}

func (ib *Inbox) expired(n model.Notification, now time.Time) bool {
	age := now.Sub(n.Timestamp)
	if age > ib.opts.MaxAge {
		return true
	}
	return n.Type.IsAction() && age > ib.opts.ActionMaxAge
}

// Snapshot returns a copy of the feed, newest first.
func (ib *Inbox) Snapshot() []model.Notification {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	return cloneList(ib.items)
}

// UnreadCount returns the number of unread notifications.
func (ib *Inbox) UnreadCount() int {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	return ib.unread
}

// Len returns the number of notifications in the feed.
func (ib *Inbox) Len() int {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	return len(ib.items)
}

// Subscribe registers fn to be called after every change. The returned
// function removes the subscription.
func (ib *Inbox) Subscribe(fn Listener) func() {
	ib.mu.Lock()
	id := ib.nextSubID
	ib.nextSubID++
	ib.listeners[id] = fn
	ib.mu.Unlock()

	return func() {
		ib.mu.Lock()
		delete(ib.listeners, id)
		ib.mu.Unlock()
	}
}

// commitLocked recomputes the unread count, releases mu and notifies
// listeners outside the lock. It returns the snapshot sent to them.
func (ib *Inbox) commitLocked() []model.Notification {
	ib.unread = countUnread(ib.items)
	snapshot := cloneList(ib.items)
	unread := ib.unread

	listeners := make([]Listener, 0, len(ib.listeners))
	for _, fn := range ib.listeners {
		listeners = append(listeners, fn)
	}
	ib.mu.Unlock()

	for _, fn := range listeners {
		fn(cloneList(snapshot), unread)
	}
	return snapshot
}

func countUnread(items []model.Notification) int {
	n := 0
	for _, item := range items {
		if item.Unread {
			n++
		}
	}
	return n
}

func cloneList(items []model.Notification) []model.Notification {
	out := make([]model.Notification, len(items))
	copy(out, items)
	return out
}
