package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/subsidy-console/internal/model"
)

// failingPartition rejects every call.
type failingPartition struct{}

func (failingPartition) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("unavailable")
}
func (failingPartition) Set(context.Context, string, string) error { return errors.New("unavailable") }
func (failingPartition) Delete(context.Context, ...string) error   { return errors.New("unavailable") }
func (failingPartition) Keys(context.Context, string) ([]string, error) {
	return nil, errors.New("unavailable")
}

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

type bridgeFixture struct {
	bridge  *Bridge
	session *SessionPartition
	durable *SQLitePartition
}

func newBridgeFixture(t *testing.T) bridgeFixture {
	t.Helper()
	session := NewSessionPartition(t.TempDir(), "test")
	durable := newMemoryPartition(t)
	return bridgeFixture{
		bridge:  NewBridge(session, durable, quietLog()),
		session: session,
		durable: durable,
	}
}

func sampleFeed() []model.Notification {
	at := time.Date(2024, 3, 10, 8, 30, 0, 123456789, time.UTC)
	scheduled := at.Add(48 * time.Hour)
	return []model.Notification{
		{
			ID: "b", Type: model.TypeInterviewRequest, Title: "Interview requested",
			Message: "Field visit for Amina Okoro", Priority: model.PriorityHigh, Unread: true,
			Timestamp: at,
			Data: model.InterviewData{
				BeneficiaryID: "ben-7", BeneficiaryName: "Amina Okoro", ScheduledAt: &scheduled,
			},
		},
		{
			ID: "a", Type: model.TypeSystemUpdate, Title: "Maintenance",
			Message: "Portal offline 22:00", Priority: model.PriorityLow,
			Timestamp: at.Add(-time.Hour),
		},
		{
			ID: "c", Type: "harvest_report", Title: "Harvest",
			Message: "Report filed", Priority: model.PriorityMedium,
			Timestamp: at.Add(-2 * time.Hour),
			Data:      model.GenericData{"region": "North"},
		},
	}
}

func TestBridgeRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newBridgeFixture(t)
	feed := sampleFeed()

	require.NoError(t, f.bridge.Persist(ctx, "coordinator", feed))

	restored := f.bridge.Restore(ctx, "coordinator")
	assert.Equal(t, feed, restored)
}

func TestBridgePersistWritesBothPartitionsWithStamp(t *testing.T) {
	ctx := context.Background()
	f := newBridgeFixture(t)
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	f.bridge.now = func() time.Time { return now }

	require.NoError(t, f.bridge.Persist(ctx, "admin", nil))

	for _, p := range []Partition{f.session, f.durable} {
		list, found, err := p.Get(ctx, "notifications_admin")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "[]", list)

		stamp, found, err := p.Get(ctx, "notifications_admin_timestamp")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, now.Format(time.RFC3339Nano), stamp)
	}
}

func TestBridgeRestorePrefersSession(t *testing.T) {
	ctx := context.Background()
	f := newBridgeFixture(t)
	feed := sampleFeed()

	require.NoError(t, f.bridge.Persist(ctx, "admin", feed))
	// Simulate an optimistic local change that only reached the session.
	sessionOnly := NewBridge(f.session, failingPartition{}, quietLog())
	_ = sessionOnly.Persist(ctx, "admin", feed[:1])

	assert.Equal(t, feed[:1], f.bridge.Restore(ctx, "admin"))
	assert.True(t, f.bridge.HasSessionSnapshot(ctx, "admin"))
}

func TestBridgeRestoreFallsBackToDurable(t *testing.T) {
	ctx := context.Background()
	f := newBridgeFixture(t)
	feed := sampleFeed()

	require.NoError(t, f.bridge.Persist(ctx, "admin", feed))
	require.NoError(t, f.session.Delete(ctx, ListKey("admin")))

	assert.False(t, f.bridge.HasSessionSnapshot(ctx, "admin"))
	assert.Equal(t, feed, f.bridge.Restore(ctx, "admin"))
}

func TestBridgeRestoreEmpty(t *testing.T) {
	f := newBridgeFixture(t)

	restored := f.bridge.Restore(context.Background(), "admin")
	assert.NotNil(t, restored)
	assert.Empty(t, restored)
}

func TestBridgeRestoreClearsCorruptValue(t *testing.T) {
	ctx := context.Background()
	f := newBridgeFixture(t)
	feed := sampleFeed()

	require.NoError(t, f.bridge.Persist(ctx, "admin", feed))
	require.NoError(t, f.session.Set(ctx, ListKey("admin"), "{not json"))

	assert.Equal(t, feed, f.bridge.Restore(ctx, "admin"))

	_, found, err := f.session.Get(ctx, ListKey("admin"))
	require.NoError(t, err)
	assert.False(t, found, "corrupt session value must be cleared")
	_, found, _ = f.session.Get(ctx, StampKey("admin"))
	assert.False(t, found)
}

func TestBridgeRestoreClearsCorruptSessionFile(t *testing.T) {
	ctx := context.Background()
	f := newBridgeFixture(t)
	require.NoError(t, os.WriteFile(f.session.Path(), []byte("garbage"), 0o600))

	assert.Empty(t, f.bridge.Restore(ctx, "admin"))

	_, _, err := f.session.Get(ctx, ListKey("admin"))
	assert.NoError(t, err, "corrupt session file must be replaced")
}

func TestBridgeRestoreSurvivesUnreadablePartitions(t *testing.T) {
	b := NewBridge(failingPartition{}, failingPartition{}, quietLog())

	assert.NotPanics(t, func() {
		assert.Empty(t, b.Restore(context.Background(), "admin"))
	})
}

func TestBridgePersistIsBestEffort(t *testing.T) {
	ctx := context.Background()
	session := NewSessionPartition(t.TempDir(), "test")
	b := NewBridge(session, failingPartition{}, quietLog())

	err := b.Persist(ctx, "admin", sampleFeed())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "durable partition")

	_, found, err := session.Get(ctx, ListKey("admin"))
	require.NoError(t, err)
	assert.True(t, found, "session write must not depend on durable write")
}

func TestBridgePurgeIfStale(t *testing.T) {
	ctx := context.Background()
	f := newBridgeFixture(t)
	patterns := []*regexp.Regexp{regexp.MustCompile(`(?i)sample farmer`)}

	require.NoError(t, f.bridge.Persist(ctx, "admin", sampleFeed()))
	assert.False(t, f.bridge.PurgeIfStale(ctx, "admin", patterns))
	assert.False(t, f.bridge.PurgeIfStale(ctx, "admin", nil))

	stale := []model.Notification{{ID: "x", Type: model.TypeBeneficiaryUpdate, Message: "Sample Farmer updated"}}
	require.NoError(t, f.durable.Set(ctx, ListKey("admin"), mustJSON(t, stale)))

	assert.True(t, f.bridge.PurgeIfStale(ctx, "admin", patterns))
	for _, p := range []Partition{f.session, f.durable} {
		_, found, err := p.Get(ctx, ListKey("admin"))
		require.NoError(t, err)
		assert.False(t, found)
	}
}

func TestBridgePurgeExpiredPartitions(t *testing.T) {
	ctx := context.Background()
	f := newBridgeFixture(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	f.bridge.now = func() time.Time { return start }
	require.NoError(t, f.bridge.Persist(ctx, "coordinator", sampleFeed()))
	require.NoError(t, f.bridge.Persist(ctx, "admin", sampleFeed()))
	require.NoError(t, f.durable.Set(ctx, StampKey("auditor"), "yesterday"))

	f.bridge.now = func() time.Time { return start.Add(10 * 24 * time.Hour) }
	require.NoError(t, f.bridge.Persist(ctx, "admin", sampleFeed()))

	f.bridge.now = func() time.Time { return start.Add(31 * 24 * time.Hour) }
	purged, err := f.bridge.PurgeExpiredPartitions(ctx, 30*24*time.Hour, "")
	require.NoError(t, err)
	assert.Equal(t, 2, purged, "coordinator is expired and auditor has an unreadable stamp")

	keys, err := f.durable.Keys(ctx, "notifications_")
	require.NoError(t, err)
	assert.Equal(t, []string{"notifications_admin", "notifications_admin_timestamp"}, keys)
}

func TestBridgePurgeExpiredPartitionsKeepsActiveRole(t *testing.T) {
	ctx := context.Background()
	f := newBridgeFixture(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	f.bridge.now = func() time.Time { return start }
	require.NoError(t, f.bridge.Persist(ctx, "coordinator", sampleFeed()))

	f.bridge.now = func() time.Time { return start.Add(90 * 24 * time.Hour) }
	purged, err := f.bridge.PurgeExpiredPartitions(ctx, 30*24*time.Hour, "coordinator")
	require.NoError(t, err)
	assert.Zero(t, purged)
}
