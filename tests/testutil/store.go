package testutil

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/nhle/subsidy-console/internal/store"
)

// NewTestPartition creates an in-memory SQLitePartition with all
// migrations applied. It automatically closes the partition when the test
// completes.
func NewTestPartition(t *testing.T) *store.SQLitePartition {
	t.Helper()

	p, err := store.NewSQLitePartition(":memory:")
	if err != nil {
		t.Fatalf("creating test partition: %v", err)
	}

	t.Cleanup(func() {
		if err := p.Close(); err != nil {
			t.Errorf("closing test partition: %v", err)
		}
	})

	return p
}

// NewTestSession creates a SessionPartition in a per-test directory.
func NewTestSession(t *testing.T) *store.SessionPartition {
	t.Helper()
	return store.NewSessionPartition(t.TempDir(), "test")
}

// NewTestBridge wires a Bridge over a fresh session and durable partition
// and returns all three.
func NewTestBridge(t *testing.T) (*store.Bridge, *store.SessionPartition, *store.SQLitePartition) {
	t.Helper()

	session := NewTestSession(t)
	durable := NewTestPartition(t)
	return store.NewBridge(session, durable, QuietLog()), session, durable
}

// QuietLog returns a log entry that discards output.
func QuietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
