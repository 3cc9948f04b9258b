package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMemoryPartition creates an in-memory SQLitePartition with all
// migrations applied and closes it when the test completes.
func newMemoryPartition(t *testing.T) *SQLitePartition {
	t.Helper()

	p, err := NewSQLitePartition(":memory:")
	require.NoError(t, err, "creating test partition")

	t.Cleanup(func() {
		if err := p.Close(); err != nil {
			t.Errorf("closing test partition: %v", err)
		}
	})
	return p
}

func TestSQLitePartitionRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newMemoryPartition(t)

	_, found, err := p.Get(ctx, "notifications_admin")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, p.Set(ctx, "notifications_admin", `[{"id":"1"}]`))
	require.NoError(t, p.Set(ctx, "notifications_admin", `[]`))

	value, found, err := p.Get(ctx, "notifications_admin")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[]`, value)
}

func TestSQLitePartitionKeysAndDelete(t *testing.T) {
	ctx := context.Background()
	p := newMemoryPartition(t)

	for _, k := range []string{"notifications_admin", "notifications_admin_timestamp", "notifications_coordinator", "other"} {
		require.NoError(t, p.Set(ctx, k, "v"))
	}

	keys, err := p.Keys(ctx, "notifications_")
	require.NoError(t, err)
	assert.Equal(t, []string{"notifications_admin", "notifications_admin_timestamp", "notifications_coordinator"}, keys)

	require.NoError(t, p.Delete(ctx, "notifications_admin", "notifications_admin_timestamp", "missing"))

	keys, err = p.Keys(ctx, "notifications_")
	require.NoError(t, err)
	assert.Equal(t, []string{"notifications_coordinator"}, keys)

	require.NoError(t, p.Delete(ctx))
}

func TestSQLitePartitionMigrationsAreIdempotent(t *testing.T) {
	p := newMemoryPartition(t)

	require.NoError(t, p.runMigrations())

	var version int
	require.NoError(t, p.db.Get(&version, "SELECT MAX(version) FROM schema_version"))
	assert.Equal(t, len(migrations), version)
}

func TestSQLitePartitionReadError(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	assert.NoError(err, "unable to open the mock database connection")
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM kv WHERE key = ?")).
		WithArgs("notifications_admin").
		WillReturnError(errors.New("disk I/O error"))

	p := newSQLitePartitionFromDB(sqlx.NewDb(db, "sqlmock"))
	_, found, err := p.Get(context.Background(), "notifications_admin")
	assert.Error(err)
	assert.False(found)
	assert.NotErrorIs(err, ErrCorrupt)

	assert.NoError(mock.ExpectationsWereMet(), "not all mock expectations were met")
}

func TestSQLitePartitionDeleteUsesOneStatement(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	assert.NoError(err, "unable to open the mock database connection")
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM kv WHERE key IN (?, ?)")).
		WithArgs("notifications_admin", "notifications_admin_timestamp").
		WillReturnResult(sqlmock.NewResult(0, 2))

	p := newSQLitePartitionFromDB(sqlx.NewDb(db, "sqlmock"))
	err = p.Delete(context.Background(), "notifications_admin", "notifications_admin_timestamp")
	assert.NoError(err)

	assert.NoError(mock.ExpectationsWereMet(), "not all mock expectations were met")
}
