package store

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNamespace = "subsidy-console:"

func TestRedisPartitionGet(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	p := newRedisPartitionFromClient(client, testNamespace)

	mock.ExpectGet(testNamespace + "notifications_admin").SetVal(`[]`)
	mock.ExpectGet(testNamespace + "notifications_coordinator").RedisNil()
	mock.ExpectGet(testNamespace + "notifications_broken").SetErr(errors.New("connection reset"))

	value, found, err := p.Get(ctx, "notifications_admin")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[]`, value)

	_, found, err = p.Get(ctx, "notifications_coordinator")
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = p.Get(ctx, "notifications_broken")
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisPartitionSetAndDelete(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	p := newRedisPartitionFromClient(client, testNamespace)

	mock.ExpectSet(testNamespace+"notifications_admin", `[]`, 0).SetVal("OK")
	mock.ExpectDel(testNamespace+"notifications_admin", testNamespace+"notifications_admin_timestamp").SetVal(2)

	require.NoError(t, p.Set(ctx, "notifications_admin", `[]`))
	require.NoError(t, p.Delete(ctx, "notifications_admin", "notifications_admin_timestamp"))
	require.NoError(t, p.Delete(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisPartitionKeysFollowsCursor(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	p := newRedisPartitionFromClient(client, testNamespace)

	match := testNamespace + "notifications_*"
	mock.ExpectScan(0, match, scanBatch).SetVal([]string{testNamespace + "notifications_admin"}, 7)
	mock.ExpectScan(7, match, scanBatch).SetVal([]string{testNamespace + "notifications_admin_timestamp"}, 0)

	keys, err := p.Keys(ctx, "notifications_")
	require.NoError(t, err)
	assert.Equal(t, []string{"notifications_admin", "notifications_admin_timestamp"}, keys)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisPartitionNamespaceGetsSeparator(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	p := newRedisPartitionFromClient(client, "subsidy-console")

	mock.ExpectSet("subsidy-console:notifications_admin", `[]`, 0).SetVal("OK")

	require.NoError(t, p.Set(ctx, "notifications_admin", `[]`))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisPartitionKeysEscapesGlob(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	p := newRedisPartitionFromClient(client, testNamespace)

	mock.ExpectScan(0, testNamespace+`notifications_\*\?\[x\]*`, scanBatch).
		SetVal([]string{testNamespace + "notifications_*?[x]_timestamp"}, 0)

	keys, err := p.Keys(ctx, "notifications_*?[x]")
	require.NoError(t, err)
	assert.Equal(t, []string{"notifications_*?[x]_timestamp"}, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}
