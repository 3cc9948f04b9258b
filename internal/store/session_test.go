package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionPartitionSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	p := NewSessionPartition(dir, "4242")
	require.NoError(t, p.Set(ctx, "notifications_admin", `[]`))
	assert.Equal(t, filepath.Join(dir, "session-4242.json"), p.Path())

	reopened := NewSessionPartition(dir, "4242")
	value, found, err := reopened.Get(ctx, "notifications_admin")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[]`, value)

	other := NewSessionPartition(dir, "7")
	_, found, err = other.Get(ctx, "notifications_admin")
	require.NoError(t, err)
	assert.False(t, found, "sessions must not share data")
}

func TestSessionPartitionKeysAndDelete(t *testing.T) {
	ctx := context.Background()
	p := NewSessionPartition(t.TempDir(), "1")

	require.NoError(t, p.Set(ctx, "notifications_b", "1"))
	require.NoError(t, p.Set(ctx, "notifications_a", "1"))
	require.NoError(t, p.Set(ctx, "unrelated", "1"))

	keys, err := p.Keys(ctx, "notifications_")
	require.NoError(t, err)
	assert.Equal(t, []string{"notifications_a", "notifications_b"}, keys)

	require.NoError(t, p.Delete(ctx, "notifications_a"))
	keys, err = p.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"notifications_b", "unrelated"}, keys)
}

func TestSessionPartitionCorruptFile(t *testing.T) {
	ctx := context.Background()
	p := NewSessionPartition(t.TempDir(), "1")
	require.NoError(t, os.WriteFile(p.Path(), []byte("<html>"), 0o600))

	_, _, err := p.Get(ctx, "notifications_admin")
	assert.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, p.Delete(ctx, "notifications_admin"))
	_, found, err := p.Get(ctx, "notifications_admin")
	require.NoError(t, err, "delete must replace the corrupt file")
	assert.False(t, found)
}
