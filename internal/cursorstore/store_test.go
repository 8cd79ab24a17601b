package cursorstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-collector/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return newWithClient(client, "index:")
}

func TestCursorRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	empty, err := store.GetCursor(ctx, types.SourceSlack)
	require.NoError(t, err)
	assert.Equal(t, "", empty.LastSync)

	cur := &types.Cursor{Source: types.SourceSlack, LastSync: "2024-06-10", SyncToken: "p2"}
	require.NoError(t, store.SaveCursor(ctx, cur))

	loaded, err := store.GetCursor(ctx, types.SourceSlack)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-10", loaded.LastSync)
	assert.Equal(t, "p2", loaded.SyncToken)

	require.NoError(t, store.ResetCursor(ctx, types.SourceSlack))
	reset, err := store.GetCursor(ctx, types.SourceSlack)
	require.NoError(t, err)
	assert.Equal(t, "", reset.LastSync)
}

func TestStatusRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	st, err := store.GetStatus(ctx, types.SourceJira)
	require.NoError(t, err)
	assert.Equal(t, types.StatusIdle, st.Status)

	st.Status = types.StatusRunning
	st.DocumentsIndexed = 5
	require.NoError(t, store.SaveStatus(ctx, st))

	all, err := store.AllStatus(ctx, []types.Source{types.SourceJira, types.SourceSlack})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, types.StatusRunning, all[0].Status)
	assert.Equal(t, types.StatusIdle, all[1].Status)
}

func TestReconcileStale(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	st := &types.IndexStatus{Source: types.SourceGitHub, Status: types.StatusRunning}
	require.NoError(t, store.SaveStatus(ctx, st))
	granted, err := store.AcquireLock(ctx, types.SourceGitHub, time.Minute)
	require.NoError(t, err)
	assert.True(t, granted)

	require.NoError(t, store.ReconcileStale(ctx, types.SourceGitHub, false))

	after, err := store.GetStatus(ctx, types.SourceGitHub)
	require.NoError(t, err)
	assert.Equal(t, types.StatusIdle, after.Status)

	grantedAgain, err := store.AcquireLock(ctx, types.SourceGitHub, time.Minute)
	require.NoError(t, err)
	assert.True(t, grantedAgain, "lock should have been released by the stale sweep")
}

func TestAcquireLockSingleHolder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first, err := store.AcquireLock(ctx, types.SourceDrive, time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := store.AcquireLock(ctx, types.SourceDrive, time.Minute)
	require.NoError(t, err)
	assert.False(t, second, "a held lock must not be granted twice")

	require.NoError(t, store.ReleaseLock(ctx, types.SourceDrive))
	third, err := store.AcquireLock(ctx, types.SourceDrive, time.Minute)
	require.NoError(t, err)
	assert.True(t, third)
}

func TestBulkHashes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.BulkSetHashes(ctx, "jira", map[string]string{"A": "hash-a", "B": "hash-b"})
	require.NoError(t, err)

	hashes, err := store.BulkGetHashes(ctx, "jira", []string{"A", "missing", "B"})
	require.NoError(t, err)
	require.Len(t, hashes, 3)
	require.NotNil(t, hashes[0])
	assert.Equal(t, "hash-a", *hashes[0])
	assert.Nil(t, hashes[1])
	require.NotNil(t, hashes[2])
	assert.Equal(t, "hash-b", *hashes[2])

	require.NoError(t, store.BulkSetHashes(ctx, "jira", map[string]string{"A-chunk-0": "c0", "A-chunk-1": "c1"}))
	require.NoError(t, store.RemoveHashes(ctx, "jira", "A"))

	afterRemove, err := store.BulkGetHashes(ctx, "jira", []string{"A", "A-chunk-0", "A-chunk-1", "B"})
	require.NoError(t, err)
	assert.Nil(t, afterRemove[0])
	assert.Nil(t, afterRemove[1])
	assert.Nil(t, afterRemove[2])
	require.NotNil(t, afterRemove[3])
}
