package settingsstore

import (
	"context"
	"testing"

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

func TestSettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	empty, err := store.Get(ctx, types.SourceJira)
	require.NoError(t, err)
	assert.Equal(t, types.IndexRequest{}, empty)

	req := types.IndexRequest{FullReindex: true}
	require.NoError(t, store.Save(ctx, types.SourceJira, req))

	loaded, err := store.Get(ctx, types.SourceJira)
	require.NoError(t, err)
	assert.True(t, loaded.FullReindex)
}

func TestEnabledDefaultsTrue(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ok, err := store.Enabled(ctx, types.SourceSlack)
	require.NoError(t, err)
	assert.True(t, ok, "a source with no stored flag must default to enabled")
}

func TestSetEnabledRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SetEnabled(ctx, types.SourceSlack, false))
	ok, err := store.Enabled(ctx, types.SourceSlack)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetEnabled(ctx, types.SourceSlack, true))
	ok, err = store.Enabled(ctx, types.SourceSlack)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnabledSources(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SetEnabled(ctx, types.SourceSlack, false))
	require.NoError(t, store.SetEnabled(ctx, types.SourceJira, true))

	enabled, err := store.EnabledSources(ctx)
	require.NoError(t, err)
	assert.NotContains(t, enabled, types.SourceSlack)
	assert.Contains(t, enabled, types.SourceJira)
	assert.Contains(t, enabled, types.SourceGitHub, "sources with no stored flag stay enabled by default")
}
