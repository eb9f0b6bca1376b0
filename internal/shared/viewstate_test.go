package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type toggles struct {
	All   bool            `json:"all"`
	Flags map[string]bool `json:"flags"`
}

func newTestViewState(t *testing.T) (*ViewStateStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewViewStateStore(client, "test", time.Hour), mr
}

func TestViewStateRoundTrip(t *testing.T) {
	store, mr := newTestViewState(t)
	ctx := context.Background()

	var missing toggles
	found, err := store.Load(ctx, "u1", "run:r1", &missing)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Save(ctx, "u1", "run:r1", toggles{All: true, Flags: map[string]bool{"x": true}}))
	assert.True(t, mr.Exists("test:u1:run:r1"))

	var got toggles
	found, err = store.Load(ctx, "u1", "run:r1", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.All)
	assert.True(t, got.Flags["x"])

	require.NoError(t, store.Delete(ctx, "u1", "run:r1"))
	found, err = store.Load(ctx, "u1", "run:r1", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestViewStateExpires(t *testing.T) {
	store, mr := newTestViewState(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "u1", "scope", toggles{}))
	mr.FastForward(2 * time.Hour)

	var got toggles
	found, err := store.Load(ctx, "u1", "scope", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestViewStateNilStoreIsInert(t *testing.T) {
	var store *ViewStateStore
	var got toggles
	found, err := store.Load(context.Background(), "u", "s", &got)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, store.Save(context.Background(), "u", "s", got))
	assert.NoError(t, store.Delete(context.Background(), "u", "s"))
}
