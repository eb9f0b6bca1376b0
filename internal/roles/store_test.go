package roles

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	mu    sync.Mutex
	roles map[string]Role
	calls atomic.Int32
	asked [][]string
	err   error
	gate  chan struct{}
}

// RolesByNames reads its result before blocking on gate, like a query whose
// snapshot predates later writes.
func (s *stubSource) RolesByNames(ctx context.Context, names []string) ([]Role, error) {
	s.mu.Lock()
	s.asked = append(s.asked, append([]string(nil), names...))
	err := s.err
	var out []Role
	for _, name := range names {
		if role, ok := s.roles[name]; ok {
			out = append(out, role)
		}
	}
	s.mu.Unlock()
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func newSource() *stubSource {
	return &stubSource{roles: map[string]Role{
		PlaybookMember: {Name: PlaybookMember, Permissions: []string{"playbook_public_view", "playbook_private_view"}},
		PlaybookAdmin:  {Name: PlaybookAdmin, Permissions: []string{"playbook_public_manage_members"}},
	}}
}

func newTestCache(t *testing.T) (*Cache, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), client
}

func TestRoleHas(t *testing.T) {
	role := Role{Name: "r", Permissions: []string{"a", "b"}}
	assert.True(t, role.Has("a"))
	assert.False(t, role.Has("c"))
	assert.False(t, role.Has(""))
}

func TestGetRoleAbsentUntilLoaded(t *testing.T) {
	src := newSource()
	store := NewStore(StoreConfig{Source: src})

	_, ok := store.GetRole(PlaybookMember)
	assert.False(t, ok)

	store.LoadRolesIfNeeded(context.Background(), []string{PlaybookMember})
	store.Wait()

	role, ok := store.GetRole(PlaybookMember)
	require.True(t, ok)
	assert.True(t, role.Has("playbook_public_view"))
}

func TestLoadRolesIfNeededSkipsLoadedNames(t *testing.T) {
	src := newSource()
	store := NewStore(StoreConfig{Source: src})
	store.Put(Role{Name: PlaybookMember})

	store.LoadRolesIfNeeded(context.Background(), []string{PlaybookMember, "", " "})
	store.Wait()
	assert.Equal(t, int32(0), src.calls.Load())

	store.LoadRolesIfNeeded(context.Background(), []string{PlaybookAdmin, PlaybookMember, PlaybookAdmin})
	store.Wait()
	require.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, []string{PlaybookAdmin}, src.asked[0])
}

func TestLoadRolesIfNeededSharesConcurrentLoads(t *testing.T) {
	src := newSource()
	src.gate = make(chan struct{})
	store := NewStore(StoreConfig{Source: src})

	for i := 0; i < 5; i++ {
		store.LoadRolesIfNeeded(context.Background(), []string{PlaybookMember, PlaybookAdmin})
	}
	close(src.gate)
	store.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	_, ok := store.GetRole(PlaybookAdmin)
	assert.True(t, ok)
}

func TestLoadRolesIfNeededSurvivesCallerCancellation(t *testing.T) {
	src := newSource()
	store := NewStore(StoreConfig{Source: src})
	ctx, cancel := context.WithCancel(context.Background())
	store.LoadRolesIfNeeded(ctx, []string{PlaybookMember})
	cancel()
	store.Wait()

	_, ok := store.GetRole(PlaybookMember)
	assert.True(t, ok)
}

func TestLoadErrorLeavesRolesUnresolved(t *testing.T) {
	src := newSource()
	src.err = errors.New("db down")
	store := NewStore(StoreConfig{Source: src})

	store.LoadRolesIfNeeded(context.Background(), []string{PlaybookMember})
	store.Wait()

	_, ok := store.GetRole(PlaybookMember)
	assert.False(t, ok)
}

func TestLoadReportsMissingRoles(t *testing.T) {
	src := newSource()
	var missed []string
	store := NewStore(StoreConfig{Source: src, OnMiss: func(names []string) { missed = names }})

	require.NoError(t, store.Load(context.Background(), []string{PlaybookMember, "ghost"}))
	assert.Equal(t, []string{"ghost"}, missed)
}

func TestLoadPrefersRedisCache(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, cache.Put(ctx, []Role{{Name: "custom", Permissions: []string{"run_create"}}}))

	src := newSource()
	store := NewStore(StoreConfig{Source: src, Cache: cache})
	require.NoError(t, store.Load(ctx, []string{"custom", PlaybookMember}))

	role, ok := store.GetRole("custom")
	require.True(t, ok)
	assert.True(t, role.Has("run_create"))
	require.Len(t, src.asked, 1)
	assert.Equal(t, []string{PlaybookMember}, src.asked[0])

	// The database result is written back for other processes.
	found, err := cache.Get(ctx, []string{PlaybookMember})
	require.NoError(t, err)
	assert.Contains(t, found, PlaybookMember)
}

func TestCacheBumpInvalidates(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, cache.Put(ctx, []Role{{Name: PlaybookMember}}))
	require.NoError(t, cache.Bump(ctx))

	found, err := cache.Get(ctx, []string{PlaybookMember})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestListenClearsStoreOnBump(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore(StoreConfig{Source: newSource(), Cache: cache})
	store.Put(Role{Name: PlaybookMember})
	require.NoError(t, store.Listen(ctx))
	require.NoError(t, cache.Bump(ctx))

	require.Eventually(t, func() bool {
		_, ok := store.GetRole(PlaybookMember)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestEnsureLoadsOnlyMissingNames(t *testing.T) {
	src := newSource()
	store := NewStore(StoreConfig{Source: src})
	store.Put(Role{Name: PlaybookMember})

	require.NoError(t, store.Ensure(context.Background(), []string{PlaybookMember, PlaybookAdmin, PlaybookAdmin, ""}))
	require.Len(t, src.asked, 1)
	assert.Equal(t, []string{PlaybookAdmin}, src.asked[0])

	require.NoError(t, store.Ensure(context.Background(), []string{PlaybookAdmin}))
	assert.Len(t, src.asked, 1)
}

func TestInvalidateDuringLoadDiscardsResult(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	src := newSource()
	src.gate = make(chan struct{})
	store := NewStore(StoreConfig{Source: src, Cache: cache})

	store.LoadRolesIfNeeded(ctx, []string{PlaybookMember})
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// Permissions change while the read is blocked.
	require.NoError(t, cache.Bump(ctx))
	store.Invalidate()
	src.mu.Lock()
	src.roles[PlaybookMember] = Role{Name: PlaybookMember, Permissions: []string{"playbook_public_view"}}
	src.mu.Unlock()
	close(src.gate)
	store.Wait()

	_, ok := store.GetRole(PlaybookMember)
	assert.False(t, ok)
	found, err := cache.Get(ctx, []string{PlaybookMember})
	require.NoError(t, err)
	assert.Empty(t, found)

	store.LoadRolesIfNeeded(ctx, []string{PlaybookMember})
	store.Wait()
	role, ok := store.GetRole(PlaybookMember)
	require.True(t, ok)
	assert.False(t, role.Has("playbook_private_view"))
}
