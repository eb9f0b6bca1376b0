package teams

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	members map[string]Member
	calls   int
	err     error
}

func (s *stubSource) Member(ctx context.Context, teamID, userID string) (Member, error) {
	s.calls++
	if s.err != nil {
		return Member{}, s.err
	}
	m, ok := s.members[key(teamID, userID)]
	if !ok {
		return Member{}, ErrNotFound
	}
	return m, nil
}

func TestFetchCachesMembership(t *testing.T) {
	src := &stubSource{members: map[string]Member{
		"t1/u1": {TeamID: "t1", UserID: "u1", Roles: []string{"team_user"}},
	}}
	store := NewStore(src, time.Minute)

	_, ok := store.GetMember("t1", "u1")
	assert.False(t, ok)

	m, err := store.Fetch(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"team_user"}, m.Roles)

	cached, ok := store.GetMember("t1", "u1")
	require.True(t, ok)
	assert.True(t, cached.Active())

	_, err = store.Fetch(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
}

func TestFetchCachesNonMembership(t *testing.T) {
	src := &stubSource{members: map[string]Member{}}
	store := NewStore(src, time.Minute)

	_, err := store.Fetch(context.Background(), "t1", "u2")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Fetch(context.Background(), "t1", "u2")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, src.calls)

	_, ok := store.GetMember("t1", "u2")
	assert.False(t, ok)
}

func TestFetchRefreshesAfterTTL(t *testing.T) {
	src := &stubSource{members: map[string]Member{"t1/u1": {TeamID: "t1", UserID: "u1"}}}
	store := NewStore(src, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	_, err := store.Fetch(context.Background(), "t1", "u1")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, ok := store.GetMember("t1", "u1")
	assert.False(t, ok)

	_, err = store.Fetch(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestFetchErrorIsNotCached(t *testing.T) {
	src := &stubSource{err: errors.New("db down")}
	store := NewStore(src, time.Minute)

	_, err := store.Fetch(context.Background(), "t1", "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	src.err = nil
	_, err = store.Fetch(context.Background(), "t1", "u1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, src.calls)
}
