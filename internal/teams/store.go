package teams

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Source loads memberships from durable storage.
type Source interface {
	Member(ctx context.Context, teamID, userID string) (Member, error)
}

type entry struct {
	member    Member
	found     bool
	fetchedAt time.Time
}

// Store caches team memberships, including the absence of one, for ttl.
type Store struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
}

// NewStore constructs a Store. A zero ttl keeps entries forever.
func NewStore(source Source, ttl time.Duration) *Store {
	return &Store{source: source, ttl: ttl, now: time.Now, entries: make(map[string]entry)}
}

// GetMember returns the cached membership. ok is false when the user is not
// a member or the membership has not been fetched.
func (s *Store) GetMember(teamID, userID string) (Member, bool) {
	e, fresh := s.lookup(teamID, userID)
	if !fresh || !e.found {
		return Member{}, false
	}
	return e.member, true
}

// Fetch refreshes a stale or missing membership from the source. A user who
// is not a member is cached as such and reported with ErrNotFound.
func (s *Store) Fetch(ctx context.Context, teamID, userID string) (Member, error) {
	if e, fresh := s.lookup(teamID, userID); fresh {
		if !e.found {
			return Member{}, ErrNotFound
		}
		return e.member, nil
	}
	m, err := s.source.Member(ctx, teamID, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Member{}, err
	}
	s.mu.Lock()
	s.entries[key(teamID, userID)] = entry{member: m, found: err == nil, fetchedAt: s.now()}
	s.mu.Unlock()
	return m, err
}

// Forget drops a cached membership.
func (s *Store) Forget(teamID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key(teamID, userID))
}

func (s *Store) lookup(teamID, userID string) (entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[key(teamID, userID)]
	s.mu.RUnlock()
	if !ok {
		return entry{}, false
	}
	if s.ttl > 0 && s.now().Sub(e.fetchedAt) > s.ttl {
		return entry{}, false
	}
	return e, true
}

func key(teamID, userID string) string {
	return teamID + "/" + userID
}
