package users

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const defaultFetchTimeout = 5 * time.Second

// Source loads users and preferences from durable storage.
type Source interface {
	UserByID(ctx context.Context, id string) (User, error)
	UsersByUsernames(ctx context.Context, usernames []string) ([]User, error)
	NameDisplay(ctx context.Context, userID string) (string, error)
}

// Store is the process-wide user cache, indexed by ID and by username.
// Lookups never touch storage; the Fetch methods populate the cache. Entries
// older than ttl are treated as absent, so roles and deactivation reach
// authorization decisions within one ttl.
type Store struct {
	source  Source
	logger  *slog.Logger
	timeout time.Duration
	ttl     time.Duration
	now     func() time.Time

	mu         sync.RWMutex
	byID       map[string]User
	byUsername map[string]string
	fetchedAt  map[string]time.Time

	group singleflight.Group
}

// NewStore constructs an empty Store. A zero ttl keeps entries forever.
func NewStore(source Source, logger *slog.Logger, fetchTimeout, ttl time.Duration) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	return &Store{
		source:     source,
		logger:     logger,
		timeout:    fetchTimeout,
		ttl:        ttl,
		now:        time.Now,
		byID:       make(map[string]User),
		byUsername: make(map[string]string),
		fetchedAt:  make(map[string]time.Time),
	}
}

// GetUserByID returns a cached user.
func (s *Store) GetUserByID(id string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fresh(id)
}

// GetUserByUsername returns a cached user by case-insensitive username.
func (s *Store) GetUserByUsername(username string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[fold(username)]
	if !ok {
		return User{}, false
	}
	return s.fresh(id)
}

// fresh reads byID under s.mu.
func (s *Store) fresh(id string) (User, bool) {
	u, ok := s.byID[id]
	if !ok {
		return User{}, false
	}
	if s.ttl > 0 && s.now().Sub(s.fetchedAt[id]) > s.ttl {
		return User{}, false
	}
	return u, true
}

// Put caches users.
func (s *Store) Put(users ...User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, u := range users {
		if u.ID == "" {
			continue
		}
		if prev, ok := s.byID[u.ID]; ok && prev.Username != u.Username {
			delete(s.byUsername, fold(prev.Username))
		}
		s.byID[u.ID] = u
		s.fetchedAt[u.ID] = now
		if u.Username != "" {
			s.byUsername[fold(u.Username)] = u.ID
		}
	}
}

// FetchUserByID loads a user from storage into the cache. Concurrent fetches
// of the same ID share one query; a caller whose ctx ends stops waiting
// without cancelling the shared query.
func (s *Store) FetchUserByID(ctx context.Context, id string) (User, error) {
	if u, ok := s.GetUserByID(id); ok {
		return u, nil
	}
	ch := s.group.DoChan("id:"+id, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		u, err := s.source.UserByID(fetchCtx, id)
		if err != nil {
			return User{}, err
		}
		s.Put(u)
		return u, nil
	})
	select {
	case <-ctx.Done():
		return User{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return User{}, res.Err
		}
		return res.Val.(User), nil
	}
}

// FetchUsersByUsernames loads the listed usernames that are not cached yet
// with a single query.
func (s *Store) FetchUsersByUsernames(ctx context.Context, usernames []string) error {
	var unknown []string
	seen := make(map[string]struct{}, len(usernames))
	for _, name := range usernames {
		key := fold(name)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := s.GetUserByUsername(name); ok {
			continue
		}
		unknown = append(unknown, name)
	}
	if len(unknown) == 0 {
		return nil
	}
	found, err := s.source.UsersByUsernames(ctx, unknown)
	if err != nil {
		return err
	}
	s.Put(found...)
	return nil
}

// NameDisplay returns the user's name display preference, falling back to
// DefaultNameDisplay when unset or unreadable.
func (s *Store) NameDisplay(ctx context.Context, userID string) string {
	if s.source == nil || userID == "" {
		return DefaultNameDisplay
	}
	value, err := s.source.NameDisplay(ctx, userID)
	if err != nil {
		s.logger.Warn("users: read name display preference", slog.String("user_id", userID), slog.Any("error", err))
		return DefaultNameDisplay
	}
	if value == "" {
		return DefaultNameDisplay
	}
	return value
}

// fold normalises usernames for cache keys. Casers are stateful, so each
// call builds its own.
func fold(username string) string {
	return cases.Lower(language.Und).String(username)
}

func foldAll(usernames []string) []string {
	out := make([]string, len(usernames))
	for i, name := range usernames {
		out[i] = fold(name)
	}
	return out
}
