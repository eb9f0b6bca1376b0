package roles

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/playbookhq/playbooks/internal/observability"
)

const defaultLoadTimeout = 5 * time.Second

// Source loads roles by name from durable storage.
type Source interface {
	RolesByNames(ctx context.Context, names []string) ([]Role, error)
}

// StoreConfig collects Store dependencies. Cache, Metrics, Logger and OnMiss
// are optional.
type StoreConfig struct {
	Source      Source
	Cache       *Cache
	Metrics     *observability.DomainMetrics
	Logger      *slog.Logger
	LoadTimeout time.Duration
	// OnMiss receives names that were requested but exist nowhere.
	OnMiss func(names []string)
}

// Store is the process-wide role cache keyed by role name. Reads never
// block on I/O: a role that is not loaded yet is simply absent.
type Store struct {
	source  Source
	cache   *Cache
	metrics *observability.DomainMetrics
	logger  *slog.Logger
	timeout time.Duration
	onMiss  func(names []string)

	mu      sync.RWMutex
	roles   map[string]Role
	pending map[string]struct{}

	// gen counts invalidations. Loads started before the latest one
	// discard their results.
	gen uint64

	inflight sync.WaitGroup
}

// NewStore constructs an empty Store.
func NewStore(cfg StoreConfig) *Store {
	timeout := cfg.LoadTimeout
	if timeout <= 0 {
		timeout = defaultLoadTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		source:  cfg.Source,
		cache:   cfg.Cache,
		metrics: cfg.Metrics,
		logger:  logger,
		timeout: timeout,
		onMiss:  cfg.OnMiss,
		roles:   make(map[string]Role),
		pending: make(map[string]struct{}),
	}
}

// GetRole returns the loaded role, if any.
func (s *Store) GetRole(name string) (Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[name]
	return role, ok
}

// Put stores roles, replacing any loaded copy.
func (s *Store) Put(roles ...Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(roles)
}

// putIfCurrent stores roles unless the store was invalidated after gen was
// read. It reports whether the roles were stored.
func (s *Store) putIfCurrent(gen uint64, roles []Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	s.put(roles)
	return true
}

func (s *Store) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// put writes roles under s.mu.
func (s *Store) put(roles []Role) {
	for _, role := range roles {
		if role.Name == "" {
			continue
		}
		s.roles[role.Name] = role
	}
}

// Invalidate drops the named roles, or every role when no name is given.
func (s *Store) Invalidate(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if len(names) == 0 {
		s.roles = make(map[string]Role)
		return
	}
	for _, name := range names {
		delete(s.roles, name)
	}
}

// LoadRolesIfNeeded schedules a background load of the names that are
// neither loaded nor already being loaded, and returns immediately.
func (s *Store) LoadRolesIfNeeded(ctx context.Context, names []string) {
	missing := s.claim(names)
	if len(missing) == 0 {
		return
	}
	loadCtx := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer s.release(missing)
		ctx, cancel := context.WithTimeout(loadCtx, s.timeout)
		defer cancel()
		if err := s.Load(ctx, missing); err != nil {
			s.logger.Warn("roles: background load", slog.Any("roles", missing), slog.Any("error", err))
		}
	}()
}

// Wait blocks until every background load started so far has finished.
func (s *Store) Wait() {
	s.inflight.Wait()
}

// Ensure synchronously loads the names that are not loaded yet. Callers
// that must answer from a warm cache use it before a read-only decision.
func (s *Store) Ensure(ctx context.Context, names []string) error {
	s.mu.RLock()
	missing := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := s.roles[name]; !ok && !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
	}
	s.mu.RUnlock()
	return s.Load(ctx, missing)
}

// Load fetches names synchronously, Redis first then the source, and stores
// what it finds. Results are dropped when the store is invalidated while the
// load is in flight.
func (s *Store) Load(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	gen := s.generation()
	found := make(map[string]Role)
	ver, err := s.cache.Version(ctx)
	if err == nil {
		found, err = s.cache.GetAt(ctx, ver, names)
	}
	if err != nil {
		s.logger.Warn("roles: redis read", slog.Any("error", err))
	}
	cached := make([]Role, 0, len(found))
	for _, role := range found {
		cached = append(cached, role)
	}
	if !s.putIfCurrent(gen, cached) {
		s.logger.Debug("roles: discard load superseded by invalidation", slog.Any("roles", names))
		return nil
	}
	s.metrics.RolesLoaded("cache", len(cached))

	remaining := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := found[name]; !ok {
			remaining = append(remaining, name)
		}
	}
	if len(remaining) == 0 || s.source == nil {
		return nil
	}

	loaded, err := s.source.RolesByNames(ctx, remaining)
	if err != nil {
		return err
	}
	if !s.putIfCurrent(gen, loaded) {
		s.logger.Debug("roles: discard load superseded by invalidation", slog.Any("roles", remaining))
		return nil
	}
	s.metrics.RolesLoaded("db", len(loaded))
	if ver > 0 {
		if err := s.cache.PutAt(ctx, ver, loaded); err != nil {
			s.logger.Warn("roles: redis write", slog.Any("error", err))
		}
	}

	if len(loaded) < len(remaining) {
		got := make(map[string]struct{}, len(loaded))
		for _, role := range loaded {
			got[role.Name] = struct{}{}
		}
		var absent []string
		for _, name := range remaining {
			if _, ok := got[name]; !ok {
				absent = append(absent, name)
			}
		}
		s.metrics.RolesLoaded("miss", len(absent))
		if s.onMiss != nil {
			s.onMiss(absent)
		}
	}
	return nil
}

// Listen clears the store whenever another process bumps the role cache.
func (s *Store) Listen(ctx context.Context) error {
	return s.cache.ListenForInvalidation(ctx, func() {
		s.Invalidate()
	})
}

// claim marks the names that are neither loaded nor pending as pending and
// returns them sorted and deduplicated.
func (s *Store) claim(names []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := s.roles[name]; ok {
			continue
		}
		if _, ok := s.pending[name]; ok {
			continue
		}
		s.pending[name] = struct{}{}
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func (s *Store) release(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		delete(s.pending, name)
	}
}
