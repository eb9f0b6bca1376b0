package shared

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ViewStateStore keeps small per-actor UI state (filters, toggles) in Redis.
// Entries expire after the configured TTL of inactivity.
type ViewStateStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewViewStateStore constructs a ViewStateStore.
func NewViewStateStore(client *redis.Client, prefix string, ttl time.Duration) *ViewStateStore {
	if prefix == "" {
		prefix = "viewstate"
	}
	return &ViewStateStore{client: client, prefix: prefix, ttl: ttl}
}

// Load decodes the stored state into dest. It reports false when nothing is
// stored for the actor and scope.
func (s *ViewStateStore) Load(ctx context.Context, actorID, scope string, dest any) (bool, error) {
	if s == nil || s.client == nil {
		return false, nil
	}
	payload, err := s.client.Get(ctx, s.key(actorID, scope)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return false, err
	}
	// Reads extend the lifetime, like a session touch.
	if s.ttl > 0 {
		_ = s.client.Expire(ctx, s.key(actorID, scope), s.ttl).Err()
	}
	return true, nil
}

// Save persists the state for the actor and scope.
func (s *ViewStateStore) Save(ctx context.Context, actorID, scope string, value any) error {
	if s == nil || s.client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(actorID, scope), data, s.ttl).Err()
}

// Delete drops the stored state.
func (s *ViewStateStore) Delete(ctx context.Context, actorID, scope string) error {
	if s == nil || s.client == nil {
		return nil
	}
	if err := s.client.Del(ctx, s.key(actorID, scope)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (s *ViewStateStore) key(actorID, scope string) string {
	return strings.Join([]string{s.prefix, actorID, scope}, ":")
}
