package roles

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheVersionKey = "roles:version"
	// BumpChannel carries role cache invalidations between processes.
	BumpChannel = "roles.bump"
)

// Cache is the shared Redis level behind the in-memory Store. Keys embed a
// version counter so a single INCR invalidates every cached role.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the Redis role cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Get returns the cached roles for names, keyed by name. Missing names are
// absent from the result.
func (c *Cache) Get(ctx context.Context, names []string) (map[string]Role, error) {
	ver, err := c.Version(ctx)
	if err != nil {
		return make(map[string]Role), err
	}
	return c.GetAt(ctx, ver, names)
}

// GetAt reads roles stored under version ver.
func (c *Cache) GetAt(ctx context.Context, ver int64, names []string) (map[string]Role, error) {
	found := make(map[string]Role, len(names))
	if c == nil || c.client == nil || len(names) == 0 {
		return found, nil
	}
	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = roleKey(ver, name)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return found, err
	}
	for _, raw := range values {
		payload, ok := raw.(string)
		if !ok {
			continue
		}
		var role Role
		if err := json.Unmarshal([]byte(payload), &role); err != nil {
			continue
		}
		found[role.Name] = role
	}
	return found, nil
}

// Put writes roles under the current version.
func (c *Cache) Put(ctx context.Context, roles []Role) error {
	if c == nil || c.client == nil || len(roles) == 0 {
		return nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return err
	}
	return c.PutAt(ctx, ver, roles)
}

// PutAt writes roles under version ver. Writes under a version that has
// since been bumped are never read.
func (c *Cache) PutAt(ctx context.Context, ver int64, roles []Role) error {
	if c == nil || c.client == nil || len(roles) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, role := range roles {
		data, err := json.Marshal(role)
		if err != nil {
			return err
		}
		pipe.Set(ctx, roleKey(ver, role.Name), data, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Bump invalidates every cached role and notifies listeners.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, BumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation calls onBump for every version bump published by any
// process until ctx is done.
func (c *Cache) ListenForInvalidation(ctx context.Context, onBump func()) error {
	if c == nil || c.client == nil || onBump == nil {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, BumpChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				onBump()
			}
		}
	}()
	return nil
}

func roleKey(version int64, name string) string {
	return "roles:" + strconv.FormatInt(version, 10) + ":" + name
}
