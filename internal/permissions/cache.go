package permissions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheKeyPrefix = "permissions:resolved:"

// ResolutionCache stores resolved capability sets in Redis with a TTL. It is
// an explicit, injectable component: the raw Resolver never caches, and the
// admin service is responsible for invalidating affected users on every
// role, group, membership, or override mutation.
type ResolutionCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewResolutionCache constructs a cache with the given entry lifetime.
func NewResolutionCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *ResolutionCache {
	return &ResolutionCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached set for the user. Any Redis error is treated as a
// miss so the caller falls through to a fresh resolution.
func (c *ResolutionCache) Get(ctx context.Context, userID string) (CapabilitySet, bool) {
	data, err := c.client.Get(ctx, cacheKeyPrefix+userID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log().Warn("resolution cache read", slog.String("user_id", userID), slog.Any("error", err))
		}
		return CapabilitySet{}, false
	}
	var set CapabilitySet
	if err := json.Unmarshal(data, &set); err != nil {
		c.log().Warn("resolution cache decode", slog.String("user_id", userID), slog.Any("error", err))
		return CapabilitySet{}, false
	}
	return set, true
}

// Put stores the resolved set. A write failure is logged, not returned: the
// cache is an optimization and must never fail a resolution.
func (c *ResolutionCache) Put(ctx context.Context, userID string, set CapabilitySet) {
	data, err := json.Marshal(set)
	if err != nil {
		c.log().Warn("resolution cache encode", slog.String("user_id", userID), slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+userID, data, c.ttl).Err(); err != nil {
		c.log().Warn("resolution cache write", slog.String("user_id", userID), slog.Any("error", err))
	}
}

// Invalidate drops the cached resolutions for the given users.
func (c *ResolutionCache) Invalidate(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = cacheKeyPrefix + id
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("permissions: cache invalidate: %w", err)
	}
	return nil
}

// InvalidateAll drops every cached resolution. Used after role or group
// edits, whose blast radius is not known per user.
func (c *ResolutionCache) InvalidateAll(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, cacheKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("permissions: cache invalidate all: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("permissions: cache invalidate all: %w", err)
	}
	return nil
}

func (c *ResolutionCache) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}

// CachedResolver wraps a Resolver with the resolution cache. Concurrent
// resolutions for the same user are collapsed into one store round trip.
type CachedResolver struct {
	inner *Resolver
	cache *ResolutionCache
	group singleflight.Group
}

// NewCachedResolver wires a resolver to its cache.
func NewCachedResolver(inner *Resolver, cache *ResolutionCache) *CachedResolver {
	return &CachedResolver{inner: inner, cache: cache}
}

// Resolve returns the cached set when present, otherwise resolves fresh and
// stores the result.
func (cr *CachedResolver) Resolve(ctx context.Context, userID string) (CapabilitySet, error) {
	if set, ok := cr.cache.Get(ctx, userID); ok {
		return set, nil
	}
	v, err, _ := cr.group.Do(userID, func() (any, error) {
		set, err := cr.inner.Resolve(ctx, userID)
		if err != nil {
			return CapabilitySet{}, err
		}
		cr.cache.Put(ctx, userID, set)
		return set, nil
	})
	if err != nil {
		return CapabilitySet{}, err
	}
	return v.(CapabilitySet), nil
}

// Check reports a single capability from the cached resolution.
func (cr *CachedResolver) Check(ctx context.Context, userID string, capability Capability) (bool, error) {
	if !cr.inner.validName(capability) {
		return false, nil
	}
	set, err := cr.Resolve(ctx, userID)
	if err != nil {
		return false, err
	}
	return set.Get(capability), nil
}

var _ Checker = (*CachedResolver)(nil)
