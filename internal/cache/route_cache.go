package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bluele/gcache"

	"metroplan/internal/domain"
)

const (
	DefaultRouteCacheSize = 10_000
	DefaultRouteCacheTTL  = 30 * time.Minute
)

// RouteCache keeps recently planned route options so follow-up pricing
// calls can refer to them by id. Entries live in a bounded in-process LRU
// and, when a Redis tier is configured, are mirrored there so other
// replicas can serve them.
type RouteCache struct {
	local  gcache.Cache
	remote *RedisCache
	ttl    time.Duration
	logger *slog.Logger
}

type RouteCacheOption func(*gcache.CacheBuilder)

// WithCacheClock replaces the clock used for expiry.
func WithCacheClock(clock gcache.Clock) RouteCacheOption {
	return func(b *gcache.CacheBuilder) { b.Clock(clock) }
}

// NewRouteCache builds a cache holding at most size options for ttl each.
// remote may be nil.
func NewRouteCache(size int, ttl time.Duration, remote *RedisCache, logger *slog.Logger, opts ...RouteCacheOption) *RouteCache {
	if size <= 0 {
		size = DefaultRouteCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultRouteCacheTTL
	}

	builder := gcache.New(size).LRU().Expiration(ttl)
	for _, opt := range opts {
		opt(builder)
	}

	return &RouteCache{
		local:  builder.Build(),
		remote: remote,
		ttl:    ttl,
		logger: logger.With("component", "route_cache"),
	}
}

func (c *RouteCache) Put(ctx context.Context, options ...domain.RouteOption) {
	for _, opt := range options {
		if err := c.local.Set(opt.ID, opt); err != nil {
			c.logger.Warn("failed to cache route", "route_id", opt.ID, "error", err)
			continue
		}
		if c.remote != nil {
			if err := c.remote.SetJSONCompressed(ctx, KeyRoute(opt.ID), opt, c.ttl); err != nil {
				c.logger.Warn("failed to mirror route to redis", "route_id", opt.ID, "error", err)
			}
		}
	}
}

// Get looks a route up locally first, then in Redis. A Redis hit is copied
// into the local tier.
func (c *RouteCache) Get(ctx context.Context, routeID string) (domain.RouteOption, bool) {
	v, err := c.local.Get(routeID)
	if err == nil {
		return v.(domain.RouteOption), true
	}
	if !errors.Is(err, gcache.KeyNotFoundError) {
		c.logger.Warn("route cache lookup failed", "route_id", routeID, "error", err)
	}

	if c.remote == nil {
		return domain.RouteOption{}, false
	}

	var opt domain.RouteOption
	found, err := c.remote.GetJSONCompressed(ctx, KeyRoute(routeID), &opt)
	if err != nil {
		c.logger.Warn("redis route lookup failed", "route_id", routeID, "error", err)
		return domain.RouteOption{}, false
	}
	if !found {
		return domain.RouteOption{}, false
	}

	_ = c.local.Set(routeID, opt)
	return opt, true
}

// Reset drops cached routes planned on any topology version other than
// version. Routes already planned on the new network are kept locally.
func (c *RouteCache) Reset(ctx context.Context, version string) {
	stale := 0
	for key, v := range c.local.GetALL(false) {
		if opt, ok := v.(domain.RouteOption); ok && opt.NetworkVersion == version {
			continue
		}
		c.local.Remove(key)
		stale++
	}
	c.logger.Debug("dropped stale local routes", "version", version, "dropped", stale)

	if c.remote == nil {
		return
	}

	prev, err := c.remote.Get(ctx, KeyTopologyVersion)
	if err != nil {
		c.logger.Warn("failed to read cached topology version", "error", err)
		return
	}
	if string(prev) == version {
		return
	}

	deleted, err := c.remote.DeletePattern(ctx, KeyRoutePattern)
	if err != nil {
		c.logger.Warn("failed to purge redis routes", "error", err)
	}
	if err := c.remote.Set(ctx, KeyTopologyVersion, []byte(version), 0); err != nil {
		c.logger.Warn("failed to store topology version", "error", err)
	}
	c.logger.Info("route cache reset", "version", version, "redis_deleted", deleted)
}

type RouteCacheStats struct {
	Entries      int     `json:"entries"`
	Hits         uint64  `json:"hits"`
	Misses       uint64  `json:"misses"`
	HitRate      float64 `json:"hit_rate"`
	TTLSeconds   float64 `json:"ttl_seconds"`
	RedisEnabled bool    `json:"redis_enabled"`
}

func (c *RouteCache) Stats() RouteCacheStats {
	return RouteCacheStats{
		Entries:      c.local.Len(true),
		Hits:         c.local.HitCount(),
		Misses:       c.local.MissCount(),
		HitRate:      c.local.HitRate(),
		TTLSeconds:   c.ttl.Seconds(),
		RedisEnabled: c.remote != nil,
	}
}
