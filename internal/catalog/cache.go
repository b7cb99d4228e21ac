package catalog

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// FavoritesSource is the uncached lookup.
type FavoritesSource interface {
	FavoriteIDs(ctx context.Context, actorID string) (map[string]struct{}, error)
}

// CachedFavorites keeps recent per-actor favorite sets in an expiring LRU,
// so repeated searches by one user do not hit the database each time.
type CachedFavorites struct {
	inner FavoritesSource
	cache *expirable.LRU[string, map[string]struct{}]
}

// NewCachedFavorites wraps inner. Non-positive size or ttl take the
// catalog defaults.
func NewCachedFavorites(inner FavoritesSource, size int, ttl time.Duration) *CachedFavorites {
	def := DefaultConfig()
	if size <= 0 {
		size = def.CacheSize
	}
	if ttl <= 0 {
		ttl = def.CacheTTL
	}
	return &CachedFavorites{
		inner: inner,
		cache: expirable.NewLRU[string, map[string]struct{}](size, nil, ttl),
	}
}

// FavoriteIDs returns the cached set or loads and caches it. Errors are not
// cached.
func (c *CachedFavorites) FavoriteIDs(ctx context.Context, actorID string) (map[string]struct{}, error) {
	if ids, ok := c.cache.Get(actorID); ok {
		return ids, nil
	}

	ids, err := c.inner.FavoriteIDs(ctx, actorID)
	if err != nil {
		return nil, err
	}
	c.cache.Add(actorID, ids)
	return ids, nil
}

// Invalidate drops the cached set for actorID.
func (c *CachedFavorites) Invalidate(actorID string) {
	c.cache.Remove(actorID)
}

// Len returns the number of cached actors.
func (c *CachedFavorites) Len() int {
	return c.cache.Len()
}
