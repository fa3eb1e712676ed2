package location

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// Cache lifetimes. Derived values change on every share and review, so the
// TTL is short and writers call Invalidate.
const (
	DefaultCacheTTL    = 30 * time.Second
	cacheCleanupPeriod = time.Minute
	listCacheKey       = "__active__"
)

// CachedRepository serves Get and ListActive from an in-process cache.
type CachedRepository struct {
	Repository
	cache *cache.Cache
}

// NewCachedRepository wraps repo with a read cache.
func NewCachedRepository(repo Repository, ttl time.Duration) *CachedRepository {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedRepository{Repository: repo, cache: cache.New(ttl, cacheCleanupPeriod)}
}

func (c *CachedRepository) Get(ctx context.Context, id string) (*Location, error) {
	if v, ok := c.cache.Get(id); ok {
		loc := *v.(*Location)
		return &loc, nil
	}
	loc, err := c.Repository.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cached := *loc
	c.cache.SetDefault(id, &cached)
	return loc, nil
}

func (c *CachedRepository) ListActive(ctx context.Context) ([]*Location, error) {
	if v, ok := c.cache.Get(listCacheKey); ok {
		return copyAll(v.([]*Location)), nil
	}
	locs, err := c.Repository.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(listCacheKey, copyAll(locs))
	return locs, nil
}

func (c *CachedRepository) Upsert(ctx context.Context, loc *Location) error {
	defer c.Invalidate(loc.ID)
	return c.Repository.Upsert(ctx, loc)
}

func (c *CachedRepository) SetActiveUsers(ctx context.Context, id string, count int) error {
	defer c.Invalidate(id)
	return c.Repository.SetActiveUsers(ctx, id, count)
}

func (c *CachedRepository) SetCrowdLevel(ctx context.Context, id string, level CrowdLevel) error {
	defer c.Invalidate(id)
	return c.Repository.SetCrowdLevel(ctx, id, level)
}

// Invalidate drops ids and the active list, or everything when no id is
// given. Callers that change derived values without going through this
// repository must call it.
func (c *CachedRepository) Invalidate(ids ...string) {
	if len(ids) == 0 {
		c.cache.Flush()
		return
	}
	for _, id := range ids {
		c.cache.Delete(id)
	}
	c.cache.Delete(listCacheKey)
}

func copyAll(locs []*Location) []*Location {
	out := make([]*Location, len(locs))
	for i, loc := range locs {
		cp := *loc
		out[i] = &cp
	}
	return out
}
