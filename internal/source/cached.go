package source

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"driver-engagement-audit/internal/table"
)

const DefaultCacheTTL = 30 * time.Minute

// Cached reuses sheet reads for a fixed freshness window. Writes go straight
// through and evict the written sheet.
type Cached struct {
	next Provider
	ttl  time.Duration

	cache   *ttlcache.Cache[string, table.Table]
	cacheMu sync.RWMutex
}

// NewCached wraps next with a read cache. A zero ttl uses DefaultCacheTTL.
func NewCached(next Provider, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, table.Table](ttl),
		ttlcache.WithDisableTouchOnHit[string, table.Table](),
	)
	return &Cached{next: next, ttl: ttl, cache: cache}
}

func (c *Cached) ReadTable(ctx context.Context, sheet string) (table.Table, error) {
	c.cacheMu.RLock()
	cached := c.cache.Get(sheet)
	c.cacheMu.RUnlock()
	if cached != nil {
		return cached.Value().Clone(), nil
	}

	t, err := c.next.ReadTable(ctx, sheet)
	if err != nil {
		return table.Table{}, err
	}

	c.cacheMu.Lock()
	c.cache.Set(sheet, t.Clone(), c.ttl)
	c.cacheMu.Unlock()
	return t, nil
}

// ReadFresh reads sheet from the wrapped provider and replaces its cache
// entry. A failed read evicts the entry.
func (c *Cached) ReadFresh(ctx context.Context, sheet string) (table.Table, error) {
	t, err := c.next.ReadTable(ctx, sheet)

	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	if err != nil {
		c.cache.Delete(sheet)
		return table.Table{}, err
	}
	c.cache.Set(sheet, t.Clone(), c.ttl)
	return t, nil
}

func (c *Cached) WriteTable(ctx context.Context, sheet string, header []string, rows [][]string) error {
	err := c.next.WriteTable(ctx, sheet, header, rows)

	c.cacheMu.Lock()
	c.cache.Delete(sheet)
	c.cacheMu.Unlock()
	return err
}

// Invalidate drops every cached sheet.
func (c *Cached) Invalidate() {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cache.DeleteAll()
}

// Len returns the number of sheets currently cached.
func (c *Cached) Len() int {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	return c.cache.Len()
}
