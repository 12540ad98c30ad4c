package application

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/example/vehicle-scheduler/internal/calendar"
)

// gridCache keeps recently rendered month grids. Keys include the snapshot
// revision and today's date, so an entry never outlives the data it was
// rendered from.
type gridCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]gridCacheEntry
}

type gridCacheEntry struct {
	cells     []calendar.Cell
	expiresAt time.Time
}

func newGridCache(ttl time.Duration, maxEntries int, now func() time.Time) *gridCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 24
	}
	if now == nil {
		now = time.Now
	}
	return &gridCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]gridCacheEntry),
	}
}

func (c *gridCache) Get(key string) ([]calendar.Cell, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return slices.Clone(entry.cells), true
}

func (c *gridCache) Store(key string, cells []calendar.Cell) {
	if c == nil {
		return
	}
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = gridCacheEntry{cells: slices.Clone(cells), expiresAt: expiry}
}

// Invalidate drops every entry.
func (c *gridCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]gridCacheEntry)
	c.mu.Unlock()
}

func (c *gridCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *gridCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *gridCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func gridCacheKey(year int, month time.Month, today time.Time, revision uint64) string {
	return fmt.Sprintf("%04d-%02d|%s|%d", year, int(month), today.Format(dateLayout), revision)
}
