package location

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Store persists the cached position across restarts.
type Store interface {
	Load() (Position, bool, error)
	Save(p Position) error
	Clear() error
}

// Cache holds the most recent accepted position. It never holds a simulated reading.
type Cache struct {
	mu     sync.RWMutex
	pos    Position
	ok     bool
	store  Store
	logger zerolog.Logger
}

// NewCache creates an empty cache. store may be nil for a memory-only cache.
func NewCache(store Store, logger zerolog.Logger) *Cache {
	return &Cache{store: store, logger: logger}
}

// Restore loads the persisted position, discarding it when it fails the filter or
// sits on a known default coordinate.
func (c *Cache) Restore(filter *Filter, now time.Time) error {
	if c.store == nil {
		return nil
	}

	p, ok, err := c.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load cached position: %w", err)
	}
	if !ok {
		return nil
	}

	if filter != nil && (filter.MatchesKnownDefault(p) || filter.Check(p, now) != nil) {
		c.logger.Warn().
			Float64("latitude", p.Latitude).
			Float64("longitude", p.Longitude).
			Msg("Discarding persisted mock location")
		return c.Clear()
	}

	c.mu.Lock()
	c.pos, c.ok = p, true
	c.mu.Unlock()

	c.logger.Debug().
		Float64("latitude", p.Latitude).
		Float64("longitude", p.Longitude).
		Time("timestamp", p.Timestamp).
		Msg("Restored cached position")
	return nil
}

// Get returns the cached position, if any.
func (c *Cache) Get() (Position, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pos, c.ok
}

// Put overwrites the cached position. The memory slot is updated even if persisting fails.
func (c *Cache) Put(p Position) error {
	if p.Simulated {
		return fmt.Errorf("%w: refusing to cache simulated reading", ErrImplausibleReading)
	}

	c.mu.Lock()
	c.pos, c.ok = p, true
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	if err := c.store.Save(p); err != nil {
		return fmt.Errorf("failed to persist position: %w", err)
	}
	return nil
}

// Clear empties the cache and its persistent store.
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.pos, c.ok = Position{}, false
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	if err := c.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear persisted position: %w", err)
	}
	return nil
}
