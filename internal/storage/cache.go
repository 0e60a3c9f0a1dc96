// cache.go - TTL cache in front of a roster store

package storage

import (
	"context"
	"sync"
	"time"

	"github.com/bosocmputer/khata_ocr/internal/khata"
	"golang.org/x/sync/singleflight"
)

type rosterEntry struct {
	students []khata.Student
	loadedAt time.Time
}

// CachedRoster serves roster lookups from memory for ttl. Creating a student
// drops that class from the cache. Concurrent misses for one class share a
// single load; other classes are never held up by it.
type CachedRoster struct {
	inner khata.RosterRepository
	ttl   time.Duration
	now   func() time.Time
	loads singleflight.Group

	mu      sync.RWMutex
	entries map[string]*rosterEntry
	// bumped on invalidation so a load that started earlier is not cached
	gens  map[string]uint64
	epoch uint64
}

// NewCachedRoster wraps inner
func NewCachedRoster(inner khata.RosterRepository, ttl time.Duration) *CachedRoster {
	return &CachedRoster{
		inner:   inner,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*rosterEntry),
		gens:    make(map[string]uint64),
	}
}

func (c *CachedRoster) fresh(e *rosterEntry) bool {
	return e != nil && c.now().Sub(e.loadedAt) < c.ttl
}

// Lookup returns the cached roster or loads it
func (c *CachedRoster) Lookup(ctx context.Context, classID string) ([]khata.Student, error) {
	c.mu.RLock()
	entry := c.entries[classID]
	c.mu.RUnlock()
	if c.fresh(entry) {
		return append([]khata.Student(nil), entry.students...), nil
	}

	ch := c.loads.DoChan(classID, func() (interface{}, error) {
		return c.load(context.WithoutCancel(ctx), classID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return append([]khata.Student(nil), res.Val.([]khata.Student)...), nil
	}
}

// load queries the inner store without holding c.mu
func (c *CachedRoster) load(ctx context.Context, classID string) ([]khata.Student, error) {
	c.mu.RLock()
	entry := c.entries[classID]
	gen, epoch := c.gens[classID], c.epoch
	c.mu.RUnlock()
	if c.fresh(entry) {
		return entry.students, nil
	}

	students, err := c.inner.Lookup(ctx, classID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.gens[classID] == gen && c.epoch == epoch {
		c.entries[classID] = &rosterEntry{students: students, loadedAt: c.now()}
	}
	c.mu.Unlock()
	return students, nil
}

// Create writes through and invalidates the class
func (c *CachedRoster) Create(ctx context.Context, classID string, ns khata.NewStudent) (*khata.Student, error) {
	student, err := c.inner.Create(ctx, classID, ns)
	if err != nil {
		return nil, err
	}
	c.Invalidate(classID)
	return student, nil
}

// Invalidate removes one class from the cache
func (c *CachedRoster) Invalidate(classID string) {
	c.mu.Lock()
	delete(c.entries, classID)
	c.gens[classID]++
	c.mu.Unlock()
	c.loads.Forget(classID)
}

// Clear removes every cached class
func (c *CachedRoster) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*rosterEntry)
	c.epoch++
}
