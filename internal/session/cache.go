package session

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Upendra2003/Aira-Backend/internal/observability"
	"github.com/Upendra2003/Aira-Backend/internal/store"
)

// Clock supplies the cache's notion of now; tests inject fixed clocks.
type Clock func() time.Time

// entry is a user's reconstructed conversation as of lastRefreshedAt. It may
// lag writes from other processes within the freshness window, but it never
// contains turns that are not durable.
type entry struct {
	history         []store.Turn
	lastRefreshedAt time.Time
}

// Cache maps user IDs to recently loaded conversation histories so each chat
// message does not cost a history-store round trip. Entries go stale after
// the freshness window and are removed outright after the eviction window,
// bounding memory by active users rather than total users.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry

	history   store.HistoryStore
	metrics   *observability.Metrics
	clock     Clock
	freshness time.Duration
	eviction  time.Duration
}

func NewCache(history store.HistoryStore, metrics *observability.Metrics, freshness, eviction time.Duration) *Cache {
	if freshness <= 0 {
		freshness = 5 * time.Minute
	}
	if eviction <= freshness {
		eviction = 2 * freshness
	}
	return &Cache{
		entries:   make(map[string]*entry),
		history:   history,
		metrics:   metrics,
		clock:     func() time.Time { return time.Now().UTC() },
		freshness: freshness,
		eviction:  eviction,
	}
}

// SetClock overrides the cache's clock. Call before use; not synchronized.
func (c *Cache) SetClock(clock Clock) {
	if clock != nil {
		c.clock = clock
	}
}

// Get returns the user's conversation history, reloading it from the history
// store when the cached entry is missing or stale. A failed reload degrades
// to an empty history; generation then proceeds with a fresh-start context
// and the next access retries the read.
func (c *Cache) Get(ctx context.Context, userID string) []store.Turn {
	now := c.clock()
	c.sweep(now)

	c.mu.RLock()
	e, ok := c.entries[userID]
	var (
		fresh  bool
		cached []store.Turn
	)
	if ok && now.Sub(e.lastRefreshedAt) < c.freshness {
		fresh = true
		cached = cloneTurns(e.history)
	}
	c.mu.RUnlock()

	if fresh {
		c.event("hit")
		return cached
	}

	turns, err := c.history.ReadAll(ctx, userID)
	if err != nil {
		// No retry here; the caller decides whether to retry the turn.
		log.WithError(err).WithField("user_id", userID).Warn("history read failed, serving empty session")
		c.event("read_error")
		return nil
	}

	c.mu.Lock()
	c.entries[userID] = &entry{history: turns, lastRefreshedAt: c.clock()}
	size := len(c.entries)
	c.mu.Unlock()

	if ok {
		c.event("stale_reload")
	} else {
		c.event("miss_load")
	}
	c.setGauge(size)
	return cloneTurns(turns)
}

// Push appends freshly persisted turns to the cached entry so the next Get
// sees them without another store read. Only live entries are refreshed in
// place; a missing or expired entry is dropped and reloaded on next access.
func (c *Cache) Push(userID string, turns ...store.Turn) {
	if len(turns) == 0 {
		return
	}
	now := c.clock()

	c.mu.Lock()
	e, ok := c.entries[userID]
	if !ok || now.Sub(e.lastRefreshedAt) >= c.eviction {
		delete(c.entries, userID)
		size := len(c.entries)
		c.mu.Unlock()
		c.event("push_dropped")
		c.setGauge(size)
		return
	}
	if hasDuplicateTail(e.history, turns) {
		// Should not happen under the per-user turn lock; force a full
		// reload rather than serving a corrupted view.
		delete(c.entries, userID)
		size := len(c.entries)
		c.mu.Unlock()
		log.WithField("user_id", userID).Warn("duplicate turn timestamps in session cache, forcing reload")
		c.event("duplicate_tail")
		c.setGauge(size)
		return
	}
	e.history = append(e.history, turns...)
	e.lastRefreshedAt = now
	c.mu.Unlock()
	c.event("pushed")
}

// Invalidate drops a user's entry so the next Get reloads from the store.
func (c *Cache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	size := len(c.entries)
	c.mu.Unlock()
	c.event("invalidated")
	c.setGauge(size)
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// sweep removes entries past the eviction window. It runs opportunistically
// on every access rather than on a timer, so an idle process holds no stale
// sessions the moment traffic resumes.
func (c *Cache) sweep(now time.Time) {
	c.mu.Lock()
	evicted := 0
	for userID, e := range c.entries {
		if now.Sub(e.lastRefreshedAt) >= c.eviction {
			delete(c.entries, userID)
			evicted++
		}
	}
	size := len(c.entries)
	c.mu.Unlock()

	for i := 0; i < evicted; i++ {
		c.event("evicted")
	}
	if evicted > 0 {
		c.setGauge(size)
	}
}

func (c *Cache) event(name string) {
	if c.metrics != nil {
		c.metrics.CacheEvents.WithLabelValues(name).Inc()
	}
}

func (c *Cache) setGauge(size int) {
	if c.metrics != nil {
		c.metrics.CachedSessions.Set(float64(size))
	}
}

func cloneTurns(turns []store.Turn) []store.Turn {
	if len(turns) == 0 {
		return nil
	}
	out := make([]store.Turn, len(turns))
	copy(out, turns)
	return out
}

// hasDuplicateTail reports whether any incoming turn repeats a (role,
// timestamp) pair already at the end of the cached history.
func hasDuplicateTail(cached, incoming []store.Turn) bool {
	start := len(cached) - len(incoming)
	if start < 0 {
		start = 0
	}
	for _, in := range incoming {
		for _, have := range cached[start:] {
			if have.Role == in.Role && have.CreatedAt.Equal(in.CreatedAt) {
				return true
			}
		}
	}
	return false
}
