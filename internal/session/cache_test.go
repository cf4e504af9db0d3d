package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Upendra2003/Aira-Backend/internal/store"
)

type countingHistory struct {
	mu    sync.Mutex
	reads int
	turns []store.Turn
	err   error
}

func (f *countingHistory) AppendTurns(_ context.Context, _ string, _ ...store.Turn) error {
	return nil
}

func (f *countingHistory) ReadAll(_ context.Context, _ string) ([]store.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]store.Turn, len(f.turns))
	copy(out, f.turns)
	return out, nil
}

func (f *countingHistory) Close() error { return nil }

func (f *countingHistory) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(h store.HistoryStore) (*Cache, *stepClock) {
	clk := newStepClock()
	c := NewCache(h, nil, 5*time.Minute, 10*time.Minute)
	c.SetClock(clk.Now)
	return c, clk
}

func TestGetCachesWithinFreshnessWindow(t *testing.T) {
	h := &countingHistory{turns: []store.Turn{
		{Role: store.RoleUser, Content: "hi", CreatedAt: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)},
	}}
	c, clk := newTestCache(h)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		turns := c.Get(ctx, "u1")
		if len(turns) != 1 {
			t.Fatalf("len(turns) = %d, want 1", len(turns))
		}
		clk.Advance(30 * time.Second)
	}
	if got := h.readCount(); got != 1 {
		t.Fatalf("reads = %d, want 1 within freshness window", got)
	}
}

func TestGetReloadsAfterFreshnessWindow(t *testing.T) {
	h := &countingHistory{}
	c, clk := newTestCache(h)
	ctx := context.Background()

	c.Get(ctx, "u1")
	clk.Advance(5*time.Minute + time.Second)
	c.Get(ctx, "u1")

	if got := h.readCount(); got != 2 {
		t.Fatalf("reads = %d, want 2 after staleness", got)
	}
}

func TestSweepEvictsAfterEvictionWindow(t *testing.T) {
	h := &countingHistory{}
	c, clk := newTestCache(h)
	ctx := context.Background()

	c.Get(ctx, "idle")
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}

	clk.Advance(10*time.Minute + time.Second)
	c.Get(ctx, "active")

	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want idle entry evicted", c.Len())
	}
}

func TestGetReadErrorServesEmptyAndRetries(t *testing.T) {
	h := &countingHistory{err: errors.New("db down")}
	c, _ := newTestCache(h)
	ctx := context.Background()

	if turns := c.Get(ctx, "u1"); turns != nil {
		t.Fatalf("Get() = %v, want nil on read error", turns)
	}
	if c.Len() != 0 {
		t.Fatalf("Len() = %d, want failed read not cached", c.Len())
	}

	// The failure must not be cached: the next access retries the store.
	c.Get(ctx, "u1")
	if got := h.readCount(); got != 2 {
		t.Fatalf("reads = %d, want 2", got)
	}
}

func TestPushRefreshesLiveEntry(t *testing.T) {
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	h := &countingHistory{turns: []store.Turn{
		{Role: store.RoleUser, Content: "hi", CreatedAt: base},
	}}
	c, clk := newTestCache(h)
	ctx := context.Background()

	c.Get(ctx, "u1")
	clk.Advance(4 * time.Minute)

	c.Push("u1",
		store.Turn{Role: store.RoleUser, Content: "again", CreatedAt: clk.Now()},
		store.Turn{Role: store.RoleAI, Content: "welcome back", CreatedAt: clk.Now().Add(time.Second)},
	)

	// Push bumps the refresh time, so this Get stays inside the window.
	clk.Advance(4 * time.Minute)
	turns := c.Get(ctx, "u1")
	if len(turns) != 3 {
		t.Fatalf("len(turns) = %d, want 3 after push", len(turns))
	}
	if got := h.readCount(); got != 1 {
		t.Fatalf("reads = %d, want 1", got)
	}
}

func TestPushWithoutEntryDrops(t *testing.T) {
	h := &countingHistory{}
	c, clk := newTestCache(h)

	c.Push("ghost", store.Turn{Role: store.RoleUser, Content: "hi", CreatedAt: clk.Now()})
	if c.Len() != 0 {
		t.Fatalf("Len() = %d, want push without entry dropped", c.Len())
	}
}

func TestPushDuplicateTailInvalidates(t *testing.T) {
	base := time.Date(2024, 1, 1, 9, 59, 0, 0, time.UTC)
	h := &countingHistory{turns: []store.Turn{
		{Role: store.RoleAI, Content: "take care", CreatedAt: base},
	}}
	c, _ := newTestCache(h)
	ctx := context.Background()

	c.Get(ctx, "u1")
	c.Push("u1", store.Turn{Role: store.RoleAI, Content: "take care", CreatedAt: base})

	if c.Len() != 0 {
		t.Fatalf("Len() = %d, want duplicate tail to invalidate entry", c.Len())
	}
}

func TestInvalidateForcesReload(t *testing.T) {
	h := &countingHistory{}
	c, _ := newTestCache(h)
	ctx := context.Background()

	c.Get(ctx, "u1")
	c.Invalidate("u1")
	c.Get(ctx, "u1")

	if got := h.readCount(); got != 2 {
		t.Fatalf("reads = %d, want 2 after invalidate", got)
	}
}
