package cache

import (
	"context"
	"testing"
	"time"
)

// TestLRUCacheEviction tests size-based eviction
func TestLRUCacheEviction(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[string](3, time.Hour)

	c.Set(ctx, "key1", "value1")
	c.Set(ctx, "key2", "value2")
	c.Set(ctx, "key3", "value3")
	c.Set(ctx, "key4", "value4") // evicts key1

	if _, found := c.Get(ctx, "key1"); found {
		t.Error("key1 should have been evicted")
	}
	for _, k := range []string{"key2", "key3", "key4"} {
		if _, found := c.Get(ctx, k); !found {
			t.Errorf("%s should still exist", k)
		}
	}
	if c.Size() != 3 {
		t.Errorf("expected size 3, got %d", c.Size())
	}
}

func TestLRUCacheRecentlyUsedSurvives(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[int](2, time.Hour)
	c.Set(ctx, "a", 1)
	c.Set(ctx, "b", 2)
	c.Get(ctx, "a")
	c.Set(ctx, "c", 3) // evicts b

	if _, found := c.Get(ctx, "b"); found {
		t.Error("b should have been evicted")
	}
	if v, found := c.Get(ctx, "a"); !found || v != 1 {
		t.Errorf("expected a=1, got %v (found=%v)", v, found)
	}
}

func TestLRUCacheTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set(ctx, "a", "x")
	c.Set(ctx, "b", "y")
	now = now.Add(30 * time.Second)
	if _, found := c.Get(ctx, "a"); !found {
		t.Fatal("a should not be expired yet")
	}

	now = now.Add(time.Minute)
	if removed := c.CleanExpired(); removed != 2 {
		t.Fatalf("expected 2 expired entries, got %d", removed)
	}
	if c.Size() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Size())
	}
}

func TestLRUCacheDeleteAndPrefix(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[string](10, time.Hour)
	c.Set(ctx, "grid:u1:2025-09", "a")
	c.Set(ctx, "grid:u1:2025-10", "b")
	c.Set(ctx, "grid:u2:2025-09", "c")

	if n := c.DeletePrefix("grid:u1:"); n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	c.Delete(ctx, "grid:u2:2025-09")
	if c.Size() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Size())
	}
}

type countingRecorder struct {
	hits, misses map[string]int
}

func (r *countingRecorder) CacheHit(name string)  { r.hits[name]++ }
func (r *countingRecorder) CacheMiss(name string) { r.misses[name]++ }

func TestInstrumentedRecordsHitsAndMisses(t *testing.T) {
	ctx := context.Background()
	rec := &countingRecorder{hits: map[string]int{}, misses: map[string]int{}}
	c := NewInstrumented[string]("recipes", NewLRUCache[string](10, time.Hour), rec)

	c.Get(ctx, "x")
	c.Set(ctx, "x", "1")
	c.Get(ctx, "x")
	c.Delete(ctx, "x")
	c.Get(ctx, "x")

	if rec.hits["recipes"] != 1 || rec.misses["recipes"] != 2 {
		t.Fatalf("unexpected counts hits=%d misses=%d", rec.hits["recipes"], rec.misses["recipes"])
	}
}

func TestManagerCleanNow(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	c := NewLRUCache[string](10, time.Second)
	c.now = func() time.Time { return now }
	c.Set(ctx, "a", "x")

	m := NewManager(nil)
	m.Register(c)
	now = now.Add(2 * time.Second)
	if n := m.CleanNow(); n != 1 {
		t.Fatalf("expected 1 cleaned entry, got %d", n)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
}
