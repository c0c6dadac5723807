package cached

import (
	"context"
	"sync"
	"testing"
	"time"

	metricsmemory "money-ledger/pkg/metrics/memory"
	"money-ledger/pkg/store"
	"money-ledger/pkg/store/memory"
	"money-ledger/pkg/store/mock"
	"money-ledger/pkg/store/storetest"
)

func newCached(t *testing.T) (*CachedStore, *mock.MockStore, *metricsmemory.MemoryCollector) {
	t.Helper()
	base := mock.Wrap(memory.NewMemoryStore(memory.MemoryStoreConfig{Name: "base"}))
	collector := metricsmemory.NewMemoryCollector()
	return New(base, DefaultConfig(), collector), base, collector
}

func TestCachedStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.DocumentStore {
		return New(memory.NewMemoryStore(memory.MemoryStoreConfig{Name: "test"}), DefaultConfig(), nil)
	})
}

func TestCachedStore_GetHitsCache(t *testing.T) {
	c, base, collector := newCached(t)
	ctx := context.Background()

	if err := c.Create(ctx, "accounts", store.NewDocument("a1", map[string]interface{}{"name": "Cash"})); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		doc, err := c.Get(ctx, "accounts", "a1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if doc.Fields["name"] != "Cash" {
			t.Errorf("Expected name Cash, got %v", doc.Fields["name"])
		}
		// callers get copies
		doc.Fields["name"] = "mutated"
	}

	if base.GetCalls() != 0 {
		t.Errorf("Expected Create to warm the cache, got %d base gets", base.GetCalls())
	}
	sm := collector.GetStoreMetrics("mock")
	if sm == nil || sm.CacheHits != 3 {
		t.Errorf("Expected 3 cache hits, got %+v", sm)
	}
}

func TestCachedStore_ConflictEvicts(t *testing.T) {
	c, base, _ := newCached(t)
	ctx := context.Background()

	doc := store.NewDocument("a1", map[string]interface{}{"balance": "10"})
	if err := c.Create(ctx, "accounts", doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// another writer bypasses the cache
	direct, _ := base.Get(ctx, "accounts", "a1")
	direct.Fields["balance"] = "20"
	if err := base.Update(ctx, "accounts", direct); err != nil {
		t.Fatalf("Direct update failed: %v", err)
	}

	stale, err := c.Get(ctx, "accounts", "a1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stale.Version != 1 {
		t.Fatalf("Expected cached version 1, got %d", stale.Version)
	}

	stale.Fields["balance"] = "30"
	if err := c.Update(ctx, "accounts", stale); !store.IsConflict(err) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}

	fresh, err := c.Get(ctx, "accounts", "a1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fresh.Version != 2 || fresh.Fields["balance"] != "20" {
		t.Errorf("Expected fresh version 2 with balance 20, got v%d %v", fresh.Version, fresh.Fields["balance"])
	}
}

func TestCachedStore_DeleteEvicts(t *testing.T) {
	c, _, _ := newCached(t)
	ctx := context.Background()

	c.Create(ctx, "tags", store.NewDocument("t1", nil))
	if err := c.Delete(ctx, "tags", "t1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := c.Get(ctx, "tags", "t1"); !store.IsNotFound(err) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Expected empty cache, got %d entries", c.Len())
	}
}

func TestCachedStore_CollapsesConcurrentMisses(t *testing.T) {
	base := memory.NewMemoryStore(memory.MemoryStoreConfig{Name: "base"})
	ctx := context.Background()
	base.Create(ctx, "accounts", store.NewDocument("a1", nil))

	release := make(chan struct{})
	m := mock.Wrap(base)
	m.GetFunc = func(ctx context.Context, collection, id string) (*store.Document, error) {
		<-release
		return base.Get(ctx, collection, id)
	}
	c := New(m, Config{TTL: time.Minute}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(ctx, "accounts", "a1"); err != nil {
				t.Errorf("Get failed: %v", err)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := m.GetCalls(); got >= 10 {
		t.Errorf("Expected concurrent misses to be collapsed, got %d base gets", got)
	}
}
