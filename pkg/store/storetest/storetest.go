// Package storetest holds behaviour checks shared by every DocumentStore backend.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"money-ledger/pkg/store"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.DocumentStore

// Run exercises the DocumentStore contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateGet", func(t *testing.T) { testCreateGet(t, newStore(t)) })
	t.Run("CreateDuplicate", func(t *testing.T) { testCreateDuplicate(t, newStore(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("UpdateVersion", func(t *testing.T) { testUpdateVersion(t, newStore(t)) })
	t.Run("UpdateMissing", func(t *testing.T) { testUpdateMissing(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("Query", func(t *testing.T) { testQuery(t, newStore(t)) })
	t.Run("InvalidRef", func(t *testing.T) { testInvalidRef(t, newStore(t)) })
	t.Run("ConcurrentCAS", func(t *testing.T) { testConcurrentCAS(t, newStore(t)) })
}

func testCreateGet(t *testing.T, s store.DocumentStore) {
	defer s.Close()
	ctx := context.Background()

	doc := store.NewDocument("doc-1", map[string]interface{}{
		"name":   "Wallet",
		"active": true,
		"tags":   []string{"a", "b"},
	})
	if err := s.Create(ctx, "accounts", doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if doc.Version != 1 {
		t.Errorf("Expected version 1 after create, got %d", doc.Version)
	}
	if doc.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}

	got, err := s.Get(ctx, "accounts", "doc-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != "doc-1" {
		t.Errorf("Expected id doc-1, got %s", got.ID)
	}
	if got.Version != 1 {
		t.Errorf("Expected version 1, got %d", got.Version)
	}
	if got.Fields["name"] != "Wallet" {
		t.Errorf("Expected name Wallet, got %v", got.Fields["name"])
	}
	if got.Fields["active"] != true {
		t.Errorf("Expected active true, got %v", got.Fields["active"])
	}
	if n := listLen(got.Fields["tags"]); n != 2 {
		t.Errorf("Expected 2 tags, got %d (%v)", n, got.Fields["tags"])
	}

	// Mutating the returned copy must not leak into the store
	got.Fields["name"] = "changed"
	again, err := s.Get(ctx, "accounts", "doc-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if again.Fields["name"] != "Wallet" {
		t.Errorf("Stored document was mutated through a returned copy: %v", again.Fields["name"])
	}
}

func testCreateDuplicate(t *testing.T, s store.DocumentStore) {
	defer s.Close()
	ctx := context.Background()

	if err := s.Create(ctx, "tags", store.NewDocument("dup", map[string]interface{}{"name": "x"})); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	err := s.Create(ctx, "tags", store.NewDocument("dup", map[string]interface{}{"name": "y"}))
	if !store.IsAlreadyExists(err) {
		t.Errorf("Expected ErrAlreadyExists, got %v", err)
	}
}

func testGetMissing(t *testing.T, s store.DocumentStore) {
	defer s.Close()

	_, err := s.Get(context.Background(), "accounts", "missing")
	if !store.IsNotFound(err) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func testUpdateVersion(t *testing.T, s store.DocumentStore) {
	defer s.Close()
	ctx := context.Background()

	doc := store.NewDocument("acc", map[string]interface{}{"balance": "10"})
	if err := s.Create(ctx, "accounts", doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	stale := doc.Clone()

	doc.Fields["balance"] = "20"
	if err := s.Update(ctx, "accounts", doc); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if doc.Version != 2 {
		t.Errorf("Expected version 2 after update, got %d", doc.Version)
	}

	stale.Fields["balance"] = "30"
	if err := s.Update(ctx, "accounts", stale); !store.IsConflict(err) {
		t.Errorf("Expected ErrConflict for stale version, got %v", err)
	}

	got, err := s.Get(ctx, "accounts", "acc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Fields["balance"] != "20" {
		t.Errorf("Expected balance 20, got %v", got.Fields["balance"])
	}
	if got.Version != 2 {
		t.Errorf("Expected stored version 2, got %d", got.Version)
	}
}

func testUpdateMissing(t *testing.T, s store.DocumentStore) {
	defer s.Close()

	doc := store.NewDocument("ghost", map[string]interface{}{"x": "y"})
	doc.Version = 1
	if err := s.Update(context.Background(), "accounts", doc); !store.IsNotFound(err) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func testDelete(t *testing.T, s store.DocumentStore) {
	defer s.Close()
	ctx := context.Background()

	if err := s.Create(ctx, "tags", store.NewDocument("t1", map[string]interface{}{"name": "x"})); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Delete(ctx, "tags", "t1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "tags", "t1"); !store.IsNotFound(err) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}

	// Deleting again is not an error
	if err := s.Delete(ctx, "tags", "t1"); err != nil {
		t.Errorf("Expected nil deleting a missing document, got %v", err)
	}

	// The id can be reused after delete
	if err := s.Create(ctx, "tags", store.NewDocument("t1", map[string]interface{}{"name": "z"})); err != nil {
		t.Errorf("Expected re-create after delete to succeed, got %v", err)
	}
}

func testQuery(t *testing.T, s store.DocumentStore) {
	defer s.Close()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		owner := "alice"
		if i%2 == 1 {
			owner = "bob"
		}
		doc := store.NewDocument(fmt.Sprintf("tx-%d", i), map[string]interface{}{
			"ownerId": owner,
			"type":    "expense",
			"active":  i != 4,
			"date":    store.FormatTime(base.AddDate(0, 0, i)),
		})
		if err := s.Create(ctx, "transactions", doc); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	tests := []struct {
		name string
		q    store.Query
		want []string
	}{
		{
			name: "equality",
			q:    store.Query{}.Where("ownerId", store.OpEqual, "alice"),
			want: []string{"tx-0", "tx-2", "tx-4"},
		},
		{
			name: "bool equality",
			q:    store.Query{}.Where("ownerId", store.OpEqual, "alice").Where("active", store.OpEqual, true),
			want: []string{"tx-0", "tx-2"},
		},
		{
			name: "date range",
			q: store.Query{}.
				Where("date", store.OpGreaterEqual, base.AddDate(0, 0, 1)).
				Where("date", store.OpLess, base.AddDate(0, 0, 3)),
			want: []string{"tx-1", "tx-2"},
		},
		{
			name: "order descending with limit",
			q:    store.Query{OrderBy: "date", Descending: true, Limit: 2},
			want: []string{"tx-4", "tx-3"},
		},
		{
			name: "no match",
			q:    store.Query{}.Where("ownerId", store.OpEqual, "carol"),
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.q.OrderBy == "" {
				tt.q.OrderBy = "date"
			}
			docs, err := s.Query(ctx, "transactions", tt.q)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(docs) != len(tt.want) {
				t.Fatalf("Expected %d documents, got %d", len(tt.want), len(docs))
			}
			for i, doc := range docs {
				if doc.ID != tt.want[i] {
					t.Errorf("Position %d: expected %s, got %s", i, tt.want[i], doc.ID)
				}
			}
		})
	}
}

func testInvalidRef(t *testing.T, s store.DocumentStore) {
	defer s.Close()
	ctx := context.Background()

	if _, err := s.Get(ctx, "accounts", ""); !errors.Is(err, store.ErrInvalidID) {
		t.Errorf("Expected ErrInvalidID for empty id, got %v", err)
	}
	if _, err := s.Get(ctx, "Bad Collection", "x"); !errors.Is(err, store.ErrInvalidID) {
		t.Errorf("Expected ErrInvalidID for bad collection, got %v", err)
	}
	if _, err := s.Query(ctx, "accounts", store.Query{}.Where("bad field", store.OpEqual, "x")); !errors.Is(err, store.ErrInvalidQuery) {
		t.Errorf("Expected ErrInvalidQuery for bad field, got %v", err)
	}
}

// testConcurrentCAS increments a counter from several goroutines with a
// read-modify-write retry loop; no increment may be lost.
func testConcurrentCAS(t *testing.T, s store.DocumentStore) {
	defer s.Close()
	ctx := context.Background()

	if err := s.Create(ctx, "accounts", store.NewDocument("counter", map[string]interface{}{"n": float64(0)})); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	const workers = 8
	const perWorker = 10
	var conflicts int64
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				for {
					doc, err := s.Get(ctx, "accounts", "counter")
					if err != nil {
						t.Errorf("Get failed: %v", err)
						return
					}
					doc.Fields["n"] = toFloat(doc.Fields["n"]) + 1
					err = s.Update(ctx, "accounts", doc)
					if err == nil {
						break
					}
					if !store.IsConflict(err) {
						t.Errorf("Update failed: %v", err)
						return
					}
					atomic.AddInt64(&conflicts, 1)
				}
			}
		}()
	}
	wg.Wait()

	doc, err := s.Get(ctx, "accounts", "counter")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got := toFloat(doc.Fields["n"]); got != workers*perWorker {
		t.Errorf("Expected counter %d, got %v (conflicts retried: %d)", workers*perWorker, got, conflicts)
	}
}

func listLen(v interface{}) int {
	switch tv := v.(type) {
	case []interface{}:
		return len(tv)
	case []string:
		return len(tv)
	}
	return -1
}

func toFloat(v interface{}) float64 {
	switch tv := v.(type) {
	case float64:
		return tv
	case int64:
		return float64(tv)
	case int:
		return float64(tv)
	}
	return 0
}
