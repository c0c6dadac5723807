package mock

import (
	"context"
	"sync/atomic"

	"money-ledger/pkg/store"
)

// MockStore is a mock implementation of DocumentStore for testing.
// Each hook defaults to the wrapped Base store (if any), so tests can inject a
// failure into one call while the rest behaves like a real store.
type MockStore struct {
	// Base handles any call whose hook is nil
	Base store.DocumentStore

	// Function hooks - set these to customize behavior
	GetFunc    func(ctx context.Context, collection, id string) (*store.Document, error)
	CreateFunc func(ctx context.Context, collection string, doc *store.Document) error
	UpdateFunc func(ctx context.Context, collection string, doc *store.Document) error
	DeleteFunc func(ctx context.Context, collection, id string) error
	QueryFunc  func(ctx context.Context, collection string, q store.Query) ([]*store.Document, error)
	NameFunc   func() string
	CloseFunc  func() error

	// Call tracking (must use atomic operations for race-free access)
	getCalls    int64
	createCalls int64
	updateCalls int64
	deleteCalls int64
	queryCalls  int64
	closeCalls  int64
}

// Get implements DocumentStore.Get with optional custom behavior.
func (m *MockStore) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	atomic.AddInt64(&m.getCalls, 1)
	if m.GetFunc != nil {
		return m.GetFunc(ctx, collection, id)
	}
	if m.Base != nil {
		return m.Base.Get(ctx, collection, id)
	}
	return nil, store.ErrNotFound
}

// Create implements DocumentStore.Create with optional custom behavior.
func (m *MockStore) Create(ctx context.Context, collection string, doc *store.Document) error {
	atomic.AddInt64(&m.createCalls, 1)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, collection, doc)
	}
	if m.Base != nil {
		return m.Base.Create(ctx, collection, doc)
	}
	return nil
}

// Update implements DocumentStore.Update with optional custom behavior.
func (m *MockStore) Update(ctx context.Context, collection string, doc *store.Document) error {
	atomic.AddInt64(&m.updateCalls, 1)
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, collection, doc)
	}
	if m.Base != nil {
		return m.Base.Update(ctx, collection, doc)
	}
	return nil
}

// Delete implements DocumentStore.Delete with optional custom behavior.
func (m *MockStore) Delete(ctx context.Context, collection, id string) error {
	atomic.AddInt64(&m.deleteCalls, 1)
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, collection, id)
	}
	if m.Base != nil {
		return m.Base.Delete(ctx, collection, id)
	}
	return nil
}

// Query implements DocumentStore.Query with optional custom behavior.
func (m *MockStore) Query(ctx context.Context, collection string, q store.Query) ([]*store.Document, error) {
	atomic.AddInt64(&m.queryCalls, 1)
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, collection, q)
	}
	if m.Base != nil {
		return m.Base.Query(ctx, collection, q)
	}
	return nil, nil
}

// Name implements DocumentStore.Name with optional custom behavior.
func (m *MockStore) Name() string {
	if m.NameFunc != nil {
		return m.NameFunc()
	}
	return "mock"
}

// Close implements DocumentStore.Close with optional custom behavior.
func (m *MockStore) Close() error {
	atomic.AddInt64(&m.closeCalls, 1)
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	if m.Base != nil {
		return m.Base.Close()
	}
	return nil
}

// GetCalls returns the number of Get calls (thread-safe).
func (m *MockStore) GetCalls() int {
	return int(atomic.LoadInt64(&m.getCalls))
}

// CreateCalls returns the number of Create calls (thread-safe).
func (m *MockStore) CreateCalls() int {
	return int(atomic.LoadInt64(&m.createCalls))
}

// UpdateCalls returns the number of Update calls (thread-safe).
func (m *MockStore) UpdateCalls() int {
	return int(atomic.LoadInt64(&m.updateCalls))
}

// DeleteCalls returns the number of Delete calls (thread-safe).
func (m *MockStore) DeleteCalls() int {
	return int(atomic.LoadInt64(&m.deleteCalls))
}

// QueryCalls returns the number of Query calls (thread-safe).
func (m *MockStore) QueryCalls() int {
	return int(atomic.LoadInt64(&m.queryCalls))
}

// CloseCalls returns the number of Close calls (thread-safe).
func (m *MockStore) CloseCalls() int {
	return int(atomic.LoadInt64(&m.closeCalls))
}

// NewMockStore creates a MockStore with the given name and no backing store.
// Get returns ErrNotFound by default, writes succeed.
func NewMockStore(name string) *MockStore {
	return &MockStore{
		NameFunc: func() string { return name },
	}
}

// Wrap creates a MockStore that delegates to base until hooks are set.
func Wrap(base store.DocumentStore) *MockStore {
	return &MockStore{Base: base}
}

// FailCreateIn returns a CreateFunc that fails for one collection with err and
// delegates everything else to base.
func FailCreateIn(base store.DocumentStore, collection string, err error) func(ctx context.Context, c string, doc *store.Document) error {
	return func(ctx context.Context, c string, doc *store.Document) error {
		if c == collection {
			return err
		}
		return base.Create(ctx, c, doc)
	}
}
