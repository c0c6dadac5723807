package memory

import (
	"context"
	"sync"
	"time"

	"money-ledger/pkg/store"
)

// MemoryStore is an in-memory document store that satisfies the DocumentStore interface.
// It provides thread-safe operations and hands out copies so callers never share
// stored state. It is the default backend for tests and single-process runs.
type MemoryStore struct {
	// data stores documents per collection
	data map[string]map[string]*store.Document

	// mu protects concurrent access to data
	mu sync.RWMutex

	// config holds the store configuration
	config MemoryStoreConfig

	// now is the clock, replaceable in tests
	now func() time.Time

	closed bool
}

// MemoryStoreConfig holds configuration for the memory store
type MemoryStoreConfig struct {
	// Name is the store identifier
	Name string

	// MaxDocuments caps the number of documents per collection (0 = unlimited)
	MaxDocuments int
}

// NewMemoryStore creates a new in-memory document store with the given configuration.
func NewMemoryStore(config MemoryStoreConfig) *MemoryStore {
	if config.Name == "" {
		config.Name = "memory"
	}

	return &MemoryStore{
		data:   make(map[string]map[string]*store.Document),
		config: config,
		now:    time.Now,
	}
}

// Get retrieves a copy of a document.
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := store.ValidateRef(collection, id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}

	doc, exists := s.data[collection][id]
	if !exists {
		return nil, store.ErrNotFound
	}

	return doc.Clone(), nil
}

// Create stores a new document, assigning version and timestamps.
func (s *MemoryStore) Create(ctx context.Context, collection string, doc *store.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ValidateRef(collection, doc.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}

	docs, ok := s.data[collection]
	if !ok {
		docs = make(map[string]*store.Document)
		s.data[collection] = docs
	}

	if _, exists := docs[doc.ID]; exists {
		return store.ErrAlreadyExists
	}

	if s.config.MaxDocuments > 0 && len(docs) >= s.config.MaxDocuments {
		return store.WrapError(store.ErrUnavailable, s.config.Name, "create: collection full")
	}

	now := s.now().UTC()
	doc.Version = 1
	doc.CreatedAt = now
	doc.UpdatedAt = now
	docs[doc.ID] = doc.Clone()

	return nil
}

// Update replaces a document if its version still matches.
func (s *MemoryStore) Update(ctx context.Context, collection string, doc *store.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ValidateRef(collection, doc.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}

	current, exists := s.data[collection][doc.ID]
	if !exists {
		return store.ErrNotFound
	}

	if current.Version != doc.Version {
		return store.ErrConflict
	}

	doc.Version = current.Version + 1
	doc.CreatedAt = current.CreatedAt
	doc.UpdatedAt = s.now().UTC()
	s.data[collection][doc.ID] = doc.Clone()

	return nil
}

// Delete removes a document. Returns nil even if the document doesn't exist.
func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ValidateRef(collection, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}

	delete(s.data[collection], id)
	return nil
}

// Query scans a collection and filters in-process.
func (s *MemoryStore) Query(ctx context.Context, collection string, q store.Query) ([]*store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := store.ValidateCollection(collection); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}

	docs := make([]*store.Document, 0, len(s.data[collection]))
	for _, doc := range s.data[collection] {
		docs = append(docs, doc)
	}

	matched := store.Apply(docs, q)
	out := make([]*store.Document, len(matched))
	for i, doc := range matched {
		out[i] = doc.Clone()
	}
	return out, nil
}

// Name returns the store name.
func (s *MemoryStore) Name() string {
	return s.config.Name
}

// Close drops all data. Further calls return ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.data = nil
	return nil
}

// Stats returns current store statistics.
func (s *MemoryStore) Stats() MemoryStoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := MemoryStoreStats{
		Collections: len(s.data),
		Documents:   make(map[string]int, len(s.data)),
	}
	for name, docs := range s.data {
		stats.Documents[name] = len(docs)
	}
	return stats
}

// MemoryStoreStats holds store statistics.
type MemoryStoreStats struct {
	Collections int            // Number of collections holding documents
	Documents   map[string]int // Documents per collection
}
