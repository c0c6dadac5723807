// Package cached adds a read-through document cache in front of a DocumentStore.
package cached

import (
	"context"
	"time"

	"money-ledger/pkg/logging"
	"money-ledger/pkg/metrics"
	"money-ledger/pkg/store"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CachedStore caches Get results by collection and id. Query results are not
// cached. A stale cached version is harmless: the next conditional Update
// fails with ErrConflict, which evicts the entry so the retry reads fresh.
type CachedStore struct {
	store   store.DocumentStore
	cache   *gocache.Cache
	group   singleflight.Group
	ttl     time.Duration
	metrics metrics.MetricsCollector
	logger  *logging.Logger
}

// Config configures the cache.
type Config struct {
	// TTL is how long a document stays cached
	TTL time.Duration
	// CleanupInterval is how often expired entries are purged
	CleanupInterval time.Duration
}

// DefaultConfig returns the defaults used by ledgerd.
func DefaultConfig() Config {
	return Config{
		TTL:             30 * time.Second,
		CleanupInterval: time.Minute,
	}
}

// New wraps s with a document cache.
func New(s store.DocumentStore, config Config, metricsCollector metrics.MetricsCollector) *CachedStore {
	if config.TTL <= 0 {
		config.TTL = DefaultConfig().TTL
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}
	if metricsCollector == nil {
		metricsCollector = metrics.NoOpCollector{}
	}

	return &CachedStore{
		store:   s,
		cache:   gocache.New(config.TTL, config.CleanupInterval),
		ttl:     config.TTL,
		metrics: metricsCollector,
		logger:  logging.Global().Named("cache").With(logging.Store(s.Name())),
	}
}

func key(collection, id string) string {
	return collection + "/" + id
}

// Get returns a cached copy or loads it, collapsing concurrent misses.
func (c *CachedStore) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	k := key(collection, id)

	if v, ok := c.cache.Get(k); ok {
		c.metrics.RecordCacheLookup(c.store.Name(), true)
		return v.(*store.Document).Clone(), nil
	}
	c.metrics.RecordCacheLookup(c.store.Name(), false)

	v, err, shared := c.group.Do(k, func() (interface{}, error) {
		doc, err := c.store.Get(ctx, collection, id)
		if err != nil {
			return nil, err
		}
		c.cache.Set(k, doc.Clone(), c.ttl)
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("collapsed concurrent load", logging.Collection(collection), zap.String("id", id))
	}
	return v.(*store.Document).Clone(), nil
}

// Create writes through and caches the new document.
func (c *CachedStore) Create(ctx context.Context, collection string, doc *store.Document) error {
	if err := c.store.Create(ctx, collection, doc); err != nil {
		return err
	}
	c.cache.Set(key(collection, doc.ID), doc.Clone(), c.ttl)
	return nil
}

// Update writes through; success refreshes the entry and any failure evicts it.
func (c *CachedStore) Update(ctx context.Context, collection string, doc *store.Document) error {
	k := key(collection, doc.ID)
	if err := c.store.Update(ctx, collection, doc); err != nil {
		c.cache.Delete(k)
		return err
	}
	c.cache.Set(k, doc.Clone(), c.ttl)
	return nil
}

// Delete writes through and evicts.
func (c *CachedStore) Delete(ctx context.Context, collection, id string) error {
	c.cache.Delete(key(collection, id))
	return c.store.Delete(ctx, collection, id)
}

// Query always goes to the underlying store.
func (c *CachedStore) Query(ctx context.Context, collection string, q store.Query) ([]*store.Document, error) {
	return c.store.Query(ctx, collection, q)
}

// Len returns the number of cached documents.
func (c *CachedStore) Len() int {
	return c.cache.ItemCount()
}

// Name returns the underlying store name.
func (c *CachedStore) Name() string {
	return c.store.Name()
}

// Close drops the cache and closes the underlying store.
func (c *CachedStore) Close() error {
	c.cache.Flush()
	return c.store.Close()
}
