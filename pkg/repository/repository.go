// Package repository maps ledger entities to documents and back.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"money-ledger/pkg/logging"
	"money-ledger/pkg/model"
	"money-ledger/pkg/store"

	"go.uber.org/zap"
)

// Collection names.
const (
	AccountsCollection     = "accounts"
	TransactionsCollection = "transactions"
	TransfersCollection    = "transfers"
	CategoriesCollection   = "categories"
	TagsCollection         = "tags"
)

// ErrRetriesExhausted is returned when a read-modify-write keeps losing to
// concurrent writers.
var ErrRetriesExhausted = errors.New("too many concurrent modifications")

// Config controls the optimistic retry loop used by Modify.
type Config struct {
	// MaxRetries is how many times a conflicting write is retried
	MaxRetries int
	// RetryBackoff is the base delay between attempts, multiplied by the attempt number
	RetryBackoff time.Duration
}

// DefaultConfig returns the defaults used by ledgerd.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   10,
		RetryBackoff: 2 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("repository: max retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("repository: retry backoff must be >= 0, got %v", c.RetryBackoff)
	}
	return nil
}

// codec converts one entity type to and from documents.
type codec[T any] struct {
	entity string
	encode func(*T) *store.Document
	decode func(*store.Document) (*T, error)
	// stamp copies store-assigned id, version and timestamps back onto the entity
	stamp func(*T, *store.Document)
	owner func(*T) string
}

// Repository is typed CRUD for one collection.
type Repository[T any] struct {
	store      store.DocumentStore
	collection string
	codec      codec[T]
	config     Config
	logger     *logging.Logger
}

func newRepository[T any](s store.DocumentStore, collection string, c codec[T], config Config) *Repository[T] {
	return &Repository[T]{
		store:      s,
		collection: collection,
		codec:      c,
		config:     config,
		logger:     logging.Global().Named("repository").With(logging.Collection(collection)),
	}
}

// Collection returns the collection name.
func (r *Repository[T]) Collection() string {
	return r.collection
}

func (r *Repository[T]) notFound(id string) error {
	return fmt.Errorf("%w: %s %s", model.ErrNotFound, r.codec.entity, id)
}

// Insert stores a new entity, generating its id when empty.
func (r *Repository[T]) Insert(ctx context.Context, e *T) error {
	doc := r.codec.encode(e)
	if doc.ID == "" {
		doc.ID = store.NewID()
	}
	if err := r.store.Create(ctx, r.collection, doc); err != nil {
		return fmt.Errorf("create %s: %w", r.codec.entity, err)
	}
	r.codec.stamp(e, doc)
	return nil
}

// Get loads an entity regardless of owner.
func (r *Repository[T]) Get(ctx context.Context, id string) (*T, error) {
	if id == "" {
		return nil, r.notFound(id)
	}
	doc, err := r.store.Get(ctx, r.collection, id)
	if store.IsNotFound(err) {
		return nil, r.notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", r.codec.entity, id, err)
	}
	e, err := r.codec.decode(doc)
	if err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", r.codec.entity, id, err)
	}
	return e, nil
}

// GetOwned loads an entity and asserts it belongs to ownerID.
func (r *Repository[T]) GetOwned(ctx context.Context, ownerID, id string) (*T, error) {
	e, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.checkOwner(e, ownerID); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *Repository[T]) checkOwner(e *T, ownerID string) error {
	if ownerID == "" || r.codec.owner(e) != ownerID {
		return fmt.Errorf("%w: %s belongs to another owner", model.ErrForbidden, r.codec.entity)
	}
	return nil
}

// Save writes e if its version is still current.
func (r *Repository[T]) Save(ctx context.Context, e *T) error {
	doc := r.codec.encode(e)
	err := r.store.Update(ctx, r.collection, doc)
	if store.IsNotFound(err) {
		return r.notFound(doc.ID)
	}
	if err != nil {
		return fmt.Errorf("update %s %s: %w", r.codec.entity, doc.ID, err)
	}
	r.codec.stamp(e, doc)
	return nil
}

// Delete removes an entity; deleting a missing one is not an error.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, r.collection, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", r.codec.entity, id, err)
	}
	return nil
}

// Find runs q scoped to ownerID.
func (r *Repository[T]) Find(ctx context.Context, ownerID string, q store.Query) ([]*T, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", model.ErrForbidden)
	}
	q = q.Where("ownerId", store.OpEqual, ownerID)

	docs, err := r.store.Query(ctx, r.collection, q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.collection, err)
	}

	out := make([]*T, 0, len(docs))
	for _, doc := range docs {
		e, err := r.codec.decode(doc)
		if err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", r.codec.entity, doc.ID, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Modify runs a read-modify-write on one owned entity. fn mutates the loaded
// entity; if the version moved in between, the entity is reloaded and fn runs
// again, up to MaxRetries times. An error from fn aborts without writing.
func (r *Repository[T]) Modify(ctx context.Context, ownerID, id string, fn func(*T) error) (*T, error) {
	for attempt := 0; ; attempt++ {
		e, err := r.GetOwned(ctx, ownerID, id)
		if err != nil {
			return nil, err
		}
		if err := fn(e); err != nil {
			return nil, err
		}

		err = r.Save(ctx, e)
		if err == nil {
			return e, nil
		}
		if !store.IsConflict(err) {
			return nil, err
		}
		if attempt >= r.config.MaxRetries {
			r.logger.Warn("giving up after repeated conflicts",
				zap.String("id", id),
				zap.Int("attempts", attempt+1),
			)
			return nil, fmt.Errorf("%w: %s %s: %w", ErrRetriesExhausted, r.codec.entity, id, err)
		}

		r.logger.Debug("version conflict, retrying", zap.String("id", id), zap.Int("attempt", attempt+1))
		if err := sleep(ctx, time.Duration(attempt+1)*r.config.RetryBackoff); err != nil {
			return nil, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Set bundles the repositories of every ledger collection.
type Set struct {
	Accounts     *Repository[model.Account]
	Transactions *Repository[model.Transaction]
	Transfers    *Repository[model.Transfer]
	Categories   *Repository[model.Category]
	Tags         *Repository[model.Tag]
}

// New builds the repository set on top of s.
func New(s store.DocumentStore, config Config) *Set {
	return &Set{
		Accounts:     newRepository(s, AccountsCollection, accountCodec, config),
		Transactions: newRepository(s, TransactionsCollection, transactionCodec, config),
		Transfers:    newRepository(s, TransfersCollection, transferCodec, config),
		Categories:   newRepository(s, CategoriesCollection, categoryCodec, config),
		Tags:         newRepository(s, TagsCollection, tagCodec, config),
	}
}
