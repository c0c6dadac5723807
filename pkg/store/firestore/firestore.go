// Package firestore implements DocumentStore on Google Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"money-ledger/pkg/store"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Bookkeeping fields stored next to the document body.
const (
	versionField = "_version"
	createdField = "_created"
	updatedField = "_updated"
)

// FirestoreStore is a DocumentStore backed by Firestore. Conditional updates
// run inside a Firestore transaction.
type FirestoreStore struct {
	client *firestore.Client
	name   string
	prefix string
	now    func() time.Time
}

// Config holds Firestore configuration.
type Config struct {
	Name string
	// ProjectID is the GCP project; with FIRESTORE_EMULATOR_HOST set any id works
	ProjectID string
	// CollectionPrefix is prepended to every collection name, e.g. "preview_"
	CollectionPrefix string
}

// New opens a Firestore client for config.ProjectID.
func New(ctx context.Context, config Config) (*FirestoreStore, error) {
	if config.ProjectID == "" {
		return nil, fmt.Errorf("firestore: project id is required")
	}
	client, err := firestore.NewClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("firestore: failed to create client: %w", err)
	}
	return NewWithClient(client, config), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *firestore.Client, config Config) *FirestoreStore {
	if config.Name == "" {
		config.Name = "firestore"
	}
	return &FirestoreStore{
		client: client,
		name:   config.Name,
		prefix: config.CollectionPrefix,
		now:    time.Now,
	}
}

func (f *FirestoreStore) collection(name string) *firestore.CollectionRef {
	return f.client.Collection(f.prefix + name)
}

// Get loads one document.
func (f *FirestoreStore) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	if err := store.ValidateRef(collection, id); err != nil {
		return nil, err
	}

	snap, err := f.collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.WrapError(err, f.name, "get")
	}
	return fromSnapshot(snap)
}

// Create stores a new document; Firestore rejects existing ids.
func (f *FirestoreStore) Create(ctx context.Context, collection string, doc *store.Document) error {
	if err := store.ValidateRef(collection, doc.ID); err != nil {
		return err
	}

	now := f.now().UTC()
	data := toData(doc.Fields, 1, now, now)

	_, err := f.collection(collection).Doc(doc.ID).Create(ctx, data)
	if status.Code(err) == codes.AlreadyExists {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return store.WrapError(err, f.name, "create")
	}

	doc.Version = 1
	doc.CreatedAt = now
	doc.UpdatedAt = now
	return nil
}

// Update replaces the body inside a transaction if the stored version matches.
func (f *FirestoreStore) Update(ctx context.Context, collection string, doc *store.Document) error {
	if err := store.ValidateRef(collection, doc.ID); err != nil {
		return err
	}

	ref := f.collection(collection).Doc(doc.ID)
	now := f.now().UTC()
	var created time.Time

	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}

		current, err := fromSnapshot(snap)
		if err != nil {
			return err
		}
		if current.Version != doc.Version {
			return store.ErrConflict
		}
		created = current.CreatedAt

		return tx.Set(ref, toData(doc.Fields, doc.Version+1, current.CreatedAt, now))
	})
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConflict) {
		return err
	}
	if err != nil {
		return store.WrapError(err, f.name, "update")
	}

	doc.Version++
	doc.CreatedAt = created
	doc.UpdatedAt = now
	return nil
}

// Delete removes a document; Firestore treats a missing document as success.
func (f *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	if err := store.ValidateRef(collection, id); err != nil {
		return err
	}

	if _, err := f.collection(collection).Doc(id).Delete(ctx); err != nil {
		return store.WrapError(err, f.name, "delete")
	}
	return nil
}

// Query pushes filters, ordering and limit to Firestore.
func (f *FirestoreStore) Query(ctx context.Context, collection string, q store.Query) ([]*store.Document, error) {
	if err := store.ValidateCollection(collection); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	query := f.collection(collection).Query
	for _, filter := range q.Filters {
		query = query.Where(filter.Field, string(filter.Op), store.NormalizeValue(filter.Value))
	}

	dir := firestore.Asc
	if q.Descending {
		dir = firestore.Desc
	}
	if q.OrderBy != "" {
		query = query.OrderBy(q.OrderBy, dir)
	}
	query = query.OrderBy(firestore.DocumentID, dir)
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var docs []*store.Document
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, store.WrapError(err, f.name, "query")
		}
		doc, err := fromSnapshot(snap)
		if err != nil {
			return nil, store.WrapError(err, f.name, "query")
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func toData(fields map[string]interface{}, version int64, created, updated time.Time) map[string]interface{} {
	data := make(map[string]interface{}, len(fields)+3)
	for k, v := range fields {
		data[k] = v
	}
	data[versionField] = version
	data[createdField] = store.FormatTime(created)
	data[updatedField] = store.FormatTime(updated)
	return data
}

func fromSnapshot(snap *firestore.DocumentSnapshot) (*store.Document, error) {
	data := snap.Data()
	doc := &store.Document{ID: snap.Ref.ID, Fields: make(map[string]interface{}, len(data))}

	for k, v := range data {
		switch k {
		case versionField:
			version, ok := v.(int64)
			if !ok {
				return nil, fmt.Errorf("id %s: bad version %v", doc.ID, v)
			}
			doc.Version = version
		case createdField:
			if s, ok := v.(string); ok {
				doc.CreatedAt, _ = store.ParseTime(s)
			}
		case updatedField:
			if s, ok := v.(string); ok {
				doc.UpdatedAt, _ = store.ParseTime(s)
			}
		default:
			doc.Fields[k] = v
		}
	}
	return doc, nil
}

// Name returns the store name.
func (f *FirestoreStore) Name() string {
	return f.name
}

// Close closes the client.
func (f *FirestoreStore) Close() error {
	return f.client.Close()
}
