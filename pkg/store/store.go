package store

import (
	"context"
	"time"
)

// DocumentStore defines the interface that all document store backends must satisfy.
// Documents are grouped by collection and keyed by a generated id. The store has no
// domain knowledge and offers no multi-document transactions; Update is the only
// conditional primitive.
type DocumentStore interface {
	// Get retrieves a document by collection and id.
	// Returns ErrNotFound if the document does not exist.
	Get(ctx context.Context, collection, id string) (*Document, error)

	// Create stores a new document. The store assigns Version 1 and the
	// CreatedAt/UpdatedAt timestamps on the passed document.
	// Returns ErrAlreadyExists if a document with the same id exists.
	Create(ctx context.Context, collection string, doc *Document) error

	// Update replaces the fields of an existing document, but only if doc.Version
	// still matches the stored version. On success doc.Version is incremented and
	// doc.UpdatedAt refreshed.
	// Returns ErrNotFound if the document is gone and ErrConflict if the version moved.
	Update(ctx context.Context, collection string, doc *Document) error

	// Delete removes a document. Returns nil if the document didn't exist.
	Delete(ctx context.Context, collection, id string) error

	// Query returns the documents of a collection matching every filter.
	Query(ctx context.Context, collection string, q Query) ([]*Document, error)

	// Name returns the identifier for this store (e.g., "memory", "redis", "postgres").
	// Used for logging, metrics, and debugging.
	Name() string

	// Close releases any resources held by the store.
	Close() error
}

// Document is a single stored record.
type Document struct {
	// ID is the document key within its collection
	ID string

	// Fields holds the document body. Values are JSON-compatible: string, bool,
	// float64, int64, []interface{}, []string or nil.
	Fields map[string]interface{}

	// Version is the optimistic concurrency token, starting at 1
	Version int64

	// CreatedAt is when the document was first stored
	CreatedAt time.Time

	// UpdatedAt is when the document was last written
	UpdatedAt time.Time
}

// NewDocument creates a document with the given id and fields.
func NewDocument(id string, fields map[string]interface{}) *Document {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	return &Document{ID: id, Fields: fields}
}

// Clone returns a deep copy of the document so callers can't mutate stored state.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Fields = cloneFields(d.Fields)
	return &out
}

func cloneFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch tv := v.(type) {
		case []interface{}:
			cp := make([]interface{}, len(tv))
			copy(cp, tv)
			out[k] = cp
		case []string:
			cp := make([]string, len(tv))
			copy(cp, tv)
			out[k] = cp
		case map[string]interface{}:
			out[k] = cloneFields(tv)
		default:
			out[k] = v
		}
	}
	return out
}

// TimeLayout is the fixed-width UTC layout used for time-valued fields.
// Fixed width keeps lexicographic order equal to chronological order in every backend.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a value written by FormatTime. RFC3339 values are accepted too.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
