// Package sqldoc implements DocumentStore on a single SQL table holding JSON bodies.
package sqldoc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"money-ledger/pkg/store"
)

// SQLStore is a DocumentStore backed by a relational database.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	name    string
	now     func() time.Time
}

// Config holds the SQL connection configuration.
type Config struct {
	// Name is the store identifier (defaults to the dialect name)
	Name string
	// Driver selects the dialect: "postgres" or "sqlite"
	Driver string
	// DSN is the driver connection string, e.g.
	// "host=localhost user=postgres dbname=ledger sslmode=disable" or "file:ledger.db"
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultConfig returns a local postgres configuration.
func DefaultConfig() Config {
	return Config{
		Driver:          "postgres",
		DSN:             "host=localhost port=5432 user=postgres password=postgres dbname=ledger sslmode=disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectTimeout:  5 * time.Second,
	}
}

// SQLiteConfig returns a configuration for an SQLite database at dsn.
func SQLiteConfig(dsn string) Config {
	return Config{
		Driver:         "sqlite",
		DSN:            dsn,
		ConnectTimeout: 5 * time.Second,
	}
}

// Open connects, pings and ensures the schema exists.
func Open(config Config) (*SQLStore, error) {
	dialect, err := DialectFor(config.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.DriverName(), config.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqldoc: failed to open %s connection: %w", dialect.Name(), err)
	}

	if _, ok := dialect.(SQLite); ok {
		// one writer at a time; also keeps a :memory: database alive and shared
		db.SetMaxOpenConns(1)
	} else {
		if config.MaxOpenConns > 0 {
			db.SetMaxOpenConns(config.MaxOpenConns)
		}
		if config.MaxIdleConns > 0 {
			db.SetMaxIdleConns(config.MaxIdleConns)
		}
		if config.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(config.ConnMaxLifetime)
		}
	}

	timeout := config.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqldoc: failed to ping %s: %w", dialect.Name(), err)
	}

	s, err := New(ctx, db, dialect, config.Name)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and ensures the schema exists.
func New(ctx context.Context, db *sql.DB, dialect Dialect, name string) (*SQLStore, error) {
	if name == "" {
		name = dialect.Name()
	}
	for _, stmt := range dialect.Schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("sqldoc: failed to create schema: %w", err)
		}
	}
	return &SQLStore{db: db, dialect: dialect, name: name, now: time.Now}, nil
}

// bind numbers placeholders in order of appearance.
type bind struct {
	dialect Dialect
	args    []interface{}
}

func (b *bind) add(v interface{}) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

// Get loads one document.
func (s *SQLStore) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	if err := store.ValidateRef(collection, id); err != nil {
		return nil, err
	}

	b := &bind{dialect: s.dialect}
	query := "SELECT id, data, version, created_at, updated_at FROM documents WHERE collection = " +
		b.add(collection) + " AND id = " + b.add(id)

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, b.args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.WrapError(err, s.name, "get")
	}
	return doc, nil
}

// Create inserts a document unless the id is taken.
func (s *SQLStore) Create(ctx context.Context, collection string, doc *store.Document) error {
	if err := store.ValidateRef(collection, doc.ID); err != nil {
		return err
	}

	data, err := store.EncodeFields(doc.Fields)
	if err != nil {
		return store.WrapError(err, s.name, "create")
	}

	now := s.now().UTC()
	ts := store.FormatTime(now)

	b := &bind{dialect: s.dialect}
	query := "INSERT INTO documents (collection, id, data, version, created_at, updated_at) VALUES (" +
		strings.Join([]string{b.add(collection), b.add(doc.ID), b.add(string(data)), "1", b.add(ts), b.add(ts)}, ", ") +
		") ON CONFLICT (collection, id) DO NOTHING"

	res, err := s.db.ExecContext(ctx, query, b.args...)
	if err != nil {
		return store.WrapError(err, s.name, "create")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.WrapError(err, s.name, "create")
	}
	if n == 0 {
		return store.ErrAlreadyExists
	}

	doc.Version = 1
	doc.CreatedAt = now
	doc.UpdatedAt = now
	return nil
}

// Update replaces the body when the stored version equals doc.Version.
func (s *SQLStore) Update(ctx context.Context, collection string, doc *store.Document) error {
	if err := store.ValidateRef(collection, doc.ID); err != nil {
		return err
	}

	data, err := store.EncodeFields(doc.Fields)
	if err != nil {
		return store.WrapError(err, s.name, "update")
	}

	now := s.now().UTC()

	b := &bind{dialect: s.dialect}
	query := "UPDATE documents SET data = " + b.add(string(data)) +
		", version = version + 1, updated_at = " + b.add(store.FormatTime(now)) +
		" WHERE collection = " + b.add(collection) +
		" AND id = " + b.add(doc.ID) +
		" AND version = " + b.add(doc.Version)

	res, err := s.db.ExecContext(ctx, query, b.args...)
	if err != nil {
		return store.WrapError(err, s.name, "update")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.WrapError(err, s.name, "update")
	}
	if n == 0 {
		exists, err := s.exists(ctx, collection, doc.ID)
		if err != nil {
			return store.WrapError(err, s.name, "update")
		}
		if !exists {
			return store.ErrNotFound
		}
		return store.ErrConflict
	}

	doc.Version++
	doc.UpdatedAt = now
	return nil
}

func (s *SQLStore) exists(ctx context.Context, collection, id string) (bool, error) {
	b := &bind{dialect: s.dialect}
	query := "SELECT 1 FROM documents WHERE collection = " + b.add(collection) + " AND id = " + b.add(id)

	var one int
	err := s.db.QueryRowContext(ctx, query, b.args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Delete removes a document; a missing document is not an error.
func (s *SQLStore) Delete(ctx context.Context, collection, id string) error {
	if err := store.ValidateRef(collection, id); err != nil {
		return err
	}

	b := &bind{dialect: s.dialect}
	query := "DELETE FROM documents WHERE collection = " + b.add(collection) + " AND id = " + b.add(id)
	if _, err := s.db.ExecContext(ctx, query, b.args...); err != nil {
		return store.WrapError(err, s.name, "delete")
	}
	return nil
}

// Query pushes filters, ordering and limit down to the database.
func (s *SQLStore) Query(ctx context.Context, collection string, q store.Query) ([]*store.Document, error) {
	if err := store.ValidateCollection(collection); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	query, args := s.buildQuery(collection, q)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.WrapError(err, s.name, "query")
	}
	defer rows.Close()

	var docs []*store.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, store.WrapError(err, s.name, "query")
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, store.WrapError(err, s.name, "query")
	}
	return docs, nil
}

func (s *SQLStore) buildQuery(collection string, q store.Query) (string, []interface{}) {
	b := &bind{dialect: s.dialect}

	var sb strings.Builder
	sb.WriteString("SELECT id, data, version, created_at, updated_at FROM documents WHERE collection = ")
	sb.WriteString(b.add(collection))

	for _, f := range q.Filters {
		value := store.NormalizeValue(f.Value)
		sb.WriteString(" AND ")
		sb.WriteString(s.dialect.FieldExpr(f.Field, value))
		sb.WriteString(" ")
		sb.WriteString(sqlOp(f.Op))
		sb.WriteString(" ")
		sb.WriteString(b.add(s.dialect.BindValue(value)))
	}

	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}
	sb.WriteString(" ORDER BY ")
	if q.OrderBy != "" {
		sb.WriteString(s.dialect.OrderExpr(q.OrderBy) + " " + dir + ", ")
	}
	sb.WriteString("id " + dir)

	if q.Limit > 0 {
		sb.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
	}
	return sb.String(), b.args
}

func sqlOp(op store.Op) string {
	if op == store.OpEqual {
		return "="
	}
	return string(op)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row scanner) (*store.Document, error) {
	var (
		id, created, updated string
		data                 []byte
		version              int64
	)
	if err := row.Scan(&id, &data, &version, &created, &updated); err != nil {
		return nil, err
	}

	fields, err := store.DecodeFields(data)
	if err != nil {
		return nil, fmt.Errorf("id %s: %w", id, err)
	}

	doc := &store.Document{ID: id, Fields: fields, Version: version}
	if t, err := store.ParseTime(created); err == nil {
		doc.CreatedAt = t
	}
	if t, err := store.ParseTime(updated); err == nil {
		doc.UpdatedAt = t
	}
	return doc, nil
}

// DB exposes the underlying pool for health checks.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Name returns the store name.
func (s *SQLStore) Name() string {
	return s.name
}

// Close closes the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
