package sqldoc

import (
	"fmt"
	"strconv"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect renders the parts of the documents table SQL that differ per database.
// Field names reaching a dialect have passed store.ValidateField.
type Dialect interface {
	// Name is used as the default store name
	Name() string
	// DriverName is the database/sql driver to open
	DriverName() string
	// Schema creates the documents table if missing
	Schema() []string
	// Placeholder returns the n-th (1-based) bind parameter
	Placeholder(n int) string
	// FieldExpr extracts a body field for comparison against a value of the given kind
	FieldExpr(field string, value interface{}) string
	// OrderExpr extracts a body field for ORDER BY
	OrderExpr(field string) string
	// BindValue converts a normalized filter value to a driver argument
	BindValue(value interface{}) interface{}
}

// Postgres stores bodies as JSONB and filters with ->> extraction.
type Postgres struct{}

func (Postgres) Name() string       { return "postgres" }
func (Postgres) DriverName() string { return "postgres" }

func (Postgres) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data JSONB NOT NULL,
			version BIGINT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (collection, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents (collection, (data->>'ownerId'))`,
	}
}

func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (Postgres) FieldExpr(field string, value interface{}) string {
	switch value.(type) {
	case float64:
		return fmt.Sprintf("(data->>'%s')::double precision", field)
	case bool:
		return fmt.Sprintf("(data->>'%s')::boolean", field)
	}
	return fmt.Sprintf(`(data->>'%s') COLLATE "C"`, field)
}

func (Postgres) OrderExpr(field string) string {
	return fmt.Sprintf("data->'%s'", field)
}

func (Postgres) BindValue(value interface{}) interface{} { return value }

// SQLite stores bodies as JSON text and filters with json_extract.
type SQLite struct{}

func (SQLite) Name() string       { return "sqlite" }
func (SQLite) DriverName() string { return "sqlite" }

func (SQLite) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data TEXT NOT NULL,
			version INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (collection, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents (collection, json_extract(data, '$.ownerId'))`,
	}
}

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) FieldExpr(field string, _ interface{}) string {
	return fmt.Sprintf("json_extract(data, '$.%s')", field)
}

func (SQLite) OrderExpr(field string) string {
	return fmt.Sprintf("json_extract(data, '$.%s')", field)
}

// BindValue maps booleans to the 0/1 integers json_extract yields.
func (SQLite) BindValue(value interface{}) interface{} {
	if b, ok := value.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return value
}

// DialectFor returns the dialect registered under driver.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "postgresql":
		return Postgres{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	}
	return nil, fmt.Errorf("sqldoc: unsupported driver %q", driver)
}
