package sqldoc

import (
	"os"
	"strings"
	"testing"

	"money-ledger/pkg/store"
	"money-ledger/pkg/store/storetest"
)

func TestSQLiteStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.DocumentStore {
		s, err := Open(SQLiteConfig(":memory:"))
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		return s
	})
}

func TestPostgresStore_Contract(t *testing.T) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) store.DocumentStore {
		config := DefaultConfig()
		config.DSN = dsn
		s, err := Open(config)
		if err != nil {
			t.Skipf("Postgres not available: %v", err)
		}
		if _, err := s.DB().Exec("DELETE FROM documents"); err != nil {
			t.Fatalf("Cleanup failed: %v", err)
		}
		return s
	})
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "oracle"}); err == nil {
		t.Fatal("Expected error for unknown driver")
	}
}

func TestSQLStore_DefaultName(t *testing.T) {
	s, err := Open(SQLiteConfig(":memory:"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if s.Name() != "sqlite" {
		t.Errorf("Expected name 'sqlite', got '%s'", s.Name())
	}
}

func TestBuildQuery(t *testing.T) {
	q := store.Query{OrderBy: "date", Descending: true, Limit: 5}.
		Where("ownerId", store.OpEqual, "u1").
		Where("active", store.OpEqual, true).
		Where("amount", store.OpGreater, 10)

	tests := []struct {
		name     string
		dialect  Dialect
		contains []string
		args     []interface{}
	}{
		{
			name:    "postgres",
			dialect: Postgres{},
			contains: []string{
				"collection = $1",
				`(data->>'ownerId') COLLATE "C" = $2`,
				"(data->>'active')::boolean = $3",
				"(data->>'amount')::double precision > $4",
				"ORDER BY data->'date' DESC, id DESC LIMIT 5",
			},
			args: []interface{}{"transactions", "u1", true, float64(10)},
		},
		{
			name:    "sqlite",
			dialect: SQLite{},
			contains: []string{
				"collection = ?",
				"json_extract(data, '$.ownerId') = ?",
				"json_extract(data, '$.active') = ?",
				"json_extract(data, '$.amount') > ?",
				"ORDER BY json_extract(data, '$.date') DESC, id DESC LIMIT 5",
			},
			args: []interface{}{"transactions", "u1", 1, float64(10)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &SQLStore{dialect: tt.dialect}
			sql, args := s.buildQuery("transactions", q)
			for _, want := range tt.contains {
				if !strings.Contains(sql, want) {
					t.Errorf("Expected %q in %s", want, sql)
				}
			}
			if len(args) != len(tt.args) {
				t.Fatalf("Expected %d args, got %d", len(tt.args), len(args))
			}
			for i := range args {
				if args[i] != tt.args[i] {
					t.Errorf("Arg %d: expected %v (%T), got %v (%T)", i, tt.args[i], tt.args[i], args[i], args[i])
				}
			}
		})
	}
}
