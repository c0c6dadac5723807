package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Backend != backendMemory {
		t.Errorf("expected memory backend, got %q", cfg.Backend)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("expected :8080, got %q", cfg.Server.Address)
	}
	if cfg.CacheTTL != 0 {
		t.Errorf("expected cache disabled, got %v", cfg.CacheTTL)
	}
	if cfg.StoreTimeout != 5*time.Second {
		t.Errorf("expected 5s store timeout, got %v", cfg.StoreTimeout)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_DB", "money")
	t.Setenv("STORE_CACHE_TTL", "45s")
	t.Setenv("LEDGER_MAX_RETRIES", "25")
	t.Setenv("JOURNAL_QUEUE_SIZE", "64")
	t.Setenv("JOURNAL_WORKERS", "4")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "10")
	t.Setenv("PORT", "9090")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Backend != backendPostgres {
		t.Errorf("expected postgres, got %q", cfg.Backend)
	}
	if !strings.Contains(cfg.SQL.DSN, "host=db.internal") || !strings.Contains(cfg.SQL.DSN, "dbname=money") {
		t.Errorf("unexpected DSN %q", cfg.SQL.DSN)
	}
	if cfg.CacheTTL != 45*time.Second {
		t.Errorf("expected 45s, got %v", cfg.CacheTTL)
	}
	if cfg.Repository.MaxRetries != 25 {
		t.Errorf("expected 25 retries, got %d", cfg.Repository.MaxRetries)
	}
	if cfg.Journal.QueueSize != 64 || cfg.Journal.Workers != 4 {
		t.Errorf("unexpected journal config %+v", cfg.Journal)
	}
	if cfg.Server.RateLimit != rate.Limit(2.5) || cfg.Server.RateBurst != 10 {
		t.Errorf("unexpected rate limit %v/%d", cfg.Server.RateLimit, cfg.Server.RateBurst)
	}
	if cfg.Server.Address != ":9090" {
		t.Errorf("expected :9090, got %q", cfg.Server.Address)
	}
}

func TestLoadConfigSQLite(t *testing.T) {
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("SQLITE_PATH", "file:test.db")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.SQL.Driver != "sqlite" || cfg.SQL.DSN != "file:test.db" {
		t.Errorf("unexpected sql config %+v", cfg.SQL)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		wants string
	}{
		{"unknown backend", map[string]string{"STORE_BACKEND": "mongo"}, "unknown STORE_BACKEND"},
		{"firestore without project", map[string]string{"STORE_BACKEND": "firestore"}, "FIRESTORE_PROJECT_ID"},
		{"bad integer", map[string]string{"JOURNAL_WORKERS": "many"}, "JOURNAL_WORKERS"},
		{"bad duration", map[string]string{"STORE_CACHE_TTL": "soon"}, "STORE_CACHE_TTL"},
		{"negative retries", map[string]string{"LEDGER_MAX_RETRIES": "-1"}, "max retries"},
		{"negative rate", map[string]string{"RATE_LIMIT_RPS": "-3"}, "rate limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := loadConfig()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wants) {
				t.Errorf("expected error mentioning %q, got %v", tt.wants, err)
			}
		})
	}
}

func TestOpenStoreMemory(t *testing.T) {
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	cfg.CacheTTL = time.Minute

	s, err := openStore(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("openStore failed: %v", err)
	}
	defer s.Close()

	if s.Name() == "" {
		t.Error("expected a store name")
	}
}
