package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"money-ledger/pkg/api"
	"money-ledger/pkg/journal"
	"money-ledger/pkg/repository"
	"money-ledger/pkg/store/redis"
	"money-ledger/pkg/store/sqldoc"

	"golang.org/x/time/rate"
)

// Backends accepted by STORE_BACKEND.
const (
	backendMemory    = "memory"
	backendRedis     = "redis"
	backendPostgres  = "postgres"
	backendSQLite    = "sqlite"
	backendFirestore = "firestore"
)

// Config is everything ledgerd reads from the environment.
type Config struct {
	Backend string

	Redis              redis.RedisStoreConfig
	SQL                sqldoc.Config
	FirestoreProjectID string

	// CacheTTL enables the read-through document cache when positive
	CacheTTL     time.Duration
	StoreTimeout time.Duration

	Repository repository.Config
	Journal    journal.Config
	Server     api.ServerConfig
}

// loadConfig reads the environment. Unset variables keep their defaults.
func loadConfig() (Config, error) {
	var errs []string
	env := envReader{errs: &errs}

	cfg := Config{
		Backend:            strings.ToLower(env.str("STORE_BACKEND", backendMemory)),
		FirestoreProjectID: env.str("FIRESTORE_PROJECT_ID", ""),
		CacheTTL:           env.duration("STORE_CACHE_TTL", 0),
		StoreTimeout:       env.duration("STORE_TIMEOUT", 5*time.Second),
		Repository:         repository.DefaultConfig(),
		Journal:            journal.DefaultConfig(),
		Server:             api.DefaultServerConfig(),
	}

	cfg.Redis = redis.DefaultRedisStoreConfig()
	cfg.Redis.Addr = env.str("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = env.str("REDIS_PASSWORD", "")
	cfg.Redis.KeyPrefix = env.str("REDIS_KEY_PREFIX", cfg.Redis.KeyPrefix)

	switch cfg.Backend {
	case backendSQLite:
		cfg.SQL = sqldoc.SQLiteConfig(env.str("SQLITE_PATH", "file:ledger.db"))
	default:
		cfg.SQL = sqldoc.DefaultConfig()
		cfg.SQL.DSN = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			env.str("POSTGRES_HOST", "localhost"),
			env.str("POSTGRES_PORT", "5432"),
			env.str("POSTGRES_USER", "postgres"),
			env.str("POSTGRES_PASSWORD", "postgres"),
			env.str("POSTGRES_DB", "ledger"),
			env.str("POSTGRES_SSLMODE", "disable"),
		)
	}

	cfg.Repository.MaxRetries = env.int("LEDGER_MAX_RETRIES", cfg.Repository.MaxRetries)
	cfg.Journal.QueueSize = env.int("JOURNAL_QUEUE_SIZE", cfg.Journal.QueueSize)
	cfg.Journal.Workers = env.int("JOURNAL_WORKERS", cfg.Journal.Workers)
	cfg.Server.Address = ":" + env.str("PORT", "8080")
	cfg.Server.RateLimit = rate.Limit(env.float("RATE_LIMIT_RPS", float64(cfg.Server.RateLimit)))
	cfg.Server.RateBurst = env.int("RATE_LIMIT_BURST", cfg.Server.RateBurst)

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return cfg, cfg.Validate()
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Backend {
	case backendMemory, backendRedis, backendPostgres, backendSQLite:
	case backendFirestore:
		if c.FirestoreProjectID == "" {
			return fmt.Errorf("FIRESTORE_PROJECT_ID is required for the firestore backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Backend)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("STORE_CACHE_TTL must be >= 0")
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return fmt.Errorf("rate limit settings must be >= 0")
	}
	if err := c.Repository.Validate(); err != nil {
		return err
	}
	return c.Journal.Validate()
}

// envReader parses variables and collects every malformed one.
type envReader struct {
	errs *[]string
}

func (e envReader) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (e envReader) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Sprintf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func (e envReader) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Sprintf("%s: %q is not a number", key, v))
		return def
	}
	return f
}

func (e envReader) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Sprintf("%s: %q is not a duration", key, v))
		return def
	}
	return d
}
