// Command ledgerd serves the money ledger over HTTP.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"money-ledger/pkg/api"
	"money-ledger/pkg/journal"
	"money-ledger/pkg/ledger"
	"money-ledger/pkg/logging"
	"money-ledger/pkg/metrics"
	promcollector "money-ledger/pkg/metrics/prometheus"
	"money-ledger/pkg/registry"
	"money-ledger/pkg/repository"
	"money-ledger/pkg/resilience"
	"money-ledger/pkg/store"
	"money-ledger/pkg/store/cached"
	"money-ledger/pkg/store/firestore"
	"money-ledger/pkg/store/memory"
	"money-ledger/pkg/store/redis"
	"money-ledger/pkg/store/sqldoc"
	"money-ledger/pkg/transactions"
	"money-ledger/pkg/transfers"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	logger, err := logging.NewLoggerFromEnv()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()
	logging.SetGlobal(logger)

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := promcollector.NewPrometheusCollector("ledger")
	if err := collector.Register(reg); err != nil {
		logger.Fatal("failed to register metrics", zap.Error(err))
	}

	ctx := context.Background()
	docs, err := openStore(ctx, cfg, collector)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("backend", cfg.Backend), zap.Error(err))
	}
	logger.Info("store ready", logging.Store(docs.Name()), zap.String("backend", cfg.Backend))

	writer := journal.NewWriter(docs, cfg.Journal, collector, logger.Named("journal"))

	repos := repository.New(docs, cfg.Repository)
	l := ledger.New(repos, ledger.Options{Journal: writer, Metrics: collector, Logger: logger.Named("ledger")})
	svc := api.Services{
		Ledger:       l,
		Transactions: transactions.New(repos, l, transactions.Options{Metrics: collector, Logger: logger.Named("transactions")}),
		Transfers:    transfers.New(repos, l, transfers.Options{Metrics: collector, Logger: logger.Named("transfers")}),
		Categories:   registry.NewCategories(repos, registry.Options{Metrics: collector, Logger: logger.Named("categories")}),
		Tags:         registry.NewTags(repos, registry.Options{Metrics: collector, Logger: logger.Named("tags")}),
		Journal:      writer,
	}

	server, err := api.NewServer(svc, cfg.Server, reg, logger)
	if err != nil {
		logger.Fatal("failed to build api server", zap.Error(err))
	}
	if err := server.Start(); err != nil {
		logger.Fatal("failed to start api server", zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("api server shutdown failed", zap.Error(err))
	}
	// drain pending journal entries before the store goes away
	if err := writer.Close(); err != nil {
		logger.Error("journal close failed", zap.Error(err))
	}
	if err := docs.Close(); err != nil {
		logger.Error("store close failed", zap.Error(err))
	}
	logger.Info("stopped")
}

// openStore builds the configured backend, optionally cached, always behind
// the resilience layer.
func openStore(ctx context.Context, cfg Config, collector metrics.MetricsCollector) (store.DocumentStore, error) {
	var (
		base store.DocumentStore
		err  error
	)
	switch cfg.Backend {
	case backendMemory:
		base = memory.NewMemoryStore(memory.MemoryStoreConfig{Name: "memory"})
	case backendRedis:
		base, err = redis.NewRedisStore(cfg.Redis)
	case backendPostgres, backendSQLite:
		base, err = sqldoc.Open(cfg.SQL)
	case backendFirestore:
		base, err = firestore.New(ctx, firestore.Config{ProjectID: cfg.FirestoreProjectID})
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheTTL > 0 {
		base = cached.New(base, cached.Config{TTL: cfg.CacheTTL, CleanupInterval: 2 * cfg.CacheTTL}, collector)
	}

	rc := resilience.DefaultResilientConfig().WithTimeout(cfg.StoreTimeout)
	return resilience.NewResilientStoreWithMetrics(base, rc, collector), nil
}
