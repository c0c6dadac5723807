// Package api exposes the ledger services over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"money-ledger/pkg/journal"
	"money-ledger/pkg/ledger"
	"money-ledger/pkg/logging"
	"money-ledger/pkg/registry"
	"money-ledger/pkg/transactions"
	"money-ledger/pkg/transfers"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// OwnerHeader carries the authenticated owner id. Verification happens upstream.
const OwnerHeader = "X-Owner-ID"

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	// Address to listen on (e.g., ":8080")
	Address string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// RateLimit is the sustained requests per second allowed per owner (0 disables limiting)
	RateLimit rate.Limit
	// RateBurst is the token bucket size per owner
	RateBurst int

	// Namespace prefixes the HTTP metric names
	Namespace string
}

// DefaultServerConfig returns a default configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:      ":8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		RateLimit:    20,
		RateBurst:    40,
		Namespace:    "ledger",
	}
}

// JournalReader lists the balance movements of one account.
type JournalReader interface {
	List(ctx context.Context, ownerID, accountID string) ([]journal.Entry, error)
}

// Services are the handlers' collaborators. Journal may be nil.
type Services struct {
	Ledger       *ledger.Ledger
	Transactions *transactions.Service
	Transfers    *transfers.Service
	Categories   *registry.Categories
	Tags         *registry.Tags
	Journal      JournalReader
}

// Server routes HTTP requests to the ledger services.
type Server struct {
	svc     Services
	config  ServerConfig
	logger  *logging.Logger
	router  *mux.Router
	server  *http.Server
	limiter *ownerLimiter
}

// NewServer builds the router. HTTP metrics are registered on reg and
// /metrics serves it; a nil reg uses the default Prometheus registry.
func NewServer(svc Services, config ServerConfig, reg *prometheus.Registry, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Global()
	}
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}

	hm := newHTTPMetrics(config.Namespace)
	if err := hm.register(registerer); err != nil {
		return nil, err
	}

	s := &Server{
		svc:     svc,
		config:  config,
		logger:  logger.Named("api"),
		limiter: newOwnerLimiter(config.RateLimit, config.RateBurst),
	}

	r := mux.NewRouter()
	r.Use(hm.middleware)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(s.requireOwner, s.rateLimit)
	s.accountRoutes(v1)
	s.transactionRoutes(v1)
	s.transferRoutes(v1)
	s.categoryRoutes(v1)
	s.tagRoutes(v1)

	s.router = r
	s.server = &http.Server{
		Addr:         config.Address,
		Handler:      r,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server in a goroutine.
func (s *Server) Start() error {
	go func() {
		s.logger.Info("api server listening", zap.String("address", s.config.Address))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}
