package resilience

import (
	"context"
	"errors"
	"time"

	"money-ledger/pkg/logging"
	"money-ledger/pkg/metrics"
	"money-ledger/pkg/store"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ResilientStore wraps a DocumentStore with circuit breaker and timeout
// protection and records per-operation metrics.
type ResilientStore struct {
	store   store.DocumentStore
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	metrics metrics.MetricsCollector
	logger  *logging.Logger
}

// NewResilientStore wraps s with the given config and no metrics.
func NewResilientStore(s store.DocumentStore, config ResilientConfig) *ResilientStore {
	return NewResilientStoreWithMetrics(s, config, metrics.NoOpCollector{})
}

// NewResilientStoreWithMetrics wraps s and reports to metricsCollector.
func NewResilientStoreWithMetrics(s store.DocumentStore, config ResilientConfig, metricsCollector metrics.MetricsCollector) *ResilientStore {
	if metricsCollector == nil {
		metricsCollector = metrics.NoOpCollector{}
	}
	logger := logging.Global().Named("resilience").With(logging.Store(s.Name()))

	rs := &ResilientStore{
		store:   s,
		timeout: config.Timeout,
		metrics: metricsCollector,
		logger:  logger,
	}

	logger.Info("resilient store initialized",
		zap.Duration("timeout", config.Timeout),
		zap.Uint32("max_requests", config.CircuitBreakerConfig.MaxRequests),
		zap.Duration("circuit_interval", config.CircuitBreakerConfig.Interval),
		zap.Duration("circuit_timeout", config.CircuitBreakerConfig.Timeout),
	)

	settings := gobreaker.Settings{
		Name:        s.Name(),
		MaxRequests: config.CircuitBreakerConfig.MaxRequests,
		Interval:    config.CircuitBreakerConfig.Interval,
		Timeout:     config.CircuitBreakerConfig.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return config.CircuitBreakerConfig.shouldTrip(Counts{
				Requests:             counts.Requests,
				TotalSuccesses:       counts.TotalSuccesses,
				TotalFailures:        counts.TotalFailures,
				ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
				ConsecutiveFailures:  counts.ConsecutiveFailures,
			})
		},
		// Missing documents and version conflicts are answers, not outages
		IsSuccessful: store.IsExpected,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			rs.metrics.RecordCircuitState(name, toCircuitState(to))
		},
	}

	rs.cb = gobreaker.NewCircuitBreaker(settings)

	return rs
}

func toCircuitState(s gobreaker.State) metrics.CircuitState {
	switch s {
	case gobreaker.StateHalfOpen:
		return metrics.CircuitHalfOpen
	case gobreaker.StateOpen:
		return metrics.CircuitOpen
	default:
		return metrics.CircuitClosed
	}
}

// Name returns the name of the underlying store.
func (rs *ResilientStore) Name() string {
	return rs.store.Name()
}

// State returns the current circuit breaker state.
func (rs *ResilientStore) State() metrics.CircuitState {
	return toCircuitState(rs.cb.State())
}

// execute runs fn through the breaker under the configured timeout and
// translates breaker and deadline errors into store errors.
func (rs *ResilientStore) execute(ctx context.Context, op, collection string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	start := time.Now()

	if rs.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rs.timeout)
		defer cancel()
	}

	result, err := rs.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})

	duration := time.Since(start)
	rs.metrics.RecordStoreOp(rs.store.Name(), op, store.IsExpected(err), duration)

	if err == nil {
		return result, nil
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		rs.logger.Warn("circuit breaker open - request rejected",
			zap.String("operation", op),
			logging.Collection(collection),
		)
		return nil, store.ErrCircuitOpen
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		rs.logger.Warn("operation timeout",
			zap.String("operation", op),
			logging.Collection(collection),
			zap.Duration("timeout", rs.timeout),
			zap.Duration("elapsed", duration),
		)
		return nil, store.ErrTimeout
	case store.IsConflict(err):
		rs.metrics.RecordConflict(collection)
		return nil, err
	case store.IsExpected(err):
		return nil, err
	}

	rs.logger.Error("store operation failed",
		zap.String("operation", op),
		logging.Collection(collection),
		zap.Duration("duration", duration),
		zap.Error(err),
	)
	return nil, err
}

// Get retrieves a document with timeout and circuit breaker protection.
func (rs *ResilientStore) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	result, err := rs.execute(ctx, "get", collection, func(ctx context.Context) (interface{}, error) {
		return rs.store.Get(ctx, collection, id)
	})
	if err != nil {
		return nil, err
	}
	return result.(*store.Document), nil
}

// Create stores a new document with timeout and circuit breaker protection.
func (rs *ResilientStore) Create(ctx context.Context, collection string, doc *store.Document) error {
	_, err := rs.execute(ctx, "create", collection, func(ctx context.Context) (interface{}, error) {
		return nil, rs.store.Create(ctx, collection, doc)
	})
	return err
}

// Update performs a conditional update with timeout and circuit breaker protection.
func (rs *ResilientStore) Update(ctx context.Context, collection string, doc *store.Document) error {
	_, err := rs.execute(ctx, "update", collection, func(ctx context.Context) (interface{}, error) {
		return nil, rs.store.Update(ctx, collection, doc)
	})
	return err
}

// Delete removes a document with timeout and circuit breaker protection.
func (rs *ResilientStore) Delete(ctx context.Context, collection, id string) error {
	_, err := rs.execute(ctx, "delete", collection, func(ctx context.Context) (interface{}, error) {
		return nil, rs.store.Delete(ctx, collection, id)
	})
	return err
}

// Query runs a query with timeout and circuit breaker protection.
func (rs *ResilientStore) Query(ctx context.Context, collection string, q store.Query) ([]*store.Document, error) {
	result, err := rs.execute(ctx, "query", collection, func(ctx context.Context) (interface{}, error) {
		return rs.store.Query(ctx, collection, q)
	})
	if err != nil {
		return nil, err
	}
	docs, _ := result.([]*store.Document)
	return docs, nil
}

// Close closes the underlying store.
func (rs *ResilientStore) Close() error {
	return rs.store.Close()
}
