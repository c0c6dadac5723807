package metrics

import (
	"time"
)

// MetricsCollector defines the interface for collecting ledger metrics.
// Implementations can export metrics to various backends (Prometheus, in-memory, etc.).
type MetricsCollector interface {
	// Store operations
	RecordStoreOp(store, operation string, success bool, duration time.Duration)
	RecordConflict(collection string)
	RecordCacheLookup(store string, hit bool)

	// Circuit breaker
	RecordCircuitState(store string, state CircuitState)

	// Journal writer
	RecordQueueDepth(writer string, depth int)
	RecordWriteDropped(writer string)
	RecordAsyncWrite(writer string, success bool, duration time.Duration)

	// Ledger-level
	RecordMutation(entity, operation, outcome string, duration time.Duration)
	RecordCompensation(saga string, success bool)
}

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed means the circuit breaker is allowing requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit breaker is blocking requests.
	CircuitOpen
	// CircuitHalfOpen means the circuit breaker is testing if the store has recovered.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpCollector is a no-op implementation of MetricsCollector.
// It's used as the default collector when metrics are not needed.
type NoOpCollector struct{}

// RecordStoreOp does nothing.
func (NoOpCollector) RecordStoreOp(store, operation string, success bool, duration time.Duration) {}

// RecordConflict does nothing.
func (NoOpCollector) RecordConflict(collection string) {}

// RecordCacheLookup does nothing.
func (NoOpCollector) RecordCacheLookup(store string, hit bool) {}

// RecordCircuitState does nothing.
func (NoOpCollector) RecordCircuitState(store string, state CircuitState) {}

// RecordQueueDepth does nothing.
func (NoOpCollector) RecordQueueDepth(writer string, depth int) {}

// RecordWriteDropped does nothing.
func (NoOpCollector) RecordWriteDropped(writer string) {}

// RecordAsyncWrite does nothing.
func (NoOpCollector) RecordAsyncWrite(writer string, success bool, duration time.Duration) {}

// RecordMutation does nothing.
func (NoOpCollector) RecordMutation(entity, operation, outcome string, duration time.Duration) {}

// RecordCompensation does nothing.
func (NoOpCollector) RecordCompensation(saga string, success bool) {}
