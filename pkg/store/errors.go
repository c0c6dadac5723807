package store

import (
	"errors"
	"fmt"
	"strings"
)

// Common store operation errors.
// These are the standard errors that store implementations should return.
var (
	// ErrNotFound is returned when a requested document does not exist
	ErrNotFound = errors.New("store: document not found")

	// ErrAlreadyExists is returned by Create when the id is taken
	ErrAlreadyExists = errors.New("store: document already exists")

	// ErrConflict is returned by Update when the stored version moved
	ErrConflict = errors.New("store: version conflict")

	// ErrInvalidID is returned when a document id or collection name is invalid
	ErrInvalidID = errors.New("store: invalid id")

	// ErrInvalidQuery is returned when a filter or ordering can't be expressed
	ErrInvalidQuery = errors.New("store: invalid query")

	// ErrUnavailable is returned when a store is temporarily unavailable
	ErrUnavailable = errors.New("store: unavailable")

	// ErrTimeout is returned when a store operation times out
	ErrTimeout = errors.New("store: operation timeout")

	// ErrCircuitOpen is returned when the circuit breaker is in open state
	ErrCircuitOpen = errors.New("store: circuit breaker open")

	// ErrClosed is returned when using a store after Close
	ErrClosed = errors.New("store: closed")
)

// IsNotFound checks if the given error indicates that a document was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if the given error indicates a version conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsAlreadyExists checks if the given error indicates a duplicate id.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsTimeout checks if the given error indicates a timeout occurred.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsCircuitOpen checks if the given error indicates the circuit breaker is open.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

// IsExpected reports whether err is an outcome callers are expected to handle
// (missing document, duplicate id, version conflict) rather than a store failure.
// Expected outcomes don't count against a store's health.
func IsExpected(err error) bool {
	return err == nil || IsNotFound(err) || IsConflict(err) || IsAlreadyExists(err) ||
		errors.Is(err, ErrInvalidID) || errors.Is(err, ErrInvalidQuery)
}

// ClassifyError returns a string classification of the error type for metrics.
func ClassifyError(err error) string {
	if err == nil {
		return "none"
	}

	switch {
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_breaker_open"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrInvalidID):
		return "invalid_id"
	case errors.Is(err, ErrInvalidQuery):
		return "invalid_query"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "connection", "connect", "dial"):
		return "connection"
	case containsAny(msg, "marshal", "unmarshal", "encode", "decode"):
		return "serialization"
	default:
		return "other"
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// WrapError wraps an error with the store name and operation.
func WrapError(err error, storeName string, operation string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("store %s %s: %w", storeName, operation, err)
}
