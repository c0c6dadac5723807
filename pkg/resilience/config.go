package resilience

import (
	"fmt"
	"time"
)

// ResilientConfig configures the timeout and circuit breaker around a store.
type ResilientConfig struct {
	// Timeout bounds every store call. Zero disables the timeout.
	Timeout time.Duration

	CircuitBreakerConfig CircuitBreakerConfig
}

// CircuitBreakerConfig configures when the breaker opens and how it recovers.
type CircuitBreakerConfig struct {
	// MaxRequests may pass while half-open
	MaxRequests uint32
	// Interval clears the closed-state counts; 0 never clears
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing
	Timeout time.Duration

	// ConsecutiveFailures trips the breaker regardless of volume
	ConsecutiveFailures uint32
	// MinRequests is the volume below which FailureRatio is ignored
	MinRequests uint32
	// FailureRatio trips once failures / requests reaches it (0 disables)
	FailureRatio float64

	// ReadyToTrip replaces the policy above when set
	ReadyToTrip func(counts Counts) bool
}

// Counts holds the numbers of requests and their successes/failures.
// Not-found, conflict and validation outcomes count as successes.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// DefaultResilientConfig returns the defaults used by ledgerd.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		Timeout: 5 * time.Second,
		CircuitBreakerConfig: CircuitBreakerConfig{
			MaxRequests:         5,
			Interval:            60 * time.Second,
			Timeout:             30 * time.Second,
			ConsecutiveFailures: 5,
			MinRequests:         20,
			FailureRatio:        0.15,
		},
	}
}

// Validate checks the configuration.
func (c ResilientConfig) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("resilience: timeout must be >= 0, got %v", c.Timeout)
	}
	cb := c.CircuitBreakerConfig
	if cb.FailureRatio < 0 || cb.FailureRatio > 1 {
		return fmt.Errorf("resilience: failure ratio must be within [0, 1], got %v", cb.FailureRatio)
	}
	if cb.ReadyToTrip == nil && cb.ConsecutiveFailures == 0 && cb.FailureRatio == 0 {
		return fmt.Errorf("resilience: circuit breaker can never trip")
	}
	return nil
}

// shouldTrip applies the configured policy.
func (c CircuitBreakerConfig) shouldTrip(counts Counts) bool {
	if c.ReadyToTrip != nil {
		return c.ReadyToTrip(counts)
	}
	if c.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= c.ConsecutiveFailures {
		return true
	}
	if c.FailureRatio <= 0 || counts.Requests == 0 || counts.Requests < c.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
}

// WithTimeout returns a copy with the per-call timeout replaced.
func (c ResilientConfig) WithTimeout(timeout time.Duration) ResilientConfig {
	c.Timeout = timeout
	return c
}

// WithCircuitBreakerTimeout returns a copy with the open-state duration replaced.
func (c ResilientConfig) WithCircuitBreakerTimeout(timeout time.Duration) ResilientConfig {
	c.CircuitBreakerConfig.Timeout = timeout
	return c
}

// WithReadyToTrip returns a copy that trips on fn instead of the ratio policy.
func (c ResilientConfig) WithReadyToTrip(fn func(counts Counts) bool) ResilientConfig {
	c.CircuitBreakerConfig.ReadyToTrip = fn
	return c
}
