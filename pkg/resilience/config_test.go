package resilience

import (
	"testing"
	"time"
)

func TestDefaultTripPolicy(t *testing.T) {
	cb := DefaultResilientConfig().CircuitBreakerConfig

	tests := []struct {
		name   string
		counts Counts
		trip   bool
	}{
		{"few consecutive failures", Counts{Requests: 4, TotalFailures: 4, ConsecutiveFailures: 4}, false},
		{"five consecutive failures", Counts{Requests: 5, TotalFailures: 5, ConsecutiveFailures: 5}, true},
		{"low volume", Counts{Requests: 10, TotalFailures: 3}, false},
		{"below ratio", Counts{Requests: 100, TotalFailures: 14}, false},
		{"at ratio", Counts{Requests: 100, TotalFailures: 15}, true},
		{"no requests", Counts{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cb.shouldTrip(tt.counts); got != tt.trip {
				t.Errorf("shouldTrip(%+v) = %v, want %v", tt.counts, got, tt.trip)
			}
		})
	}
}

func TestRatioOnlyPolicy(t *testing.T) {
	cb := CircuitBreakerConfig{MinRequests: 10, FailureRatio: 0.5}

	if cb.shouldTrip(Counts{Requests: 9, TotalFailures: 9, ConsecutiveFailures: 9}) {
		t.Error("expected no trip below min requests")
	}
	if !cb.shouldTrip(Counts{Requests: 10, TotalFailures: 5}) {
		t.Error("expected trip at half failures")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ResilientConfig)
		wantErr bool
	}{
		{"defaults", func(*ResilientConfig) {}, false},
		{"negative timeout", func(c *ResilientConfig) { c.Timeout = -time.Second }, true},
		{"ratio above one", func(c *ResilientConfig) { c.CircuitBreakerConfig.FailureRatio = 1.5 }, true},
		{"never trips", func(c *ResilientConfig) {
			c.CircuitBreakerConfig.ConsecutiveFailures = 0
			c.CircuitBreakerConfig.FailureRatio = 0
		}, true},
		{"custom trip only", func(c *ResilientConfig) {
			c.CircuitBreakerConfig = CircuitBreakerConfig{ReadyToTrip: func(Counts) bool { return true }}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultResilientConfig()
			tt.mutate(&config)
			if err := config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResilientConfig_With(t *testing.T) {
	config := DefaultResilientConfig()

	newConfig := config.WithTimeout(2 * time.Second).WithCircuitBreakerTimeout(time.Second)
	if newConfig.Timeout != 2*time.Second {
		t.Errorf("Expected timeout 2s, got %v", newConfig.Timeout)
	}
	if newConfig.CircuitBreakerConfig.Timeout != time.Second {
		t.Errorf("Expected CB timeout 1s, got %v", newConfig.CircuitBreakerConfig.Timeout)
	}
	if config.Timeout != 5*time.Second {
		t.Error("Original config should be unchanged")
	}

	never := config.WithReadyToTrip(func(Counts) bool { return false })
	if never.CircuitBreakerConfig.shouldTrip(Counts{Requests: 100, TotalFailures: 100, ConsecutiveFailures: 100}) {
		t.Error("Expected custom ReadyToTrip to override the policy")
	}
}
