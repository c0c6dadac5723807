package prometheus

import (
	"testing"
	"time"

	"money-ledger/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegister(t *testing.T) {
	pc := NewPrometheusCollector("ledger_test")
	reg := prometheus.NewRegistry()

	if err := pc.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := pc.Register(reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestCounters(t *testing.T) {
	pc := NewPrometheusCollector("ledger_test")

	pc.RecordStoreOp("redis", "get", true, time.Millisecond)
	pc.RecordStoreOp("redis", "get", false, time.Millisecond)
	pc.RecordConflict("accounts")
	pc.RecordCacheLookup("redis", true)
	pc.RecordCacheLookup("redis", false)
	pc.RecordWriteDropped("journal")
	pc.RecordAsyncWrite("journal", false, time.Millisecond)
	pc.RecordMutation("transaction", "create", "ok", time.Millisecond)
	pc.RecordCompensation("transaction_create", true)

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"store ops", pc.storeOps.WithLabelValues("redis", "get"), 2},
		{"store errors", pc.storeErrors.WithLabelValues("redis", "get"), 1},
		{"conflicts", pc.conflicts.WithLabelValues("accounts"), 1},
		{"cache hits", pc.cacheLookups.WithLabelValues("redis", "hit"), 1},
		{"cache misses", pc.cacheLookups.WithLabelValues("redis", "miss"), 1},
		{"dropped", pc.droppedWrites.WithLabelValues("journal"), 1},
		{"failed writes", pc.asyncWrites.WithLabelValues("journal", "error"), 1},
		{"mutations", pc.mutations.WithLabelValues("transaction", "create", "ok"), 1},
		{"compensations", pc.compensations.WithLabelValues("transaction_create", "success"), 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestCircuitState(t *testing.T) {
	pc := NewPrometheusCollector("ledger_test")

	pc.RecordCircuitState("sql", metrics.CircuitOpen)
	pc.RecordCircuitState("sql", metrics.CircuitHalfOpen)

	if got := testutil.ToFloat64(pc.circuitState.WithLabelValues("sql")); got != float64(metrics.CircuitHalfOpen) {
		t.Errorf("expected half-open gauge, got %v", got)
	}
	if got := testutil.ToFloat64(pc.circuitOpens.WithLabelValues("sql")); got != 1 {
		t.Errorf("expected 1 open, got %v", got)
	}

	pc.RecordQueueDepth("journal", 12)
	if got := testutil.ToFloat64(pc.queueDepth.WithLabelValues("journal")); got != 12 {
		t.Errorf("expected depth 12, got %v", got)
	}
}
