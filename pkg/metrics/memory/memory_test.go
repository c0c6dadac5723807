package memory

import (
	"testing"
	"time"

	"money-ledger/pkg/metrics"
)

func TestStoreMetrics(t *testing.T) {
	mc := NewMemoryCollector()

	mc.RecordStoreOp("redis", "get", true, time.Millisecond)
	mc.RecordStoreOp("redis", "get", false, time.Millisecond)
	mc.RecordStoreOp("redis", "update", true, time.Millisecond)
	mc.RecordCacheLookup("redis", true)
	mc.RecordCacheLookup("redis", false)
	mc.RecordCacheLookup("redis", false)

	sm := mc.GetStoreMetrics("redis")
	if sm == nil {
		t.Fatal("expected store metrics")
	}
	if sm.Ops["get"] != 2 || sm.Ops["update"] != 1 {
		t.Errorf("unexpected ops %v", sm.Ops)
	}
	if sm.Errors["get"] != 1 {
		t.Errorf("expected 1 get error, got %d", sm.Errors["get"])
	}
	if sm.CacheHits != 1 || sm.CacheMisses != 2 {
		t.Errorf("expected 1 hit and 2 misses, got %d/%d", sm.CacheHits, sm.CacheMisses)
	}

	// returned copies are detached
	sm.Ops["get"] = 100
	if got := mc.GetStoreMetrics("redis").Ops["get"]; got != 2 {
		t.Errorf("expected copy, collector now reports %d", got)
	}
	if mc.GetStoreMetrics("missing") != nil {
		t.Error("expected nil for unknown store")
	}
}

func TestCircuitOpensCountTransitions(t *testing.T) {
	mc := NewMemoryCollector()

	states := []metrics.CircuitState{
		metrics.CircuitOpen,
		metrics.CircuitOpen,
		metrics.CircuitHalfOpen,
		metrics.CircuitOpen,
		metrics.CircuitClosed,
	}
	for _, s := range states {
		mc.RecordCircuitState("sql", s)
	}

	sm := mc.GetStoreMetrics("sql")
	if sm.CircuitOpens != 2 {
		t.Errorf("expected 2 opens, got %d", sm.CircuitOpens)
	}
	if sm.CircuitState != metrics.CircuitClosed {
		t.Errorf("expected closed, got %v", sm.CircuitState)
	}
}

func TestLedgerMetrics(t *testing.T) {
	mc := NewMemoryCollector()

	mc.RecordMutation("transfer", "create", "ok", time.Millisecond)
	mc.RecordMutation("transfer", "create", "validation", time.Millisecond)
	mc.RecordMutation("transfer", "create", "ok", time.Millisecond)
	mc.RecordCompensation("transfer_create", true)
	mc.RecordCompensation("transfer_create", false)
	mc.RecordConflict("accounts")
	mc.RecordConflict("accounts")

	outcomes := mc.MutationOutcomes("transfer", "create")
	if outcomes["ok"] != 2 || outcomes["validation"] != 1 {
		t.Errorf("unexpected outcomes %v", outcomes)
	}
	if got := mc.MutationOutcomes("transfer", "delete"); len(got) != 0 {
		t.Errorf("expected no outcomes, got %v", got)
	}
	if c := mc.Compensations("transfer_create"); c.Succeeded != 1 || c.Failed != 1 {
		t.Errorf("unexpected compensations %+v", c)
	}
	if got := mc.Conflicts("accounts"); got != 2 {
		t.Errorf("expected 2 conflicts, got %d", got)
	}
}

func TestWriterMetricsAndSnapshot(t *testing.T) {
	mc := NewMemoryCollector()

	mc.RecordQueueDepth("journal", 7)
	mc.RecordWriteDropped("journal")
	mc.RecordAsyncWrite("journal", true, time.Millisecond)
	mc.RecordAsyncWrite("journal", false, time.Millisecond)

	wm := mc.GetWriterMetrics("journal")
	if wm.QueueDepth != 7 || wm.DroppedWrites != 1 || wm.AsyncWrites != 2 || wm.AsyncErrors != 1 {
		t.Errorf("unexpected writer metrics %+v", wm)
	}

	snap := mc.Snapshot()
	if len(snap.Writers) != 1 || snap.Writers["journal"].AsyncWrites != 2 {
		t.Errorf("unexpected snapshot %+v", snap.Writers)
	}

	mc.Reset()
	if mc.GetWriterMetrics("journal") != nil {
		t.Error("expected reset to clear writers")
	}
	if len(mc.Snapshot().Writers) != 0 {
		t.Error("expected empty snapshot after reset")
	}
}
