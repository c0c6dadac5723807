package memory

import (
	"sync"
	"time"

	"money-ledger/pkg/metrics"
)

// MemoryCollector implements MetricsCollector for in-memory testing.
type MemoryCollector struct {
	mu sync.RWMutex

	// Per-store metrics
	storeMetrics map[string]*StoreMetrics

	// Per-writer metrics
	writerMetrics map[string]*WriterMetrics

	// Ledger-level metrics keyed by "entity/operation"
	mutations map[string]*MutationMetrics

	conflicts     map[string]int64
	compensations map[string]*CompensationMetrics
}

// StoreMetrics holds metrics for a single document store.
type StoreMetrics struct {
	// Operation counts by operation name
	Ops    map[string]int64
	Errors map[string]int64

	// Read cache
	CacheHits   int64
	CacheMisses int64

	// Circuit breaker
	CircuitState metrics.CircuitState
	CircuitOpens int64

	// Latencies (simple stats)
	Latencies []time.Duration
}

// WriterMetrics holds metrics for one async writer.
type WriterMetrics struct {
	QueueDepth    int
	DroppedWrites int64
	AsyncWrites   int64
	AsyncErrors   int64
	Latencies     []time.Duration
}

// MutationMetrics holds outcome counts for one entity operation.
type MutationMetrics struct {
	Outcomes  map[string]int64
	Latencies []time.Duration
}

// CompensationMetrics counts saga compensations.
type CompensationMetrics struct {
	Succeeded int64
	Failed    int64
}

// NewMemoryCollector creates a new in-memory metrics collector.
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{
		storeMetrics:  make(map[string]*StoreMetrics),
		writerMetrics: make(map[string]*WriterMetrics),
		mutations:     make(map[string]*MutationMetrics),
		conflicts:     make(map[string]int64),
		compensations: make(map[string]*CompensationMetrics),
	}
}

// storeLocked returns the StoreMetrics for the given store, creating it if needed.
// Callers must hold mc.mu.
func (mc *MemoryCollector) storeLocked(name string) *StoreMetrics {
	sm, exists := mc.storeMetrics[name]
	if !exists {
		sm = &StoreMetrics{
			Ops:    make(map[string]int64),
			Errors: make(map[string]int64),
		}
		mc.storeMetrics[name] = sm
	}
	return sm
}

func (mc *MemoryCollector) writerLocked(name string) *WriterMetrics {
	wm, exists := mc.writerMetrics[name]
	if !exists {
		wm = &WriterMetrics{}
		mc.writerMetrics[name] = wm
	}
	return wm
}

// RecordStoreOp records a store operation.
func (mc *MemoryCollector) RecordStoreOp(store, operation string, success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	sm := mc.storeLocked(store)
	sm.Ops[operation]++
	if !success {
		sm.Errors[operation]++
	}
	sm.Latencies = append(sm.Latencies, duration)
}

// RecordConflict records a version conflict on a collection.
func (mc *MemoryCollector) RecordConflict(collection string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.conflicts[collection]++
}

// RecordCacheLookup records a read-cache hit or miss.
func (mc *MemoryCollector) RecordCacheLookup(store string, hit bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	sm := mc.storeLocked(store)
	if hit {
		sm.CacheHits++
	} else {
		sm.CacheMisses++
	}
}

// RecordCircuitState records the current circuit breaker state.
func (mc *MemoryCollector) RecordCircuitState(store string, state metrics.CircuitState) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	sm := mc.storeLocked(store)
	oldState := sm.CircuitState
	sm.CircuitState = state

	// Count transitions to open
	if oldState != metrics.CircuitOpen && state == metrics.CircuitOpen {
		sm.CircuitOpens++
	}
}

// RecordQueueDepth records the current async writer queue depth.
func (mc *MemoryCollector) RecordQueueDepth(writer string, depth int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.writerLocked(writer).QueueDepth = depth
}

// RecordWriteDropped records a dropped async write.
func (mc *MemoryCollector) RecordWriteDropped(writer string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.writerLocked(writer).DroppedWrites++
}

// RecordAsyncWrite records an async write operation.
func (mc *MemoryCollector) RecordAsyncWrite(writer string, success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	wm := mc.writerLocked(writer)
	wm.AsyncWrites++
	if !success {
		wm.AsyncErrors++
	}
	wm.Latencies = append(wm.Latencies, duration)
}

// RecordMutation records the outcome of a ledger mutation.
func (mc *MemoryCollector) RecordMutation(entity, operation, outcome string, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := entity + "/" + operation
	mm, exists := mc.mutations[key]
	if !exists {
		mm = &MutationMetrics{Outcomes: make(map[string]int64)}
		mc.mutations[key] = mm
	}
	mm.Outcomes[outcome]++
	mm.Latencies = append(mm.Latencies, duration)
}

// RecordCompensation records a saga compensation run.
func (mc *MemoryCollector) RecordCompensation(saga string, success bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	cm, exists := mc.compensations[saga]
	if !exists {
		cm = &CompensationMetrics{}
		mc.compensations[saga] = cm
	}
	if success {
		cm.Succeeded++
	} else {
		cm.Failed++
	}
}

// Snapshot is a copy of the collected metrics.
type Snapshot struct {
	Stores        map[string]StoreMetrics
	Writers       map[string]WriterMetrics
	Mutations     map[string]MutationMetrics
	Conflicts     map[string]int64
	Compensations map[string]CompensationMetrics
}

// Snapshot returns a copy of the current metrics state.
func (mc *MemoryCollector) Snapshot() Snapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	snapshot := Snapshot{
		Stores:        make(map[string]StoreMetrics, len(mc.storeMetrics)),
		Writers:       make(map[string]WriterMetrics, len(mc.writerMetrics)),
		Mutations:     make(map[string]MutationMetrics, len(mc.mutations)),
		Conflicts:     make(map[string]int64, len(mc.conflicts)),
		Compensations: make(map[string]CompensationMetrics, len(mc.compensations)),
	}

	for name, sm := range mc.storeMetrics {
		cp := *sm
		cp.Ops = copyCounts(sm.Ops)
		cp.Errors = copyCounts(sm.Errors)
		cp.Latencies = append([]time.Duration(nil), sm.Latencies...)
		snapshot.Stores[name] = cp
	}
	for name, wm := range mc.writerMetrics {
		cp := *wm
		cp.Latencies = append([]time.Duration(nil), wm.Latencies...)
		snapshot.Writers[name] = cp
	}
	for key, mm := range mc.mutations {
		snapshot.Mutations[key] = MutationMetrics{
			Outcomes:  copyCounts(mm.Outcomes),
			Latencies: append([]time.Duration(nil), mm.Latencies...),
		}
	}
	for collection, n := range mc.conflicts {
		snapshot.Conflicts[collection] = n
	}
	for saga, cm := range mc.compensations {
		snapshot.Compensations[saga] = *cm
	}

	return snapshot
}

// Reset clears all collected metrics.
func (mc *MemoryCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.storeMetrics = make(map[string]*StoreMetrics)
	mc.writerMetrics = make(map[string]*WriterMetrics)
	mc.mutations = make(map[string]*MutationMetrics)
	mc.conflicts = make(map[string]int64)
	mc.compensations = make(map[string]*CompensationMetrics)
}

// MutationOutcomes returns the outcome counts for an entity operation.
func (mc *MemoryCollector) MutationOutcomes(entity, operation string) map[string]int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if mm, exists := mc.mutations[entity+"/"+operation]; exists {
		return copyCounts(mm.Outcomes)
	}
	return map[string]int64{}
}

// Compensations returns the compensation counts for a saga.
func (mc *MemoryCollector) Compensations(saga string) CompensationMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if cm, exists := mc.compensations[saga]; exists {
		return *cm
	}
	return CompensationMetrics{}
}

// Conflicts returns the number of version conflicts seen for a collection.
func (mc *MemoryCollector) Conflicts(collection string) int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return mc.conflicts[collection]
}

// GetStoreMetrics returns a copy of the metrics for a specific store.
func (mc *MemoryCollector) GetStoreMetrics(store string) *StoreMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if sm, exists := mc.storeMetrics[store]; exists {
		cp := *sm
		cp.Ops = copyCounts(sm.Ops)
		cp.Errors = copyCounts(sm.Errors)
		return &cp
	}
	return nil
}

// GetWriterMetrics returns a copy of the metrics for a specific writer.
func (mc *MemoryCollector) GetWriterMetrics(writer string) *WriterMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if wm, exists := mc.writerMetrics[writer]; exists {
		cp := *wm
		return &cp
	}
	return nil
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
