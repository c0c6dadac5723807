package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"money-ledger/pkg/logging"
	"money-ledger/pkg/metrics"
	"money-ledger/pkg/store"

	"go.uber.org/zap"
)

// Recorder accepts journal entries. Recording never blocks a balance
// mutation for long and never fails it.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Discard is a Recorder that drops every entry.
type Discard struct{}

// Record implements Recorder.
func (Discard) Record(context.Context, Entry) error { return nil }

// Config configures the journal writer.
type Config struct {
	// QueueSize is the bounded queue size (default: 1000)
	QueueSize int

	// Workers is the number of concurrent workers (default: 2)
	Workers int

	// MaxWaitTime is how long Record waits on a full queue before dropping.
	// Zero means the default of 10ms.
	MaxWaitTime time.Duration

	// ReportInterval is how often queue depth is reported to metrics (default: 5s)
	ReportInterval time.Duration
}

// DefaultConfig returns the writer defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize:      1000,
		Workers:        2,
		MaxWaitTime:    10 * time.Millisecond,
		ReportInterval: 5 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.QueueSize < 0 {
		return fmt.Errorf("journal: queue size must be >= 0, got %d", c.QueueSize)
	}
	if c.Workers < 0 {
		return fmt.Errorf("journal: workers must be >= 0, got %d", c.Workers)
	}
	if c.MaxWaitTime < 0 {
		return fmt.Errorf("journal: max wait time must be >= 0, got %v", c.MaxWaitTime)
	}
	return nil
}

// Writer appends entries to the journal collection from a worker pool
// behind a bounded queue, so a slow store never stalls balance updates.
type Writer struct {
	store   store.DocumentStore
	queue   chan Entry
	config  Config
	metrics metrics.MetricsCollector
	logger  *logging.Logger
	name    string
	now     func() time.Time

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	// Statistics (accessed atomically)
	pending       int64
	droppedWrites int64
	totalWrites   int64
	failedWrites  int64

	reportStop chan struct{}
	reportDone chan struct{}
}

// NewWriter starts a journal writer on s. It must be closed with Close.
func NewWriter(s store.DocumentStore, config Config, collector metrics.MetricsCollector, logger *logging.Logger) *Writer {
	defaults := DefaultConfig()
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.MaxWaitTime == 0 {
		config.MaxWaitTime = defaults.MaxWaitTime
	}
	if config.ReportInterval <= 0 {
		config.ReportInterval = defaults.ReportInterval
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	if logger == nil {
		logger = logging.Global().Named("journal")
	}

	w := &Writer{
		store:      s,
		queue:      make(chan Entry, config.QueueSize),
		config:     config,
		metrics:    collector,
		logger:     logger,
		name:       "journal",
		now:        time.Now,
		reportStop: make(chan struct{}),
		reportDone: make(chan struct{}),
	}

	for i := 0; i < config.Workers; i++ {
		w.wg.Add(1)
		go w.worker()
	}
	go w.reportMetrics()

	return w
}

// Record enqueues e. If the queue is full it waits up to MaxWaitTime and then
// drops the entry with ErrQueueFull.
func (w *Writer) Record(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWriterClosed
	}

	if e.ID == "" {
		e.ID = store.NewID()
	}
	if e.Time.IsZero() {
		e.Time = w.now()
	}

	timer := time.NewTimer(w.config.MaxWaitTime)
	defer timer.Stop()

	atomic.AddInt64(&w.pending, 1)
	select {
	case w.queue <- e:
		atomic.AddInt64(&w.totalWrites, 1)
		return nil
	case <-timer.C:
		atomic.AddInt64(&w.pending, -1)
		atomic.AddInt64(&w.droppedWrites, 1)
		w.metrics.RecordWriteDropped(w.name)
		w.logger.Warn("journal queue full, entry dropped",
			logging.Owner(e.OwnerID),
			logging.Account(e.AccountID),
			zap.String("record_id", e.RecordID),
		)
		return ErrQueueFull
	case <-ctx.Done():
		atomic.AddInt64(&w.pending, -1)
		return ctx.Err()
	}
}

func (w *Writer) worker() {
	defer w.wg.Done()

	for e := range w.queue {
		w.write(e)
	}
}

func (w *Writer) write(e Entry) {
	defer atomic.AddInt64(&w.pending, -1)

	start := time.Now()
	err := w.store.Create(context.Background(), Collection, e.document())
	w.metrics.RecordAsyncWrite(w.name, err == nil, time.Since(start))

	if err != nil {
		atomic.AddInt64(&w.failedWrites, 1)
		w.logger.Error("journal write failed",
			logging.Owner(e.OwnerID),
			logging.Account(e.AccountID),
			zap.String("record_id", e.RecordID),
			zap.Error(err),
		)
	}
}

// Flush waits until every accepted entry has been written or timeout passes.
func (w *Writer) Flush(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		if atomic.LoadInt64(&w.pending) == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrFlushTimeout
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Close stops accepting entries, writes everything still queued and waits
// for the workers to exit. Calling Close twice is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	close(w.reportStop)
	<-w.reportDone

	w.wg.Wait()
	return nil
}

func (w *Writer) reportMetrics() {
	defer close(w.reportDone)

	ticker := time.NewTicker(w.config.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.metrics.RecordQueueDepth(w.name, len(w.queue))
		case <-w.reportStop:
			return
		}
	}
}

// Stats returns current statistics about the writer.
func (w *Writer) Stats() Stats {
	return Stats{
		QueueDepth:    len(w.queue),
		Pending:       atomic.LoadInt64(&w.pending),
		DroppedWrites: atomic.LoadInt64(&w.droppedWrites),
		TotalWrites:   atomic.LoadInt64(&w.totalWrites),
		FailedWrites:  atomic.LoadInt64(&w.failedWrites),
	}
}

// List returns an account's journal, oldest first.
func (w *Writer) List(ctx context.Context, ownerID, accountID string) ([]Entry, error) {
	return List(ctx, w.store, ownerID, accountID)
}

// List reads an account's journal from s, oldest first.
func List(ctx context.Context, s store.DocumentStore, ownerID, accountID string) ([]Entry, error) {
	if ownerID == "" {
		return nil, errors.New("journal: owner id is required")
	}

	q := store.Query{OrderBy: "time"}.
		Where("ownerId", store.OpEqual, ownerID).
		Where("accountId", store.OpEqual, accountID)

	docs, err := s.Query(ctx, Collection, q)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}

	entries := make([]Entry, 0, len(docs))
	for _, doc := range docs {
		e, err := entryFromDocument(doc)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
