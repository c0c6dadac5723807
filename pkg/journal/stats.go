package journal

import "errors"

// Stats provides statistics about journal writer operations.
type Stats struct {
	// QueueDepth is the current number of entries waiting to be written
	QueueDepth int

	// Pending counts queued plus in-flight entries
	Pending int64

	// DroppedWrites is the total number of entries dropped due to backpressure
	DroppedWrites int64

	// TotalWrites is the total number of entries accepted
	TotalWrites int64

	// FailedWrites is the total number of entries the store rejected
	FailedWrites int64
}

// Errors returned by journal writer operations.
var (
	// ErrQueueFull is returned when the queue stayed full for MaxWaitTime
	ErrQueueFull = errors.New("journal: queue full, entry dropped")

	// ErrWriterClosed is returned when recording to a closed writer
	ErrWriterClosed = errors.New("journal: writer is closed")

	// ErrFlushTimeout is returned when Flush times out waiting for the queue to drain
	ErrFlushTimeout = errors.New("journal: flush timeout exceeded")
)
