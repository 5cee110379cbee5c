package xlog4

import "time"

// Drop reasons reported to MetricsCollector.Dropped.
const (
	DropQueueFull    = "queue_full"
	DropShutdown     = "shutdown"
	DropDrainTimeout = "drain_timeout"
	DropAborted      = "enqueue_aborted"
)

// Reasons reported to MetricsCollector.Synchronous.
const (
	SyncPolicy    = "policy"
	SyncReentrant = "reentrant"
)

// MetricsCollector observes the dispatch core. Implementations must be
// concurrency-safe.
type MetricsCollector interface {
	Enqueued()
	Dropped(reason string)
	Synchronous(reason string)
	// Appended reports one appender call. d is zero unless the collector
	// asked for timings by implementing DurationObserver.
	Appended(appender string, level Level, d time.Duration, err error)
	ConsumerPanicked()
}

// DurationObserver is implemented by collectors that want appender timings.
type DurationObserver interface {
	ObservesDuration() bool
}

// QueueObserver is implemented by collectors that export queue occupancy.
// It is called each time an async configuration starts.
type QueueObserver interface {
	ObserveQueue(size, capacity func() int)
}

// NoopMetricsCollector is a no-op implementation.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) Enqueued()                                {}
func (NoopMetricsCollector) Dropped(string)                           {}
func (NoopMetricsCollector) Synchronous(string)                       {}
func (NoopMetricsCollector) Appended(string, Level, time.Duration, error) {}
func (NoopMetricsCollector) ConsumerPanicked()                        {}
