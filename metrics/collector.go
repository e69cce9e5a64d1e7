// Package metrics provides in-process counters for the collection daemon.
//
// The Collector accumulates counters across scheduler ticks. It is a leaf
// package with no internal dependencies. Counters feed the per-tick log
// line, the fleet state file, and cycle-completed events.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Scheduler
	CyclesStarted   int64
	CyclesCompleted int64
	CyclesOverrun   int64

	// Connection
	ConnectFailures int64

	// Per-category collection
	CategoryRetries  int64
	CategoryFailures int64
	EmptyCategories  int64

	// Rows
	RowsWritten       int64
	EntitiesFiltered  int64
	EntityFetchErrors int64
	ResetFailures     int64
	WriteFailures     int64

	// Outbound
	ArchiveSuccess int64
	ArchiveFailure int64
	PublishSuccess int64
	PublishFailure int64
}

// Collector accumulates counters for the daemon's lifetime.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	cyclesStarted   int64
	cyclesCompleted int64
	cyclesOverrun   int64

	connectFailures int64

	categoryRetries  int64
	categoryFailures int64
	emptyCategories  int64

	rowsWritten       int64
	entitiesFiltered  int64
	entityFetchErrors int64
	resetFailures     int64
	writeFailures     int64

	archiveSuccess int64
	archiveFailure int64
	publishSuccess int64
	publishFailure int64
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) add(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// IncCycleStarted records one dispatched engine cycle.
func (c *Collector) IncCycleStarted() {
	if c == nil {
		return
	}
	c.add(&c.cyclesStarted, 1)
}

// IncCycleCompleted records one finished engine cycle.
func (c *Collector) IncCycleCompleted() {
	if c == nil {
		return
	}
	c.add(&c.cyclesCompleted, 1)
}

// IncCycleOverrun records a cycle skipped because the engine's previous
// cycle was still running.
func (c *Collector) IncCycleOverrun() {
	if c == nil {
		return
	}
	c.add(&c.cyclesOverrun, 1)
}

// IncConnectFailure records a failed connection open.
func (c *Collector) IncConnectFailure() {
	if c == nil {
		return
	}
	c.add(&c.connectFailures, 1)
}

// IncCategoryRetry records a category-level retry.
func (c *Collector) IncCategoryRetry() {
	if c == nil {
		return
	}
	c.add(&c.categoryRetries, 1)
}

// IncCategoryFailure records a category dropped for a cycle after its
// retry also failed.
func (c *Collector) IncCategoryFailure() {
	if c == nil {
		return
	}
	c.add(&c.categoryFailures, 1)
}

// IncEmptyCategory records a category whose identifier set was empty.
func (c *Collector) IncEmptyCategory() {
	if c == nil {
		return
	}
	c.add(&c.emptyCategories, 1)
}

// AddRowsWritten records n report rows appended.
func (c *Collector) AddRowsWritten(n int64) {
	if c == nil {
		return
	}
	c.add(&c.rowsWritten, n)
}

// AddEntitiesFiltered records n entities excluded by the filter.
func (c *Collector) AddEntitiesFiltered(n int64) {
	if c == nil {
		return
	}
	c.add(&c.entitiesFiltered, n)
}

// IncEntityFetchError records a per-entity attribute fetch failure.
func (c *Collector) IncEntityFetchError() {
	if c == nil {
		return
	}
	c.add(&c.entityFetchErrors, 1)
}

// IncResetFailure records a failed delta-reset invocation.
func (c *Collector) IncResetFailure() {
	if c == nil {
		return
	}
	c.add(&c.resetFailures, 1)
}

// IncWriteFailure records a report write failure.
func (c *Collector) IncWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.writeFailures, 1)
}

// IncArchiveSuccess records one report file archived.
func (c *Collector) IncArchiveSuccess() {
	if c == nil {
		return
	}
	c.add(&c.archiveSuccess, 1)
}

// IncArchiveFailure records one failed archive upload.
func (c *Collector) IncArchiveFailure() {
	if c == nil {
		return
	}
	c.add(&c.archiveFailure, 1)
}

// IncPublishSuccess records one cycle event published.
func (c *Collector) IncPublishSuccess() {
	if c == nil {
		return
	}
	c.add(&c.publishSuccess, 1)
}

// IncPublishFailure records one failed cycle event publication.
func (c *Collector) IncPublishFailure() {
	if c == nil {
		return
	}
	c.add(&c.publishFailure, 1)
}

// Snapshot returns an immutable point-in-time view of all counters.
// The Collector can continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		CyclesStarted:   c.cyclesStarted,
		CyclesCompleted: c.cyclesCompleted,
		CyclesOverrun:   c.cyclesOverrun,

		ConnectFailures: c.connectFailures,

		CategoryRetries:  c.categoryRetries,
		CategoryFailures: c.categoryFailures,
		EmptyCategories:  c.emptyCategories,

		RowsWritten:       c.rowsWritten,
		EntitiesFiltered:  c.entitiesFiltered,
		EntityFetchErrors: c.entityFetchErrors,
		ResetFailures:     c.resetFailures,
		WriteFailures:     c.writeFailures,

		ArchiveSuccess: c.archiveSuccess,
		ArchiveFailure: c.archiveFailure,
		PublishSuccess: c.publishSuccess,
		PublishFailure: c.publishFailure,
	}
}
