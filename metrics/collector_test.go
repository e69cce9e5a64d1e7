package metrics_test

import (
	"sync"
	"testing"

	"github.com/justapithecus/assay/metrics"
)

func TestCollector_Counters(t *testing.T) {
	c := metrics.NewCollector()

	c.IncCycleStarted()
	c.IncCycleStarted()
	c.IncCycleCompleted()
	c.IncCycleOverrun()
	c.IncConnectFailure()
	c.IncCategoryRetry()
	c.IncCategoryFailure()
	c.IncEmptyCategory()
	c.AddRowsWritten(12)
	c.AddEntitiesFiltered(3)
	c.IncEntityFetchError()
	c.IncResetFailure()
	c.IncWriteFailure()
	c.IncArchiveSuccess()
	c.IncArchiveFailure()
	c.IncPublishSuccess()
	c.IncPublishFailure()

	s := c.Snapshot()
	if s.CyclesStarted != 2 || s.CyclesCompleted != 1 || s.CyclesOverrun != 1 {
		t.Errorf("cycle counters: %+v", s)
	}
	if s.RowsWritten != 12 || s.EntitiesFiltered != 3 {
		t.Errorf("row counters: %+v", s)
	}
	if s.ConnectFailures != 1 || s.CategoryRetries != 1 || s.CategoryFailures != 1 || s.EmptyCategories != 1 {
		t.Errorf("failure counters: %+v", s)
	}
	if s.ArchiveSuccess != 1 || s.ArchiveFailure != 1 || s.PublishSuccess != 1 || s.PublishFailure != 1 {
		t.Errorf("outbound counters: %+v", s)
	}
}

func TestCollector_SnapshotIsolation(t *testing.T) {
	c := metrics.NewCollector()
	c.AddRowsWritten(5)

	s := c.Snapshot()
	c.AddRowsWritten(5)

	if s.RowsWritten != 5 {
		t.Errorf("snapshot mutated after creation: %d", s.RowsWritten)
	}
	if c.Snapshot().RowsWritten != 10 {
		t.Errorf("collector lost updates after snapshot")
	}
}

func TestCollector_NilReceiverSafe(t *testing.T) {
	var c *metrics.Collector
	c.IncCycleStarted()
	c.AddRowsWritten(1)
	if s := c.Snapshot(); s.CyclesStarted != 0 {
		t.Errorf("nil snapshot should be zero: %+v", s)
	}
}

func TestCollector_ConcurrentIncrements(t *testing.T) {
	c := metrics.NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 1000; n++ {
				c.AddRowsWritten(1)
			}
		}()
	}
	wg.Wait()
	if got := c.Snapshot().RowsWritten; got != 8000 {
		t.Errorf("expected 8000 rows, got %d", got)
	}
}
