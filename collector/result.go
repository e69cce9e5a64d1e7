package collector

import (
	"time"

	"github.com/justapithecus/assay/types"
)

// EntityError records a per-entity fetch failure. A diagnostic row is
// written in place of the entity's data; remaining entities are not
// affected.
type EntityError struct {
	// Object is the canonical identifier of the failing entity.
	Object string
	Err    error
}

// CategoryResult aggregates one category's outcome within a cycle.
type CategoryResult struct {
	Category types.Category
	// Rows is the number of data rows appended.
	Rows int
	// Filtered is the number of entities excluded by the filter.
	Filtered int
	// Empty is true when the category's identifier set was empty; a
	// single diagnostic line is written in that case.
	Empty bool
	// Retried is true when the category failed once and was retried.
	Retried bool
	// EntityErrors holds per-entity fetch failures (non-fatal).
	EntityErrors []EntityError
	// Err is the category-level failure that survived the retry; nil on
	// success. The category produced no complete output this cycle.
	Err error
}

// CycleResult aggregates one engine's full collection cycle.
type CycleResult struct {
	Engine string
	// Timestamp is the shared tick timestamp all rows carry.
	Timestamp time.Time
	// ConnectErr is set when the cycle was aborted before any category
	// because the connection could not be opened.
	ConnectErr error
	Categories []CategoryResult
	// Duration is the wall time of the cycle.
	Duration time.Duration
}

// OK reports whether the cycle connected and every category succeeded.
func (r *CycleResult) OK() bool {
	if r.ConnectErr != nil {
		return false
	}
	for _, cr := range r.Categories {
		if cr.Err != nil {
			return false
		}
	}
	return true
}

// TotalRows sums data rows across categories.
func (r *CycleResult) TotalRows() int {
	var n int
	for _, cr := range r.Categories {
		n += cr.Rows
	}
	return n
}
