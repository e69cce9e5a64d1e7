// Package collector drives one engine's collection cycle: connect, query,
// filter, serialize, write.
package collector

import (
	"fmt"

	"github.com/justapithecus/assay/types"
)

// ErrorKind classifies collection failures. Each kind has a fixed
// recovery path executed by the collector itself; kinds exist so callers
// and tests can assert on what went wrong.
type ErrorKind string

const (
	// KindConnect: the management connection could not be opened.
	// Recovery: drop connection state, retry lazily on the next cycle.
	KindConnect ErrorKind = "connect"
	// KindQuery: listing a category's identifiers failed, usually a dead
	// connection. Recovery: one immediate retry of that category.
	KindQuery ErrorKind = "query"
	// KindFetch: one entity's attribute fetch failed. Recovery: diagnostic
	// row, continue with remaining entities.
	KindFetch ErrorKind = "fetch"
	// KindReset: the delta-reset invocation failed. Recovery: log only.
	KindReset ErrorKind = "reset"
	// KindWrite: the report file could not be written. Recovery: close the
	// writer, retry the category once with a fresh one.
	KindWrite ErrorKind = "write"
)

// CollectError wraps a collection failure with engine and category
// context. Category is empty for connection-level failures.
type CollectError struct {
	Kind     ErrorKind
	Engine   string
	Category types.Category
	Err      error
}

func (e *CollectError) Error() string {
	if e.Category == "" {
		return fmt.Sprintf("%s %s: %v", e.Kind, e.Engine, e.Err)
	}
	return fmt.Sprintf("%s %s/%s: %v", e.Kind, e.Engine, e.Category, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *CollectError) Unwrap() error {
	return e.Err
}

func newCollectError(kind ErrorKind, engine string, category types.Category, err error) *CollectError {
	return &CollectError{Kind: kind, Engine: engine, Category: category, Err: err}
}
