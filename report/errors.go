// Package report owns the rolling daily report files, one per
// (engine, category) pair.
package report

import (
	"errors"
	"fmt"

	"github.com/justapithecus/assay/types"
)

// ErrStale indicates the on-disk report file was removed or made
// unwritable out-of-band while a writer held it open. The caller should
// close the writer; the next write recreates the file.
var ErrStale = errors.New("report file removed or not writable")

// WriteError wraps a report write failure with engine and category
// context. Write failures are retryable: the caller closes the writer and
// retries the write once with a fresh one.
type WriteError struct {
	Engine   string
	Category types.Category
	Path     string
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s for %s (%s): %v", e.Category, e.Engine, e.Path, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *WriteError) Unwrap() error {
	return e.Err
}

func newWriteError(engine string, category types.Category, path string, err error) error {
	if err == nil {
		return nil
	}
	return &WriteError{Engine: engine, Category: category, Path: path, Err: err}
}
