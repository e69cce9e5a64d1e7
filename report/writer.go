package report

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/justapithecus/assay/types"
)

// Rotation describes a report file closed by daily rotation. The file is
// complete: no further rows will be appended to it.
type Rotation struct {
	Engine   string
	Category types.Category
	Path     string
}

// RotationHook observes closed daily files, e.g. for archival. Called
// synchronously from Write; implementations must not block.
type RotationHook func(Rotation)

// Writer owns at most one open file per category for one engine. Rotation
// is lazy: each write recomputes today's filename and closes the old file
// first when it no longer matches. Not safe for concurrent use; a Writer
// is owned by its engine's collector.
type Writer struct {
	endpoint types.EngineEndpoint
	dir      string
	now      func() time.Time
	onRotate RotationHook

	files map[types.Category]*reportFile
}

type reportFile struct {
	file *os.File
	buf  *bufio.Writer
	// name is the filename the file was opened under, compared against
	// today's computed filename to detect day changes.
	name string
}

// Option configures a Writer.
type Option func(*Writer)

// WithClock overrides the clock used for filename derivation.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// WithRotationHook registers an observer for closed daily files.
func WithRotationHook(hook RotationHook) Option {
	return func(w *Writer) { w.onRotate = hook }
}

// NewWriter creates a report writer for one engine, rooted at dir.
func NewWriter(endpoint types.EngineEndpoint, dir string, opts ...Option) *Writer {
	w := &Writer{
		endpoint: endpoint,
		dir:      dir,
		now:      time.Now,
		files:    make(map[types.Category]*reportFile),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Filename derives the deterministic report filename for a category at
// time t. Local endpoints omit the host/port components. The rotation key
// is month/day, matching the daily-rotation granularity of the fleet's
// downstream consumers.
func (w *Writer) Filename(category types.Category, t time.Time) string {
	if w.endpoint.IsLocal() {
		return fmt.Sprintf("%s_%s_%02d_%02d.csv",
			w.endpoint.Name, category, int(t.Month()), t.Day())
	}
	return fmt.Sprintf("%s_%s_%d_%s_%02d_%02d.csv",
		w.endpoint.Name, w.endpoint.Host, w.endpoint.Port, category, int(t.Month()), t.Day())
}

// Path returns the full path of the category's report file at time t.
func (w *Writer) Path(category types.Category, t time.Time) string {
	return filepath.Join(w.dir, w.Filename(category, t))
}

// Write appends one row (without trailing newline) to today's file for
// the category, rotating and writing the header as needed. Rows are
// buffered; call Flush once per cycle after the category's rows are
// written.
func (w *Writer) Write(category types.Category, row string) error {
	rf, err := w.ensure(category)
	if err != nil {
		return err
	}
	if _, err := rf.buf.WriteString(row + "\n"); err != nil {
		return newWriteError(w.endpoint.Name, category, rf.name, err)
	}
	return nil
}

// Flush pushes buffered rows to the OS. One flush per category per cycle
// bounds syscalls while keeping data durable within one interval.
func (w *Writer) Flush(category types.Category) error {
	rf, ok := w.files[category]
	if !ok {
		return nil
	}
	if err := rf.buf.Flush(); err != nil {
		return newWriteError(w.endpoint.Name, category, rf.name, err)
	}
	return nil
}

// ensure returns the open file for today's filename, rotating away from a
// stale-day file first and creating directory/file as needed.
func (w *Writer) ensure(category types.Category) (*reportFile, error) {
	today := w.Filename(category, w.now())

	if rf, ok := w.files[category]; ok {
		if rf.name == today {
			return rf, nil
		}
		// Day changed: the old file is complete, close and announce it.
		closedPath := filepath.Join(w.dir, rf.name)
		w.Close(category)
		if w.onRotate != nil {
			w.onRotate(Rotation{Engine: w.endpoint.Name, Category: category, Path: closedPath})
		}
	}

	return w.create(category, today)
}

func (w *Writer) create(category types.Category, name string) (*reportFile, error) {
	if w.dir != "" {
		if err := os.MkdirAll(w.dir, 0o755); err != nil {
			return nil, newWriteError(w.endpoint.Name, category, w.dir, err)
		}
	}

	path := filepath.Join(w.dir, name)
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, newWriteError(w.endpoint.Name, category, path, err)
	}

	rf := &reportFile{file: file, buf: bufio.NewWriter(file), name: name}
	if isNew {
		if _, err := rf.buf.WriteString(category.Header() + "\n"); err != nil {
			_ = file.Close()
			return nil, newWriteError(w.endpoint.Name, category, path, err)
		}
	}
	w.files[category] = rf
	return rf, nil
}

// CheckHealth verifies the category's on-disk file still exists and
// remains writable. Returns ErrStale when it does not, so the caller can
// close the writer and recreate the file on the next write. Guards
// against silent data loss when a file is deleted out-of-band while the
// process holds it open.
func (w *Writer) CheckHealth(category types.Category) error {
	rf, ok := w.files[category]
	if !ok {
		return nil
	}
	path := filepath.Join(w.dir, rf.name)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrStale, path)
	}
	probe, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrStale, path)
	}
	_ = probe.Close()
	return nil
}

// Close releases the category's writer. Idempotent; close-time errors are
// swallowed (best-effort).
func (w *Writer) Close(category types.Category) {
	rf, ok := w.files[category]
	if !ok {
		return
	}
	_ = rf.buf.Flush()
	_ = rf.file.Close()
	delete(w.files, category)
}

// CloseAll releases every open writer.
func (w *Writer) CloseAll() {
	for category := range w.files {
		w.Close(category)
	}
}
