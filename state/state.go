// Package state persists a snapshot of the fleet's last observed cycle
// per engine. The daemon rewrites the snapshot every tick; the status
// command reads it without talking to the daemon.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/assay/collector"
	"github.com/justapithecus/assay/metrics"
	"github.com/justapithecus/assay/types"
)

// FileName is the snapshot file written inside the report directory.
const FileName = ".assay-state"

// ErrNoState reports that no snapshot file exists yet.
var ErrNoState = errors.New("state: no snapshot file")

// CategoryStatus is the last outcome of one report category on one engine.
type CategoryStatus struct {
	Category string `msgpack:"category"`
	Rows     int    `msgpack:"rows"`
	Filtered int    `msgpack:"filtered"`
	Empty    bool   `msgpack:"empty"`
	Retried  bool   `msgpack:"retried"`
	Error    string `msgpack:"error,omitempty"`
}

// EngineStatus is the last cycle outcome for one engine.
type EngineStatus struct {
	Engine     string           `msgpack:"engine"`
	Endpoint   string           `msgpack:"endpoint"`
	LastCycle  time.Time        `msgpack:"last_cycle"`
	DurationMS int64            `msgpack:"duration_ms"`
	OK         bool             `msgpack:"ok"`
	Rows       int              `msgpack:"rows"`
	ConnectErr string           `msgpack:"connect_err,omitempty"`
	Categories []CategoryStatus `msgpack:"categories"`
}

// Fleet is the whole snapshot: one status per engine plus daemon totals.
type Fleet struct {
	Version   string                  `msgpack:"version"`
	UpdatedAt time.Time               `msgpack:"updated_at"`
	Interval  time.Duration           `msgpack:"interval"`
	Engines   map[string]EngineStatus `msgpack:"engines"`
	Totals    metrics.Snapshot        `msgpack:"totals"`
}

// Store accumulates cycle results and writes the snapshot file. Safe for
// concurrent use; cycle results arrive from worker goroutines.
type Store struct {
	path     string
	interval time.Duration

	mu      sync.Mutex
	engines map[string]EngineStatus
}

// NewStore creates a store writing to dir/.assay-state.
func NewStore(dir string, interval time.Duration) *Store {
	return &Store{
		path:     filepath.Join(dir, FileName),
		interval: interval,
		engines:  make(map[string]EngineStatus),
	}
}

// RecordCycle folds one finished cycle into the snapshot.
func (s *Store) RecordCycle(endpoint types.EngineEndpoint, res collector.CycleResult) {
	st := EngineStatus{
		Engine:     res.Engine,
		Endpoint:   endpoint.String(),
		LastCycle:  res.Timestamp,
		DurationMS: res.Duration.Milliseconds(),
		OK:         res.OK(),
		Rows:       res.TotalRows(),
	}
	if res.ConnectErr != nil {
		st.ConnectErr = res.ConnectErr.Error()
	}
	for _, cat := range res.Categories {
		cs := CategoryStatus{
			Category: string(cat.Category),
			Rows:     cat.Rows,
			Filtered: cat.Filtered,
			Empty:    cat.Empty,
			Retried:  cat.Retried,
		}
		if cat.Err != nil {
			cs.Error = cat.Err.Error()
		}
		st.Categories = append(st.Categories, cs)
	}

	s.mu.Lock()
	s.engines[res.Engine] = st
	s.mu.Unlock()
}

// Write serializes the snapshot atomically: encode to a temp file in the
// same directory, then rename over the previous snapshot.
func (s *Store) Write(totals metrics.Snapshot) error {
	s.mu.Lock()
	engines := make(map[string]EngineStatus, len(s.engines))
	for name, st := range s.engines {
		engines[name] = st
	}
	s.mu.Unlock()

	fleet := Fleet{
		Version:   types.Version,
		UpdatedAt: time.Now(),
		Interval:  s.interval,
		Engines:   engines,
		Totals:    totals,
	}

	data, err := msgpack.Marshal(&fleet)
	if err != nil {
		return fmt.Errorf("state: encode snapshot: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("state: write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("state: publish snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot file from dir. Returns ErrNoState when the
// daemon has not written one yet.
func Load(dir string) (*Fleet, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoState
		}
		return nil, fmt.Errorf("state: read snapshot: %w", err)
	}
	var fleet Fleet
	if err := msgpack.Unmarshal(data, &fleet); err != nil {
		return nil, fmt.Errorf("state: decode snapshot: %w", err)
	}
	return &fleet, nil
}
