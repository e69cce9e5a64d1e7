// Package adapter defines the downstream notification boundary.
//
// Adapters publish cycle completion events so external systems can react
// to fresh report rows without tailing CSV files. The daemon owns adapter
// lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"time"

	"github.com/justapithecus/assay/collector"
	"github.com/justapithecus/assay/types"
)

// EventType is the type tag carried by every published event.
const EventType = "cycle_completed"

// CategoryOutcome summarizes one report category within a cycle.
type CategoryOutcome struct {
	Category string `json:"category"`
	Rows     int    `json:"rows"`
	Filtered int    `json:"filtered"`
	Empty    bool   `json:"empty"`
	Retried  bool   `json:"retried"`
	Error    string `json:"error,omitempty"`
}

// CycleCompletedEvent is the payload published when one engine's
// collection cycle finishes, successfully or not.
type CycleCompletedEvent struct {
	SchemaVersion string            `json:"schema_version"`
	EventType     string            `json:"event_type"` // always "cycle_completed"
	TickID        string            `json:"tick_id"`
	Engine        string            `json:"engine"`
	Endpoint      string            `json:"endpoint"`
	Timestamp     string            `json:"timestamp"` // shared tick timestamp, ISO 8601
	OK            bool              `json:"ok"`
	ConnectError  string            `json:"connect_error,omitempty"`
	Rows          int               `json:"rows"`
	Categories    []CategoryOutcome `json:"categories"`
	DurationMs    int64             `json:"duration_ms"`
}

// NewCycleCompletedEvent builds the event payload for one finished cycle.
func NewCycleCompletedEvent(tickID string, endpoint types.EngineEndpoint, res collector.CycleResult) *CycleCompletedEvent {
	ev := &CycleCompletedEvent{
		SchemaVersion: types.Version,
		EventType:     EventType,
		TickID:        tickID,
		Engine:        res.Engine,
		Endpoint:      endpoint.String(),
		Timestamp:     res.Timestamp.Format(time.RFC3339),
		OK:            res.OK(),
		Rows:          res.TotalRows(),
		DurationMs:    res.Duration.Milliseconds(),
	}
	if res.ConnectErr != nil {
		ev.ConnectError = res.ConnectErr.Error()
	}
	for _, cat := range res.Categories {
		out := CategoryOutcome{
			Category: string(cat.Category),
			Rows:     cat.Rows,
			Filtered: cat.Filtered,
			Empty:    cat.Empty,
			Retried:  cat.Retried,
		}
		if cat.Err != nil {
			out.Error = cat.Err.Error()
		}
		ev.Categories = append(ev.Categories, out)
	}
	return ev
}

// Adapter publishes cycle completion events to a downstream system.
// Implementations must be safe for concurrent use; cycles finish on
// worker goroutines.
type Adapter interface {
	// Publish sends a cycle completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *CycleCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
