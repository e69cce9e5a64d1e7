package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/justapithecus/assay/filter"
	"github.com/justapithecus/assay/log"
	"github.com/justapithecus/assay/metrics"
	"github.com/justapithecus/assay/report"
	"github.com/justapithecus/assay/source"
	"github.com/justapithecus/assay/types"
)

// absentToken is the serialized form of a missing attribute value. Fixed
// so re-reads of the same entity produce the same text every cycle.
const absentToken = "<nil>"

// Collector owns one engine's source connection and report writer and
// executes collection cycles over the configured categories. A Collector
// is driven by a single worker at a time; it holds no locks.
type Collector struct {
	endpoint   types.EngineEndpoint
	src        source.Source
	writer     *report.Writer
	filter     *filter.Filter
	categories []types.Category
	logger     *log.Logger
	stats      *metrics.Collector
}

// Config wires a Collector's collaborators. Filter and categories are
// shared read-only across all collectors; the source and writer are
// exclusively owned.
type Config struct {
	Endpoint   types.EngineEndpoint
	Source     source.Source
	Writer     *report.Writer
	Filter     *filter.Filter
	Categories []types.Category
	Logger     *log.Logger
	// Stats is optional; a nil collector drops all counts.
	Stats *metrics.Collector
}

// New creates a collector for one engine.
func New(cfg Config) *Collector {
	return &Collector{
		endpoint:   cfg.Endpoint,
		src:        cfg.Source,
		writer:     cfg.Writer,
		filter:     cfg.Filter,
		categories: cfg.Categories,
		logger:     cfg.Logger.WithEngine(cfg.Endpoint.Name),
		stats:      cfg.Stats,
	}
}

// Endpoint returns the engine identity this collector monitors.
func (c *Collector) Endpoint() types.EngineEndpoint {
	return c.endpoint
}

// Collect executes one full cycle with the shared tick timestamp. A
// connection failure aborts the whole cycle; any other failure is
// isolated to its category or entity.
func (c *Collector) Collect(ctx context.Context, ts time.Time) CycleResult {
	started := time.Now()
	res := CycleResult{Engine: c.endpoint.Name, Timestamp: ts}

	if err := c.src.Open(ctx); err != nil {
		// Drop any half-open state so the next cycle reconnects cleanly.
		_ = c.src.Close()
		c.stats.IncConnectFailure()
		res.ConnectErr = newCollectError(KindConnect, c.endpoint.Name, "", err)
		c.logger.Warn("connection failed, cycle skipped", map[string]any{
			"endpoint": c.endpoint.String(),
			"error":    err.Error(),
		})
		res.Duration = time.Since(started)
		return res
	}

	for _, category := range c.categories {
		cr := c.collectOne(ctx, category, ts)
		if cr.Err != nil {
			// The writer may hold a poisoned file handle and the failure
			// usually means a dead connection. Recreate both, then retry
			// the whole category exactly once.
			c.writer.Close(category)
			c.stats.IncCategoryRetry()
			c.logger.Warn("category failed, retrying once", map[string]any{
				"category": string(category),
				"error":    cr.Err.Error(),
			})
			if err := c.src.Open(ctx); err != nil {
				_ = c.src.Close()
			}
			retry := c.collectOne(ctx, category, ts)
			retry.Retried = true
			if retry.Err != nil {
				c.writer.Close(category)
				c.stats.IncCategoryFailure()
				c.logger.Error("category dropped for this cycle", map[string]any{
					"category": string(category),
					"error":    retry.Err.Error(),
				})
			}
			cr = retry
		}
		res.Categories = append(res.Categories, cr)
	}

	res.Duration = time.Since(started)
	return res
}

// collectOne collects a single category: list identifiers, fetch each
// entity's attributes, filter, serialize, append. Per-entity failures are
// recorded as diagnostic rows and never abort the category.
func (c *Collector) collectOne(ctx context.Context, category types.Category, ts time.Time) CategoryResult {
	res := CategoryResult{Category: category}
	spec := category.Spec()

	ids, err := c.src.List(ctx, spec.Query)
	if err != nil {
		// A failed listing usually means the connection died underneath
		// us; drop it so the retry (or next cycle) reconnects.
		_ = c.src.Close()
		res.Err = newCollectError(KindQuery, c.endpoint.Name, category, err)
		return res
	}

	if len(ids) == 0 {
		res.Empty = true
		c.stats.IncEmptyCategory()
		line := fmt.Sprintf("Entity list for %s is empty", category)
		if err := c.writer.Write(category, line); err != nil {
			c.stats.IncWriteFailure()
			res.Err = newCollectError(KindWrite, c.endpoint.Name, category, err)
			return res
		}
		if err := c.writer.Flush(category); err != nil {
			c.stats.IncWriteFailure()
			res.Err = newCollectError(KindWrite, c.endpoint.Name, category, err)
		}
		return res
	}

	for _, id := range ids {
		attrs, err := c.src.Attributes(ctx, id)
		if err != nil {
			c.stats.IncEntityFetchError()
			res.EntityErrors = append(res.EntityErrors, EntityError{Object: id.String(), Err: err})
			diag := fmt.Sprintf("Failed to get attributes for entity %s: %s", id, err)
			if werr := c.writer.Write(category, diag); werr != nil {
				c.stats.IncWriteFailure()
				res.Err = newCollectError(KindWrite, c.endpoint.Name, category, werr)
				return res
			}
			continue
		}

		attrs[types.TimestampColumn] = ts.Format(types.TimestampLayout)
		name := category.DisplayName(id.KeyProperties(), attrs)

		if !c.filter.IsIncluded(name, category) {
			res.Filtered++
			c.stats.AddEntitiesFiltered(1)
			continue
		}

		if err := c.writer.Write(category, serializeRow(category, name, attrs)); err != nil {
			c.stats.IncWriteFailure()
			res.Err = newCollectError(KindWrite, c.endpoint.Name, category, err)
			return res
		}
		res.Rows++
		c.stats.AddRowsWritten(1)

		if spec.Resettable {
			// Reset makes the next read a delta. A failed reset only means
			// this boundary is lost; the sample already written stands.
			if err := c.src.Invoke(ctx, id, types.ResetOperation); err != nil {
				c.stats.IncResetFailure()
				c.logger.Warn("delta reset failed", map[string]any{
					"category": string(category),
					"object":   id.String(),
					"error":    err.Error(),
				})
			}
		}
	}

	if err := c.writer.Flush(category); err != nil {
		c.stats.IncWriteFailure()
		res.Err = newCollectError(KindWrite, c.endpoint.Name, category, err)
		return res
	}

	// A file deleted out-of-band is detected here; dropping the writer
	// makes the next write recreate the file with a fresh header.
	if err := c.writer.CheckHealth(category); err != nil {
		c.logger.Warn("report file went stale, writer dropped", map[string]any{
			"category": string(category),
			"error":    err.Error(),
		})
		c.writer.Close(category)
	}

	return res
}

// serializeRow renders one entity sample: display name first, then the
// schema columns in fixed order. The cache category's identifier is its
// first schema column, so serialization starts at the second.
func serializeRow(category types.Category, name string, attrs map[string]any) string {
	spec := category.Spec()
	columns := spec.Columns
	if !spec.ObjectColumn {
		columns = columns[1:]
	}

	var b strings.Builder
	b.WriteString(name)
	for _, col := range columns {
		b.WriteByte(',')
		b.WriteString(formatValue(attrs, col))
	}
	return b.String()
}

// formatValue renders one attribute value, using the fixed absent token
// for missing values so they round-trip identically every cycle.
func formatValue(attrs map[string]any, col string) string {
	v, ok := attrs[col]
	if !ok || v == nil {
		return absentToken
	}
	return fmt.Sprint(v)
}

// Release closes the source connection and all report writers. Called
// during shutdown; safe to call more than once.
func (c *Collector) Release() {
	_ = c.src.Close()
	c.writer.CloseAll()
}
