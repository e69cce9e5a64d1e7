// Package archive ships rotated report files to long-term storage. The
// collector hands off a file when daily rotation closes it; uploads run
// in the background and never block a collection cycle.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/justapithecus/assay/log"
	"github.com/justapithecus/assay/metrics"
	"github.com/justapithecus/assay/report"
)

// Uploader stores one object. Implementations must be safe for
// concurrent use.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64) error
}

// queueCapacity bounds pending uploads. Rotation happens at most once
// per engine per category per day, so the queue overflowing means the
// backend has been down for a long stretch.
const queueCapacity = 256

// Archiver drains rotated files to an Uploader from a background
// goroutine. When the queue is full a rotation is dropped with a log
// line rather than stalling the writer.
type Archiver struct {
	uploader Uploader
	logger   *log.Logger
	stats    *metrics.Collector

	queue chan report.Rotation
	done  chan struct{}
}

// NewArchiver creates an archiver and starts its upload loop. ctx bounds
// every upload; cancel it before Close to abandon in-flight transfers.
func NewArchiver(ctx context.Context, up Uploader, logger *log.Logger, stats *metrics.Collector) *Archiver {
	a := &Archiver{
		uploader: up,
		logger:   logger,
		stats:    stats,
		queue:    make(chan report.Rotation, queueCapacity),
		done:     make(chan struct{}),
	}
	go a.run(ctx)
	return a
}

// Hook adapts the archiver to the report writer's rotation callback.
func (a *Archiver) Hook() report.RotationHook {
	return func(rot report.Rotation) {
		select {
		case a.queue <- rot:
		default:
			a.stats.IncArchiveFailure()
			a.logger.Warn("archive queue full, dropping rotated file", map[string]any{
				"engine": rot.Engine,
				"path":   rot.Path,
			})
		}
	}
}

// Close stops intake and waits for queued uploads to finish.
func (a *Archiver) Close() {
	close(a.queue)
	<-a.done
}

func (a *Archiver) run(ctx context.Context) {
	defer close(a.done)
	for rot := range a.queue {
		if err := a.upload(ctx, rot); err != nil {
			a.stats.IncArchiveFailure()
			a.logger.Error("archive upload failed", map[string]any{
				"engine": rot.Engine,
				"path":   rot.Path,
				"error":  err.Error(),
			})
			continue
		}
		a.stats.IncArchiveSuccess()
		a.logger.Info("archived rotated report", map[string]any{
			"engine": rot.Engine,
			"path":   rot.Path,
		})
	}
}

func (a *Archiver) upload(ctx context.Context, rot report.Rotation) error {
	f, err := os.Open(rot.Path)
	if err != nil {
		return fmt.Errorf("open rotated file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat rotated file: %w", err)
	}

	key := path.Join(rot.Engine, filepath.Base(rot.Path))
	return a.uploader.Upload(ctx, key, f, info.Size())
}
