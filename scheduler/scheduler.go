package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/justapithecus/assay/collector"
	"github.com/justapithecus/assay/log"
	"github.com/justapithecus/assay/metrics"
)

// ErrDrainTimeout reports that in-flight cycles did not finish within
// both grace periods during shutdown. The process should treat this as
// fatal since report files may be left unflushed.
var ErrDrainTimeout = errors.New("scheduler: drain timed out with cycles still running")

const defaultGracePeriod = 30 * time.Second

// CycleHook observes each finished engine cycle. tickID identifies the
// tick the cycle belongs to; all cycles of one tick share it. Hooks run
// on worker goroutines and must be safe for concurrent use.
type CycleHook func(ctx context.Context, tickID string, res collector.CycleResult)

// TickHook observes each completed dispatch pass, after every engine has
// been dispatched or skipped for the tick.
type TickHook func(tickID string, ts time.Time)

// Config wires a Scheduler.
type Config struct {
	Collectors []*collector.Collector
	Interval   time.Duration
	// GracePeriod bounds each of the two shutdown waits. Defaults to 30s.
	GracePeriod time.Duration
	Logger      *log.Logger
	Stats       *metrics.Collector
	OnCycle     CycleHook
	OnTick      TickHook
}

// Scheduler polls the fleet at a fixed interval. Each tick stamps one
// shared timestamp for every engine and dispatches one cycle per engine
// onto the pool. An engine whose previous cycle is still running is
// skipped for the tick rather than queued behind itself.
type Scheduler struct {
	collectors []*collector.Collector
	interval   time.Duration
	grace      time.Duration
	pool       *Pool
	logger     *log.Logger
	stats      *metrics.Collector
	onCycle    CycleHook
	onTick     TickHook

	mu       sync.Mutex
	inflight map[string]bool
}

func New(cfg Config) *Scheduler {
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = defaultGracePeriod
	}
	return &Scheduler{
		collectors: cfg.Collectors,
		interval:   cfg.Interval,
		grace:      grace,
		pool:       NewPool(2 * cfg.Interval),
		logger:     cfg.Logger,
		stats:      cfg.Stats,
		onCycle:    cfg.OnCycle,
		onTick:     cfg.OnTick,
		inflight:   make(map[string]bool),
	}
}

// Run ticks until ctx is cancelled, then drains. The first tick fires
// immediately. Returns ErrDrainTimeout when shutdown could not complete
// within both grace periods.
func (s *Scheduler) Run(ctx context.Context) error {
	// Cycles get their own context so a cancelled run context does not
	// abort in-flight work before the first grace period elapses.
	cycleCtx, cancelCycles := context.WithCancel(context.Background())
	defer cancelCycles()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.tick(cycleCtx)
		select {
		case <-ctx.Done():
			return s.drain(cancelCycles)
		case <-ticker.C:
		}
	}
}

// tick dispatches one cycle per engine, all sharing a single timestamp.
func (s *Scheduler) tick(ctx context.Context) {
	tickID := uuid.NewString()
	ts := time.Now()

	for _, col := range s.collectors {
		engine := col.Endpoint().Name

		s.mu.Lock()
		busy := s.inflight[engine]
		if !busy {
			s.inflight[engine] = true
		}
		s.mu.Unlock()

		if busy {
			s.stats.IncCycleOverrun()
			s.logger.Warn("cycle overrun, skipping tick for engine", map[string]any{
				"engine":  engine,
				"tick_id": tickID,
			})
			continue
		}

		s.stats.IncCycleStarted()
		col := col
		ok := s.pool.Submit(func() {
			defer s.finish(engine)
			res := col.Collect(ctx, ts)
			s.stats.IncCycleCompleted()
			if s.onCycle != nil {
				s.onCycle(ctx, tickID, res)
			}
		})
		if !ok {
			s.finish(engine)
		}
	}

	active, total := s.pool.Stats()
	s.logger.Info("tick dispatched", map[string]any{
		"tick_id":        tickID,
		"timestamp":      ts.Format(time.RFC3339),
		"engines":        len(s.collectors),
		"workers_active": active,
		"workers_total":  total,
	})

	if s.onTick != nil {
		s.onTick(tickID, ts)
	}
}

func (s *Scheduler) finish(engine string) {
	s.mu.Lock()
	delete(s.inflight, engine)
	s.mu.Unlock()
}

// drain stops intake, waits one grace period for in-flight cycles, then
// cancels them and waits a second grace period. Collector resources are
// released only after their cycles have stopped.
func (s *Scheduler) drain(cancelCycles context.CancelFunc) error {
	s.pool.Close()

	if !s.pool.Wait(s.grace) {
		s.logger.Warn("cycles still running after grace period, cancelling", map[string]any{
			"grace": s.grace.String(),
		})
		cancelCycles()
		if !s.pool.Wait(s.grace) {
			return ErrDrainTimeout
		}
	}

	for _, col := range s.collectors {
		col.Release()
	}
	s.logger.Info("scheduler drained", nil)
	return nil
}
