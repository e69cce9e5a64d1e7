// Package scheduler drives the fleet: every interval it stamps one shared
// timestamp and dispatches one collection cycle per engine onto a worker
// pool.
package scheduler

import (
	"sync"
	"sync/atomic"
	"time"
)

// Pool is a grow-on-demand worker pool. Idle workers are reused across
// ticks; a worker idle longer than the reclaim timeout exits, bounding
// resource usage during long idle stretches between ticks.
type Pool struct {
	idle time.Duration

	tasks chan func()

	mu      sync.Mutex
	workers int
	closed  bool

	active   atomic.Int64
	inflight sync.WaitGroup
}

// NewPool creates a pool that reclaims workers idle longer than
// idleTimeout. The scheduler sizes this to roughly twice the polling
// interval so workers survive from one tick to the next under steady load.
func NewPool(idleTimeout time.Duration) *Pool {
	return &Pool{
		idle:  idleTimeout,
		tasks: make(chan func()),
	}
}

// Submit dispatches a task, spawning a worker when no idle one picks it
// up immediately. Returns false when the pool is closed.
func (p *Pool) Submit(task func()) bool {
	wrapped := func() {
		defer p.inflight.Done()
		p.active.Add(1)
		defer p.active.Add(-1)
		task()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.inflight.Add(1)

	// Hand off to an idle worker when one is already waiting.
	select {
	case p.tasks <- wrapped:
		p.mu.Unlock()
		return true
	default:
	}

	p.workers++
	p.mu.Unlock()
	go p.worker(wrapped)
	return true
}

// worker runs its first task, then serves the queue until reclaimed.
func (p *Pool) worker(first func()) {
	defer func() {
		p.mu.Lock()
		p.workers--
		p.mu.Unlock()
	}()

	first()

	timer := time.NewTimer(p.idle)
	defer timer.Stop()
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			task()
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(p.idle)
		case <-timer.C:
			return
		}
	}
}

// Stats returns the number of busy workers and total live workers.
func (p *Pool) Stats() (active, total int) {
	p.mu.Lock()
	total = p.workers
	p.mu.Unlock()
	return int(p.active.Load()), total
}

// Wait blocks until all in-flight tasks finish or the timeout elapses.
// Returns true when the pool drained in time.
func (p *Pool) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Close stops intake. In-flight tasks keep running; idle workers exit as
// the queue closes. Idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.tasks)
}
