// Package coordinator provides the parallel aggregation driver.
// This file implements periodic progress reporting for a running driver.
package coordinator

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// ProgressSnapshot is a point-in-time view of a run's progress.
type ProgressSnapshot struct {
	TasksDone  int64     // Tasks completed so far
	TasksTotal int64     // Tasks in the run
	Proteins   int64     // Records processed so far
	Started    time.Time // When monitoring started
	LastReport time.Time // When the last line was logged
}

// Progress logs how far a run has come at a fixed interval.
// TaskDone is meant to be registered with Driver.SetOnTaskDone.
// Thread-safe: All methods are safe for concurrent access.
type Progress struct {
	total      int64
	done       atomic.Int64
	proteins   atomic.Int64
	interval   time.Duration
	onTick     func(ProgressSnapshot)
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.RWMutex // Protects started and lastReport
	started    time.Time
	lastReport time.Time
	wg         sync.WaitGroup
}

// NewProgress creates a monitor for a run of total tasks that logs every
// interval once started.
//
// Parameters:
//   - total: Number of tasks in the run
//   - interval: How often to log (recommended: 30s)
//
// Returns:
//   - *Progress: Monitor ready to start
//
// Example:
//
//	progress := NewProgress(len(tasks), 30*time.Second)
//	driver.SetOnTaskDone(progress.TaskDone)
//	go progress.Start(ctx)
//	defer progress.Stop()
func NewProgress(total int, interval time.Duration) *Progress {
	ctx, cancel := context.WithCancel(context.Background())
	return &Progress{
		total:    int64(total),
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetOnTick sets a callback invoked with a snapshot on every tick, in
// addition to the log line.
func (p *Progress) SetOnTick(callback func(ProgressSnapshot)) {
	p.onTick = callback
}

// TaskDone records a completed task.
func (p *Progress) TaskDone(r TaskReport) {
	p.done.Add(1)
	p.proteins.Add(r.Proteins)
}

// Snapshot returns the current progress
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return ProgressSnapshot{
		TasksDone:  p.done.Load(),
		TasksTotal: p.total,
		Proteins:   p.proteins.Load(),
		Started:    p.started,
		LastReport: p.lastReport,
	}
}

// Start logs progress every interval until ctx is canceled or Stop is
// called. It blocks and is normally run in its own goroutine.
func (p *Progress) Start(ctx context.Context) {
	p.wg.Add(1)
	defer p.wg.Done()

	if ctx == nil {
		ctx = p.ctx
	}

	p.mu.Lock()
	p.started = time.Now()
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.report()
		case <-ctx.Done():
			return
		case <-p.ctx.Done():
			return
		}
	}
}

// Stop ends monitoring and waits for Start to return.
func (p *Progress) Stop() {
	p.cancel()
	p.wg.Wait()
}

func (p *Progress) report() {
	p.mu.Lock()
	p.lastReport = time.Now()
	elapsed := p.lastReport.Sub(p.started)
	p.mu.Unlock()

	snap := p.Snapshot()
	rate := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		rate = float64(snap.Proteins) / secs
	}
	log.Printf("progress: %d/%d tasks, %s proteins (%s/s)",
		snap.TasksDone, snap.TasksTotal, humanize.Comma(snap.Proteins), humanize.Comma(int64(rate)))

	if p.onTick != nil {
		p.onTick(snap)
	}
}
