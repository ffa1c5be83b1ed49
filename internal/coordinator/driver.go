// Package coordinator provides the parallel aggregation driver.
// This file implements the worker pool that turns match file pages into
// signature and comparison statistics.
package coordinator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dreamware/sigcmp/internal/match"
	"github.com/dreamware/sigcmp/internal/overlap"
	"github.com/dreamware/sigcmp/internal/storage"
)

// RunError reports a failed aggregation run.
// Failed counts the tasks that failed; tasks abandoned because of the
// failure are not counted.
type RunError struct {
	Failed int   // Number of failed tasks
	Total  int   // Number of tasks in the run
	Err    error // First failure
}

func (e *RunError) Error() string {
	return fmt.Sprintf("aggregation failed in %d of %d tasks: %v", e.Failed, e.Total, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// TaskReport describes a completed task.
// Passed to the callback registered with SetOnTaskDone.
type TaskReport struct {
	Task     Task          // The completed task
	Worker   int           // Worker that ran it
	Proteins int64         // Records processed
	Elapsed  time.Duration // Time spent on the task
}

// DriverConfig configures a Driver.
type DriverConfig struct {
	Workers    int                // Size of the worker pool (>= 1)
	Calculator overlap.Calculator // Per-protein statistics
}

// Driver runs the overlap calculator over a sorted match file with a fixed
// pool of workers.
//
// Every worker opens its own reader on the match file, claims tasks from a
// bounded queue and accumulates statistics in worker-local Results. Partial
// results are summed by the caller's goroutine once workers finish. Workers
// share nothing mutable, so the totals are independent of how tasks were
// distributed.
type Driver struct {
	path       string
	codec      storage.Codec
	cfg        DriverConfig
	onTaskDone func(TaskReport)
}

// NewDriver creates a driver for the match file at path.
//
// Parameters:
//   - path: Sorted match file produced by shard.Merge
//   - codec: Codec the match file was written with
//   - cfg: Worker count and calculator settings
//
// Returns:
//   - *Driver: Driver ready to Run
//
// Example:
//
//	d := NewDriver("matches", storage.JSONCodec{}, DriverConfig{
//	    Workers:    8,
//	    Calculator: overlap.NewCalculator(overlap.DefaultMinOverlap),
//	})
//	res, err := d.Run(ctx, Tasks(idx, 10))
func NewDriver(path string, codec storage.Codec, cfg DriverConfig) *Driver {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Driver{path: path, codec: codec, cfg: cfg}
}

// SetOnTaskDone sets a callback invoked after every completed task.
// The callback runs on worker goroutines and must be safe for concurrent use.
//
// Example:
//
//	d.SetOnTaskDone(progress.TaskDone)
func (d *Driver) SetOnTaskDone(callback func(TaskReport)) {
	d.onTaskDone = callback
}

// Run processes every task and returns the summed statistics.
//
// The first failing task stops the run: remaining tasks are abandoned and a
// *RunError is returned with the number of tasks that failed. Malformed or
// out-of-order records are failures. Canceling ctx stops the run with
// ctx.Err().
//
// Implementation:
//  1. Start Workers goroutines, each with its own file handle
//  2. Feed tasks through a channel bounded to the pool size
//  3. Workers seek to each task's offset and process Count records,
//     checking the order against the first record of the next task
//  4. Each worker sends its partial Results once the queue is drained
//  5. Partial results are merged key by key
func (d *Driver) Run(parent context.Context, tasks []Task) (*overlap.Results, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	queue := make(chan Task, d.cfg.Workers)
	partials := make(chan *overlap.Results, d.cfg.Workers)

	var (
		mu     sync.Mutex
		first  error
		failed int
		wg     sync.WaitGroup
	)
	fail := func(err error) {
		mu.Lock()
		if first == nil {
			first = err
		}
		failed++
		mu.Unlock()
		cancel()
	}

	start := time.Now()
	wg.Add(d.cfg.Workers)
	for w := 0; w < d.cfg.Workers; w++ {
		go func(worker int) {
			defer wg.Done()
			res, err := d.work(ctx, worker, queue)
			if err != nil {
				fail(err)
				return
			}
			partials <- res
		}(w)
	}

	go func() {
		defer close(queue)
		for _, t := range tasks {
			select {
			case <-ctx.Done():
				return
			case queue <- t:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(partials)
	}()

	total := overlap.NewResults()
	for res := range partials {
		total.Merge(res)
	}

	if first != nil {
		return nil, &RunError{Failed: failed, Total: len(tasks), Err: first}
	}
	if err := parent.Err(); err != nil {
		return nil, err
	}

	log.Printf("aggregated %s proteins, %s signatures, %s pairs in %d tasks (%v)",
		humanize.Comma(total.Proteins), humanize.Comma(int64(len(total.Signatures))),
		humanize.Comma(int64(len(total.Comparisons))), len(tasks), time.Since(start).Round(time.Millisecond))
	return total, nil
}

// work runs tasks from queue until it is drained or ctx is canceled.
func (d *Driver) work(ctx context.Context, worker int, queue <-chan Task) (*overlap.Results, error) {
	r, err := storage.Open(d.path, d.codec)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	res := overlap.NewResults()
	for t := range queue {
		if ctx.Err() != nil {
			// drain without working so the feeder never blocks
			continue
		}
		start := time.Now()
		if err := d.runTask(r, res, t); err != nil {
			return nil, fmt.Errorf("worker %d, task %d (offset %d): %w", worker, t.ID, t.Offset, err)
		}
		if d.onTaskDone != nil {
			d.onTaskDone(TaskReport{Task: t, Worker: worker, Proteins: t.Count, Elapsed: time.Since(start)})
		}
	}
	return res, nil
}

// runTask processes the task's records into res.
func (d *Driver) runTask(r *storage.Reader, res *overlap.Results, t Task) error {
	if err := r.Seek(t.Offset); err != nil {
		return err
	}
	var prev string
	for i := int64(0); i < t.Count; i++ {
		var rec match.Record
		if err := r.Next(&rec); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if err := rec.Validate(); err != nil {
			return err
		}
		if i > 0 {
			if err := match.CheckOrder(prev, rec.Protein); err != nil {
				return err
			}
		}
		prev = rec.Protein
		d.cfg.Calculator.Process(res, &rec)
	}
	if !t.More {
		return nil
	}
	// the first record of the next task must sort after this task's last
	var next match.Record
	if err := r.Next(&next); err != nil {
		return fmt.Errorf("record %d: %w", t.Count, err)
	}
	return match.CheckOrder(prev, next.Protein)
}
