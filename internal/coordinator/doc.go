// Package coordinator implements the parallel aggregation driver that turns
// the sorted match file into signature and comparison statistics.
//
// # Overview
//
// The match file is split into tasks along its page index. A fixed pool of
// workers claims tasks from a bounded queue, seeks to each task's offset and
// runs the overlap calculator over its records. Each worker keeps its own
// partial statistics and reports them once the queue is drained; the driver
// sums the partial maps key by key.
//
// # Architecture
//
//	     ┌──────────────┐
//	     │  page index  │
//	     └──────┬───────┘
//	            │ Tasks(idx, pagesPerTask)
//	            ▼
//	  ┌───────────────────┐
//	  │  task queue (N)   │
//	  └─┬───────┬───────┬─┘
//	    ▼       ▼       ▼
//	worker 0 worker 1 worker N-1   (own file handle each)
//	    │       │       │
//	    ▼       ▼       ▼
//	  ┌───────────────────┐
//	  │  result channel   │──► Results.Merge ──► totals
//	  └───────────────────┘
//
// # Core Components
//
// Driver: owns the worker pool and the reduction.
//
// Task: a contiguous run of records starting on a page boundary.
//
// Progress: a ticker that logs completed tasks and throughput, fed by the
// driver's task callback.
//
// # Correctness
//
// Counter addition is commutative and associative, so the totals are the
// same for any number of workers, any grouping of pages into tasks and any
// completion order. Workers share no mutable state and take no locks.
//
// # Failure Handling
//
// The first failing task cancels the run. Workers stop claiming work, the
// remaining tasks are abandoned, and Run returns a *RunError carrying the
// number of failed tasks. There is no retry at this layer, and partial
// statistics of a failed run are discarded.
package coordinator
