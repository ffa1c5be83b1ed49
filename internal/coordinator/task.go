// Package coordinator provides the parallel aggregation driver.
// This file defines the units of work handed to workers.
package coordinator

import (
	"github.com/dreamware/sigcmp/internal/storage"
)

// Task is a contiguous run of records in the match file.
// Tasks built from a page index start on a record boundary.
type Task struct {
	ID     int   // Position of the task in the run
	Offset int64 // Byte offset of the first record
	Count  int64 // Number of records to process
	Pages  int   // Number of index pages covered
	More   bool  // Records follow the task in the file
}

// Tasks groups consecutive index pages into tasks of pagesPerTask pages.
// The last task may cover fewer pages.
//
// Parameters:
//   - idx: Page index of the match file
//   - pagesPerTask: Pages claimed by a worker at a time (values < 1 mean 1)
//
// Returns:
//   - []Task: Tasks covering every page exactly once, in file order
//
// Example:
//
//	idx, _ := storage.ReadIndex(storage.IndexPath(path))
//	tasks := Tasks(idx, 10)
func Tasks(idx storage.Index, pagesPerTask int) []Task {
	if pagesPerTask < 1 {
		pagesPerTask = 1
	}
	var tasks []Task
	for i := 0; i < len(idx); i += pagesPerTask {
		end := min(i+pagesPerTask, len(idx))
		t := Task{ID: len(tasks), Offset: idx[i].Offset, Pages: end - i, More: end < len(idx)}
		for _, p := range idx[i:end] {
			t.Count += int64(p.Count)
		}
		tasks = append(tasks, t)
	}
	return tasks
}
