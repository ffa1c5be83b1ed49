// Package organizer provides a disk-spilling, key-partitioned map used for
// aggregations that do not fit in memory.
//
// # Overview
//
// An Organizer is built from an ascending list of boundary keys. Every
// boundary opens a half-open key range backed by one run file:
//
//	keys:    "A"            "F"            "P"
//	         │              │              │
//	ranges:  [A, F) ──► 1   [F, P) ──► 2   [P, ∞) ──► 3
//
// Add buffers values in memory under their range. Flush appends one block
// per range to its run file; callers flush whenever Buffered grows past
// their memory budget. Merge rewrites every run file as one ascending
// sequence of (key, values) pairs. Because ranges are disjoint and ordered,
// iterating the run files in range order then yields a globally sorted
// stream with no cross-range merge.
//
// # Run Files
//
// Each Flush appends a zstd frame holding one length-prefixed record (the
// whole block). A merged file is a single frame of one-key records. Readers
// decode concatenated frames as one stream, so appending never rewrites
// earlier data.
//
// # Combining Organizers
//
// Workers never share an Organizer. Each builds its own over the same
// boundaries and MergeIterators k-way merges their iterators, concatenating
// the values of equal keys in worker order.
package organizer
