// Package shard turns the upstream stream of protein-to-signature rows into a
// single match file sorted by protein accession, with a page index that lets
// later stages split the file into independent units of work.
//
// # Overview
//
// Building the match file happens in two phases. The Exporter consumes one
// RowSource per worker, groups rows into per-protein records and writes them
// to shard files, never holding more than a bounded number of records in
// memory. Merge then sorts every shard and k-way merges them into the final
// file.
//
//	RowSource 0 ──► worker 0 ──► 000-000000.shard, 000-000001.shard ...
//	RowSource 1 ──► worker 1 ──► 001-000000.shard ...
//	                                    │
//	                                    ▼
//	                          sort each shard (parallel)
//	                                    │
//	                                    ▼
//	                       k-way merge by (protein, shard ID)
//	                                    │
//	                    ┌───────────────┴───────────────┐
//	                    ▼                               ▼
//	              matches (records)              matches.idx (pages)
//
// # Shard Lifecycle
//
//	open ──► sealed ──► sorted ──► deleted
//
// A shard is open while its exporter writes it, sealed once closed, sorted
// after Merge rewrote it in protein order, and deleted after a successful
// merge consumed it.
//
// # Invariants
//
// The match file holds every record of every shard exactly once, in
// non-decreasing protein order. A protein found in more than one shard, or
// twice in one shard, makes Merge fail with ErrDuplicateAccession rather
// than silently combining the records.
//
// Every page of the index starts on a record boundary and the pages cover
// the file exactly. Only the last page may hold fewer than PageSize records.
//
// # Failure Handling
//
// A failed export removes every shard its workers wrote. A failed merge
// leaves the shards in place and removes its partial output, so the merge
// can be retried.
package shard
