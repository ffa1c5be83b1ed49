// Package storage implements the on-disk record stream used by every stage of
// the aggregation engine: the exported shard files, the globally sorted match
// file, and the run files of the partitioned aggregator.
//
// # Overview
//
// A record file is a plain concatenation of length-prefixed payloads. Each
// payload is produced by a Codec (JSON, optionally compressed with zstd), so a
// reader positioned on any record boundary can resume without scanning from
// the start of the file. This is what makes the page index useful: workers
// seek straight to a page's byte offset and decode from there.
//
// # File Layout
//
//	┌────────────┬──────────────────┬────────────┬──────────────────┬───
//	│ len uint32 │ payload (len B)  │ len uint32 │ payload (len B)  │ ...
//	└────────────┴──────────────────┴────────────┴──────────────────┴───
//	^ page 0 offset                              ^ page 1 offset
//
// The sibling index file is itself length-prefixed: a uint32 entry count
// followed by that many (offset int64, count int32) pairs, big-endian.
//
// # Core Types
//
// Writer: appends records and tracks the byte offset of the next write.
//
// Reader: decodes records sequentially; Seek repositions it on a record
// boundary taken from the index.
//
// Codec: turns values into payload bytes and back. JSONCodec is the default;
// ZstdCodec compresses every payload independently so that offsets stay valid.
//
// Index: the list of Page descriptors for a match file.
//
// # Concurrency and Thread Safety
//
// Writers and Readers are not safe for concurrent use; each worker opens its
// own Reader with its own file handle and seek position. Codecs are safe for
// concurrent use and are normally shared.
//
// # Error Handling
//
// A payload cut short by the end of the file yields io.ErrUnexpectedEOF; a
// clean end of stream yields io.EOF. File system errors are returned unwrapped
// by type so callers can detect *os.PathError (disk full, permissions).
package storage
