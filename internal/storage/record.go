package storage

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// ErrRecordTooLarge is returned when a payload does not fit the length prefix.
var ErrRecordTooLarge = errors.New("record too large")

const prefixSize = 4

// Stats contains statistics about a record file
type Stats struct {
	Records int64 // Number of records written or read
	Bytes   int64 // Total size in bytes, prefixes included
}

// Writer appends length-prefixed records to a file or stream.
// Not safe for concurrent use.
type Writer struct {
	file  *os.File      // nil when wrapping a caller-owned stream
	buf   *bufio.Writer // Buffered output
	codec Codec         // Payload encoder
	stats Stats         // Records and bytes written so far
}

// Create creates (or truncates) a record file at path.
func Create(path string, codec Codec) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := NewWriter(f, codec)
	w.file = f
	return w, nil
}

// NewWriter wraps a caller-owned stream. Close flushes but does not close it.
func NewWriter(w io.Writer, codec Codec) *Writer {
	return &Writer{
		buf:   bufio.NewWriterSize(w, 1<<16),
		codec: codec,
	}
}

// Write encodes v and appends it as one record.
func (w *Writer) Write(v any) error {
	payload, err := w.codec.Encode(v)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return w.WriteRaw(payload)
}

// WriteRaw appends an already encoded payload as one record.
func (w *Writer) WriteRaw(payload []byte) error {
	if uint64(len(payload)) > math.MaxUint32 {
		return ErrRecordTooLarge
	}
	var prefix [prefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.buf.Write(prefix[:]); err != nil {
		return err
	}
	if _, err := w.buf.Write(payload); err != nil {
		return err
	}
	w.stats.Records++
	w.stats.Bytes += int64(prefixSize + len(payload))
	return nil
}

// Offset returns the byte position at which the next record will start.
func (w *Writer) Offset() int64 {
	return w.stats.Bytes
}

// Stats returns the number of records and bytes written so far
func (w *Writer) Stats() Stats {
	return w.stats
}

// Close flushes buffered records and closes the file if the Writer owns it.
func (w *Writer) Close() error {
	err := w.buf.Flush()
	if w.file != nil {
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Reader decodes length-prefixed records sequentially.
// Not safe for concurrent use.
type Reader struct {
	file    *os.File      // nil when wrapping a caller-owned stream
	buf     *bufio.Reader // Buffered input
	codec   Codec         // Payload decoder
	payload []byte        // Reused payload buffer
	stats   Stats         // Records and bytes read since the last seek
}

// Open opens a record file for reading.
func Open(path string, codec Codec) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := NewReader(f, codec)
	r.file = f
	return r, nil
}

// NewReader wraps a caller-owned stream. Close does not close it.
func NewReader(r io.Reader, codec Codec) *Reader {
	return &Reader{
		buf:   bufio.NewReaderSize(r, 1<<16),
		codec: codec,
	}
}

// Seek positions the reader at offset, which must be a record boundary.
// Only readers created with Open can seek.
func (r *Reader) Seek(offset int64) error {
	if r.file == nil {
		return errors.New("seek on a stream reader")
	}
	if _, err := r.file.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	r.buf.Reset(r.file)
	r.stats = Stats{}
	return nil
}

// NextRaw returns the next payload. The slice is only valid until the next call.
// It returns io.EOF at a clean end of stream and io.ErrUnexpectedEOF when the
// last record is truncated.
func (r *Reader) NextRaw() ([]byte, error) {
	var prefix [prefixSize]byte
	if _, err := io.ReadFull(r.buf, prefix[:]); err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint32(prefix[:]))
	if cap(r.payload) < n {
		r.payload = make([]byte, n)
	}
	r.payload = r.payload[:n]
	if _, err := io.ReadFull(r.buf, r.payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	r.stats.Records++
	r.stats.Bytes += int64(prefixSize + n)
	return r.payload, nil
}

// Next decodes the next record into v.
func (r *Reader) Next(v any) error {
	payload, err := r.NextRaw()
	if err != nil {
		return err
	}
	if err := r.codec.Decode(payload, v); err != nil {
		return fmt.Errorf("decode record %d: %w", r.stats.Records, err)
	}
	return nil
}

// Stats returns the number of records and bytes read since the last seek
func (r *Reader) Stats() Stats {
	return r.stats
}

// Close closes the file if the Reader owns it.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}
