package storage

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrBadIndex is returned when an index does not partition its match file.
var ErrBadIndex = errors.New("invalid page index")

// Page addresses a contiguous run of records in a match file.
type Page struct {
	Offset int64 // Byte offset of the page's first record
	Count  int32 // Number of records in the page
}

// On-disk sizes of the index page count and of one page.
const (
	indexHeaderSize = 4
	pageBytes       = 12
)

// Index lists the pages of a match file in file order.
type Index []Page

// IndexPath returns the conventional index location for a match file.
func IndexPath(path string) string {
	return path + ".idx"
}

// Records returns the total number of records addressed by the index.
func (idx Index) Records() int64 {
	var n int64
	for _, p := range idx {
		n += int64(p.Count)
	}
	return n
}

// Check verifies that pages start at zero, are strictly increasing, and are
// all non-empty. Gaps and overlaps between pages cannot be detected without
// reading the file; Verify does that.
func (idx Index) Check() error {
	for i, p := range idx {
		if p.Count <= 0 {
			return fmt.Errorf("%w: page %d is empty", ErrBadIndex, i)
		}
		if i == 0 && p.Offset != 0 {
			return fmt.Errorf("%w: first page starts at %d", ErrBadIndex, p.Offset)
		}
		if i > 0 && p.Offset <= idx[i-1].Offset {
			return fmt.Errorf("%w: page %d offset %d not after %d", ErrBadIndex, i, p.Offset, idx[i-1].Offset)
		}
	}
	return nil
}

// Verify reads the whole match file and checks that the index covers it
// exactly: every page ends where the next one starts and the last page ends
// at end of file.
func (idx Index) Verify(path string) error {
	if err := idx.Check(); err != nil {
		return err
	}
	r, err := Open(path, JSONCodec{})
	if err != nil {
		return err
	}
	defer r.Close()

	var offset int64
	for i, p := range idx {
		if p.Offset != offset {
			return fmt.Errorf("%w: page %d starts at %d, expected %d", ErrBadIndex, i, p.Offset, offset)
		}
		for n := int32(0); n < p.Count; n++ {
			if _, err := r.NextRaw(); err != nil {
				return fmt.Errorf("%w: page %d record %d: %v", ErrBadIndex, i, n, err)
			}
		}
		offset += r.Stats().Bytes
		r.stats = Stats{}
	}
	if _, err := r.NextRaw(); err != io.EOF {
		return fmt.Errorf("%w: records after last page", ErrBadIndex)
	}
	return nil
}

// WriteIndex writes idx to path.
func WriteIndex(path string, idx Index) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.BigEndian, uint32(len(idx))); err != nil {
		f.Close()
		return err
	}
	for _, p := range idx {
		if err := binary.Write(w, binary.BigEndian, p); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadIndex reads an index written by WriteIndex.
func ReadIndex(path string) (Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	r := bufio.NewReader(f)
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadIndex, err)
	}
	if want := indexHeaderSize + int64(n)*pageBytes; info.Size() != want {
		return nil, fmt.Errorf("%w: %d pages need %d bytes, file has %d", ErrBadIndex, n, want, info.Size())
	}
	idx := make(Index, n)
	if err := binary.Read(r, binary.BigEndian, idx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadIndex, err)
	}
	return idx, nil
}
