package organizer

import (
	"cmp"
	"container/heap"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/dreamware/sigcmp/internal/storage"
)

// Iterator walks the keys of an Organizer range by range.
//
//	it := o.Iterator()
//	defer it.Close()
//	for it.Next() {
//		use(it.Key(), it.Values())
//	}
//	if err := it.Err(); err != nil { ... }
//
// Keys come out in ascending order only once the Organizer was merged, or
// when every key was written with Write in ascending order.
type Iterator[K cmp.Ordered, V any] struct {
	paths []string
	next  int

	file   *os.File
	dec    *zstd.Decoder
	reader *storage.Reader

	block []entry[K, V]
	pos   int
	cur   entry[K, V]
	err   error
}

// Next advances to the next key and reports whether there is one.
func (it *Iterator[K, V]) Next() bool {
	for it.err == nil {
		if it.pos < len(it.block) {
			it.cur = it.block[it.pos]
			it.pos++
			return true
		}
		if it.reader == nil && !it.openNext() {
			return false
		}

		var block []entry[K, V]
		err := it.reader.Next(&block)
		if err == io.EOF {
			it.closeRun()
			continue
		}
		if err != nil {
			it.err = fmt.Errorf("%s: %w", it.paths[it.next-1], err)
			return false
		}
		it.block, it.pos = block, 0
	}
	return false
}

// openNext opens the next existing run file.
func (it *Iterator[K, V]) openNext() bool {
	for it.next < len(it.paths) {
		path := it.paths[it.next]
		it.next++

		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			it.err = err
			return false
		}
		dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			f.Close()
			it.err = err
			return false
		}
		it.file, it.dec = f, dec
		it.reader = storage.NewReader(dec, storage.JSONCodec{})
		return true
	}
	return false
}

func (it *Iterator[K, V]) closeRun() {
	if it.dec != nil {
		it.dec.Close()
		it.file.Close()
	}
	it.file, it.dec, it.reader = nil, nil, nil
	it.block, it.pos = nil, 0
}

// Key returns the current key
func (it *Iterator[K, V]) Key() K { return it.cur.Key }

// Values returns the current key's values
func (it *Iterator[K, V]) Values() []V { return it.cur.Values }

// Err returns the first error met by Next
func (it *Iterator[K, V]) Err() error { return it.err }

// Close releases the open run file, if any.
func (it *Iterator[K, V]) Close() {
	it.closeRun()
	it.next = len(it.paths)
}

type head[K cmp.Ordered, V any] struct {
	it    *Iterator[K, V]
	order int
}

type iterHeap[K cmp.Ordered, V any] []head[K, V]

func (h iterHeap[K, V]) Len() int { return len(h) }
func (h iterHeap[K, V]) Less(i, j int) bool {
	if c := cmp.Compare(h[i].it.Key(), h[j].it.Key()); c != 0 {
		return c < 0
	}
	return h[i].order < h[j].order
}
func (h iterHeap[K, V]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *iterHeap[K, V]) Push(x any)   { *h = append(*h, x.(head[K, V])) }
func (h *iterHeap[K, V]) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}

// MergeIterators k-way merges iterators of merged Organizers and calls fn
// once per distinct key, in ascending key order, with the values of every
// iterator holding that key concatenated in iterator order. Iterators are
// closed before MergeIterators returns.
func MergeIterators[K cmp.Ordered, V any](its []*Iterator[K, V], fn func(key K, values []V) error) error {
	defer func() {
		for _, it := range its {
			it.Close()
		}
	}()

	h := make(iterHeap[K, V], 0, len(its))
	for i, it := range its {
		if it.Next() {
			h = append(h, head[K, V]{it: it, order: i})
		} else if err := it.Err(); err != nil {
			return err
		}
	}
	heap.Init(&h)

	for h.Len() > 0 {
		key := h[0].it.Key()
		var values []V
		for h.Len() > 0 && h[0].it.Key() == key {
			top := h[0]
			values = append(values, top.it.Values()...)
			if top.it.Next() {
				heap.Fix(&h, 0)
				continue
			}
			if err := top.it.Err(); err != nil {
				return err
			}
			heap.Pop(&h)
		}
		if err := fn(key, values); err != nil {
			return err
		}
	}
	return nil
}
