package organizer

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/exp/slices"

	"github.com/dreamware/sigcmp/internal/storage"
)

// ErrKeyBelowRange is returned when a key sorts before the first boundary.
var ErrKeyBelowRange = errors.New("key below first boundary")

// Aggregator is the disk-spilling map contract implemented by Organizer.
type Aggregator[K cmp.Ordered, V any] interface {
	Add(key K, value V) error
	Flush() error
	Merge(workers int) (int64, error)
	Iterator() *Iterator[K, V]
}

var _ Aggregator[string, int] = (*Organizer[string, int])(nil)

// entry is one key and its values as stored in a run file.
type entry[K cmp.Ordered, V any] struct {
	Key    K   `json:"k"`
	Values []V `json:"v"`
}

type bucket[K cmp.Ordered, V any] struct {
	path string
	data map[K][]V
}

// Organizer is a disk-spilling map from ordered keys to lists of values.
//
// The key space is cut into len(keys) half-open ranges by the boundary keys;
// range i holds keys k with keys[i] <= k < keys[i+1]. Each range buffers its
// values in memory and Flush appends them to the range's run file. After
// Merge, iterating the Organizer yields every key once, in ascending order,
// with its values in insertion order.
//
// An Organizer owns a private directory. It is not safe for concurrent use;
// each worker builds its own and MergeIterators combines them.
type Organizer[K cmp.Ordered, V any] struct {
	keys     []K
	dir      string
	buckets  []*bucket[K, V]
	buffered int
}

// New creates an Organizer in a fresh temporary directory under dir (the
// system default when dir is empty). keys must be non-empty and strictly
// ascending.
func New[K cmp.Ordered, V any](keys []K, dir string) (*Organizer[K, V], error) {
	if len(keys) == 0 {
		return nil, errors.New("organizer needs at least one boundary key")
	}
	for i := 1; i < len(keys); i++ {
		if keys[i] <= keys[i-1] {
			return nil, fmt.Errorf("boundary keys not strictly ascending at %d: %v after %v", i, keys[i], keys[i-1])
		}
	}

	tmp, err := os.MkdirTemp(dir, "organizer-")
	if err != nil {
		return nil, err
	}
	o := &Organizer[K, V]{
		keys:    slices.Clone(keys),
		dir:     tmp,
		buckets: make([]*bucket[K, V], len(keys)),
	}
	for i := range o.buckets {
		o.buckets[i] = &bucket[K, V]{
			path: filepath.Join(tmp, strconv.Itoa(i+1)),
			data: make(map[K][]V),
		}
	}
	return o, nil
}

// Boundaries picks every bucketSize-th key of sorted, distinct keys as a
// boundary, so that each range holds about bucketSize known keys.
func Boundaries[K cmp.Ordered](keys []K, bucketSize int) []K {
	if bucketSize < 1 {
		bucketSize = 1
	}
	var out []K
	for i := 0; i < len(keys); i += bucketSize {
		out = append(out, keys[i])
	}
	return out
}

// Dir returns the Organizer's private directory
func (o *Organizer[K, V]) Dir() string { return o.dir }

// Buffered returns the number of values held in memory since the last Flush.
func (o *Organizer[K, V]) Buffered() int { return o.buffered }

func (o *Organizer[K, V]) route(key K) (*bucket[K, V], error) {
	// index of the first boundary greater than key
	i, found := slices.BinarySearch(o.keys, key)
	if found {
		i++
	}
	if i == 0 {
		return nil, fmt.Errorf("%w: %v < %v", ErrKeyBelowRange, key, o.keys[0])
	}
	return o.buckets[i-1], nil
}

// Add buffers value under key.
func (o *Organizer[K, V]) Add(key K, value V) error {
	b, err := o.route(key)
	if err != nil {
		return err
	}
	b.data[key] = append(b.data[key], value)
	o.buffered++
	return nil
}

// Flush appends one block per non-empty range to its run file and clears
// the buffers.
func (o *Organizer[K, V]) Flush() error {
	for _, b := range o.buckets {
		if len(b.data) == 0 {
			continue
		}
		block := make([]entry[K, V], 0, len(b.data))
		for k, vs := range b.data {
			block = append(block, entry[K, V]{Key: k, Values: vs})
		}
		if err := appendBlocks(b.path, [][]entry[K, V]{block}); err != nil {
			return err
		}
		b.data = make(map[K][]V)
	}
	o.buffered = 0
	return nil
}

// Write appends an already aggregated key directly to its run file,
// bypassing the buffer. Keys written in ascending order need no Merge.
func (o *Organizer[K, V]) Write(key K, values []V) error {
	b, err := o.route(key)
	if err != nil {
		return err
	}
	return appendBlocks(b.path, [][]entry[K, V]{{{Key: key, Values: values}}})
}

// Merge rewrites every run file as a single ascending sequence of keys,
// merging up to workers run files at once. Buffered values must have been
// flushed. It returns the larger of the on-disk sizes before and after.
func (o *Organizer[K, V]) Merge(workers int) (int64, error) {
	if o.buffered > 0 {
		return 0, fmt.Errorf("merge with %d unflushed values", o.buffered)
	}
	before, err := o.Size()
	if err != nil {
		return 0, err
	}

	sem := make(chan struct{}, max(workers, 1))
	errs := make([]error, len(o.buckets))
	var wg sync.WaitGroup
	for i, b := range o.buckets {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, path string) {
			defer func() { <-sem; wg.Done() }()
			errs[i] = mergeRun[K, V](path)
		}(i, b.path)
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return 0, err
	}

	after, err := o.Size()
	if err != nil {
		return 0, err
	}
	return max(before, after), nil
}

// Size returns the total bytes of the run files.
func (o *Organizer[K, V]) Size() (int64, error) {
	var size int64
	for _, b := range o.buckets {
		info, err := os.Stat(b.path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
		size += info.Size()
	}
	return size, nil
}

// Remove deletes the run files and the private directory.
func (o *Organizer[K, V]) Remove() error {
	return os.RemoveAll(o.dir)
}

// Iterator returns an iterator over the run files in range order.
func (o *Organizer[K, V]) Iterator() *Iterator[K, V] {
	paths := make([]string, len(o.buckets))
	for i, b := range o.buckets {
		paths[i] = b.path
	}
	return &Iterator[K, V]{paths: paths}
}

func mergeRun[K cmp.Ordered, V any](path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	data := make(map[K][]V)
	err := readBlocks(path, func(block []entry[K, V]) error {
		for _, e := range block {
			data[e.Key] = append(data[e.Key], e.Values...)
		}
		return nil
	})
	if err != nil {
		return err
	}

	keys := make([]K, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	blocks := make([][]entry[K, V], len(keys))
	for i, k := range keys {
		blocks[i] = []entry[K, V]{{Key: k, Values: data[k]}}
	}

	tmp := path + ".tmp"
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := appendBlocks(tmp, blocks); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// appendBlocks writes blocks as one zstd frame appended to path.
func appendBlocks[K cmp.Ordered, V any](path string, blocks [][]entry[K, V]) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		f.Close()
		return err
	}
	w := storage.NewWriter(enc, storage.JSONCodec{})
	for _, block := range blocks {
		if err := w.Write(block); err != nil {
			enc.Close()
			f.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		enc.Close()
		f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// readBlocks calls fn for every block of the run file at path.
func readBlocks[K cmp.Ordered, V any](path string, fn func([]entry[K, V]) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return err
	}
	defer dec.Close()

	r := storage.NewReader(dec, storage.JSONCodec{})
	for {
		var block []entry[K, V]
		err := r.Next(&block)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := fn(block); err != nil {
			return err
		}
	}
}
