package shard

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/dreamware/sigcmp/internal/storage"
)

// ErrDuplicateAccession is returned when a protein appears more than once
// across the shards being merged. Shards must partition the proteins.
var ErrDuplicateAccession = errors.New("duplicate protein accession")

// MergeOptions controls Merge.
type MergeOptions struct {
	PageSize   int  // Records per index page (>= 1)
	Workers    int  // Concurrent shard sorts (>= 1)
	KeepShards bool // Keep shard files after a successful merge
}

// MergeResult describes the merged match file.
type MergeResult struct {
	Path  string        // Match file
	Index storage.Index // Page index, also written to storage.IndexPath(Path)
	Stats storage.Stats // Records and bytes written
}

// head is the part of a record needed to order it.
type head struct {
	Protein string `json:"protein"`
}

// Merge sorts every shard by protein accession, k-way merges them into out
// and writes the page index next to it.
//
// Output and index are first written to temporary files and only renamed
// into place once both are complete. On failure the temporary files are
// removed and the shards are left untouched. On success the shards are
// deleted unless opts.KeepShards is set.
func Merge(ctx context.Context, shards []*Shard, out string, codec storage.Codec, opts MergeOptions) (*MergeResult, error) {
	if opts.PageSize < 1 {
		return nil, fmt.Errorf("invalid page size %d", opts.PageSize)
	}
	if err := sortShards(ctx, shards, codec, max(opts.Workers, 1)); err != nil {
		return nil, err
	}

	tmpOut := out + ".tmp"
	tmpIdx := storage.IndexPath(out) + ".tmp"
	res, err := mergeSorted(ctx, shards, tmpOut, codec, opts.PageSize)
	if err == nil {
		err = storage.WriteIndex(tmpIdx, res.Index)
	}
	// the index goes first so that a match file in place always has one
	if err == nil {
		err = os.Rename(tmpIdx, storage.IndexPath(out))
	}
	if err == nil {
		if err = os.Rename(tmpOut, out); err != nil {
			os.Remove(storage.IndexPath(out))
		}
	}
	if err != nil {
		os.Remove(tmpOut)
		os.Remove(tmpIdx)
		return nil, err
	}
	res.Path = out

	if !opts.KeepShards {
		for _, s := range shards {
			if err := s.Remove(); err != nil {
				return nil, fmt.Errorf("remove shard %d: %w", s.ID, err)
			}
		}
	}

	log.Printf("merged %s records from %d shards into %s (%d pages, %s)",
		humanize.Comma(res.Stats.Records), len(shards), out, len(res.Index),
		humanize.Bytes(uint64(res.Stats.Bytes)))
	return res, nil
}

// sortShards sorts shards concurrently and returns the first error along
// with the number of shards that failed.
func sortShards(ctx context.Context, shards []*Shard, codec storage.Codec, workers int) error {
	jobs := make(chan *Shard)
	var (
		mu     sync.Mutex
		first  error
		failed int
		wg     sync.WaitGroup
	)
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for s := range jobs {
				if err := SortShard(s, codec); err != nil {
					mu.Lock()
					if first == nil {
						first = err
					}
					failed++
					mu.Unlock()
				}
			}
		}()
	}

feed:
	for _, s := range shards {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- s:
		}
	}
	close(jobs)
	wg.Wait()

	if first != nil {
		return fmt.Errorf("sort failed for %d of %d shards: %w", failed, len(shards), first)
	}
	return ctx.Err()
}

type entry struct {
	protein string
	payload []byte
}

// SortShard rewrites a shard in ascending protein order. A shard holds at
// most the exporter's buffer size in records, so it is sorted in memory.
// A protein repeated within the shard is an error.
func SortShard(s *Shard, codec storage.Codec) error {
	r, err := storage.Open(s.Path, codec)
	if err != nil {
		return err
	}
	var entries []entry
	for {
		raw, err := r.NextRaw()
		if err == io.EOF {
			break
		}
		if err != nil {
			r.Close()
			return fmt.Errorf("shard %d: %w", s.ID, err)
		}
		var h head
		if err := codec.Decode(raw, &h); err != nil {
			r.Close()
			return fmt.Errorf("shard %d: %w", s.ID, err)
		}
		entries = append(entries, entry{protein: h.Protein, payload: append([]byte(nil), raw...)})
	}
	r.Close()

	sorted := sort.SliceIsSorted(entries, func(i, j int) bool { return entries[i].protein < entries[j].protein })
	if !sorted {
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].protein < entries[j].protein })
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].protein == entries[i-1].protein {
			return fmt.Errorf("%w: %s repeated in shard %d", ErrDuplicateAccession, entries[i].protein, s.ID)
		}
	}

	if !sorted {
		tmp := s.Path + ".tmp"
		w, err := storage.Create(tmp, codec)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := w.WriteRaw(e.payload); err != nil {
				w.Close()
				os.Remove(tmp)
				return err
			}
		}
		if err := w.Close(); err != nil {
			os.Remove(tmp)
			return err
		}
		if err := os.Rename(tmp, s.Path); err != nil {
			os.Remove(tmp)
			return err
		}
	}
	s.SetState(ShardStateSorted)
	return nil
}

// cursor is the current record of one sorted shard during the k-way merge.
type cursor struct {
	shard   int
	protein string
	payload []byte
	reader  *storage.Reader
}

func (c *cursor) advance(codec storage.Codec) (bool, error) {
	raw, err := c.reader.NextRaw()
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var h head
	if err := codec.Decode(raw, &h); err != nil {
		return false, err
	}
	c.protein = h.Protein
	c.payload = append(c.payload[:0], raw...)
	return true, nil
}

type cursorHeap []*cursor

func (h cursorHeap) Len() int { return len(h) }
func (h cursorHeap) Less(i, j int) bool {
	if h[i].protein != h[j].protein {
		return h[i].protein < h[j].protein
	}
	return h[i].shard < h[j].shard
}
func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x any)   { *h = append(*h, x.(*cursor)) }
func (h *cursorHeap) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}

// mergeSorted k-way merges sorted shards into path, recording a page
// boundary every pageSize records.
func mergeSorted(ctx context.Context, shards []*Shard, path string, codec storage.Codec, pageSize int) (*MergeResult, error) {
	h := make(cursorHeap, 0, len(shards))
	defer func() {
		for _, c := range h {
			c.reader.Close()
		}
	}()
	for _, s := range shards {
		r, err := storage.Open(s.Path, codec)
		if err != nil {
			return nil, err
		}
		c := &cursor{shard: s.ID, reader: r}
		ok, err := c.advance(codec)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("shard %d: %w", s.ID, err)
		}
		if !ok {
			r.Close()
			continue
		}
		h = append(h, c)
	}
	heap.Init(&h)

	w, err := storage.Create(path, codec)
	if err != nil {
		return nil, err
	}

	var (
		idx       storage.Index
		last      string
		lastShard int
		n         int64
	)
	for h.Len() > 0 {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				w.Close()
				return nil, err
			}
		}

		c := h[0]
		if n > 0 && c.protein == last {
			w.Close()
			return nil, fmt.Errorf("%w: %s in shards %d and %d", ErrDuplicateAccession, c.protein, lastShard, c.shard)
		}
		if n%int64(pageSize) == 0 {
			idx = append(idx, storage.Page{Offset: w.Offset()})
		}
		if err := w.WriteRaw(c.payload); err != nil {
			w.Close()
			return nil, err
		}
		idx[len(idx)-1].Count++
		last, lastShard = c.protein, c.shard
		n++

		ok, err := c.advance(codec)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("shard %d: %w", c.shard, err)
		}
		if ok {
			heap.Fix(&h, 0)
		} else {
			heap.Pop(&h)
			c.reader.Close()
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return &MergeResult{Index: idx, Stats: w.Stats()}, nil
}
