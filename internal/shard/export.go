package shard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/dreamware/sigcmp/internal/match"
	"github.com/dreamware/sigcmp/internal/storage"
)

// Exporter groups upstream rows into per-protein records and writes them,
// unsorted, into shard files. Each source is consumed by its own worker;
// workers share nothing but the output directory.
type Exporter struct {
	dir        string        // Output directory for shard files
	codec      storage.Codec // Record payload codec
	maxRecords int           // Records buffered before a shard is written
}

// NewExporter creates an exporter writing into dir. A worker writes a new
// shard every time it has buffered maxRecords distinct proteins, which bounds
// both the worker's memory and the size of each shard.
func NewExporter(dir string, codec storage.Codec, maxRecords int) *Exporter {
	if maxRecords < 1 {
		maxRecords = 1
	}
	return &Exporter{dir: dir, codec: codec, maxRecords: maxRecords}
}

// Export runs one worker per source and returns all written shards, ordered
// by worker then by write order, with IDs assigned in that order.
//
// If any worker fails the others are stopped, every shard written so far is
// removed, and the error reports how many workers failed.
func (e *Exporter) Export(ctx context.Context, sources []RowSource) ([]*Shard, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	perWorker := make([][]*Shard, len(sources))
	errs := make([]error, len(sources))
	var failed int32

	var wg sync.WaitGroup
	wg.Add(len(sources))
	for i, src := range sources {
		go func(i int, src RowSource) {
			defer wg.Done()
			perWorker[i], errs[i] = e.run(ctx, i, src)
			if errs[i] != nil {
				atomic.AddInt32(&failed, 1)
				cancel()
			}
		}(i, src)
	}
	wg.Wait()

	var shards []*Shard
	for _, ws := range perWorker {
		shards = append(shards, ws...)
	}

	if atomic.LoadInt32(&failed) > 0 {
		for _, s := range shards {
			_ = s.Remove()
		}
		return nil, exportError(errs)
	}

	var rows, records uint64
	for i, s := range shards {
		s.ID = i
		info := s.Info()
		rows += info.Rows
		records += info.Records
	}
	log.Printf("exported %s rows as %s records into %d shards",
		humanize.Comma(int64(rows)), humanize.Comma(int64(records)), len(shards))
	return shards, nil
}

// run is the body of one export worker.
func (e *Exporter) run(ctx context.Context, worker int, src RowSource) ([]*Shard, error) {
	var (
		shards  []*Shard
		buffer  = make(map[string]*match.Record, e.maxRecords)
		order   = make([]string, 0, e.maxRecords)
		rows    uint64
		written int
		// proteins already in a written shard, by shard sequence number
		flushed = make(map[string]int)
	)

	flush := func() error {
		if len(order) == 0 {
			return nil
		}
		s := NewShard(written, filepath.Join(e.dir, shardName(worker, written)))
		shards = append(shards, s)
		if err := e.writeShard(s, buffer, order, rows); err != nil {
			return err
		}
		for _, acc := range order {
			flushed[acc] = written
		}
		written++
		clear(buffer)
		order = order[:0]
		rows = 0
		return nil
	}

	for n := 0; ; n++ {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return shards, err
			}
		}

		row, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return shards, fmt.Errorf("worker %d: %w", worker, err)
		}

		fs, err := row.FragmentSet()
		if err != nil {
			return shards, fmt.Errorf("worker %d: %s/%s: %w", worker, row.Protein, row.Signature, err)
		}

		rec, ok := buffer[row.Protein]
		if !ok {
			if seq, done := flushed[row.Protein]; done {
				return shards, fmt.Errorf("worker %d: row %d: %w: %s already written to shard %s, rows of a protein must be contiguous",
					worker, n+1, ErrDuplicateAccession, row.Protein, shardName(worker, seq))
			}
			if len(order) == e.maxRecords {
				if err := flush(); err != nil {
					return shards, err
				}
			}
			rec = match.NewRecord(row.Protein, row.Reviewed, !row.Fragment, row.TaxonLeft)
			buffer[row.Protein] = rec
			order = append(order, row.Protein)
		}
		rec.Add(row.Signature, row.Database, fs)
		rows++
	}

	return shards, flush()
}

func (e *Exporter) writeShard(s *Shard, buffer map[string]*match.Record, order []string, rows uint64) error {
	w, err := storage.Create(s.Path, e.codec)
	if err != nil {
		return err
	}
	for _, acc := range order {
		if err := w.Write(buffer[acc]); err != nil {
			w.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	stats := w.Stats()
	atomic.StoreUint64(&s.Stats.Rows, rows)
	atomic.StoreUint64(&s.Stats.Records, uint64(stats.Records))
	atomic.StoreUint64(&s.Stats.Bytes, uint64(stats.Bytes))
	s.SetState(ShardStateSealed)
	return nil
}

// exportError summarizes worker failures. Workers stopped because another
// worker failed are not counted.
func exportError(errs []error) error {
	var first error
	failed := 0
	for _, err := range errs {
		if err == nil || errors.Is(err, context.Canceled) {
			continue
		}
		if first == nil {
			first = err
		}
		failed++
	}
	if first == nil {
		return context.Canceled
	}
	return fmt.Errorf("export failed in %d of %d workers: %w", failed, len(errs), first)
}
