package shard

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
)

// ShardState represents the lifecycle stage of a shard file
type ShardState string

const (
	// ShardStateOpen means an exporter is still writing the shard
	ShardStateOpen ShardState = "open"
	// ShardStateSealed means the shard is complete but unsorted
	ShardStateSealed ShardState = "sealed"
	// ShardStateSorted means the shard has been rewritten in protein order
	ShardStateSorted ShardState = "sorted"
	// ShardStateDeleted means the shard was consumed by a successful merge
	ShardStateDeleted ShardState = "deleted"
)

// Extension is the file extension of shard files.
const Extension = ".shard"

// Shard is one exporter output file holding a bounded number of records.
// A protein appears at most once per shard and, for valid input, in at most
// one shard overall.
type Shard struct {
	ID    int         // Merge order; ties between shards are broken by ID
	Path  string      // Location of the shard file
	State ShardState  // Current lifecycle stage
	Stats *ShardStats // Write statistics
	mu    sync.RWMutex
}

// ShardStats tracks what an exporter wrote into a shard
type ShardStats struct {
	Rows    uint64 // Upstream rows grouped into the shard
	Records uint64 // Per-protein records written
	Bytes   uint64 // File size in bytes
}

// ShardInfo contains a snapshot of a shard's metadata
type ShardInfo struct {
	ID      int
	Path    string
	State   ShardState
	Rows    uint64
	Records uint64
	Bytes   uint64
}

// NewShard creates a shard descriptor in the open state.
func NewShard(id int, path string) *Shard {
	return &Shard{
		ID:    id,
		Path:  path,
		State: ShardStateOpen,
		Stats: &ShardStats{},
	}
}

// Info returns metadata about the shard
func (s *Shard) Info() ShardInfo {
	s.mu.RLock()
	state := s.State
	s.mu.RUnlock()

	return ShardInfo{
		ID:      s.ID,
		Path:    s.Path,
		State:   state,
		Rows:    atomic.LoadUint64(&s.Stats.Rows),
		Records: atomic.LoadUint64(&s.Stats.Records),
		Bytes:   atomic.LoadUint64(&s.Stats.Bytes),
	}
}

// SetState updates the shard state
func (s *Shard) SetState(state ShardState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = state
}

// Remove deletes the shard file and marks the shard deleted.
func (s *Shard) Remove() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	s.SetState(ShardStateDeleted)
	return nil
}

// ListShards returns the shard files found in dir, ordered by file name,
// with IDs assigned in that order. Shards found on disk are assumed sealed.
func ListShards(dir string) ([]*Shard, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*"+Extension))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	shards := make([]*Shard, 0, len(paths))
	for i, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		s := NewShard(i, p)
		s.State = ShardStateSealed
		s.Stats.Bytes = uint64(info.Size())
		shards = append(shards, s)
	}
	return shards, nil
}

func shardName(worker, seq int) string {
	return fmt.Sprintf("%03d-%06d%s", worker, seq, Extension)
}
