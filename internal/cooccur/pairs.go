package cooccur

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/exp/slices"

	"github.com/dreamware/sigcmp/internal/organizer"
)

// Group is a set of signatures sharing one property value, such as a
// protein description or a taxon. Label qualifies the property (a taxonomic
// rank, or empty).
type Group struct {
	Label      string
	Signatures []string
}

// Peer is one co-occurrence of the key signature with Other.
type Peer struct {
	Label string `json:"l"`
	Other string `json:"o"`
}

// PairCount is the number of groups of a label shared by the key signature
// and Other.
type PairCount struct {
	Label string `json:"l"`
	Other string `json:"o"`
	Count int    `json:"n"`
}

// Options configures CountPairs.
type Options struct {
	Dir        string // Parent directory of the Organizers' private directories
	Workers    int    // Concurrent group consumers
	FlushEvery int    // Buffered peers that trigger a flush
}

// Counts is the result of CountPairs.
type Counts struct {
	// Pairs holds, per signature, the counts of every signature sorting
	// after it. Remove it once consumed.
	Pairs *organizer.Organizer[string, PairCount]
	// Groups counts the groups of every label each signature belongs to.
	Groups map[string]map[string]int
	// Size is the peak disk usage in bytes.
	Size int64
}

// CountPairs counts, for every pair of signatures a < b, the groups of each
// label containing both. keys are the Organizer boundaries and must cover
// every signature.
//
// Each worker owns an Organizer fed with (a, Peer{label, b}) and merged once
// the groups are exhausted. The workers' Organizers are then k-way merged
// and the counts written, in key order, to a final Organizer.
func CountPairs(ctx context.Context, groups []Group, keys []string, opts Options) (*Counts, error) {
	workers := max(opts.Workers, 1)
	flushEvery := max(opts.FlushEvery, 1)

	orgs := make([]*organizer.Organizer[string, Peer], workers)
	defer func() {
		for _, o := range orgs {
			if o != nil {
				o.Remove()
			}
		}
	}()
	for i := range orgs {
		o, err := organizer.New[string, Peer](keys, opts.Dir)
		if err != nil {
			return nil, err
		}
		orgs[i] = o
	}

	queue := make(chan Group, workers)
	sizes := make([]int64, workers)
	errs := make([]error, workers)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			sizes[w], errs[w] = consume(ctx, orgs[w], queue, flushEvery)
			if errs[w] != nil {
				cancel()
			}
		}(w)
	}

	counts := &Counts{Groups: make(map[string]map[string]int)}
feed:
	for _, g := range groups {
		accs := slices.Clone(g.Signatures)
		slices.Sort(accs)
		g.Signatures = slices.Compact(accs)
		for _, sig := range g.Signatures {
			byLabel, ok := counts.Groups[sig]
			if !ok {
				byLabel = make(map[string]int)
				counts.Groups[sig] = byLabel
			}
			byLabel[g.Label]++
		}
		select {
		case <-ctx.Done():
			break feed
		case queue <- g:
		}
	}
	close(queue)
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	final, err := organizer.New[string, PairCount](keys, opts.Dir)
	if err != nil {
		return nil, err
	}
	its := make([]*organizer.Iterator[string, Peer], len(orgs))
	for i, o := range orgs {
		its[i] = o.Iterator()
	}
	err = organizer.MergeIterators(its, func(sig string, peers []Peer) error {
		return final.Write(sig, tally(peers))
	})
	if err != nil {
		final.Remove()
		return nil, err
	}

	for _, s := range sizes {
		counts.Size += s
	}
	finalSize, err := final.Size()
	if err != nil {
		final.Remove()
		return nil, err
	}
	counts.Size += finalSize
	counts.Pairs = final

	log.Printf("counted co-occurrences of %s signatures in %s groups (disk usage: %s)",
		humanize.Comma(int64(len(counts.Groups))), humanize.Comma(int64(len(groups))),
		humanize.Bytes(uint64(counts.Size)))
	return counts, nil
}

// consume adds every pair of every group to o and merges it. Group
// signatures are sorted and distinct.
func consume(ctx context.Context, o *organizer.Organizer[string, Peer], queue <-chan Group, flushEvery int) (int64, error) {
	for g := range queue {
		if ctx.Err() != nil {
			continue
		}
		accs := g.Signatures
		for i, a := range accs {
			for _, b := range accs[i+1:] {
				if err := o.Add(a, Peer{Label: g.Label, Other: b}); err != nil {
					return 0, fmt.Errorf("group %q: %w", g.Label, err)
				}
			}
		}
		if o.Buffered() >= flushEvery {
			if err := o.Flush(); err != nil {
				return 0, err
			}
		}
	}
	if err := o.Flush(); err != nil {
		return 0, err
	}
	return o.Merge(1)
}

// tally counts peers by (label, other), sorted.
func tally(peers []Peer) []PairCount {
	n := make(map[Peer]int, len(peers))
	for _, p := range peers {
		n[p]++
	}
	out := make([]PairCount, 0, len(n))
	for p, c := range n {
		out = append(out, PairCount{Label: p.Label, Other: p.Other, Count: c})
	}
	slices.SortFunc(out, func(a, b PairCount) int {
		if a.Label != b.Label {
			if a.Label < b.Label {
				return -1
			}
			return 1
		}
		if a.Other < b.Other {
			return -1
		}
		if a.Other > b.Other {
			return 1
		}
		return 0
	})
	return out
}
