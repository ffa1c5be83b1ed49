package cooccur

import (
	"golang.org/x/exp/slices"

	"github.com/dreamware/sigcmp/internal/match"
	"github.com/dreamware/sigcmp/internal/organizer"
)

// TaxonIndex collects the taxa every signature occurs in, spilling to disk
// through an Organizer keyed by signature.
type TaxonIndex struct {
	org        *organizer.Organizer[string, int]
	flushEvery int
}

// NewTaxonIndex creates an index over the boundary keys in a private
// directory under dir.
func NewTaxonIndex(keys []string, dir string, flushEvery int) (*TaxonIndex, error) {
	org, err := organizer.New[string, int](keys, dir)
	if err != nil {
		return nil, err
	}
	return &TaxonIndex{org: org, flushEvery: max(flushEvery, 1)}, nil
}

// Add records the taxon of rec for each signature it matches.
func (t *TaxonIndex) Add(rec *match.Record) error {
	for sig := range rec.Matches {
		if err := t.org.Add(sig, rec.TaxonLeft); err != nil {
			return err
		}
	}
	if t.org.Buffered() >= t.flushEvery {
		return t.org.Flush()
	}
	return nil
}

// Finish flushes and merges the index; it returns the peak disk usage.
func (t *TaxonIndex) Finish(workers int) (int64, error) {
	if err := t.org.Flush(); err != nil {
		return 0, err
	}
	return t.org.Merge(workers)
}

// Each calls fn with every signature, in ascending order, and the sorted
// distinct taxon left numbers of its proteins. Call after Finish.
func (t *TaxonIndex) Each(fn func(sig string, taxa []int) error) error {
	it := t.org.Iterator()
	defer it.Close()
	for it.Next() {
		taxa := slices.Clone(it.Values())
		slices.Sort(taxa)
		if err := fn(it.Key(), slices.Compact(taxa)); err != nil {
			return err
		}
	}
	return it.Err()
}

// Remove deletes the index's files
func (t *TaxonIndex) Remove() error {
	return t.org.Remove()
}
