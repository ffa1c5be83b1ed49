package match

import (
	"errors"
	"fmt"

	"golang.org/x/exp/slices"
)

// ErrUnsorted is returned when records are not in non-decreasing protein order.
var ErrUnsorted = errors.New("match records out of order")

// Match holds every hit of one signature on one protein.
// Models of the same signature are merged into one Match, each model
// contributing one FragmentSet.
type Match struct {
	Database  string        `json:"db"`
	Locations []FragmentSet `json:"locations"`
}

// Record is the per-protein unit of the match file.
type Record struct {
	Protein   string           `json:"protein"`
	Reviewed  bool             `json:"reviewed"`
	Complete  bool             `json:"complete"`
	TaxonLeft int              `json:"taxon_left"`
	Matches   map[string]Match `json:"matches"`
}

// NewRecord creates an empty record for a protein.
func NewRecord(protein string, reviewed, complete bool, taxonLeft int) *Record {
	return &Record{
		Protein:   protein,
		Reviewed:  reviewed,
		Complete:  complete,
		TaxonLeft: taxonLeft,
		Matches:   make(map[string]Match),
	}
}

// Add appends a hit to the signature's match, creating it if needed.
func (r *Record) Add(signature, database string, fs FragmentSet) {
	m := r.Matches[signature]
	if m.Database == "" {
		m.Database = database
	}
	m.Locations = append(m.Locations, fs)
	r.Matches[signature] = m
}

// Absorb merges other's matches into r. Both must describe the same protein.
func (r *Record) Absorb(other *Record) {
	for sig, m := range other.Matches {
		for _, fs := range m.Locations {
			r.Add(sig, m.Database, fs)
		}
	}
}

// Signatures returns the matched signature accessions in ascending order.
func (r *Record) Signatures() []string {
	accs := make([]string, 0, len(r.Matches))
	for acc := range r.Matches {
		accs = append(accs, acc)
	}
	slices.Sort(accs)
	return accs
}

// Spans returns the merged spans of every matched signature.
func (r *Record) Spans() map[string][]Span {
	spans := make(map[string][]Span, len(r.Matches))
	for acc, m := range r.Matches {
		spans[acc] = MergeSpans(Spans(m.Locations))
	}
	return spans
}

// Validate checks the record's own invariants.
func (r *Record) Validate() error {
	if r.Protein == "" {
		return fmt.Errorf("%w: missing protein accession", ErrMalformed)
	}
	for acc, m := range r.Matches {
		if len(m.Locations) == 0 {
			return fmt.Errorf("%w: %s/%s has no locations", ErrMalformed, r.Protein, acc)
		}
		for _, fs := range m.Locations {
			if err := fs.Validate(); err != nil {
				return fmt.Errorf("%s/%s: %w", r.Protein, acc, err)
			}
		}
	}
	return nil
}

// CheckOrder returns ErrUnsorted if next must not follow prev.
func CheckOrder(prev, next string) error {
	if next < prev {
		return fmt.Errorf("%w: %s after %s", ErrUnsorted, next, prev)
	}
	return nil
}
