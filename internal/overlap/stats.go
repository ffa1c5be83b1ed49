package overlap

import (
	"golang.org/x/exp/slices"
)

// SignatureStats are per-signature counters accumulated over proteins.
type SignatureStats struct {
	Sequences            int64 `json:"num_sequences"`
	Reviewed             int64 `json:"num_reviewed_sequences"`
	Complete             int64 `json:"num_complete_sequences"`
	CompleteReviewed     int64 `json:"num_complete_reviewed_sequences"`
	CompleteSingleDomain int64 `json:"num_complete_single_domain_sequences"`
	Residues             int64 `json:"num_residues"`
}

// Add adds other's counters to s
func (s *SignatureStats) Add(other SignatureStats) {
	s.Sequences += other.Sequences
	s.Reviewed += other.Reviewed
	s.Complete += other.Complete
	s.CompleteReviewed += other.CompleteReviewed
	s.CompleteSingleDomain += other.CompleteSingleDomain
	s.Residues += other.Residues
}

// ComparisonStats are counters of one unordered signature pair.
type ComparisonStats struct {
	Collocations            int64 `json:"num_collocations"`
	ReviewedCollocations    int64 `json:"num_reviewed_collocations"`
	ProteinOverlaps         int64 `json:"num_protein_overlaps"`
	ResidueOverlaps         int64 `json:"num_residue_overlaps"`
	ReviewedResidueOverlaps int64 `json:"num_reviewed_residue_overlaps"`
}

// Add adds other's counters to c
func (c *ComparisonStats) Add(other ComparisonStats) {
	c.Collocations += other.Collocations
	c.ReviewedCollocations += other.ReviewedCollocations
	c.ProteinOverlaps += other.ProteinOverlaps
	c.ResidueOverlaps += other.ResidueOverlaps
	c.ReviewedResidueOverlaps += other.ReviewedResidueOverlaps
}

// Pair is an unordered signature pair stored with A < B.
type Pair struct {
	A string
	B string
}

// NewPair orders a and b.
func NewPair(a, b string) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// Results holds the statistics of any number of proteins. Results of
// disjoint protein sets combine with Merge in any order.
type Results struct {
	Proteins    int64
	Signatures  map[string]*SignatureStats
	Comparisons map[Pair]*ComparisonStats
}

// NewResults creates empty results
func NewResults() *Results {
	return &Results{
		Signatures:  make(map[string]*SignatureStats),
		Comparisons: make(map[Pair]*ComparisonStats),
	}
}

func (r *Results) signature(acc string) *SignatureStats {
	s, ok := r.Signatures[acc]
	if !ok {
		s = &SignatureStats{}
		r.Signatures[acc] = s
	}
	return s
}

func (r *Results) comparison(p Pair) *ComparisonStats {
	c, ok := r.Comparisons[p]
	if !ok {
		c = &ComparisonStats{}
		r.Comparisons[p] = c
	}
	return c
}

// Merge adds every counter of other into r, key by key.
func (r *Results) Merge(other *Results) {
	r.Proteins += other.Proteins
	for acc, s := range other.Signatures {
		r.signature(acc).Add(*s)
	}
	for p, c := range other.Comparisons {
		r.comparison(p).Add(*c)
	}
}

// SortedSignatures returns the signature accessions in ascending order
func (r *Results) SortedSignatures() []string {
	accs := make([]string, 0, len(r.Signatures))
	for acc := range r.Signatures {
		accs = append(accs, acc)
	}
	slices.Sort(accs)
	return accs
}

// SortedPairs returns the compared pairs ordered by (A, B)
func (r *Results) SortedPairs() []Pair {
	pairs := make([]Pair, 0, len(r.Comparisons))
	for p := range r.Comparisons {
		pairs = append(pairs, p)
	}
	slices.SortFunc(pairs, comparePairs)
	return pairs
}

func comparePairs(x, y Pair) int {
	switch {
	case x.A < y.A:
		return -1
	case x.A > y.A:
		return 1
	case x.B < y.B:
		return -1
	case x.B > y.B:
		return 1
	}
	return 0
}
