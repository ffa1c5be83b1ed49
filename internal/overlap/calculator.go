package overlap

import (
	"github.com/dreamware/sigcmp/internal/match"
)

// DefaultMinOverlap is the fraction of the smaller signature's residues two
// signatures must share on a protein to count as overlapping there.
const DefaultMinOverlap = 0.5

// Calculator updates Results one protein at a time. It holds no state
// besides its configuration and may be shared by workers.
type Calculator struct {
	MinOverlap float64
}

// NewCalculator creates a calculator with the given overlap fraction
func NewCalculator(minOverlap float64) Calculator {
	return Calculator{MinOverlap: minOverlap}
}

// Process adds one protein's record to res.
//
// Every matched signature counts the sequence. Complete sequences also
// count residues, and either the single-domain counter (exactly one
// signature) or pairwise collocations and overlaps.
func (c Calculator) Process(res *Results, rec *match.Record) {
	res.Proteins++

	accs := rec.Signatures()
	spans := rec.Spans()
	residues := make([]int, len(accs))

	for i, acc := range accs {
		s := res.signature(acc)
		s.Sequences++
		if rec.Reviewed {
			s.Reviewed++
		}
		if !rec.Complete {
			continue
		}
		residues[i] = match.Residues(spans[acc])
		s.Complete++
		if rec.Reviewed {
			s.CompleteReviewed++
		}
		s.Residues += int64(residues[i])
	}

	if !rec.Complete {
		return
	}
	if len(accs) == 1 {
		res.signature(accs[0]).CompleteSingleDomain++
		return
	}

	for i := 0; i < len(accs); i++ {
		for j := i + 1; j < len(accs); j++ {
			shared := match.OverlapResidues(spans[accs[i]], spans[accs[j]])

			cs := res.comparison(Pair{A: accs[i], B: accs[j]})
			cs.Collocations++
			cs.ResidueOverlaps += int64(shared)
			if rec.Reviewed {
				cs.ReviewedCollocations++
				cs.ReviewedResidueOverlaps += int64(shared)
			}
			if float64(shared) >= c.MinOverlap*float64(min(residues[i], residues[j])) {
				cs.ProteinOverlaps++
			}
		}
	}
}
