package match

import (
	"golang.org/x/exp/slices"
)

// Span is an inclusive residue range.
type Span struct {
	Start int
	End   int
}

// Len returns the number of residues in the span.
func (s Span) Len() int {
	return s.End - s.Start + 1
}

// Overlap returns the number of residues shared by a and b, or zero.
func Overlap(a, b Span) int {
	o := min(a.End, b.End) - max(a.Start, b.Start) + 1
	if o < 0 {
		return 0
	}
	return o
}

// MergeSpans collapses spans into maximal non-overlapping spans.
// Spans are sorted by start; the current span is extended while the next
// start is not past its end. The input slice is sorted in place.
func MergeSpans(spans []Span) []Span {
	if len(spans) == 0 {
		return nil
	}
	slices.SortFunc(spans, func(a, b Span) int {
		if a.Start != b.Start {
			return a.Start - b.Start
		}
		return a.End - b.End
	})

	merged := make([]Span, 0, len(spans))
	cur := spans[0]
	for _, s := range spans[1:] {
		if s.Start > cur.End {
			merged = append(merged, cur)
			cur = s
		} else if s.End > cur.End {
			cur.End = s.End
		}
	}
	return append(merged, cur)
}

// Residues returns the total length of spans, which must not overlap.
func Residues(spans []Span) int {
	n := 0
	for _, s := range spans {
		n += s.Len()
	}
	return n
}

// OverlapResidues sums the pairwise overlap between two sets of merged spans.
func OverlapResidues(a, b []Span) int {
	n := 0
	for _, x := range a {
		for _, y := range b {
			n += Overlap(x, y)
		}
	}
	return n
}

// Spans returns the fragments of every set as spans, unmerged.
func Spans(sets []FragmentSet) []Span {
	var spans []Span
	for _, fs := range sets {
		for _, f := range fs {
			spans = append(spans, Span{Start: f.Start, End: f.End})
		}
	}
	return spans
}
