package domain

import (
	"sort"

	"golang.org/x/exp/slices"

	"github.com/dreamware/sigcmp/internal/match"
)

const (
	// DefaultMaxCandidates caps the domains examined per cluster.
	DefaultMaxCandidates = 20
	// DefaultOverlapThreshold is the overlap fraction from which two
	// domains can no longer be shown together.
	DefaultOverlapThreshold = 0.3
)

// Selector picks a mostly non-overlapping set of domains to display.
type Selector struct {
	MaxCandidates    int
	OverlapThreshold float64
}

// NewSelector creates a selector with the default limits
func NewSelector() Selector {
	return Selector{MaxCandidates: DefaultMaxCandidates, OverlapThreshold: DefaultOverlapThreshold}
}

type candidate struct {
	Domain
	span match.Span
}

// Select returns the representative domains of one protein, ordered by
// position.
//
// Domains are grouped into clusters of transitively overlapping spans. In
// each cluster the best candidates by coverage then rank are kept, and the
// subset of mutually compatible candidates covering the most residues wins;
// ties go to the subset with more domains from the cluster's best source.
func (s Selector) Select(domains []Domain) []Domain {
	cands := make([]candidate, len(domains))
	for i, d := range domains {
		cands[i] = candidate{Domain: d, span: d.Span()}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].span.Start != cands[j].span.Start {
			return cands[i].span.Start < cands[j].span.Start
		}
		return cands[i].span.End < cands[j].span.End
	})

	var out []Domain
	for _, cluster := range clusters(cands) {
		out = append(out, s.selectCluster(cluster)...)
	}
	return out
}

// clusters splits candidates sorted by start wherever a start passes the
// running maximum end.
func clusters(cands []candidate) [][]candidate {
	var (
		out    [][]candidate
		start  int
		maxEnd int
	)
	for i, c := range cands {
		if i > 0 && c.span.Start > maxEnd {
			out = append(out, cands[start:i])
			start = i
		}
		if i == start || c.span.End > maxEnd {
			maxEnd = c.span.End
		}
	}
	if len(cands) > 0 {
		out = append(out, cands[start:])
	}
	return out
}

func (s Selector) selectCluster(cluster []candidate) []Domain {
	if len(cluster) == 1 {
		return []Domain{cluster[0].Domain}
	}

	cands := slices.Clone(cluster)
	if s.MaxCandidates > 0 && len(cands) > s.MaxCandidates {
		sort.SliceStable(cands, func(i, j int) bool {
			if li, lj := cands[i].span.Len(), cands[j].span.Len(); li != lj {
				return li > lj
			}
			return cands[i].Rank < cands[j].Rank
		})
		cands = cands[:s.MaxCandidates]
		// back to positional order
		sort.SliceStable(cands, func(i, j int) bool {
			if cands[i].span.Start != cands[j].span.Start {
				return cands[i].span.Start < cands[j].span.Start
			}
			return cands[i].span.End < cands[j].span.End
		})
	}

	best := UnknownRank
	for _, c := range cands {
		best = min(best, c.Rank)
	}

	g := newGraph(cands, s.OverlapThreshold)
	var (
		winner    []int
		winCover  = -1
		winPrefer = -1
		current   = make([]int, 0, len(cands))
	)
	g.maximalSets(current, 0, func(set []int) {
		cover := coverage(cands, set)
		prefer := 0
		for _, i := range set {
			if cands[i].Rank == best {
				prefer++
			}
		}
		if cover > winCover || (cover == winCover && prefer > winPrefer) {
			winner = slices.Clone(set)
			winCover, winPrefer = cover, prefer
		}
	})

	out := make([]Domain, len(winner))
	for i, idx := range winner {
		out[i] = cands[idx].Domain
	}
	return out
}

// coverage returns the distinct residues covered by the candidates in set.
func coverage(cands []candidate, set []int) int {
	spans := make([]match.Span, len(set))
	for i, idx := range set {
		spans[i] = cands[idx].span
	}
	return match.Residues(match.MergeSpans(spans))
}

// graph links candidates that may be displayed together.
type graph struct {
	n   int
	adj [][]bool
}

func newGraph(cands []candidate, threshold float64) *graph {
	g := &graph{n: len(cands), adj: make([][]bool, len(cands))}
	for i := range g.adj {
		g.adj[i] = make([]bool, len(cands))
	}
	for i := 0; i < len(cands); i++ {
		for j := i + 1; j < len(cands); j++ {
			a, b := cands[i].span, cands[j].span
			frac := float64(match.Overlap(a, b)) / float64(min(a.Len(), b.Len()))
			ok := frac < threshold
			g.adj[i][j], g.adj[j][i] = ok, ok
		}
	}
	return g
}

func (g *graph) compatible(set []int, v int) bool {
	for _, u := range set {
		if !g.adj[u][v] {
			return false
		}
	}
	return true
}

// maximalSets calls fn with every maximal set of pairwise compatible
// candidates, branching on including or excluding candidate i. A branch
// that excluded a candidate compatible with its final set is dropped since
// that set is not maximal.
func (g *graph) maximalSets(set []int, i int, fn func([]int)) {
	if i == g.n {
		for v := 0; v < g.n; v++ {
			if !slices.Contains(set, v) && g.compatible(set, v) {
				return
			}
		}
		fn(set)
		return
	}
	if g.compatible(set, i) {
		g.maximalSets(append(set, i), i+1, fn)
	}
	g.maximalSets(set, i+1, fn)
}
