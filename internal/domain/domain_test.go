package domain

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/sigcmp/internal/match"
)

func dom(sig string, rank, start, end int) Domain {
	return Domain{Signature: sig, Database: "db", Rank: rank, Fragments: match.Continuous(start, end)}
}

func signatures(ds []Domain) []string {
	var out []string
	for _, d := range ds {
		out = append(out, d.Signature)
	}
	return out
}

func TestDomainSpanAndRanks(t *testing.T) {
	d := Domain{Fragments: match.FragmentSet{
		{Start: 10, End: 40, Status: match.StatusCDiscontinuous},
		{Start: 80, End: 95, Status: match.StatusNDiscontinuous},
	}}
	assert.Equal(t, match.Span{Start: 10, End: 95}, d.Span())

	ranks := RankTable{"pfam": 1, "smart": 2}
	assert.Equal(t, 1, ranks.Rank("pfam"))
	assert.Equal(t, UnknownRank, ranks.Rank("prosite"))

	rec := match.NewRecord("P1", false, true, 0)
	rec.Add("SM1", "smart", match.Continuous(1, 10))
	rec.Add("PF1", "pfam", match.Continuous(5, 50))
	rec.Add("PF1", "pfam", match.Continuous(60, 90))
	ds := FromRecord(rec, ranks)
	require.Len(t, ds, 3)
	assert.Equal(t, []string{"PF1", "PF1", "SM1"}, signatures(ds))
	assert.Equal(t, 2, ds[2].Rank)
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name    string
		domains []Domain
		want    []string
	}{
		{
			name:    "disjoint domains are all kept",
			domains: []Domain{dom("B", 1, 200, 300), dom("A", 1, 1, 100)},
			want:    []string{"A", "B"},
		},
		{
			name: "larger coverage wins over redundant match",
			domains: []Domain{
				dom("LONG", 2, 1, 200),
				dom("SHORT", 1, 10, 100),
			},
			want: []string{"LONG"},
		},
		{
			name: "two compatible halves beat one long domain",
			domains: []Domain{
				dom("WHOLE", 1, 1, 150),
				dom("LEFT", 2, 1, 100),
				dom("RIGHT", 2, 95, 200),
			},
			want: []string{"LEFT", "RIGHT"},
		},
		{
			name: "equal coverage prefers best source",
			domains: []Domain{
				dom("SMART", 3, 1, 100),
				dom("PFAM", 1, 1, 100),
			},
			want: []string{"PFAM"},
		},
		{
			name:    "empty input",
			domains: nil,
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, signatures(NewSelector().Select(tt.domains)))
		})
	}
}

// bruteForce returns the best coverage of any pairwise compatible subset.
func bruteForce(cands []candidate, threshold float64) int {
	g := newGraph(cands, threshold)
	best := 0
	for mask := 1; mask < 1<<len(cands); mask++ {
		var set []int
		ok := true
		for i := 0; i < len(cands) && ok; i++ {
			if mask&(1<<i) == 0 {
				continue
			}
			ok = g.compatible(set, i)
			set = append(set, i)
		}
		if ok {
			best = max(best, coverage(cands, set))
		}
	}
	return best
}

func TestSelectIsOptimal(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	sel := NewSelector()

	for round := 0; round < 200; round++ {
		n := 2 + rng.Intn(9)
		var domains []Domain
		for i := 0; i < n; i++ {
			start := 1 + rng.Intn(150)
			domains = append(domains, dom(fmt.Sprintf("S%d", i), rng.Intn(3), start, start+5+rng.Intn(80)))
		}

		got := sel.Select(domains)
		require.NotEmpty(t, got)

		var gotCands []candidate
		for _, d := range got {
			gotCands = append(gotCands, candidate{Domain: d, span: d.Span()})
		}
		g := newGraph(gotCands, sel.OverlapThreshold)
		for i := range gotCands {
			for j := i + 1; j < len(gotCands); j++ {
				assert.True(t, g.adj[i][j], "round %d: %s and %s overlap", round, got[i].Signature, got[j].Signature)
			}
		}

		// clusters are independent, so the best total is the sum over clusters
		var all []candidate
		for _, d := range domains {
			all = append(all, candidate{Domain: d, span: d.Span()})
		}
		want := 0
		for _, c := range clusters(sortCandidates(all)) {
			want += bruteForce(c, sel.OverlapThreshold)
		}
		assert.Equal(t, want, coverage(gotCands, seq(len(gotCands))), "round %d", round)
	}
}

func sortCandidates(cands []candidate) []candidate {
	out := append([]candidate(nil), cands...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			a, b := out[j-1].span, out[j].span
			if a.Start < b.Start || (a.Start == b.Start && a.End <= b.End) {
				break
			}
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func seq(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}

func TestSelectCapsCandidates(t *testing.T) {
	var domains []Domain
	for i := 0; i < 30; i++ {
		domains = append(domains, dom(fmt.Sprintf("S%02d", i), 1, 1+i, 60+i))
	}
	sel := Selector{MaxCandidates: 5, OverlapThreshold: DefaultOverlapThreshold}
	got := sel.Select(domains)
	require.Len(t, got, 1)
	assert.Equal(t, "S00", got[0].Signature)
}

func TestHasherStructure(t *testing.T) {
	h := NewHasher()
	spans := map[string][]match.Span{
		"S1": {{Start: 10, End: 50}},
		"S2": {{Start: 20, End: 60}},
		"S3": {{Start: 120, End: 130}},
	}
	assert.Equal(t, []string{"S1", "S2", "", "S1", "S2", "", "S3", "S3"}, h.Structure(spans))
	assert.Nil(t, h.Structure(nil))
}

func TestHasherDeterministic(t *testing.T) {
	h := NewHasher()

	a := match.NewRecord("P1", false, true, 0)
	a.Add("S1", "db", match.Continuous(10, 50))
	a.Add("S1", "db", match.Continuous(40, 90))
	a.Add("S2", "db", match.Continuous(200, 240))

	b := match.NewRecord("P2", true, false, 7)
	b.Add("S2", "db", match.Continuous(200, 240))
	b.Add("S1", "db", match.Continuous(40, 90))
	b.Add("S1", "db", match.Continuous(10, 50))

	ha, err := h.HashRecord(a)
	require.NoError(t, err)
	hb, err := h.HashRecord(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)

	t.Run("moving a span past the gap changes the fingerprint", func(t *testing.T) {
		c := match.NewRecord("P3", false, true, 0)
		c.Add("S1", "db", match.Continuous(10, 90))
		c.Add("S2", "db", match.Continuous(95, 135))
		hc, err := h.HashRecord(c)
		require.NoError(t, err)
		assert.NotEqual(t, ha, hc)
	})

	t.Run("shift of the whole protein keeps the fingerprint", func(t *testing.T) {
		c := match.NewRecord("P4", false, true, 0)
		c.Add("S1", "db", match.Continuous(110, 190))
		c.Add("S2", "db", match.Continuous(300, 340))
		hc, err := h.HashRecord(c)
		require.NoError(t, err)
		assert.Equal(t, ha, hc)
	})

	t.Run("md5 digest", func(t *testing.T) {
		md := Hasher{MaxGap: DefaultMaxGap, Digest: DigestMD5}
		sum, err := md.HashRecord(a)
		require.NoError(t, err)
		assert.Len(t, sum, 32)

		_, err = Hasher{Digest: "sha0"}.HashRecord(a)
		assert.Error(t, err)
	})
}
