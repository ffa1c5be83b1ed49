package overlap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/sigcmp/internal/match"
)

func record(protein string, reviewed, complete bool, hits map[string][][2]int) *match.Record {
	rec := match.NewRecord(protein, reviewed, complete, 1)
	for sig, locs := range hits {
		for _, l := range locs {
			rec.Add(sig, "db", match.Continuous(l[0], l[1]))
		}
	}
	return rec
}

func TestProcessPartialOverlap(t *testing.T) {
	res := NewResults()
	calc := NewCalculator(DefaultMinOverlap)
	calc.Process(res, record("P1", true, true, map[string][][2]int{
		"A": {{10, 50}},
		"B": {{40, 80}},
	}))

	c := res.Comparisons[NewPair("B", "A")]
	require.NotNil(t, c)
	assert.Equal(t, ComparisonStats{
		Collocations:            1,
		ReviewedCollocations:    1,
		ProteinOverlaps:         0,
		ResidueOverlaps:         11,
		ReviewedResidueOverlaps: 11,
	}, *c)

	assert.Equal(t, SignatureStats{
		Sequences: 1, Reviewed: 1, Complete: 1, CompleteReviewed: 1, Residues: 41,
	}, *res.Signatures["A"])
}

func TestProcess(t *testing.T) {
	tests := []struct {
		name    string
		rec     *match.Record
		sigs    map[string]SignatureStats
		compare map[Pair]ComparisonStats
	}{
		{
			name: "single domain complete",
			rec:  record("P1", false, true, map[string][][2]int{"A": {{1, 10}, {5, 20}}}),
			sigs: map[string]SignatureStats{
				"A": {Sequences: 1, Complete: 1, CompleteSingleDomain: 1, Residues: 20},
			},
			compare: map[Pair]ComparisonStats{},
		},
		{
			name: "fragment sequence skips residues and pairs",
			rec:  record("P2", true, false, map[string][][2]int{"A": {{1, 10}}, "B": {{1, 10}}}),
			sigs: map[string]SignatureStats{
				"A": {Sequences: 1, Reviewed: 1},
				"B": {Sequences: 1, Reviewed: 1},
			},
			compare: map[Pair]ComparisonStats{},
		},
		{
			name: "overlap reaches half of the shorter signature",
			rec: record("P3", false, true, map[string][][2]int{
				"A": {{1, 100}},
				"B": {{91, 110}},
				"C": {{200, 210}},
			}),
			sigs: map[string]SignatureStats{
				"A": {Sequences: 1, Complete: 1, Residues: 100},
				"B": {Sequences: 1, Complete: 1, Residues: 20},
				"C": {Sequences: 1, Complete: 1, Residues: 11},
			},
			compare: map[Pair]ComparisonStats{
				{"A", "B"}: {Collocations: 1, ProteinOverlaps: 1, ResidueOverlaps: 10},
				{"A", "C"}: {Collocations: 1},
				{"B", "C"}: {Collocations: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewResults()
			NewCalculator(DefaultMinOverlap).Process(res, tt.rec)

			sigs := map[string]SignatureStats{}
			for acc, s := range res.Signatures {
				sigs[acc] = *s
			}
			compare := map[Pair]ComparisonStats{}
			for p, c := range res.Comparisons {
				compare[p] = *c
			}
			assert.Equal(t, tt.sigs, sigs)
			assert.Equal(t, tt.compare, compare)
			assert.Equal(t, int64(1), res.Proteins)
		})
	}
}

func TestMergeIsOrderIndependent(t *testing.T) {
	recs := []*match.Record{
		record("P1", true, true, map[string][][2]int{"A": {{1, 50}}, "B": {{30, 80}}}),
		record("P2", false, true, map[string][][2]int{"A": {{1, 50}}}),
		record("P3", true, false, map[string][][2]int{"B": {{5, 9}}, "C": {{1, 3}}}),
		record("P4", false, true, map[string][][2]int{"A": {{1, 10}}, "B": {{5, 12}}, "C": {{100, 130}}}),
	}
	calc := NewCalculator(DefaultMinOverlap)

	single := NewResults()
	for _, r := range recs {
		calc.Process(single, r)
	}

	parts := []*Results{NewResults(), NewResults(), NewResults()}
	calc.Process(parts[2], recs[0])
	calc.Process(parts[0], recs[1])
	calc.Process(parts[2], recs[2])
	calc.Process(parts[1], recs[3])

	merged := NewResults()
	for i := len(parts) - 1; i >= 0; i-- {
		merged.Merge(parts[i])
	}
	assert.Equal(t, single, merged)
	assert.Equal(t, []string{"A", "B", "C"}, merged.SortedSignatures())
	assert.Equal(t, []Pair{{"A", "B"}, {"A", "C"}, {"B", "C"}}, merged.SortedPairs())
}

func TestSimilarity(t *testing.T) {
	coef, c1, c2 := Similarity(10, 5, 5)
	assert.InDelta(t, 0.5, coef, 1e-9)
	assert.InDelta(t, 0.5, c1, 1e-9)
	assert.InDelta(t, 1.0, c2, 1e-9)

	coef, c1, c2 = Similarity(0, 0, 0)
	assert.Zero(t, coef)
	assert.Zero(t, c1)
	assert.Zero(t, c2)
}

func TestPredict(t *testing.T) {
	res := NewResults()
	res.Signatures["A"] = &SignatureStats{Complete: 10, Residues: 1000}
	res.Signatures["B"] = &SignatureStats{Complete: 4, Residues: 400}
	res.Signatures["C"] = &SignatureStats{Complete: 100}
	res.Signatures["D"] = &SignatureStats{}
	res.Comparisons[Pair{"A", "B"}] = &ComparisonStats{Collocations: 2, ProteinOverlaps: 1, ResidueOverlaps: 200}
	res.Comparisons[Pair{"A", "C"}] = &ComparisonStats{Collocations: 4}
	res.Comparisons[Pair{"C", "D"}] = &ComparisonStats{Collocations: 1}

	preds := Predict(res, DefaultMinCollocation)
	require.Len(t, preds, 1)
	p := preds[0]
	assert.Equal(t, "A", p.A)
	assert.Equal(t, "B", p.B)
	assert.Equal(t, int64(2), p.Collocations)
	assert.InDelta(t, 2.0/12.0, p.Similarity, 1e-9)
	assert.InDelta(t, 0.5, p.ContainmentB, 1e-9)
	assert.InDelta(t, 1.0/13.0, p.OverlapSimilarity, 1e-9)
	assert.InDelta(t, 0.1, p.OverlapContainmentA, 1e-9)
	assert.InDelta(t, 0.25, p.OverlapContainmentB, 1e-9)
	assert.InDelta(t, 200.0/1200.0, p.ResidueSimilarity, 1e-9)
}

func TestSimilarities(t *testing.T) {
	res := NewResults()
	res.Signatures["A"] = &SignatureStats{Complete: 10, Residues: 1000}
	res.Signatures["B"] = &SignatureStats{Complete: 4, Residues: 400}
	res.Signatures["C"] = &SignatureStats{Complete: 100}
	res.Comparisons[Pair{"A", "B"}] = &ComparisonStats{Collocations: 2, ProteinOverlaps: 1, ResidueOverlaps: 200}
	res.Comparisons[Pair{"A", "C"}] = &ComparisonStats{Collocations: 4}
	res.Comparisons[Pair{"B", "X"}] = &ComparisonStats{Collocations: 1}

	sims := Similarities(res)
	require.Len(t, sims, 2, "pairs with unknown signatures are skipped")
	assert.Equal(t, Pair{"A", "B"}, Pair{sims[0].A, sims[0].B})
	assert.Equal(t, Pair{"A", "C"}, Pair{sims[1].A, sims[1].B})
	assert.InDelta(t, 4.0/106.0, sims[1].Similarity, 1e-9)
	assert.Zero(t, sims[1].OverlapSimilarity)
	assert.Zero(t, sims[1].ResidueContainmentB)

	r := sims[0].Reverse()
	assert.Equal(t, "B", r.A)
	assert.Equal(t, "A", r.B)
	assert.Equal(t, sims[0].Similarity, r.Similarity)
	assert.InDelta(t, 0.25, r.OverlapContainmentA, 1e-9)
	assert.InDelta(t, 0.1, r.OverlapContainmentB, 1e-9)
	assert.Equal(t, sims[0].ContainmentA, r.ContainmentB)
	assert.Equal(t, sims[0].ResidueContainmentB, r.ResidueContainmentA)
}
