package cooccur

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/sigcmp/internal/match"
	"github.com/dreamware/sigcmp/internal/organizer"
)

func readPairs(t *testing.T, o *organizer.Organizer[string, PairCount]) map[string][]PairCount {
	t.Helper()
	it := o.Iterator()
	defer it.Close()
	out := map[string][]PairCount{}
	var prev string
	for it.Next() {
		assert.Less(t, prev, it.Key())
		prev = it.Key()
		out[it.Key()] = it.Values()
	}
	require.NoError(t, it.Err())
	return out
}

func TestCountPairs(t *testing.T) {
	groups := []Group{
		{Signatures: []string{"C", "A", "B"}},
		{Signatures: []string{"A", "B"}},
		{Signatures: []string{"B", "C", "B"}},
		{Label: "genus", Signatures: []string{"A", "C"}},
		{Label: "genus", Signatures: []string{"D"}},
	}
	keys := organizer.Boundaries([]string{"A", "B", "C", "D"}, 2)

	for _, workers := range []int{1, 3} {
		counts, err := CountPairs(context.Background(), groups, keys, Options{Dir: t.TempDir(), Workers: workers, FlushEvery: 2})
		require.NoError(t, err)

		assert.Equal(t, map[string][]PairCount{
			"A": {
				{Other: "B", Count: 2},
				{Other: "C", Count: 1},
				{Label: "genus", Other: "C", Count: 1},
			},
			"B": {
				{Other: "C", Count: 2},
			},
		}, readPairs(t, counts.Pairs))

		assert.Equal(t, map[string]int{"": 2, "genus": 1}, counts.Groups["A"])
		assert.Equal(t, map[string]int{"genus": 1}, counts.Groups["D"])
		assert.Positive(t, counts.Size)
		require.NoError(t, counts.Pairs.Remove())
	}
}

func TestCountPairsKeyBelowRange(t *testing.T) {
	_, err := CountPairs(context.Background(), []Group{{Signatures: []string{"A", "B"}}}, []string{"B"}, Options{Dir: t.TempDir(), Workers: 2})
	assert.ErrorIs(t, err, organizer.ErrKeyBelowRange)
}

func TestTaxonIndex(t *testing.T) {
	idx, err := NewTaxonIndex([]string{"A"}, t.TempDir(), 1)
	require.NoError(t, err)
	defer idx.Remove()

	for i, taxon := range []int{30, 10, 30, 20} {
		rec := match.NewRecord("P", false, true, taxon)
		rec.Add("A", "db", match.Continuous(1, 2))
		if i%2 == 0 {
			rec.Add("B", "db", match.Continuous(1, 2))
		}
		require.NoError(t, idx.Add(rec))
	}
	_, err = idx.Finish(2)
	require.NoError(t, err)

	got := map[string][]int{}
	require.NoError(t, idx.Each(func(sig string, taxa []int) error {
		got[sig] = taxa
		return nil
	}))
	assert.Equal(t, map[string][]int{"A": {10, 20, 30}, "B": {30}}, got)
}
