package overlap

// DefaultMinCollocation is the minimum share of the smaller signature's
// complete sequences that must be collocations for a pair to be predicted.
const DefaultMinCollocation = 0.5

// Prediction is a signature pair likely to describe related features.
type Prediction struct {
	A               string
	B               string
	Collocations    int64
	ProteinOverlaps int64
	ResidueOverlaps int64

	// Similarity and containment of the pair's complete sequences
	Similarity   float64
	ContainmentA float64
	ContainmentB float64

	// Same measures over overlapping sequences
	OverlapSimilarity   float64
	OverlapContainmentA float64
	OverlapContainmentB float64

	// Same measures over residues
	ResidueSimilarity   float64
	ResidueContainmentA float64
	ResidueContainmentB float64
}

// Reverse returns the prediction seen from B.
func (p Prediction) Reverse() Prediction {
	p.A, p.B = p.B, p.A
	p.ContainmentA, p.ContainmentB = p.ContainmentB, p.ContainmentA
	p.OverlapContainmentA, p.OverlapContainmentB = p.OverlapContainmentB, p.OverlapContainmentA
	p.ResidueContainmentA, p.ResidueContainmentB = p.ResidueContainmentB, p.ResidueContainmentA
	return p
}

// Similarity returns the overlap coefficient intersection/union of two sets
// of sizes n1 and n2, and the share of each set in the intersection.
// Empty sets yield zero ratios.
func Similarity(n1, n2, intersection int64) (coef, cont1, cont2 float64) {
	if union := n1 + n2 - intersection; union > 0 {
		coef = float64(intersection) / float64(union)
	}
	if n1 > 0 {
		cont1 = float64(intersection) / float64(n1)
	}
	if n2 > 0 {
		cont2 = float64(intersection) / float64(n2)
	}
	return coef, cont1, cont2
}

// Predict returns, ordered by pair, the pairs whose collocations make up at
// least minCollocation of the smaller signature's complete sequence count.
// Pairs where that count is zero are never predicted.
func Predict(res *Results, minCollocation float64) []Prediction {
	var preds []Prediction
	for _, p := range res.SortedPairs() {
		pred, ok := measure(res, p)
		if !ok {
			continue
		}
		s1, s2 := res.Signatures[p.A], res.Signatures[p.B]
		smaller := min(s1.Complete, s2.Complete)
		if smaller == 0 || float64(pred.Collocations) < minCollocation*float64(smaller) {
			continue
		}
		preds = append(preds, pred)
	}
	return preds
}

// Similarities measures every compared pair, ordered by pair.
func Similarities(res *Results) []Prediction {
	preds := make([]Prediction, 0, len(res.Comparisons))
	for _, p := range res.SortedPairs() {
		if pred, ok := measure(res, p); ok {
			preds = append(preds, pred)
		}
	}
	return preds
}

func measure(res *Results, p Pair) (Prediction, bool) {
	c := res.Comparisons[p]
	s1, s2 := res.Signatures[p.A], res.Signatures[p.B]
	if c == nil || s1 == nil || s2 == nil {
		return Prediction{}, false
	}
	pred := Prediction{
		A:               p.A,
		B:               p.B,
		Collocations:    c.Collocations,
		ProteinOverlaps: c.ProteinOverlaps,
		ResidueOverlaps: c.ResidueOverlaps,
	}
	pred.Similarity, pred.ContainmentA, pred.ContainmentB = Similarity(s1.Complete, s2.Complete, c.Collocations)
	pred.OverlapSimilarity, pred.OverlapContainmentA, pred.OverlapContainmentB = Similarity(s1.Complete, s2.Complete, c.ProteinOverlaps)
	pred.ResidueSimilarity, pred.ResidueContainmentA, pred.ResidueContainmentB = Similarity(s1.Residues, s2.Residues, c.ResidueOverlaps)
	return pred, true
}
