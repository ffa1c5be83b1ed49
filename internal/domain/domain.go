package domain

import (
	"math"

	"github.com/dreamware/sigcmp/internal/match"
)

// Domain is one signature match considered for display.
type Domain struct {
	Signature string
	Database  string
	Rank      int // source priority, lower is preferred
	Fragments match.FragmentSet
}

// Span returns the residues from the earliest fragment start to the
// overall maximum fragment end.
func (d Domain) Span() match.Span {
	start, end := d.Fragments.Bounds()
	return match.Span{Start: start, End: end}
}

// RankTable maps a source database to its priority.
type RankTable map[string]int

// UnknownRank is the rank of databases missing from a RankTable.
const UnknownRank = math.MaxInt32

// Rank returns the priority of db
func (t RankTable) Rank(db string) int {
	if r, ok := t[db]; ok {
		return r
	}
	return UnknownRank
}

// FromRecord returns one Domain per hit of rec. Each model location of a
// signature becomes its own domain.
func FromRecord(rec *match.Record, ranks RankTable) []Domain {
	var domains []Domain
	for _, sig := range rec.Signatures() {
		m := rec.Matches[sig]
		for _, fs := range m.Locations {
			domains = append(domains, Domain{
				Signature: sig,
				Database:  m.Database,
				Rank:      ranks.Rank(m.Database),
				Fragments: fs,
			})
		}
	}
	return domains
}
