// Package overlap computes per-signature counters and per-pair collocation
// and overlap counters from per-protein match records.
//
// Calculator.Process is a pure update of a Results value. Results of
// disjoint sets of proteins combine with Results.Merge; counter addition is
// commutative and associative, so the totals never depend on how proteins
// were split between workers or in which order partial results arrive.
//
// Two signatures collocate on a protein when both match it. They overlap on
// it when the residues their merged spans share reach MinOverlap of the
// smaller signature's covered residues.
package overlap
