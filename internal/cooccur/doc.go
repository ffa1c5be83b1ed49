// Package cooccur counts how often signatures share a property: a protein
// description, a taxon at some rank, or a protein's taxon. Every count is
// built on disk-spilling Organizers so the pair space never has to fit in
// memory.
package cooccur
